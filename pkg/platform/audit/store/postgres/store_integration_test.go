//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "juntas/pkg/domain"
	"juntas/pkg/platform/audit"
	auditpostgres "juntas/pkg/platform/audit/store/postgres"
	"juntas/pkg/testutil/containers"
)

type AuditStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *auditpostgres.Store
}

func TestAuditStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = auditpostgres.New(s.postgres.DB)
}

func (s *AuditStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_events"))
}

func (s *AuditStoreSuite) TestListByCaseIsChronological() {
	ctx := context.Background()
	caseID := id.CaseID(uuid.New())
	actor := id.UserID(uuid.New())
	base := time.Now().UTC().Truncate(time.Microsecond)

	events := []audit.Event{
		{Timestamp: base.Add(time.Minute), CaseID: caseID, Action: audit.EventCaseStatusChanged, ActorID: actor, ActorRole: id.RoleHR, Detail: "PENDING->APPROVED"},
		{Timestamp: base, CaseID: caseID, Action: audit.EventCaseCreated, ActorID: actor, ActorRole: id.RoleEvaluatingPhysician},
		{Timestamp: base, CaseID: id.CaseID(uuid.New()), Action: audit.EventCaseCreated, ActorID: actor},
	}
	for _, e := range events {
		s.Require().NoError(s.store.Append(ctx, e))
	}

	got, err := s.store.ListByCase(ctx, caseID)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(audit.EventCaseCreated, got[0].Action)
	s.Equal(audit.EventCaseStatusChanged, got[1].Action)
	s.Equal("PENDING->APPROVED", got[1].Detail)
	s.Equal(audit.CategoryCompliance, got[1].Category)
	s.NotEqual(uuid.Nil, uuid.UUID(got[0].ID))
}
