//go:build integration

package casestore_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"juntas/internal/cases/models"
	"juntas/internal/cases/store/casestore"
	"juntas/internal/cases/store/dictamenstore"
	"juntas/internal/cases/store/documentstore"
	dirmodels "juntas/internal/directory/models"
	dirstore "juntas/internal/directory/store"
	"juntas/internal/platform/postgres"
	id "juntas/pkg/domain"
	"juntas/pkg/platform/sentinel"
	"juntas/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	cases     *casestore.Postgres
	documents *documentstore.Postgres
	dictamens *dictamenstore.Postgres
	tx        *postgres.TxRunner

	patient   id.PatientID
	evaluator id.UserID
	other     id.UserID
	now       time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.cases = casestore.NewPostgres(s.postgres.DB)
	s.documents = documentstore.NewPostgres(s.postgres.DB)
	s.dictamens = dictamenstore.NewPostgres(s.postgres.DB)
	s.tx = postgres.NewTxRunner(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "dictamenes", "case_documents", "cases", "patients", "users"))
	s.now = time.Now().UTC().Truncate(time.Microsecond)

	directory := dirstore.NewPostgres(s.postgres.DB)
	patient := &dirmodels.Patient{ID: id.PatientID(uuid.New()), FullName: "Ana Ruiz", DocumentNumber: "30111222", CreatedAt: s.now}
	s.Require().NoError(directory.CreatePatient(ctx, patient))
	s.patient = patient.ID

	s.evaluator = id.UserID(uuid.New())
	s.other = id.UserID(uuid.New())
	for email, userID := range map[string]id.UserID{"eval@h.org": s.evaluator, "other@h.org": s.other} {
		u := &dirmodels.User{ID: userID, Email: email, Role: id.RoleEvaluatingPhysician, Active: true, CreatedAt: s.now}
		s.Require().NoError(directory.CreateUser(ctx, u))
	}
}

func (s *PostgresStoreSuite) newCase(evaluator id.UserID, status models.Status, createdAt time.Time) *models.Case {
	location := "Consultorio 3"
	c := &models.Case{
		ID:            id.CaseID(uuid.New()),
		PatientID:     s.patient,
		EvaluatorID:   evaluator,
		Status:        status,
		ScheduledDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Location:      &location,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	s.Require().NoError(s.cases.Create(context.Background(), c))
	return c
}

func (s *PostgresStoreSuite) TestCaseRoundTrip() {
	ctx := context.Background()
	c := s.newCase(s.evaluator, models.StatusPending, s.now)

	got, err := s.cases.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(c.EvaluatorID, got.EvaluatorID)
	s.Equal(models.StatusPending, got.Status)
	s.Require().NotNil(got.Location)
	s.Equal("Consultorio 3", *got.Location)
	s.Nil(got.ScheduledTime)
	s.Equal(c.ScheduledDate, got.ScheduledDate.UTC())

	verdict := "APTO"
	decided := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)
	got.Status = models.StatusApproved
	got.FitnessVerdict = &verdict
	got.DecisionDate = &decided
	s.Require().NoError(s.cases.Update(ctx, got))

	again, err := s.cases.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, again.Status)
	s.Require().NotNil(again.DecisionDate)
	s.Equal(decided, again.DecisionDate.UTC())

	s.Require().NoError(s.cases.Delete(ctx, c.ID))
	_, err = s.cases.FindByID(ctx, c.ID)
	s.True(errors.Is(err, sentinel.ErrNotFound))
	s.True(errors.Is(s.cases.Delete(ctx, c.ID), sentinel.ErrNotFound))
}

func (s *PostgresStoreSuite) TestListFiltersAndPages() {
	ctx := context.Background()
	oldest := s.newCase(s.evaluator, models.StatusPending, s.now.Add(-2*time.Hour))
	newest := s.newCase(s.evaluator, models.StatusApproved, s.now)
	s.newCase(s.other, models.StatusPending, s.now.Add(-time.Hour))

	own := s.evaluator
	cases, total, err := s.cases.List(ctx, models.ListFilter{EvaluatorID: &own, Limit: 1})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Require().Len(cases, 1)
	s.Equal(newest.ID, cases[0].ID)

	cases, _, err = s.cases.List(ctx, models.ListFilter{EvaluatorID: &own, Limit: 1, Offset: 1})
	s.Require().NoError(err)
	s.Require().Len(cases, 1)
	s.Equal(oldest.ID, cases[0].ID)

	pending := models.StatusPending
	_, total, err = s.cases.List(ctx, models.ListFilter{Status: &pending})
	s.Require().NoError(err)
	s.Equal(2, total)
}

func (s *PostgresStoreSuite) TestDocumentSlotsAreUniquePerCategory() {
	ctx := context.Background()
	c := s.newCase(s.evaluator, models.StatusPending, s.now)

	first, err := s.documents.PutSlot(ctx, models.SlotUpload{
		CaseID: c.ID, Category: "blood_test", Name: "v1.pdf", MimeType: "application/pdf",
		Content: []byte("one"), Size: 3, At: s.now,
	})
	s.Require().NoError(err)
	second, err := s.documents.PutSlot(ctx, models.SlotUpload{
		CaseID: c.ID, Category: "blood_test", Name: "v2.pdf", MimeType: "application/pdf",
		Content: []byte("second"), Size: 6, At: s.now.Add(time.Minute),
	})
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
	s.Equal("v2.pdf", second.Name)

	_, err = s.documents.PutSlot(ctx, models.SlotUpload{
		CaseID: c.ID, Category: "ecg", Name: "ecg.pdf", MimeType: "application/pdf", At: s.now,
	})
	s.Require().NoError(err)

	slots, err := s.documents.ListSlots(ctx, c.ID)
	s.Require().NoError(err)
	s.Len(slots, 2)

	n, err := s.documents.CountDistinctCategories(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(2, n)

	counts, err := s.documents.CountDistinctCategoriesFor(ctx, []id.CaseID{c.ID, id.CaseID(uuid.New())})
	s.Require().NoError(err)
	s.Equal(2, counts[c.ID])

	content, err := s.documents.GetSlotContent(ctx, c.ID, second.ID)
	s.Require().NoError(err)
	s.Equal([]byte("second"), content.Content)

	_, err = s.documents.GetSlotContent(ctx, c.ID, id.DocumentID(uuid.New()))
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *PostgresStoreSuite) TestDictamenUpsertKeepsIdentity() {
	ctx := context.Background()
	c := s.newCase(s.evaluator, models.StatusPending, s.now)

	missing, err := s.dictamens.Get(ctx, c.ID)
	s.Require().NoError(err)
	s.Nil(missing)

	first, err := s.dictamens.Upsert(ctx, c.ID, json.RawMessage(`{"fitnessVerdict":"APTO"}`), s.now)
	s.Require().NoError(err)
	second, err := s.dictamens.Upsert(ctx, c.ID, json.RawMessage(`{"fitnessVerdict":"NO APTO"}`), s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)

	got, err := s.dictamens.Get(ctx, c.ID)
	s.Require().NoError(err)
	s.JSONEq(`{"fitnessVerdict":"NO APTO"}`, string(got.Payload))
}

func (s *PostgresStoreSuite) TestCascadeDeleteRollsBackTogether() {
	ctx := context.Background()
	c := s.newCase(s.evaluator, models.StatusPending, s.now)
	_, err := s.documents.PutSlot(ctx, models.SlotUpload{
		CaseID: c.ID, Category: "ecg", Name: "ecg.pdf", MimeType: "application/pdf", At: s.now,
	})
	s.Require().NoError(err)

	boom := errors.New("audit unavailable")
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.documents.DeleteAllForCase(ctx, c.ID); err != nil {
			return err
		}
		if err := s.cases.Delete(ctx, c.ID); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.cases.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	n, err := s.documents.CountDistinctCategories(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(1, n)
}
