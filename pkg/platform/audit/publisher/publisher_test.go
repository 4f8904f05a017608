package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "juntas/pkg/domain"
	audit "juntas/pkg/platform/audit"
	"juntas/pkg/platform/audit/store/memory"
	"juntas/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error { return errors.New("db down") }
func (failingStore) ListByCase(context.Context, id.CaseID) ([]audit.Event, error) {
	return nil, nil
}

func TestPublisher_EmitEnrichesFromContext(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)

	now := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, "req-1")
	ctx = requestcontext.WithClientMetadata(ctx, "10.0.0.7", "Firefox/Linux")

	caseID := id.CaseID(uuid.New())
	err := pub.Emit(ctx, audit.Event{
		CaseID:    caseID,
		Action:    audit.EventCaseStatusChanged,
		ActorID:   id.UserID(uuid.New()),
		ActorRole: id.RoleHR,
		Detail:    "PENDING -> APPROVED",
	})
	require.NoError(t, err)

	events, err := pub.List(ctx, caseID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	got := events[0]
	assert.False(t, uuid.UUID(got.ID) == uuid.Nil)
	assert.Equal(t, audit.CategoryCompliance, got.Category)
	assert.Equal(t, now, got.Timestamp)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, "10.0.0.7", got.ClientIP)
	assert.Equal(t, "Firefox/Linux", got.UserAgent)
}

func TestPublisher_RequiresActorAndAction(t *testing.T) {
	pub := New(memory.NewInMemoryStore())

	err := pub.Emit(context.Background(), audit.Event{ActorID: id.UserID(uuid.New())})
	require.Error(t, err)

	err = pub.Emit(context.Background(), audit.Event{Action: audit.EventCaseCreated})
	require.Error(t, err)
}

func TestPublisher_FailClosed(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	pub := New(failingStore{}, WithMetrics(m))

	err := pub.Emit(context.Background(), audit.Event{
		Action:  audit.EventCaseDeleted,
		ActorID: id.UserID(uuid.New()),
	})

	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistFailures))
}
