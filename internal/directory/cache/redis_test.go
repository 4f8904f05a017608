package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juntas/internal/directory/models"
	"juntas/internal/directory/store"
	id "juntas/pkg/domain"
	"juntas/pkg/platform/sentinel"
)

// unreachableClient points at a closed port so every command fails fast.
func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLookup_FallsThroughWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	backing := store.NewInMemory()
	patient := &models.Patient{ID: id.PatientID(uuid.New()), FullName: "Ana Ruiz", DocumentNumber: "30111222", CreatedAt: time.Now()}
	require.NoError(t, backing.CreatePatient(ctx, patient))
	user := &models.User{ID: id.UserID(uuid.New()), Email: "dr@x.org", Role: id.RoleEvaluatingPhysician, Active: true}
	require.NoError(t, backing.CreateUser(ctx, user))

	lookup := NewRedisLookup(backing, unreachableClient(t), time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	gotPatient, err := lookup.FindPatient(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Ruiz", gotPatient.FullName)

	gotUser, err := lookup.FindUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, id.RoleEvaluatingPhysician, gotUser.Role)
}

func TestRedisLookup_PropagatesNotFound(t *testing.T) {
	lookup := NewRedisLookup(store.NewInMemory(), unreachableClient(t), time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := lookup.FindPatient(context.Background(), id.PatientID(uuid.New()))
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}
