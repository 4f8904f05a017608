// Package cache fronts directory lookups with a Redis read-through cache.
// Cache faults are logged and fall through to the backing store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"juntas/internal/directory/models"
	id "juntas/pkg/domain"
)

const (
	patientKeyPrefix = "directory:patient:"
	userKeyPrefix    = "directory:user:"
)

// Lookup is the read side of the directory.
type Lookup interface {
	FindPatient(ctx context.Context, patientID id.PatientID) (*models.Patient, error)
	FindUser(ctx context.Context, userID id.UserID) (*models.User, error)
}

// cachedUser omits the password hash.
type cachedUser struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

type cachedPatient struct {
	ID             uuid.UUID `json:"id"`
	FullName       string    `json:"fullName"`
	DocumentNumber string    `json:"documentNumber"`
	Email          *string   `json:"email,omitempty"`
	Phone          *string   `json:"phone,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type RedisLookup struct {
	next   Lookup
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisLookup(next Lookup, client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisLookup {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLookup{next: next, client: client, ttl: ttl, logger: logger}
}

func (c *RedisLookup) FindPatient(ctx context.Context, patientID id.PatientID) (*models.Patient, error) {
	key := patientKeyPrefix + patientID.String()
	var hit cachedPatient
	if c.get(ctx, key, &hit) {
		return &models.Patient{
			ID:             id.PatientID(hit.ID),
			FullName:       hit.FullName,
			DocumentNumber: hit.DocumentNumber,
			Email:          hit.Email,
			Phone:          hit.Phone,
			CreatedAt:      hit.CreatedAt,
		}, nil
	}

	p, err := c.next.FindPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, cachedPatient{
		ID:             uuid.UUID(p.ID),
		FullName:       p.FullName,
		DocumentNumber: p.DocumentNumber,
		Email:          p.Email,
		Phone:          p.Phone,
		CreatedAt:      p.CreatedAt,
	})
	return p, nil
}

func (c *RedisLookup) FindUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	key := userKeyPrefix + userID.String()
	var hit cachedUser
	if c.get(ctx, key, &hit) {
		return &models.User{
			ID:        id.UserID(hit.ID),
			Email:     hit.Email,
			FullName:  hit.FullName,
			Role:      id.Role(hit.Role),
			Active:    hit.Active,
			CreatedAt: hit.CreatedAt,
		}, nil
	}

	u, err := c.next.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, cachedUser{
		ID:        uuid.UUID(u.ID),
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      string(u.Role),
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	})
	return u, nil
}

func (c *RedisLookup) get(ctx context.Context, key string, dst any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.logger.WarnContext(ctx, "directory cache read failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.WarnContext(ctx, "directory cache entry corrupt", "key", key, "error", err)
		return false
	}
	return true
}

func (c *RedisLookup) set(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "directory cache write failed", "key", key, "error", err)
	}
}
