//go:build integration

package bucket

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"juntas/pkg/testutil/containers"
)

type RedisBucketStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisBucketStore
}

func TestRedisBucketStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisBucketStoreSuite))
}

func (s *RedisBucketStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = NewRedisBucketStore(s.redis.Client)
}

func (s *RedisBucketStoreSuite) TestRejectedRequestsDoNotConsumeBudget() {
	ctx := context.Background()
	key := "user:" + uuid.NewString() + ":write"

	for i := range 3 {
		res, err := s.store.Allow(ctx, key, 3, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(2-i, res.Remaining)
	}
	for range 2 {
		res, err := s.store.Allow(ctx, key, 3, time.Minute)
		s.Require().NoError(err)
		s.False(res.Allowed)
		s.Positive(res.RetryAfter)
	}

	card, err := s.redis.Client.ZCard(ctx, redisKeyPrefix+key).Result()
	s.Require().NoError(err)
	s.Equal(int64(3), card)

	ttl, err := s.redis.Client.PTTL(ctx, redisKeyPrefix+key).Result()
	s.Require().NoError(err)
	s.Positive(ttl)
}

func (s *RedisBucketStoreSuite) TestReset() {
	ctx := context.Background()
	key := "user:" + uuid.NewString() + ":read"
	_, err := s.store.Allow(ctx, key, 1, time.Minute)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Reset(ctx, key))
	res, err := s.store.Allow(ctx, key, 1, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)
}
