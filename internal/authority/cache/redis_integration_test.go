//go:build integration

package cache_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"healthpass/internal/authority/cache"
	"healthpass/internal/authority/models"
	"healthpass/pkg/testutil/containers"
)

const hospitalID = "did:health:hospital"

type CacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.Cache
}

func TestCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = cache.New(s.redis.Client, time.Minute, slog.New(slog.DiscardHandler))
}

func (s *CacheSuite) SetupTest() {
	err := s.redis.FlushAll(context.Background())
	s.Require().NoError(err)
}

func makeAuthority() *models.Authority {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.Authority{
		Identity:     hospitalID,
		Name:         "City Hospital",
		Type:         models.TypeHospital,
		Country:      "DE",
		PublicKey:    make([]byte, 33),
		Status:       models.StatusActive,
		RegisteredAt: now,
		LastUpdated:  now,
	}
}

func (s *CacheSuite) TestSetThenGet() {
	ctx := context.Background()

	s.cache.Set(ctx, makeAuthority())

	cached := s.cache.Get(ctx, hospitalID)
	s.Require().NotNil(cached)
	s.Equal("City Hospital", cached.Name)
	s.Equal(models.StatusActive, cached.Status)
	s.True(makeAuthority().RegisteredAt.Equal(cached.RegisteredAt))
}

func (s *CacheSuite) TestMissReturnsNil() {
	s.Nil(s.cache.Get(context.Background(), "did:health:unknown"))
}

func (s *CacheSuite) TestInvalidateDropsEntry() {
	ctx := context.Background()

	s.cache.Set(ctx, makeAuthority())
	s.Require().NotNil(s.cache.Get(ctx, hospitalID))

	s.cache.Invalidate(ctx, hospitalID)
	s.Nil(s.cache.Get(ctx, hospitalID))
}

func (s *CacheSuite) TestCorruptEntryDegradesToMiss() {
	ctx := context.Background()

	err := s.redis.Client.Set(ctx, "authority:"+hospitalID, "not-json{", time.Minute).Err()
	s.Require().NoError(err)

	s.Nil(s.cache.Get(ctx, hospitalID))
}

func (s *CacheSuite) TestEntryExpiresWithTTL() {
	ctx := context.Background()
	short := cache.New(s.redis.Client, 50*time.Millisecond, slog.New(slog.DiscardHandler))

	short.Set(ctx, makeAuthority())
	s.Require().NotNil(short.Get(ctx, hospitalID))

	time.Sleep(100 * time.Millisecond)
	s.Nil(short.Get(ctx, hospitalID))
}

func (s *CacheSuite) TestNilCacheIsInert() {
	ctx := context.Background()
	var nilCache *cache.Cache

	s.Nil(nilCache.Get(ctx, hospitalID))
	nilCache.Set(ctx, makeAuthority())
	nilCache.Invalidate(ctx, hospitalID)
}
