//go:build integration

package store_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"

	"healthpass/internal/authority/models"
	"healthpass/internal/authority/store"
	"healthpass/pkg/domain"
	"healthpass/pkg/platform/sentinel"
	"healthpass/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"authority_applications", "authorities", "authority_revoked_records")
	s.Require().NoError(err)
}

func newTestAuthority(name string) *models.Authority {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Authority{
		Identity:     domain.Identity("did:health:" + uuid.NewString()),
		Name:         name,
		Type:         models.TypeHospital,
		Country:      "DE",
		PublicKey:    bytes.Repeat([]byte{0x02}, domain.PublicKeySize),
		Status:       models.StatusActive,
		RegisteredAt: now,
		LastUpdated:  now,
	}
}

func (s *PostgresStoreSuite) TestConcurrentUniqueNameViolation() {
	ctx := context.Background()
	name := "Concurrent Hospital " + uuid.NewString()
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := s.store.CreateAuthority(ctx, newTestAuthority(name))
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrAlreadyUsed) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one create should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load())

	found, err := s.store.FindByName(ctx, name)
	s.Require().NoError(err)
	s.Equal(name, found.Name)
}

func (s *PostgresStoreSuite) TestIdentityConflict() {
	ctx := context.Background()

	a := newTestAuthority("Identity Conflict " + uuid.NewString())
	s.Require().NoError(s.store.CreateAuthority(ctx, a))

	dup := newTestAuthority("Other Name " + uuid.NewString())
	dup.Identity = a.Identity
	s.ErrorIs(s.store.CreateAuthority(ctx, dup), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestExecuteSerializesCounterIncrements() {
	ctx := context.Background()

	a := newTestAuthority("Counter Test " + uuid.NewString())
	s.Require().NoError(s.store.CreateAuthority(ctx, a))

	const goroutines = 40
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.store.Execute(ctx, a.Identity,
				func(auth *models.Authority) error { return nil },
				func(auth *models.Authority) error {
					auth.TotalRecordsIssued++
					return nil
				})
		}()
	}
	wg.Wait()

	found, err := s.store.FindAuthority(ctx, a.Identity)
	s.Require().NoError(err)
	s.Equal(uint64(goroutines), found.TotalRecordsIssued, "row lock makes increments lossless")
}

func (s *PostgresStoreSuite) TestExecuteValidateFailureWritesNothing() {
	ctx := context.Background()

	a := newTestAuthority("Validate Test " + uuid.NewString())
	s.Require().NoError(s.store.CreateAuthority(ctx, a))

	boom := errors.New("validation failed")
	err := s.store.Execute(ctx, a.Identity,
		func(auth *models.Authority) error { return boom },
		func(auth *models.Authority) error {
			auth.Status = models.StatusRevoked
			return nil
		})
	s.ErrorIs(err, boom)

	found, err := s.store.FindAuthority(ctx, a.Identity)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, found.Status)
}

func (s *PostgresStoreSuite) TestApplicationLifecycle() {
	ctx := context.Background()

	app, err := models.NewApplication("did:health:applicant", "Lifecycle Hospital", models.TypeHospital,
		"DE", "", bytes.Repeat([]byte{0x02}, domain.PublicKeySize), "", "", []string{"ISO-15189"},
		time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateApplication(ctx, app))

	// Live duplicate is rejected.
	s.ErrorIs(s.store.CreateApplication(ctx, app), sentinel.ErrAlreadyUsed)

	taken, err := s.store.NameTaken(ctx, "lifecycle hospital")
	s.Require().NoError(err)
	s.True(taken)

	err = s.store.ExecuteApplication(ctx, app.Applicant,
		func(a *models.Application) error { return nil },
		func(a *models.Application) error { a.Processed = true; return nil })
	s.Require().NoError(err)

	pending, err := s.store.ListPendingApplications(ctx)
	s.Require().NoError(err)
	s.Empty(pending)

	// Re-application after processing succeeds.
	s.NoError(s.store.CreateApplication(ctx, app))
}

func (s *PostgresStoreSuite) TestRevokedRecordsScopedPerAuthority() {
	ctx := context.Background()
	hash := domain.Hash("0x1111111111111111111111111111111111111111111111111111111111111111")

	s.Require().NoError(s.store.FlagRecordRevoked(ctx, "did:health:a", hash))
	s.Require().NoError(s.store.FlagRecordRevoked(ctx, "did:health:a", hash))

	revoked, err := s.store.IsRecordRevoked(ctx, "did:health:a", hash)
	s.Require().NoError(err)
	s.True(revoked)

	revoked, err = s.store.IsRecordRevoked(ctx, "did:health:b", hash)
	s.Require().NoError(err)
	s.False(revoked)
}

func (s *PostgresStoreSuite) TestNotFound() {
	ctx := context.Background()

	_, err := s.store.FindAuthority(ctx, "did:health:nobody")
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindApplication(ctx, "did:health:nobody")
	s.ErrorIs(err, sentinel.ErrNotFound)

	err = s.store.Execute(ctx, "did:health:nobody",
		func(a *models.Authority) error { return nil },
		func(a *models.Authority) error { return nil })
	s.ErrorIs(err, sentinel.ErrNotFound)
}
