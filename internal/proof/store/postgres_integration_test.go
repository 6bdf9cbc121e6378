//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"

	authoritymodels "healthpass/internal/authority/models"
	authoritystore "healthpass/internal/authority/store"
	"healthpass/internal/proof/models"
	"healthpass/internal/proof/store"
	"healthpass/pkg/domain"
	"healthpass/pkg/platform/sentinel"
	"healthpass/pkg/platform/tx"
	"healthpass/pkg/testutil/containers"
)

const (
	proofHashA = domain.Hash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	recordHash = domain.Hash("0xcccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc")
)

type ProofPostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestProofPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProofPostgresStoreSuite))
}

func (s *ProofPostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *ProofPostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "proofs", "verifications")
	s.Require().NoError(err)
}

func newTestProof() *models.ZKProof {
	return &models.ZKProof{
		ProofHash:        proofHashA,
		HealthRecordHash: recordHash,
		IssuingAuthority: "did:health:hospital",
		ProofData:        []byte{0xde, 0xad},
		GeneratedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *ProofPostgresStoreSuite) TestConcurrentDuplicateSubmission() {
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := s.store.Create(ctx, newTestProof())
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrAlreadyUsed) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one submission should win")
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

func (s *ProofPostgresStoreSuite) TestNullExpiryRoundTrip() {
	ctx := context.Background()

	s.Require().NoError(s.store.Create(ctx, newTestProof()))

	found, err := s.store.Find(ctx, proofHashA)
	s.Require().NoError(err)
	s.True(found.ExpiresAt.IsZero(), "missing expiry loads as the zero time")
}

func (s *ProofPostgresStoreSuite) TestExecuteSerializesCounterIncrements() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, newTestProof()))

	const goroutines = 40
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.store.Execute(ctx, proofHashA,
				func(p *models.ZKProof) error { return nil },
				func(p *models.ZKProof) error {
					p.VerificationCount++
					return nil
				})
		}()
	}
	wg.Wait()

	found, err := s.store.Find(ctx, proofHashA)
	s.Require().NoError(err)
	s.Equal(uint64(goroutines), found.VerificationCount)
}

func (s *ProofPostgresStoreSuite) TestVerificationLogOrderAndPagination() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 5; i++ {
		err := s.store.AppendVerification(ctx, proofHashA, models.VerificationEvent{
			Verifier:  "did:health:verifier",
			Valid:     i%2 == 0,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
		s.Require().NoError(err)
	}

	page, err := s.store.Verifications(ctx, proofHashA, 1, 2)
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(base.Add(time.Second), page[0].Timestamp)
	s.Equal(base.Add(2*time.Second), page[1].Timestamp)

	total, err := s.store.CountVerifications(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(5), total)
}

func (s *ProofPostgresStoreSuite) TestSerializedMutationSpansBothRegistries() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "authorities"))

	authorities := authoritystore.NewPostgres(s.postgres.DB)
	now := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(authorities.CreateAuthority(ctx, &authoritymodels.Authority{
		Identity:     "did:health:hospital",
		Name:         "City Hospital",
		Type:         authoritymodels.TypeHospital,
		Country:      "DE",
		PublicKey:    make([]byte, 33),
		Status:       authoritymodels.StatusActive,
		RegisteredAt: now,
		LastUpdated:  now,
	}))

	serializer := tx.NewSQLSerializer(s.postgres.DB)
	incrementIssued := func(ctx context.Context) error {
		if err := s.store.Create(ctx, newTestProof()); err != nil {
			return err
		}
		return authorities.Execute(ctx, "did:health:hospital",
			func(a *authoritymodels.Authority) error { return nil },
			func(a *authoritymodels.Authority) error {
				a.TotalRecordsIssued++
				return nil
			})
	}

	// A failure after both writes rolls back the proof and the counter.
	failure := errors.New("post-write failure")
	err := serializer.RunInTx(ctx, func(ctx context.Context) error {
		if err := incrementIssued(ctx); err != nil {
			return err
		}
		return failure
	})
	s.Require().ErrorIs(err, failure)

	_, err = s.store.Find(ctx, proofHashA)
	s.ErrorIs(err, sentinel.ErrNotFound)
	authority, err := authorities.FindAuthority(ctx, "did:health:hospital")
	s.Require().NoError(err)
	s.Equal(uint64(0), authority.TotalRecordsIssued)

	// The same unit commits both writes on success.
	s.Require().NoError(serializer.RunInTx(ctx, incrementIssued))

	_, err = s.store.Find(ctx, proofHashA)
	s.NoError(err)
	authority, err = authorities.FindAuthority(ctx, "did:health:hospital")
	s.Require().NoError(err)
	s.Equal(uint64(1), authority.TotalRecordsIssued)
}

func (s *ProofPostgresStoreSuite) TestNotFound() {
	ctx := context.Background()

	_, err := s.store.Find(ctx, proofHashA)
	s.ErrorIs(err, sentinel.ErrNotFound)

	err = s.store.Execute(ctx, proofHashA,
		func(p *models.ZKProof) error { return nil },
		func(p *models.ZKProof) error { return nil })
	s.ErrorIs(err, sentinel.ErrNotFound)
}
