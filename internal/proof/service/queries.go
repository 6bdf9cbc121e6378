package service

import (
	"context"
	"errors"

	"healthpass/internal/proof/models"
	"healthpass/pkg/domain"
	domainerrors "healthpass/pkg/domain-errors"
	"healthpass/pkg/platform/sentinel"
	"healthpass/pkg/requestcontext"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// GetProof returns the public read model for a proof. Expiry is derived at
// read time from the request clock.
func (s *Service) GetProof(ctx context.Context, proofHash domain.Hash) (*models.ProofDetails, error) {
	proof, err := s.store.Find(ctx, proofHash)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "proof not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "lookup proof")
	}

	details := proof.Details(requestcontext.Now(ctx))
	return &details, nil
}

// VerificationHistory returns a page of the verification log for a proof
// hash, oldest first. History exists even for hashes that were never
// registered.
func (s *Service) VerificationHistory(ctx context.Context, proofHash domain.Hash, offset, limit int) ([]models.VerificationEvent, error) {
	if offset < 0 {
		return nil, domainerrors.New(domainerrors.CodeValidation, "offset must not be negative")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.store.Verifications(ctx, proofHash, offset, limit)
}

// ListProofHashes returns every registered proof hash.
func (s *Service) ListProofHashes(ctx context.Context) ([]domain.Hash, error) {
	return s.store.ListHashes(ctx)
}

// Stats aggregates both registries.
func (s *Service) Stats(ctx context.Context) (models.SystemStats, error) {
	var stats models.SystemStats
	var err error

	if stats.TotalAuthorities, err = s.authorities.CountAuthorities(ctx); err != nil {
		return models.SystemStats{}, err
	}
	if stats.TotalProofs, err = s.store.Count(ctx); err != nil {
		return models.SystemStats{}, err
	}
	if stats.TotalVerifications, err = s.store.CountVerifications(ctx); err != nil {
		return models.SystemStats{}, err
	}
	return stats, nil
}
