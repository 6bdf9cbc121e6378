// Package store persists ZK proofs and their verification logs.
package store

import (
	"context"

	"healthpass/internal/proof/models"
	"healthpass/pkg/domain"
)

// Store is the persistence contract for the proof registry.
type Store interface {
	// Create stores a new proof. Returns sentinel.ErrAlreadyUsed when the
	// proof hash is taken.
	Create(ctx context.Context, proof *models.ZKProof) error

	Find(ctx context.Context, proofHash domain.Hash) (*models.ZKProof, error)

	// Execute loads the proof, runs validate on a snapshot, and persists
	// the result of mutate. Nothing is written when validate fails.
	Execute(ctx context.Context, proofHash domain.Hash,
		validate func(*models.ZKProof) error,
		mutate func(*models.ZKProof) error) error

	ListHashes(ctx context.Context) ([]domain.Hash, error)
	Count(ctx context.Context) (int, error)

	// AppendVerification logs a verification call. The proof hash need not
	// exist; failed lookups are logged too.
	AppendVerification(ctx context.Context, proofHash domain.Hash, event models.VerificationEvent) error

	// Verifications returns the log for a proof hash in append order.
	Verifications(ctx context.Context, proofHash domain.Hash, offset, limit int) ([]models.VerificationEvent, error)

	// CountVerifications returns the total number of logged verification
	// calls across all proof hashes.
	CountVerifications(ctx context.Context) (uint64, error)
}
