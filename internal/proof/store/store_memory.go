package store

import (
	"context"
	"sync"

	"healthpass/internal/proof/models"
	"healthpass/pkg/domain"
	"healthpass/pkg/platform/sentinel"
)

// Memory is an in-memory Store used in tests and single-node deployments.
type Memory struct {
	mu            sync.RWMutex
	proofs        map[domain.Hash]*models.ZKProof
	verifications map[domain.Hash][]models.VerificationEvent
	totalVerified uint64
}

func NewMemory() *Memory {
	return &Memory{
		proofs:        make(map[domain.Hash]*models.ZKProof),
		verifications: make(map[domain.Hash][]models.VerificationEvent),
	}
}

func (m *Memory) Create(_ context.Context, proof *models.ZKProof) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.proofs[proof.ProofHash]; ok {
		return sentinel.ErrAlreadyUsed
	}
	m.proofs[proof.ProofHash] = proof.Clone()
	return nil
}

func (m *Memory) Find(_ context.Context, proofHash domain.Hash) (*models.ZKProof, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	proof, ok := m.proofs[proofHash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return proof.Clone(), nil
}

func (m *Memory) Execute(_ context.Context, proofHash domain.Hash,
	validate func(*models.ZKProof) error,
	mutate func(*models.ZKProof) error,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	proof, ok := m.proofs[proofHash]
	if !ok {
		return sentinel.ErrNotFound
	}

	snapshot := proof.Clone()
	if err := validate(snapshot); err != nil {
		return err
	}
	if err := mutate(snapshot); err != nil {
		return err
	}
	m.proofs[proofHash] = snapshot
	return nil
}

func (m *Memory) ListHashes(_ context.Context) ([]domain.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hashes := make([]domain.Hash, 0, len(m.proofs))
	for hash := range m.proofs {
		hashes = append(hashes, hash)
	}
	return hashes, nil
}

func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.proofs), nil
}

func (m *Memory) AppendVerification(_ context.Context, proofHash domain.Hash, event models.VerificationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.verifications[proofHash] = append(m.verifications[proofHash], event)
	m.totalVerified++
	return nil
}

func (m *Memory) Verifications(_ context.Context, proofHash domain.Hash, offset, limit int) ([]models.VerificationEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	log := m.verifications[proofHash]
	if offset >= len(log) {
		return nil, nil
	}
	end := offset + limit
	if end > len(log) {
		end = len(log)
	}
	return append([]models.VerificationEvent(nil), log[offset:end]...), nil
}

func (m *Memory) CountVerifications(_ context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalVerified, nil
}

var _ Store = (*Memory)(nil)
