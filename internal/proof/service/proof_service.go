package service

import (
	"context"
	"errors"
	"time"

	"healthpass/internal/events"
	"healthpass/internal/proof/models"
	"healthpass/pkg/domain"
	domainerrors "healthpass/pkg/domain-errors"
	"healthpass/pkg/platform/sentinel"
	"healthpass/pkg/requestcontext"
)

// SubmitRequest carries the fields of a new proof submission.
type SubmitRequest struct {
	ProofHash        domain.Hash
	HealthRecordHash domain.Hash
	IssuingAuthority domain.Identity
	ProofData        []byte
	ExpiresAt        time.Time
}

// SubmitProof registers a proof under its hash. Any authenticated caller may
// submit; the binding to a registered, Active authority is what the registry
// enforces. The issuing authority's issuance counter moves in the same
// transaction.
func (s *Service) SubmitProof(ctx context.Context, caller domain.Identity, req SubmitRequest) (*models.ZKProof, error) {
	if err := s.ac.RequireUnpaused(); err != nil {
		return nil, err
	}
	if req.ProofHash.IsZero() {
		return nil, domainerrors.New(domainerrors.CodeValidation, "proof hash is required and must be non-zero")
	}
	if req.HealthRecordHash.IsZero() {
		return nil, domainerrors.New(domainerrors.CodeValidation, "health record hash is required and must be non-zero")
	}
	if req.IssuingAuthority.IsZero() {
		return nil, domainerrors.New(domainerrors.CodeValidation, "issuing authority is required")
	}
	if len(req.ProofData) == 0 {
		return nil, domainerrors.New(domainerrors.CodeValidation, "proof data is required")
	}

	now := requestcontext.Now(ctx)
	if !req.ExpiresAt.IsZero() && req.ExpiresAt.Before(now) {
		return nil, domainerrors.New(domainerrors.CodeValidation, "expiry must not be in the past")
	}

	proof := &models.ZKProof{
		ProofHash:        req.ProofHash,
		HealthRecordHash: req.HealthRecordHash,
		IssuingAuthority: req.IssuingAuthority,
		ProofData:        append([]byte(nil), req.ProofData...),
		GeneratedAt:      now,
		ExpiresAt:        req.ExpiresAt,
	}

	err := s.serializer.RunInTx(ctx, func(ctx context.Context) error {
		active, err := s.authorities.IsActiveInTx(ctx, req.IssuingAuthority)
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "lookup issuing authority")
		}
		if !active {
			// Unregistered and non-Active authorities are reported the
			// same way; the registry does not leak which it is.
			return domainerrors.New(domainerrors.CodeNotFound, "invalid authority")
		}

		if err := s.store.Create(ctx, proof); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return domainerrors.New(domainerrors.CodeConflict, "proof hash already registered")
			}
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "store proof")
		}

		return s.authorities.RecordIssuanceInTx(ctx, req.IssuingAuthority)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ProofsSubmitted.Inc()
	}
	s.log.InfoContext(ctx, "proof submitted",
		"proof_hash", req.ProofHash, "authority", req.IssuingAuthority, "submitter", caller)
	s.emit(ctx, events.ZKProofSubmitted{
		ProofHash:        req.ProofHash,
		HealthRecordHash: req.HealthRecordHash,
		Authority:        req.IssuingAuthority,
		Submitter:        caller,
		ExpiresAt:        req.ExpiresAt,
		SubmittedAt:      now,
	})
	return proof, nil
}

// VerifyProof checks a proof and appends to its verification log. An invalid
// proof is a normal result, not an error. The verification counter moves only
// on a valid outcome, so VerifyProof is a mutation and is blocked while the
// system is paused.
func (s *Service) VerifyProof(ctx context.Context, verifier domain.Identity, proofHash domain.Hash, verificationContext string) (*models.VerificationResult, error) {
	if err := s.ac.RequireUnpaused(); err != nil {
		return nil, err
	}
	if proofHash.IsZero() {
		return nil, domainerrors.New(domainerrors.CodeValidation, "proof hash is required and must be non-zero")
	}

	now := requestcontext.Now(ctx)
	result := &models.VerificationResult{
		ProofHash:  proofHash,
		VerifiedAt: now,
	}

	err := s.serializer.RunInTx(ctx, func(ctx context.Context) error {
		reason, count, err := s.check(ctx, proofHash, now)
		if err != nil {
			return err
		}

		if reason == "" {
			// Counter moves only on a valid outcome.
			err = s.store.Execute(ctx, proofHash,
				func(p *models.ZKProof) error { return nil },
				func(p *models.ZKProof) error {
					p.VerificationCount++
					count = p.VerificationCount
					return nil
				})
			if err != nil {
				return domainerrors.Wrap(err, domainerrors.CodeInternal, "increment verification count")
			}
			result.Valid = true
		}
		result.Reason = reason
		result.VerificationCount = count

		// Every call is logged, valid or not, known hash or not.
		return s.store.AppendVerification(ctx, proofHash, models.VerificationEvent{
			Verifier:  verifier,
			Valid:     result.Valid,
			Timestamp: now,
			Context:   verificationContext,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveVerification(result.Valid)
	s.emit(ctx, events.ZKProofVerified{
		ProofHash:  proofHash,
		Verifier:   verifier,
		Valid:      result.Valid,
		Reason:     result.Reason,
		VerifiedAt: now,
	})
	return result, nil
}

// check runs the ordered validity chain and returns the failure reason, or
// "" when the proof is valid. Must run inside the transaction.
func (s *Service) check(ctx context.Context, proofHash domain.Hash, now time.Time) (string, uint64, error) {
	proof, err := s.store.Find(ctx, proofHash)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.ReasonNotFound, 0, nil
		}
		return "", 0, domainerrors.Wrap(err, domainerrors.CodeInternal, "lookup proof")
	}

	if proof.Revoked {
		return models.ReasonRevoked, proof.VerificationCount, nil
	}
	if proof.Expired(now) {
		return models.ReasonExpired, proof.VerificationCount, nil
	}

	active, err := s.authorities.IsActiveInTx(ctx, proof.IssuingAuthority)
	if err != nil {
		return "", 0, domainerrors.Wrap(err, domainerrors.CodeInternal, "lookup issuing authority")
	}
	if !active {
		return models.ReasonAuthorityNotActive, proof.VerificationCount, nil
	}

	recordRevoked, err := s.authorities.IsRecordRevokedInTx(ctx, proof.IssuingAuthority, proof.HealthRecordHash)
	if err != nil {
		return "", 0, domainerrors.Wrap(err, domainerrors.CodeInternal, "lookup record revocation")
	}
	if recordRevoked {
		return models.ReasonRecordRevoked, proof.VerificationCount, nil
	}

	return "", proof.VerificationCount, nil
}

// RevokeProof marks the proof revoked. Only the issuing authority or an
// admin may revoke; revoking an already revoked proof is a no-op. The
// issuing authority's revocation counter moves in the same transaction.
func (s *Service) RevokeProof(ctx context.Context, caller domain.Identity, proofHash domain.Hash) error {
	if err := s.ac.RequireUnpaused(); err != nil {
		return err
	}

	var alreadyRevoked bool
	var issuer domain.Identity

	err := s.serializer.RunInTx(ctx, func(ctx context.Context) error {
		err := s.store.Execute(ctx, proofHash,
			func(p *models.ZKProof) error {
				issuer = p.IssuingAuthority
				if caller != p.IssuingAuthority && !s.ac.IsAdmin(caller) {
					return domainerrors.New(domainerrors.CodeForbidden, "only the issuing authority or an admin may revoke")
				}
				alreadyRevoked = p.Revoked
				return nil
			},
			func(p *models.ZKProof) error {
				p.Revoked = true
				return nil
			})
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "proof not found")
		}
		if err != nil || alreadyRevoked {
			return err
		}
		return s.authorities.RecordRevocationInTx(ctx, issuer)
	})
	if err != nil {
		return err
	}
	if alreadyRevoked {
		return nil
	}

	if s.metrics != nil {
		s.metrics.ProofsRevoked.Inc()
	}
	s.log.InfoContext(ctx, "proof revoked", "proof_hash", proofHash, "revoked_by", caller)
	s.emit(ctx, events.ZKProofRevoked{
		ProofHash: proofHash,
		RevokedBy: caller,
		RevokedAt: requestcontext.Now(ctx),
	})
	return nil
}

// RevokeHealthRecord flags a record hash revoked under the given authority.
// The caller must be that authority while it is Active, or an admin, who may
// target any authority's namespace.
func (s *Service) RevokeHealthRecord(ctx context.Context, caller, authority domain.Identity, recordHash domain.Hash) error {
	if err := s.ac.RequireUnpaused(); err != nil {
		return err
	}
	if recordHash.IsZero() {
		return domainerrors.New(domainerrors.CodeValidation, "record hash is required and must be non-zero")
	}
	if authority.IsZero() {
		return domainerrors.New(domainerrors.CodeValidation, "authority is required")
	}

	err := s.serializer.RunInTx(ctx, func(ctx context.Context) error {
		if !s.ac.IsAdmin(caller) {
			if caller != authority {
				return domainerrors.New(domainerrors.CodeForbidden, "only the authority itself or an admin may revoke records")
			}
			active, err := s.authorities.IsActiveInTx(ctx, authority)
			if err != nil {
				return domainerrors.Wrap(err, domainerrors.CodeInternal, "lookup authority")
			}
			if !active {
				return domainerrors.New(domainerrors.CodeForbidden, "authority is not active")
			}
		}
		return s.authorities.FlagRecordRevokedInTx(ctx, authority, recordHash)
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordsRevoked.Inc()
	}
	s.log.InfoContext(ctx, "health record revoked",
		"record_hash", recordHash, "authority", authority, "revoked_by", caller)
	s.emit(ctx, events.HealthRecordRevoked{
		RecordHash: recordHash,
		Authority:  authority,
		RevokedBy:  caller,
		RevokedAt:  requestcontext.Now(ctx),
	})
	return nil
}
