package models

import (
	"time"

	"healthpass/pkg/domain"
)

// ZKProof is a registered zero-knowledge proof binding a health record hash
// to an issuing authority. The proof data itself is opaque; the registry
// stores and serves it without interpreting circuit semantics.
type ZKProof struct {
	ProofHash         domain.Hash
	HealthRecordHash  domain.Hash
	IssuingAuthority  domain.Identity
	ProofData         []byte
	GeneratedAt       time.Time
	ExpiresAt         time.Time // zero means no expiry
	Revoked           bool
	VerificationCount uint64
}

// Expired reports whether the proof has passed its expiry at the given
// instant. A proof is still usable at the exact expiry instant.
func (p *ZKProof) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}

// Clone returns a deep copy so store snapshots cannot alias caller state.
func (p *ZKProof) Clone() *ZKProof {
	cp := *p
	cp.ProofData = append([]byte(nil), p.ProofData...)
	return &cp
}

// VerificationEvent is one entry in a proof's verification log. Events are
// appended for every verification call, including calls against unknown
// proof hashes.
type VerificationEvent struct {
	Verifier  domain.Identity `json:"verifier"`
	Valid     bool            `json:"valid"`
	Timestamp time.Time       `json:"timestamp"`
	Context   string          `json:"context,omitempty"`
}

// Failure reasons reported by VerifyProof.
const (
	ReasonNotFound           = "not_found"
	ReasonRevoked            = "revoked"
	ReasonExpired            = "expired"
	ReasonAuthorityNotActive = "authority_not_active"
	ReasonRecordRevoked      = "record_revoked"
)

// VerificationResult is the outcome of a verification call. An invalid
// proof is a result, not an error.
type VerificationResult struct {
	ProofHash         domain.Hash `json:"proof_hash"`
	Valid             bool        `json:"valid"`
	Reason            string      `json:"reason,omitempty"`
	VerificationCount uint64      `json:"verification_count"`
	VerifiedAt        time.Time   `json:"verified_at"`
}

// ProofDetails is the public read model. The raw proof data is not exposed;
// only its length is reported.
type ProofDetails struct {
	ProofHash         domain.Hash     `json:"proof_hash"`
	HealthRecordHash  domain.Hash     `json:"health_record_hash"`
	IssuingAuthority  domain.Identity `json:"issuing_authority"`
	ProofDataLength   int             `json:"proof_data_length"`
	GeneratedAt       time.Time       `json:"generated_at"`
	ExpiresAt         time.Time       `json:"expires_at,omitzero"`
	Revoked           bool            `json:"revoked"`
	Expired           bool            `json:"expired"`
	VerificationCount uint64          `json:"verification_count"`
}

// Details projects the proof into its read model at the given instant.
func (p *ZKProof) Details(now time.Time) ProofDetails {
	return ProofDetails{
		ProofHash:         p.ProofHash,
		HealthRecordHash:  p.HealthRecordHash,
		IssuingAuthority:  p.IssuingAuthority,
		ProofDataLength:   len(p.ProofData),
		GeneratedAt:       p.GeneratedAt,
		ExpiresAt:         p.ExpiresAt,
		Revoked:           p.Revoked,
		Expired:           p.Expired(now),
		VerificationCount: p.VerificationCount,
	}
}

// SystemStats aggregates both registries for the public stats endpoint.
type SystemStats struct {
	TotalAuthorities   int    `json:"total_authorities"`
	TotalProofs        int    `json:"total_proofs"`
	TotalVerifications uint64 `json:"total_verifications"`
}
