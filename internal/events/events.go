// Package events defines the registry signals emitted after committed state
// changes. Emission is best effort; a failed emit never rolls back the
// mutation that produced it.
package events

import (
	"time"

	"healthpass/internal/authority/models"
	"healthpass/pkg/domain"
)

type Kind string

const (
	KindApplicationSubmitted   Kind = "application_submitted"
	KindAuthorityRegistered    Kind = "authority_registered"
	KindAuthorityStatusChanged Kind = "authority_status_changed"
	KindApplicationRejected    Kind = "application_rejected"
	KindZKProofSubmitted       Kind = "zk_proof_submitted"
	KindZKProofVerified        Kind = "zk_proof_verified"
	KindZKProofRevoked         Kind = "zk_proof_revoked"
	KindHealthRecordRevoked    Kind = "health_record_revoked"
)

// Signal is a registry event payload.
type Signal interface {
	Kind() Kind
}

type ApplicationSubmitted struct {
	Applicant domain.Identity      `json:"applicant"`
	Name      string               `json:"name"`
	Type      models.AuthorityType `json:"type"`
	AppliedAt time.Time            `json:"applied_at"`
}

func (ApplicationSubmitted) Kind() Kind { return KindApplicationSubmitted }

type AuthorityRegistered struct {
	Identity     domain.Identity      `json:"identity"`
	Name         string               `json:"name"`
	Type         models.AuthorityType `json:"type"`
	ApprovedBy   domain.Identity      `json:"approved_by"`
	RegisteredAt time.Time            `json:"registered_at"`
}

func (AuthorityRegistered) Kind() Kind { return KindAuthorityRegistered }

type AuthorityStatusChanged struct {
	Identity  domain.Identity `json:"identity"`
	From      models.Status   `json:"from"`
	To        models.Status   `json:"to"`
	ChangedBy domain.Identity `json:"changed_by"`
	ChangedAt time.Time       `json:"changed_at"`
}

func (AuthorityStatusChanged) Kind() Kind { return KindAuthorityStatusChanged }

type ApplicationRejected struct {
	Applicant  domain.Identity `json:"applicant"`
	Reason     string          `json:"reason"`
	RejectedBy domain.Identity `json:"rejected_by"`
	RejectedAt time.Time       `json:"rejected_at"`
}

func (ApplicationRejected) Kind() Kind { return KindApplicationRejected }

type ZKProofSubmitted struct {
	ProofHash        domain.Hash     `json:"proof_hash"`
	HealthRecordHash domain.Hash     `json:"health_record_hash"`
	Authority        domain.Identity `json:"authority"`
	Submitter        domain.Identity `json:"submitter"`
	ExpiresAt        time.Time       `json:"expires_at,omitzero"`
	SubmittedAt      time.Time       `json:"submitted_at"`
}

func (ZKProofSubmitted) Kind() Kind { return KindZKProofSubmitted }

type ZKProofVerified struct {
	ProofHash  domain.Hash     `json:"proof_hash"`
	Verifier   domain.Identity `json:"verifier"`
	Valid      bool            `json:"valid"`
	Reason     string          `json:"reason,omitempty"`
	VerifiedAt time.Time       `json:"verified_at"`
}

func (ZKProofVerified) Kind() Kind { return KindZKProofVerified }

type ZKProofRevoked struct {
	ProofHash domain.Hash     `json:"proof_hash"`
	RevokedBy domain.Identity `json:"revoked_by"`
	RevokedAt time.Time       `json:"revoked_at"`
}

func (ZKProofRevoked) Kind() Kind { return KindZKProofRevoked }

type HealthRecordRevoked struct {
	RecordHash domain.Hash     `json:"record_hash"`
	Authority  domain.Identity `json:"authority"`
	RevokedBy  domain.Identity `json:"revoked_by"`
	RevokedAt  time.Time       `json:"revoked_at"`
}

func (HealthRecordRevoked) Kind() Kind { return KindHealthRecordRevoked }
