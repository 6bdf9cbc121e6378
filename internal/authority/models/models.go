package models

import (
	"time"

	"healthpass/pkg/domain"
	domainerrors "healthpass/pkg/domain-errors"
)

// Status is the lifecycle state of a registered authority.
//
// Transitions form a strict graph in CanTransitionTo. The registry's
// UpdateStatus deliberately accepts any transition so an admin can repair a
// mistaken revocation; callers that want the strict graph check first.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusRevoked   Status = "REVOKED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusSuspended, StatusRevoked:
		return true
	}
	return false
}

// CanTransitionTo reports whether the transition follows the strict
// lifecycle graph: Pending -> Active, Active <-> Suspended, and either of
// those to Revoked. Revoked is terminal here.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusActive || next == StatusRevoked
	case StatusActive:
		return next == StatusSuspended || next == StatusRevoked
	case StatusSuspended:
		return next == StatusActive || next == StatusRevoked
	default:
		return false
	}
}

// AuthorityType categorizes the institution behind an authority.
type AuthorityType string

const (
	TypeHospital   AuthorityType = "HOSPITAL"
	TypeClinic     AuthorityType = "CLINIC"
	TypeLaboratory AuthorityType = "LABORATORY"
	TypeGovernment AuthorityType = "GOVERNMENT"
	TypePharmacy   AuthorityType = "PHARMACY"
	TypeUniversity AuthorityType = "UNIVERSITY"
	TypeOther      AuthorityType = "OTHER"
)

func (t AuthorityType) Valid() bool {
	switch t {
	case TypeHospital, TypeClinic, TypeLaboratory, TypeGovernment,
		TypePharmacy, TypeUniversity, TypeOther:
		return true
	}
	return false
}

// Authority is a registered credential issuer.
type Authority struct {
	Identity             domain.Identity
	Name                 string
	Type                 AuthorityType
	Country              string
	Region               string
	PublicKey            []byte
	CertificateReference string
	ContactInfo          string
	Status               Status
	RegisteredAt         time.Time
	LastUpdated          time.Time
	Accreditations       []string
	TotalRecordsIssued   uint64
	TotalRecordsRevoked  uint64
}

// IsActive reports whether the authority may issue and revoke records.
func (a *Authority) IsActive() bool {
	return a.Status == StatusActive
}

// Clone returns a deep copy so store snapshots cannot alias caller state.
func (a *Authority) Clone() *Authority {
	cp := *a
	cp.PublicKey = append([]byte(nil), a.PublicKey...)
	cp.Accreditations = append([]string(nil), a.Accreditations...)
	return &cp
}

// Application is a pending request to become an authority. A processed
// application stays on record with its outcome; the same identity may apply
// again afterwards.
type Application struct {
	Applicant            domain.Identity
	Name                 string
	Type                 AuthorityType
	Country              string
	Region               string
	PublicKey            []byte
	CertificateReference string
	ContactInfo          string
	Accreditations       []string
	AppliedAt            time.Time
	Processed            bool
	RejectionReason      string
}

// NewApplication validates and builds a pending application.
func NewApplication(applicant domain.Identity, name string, typ AuthorityType, country, region string, publicKey []byte, certRef, contactInfo string, accreditations []string, now time.Time) (*Application, error) {
	if applicant.IsZero() {
		return nil, domainerrors.New(domainerrors.CodeValidation, "applicant identity is required")
	}
	if name == "" {
		return nil, domainerrors.New(domainerrors.CodeValidation, "authority name is required")
	}
	if !typ.Valid() {
		return nil, domainerrors.Newf(domainerrors.CodeValidation, "unknown authority type %q", typ)
	}
	if !domain.ValidPublicKey(publicKey) {
		return nil, domainerrors.Newf(domainerrors.CodeValidation, "public key must be %d bytes", domain.PublicKeySize)
	}

	return &Application{
		Applicant:            applicant,
		Name:                 name,
		Type:                 typ,
		Country:              country,
		Region:               region,
		PublicKey:            append([]byte(nil), publicKey...),
		CertificateReference: certRef,
		ContactInfo:          contactInfo,
		Accreditations:       append([]string(nil), accreditations...),
		AppliedAt:            now,
	}, nil
}

// Approve materializes the application into an Active authority. Issuance
// and revocation counters start at zero.
func (app *Application) Approve(now time.Time) *Authority {
	return &Authority{
		Identity:             app.Applicant,
		Name:                 app.Name,
		Type:                 app.Type,
		Country:              app.Country,
		Region:               app.Region,
		PublicKey:            append([]byte(nil), app.PublicKey...),
		CertificateReference: app.CertificateReference,
		ContactInfo:          app.ContactInfo,
		Status:               StatusActive,
		RegisteredAt:         now,
		LastUpdated:          now,
		Accreditations:       append([]string(nil), app.Accreditations...),
	}
}

// Clone returns a deep copy of the application.
func (app *Application) Clone() *Application {
	cp := *app
	cp.PublicKey = append([]byte(nil), app.PublicKey...)
	cp.Accreditations = append([]string(nil), app.Accreditations...)
	return &cp
}
