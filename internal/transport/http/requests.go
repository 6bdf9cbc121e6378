package http

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	authoritymodels "healthpass/internal/authority/models"
	domainerrors "healthpass/pkg/domain-errors"
)

type applicationRequest struct {
	Name                 string   `json:"name"`
	Type                 string   `json:"type"`
	Country              string   `json:"country"`
	Region               string   `json:"region"`
	PublicKey            string   `json:"public_key"` // base64
	CertificateReference string   `json:"certificate_reference"`
	ContactInfo          string   `json:"contact_info"`
	Accreditations       []string `json:"accreditations"`
}

func (r applicationRequest) publicKeyBytes() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(r.PublicKey)
	if err != nil {
		return nil, domainerrors.New(domainerrors.CodeBadRequest, "public_key must be base64")
	}
	return key, nil
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type statusUpdateRequest struct {
	Status authoritymodels.Status `json:"status"`
}

type contactUpdateRequest struct {
	ContactInfo string `json:"contact_info"`
}

type certificateUpdateRequest struct {
	CertificateReference string `json:"certificate_reference"`
}

type submitProofRequest struct {
	ProofHash        string    `json:"proof_hash"`
	HealthRecordHash string    `json:"health_record_hash"`
	IssuingAuthority string    `json:"issuing_authority"`
	ProofData        string    `json:"proof_data"` // base64
	ExpiresAt        time.Time `json:"expires_at,omitzero"`
}

type verifyProofRequest struct {
	Context string `json:"context"`
}

type revokeRecordRequest struct {
	Authority string `json:"authority"`
}

type roleRequest struct {
	Identity string `json:"identity"`
	Role     string `json:"role"`
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeBadRequest, "malformed request body")
	}
	return nil
}
