package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	authoritymodels "healthpass/internal/authority/models"
	"healthpass/pkg/domain"
	domainerrors "healthpass/pkg/domain-errors"
)

type authorityResponse struct {
	Identity             domain.Identity               `json:"identity"`
	Name                 string                        `json:"name"`
	Type                 authoritymodels.AuthorityType `json:"type"`
	Country              string                        `json:"country"`
	Region               string                        `json:"region,omitempty"`
	CertificateReference string                        `json:"certificate_reference,omitempty"`
	ContactInfo          string                        `json:"contact_info,omitempty"`
	Status               authoritymodels.Status        `json:"status"`
	RegisteredAt         time.Time                     `json:"registered_at"`
	LastUpdated          time.Time                     `json:"last_updated"`
	Accreditations       []string                      `json:"accreditations,omitempty"`
	TotalRecordsIssued   uint64                        `json:"total_records_issued"`
	TotalRecordsRevoked  uint64                        `json:"total_records_revoked"`
}

func toAuthorityResponse(a *authoritymodels.Authority) authorityResponse {
	return authorityResponse{
		Identity:             a.Identity,
		Name:                 a.Name,
		Type:                 a.Type,
		Country:              a.Country,
		Region:               a.Region,
		CertificateReference: a.CertificateReference,
		ContactInfo:          a.ContactInfo,
		Status:               a.Status,
		RegisteredAt:         a.RegisteredAt,
		LastUpdated:          a.LastUpdated,
		Accreditations:       a.Accreditations,
		TotalRecordsIssued:   a.TotalRecordsIssued,
		TotalRecordsRevoked:  a.TotalRecordsRevoked,
	}
}

func toAuthorityResponses(list []*authoritymodels.Authority) []authorityResponse {
	out := make([]authorityResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAuthorityResponse(a))
	}
	return out
}

type applicationResponse struct {
	Applicant       domain.Identity               `json:"applicant"`
	Name            string                        `json:"name"`
	Type            authoritymodels.AuthorityType `json:"type"`
	Country         string                        `json:"country"`
	Region          string                        `json:"region,omitempty"`
	ContactInfo     string                        `json:"contact_info,omitempty"`
	Accreditations  []string                      `json:"accreditations,omitempty"`
	AppliedAt       time.Time                     `json:"applied_at"`
	Processed       bool                          `json:"processed"`
	RejectionReason string                        `json:"rejection_reason,omitempty"`
}

func toApplicationResponse(app *authoritymodels.Application) applicationResponse {
	return applicationResponse{
		Applicant:       app.Applicant,
		Name:            app.Name,
		Type:            app.Type,
		Country:         app.Country,
		Region:          app.Region,
		ContactInfo:     app.ContactInfo,
		Accreditations:  app.Accreditations,
		AppliedAt:       app.AppliedAt,
		Processed:       app.Processed,
		RejectionReason: app.RejectionReason,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps coded domain errors to their HTTP status; anything uncoded
// is a 500 with a generic message.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	var de *domainerrors.Error
	if !errors.As(err, &de) {
		log.Error("unhandled error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   string(domainerrors.CodeInternal),
			"message": "internal error",
		})
		return
	}

	writeJSON(w, domainerrors.ToHTTPStatus(de.Code), map[string]string{
		"error":   string(de.Code),
		"message": de.Message,
	})
}
