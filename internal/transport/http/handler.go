package http

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"healthpass/internal/accesscontrol"
	authoritymodels "healthpass/internal/authority/models"
	authorityservice "healthpass/internal/authority/service"
	"healthpass/internal/platform/middleware"
	proofservice "healthpass/internal/proof/service"
	"healthpass/pkg/domain"
	domainerrors "healthpass/pkg/domain-errors"
)

// Handler exposes both registries over HTTP. Caller identity comes from the
// auth middleware and is passed to the services explicitly.
type Handler struct {
	authorities *authorityservice.Service
	proofs      *proofservice.Service
	ac          *accesscontrol.AccessControl
	log         *slog.Logger
}

func NewHandler(authorities *authorityservice.Service, proofs *proofservice.Service, ac *accesscontrol.AccessControl, log *slog.Logger) *Handler {
	return &Handler{authorities: authorities, proofs: proofs, ac: ac, log: log}
}

func (h *Handler) submitApplication(w http.ResponseWriter, r *http.Request) {
	var req applicationRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	key, err := req.publicKeyBytes()
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	app, err := h.authorities.SubmitApplication(r.Context(), middleware.GetCallerID(r.Context()),
		authorityservice.ApplicationRequest{
			Name:                 req.Name,
			Type:                 authoritymodels.AuthorityType(req.Type),
			Country:              req.Country,
			Region:               req.Region,
			PublicKey:            key,
			CertificateReference: req.CertificateReference,
			ContactInfo:          req.ContactInfo,
			Accreditations:       req.Accreditations,
		})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toApplicationResponse(app))
}

func (h *Handler) approveApplication(w http.ResponseWriter, r *http.Request) {
	applicant := domain.Identity(chi.URLParam(r, "identity"))

	authority, err := h.authorities.ApproveApplication(r.Context(), middleware.GetCallerID(r.Context()), applicant)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthorityResponse(authority))
}

func (h *Handler) rejectApplication(w http.ResponseWriter, r *http.Request) {
	applicant := domain.Identity(chi.URLParam(r, "identity"))

	var req rejectRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	if err := h.authorities.RejectApplication(r.Context(), middleware.GetCallerID(r.Context()), applicant, req.Reason); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPendingApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.authorities.ListPendingApplications(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	out := make([]applicationResponse, 0, len(apps))
	for _, app := range apps {
		out = append(out, toApplicationResponse(app))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.authorities.GetApplication(r.Context(), domain.Identity(chi.URLParam(r, "identity")))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationResponse(app))
}

func (h *Handler) listAuthorities(w http.ResponseWriter, r *http.Request) {
	var (
		list []*authoritymodels.Authority
		err  error
	)
	switch {
	case r.URL.Query().Get("type") != "":
		list, err = h.authorities.ListByType(r.Context(), authoritymodels.AuthorityType(r.URL.Query().Get("type")))
	case r.URL.Query().Get("country") != "":
		list, err = h.authorities.ListByCountry(r.Context(), r.URL.Query().Get("country"))
	default:
		list, err = h.authorities.ListAuthorities(r.Context())
	}
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthorityResponses(list))
}

func (h *Handler) getAuthority(w http.ResponseWriter, r *http.Request) {
	authority, err := h.authorities.GetAuthority(r.Context(), domain.Identity(chi.URLParam(r, "identity")))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthorityResponse(authority))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusUpdateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	err := h.authorities.UpdateStatus(r.Context(), middleware.GetCallerID(r.Context()),
		domain.Identity(chi.URLParam(r, "identity")), req.Status)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateContactInfo(w http.ResponseWriter, r *http.Request) {
	var req contactUpdateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	err := h.authorities.UpdateContactInfo(r.Context(), middleware.GetCallerID(r.Context()),
		domain.Identity(chi.URLParam(r, "identity")), req.ContactInfo)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateCertificate(w http.ResponseWriter, r *http.Request) {
	var req certificateUpdateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	err := h.authorities.UpdateCertificate(r.Context(), middleware.GetCallerID(r.Context()),
		domain.Identity(chi.URLParam(r, "identity")), req.CertificateReference)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) authorityStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.authorities.Stats(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) submitProof(w http.ResponseWriter, r *http.Request) {
	var req submitProofRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	proofHash, err := domain.ParseHash(req.ProofHash)
	if err != nil {
		writeError(w, h.log, domainerrors.Wrap(err, domainerrors.CodeValidation, "invalid proof_hash"))
		return
	}
	recordHash, err := domain.ParseHash(req.HealthRecordHash)
	if err != nil {
		writeError(w, h.log, domainerrors.Wrap(err, domainerrors.CodeValidation, "invalid health_record_hash"))
		return
	}
	proofData, err := base64.StdEncoding.DecodeString(req.ProofData)
	if err != nil {
		writeError(w, h.log, domainerrors.New(domainerrors.CodeBadRequest, "proof_data must be base64"))
		return
	}

	proof, err := h.proofs.SubmitProof(r.Context(), middleware.GetCallerID(r.Context()),
		proofservice.SubmitRequest{
			ProofHash:        proofHash,
			HealthRecordHash: recordHash,
			IssuingAuthority: domain.Identity(req.IssuingAuthority),
			ProofData:        proofData,
			ExpiresAt:        req.ExpiresAt,
		})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, proof.Details(proof.GeneratedAt))
}

func (h *Handler) verifyProof(w http.ResponseWriter, r *http.Request) {
	proofHash, err := domain.ParseHash(chi.URLParam(r, "proofHash"))
	if err != nil {
		writeError(w, h.log, domainerrors.Wrap(err, domainerrors.CodeValidation, "invalid proof hash"))
		return
	}

	var req verifyProofRequest
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, h.log, err)
			return
		}
	}

	result, err := h.proofs.VerifyProof(r.Context(), middleware.GetCallerID(r.Context()), proofHash, req.Context)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) revokeProof(w http.ResponseWriter, r *http.Request) {
	proofHash, err := domain.ParseHash(chi.URLParam(r, "proofHash"))
	if err != nil {
		writeError(w, h.log, domainerrors.Wrap(err, domainerrors.CodeValidation, "invalid proof hash"))
		return
	}

	if err := h.proofs.RevokeProof(r.Context(), middleware.GetCallerID(r.Context()), proofHash); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokeHealthRecord(w http.ResponseWriter, r *http.Request) {
	recordHash, err := domain.ParseHash(chi.URLParam(r, "recordHash"))
	if err != nil {
		writeError(w, h.log, domainerrors.Wrap(err, domainerrors.CodeValidation, "invalid record hash"))
		return
	}

	var req revokeRecordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	err = h.proofs.RevokeHealthRecord(r.Context(), middleware.GetCallerID(r.Context()),
		domain.Identity(req.Authority), recordHash)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listProofs(w http.ResponseWriter, r *http.Request) {
	hashes, err := h.proofs.ListProofHashes(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"proof_hashes": hashes})
}

func (h *Handler) getProof(w http.ResponseWriter, r *http.Request) {
	proofHash, err := domain.ParseHash(chi.URLParam(r, "proofHash"))
	if err != nil {
		writeError(w, h.log, domainerrors.Wrap(err, domainerrors.CodeValidation, "invalid proof hash"))
		return
	}

	details, err := h.proofs.GetProof(r.Context(), proofHash)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *Handler) verificationHistory(w http.ResponseWriter, r *http.Request) {
	proofHash, err := domain.ParseHash(chi.URLParam(r, "proofHash"))
	if err != nil {
		writeError(w, h.log, domainerrors.Wrap(err, domainerrors.CodeValidation, "invalid proof hash"))
		return
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	history, err := h.proofs.VerificationHistory(r.Context(), proofHash, offset, limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"verifications": history})
}

func (h *Handler) systemStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.proofs.Stats(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) pause(w http.ResponseWriter, r *http.Request) {
	if err := h.ac.Pause(middleware.GetCallerID(r.Context())); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unpause(w http.ResponseWriter, r *http.Request) {
	if err := h.ac.Unpause(middleware.GetCallerID(r.Context())); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) grantRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	err := h.ac.Grant(middleware.GetCallerID(r.Context()),
		domain.Identity(req.Identity), accesscontrol.Role(req.Role))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	err := h.ac.Revoke(middleware.GetCallerID(r.Context()),
		domain.Identity(req.Identity), accesscontrol.Role(req.Role))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
