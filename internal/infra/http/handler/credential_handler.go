package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leekyio/api/internal/app"
	"github.com/leekyio/api/internal/infra/http/middleware"
	"github.com/leekyio/api/pkg/apierror"
	"github.com/leekyio/api/pkg/domain/shared"
	"github.com/leekyio/api/pkg/logger"
	"github.com/leekyio/api/pkg/validator"
)

// CredentialHandler handles HTTP requests for provider credentials.
// Tokens are write-only: they can be saved and revoked but never read back.
type CredentialHandler struct {
	service *app.CredentialService
	logger  *logger.Logger
}

// NewCredentialHandler creates a new CredentialHandler.
func NewCredentialHandler(svc *app.CredentialService, log *logger.Logger) *CredentialHandler {
	return &CredentialHandler{service: svc, logger: log}
}

// SaveCredentialRequest represents the request to store a provider token.
type SaveCredentialRequest struct {
	Service string `json:"service"`
	Token   string `json:"token"`
}

// Save handles POST /api/v1/credentials
func (h *CredentialHandler) Save(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.MustGetOwnerID(r.Context())

	var req SaveCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	err := h.service.SaveCredential(r.Context(), ownerID, app.SaveCredentialInput{
		Service: req.Service,
		Token:   req.Token,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"service": req.Service,
		"status":  "saved",
	})
}

// List handles GET /api/v1/credentials
//
// Only service names are returned, never tokens.
func (h *CredentialHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.MustGetOwnerID(r.Context())

	services, err := h.service.ListServices(r.Context(), ownerID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	if services == nil {
		services = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

// Delete handles DELETE /api/v1/credentials/{service}
func (h *CredentialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.MustGetOwnerID(r.Context())
	service := chi.URLParam(r, "service")

	if err := h.service.DeleteCredential(r.Context(), ownerID, service); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CredentialHandler) handleServiceError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		apierror.ValidationFailed("Validation failed", validationErrs).WriteJSON(w)
	case shared.IsNotFound(err):
		apierror.NotFound("Credential").WriteJSON(w)
	case errors.Is(err, shared.ErrValidation):
		apierror.BadRequest(err.Error()).WriteJSON(w)
	default:
		h.logger.Error("credential handler error", "error", err)
		apierror.InternalError(err).WriteJSON(w)
	}
}
