// Package handler contains the HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leekyio/api/internal/app"
	"github.com/leekyio/api/internal/infra/http/middleware"
	"github.com/leekyio/api/pkg/apierror"
	"github.com/leekyio/api/pkg/domain/finding"
	"github.com/leekyio/api/pkg/domain/scan"
	"github.com/leekyio/api/pkg/domain/shared"
	"github.com/leekyio/api/pkg/logger"
	"github.com/leekyio/api/pkg/pagination"
	"github.com/leekyio/api/pkg/validator"
)

// ScanHandler handles HTTP requests for scans.
type ScanHandler struct {
	service *app.ScanService
	logger  *logger.Logger
}

// NewScanHandler creates a new ScanHandler.
func NewScanHandler(svc *app.ScanService, log *logger.Logger) *ScanHandler {
	return &ScanHandler{service: svc, logger: log}
}

// --- Request/Response Types ---

// CreateScanRequest represents the request to start an investigation.
type CreateScanRequest struct {
	Domain string `json:"domain"`
}

// ScanResponse represents a scan in API responses.
type ScanResponse struct {
	ID            string     `json:"id"`
	Domain        string     `json:"domain"`
	Status        string     `json:"status"`
	FailureReason string     `json:"failure_reason,omitempty"`
	FindingsCount int        `json:"findings_count"`
	RiskScore     float64    `json:"risk_score"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// FindingResponse represents a finding in API responses.
type FindingResponse struct {
	ID             string    `json:"id"`
	ScanID         string    `json:"scan_id"`
	Classification string    `json:"classification"`
	Finding        string    `json:"finding"`
	Repository     string    `json:"repository"`
	FilePath       string    `json:"file_path"`
	GitHubURL      string    `json:"github_url,omitempty"`
	RawContent     string    `json:"raw_content,omitempty"`
	RiskScore      float64   `json:"risk_score"`
	CreatedAt      time.Time `json:"created_at"`
}

// --- Handlers ---

// Create handles POST /api/v1/scans
func (h *ScanHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.MustGetOwnerID(r.Context())

	var req CreateScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	sc, err := h.service.CreateScan(r.Context(), ownerID, app.CreateScanInput{Domain: req.Domain})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, toScanResponse(sc))
}

// List handles GET /api/v1/scans
func (h *ScanHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.MustGetOwnerID(r.Context())
	page := pagination.New(queryInt(r, "page", 1), queryInt(r, "per_page", pagination.DefaultPerPage))

	result, err := h.service.ListScans(r.Context(), ownerID, page)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pagination.Result[ScanResponse]{
		Data:       mapSlice(result.Data, toScanResponse),
		Total:      result.Total,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
	})
}

// Get handles GET /api/v1/scans/{id}
func (h *ScanHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.MustGetOwnerID(r.Context())
	id, err := shared.IDFromString(chi.URLParam(r, "id"))
	if err != nil {
		apierror.NotFound("Scan").WriteJSON(w)
		return
	}

	sc, err := h.service.GetScan(r.Context(), ownerID, id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toScanResponse(sc))
}

// Findings handles GET /api/v1/scans/{id}/findings
func (h *ScanHandler) Findings(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.MustGetOwnerID(r.Context())
	id, err := shared.IDFromString(chi.URLParam(r, "id"))
	if err != nil {
		apierror.NotFound("Scan").WriteJSON(w)
		return
	}

	findings, err := h.service.GetScanFindings(r.Context(), ownerID, id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  mapSlice(findings, toFindingResponse),
		"total": len(findings),
	})
}

// Cancel handles POST /api/v1/scans/{id}/cancel
func (h *ScanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.MustGetOwnerID(r.Context())
	id, err := shared.IDFromString(chi.URLParam(r, "id"))
	if err != nil {
		apierror.NotFound("Scan").WriteJSON(w)
		return
	}

	if err := h.service.CancelScan(r.Context(), ownerID, id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancel_requested"})
}

// handleServiceError maps service errors to API error responses.
func (h *ScanHandler) handleServiceError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		if hasDomainError(validationErrs) {
			apierror.InvalidDomain("Not a valid domain name").WithDetails(validationErrs).WriteJSON(w)
			return
		}
		apierror.ValidationFailed("Validation failed", validationErrs).WriteJSON(w)
	case shared.IsNotFound(err):
		apierror.NotFound("Scan").WriteJSON(w)
	case errors.Is(err, shared.ErrAlreadyTerminal):
		apierror.AlreadyTerminal().WriteJSON(w)
	case errors.Is(err, shared.ErrValidation):
		apierror.BadRequest(err.Error()).WriteJSON(w)
	default:
		h.logger.Error("scan handler error", "error", err)
		apierror.InternalError(err).WriteJSON(w)
	}
}

func hasDomainError(errs validator.ValidationErrors) bool {
	for _, e := range errs {
		if e.Field == "domain" {
			return true
		}
	}
	return false
}

func toScanResponse(s *scan.Scan) ScanResponse {
	return ScanResponse{
		ID:            s.ID.String(),
		Domain:        s.Domain,
		Status:        string(s.Status),
		FailureReason: string(s.FailureReason),
		FindingsCount: s.FindingsCount,
		RiskScore:     s.RiskScore,
		CreatedAt:     s.CreatedAt,
		CompletedAt:   s.CompletedAt,
	}
}

func toFindingResponse(f *finding.Finding) FindingResponse {
	return FindingResponse{
		ID:             f.ID.String(),
		ScanID:         f.ScanID.String(),
		Classification: f.Classification,
		Finding:        f.Finding,
		Repository:     f.Repository,
		FilePath:       f.FilePath,
		GitHubURL:      f.GitHubURL,
		RawContent:     f.RawContent,
		RiskScore:      f.RiskScore,
		CreatedAt:      f.CreatedAt,
	}
}

// --- shared helpers ---

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func mapSlice[T, U any](in []T, fn func(T) U) []U {
	out := make([]U, 0, len(in))
	for _, item := range in {
		out = append(out, fn(item))
	}
	return out
}
