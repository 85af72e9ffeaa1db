package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcadia-ai/dataagent/pkg/agent"
)

// TenantHeader carries the tenant (organization) ID for a request.
const TenantHeader = "X-Org-ID"

// maxQuestionLength bounds the accepted question size.
const maxQuestionLength = 2000

// AnalyzeRequest is the POST /v1/analyze request body.
type AnalyzeRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
	// OrgID may be set in the body when the header is absent.
	OrgID string `json:"org_id,omitempty"`
}

// AnalyzeHandler exposes the analysis pipeline over HTTP.
type AnalyzeHandler struct {
	service *agent.Service
	logger  *zap.Logger
}

// NewAnalyzeHandler creates an AnalyzeHandler.
func NewAnalyzeHandler(service *agent.Service, logger *zap.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{service: service, logger: logger}
}

// RegisterRoutes registers the analyze route on the given mux.
func (h *AnalyzeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/analyze", h.Analyze)
}

// Analyze handles POST /v1/analyze requests: one conversational question
// in, one QueryResult out.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}

	if req.Question == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "question is required")
		return
	}
	if len(req.Question) > maxQuestionLength {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "question is too long")
		return
	}
	if req.SessionID == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}

	tenantID, err := tenantFrom(r, &req)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := h.service.Analyze(r.Context(), req.Question, req.SessionID, tenantID)
	if err != nil {
		// Only context errors surface here; pipeline failures come back as
		// a failed QueryResult.
		h.logger.Warn("analyze aborted", zap.Error(err))
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "aborted", "the request was cancelled")
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode analyze response", zap.Error(err))
	}
}

func tenantFrom(r *http.Request, req *AnalyzeRequest) (uuid.UUID, error) {
	raw := r.Header.Get(TenantHeader)
	if raw == "" {
		raw = req.OrgID
	}
	if raw == "" {
		return uuid.Nil, errors.New("org id is required via X-Org-ID header or org_id field")
	}
	tenantID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("org id must be a UUID")
	}
	return tenantID, nil
}
