package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vidgrant/backend/internal/logging"
	"github.com/vidgrant/backend/internal/models"
)

// CustomerHandler serves the customer-facing request and entitlement endpoints.
type CustomerHandler struct {
	Access   AccessService
	Sessions SessionManager
	Users    UserStore
	Limiter  RateLimiter
}

// Requests handles /api/v1/customer/requests: GET lists the caller's request
// history, POST submits a new access request.
func (h CustomerHandler) Requests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.history(w, r)
	case http.MethodPost:
		h.submit(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h CustomerHandler) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := requireRole(w, r, h.Sessions, h.Users, models.RoleCustomer)
	if !ok {
		return
	}

	if !allowRequest(h.Limiter, r, "submit") {
		logger.Warn("submit rate limited", "userId", user.ID)
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many requests, slow down"})
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid submit payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	created, err := h.Access.Submit(ctx, user.ID, strings.TrimSpace(req.VideoID))
	if err != nil {
		status, message := accessErrorStatus(err)
		if status >= http.StatusInternalServerError {
			logger.Error("submit failed", "error", err, "userId", user.ID, "videoId", req.VideoID)
		} else {
			logger.Warn("submit refused", "error", err, "userId", user.ID, "videoId", req.VideoID)
		}
		respondJSON(ctx, w, status, map[string]string{"error": message})
		return
	}

	respondJSON(ctx, w, http.StatusCreated, toRequestResponse(created))
}

func (h CustomerHandler) history(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := requireRole(w, r, h.Sessions, h.Users, models.RoleCustomer)
	if !ok {
		return
	}

	requests, err := h.Access.ListRequestHistory(ctx, user.ID)
	if err != nil {
		logger.Error("list request history failed", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch requests"})
		return
	}

	out := make([]requestResponse, 0, len(requests))
	for _, request := range requests {
		out = append(out, toRequestResponse(request))
	}

	respondJSON(ctx, w, http.StatusOK, out)
}

// ActiveVideos handles GET /api/v1/customer/videos, returning the grants the
// caller can watch right now.
func (h CustomerHandler) ActiveVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := requireRole(w, r, h.Sessions, h.Users, models.RoleCustomer)
	if !ok {
		return
	}

	grants, err := h.Access.ListActiveGrants(ctx, user.ID)
	if err != nil {
		logger.Error("list active grants failed", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch videos"})
		return
	}

	out := make([]grantResponse, 0, len(grants))
	for _, grant := range grants {
		out = append(out, toGrantResponse(grant))
	}

	respondJSON(ctx, w, http.StatusOK, out)
}

// AvailableVideos handles GET /api/v1/customer/available-videos, listing the
// catalog entries the caller may still request.
func (h CustomerHandler) AvailableVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := requireRole(w, r, h.Sessions, h.Users, models.RoleCustomer)
	if !ok {
		return
	}

	videos, err := h.Access.ListAvailableVideos(ctx, user.ID)
	if err != nil {
		logger.Error("list available videos failed", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch videos"})
		return
	}

	out := make([]*videoResponse, 0, len(videos))
	for _, video := range videos {
		out = append(out, toVideoResponse(video))
	}

	respondJSON(ctx, w, http.StatusOK, out)
}

// AdminRequestHandler serves the admin request queue and decisions.
type AdminRequestHandler struct {
	Access   AccessService
	Sessions SessionManager
	Users    UserStore
}

// List handles GET /api/v1/admin/requests.
func (h AdminRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if _, ok := requireRole(w, r, h.Sessions, h.Users, models.RoleAdmin); !ok {
		return
	}

	requests, err := h.Access.ListAllRequests(ctx)
	if err != nil {
		logger.Error("list all requests failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch requests"})
		return
	}

	out := make([]requestResponse, 0, len(requests))
	for _, request := range requests {
		out = append(out, toRequestResponse(request))
	}

	respondJSON(ctx, w, http.StatusOK, out)
}

// Approve handles POST /api/v1/admin/requests/approve.
func (h AdminRequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	admin, ok := requireRole(w, r, h.Sessions, h.Users, models.RoleAdmin)
	if !ok {
		return
	}

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid approve payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	// Matches the original admin console, which defaulted the grant window
	// to two hours when none was chosen.
	if req.DurationHours == 0 {
		req.DurationHours = 2
	}

	request, grant, err := h.Access.Approve(ctx, strings.TrimSpace(req.RequestID), req.DurationHours)
	if err != nil {
		status, message := accessErrorStatus(err)
		if status >= http.StatusInternalServerError {
			logger.Error("approve failed", "error", err, "requestId", req.RequestID, "adminId", admin.ID)
		} else {
			logger.Warn("approve refused", "error", err, "requestId", req.RequestID, "adminId", admin.ID)
		}
		respondJSON(ctx, w, status, map[string]string{"error": message})
		return
	}

	logger.Info("request approved", "requestId", request.ID, "adminId", admin.ID, "expiresAt", grant.ExpiresAt)
	respondJSON(ctx, w, http.StatusOK, approveResponse{
		Request: toRequestResponse(request),
		Grant:   toGrantResponse(grant),
	})
}

// Reject handles POST /api/v1/admin/requests/reject.
func (h AdminRequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	admin, ok := requireRole(w, r, h.Sessions, h.Users, models.RoleAdmin)
	if !ok {
		return
	}

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid reject payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	request, err := h.Access.Reject(ctx, strings.TrimSpace(req.RequestID))
	if err != nil {
		status, message := accessErrorStatus(err)
		if status >= http.StatusInternalServerError {
			logger.Error("reject failed", "error", err, "requestId", req.RequestID, "adminId", admin.ID)
		} else {
			logger.Warn("reject refused", "error", err, "requestId", req.RequestID, "adminId", admin.ID)
		}
		respondJSON(ctx, w, status, map[string]string{"error": message})
		return
	}

	logger.Info("request rejected", "requestId", request.ID, "adminId", admin.ID)
	respondJSON(ctx, w, http.StatusOK, toRequestResponse(request))
}

// Reconcile handles POST /api/v1/admin/reconcile, running the full expiry
// sweep on demand.
func (h AdminRequestHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if _, ok := requireRole(w, r, h.Sessions, h.Users, models.RoleAdmin); !ok {
		return
	}

	if err := h.Access.Reconcile(ctx); err != nil {
		logger.Error("manual reconcile failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to reconcile expired access"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]bool{"success": true})
}

type submitRequest struct {
	VideoID string `json:"videoId"`
}

type approveRequest struct {
	RequestID     string `json:"requestId"`
	DurationHours int    `json:"durationHours"`
}

type rejectRequest struct {
	RequestID string `json:"requestId"`
}

type approveResponse struct {
	Request requestResponse `json:"request"`
	Grant   grantResponse   `json:"grant"`
}
