package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidgrant/backend/internal/logging"
	"github.com/vidgrant/backend/internal/models"
	"github.com/vidgrant/backend/internal/repositories"
)

// VideoHandler serves the admin-managed video catalog.
type VideoHandler struct {
	Catalog  VideoCatalog
	Sessions SessionManager
	Users    UserStore
	NowFunc  func() time.Time
}

// Collection handles /api/v1/admin/videos: GET lists the catalog, POST adds
// an entry.
func (h VideoHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h VideoHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if _, ok := requireRole(w, r, h.Sessions, h.Users, models.RoleAdmin); !ok {
		return
	}

	videos, err := h.Catalog.List(ctx)
	if err != nil {
		logger.Error("list videos failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch videos"})
		return
	}

	out := make([]*videoResponse, 0, len(videos))
	for _, video := range videos {
		out = append(out, toVideoResponse(video))
	}

	respondJSON(ctx, w, http.StatusOK, out)
}

func (h VideoHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if _, ok := requireRole(w, r, h.Sessions, h.Users, models.RoleAdmin); !ok {
		return
	}

	var req videoPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid video payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	video, errMsg := req.toVideo()
	if errMsg != "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}
	video.ID = uuid.NewString()
	video.CreatedAt = h.now()

	if err := h.Catalog.Create(ctx, video); err != nil {
		logger.Error("create video failed", "error", err, "title", video.Title)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create video"})
		return
	}

	created, err := h.Catalog.Get(ctx, video.ID)
	if err != nil {
		logger.Error("load created video failed", "error", err, "videoId", video.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create video"})
		return
	}

	logger.Info("video created", "videoId", created.ID, "title", created.Title)
	respondJSON(ctx, w, http.StatusCreated, toVideoResponse(created))
}

// Update handles POST /api/v1/admin/videos/update.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if _, ok := requireRole(w, r, h.Sessions, h.Users, models.RoleAdmin); !ok {
		return
	}

	var req videoPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid video payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "id is required"})
		return
	}

	video, errMsg := req.toVideo()
	if errMsg != "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}
	video.ID = id

	if err := h.Catalog.Update(ctx, video); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "video not found"})
			return
		}
		logger.Error("update video failed", "error", err, "videoId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update video"})
		return
	}

	updated, err := h.Catalog.Get(ctx, id)
	if err != nil {
		logger.Error("load updated video failed", "error", err, "videoId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update video"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, toVideoResponse(updated))
}

// Delete handles POST /api/v1/admin/videos/delete. Requests and grants for
// the video are removed by the schema's cascading deletes.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid delete payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "id is required"})
		return
	}

	if err := h.Catalog.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "video not found"})
			return
		}
		logger.Error("delete video failed", "error", err, "videoId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete video"})
		return
	}

	logger.Info("video deleted", "videoId", id, "adminId", admin.ID)
	respondJSON(ctx, w, http.StatusOK, map[string]bool{"success": true})
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type videoPayload struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	Description  string `json:"description"`
	Duration     *int   `json:"duration"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

// toVideo validates the payload and returns the model, or an error message
// suitable for the response body.
func (p videoPayload) toVideo() (models.Video, string) {
	title := strings.TrimSpace(p.Title)
	url := strings.TrimSpace(p.URL)
	if title == "" || url == "" {
		return models.Video{}, "title and url are required"
	}
	if p.Duration != nil && *p.Duration < 0 {
		return models.Video{}, "duration must not be negative"
	}

	return models.Video{
		Title:        title,
		URL:          url,
		Description:  strings.TrimSpace(p.Description),
		Duration:     p.Duration,
		ThumbnailURL: strings.TrimSpace(p.ThumbnailURL),
	}, ""
}
