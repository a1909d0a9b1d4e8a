package handlers

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/vidgrant/backend/internal/logging"
	"github.com/vidgrant/backend/internal/models"
)

const (
	maxVideoUploadBytes     = 100 << 20
	maxThumbnailUploadBytes = 5 << 20
)

// UploadHandler accepts video and thumbnail files from administrators and
// stores them in the object store.
type UploadHandler struct {
	Storage  UploadStorage
	Sessions SessionManager
	Users    UserStore
}

// Upload handles POST /api/v1/admin/uploads. The multipart form carries the
// file under "file" and the kind under "type" ("video" or "thumbnail").
func (h UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
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

	r.Body = http.MaxBytesReader(w, r.Body, maxVideoUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		logger.Warn("invalid multipart form", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid upload form"})
		return
	}

	kind := strings.TrimSpace(r.FormValue("type"))
	var (
		prefix     string
		maxBytes   int64
		wantedType string
	)
	switch kind {
	case "video":
		prefix, maxBytes, wantedType = "videos", maxVideoUploadBytes, "video/"
	case "thumbnail":
		prefix, maxBytes, wantedType = "thumbnails", maxThumbnailUploadBytes, "image/"
	default:
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "type must be video or thumbnail"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "file is required"})
		return
	}
	defer file.Close()

	if header.Size > maxBytes {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("file exceeds the %dMB limit", maxBytes>>20),
		})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, wantedType) {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("unsupported content type %q", contentType),
		})
		return
	}

	name := prefix + "/" + uniqueFileName(header.Filename)
	url, err := h.Storage.Save(ctx, name, file)
	if err != nil {
		logger.Error("store upload failed", "error", err, "name", name)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to store upload"})
		return
	}

	logger.Info("upload stored", "name", name, "size", header.Size, "adminId", admin.ID)
	respondJSON(ctx, w, http.StatusCreated, map[string]string{"url": url})
}

// uniqueFileName strips directory components and risky characters from the
// client-supplied name and prepends a random prefix so uploads never collide.
func uniqueFileName(original string) string {
	base := path.Base(strings.ReplaceAll(original, "\\", "/"))
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, base)
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		cleaned = "upload"
	}
	return uuid.NewString() + "-" + cleaned
}
