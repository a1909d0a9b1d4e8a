package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/vidgrant/backend/internal/models"
)

func multipartUpload(t *testing.T, kind, filename, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("type", kind); err != nil {
		t.Fatalf("write type field: %v", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create file part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write file payload: %v", err)
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	return &body, writer.FormDataContentType()
}

func TestUploadHandlerStoresVideo(t *testing.T) {
	env := newTestEnv()
	store := newRecordingStorage()
	handler := UploadHandler{Storage: store, Sessions: env.sessions, Users: env.users}

	_, adminToken := env.addUser(t, models.RoleAdmin)

	body, contentType := multipartUpload(t, "video", "intro.mp4", "video/mp4", []byte("movie bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/uploads", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(resp["url"], "/videos/") || !strings.HasSuffix(resp["url"], "intro.mp4") {
		t.Fatalf("unexpected url %q", resp["url"])
	}

	if len(store.saved) != 1 {
		t.Fatalf("expected one stored object, got %d", len(store.saved))
	}
	for name, data := range store.saved {
		if !strings.HasPrefix(name, "videos/") {
			t.Fatalf("expected a videos/ key, got %q", name)
		}
		if string(data) != "movie bytes" {
			t.Fatalf("stored payload mismatch: %q", data)
		}
	}
}

func TestUploadHandlerStoresThumbnail(t *testing.T) {
	env := newTestEnv()
	store := newRecordingStorage()
	handler := UploadHandler{Storage: store, Sessions: env.sessions, Users: env.users}

	_, adminToken := env.addUser(t, models.RoleAdmin)

	body, contentType := multipartUpload(t, "thumbnail", "cover.png", "image/png", []byte("png bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/uploads", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	for name := range store.saved {
		if !strings.HasPrefix(name, "thumbnails/") {
			t.Fatalf("expected a thumbnails/ key, got %q", name)
		}
	}
}

func TestUploadHandlerRejectsWrongContentType(t *testing.T) {
	env := newTestEnv()
	store := newRecordingStorage()
	handler := UploadHandler{Storage: store, Sessions: env.sessions, Users: env.users}

	_, adminToken := env.addUser(t, models.RoleAdmin)

	body, contentType := multipartUpload(t, "video", "notes.txt", "text/plain", []byte("not a video"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/uploads", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
	if len(store.saved) != 0 {
		t.Fatalf("expected nothing stored, got %d objects", len(store.saved))
	}
}

func TestUploadHandlerRejectsUnknownKind(t *testing.T) {
	env := newTestEnv()
	store := newRecordingStorage()
	handler := UploadHandler{Storage: store, Sessions: env.sessions, Users: env.users}

	_, adminToken := env.addUser(t, models.RoleAdmin)

	body, contentType := multipartUpload(t, "archive", "dump.zip", "application/zip", []byte("zip bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/uploads", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestUploadHandlerRejectsOversizedThumbnail(t *testing.T) {
	env := newTestEnv()
	store := newRecordingStorage()
	handler := UploadHandler{Storage: store, Sessions: env.sessions, Users: env.users}

	_, adminToken := env.addUser(t, models.RoleAdmin)

	oversized := bytes.Repeat([]byte{0xFF}, maxThumbnailUploadBytes+1)
	body, contentType := multipartUpload(t, "thumbnail", "huge.png", "image/png", oversized)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/uploads", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
	if len(store.saved) != 0 {
		t.Fatalf("expected nothing stored, got %d objects", len(store.saved))
	}
}

func TestUploadHandlerRequiresAdmin(t *testing.T) {
	env := newTestEnv()
	store := newRecordingStorage()
	handler := UploadHandler{Storage: store, Sessions: env.sessions, Users: env.users}

	_, customerToken := env.addUser(t, models.RoleCustomer)

	body, contentType := multipartUpload(t, "video", "intro.mp4", "video/mp4", []byte("movie bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/uploads", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+customerToken)
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d got %d", http.StatusForbidden, rec.Code)
	}
	if len(store.saved) != 0 {
		t.Fatalf("expected nothing stored, got %d objects", len(store.saved))
	}
}
