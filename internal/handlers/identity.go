package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/vidgrant/backend/internal/logging"
	"github.com/vidgrant/backend/internal/models"
)

var errUnauthenticated = errors.New("missing or invalid credentials")

// resolveUser maps the request's bearer token to the account it was issued to.
func resolveUser(ctx context.Context, r *http.Request, sessions SessionManager, users UserStore) (models.User, error) {
	token := bearerToken(r)
	if token == "" {
		return models.User{}, errUnauthenticated
	}

	userID, err := sessions.Authenticate(ctx, token)
	if err != nil {
		return models.User{}, errUnauthenticated
	}

	user, err := users.FindByID(ctx, userID)
	if err != nil {
		return models.User{}, errUnauthenticated
	}

	return user, nil
}

// requireRole authenticates the caller and enforces their role, writing the
// 401/403 response itself when the check fails.
func requireRole(w http.ResponseWriter, r *http.Request, sessions SessionManager, users UserStore, role string) (models.User, bool) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if sessions == nil || users == nil {
		logger.Error("identity dependencies unavailable", "hasSessions", sessions != nil, "hasUsers", users != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "authentication services unavailable"})
		return models.User{}, false
	}

	user, err := resolveUser(ctx, r, sessions, users)
	if err != nil {
		logger.Warn("unauthenticated request", "path", r.URL.Path)
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return models.User{}, false
	}

	if user.Role != role {
		logger.Warn("role denied", "userId", user.ID, "role", user.Role, "required", role)
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "insufficient permissions"})
		return models.User{}, false
	}

	return user, true
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
