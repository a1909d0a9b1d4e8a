package handlers

import (
	"context"
	"io"

	"github.com/vidgrant/backend/internal/models"
)

// UserStore captures the persistence operations required by the HTTP handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	ListCustomers(ctx context.Context) ([]models.User, error)
	Delete(ctx context.Context, id string) error
}

// SessionManager issues, refreshes and resolves authentication tokens.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Authenticate(ctx context.Context, accessToken string) (string, error)
}

// VideoCatalog captures persistence for the admin-managed video catalog.
type VideoCatalog interface {
	Create(ctx context.Context, video models.Video) error
	Get(ctx context.Context, id string) (models.Video, error)
	List(ctx context.Context) ([]models.Video, error)
	Update(ctx context.Context, video models.Video) error
	Delete(ctx context.Context, id string) error
}

// AccessService drives the request lifecycle and entitlement queries.
type AccessService interface {
	Submit(ctx context.Context, userID, videoID string) (models.AccessRequest, error)
	Approve(ctx context.Context, requestID string, durationHours int) (models.AccessRequest, models.VideoAccess, error)
	Reject(ctx context.Context, requestID string) (models.AccessRequest, error)
	Reconcile(ctx context.Context) error
	ListActiveGrants(ctx context.Context, userID string) ([]models.VideoAccess, error)
	ListRequestHistory(ctx context.Context, userID string) ([]models.AccessRequest, error)
	ListAvailableVideos(ctx context.Context, userID string) ([]models.Video, error)
	ListAllRequests(ctx context.Context) ([]models.AccessRequest, error)
}

// UploadStorage persists uploaded files and returns their public location.
type UploadStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}
