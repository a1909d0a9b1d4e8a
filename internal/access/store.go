package access

import (
	"context"
	"time"

	"github.com/vidgrant/backend/internal/models"
)

// Store persists access requests and grants. Implementations map storage-level
// conflicts onto the sentinel errors declared in this package.
type Store interface {
	// GetVideo resolves a catalog entry or returns ErrVideoNotFound.
	GetVideo(ctx context.Context, videoID string) (models.Video, error)

	// GetRequest resolves a request by id or returns ErrRequestNotFound.
	GetRequest(ctx context.Context, requestID string) (models.AccessRequest, error)

	// HasPendingRequest reports whether a PENDING request exists for the pair.
	HasPendingRequest(ctx context.Context, userID, videoID string) (bool, error)

	// FindGrant returns the grant row for the pair or ErrGrantNotFound.
	FindGrant(ctx context.Context, userID, videoID string) (models.VideoAccess, error)

	// CreateRequest inserts a new PENDING request. A concurrent submit that
	// already created a pending row for the same pair surfaces as
	// ErrDuplicateRequest.
	CreateRequest(ctx context.Context, request models.AccessRequest) error

	// ApproveRequest atomically marks the request approved and upserts the
	// grant for its (user, video) pair. Both writes commit together or not at
	// all. If the request is no longer PENDING it returns ErrInvalidState and
	// leaves every row untouched. The returned grant carries the persisted id,
	// which is the pre-existing row's id when the upsert updated in place.
	ApproveRequest(ctx context.Context, request models.AccessRequest, grant models.VideoAccess) (models.VideoAccess, error)

	// MarkRejected transitions a PENDING request to REJECTED, clearing
	// approved_at, duration and expiry. Returns ErrInvalidState when the
	// request exists but is not PENDING.
	MarkRejected(ctx context.Context, requestID string) (models.AccessRequest, error)

	// DeactivateExpiredGrants flips is_active off for grants whose expiry has
	// passed. An empty userID sweeps every user.
	DeactivateExpiredGrants(ctx context.Context, userID string, now time.Time) error

	// ExpireApprovedRequests transitions APPROVED requests whose expiry has
	// passed to EXPIRED. An empty userID sweeps every user.
	ExpireApprovedRequests(ctx context.Context, userID string, now time.Time) error

	// ListActiveGrants returns watchable grants for the user with the video
	// joined, most recently granted first.
	ListActiveGrants(ctx context.Context, userID string, now time.Time) ([]models.VideoAccess, error)

	// ListRequestsForUser returns the user's full request history with the
	// video joined, most recently requested first.
	ListRequestsForUser(ctx context.Context, userID string) ([]models.AccessRequest, error)

	// ListAllRequests returns every request with user and video joined, most
	// recently requested first.
	ListAllRequests(ctx context.Context) ([]models.AccessRequest, error)

	// ListAvailableVideos returns videos the user may request: no pending
	// request and no currently-active grant.
	ListAvailableVideos(ctx context.Context, userID string, now time.Time) ([]models.Video, error)
}
