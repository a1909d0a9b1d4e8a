// Package access implements the access-grant lifecycle: customers submit
// requests, admins approve or reject them, approvals provision time-boxed
// grants, and expiry reconciliation retires stale state.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidgrant/backend/internal/logging"
	"github.com/vidgrant/backend/internal/models"
)

// Service drives request state transitions and answers entitlement queries.
// It holds no cross-request state; the store is the single shared resource.
type Service struct {
	store Store

	// NowFunc overrides the clock in tests.
	NowFunc func() time.Time
}

// NewService constructs the lifecycle engine over the provided store.
func NewService(store Store) *Service {
	if store == nil {
		panic("access: store must not be nil")
	}
	return &Service{store: store}
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc().UTC()
	}
	return time.Now().UTC()
}

// Submit creates a PENDING request for the pair. It fails with
// ErrDuplicateRequest when a pending request already exists and with
// ErrAlreadyGranted when the user currently holds a watchable grant.
func (s *Service) Submit(ctx context.Context, userID, videoID string) (models.AccessRequest, error) {
	userID = strings.TrimSpace(userID)
	videoID = strings.TrimSpace(videoID)
	if userID == "" || videoID == "" {
		return models.AccessRequest{}, ErrInvalidArgument
	}

	if _, err := s.store.GetVideo(ctx, videoID); err != nil {
		return models.AccessRequest{}, err
	}

	pending, err := s.store.HasPendingRequest(ctx, userID, videoID)
	if err != nil {
		return models.AccessRequest{}, fmt.Errorf("check pending request: %w", err)
	}
	if pending {
		return models.AccessRequest{}, ErrDuplicateRequest
	}

	now := s.now()

	grant, err := s.store.FindGrant(ctx, userID, videoID)
	if err != nil && !errors.Is(err, ErrGrantNotFound) {
		return models.AccessRequest{}, fmt.Errorf("check existing grant: %w", err)
	}
	if err == nil && grant.Watchable(now) {
		return models.AccessRequest{}, ErrAlreadyGranted
	}

	request := models.AccessRequest{
		ID:          uuid.NewString(),
		UserID:      userID,
		VideoID:     videoID,
		Status:      models.RequestStatusPending,
		RequestedAt: now,
	}

	// The store's uniqueness constraint re-validates the pending check: a
	// concurrent submit between the read and this insert loses here.
	if err := s.store.CreateRequest(ctx, request); err != nil {
		return models.AccessRequest{}, err
	}

	return request, nil
}

// Approve transitions a PENDING request to APPROVED and provisions the grant
// in the same atomic write. The returned grant expires durationHours from now.
func (s *Service) Approve(ctx context.Context, requestID string, durationHours int) (models.AccessRequest, models.VideoAccess, error) {
	if strings.TrimSpace(requestID) == "" {
		return models.AccessRequest{}, models.VideoAccess{}, ErrRequestNotFound
	}
	if durationHours <= 0 {
		return models.AccessRequest{}, models.VideoAccess{}, ErrInvalidDuration
	}

	request, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return models.AccessRequest{}, models.VideoAccess{}, err
	}
	if !request.IsPending() {
		return models.AccessRequest{}, models.VideoAccess{}, ErrInvalidState
	}

	now := s.now()
	// durationHours is the only place wall-clock arithmetic happens; everything
	// downstream compares the resulting timestamps.
	expiresAt := now.Add(time.Duration(durationHours) * time.Hour)

	request.Status = models.RequestStatusApproved
	request.ApprovedAt = &now
	request.DurationHours = &durationHours
	request.ExpiresAt = &expiresAt

	grant := models.VideoAccess{
		ID:        uuid.NewString(),
		UserID:    request.UserID,
		VideoID:   request.VideoID,
		GrantedAt: now,
		ExpiresAt: expiresAt,
		IsActive:  true,
	}

	ctx, span := logging.StartSpan(ctx, "access.approve")
	defer span.End()

	stored, err := s.store.ApproveRequest(ctx, request, grant)
	if err != nil {
		return models.AccessRequest{}, models.VideoAccess{}, err
	}

	return request, stored, nil
}

// Reject transitions a PENDING request to REJECTED. Decision fields are
// cleared so a later read never sees stale approval data. No grant is touched.
func (s *Service) Reject(ctx context.Context, requestID string) (models.AccessRequest, error) {
	if strings.TrimSpace(requestID) == "" {
		return models.AccessRequest{}, ErrRequestNotFound
	}

	request, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return models.AccessRequest{}, err
	}
	if !request.IsPending() {
		return models.AccessRequest{}, ErrInvalidState
	}

	return s.store.MarkRejected(ctx, requestID)
}

// Reconcile runs both expiry sweeps across every user. Each sweep is
// idempotent and the two are order-independent, so the method is safe to call
// at any frequency and concurrently with interactive transitions.
func (s *Service) Reconcile(ctx context.Context) error {
	return s.reconcile(ctx, "")
}

// ReconcileUser runs the expiry sweeps scoped to a single user. The read
// facade calls this before serving so a customer never observes a grant that
// outlived its expiry.
func (s *Service) ReconcileUser(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidArgument
	}
	return s.reconcile(ctx, userID)
}

func (s *Service) reconcile(ctx context.Context, userID string) error {
	ctx, span := logging.StartSpan(ctx, "access.reconcile")
	defer span.End()

	now := s.now()

	if err := s.store.DeactivateExpiredGrants(ctx, userID, now); err != nil {
		return fmt.Errorf("deactivate expired grants: %w", err)
	}
	if err := s.store.ExpireApprovedRequests(ctx, userID, now); err != nil {
		return fmt.Errorf("expire approved requests: %w", err)
	}
	return nil
}

// ListActiveGrants returns the grants the user can watch right now, most
// recently granted first, with the video joined.
func (s *Service) ListActiveGrants(ctx context.Context, userID string) ([]models.VideoAccess, error) {
	if err := s.ReconcileUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListActiveGrants(ctx, userID, s.now())
}

// ListRequestHistory returns the user's requests across every lifecycle state,
// most recently requested first, with the video joined.
func (s *Service) ListRequestHistory(ctx context.Context, userID string) ([]models.AccessRequest, error) {
	if err := s.ReconcileUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListRequestsForUser(ctx, userID)
}

// ListAvailableVideos returns the catalog entries the user may request: no
// pending request and no currently-active grant.
func (s *Service) ListAvailableVideos(ctx context.Context, userID string) ([]models.Video, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidArgument
	}
	if err := s.ReconcileUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListAvailableVideos(ctx, userID, s.now())
}

// ListAllRequests returns the full admin queue, reconciling first so decided
// rows already reflect any expiry.
func (s *Service) ListAllRequests(ctx context.Context) ([]models.AccessRequest, error) {
	if err := s.Reconcile(ctx); err != nil {
		return nil, err
	}
	return s.store.ListAllRequests(ctx)
}
