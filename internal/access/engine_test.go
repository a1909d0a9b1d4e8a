package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vidgrant/backend/internal/models"
)

func newTestService(t *testing.T) (*Service, *InMemoryStore, *time.Time) {
	t.Helper()

	store := NewInMemoryStore()
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	service := NewService(store)
	service.NowFunc = func() time.Time { return now }

	return service, store, &now
}

func seedVideo(store *InMemoryStore, id string) models.Video {
	video := models.Video{
		ID:        id,
		Title:     "video " + id,
		URL:       "https://example.com/" + id,
		CreatedAt: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
	}
	store.AddVideo(video)
	return video
}

func TestSubmitCreatesPendingRequest(t *testing.T) {
	service, store, now := newTestService(t)
	seedVideo(store, "video-1")

	request, err := service.Submit(context.Background(), "user-1", "video-1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if request.Status != models.RequestStatusPending {
		t.Fatalf("expected pending status, got %s", request.Status)
	}
	if !request.RequestedAt.Equal(*now) {
		t.Fatalf("expected requestedAt %v, got %v", now, request.RequestedAt)
	}
	if request.ApprovedAt != nil || request.DurationHours != nil || request.ExpiresAt != nil {
		t.Fatalf("expected decision fields unset: %+v", request)
	}
}

func TestSubmitDuplicatePending(t *testing.T) {
	service, store, _ := newTestService(t)
	seedVideo(store, "video-1")

	if _, err := service.Submit(context.Background(), "user-1", "video-1"); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	if _, err := service.Submit(context.Background(), "user-1", "video-1"); !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest, got %v", err)
	}
}

func TestSubmitAgainstActiveGrant(t *testing.T) {
	service, store, now := newTestService(t)
	seedVideo(store, "video-1")

	request, err := service.Submit(context.Background(), "user-1", "video-1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, _, err := service.Approve(context.Background(), request.ID, 2); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := service.Submit(context.Background(), "user-1", "video-1"); !errors.Is(err, ErrAlreadyGranted) {
		t.Fatalf("expected ErrAlreadyGranted, got %v", err)
	}

	// Once the grant lapses the pair may be requested again.
	*now = now.Add(3 * time.Hour)
	if _, err := service.Submit(context.Background(), "user-1", "video-1"); err != nil {
		t.Fatalf("submit after expiry: %v", err)
	}
}

func TestSubmitUnknownVideo(t *testing.T) {
	service, _, _ := newTestService(t)

	if _, err := service.Submit(context.Background(), "user-1", "missing"); !errors.Is(err, ErrVideoNotFound) {
		t.Fatalf("expected ErrVideoNotFound, got %v", err)
	}
	if _, err := service.Submit(context.Background(), "", "video"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestApproveProvisionsGrantAtomically(t *testing.T) {
	service, store, now := newTestService(t)
	seedVideo(store, "video-1")

	submitted, err := service.Submit(context.Background(), "user-1", "video-1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	request, grant, err := service.Approve(context.Background(), submitted.ID, 2)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	wantExpiry := now.Add(2 * time.Hour)
	if request.Status != models.RequestStatusApproved {
		t.Fatalf("expected approved status, got %s", request.Status)
	}
	if request.ExpiresAt == nil || !request.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expected request expiry %v, got %v", wantExpiry, request.ExpiresAt)
	}
	if request.DurationHours == nil || *request.DurationHours != 2 {
		t.Fatalf("expected duration 2, got %v", request.DurationHours)
	}
	if !grant.IsActive || !grant.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expected active grant until %v, got %+v", wantExpiry, grant)
	}
	if grant.UserID != submitted.UserID || grant.VideoID != submitted.VideoID {
		t.Fatalf("grant pair mismatch: %+v", grant)
	}

	stored, err := store.FindGrant(context.Background(), "user-1", "video-1")
	if err != nil {
		t.Fatalf("find grant: %v", err)
	}
	if stored.ID != grant.ID {
		t.Fatalf("expected persisted grant %s, got %s", grant.ID, stored.ID)
	}
}

func TestApproveInvalidDuration(t *testing.T) {
	service, store, _ := newTestService(t)
	seedVideo(store, "video-1")

	request, err := service.Submit(context.Background(), "user-1", "video-1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	for _, hours := range []int{0, -1} {
		if _, _, err := service.Approve(context.Background(), request.ID, hours); !errors.Is(err, ErrInvalidDuration) {
			t.Fatalf("duration %d: expected ErrInvalidDuration, got %v", hours, err)
		}
	}

	// The failed approvals must not have moved the request.
	stored, err := store.GetRequest(context.Background(), request.ID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if stored.Status != models.RequestStatusPending {
		t.Fatalf("expected request still pending, got %s", stored.Status)
	}
}

func TestApproveNonPendingLeavesStateUntouched(t *testing.T) {
	service, store, _ := newTestService(t)
	seedVideo(store, "video-1")

	submitted, err := service.Submit(context.Background(), "user-1", "video-1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, _, err := service.Approve(context.Background(), submitted.ID, 2); err != nil {
		t.Fatalf("approve: %v", err)
	}

	grantBefore, err := store.FindGrant(context.Background(), "user-1", "video-1")
	if err != nil {
		t.Fatalf("find grant: %v", err)
	}

	if _, _, err := service.Approve(context.Background(), submitted.ID, 5); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	grantAfter, err := store.FindGrant(context.Background(), "user-1", "video-1")
	if err != nil {
		t.Fatalf("find grant: %v", err)
	}
	if !grantAfter.ExpiresAt.Equal(grantBefore.ExpiresAt) {
		t.Fatalf("grant changed by failed approve: %+v vs %+v", grantBefore, grantAfter)
	}
}

func TestApproveRaceSecondTransitionLoses(t *testing.T) {
	service, store, _ := newTestService(t)
	seedVideo(store, "video-1")

	submitted, err := service.Submit(context.Background(), "user-1", "video-1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Simulate the losing racer: the request flips to APPROVED between its
	// precondition read and its write. The conditional store write must fail.
	winner := submitted
	winner.Status = models.RequestStatusApproved
	loserGrant := models.VideoAccess{
		ID:        uuid.NewString(),
		UserID:    "user-1",
		VideoID:   "video-1",
		GrantedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(5 * time.Hour),
		IsActive:  true,
	}

	if _, _, err := service.Approve(context.Background(), submitted.ID, 2); err != nil {
		t.Fatalf("winning approve: %v", err)
	}
	if _, err := store.ApproveRequest(context.Background(), winner, loserGrant); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected losing write to fail with ErrInvalidState, got %v", err)
	}

	grant, err := store.FindGrant(context.Background(), "user-1", "video-1")
	if err != nil {
		t.Fatalf("find grant: %v", err)
	}
	if grant.ID == loserGrant.ID {
		t.Fatal("grant reflects the losing approval")
	}
}

func TestRejectClearsDecisionFields(t *testing.T) {
	service, store, _ := newTestService(t)
	seedVideo(store, "video-1")

	submitted, err := service.Submit(context.Background(), "user-1", "video-1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	rejected, err := service.Reject(context.Background(), submitted.ID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}

	if rejected.Status != models.RequestStatusRejected {
		t.Fatalf("expected rejected status, got %s", rejected.Status)
	}
	if rejected.ApprovedAt != nil || rejected.DurationHours != nil || rejected.ExpiresAt != nil {
		t.Fatalf("expected decision fields cleared: %+v", rejected)
	}

	if _, err := store.FindGrant(context.Background(), "user-1", "video-1"); !errors.Is(err, ErrGrantNotFound) {
		t.Fatalf("expected no grant after rejection, got %v", err)
	}

	if _, err := service.Reject(context.Background(), submitted.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on double reject, got %v", err)
	}
	if _, err := service.Reject(context.Background(), uuid.NewString()); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	service, store, now := newTestService(t)
	seedVideo(store, "video-1")
	seedVideo(store, "video-2")

	first, err := service.Submit(context.Background(), "user-1", "video-1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, _, err := service.Approve(context.Background(), first.ID, 1); err != nil {
		t.Fatalf("approve: %v", err)
	}

	second, err := service.Submit(context.Background(), "user-1", "video-2")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, _, err := service.Approve(context.Background(), second.ID, 8); err != nil {
		t.Fatalf("approve: %v", err)
	}

	*now = now.Add(2 * time.Hour)

	snapshot := func() ([]models.AccessRequest, []models.VideoAccess) {
		requests, err := store.ListRequestsForUser(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("list requests: %v", err)
		}
		grants, err := store.ListActiveGrants(context.Background(), "user-1", *now)
		if err != nil {
			t.Fatalf("list grants: %v", err)
		}
		return requests, grants
	}

	if err := service.Reconcile(context.Background()); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	requestsA, grantsA := snapshot()

	if err := service.Reconcile(context.Background()); err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	requestsB, grantsB := snapshot()

	if len(requestsA) != len(requestsB) || len(grantsA) != len(grantsB) {
		t.Fatalf("reconcile not idempotent: %d/%d requests, %d/%d grants",
			len(requestsA), len(requestsB), len(grantsA), len(grantsB))
	}
	for i := range requestsA {
		if requestsA[i].Status != requestsB[i].Status {
			t.Fatalf("request %s status changed between runs: %s vs %s",
				requestsA[i].ID, requestsA[i].Status, requestsB[i].Status)
		}
	}
}

func TestGrantLifecycleEndToEnd(t *testing.T) {
	service, store, now := newTestService(t)
	seedVideo(store, "video-1")

	submitted, err := service.Submit(context.Background(), "user-1", "video-1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, _, err := service.Approve(context.Background(), submitted.ID, 1); err != nil {
		t.Fatalf("approve: %v", err)
	}

	grants, err := service.ListActiveGrants(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list active grants: %v", err)
	}
	if len(grants) != 1 || grants[0].VideoID != "video-1" {
		t.Fatalf("expected one active grant for video-1, got %+v", grants)
	}
	if grants[0].Video == nil || grants[0].Video.ID != "video-1" {
		t.Fatalf("expected joined video on grant, got %+v", grants[0])
	}

	*now = now.Add(61 * time.Minute)

	grants, err = service.ListActiveGrants(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list active grants after expiry: %v", err)
	}
	if len(grants) != 0 {
		t.Fatalf("expected no active grants after expiry, got %+v", grants)
	}

	history, err := service.ListRequestHistory(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 1 || history[0].Status != models.RequestStatusExpired {
		t.Fatalf("expected expired request in history, got %+v", history)
	}
}

func TestExpiredGrantNeverListedRegardlessOfFlag(t *testing.T) {
	service, store, now := newTestService(t)
	seedVideo(store, "video-1")

	// A grant whose expiry passed but whose flag was never swept.
	store.mu.Lock()
	store.grants[grantKey("user-1", "video-1")] = models.VideoAccess{
		ID:        uuid.NewString(),
		UserID:    "user-1",
		VideoID:   "video-1",
		GrantedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
		IsActive:  true,
	}
	store.mu.Unlock()

	grants, err := service.ListActiveGrants(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list active grants: %v", err)
	}
	if len(grants) != 0 {
		t.Fatalf("expected expired grant filtered out, got %+v", grants)
	}

	stored, err := store.FindGrant(context.Background(), "user-1", "video-1")
	if err != nil {
		t.Fatalf("find grant: %v", err)
	}
	if stored.IsActive {
		t.Fatal("expected lazy reconciliation to deactivate the grant")
	}
}

func TestListActiveGrantsOrdering(t *testing.T) {
	service, store, now := newTestService(t)
	seedVideo(store, "video-1")
	seedVideo(store, "video-2")

	first, err := service.Submit(context.Background(), "user-1", "video-1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, _, err := service.Approve(context.Background(), first.ID, 6); err != nil {
		t.Fatalf("approve: %v", err)
	}

	*now = now.Add(time.Hour)

	second, err := service.Submit(context.Background(), "user-1", "video-2")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, _, err := service.Approve(context.Background(), second.ID, 6); err != nil {
		t.Fatalf("approve: %v", err)
	}

	grants, err := service.ListActiveGrants(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list active grants: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(grants))
	}
	if grants[0].VideoID != "video-2" || grants[1].VideoID != "video-1" {
		t.Fatalf("expected most recently granted first, got %s then %s", grants[0].VideoID, grants[1].VideoID)
	}
}

func TestListAvailableVideosExclusions(t *testing.T) {
	service, store, now := newTestService(t)
	seedVideo(store, "video-pending")
	seedVideo(store, "video-granted")
	seedVideo(store, "video-free")
	seedVideo(store, "video-lapsed")

	if _, err := service.Submit(context.Background(), "user-1", "video-pending"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	granted, err := service.Submit(context.Background(), "user-1", "video-granted")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, _, err := service.Approve(context.Background(), granted.ID, 4); err != nil {
		t.Fatalf("approve: %v", err)
	}

	lapsed, err := service.Submit(context.Background(), "user-1", "video-lapsed")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, _, err := service.Approve(context.Background(), lapsed.ID, 1); err != nil {
		t.Fatalf("approve: %v", err)
	}

	*now = now.Add(2 * time.Hour)

	available, err := service.ListAvailableVideos(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list available: %v", err)
	}

	got := make(map[string]bool, len(available))
	for _, video := range available {
		got[video.ID] = true
	}

	if !got["video-free"] {
		t.Fatal("expected never-requested video to be available")
	}
	if !got["video-lapsed"] {
		t.Fatal("expected video with lapsed grant to be requestable again")
	}
	if got["video-pending"] {
		t.Fatal("expected pending-requested video to be excluded")
	}
	if got["video-granted"] {
		t.Fatal("expected actively-granted video to be excluded")
	}
}
