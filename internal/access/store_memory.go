package access

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vidgrant/backend/internal/models"
)

// InMemoryStore implements Store over in-memory maps. It mirrors the Postgres
// store's constraint behaviour (pending uniqueness, grant upsert) for tests
// and local development.
type InMemoryStore struct {
	mu       sync.Mutex
	videos   map[string]models.Video
	requests map[string]models.AccessRequest
	grants   map[string]models.VideoAccess // keyed by userID+"/"+videoID
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		videos:   make(map[string]models.Video),
		requests: make(map[string]models.AccessRequest),
		grants:   make(map[string]models.VideoAccess),
	}
}

// AddVideo seeds a catalog entry.
func (s *InMemoryStore) AddVideo(video models.Video) {
	s.mu.Lock()
	s.videos[video.ID] = video
	s.mu.Unlock()
}

func grantKey(userID, videoID string) string {
	return userID + "/" + videoID
}

// GetVideo resolves a catalog entry.
func (s *InMemoryStore) GetVideo(_ context.Context, videoID string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[videoID]
	if !ok {
		return models.Video{}, ErrVideoNotFound
	}
	return video, nil
}

// GetRequest resolves a request by id.
func (s *InMemoryStore) GetRequest(_ context.Context, requestID string) (models.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[requestID]
	if !ok {
		return models.AccessRequest{}, ErrRequestNotFound
	}
	return request, nil
}

// HasPendingRequest reports whether a PENDING request exists for the pair.
func (s *InMemoryStore) HasPendingRequest(_ context.Context, userID, videoID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasPendingLocked(userID, videoID), nil
}

func (s *InMemoryStore) hasPendingLocked(userID, videoID string) bool {
	for _, request := range s.requests {
		if request.UserID == userID && request.VideoID == videoID && request.Status == models.RequestStatusPending {
			return true
		}
	}
	return false
}

// FindGrant returns the grant row for the pair.
func (s *InMemoryStore) FindGrant(_ context.Context, userID, videoID string) (models.VideoAccess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.grants[grantKey(userID, videoID)]
	if !ok {
		return models.VideoAccess{}, ErrGrantNotFound
	}
	return grant, nil
}

// CreateRequest inserts a new request, enforcing pending uniqueness.
func (s *InMemoryStore) CreateRequest(_ context.Context, request models.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if request.Status == models.RequestStatusPending && s.hasPendingLocked(request.UserID, request.VideoID) {
		return ErrDuplicateRequest
	}
	s.requests[request.ID] = request
	return nil
}

// ApproveRequest applies both approval writes, or neither.
func (s *InMemoryStore) ApproveRequest(_ context.Context, request models.AccessRequest, grant models.VideoAccess) (models.VideoAccess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.requests[request.ID]
	if !ok {
		return models.VideoAccess{}, ErrRequestNotFound
	}
	if current.Status != models.RequestStatusPending {
		return models.VideoAccess{}, ErrInvalidState
	}

	s.requests[request.ID] = request

	key := grantKey(grant.UserID, grant.VideoID)
	if existing, ok := s.grants[key]; ok {
		grant.ID = existing.ID
	}
	s.grants[key] = grant

	return grant, nil
}

// MarkRejected transitions a pending request to REJECTED.
func (s *InMemoryStore) MarkRejected(_ context.Context, requestID string) (models.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[requestID]
	if !ok {
		return models.AccessRequest{}, ErrRequestNotFound
	}
	if request.Status != models.RequestStatusPending {
		return models.AccessRequest{}, ErrInvalidState
	}

	request.Status = models.RequestStatusRejected
	request.ApprovedAt = nil
	request.DurationHours = nil
	request.ExpiresAt = nil
	s.requests[requestID] = request

	return request, nil
}

// DeactivateExpiredGrants flips is_active off for expired grants.
func (s *InMemoryStore) DeactivateExpiredGrants(_ context.Context, userID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, grant := range s.grants {
		if userID != "" && grant.UserID != userID {
			continue
		}
		if grant.IsActive && grant.ExpiresAt.Before(now) {
			grant.IsActive = false
			s.grants[key] = grant
		}
	}
	return nil
}

// ExpireApprovedRequests retires APPROVED requests whose expiry has passed.
func (s *InMemoryStore) ExpireApprovedRequests(_ context.Context, userID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, request := range s.requests {
		if userID != "" && request.UserID != userID {
			continue
		}
		if request.Status == models.RequestStatusApproved && request.ExpiresAt != nil && !request.ExpiresAt.After(now) {
			request.Status = models.RequestStatusExpired
			s.requests[id] = request
		}
	}
	return nil
}

// ListActiveGrants returns watchable grants, most recently granted first.
func (s *InMemoryStore) ListActiveGrants(_ context.Context, userID string, now time.Time) ([]models.VideoAccess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var grants []models.VideoAccess
	for _, grant := range s.grants {
		if grant.UserID != userID || !grant.Watchable(now) {
			continue
		}
		if video, ok := s.videos[grant.VideoID]; ok {
			v := video
			grant.Video = &v
		}
		grants = append(grants, grant)
	}

	sort.Slice(grants, func(i, j int) bool {
		return grants[i].GrantedAt.After(grants[j].GrantedAt)
	})

	return grants, nil
}

// ListRequestsForUser returns the user's request history, newest first.
func (s *InMemoryStore) ListRequestsForUser(_ context.Context, userID string) ([]models.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var requests []models.AccessRequest
	for _, request := range s.requests {
		if request.UserID != userID {
			continue
		}
		if video, ok := s.videos[request.VideoID]; ok {
			v := video
			request.Video = &v
		}
		requests = append(requests, request)
	}

	sort.Slice(requests, func(i, j int) bool {
		return requests[i].RequestedAt.After(requests[j].RequestedAt)
	})

	return requests, nil
}

// ListAllRequests returns every request, newest first.
func (s *InMemoryStore) ListAllRequests(_ context.Context) ([]models.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var requests []models.AccessRequest
	for _, request := range s.requests {
		if video, ok := s.videos[request.VideoID]; ok {
			v := video
			request.Video = &v
		}
		requests = append(requests, request)
	}

	sort.Slice(requests, func(i, j int) bool {
		return requests[i].RequestedAt.After(requests[j].RequestedAt)
	})

	return requests, nil
}

// ListAvailableVideos returns videos with neither a pending request nor an
// active grant for the user.
func (s *InMemoryStore) ListAvailableVideos(_ context.Context, userID string, now time.Time) ([]models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var videos []models.Video
	for _, video := range s.videos {
		if s.hasPendingLocked(userID, video.ID) {
			continue
		}
		if grant, ok := s.grants[grantKey(userID, video.ID)]; ok && grant.Watchable(now) {
			continue
		}
		videos = append(videos, video)
	}

	sort.Slice(videos, func(i, j int) bool {
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})

	return videos, nil
}

var _ Store = (*InMemoryStore)(nil)
