package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/vidgrant/backend/internal/access"
	"github.com/vidgrant/backend/internal/models"
)

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type videoResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	Description  string    `json:"description,omitempty"`
	Duration     *int      `json:"duration,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type requestResponse struct {
	ID            string         `json:"id"`
	UserID        string         `json:"userId"`
	VideoID       string         `json:"videoId"`
	Status        string         `json:"status"`
	RequestedAt   time.Time      `json:"requestedAt"`
	ApprovedAt    *time.Time     `json:"approvedAt,omitempty"`
	DurationHours *int           `json:"durationHours,omitempty"`
	ExpiresAt     *time.Time     `json:"expiresAt,omitempty"`
	User          *userResponse  `json:"user,omitempty"`
	Video         *videoResponse `json:"video,omitempty"`
}

type grantResponse struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	VideoID   string         `json:"videoId"`
	GrantedAt time.Time      `json:"grantedAt"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Video     *videoResponse `json:"video,omitempty"`
}

func toUserResponse(user models.User) *userResponse {
	return &userResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

func toVideoResponse(video models.Video) *videoResponse {
	return &videoResponse{
		ID:           video.ID,
		Title:        video.Title,
		URL:          video.URL,
		Description:  video.Description,
		Duration:     video.Duration,
		ThumbnailURL: video.ThumbnailURL,
		CreatedAt:    video.CreatedAt,
	}
}

func toRequestResponse(request models.AccessRequest) requestResponse {
	resp := requestResponse{
		ID:            request.ID,
		UserID:        request.UserID,
		VideoID:       request.VideoID,
		Status:        request.Status,
		RequestedAt:   request.RequestedAt,
		ApprovedAt:    request.ApprovedAt,
		DurationHours: request.DurationHours,
		ExpiresAt:     request.ExpiresAt,
	}
	if request.User != nil {
		resp.User = &userResponse{ID: request.User.ID, Name: request.User.Name, Email: request.User.Email}
	}
	if request.Video != nil {
		resp.Video = toVideoResponse(*request.Video)
	}
	return resp
}

func toGrantResponse(grant models.VideoAccess) grantResponse {
	resp := grantResponse{
		ID:        grant.ID,
		UserID:    grant.UserID,
		VideoID:   grant.VideoID,
		GrantedAt: grant.GrantedAt,
		ExpiresAt: grant.ExpiresAt,
	}
	if grant.Video != nil {
		resp.Video = toVideoResponse(*grant.Video)
	}
	return resp
}

// accessErrorStatus maps engine errors onto client-visible status codes. Only
// the sentinel errors cross the boundary; anything else is a storage failure
// reported generically.
func accessErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, access.ErrVideoNotFound), errors.Is(err, access.ErrRequestNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, access.ErrDuplicateRequest),
		errors.Is(err, access.ErrAlreadyGranted),
		errors.Is(err, access.ErrInvalidState),
		errors.Is(err, access.ErrInvalidDuration),
		errors.Is(err, access.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "request could not be processed"
	}
}
