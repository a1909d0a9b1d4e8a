package access

import "errors"

var (
	// ErrVideoNotFound indicates the referenced video does not exist in the catalog.
	ErrVideoNotFound = errors.New("video not found")
	// ErrRequestNotFound indicates the referenced access request does not exist.
	ErrRequestNotFound = errors.New("access request not found")
	// ErrGrantNotFound indicates no video access row exists for the (user, video) pair.
	ErrGrantNotFound = errors.New("video access not found")
	// ErrDuplicateRequest indicates a pending request already exists for the (user, video) pair.
	ErrDuplicateRequest = errors.New("a pending request already exists for this video")
	// ErrAlreadyGranted indicates the user already holds an active grant for the video.
	ErrAlreadyGranted = errors.New("access to this video is already granted")
	// ErrInvalidState indicates the request's current status forbids the attempted transition.
	ErrInvalidState = errors.New("only pending requests can be decided")
	// ErrInvalidDuration indicates the approval duration is not a positive number of hours.
	ErrInvalidDuration = errors.New("duration must be a positive number of hours")
	// ErrInvalidArgument indicates a required identifier was missing or blank.
	ErrInvalidArgument = errors.New("user and video identifiers must be provided")
)
