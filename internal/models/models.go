package models

import "time"

// Account roles. A user's role is fixed at creation.
const (
	RoleAdmin    = "ADMIN"
	RoleCustomer = "CUSTOMER"
)

// User represents an account within the Vidgrant portal.
type User struct {
	ID        string
	Name      string
	Email     string
	Password  string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Video is a catalog entry administrators manage and customers request access to.
type Video struct {
	ID           string
	Title        string
	URL          string
	Description  string
	Duration     *int
	ThumbnailURL string
	CreatedAt    time.Time
}

// Access request lifecycle states. PENDING is the only state from which an
// admin decision is legal; REJECTED and EXPIRED are terminal.
const (
	RequestStatusPending  = "PENDING"
	RequestStatusApproved = "APPROVED"
	RequestStatusRejected = "REJECTED"
	RequestStatusExpired  = "EXPIRED"
)

// AccessRequest records a customer's intent to watch a video and the admin
// decision taken on it.
type AccessRequest struct {
	ID            string
	UserID        string
	VideoID       string
	Status        string
	RequestedAt   time.Time
	ApprovedAt    *time.Time
	DurationHours *int
	ExpiresAt     *time.Time

	// Populated on joined reads, nil otherwise.
	User  *User
	Video *Video
}

// IsPending reports whether the request still awaits an admin decision.
func (r AccessRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}

// VideoAccess is a time-boxed entitlement to watch one video. At most one row
// exists per (user, video); re-approval refreshes it in place.
type VideoAccess struct {
	ID        string
	UserID    string
	VideoID   string
	GrantedAt time.Time
	ExpiresAt time.Time
	IsActive  bool

	Video *Video
}

// Watchable reports whether the grant permits viewing at the supplied instant.
func (a VideoAccess) Watchable(now time.Time) bool {
	return a.IsActive && a.ExpiresAt.After(now)
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
