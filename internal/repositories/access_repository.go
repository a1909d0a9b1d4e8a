package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vidgrant/backend/internal/access"
	"github.com/vidgrant/backend/internal/db"
	"github.com/vidgrant/backend/internal/models"
)

// PostgresAccessRepository persists access requests and grants. It implements
// access.Store, translating constraint violations into the engine's sentinel
// errors.
type PostgresAccessRepository struct {
	pool db.Pool
}

// NewPostgresAccessRepository constructs an access repository backed by PostgreSQL.
func NewPostgresAccessRepository(pool db.Pool) *PostgresAccessRepository {
	return &PostgresAccessRepository{pool: pool}
}

// GetVideo resolves a catalog entry for precondition checks.
func (r *PostgresAccessRepository) GetVideo(ctx context.Context, videoID string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, title, url, description, duration_seconds, thumbnail_url, created_at
        FROM videos
        WHERE id = $1
    `, videoID)

	video, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, access.ErrVideoNotFound
		}
		return models.Video{}, fmt.Errorf("select video: %w", err)
	}

	return video, nil
}

// GetRequest resolves a request by id.
func (r *PostgresAccessRepository) GetRequest(ctx context.Context, requestID string) (models.AccessRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.AccessRequest{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, user_id, video_id, status, requested_at, approved_at, duration_hours, expires_at
        FROM access_requests
        WHERE id = $1
    `, requestID)

	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AccessRequest{}, access.ErrRequestNotFound
		}
		return models.AccessRequest{}, fmt.Errorf("select access request: %w", err)
	}

	return request, nil
}

// HasPendingRequest reports whether a PENDING request exists for the pair.
func (r *PostgresAccessRepository) HasPendingRequest(ctx context.Context, userID, videoID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	err = conn.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM access_requests
            WHERE user_id = $1 AND video_id = $2 AND status = $3
        )
    `, userID, videoID, models.RequestStatusPending).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending request: %w", err)
	}

	return exists, nil
}

// FindGrant returns the grant row for the pair, expired or not.
func (r *PostgresAccessRepository) FindGrant(ctx context.Context, userID, videoID string) (models.VideoAccess, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.VideoAccess{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, user_id, video_id, granted_at, expires_at, is_active
        FROM video_access
        WHERE user_id = $1 AND video_id = $2
    `, userID, videoID)

	var grant models.VideoAccess
	if err := row.Scan(&grant.ID, &grant.UserID, &grant.VideoID, &grant.GrantedAt, &grant.ExpiresAt, &grant.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.VideoAccess{}, access.ErrGrantNotFound
		}
		return models.VideoAccess{}, fmt.Errorf("select grant: %w", err)
	}

	return grant, nil
}

// CreateRequest inserts a PENDING request. The partial unique index over
// (user_id, video_id) WHERE status = 'PENDING' turns a concurrent duplicate
// submit into access.ErrDuplicateRequest.
func (r *PostgresAccessRepository) CreateRequest(ctx context.Context, request models.AccessRequest) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO access_requests (id, user_id, video_id, status, requested_at, approved_at, duration_hours, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, request.ID, request.UserID, request.VideoID, request.Status, request.RequestedAt, request.ApprovedAt, request.DurationHours, request.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return access.ErrDuplicateRequest
			case "23503":
				if strings.Contains(pgErr.ConstraintName, "video") {
					return access.ErrVideoNotFound
				}
				return fmt.Errorf("insert access request: %w", err)
			}
		}
		return fmt.Errorf("insert access request: %w", err)
	}

	return nil
}

// ApproveRequest runs the two approval writes in one transaction. The request
// update is conditional on status = 'PENDING', so a transition that already
// committed elsewhere makes this one roll back with access.ErrInvalidState.
func (r *PostgresAccessRepository) ApproveRequest(ctx context.Context, request models.AccessRequest, grant models.VideoAccess) (models.VideoAccess, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.VideoAccess{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.VideoAccess{}, fmt.Errorf("begin approve transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
        UPDATE access_requests
        SET status = $2, approved_at = $3, duration_hours = $4, expires_at = $5
        WHERE id = $1 AND status = $6
    `, request.ID, request.Status, request.ApprovedAt, request.DurationHours, request.ExpiresAt, models.RequestStatusPending)
	if err != nil {
		return models.VideoAccess{}, fmt.Errorf("update access request: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM access_requests WHERE id = $1)`, request.ID).Scan(&exists); err != nil {
			return models.VideoAccess{}, fmt.Errorf("check request existence: %w", err)
		}
		if exists {
			return models.VideoAccess{}, access.ErrInvalidState
		}
		return models.VideoAccess{}, access.ErrRequestNotFound
	}

	// Upsert keyed on the (user_id, video_id) uniqueness constraint: refresh
	// the timing fields in place when a prior grant row exists.
	row := tx.QueryRow(ctx, `
        INSERT INTO video_access (id, user_id, video_id, granted_at, expires_at, is_active)
        VALUES ($1, $2, $3, $4, $5, TRUE)
        ON CONFLICT (user_id, video_id)
        DO UPDATE SET granted_at = EXCLUDED.granted_at, expires_at = EXCLUDED.expires_at, is_active = TRUE
        RETURNING id
    `, grant.ID, grant.UserID, grant.VideoID, grant.GrantedAt, grant.ExpiresAt)

	stored := grant
	if err := row.Scan(&stored.ID); err != nil {
		return models.VideoAccess{}, fmt.Errorf("upsert grant: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.VideoAccess{}, fmt.Errorf("commit approve transaction: %w", err)
	}

	return stored, nil
}

// MarkRejected transitions a PENDING request to REJECTED and clears the
// decision fields so the row never carries stale approval data.
func (r *PostgresAccessRepository) MarkRejected(ctx context.Context, requestID string) (models.AccessRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.AccessRequest{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE access_requests
        SET status = $2, approved_at = NULL, duration_hours = NULL, expires_at = NULL
        WHERE id = $1 AND status = $3
        RETURNING id, user_id, video_id, status, requested_at, approved_at, duration_hours, expires_at
    `, requestID, models.RequestStatusRejected, models.RequestStatusPending)

	request, err := scanRequest(row)
	if err == nil {
		return request, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.AccessRequest{}, fmt.Errorf("reject access request: %w", err)
	}

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM access_requests WHERE id = $1)`, requestID).Scan(&exists); err != nil {
		return models.AccessRequest{}, fmt.Errorf("check request existence: %w", err)
	}
	if exists {
		return models.AccessRequest{}, access.ErrInvalidState
	}
	return models.AccessRequest{}, access.ErrRequestNotFound
}

// DeactivateExpiredGrants flips is_active off for grants past their expiry.
func (r *PostgresAccessRepository) DeactivateExpiredGrants(ctx context.Context, userID string, now time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if userID == "" {
		_, err = conn.Exec(ctx, `
            UPDATE video_access
            SET is_active = FALSE
            WHERE is_active AND expires_at < $1
        `, now)
	} else {
		_, err = conn.Exec(ctx, `
            UPDATE video_access
            SET is_active = FALSE
            WHERE is_active AND expires_at < $1 AND user_id = $2
        `, now, userID)
	}
	if err != nil {
		return fmt.Errorf("deactivate expired grants: %w", err)
	}

	return nil
}

// ExpireApprovedRequests retires APPROVED requests whose expiry has passed.
func (r *PostgresAccessRepository) ExpireApprovedRequests(ctx context.Context, userID string, now time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if userID == "" {
		_, err = conn.Exec(ctx, `
            UPDATE access_requests
            SET status = $1
            WHERE status = $2 AND expires_at <= $3
        `, models.RequestStatusExpired, models.RequestStatusApproved, now)
	} else {
		_, err = conn.Exec(ctx, `
            UPDATE access_requests
            SET status = $1
            WHERE status = $2 AND expires_at <= $3 AND user_id = $4
        `, models.RequestStatusExpired, models.RequestStatusApproved, now, userID)
	}
	if err != nil {
		return fmt.Errorf("expire approved requests: %w", err)
	}

	return nil
}

// ListActiveGrants returns watchable grants with the video joined, most
// recently granted first.
func (r *PostgresAccessRepository) ListActiveGrants(ctx context.Context, userID string, now time.Time) ([]models.VideoAccess, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT a.id, a.user_id, a.video_id, a.granted_at, a.expires_at, a.is_active,
               v.id, v.title, v.url, v.description, v.duration_seconds, v.thumbnail_url, v.created_at
        FROM video_access a
        JOIN videos v ON v.id = a.video_id
        WHERE a.user_id = $1 AND a.is_active AND a.expires_at > $2
        ORDER BY a.granted_at DESC
    `, userID, now)
	if err != nil {
		return nil, fmt.Errorf("query active grants: %w", err)
	}
	defer rows.Close()

	var grants []models.VideoAccess
	for rows.Next() {
		var (
			grant       models.VideoAccess
			video       models.Video
			description sql.NullString
			thumbnail   sql.NullString
		)

		if err := rows.Scan(
			&grant.ID, &grant.UserID, &grant.VideoID, &grant.GrantedAt, &grant.ExpiresAt, &grant.IsActive,
			&video.ID, &video.Title, &video.URL, &description, &video.Duration, &thumbnail, &video.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan active grant: %w", err)
		}

		video.Description = description.String
		video.ThumbnailURL = thumbnail.String
		grant.Video = &video
		grants = append(grants, grant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active grants: %w", err)
	}

	return grants, nil
}

// ListRequestsForUser returns the user's request history with the video
// joined, most recently requested first.
func (r *PostgresAccessRepository) ListRequestsForUser(ctx context.Context, userID string) ([]models.AccessRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT r.id, r.user_id, r.video_id, r.status, r.requested_at, r.approved_at, r.duration_hours, r.expires_at,
               v.id, v.title, v.url, v.description, v.duration_seconds, v.thumbnail_url, v.created_at
        FROM access_requests r
        JOIN videos v ON v.id = r.video_id
        WHERE r.user_id = $1
        ORDER BY r.requested_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query request history: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows, false)
}

// ListAllRequests returns every request with user and video joined, most
// recently requested first.
func (r *PostgresAccessRepository) ListAllRequests(ctx context.Context) ([]models.AccessRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT r.id, r.user_id, r.video_id, r.status, r.requested_at, r.approved_at, r.duration_hours, r.expires_at,
               v.id, v.title, v.url, v.description, v.duration_seconds, v.thumbnail_url, v.created_at,
               u.id, u.name, u.email
        FROM access_requests r
        JOIN videos v ON v.id = r.video_id
        JOIN users u ON u.id = r.user_id
        ORDER BY r.requested_at DESC
    `)
	if err != nil {
		return nil, fmt.Errorf("query all requests: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows, true)
}

// ListAvailableVideos returns videos the user has neither a pending request
// nor a currently-active grant for.
func (r *PostgresAccessRepository) ListAvailableVideos(ctx context.Context, userID string, now time.Time) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT v.id, v.title, v.url, v.description, v.duration_seconds, v.thumbnail_url, v.created_at
        FROM videos v
        WHERE NOT EXISTS (
            SELECT 1 FROM access_requests r
            WHERE r.video_id = v.id AND r.user_id = $1 AND r.status = $2
        )
        AND NOT EXISTS (
            SELECT 1 FROM video_access a
            WHERE a.video_id = v.id AND a.user_id = $1 AND a.is_active AND a.expires_at > $3
        )
        ORDER BY v.created_at DESC
    `, userID, models.RequestStatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("query available videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan available video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate available videos: %w", err)
	}

	return videos, nil
}

func collectRequests(rows pgx.Rows, withUser bool) ([]models.AccessRequest, error) {
	var requests []models.AccessRequest
	for rows.Next() {
		var (
			request     models.AccessRequest
			video       models.Video
			user        models.User
			description sql.NullString
			thumbnail   sql.NullString
			approvedAt  sql.NullTime
			expiresAt   sql.NullTime
		)

		dest := []any{
			&request.ID, &request.UserID, &request.VideoID, &request.Status,
			&request.RequestedAt, &approvedAt, &request.DurationHours, &expiresAt,
			&video.ID, &video.Title, &video.URL, &description, &video.Duration, &thumbnail, &video.CreatedAt,
		}
		if withUser {
			dest = append(dest, &user.ID, &user.Name, &user.Email)
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan access request: %w", err)
		}

		if approvedAt.Valid {
			t := approvedAt.Time.UTC()
			request.ApprovedAt = &t
		}
		if expiresAt.Valid {
			t := expiresAt.Time.UTC()
			request.ExpiresAt = &t
		}

		video.Description = description.String
		video.ThumbnailURL = thumbnail.String
		request.Video = &video
		if withUser {
			u := user
			request.User = &u
		}

		requests = append(requests, request)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access requests: %w", err)
	}

	return requests, nil
}

func scanRequest(row pgx.Row) (models.AccessRequest, error) {
	var (
		request    models.AccessRequest
		approvedAt sql.NullTime
		expiresAt  sql.NullTime
	)

	if err := row.Scan(
		&request.ID, &request.UserID, &request.VideoID, &request.Status,
		&request.RequestedAt, &approvedAt, &request.DurationHours, &expiresAt,
	); err != nil {
		return models.AccessRequest{}, err
	}

	if approvedAt.Valid {
		t := approvedAt.Time.UTC()
		request.ApprovedAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		request.ExpiresAt = &t
	}

	return request, nil
}

var _ access.Store = (*PostgresAccessRepository)(nil)
