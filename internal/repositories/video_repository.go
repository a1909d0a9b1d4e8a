package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vidgrant/backend/internal/db"
	"github.com/vidgrant/backend/internal/models"
)

// PostgresVideoRepository provides PostgreSQL-backed persistence for the video catalog.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a new catalog entry.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, title, url, description, duration_seconds, thumbnail_url, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, video.ID, video.Title, video.URL, nullString(video.Description), video.Duration, nullString(video.ThumbnailURL), video.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

// Get fetches a single catalog entry.
func (r *PostgresVideoRepository) Get(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, title, url, description, duration_seconds, thumbnail_url, created_at
        FROM videos
        WHERE id = $1
    `, id)

	video, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video: %w", err)
	}

	return video, nil
}

// List returns the full catalog, most recently created first.
func (r *PostgresVideoRepository) List(ctx context.Context) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, title, url, description, duration_seconds, thumbnail_url, created_at
        FROM videos
        ORDER BY created_at DESC
    `)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}

// Update modifies an existing catalog entry.
func (r *PostgresVideoRepository) Update(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET title = $2, url = $3, description = $4, duration_seconds = $5, thumbnail_url = $6
        WHERE id = $1
    `, video.ID, video.Title, video.URL, nullString(video.Description), video.Duration, nullString(video.ThumbnailURL))
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a catalog entry. Dependent requests and grants cascade.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM videos
        WHERE id = $1
    `, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func scanVideo(row pgx.Row) (models.Video, error) {
	var (
		video       models.Video
		description sql.NullString
		thumbnail   sql.NullString
	)

	if err := row.Scan(&video.ID, &video.Title, &video.URL, &description, &video.Duration, &thumbnail, &video.CreatedAt); err != nil {
		return models.Video{}, err
	}

	video.Description = description.String
	video.ThumbnailURL = thumbnail.String
	return video, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
