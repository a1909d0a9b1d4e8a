package app

import (
	"context"
	"time"

	"github.com/vidgrant/backend/internal/access"
	"github.com/vidgrant/backend/internal/auth"
	"github.com/vidgrant/backend/internal/config"
	"github.com/vidgrant/backend/internal/db"
	"github.com/vidgrant/backend/internal/handlers"
	"github.com/vidgrant/backend/internal/middleware"
	"github.com/vidgrant/backend/internal/repositories"
	"github.com/vidgrant/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The access service is returned separately so serve can hand it to
// the background sweeper.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, *access.Service, error) {
	sessionStore := repositories.NewPostgresSessionStore(pool)
	accessService := access.NewService(repositories.NewPostgresAccessRepository(pool))

	uploads, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}

	deps := handlers.Dependencies{
		Users:       repositories.NewPostgresUserRepository(pool),
		Sessions:    auth.NewManager(cfg.AccessTokenTTL, cfg.RefreshTokenTTL, sessionStore),
		Catalog:     repositories.NewPostgresVideoRepository(pool),
		Access:      accessService,
		Uploads:     uploads,
		AuthLimiter: middleware.NewIPRateLimiter(10, time.Minute, 10, 10*time.Minute),
	}

	return deps, accessService, nil
}
