package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidgrant/backend/internal/access"
	"github.com/vidgrant/backend/internal/config"
	"github.com/vidgrant/backend/internal/db"
	"github.com/vidgrant/backend/internal/models"
	"github.com/vidgrant/backend/internal/repositories"
)

// runSeed populates a development database with an admin, a few customers,
// a small catalog, and requests in every lifecycle state. It goes through
// the repositories and the access service rather than raw SQL so passwords
// are hashed and lifecycle rules hold, and running it twice is harmless.
func runSeed(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	users := repositories.NewPostgresUserRepository(pool)
	catalog := repositories.NewPostgresVideoRepository(pool)
	accessStore := repositories.NewPostgresAccessRepository(pool)
	accessService := access.NewService(accessStore)

	admin, err := ensureUser(ctx, users, "Admin", "admin@example.com", "admin123", models.RoleAdmin)
	if err != nil {
		return err
	}

	seedCustomers := []struct{ name, email string }{
		{"John Doe", "john.doe@example.com"},
		{"Jane Smith", "jane.smith@example.com"},
		{"Bob Wilson", "bob.wilson@example.com"},
	}
	customers := make([]models.User, 0, len(seedCustomers))
	for _, c := range seedCustomers {
		user, err := ensureUser(ctx, users, c.name, c.email, "customer123", models.RoleCustomer)
		if err != nil {
			return err
		}
		customers = append(customers, user)
	}

	seconds := func(s int) *int { return &s }
	seedVideos := []models.Video{
		{Title: "Welcome Tour", URL: "https://cdn.example.com/videos/welcome-tour.mp4", Description: "A short walk through the portal.", Duration: seconds(300)},
		{Title: "Safety Training", URL: "https://cdn.example.com/videos/safety-training.mp4", Description: "Mandatory annual safety refresher.", Duration: seconds(1800)},
		{Title: "Product Deep Dive", URL: "https://cdn.example.com/videos/product-deep-dive.mp4", Description: "Feature by feature overview for new hires.", Duration: seconds(2700)},
		{Title: "Quarterly Update", URL: "https://cdn.example.com/videos/quarterly-update.mp4", Duration: seconds(1200)},
	}
	videos := make([]models.Video, 0, len(seedVideos))
	for _, v := range seedVideos {
		video, err := ensureVideo(ctx, catalog, v)
		if err != nil {
			return err
		}
		videos = append(videos, video)
	}

	// Pending, approved and rejected fixtures, plus a second active grant.
	if err := seedRequest(ctx, accessService, customers[0], videos[0], "pending", 0); err != nil {
		return err
	}
	if err := seedRequest(ctx, accessService, customers[1], videos[1], "approved", 24); err != nil {
		return err
	}
	if err := seedRequest(ctx, accessService, customers[2], videos[2], "rejected", 0); err != nil {
		return err
	}
	if err := seedRequest(ctx, accessService, customers[0], videos[3], "approved", 48); err != nil {
		return err
	}

	// A pair that already ran its course: approved three days ago with a short
	// window, then retired by the sweep below.
	backdated := access.NewService(accessStore)
	backdated.NowFunc = func() time.Time { return time.Now().UTC().Add(-72 * time.Hour) }
	if err := seedRequest(ctx, backdated, customers[2], videos[3], "approved", 2); err != nil {
		return err
	}
	if err := accessService.Reconcile(ctx); err != nil {
		return fmt.Errorf("reconcile seed data: %w", err)
	}

	fmt.Printf("seeded admin %s and %d customers\n", admin.Email, len(customers))
	return nil
}

func ensureUser(ctx context.Context, users *repositories.PostgresUserRepository, name, email, password, role string) (models.User, error) {
	existing, err := users.FindByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return models.User{}, fmt.Errorf("look up seed user %s: %w", email, err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash seed password: %w", err)
	}

	now := time.Now().UTC()
	user := models.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Password:  string(hashed),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := users.Create(ctx, user); err != nil {
		return models.User{}, fmt.Errorf("create seed user %s: %w", email, err)
	}

	fmt.Printf("created %s %s\n", role, email)
	return user, nil
}

func ensureVideo(ctx context.Context, catalog *repositories.PostgresVideoRepository, video models.Video) (models.Video, error) {
	existing, err := catalog.List(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("list videos: %w", err)
	}
	for _, v := range existing {
		if v.Title == video.Title {
			return v, nil
		}
	}

	video.ID = uuid.NewString()
	video.CreatedAt = time.Now().UTC()
	if err := catalog.Create(ctx, video); err != nil {
		return models.Video{}, fmt.Errorf("create seed video %q: %w", video.Title, err)
	}

	fmt.Printf("created video %q\n", video.Title)
	return video, nil
}

func seedRequest(ctx context.Context, svc *access.Service, user models.User, video models.Video, outcome string, durationHours int) error {
	// A request for the pair in any state means a previous run seeded it;
	// decided requests do not block resubmission, so Submit alone is not
	// enough to keep reruns from piling up history.
	history, err := svc.ListRequestHistory(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("list requests for %s: %w", user.Email, err)
	}
	for _, existing := range history {
		if existing.VideoID == video.ID {
			return nil
		}
	}

	request, err := svc.Submit(ctx, user.ID, video.ID)
	if err != nil {
		// Already seeded on a previous run.
		if errors.Is(err, access.ErrDuplicateRequest) || errors.Is(err, access.ErrAlreadyGranted) {
			return nil
		}
		return fmt.Errorf("seed request for %s: %w", user.Email, err)
	}

	switch outcome {
	case "approved":
		if _, _, err := svc.Approve(ctx, request.ID, durationHours); err != nil {
			return fmt.Errorf("approve seed request for %s: %w", user.Email, err)
		}
	case "rejected":
		if _, err := svc.Reject(ctx, request.ID); err != nil {
			return fmt.Errorf("reject seed request for %s: %w", user.Email, err)
		}
	}

	return nil
}
