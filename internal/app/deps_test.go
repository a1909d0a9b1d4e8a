package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidgrant/backend/internal/config"
)

type fakePool struct{}

func (fakePool) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (fakePool) Close() {}

func TestBuildDependencies(t *testing.T) {
	cfg := config.Config{
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		ObjectStore:     config.ObjectStoreConfig{Bucket: "test-bucket", Endpoint: "http://localhost:9000", Region: "us-east-1"},
	}

	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	deps, accessService, err := buildDependencies(context.Background(), fakePool{}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if deps.Users == nil {
		t.Fatal("expected user repository to be configured")
	}
	if deps.Sessions == nil {
		t.Fatal("expected session manager to be configured")
	}
	if deps.Catalog == nil {
		t.Fatal("expected video catalog to be configured")
	}
	if deps.Access == nil {
		t.Fatal("expected access service to be configured")
	}
	if deps.Uploads == nil {
		t.Fatal("expected upload storage to be configured")
	}
	if deps.AuthLimiter == nil {
		t.Fatal("expected rate limiter to be configured")
	}
	if accessService == nil {
		t.Fatal("expected access service to be returned for the sweeper")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   "DEBUG",
		"info":    "INFO",
		"warn":    "WARN",
		"error":   "ERROR",
		"bogus":   "INFO",
		"WARNING": "INFO",
	}
	for input, want := range cases {
		if got := parseLogLevel(input).String(); got != want {
			t.Errorf("parseLogLevel(%q) = %s, want %s", input, got, want)
		}
	}
}
