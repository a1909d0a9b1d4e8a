package handlers

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidgrant/backend/internal/access"
	"github.com/vidgrant/backend/internal/auth"
	"github.com/vidgrant/backend/internal/models"
	"github.com/vidgrant/backend/internal/repositories"
)

// inMemoryUserStore backs handler tests without a database.
type inMemoryUserStore struct {
	users map[string]models.User
}

func newInMemoryUserStore() *inMemoryUserStore {
	return &inMemoryUserStore{users: make(map[string]models.User)}
}

func (s *inMemoryUserStore) Create(_ context.Context, user models.User) error {
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *inMemoryUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *inMemoryUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *inMemoryUserStore) ListCustomers(_ context.Context) ([]models.User, error) {
	var customers []models.User
	for _, user := range s.users {
		if user.Role == models.RoleCustomer {
			customers = append(customers, user)
		}
	}
	return customers, nil
}

func (s *inMemoryUserStore) Delete(_ context.Context, id string) error {
	if _, ok := s.users[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

// testEnv bundles the collaborators most handler tests need: a user store,
// a session manager backed by memory, and a real access service over the
// in-memory store.
type testEnv struct {
	users       *inMemoryUserStore
	sessions    *auth.Manager
	accessStore *access.InMemoryStore
	access      *access.Service
}

func newTestEnv() *testEnv {
	store := access.NewInMemoryStore()
	return &testEnv{
		users:       newInMemoryUserStore(),
		sessions:    auth.NewManager(time.Minute, time.Hour, auth.NewInMemorySessionStore()),
		accessStore: store,
		access:      access.NewService(store),
	}
}

// addUser creates an account with the given role and logs it in, returning
// the account and a bearer token for it.
func (e *testEnv) addUser(t *testing.T, role string) (models.User, string) {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	id := uuid.NewString()
	user := models.User{
		ID:       id,
		Name:     "Test " + role,
		Email:    id + "@example.com",
		Password: string(hashed),
		Role:     role,
	}
	if err := e.users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	tokens, err := e.sessions.Issue(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	return user, tokens.AccessToken
}

func (e *testEnv) addVideo(title string) models.Video {
	video := models.Video{
		ID:        uuid.NewString(),
		Title:     title,
		URL:       "https://cdn.example.com/" + title + ".mp4",
		CreatedAt: time.Now().UTC(),
	}
	e.accessStore.AddVideo(video)
	return video
}

// inMemoryCatalog backs video handler tests without a database.
type inMemoryCatalog struct {
	videos map[string]models.Video
	order  []string
}

func newInMemoryCatalog() *inMemoryCatalog {
	return &inMemoryCatalog{videos: make(map[string]models.Video)}
}

func (c *inMemoryCatalog) Create(_ context.Context, video models.Video) error {
	c.videos[video.ID] = video
	c.order = append(c.order, video.ID)
	return nil
}

func (c *inMemoryCatalog) Get(_ context.Context, id string) (models.Video, error) {
	video, ok := c.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return video, nil
}

func (c *inMemoryCatalog) List(_ context.Context) ([]models.Video, error) {
	out := make([]models.Video, 0, len(c.order))
	for _, id := range c.order {
		if video, ok := c.videos[id]; ok {
			out = append(out, video)
		}
	}
	return out, nil
}

func (c *inMemoryCatalog) Update(_ context.Context, video models.Video) error {
	existing, ok := c.videos[video.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	video.CreatedAt = existing.CreatedAt
	c.videos[video.ID] = video
	return nil
}

func (c *inMemoryCatalog) Delete(_ context.Context, id string) error {
	if _, ok := c.videos[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(c.videos, id)
	return nil
}

// recordingStorage captures uploads in memory.
type recordingStorage struct {
	saved map[string][]byte
	err   error
}

func newRecordingStorage() *recordingStorage {
	return &recordingStorage{saved: make(map[string][]byte)}
}

func (s *recordingStorage) Save(_ context.Context, name string, r io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.saved[name] = data
	return "https://cdn.example.com/" + name, nil
}

// stubLimiter always answers the same way.
type stubLimiter struct {
	allow bool
}

func (l stubLimiter) Allow(string) bool { return l.allow }
