package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidgrant/backend/internal/logging"
	"github.com/vidgrant/backend/internal/models"
	"github.com/vidgrant/backend/internal/repositories"
)

// CustomerAdminHandler lets administrators manage customer accounts.
type CustomerAdminHandler struct {
	Users    UserStore
	Sessions SessionManager
	NowFunc  func() time.Time
}

// Collection handles /api/v1/admin/customers: GET lists customers, POST
// creates one with an admin-chosen password.
func (h CustomerAdminHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h CustomerAdminHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if _, ok := requireRole(w, r, h.Sessions, h.Users, models.RoleAdmin); !ok {
		return
	}

	customers, err := h.Users.ListCustomers(ctx)
	if err != nil {
		logger.Error("list customers failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch customers"})
		return
	}

	out := make([]*userResponse, 0, len(customers))
	for _, customer := range customers {
		out = append(out, toUserResponse(customer))
	}

	respondJSON(ctx, w, http.StatusOK, out)
}

func (h CustomerAdminHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	admin, ok := requireRole(w, r, h.Sessions, h.Users, models.RoleAdmin)
	if !ok {
		return
	}

	var req createCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid customer payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if name == "" || email == "" || req.Password == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "name, email and password are required"})
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid email address"})
		return
	}
	if len(req.Password) < 8 {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("hash password failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create customer"})
		return
	}

	now := h.now()
	user := models.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Password:  string(hashed),
		Role:      models.RoleCustomer,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "email already registered"})
			return
		}
		logger.Error("create customer failed", "error", err, "email", email)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create customer"})
		return
	}

	logger.Info("customer created", "customerId", user.ID, "adminId", admin.ID)
	respondJSON(ctx, w, http.StatusCreated, toUserResponse(user))
}

// Delete handles POST /api/v1/admin/customers/delete. The customer's
// requests and grants go with the account via cascading deletes.
func (h CustomerAdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	admin, ok := requireRole(w, r, h.Sessions, h.Users, models.RoleAdmin)
	if !ok {
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid delete payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "id is required"})
		return
	}
	if id == admin.ID {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "cannot delete your own account"})
		return
	}

	target, err := h.Users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		logger.Error("load customer failed", "error", err, "customerId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete customer"})
		return
	}
	if target.Role != models.RoleCustomer {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "only customer accounts can be deleted"})
		return
	}

	if err := h.Users.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		logger.Error("delete customer failed", "error", err, "customerId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete customer"})
		return
	}

	logger.Info("customer deleted", "customerId", id, "adminId", admin.ID)
	respondJSON(ctx, w, http.StatusOK, map[string]bool{"success": true})
}

func (h CustomerAdminHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type createCustomerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
