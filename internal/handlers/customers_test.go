package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/vidgrant/backend/internal/models"
)

func TestCustomerAdminCreate(t *testing.T) {
	env := newTestEnv()
	handler := CustomerAdminHandler{Users: env.users, Sessions: env.sessions}

	_, adminToken := env.addUser(t, models.RoleAdmin)

	req := authedRequest(http.MethodPost, "/api/v1/admin/customers", adminToken, createCustomerRequest{
		Name:     "New Customer",
		Email:    "new@example.com",
		Password: "customer123",
	})
	rec := httptest.NewRecorder()

	handler.Collection(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var resp userResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Role != models.RoleCustomer {
		t.Fatalf("expected a customer account, got %q", resp.Role)
	}

	stored, err := env.users.FindByEmail(context.Background(), "new@example.com")
	if err != nil {
		t.Fatalf("expected the customer to be stored: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("customer123")) != nil {
		t.Fatal("stored password is not hashed")
	}
}

func TestCustomerAdminCreateConflict(t *testing.T) {
	env := newTestEnv()
	handler := CustomerAdminHandler{Users: env.users, Sessions: env.sessions}

	existing, _ := env.addUser(t, models.RoleCustomer)
	_, adminToken := env.addUser(t, models.RoleAdmin)

	req := authedRequest(http.MethodPost, "/api/v1/admin/customers", adminToken, createCustomerRequest{
		Name:     "Duplicate",
		Email:    existing.Email,
		Password: "customer123",
	})
	rec := httptest.NewRecorder()

	handler.Collection(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d got %d", http.StatusConflict, rec.Code)
	}
}

func TestCustomerAdminList(t *testing.T) {
	env := newTestEnv()
	handler := CustomerAdminHandler{Users: env.users, Sessions: env.sessions}

	env.addUser(t, models.RoleCustomer)
	env.addUser(t, models.RoleCustomer)
	_, adminToken := env.addUser(t, models.RoleAdmin)

	req := authedRequest(http.MethodGet, "/api/v1/admin/customers", adminToken, nil)
	rec := httptest.NewRecorder()

	handler.Collection(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp []userResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(resp))
	}
	for _, customer := range resp {
		if customer.Role != models.RoleCustomer {
			t.Fatalf("admin account leaked into customer listing: %+v", customer)
		}
	}
}

func TestCustomerAdminDelete(t *testing.T) {
	env := newTestEnv()
	handler := CustomerAdminHandler{Users: env.users, Sessions: env.sessions}

	customer, _ := env.addUser(t, models.RoleCustomer)
	_, adminToken := env.addUser(t, models.RoleAdmin)

	req := authedRequest(http.MethodPost, "/api/v1/admin/customers/delete", adminToken, map[string]string{"id": customer.ID})
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	if _, err := env.users.FindByID(context.Background(), customer.ID); err == nil {
		t.Fatal("expected the customer to be removed")
	}
}

func TestCustomerAdminDeleteRefusesSelf(t *testing.T) {
	env := newTestEnv()
	handler := CustomerAdminHandler{Users: env.users, Sessions: env.sessions}

	admin, adminToken := env.addUser(t, models.RoleAdmin)

	req := authedRequest(http.MethodPost, "/api/v1/admin/customers/delete", adminToken, map[string]string{"id": admin.ID})
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestCustomerAdminDeleteRefusesAdminTarget(t *testing.T) {
	env := newTestEnv()
	handler := CustomerAdminHandler{Users: env.users, Sessions: env.sessions}

	otherAdmin, _ := env.addUser(t, models.RoleAdmin)
	_, adminToken := env.addUser(t, models.RoleAdmin)

	req := authedRequest(http.MethodPost, "/api/v1/admin/customers/delete", adminToken, map[string]string{"id": otherAdmin.ID})
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}
