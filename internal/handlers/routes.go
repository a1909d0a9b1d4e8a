package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Limiter: deps.AuthLimiter}
	customer := CustomerHandler{Access: deps.Access, Sessions: deps.Sessions, Users: deps.Users, Limiter: deps.AuthLimiter}
	adminRequests := AdminRequestHandler{Access: deps.Access, Sessions: deps.Sessions, Users: deps.Users}
	videos := VideoHandler{Catalog: deps.Catalog, Sessions: deps.Sessions, Users: deps.Users}
	customers := CustomerAdminHandler{Users: deps.Users, Sessions: deps.Sessions}
	uploads := UploadHandler{Storage: deps.Uploads, Sessions: deps.Sessions, Users: deps.Users}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/v1/auth/login", auth.Login)
	mux.HandleFunc("/api/v1/auth/signup", auth.SignUp)
	mux.HandleFunc("/api/v1/auth/refresh", auth.Refresh)
	mux.HandleFunc("/api/v1/customer/requests", customer.Requests)
	mux.HandleFunc("/api/v1/customer/videos", customer.ActiveVideos)
	mux.HandleFunc("/api/v1/customer/available-videos", customer.AvailableVideos)
	mux.HandleFunc("/api/v1/admin/requests", adminRequests.List)
	mux.HandleFunc("/api/v1/admin/requests/approve", adminRequests.Approve)
	mux.HandleFunc("/api/v1/admin/requests/reject", adminRequests.Reject)
	mux.HandleFunc("/api/v1/admin/reconcile", adminRequests.Reconcile)
	mux.HandleFunc("/api/v1/admin/videos", videos.Collection)
	mux.HandleFunc("/api/v1/admin/videos/update", videos.Update)
	mux.HandleFunc("/api/v1/admin/videos/delete", videos.Delete)
	mux.HandleFunc("/api/v1/admin/customers", customers.Collection)
	mux.HandleFunc("/api/v1/admin/customers/delete", customers.Delete)
	mux.HandleFunc("/api/v1/admin/uploads", uploads.Upload)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users       UserStore
	Sessions    SessionManager
	Catalog     VideoCatalog
	Access      AccessService
	Uploads     UploadStorage
	AuthLimiter RateLimiter
}
