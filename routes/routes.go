package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"tradeshield/handlers"
	"tradeshield/middleware"
)

type Options struct {
	CORSOrigin  string
	RateLimiter *middleware.RateLimiter
}

func SetupRouter(h *handlers.Handlers, log *zap.Logger, opts Options) *mux.Router {
	auth := middleware.NewAuth(log)

	r := mux.NewRouter()
	r.Use(middleware.Recover(log))
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(opts.CORSOrigin))
	if opts.RateLimiter != nil {
		r.Use(opts.RateLimiter.Middleware)
	}

	api := r.PathPrefix("/api").Subrouter()
	// preflight requests are answered by the CORS middleware
	api.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	api.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	api.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/verify", h.VerifyOTP).Methods(http.MethodPost)
	api.HandleFunc("/tax/check-format", h.CheckFormat).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(auth.JWTAuth)

	protected.HandleFunc("/user/profile", h.GetProfile).Methods(http.MethodGet)
	protected.HandleFunc("/user/profile", h.UpdateProfile).Methods(http.MethodPut)

	protected.HandleFunc("/tax/verify-pan", h.VerifyPAN).Methods(http.MethodPost)
	protected.HandleFunc("/tax/verify-gst", h.VerifyGST).Methods(http.MethodPost)
	protected.HandleFunc("/tax/verify-vendor-tax", h.VerifyVendorTax).Methods(http.MethodPost)
	protected.HandleFunc("/tax/vendor/{vendorId:[0-9]+}/profile", h.GetVendorTaxProfile).Methods(http.MethodGet)
	protected.HandleFunc("/tax/vendor/{vendorId:[0-9]+}/profile", h.UpdateVendorTaxProfile).Methods(http.MethodPut)
	protected.HandleFunc("/tax/verifications", h.ListVerifications).Methods(http.MethodGet)

	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(auth.AdminAuth)
	admin.HandleFunc("/tax/profiles", h.ListTaxProfiles).Methods(http.MethodGet)
	admin.HandleFunc("/tax/profiles/{vendorId:[0-9]+}/review", h.ReviewTaxProfile).Methods(http.MethodPost)
	admin.HandleFunc("/audit-logs", h.GetAuditLogs).Methods(http.MethodGet)
	admin.HandleFunc("/users", h.GetAllUsers).Methods(http.MethodGet)

	return r
}
