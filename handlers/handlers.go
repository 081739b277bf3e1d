package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tradeshield/config"
	"tradeshield/models"
	"tradeshield/utils"
	"tradeshield/verifier"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Status    int         `json:"status"`
	Error     string      `json:"error"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// sendError writes err as both error and message, the storefront reads message.
func sendError(w http.ResponseWriter, status int, err string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Status:    status,
		Error:     err,
		Message:   err,
		Details:   details,
		Timestamp: time.Now(),
	})
}

func sendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// decodeAndValidate reads a JSON body into dst and runs struct validation,
// writing the error response itself. It reports whether the handler may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return false
	}
	if err := utils.ValidateStruct(dst); err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", utils.FormatValidationError(err))
		return false
	}
	return true
}

type Handlers struct {
	db       *gorm.DB
	config   *config.Config
	verifier verifier.Verifier
	otp      OTPSender
	log      *zap.Logger
}

func NewHandlers(db *gorm.DB, cfg *config.Config, v verifier.Verifier, log *zap.Logger) *Handlers {
	log = log.Named("handlers")
	return &Handlers{
		db:       db,
		config:   cfg,
		verifier: v,
		otp:      &logOTPSender{log: log.Named("otp")},
		log:      log,
	}
}

// SetOTPSender replaces how one-time login codes reach the user.
func (h *Handlers) SetOTPSender(s OTPSender) {
	h.otp = s
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(r.Context()) != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	sendJSON(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now(),
		"service":   "TradeShield",
		"version":   "1.0.0",
	})
}

func (h *Handlers) logAudit(userID *uint, action, resource, details string, r *http.Request) {
	audit := models.AuditLog{
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		Details:   details,
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
	if err := h.db.Create(&audit).Error; err != nil {
		h.log.Error("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func pagination(r *http.Request, defaultLimit int) (limit, offset int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = defaultLimit
	}
	return limit, (page - 1) * limit
}

func vendorIDFromPath(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["vendorId"], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
