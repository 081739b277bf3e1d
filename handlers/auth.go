package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"tradeshield/models"
	"tradeshield/utils"
)

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(utils.SanitizeString(req.Email))

	var existingUser models.User
	if err := h.db.Where("email = ? OR phone = ?", req.Email, req.Phone).First(&existingUser).Error; err == nil {
		sendError(w, http.StatusConflict, "User already exists", nil)
		return
	}

	role := req.Role
	if role == "" {
		role = utils.RoleUser
	}
	if req.AdminCode != "" {
		if req.AdminCode != h.config.AdminCode {
			h.log.Warn("invalid admin code on registration", zap.String("email", req.Email))
			sendError(w, http.StatusBadRequest, "Invalid admin code", nil)
			return
		}
		role = utils.RoleAdmin
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to hash password", nil)
		return
	}

	user := models.User{
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  hashedPassword,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      role,
		IsActive:  true,
	}
	if err := h.db.Create(&user).Error; err != nil {
		h.log.Error("failed to create user", zap.String("email", req.Email), zap.Error(err))
		sendError(w, http.StatusInternalServerError, "Failed to create user", nil)
		return
	}

	h.log.Info("user registered", zap.Uint("user_id", user.ID), zap.String("role", role))
	h.logAudit(&user.ID, "CREATE", "USER", "User registered as "+role, r)

	user.Password = ""
	sendJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully",
		"user":    user,
	})
}

var errBadIdentifier = errors.New("emailOrPhone must be an email address or phone number")

// findByEmailOrPhone looks a user up by whichever identifier was given.
func (h *Handlers) findByEmailOrPhone(id string) (*models.User, error) {
	id = utils.SanitizeString(id)
	query := h.db
	switch {
	case strings.Contains(id, "@"):
		if !utils.ValidateEmail(id) {
			return nil, errBadIdentifier
		}
		query = query.Where("email = ?", strings.ToLower(id))
	case utils.ValidatePhone(id):
		query = query.Where("phone = ?", id)
	default:
		return nil, errBadIdentifier
	}

	var user models.User
	if err := query.First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// lookupLogin resolves the login identifier and writes the error response when
// it cannot. Unknown users and bad passwords share one message.
func (h *Handlers) lookupLogin(w http.ResponseWriter, id string) (*models.User, bool) {
	user, err := h.findByEmailOrPhone(id)
	switch {
	case err == nil:
	case errors.Is(err, errBadIdentifier):
		sendError(w, http.StatusBadRequest, "Validation failed", map[string]string{"emailOrPhone": err.Error()})
		return nil, false
	case errors.Is(err, gorm.ErrRecordNotFound):
		sendError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return nil, false
	default:
		h.log.Error("login lookup failed", zap.Error(err))
		sendError(w, http.StatusInternalServerError, "Database error", nil)
		return nil, false
	}

	if !user.IsActive {
		sendError(w, http.StatusForbidden, "Account is deactivated", nil)
		return nil, false
	}
	return user, true
}

// Login signs a user in with a password, or sends a one-time code when the
// password is omitted.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, ok := h.lookupLogin(w, req.EmailOrPhone)
	if !ok {
		return
	}

	if req.Password == "" {
		h.issueOTP(w, r, user)
		return
	}

	if !utils.CheckPasswordHash(req.Password, user.Password) {
		h.log.Info("invalid password", zap.Uint("user_id", user.ID))
		sendError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	h.signIn(w, r, user, "User logged in")
}

func (h *Handlers) issueOTP(w http.ResponseWriter, r *http.Request, user *models.User) {
	code, err := utils.GenerateOTP()
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to generate OTP", nil)
		return
	}
	hash, err := utils.HashPassword(code)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to generate OTP", nil)
		return
	}

	expires := time.Now().Add(h.config.OTPTTL)
	if err := h.db.Model(user).Updates(map[string]interface{}{
		"otp_hash":       hash,
		"otp_expires_at": expires,
	}).Error; err != nil {
		h.log.Error("failed to store OTP", zap.Uint("user_id", user.ID), zap.Error(err))
		sendError(w, http.StatusInternalServerError, "Database error", nil)
		return
	}

	if err := h.otp.SendOTP(r.Context(), user, code); err != nil {
		h.log.Error("failed to send OTP", zap.Uint("user_id", user.ID), zap.Error(err))
		sendError(w, http.StatusBadGateway, "Failed to send OTP, please try again", nil)
		return
	}

	h.log.Info("otp issued", zap.Uint("user_id", user.ID), zap.Time("expires_at", expires))
	h.logAudit(&user.ID, "OTP", "AUTH", "One-time login code issued", r)
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "OTP sent successfully",
		"expiresAt": expires,
	})
}

// VerifyOTP exchanges a valid one-time code for a token. A code works once.
func (h *Handlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyOTPRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, ok := h.lookupLogin(w, req.EmailOrPhone)
	if !ok {
		return
	}

	if user.OTPHash == "" || user.OTPExpiresAt == nil || time.Now().After(*user.OTPExpiresAt) ||
		!utils.CheckPasswordHash(req.OTP, user.OTPHash) {
		h.log.Info("invalid or expired OTP", zap.Uint("user_id", user.ID))
		sendError(w, http.StatusUnauthorized, "Invalid or expired OTP", nil)
		return
	}

	if err := h.db.Model(user).Updates(map[string]interface{}{
		"otp_hash":       "",
		"otp_expires_at": nil,
		"email_verified": true,
	}).Error; err != nil {
		h.log.Error("failed to clear OTP", zap.Uint("user_id", user.ID), zap.Error(err))
		sendError(w, http.StatusInternalServerError, "Database error", nil)
		return
	}
	user.EmailVerified = true

	h.signIn(w, r, user, "User logged in with OTP")
}

func (h *Handlers) signIn(w http.ResponseWriter, r *http.Request, user *models.User, audit string) {
	token, err := utils.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		h.log.Error("failed to generate token", zap.Uint("user_id", user.ID), zap.Error(err))
		sendError(w, http.StatusInternalServerError, "Failed to generate token", nil)
		return
	}

	h.logAudit(&user.ID, "LOGIN", "AUTH", audit, r)

	user.Password = ""
	sendJSON(w, http.StatusOK, models.LoginResponse{Token: token, User: *user})
}
