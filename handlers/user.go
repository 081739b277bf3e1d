package handlers

import (
	"errors"
	"net/http"

	"gorm.io/gorm"

	"tradeshield/middleware"
	"tradeshield/models"
	"tradeshield/utils"
)

type profileUpdateRequest struct {
	FirstName string `json:"firstName" validate:"omitempty,min=2"`
	LastName  string `json:"lastName" validate:"omitempty,min=2"`
	Phone     string `json:"phone" validate:"omitempty,min=10,max=15"`
}

func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var user models.User
	if err := h.db.First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			sendError(w, http.StatusNotFound, "User not found", nil)
			return
		}
		sendError(w, http.StatusInternalServerError, "Database error", nil)
		return
	}

	sendJSON(w, http.StatusOK, user)
}

func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req profileUpdateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var user models.User
	if err := h.db.First(&user, claims.UserID).Error; err != nil {
		sendError(w, http.StatusNotFound, "User not found", nil)
		return
	}

	if req.FirstName != "" {
		user.FirstName = utils.SanitizeString(req.FirstName)
	}
	if req.LastName != "" {
		user.LastName = utils.SanitizeString(req.LastName)
	}
	if req.Phone != "" {
		if !utils.ValidatePhone(req.Phone) {
			sendError(w, http.StatusBadRequest, "Invalid phone number", nil)
			return
		}
		user.Phone = req.Phone
	}

	if err := h.db.Save(&user).Error; err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to update profile", nil)
		return
	}

	h.logAudit(&user.ID, "UPDATE", "USER", "Profile updated", r)
	sendJSON(w, http.StatusOK, user)
}
