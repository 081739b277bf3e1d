package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"tradeshield/middleware"
	"tradeshield/models"
	"tradeshield/utils"
)

func (h *Handlers) ListTaxProfiles(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.StatusPending
	}
	switch status {
	case models.StatusPending, models.StatusVerified, models.StatusRejected:
	default:
		sendError(w, http.StatusBadRequest, "Invalid status filter", nil)
		return
	}

	limit, offset := pagination(r, 20)
	var profiles []models.VendorTaxProfile
	if err := h.db.Where("status = ?", status).
		Order("updated_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&profiles).Error; err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to fetch tax profiles", nil)
		return
	}

	sendJSON(w, http.StatusOK, profiles)
}

// ReviewTaxProfile lets an admin confirm or reject a vendor's tax profile.
func (h *Handlers) ReviewTaxProfile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	vendorID, ok := vendorIDFromPath(r)
	if !ok {
		sendError(w, http.StatusBadRequest, "Invalid vendor ID", nil)
		return
	}

	var req models.TaxReviewRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Status == models.StatusRejected && req.Reason == "" {
		sendError(w, http.StatusBadRequest, "Validation failed", map[string]string{
			"reason": "reason is required when rejecting",
		})
		return
	}

	var profile models.VendorTaxProfile
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("vendor_id = ?", vendorID).First(&profile).Error; err != nil {
			return err
		}

		now := time.Now()
		profile.Status = req.Status
		profile.ReviewedBy = &claims.UserID
		if req.Status == models.StatusVerified {
			profile.PANStatus = models.StatusVerified
			profile.GSTStatus = models.StatusVerified
			profile.VerifiedAt = &now
			profile.RejectionReason = ""
		} else {
			profile.VerifiedAt = nil
			profile.RejectionReason = req.Reason
		}
		return tx.Save(&profile).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			sendError(w, http.StatusNotFound, "Tax profile not found", nil)
			return
		}
		h.log.Error("failed to review tax profile", zap.Uint("vendor_id", vendorID), zap.Error(err))
		sendError(w, http.StatusInternalServerError, "Failed to update tax profile", nil)
		return
	}

	h.logAudit(&claims.UserID, "REVIEW", "TAX_PROFILE", fmt.Sprintf("Tax profile of vendor %d marked %s", vendorID, req.Status), r)

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Tax profile review saved",
		"profile": profile,
	})
}

func (h *Handlers) GetAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50)

	query := h.db.Order("created_at DESC, id DESC")
	if resource := r.URL.Query().Get("resource"); resource != "" {
		query = query.Where("resource = ?", resource)
	}

	var auditLogs []models.AuditLog
	if err := query.Limit(limit).Offset(offset).Find(&auditLogs).Error; err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to fetch audit logs", nil)
		return
	}

	sendJSON(w, http.StatusOK, auditLogs)
}

func (h *Handlers) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 20)

	query := h.db.Order("created_at DESC")
	if role := r.URL.Query().Get("role"); role != "" {
		if role != utils.RoleUser && role != utils.RoleVendor && role != utils.RoleAdmin {
			sendError(w, http.StatusBadRequest, "Invalid role filter", nil)
			return
		}
		query = query.Where("role = ?", role)
	}

	var users []models.User
	if err := query.Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to fetch users", nil)
		return
	}

	sendJSON(w, http.StatusOK, users)
}
