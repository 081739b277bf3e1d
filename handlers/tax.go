package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tradeshield/middleware"
	"tradeshield/models"
	"tradeshield/taxid"
	"tradeshield/utils"
	"tradeshield/verifier"
)

var (
	errVendorForbidden = errors.New("not allowed to manage this vendor")
	errVendorNotFound  = errors.New("vendor not found")
	errGSTInUse        = errors.New("GST number already registered to another vendor")
	errProfileConflict = errors.New("tax profile conflicts with an existing registration")
)

// CheckFormat gives immediate form feedback: both formats and whether the PAN
// is the one embedded in the GSTIN. Nothing is stored.
func (h *Handlers) CheckFormat(w http.ResponseWriter, r *http.Request) {
	var req models.FormatCheckRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	sendJSON(w, http.StatusOK, taxid.Check(taxid.Normalize(req.PanNumber), taxid.Normalize(req.GstNumber)))
}

func (h *Handlers) VerifyPAN(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
		return
	}

	var req models.VerifyPANRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.verifier.VerifyPAN(r.Context(), req.PanNumber)
	h.respondVerification(w, r, claims.UserID, verifier.KindPAN, taxid.Normalize(req.PanNumber), res, err)
}

func (h *Handlers) VerifyGST(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
		return
	}

	var req models.VerifyGSTRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.verifier.VerifyGST(r.Context(), req.GstNumber)
	h.respondVerification(w, r, claims.UserID, verifier.KindGST, taxid.Normalize(req.GstNumber), res, err)
}

func (h *Handlers) respondVerification(w http.ResponseWriter, r *http.Request, userID uint, kind, number string, res *verifier.Result, err error) {
	label := "PAN"
	if kind == verifier.KindGST {
		label = "GST"
	}

	if err != nil {
		if errors.Is(err, verifier.ErrNotFound) {
			h.recordVerification(userID, nil, &verifier.Result{
				Kind: kind, Number: number, Status: verifier.StatusNotFound, Source: verifier.SourceRemote,
			})
		}
		status, msg := verificationErrorStatus(err, label)
		sendError(w, status, msg, nil)
		return
	}

	ref := h.recordVerification(userID, nil, res)

	if !res.Verified {
		status := http.StatusUnprocessableEntity
		msg := label + " verification failed"
		if res.Status == verifier.StatusInvalidFormat {
			status = http.StatusBadRequest
			msg = "Invalid " + label + " format"
		}
		sendError(w, status, msg, map[string]interface{}{
			"reference": ref,
			"result":    res,
		})
		return
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message":   label + " number is valid and verified",
		"reference": ref,
		"result":    res,
	})
}

func verificationErrorStatus(err error, label string) (int, string) {
	switch {
	case errors.Is(err, verifier.ErrNotFound):
		return http.StatusNotFound, label + " number is not registered"
	case errors.Is(err, verifier.ErrUnavailable):
		return http.StatusServiceUnavailable, "Tax verification service unavailable, try again later"
	default:
		return http.StatusBadGateway, label + " verification failed"
	}
}

// recordVerification stores the attempt and returns its reference. A storage
// failure is logged and does not fail the request.
func (h *Handlers) recordVerification(userID uint, vendorID *uint, res *verifier.Result) string {
	rec := models.TaxVerification{
		Reference:      uuid.NewString(),
		UserID:         userID,
		VendorID:       vendorID,
		Kind:           res.Kind,
		NumberMasked:   utils.MaskTaxID(res.Number),
		Verified:       res.Verified,
		Status:         res.Status,
		Message:        res.Message,
		RegisteredName: res.RegisteredName,
		Source:         res.Source,
	}
	if err := h.db.Create(&rec).Error; err != nil {
		h.log.Error("failed to record verification", zap.String("kind", res.Kind), zap.Error(err))
	}
	return rec.Reference
}

// authorizeVendor allows the vendor itself and admins. It returns the
// caller's claims and the vendor user.
func (h *Handlers) authorizeVendor(r *http.Request, vendorID uint) (*utils.Claims, *models.User, error) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		return nil, nil, errVendorForbidden
	}
	if claims.UserID != vendorID && !claims.IsAdmin() {
		return claims, nil, errVendorForbidden
	}

	var vendor models.User
	if err := h.db.Where("id = ? AND role = ?", vendorID, utils.RoleVendor).First(&vendor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return claims, nil, errVendorNotFound
		}
		return claims, nil, err
	}
	return claims, &vendor, nil
}

func sendVendorError(w http.ResponseWriter, claims *utils.Claims, err error) {
	switch {
	case claims == nil:
		sendError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
	case errors.Is(err, errVendorForbidden):
		sendError(w, http.StatusForbidden, "You can only manage your own tax profile", nil)
	case errors.Is(err, errVendorNotFound):
		sendError(w, http.StatusNotFound, "Vendor not found", nil)
	default:
		sendError(w, http.StatusInternalServerError, "Database error", nil)
	}
}

// gstInUse reports whether another vendor already registered this GSTIN.
func gstInUse(db *gorm.DB, vendorID uint, fingerprint string) (bool, error) {
	var count int64
	err := db.Model(&models.VendorTaxProfile{}).
		Where("gst_fingerprint = ? AND vendor_id <> ?", fingerprint, vendorID).
		Count(&count).Error
	return count > 0, err
}

// saveProfile writes p inside tx, re-checking GSTIN ownership first. The
// unique index on gst_fingerprint backs the check when writers race.
func saveProfile(tx *gorm.DB, p *models.VendorTaxProfile) error {
	used, err := gstInUse(tx, p.VendorID, p.GSTFingerprint)
	if err != nil {
		return err
	}
	if used {
		return errGSTInUse
	}
	if err := tx.Save(p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errProfileConflict
		}
		return err
	}
	return nil
}

func sendGSTInUse(w http.ResponseWriter) {
	sendError(w, http.StatusConflict, "GST number is already registered to another vendor", nil)
}

// sendSaveConflict answers a saveProfile error and reports whether it did.
func sendSaveConflict(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, errGSTInUse):
		sendGSTInUse(w)
	case errors.Is(err, errProfileConflict):
		sendError(w, http.StatusConflict, "Tax profile was registered concurrently, try again", nil)
	default:
		return false
	}
	return true
}

// sealIdentifiers encrypts pan and gst into p and refreshes the derived fields.
func sealIdentifiers(p *models.VendorTaxProfile, pan, gst string) error {
	var err error
	if p.PAN, err = utils.EncryptSensitiveData(pan); err != nil {
		return fmt.Errorf("encrypt PAN: %w", err)
	}
	if p.GST, err = utils.EncryptSensitiveData(gst); err != nil {
		return fmt.Errorf("encrypt GST: %w", err)
	}
	if p.PANFingerprint, err = utils.Fingerprint(pan); err != nil {
		return err
	}
	if p.GSTFingerprint, err = utils.Fingerprint(gst); err != nil {
		return err
	}
	p.PANMasked = utils.MaskTaxID(pan)
	p.GSTMasked = utils.MaskTaxID(gst)
	p.StateCode = taxid.StateCode(gst)
	p.Matching = taxid.Matches(pan, gst)
	return nil
}

func statusOf(verified bool) string {
	if verified {
		return models.StatusVerified
	}
	return models.StatusRejected
}

// VerifyVendorTax verifies a vendor's PAN and GSTIN together and saves them
// as the vendor's tax profile.
func (h *Handlers) VerifyVendorTax(w http.ResponseWriter, r *http.Request) {
	var req models.VendorTaxRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	pan := taxid.Normalize(req.PanNumber)
	gst := taxid.Normalize(req.GstNumber)

	claims, vendor, err := h.authorizeVendor(r, req.VendorID)
	if err != nil {
		sendVendorError(w, claims, err)
		return
	}

	if !taxid.Matches(pan, gst) {
		sendError(w, http.StatusUnprocessableEntity, "The PAN in your GST number does not match the provided PAN", map[string]string{
			"embeddedPan": utils.MaskTaxID(taxid.ExtractPAN(gst)),
		})
		return
	}

	fp, err := utils.Fingerprint(gst)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to process GST number", nil)
		return
	}
	if used, err := gstInUse(h.db, vendor.ID, fp); err != nil {
		sendError(w, http.StatusInternalServerError, "Database error", nil)
		return
	} else if used {
		sendGSTInUse(w)
		return
	}

	panRes, err := h.verifier.VerifyPAN(r.Context(), pan)
	if err != nil {
		status, msg := verificationErrorStatus(err, "PAN")
		sendError(w, status, msg, nil)
		return
	}
	gstRes, err := h.verifier.VerifyGST(r.Context(), gst)
	if err != nil {
		status, msg := verificationErrorStatus(err, "GST")
		sendError(w, status, msg, nil)
		return
	}
	panRef := h.recordVerification(claims.UserID, &vendor.ID, panRes)
	gstRef := h.recordVerification(claims.UserID, &vendor.ID, gstRes)

	if !panRes.Verified || !gstRes.Verified {
		sendError(w, http.StatusUnprocessableEntity, "Tax verification failed", map[string]interface{}{
			"pan": panRes,
			"gst": gstRes,
		})
		return
	}

	var profile models.VendorTaxProfile
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("vendor_id = ?", vendor.ID).First(&profile).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		profile.VendorID = vendor.ID
		profile.LegalName = utils.SanitizeString(req.LegalName)
		if err := sealIdentifiers(&profile, pan, gst); err != nil {
			return err
		}
		profile.PANStatus = statusOf(panRes.Verified)
		profile.GSTStatus = statusOf(gstRes.Verified)
		profile.RejectionReason = ""
		profile.ReviewedBy = nil

		// format-only verification still needs an admin to confirm the identifiers
		if panRes.Source == verifier.SourceRemote && gstRes.Source == verifier.SourceRemote {
			now := time.Now()
			profile.Status = models.StatusVerified
			profile.VerifiedAt = &now
		} else {
			profile.Status = models.StatusPending
			profile.VerifiedAt = nil
		}
		return saveProfile(tx, &profile)
	})
	if sendSaveConflict(w, err) {
		return
	}
	if err != nil {
		h.log.Error("failed to save tax profile", zap.Uint("vendor_id", vendor.ID), zap.Error(err))
		sendError(w, http.StatusInternalServerError, "Failed to save tax profile", nil)
		return
	}

	h.logAudit(&claims.UserID, "VERIFY", "TAX_PROFILE", fmt.Sprintf("Tax data verified for vendor %d, status %s", vendor.ID, profile.Status), r)

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Tax information verified and saved",
		"profile": profile,
		"verifications": map[string]string{
			"pan": panRef,
			"gst": gstRef,
		},
	})
}

func (h *Handlers) GetVendorTaxProfile(w http.ResponseWriter, r *http.Request) {
	vendorID, ok := vendorIDFromPath(r)
	if !ok {
		sendError(w, http.StatusBadRequest, "Invalid vendor ID", nil)
		return
	}

	claims, _, err := h.authorizeVendor(r, vendorID)
	if err != nil {
		sendVendorError(w, claims, err)
		return
	}

	var profile models.VendorTaxProfile
	if err := h.db.Where("vendor_id = ?", vendorID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			sendError(w, http.StatusNotFound, "Tax profile not found", nil)
			return
		}
		sendError(w, http.StatusInternalServerError, "Database error", nil)
		return
	}

	if r.URL.Query().Get("reveal") == "true" && claims.IsAdmin() {
		pan, err := utils.DecryptSensitiveData(profile.PAN)
		if err != nil {
			sendError(w, http.StatusInternalServerError, "Failed to decrypt PAN", nil)
			return
		}
		gst, err := utils.DecryptSensitiveData(profile.GST)
		if err != nil {
			sendError(w, http.StatusInternalServerError, "Failed to decrypt GST", nil)
			return
		}
		profile.PANMasked, profile.GSTMasked = pan, gst
		h.logAudit(&claims.UserID, "REVEAL", "TAX_PROFILE", fmt.Sprintf("Tax identifiers revealed for vendor %d", vendorID), r)
	}

	sendJSON(w, http.StatusOK, profile)
}

// UpdateVendorTaxProfile changes profile fields. A new PAN or GSTIN sends the
// profile back to pending verification.
func (h *Handlers) UpdateVendorTaxProfile(w http.ResponseWriter, r *http.Request) {
	vendorID, ok := vendorIDFromPath(r)
	if !ok {
		sendError(w, http.StatusBadRequest, "Invalid vendor ID", nil)
		return
	}

	var req models.TaxProfileUpdateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	claims, _, err := h.authorizeVendor(r, vendorID)
	if err != nil {
		sendVendorError(w, claims, err)
		return
	}

	var profile models.VendorTaxProfile
	if err := h.db.Where("vendor_id = ?", vendorID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			sendError(w, http.StatusNotFound, "Tax profile not found", nil)
			return
		}
		sendError(w, http.StatusInternalServerError, "Database error", nil)
		return
	}

	pan, err := utils.DecryptSensitiveData(profile.PAN)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to decrypt PAN", nil)
		return
	}
	gst, err := utils.DecryptSensitiveData(profile.GST)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to decrypt GST", nil)
		return
	}

	newPAN, newGST := pan, gst
	if req.PanNumber != "" {
		newPAN = taxid.Normalize(req.PanNumber)
	}
	if req.GstNumber != "" {
		newGST = taxid.Normalize(req.GstNumber)
	}

	if newPAN != pan || newGST != gst {
		if !taxid.Matches(newPAN, newGST) {
			sendError(w, http.StatusUnprocessableEntity, "The PAN in your GST number does not match the provided PAN", nil)
			return
		}
		if err := sealIdentifiers(&profile, newPAN, newGST); err != nil {
			sendError(w, http.StatusInternalServerError, "Failed to secure tax identifiers", nil)
			return
		}
		if newPAN != pan {
			profile.PANStatus = models.StatusPending
		}
		if newGST != gst {
			profile.GSTStatus = models.StatusPending
		}
		profile.Status = models.StatusPending
		profile.VerifiedAt = nil
		profile.ReviewedBy = nil
		profile.RejectionReason = ""
	}

	if req.LegalName != "" {
		profile.LegalName = utils.SanitizeString(req.LegalName)
	}
	if req.BusinessType != "" {
		profile.BusinessType = utils.SanitizeString(req.BusinessType)
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		return saveProfile(tx, &profile)
	})
	if sendSaveConflict(w, err) {
		return
	}
	if err != nil {
		h.log.Error("failed to update tax profile", zap.Uint("vendor_id", vendorID), zap.Error(err))
		sendError(w, http.StatusInternalServerError, "Failed to update tax profile", nil)
		return
	}

	h.logAudit(&claims.UserID, "UPDATE", "TAX_PROFILE", fmt.Sprintf("Tax profile updated for vendor %d", vendorID), r)

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Tax profile updated",
		"profile": profile,
	})
}

func (h *Handlers) ListVerifications(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
		return
	}

	limit, offset := pagination(r, 20)
	var records []models.TaxVerification
	if err := h.db.Where("user_id = ?", claims.UserID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error; err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to fetch verifications", nil)
		return
	}

	sendJSON(w, http.StatusOK, records)
}
