package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusRejected = "rejected"
)

// VendorTaxProfile holds a vendor's PAN and GSTIN. The identifiers are stored
// encrypted; the fingerprints allow duplicate detection without decrypting.
type VendorTaxProfile struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	VendorID        uint           `json:"vendorId" gorm:"uniqueIndex;not null"`
	PAN             string         `json:"-" gorm:"not null"`
	GST             string         `json:"-"`
	PANFingerprint  string         `json:"-" gorm:"index"`
	GSTFingerprint  string         `json:"-" gorm:"uniqueIndex;not null"`
	PANMasked       string         `json:"panNumber"`
	GSTMasked       string         `json:"gstNumber,omitempty"`
	LegalName       string         `json:"legalName" gorm:"not null"`
	BusinessType    string         `json:"businessType"`
	StateCode       string         `json:"stateCode,omitempty"`
	PANStatus       string         `json:"panStatus" gorm:"default:pending"`
	GSTStatus       string         `json:"gstStatus" gorm:"default:pending"`
	Matching        bool           `json:"matching"`
	Status          string         `json:"status" gorm:"default:pending;index"` // pending, verified, rejected
	RejectionReason string         `json:"rejectionReason,omitempty"`
	ReviewedBy      *uint          `json:"reviewedBy,omitempty"`
	VerifiedAt      *time.Time     `json:"verifiedAt,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}

// TaxVerification records one verification attempt of a single identifier.
type TaxVerification struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Reference      string    `json:"reference" gorm:"uniqueIndex;not null"`
	UserID         uint      `json:"userId" gorm:"index;not null"`
	VendorID       *uint     `json:"vendorId,omitempty" gorm:"index"`
	Kind           string    `json:"kind" gorm:"not null"` // pan, gst
	NumberMasked   string    `json:"number"`
	Verified       bool      `json:"verified"`
	Status         string    `json:"status"`
	Message        string    `json:"message,omitempty"`
	RegisteredName string    `json:"registeredName,omitempty"`
	Source         string    `json:"source"` // local, remote
	CreatedAt      time.Time `json:"createdAt"`
}

type VerifyPANRequest struct {
	PanNumber string `json:"panNumber" validate:"required"`
}

type VerifyGSTRequest struct {
	GstNumber string `json:"gstNumber" validate:"required"`
}

type FormatCheckRequest struct {
	PanNumber string `json:"panNumber"`
	GstNumber string `json:"gstNumber"`
}

type VendorTaxRequest struct {
	VendorID  uint   `json:"vendorId" validate:"required,gt=0"`
	PanNumber string `json:"panNumber" validate:"required,pan"`
	GstNumber string `json:"gstNumber" validate:"required,gstin"`
	LegalName string `json:"legalName" validate:"required,min=2,max=200"`
}

type TaxProfileUpdateRequest struct {
	PanNumber    string `json:"panNumber" validate:"omitempty,pan"`
	GstNumber    string `json:"gstNumber" validate:"omitempty,gstin"`
	LegalName    string `json:"legalName" validate:"omitempty,min=2,max=200"`
	BusinessType string `json:"businessType" validate:"omitempty,max=100"`
}

type TaxReviewRequest struct {
	Status string `json:"status" validate:"required,oneof=verified rejected"`
	Reason string `json:"reason"`
}
