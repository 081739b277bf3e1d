package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Email     string         `json:"email" gorm:"uniqueIndex;not null"`
	Phone     string         `json:"phone" gorm:"uniqueIndex;not null"`
	Password  string         `json:"-" gorm:"not null"`
	FirstName string         `json:"firstName" gorm:"not null"`
	LastName  string         `json:"lastName" gorm:"not null"`
	Role      string         `json:"role" gorm:"default:user;index"` // user, vendor, admin
	IsActive  bool           `json:"isActive" gorm:"default:true"`

	EmailVerified bool       `json:"emailVerified"`
	OTPHash       string     `json:"-" gorm:"column:otp_hash"`
	OTPExpiresAt  *time.Time `json:"-" gorm:"column:otp_expires_at"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,min=10,max=15"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName" validate:"required,min=2"`
	LastName  string `json:"lastName" validate:"required,min=2"`
	Role      string `json:"role" validate:"omitempty,oneof=user vendor"`
	AdminCode string `json:"adminCode,omitempty"`
}

// LoginRequest identifies the user by email or phone. Without a password a
// one-time code is sent instead.
type LoginRequest struct {
	EmailOrPhone string `json:"emailOrPhone" validate:"required"`
	Password     string `json:"password"`
}

type VerifyOTPRequest struct {
	EmailOrPhone string `json:"emailOrPhone" validate:"required"`
	OTP          string `json:"otp" validate:"required,len=6,numeric"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
