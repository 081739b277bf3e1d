package handlers

import (
	"context"

	"go.uber.org/zap"

	"tradeshield/models"
)

// OTPSender delivers a one-time login code to a user.
type OTPSender interface {
	SendOTP(ctx context.Context, user *models.User, code string) error
}

// logOTPSender writes codes to the debug log. It stands in until an email or
// SMS gateway is configured.
type logOTPSender struct {
	log *zap.Logger
}

func (s *logOTPSender) SendOTP(_ context.Context, user *models.User, code string) error {
	s.log.Debug("one-time code",
		zap.Uint("user_id", user.ID),
		zap.String("email", user.Email),
		zap.String("otp", code))
	return nil
}
