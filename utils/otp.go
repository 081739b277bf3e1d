package utils

import (
	"crypto/rand"
	"math/big"
)

const otpDigits = 6

// GenerateOTP returns a random six digit one-time code.
func GenerateOTP() (string, error) {
	ten := big.NewInt(10)
	otp := make([]byte, otpDigits)
	for i := range otp {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		otp[i] = byte('0' + n.Int64())
	}
	return string(otp), nil
}
