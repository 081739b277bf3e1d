package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/bcrypt"
)

var encryptionKey []byte

var ErrEncryptionNotInitialized = errors.New("encryption key not initialized")

// InitializeEncryption sets up the key used for tax identifiers at rest.
func InitializeEncryption(key string) error {
	if len(key) != 32 {
		return fmt.Errorf("encryption key must be exactly 32 characters, got %d", len(key))
	}
	encryptionKey = []byte(key)
	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func EncryptSensitiveData(data string) (string, error) {
	if encryptionKey == nil {
		return "", ErrEncryptionNotInitialized
	}
	if data == "" {
		return "", nil
	}

	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], []byte(data))

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

func DecryptSensitiveData(encryptedData string) (string, error) {
	if encryptionKey == nil {
		return "", ErrEncryptionNotInitialized
	}
	if encryptedData == "" {
		return "", nil
	}

	ciphertext, err := base64.URLEncoding.DecodeString(encryptedData)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	if len(ciphertext) < aes.BlockSize {
		return "", errors.New("ciphertext too short")
	}

	iv := ciphertext[:aes.BlockSize]
	ciphertext = ciphertext[aes.BlockSize:]

	stream := cipher.NewCFBDecrypter(block, iv)
	stream.XORKeyStream(ciphertext, ciphertext)

	return string(ciphertext), nil
}

// Fingerprint is a keyed, deterministic digest of a tax identifier. Encrypted
// values use a random IV, so lookups and uniqueness checks go through this.
func Fingerprint(data string) (string, error) {
	if encryptionKey == nil {
		return "", ErrEncryptionNotInitialized
	}
	mac := hmac.New(sha256.New, encryptionKey)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil)), nil
}
