package auth

import (
	"crypto/subtle"
	"errors"

	"github.com/agencyhq/invoicing/internal/infrastructure/config"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any username or password mismatch
var ErrInvalidCredentials = errors.New("invalid username or password")

// bcryptCost is used by HashPassword
const bcryptCost = 12

// AdminCredentials verifies the single configured back-office account
type AdminCredentials struct {
	username     string
	passwordHash []byte
}

// NewAdminCredentials creates a verifier from config
func NewAdminCredentials(cfg config.AdminConfig) *AdminCredentials {
	return &AdminCredentials{
		username:     cfg.Username,
		passwordHash: []byte(cfg.PasswordHash),
	}
}

// Verify checks username and password. An unconfigured hash rejects everyone.
func (c *AdminCredentials) Verify(username, password string) error {
	if len(c.passwordHash) == 0 {
		return ErrInvalidCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	// always run bcrypt so a wrong username costs the same as a wrong password
	passErr := bcrypt.CompareHashAndPassword(c.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword returns a bcrypt hash suitable for admin.password_hash
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
