package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyKey is returned when hashing an empty operator key.
var ErrEmptyKey = errors.New("admin key is empty")

// AdminKey checks the operator key against a bcrypt hash.
type AdminKey struct {
	hash []byte
}

func NewAdminKey(hash string) *AdminKey {
	return &AdminKey{hash: []byte(strings.TrimSpace(hash))}
}

// Check reports whether key matches the configured hash.
func (a *AdminKey) Check(key string) bool {
	if len(a.hash) == 0 || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.hash, []byte(key)) == nil
}

// HashKey produces the value for ADMIN_KEY_HASH.
func HashKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrEmptyKey
	}
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
