package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashAccessKey hashes a status hub access key for storage in config.json
func HashAccessKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("could not hash access key: %w", err)
	}
	return string(hash), nil
}

// CheckAccessKey reports whether key matches the stored hash.
// An empty hash means access control is disabled.
func CheckAccessKey(hash, key string) bool {
	if hash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}
