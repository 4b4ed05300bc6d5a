// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is used when hashing new passwords.
const bcryptCost = 12

// BasicAuthManager verifies HTTP Basic credentials against the configured
// admin user. The password arrives from configuration already bcrypt-hashed,
// so plaintext never sits in YAML or the environment.
type BasicAuthManager struct {
	username     string
	passwordHash []byte
}

// NewBasicAuthManager validates the configured username and hash. A value
// that does not parse as a bcrypt hash is rejected here so a plaintext
// password in the config fails startup instead of silently never matching.
func NewBasicAuthManager(username, passwordHash string) (*BasicAuthManager, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if passwordHash == "" {
		return nil, fmt.Errorf("password hash is required")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("password hash is not a bcrypt hash: %w", err)
	}

	return &BasicAuthManager{
		username:     username,
		passwordHash: []byte(passwordHash),
	}, nil
}

// HashPassword hashes a plaintext password for storage in configuration.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// ValidateCredentials checks an Authorization header carrying HTTP Basic
// credentials and returns the username on success.
func (m *BasicAuthManager) ValidateCredentials(authHeader string) (string, error) {
	if !strings.HasPrefix(authHeader, "Basic ") {
		return "", ErrNoCredentials
	}

	encoded := strings.TrimPrefix(authHeader, "Basic ")
	credentials, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: malformed basic credentials", ErrInvalidCredentials)
	}

	parts := strings.SplitN(string(credentials), ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: malformed basic credentials", ErrInvalidCredentials)
	}

	if err := m.Verify(parts[0], parts[1]); err != nil {
		return "", err
	}
	return parts[0], nil
}

// Verify checks a username/password pair. Both comparisons run regardless
// of the username result, so a wrong username costs the same as a wrong
// password.
func (m *BasicAuthManager) Verify(username, password string) error {
	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(m.username)) == 1
	passwordMatch := bcrypt.CompareHashAndPassword(m.passwordHash, []byte(password)) == nil

	if !usernameMatch || !passwordMatch {
		return fmt.Errorf("%w: invalid username or password", ErrInvalidCredentials)
	}
	return nil
}

// WWWAuthenticate returns the challenge header value sent with 401
// responses in basic mode.
func (m *BasicAuthManager) WWWAuthenticate() string {
	return `Basic realm="Photarium", charset="UTF-8"`
}
