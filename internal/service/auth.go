package service

import (
	"crypto/subtle"

	"viewbot/internal/domain"
)

// AdminRegistry stores the admin flag of accounts
type AdminRegistry interface {
	IsAdmin(userID string) bool
	SetAdmin(userID string, isAdmin bool) error
}

// BanChecker answers whether a user is blocked
type BanChecker interface {
	IsBanned(userID string) bool
}

// AuthService handles admin authentication logic
type AuthService struct {
	admins        AdminRegistry
	bans          BanChecker
	adminPassword string
}

// NewAuthService creates a new auth service
func NewAuthService(admins AdminRegistry, bans BanChecker, adminPassword string) *AuthService {
	return &AuthService{
		admins:        admins,
		bans:          bans,
		adminPassword: adminPassword,
	}
}

// CheckPassword verifies the admin password in constant time
func (s *AuthService) CheckPassword(password string) bool {
	if s.adminPassword == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(s.adminPassword)) == 1
}

// GrantAdmin sets the admin flag on the user's account
func (s *AuthService) GrantAdmin(userID string) error {
	return s.admins.SetAdmin(userID, true)
}

// Authorize is the capability check guarding admin operations
func (s *AuthService) Authorize(userID string) error {
	if s.bans.IsBanned(userID) {
		return domain.ErrBanned
	}
	if !s.admins.IsAdmin(userID) {
		return domain.ErrNotAdmin
	}
	return nil
}
