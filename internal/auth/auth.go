// Package auth implements account registration, password login and
// server-side bearer sessions.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/veritrust/veritrust/internal/config"
	"github.com/veritrust/veritrust/internal/database"
	"github.com/veritrust/veritrust/internal/models"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Service manages profiles and sessions.
type Service struct {
	store       database.Store
	sessionTTL  time.Duration
	adminEmails map[string]struct{}
}

// NewService creates an auth service. Emails listed in the configuration's
// admin allow-list receive the admin role on signup; requested roles are
// otherwise capped at user or lawyer.
func NewService(store database.Store, cfg *config.AuthConfig) *Service {
	admins := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, e := range cfg.AdminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return &Service{
		store:       store,
		sessionTTL:  time.Duration(cfg.SessionTTLHours) * time.Hour,
		adminEmails: admins,
	}
}

// Signup registers a new account and opens a session for it.
func (s *Service) Signup(ctx context.Context, req *models.SignupRequest) (*models.UserProfile, string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", fmt.Errorf("%w: invalid email", ErrInvalidCredentials)
	}
	if len(req.Password) < 8 {
		return nil, "", ErrWeakPassword
	}

	existing, err := s.store.GetProfileByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return nil, "", ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	profile := &models.UserProfile{
		ID:           uuid.New().String(),
		Email:        email,
		Role:         s.assignRole(email, req.Role),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateProfile(ctx, profile); err != nil {
		return nil, "", err
	}

	token, err := s.openSession(ctx, profile.ID)
	if err != nil {
		return nil, "", err
	}

	log.Info().Str("user_id", profile.ID).Str("role", string(profile.Role)).Msg("Account created")
	return profile, token, nil
}

// assignRole decides the stored role server-side. The admin role can never
// be requested; it is granted only to allow-listed emails.
func (s *Service) assignRole(email string, requested models.Role) models.Role {
	if _, ok := s.adminEmails[email]; ok {
		return models.RoleAdmin
	}
	if requested == models.RoleLawyer {
		return models.RoleLawyer
	}
	return models.RoleUser
}

// Login verifies credentials and opens a session.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.UserProfile, string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	profile, err := s.store.GetProfileByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if profile == nil {
		// Burn a comparison anyway so lookup misses cost the same as mismatches.
		bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		return nil, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(req.Password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.openSession(ctx, profile.ID)
	if err != nil {
		return nil, "", err
	}
	return profile, token, nil
}

// Logout revokes the session behind a bearer token. Unknown tokens are not
// an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.store.DeleteSession(ctx, hashToken(token))
}

// Authenticate resolves a bearer token to its profile. Expired sessions are
// deleted on sight.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.UserProfile, error) {
	if !strings.HasPrefix(token, "vt_") {
		return nil, ErrInvalidSession
	}

	sess, err := s.store.GetSession(ctx, hashToken(token))
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrInvalidSession
	}
	if time.Now().After(sess.ExpiresAt) {
		s.store.DeleteSession(ctx, sess.TokenHash)
		return nil, ErrInvalidSession
	}

	profile, err := s.store.GetProfile(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrInvalidSession
	}
	return profile, nil
}

// PurgeExpired removes expired sessions. Meant to run periodically.
func (s *Service) PurgeExpired(ctx context.Context) error {
	return s.store.DeleteExpiredSessions(ctx, time.Now())
}

func (s *Service) openSession(ctx context.Context, userID string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	sess := &models.Session{
		TokenHash: hashToken(token),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return "", err
	}
	return token, nil
}

// generateToken creates a bearer token with the vt_ prefix. Only its SHA-256
// hash is ever stored.
func generateToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return "vt_" + base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(raw), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ModeAllowed reports whether a role may request the given analysis mode.
// Legal and investigative outputs are reserved for lawyers and admins.
func ModeAllowed(role models.Role, mode models.AnalysisMode) bool {
	switch mode {
	case models.ModeLegal, models.ModeTruthLens:
		return role == models.RoleLawyer || role == models.RoleAdmin
	default:
		return true
	}
}
