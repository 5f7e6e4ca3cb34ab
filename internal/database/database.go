// Package database provides the data access layer.
package database

import (
	"context"
	"time"

	"github.com/veritrust/veritrust/internal/models"
)

// Store defines the interface for data persistence. Lookups return
// (nil, nil) when no row matches; any other failure is a real error.
type Store interface {
	// Profiles
	CreateProfile(ctx context.Context, profile *models.UserProfile) error
	GetProfile(ctx context.Context, id string) (*models.UserProfile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.UserProfile, error)
	ListProfiles(ctx context.Context) ([]*models.UserProfile, error)

	// Sessions
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, tokenHash string) (*models.Session, error)
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) error

	// Verifications (insert-only; no update or erasure path exists)
	SaveVerification(ctx context.Context, userID string, result *models.VerificationResult) error
	GetVerification(ctx context.Context, id string) (*models.VerificationResult, string, error)
	ListVerificationsByUser(ctx context.Context, userID string) ([]models.VerificationResult, error)
	ListAllVerifications(ctx context.Context, limit, offset int) ([]models.VerificationResult, error)
	CountVerificationsByRisk(ctx context.Context) (*models.RiskDistribution, error)

	// Lifecycle
	Close() error
	Migrate() error
}
