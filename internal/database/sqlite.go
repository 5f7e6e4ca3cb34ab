// Package database provides the SQLite implementation of the Store interface.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/veritrust/veritrust/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			role TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_email ON profiles(email)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token_hash TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES profiles(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expiry ON sessions(expires_at)`,
		`CREATE TABLE IF NOT EXISTS verifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			mode TEXT NOT NULL,
			content TEXT NOT NULL,
			fake_probability REAL NOT NULL,
			risk_level TEXT NOT NULL,
			confidence_score REAL NOT NULL,
			reasoning TEXT NOT NULL,
			is_misinformation INTEGER NOT NULL,
			origin_label TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			publish_risk REAL NOT NULL,
			literacy_tip TEXT NOT NULL,
			hash TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			flagged_regions TEXT,
			fraud_risk TEXT,
			emotional_signals TEXT,
			cultural_context TEXT,
			legal_assessment TEXT,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES profiles(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_verifications_user ON verifications(user_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateProfile stores a new user profile.
func (s *SQLiteStore) CreateProfile(ctx context.Context, profile *models.UserProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, role, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		profile.ID, profile.Email, profile.Role, profile.PasswordHash, profile.CreatedAt)
	return err
}

// GetProfile retrieves a profile by id.
func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, role, password_hash, created_at
		FROM profiles WHERE id = ?`, id)
	return scanProfile(row)
}

// GetProfileByEmail retrieves a profile by email.
func (s *SQLiteStore) GetProfileByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, role, password_hash, created_at
		FROM profiles WHERE email = ?`, email)
	return scanProfile(row)
}

func scanProfile(row *sql.Row) (*models.UserProfile, error) {
	var p models.UserProfile
	err := row.Scan(&p.ID, &p.Email, &p.Role, &p.PasswordHash, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProfiles returns all profiles with their report counts.
func (s *SQLiteStore) ListProfiles(ctx context.Context) ([]*models.UserProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.email, p.role, p.created_at, COUNT(v.id)
		FROM profiles p LEFT JOIN verifications v ON v.user_id = p.id
		GROUP BY p.id ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*models.UserProfile
	for rows.Next() {
		var p models.UserProfile
		if err := rows.Scan(&p.ID, &p.Email, &p.Role, &p.CreatedAt, &p.ReportCount); err != nil {
			return nil, err
		}
		profiles = append(profiles, &p)
	}
	return profiles, rows.Err()
}

// CreateSession stores a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *models.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token_hash, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)`,
		session.TokenHash, session.UserID, session.CreatedAt, session.ExpiresAt)
	return err
}

// GetSession retrieves a session by its token hash.
func (s *SQLiteStore) GetSession(ctx context.Context, tokenHash string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token_hash, user_id, created_at, expires_at
		FROM sessions WHERE token_hash = ?`, tokenHash)

	var sess models.Session
	err := row.Scan(&sess.TokenHash, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// DeleteSession removes a session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, tokenHash)
	return err
}

// DeleteExpiredSessions removes all sessions past their expiry.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, now)
	return err
}

// SaveVerification inserts one verification row scoped to a user. Optional
// sub-records are stored as JSON text columns.
func (s *SQLiteStore) SaveVerification(ctx context.Context, userID string, r *models.VerificationResult) error {
	flaggedJSON, _ := json.Marshal(r.FlaggedRegions)

	var fraudJSON, emotionalJSON, legalJSON sql.NullString
	if r.FraudRisk != nil {
		b, _ := json.Marshal(r.FraudRisk)
		fraudJSON = sql.NullString{String: string(b), Valid: true}
	}
	if r.EmotionalSignals != nil {
		b, _ := json.Marshal(r.EmotionalSignals)
		emotionalJSON = sql.NullString{String: string(b), Valid: true}
	}
	if r.LegalAssessment != nil {
		b, _ := json.Marshal(r.LegalAssessment)
		legalJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verifications (id, user_id, type, mode, content, fake_probability, risk_level,
			confidence_score, reasoning, is_misinformation, origin_label, fingerprint, publish_risk,
			literacy_tip, hash, content_hash, flagged_regions, fraud_risk, emotional_signals,
			cultural_context, legal_assessment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, userID, r.Type, r.Mode, r.Content, r.FakeProbability, r.RiskLevel,
		r.ConfidenceScore, r.Reasoning, r.IsMisinformation, r.OriginLabel, r.Fingerprint,
		r.PublishRiskScore, r.LiteracyTip, r.VerificationHash, r.ContentHash,
		string(flaggedJSON), fraudJSON, emotionalJSON, r.CulturalContext, legalJSON, r.CreatedAt)
	return err
}

const verificationColumns = `id, user_id, type, mode, content, fake_probability, risk_level,
	confidence_score, reasoning, is_misinformation, origin_label, fingerprint, publish_risk,
	literacy_tip, hash, content_hash, flagged_regions, fraud_risk, emotional_signals,
	cultural_context, legal_assessment, created_at`

// GetVerification retrieves a verification and its owning user id.
func (s *SQLiteStore) GetVerification(ctx context.Context, id string) (*models.VerificationResult, string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+verificationColumns+` FROM verifications WHERE id = ?`, id)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, "", rows.Err()
	}
	r, userID, err := scanVerification(rows)
	if err != nil {
		return nil, "", err
	}
	return r, userID, nil
}

// ListVerificationsByUser returns a user's verifications, newest first.
func (s *SQLiteStore) ListVerificationsByUser(ctx context.Context, userID string) ([]models.VerificationResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+verificationColumns+` FROM verifications WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectVerifications(rows)
}

// ListAllVerifications returns paginated verifications across all users with
// the reporter's email attached.
func (s *SQLiteStore) ListAllVerifications(ctx context.Context, limit, offset int) ([]models.VerificationResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id, v.user_id, v.type, v.mode, v.content, v.fake_probability, v.risk_level,
			v.confidence_score, v.reasoning, v.is_misinformation, v.origin_label, v.fingerprint,
			v.publish_risk, v.literacy_tip, v.hash, v.content_hash, v.flagged_regions, v.fraud_risk,
			v.emotional_signals, v.cultural_context, v.legal_assessment, v.created_at, p.email
		FROM verifications v JOIN profiles p ON p.id = v.user_id
		ORDER BY v.created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.VerificationResult
	for rows.Next() {
		var email string
		r, _, err := scanVerificationWith(rows, &email)
		if err != nil {
			return nil, err
		}
		r.UserEmail = email
		results = append(results, *r)
	}
	return results, rows.Err()
}

// CountVerificationsByRisk returns the stored risk distribution.
func (s *SQLiteStore) CountVerificationsByRisk(ctx context.Context) (*models.RiskDistribution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT risk_level, COUNT(*) FROM verifications GROUP BY risk_level`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dist models.RiskDistribution
	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, err
		}
		switch models.RiskLevel(level) {
		case models.RiskLow:
			dist.Low = count
		case models.RiskMedium:
			dist.Medium = count
		case models.RiskHigh:
			dist.High = count
		}
	}
	return &dist, rows.Err()
}

func collectVerifications(rows *sql.Rows) ([]models.VerificationResult, error) {
	var results []models.VerificationResult
	for rows.Next() {
		r, _, err := scanVerification(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

func scanVerification(rows *sql.Rows) (*models.VerificationResult, string, error) {
	return scanVerificationWith(rows, nil)
}

func scanVerificationWith(rows *sql.Rows, email *string) (*models.VerificationResult, string, error) {
	var r models.VerificationResult
	var userID string
	var flaggedJSON sql.NullString
	var fraudJSON, emotionalJSON, legalJSON sql.NullString
	var cultural sql.NullString

	dest := []interface{}{
		&r.ID, &userID, &r.Type, &r.Mode, &r.Content, &r.FakeProbability, &r.RiskLevel,
		&r.ConfidenceScore, &r.Reasoning, &r.IsMisinformation, &r.OriginLabel, &r.Fingerprint,
		&r.PublishRiskScore, &r.LiteracyTip, &r.VerificationHash, &r.ContentHash,
		&flaggedJSON, &fraudJSON, &emotionalJSON, &cultural, &legalJSON, &r.CreatedAt,
	}
	if email != nil {
		dest = append(dest, email)
	}

	if err := rows.Scan(dest...); err != nil {
		return nil, "", err
	}

	if flaggedJSON.Valid && flaggedJSON.String != "" {
		json.Unmarshal([]byte(flaggedJSON.String), &r.FlaggedRegions)
	}
	if fraudJSON.Valid {
		json.Unmarshal([]byte(fraudJSON.String), &r.FraudRisk)
	}
	if emotionalJSON.Valid {
		json.Unmarshal([]byte(emotionalJSON.String), &r.EmotionalSignals)
	}
	if legalJSON.Valid {
		json.Unmarshal([]byte(legalJSON.String), &r.LegalAssessment)
	}
	if cultural.Valid {
		r.CulturalContext = cultural.String
	}

	return &r, userID, nil
}
