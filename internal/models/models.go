// Package models defines the core data structures used throughout the application.
package models

import (
	"time"
)

// ContentType represents the kind of content submitted for verification.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypeVideo ContentType = "video"
)

// Valid reports whether the content type is one of the known kinds.
func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeText, ContentTypeImage, ContentTypeVideo:
		return true
	}
	return false
}

// AnalysisMode selects which instruction variant and schema extensions are used.
type AnalysisMode string

const (
	ModeStandard  AnalysisMode = "standard"
	ModeLegal     AnalysisMode = "legal"
	ModeEditorial AnalysisMode = "editorial"
	ModeFraud     AnalysisMode = "fraud"
	ModeTruthLens AnalysisMode = "truthlens"
)

// Valid reports whether the mode is one of the known presets.
func (m AnalysisMode) Valid() bool {
	switch m {
	case ModeStandard, ModeLegal, ModeEditorial, ModeFraud, ModeTruthLens:
		return true
	}
	return false
}

// RiskLevel is the coarse three-value bucket accompanying the numeric probability.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Origin classifies how the content was produced.
type Origin string

const (
	OriginHuman Origin = "human-created"
	OriginAI    Origin = "ai-generated"
	OriginMixed Origin = "mixed-modified"
)

// Role represents an account's access tier.
type Role string

const (
	RoleUser   Role = "user"
	RoleLawyer Role = "lawyer"
	RoleAdmin  Role = "admin"
)

// FraudRisk is the optional scam-analysis sub-record.
type FraudRisk struct {
	IsScam       bool      `json:"isScam"`
	Patterns     []string  `json:"patterns"`
	UrgencyLevel RiskLevel `json:"urgencyLevel"`
}

// EmotionalSignals scores manipulation pressure in the content (0-100 each).
type EmotionalSignals struct {
	Fear               float64 `json:"fear"`
	Anger              float64 `json:"anger"`
	Urgency            float64 `json:"urgency"`
	ManipulationTactic string  `json:"manipulationTactic"`
}

// ApplicableLaw is a single statutory citation.
type ApplicableLaw struct {
	Title          string `json:"title"`
	Section        string `json:"section"`
	Description    string `json:"description"`
	RelevanceLevel string `json:"relevanceLevel"` // Direct, Supporting, Contextual
	Category       string `json:"category"`       // Fraud, Privacy, Defamation, Identity, Copyright, Evidence
}

// RadarTrend is one entry in the investigative trend radar.
type RadarTrend struct {
	Label  string `json:"label"`
	Count  string `json:"count"`
	Region string `json:"region"`
	Status string `json:"status"` // Monitor, Alert, Critical
}

// TimelineEvent traces the suspected propagation of a piece of content.
type TimelineEvent struct {
	Label string `json:"label"`
	Desc  string `json:"desc"`
	Time  string `json:"time"`
	Stage string `json:"stage"` // Authentic, Manipulated, Coordinated
}

// ImpersonationHit records a potential identity-abuse match.
type ImpersonationHit struct {
	Name  string `json:"name"`
	Risk  string `json:"risk"`
	Count string `json:"count"`
}

// CrossCaseMatch links the content to a previously seen case.
type CrossCaseMatch struct {
	Similarity    float64 `json:"similarity"`
	CaseReference string  `json:"caseReference"`
	Description   string  `json:"description"`
}

// InvestigativeIntel is the optional intelligence block inside a legal assessment.
type InvestigativeIntel struct {
	RadarTrends          []RadarTrend       `json:"radarTrends"`
	Timeline             []TimelineEvent    `json:"timeline"`
	ImpersonationHits    []ImpersonationHit `json:"impersonationHits"`
	CrossCaseMatch       *CrossCaseMatch    `json:"crossCaseMatch,omitempty"`
	JurisdictionalBriefs map[string]string  `json:"jurisdictionalBriefs,omitempty"`
}

// LegalAssessment is produced in legal and truthlens modes only.
type LegalAssessment struct {
	ProbativeValue       string              `json:"probativeValue"` // Low, Moderate, High
	CourtReadySummary    string              `json:"courtReadySummary"`
	ForensicRedFlags     []string            `json:"forensicRedFlags"`
	ExpertRecommendation string              `json:"expertRecommendation"`
	ApplicableLaws       []ApplicableLaw     `json:"applicableLaws"`
	InvestigativeIntel   *InvestigativeIntel `json:"investigativeIntel,omitempty"`
}

// VerificationResult is one assessment outcome. Fields beyond ID, CreatedAt,
// Type, Mode, Content and ContentHash are supplied by the remote model; the
// normalizer enforces presence, primitive types and ranges but performs no
// consistency arithmetic (riskLevel is not recomputed from fakeProbability).
type VerificationResult struct {
	ID               string            `json:"id"`
	CreatedAt        time.Time         `json:"createdAt"`
	Type             ContentType       `json:"type"`
	Mode             AnalysisMode      `json:"mode"`
	Content          string            `json:"content"` // text capped to preview length, or filename for media
	FakeProbability  float64           `json:"fakeProbability"`
	RiskLevel        RiskLevel         `json:"riskLevel"`
	ConfidenceScore  float64           `json:"confidenceScore"`
	Reasoning        string            `json:"reasoning"`
	FlaggedRegions   []string          `json:"flaggedRegions,omitempty"`
	IsMisinformation bool              `json:"isMisinformation"`
	OriginLabel      Origin            `json:"originLabel"`
	FraudRisk        *FraudRisk        `json:"fraudRisk,omitempty"`
	EmotionalSignals *EmotionalSignals `json:"emotionalSignals,omitempty"`
	CulturalContext  string            `json:"culturalContext,omitempty"`
	Fingerprint      string            `json:"fingerprint"`
	PublishRiskScore float64           `json:"publishRiskScore"`
	LiteracyTip      string            `json:"literacyTip"`
	VerificationHash string            `json:"verificationHash"`    // opaque, model-supplied
	ContentHash      string            `json:"contentHash"`         // SHA-256 of the submitted content, computed locally
	UserEmail        string            `json:"userEmail,omitempty"` // populated on admin listings only
	LegalAssessment  *LegalAssessment  `json:"legalAssessment,omitempty"`
}

// UserProfile holds role and identity metadata for an account.
type UserProfile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"` // Never expose
	CreatedAt    time.Time `json:"createdAt"`
	ReportCount  int       `json:"reportCount,omitempty"`
}

// Session is a server-side authenticated session.
type Session struct {
	TokenHash string    `json:"-"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UserStats is a derived aggregate, recomputed in full on every fetch.
type UserStats struct {
	TotalVerifications int                  `json:"totalVerifications"`
	HighRiskCount      int                  `json:"highRiskCount"`
	History            []VerificationResult `json:"history"`
}

// RiskDistribution counts stored verifications per risk bucket.
type RiskDistribution struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// VerifyRequest is the request body for the verify endpoint. Exactly one of
// Content (text) or Media (data URI or raw base64) must be present.
type VerifyRequest struct {
	Type     ContentType  `json:"type"`
	Mode     AnalysisMode `json:"mode,omitempty"`
	Content  string       `json:"content,omitempty"`
	Media    string       `json:"media,omitempty"`
	MIMEType string       `json:"mime_type,omitempty"`
	FileName string       `json:"file_name,omitempty"`
}

// SignupRequest is the request body for account creation.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role,omitempty"`
}

// LoginRequest is the request body for session creation.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
