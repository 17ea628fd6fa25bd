package model

import "time"

// CorrectionStatus is the lifecycle state of a user-submitted correction.
type CorrectionStatus string

const (
	CorrectionPending  CorrectionStatus = "pending"
	CorrectionVerified CorrectionStatus = "verified"
	CorrectionRejected CorrectionStatus = "rejected"
)

// VerifyThreshold is the confirmation count at which a pending correction
// auto-promotes to verified.
const VerifyThreshold = 3

// Correction is a persisted user claim that the recorded provider for a
// location is wrong. Rows are never deleted, only status-transitioned.
type Correction struct {
	ID                 string           `json:"id"`
	UtilityType        Category         `json:"utility_type"`
	CorrectProvider    string           `json:"correct_provider"`
	CanonicalProvider  string           `json:"canonical_provider"`
	State              string           `json:"state"`
	ZipCode            string           `json:"zip_code"`
	City               string           `json:"city"`
	Street             string           `json:"street"`
	IncorrectProvider  string           `json:"incorrect_provider"`
	ConfirmationCount  int              `json:"confirmation_count"`
	Status             CorrectionStatus `json:"status"`
	EvidenceConfidence *int             `json:"evidence_confidence,omitempty"`
	EvidenceNote       string           `json:"evidence_note,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	VerifiedAt         *time.Time       `json:"verified_at,omitempty"`
}

// NaturalKey returns the upsert key for a correction: repeated submissions of
// the same claim must land on the same row.
type NaturalKey struct {
	UtilityType       Category
	State             string
	ZipCode           string
	CanonicalProvider string
}

// Confirmation is one append-only audit row per submission event.
type Confirmation struct {
	ID           string    `json:"id"`
	CorrectionID string    `json:"correction_id"`
	Address      string    `json:"address"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
}

// VerifiedUtility is the simple "users confirmed this result" counter,
// independent of the correction lifecycle.
type VerifiedUtility struct {
	UtilityType       Category  `json:"utility_type"`
	ProviderName      string    `json:"provider_name"`
	State             string    `json:"state"`
	ZipCode           string    `json:"zip_code"`
	VerificationCount int       `json:"verification_count"`
	UpdatedAt         time.Time `json:"updated_at"`
}
