package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Entity is a catalog record (series, character, staff, studio). The open
// field map lives in Data; the contribution subsystem reads it as the
// "original" and mutates it only through an approved contribution.
type Entity struct {
	ID         string
	EntityType string
	Title      string
	Data       map[string]any
	Locked     bool
	UpdatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Contribution statuses. PENDING is initial; APPROVED and REJECTED are
// terminal and immutable apart from audit fields.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// Contribution is a reviewable proposal to alter one entity. ProposedOrder
// preserves the insertion order of the proposed payload's keys, which the
// diff engine's output order follows. The changed-field set is derived
// fresh at each diff, never stored.
type Contribution struct {
	ID              string
	EntityType      string
	EntityID        string
	Action          string
	ProposedData    map[string]any
	ProposedOrder   []string
	ContributorID   string
	ContributorName string
	ContributorNote string
	Status          string
	AdminNotes      string
	RejectionReason string
	ReviewedBy      string
	ReviewedAt      *time.Time
	CreatedAt       time.Time
}

// ContributionFilter narrows a contribution listing.
type ContributionFilter struct {
	Status     string
	EntityType string
	EntityID   string
	Limit      int
	Offset     int
}

type SnapshotInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}
