// Package export renders contribution review reports as PDF or DOCX.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// ChangeRow is one changed field in a review report.
type ChangeRow struct {
	Field    string
	Category string
	Original string
	Proposed string
}

// ReportData holds everything the report template needs. The caller
// assembles it from the contribution, the target entity, and the diff.
type ReportData struct {
	ContributionID  string
	EntityType      string
	EntityID        string
	EntityTitle     string
	Action          string
	Status          string
	ContributorName string
	Note            string
	AdminNotes      string
	RejectionReason string
	ReviewedBy      string
	CreatedAt       time.Time
	ReviewedAt      *time.Time
	Changes         []ChangeRow
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
