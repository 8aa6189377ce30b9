package domain

import (
	"fmt"
	"strings"
	"time"
)

// ============================================================
// Monthly report status
// ============================================================

// ReportStatus is the workflow status of a monthly IFTA report.
type ReportStatus string

const (
	ReportInProgress ReportStatus = "in_progress"
	ReportSent       ReportStatus = "sent"
	ReportRejected   ReportStatus = "rejected"
	ReportCompleted  ReportStatus = "completed"
)

var reportStatuses = []ReportStatus{ReportInProgress, ReportSent, ReportRejected, ReportCompleted}

// ParseReportStatus accepts exactly one of the four monthly status literals.
func ParseReportStatus(s string) (ReportStatus, error) {
	for _, st := range reportStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", &ErrValidation{
		Field:   "status",
		Message: fmt.Sprintf("must be one of %s", joinStatuses(reportStatuses)),
	}
}

// IsQualifying reports whether a monthly report counts towards quarterly
// totals. Rejected reports never do.
func (s ReportStatus) IsQualifying() bool {
	switch s {
	case ReportInProgress, ReportSent, ReportCompleted:
		return true
	}
	return false
}

// QualifyingStatuses lists the statuses that count towards quarterly totals.
func QualifyingStatuses() []ReportStatus {
	return []ReportStatus{ReportSent, ReportInProgress, ReportCompleted}
}

// CanTransitionTo reports whether a monthly report may move from s to next.
// Completed is terminal; re-setting the current status is allowed and is a
// no-op for timestamps.
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	if s == next {
		return true
	}
	return s != ReportCompleted
}

// ============================================================
// Quarterly report status
// ============================================================

// QuarterlyStatus is the workflow status of a quarterly filing.
type QuarterlyStatus string

const (
	QuarterlyInProgress QuarterlyStatus = "in_progress"
	QuarterlySent       QuarterlyStatus = "sent"
	QuarterlyCompleted  QuarterlyStatus = "completed"

	// Values written by older releases. Rows holding them are remapped
	// the next time the quarter is resolved.
	LegacyDraft     QuarterlyStatus = "draft"
	LegacyInReview  QuarterlyStatus = "in_review"
	LegacyApproved  QuarterlyStatus = "approved"
	LegacySubmitted QuarterlyStatus = "submitted"
)

var quarterlyStatuses = []QuarterlyStatus{QuarterlyInProgress, QuarterlySent, QuarterlyCompleted}

var legacyQuarterly = map[QuarterlyStatus]QuarterlyStatus{
	LegacyDraft:     QuarterlyInProgress,
	LegacyInReview:  QuarterlySent,
	LegacyApproved:  QuarterlyCompleted,
	LegacySubmitted: QuarterlySent,
}

// LegacyToCurrent maps a legacy quarterly status to the current vocabulary.
// The second result is true only when s was a legacy value.
func LegacyToCurrent(s QuarterlyStatus) (QuarterlyStatus, bool) {
	cur, ok := legacyQuarterly[s]
	if !ok {
		return s, false
	}
	return cur, true
}

// Normalize returns the current-vocabulary equivalent of s.
func (s QuarterlyStatus) Normalize() QuarterlyStatus {
	cur, _ := LegacyToCurrent(s)
	return cur
}

// ParseQuarterlyStatus accepts the canonical three values and, for older
// clients, the four legacy values (mapped). Anything else is invalid.
func ParseQuarterlyStatus(s string) (QuarterlyStatus, error) {
	st := QuarterlyStatus(s)
	if cur, ok := LegacyToCurrent(st); ok {
		return cur, nil
	}
	for _, q := range quarterlyStatuses {
		if q == st {
			return q, nil
		}
	}
	return "", &ErrValidation{
		Field:   "status",
		Message: fmt.Sprintf("must be one of %s", joinStatuses(quarterlyStatuses)),
	}
}

// ============================================================
// Transition timestamps
// ============================================================

// StatusStamps holds the timestamps recorded on status transitions.
type StatusStamps struct {
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
}

// Stamp records the transition timestamp for the given target status:
// sent sets SubmittedAt, completed sets ApprovedAt, anything else neither.
func (t *StatusStamps) Stamp(target string, now time.Time) {
	switch target {
	case string(ReportSent):
		t.SubmittedAt = &now
	case string(ReportCompleted):
		t.ApprovedAt = &now
	}
}

func joinStatuses[T ~string](ss []T) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
