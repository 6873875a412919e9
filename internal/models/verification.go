package models

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

type VerificationType string

const (
	VerificationTypeIdentity        VerificationType = "identity"
	VerificationTypeBackgroundCheck VerificationType = "background_check"
	VerificationTypeCertification   VerificationType = "certification"
	VerificationTypeBusinessLicense VerificationType = "business_license"
	VerificationTypeAgency          VerificationType = "agency"
)

type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "pending"
	VerificationStatusInReview VerificationStatus = "in_review"
	VerificationStatusApproved VerificationStatus = "approved"
	VerificationStatusRejected VerificationStatus = "rejected"
)

// SubjectKind tags the weak (kind, id) reference to the entity under
// verification. The verification service never owns these records; it only
// looks them up for display and notification addressing.
type SubjectKind string

const (
	SubjectKindWorker   SubjectKind = "worker"
	SubjectKindBusiness SubjectKind = "business"
	SubjectKindAgency   SubjectKind = "agency"
)

// MinDecisionNotesLen is the minimum length of the reviewer note required when
// a request is rejected. Notes are optional on approval.
const MinDecisionNotesLen = 10

var (
	ErrAlreadyTerminal   = errors.New("verification request has already been decided")
	ErrRejectionReason   = errors.New("a rejection reason of at least 10 characters is required")
	ErrInvalidTransition = errors.New("invalid verification status transition")
)

type VerificationDocument struct {
	ID             string    `db:"id"`
	VerificationID string    `db:"verification_id"`
	Name           string    `db:"name"`
	DocumentType   string    `db:"document_type"`
	URL            string    `db:"url"`
	Position       int       `db:"position"`
	CreatedAt      time.Time `db:"created_at"`
}

type VerificationRequest struct {
	ID               string             `db:"id"`
	VerificationType VerificationType   `db:"verification_type"`
	SubjectKind      SubjectKind        `db:"subject_kind"`
	SubjectID        string             `db:"subject_id"`
	Status           VerificationStatus `db:"status"`
	SubmittedAt      time.Time          `db:"submitted_at"`
	DecisionNotes    sql.NullString     `db:"decision_notes"`
	ReviewedBy       sql.NullString     `db:"reviewed_by"`
	ReviewedAt       sql.NullTime       `db:"reviewed_at"`
	CreatedAt        time.Time          `db:"created_at"`
	UpdatedAt        time.Time          `db:"updated_at"`

	Documents []VerificationDocument `db:"-"`
}

func (s VerificationStatus) Terminal() bool {
	return s == VerificationStatusApproved || s == VerificationStatusRejected
}

func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationStatusPending, VerificationStatusInReview,
		VerificationStatusApproved, VerificationStatusRejected:
		return true
	}
	return false
}

func (t VerificationType) Valid() bool {
	switch t {
	case VerificationTypeIdentity, VerificationTypeBackgroundCheck,
		VerificationTypeCertification, VerificationTypeBusinessLicense,
		VerificationTypeAgency:
		return true
	}
	return false
}

func (k SubjectKind) Valid() bool {
	switch k {
	case SubjectKindWorker, SubjectKindBusiness, SubjectKindAgency:
		return true
	}
	return false
}

// Transition applies a status change in memory, enforcing the review state
// machine. Persistence is the caller's concern.
//
// The terminal check runs before the notes check on purpose: rejecting an
// already-approved record reports ErrAlreadyTerminal even when the reason is
// also missing, so a stale admin screen learns the real state of the record
// rather than a validation nit.
func (r *VerificationRequest) Transition(to VerificationStatus, actor, notes string, now time.Time) error {
	if r.Status.Terminal() {
		return ErrAlreadyTerminal
	}

	switch to {
	case VerificationStatusInReview:
		r.Status = VerificationStatusInReview
		r.UpdatedAt = now
		return nil

	case VerificationStatusApproved, VerificationStatusRejected:
		if to == VerificationStatusRejected && len(strings.TrimSpace(notes)) < MinDecisionNotesLen {
			return ErrRejectionReason
		}

		r.Status = to
		r.ReviewedBy = sql.NullString{String: actor, Valid: true}
		r.ReviewedAt = sql.NullTime{Time: now, Valid: true}
		if notes != "" {
			r.DecisionNotes = sql.NullString{String: notes, Valid: true}
		}
		r.UpdatedAt = now
		return nil

	default:
		return ErrInvalidTransition
	}
}
