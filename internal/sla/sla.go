// Package sla holds the service-level targets for verification review and the
// pure functions that classify requests against them. Nothing in here touches
// storage or the wall clock; callers always pass the observation instant in,
// which keeps the classification deterministic and testable.
package sla

import (
	"errors"
	"time"

	"github.com/overtimestaff/overtimestaff/internal/models"
)

type Status string

const (
	StatusOnTrack  Status = "on_track"
	StatusAtRisk   Status = "at_risk"
	StatusBreached Status = "breached"
)

// AtRiskFraction is the share of the SLA window that flips an open request
// from on_track to at_risk. A request is at risk once 80% of its window has
// elapsed. This is a product constant, not configuration.
const AtRiskFraction = 0.20

var ErrInvalidVerificationType = errors.New("invalid verification type")

// Review targets per verification type. Worker-class checks get 48 hours,
// business licences 72, agency onboarding 96. Adding a type means adding a
// row here and nowhere else.
var targets = map[models.VerificationType]time.Duration{
	models.VerificationTypeIdentity:        48 * time.Hour,
	models.VerificationTypeBackgroundCheck: 48 * time.Hour,
	models.VerificationTypeCertification:   48 * time.Hour,
	models.VerificationTypeBusinessLicense: 72 * time.Hour,
	models.VerificationTypeAgency:          96 * time.Hour,
}

func Window(verificationType models.VerificationType) (time.Duration, error) {
	window, ok := targets[verificationType]
	if !ok {
		return 0, ErrInvalidVerificationType
	}

	return window, nil
}

func Deadline(verificationType models.VerificationType, submittedAt time.Time) (time.Time, error) {
	window, err := Window(verificationType)
	if err != nil {
		return time.Time{}, err
	}

	return submittedAt.Add(window), nil
}

// Classify buckets a request by how much of its window remains at the given
// instant. The at_risk boundary is inclusive: exactly 20% remaining is at
// risk, exactly zero remaining is breached.
func Classify(now, deadline time.Time, window time.Duration) Status {
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return StatusBreached
	}

	threshold := time.Duration(float64(window) * AtRiskFraction)
	if remaining <= threshold {
		return StatusAtRisk
	}

	return StatusOnTrack
}

// StatusOf classifies a single request. For resolved requests the observation
// instant is frozen at the moment of decision, so a request approved inside
// its window never drifts into "breached" on a later read.
func StatusOf(r *models.VerificationRequest, now time.Time) (Status, error) {
	window, err := Window(r.VerificationType)
	if err != nil {
		return "", err
	}

	at := now
	if r.Status.Terminal() && r.ReviewedAt.Valid {
		at = r.ReviewedAt.Time
	}

	return Classify(at, r.SubmittedAt.Add(window), window), nil
}

type Stats struct {
	OnTrackCount                int     `json:"on_track_count"`
	AtRiskCount                 int     `json:"at_risk_count"`
	BreachedCount               int     `json:"breached_count"`
	OpenCount                   int     `json:"open_count"`
	ResolvedCount               int     `json:"resolved_count"`
	CurrentCompliancePercent    float64 `json:"current_compliance_percent"`
	HistoricalCompliancePercent float64 `json:"historical_compliance_percent"`
}

// Aggregate computes queue health at a point in time. Current compliance is
// the share of open requests that have not yet breached; historical
// compliance is the share of resolved requests decided inside their window.
// Callers bound the resolved slice to a reporting window themselves; passing
// everything means all-time.
//
// Both percentages are 100 over an empty set: nothing existed, so nothing
// breached.
func Aggregate(now time.Time, open, resolved []models.VerificationRequest) (Stats, error) {
	stats := Stats{
		OpenCount:     len(open),
		ResolvedCount: len(resolved),
	}

	for i := range open {
		status, err := StatusOf(&open[i], now)
		if err != nil {
			return Stats{}, err
		}

		switch status {
		case StatusOnTrack:
			stats.OnTrackCount++
		case StatusAtRisk:
			stats.AtRiskCount++
		case StatusBreached:
			stats.BreachedCount++
		}
	}

	stats.CurrentCompliancePercent = 100
	if len(open) > 0 {
		stats.CurrentCompliancePercent = float64(len(open)-stats.BreachedCount) / float64(len(open)) * 100
	}

	stats.HistoricalCompliancePercent = 100
	if len(resolved) > 0 {
		onTime := 0
		for i := range resolved {
			r := &resolved[i]
			deadline, err := Deadline(r.VerificationType, r.SubmittedAt)
			if err != nil {
				return Stats{}, err
			}

			if r.ReviewedAt.Valid && !r.ReviewedAt.Time.After(deadline) {
				onTime++
			}
		}
		stats.HistoricalCompliancePercent = float64(onTime) / float64(len(resolved)) * 100
	}

	return stats, nil
}
