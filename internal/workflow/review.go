// Package workflow coordinates verification review decisions across the
// repositories, the audit log and the event stream. Handlers stay thin; the
// rules about who may transition what, and what happens afterwards, live
// here so the HTTP layer and any future surface share one implementation.
package workflow

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/overtimestaff/overtimestaff/internal/models"
	"github.com/overtimestaff/overtimestaff/internal/repository"
)

// MaxBatchSize caps bulk approve/reject calls. It mirrors the 50-item limit
// the admin queue UI enforces client-side; anything larger is refused before
// a single record is touched.
const MaxBatchSize = 50

// bulkWorkers bounds how many record transitions a bulk call runs at once.
const bulkWorkers = 8

var (
	ErrNotFound      = errors.New("verification request not found")
	ErrEmptyBatch    = errors.New("no verification requests selected")
	ErrBatchTooLarge = errors.New("too many verification requests in one batch")
)

// Per-id failure reasons reported inside a BulkResult.
const (
	FailureNotFound       = "not_found"
	FailureAlreadyDecided = "already_decided"
)

const (
	// Decision events are produced after a decision is persisted and
	// consumed by the notification worker. A failed produce never rolls
	// the decision back.
	VerificationApprovedTopic = "verification.approved"
	VerificationRejectedTopic = "verification.rejected"

	VerificationActivityLogApprovedDescription  = "Verification request approved"
	VerificationActivityLogRejectedDescription  = "Verification request rejected"
	VerificationActivityLogInReviewDescription  = "Verification request taken into review"
	VerificationActivityLogSubmittedDescription = "Verification request submitted"
)

// DecisionEvent is the payload produced on the decision topics.
type DecisionEvent struct {
	VerificationID   string    `json:"verification_id"`
	VerificationType string    `json:"verification_type"`
	SubjectKind      string    `json:"subject_kind"`
	SubjectID        string    `json:"subject_id"`
	Status           string    `json:"status"`
	Reason           string    `json:"reason,omitempty"`
	Actor            string    `json:"actor"`
	DecidedAt        time.Time `json:"decided_at"`
}

type Producer interface {
	ProduceMessage(topic, message string) error
}

type Reviewer struct {
	Verifications repository.VerificationRepository
	Activities    repository.ActivityRepository
	Producer      Producer
	Logger        *slog.Logger

	// Now is swappable for tests; nil means time.Now.
	Now func() time.Time
}

func New(rv *Reviewer) *Reviewer {
	return &Reviewer{
		Verifications: rv.Verifications,
		Activities:    rv.Activities,
		Producer:      rv.Producer,
		Logger:        rv.Logger,
		Now:           rv.Now,
	}
}

func (rv *Reviewer) now() time.Time {
	if rv.Now != nil {
		return rv.Now()
	}
	return time.Now()
}

// BulkResult reports the outcome of a bulk call per id. Every id in the
// input lands in exactly one of Succeeded or Failed; the whole result is
// assembled before it is returned.
type BulkResult struct {
	Succeeded []string          `json:"succeeded"`
	Failed    map[string]string `json:"failed"`
}

func (rv *Reviewer) ApproveOne(id, actor string) error {
	return rv.decideOne(id, actor, models.VerificationStatusApproved, "")
}

func (rv *Reviewer) RejectOne(id, actor, reason string) error {
	return rv.decideOne(id, actor, models.VerificationStatusRejected, reason)
}

// decideOne loads, transitions and persists a single record. The in-memory
// transition enforces the state machine (terminal check ahead of the
// rejection-reason check); the guarded update catches the race where another
// admin decided the same record between our load and our write.
func (rv *Reviewer) decideOne(id, actor string, to models.VerificationStatus, reason string) error {
	req, found, err := rv.Verifications.GetOne(id)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}

	if err := req.Transition(to, actor, reason, rv.now()); err != nil {
		return err
	}

	applied, err := rv.Verifications.FinalizeDecision(req)
	if err != nil {
		return err
	}
	if !applied {
		// Lost the race: someone else decided first.
		return models.ErrAlreadyTerminal
	}

	rv.afterDecision(req, actor, reason)
	return nil
}

// MarkInReview claims a pending request for an admin. Claiming a request
// that is already in review is a no-op; a decided request is an error.
func (rv *Reviewer) MarkInReview(id, actor string) error {
	req, found, err := rv.Verifications.GetOne(id)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}

	if req.Status.Terminal() {
		return models.ErrAlreadyTerminal
	}
	if req.Status == models.VerificationStatusInReview {
		return nil
	}

	applied, err := rv.Verifications.MarkInReview(id, rv.now())
	if err != nil {
		return err
	}
	if !applied {
		return models.ErrAlreadyTerminal
	}

	_, err = rv.Activities.Insert(&repository.ActivityLog{
		UserID:      actor,
		Entity:      repository.ActivityLogVerificationEntity,
		EntityId:    id,
		Description: VerificationActivityLogInReviewDescription,
	})
	if err != nil {
		rv.Logger.Error("failed to log in-review claim", "verification_id", id, "error", err)
	}

	return nil
}

func (rv *Reviewer) BulkApprove(ids []string, actor string) (*BulkResult, error) {
	ids, err := normalizeBatch(ids)
	if err != nil {
		return nil, err
	}

	return rv.bulkDecide(ids, actor, models.VerificationStatusApproved, "")
}

func (rv *Reviewer) BulkReject(ids []string, actor, reason string) (*BulkResult, error) {
	ids, err := normalizeBatch(ids)
	if err != nil {
		return nil, err
	}

	// The reason is shared by the whole batch, so it is validated once,
	// before any record is touched.
	if len(strings.TrimSpace(reason)) < models.MinDecisionNotesLen {
		return nil, models.ErrRejectionReason
	}

	return rv.bulkDecide(ids, actor, models.VerificationStatusRejected, reason)
}

// normalizeBatch dedupes the input and enforces the batch preconditions.
// Precondition failures are fatal to the whole call; no records are touched.
func normalizeBatch(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	if len(unique) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(unique) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}

	return unique, nil
}

// bulkDecide fans the batch out over a bounded worker group. Each id is
// processed independently: not-found and already-decided records are folded
// into the result, only infrastructure failures abort the call. Order of
// processing is unspecified.
func (rv *Reviewer) bulkDecide(ids []string, actor string, to models.VerificationStatus, reason string) (*BulkResult, error) {
	result := &BulkResult{
		Succeeded: []string{},
		Failed:    make(map[string]string),
	}

	var mu sync.Mutex
	var group errgroup.Group
	group.SetLimit(bulkWorkers)

	for _, id := range ids {
		id := id
		group.Go(func() error {
			err := rv.decideOne(id, actor, to, reason)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				result.Succeeded = append(result.Succeeded, id)
			case errors.Is(err, ErrNotFound):
				result.Failed[id] = FailureNotFound
			case errors.Is(err, models.ErrAlreadyTerminal):
				result.Failed[id] = FailureAlreadyDecided
			default:
				return err
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// afterDecision fires the side effects for a persisted decision: an audit
// row and a decision event for the notification worker. Both are best
// effort; the decision itself is already committed.
func (rv *Reviewer) afterDecision(req *models.VerificationRequest, actor, reason string) {
	description := VerificationActivityLogApprovedDescription
	topic := VerificationApprovedTopic
	if req.Status == models.VerificationStatusRejected {
		description = VerificationActivityLogRejectedDescription
		topic = VerificationRejectedTopic
	}

	_, err := rv.Activities.Insert(&repository.ActivityLog{
		UserID:      actor,
		Entity:      repository.ActivityLogVerificationEntity,
		EntityId:    req.ID,
		Description: description,
	})
	if err != nil {
		rv.Logger.Error("failed to log verification decision", "verification_id", req.ID, "error", err)
	}

	event := DecisionEvent{
		VerificationID:   req.ID,
		VerificationType: string(req.VerificationType),
		SubjectKind:      string(req.SubjectKind),
		SubjectID:        req.SubjectID,
		Status:           string(req.Status),
		Reason:           reason,
		Actor:            actor,
		DecidedAt:        req.ReviewedAt.Time,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		rv.Logger.Error("failed to encode decision event", "verification_id", req.ID, "error", err)
		return
	}

	if err := rv.Producer.ProduceMessage(topic, string(payload)); err != nil {
		rv.Logger.Error("failed to produce decision event", "verification_id", req.ID, "topic", topic, "error", err)
	}
}
