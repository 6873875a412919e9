package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/overtimestaff/overtimestaff/internal/models"
	"github.com/overtimestaff/overtimestaff/internal/sla"
)

// QueueFilter narrows the admin review queue. Zero values mean "no filter".
// Now is the observation instant the SLA buckets are computed against; it is
// always supplied by the caller so that list pages and the stats endpoint
// agree on what "breached" means.
type QueueFilter struct {
	VerificationType models.VerificationType
	SLAStatus        sla.Status
	Now              time.Time
	Limit            int
	Offset           int
}

type VerificationRepository interface {
	Insert(req *models.VerificationRequest) (string, error)
	GetOne(id string) (*models.VerificationRequest, bool, error)
	Queue(filter QueueFilter) ([]models.VerificationRequest, error)
	CountOpen(filter QueueFilter) (int, error)
	Open() ([]models.VerificationRequest, error)
	ResolvedSince(since time.Time) ([]models.VerificationRequest, error)

	// MarkInReview and FinalizeDecision are guarded updates: the WHERE
	// clause re-checks the current status so that two racing admins cannot
	// both win. The bool reports whether the row was actually changed.
	MarkInReview(id string, now time.Time) (bool, error)
	FinalizeDecision(req *models.VerificationRequest) (bool, error)
}

type VerificationRepositoryImpl struct {
	db *sqlx.DB
}

func NewVerificationRepository(db *sqlx.DB) VerificationRepository {
	return &VerificationRepositoryImpl{db: db}
}

// deadlineExpr mirrors sla.Window in SQL so the queue can be filtered and
// sorted by urgency inside the database. The two must stay in step.
const deadlineExpr = `vr.submitted_at + (CASE vr.verification_type
		WHEN 'business_license' THEN INTERVAL '72 hours'
		WHEN 'agency' THEN INTERVAL '96 hours'
		ELSE INTERVAL '48 hours'
	END)`

// atRiskExpr is 20% of the window per type: 9.6h, 14.4h and 19.2h expressed
// in minutes.
const atRiskExpr = `(CASE vr.verification_type
		WHEN 'business_license' THEN INTERVAL '864 minutes'
		WHEN 'agency' THEN INTERVAL '1152 minutes'
		ELSE INTERVAL '576 minutes'
	END)`

const verificationColumns = `
	vr.id,
	vr.verification_type,
	vr.subject_kind,
	vr.subject_id,
	vr.status,
	vr.submitted_at,
	vr.decision_notes,
	vr.reviewed_by,
	vr.reviewed_at,
	vr.created_at,
	vr.updated_at`

func (repo *VerificationRepositoryImpl) Insert(req *models.VerificationRequest) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	query := `
		INSERT INTO verification_requests (verification_type, subject_kind, subject_id, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	var id string
	err = tx.GetContext(ctx, &id, query,
		req.VerificationType,
		req.SubjectKind,
		req.SubjectID,
		models.VerificationStatusPending,
		req.SubmittedAt,
	)
	if err != nil {
		return "", err
	}

	docQuery := `
		INSERT INTO verification_documents (verification_id, name, document_type, url, position)
		VALUES ($1, $2, $3, $4, $5)`

	for i, doc := range req.Documents {
		_, err = tx.ExecContext(ctx, docQuery, id, doc.Name, doc.DocumentType, doc.URL, i)
		if err != nil {
			return "", err
		}
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}

	req.ID = id
	return id, nil
}

func (repo *VerificationRepositoryImpl) GetOne(id string) (*models.VerificationRequest, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		SELECT ` + verificationColumns + `
		FROM verification_requests vr
		WHERE vr.id = $1`

	var req models.VerificationRequest
	err := repo.db.GetContext(ctx, &req, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	docs, err := repo.documents(ctx, id)
	if err != nil {
		return nil, false, err
	}
	req.Documents = docs

	return &req, true, nil
}

func (repo *VerificationRepositoryImpl) documents(ctx context.Context, verificationID string) ([]models.VerificationDocument, error) {
	query := `
		SELECT id, verification_id, name, document_type, url, position, created_at
		FROM verification_documents
		WHERE verification_id = $1
		ORDER BY position`

	docs := []models.VerificationDocument{}
	err := repo.db.SelectContext(ctx, &docs, query, verificationID)
	if err != nil {
		return nil, err
	}

	return docs, nil
}

// Queue returns open requests ordered by SLA urgency, the most overdue first.
func (repo *VerificationRepositoryImpl) Queue(filter QueueFilter) ([]models.VerificationRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	where, args := buildQueueConditions(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 25
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM verification_requests vr
		WHERE %s
		ORDER BY %s ASC
		LIMIT %d OFFSET %d`,
		verificationColumns, where, deadlineExpr, limit, filter.Offset)

	requests := []models.VerificationRequest{}
	err := repo.db.SelectContext(ctx, &requests, query, args...)
	if err != nil {
		return nil, err
	}

	return requests, nil
}

func (repo *VerificationRepositoryImpl) CountOpen(filter QueueFilter) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	where, args := buildQueueConditions(filter)

	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM verification_requests vr
		WHERE %s`, where)

	var count int
	err := repo.db.GetContext(ctx, &count, query, args...)
	if err != nil {
		return 0, err
	}

	return count, nil
}

func buildQueueConditions(filter QueueFilter) (string, []any) {
	conditions := []string{`vr.status IN ('pending', 'in_review')`}
	args := []any{}

	if filter.VerificationType != "" {
		args = append(args, filter.VerificationType)
		conditions = append(conditions, fmt.Sprintf("vr.verification_type = $%d", len(args)))
	}

	if filter.SLAStatus != "" {
		args = append(args, filter.Now)
		now := fmt.Sprintf("$%d", len(args))

		switch filter.SLAStatus {
		case sla.StatusBreached:
			conditions = append(conditions, fmt.Sprintf("%s <= %s::timestamptz", deadlineExpr, now))
		case sla.StatusAtRisk:
			conditions = append(conditions,
				fmt.Sprintf("%s > %s::timestamptz", deadlineExpr, now),
				fmt.Sprintf("%s - %s::timestamptz <= %s", deadlineExpr, now, atRiskExpr))
		case sla.StatusOnTrack:
			conditions = append(conditions,
				fmt.Sprintf("%s - %s::timestamptz > %s", deadlineExpr, now, atRiskExpr))
		}
	}

	return strings.Join(conditions, " AND "), args
}

func (repo *VerificationRepositoryImpl) Open() ([]models.VerificationRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		SELECT ` + verificationColumns + `
		FROM verification_requests vr
		WHERE vr.status IN ('pending', 'in_review')`

	requests := []models.VerificationRequest{}
	err := repo.db.SelectContext(ctx, &requests, query)
	if err != nil {
		return nil, err
	}

	return requests, nil
}

func (repo *VerificationRepositoryImpl) ResolvedSince(since time.Time) ([]models.VerificationRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		SELECT ` + verificationColumns + `
		FROM verification_requests vr
		WHERE vr.status IN ('approved', 'rejected')
		AND vr.reviewed_at >= $1`

	requests := []models.VerificationRequest{}
	err := repo.db.SelectContext(ctx, &requests, query, since)
	if err != nil {
		return nil, err
	}

	return requests, nil
}

func (repo *VerificationRepositoryImpl) MarkInReview(id string, now time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE verification_requests
		SET status = 'in_review', updated_at = $2
		WHERE id = $1 AND status = 'pending'`

	result, err := repo.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

// FinalizeDecision writes a terminal decision. The status re-check in the
// WHERE clause is the compare-and-swap that keeps two concurrent decisions on
// the same record from both succeeding: the loser matches zero rows.
func (repo *VerificationRepositoryImpl) FinalizeDecision(req *models.VerificationRequest) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE verification_requests
		SET status = $2,
			decision_notes = $3,
			reviewed_by = $4,
			reviewed_at = $5,
			updated_at = $5
		WHERE id = $1 AND status IN ('pending', 'in_review')`

	result, err := repo.db.ExecContext(ctx, query,
		req.ID,
		req.Status,
		req.DecisionNotes,
		req.ReviewedBy,
		req.ReviewedAt,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}
