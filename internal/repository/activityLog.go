// Logging is a critical part of the system
// Every decision (synchronous or asynchronous) should be logged.
// This helps in audit and will also be used to trace activities.
// ...
// We used polymorphism to define entity and entity_id
// This allows the table to be shared by the verification queue, user accounts
// and anything the application grows later.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

type ActivityRepository interface {
	CountConsecutiveFailedLoginAttempts(userID, actionDesc string) int
	Insert(log *ActivityLog) (*ActivityLog, error)
	ListForEntity(entity, entityID string) ([]ActivityLog, error)
}

type ActivityLog struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Entity      string    `db:"entity"`
	EntityId    string    `db:"entity_id"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

const (
	// ActivityLogVerificationEntity is used for actions taken on
	// verification requests: submissions, reviews, decisions.
	ActivityLogVerificationEntity = "verification_request"

	// ActivityLogUserEntity is used in activities that has to do with user
	// accounts and the users table
	ActivityLogUserEntity = "user"
)

type ActivityRepositoryImpl struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) ActivityRepository {
	return &ActivityRepositoryImpl{db: db}
}

func (repo *ActivityRepositoryImpl) Insert(log *ActivityLog) (*ActivityLog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var inserted ActivityLog

	query := `
		INSERT INTO activity_logs (user_id, entity, entity_id, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, entity, entity_id, description, created_at`

	err := repo.db.GetContext(ctx, &inserted, query,
		log.UserID,
		log.Entity,
		log.EntityId,
		log.Description,
	)

	if err != nil {
		return nil, err
	}

	return &inserted, nil
}

func (repo *ActivityRepositoryImpl) ListForEntity(entity, entityID string) ([]ActivityLog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		SELECT id, user_id, entity, entity_id, description, created_at
		FROM activity_logs
		WHERE entity = $1 AND entity_id = $2
		ORDER BY created_at DESC`

	logs := []ActivityLog{}
	err := repo.db.SelectContext(ctx, &logs, query, entity, entityID)
	if err != nil {
		return nil, err
	}

	return logs, nil
}

// CountConsecutiveFailedLoginAttempts counts the number of consecutive failed login attempts for a user.
// This function is used to determine if a user’s account should be temporarily locked after 3 consecutive failures.
// It checks the most recent login attempts in descending order and counts failures until a successful login or the limit is reached.
func (repo *ActivityRepositoryImpl) CountConsecutiveFailedLoginAttempts(userID, actionDesc string) int {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var descriptions []string

	// Query the most recent login attempts for the user, limiting to the last 3 entries
	query := `
		SELECT description
		FROM activity_logs
		WHERE user_id = $1 AND entity = $2
		ORDER BY created_at DESC
		LIMIT 3
	`
	err := repo.db.SelectContext(ctx, &descriptions, query, userID, ActivityLogUserEntity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0
		}
		return 0
	}

	// Count consecutive failed logins
	count := 0
	for _, desc := range descriptions {
		if desc == actionDesc {
			count++
		} else {
			break // Stop counting if we encounter a non-failed login
		}
	}

	return count
}
