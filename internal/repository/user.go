package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/overtimestaff/overtimestaff/internal/models"
)

const (
	UserAccountActiveStatus = "active"
	UserAccountLockedStatus = "locked"
)

type UserRepository interface {
	Insert(user *models.User) (string, error)
	GetOne(id string) (*models.User, bool, error)
	GetByEmail(email string) (*models.User, bool, error)

	// GetSubject resolves the weak (kind, id) reference a verification
	// request carries to the account it belongs to.
	GetSubject(kind models.SubjectKind, id string) (*models.User, bool, error)

	Lock(id string) error
}

type UserRepositoryImpl struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &UserRepositoryImpl{db: db}
}

const userColumns = `
	id, kind, first_name, last_name, email, hashed_password, status, created_at, verified_at, deleted_at`

func (repo *UserRepositoryImpl) Insert(user *models.User) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		INSERT INTO users (kind, first_name, last_name, email, hashed_password)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	var id string
	err := repo.db.GetContext(ctx, &id, query,
		user.Kind,
		user.FirstName,
		user.LastName,
		user.Email,
		user.HashedPassword,
	)
	if err != nil {
		return "", err
	}

	user.ID = id
	return id, nil
}

func (repo *UserRepositoryImpl) GetOne(id string) (*models.User, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND deleted_at IS NULL`

	var user models.User
	err := repo.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &user, true, nil
}

func (repo *UserRepositoryImpl) GetByEmail(email string) (*models.User, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1 AND deleted_at IS NULL`

	var user models.User
	err := repo.db.GetContext(ctx, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &user, true, nil
}

func (repo *UserRepositoryImpl) GetSubject(kind models.SubjectKind, id string) (*models.User, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND kind = $2 AND deleted_at IS NULL`

	var user models.User
	err := repo.db.GetContext(ctx, &user, query, id, string(kind))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &user, true, nil
}

func (repo *UserRepositoryImpl) Lock(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE users
		SET status = $2
		WHERE id = $1`

	_, err := repo.db.ExecContext(ctx, query, id, UserAccountLockedStatus)
	return err
}
