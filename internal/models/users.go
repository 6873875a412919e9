package models

import (
	"database/sql"
	"time"
)

type User struct {
	ID             string       `db:"id"`
	Kind           string       `db:"kind"`
	FirstName      string       `db:"first_name"`
	LastName       string       `db:"last_name"`
	Email          string       `db:"email"`
	HashedPassword string       `db:"hashed_password"`
	Status         string       `db:"status"`
	CreatedAt      time.Time    `db:"created_at"`
	VerifiedAt     sql.NullTime `db:"verified_at"`
	DeletedAt      sql.NullTime `db:"deleted_at"`
}

const (
	// UserKindAdmin marks back-office accounts allowed to work the
	// verification queue. The subject kinds (worker, business, agency)
	// share the same table.
	UserKindAdmin    = "admin"
	UserKindWorker   = "worker"
	UserKindBusiness = "business"
	UserKindAgency   = "agency"
)

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
