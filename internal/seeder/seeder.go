package seeder

import (
	"log"

	"github.com/overtimestaff/overtimestaff/internal/repository"
)

type Seeder struct {
	DB repository.Database
}

func New(DB repository.Database) *Seeder {
	return &Seeder{
		DB: DB,
	}
}

// Run loads development fixtures: a default admin account and a spread of
// verification requests covering every SLA bucket. It is meant for local
// environments only and is a no-op when the fixtures already exist.
func (seeder *Seeder) Run() {
	if err := seeder.seedAdmin(); err != nil {
		log.Printf("Error seeding admin account: %v", err)
		return
	}

	if err := seeder.seedVerificationRequests(); err != nil {
		log.Printf("Error seeding verification requests: %v", err)
	}
}
