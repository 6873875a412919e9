package seeder

import (
	"time"

	"github.com/cradoe/gopass"
	"github.com/overtimestaff/overtimestaff/internal/models"
)

const seedAdminEmail = "admin@overtimestaff.test"

func (seeder *Seeder) seedAdmin() error {
	_, found, err := seeder.DB.User().GetByEmail(seedAdminEmail)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	hashedPassword, err := gopass.Hash("Adm1n-Passw0rd!")
	if err != nil {
		return err
	}

	admin := &models.User{
		Kind:           models.UserKindAdmin,
		FirstName:      "Queue",
		LastName:       "Admin",
		Email:          seedAdminEmail,
		HashedPassword: hashedPassword,
	}

	_, err = seeder.DB.User().Insert(admin)
	return err
}

func (seeder *Seeder) seedVerificationRequests() error {
	hashedPassword, err := gopass.Hash("W0rker-Passw0rd!")
	if err != nil {
		return err
	}

	subjects := []*models.User{
		{Kind: models.UserKindWorker, FirstName: "Wendy", LastName: "Shift", Email: "wendy@overtimestaff.test", HashedPassword: hashedPassword},
		{Kind: models.UserKindBusiness, FirstName: "Bar", LastName: "Nineteen", Email: "owner@barnineteen.test", HashedPassword: hashedPassword},
		{Kind: models.UserKindAgency, FirstName: "Apex", LastName: "Staffing", Email: "ops@apexstaffing.test", HashedPassword: hashedPassword},
	}

	for _, subject := range subjects {
		_, found, err := seeder.DB.User().GetByEmail(subject.Email)
		if err != nil {
			return err
		}
		if found {
			return nil // fixtures already loaded
		}

		if _, err := seeder.DB.User().Insert(subject); err != nil {
			return err
		}
	}

	now := time.Now()

	// One request per SLA bucket for the worker, plus a business licence
	// and an agency onboarding mid-window.
	fixtures := []models.VerificationRequest{
		{VerificationType: models.VerificationTypeIdentity, SubjectKind: models.SubjectKindWorker, SubjectID: subjects[0].ID, SubmittedAt: now.Add(-2 * time.Hour)},
		{VerificationType: models.VerificationTypeBackgroundCheck, SubjectKind: models.SubjectKindWorker, SubjectID: subjects[0].ID, SubmittedAt: now.Add(-40 * time.Hour)},
		{VerificationType: models.VerificationTypeCertification, SubjectKind: models.SubjectKindWorker, SubjectID: subjects[0].ID, SubmittedAt: now.Add(-50 * time.Hour)},
		{VerificationType: models.VerificationTypeBusinessLicense, SubjectKind: models.SubjectKindBusiness, SubjectID: subjects[1].ID, SubmittedAt: now.Add(-36 * time.Hour)},
		{VerificationType: models.VerificationTypeAgency, SubjectKind: models.SubjectKindAgency, SubjectID: subjects[2].ID, SubmittedAt: now.Add(-12 * time.Hour)},
	}

	for i := range fixtures {
		fixtures[i].Documents = []models.VerificationDocument{
			{Name: "document.pdf", DocumentType: "pdf", URL: "https://res.cloudinary.com/overtimestaff/seed/document.pdf"},
		}

		if _, err := seeder.DB.Verification().Insert(&fixtures[i]); err != nil {
			return err
		}
	}

	return nil
}
