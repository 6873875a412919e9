package mocks

import (
	"time"

	"github.com/overtimestaff/overtimestaff/internal/models"
	"github.com/overtimestaff/overtimestaff/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockVerificationRepo struct {
	mock.Mock
}

func (m *MockVerificationRepo) Insert(req *models.VerificationRequest) (string, error) {
	args := m.Called(req)
	return args.String(0), args.Error(1)
}

func (m *MockVerificationRepo) GetOne(id string) (*models.VerificationRequest, bool, error) {
	args := m.Called(id)

	var req *models.VerificationRequest
	if args.Get(0) != nil {
		req = args.Get(0).(*models.VerificationRequest)
	}
	return req, args.Bool(1), args.Error(2)
}

func (m *MockVerificationRepo) Queue(filter repository.QueueFilter) ([]models.VerificationRequest, error) {
	args := m.Called(filter)
	return args.Get(0).([]models.VerificationRequest), args.Error(1)
}

func (m *MockVerificationRepo) CountOpen(filter repository.QueueFilter) (int, error) {
	args := m.Called(filter)
	return args.Int(0), args.Error(1)
}

func (m *MockVerificationRepo) Open() ([]models.VerificationRequest, error) {
	args := m.Called()
	return args.Get(0).([]models.VerificationRequest), args.Error(1)
}

func (m *MockVerificationRepo) ResolvedSince(since time.Time) ([]models.VerificationRequest, error) {
	args := m.Called(since)
	return args.Get(0).([]models.VerificationRequest), args.Error(1)
}

func (m *MockVerificationRepo) MarkInReview(id string, now time.Time) (bool, error) {
	args := m.Called(id, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockVerificationRepo) FinalizeDecision(req *models.VerificationRequest) (bool, error) {
	args := m.Called(req)
	return args.Bool(0), args.Error(1)
}
