package workflow_test

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/overtimestaff/overtimestaff/internal/mocks"
	"github.com/overtimestaff/overtimestaff/internal/models"
	"github.com/overtimestaff/overtimestaff/internal/repository"
	"github.com/overtimestaff/overtimestaff/internal/workflow"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var reviewTime = time.Date(2025, 3, 12, 14, 30, 0, 0, time.UTC)

const reviewerID = "a3bb189e-8bf9-4a8b-b8b1-3b1c64c0e5f1"

type reviewFixture struct {
	verifications *mocks.MockVerificationRepo
	activities    *mocks.MockActivityRepo
	producer      *mocks.MockProducer
	reviewer      *workflow.Reviewer
}

func newReviewFixture() *reviewFixture {
	f := &reviewFixture{
		verifications: new(mocks.MockVerificationRepo),
		activities:    new(mocks.MockActivityRepo),
		producer:      new(mocks.MockProducer),
	}

	f.reviewer = workflow.New(&workflow.Reviewer{
		Verifications: f.verifications,
		Activities:    f.activities,
		Producer:      f.producer,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:           func() time.Time { return reviewTime },
	})

	return f
}

func pendingVerification(id string) *models.VerificationRequest {
	return &models.VerificationRequest{
		ID:               id,
		VerificationType: models.VerificationTypeIdentity,
		SubjectKind:      models.SubjectKindWorker,
		SubjectID:        "worker-" + id,
		Status:           models.VerificationStatusPending,
		SubmittedAt:      reviewTime.Add(-6 * time.Hour),
	}
}

func approvedVerification(id string) *models.VerificationRequest {
	req := pendingVerification(id)
	req.Status = models.VerificationStatusApproved
	req.ReviewedBy = sql.NullString{String: "another-admin", Valid: true}
	req.ReviewedAt = sql.NullTime{Time: reviewTime.Add(-time.Hour), Valid: true}
	return req
}

func TestApproveOne(t *testing.T) {
	f := newReviewFixture()
	req := pendingVerification("ver-1")

	f.verifications.On("GetOne", "ver-1").Return(req, true, nil)
	f.verifications.On("FinalizeDecision", req).Return(true, nil)
	f.activities.On("Insert", mock.Anything).Return(&repository.ActivityLog{}, nil)
	f.producer.On("ProduceMessage", workflow.VerificationApprovedTopic, mock.AnythingOfType("string")).Return(nil)

	err := f.reviewer.ApproveOne("ver-1", reviewerID)
	require.NoError(t, err)

	require.Equal(t, models.VerificationStatusApproved, req.Status)
	require.Equal(t, reviewerID, req.ReviewedBy.String)
	require.Equal(t, reviewTime, req.ReviewedAt.Time)

	f.verifications.AssertExpectations(t)
	f.producer.AssertExpectations(t)
}

func TestApproveOne_NotFound(t *testing.T) {
	f := newReviewFixture()

	f.verifications.On("GetOne", "missing").Return(nil, false, nil)

	err := f.reviewer.ApproveOne("missing", reviewerID)
	require.ErrorIs(t, err, workflow.ErrNotFound)

	f.verifications.AssertNotCalled(t, "FinalizeDecision", mock.Anything)
}

func TestApproveOne_AlreadyDecided(t *testing.T) {
	f := newReviewFixture()
	req := approvedVerification("ver-1")

	f.verifications.On("GetOne", "ver-1").Return(req, true, nil)

	err := f.reviewer.ApproveOne("ver-1", reviewerID)
	require.ErrorIs(t, err, models.ErrAlreadyTerminal)

	// the earlier decision must stand untouched
	require.Equal(t, "another-admin", req.ReviewedBy.String)
	f.verifications.AssertNotCalled(t, "FinalizeDecision", mock.Anything)
	f.producer.AssertNotCalled(t, "ProduceMessage", mock.Anything, mock.Anything)
}

func TestApproveOne_LostRace(t *testing.T) {
	// Another admin decides between our load and our write; the guarded
	// update applies nothing and the caller sees the record as decided.
	f := newReviewFixture()
	req := pendingVerification("ver-1")

	f.verifications.On("GetOne", "ver-1").Return(req, true, nil)
	f.verifications.On("FinalizeDecision", req).Return(false, nil)

	err := f.reviewer.ApproveOne("ver-1", reviewerID)
	require.ErrorIs(t, err, models.ErrAlreadyTerminal)

	f.producer.AssertNotCalled(t, "ProduceMessage", mock.Anything, mock.Anything)
}

func TestRejectOne(t *testing.T) {
	f := newReviewFixture()
	req := pendingVerification("ver-1")
	reason := "document photo is illegible, please resubmit"

	f.verifications.On("GetOne", "ver-1").Return(req, true, nil)
	f.verifications.On("FinalizeDecision", req).Return(true, nil)
	f.activities.On("Insert", mock.Anything).Return(&repository.ActivityLog{}, nil)
	f.producer.On("ProduceMessage", workflow.VerificationRejectedTopic, mock.AnythingOfType("string")).Return(nil)

	err := f.reviewer.RejectOne("ver-1", reviewerID, reason)
	require.NoError(t, err)

	require.Equal(t, models.VerificationStatusRejected, req.Status)
	require.Equal(t, reason, req.DecisionNotes.String)

	f.producer.AssertExpectations(t)
}

func TestRejectOne_ShortReason(t *testing.T) {
	f := newReviewFixture()
	req := pendingVerification("ver-1")

	f.verifications.On("GetOne", "ver-1").Return(req, true, nil)

	err := f.reviewer.RejectOne("ver-1", reviewerID, "too short")
	require.ErrorIs(t, err, models.ErrRejectionReason)

	require.Equal(t, models.VerificationStatusPending, req.Status)
	f.verifications.AssertNotCalled(t, "FinalizeDecision", mock.Anything)
}

func TestRejectOne_TerminalReportedBeforeMissingReason(t *testing.T) {
	f := newReviewFixture()
	req := approvedVerification("ver-1")

	f.verifications.On("GetOne", "ver-1").Return(req, true, nil)

	err := f.reviewer.RejectOne("ver-1", reviewerID, "")
	require.ErrorIs(t, err, models.ErrAlreadyTerminal)
}

func TestMarkInReview(t *testing.T) {
	f := newReviewFixture()
	req := pendingVerification("ver-1")

	f.verifications.On("GetOne", "ver-1").Return(req, true, nil)
	f.verifications.On("MarkInReview", "ver-1", reviewTime).Return(true, nil)
	f.activities.On("Insert", mock.Anything).Return(&repository.ActivityLog{}, nil)

	err := f.reviewer.MarkInReview("ver-1", reviewerID)
	require.NoError(t, err)

	f.verifications.AssertExpectations(t)
}

func TestMarkInReview_AlreadyInReviewIsNoOp(t *testing.T) {
	f := newReviewFixture()
	req := pendingVerification("ver-1")
	req.Status = models.VerificationStatusInReview

	f.verifications.On("GetOne", "ver-1").Return(req, true, nil)

	err := f.reviewer.MarkInReview("ver-1", reviewerID)
	require.NoError(t, err)

	f.verifications.AssertNotCalled(t, "MarkInReview", mock.Anything, mock.Anything)
}

func TestMarkInReview_Decided(t *testing.T) {
	f := newReviewFixture()

	f.verifications.On("GetOne", "ver-1").Return(approvedVerification("ver-1"), true, nil)

	err := f.reviewer.MarkInReview("ver-1", reviewerID)
	require.ErrorIs(t, err, models.ErrAlreadyTerminal)
}

func TestBulkApprove_PartialSuccess(t *testing.T) {
	f := newReviewFixture()

	// three pending, one already decided, one unknown
	for _, id := range []string{"ver-1", "ver-2", "ver-3"} {
		f.verifications.On("GetOne", id).Return(pendingVerification(id), true, nil)
	}
	f.verifications.On("FinalizeDecision", mock.Anything).Return(true, nil)
	f.verifications.On("GetOne", "ver-4").Return(approvedVerification("ver-4"), true, nil)
	f.verifications.On("GetOne", "ver-5").Return(nil, false, nil)

	f.activities.On("Insert", mock.Anything).Return(&repository.ActivityLog{}, nil)
	f.producer.On("ProduceMessage", workflow.VerificationApprovedTopic, mock.AnythingOfType("string")).Return(nil)

	result, err := f.reviewer.BulkApprove([]string{"ver-1", "ver-2", "ver-3", "ver-4", "ver-5"}, reviewerID)
	require.NoError(t, err)

	require.Len(t, result.Succeeded, 3)
	require.ElementsMatch(t, []string{"ver-1", "ver-2", "ver-3"}, result.Succeeded)
	require.Equal(t, map[string]string{
		"ver-4": workflow.FailureAlreadyDecided,
		"ver-5": workflow.FailureNotFound,
	}, result.Failed)

	f.producer.AssertNumberOfCalls(t, "ProduceMessage", 3)
}

func TestBulkApprove_EmptyBatch(t *testing.T) {
	f := newReviewFixture()

	for _, ids := range [][]string{nil, {}, {"", ""}} {
		result, err := f.reviewer.BulkApprove(ids, reviewerID)
		require.ErrorIs(t, err, workflow.ErrEmptyBatch)
		require.Nil(t, result)
	}

	f.verifications.AssertNotCalled(t, "GetOne", mock.Anything)
}

func TestBulkApprove_BatchTooLarge(t *testing.T) {
	f := newReviewFixture()

	ids := make([]string, workflow.MaxBatchSize+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("ver-%d", i)
	}

	result, err := f.reviewer.BulkApprove(ids, reviewerID)
	require.ErrorIs(t, err, workflow.ErrBatchTooLarge)
	require.Nil(t, result)

	// an oversized batch must not touch a single record
	f.verifications.AssertNotCalled(t, "GetOne", mock.Anything)
	f.verifications.AssertNotCalled(t, "FinalizeDecision", mock.Anything)
}

func TestBulkApprove_DedupesIDs(t *testing.T) {
	f := newReviewFixture()
	req := pendingVerification("ver-1")

	f.verifications.On("GetOne", "ver-1").Return(req, true, nil)
	f.verifications.On("FinalizeDecision", req).Return(true, nil)
	f.activities.On("Insert", mock.Anything).Return(&repository.ActivityLog{}, nil)
	f.producer.On("ProduceMessage", mock.Anything, mock.Anything).Return(nil)

	result, err := f.reviewer.BulkApprove([]string{"ver-1", "ver-1", "ver-1"}, reviewerID)
	require.NoError(t, err)

	require.Equal(t, []string{"ver-1"}, result.Succeeded)
	f.verifications.AssertNumberOfCalls(t, "GetOne", 1)
}

func TestBulkApprove_InfrastructureErrorAborts(t *testing.T) {
	f := newReviewFixture()
	dbErr := errors.New("connection reset")

	f.verifications.On("GetOne", "ver-1").Return(nil, false, dbErr)

	result, err := f.reviewer.BulkApprove([]string{"ver-1"}, reviewerID)
	require.ErrorIs(t, err, dbErr)
	require.Nil(t, result)
}

func TestBulkReject(t *testing.T) {
	f := newReviewFixture()
	reason := "supporting documents expired, resubmit with current ones"

	reqs := make(map[string]*models.VerificationRequest)
	for _, id := range []string{"ver-1", "ver-2"} {
		req := pendingVerification(id)
		reqs[id] = req
		f.verifications.On("GetOne", id).Return(req, true, nil)
	}
	f.verifications.On("FinalizeDecision", mock.Anything).Return(true, nil)
	f.activities.On("Insert", mock.Anything).Return(&repository.ActivityLog{}, nil)
	f.producer.On("ProduceMessage", workflow.VerificationRejectedTopic, mock.AnythingOfType("string")).Return(nil)

	result, err := f.reviewer.BulkReject([]string{"ver-1", "ver-2"}, reviewerID, reason)
	require.NoError(t, err)

	require.Len(t, result.Succeeded, 2)
	for _, req := range reqs {
		require.Equal(t, models.VerificationStatusRejected, req.Status)
		require.Equal(t, reason, req.DecisionNotes.String)
	}

	f.producer.AssertNumberOfCalls(t, "ProduceMessage", 2)
}

func TestBulkReject_SharedReasonValidatedUpFront(t *testing.T) {
	f := newReviewFixture()

	result, err := f.reviewer.BulkReject([]string{"ver-1", "ver-2"}, reviewerID, "bad")
	require.ErrorIs(t, err, models.ErrRejectionReason)
	require.Nil(t, result)

	// the batch is refused before any record is loaded
	f.verifications.AssertNotCalled(t, "GetOne", mock.Anything)
}
