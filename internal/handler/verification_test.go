package handler_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/overtimestaff/overtimestaff/internal/cache"
	"github.com/overtimestaff/overtimestaff/internal/context"
	"github.com/overtimestaff/overtimestaff/internal/errHandler"
	"github.com/overtimestaff/overtimestaff/internal/handler"
	"github.com/overtimestaff/overtimestaff/internal/helper"
	"github.com/overtimestaff/overtimestaff/internal/mocks"
	"github.com/overtimestaff/overtimestaff/internal/models"
	"github.com/overtimestaff/overtimestaff/internal/repository"
	"github.com/overtimestaff/overtimestaff/internal/workflow"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var queueTime = time.Date(2025, 3, 12, 14, 30, 0, 0, time.UTC)

type handlerFixture struct {
	verifications *mocks.MockVerificationRepo
	activities    *mocks.MockActivityRepo
	producer      *mocks.MockProducer
	handler       *handler.VerificationHandler
	wg            sync.WaitGroup
}

func newHandlerFixture() *handlerFixture {
	f := &handlerFixture{
		verifications: new(mocks.MockVerificationRepo),
		activities:    new(mocks.MockActivityRepo),
		producer:      new(mocks.MockProducer),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	baseURL := "http://localhost:4444"

	errH := errHandler.New("", baseURL, new(mocks.MockMailer), logger)

	reviewer := workflow.New(&workflow.Reviewer{
		Verifications: f.verifications,
		Activities:    f.activities,
		Producer:      f.producer,
		Logger:        logger,
		Now:           func() time.Time { return queueTime },
	})

	f.handler = handler.NewVerificationHandler(&handler.VerificationHandler{
		VerificationRepo: f.verifications,
		ActivityRepo:     f.activities,
		Reviewer:         reviewer,
		Cache:            cache.New("localhost:6379", 0),
		ErrHandler:       errH,
		Helper:           helper.New(&baseURL, &f.wg, errH),
	})

	return f
}

func adminRequest(method, target, id string, body []byte) *http.Request {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	r := httptest.NewRequest(method, target, reader)
	if id != "" {
		r.SetPathValue("id", id)
	}

	return context.ContextSetAuthenticatedUser(r, &models.User{
		ID:   "a3bb189e-8bf9-4a8b-b8b1-3b1c64c0e5f1",
		Kind: models.UserKindAdmin,
	})
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func pendingQueueItem(id string) *models.VerificationRequest {
	return &models.VerificationRequest{
		ID:               id,
		VerificationType: models.VerificationTypeIdentity,
		SubjectKind:      models.SubjectKindWorker,
		SubjectID:        "worker-1",
		Status:           models.VerificationStatusPending,
		SubmittedAt:      queueTime.Add(-6 * time.Hour),
	}
}

func TestHandleApprove(t *testing.T) {
	f := newHandlerFixture()

	f.verifications.On("GetOne", "ver-1").Return(pendingQueueItem("ver-1"), true, nil)
	f.verifications.On("FinalizeDecision", mock.Anything).Return(true, nil)
	f.activities.On("Insert", mock.Anything).Return(&repository.ActivityLog{}, nil)
	f.producer.On("ProduceMessage", workflow.VerificationApprovedTopic, mock.AnythingOfType("string")).Return(nil)

	w := httptest.NewRecorder()
	f.handler.HandleApprove(w, adminRequest("POST", "/verifications/ver-1/approve", "ver-1", nil))

	require.Equal(t, http.StatusOK, w.Code)

	envelope := decodeEnvelope(t, w)
	require.Equal(t, true, envelope["success"])
}

func TestHandleApprove_AlreadyDecided(t *testing.T) {
	f := newHandlerFixture()

	decided := pendingQueueItem("ver-1")
	decided.Status = models.VerificationStatusRejected
	decided.ReviewedAt = sql.NullTime{Time: queueTime.Add(-time.Hour), Valid: true}

	f.verifications.On("GetOne", "ver-1").Return(decided, true, nil)

	w := httptest.NewRecorder()
	f.handler.HandleApprove(w, adminRequest("POST", "/verifications/ver-1/approve", "ver-1", nil))

	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, false, decodeEnvelope(t, w)["success"])
}

func TestHandleApprove_NotFound(t *testing.T) {
	f := newHandlerFixture()

	f.verifications.On("GetOne", "missing").Return(nil, false, nil)

	w := httptest.NewRecorder()
	f.handler.HandleApprove(w, adminRequest("POST", "/verifications/missing/approve", "missing", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleReject_ShortReason(t *testing.T) {
	f := newHandlerFixture()

	f.verifications.On("GetOne", "ver-1").Return(pendingQueueItem("ver-1"), true, nil)

	body := []byte(`{"reason": "bad"}`)
	w := httptest.NewRecorder()
	f.handler.HandleReject(w, adminRequest("POST", "/verifications/ver-1/reject", "ver-1", body))

	require.Equal(t, http.StatusBadRequest, w.Code)
	f.verifications.AssertNotCalled(t, "FinalizeDecision", mock.Anything)
}

func TestHandleReject(t *testing.T) {
	f := newHandlerFixture()

	f.verifications.On("GetOne", "ver-1").Return(pendingQueueItem("ver-1"), true, nil)
	f.verifications.On("FinalizeDecision", mock.Anything).Return(true, nil)
	f.activities.On("Insert", mock.Anything).Return(&repository.ActivityLog{}, nil)
	f.producer.On("ProduceMessage", workflow.VerificationRejectedTopic, mock.AnythingOfType("string")).Return(nil)

	body := []byte(`{"reason": "document photo is illegible, please resubmit"}`)
	w := httptest.NewRecorder()
	f.handler.HandleReject(w, adminRequest("POST", "/verifications/ver-1/reject", "ver-1", body))

	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleBulkApprove_PartialSuccess(t *testing.T) {
	f := newHandlerFixture()

	f.verifications.On("GetOne", "ver-1").Return(pendingQueueItem("ver-1"), true, nil)
	f.verifications.On("GetOne", "ver-2").Return(nil, false, nil)
	f.verifications.On("FinalizeDecision", mock.Anything).Return(true, nil)
	f.activities.On("Insert", mock.Anything).Return(&repository.ActivityLog{}, nil)
	f.producer.On("ProduceMessage", mock.Anything, mock.Anything).Return(nil)

	body := []byte(`{"ids": ["ver-1", "ver-2"]}`)
	w := httptest.NewRecorder()
	f.handler.HandleBulkApprove(w, adminRequest("POST", "/verifications/bulk/approve", "", body))

	require.Equal(t, http.StatusOK, w.Code)

	envelope := decodeEnvelope(t, w)
	data := envelope["data"].(map[string]any)
	require.Equal(t, []any{"ver-1"}, data["succeeded"])
	require.Equal(t, map[string]any{"ver-2": workflow.FailureNotFound}, data["failed"])
}

func TestHandleBulkApprove_BatchTooLarge(t *testing.T) {
	f := newHandlerFixture()

	ids := make([]string, workflow.MaxBatchSize+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("ver-%d", i)
	}
	body, err := json.Marshal(map[string]any{"ids": ids})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	f.handler.HandleBulkApprove(w, adminRequest("POST", "/verifications/bulk/approve", "", body))

	require.Equal(t, http.StatusBadRequest, w.Code)
	f.verifications.AssertNotCalled(t, "GetOne", mock.Anything)
}

func TestHandleBulkReject_EmptyBatch(t *testing.T) {
	f := newHandlerFixture()

	body := []byte(`{"ids": [], "reason": "supporting documents expired, resubmit"}`)
	w := httptest.NewRecorder()
	f.handler.HandleBulkReject(w, adminRequest("POST", "/verifications/bulk/reject", "", body))

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetVerification(t *testing.T) {
	f := newHandlerFixture()

	req := pendingQueueItem("ver-1")
	req.Documents = []models.VerificationDocument{
		{Name: "passport.jpg", DocumentType: "image/jpeg", URL: "https://cdn.example.com/passport.jpg"},
	}

	f.verifications.On("GetOne", "ver-1").Return(req, true, nil)

	w := httptest.NewRecorder()
	f.handler.HandleGetVerification(w, adminRequest("GET", "/verifications/ver-1", "ver-1", nil))

	require.Equal(t, http.StatusOK, w.Code)

	envelope := decodeEnvelope(t, w)
	data := envelope["data"].(map[string]any)
	require.Equal(t, "ver-1", data["id"])
	require.Equal(t, "identity", data["verification_type"])
	require.NotEmpty(t, data["sla_deadline"])
	require.NotEmpty(t, data["sla_status"])
	require.Len(t, data["documents"], 1)
}

func TestHandleGetVerification_NotFound(t *testing.T) {
	f := newHandlerFixture()

	f.verifications.On("GetOne", "missing").Return(nil, false, nil)

	w := httptest.NewRecorder()
	f.handler.HandleGetVerification(w, adminRequest("GET", "/verifications/missing", "missing", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
}
