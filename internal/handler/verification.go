package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/overtimestaff/overtimestaff/internal/cache"
	"github.com/overtimestaff/overtimestaff/internal/context"
	"github.com/overtimestaff/overtimestaff/internal/errHandler"
	"github.com/overtimestaff/overtimestaff/internal/helper"
	"github.com/overtimestaff/overtimestaff/internal/models"
	"github.com/overtimestaff/overtimestaff/internal/repository"
	"github.com/overtimestaff/overtimestaff/internal/request"
	"github.com/overtimestaff/overtimestaff/internal/response"
	"github.com/overtimestaff/overtimestaff/internal/sla"
	"github.com/overtimestaff/overtimestaff/internal/validator"
	"github.com/overtimestaff/overtimestaff/internal/workflow"
)

// allowedTypes maps each account kind to the verification types it may
// submit. Worker-class checks belong to workers, licences to businesses,
// agency onboarding to agencies.
var allowedTypes = map[models.SubjectKind][]models.VerificationType{
	models.SubjectKindWorker: {
		models.VerificationTypeIdentity,
		models.VerificationTypeBackgroundCheck,
		models.VerificationTypeCertification,
	},
	models.SubjectKindBusiness: {models.VerificationTypeBusinessLicense},
	models.SubjectKindAgency:   {models.VerificationTypeAgency},
}

type VerificationDocumentResponseData struct {
	Name         string `json:"name"`
	DocumentType string `json:"document_type"`
	URL          string `json:"url"`
}

type VerificationResponseData struct {
	ID               string                             `json:"id"`
	VerificationType string                             `json:"verification_type"`
	SubjectKind      string                             `json:"subject_kind"`
	SubjectID        string                             `json:"subject_id"`
	Status           string                             `json:"status"`
	SubmittedAt      time.Time                          `json:"submitted_at"`
	SLADeadline      time.Time                          `json:"sla_deadline"`
	SLAStatus        string                             `json:"sla_status"`
	RemainingSeconds int64                              `json:"remaining_seconds"`
	DecisionNotes    *string                            `json:"decision_notes,omitempty"`
	ReviewedBy       *string                            `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time                         `json:"reviewed_at,omitempty"`
	Documents        []VerificationDocumentResponseData `json:"documents,omitempty"`
}

type VerificationHandler struct {
	VerificationRepo repository.VerificationRepository
	UserRepo         repository.UserRepository
	ActivityRepo     repository.ActivityRepository
	Reviewer         *workflow.Reviewer
	Cache            *cache.Cache

	ErrHandler *errHandler.ErrorHandler
	Helper     *helper.HelperRepository
}

func NewVerificationHandler(handler *VerificationHandler) *VerificationHandler {
	return &VerificationHandler{
		VerificationRepo: handler.VerificationRepo,
		UserRepo:         handler.UserRepo,
		ActivityRepo:     handler.ActivityRepo,
		Reviewer:         handler.Reviewer,
		Cache:            handler.Cache,
		ErrHandler:       handler.ErrHandler,
		Helper:           handler.Helper,
	}
}

func formatVerification(req *models.VerificationRequest, now time.Time) *VerificationResponseData {
	deadline, _ := sla.Deadline(req.VerificationType, req.SubmittedAt)
	status, _ := sla.StatusOf(req, now)

	remaining := int64(0)
	if !req.Status.Terminal() && deadline.After(now) {
		remaining = int64(deadline.Sub(now).Seconds())
	}

	data := &VerificationResponseData{
		ID:               req.ID,
		VerificationType: string(req.VerificationType),
		SubjectKind:      string(req.SubjectKind),
		SubjectID:        req.SubjectID,
		Status:           string(req.Status),
		SubmittedAt:      req.SubmittedAt,
		SLADeadline:      deadline,
		SLAStatus:        string(status),
		RemainingSeconds: remaining,
	}

	if req.DecisionNotes.Valid {
		data.DecisionNotes = &req.DecisionNotes.String
	}
	if req.ReviewedBy.Valid {
		data.ReviewedBy = &req.ReviewedBy.String
	}
	if req.ReviewedAt.Valid {
		t := req.ReviewedAt.Time
		data.ReviewedAt = &t
	}

	for _, doc := range req.Documents {
		data.Documents = append(data.Documents, VerificationDocumentResponseData{
			Name:         doc.Name,
			DocumentType: doc.DocumentType,
			URL:          doc.URL,
		})
	}

	return data
}

// HandleSubmitVerification creates a pending request for the authenticated
// subject. Document files have already been uploaded; only their metadata is
// recorded here.
func (h *VerificationHandler) HandleSubmitVerification(w http.ResponseWriter, r *http.Request) {
	var input struct {
		VerificationType string `json:"verification_type"`
		Documents        []struct {
			Name         string `json:"name"`
			DocumentType string `json:"document_type"`
			URL          string `json:"url"`
		} `json:"documents"`
		Validator validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	user := context.ContextGetAuthenticatedUser(r)
	subjectKind := models.SubjectKind(user.Kind)

	verificationType := models.VerificationType(input.VerificationType)

	input.Validator.Check(validator.NotBlank(input.VerificationType), "Verification type is required")
	input.Validator.Check(verificationType.Valid(), "Invalid verification type")
	input.Validator.Check(subjectKind.Valid(), "Only workers, businesses and agencies can submit verifications")

	if verificationType.Valid() && subjectKind.Valid() {
		input.Validator.Check(validator.In(verificationType, allowedTypes[subjectKind]...),
			"This verification type is not available for your account")
	}

	input.Validator.Check(len(input.Documents) > 0, "At least one document is required")
	for _, doc := range input.Documents {
		input.Validator.Check(validator.NotBlank(doc.Name), "Document name is required")
		input.Validator.Check(validator.IsURL(doc.URL), "Document URL must be a valid http(s) URL")
	}

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	req := &models.VerificationRequest{
		VerificationType: verificationType,
		SubjectKind:      subjectKind,
		SubjectID:        user.ID,
		Status:           models.VerificationStatusPending,
		SubmittedAt:      time.Now(),
	}

	for _, doc := range input.Documents {
		req.Documents = append(req.Documents, models.VerificationDocument{
			Name:         doc.Name,
			DocumentType: doc.DocumentType,
			URL:          doc.URL,
		})
	}

	id, err := h.VerificationRepo.Insert(req)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	h.Helper.BackgroundTask(r, func() error {
		_, err := h.ActivityRepo.Insert(&repository.ActivityLog{
			UserID:      user.ID,
			Entity:      repository.ActivityLogVerificationEntity,
			EntityId:    id,
			Description: workflow.VerificationActivityLogSubmittedDescription,
		})

		if err != nil {
			log.Printf("Error logging verification submission: %v", err)
			return err
		}

		return nil
	})

	h.invalidateStats(r)

	message := "Verification request submitted successfully."
	err = response.JSONCreatedResponse(w, map[string]any{"ID": id}, message)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleQueueList serves the admin review queue, most urgent first.
func (h *VerificationHandler) HandleQueueList(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Validator validator.Validator `json:"-"`
	}

	query := r.URL.Query()

	filter := repository.QueueFilter{
		VerificationType: models.VerificationType(query.Get("verification_type")),
		SLAStatus:        sla.Status(query.Get("sla_status")),
		Now:              time.Now(),
		Limit:            25,
	}

	if filter.VerificationType != "" {
		input.Validator.Check(filter.VerificationType.Valid(), "Invalid verification type filter")
	}
	if filter.SLAStatus != "" {
		input.Validator.Check(validator.In(filter.SLAStatus,
			sla.StatusOnTrack, sla.StatusAtRisk, sla.StatusBreached),
			"SLA status filter must be one of: on_track, at_risk, breached")
	}

	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		input.Validator.Check(err == nil && validator.Between(limit, 1, 100), "Limit must be between 1 and 100")
		if err == nil {
			filter.Limit = limit
		}
	}

	if v := query.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		input.Validator.Check(err == nil && offset >= 0, "Offset must not be negative")
		if err == nil {
			filter.Offset = offset
		}
	}

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	requests, err := h.VerificationRepo.Queue(filter)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	total, err := h.VerificationRepo.CountOpen(filter)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := make([]*VerificationResponseData, len(requests))
	for i := range requests {
		data[i] = formatVerification(&requests[i], filter.Now)
	}

	pagination := &response.Pagination{
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	err = response.JSONPaginatedResponse(w, data, pagination, "Data retrieved successfully")
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *VerificationHandler) HandleGetVerification(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	req, found, err := h.VerificationRepo.GetOne(id)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if !found {
		h.ErrHandler.NotFound(w, r)
		return
	}

	err = response.JSONOkResponse(w, formatVerification(req, time.Now()), "Data retrieved successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleQueueStats reports SLA counts and compliance, cached in Redis for a
// short window because the dashboard polls it.
func (h *VerificationHandler) HandleQueueStats(w http.ResponseWriter, r *http.Request) {
	if cached, found, err := h.Cache.Get(cache.QueueStatsKey); err == nil && found {
		var stats sla.Stats
		if err := json.Unmarshal([]byte(cached), &stats); err == nil {
			err = response.JSONOkResponse(w, stats, "Data retrieved successfully", nil)
			if err != nil {
				h.ErrHandler.ServerError(w, r, err)
			}
			return
		}
	}

	open, err := h.VerificationRepo.Open()
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	// The historical window defaults to all-time; ?since_days=N bounds it.
	since := time.Time{}
	if v := r.URL.Query().Get("since_days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			h.ErrHandler.BadRequest(w, r, errors.New("since_days must be a positive integer"))
			return
		}
		since = time.Now().AddDate(0, 0, -days)
	}

	resolved, err := h.VerificationRepo.ResolvedSince(since)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	stats, err := sla.Aggregate(time.Now(), open, resolved)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	h.Helper.BackgroundTask(r, func() error {
		payload, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		return h.Cache.Set(cache.QueueStatsKey, string(payload), cache.QueueStatsTTL)
	})

	err = response.JSONOkResponse(w, stats, "Data retrieved successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *VerificationHandler) HandleMarkInReview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	admin := context.ContextGetAuthenticatedUser(r)

	err := h.Reviewer.MarkInReview(id, admin.ID)
	if err != nil {
		h.reviewError(w, r, err)
		return
	}

	err = response.JSONOkResponse(w, nil, "Verification request is now in review", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *VerificationHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	admin := context.ContextGetAuthenticatedUser(r)

	err := h.Reviewer.ApproveOne(id, admin.ID)
	if err != nil {
		h.reviewError(w, r, err)
		return
	}

	h.invalidateStats(r)

	err = response.JSONOkResponse(w, nil, "Verification request approved", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *VerificationHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Reason string `json:"reason"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	id := r.PathValue("id")
	admin := context.ContextGetAuthenticatedUser(r)

	err = h.Reviewer.RejectOne(id, admin.ID, input.Reason)
	if err != nil {
		h.reviewError(w, r, err)
		return
	}

	h.invalidateStats(r)

	err = response.JSONOkResponse(w, nil, "Verification request rejected", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *VerificationHandler) HandleBulkApprove(w http.ResponseWriter, r *http.Request) {
	var input struct {
		IDs []string `json:"ids"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	admin := context.ContextGetAuthenticatedUser(r)

	result, err := h.Reviewer.BulkApprove(input.IDs, admin.ID)
	if err != nil {
		h.reviewError(w, r, err)
		return
	}

	h.invalidateStats(r)

	err = response.JSONOkResponse(w, result, "Bulk approval processed", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *VerificationHandler) HandleBulkReject(w http.ResponseWriter, r *http.Request) {
	var input struct {
		IDs    []string `json:"ids"`
		Reason string   `json:"reason"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	admin := context.ContextGetAuthenticatedUser(r)

	result, err := h.Reviewer.BulkReject(input.IDs, admin.ID, input.Reason)
	if err != nil {
		h.reviewError(w, r, err)
		return
	}

	h.invalidateStats(r)

	err = response.JSONOkResponse(w, result, "Bulk rejection processed", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// reviewError maps the workflow's modeled outcomes onto HTTP replies.
// Precondition failures are the operator's to fix; conflicts mean the queue
// view is stale and should be refreshed.
func (h *VerificationHandler) reviewError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		h.ErrHandler.NotFound(w, r)
	case errors.Is(err, models.ErrAlreadyTerminal):
		h.ErrHandler.Conflict(w, r, "This verification request has already been decided")
	case errors.Is(err, models.ErrRejectionReason),
		errors.Is(err, workflow.ErrEmptyBatch),
		errors.Is(err, workflow.ErrBatchTooLarge),
		errors.Is(err, models.ErrInvalidTransition):
		h.ErrHandler.BadRequest(w, r, err)
	default:
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *VerificationHandler) invalidateStats(r *http.Request) {
	h.Helper.BackgroundTask(r, func() error {
		return h.Cache.Delete(cache.QueueStatsKey)
	})
}
