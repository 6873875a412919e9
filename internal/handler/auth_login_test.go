package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/overtimestaff/overtimestaff/internal/config"
	"github.com/overtimestaff/overtimestaff/internal/errHandler"
	"github.com/overtimestaff/overtimestaff/internal/handler"
	"github.com/overtimestaff/overtimestaff/internal/helper"
	"github.com/overtimestaff/overtimestaff/internal/mocks"
	"github.com/overtimestaff/overtimestaff/internal/models"
	"github.com/overtimestaff/overtimestaff/internal/repository"

	"github.com/cradoe/gopass"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const loginPassword = "S3cure&Passw0rd"

func newAuthFixture(users *mocks.MockUserRepo, activities *mocks.MockActivityRepo) *handler.AuthHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	baseURL := "http://localhost:4444"

	cfg := &config.Config{BaseURL: baseURL}
	cfg.Jwt.SecretKey = "mgzidhmxqoevzblgkcbyxtfssdkvnmhp"

	errH := errHandler.New("", baseURL, new(mocks.MockMailer), logger)

	var wg sync.WaitGroup
	return handler.NewAuthHandler(&handler.AuthHandler{
		UserRepo:     users,
		ActivityRepo: activities,
		Config:       cfg,
		ErrHandler:   errH,
		Helper:       helper.New(&baseURL, &wg, errH),
	})
}

func loginRequest(t *testing.T, email, password string) *http.Request {
	t.Helper()

	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	require.NoError(t, err)

	return httptest.NewRequest("POST", "/auth/login", bytes.NewReader(body))
}

func TestHandleAuthLogin(t *testing.T) {
	users := new(mocks.MockUserRepo)
	activities := new(mocks.MockActivityRepo)
	h := newAuthFixture(users, activities)

	hashed, err := gopass.Hash(loginPassword)
	require.NoError(t, err)

	users.On("GetByEmail", "admin@overtimestaff.test").Return(&models.User{
		ID:             "a3bb189e-8bf9-4a8b-b8b1-3b1c64c0e5f1",
		Kind:           models.UserKindAdmin,
		Email:          "admin@overtimestaff.test",
		HashedPassword: hashed,
		Status:         repository.UserAccountActiveStatus,
	}, true, nil)
	activities.On("Insert", mock.Anything).Return(&repository.ActivityLog{}, nil)

	w := httptest.NewRecorder()
	h.HandleAuthLogin(w, loginRequest(t, "admin@overtimestaff.test", loginPassword))

	require.Equal(t, http.StatusOK, w.Code)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))

	data := envelope["data"].(map[string]any)
	require.NotEmpty(t, data["authentication_token"])
	require.NotEmpty(t, data["authentication_token_expiry"])
}

func TestHandleAuthLogin_WrongPassword(t *testing.T) {
	users := new(mocks.MockUserRepo)
	activities := new(mocks.MockActivityRepo)
	h := newAuthFixture(users, activities)

	hashed, err := gopass.Hash(loginPassword)
	require.NoError(t, err)

	users.On("GetByEmail", "admin@overtimestaff.test").Return(&models.User{
		ID:             "a3bb189e-8bf9-4a8b-b8b1-3b1c64c0e5f1",
		Email:          "admin@overtimestaff.test",
		HashedPassword: hashed,
		Status:         repository.UserAccountActiveStatus,
	}, true, nil)
	activities.On("Insert", mock.Anything).Return(&repository.ActivityLog{}, nil)

	w := httptest.NewRecorder()
	h.HandleAuthLogin(w, loginRequest(t, "admin@overtimestaff.test", "wrong-password"))

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleAuthLogin_LockedAccount(t *testing.T) {
	users := new(mocks.MockUserRepo)
	activities := new(mocks.MockActivityRepo)
	h := newAuthFixture(users, activities)

	users.On("GetByEmail", "locked@overtimestaff.test").Return(&models.User{
		ID:     "b4cc290f-9c0a-4b9c-c9c2-4c2d75d1f6g2",
		Email:  "locked@overtimestaff.test",
		Status: repository.UserAccountLockedStatus,
	}, true, nil)

	w := httptest.NewRecorder()
	h.HandleAuthLogin(w, loginRequest(t, "locked@overtimestaff.test", loginPassword))

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandleAuthLogin_UnknownEmail(t *testing.T) {
	users := new(mocks.MockUserRepo)
	activities := new(mocks.MockActivityRepo)
	h := newAuthFixture(users, activities)

	users.On("GetByEmail", "nobody@overtimestaff.test").Return(nil, false, nil)

	w := httptest.NewRecorder()
	h.HandleAuthLogin(w, loginRequest(t, "nobody@overtimestaff.test", loginPassword))

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
