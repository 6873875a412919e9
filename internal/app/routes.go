package app

import (
	"net/http"

	"github.com/overtimestaff/overtimestaff/internal/handler"
	"github.com/overtimestaff/overtimestaff/internal/middleware"
)

func (app *Application) routes() http.Handler {
	mux := http.NewServeMux()

	middlewareRepo := middleware.New(app.ErrorHandler, app.Logger, app.DB.User(), &app.Config)

	healthHandler := handler.NewHealthCheckHandler(app.ErrorHandler)

	authHandler := handler.NewAuthHandler(&handler.AuthHandler{
		UserRepo:     app.DB.User(),
		ActivityRepo: app.DB.Activity(),
		Config:       &app.Config,
		ErrHandler:   app.ErrorHandler,
		Helper:       app.Helper,
	})

	verificationHandler := handler.NewVerificationHandler(&handler.VerificationHandler{
		VerificationRepo: app.DB.Verification(),
		UserRepo:         app.DB.User(),
		ActivityRepo:     app.DB.Activity(),
		Reviewer:         app.Reviewer,
		Cache:            app.Cache,
		ErrHandler:       app.ErrorHandler,
		Helper:           app.Helper,
	})

	documentHandler := handler.NewDocumentHandler(&handler.DocumentHandler{
		FileUploader: app.FileUploader,
		ErrHandler:   app.ErrorHandler,
	})

	mux.HandleFunc("GET /status", healthHandler.HandleHealthCheck)

	mux.HandleFunc("POST /auth/register", authHandler.HandleAuthRegister)
	mux.HandleFunc("POST /auth/login", authHandler.HandleAuthLogin)

	// Subjects submit documents and verification requests.
	mux.Handle("POST /documents", middlewareRepo.RequireAuthenticatedUser(http.HandlerFunc(documentHandler.HandleUploadDocument)))
	mux.Handle("POST /verifications", middlewareRepo.RequireAuthenticatedUser(http.HandlerFunc(verificationHandler.HandleSubmitVerification)))

	// The review queue is admin-only.
	mux.Handle("GET /verifications", middlewareRepo.RequireAdmin(http.HandlerFunc(verificationHandler.HandleQueueList)))
	mux.Handle("GET /verifications/stats", middlewareRepo.RequireAdmin(http.HandlerFunc(verificationHandler.HandleQueueStats)))
	mux.Handle("GET /verifications/{id}", middlewareRepo.RequireAdmin(http.HandlerFunc(verificationHandler.HandleGetVerification)))
	mux.Handle("POST /verifications/{id}/in-review", middlewareRepo.RequireAdmin(http.HandlerFunc(verificationHandler.HandleMarkInReview)))
	mux.Handle("POST /verifications/{id}/approve", middlewareRepo.RequireAdmin(http.HandlerFunc(verificationHandler.HandleApprove)))
	mux.Handle("POST /verifications/{id}/reject", middlewareRepo.RequireAdmin(http.HandlerFunc(verificationHandler.HandleReject)))
	mux.Handle("POST /verifications/bulk/approve", middlewareRepo.RequireAdmin(http.HandlerFunc(verificationHandler.HandleBulkApprove)))
	mux.Handle("POST /verifications/bulk/reject", middlewareRepo.RequireAdmin(http.HandlerFunc(verificationHandler.HandleBulkReject)))

	return middlewareRepo.LogAccess(middlewareRepo.RecoverPanic(middlewareRepo.Authenticate(mux)))
}
