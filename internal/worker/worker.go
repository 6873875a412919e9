package worker

import (
	"context"
	"log/slog"

	"github.com/overtimestaff/overtimestaff/internal/repository"
	"github.com/overtimestaff/overtimestaff/internal/smtp"
	"github.com/overtimestaff/overtimestaff/internal/stream"
)

type Worker struct {
	KafkaStream *stream.KafkaStream
	DB          repository.Database
	Mailer      smtp.MailerInterface
	Logger      *slog.Logger
	BaseURL     string
	Ctx         context.Context
}

const (
	// approvedNotifierGroupID is used for workers that email subjects when
	// their verification has been approved
	approvedNotifierGroupID = "verification-approved-notifier-group"

	// rejectedNotifierGroupID is used for workers that email subjects when
	// their verification has been rejected
	rejectedNotifierGroupID = "verification-rejected-notifier-group"
)

// Our workers typically need access to the database, the mailer and the
// kafka event stream; worker-specific dependencies can be passed as
// arguments to the worker
func New(wk *Worker) *Worker {
	return &Worker{
		KafkaStream: wk.KafkaStream,
		DB:          wk.DB,
		Mailer:      wk.Mailer,
		Logger:      wk.Logger,
		BaseURL:     wk.BaseURL,
		Ctx:         wk.Ctx,
	}
}
