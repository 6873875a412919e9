package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/overtimestaff/overtimestaff/internal/app"
	"github.com/overtimestaff/overtimestaff/internal/seeder"
	"github.com/overtimestaff/overtimestaff/internal/version"
	"github.com/overtimestaff/overtimestaff/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	err := run(logger)
	if err != nil {
		trace := string(debug.Stack())
		logger.Error(err.Error(), "trace", trace)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	showVersion := flag.Bool("version", false, "display version and exit")
	seed := flag.Bool("seed", false, "load development fixtures before starting")
	flag.Parse()

	if *showVersion {
		fmt.Printf("version: %s\n", version.Get())
		return nil
	}

	application, err := app.NewApplication(logger)
	if err != nil {
		return err
	}
	defer application.DB.Close()

	if *seed {
		seeder.New(application.DB).Run()
	}

	wk := worker.New(&worker.Worker{
		KafkaStream: application.Kafka,
		DB:          application.DB,
		Mailer:      application.Mailer,
		Logger:      logger,
		BaseURL:     application.Config.BaseURL,
	})

	go wk.ApprovedNotificationWorker()
	go wk.RejectedNotificationWorker()

	return application.ServeHTTP()
}
