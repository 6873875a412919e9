package worker

import (
	"encoding/json"
	"log"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/overtimestaff/overtimestaff/internal/models"
	"github.com/overtimestaff/overtimestaff/internal/stream"
	"github.com/overtimestaff/overtimestaff/internal/workflow"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ApprovedNotificationWorker emails subjects whose verification was
// approved. It consumes the decision events the review workflow produces;
// the decision itself is long since persisted, so delivery problems here
// only cost the email.
func (wk *Worker) ApprovedNotificationWorker() {
	wk.notificationLoop(&stream.StreamConsumer{
		GroupId: approvedNotifierGroupID,
		Topic:   workflow.VerificationApprovedTopic,
	}, "verification-approved.tmpl")
}

// RejectedNotificationWorker emails subjects whose verification was
// rejected, including the reviewer's reason.
func (wk *Worker) RejectedNotificationWorker() {
	wk.notificationLoop(&stream.StreamConsumer{
		GroupId: rejectedNotifierGroupID,
		Topic:   workflow.VerificationRejectedTopic,
	}, "verification-rejected.tmpl")
}

func (wk *Worker) notificationLoop(consumerConfig *stream.StreamConsumer, template string) {
	consumer, err := wk.KafkaStream.CreateConsumer(consumerConfig)
	if err != nil {
		log.Fatalf("Error creating consumer: %v", err)
	}

	for {
		event := consumer.Poll(100) // Poll every 100ms
		switch e := event.(type) {
		case *kafka.Message:
			log.Printf("Decision message received on %s: %s\n", e.TopicPartition, string(e.Value))

			var decision workflow.DecisionEvent
			if err := json.Unmarshal(e.Value, &decision); err != nil {
				wk.Logger.Error("could not decode decision event", "error", err)
				continue
			}

			wk.notifySubject(&decision, template)
		case kafka.Error:
			log.Printf("Error: %v\n", e)
		default:
			// Handle other events if needed
		}
	}
}

func (wk *Worker) notifySubject(decision *workflow.DecisionEvent, template string) {
	subject, found, err := wk.DB.User().GetSubject(models.SubjectKind(decision.SubjectKind), decision.SubjectID)
	if err != nil {
		wk.Logger.Error("could not resolve verification subject",
			"verification_id", decision.VerificationID, "error", err)
		return
	}

	if !found {
		// The subject may have been purged since submitting; nothing to
		// notify.
		wk.Logger.Warn("verification subject no longer exists",
			"verification_id", decision.VerificationID,
			"subject_kind", decision.SubjectKind, "subject_id", decision.SubjectID)
		return
	}

	emailData := map[string]any{
		"BaseURL":          wk.BaseURL,
		"Name":             subject.FirstName,
		"VerificationType": humanizeVerificationType(decision.VerificationType),
		"Reason":           decision.Reason,
	}

	if err := wk.Mailer.Send(subject.Email, emailData, template); err != nil {
		wk.Logger.Error("could not send verification outcome email",
			"verification_id", decision.VerificationID, "recipient", subject.Email, "error", err)
	}
}

func humanizeVerificationType(verificationType string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(verificationType, "_", " "))
}
