package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/harvest/internal/metrics"
)

// Service formats harvest events and delivers them through one Backend.
type Service struct {
	settings Settings
	backend  Backend
	log      *zap.SugaredLogger
}

// NewService wires a backend.  log may be nil.
func NewService(s Settings, b Backend, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{settings: s, backend: b, log: log}
}

// Settings returns the delivery settings.
func (s *Service) Settings() Settings { return s.settings }

// Send delivers msg and records the outcome.
func (s *Service) Send(ctx context.Context, msg Message) error {
	err := s.backend.Send(ctx, msg, s.settings)
	metrics.NotificationsTotal.WithLabelValues(msg.ChannelOr(s.settings.Channel), metrics.Outcome(err)).Inc()
	if err != nil {
		s.log.Errorw("notification failed", "subject", msg.Subject, "err", err)
		return fmt.Errorf("notify %q: %w", msg.Subject, err)
	}
	s.log.Debugw("notification sent", "subject", msg.Subject)
	return nil
}

// NotifyConnectionError reports a catalogue failure.
func (s *Service) NotifyConnectionError(ctx context.Context, cause error) error {
	return s.Send(ctx, Message{
		Subject: "Connection Error",
		Content: fmt.Sprintf("A connection error occurred: %v", cause),
	})
}

// NotifyInvalidRecord reports one record that failed validation.
func (s *Service) NotifyInvalidRecord(ctx context.Context, recordID, contact string, errs []string) error {
	return s.Send(ctx, Message{
		Subject: "Invalid Metashare Record: " + recordID,
		Content: fmt.Sprintf("Record %s is invalid. Details: %s\nContact: %s",
			recordID, strings.Join(errs, "; "), contact),
	})
}

// NotifyBatchJobStatus reports a job state change.
func (s *Service) NotifyBatchJobStatus(ctx context.Context, jobID, status string) error {
	return s.Send(ctx, Message{
		Subject: "Batch Job Status: " + jobID,
		Content: fmt.Sprintf("Job %s is now %s.", jobID, status),
	})
}

// NotifyHarvest reports a finished harvest.
func (s *Service) NotifyHarvest(ctx context.Context, count int, status string) error {
	return s.Send(ctx, Message{
		Subject: "GRDC Harvest Update",
		Content: fmt.Sprintf("Harvest completed. Status: %s. Records processed: %d", status, count),
	})
}

// NotifyValidationError reports errors not tied to a single record.
func (s *Service) NotifyValidationError(ctx context.Context, errs []string) error {
	return s.Send(ctx, Message{
		Subject: "Validation Error",
		Content: "Validation failed with errors: " + strings.Join(errs, ", "),
	})
}

// InvalidRecord is one failing record in a Summary.
type InvalidRecord struct {
	UUID    string
	Contact string
	Errors  []string
}

// Summary is the end-of-run digest.
type Summary struct {
	JobID    string
	Since    time.Time
	Total    int
	Valid    int
	Invalid  []InvalidRecord
	Duration time.Duration
}

// NotifyReport sends the digest: counts first, then every invalid record
// grouped with its contact.
func (s *Service) NotifyReport(ctx context.Context, sum Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Job: %s\n", sum.JobID)
	fmt.Fprintf(&b, "Changed since: %s\n", sum.Since.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Records: %d (valid %d, invalid %d)\n", sum.Total, sum.Valid, len(sum.Invalid))
	fmt.Fprintf(&b, "Duration: %s\n", sum.Duration.Round(time.Millisecond))
	for _, r := range sum.Invalid {
		fmt.Fprintf(&b, "\n%s (contact: %s)\n", r.UUID, r.Contact)
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	return s.Send(ctx, Message{
		Subject: "GRDC Harvest Report: " + sum.JobID,
		Content: strings.TrimRight(b.String(), "\n"),
	})
}
