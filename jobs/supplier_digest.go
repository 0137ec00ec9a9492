package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/supplierhub/supplierhub/internal/jobs"
	"github.com/supplierhub/supplierhub/internal/suppliers"
)

const (
	// TaskSupplierDigest emails the daily onboarding summary to the review team.
	TaskSupplierDigest = "supplier:digest"
)

// SupplierDigestPayload names the recipient and the look-back window in hours.
type SupplierDigestPayload struct {
	Recipient   string `json:"recipient"`
	WindowHours int    `json:"windowHours"`
}

// NewSupplierDigestTask builds a digest task for the scheduler.
func NewSupplierDigestTask(recipient string, windowHours int) (*asynq.Task, error) {
	body, err := json.Marshal(SupplierDigestPayload{Recipient: recipient, WindowHours: windowHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSupplierDigest, body, asynq.Queue(QueueDefault)), nil
}

// SupplierDigestJob summarises recent registrations from the persisted records.
type SupplierDigestJob struct {
	Records suppliers.Persistence
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

func NewSupplierDigestJob(records suppliers.Persistence, mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SupplierDigestJob {
	return &SupplierDigestJob{
		Records: records,
		Mailer:  mailer,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (j *SupplierDigestJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Records == nil {
		return fmt.Errorf("supplier digest: %w", errNotConfigured)
	}
	var payload SupplierDigestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WindowHours <= 0 {
		payload.WindowHours = 24
	}

	records, err := j.Records.Load(ctx)
	if err != nil {
		j.logger().Error("load supplier records", slog.Any("error", err))
		return fmt.Errorf("supplier digest: %w", err)
	}
	records, _ = suppliers.MigrateRecords(records)

	since := j.now().Add(-time.Duration(payload.WindowHours) * time.Hour)
	recent := make([]suppliers.Supplier, 0)
	for _, r := range records {
		if !r.SubmittedAt.Before(since) {
			recent = append(recent, r)
		}
	}
	msg := DigestEmail(payload, suppliers.Summarize(records), suppliers.Project(recent, suppliers.Query{
		RiskCategory: string(suppliers.RiskHigh),
		Sort:         suppliers.SortSubmittedDesc,
	}), len(recent))
	return deliver(ctx, j.Mailer, j.logger(), j.metrics(), TaskSupplierDigest, "digest", msg)
}

// DigestEmail renders the summary. highRisk lists the recent high risk suppliers.
func DigestEmail(p SupplierDigestPayload, totals suppliers.Stats, highRisk []suppliers.Supplier, recent int) SendEmailPayload {
	var b strings.Builder
	fmt.Fprintf(&b, "New registrations in the last %d hours: %d\n\n", p.WindowHours, recent)
	fmt.Fprintf(&b, "All suppliers: %d (low %d, medium %d, high %d)\n", totals.Total, totals.Low, totals.Medium, totals.High)
	if len(highRisk) > 0 {
		b.WriteString("\nHigh risk suppliers awaiting review:\n")
		for _, s := range highRisk {
			fmt.Fprintf(&b, "- %s (%s), score %d\n", s.CompanyName, s.Country, s.RiskScore)
		}
	}
	return SendEmailPayload{
		To:      p.Recipient,
		Subject: fmt.Sprintf("Supplier onboarding digest: %d new", recent),
		Body:    b.String(),
	}
}

func (j *SupplierDigestJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSupplierDigest))
	}
	return slog.Default().With(slog.String("job", TaskSupplierDigest))
}

func (j *SupplierDigestJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SupplierDigestJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
