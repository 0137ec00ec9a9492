package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/supplierhub/supplierhub/internal/jobs"
	"github.com/supplierhub/supplierhub/internal/suppliers"
)

const (
	// TaskSupplierRegistered emails a supplier once their assessment is complete.
	TaskSupplierRegistered = "supplier:registered"
)

// SupplierRegisteredPayload carries what the confirmation email needs, so the
// worker never reads the supplier store.
type SupplierRegisteredPayload struct {
	SupplierID       string                     `json:"supplierId"`
	CompanyName      string                     `json:"companyName"`
	ContactPerson    string                     `json:"contactPerson"`
	Email            string                     `json:"email"`
	RiskScore        int                        `json:"riskScore"`
	RiskCategory     suppliers.RiskCategory     `json:"riskCategory"`
	RegistrationType suppliers.RegistrationType `json:"registrationType"`
}

// PayloadFor extracts the notification payload from a stored record.
func PayloadFor(rec suppliers.Supplier) SupplierRegisteredPayload {
	return SupplierRegisteredPayload{
		SupplierID:       rec.ID,
		CompanyName:      rec.CompanyName,
		ContactPerson:    rec.ContactPerson,
		Email:            rec.Email,
		RiskScore:        rec.RiskScore,
		RiskCategory:     rec.RiskCategory,
		RegistrationType: rec.RegistrationType,
	}
}

// NewSupplierRegisteredTask builds a confirmation task. Task ids are derived
// from the supplier id so a retried enqueue does not send twice.
func NewSupplierRegisteredTask(payload SupplierRegisteredPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSupplierRegistered, body,
		asynq.Queue(QueueDefault),
		asynq.TaskID(TaskSupplierRegistered+":"+payload.SupplierID),
		asynq.MaxRetry(5),
	), nil
}

// SupplierRegisteredJob sends the confirmation email.
type SupplierRegisteredJob struct {
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

func (j *SupplierRegisteredJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return fmt.Errorf("supplier registered: %w", errNotConfigured)
	}
	var payload SupplierRegisteredPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	logger := j.logger().With(slog.String("supplier_id", payload.SupplierID))
	return deliver(ctx, j.Mailer, logger, j.metrics(), TaskSupplierRegistered, "registration", ConfirmationEmail(payload))
}

// ConfirmationEmail renders the message sent after registration.
func ConfirmationEmail(p SupplierRegisteredPayload) SendEmailPayload {
	name := strings.TrimSpace(p.ContactPerson)
	if name == "" {
		name = p.CompanyName
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", name)
	fmt.Fprintf(&b, "Thank you for registering %s as a supplier.\n\n", p.CompanyName)
	fmt.Fprintf(&b, "Risk score: %d (%s)\n", p.RiskScore, p.RiskCategory)
	b.WriteString(p.RiskCategory.Message())
	b.WriteString("\n\nReference: ")
	b.WriteString(p.SupplierID)
	b.WriteString("\n")
	return SendEmailPayload{
		To:      p.Email,
		Subject: fmt.Sprintf("Supplier registration received: %s", p.CompanyName),
		Body:    b.String(),
	}
}

func (j *SupplierRegisteredJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSupplierRegistered))
	}
	return slog.Default().With(slog.String("job", TaskSupplierRegistered))
}

func (j *SupplierRegisteredJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
