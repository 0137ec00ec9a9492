package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/supplierhub/supplierhub/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// Mailer delivers a single plain-text email.
type Mailer interface {
	Send(ctx context.Context, msg SendEmailPayload) error
}

// SMTPMailer sends through a plain SMTP relay such as Mailpit.
type SMTPMailer struct {
	Addr string
	From string
	Auth smtp.Auth
}

// NewSMTPMailer returns nil when host is empty so callers can fall back to logging.
func NewSMTPMailer(host string, port int, from string) *SMTPMailer {
	if host == "" {
		return nil
	}
	return &SMTPMailer{Addr: net.JoinHostPort(host, strconv.Itoa(port)), From: from}
}

func (m *SMTPMailer) Send(ctx context.Context, msg SendEmailPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := headerValue(msg.To)
	return smtp.SendMail(m.Addr, m.Auth, headerValue(m.From), []string{to}, buildMessage(m.From, msg))
}

// headerBreaks drops line breaks so a value cannot start a new header.
var headerBreaks = strings.NewReplacer("\r", "", "\n", "")

func headerValue(v string) string {
	return headerBreaks.Replace(v)
}

func buildMessage(from string, msg SendEmailPayload) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", headerValue(from))
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(msg.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", headerValue(msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

// EmailJob processes TaskTypeSendEmail tasks.
type EmailJob struct {
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle sends the email, or logs it when no mailer is configured.
func (j *EmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return fmt.Errorf("send email: %w", errNotConfigured)
	}
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	return deliver(ctx, j.Mailer, j.logger(), j.metrics(), TaskTypeSendEmail, "transactional", payload)
}

func (j *EmailJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeSendEmail))
	}
	return slog.Default().With(slog.String("job", TaskTypeSendEmail))
}

func (j *EmailJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

// deliver is shared by every job that ends in an email.
func deliver(ctx context.Context, mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics, job, kind string, msg SendEmailPayload) (resultErr error) {
	tracker := metrics.Track(job)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if strings.TrimSpace(msg.To) == "" {
		logger.Warn("email without recipient dropped", slog.String("subject", msg.Subject))
		return nil
	}
	if mailer == nil {
		logger.Info("mailer not configured, email logged only",
			slog.String("to", msg.To),
			slog.String("subject", msg.Subject),
		)
		return nil
	}
	if err := mailer.Send(ctx, msg); err != nil {
		logger.Error("send email", slog.String("to", msg.To), slog.Any("error", err))
		return fmt.Errorf("send %s email: %w", kind, err)
	}
	metrics.EmailSent(kind)
	logger.Info("email sent", slog.String("to", msg.To), slog.String("kind", kind))
	return nil
}

var errNotConfigured = errors.New("handler not configured")
