package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/supplierhub/supplierhub/internal/jobs"
	"github.com/supplierhub/supplierhub/internal/suppliers"
)

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []SendEmailPayload
}

func (f *fakeMailer) Send(_ context.Context, msg SendEmailPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

func TestSupplierRegisteredJobSendsConfirmation(t *testing.T) {
	mailer := &fakeMailer{}
	job := &SupplierRegisteredJob{Mailer: mailer, Logger: quietLogger(), Metrics: testMetrics()}

	task, err := NewSupplierRegisteredTask(PayloadFor(suppliers.Supplier{
		ID:            "sup-9",
		CompanyName:   "Acme",
		ContactPerson: "Jo",
		Email:         "jo@acme.example",
		RiskScore:     65,
		RiskCategory:  suppliers.RiskMedium,
	}))
	require.NoError(t, err)
	assert.Equal(t, TaskSupplierRegistered, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "jo@acme.example", msg.To)
	assert.Contains(t, msg.Subject, "Acme")
	assert.Contains(t, msg.Body, "Hello Jo")
	assert.Contains(t, msg.Body, "Risk score: 65 (Medium)")
	assert.Contains(t, msg.Body, suppliers.RiskMedium.Message())
	assert.Contains(t, msg.Body, "sup-9")
}

func TestSupplierRegisteredJobRetriesOnMailerFailure(t *testing.T) {
	job := &SupplierRegisteredJob{Mailer: &fakeMailer{err: errors.New("smtp down")}, Logger: quietLogger(), Metrics: testMetrics()}
	task, err := NewSupplierRegisteredTask(SupplierRegisteredPayload{SupplierID: "x", Email: "a@b.example"})
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestSupplierRegisteredJobSkipsBadPayload(t *testing.T) {
	job := &SupplierRegisteredJob{Logger: quietLogger(), Metrics: testMetrics()}
	err := job.Handle(context.Background(), asynq.NewTask(TaskSupplierRegistered, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestEmailJobWithoutMailerOnlyLogs(t *testing.T) {
	job := &EmailJob{Logger: quietLogger(), Metrics: testMetrics()}
	task, err := NewSendEmailTask(SendEmailPayload{To: "a@b.example", Subject: "hi"})
	require.NoError(t, err)
	assert.NoError(t, job.Handle(context.Background(), task))

	var nilJob *EmailJob
	assert.Error(t, nilJob.Handle(context.Background(), task))
}

func TestSupplierDigestJob(t *testing.T) {
	now := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	persist := suppliers.NewMemoryPersistence(
		suppliers.Supplier{SchemaVersion: 1, ID: "old", CompanyName: "Old Co", RiskScore: 90, RiskCategory: suppliers.RiskLow, Certifications: []string{}, RegistrationType: suppliers.RegistrationSelf, SubmittedAt: now.AddDate(0, 0, -3)},
		suppliers.Supplier{SchemaVersion: 1, ID: "new-low", CompanyName: "Fresh Co", RiskScore: 85, RiskCategory: suppliers.RiskLow, Certifications: []string{}, RegistrationType: suppliers.RegistrationSelf, SubmittedAt: now.Add(-2 * time.Hour)},
		suppliers.Supplier{SchemaVersion: 1, ID: "new-high", CompanyName: "Risky Co", Country: "France", RiskScore: 40, RiskCategory: suppliers.RiskHigh, Certifications: []string{}, RegistrationType: suppliers.RegistrationSelf, SubmittedAt: now.Add(-time.Hour)},
	)
	mailer := &fakeMailer{}
	job := NewSupplierDigestJob(persist, mailer, quietLogger(), testMetrics())
	job.clock = func() time.Time { return now }

	task, err := NewSupplierDigestTask("review@supplierhub.example", 24)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "review@supplierhub.example", msg.To)
	assert.Equal(t, "Supplier onboarding digest: 2 new", msg.Subject)
	assert.Contains(t, msg.Body, "All suppliers: 3 (low 2, medium 0, high 1)")
	assert.Contains(t, msg.Body, "- Risky Co (France), score 40")
	assert.NotContains(t, msg.Body, "Fresh Co")
}

func TestSupplierDigestJobRequiresRecords(t *testing.T) {
	job := NewSupplierDigestJob(nil, nil, quietLogger(), testMetrics())
	task, err := NewSupplierDigestTask("x@y.example", 0)
	require.NoError(t, err)
	assert.Error(t, job.Handle(context.Background(), task))
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, quietLogger()).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body queueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, QueueDefault, body.Queue)
	assert.Zero(t, body.Pending)
}

func TestNewSMTPMailer(t *testing.T) {
	assert.Nil(t, NewSMTPMailer("", 25, "noreply@example.com"))
	m := NewSMTPMailer("mailpit", 1025, "noreply@example.com")
	require.NotNil(t, m)
	assert.Equal(t, "mailpit:1025", m.Addr)
}

func TestBuildMessageKeepsInjectedHeadersOnOneLine(t *testing.T) {
	raw := buildMessage("noreply@example.com", SendEmailPayload{
		To:      "sales@acme.example\r\nCc: other@evil.example",
		Subject: "Supplier registration received: Acme\r\nBcc: victim@evil.example",
		Body:    "Thanks.\r\nSecond line",
	})

	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Empty(t, msg.Header.Get("Bcc"))
	assert.Empty(t, msg.Header.Get("Cc"))
	assert.Equal(t, "Supplier registration received: AcmeBcc: victim@evil.example", msg.Header.Get("Subject"))
	assert.NotContains(t, msg.Header.Get("To"), "\n")

	body, err := io.ReadAll(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, "Thanks.\r\nSecond line", string(body))
}
