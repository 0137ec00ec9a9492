package suppliers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Submitter forwards a finished record to a remote system. It may return the
// record with a server-assigned id.
type Submitter interface {
	Submit(ctx context.Context, rec Supplier) (Supplier, error)
}

// Notifier announces completed registrations.
type Notifier interface {
	SupplierRegistered(ctx context.Context, rec Supplier) error
}

// Recorder receives domain metrics.
type Recorder interface {
	ObserveRegistration(mode RegistrationMode, category RiskCategory)
}

// ServiceConfig collects the optional collaborators of the Service.
type ServiceConfig struct {
	Logger     *slog.Logger
	Pending    PendingStore
	Submitter  Submitter
	Notifier   Notifier
	Recorder   Recorder
	InviteCode string
	BcryptCost int
	Now        func() time.Time
}

// Service runs the onboarding workflows on top of the Store.
type Service struct {
	store     *Store
	validator *Validator
	pending   PendingStore
	submitter Submitter
	notifier  Notifier
	recorder  Recorder
	gate      InviteGate
	cost      int
	now       func() time.Time
	logger    *slog.Logger
}

func NewService(store *Store, cfg ServiceConfig) *Service {
	s := &Service{
		store:     store,
		validator: NewValidator(),
		pending:   cfg.Pending,
		submitter: cfg.Submitter,
		notifier:  cfg.Notifier,
		recorder:  cfg.Recorder,
		gate:      NewInviteGate(cfg.InviteCode),
		cost:      cfg.BcryptCost,
		now:       cfg.Now,
		logger:    cfg.Logger,
	}
	if s.pending == nil {
		s.pending = NewMemoryPending(0)
	}
	if s.cost == 0 {
		s.cost = bcrypt.DefaultCost
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Registration is the outcome of a successful submission.
type Registration struct {
	Supplier     Supplier `json:"supplier"`
	PendingToken string   `json:"pendingToken,omitempty"`
	RiskMessage  string   `json:"riskMessage"`
}

// VerifyInviteCode gates entry into the invited flow.
func (s *Service) VerifyInviteCode(code string) bool {
	return s.gate.IsValidInviteCode(code)
}

// Register validates, scores and persists a submission, then issues the
// pending token for the create-login step.
func (s *Service) Register(ctx context.Context, mode RegistrationMode, form RegistrationForm) (Registration, error) {
	if mode == ModeInvite && !s.gate.IsValidInviteCode(form.InviteCode) {
		return Registration{}, ErrInvalidInviteCode
	}
	input, err := s.validator.Validate(form, mode)
	if err != nil {
		return Registration{}, err
	}
	assessment := Score(input)
	rec := NewSupplier(input, assessment)

	if s.submitter != nil {
		submitted, err := s.submitter.Submit(ctx, rec)
		if err != nil {
			var terr *TransportError
			if !errors.As(err, &terr) {
				err = &TransportError{Op: "submit", Err: err}
			}
			return Registration{}, err
		}
		if submitted.ID != "" {
			rec.ID = submitted.ID
		}
	}

	id, err := s.store.Insert(ctx, rec)
	if err != nil {
		return Registration{}, fmt.Errorf("register supplier: %w", err)
	}
	saved, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Registration{}, fmt.Errorf("register supplier: %w", err)
	}

	token := uuid.NewString()
	if err := s.pending.Put(ctx, token, id); err != nil {
		s.logger.Warn("store pending registration", slog.String("supplier_id", id), slog.Any("error", err))
		token = ""
	}

	if s.recorder != nil {
		s.recorder.ObserveRegistration(mode, saved.RiskCategory)
	}
	if s.notifier != nil {
		if err := s.notifier.SupplierRegistered(ctx, saved); err != nil {
			s.logger.Warn("notify supplier registered", slog.String("supplier_id", id), slog.Any("error", err))
		}
	}
	s.logger.Info("supplier registered",
		slog.String("supplier_id", id),
		slog.String("mode", string(mode)),
		slog.Int("risk_score", saved.RiskScore),
		slog.String("risk_category", string(saved.RiskCategory)),
	)

	return Registration{
		Supplier:     redact(saved),
		PendingToken: token,
		RiskMessage:  saved.RiskCategory.Message(),
	}, nil
}

// CreateLogin attaches a credential pair to the record behind a pending token.
// The token is consumed only on success, so a taken username can be retried.
func (s *Service) CreateLogin(ctx context.Context, token, username, password string) (Supplier, error) {
	if err := s.validator.ValidateCredentials(username, password); err != nil {
		return Supplier{}, err
	}
	id, err := s.pending.Get(ctx, token)
	if err != nil {
		return Supplier{}, err
	}
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Supplier{}, err
	}
	if rec.HasCredentials() {
		s.clearPending(ctx, token, id)
		return Supplier{}, ErrCredentialsExist
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Supplier{}, fmt.Errorf("hash password: %w", err)
	}
	updated, err := s.store.SetCredentials(ctx, id, username, string(hash))
	if err != nil {
		if errors.Is(err, ErrCredentialsExist) {
			s.clearPending(ctx, token, id)
			return Supplier{}, ErrCredentialsExist
		}
		return Supplier{}, err
	}
	s.clearPending(ctx, token, id)
	return redact(updated), nil
}

func (s *Service) clearPending(ctx context.Context, token, id string) {
	if err := s.pending.Delete(ctx, token); err != nil {
		s.logger.Warn("clear pending registration", slog.String("supplier_id", id), slog.Any("error", err))
	}
}

// Authenticate checks a username and password and returns the hints the
// caller should keep for later reconciliation.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Supplier, Hints, error) {
	rec, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Supplier{}, Hints{}, ErrInvalidCredentials
		}
		return Supplier{}, Hints{}, err
	}
	if rec.PasswordHash == "" {
		return Supplier{}, Hints{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return Supplier{}, Hints{}, ErrInvalidCredentials
	}
	return redact(rec), HintsFor(rec), nil
}

// CurrentSupplier loads "my profile" from session hints.
func (s *Service) CurrentSupplier(ctx context.Context, hints Hints) (Supplier, error) {
	rec, err := ResolveCurrentSupplier(ctx, s.store, hints)
	if err != nil {
		return Supplier{}, err
	}
	return redact(rec), nil
}

// EditProfile applies a profile edit to the supplier the hints resolve to.
// Risk scores stay as assessed at registration.
func (s *Service) EditProfile(ctx context.Context, hints Hints, update ProfileUpdate) (Supplier, error) {
	rec, err := ResolveCurrentSupplier(ctx, s.store, hints)
	if err != nil {
		return Supplier{}, err
	}
	patch, err := s.validator.ValidateProfileUpdate(update, rec.Mode())
	if err != nil {
		return Supplier{}, err
	}
	if patch.IsEmpty() {
		return redact(rec), nil
	}
	updated, err := s.store.UpdateByID(ctx, rec.ID, patch)
	if err != nil {
		return Supplier{}, err
	}
	return redact(updated), nil
}

// AcceptInvite marks an invited registration as accepted. Accepting twice is a no-op.
func (s *Service) AcceptInvite(ctx context.Context, id string) (Supplier, error) {
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Supplier{}, err
	}
	if rec.RegistrationType != RegistrationInvite {
		return Supplier{}, FieldErrors{"registrationType": "Only invited registrations can be accepted"}
	}
	if rec.InviteAccepted {
		return redact(rec), nil
	}
	accepted := true
	at := s.now()
	updated, err := s.store.UpdateByID(ctx, id, Patch{InviteAccepted: &accepted, InviteAcceptedAt: &at})
	if err != nil {
		return Supplier{}, err
	}
	return redact(updated), nil
}

// Get returns one record by id.
func (s *Service) Get(ctx context.Context, id string) (Supplier, error) {
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Supplier{}, err
	}
	return redact(rec), nil
}

// Reassess re-derives the assessment from the stored fields without
// changing the record.
func (s *Service) Reassess(ctx context.Context, id string) (Assessment, error) {
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Assessment{}, err
	}
	return Score(rec.Input()), nil
}

// Dashboard is the admin and company list view.
type Dashboard struct {
	Suppliers []Supplier `json:"suppliers"`
	Stats     Stats      `json:"stats"`
	Facets    Facets     `json:"facets"`
}

// Dashboard projects the records through q. Stats and facets describe the
// whole collection so filter choices do not vanish as they are applied.
func (s *Service) Dashboard(ctx context.Context, q Query) Dashboard {
	all := s.store.List(ctx)
	projected := Project(all, q)
	for i := range projected {
		projected[i] = redact(projected[i])
	}
	return Dashboard{
		Suppliers: projected,
		Stats:     Summarize(all),
		Facets:    CollectFacets(all),
	}
}

// ExportCSV writes the projection of q as CSV.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, q Query) error {
	return WriteCSV(w, Project(s.store.List(ctx), q))
}

// redact strips the credential hash before a record leaves the service.
func redact(rec Supplier) Supplier {
	rec.PasswordHash = ""
	return rec
}
