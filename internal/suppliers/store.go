package suppliers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Persistence is the durable keyed store behind the Store.
type Persistence interface {
	Load(ctx context.Context) ([]Supplier, error)
	Save(ctx context.Context, records []Supplier) error
}

// Claimer is implemented by persistences that more than one process can
// reach. Save rewrites the whole collection, so at most one Store may hold
// the claim at a time; the claim lasts from OpenStore until Close.
type Claimer interface {
	Claim(ctx context.Context, owner string) (release func(context.Context) error, err error)
}

// Store exclusively owns the supplier collection. Every mutation is flushed to
// the Persistence before it becomes visible, so a failed save leaves the
// collection untouched.
type Store struct {
	mu      sync.RWMutex
	persist Persistence
	records []Supplier
	byID    map[string]int
	now     func() time.Time
	newID   func() string
	release func(context.Context) error
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides how ids are assigned to new records.
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *Store) { s.newID = fn }
}

// OpenStore claims the persistence when it is shareable, then loads and
// migrates the persisted records. It fails with ErrStoreInUse while another
// Store holds the claim.
func OpenStore(ctx context.Context, persist Persistence, opts ...StoreOption) (s *Store, err error) {
	if persist == nil {
		persist = NewMemoryPersistence()
	}
	s = &Store{
		persist: persist,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if c, ok := persist.(Claimer); ok {
		release, claimErr := c.Claim(ctx, uuid.NewString())
		if claimErr != nil {
			return nil, fmt.Errorf("suppliers: claim records: %w", claimErr)
		}
		s.release = release
		defer func() {
			if err != nil {
				_ = release(context.WithoutCancel(ctx))
			}
		}()
	}
	loaded, err := persist.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("suppliers: load records: %w", err)
	}
	records, changed := MigrateRecords(loaded)
	if changed {
		if err := persist.Save(ctx, records); err != nil {
			return nil, fmt.Errorf("suppliers: save migrated records: %w", err)
		}
	}
	s.records = records
	s.reindex()
	return s, nil
}

// Close gives up the claim on the persistence. The Store must not be used afterwards.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.release == nil {
		return nil
	}
	release := s.release
	s.release = nil
	return release(ctx)
}

func (s *Store) reindex() {
	s.byID = make(map[string]int, len(s.records))
	for i, r := range s.records {
		s.byID[r.ID] = i
	}
}

// Insert appends a new record and returns its id. The username uniqueness
// check and the append happen under the same lock.
func (s *Store) Insert(ctx context.Context, rec Supplier) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec = rec.Clone()
	if rec.ID == "" {
		rec.ID = s.newID()
	}
	if _, exists := s.byID[rec.ID]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
	}
	if rec.Username != "" && s.usernameTakenLocked(rec.Username, "") {
		return "", fmt.Errorf("%w: %s", ErrDuplicateUsername, rec.Username)
	}
	now := s.now()
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = now
	}
	rec.UpdatedAt = now
	rec.SchemaVersion = CurrentSchemaVersion
	if rec.Certifications == nil {
		rec.Certifications = []string{}
	}
	rec.RiskScore = clamp(rec.RiskScore, MinScore, MaxScore)
	rec.RiskCategory = CategoryFor(rec.RiskScore)

	next := make([]Supplier, len(s.records), len(s.records)+1)
	copy(next, s.records)
	next = append(next, rec)
	if err := s.persist.Save(ctx, next); err != nil {
		return "", fmt.Errorf("suppliers: persist insert: %w", err)
	}
	s.records = next
	s.byID[rec.ID] = len(next) - 1
	return rec.ID, nil
}

// UpdateByID merges patch into the record. id, submittedAt and
// registrationType are never written.
func (s *Store) UpdateByID(ctx context.Context, id string, patch Patch) (Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[id]
	if !ok {
		return Supplier{}, fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	updated := s.records[idx].Clone()
	if patch.Username != nil && *patch.Username != "" && s.usernameTakenLocked(*patch.Username, id) {
		return Supplier{}, fmt.Errorf("%w: %s", ErrDuplicateUsername, *patch.Username)
	}
	patch.apply(&updated)
	updated.UpdatedAt = s.now()

	next := make([]Supplier, len(s.records))
	copy(next, s.records)
	next[idx] = updated
	if err := s.persist.Save(ctx, next); err != nil {
		return Supplier{}, fmt.Errorf("suppliers: persist update: %w", err)
	}
	s.records = next
	return updated.Clone(), nil
}

// SetCredentials attaches the login pair to a record that has none. The
// credentials check, the username check and the write happen under one lock,
// so a record gains credentials at most once.
func (s *Store) SetCredentials(ctx context.Context, id, username, passwordHash string) (Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[id]
	if !ok {
		return Supplier{}, fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	if s.records[idx].HasCredentials() {
		return Supplier{}, fmt.Errorf("%w: id %s", ErrCredentialsExist, id)
	}
	if s.usernameTakenLocked(username, id) {
		return Supplier{}, fmt.Errorf("%w: %s", ErrDuplicateUsername, username)
	}
	updated := s.records[idx].Clone()
	updated.Username = username
	updated.PasswordHash = passwordHash
	updated.UpdatedAt = s.now()

	next := make([]Supplier, len(s.records))
	copy(next, s.records)
	next[idx] = updated
	if err := s.persist.Save(ctx, next); err != nil {
		return Supplier{}, fmt.Errorf("suppliers: persist credentials: %w", err)
	}
	s.records = next
	return updated.Clone(), nil
}

func (s *Store) usernameTakenLocked(username, exceptID string) bool {
	for _, r := range s.records {
		if r.Username == username && r.ID != exceptID {
			return true
		}
	}
	return false
}

// FindByID returns ErrNotFound when id is absent.
func (s *Store) FindByID(ctx context.Context, id string) (Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx, ok := s.byID[id]; ok {
		return s.records[idx].Clone(), nil
	}
	return Supplier{}, fmt.Errorf("%w: id %s", ErrNotFound, id)
}

func (s *Store) FindByUsername(ctx context.Context, username string) (Supplier, error) {
	return s.findFirst("username", username, func(r *Supplier) string { return r.Username })
}

func (s *Store) FindByEmail(ctx context.Context, email string) (Supplier, error) {
	return s.findFirst("email", email, func(r *Supplier) string { return r.Email })
}

func (s *Store) FindByCompanyName(ctx context.Context, name string) (Supplier, error) {
	return s.findFirst("company name", name, func(r *Supplier) string { return r.CompanyName })
}

// findFirst does a case-sensitive exact match; an empty key never matches.
// Email and company name are not unique, so the earliest record wins.
func (s *Store) findFirst(field, key string, get func(*Supplier) string) (Supplier, error) {
	if key == "" {
		return Supplier{}, fmt.Errorf("%w: empty %s", ErrNotFound, field)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.records {
		if get(&s.records[i]) == key {
			return s.records[i].Clone(), nil
		}
	}
	return Supplier{}, fmt.Errorf("%w: %s %q", ErrNotFound, field, key)
}

// List returns a snapshot in insertion order.
func (s *Store) List(ctx context.Context) []Supplier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Supplier, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Len reports the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// MemoryPersistence keeps records in process memory. Used for tests and the
// memory backend.
type MemoryPersistence struct {
	mu      sync.Mutex
	records []Supplier
	saves   int
	failErr error
	owner   string
}

var _ Claimer = (*MemoryPersistence)(nil)

func NewMemoryPersistence(seed ...Supplier) *MemoryPersistence {
	p := &MemoryPersistence{}
	for _, r := range seed {
		p.records = append(p.records, r.Clone())
	}
	return p
}

func (p *MemoryPersistence) Load(ctx context.Context) ([]Supplier, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Supplier, len(p.records))
	for i, r := range p.records {
		out[i] = r.Clone()
	}
	return out, nil
}

func (p *MemoryPersistence) Save(ctx context.Context, records []Supplier) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failErr != nil {
		return p.failErr
	}
	p.records = make([]Supplier, len(records))
	for i, r := range records {
		p.records[i] = r.Clone()
	}
	p.saves++
	return nil
}

// Claim lets one Store at a time write the records.
func (p *MemoryPersistence) Claim(ctx context.Context, owner string) (func(context.Context) error, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.owner != "" {
		return nil, ErrStoreInUse
	}
	p.owner = owner
	return func(context.Context) error {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.owner == owner {
			p.owner = ""
		}
		return nil
	}, nil
}

// FailWith makes every following Save return err. Pass nil to recover.
func (p *MemoryPersistence) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failErr = err
}

// Saves reports how many successful saves happened.
func (p *MemoryPersistence) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}
