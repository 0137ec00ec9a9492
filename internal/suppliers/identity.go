package suppliers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Hints is the locally held identity information a session carries.
type Hints struct {
	Username    string `json:"username,omitempty"`
	Email       string `json:"email,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
}

// Empty reports whether no hint is set.
func (h Hints) Empty() bool {
	return strings.TrimSpace(h.Username) == "" &&
		strings.TrimSpace(h.Email) == "" &&
		strings.TrimSpace(h.CompanyName) == ""
}

// HintsFor returns the hints a client should keep after logging in.
func HintsFor(s Supplier) Hints {
	return Hints{Username: s.Username, Email: s.Email, CompanyName: s.CompanyName}
}

// Lookup is the read side of the Store used by reconciliation.
type Lookup interface {
	FindByUsername(ctx context.Context, username string) (Supplier, error)
	FindByEmail(ctx context.Context, email string) (Supplier, error)
	FindByCompanyName(ctx context.Context, name string) (Supplier, error)
}

// ResolveCurrentSupplier maps session hints onto one record. Username is tried
// first, then email, then company name; the first match wins. It returns
// ErrNotFound when no hint matches or none is supplied.
func ResolveCurrentSupplier(ctx context.Context, lookup Lookup, hints Hints) (Supplier, error) {
	attempts := []struct {
		key  string
		find func(context.Context, string) (Supplier, error)
	}{
		{strings.TrimSpace(hints.Username), lookup.FindByUsername},
		{strings.ToLower(strings.TrimSpace(hints.Email)), lookup.FindByEmail},
		{strings.TrimSpace(hints.CompanyName), lookup.FindByCompanyName},
	}
	for _, a := range attempts {
		if a.key == "" {
			continue
		}
		rec, err := a.find(ctx, a.key)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Supplier{}, err
		}
	}
	return Supplier{}, fmt.Errorf("%w: no record matches the session hints", ErrNotFound)
}

// PendingStore holds the handle linking a fresh registration to its
// create-login step.
type PendingStore interface {
	Put(ctx context.Context, token, supplierID string) error
	Get(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
}

// MemoryPending is an in-process PendingStore with expiry.
type MemoryPending struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]pendingEntry
}

type pendingEntry struct {
	supplierID string
	expiresAt  time.Time
}

// NewMemoryPending returns a store whose entries expire after ttl; zero keeps them forever.
func NewMemoryPending(ttl time.Duration) *MemoryPending {
	return &MemoryPending{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]pendingEntry),
	}
}

func (m *MemoryPending) Put(ctx context.Context, token, supplierID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := pendingEntry{supplierID: supplierID}
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}
	m.entries[token] = entry
	return nil
}

func (m *MemoryPending) Get(ctx context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[token]
	if !ok {
		return "", ErrPendingNotFound
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		delete(m.entries, token)
		return "", ErrPendingNotFound
	}
	return entry.supplierID, nil
}

func (m *MemoryPending) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, token)
	return nil
}
