package suppliers

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound           = errors.New("supplier not found")
	ErrDuplicateUsername  = errors.New("username taken")
	ErrDuplicateID        = errors.New("supplier id already exists")
	ErrValidation         = errors.New("validation failed")
	ErrTransport          = errors.New("submission transport failed")
	ErrInvalidInviteCode  = errors.New("invalid invite code")
	ErrCredentialsExist   = errors.New("supplier already has login credentials")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrPendingNotFound    = errors.New("pending registration not found")
	ErrStoreInUse         = errors.New("supplier records are held by another writer")
)

// FieldErrors maps a form field name to a human readable message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is lets callers match any FieldErrors with errors.Is(err, ErrValidation).
func (fe FieldErrors) Is(target error) bool {
	return target == ErrValidation
}

// TransportError carries a failure reported by the submission collaborator.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s: status %d: %v", ErrTransport, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrTransport, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// Fields exposes the per-field messages to the HTTP layer.
func (fe FieldErrors) Fields() map[string]string {
	return map[string]string(fe)
}
