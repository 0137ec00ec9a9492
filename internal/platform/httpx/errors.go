// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for transport-level failures.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
)

// ErrorRule maps a domain sentinel onto a problem status and title.
type ErrorRule struct {
	Target error
	Status int
	Title  string
}

// FieldError is implemented by validation errors that carry per-field messages.
type FieldError interface {
	error
	Fields() map[string]string
}

var baseRules = []ErrorRule{
	{Target: ErrBadRequest, Status: http.StatusBadRequest, Title: "Bad Request"},
	{Target: ErrUnauthorized, Status: http.StatusUnauthorized, Title: "Unauthorized"},
}

// RespondError writes an RFC7807 problem for err. Field errors become 422
// with a fields member; otherwise the first matching rule wins and anything
// unmatched is a 500 with no detail.
func RespondError(w http.ResponseWriter, err error, rules ...ErrorRule) {
	var fe FieldError
	if errors.As(err, &fe) {
		WriteProblem(w, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusUnprocessableEntity,
			Detail: "one or more fields are invalid",
			Fields: fe.Fields(),
		})
		return
	}
	for _, set := range [][]ErrorRule{rules, baseRules} {
		for _, rule := range set {
			if errors.Is(err, rule.Target) {
				Problem(w, rule.Status, rule.Title, err.Error())
				return
			}
		}
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
