package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fieldErr map[string]string

func (f fieldErr) Error() string             { return "invalid" }
func (f fieldErr) Fields() map[string]string { return f }

var errMissing = errors.New("missing")

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) ProblemDetail {
	t.Helper()
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	var pd ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pd))
	return pd
}

func TestRespondErrorFieldErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("wrap: %w", fieldErr{"email": "Email is required"}))

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	pd := decodeProblem(t, rr)
	assert.Equal(t, "Email is required", pd.Fields["email"])
}

func TestRespondErrorRules(t *testing.T) {
	rules := []ErrorRule{{Target: errMissing, Status: http.StatusNotFound, Title: "Not Found"}}

	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("supplier 7: %w", errMissing), rules...)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "supplier 7: missing", decodeProblem(t, rr).Detail)

	rr = httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("%w: eof", ErrBadRequest), rules...)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	RespondError(rr, errors.New("db exploded"), rules...)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, decodeProblem(t, rr).Detail)
}

func TestDecodeJSON(t *testing.T) {
	var target struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Acme"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &target))
	assert.Equal(t, "Acme", target.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	err := DecodeJSON(httptest.NewRecorder(), req, &target)
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestDecodeJSONRejectsOversizedBody(t *testing.T) {
	body := `{"name":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var target map[string]string
	assert.ErrorIs(t, DecodeJSON(httptest.NewRecorder(), req, &target), ErrBadRequest)
}
