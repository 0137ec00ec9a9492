package suppliers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, serviceFixture) {
	t.Helper()
	fx := newServiceFixture(t, ServiceConfig{})
	r := chi.NewRouter()
	r.Route("/api", NewHandler(fx.svc.logger, fx.svc).MountRoutes)
	return r, fx
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRegistrationFlow(t *testing.T) {
	h, _ := newTestRouter(t)

	res := doJSON(t, h, http.MethodPost, "/api/registrations/self", validForm(), nil)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var reg Registration
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &reg))
	assert.Equal(t, RiskLow, reg.Supplier.RiskCategory)
	require.NotEmpty(t, reg.PendingToken)

	res = doJSON(t, h, http.MethodPost, "/api/registrations/login", map[string]string{
		"pendingToken": reg.PendingToken,
		"username":     "techsol",
		"password":     "s3cret-pass",
	}, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.NotContains(t, res.Body.String(), "passwordHash")

	res = doJSON(t, h, http.MethodPost, "/api/session", map[string]string{"username": "techsol", "password": "bad-pass"}, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = doJSON(t, h, http.MethodPost, "/api/session", map[string]string{"username": "techsol", "password": "s3cret-pass"}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var session struct {
		Hints Hints `json:"hints"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &session))
	assert.Equal(t, "techsol", session.Hints.Username)

	res = doJSON(t, h, http.MethodGet, "/api/me", nil, map[string]string{HeaderUsername: "techsol"})
	require.Equal(t, http.StatusOK, res.Code)

	res = doJSON(t, h, http.MethodPatch, "/api/me", map[string]string{"description": "Updated"}, map[string]string{HeaderUsername: "techsol"})
	require.Equal(t, http.StatusOK, res.Code)
	var me Supplier
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &me))
	assert.Equal(t, "Updated", me.Description)
}

func TestHandlerErrors(t *testing.T) {
	h, _ := newTestRouter(t)

	res := doJSON(t, h, http.MethodPost, "/api/registrations/strict", RegistrationForm{}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))
	var problem struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &problem))
	assert.Contains(t, problem.Fields, "companyName")

	res = doJSON(t, h, http.MethodPost, "/api/registrations/bulk", validForm(), nil)
	assert.Equal(t, http.StatusNotFound, res.Code)

	form := validForm()
	form.InviteCode = "nope"
	res = doJSON(t, h, http.MethodPost, "/api/registrations/invite", form, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/registrations/strict", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	res = doJSON(t, h, http.MethodGet, "/api/me", nil, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = doJSON(t, h, http.MethodGet, "/api/admin/suppliers/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = doJSON(t, h, http.MethodGet, "/api/admin/suppliers?sort=sideways", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
}

func TestHandlerVerifyInvite(t *testing.T) {
	h, _ := newTestRouter(t)

	res := doJSON(t, h, http.MethodPost, "/api/invite/verify", map[string]string{"code": DefaultInviteCode}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"valid":true}`, res.Body.String())

	res = doJSON(t, h, http.MethodPost, "/api/invite/verify", map[string]string{"code": "guess"}, nil)
	assert.JSONEq(t, `{"valid":false}`, res.Body.String())
}

func TestHandlerAdminViews(t *testing.T) {
	h, fx := newTestRouter(t)
	ctx := t.Context()

	reg, err := fx.svc.Register(ctx, ModeStrict, validForm())
	require.NoError(t, err)
	form := validForm()
	form.CompanyName = "Invited Co"
	form.InviteCode = DefaultInviteCode
	inv, err := fx.svc.Register(ctx, ModeInvite, form)
	require.NoError(t, err)

	res := doJSON(t, h, http.MethodGet, "/api/admin/suppliers?search=invited&risk=all&sort=az", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var dash Dashboard
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &dash))
	require.Len(t, dash.Suppliers, 1)
	assert.Equal(t, inv.Supplier.ID, dash.Suppliers[0].ID)
	assert.Equal(t, 2, dash.Stats.Total)

	res = doJSON(t, h, http.MethodGet, "/api/admin/suppliers/"+reg.Supplier.ID, nil, nil)
	require.Equal(t, http.StatusOK, res.Code)

	res = doJSON(t, h, http.MethodGet, "/api/admin/suppliers/"+reg.Supplier.ID+"/assessment", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var a Assessment
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &a))
	assert.Equal(t, reg.Supplier.RiskScore, a.Score)

	res = doJSON(t, h, http.MethodPost, "/api/admin/suppliers/"+inv.Supplier.ID+"/accept-invite", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var accepted Supplier
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &accepted))
	assert.True(t, accepted.InviteAccepted)

	res = doJSON(t, h, http.MethodGet, "/api/admin/suppliers/export.csv?sort=az", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "text/csv; charset=utf-8", res.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(res.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], `"Invited Co"`)
}
