package suppliers

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"github.com/supplierhub/supplierhub/internal/platform/httpx"
)

// Hint headers carried by supplier clients.
const (
	HeaderUsername = "X-Supplier-Username"
	HeaderEmail    = "X-Supplier-Email"
	HeaderCompany  = "X-Supplier-Company"
)

var errorRules = []httpx.ErrorRule{
	{Target: ErrNotFound, Status: http.StatusNotFound, Title: "No Profile Found"},
	{Target: ErrDuplicateUsername, Status: http.StatusConflict, Title: "Username Taken"},
	{Target: ErrDuplicateID, Status: http.StatusConflict, Title: "Duplicate"},
	{Target: ErrCredentialsExist, Status: http.StatusConflict, Title: "Login Already Created"},
	{Target: ErrPendingNotFound, Status: http.StatusNotFound, Title: "Registration Not Found"},
	{Target: ErrInvalidInviteCode, Status: http.StatusForbidden, Title: "Invalid Invite Code"},
	{Target: ErrInvalidCredentials, Status: http.StatusUnauthorized, Title: "Invalid Credentials"},
	{Target: ErrTransport, Status: http.StatusBadGateway, Title: "Submission Failed"},
}

// Handler exposes the onboarding workflows over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
	exports singleflight.Group
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

type inviteRequest struct {
	Code string `json:"code"`
}

func (h *Handler) VerifyInvite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"valid": h.service.VerifyInviteCode(req.Code)})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	mode, ok := ParseRegistrationMode(chi.URLParam(r, "mode"))
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown registration mode")
		return
	}
	var form RegistrationForm
	if err := httpx.DecodeJSON(w, r, &form); err != nil {
		h.fail(w, r, err)
		return
	}
	reg, err := h.service.Register(r.Context(), mode, form)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reg)
}

type credentialsRequest struct {
	PendingToken string `json:"pendingToken"`
	Username     string `json:"username"`
	Password     string `json:"password"`
}

func (h *Handler) CreateLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	rec, err := h.service.CreateLogin(r.Context(), req.PendingToken, strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"supplier": rec, "hints": HintsFor(rec)})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	rec, hints, err := h.service.Authenticate(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"supplier": rec, "hints": hints})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.CurrentSupplier(r.Context(), hintsFromRequest(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) EditProfile(w http.ResponseWriter, r *http.Request) {
	var update ProfileUpdate
	if err := httpx.DecodeJSON(w, r, &update); err != nil {
		h.fail(w, r, err)
		return
	}
	rec, err := h.service.EditProfile(r.Context(), hintsFromRequest(r), update)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.service.Dashboard(r.Context(), q))
}

// Export coalesces concurrent downloads of the same view.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, err, _ := h.exports.Do(q.Key(), func() (any, error) {
		var buf bytes.Buffer
		if err := h.service.ExportCSV(r.Context(), &buf, q); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="suppliers.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(v.([]byte))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) Assessment(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Reassess(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.AcceptInvite(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Debug("supplier request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err, errorRules...)
}

func hintsFromRequest(r *http.Request) Hints {
	return Hints{
		Username:    r.Header.Get(HeaderUsername),
		Email:       r.Header.Get(HeaderEmail),
		CompanyName: r.Header.Get(HeaderCompany),
	}
}

func queryFromRequest(r *http.Request) (Query, error) {
	values := r.URL.Query()
	sortOrder, ok := ParseSortOrder(values.Get("sort"))
	if !ok {
		return Query{}, FieldErrors{"sort": "Unknown sort order"}
	}
	return Query{
		Search:        values.Get("search"),
		RiskCategory:  values.Get("risk"),
		Country:       values.Get("country"),
		Industry:      values.Get("industry"),
		Certification: values.Get("certification"),
		Sort:          sortOrder,
	}, nil
}
