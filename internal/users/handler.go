package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-press/inkwell/internal/rbac"
	"github.com/inkwell-press/inkwell/internal/shared"
	"github.com/inkwell-press/inkwell/internal/view"
)

// Handler manages the admin approval endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	sessions  *shared.SessionManager
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, sessions *shared.SessionManager, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, sessions: sessions, rbac: rbac}
}

// MountRoutes registers approval routes. Admin only.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.RoleAdmin))
		r.Get("/", h.listPending)
		r.Post("/{id}/approve", h.approve)
	})
}

type formErrors map[string]string

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	accounts, pagination, err := h.service.ListUnapproved(r.Context(), page, 20)
	if err != nil {
		h.logger.Error("list unapproved failed", slog.Any("error", err))
		h.render(w, r, "pages/admin_users.html", map[string]any{
			"Errors": formErrors{"general": shared.UserSafeMessage(err)},
		}, http.StatusInternalServerError)
		return
	}

	h.render(w, r, "pages/admin_users.html", map[string]any{
		"Accounts":   accounts,
		"Pagination": pagination,
	}, http.StatusOK)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid account ID", http.StatusBadRequest)
		return
	}
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := h.service.Approve(r.Context(), *principal, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			http.Error(w, "Account not found", http.StatusNotFound)
			return
		}
		h.logger.Error("approve account failed", slog.Any("error", err), slog.Int64("id", id))
		h.redirectWithFlash(w, r, "/admin/users", "error", "Could not approve the account")
		return
	}

	h.redirectWithFlash(w, r, "/admin/users", "success", "Account approved")
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	principal, _ := rbac.PrincipalFromContext(r.Context())
	viewData := view.TemplateData{
		Title:       "Approvals",
		CSRFToken:   csrfToken,
		Flash:       flash,
		Principal:   principal,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
