package articles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-press/inkwell/internal/platform/httpx"
	"github.com/inkwell-press/inkwell/internal/rbac"
	"github.com/inkwell-press/inkwell/internal/shared"
	"github.com/inkwell-press/inkwell/internal/view"
)

const dateLayout = "2006-01-02"

type formErrors map[string]string

// Handler serves the article pages.
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

// MountRoutes registers article routes. Reading is public; writing requires
// an approved Contributor or Admin.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/feed.json", h.feed)

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.RoleContributor, rbac.RoleAdmin))
		r.Get("/new", h.showCreateForm)
		r.Post("/", h.create)
		r.Get("/{id}/edit", h.showEditForm)
		r.Post("/{id}/edit", h.update)
		r.Post("/{id}/delete", h.delete)
	})

	r.Get("/{id}", h.show)
}

// Home lists the full catalog, narrowed by an optional start/end query.
// Mounted at the site root.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	dateRange, errs := parseRange(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if len(errs) > 0 {
		h.render(w, r, "pages/home.html", map[string]any{
			"Articles": []Article(nil),
			"Errors":   errs,
			"Start":    r.URL.Query().Get("start"),
			"End":      r.URL.Query().Get("end"),
		}, http.StatusBadRequest)
		return
	}

	catalog, err := h.service.ListByRange(r.Context(), dateRange)
	if err != nil {
		h.logger.Error("list catalog failed", "error", err)
		http.Error(w, "Failed to load articles", http.StatusInternalServerError)
		return
	}

	h.render(w, r, "pages/home.html", map[string]any{
		"Articles": catalog,
		"Errors":   formErrors{},
		"Start":    r.URL.Query().Get("start"),
		"End":      r.URL.Query().Get("end"),
	}, http.StatusOK)
}

// list shows the articles whose publication window covers right now, with
// author bylines attached.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	active, err := h.service.ListActive(r.Context())
	if err != nil {
		h.logger.Error("list active articles failed", "error", err)
		http.Error(w, "Failed to load articles", http.StatusInternalServerError)
		return
	}

	h.render(w, r, "pages/articles_list.html", map[string]any{
		"Articles": active,
	}, http.StatusOK)
}

// feed serves the currently live articles as JSON for syndication.
func (h *Handler) feed(w http.ResponseWriter, r *http.Request) {
	active, err := h.service.ListActive(r.Context())
	if err != nil {
		h.logger.Error("build feed failed", "error", err)
		httpx.RespondError(w, err)
		return
	}

	type feedItem struct {
		ID     int64     `json:"id"`
		Title  string    `json:"title"`
		Author string    `json:"author"`
		Start  time.Time `json:"start_date"`
		End    time.Time `json:"end_date"`
	}
	items := make([]feedItem, 0, len(active))
	for _, a := range active {
		items = append(items, feedItem{
			ID:     a.ID,
			Title:  a.Title,
			Author: a.AuthorName,
			Start:  a.StartDate,
			End:    a.EndDate,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"articles": items})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid article ID", http.StatusBadRequest)
		return
	}

	article, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			http.Error(w, "Article not found", http.StatusNotFound)
			return
		}
		h.logger.Error("get article failed", "error", err, "id", id)
		http.Error(w, "Failed to load article", http.StatusInternalServerError)
		return
	}

	principal, signedIn := rbac.PrincipalFromContext(r.Context())
	canEdit := signedIn && CanEdit(*principal, *article)

	h.render(w, r, "pages/article_detail.html", map[string]any{
		"Article": article,
		"CanEdit": canEdit,
	}, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	h.render(w, r, "pages/article_form.html", map[string]any{
		"Errors":  formErrors{},
		"Article": nil,
		"Form": articleForm{
			StartDate: now.Format(dateLayout),
			EndDate:   now.AddDate(0, 1, 0).Format(dateLayout),
		},
	}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	form := readForm(r)
	input, errs := form.toInput()
	if len(errs) == 0 {
		article, err := h.service.Create(r.Context(), *principal, input)
		if err == nil {
			h.redirectWithFlash(w, r, "/articles/"+strconv.FormatInt(article.ID, 10), "success", "Article published")
			return
		}
		errs = h.mutationErrors(err)
		if errs == nil {
			h.logger.Error("create article failed", "error", err)
			http.Error(w, "Failed to create article", http.StatusInternalServerError)
			return
		}
	}

	h.render(w, r, "pages/article_form.html", map[string]any{
		"Errors":  errs,
		"Article": nil,
		"Form":    form,
	}, http.StatusBadRequest)
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid article ID", http.StatusBadRequest)
		return
	}
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	article, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			http.Error(w, "Article not found", http.StatusNotFound)
			return
		}
		h.logger.Error("get article failed", "error", err, "id", id)
		http.Error(w, "Failed to load article", http.StatusInternalServerError)
		return
	}
	if d := Authorize(*principal, article, ActionEdit); d.Outcome != DecisionOk {
		h.respondDecision(w, d)
		return
	}

	h.render(w, r, "pages/article_form.html", map[string]any{
		"Errors":  formErrors{},
		"Article": article,
		"Form": articleForm{
			Title:     article.Title,
			Body:      article.Body,
			StartDate: article.StartDate.Format(dateLayout),
			EndDate:   article.EndDate.Format(dateLayout),
			Token:     article.UpdatedAt.Format(time.RFC3339Nano),
		},
	}, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid article ID", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	form := readForm(r)
	input, errs := form.toInput()
	if len(errs) == 0 {
		_, err := h.service.Update(r.Context(), *principal, id, input)
		if err == nil {
			h.redirectWithFlash(w, r, "/articles/"+strconv.FormatInt(id, 10), "success", "Article updated")
			return
		}
		switch {
		case errors.Is(err, httpx.ErrNotFound):
			http.Error(w, "Article not found", http.StatusNotFound)
			return
		case errors.Is(err, httpx.ErrForbidden):
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		case errors.Is(err, httpx.ErrConflict):
			h.redirectWithFlash(w, r, "/articles/"+strconv.FormatInt(id, 10)+"/edit", "error", "The article changed while you were editing. Review and retry.")
			return
		}
		errs = h.mutationErrors(err)
		if errs == nil {
			h.logger.Error("update article failed", "error", err, "id", id)
			http.Error(w, "Failed to update article", http.StatusInternalServerError)
			return
		}
	}

	h.render(w, r, "pages/article_form.html", map[string]any{
		"Errors":  errs,
		"Article": &Article{ID: id},
		"Form":    form,
	}, http.StatusBadRequest)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid article ID", http.StatusBadRequest)
		return
	}
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := h.service.Delete(r.Context(), *principal, id); err != nil {
		switch {
		case errors.Is(err, httpx.ErrNotFound):
			http.Error(w, "Article not found", http.StatusNotFound)
		case errors.Is(err, httpx.ErrForbidden):
			http.Error(w, "Forbidden", http.StatusForbidden)
		case errors.Is(err, httpx.ErrConflict):
			h.redirectWithFlash(w, r, "/articles/"+strconv.FormatInt(id, 10), "error", "The article changed while you were deleting. Review and retry.")
		default:
			h.logger.Error("delete article failed", "error", err, "id", id)
			http.Error(w, "Failed to delete article", http.StatusInternalServerError)
		}
		return
	}

	h.redirectWithFlash(w, r, "/articles", "success", "Article deleted")
}

// respondDecision writes the status for a denied decision. Existence is
// always reported before ownership.
func (h *Handler) respondDecision(w http.ResponseWriter, d Decision) {
	switch d.Outcome {
	case DecisionNotFound:
		http.Error(w, "Article not found", http.StatusNotFound)
	default:
		http.Error(w, "Forbidden", http.StatusForbidden)
	}
}

// mutationErrors converts validation failures into field errors for the form
// template; any other error returns nil so the caller can escalate.
func (h *Handler) mutationErrors(err error) formErrors {
	if errors.Is(err, httpx.ErrValidation) {
		return formErrors{"general": shared.UserSafeMessage(err)}
	}
	return nil
}

// articleForm carries raw form values so failed submissions redisplay what
// the user typed.
type articleForm struct {
	Title     string
	Body      string
	StartDate string
	EndDate   string
	Token     string
}

func readForm(r *http.Request) articleForm {
	return articleForm{
		Title:     r.PostFormValue("title"),
		Body:      r.PostFormValue("body"),
		StartDate: r.PostFormValue("start_date"),
		EndDate:   r.PostFormValue("end_date"),
		Token:     r.PostFormValue("token"),
	}
}

func (f articleForm) toInput() (Input, formErrors) {
	errs := formErrors{}
	input := Input{Title: f.Title, Body: f.Body}

	if f.StartDate != "" {
		start, err := time.Parse(dateLayout, f.StartDate)
		if err != nil {
			errs["start_date"] = "Start date must use YYYY-MM-DD"
		} else {
			input.StartDate = start
		}
	}
	if f.EndDate != "" {
		end, err := time.Parse(dateLayout, f.EndDate)
		if err != nil {
			errs["end_date"] = "End date must use YYYY-MM-DD"
		} else {
			input.EndDate = end
		}
	}
	if f.Token != "" {
		token, err := time.Parse(time.RFC3339Nano, f.Token)
		if err != nil {
			errs["token"] = "Stale form submission"
		} else {
			input.Token = token
		}
	}
	if len(errs) > 0 {
		return Input{}, errs
	}
	return input, nil
}

func parseRange(start, end string) (DateRange, formErrors) {
	errs := formErrors{}
	var r DateRange
	if start != "" {
		t, err := time.Parse(dateLayout, start)
		if err != nil {
			errs["start"] = "Start date must use YYYY-MM-DD"
		} else {
			r.Start = &t
		}
	}
	if end != "" {
		t, err := time.Parse(dateLayout, end)
		if err != nil {
			errs["end"] = "End date must use YYYY-MM-DD"
		} else {
			r.End = &t
		}
	}
	if len(errs) > 0 {
		return DateRange{}, errs
	}
	return r, nil
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
		Title:       "Articles",
		CSRFToken:   csrfToken,
		Flash:       flash,
		Principal:   principal,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", "error", err, "template", template)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
