package articles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/inkwell-press/inkwell/internal/platform/httpx"
	"github.com/inkwell-press/inkwell/internal/rbac"
	"github.com/inkwell-press/inkwell/internal/shared"
)

// TitleMaxLength bounds article titles.
const TitleMaxLength = 200

// unknownAuthor is shown when an owner account no longer resolves.
const unknownAuthor = "Unknown Author"

// AuthorDirectory resolves an owner email to a display name.
type AuthorDirectory interface {
	DisplayName(ctx context.Context, email string) (string, error)
}

// AuditRecorder persists audit entries for article mutations.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Input carries client-supplied article fields. Any owner value a client
// sends is discarded; ownership is always derived from the acting principal.
// Token is the updated_at value the client read; when set, a write against a
// row that changed since then fails with a conflict.
type Input struct {
	Title     string
	Body      string
	StartDate time.Time
	EndDate   time.Time
	Token     time.Time
}

// Service applies the visibility filter and authorization policy on top of
// the article repository.
type Service struct {
	repo    Repository
	authors AuthorDirectory
	audit   AuditRecorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs a Service. The audit recorder may be nil.
func NewService(repo Repository, authors AuthorDirectory, audit AuditRecorder, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		authors: authors,
		audit:   audit,
		logger:  logger,
		now:     time.Now,
	}
}

// ListByRange returns the catalog narrowed by an optional date range.
func (s *Service) ListByRange(ctx context.Context, r DateRange) ([]Article, error) {
	catalog, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return SelectByRange(catalog, r), nil
}

// ListActive returns the articles currently inside their publication window,
// with author display names attached.
func (s *Service) ListActive(ctx context.Context) ([]Article, error) {
	catalog, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	active := SelectActive(catalog, s.now())
	if err := s.attachAuthorNames(ctx, active); err != nil {
		return nil, err
	}
	return active, nil
}

// Get fetches a single article; public, no authorization.
func (s *Service) Get(ctx context.Context, id int64) (*Article, error) {
	article, err := s.repo.Find(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return article, nil
}

// Create persists a new article for the principal. The owner is forced to
// the principal's identifier; the publication window defaults to a month
// starting now when unset.
func (s *Service) Create(ctx context.Context, p rbac.Principal, input Input) (*Article, error) {
	if d := Authorize(p, nil, ActionCreate); d.Outcome != DecisionOk {
		return nil, d.Err()
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := s.now()
	article := &Article{
		Title:      input.Title,
		Body:       input.Body,
		OwnerEmail: p.Email,
		CreatedAt:  now,
		StartDate:  input.StartDate,
		EndDate:    input.EndDate,
	}
	if article.StartDate.IsZero() {
		article.StartDate = now
	}
	if article.EndDate.IsZero() {
		article.EndDate = now.AddDate(0, 1, 0)
	}

	if _, err := s.repo.Insert(ctx, article); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, p, "article.create", article.ID)
	return article, nil
}

// Update edits an existing article. Existence is decided before ownership;
// a concurrent change is re-resolved once before surfacing a conflict.
func (s *Service) Update(ctx context.Context, p rbac.Principal, id int64, input Input) (*Article, error) {
	article, err := s.findForMutation(ctx, p, id, ActionEdit)
	if err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	article.Title = input.Title
	article.Body = input.Body
	article.StartDate = input.StartDate
	article.EndDate = input.EndDate
	if !input.Token.IsZero() {
		article.UpdatedAt = input.Token
	}

	if err := s.repo.Update(ctx, article); err != nil {
		return nil, s.resolveConflict(ctx, id, err)
	}
	s.recordAudit(ctx, p, "article.update", article.ID)
	return article, nil
}

// Delete removes an article permanently under the same rule as Update.
func (s *Service) Delete(ctx context.Context, p rbac.Principal, id int64) error {
	article, err := s.findForMutation(ctx, p, id, ActionDelete)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, article); err != nil {
		return s.resolveConflict(ctx, id, err)
	}
	s.recordAudit(ctx, p, "article.delete", id)
	return nil
}

// findForMutation loads the target and runs the policy decision, mapping the
// tagged outcome to sentinel errors.
func (s *Service) findForMutation(ctx context.Context, p rbac.Principal, id int64, action Action) (*Article, error) {
	article, err := s.repo.Find(ctx, id)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	decision := Authorize(p, article, action)
	if decision.Outcome != DecisionOk {
		return nil, decision.Err()
	}
	return decision.Article, nil
}

// resolveConflict re-checks existence once after an optimistic failure: a
// vanished row reports not-found, anything else keeps the conflict.
func (s *Service) resolveConflict(ctx context.Context, id int64, err error) error {
	if !errors.Is(err, httpx.ErrConflict) {
		return err
	}
	if _, findErr := s.repo.Find(ctx, id); errors.Is(findErr, shared.ErrNotFound) {
		return httpx.ErrNotFound
	}
	return httpx.ErrConflict
}

func (s *Service) attachAuthorNames(ctx context.Context, active []Article) error {
	if s.authors == nil {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range active {
		i := i
		g.Go(func() error {
			name, err := s.authors.DisplayName(ctx, active[i].OwnerEmail)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					active[i].AuthorName = unknownAuthor
					return nil
				}
				return err
			}
			active[i].AuthorName = name
			return nil
		})
	}
	return g.Wait()
}

func (s *Service) recordAudit(ctx context.Context, p rbac.Principal, action string, articleID int64) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  p.ID,
		Action:   action,
		Entity:   "article",
		EntityID: strconv.FormatInt(articleID, 10),
		Meta:     map[string]any{"actor_email": p.Email},
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}

func validateInput(input Input) error {
	switch {
	case input.Title == "":
		return fmt.Errorf("%w: title is required", httpx.ErrValidation)
	case utf8.RuneCountInString(input.Title) > TitleMaxLength:
		return fmt.Errorf("%w: title exceeds %d characters", httpx.ErrValidation, TitleMaxLength)
	case input.Body == "":
		return fmt.Errorf("%w: body is required", httpx.ErrValidation)
	default:
		return nil
	}
}
