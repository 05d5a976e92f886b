package articles

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-press/inkwell/internal/platform/httpx"
	"github.com/inkwell-press/inkwell/internal/rbac"
	"github.com/inkwell-press/inkwell/internal/shared"
)

type mockRepository struct {
	articles map[int64]Article
	nextID   int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{articles: make(map[int64]Article), nextID: 1}
}

func (m *mockRepository) List(ctx context.Context) ([]Article, error) {
	out := make([]Article, 0, len(m.articles))
	for id := int64(1); id < m.nextID; id++ {
		if a, ok := m.articles[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockRepository) Find(ctx context.Context, id int64) (*Article, error) {
	a, ok := m.articles[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &a, nil
}

func (m *mockRepository) Insert(ctx context.Context, article *Article) (int64, error) {
	article.ID = m.nextID
	article.UpdatedAt = time.Now().UTC()
	m.nextID++
	m.articles[article.ID] = *article
	return article.ID, nil
}

func (m *mockRepository) Update(ctx context.Context, article *Article) error {
	stored, ok := m.articles[article.ID]
	if !ok || !stored.UpdatedAt.Equal(article.UpdatedAt) {
		return httpx.ErrConflict
	}
	article.UpdatedAt = stored.UpdatedAt.Add(time.Second)
	m.articles[article.ID] = *article
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, article *Article) error {
	stored, ok := m.articles[article.ID]
	if !ok || !stored.UpdatedAt.Equal(article.UpdatedAt) {
		return httpx.ErrConflict
	}
	delete(m.articles, article.ID)
	return nil
}

type mockDirectory struct {
	names map[string]string
}

func (m *mockDirectory) DisplayName(ctx context.Context, email string) (string, error) {
	name, ok := m.names[email]
	if !ok {
		return "", shared.ErrNotFound
	}
	return name, nil
}

type mockAudit struct {
	logs []shared.AuditLog
}

func (m *mockAudit) Record(ctx context.Context, log shared.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func testService(repo Repository) *Service {
	return NewService(repo, nil, nil, slog.New(slog.NewTextHandler(&strings.Builder{}, nil)))
}

func TestCreateForcesOwnerToPrincipal(t *testing.T) {
	repo := newMockRepository()
	svc := testService(repo)
	bob := principal("bob@example.com", true, rbac.RoleContributor)

	article, err := svc.Create(context.Background(), bob, Input{
		Title:     "First post",
		Body:      "hello",
		StartDate: date(2025, time.January, 1),
		EndDate:   date(2025, time.January, 31),
	})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", article.OwnerEmail)

	stored, err := repo.Find(context.Background(), article.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", stored.OwnerEmail)
}

func TestCreateDefaultsWindowToOneMonth(t *testing.T) {
	repo := newMockRepository()
	svc := testService(repo)
	svc.now = func() time.Time { return date(2025, time.March, 1) }
	bob := principal("bob@example.com", true, rbac.RoleContributor)

	article, err := svc.Create(context.Background(), bob, Input{Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.March, 1), article.StartDate)
	assert.Equal(t, date(2025, time.April, 1), article.EndDate)
}

func TestCreateRejectsUnapprovedPrincipal(t *testing.T) {
	svc := testService(newMockRepository())
	unapproved := principal("c@c.c", false, rbac.RoleContributor)

	_, err := svc.Create(context.Background(), unapproved, Input{Title: "t", Body: "b"})
	assert.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestCreateValidatesInput(t *testing.T) {
	svc := testService(newMockRepository())
	bob := principal("bob@example.com", true, rbac.RoleContributor)

	_, err := svc.Create(context.Background(), bob, Input{Body: "b"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(context.Background(), bob, Input{Title: strings.Repeat("x", TitleMaxLength+1), Body: "b"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(context.Background(), bob, Input{Title: "t"})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDeleteOwnershipMatrix(t *testing.T) {
	repo := newMockRepository()
	svc := testService(repo)
	bob := principal("bob@example.com", true, rbac.RoleContributor)
	alice := principal("alice@example.com", true, rbac.RoleContributor)
	admin := principal("a@a.a", true, rbac.RoleAdmin)

	created, err := svc.Create(context.Background(), bob, Input{Title: "t", Body: "b"})
	require.NoError(t, err)

	// A non-owner contributor is refused and the article survives.
	err = svc.Delete(context.Background(), alice, created.ID)
	assert.ErrorIs(t, err, httpx.ErrForbidden)
	_, err = repo.Find(context.Background(), created.ID)
	assert.NoError(t, err)

	// An admin who does not own it may remove it.
	err = svc.Delete(context.Background(), admin, created.ID)
	assert.NoError(t, err)
	_, err = repo.Find(context.Background(), created.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateMissingArticleIsNotFoundBeforeForbidden(t *testing.T) {
	svc := testService(newMockRepository())
	alice := principal("alice@example.com", true, rbac.RoleContributor)

	_, err := svc.Update(context.Background(), alice, 42, Input{Title: "t", Body: "b"})
	assert.ErrorIs(t, err, httpx.ErrNotFound)

	err = svc.Delete(context.Background(), alice, 42)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestUpdateConflictWhenRowChangedUnderneath(t *testing.T) {
	repo := newMockRepository()
	svc := testService(repo)
	bob := principal("bob@example.com", true, rbac.RoleContributor)

	created, err := svc.Create(context.Background(), bob, Input{Title: "t", Body: "b"})
	require.NoError(t, err)

	// Another writer saved after this client read its copy; the stale token
	// from the form surfaces as a conflict, not a silent overwrite.
	staleToken := created.UpdatedAt
	stored := repo.articles[created.ID]
	stored.UpdatedAt = stored.UpdatedAt.Add(time.Minute)
	repo.articles[created.ID] = stored

	_, err = svc.Update(context.Background(), bob, created.ID, Input{
		Title: "t2", Body: "b2", Token: staleToken,
	})
	assert.ErrorIs(t, err, httpx.ErrConflict)
}

func TestUpdateConflictOnVanishedRowIsNotFound(t *testing.T) {
	repo := newMockRepository()
	svc := testService(repo)
	bob := principal("bob@example.com", true, rbac.RoleContributor)

	created, err := svc.Create(context.Background(), bob, Input{Title: "t", Body: "b"})
	require.NoError(t, err)

	// The row disappears after the policy check; the stale-token failure is
	// re-resolved to not-found instead of conflict.
	racingRepo := &vanishingRepository{mockRepository: repo, victim: created.ID}
	racingSvc := testService(racingRepo)

	_, err = racingSvc.Update(context.Background(), bob, created.ID, Input{Title: "t2", Body: "b2"})
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

// vanishingRepository deletes the victim row on first write, simulating a
// concurrent delete between the policy check and the update.
type vanishingRepository struct {
	*mockRepository
	victim int64
}

func (v *vanishingRepository) Update(ctx context.Context, article *Article) error {
	if article.ID == v.victim {
		delete(v.articles, v.victim)
		return httpx.ErrConflict
	}
	return v.mockRepository.Update(ctx, article)
}

func TestListActiveAttachesAuthorNames(t *testing.T) {
	repo := newMockRepository()
	directory := &mockDirectory{names: map[string]string{"bob@example.com": "Bob Byline"}}
	svc := NewService(repo, directory, nil, slog.New(slog.NewTextHandler(&strings.Builder{}, nil)))
	svc.now = func() time.Time { return date(2025, time.June, 15) }

	bob := principal("bob@example.com", true, rbac.RoleContributor)
	_, err := svc.Create(context.Background(), bob, Input{
		Title:     "live",
		Body:      "b",
		StartDate: date(2025, time.June, 1),
		EndDate:   date(2025, time.June, 30),
	})
	require.NoError(t, err)

	ghost := principal("gone@example.com", true, rbac.RoleContributor)
	_, err = svc.Create(context.Background(), ghost, Input{
		Title:     "orphaned",
		Body:      "b",
		StartDate: date(2025, time.June, 1),
		EndDate:   date(2025, time.June, 30),
	})
	require.NoError(t, err)

	active, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "Bob Byline", active[0].AuthorName)
	assert.Equal(t, "Unknown Author", active[1].AuthorName)
}

func TestListActiveExcludesOutOfWindow(t *testing.T) {
	repo := newMockRepository()
	svc := testService(repo)
	svc.now = func() time.Time { return date(2025, time.June, 15) }
	bob := principal("bob@example.com", true, rbac.RoleContributor)

	_, err := svc.Create(context.Background(), bob, Input{
		Title: "past", Body: "b",
		StartDate: date(2025, time.January, 1), EndDate: date(2025, time.January, 31),
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), bob, Input{
		Title: "live", Body: "b",
		StartDate: date(2025, time.June, 1), EndDate: date(2025, time.June, 30),
	})
	require.NoError(t, err)

	active, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "live", active[0].Title)
}

func TestListByRangePassesRangeThrough(t *testing.T) {
	repo := newMockRepository()
	svc := testService(repo)
	bob := principal("bob@example.com", true, rbac.RoleContributor)

	_, err := svc.Create(context.Background(), bob, Input{
		Title: "winter", Body: "b",
		StartDate: date(2025, time.January, 10), EndDate: date(2025, time.January, 20),
	})
	require.NoError(t, err)

	got, err := svc.ListByRange(context.Background(), DateRange{
		Start: datePtr(2025, time.January, 1),
		End:   datePtr(2025, time.January, 15),
	})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = svc.ListByRange(context.Background(), DateRange{
		Start: datePtr(2025, time.February, 1),
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMutationsRecordAudit(t *testing.T) {
	repo := newMockRepository()
	audit := &mockAudit{}
	svc := NewService(repo, nil, audit, slog.New(slog.NewTextHandler(&strings.Builder{}, nil)))
	bob := principal("bob@example.com", true, rbac.RoleContributor)

	created, err := svc.Create(context.Background(), bob, Input{Title: "t", Body: "b"})
	require.NoError(t, err)
	_, err = svc.Update(context.Background(), bob, created.ID, Input{Title: "t2", Body: "b2"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), bob, created.ID))

	require.Len(t, audit.logs, 3)
	assert.Equal(t, "article.create", audit.logs[0].Action)
	assert.Equal(t, "article.update", audit.logs[1].Action)
	assert.Equal(t, "article.delete", audit.logs[2].Action)
	assert.Equal(t, "article", audit.logs[0].Entity)
}

func TestGetIsPublic(t *testing.T) {
	repo := newMockRepository()
	svc := testService(repo)
	bob := principal("bob@example.com", true, rbac.RoleContributor)

	created, err := svc.Create(context.Background(), bob, Input{Title: "t", Body: "b"})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.Get(context.Background(), 999)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}
