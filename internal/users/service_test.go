package users

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-press/inkwell/internal/identity"
	"github.com/inkwell-press/inkwell/internal/rbac"
	"github.com/inkwell-press/inkwell/internal/shared"
	"github.com/inkwell-press/inkwell/jobs"
)

type mockDirectory struct {
	accounts map[int64]*identity.Account
}

func (m *mockDirectory) ListUnapproved(ctx context.Context, page, perPage int) ([]identity.Account, shared.Pagination, error) {
	var pending []identity.Account
	for id := int64(1); id <= int64(len(m.accounts)); id++ {
		if a, ok := m.accounts[id]; ok && !a.Approved {
			pending = append(pending, *a)
		}
	}
	return pending, shared.NewPagination(page, perPage, len(pending)), nil
}

func (m *mockDirectory) FindByID(ctx context.Context, id int64) (*identity.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return a, nil
}

func (m *mockDirectory) Approve(ctx context.Context, id int64) error {
	a, ok := m.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	a.Approved = true
	return nil
}

type mockAudit struct {
	logs []shared.AuditLog
}

func (m *mockAudit) Record(ctx context.Context, log shared.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

type mockNotifier struct {
	sent []jobs.SendEmailPayload
	err  error
}

func (m *mockNotifier) EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.sent = append(m.sent, payload)
	return &asynq.TaskInfo{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func adminPrincipal() rbac.Principal {
	return rbac.Principal{
		ID: 1, Email: "a@a.a", Approved: true,
		Roles: rbac.RoleSet{rbac.RoleAdmin: struct{}{}},
	}
}

func TestApproveFlipsAccountAndNotifies(t *testing.T) {
	dir := &mockDirectory{accounts: map[int64]*identity.Account{
		2: {ID: 2, Email: "c@c.c", Name: "Casey"},
	}}
	audit := &mockAudit{}
	notifier := &mockNotifier{}
	svc := NewService(dir, audit, notifier, testLogger())

	require.NoError(t, svc.Approve(context.Background(), adminPrincipal(), 2))

	assert.True(t, dir.accounts[2].Approved)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "account.approve", audit.logs[0].Action)
	assert.Equal(t, int64(1), audit.logs[0].ActorID)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "c@c.c", notifier.sent[0].To)
	assert.Contains(t, notifier.sent[0].Body, "Casey")
}

func TestApproveSucceedsWhenNotificationFails(t *testing.T) {
	dir := &mockDirectory{accounts: map[int64]*identity.Account{
		2: {ID: 2, Email: "c@c.c"},
	}}
	notifier := &mockNotifier{err: assert.AnError}
	svc := NewService(dir, nil, notifier, testLogger())

	require.NoError(t, svc.Approve(context.Background(), adminPrincipal(), 2))
	assert.True(t, dir.accounts[2].Approved)
}

func TestApproveUnknownAccount(t *testing.T) {
	svc := NewService(&mockDirectory{accounts: map[int64]*identity.Account{}}, nil, nil, testLogger())

	err := svc.Approve(context.Background(), adminPrincipal(), 99)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListUnapprovedOnlyPending(t *testing.T) {
	dir := &mockDirectory{accounts: map[int64]*identity.Account{
		1: {ID: 1, Email: "a@a.a", Approved: true},
		2: {ID: 2, Email: "c@c.c"},
		3: {ID: 3, Email: "d@d.d"},
	}}
	svc := NewService(dir, nil, nil, testLogger())

	pending, pagination, err := svc.ListUnapproved(context.Background(), 1, 20)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 2, pagination.Total)
	for _, a := range pending {
		assert.False(t, a.Approved)
	}
}
