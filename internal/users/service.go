package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"

	"github.com/inkwell-press/inkwell/internal/identity"
	"github.com/inkwell-press/inkwell/internal/rbac"
	"github.com/inkwell-press/inkwell/internal/shared"
	"github.com/inkwell-press/inkwell/jobs"
)

// Directory is the slice of the account store the approval desk needs.
type Directory interface {
	ListUnapproved(ctx context.Context, page, perPage int) ([]identity.Account, shared.Pagination, error)
	FindByID(ctx context.Context, id int64) (*identity.Account, error)
	Approve(ctx context.Context, id int64) error
}

// AuditRecorder persists audit entries for approvals.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ApprovalNotifier queues the email telling an account holder they can now
// sign in.
type ApprovalNotifier interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// Service handles the admin approval workflow.
type Service struct {
	directory Directory
	audit     AuditRecorder
	notifier  ApprovalNotifier
	logger    *slog.Logger
}

// NewService constructs a new Service. Audit and notifier may be nil.
func NewService(directory Directory, audit AuditRecorder, notifier ApprovalNotifier, logger *slog.Logger) *Service {
	return &Service{directory: directory, audit: audit, notifier: notifier, logger: logger}
}

// ListUnapproved returns the accounts awaiting review.
func (s *Service) ListUnapproved(ctx context.Context, page, perPage int) ([]identity.Account, shared.Pagination, error) {
	return s.directory.ListUnapproved(ctx, page, perPage)
}

// Approve clears the account to sign in, records the decision and queues a
// notification. Notification failures are logged, not surfaced; the approval
// itself already happened.
func (s *Service) Approve(ctx context.Context, actor rbac.Principal, accountID int64) error {
	account, err := s.directory.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.directory.Approve(ctx, accountID); err != nil {
		return err
	}

	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "account.approve",
			Entity:   "account",
			EntityID: strconv.FormatInt(accountID, 10),
			Meta:     map[string]any{"actor_email": actor.Email, "account_email": account.Email},
		})
		if err != nil && s.logger != nil {
			s.logger.Warn("record approval audit", slog.Any("error", err))
		}
	}

	if s.notifier != nil {
		_, err := s.notifier.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
			To:      account.Email,
			Subject: "Your Inkwell account is approved",
			Body:    fmt.Sprintf("Hi %s, your account has been approved. You can sign in and start publishing.", displayName(account)),
		})
		if err != nil && s.logger != nil {
			s.logger.Warn("queue approval notification", slog.Any("error", err), slog.String("email", account.Email))
		}
	}
	return nil
}

func displayName(account *identity.Account) string {
	if account.Name != "" {
		return account.Name
	}
	return account.Email
}
