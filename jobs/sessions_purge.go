package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionsPurgeJob removes session audit rows whose Redis counterpart has
// long expired. The rows are kept a grace period past expiry so an operator
// can still inspect recent sign-ins.
type SessionsPurgeJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
	Grace  time.Duration
	clock  func() time.Time
}

// NewSessionsPurgeJob initialises the purge handler.
func NewSessionsPurgeJob(pool *pgxpool.Pool, logger *slog.Logger, grace time.Duration) *SessionsPurgeJob {
	if grace <= 0 {
		grace = 72 * time.Hour
	}
	return &SessionsPurgeJob{
		Pool:   pool,
		Logger: logger,
		Grace:  grace,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the purge.
func (j *SessionsPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("sessions purge: handler not configured")
	}
	cutoff := j.clock().Add(-j.Grace)
	tag, err := j.Pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		j.logger().Error("purge sessions failed", slog.Any("error", err))
		return err
	}
	j.logger().Info("purged expired sessions",
		slog.Int64("removed", tag.RowsAffected()),
		slog.Time("cutoff", cutoff),
	)
	return nil
}

func (j *SessionsPurgeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
