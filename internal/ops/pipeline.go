package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eladdeutch/jobtracker/internal/config"
	"github.com/eladdeutch/jobtracker/internal/db"
	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/jobpage"
	"github.com/eladdeutch/jobtracker/internal/mailbox"
	"github.com/eladdeutch/jobtracker/internal/metrics"
	"github.com/eladdeutch/jobtracker/internal/reconcile"
)

// Pipeline runs the batch orchestrators: scan, auto-process,
// auto-create-reminders, auto-reject-stale and dedupe. Every run holds the
// account's batch lock and commits one transaction per record.
type Pipeline struct {
	DB      *sql.DB
	Cfg     *config.Config
	Log     *zap.Logger
	Metrics *metrics.Metrics
	Mailbox mailbox.Mailbox

	// Pages fetches job postings; nil builds one from FetchTimeoutSeconds.
	Pages *jobpage.Fetcher

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewPipeline returns a Pipeline with a no-op logger and nil metrics; callers
// set the fields they need.
func NewPipeline(database *sql.DB, cfg *config.Config, box mailbox.Mailbox) *Pipeline {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Pipeline{DB: database, Cfg: cfg, Log: zap.NewNop(), Mailbox: box}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) log() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}

func (p *Pipeline) matcher() *reconcile.Matcher {
	return reconcile.NewMatcher(p.Cfg.PositionSimilarity)
}

// run holds the account lock for the duration of fn and logs the outcome.
func (p *Pipeline) run(ctx context.Context, op, acct string, fn func(runID string) error) error {
	return withAccountLock(ctx, p.DB, p.Cfg, acct, p.now(), func(runID string) error {
		start := time.Now()
		log := p.log().With(zap.String("op", op), zap.String("account", acct), zap.String("run_id", runID))
		log.Debug("batch run started")

		err := fn(runID)
		p.Metrics.ObserveBatch(op, start)
		if err != nil {
			log.Warn("batch run failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
			return err
		}
		log.Info("batch run finished", zap.Duration("elapsed", time.Since(start)))
		return nil
	})
}

// withAccountLock serializes batch work per account. The lock row carries a
// TTL so a crashed holder only blocks the account until it expires.
func withAccountLock(ctx context.Context, database *sql.DB, cfg *config.Config, acct string, now time.Time, fn func(runID string) error) error {
	runID := uuid.NewString()
	ttl := int64(600)
	if cfg != nil && cfg.LockTTLSeconds > 0 {
		ttl = int64(cfg.LockTTLSeconds)
	}
	if err := db.AcquireBatchLock(ctx, database, acct, runID, now.Unix(), ttl); err != nil {
		if je, ok := errors.As(err); ok && je.Code == errors.ErrBatchInProgress {
			until, _ := je.Details["expires_at"].(int64)
			return errors.WithHintf(err,
				"runs do not queue; retry once the running batch finishes (its lock expires at %s at the latest)",
				time.Unix(until, 0).UTC().Format(time.RFC3339))
		}
		return err
	}
	defer func() {
		_ = db.ReleaseBatchLock(context.WithoutCancel(ctx), database, acct, runID)
	}()
	return fn(runID)
}

// inRecordTx runs fn as one record's unit of work. A STORE_CONFLICT is
// retried once with a fresh transaction. The transaction ignores
// cancellation, so a record either commits fully or not at all.
func (p *Pipeline) inRecordTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return recordTx(ctx, p.DB, p.Metrics, fn)
}

func recordTx(ctx context.Context, database *sql.DB, m *metrics.Metrics, fn func(tx *sql.Tx) error) error {
	ctx = context.WithoutCancel(ctx)
	err := db.WithTx(ctx, database, fn)
	if errors.Is(err, errors.ErrStoreConflict) {
		m.StoreConflict()
		err = db.WithTx(ctx, database, fn)
		if errors.Is(err, errors.ErrStoreConflict) {
			m.StoreConflict()
		}
	}
	return err
}

// fatal reports errors that abort a whole batch instead of skipping one record.
func fatal(err error) bool {
	return errors.Is(err, errors.ErrCollaboratorUnavailable) || errors.Is(err, errors.ErrCancelled)
}

// cancelled stops a batch between records.
func cancelled(ctx context.Context, op string) error {
	if ctx.Err() != nil {
		return errors.NewCancelled(op)
	}
	return nil
}

// reason renders an error for a change log line.
func reason(err error) string {
	if je, ok := errors.As(err); ok {
		return string(je.Code) + ": " + je.Message
	}
	return err.Error()
}
