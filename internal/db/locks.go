package db

import (
	"context"
	"database/sql"

	"github.com/eladdeutch/jobtracker/internal/errors"
)

// AcquireBatchLock takes the per-account advisory lock for holder until
// now+ttl. An unexpired lock held by anyone else returns BATCH_IN_PROGRESS;
// an expired one is taken over, so a crashed run cannot block the account forever.
func AcquireBatchLock(ctx context.Context, q Querier, account, holder string, now, ttl int64) error {
	res, err := q.ExecContext(ctx, `
		INSERT INTO batch_locks (account, holder, acquired_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET
			holder = excluded.holder,
			acquired_at = excluded.acquired_at,
			expires_at = excluded.expires_at
		WHERE batch_locks.expires_at <= excluded.acquired_at
	`, account, holder, now, now+ttl)
	if err != nil {
		if isBusyError(err) {
			return errors.NewCollaboratorUnavailable("store", err)
		}
		return errors.NewInternal(err)
	}
	if rowsAffected(res) == 1 {
		return nil
	}

	var current string
	var expiresAt int64
	err = q.QueryRowContext(ctx, `SELECT holder, expires_at FROM batch_locks WHERE account = ?`, account).
		Scan(&current, &expiresAt)
	if err != nil && err != sql.ErrNoRows {
		return storeErr(err)
	}
	return errors.NewBatchInProgress(account, current, expiresAt)
}

// ReleaseBatchLock drops the lock if holder still owns it.
func ReleaseBatchLock(ctx context.Context, q Querier, account, holder string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM batch_locks WHERE account = ? AND holder = ?`, account, holder); err != nil {
		return storeErr(err)
	}
	return nil
}

// LastSync returns when account's mailbox was last scanned, or 0.
func LastSync(ctx context.Context, q Querier, account string) (int64, error) {
	var at int64
	err := q.QueryRowContext(ctx, `SELECT last_sync_at FROM mailbox_sync WHERE account = ?`, account).Scan(&at)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, storeErr(err)
	}
	return at, nil
}

// SetLastSync records a completed scan.
func SetLastSync(ctx context.Context, q Querier, account string, at int64) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO mailbox_sync (account, last_sync_at) VALUES (?, ?)
		ON CONFLICT(account) DO UPDATE SET last_sync_at = excluded.last_sync_at
	`, account, at)
	if err != nil {
		return storeErr(err)
	}
	return nil
}
