package db

import (
	"context"

	"github.com/eladdeutch/jobtracker/internal/tracker"
)

// CountApplicationsByStatus returns account's application count per status.
func CountApplicationsByStatus(ctx context.Context, q Querier, account string) (map[tracker.Status]int, error) {
	counts := map[tracker.Status]int{}
	err := groupCount(ctx, q, `
		SELECT status, COUNT(*) FROM applications WHERE account = ? GROUP BY status
	`, account, func(key string, n int) { counts[tracker.Status(key)] = n })
	return counts, err
}

// CountRejectionStages returns rejected applications per recorded stage.
// Rejections without a stage are counted under the empty status.
func CountRejectionStages(ctx context.Context, q Querier, account string) (map[tracker.Status]int, error) {
	counts := map[tracker.Status]int{}
	err := groupCount(ctx, q, `
		SELECT COALESCE(rejection_stage, ''), COUNT(*) FROM applications
		WHERE account = ? AND status = 'rejected'
		GROUP BY COALESCE(rejection_stage, '')
	`, account, func(key string, n int) { counts[tracker.Status(key)] = n })
	return counts, err
}

// CountEmailsByState returns account's email count per processing state.
func CountEmailsByState(ctx context.Context, q Querier, account string) (map[tracker.EmailState]int, error) {
	counts := map[tracker.EmailState]int{}
	err := groupCount(ctx, q, `
		SELECT state, COUNT(*) FROM emails WHERE account = ? GROUP BY state
	`, account, func(key string, n int) { counts[tracker.EmailState(key)] = n })
	return counts, err
}

// CountPendingReminders returns how many reminders of account are pending.
func CountPendingReminders(ctx context.Context, q Querier, account string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reminders r
		JOIN applications a ON a.id = r.application_id
		WHERE a.account = ? AND r.state = 'pending'
	`, account).Scan(&n)
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

func groupCount(ctx context.Context, q Querier, query, account string, set func(string, int)) error {
	rows, err := q.QueryContext(ctx, query, account)
	if err != nil {
		return storeErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return storeErr(err)
		}
		set(key, n)
	}
	if err := rows.Err(); err != nil {
		return storeErr(err)
	}
	return nil
}
