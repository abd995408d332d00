package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/pairledger/internal/autoreply"
	"github.com/roach88/pairledger/internal/ledger"
)

// Save upserts the whole account record.
func (s *Store) Save(ctx context.Context, acct ledger.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts
		(id, balance, partner_id, affection_points, last_affection_at, paired_media_ref, last_daily_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			balance = excluded.balance,
			partner_id = excluded.partner_id,
			affection_points = excluded.affection_points,
			last_affection_at = excluded.last_affection_at,
			paired_media_ref = excluded.paired_media_ref,
			last_daily_at = excluded.last_daily_at
	`,
		acct.ID,
		acct.Balance,
		acct.PartnerID,
		acct.AffectionPoints,
		unixNanos(acct.LastAffectionAt),
		acct.PairedMediaRef,
		unixNanos(acct.LastDailyAt),
	)
	if err != nil {
		return fmt.Errorf("save account %s: %w", acct.ID, err)
	}
	return nil
}

// AddReply inserts r unless its keyword exists.
// Uses ON CONFLICT(keyword) DO NOTHING; created reports whether a row was written.
func (s *Store) AddReply(ctx context.Context, r autoreply.Reply) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO auto_replies (keyword, reply)
		VALUES (?, ?)
		ON CONFLICT(keyword) DO NOTHING
	`, r.Keyword, r.Text)
	if err != nil {
		return false, fmt.Errorf("add reply: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add reply: rows affected: %w", err)
	}
	return n > 0, nil
}

// RemoveReply deletes keyword. Deleting a missing keyword is not an error.
func (s *Store) RemoveReply(ctx context.Context, keyword string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM auto_replies WHERE keyword = ?`, keyword)
	if err != nil {
		return false, fmt.Errorf("remove reply: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove reply: rows affected: %w", err)
	}
	return n > 0, nil
}

// unixNanos encodes t for an INTEGER column; the zero time is stored as 0.
func unixNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
