package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/pairledger/internal/autoreply"
	"github.com/roach88/pairledger/internal/ledger"
)

const accountColumns = `id, balance, partner_id, affection_points, last_affection_at, paired_media_ref, last_daily_at`

// Load returns the saved record for id. found is false if it was never saved.
func (s *Store) Load(ctx context.Context, id string) (ledger.Account, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{}, false, nil
	}
	if err != nil {
		return ledger.Account{}, false, fmt.Errorf("load account %s: %w", id, err)
	}
	return acct, true, nil
}

// ListAccounts returns every saved account ordered by id.
// Returns an empty slice (not nil) when there are none.
func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []ledger.Account{}
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// ListReplies returns every auto-reply ordered by keyword.
func (s *Store) ListReplies(ctx context.Context) ([]autoreply.Reply, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT keyword, reply FROM auto_replies ORDER BY keyword COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query replies: %w", err)
	}
	defer rows.Close()

	replies := []autoreply.Reply{}
	for rows.Next() {
		var r autoreply.Reply
		if err := rows.Scan(&r.Keyword, &r.Text); err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		replies = append(replies, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate replies: %w", err)
	}
	return replies, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (ledger.Account, error) {
	var (
		acct        ledger.Account
		affectionAt int64
		dailyAt     int64
	)
	err := row.Scan(
		&acct.ID,
		&acct.Balance,
		&acct.PartnerID,
		&acct.AffectionPoints,
		&affectionAt,
		&acct.PairedMediaRef,
		&dailyAt,
	)
	if err != nil {
		return ledger.Account{}, err
	}
	acct.LastAffectionAt = fromUnixNanos(affectionAt)
	acct.LastDailyAt = fromUnixNanos(dailyAt)
	return acct, nil
}
