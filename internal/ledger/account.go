package ledger

import (
	"context"
	"time"
)

// DefaultStartingBalance is the balance of a freshly created account.
const DefaultStartingBalance int64 = 1000

// Account is the ledger record for one user.
//
// Invariants (enforced by Ledger, never by callers):
//   - Balance >= 0
//   - PartnerID is symmetric: a.PartnerID == b.ID iff b.PartnerID == a.ID
//   - PairedMediaRef is empty whenever PartnerID is empty
type Account struct {
	ID              string
	Balance         int64
	PartnerID       string
	AffectionPoints int64
	LastAffectionAt time.Time
	PairedMediaRef  string
	LastDailyAt     time.Time
}

// Paired reports whether the account currently has a partner.
func (a Account) Paired() bool {
	return a.PartnerID != ""
}

// NewAccount returns the default record for id.
func NewAccount(id string, startingBalance int64) Account {
	return Account{ID: id, Balance: startingBalance}
}

// AccountStore is the durable backend, keyed by account id.
//
// Load returns found=false (and no error) when the id has never been saved.
type AccountStore interface {
	Load(ctx context.Context, id string) (acct Account, found bool, err error)
	Save(ctx context.Context, acct Account) error
}
