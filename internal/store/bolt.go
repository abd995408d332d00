package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/roach88/pairledger/internal/autoreply"
	"github.com/roach88/pairledger/internal/ledger"
)

var (
	accountsBucket = []byte("accounts")
	repliesBucket  = []byte("auto_replies")
)

// Bolt is the BoltDB backend. Accounts are JSON documents keyed by id;
// replies are raw strings keyed by keyword.
type Bolt struct {
	db *bolt.DB
}

// accountDoc is the on-disk JSON layout of an account.
type accountDoc struct {
	ID              string    `json:"id"`
	Balance         int64     `json:"balance"`
	PartnerID       string    `json:"partner_id,omitempty"`
	AffectionPoints int64     `json:"affection_points"`
	LastAffectionAt time.Time `json:"last_affection_at"`
	PairedMediaRef  string    `json:"paired_media_ref,omitempty"`
	LastDailyAt     time.Time `json:"last_daily_at"`
}

// OpenBolt opens (or creates) a BoltDB file and ensures both buckets exist.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{accountsBucket, repliesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &Bolt{db: db}, nil
}

// Close releases the database file lock.
func (b *Bolt) Close() error {
	return b.db.Close()
}

// Load returns the saved record for id.
func (b *Bolt) Load(_ context.Context, id string) (ledger.Account, bool, error) {
	var (
		doc   accountDoc
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(accountsBucket).Get([]byte(id))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &doc)
	})
	if err != nil {
		return ledger.Account{}, false, fmt.Errorf("load account %s: %w", id, err)
	}
	if !found {
		return ledger.Account{}, false, nil
	}
	return doc.account(), true, nil
}

// Save overwrites the record for acct.ID.
func (b *Bolt) Save(_ context.Context, acct ledger.Account) error {
	data, err := json.Marshal(newAccountDoc(acct))
	if err != nil {
		return fmt.Errorf("encode account %s: %w", acct.ID, err)
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(accountsBucket).Put([]byte(acct.ID), data)
	})
	if err != nil {
		return fmt.Errorf("save account %s: %w", acct.ID, err)
	}
	return nil
}

// ListAccounts returns every saved account in key order.
func (b *Bolt) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	accounts := []ledger.Account{}
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(accountsBucket).ForEach(func(_, v []byte) error {
			var doc accountDoc
			if err := json.Unmarshal(v, &doc); err != nil {
				return err
			}
			accounts = append(accounts, doc.account())
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// ListReplies returns every reply in key order.
func (b *Bolt) ListReplies(_ context.Context) ([]autoreply.Reply, error) {
	replies := []autoreply.Reply{}
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(repliesBucket).ForEach(func(k, v []byte) error {
			replies = append(replies, autoreply.Reply{Keyword: string(k), Text: string(v)})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	return replies, nil
}

// AddReply stores r only if its keyword is new.
func (b *Bolt) AddReply(_ context.Context, r autoreply.Reply) (bool, error) {
	created := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(repliesBucket)
		if bkt.Get([]byte(r.Keyword)) != nil {
			return nil
		}
		created = true
		return bkt.Put([]byte(r.Keyword), []byte(r.Text))
	})
	if err != nil {
		return false, fmt.Errorf("add reply: %w", err)
	}
	return created, nil
}

// RemoveReply deletes keyword. Deleting a missing key is a no-op.
func (b *Bolt) RemoveReply(_ context.Context, keyword string) (bool, error) {
	removed := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(repliesBucket)
		if bkt.Get([]byte(keyword)) == nil {
			return nil
		}
		removed = true
		return bkt.Delete([]byte(keyword))
	})
	if err != nil {
		return false, fmt.Errorf("remove reply: %w", err)
	}
	return removed, nil
}

func newAccountDoc(a ledger.Account) accountDoc {
	return accountDoc{
		ID:              a.ID,
		Balance:         a.Balance,
		PartnerID:       a.PartnerID,
		AffectionPoints: a.AffectionPoints,
		LastAffectionAt: a.LastAffectionAt,
		PairedMediaRef:  a.PairedMediaRef,
		LastDailyAt:     a.LastDailyAt,
	}
}

func (d accountDoc) account() ledger.Account {
	return ledger.Account{
		ID:              d.ID,
		Balance:         d.Balance,
		PartnerID:       d.PartnerID,
		AffectionPoints: d.AffectionPoints,
		LastAffectionAt: d.LastAffectionAt,
		PairedMediaRef:  d.PairedMediaRef,
		LastDailyAt:     d.LastDailyAt,
	}
}
