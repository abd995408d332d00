package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/roach88/pairledger/internal/ledger"
)

// ErrInjected is the error returned by FlakyStore for injected failures.
var ErrInjected = errors.New("injected store failure")

// FlakyStore wraps a ledger.AccountStore with fault injection and counters.
//
// Thread-safety: safe for concurrent use.
type FlakyStore struct {
	inner ledger.AccountStore

	mu        sync.Mutex
	failSaves map[string]int // remaining failures per id; <0 means always
	failLoads map[string]bool
	delay     time.Duration
	saves     map[string]int
	loads     map[string]int
}

// NewFlakyStore wraps inner.
func NewFlakyStore(inner ledger.AccountStore) *FlakyStore {
	return &FlakyStore{
		inner:     inner,
		failSaves: make(map[string]int),
		failLoads: make(map[string]bool),
		saves:     make(map[string]int),
		loads:     make(map[string]int),
	}
}

// FailSaves makes the next n saves of id fail. n < 0 fails every save until Heal.
func (s *FlakyStore) FailSaves(id string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSaves[id] = n
}

// FailLoads makes every load of id fail until Heal.
func (s *FlakyStore) FailLoads(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLoads[id] = true
}

// Heal clears all injected failures.
func (s *FlakyStore) Heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSaves = make(map[string]int)
	s.failLoads = make(map[string]bool)
}

// SetDelay makes every call sleep for d, to widen race windows.
func (s *FlakyStore) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Saves returns how many successful saves id had.
func (s *FlakyStore) Saves(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[id]
}

// Loads returns how many loads id had.
func (s *FlakyStore) Loads(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads[id]
}

// Load implements ledger.AccountStore.
func (s *FlakyStore) Load(ctx context.Context, id string) (ledger.Account, bool, error) {
	s.mu.Lock()
	s.loads[id]++
	fail := s.failLoads[id]
	delay := s.delay
	s.mu.Unlock()

	sleep(ctx, delay)
	if fail {
		return ledger.Account{}, false, ErrInjected
	}
	return s.inner.Load(ctx, id)
}

// Save implements ledger.AccountStore.
func (s *FlakyStore) Save(ctx context.Context, acct ledger.Account) error {
	s.mu.Lock()
	fail := false
	if n, ok := s.failSaves[acct.ID]; ok && n != 0 {
		fail = true
		if n > 0 {
			s.failSaves[acct.ID] = n - 1
		}
	}
	delay := s.delay
	s.mu.Unlock()

	sleep(ctx, delay)
	if fail {
		return ErrInjected
	}
	if err := s.inner.Save(ctx, acct); err != nil {
		return err
	}

	s.mu.Lock()
	s.saves[acct.ID]++
	s.mu.Unlock()
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
