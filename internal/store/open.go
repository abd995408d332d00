package store

import (
	"context"
	"fmt"
	"io"

	"github.com/roach88/pairledger/internal/autoreply"
	"github.com/roach88/pairledger/internal/ledger"
)

// Driver names accepted by OpenBackend.
const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
	DriverMemory = "memory"
)

// Backend is everything the application needs from a store.
type Backend interface {
	ledger.AccountStore
	autoreply.Store
	io.Closer
	ListAccounts(ctx context.Context) ([]ledger.Account, error)
}

var (
	_ Backend = (*Store)(nil)
	_ Backend = (*Bolt)(nil)
	_ Backend = (*Memory)(nil)
)

// OpenBackend opens the backend named by driver. path is ignored for memory.
func OpenBackend(driver, path string) (Backend, error) {
	switch driver {
	case DriverSQLite, "":
		s, err := Open(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverBolt:
		b, err := OpenBolt(path)
		if err != nil {
			return nil, err
		}
		return b, nil
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
