// Package store provides the durable backends for account records and
// auto-replies.
//
// Three backends implement ledger.AccountStore and autoreply.Store:
//   - Store: SQLite (github.com/mattn/go-sqlite3), the default
//   - Bolt: BoltDB (github.com/boltdb/bolt), a single-file key/value store
//   - Memory: process-local maps, for tests and throwaway runs
//
// Every backend treats the account id as the key and saves whole records
// (last write wins). Concurrency control lives above the store, in the ledger
// cache; the store only has to be safe for concurrent calls.
//
// # SQLite configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - schema versioned through PRAGMA user_version
package store
