package store

import (
	"context"
	"sort"
	"sync"

	"github.com/roach88/pairledger/internal/autoreply"
	"github.com/roach88/pairledger/internal/ledger"
)

// Memory keeps everything in process memory. Nothing survives a restart.
type Memory struct {
	mu       sync.Mutex
	accounts map[string]ledger.Account
	replies  map[string]string
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]ledger.Account),
		replies:  make(map[string]string),
	}
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

// Load returns the saved record for id.
func (m *Memory) Load(_ context.Context, id string) (ledger.Account, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[id]
	return acct, ok, nil
}

// Save overwrites the record for acct.ID.
func (m *Memory) Save(_ context.Context, acct ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[acct.ID] = acct
	return nil
}

// ListAccounts returns every saved account ordered by id.
func (m *Memory) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListReplies returns every reply ordered by keyword.
func (m *Memory) ListReplies(_ context.Context) ([]autoreply.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]autoreply.Reply, 0, len(m.replies))
	for k, v := range m.replies {
		out = append(out, autoreply.Reply{Keyword: k, Text: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Keyword < out[j].Keyword })
	return out, nil
}

// AddReply stores r only if its keyword is new.
func (m *Memory) AddReply(_ context.Context, r autoreply.Reply) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.replies[r.Keyword]; ok {
		return false, nil
	}
	m.replies[r.Keyword] = r.Text
	return true, nil
}

// RemoveReply deletes keyword.
func (m *Memory) RemoveReply(_ context.Context, keyword string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.replies[keyword]; !ok {
		return false, nil
	}
	delete(m.replies, keyword)
	return true, nil
}
