// Package autoreply answers plain chat messages that exactly match a stored
// keyword.
//
// Matching is whole-message equality after Unicode normalization (NFC) and
// case folding, so "Chào" matches "CHÀO" regardless of how the accents were
// composed.
package autoreply

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Reply is one keyword → answer pair.
type Reply struct {
	Keyword string
	Text    string
}

// Store persists replies. AddReply returns created=false when the keyword
// already exists; RemoveReply returns removed=false when it did not.
type Store interface {
	ListReplies(ctx context.Context) ([]Reply, error)
	AddReply(ctx context.Context, r Reply) (created bool, err error)
	RemoveReply(ctx context.Context, keyword string) (removed bool, err error)
}

var (
	// ErrExists is returned by Add for a keyword that is already registered.
	ErrExists = errors.New("keyword already exists")
	// ErrEmpty is returned by Add for a blank keyword or reply.
	ErrEmpty = errors.New("keyword and reply must not be empty")
)

// Normalize returns the matching key for s.
func Normalize(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// Registry is the in-memory index over a Store. Writes go through to the
// store before the index changes.
type Registry struct {
	store Store

	mu    sync.RWMutex
	byKey map[string]Reply
}

// Load builds a registry from everything in store.
func Load(ctx context.Context, store Store) (*Registry, error) {
	replies, err := store.ListReplies(ctx)
	if err != nil {
		return nil, fmt.Errorf("load replies: %w", err)
	}
	r := &Registry{store: store, byKey: make(map[string]Reply, len(replies))}
	for _, rep := range replies {
		r.byKey[Normalize(rep.Keyword)] = rep
	}
	return r, nil
}

// Match returns the reply whose keyword equals message.
func (r *Registry) Match(message string) (Reply, bool) {
	key := Normalize(message)
	if key == "" {
		return Reply{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rep, ok := r.byKey[key]
	return rep, ok
}

// Add registers a new keyword.
func (r *Registry) Add(ctx context.Context, keyword, text string) error {
	keyword = strings.TrimSpace(keyword)
	text = strings.TrimSpace(text)
	if keyword == "" || text == "" {
		return ErrEmpty
	}
	key := Normalize(keyword)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byKey[key]; ok {
		return ErrExists
	}
	rep := Reply{Keyword: keyword, Text: text}
	created, err := r.store.AddReply(ctx, rep)
	if err != nil {
		return fmt.Errorf("add reply: %w", err)
	}
	if !created {
		return ErrExists
	}
	r.byKey[key] = rep
	return nil
}

// Remove deletes keyword. It reports false when nothing matched.
func (r *Registry) Remove(ctx context.Context, keyword string) (bool, error) {
	key := Normalize(keyword)

	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.byKey[key]
	if !ok {
		return false, nil
	}
	if _, err := r.store.RemoveReply(ctx, rep.Keyword); err != nil {
		return false, fmt.Errorf("remove reply: %w", err)
	}
	delete(r.byKey, key)
	return true, nil
}

// List returns every reply sorted by normalized keyword.
func (r *Registry) List() []Reply {
	r.mu.RLock()
	keys := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Reply, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.byKey[k])
	}
	r.mu.RUnlock()
	return out
}
