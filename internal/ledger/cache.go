package ledger

import (
	"container/list"
	"context"
	"log/slog"
	"sort"
	"sync"
)

// entry is the cache slot for one account id.
//
// slot is a one-token channel: whoever holds the token owns acct. Waiting on
// a channel instead of a sync.Mutex lets Checkout give up when its context
// ends.
type entry struct {
	id    string
	slot  chan struct{}
	acct  *Account // nil until loaded
	dirty bool     // last save failed; guarded by Cache.mu

	// users counts checkouts holding or waiting for slot; guarded by Cache.mu.
	// Entries with users > 0 are never evicted.
	users int
	elem  *list.Element
}

// Cache is the process-wide map from account id to its single live record.
//
// Thread-safety: all methods are safe for concurrent use. Cache.mu guards the
// map and the bookkeeping fields only; it is never held while waiting for an
// account slot or talking to the store.
type Cache struct {
	store    AccountStore
	starting int64
	capacity int
	log      *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	lru     *list.List // front = most recently released
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCapacity bounds the number of cached accounts. Zero (the default) means
// unbounded. Checked-out and dirty accounts are kept even above capacity.
func WithCapacity(n int) CacheOption {
	return func(c *Cache) {
		c.capacity = n
	}
}

// WithStartingBalance sets the balance given to accounts the store has never seen.
func WithStartingBalance(n int64) CacheOption {
	return func(c *Cache) {
		c.starting = n
	}
}

// WithCacheLogger sets the logger. Defaults to slog.Default().
func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) {
		c.log = l
	}
}

// NewCache creates an empty cache in front of store.
func NewCache(store AccountStore, opts ...CacheOption) *Cache {
	c := &Cache{
		store:    store,
		starting: DefaultStartingBalance,
		entries:  make(map[string]*entry),
		lru:      list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// Handle is an exclusive checkout of one account.
//
// The holder may read and mutate Account() until Release. Release is
// idempotent.
type Handle struct {
	c        *Cache
	e        *entry
	released bool
}

// Account returns the live record.
func (h *Handle) Account() *Account {
	return h.e.acct
}

// ID returns the checked-out account id.
func (h *Handle) ID() string {
	return h.e.id
}

// Release gives the slot back.
func (h *Handle) Release() {
	if h == nil || h.released {
		return
	}
	h.released = true
	h.c.release(h.e)
}

// Checkout acquires exclusive access to the account, loading it from the
// store (or creating a default record) on a cache miss.
//
// Blocks until the slot is free or ctx is done.
func (c *Cache) Checkout(ctx context.Context, id string) (*Handle, error) {
	e, err := c.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Handle{c: c, e: e}, nil
}

// CheckoutPair acquires two distinct accounts in ascending id order and
// returns the handles in argument order.
func (c *Cache) CheckoutPair(ctx context.Context, a, b string) (*Handle, *Handle, error) {
	if a == b {
		return nil, nil, fail(CodeSameAccount, a, "accounts must differ")
	}
	first, second := a, b
	if second < first {
		first, second = second, first
	}

	h1, err := c.Checkout(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	h2, err := c.Checkout(ctx, second)
	if err != nil {
		h1.Release()
		return nil, nil, err
	}

	if first == a {
		return h1, h2, nil
	}
	return h2, h1, nil
}

// Persist saves the handle's record. On failure the entry is marked dirty and
// the in-memory record is kept as is.
func (c *Cache) Persist(ctx context.Context, h *Handle) error {
	e := h.e
	if err := c.store.Save(ctx, *e.acct); err != nil {
		c.setDirty(e, true)
		c.log.Warn("account save failed", "account", e.id, "error", err)
		return storeFailure(e.id, err)
	}
	c.setDirty(e, false)
	return nil
}

// MarkDirty records that h's in-memory record has changes that were not saved.
func (c *Cache) MarkDirty(h *Handle) {
	c.setDirty(h.e, true)
}

// Dirty returns the ids whose in-memory record is ahead of the store, sorted.
func (c *Cache) Dirty() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []string
	for id, e := range c.entries {
		if e.dirty {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of cached accounts.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) acquire(ctx context.Context, id string) (*entry, error) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{id: id, slot: make(chan struct{}, 1)}
		e.elem = c.lru.PushFront(e)
		c.entries[id] = e
	}
	e.users++
	c.mu.Unlock()

	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		c.mu.Lock()
		e.users--
		c.evictLocked()
		c.mu.Unlock()
		return nil, ctx.Err()
	}

	if e.acct == nil {
		acct, found, err := c.store.Load(ctx, id)
		if err != nil {
			c.release(e)
			return nil, loadFailure(id, err)
		}
		if !found {
			acct = NewAccount(id, c.starting)
		}
		e.acct = &acct
	}
	return e, nil
}

func (c *Cache) release(e *entry) {
	<-e.slot

	c.mu.Lock()
	defer c.mu.Unlock()
	e.users--
	if e.elem != nil {
		c.lru.MoveToFront(e.elem)
	}
	c.evictLocked()
}

func (c *Cache) setDirty(e *entry, dirty bool) {
	c.mu.Lock()
	e.dirty = dirty
	c.mu.Unlock()
}

// evictLocked drops idle, clean entries from the LRU tail until the cache is
// within capacity. Caller holds c.mu.
func (c *Cache) evictLocked() {
	if c.capacity <= 0 {
		return
	}
	for el := c.lru.Back(); el != nil && len(c.entries) > c.capacity; {
		prev := el.Prev()
		e := el.Value.(*entry)
		if e.users == 0 && !e.dirty {
			c.lru.Remove(el)
			e.elem = nil
			delete(c.entries, e.id)
		}
		el = prev
	}
}
