package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"time"

	"github.com/roach88/pairledger/internal/clock"
)

// Defaults for the rate-limited actions.
const (
	DefaultAffectionStep     int64 = 1
	DefaultAffectionCooldown       = time.Hour
	DefaultDailyReward       int64 = 50000
	DefaultDailyCooldown           = 24 * time.Hour

	// AffectionPerXu is the price of one affection point bought with BuyAffection.
	AffectionPerXu int64 = 1000
)

// maxPartnerRetries bounds how often a single-id operation re-reads the
// partner when the pairing changed between lookup and lock.
const maxPartnerRetries = 3

// Ledger performs every balance and relationship mutation.
//
// Each operation is one checkout → validate → mutate → persist → release
// unit. Snapshots returned on success are copies; mutating them has no effect.
type Ledger struct {
	cache *Cache
	clock clock.Clock
	rng   Source
	log   *slog.Logger

	affectionStep     int64
	affectionCooldown time.Duration
	dailyReward       int64
	dailyCooldown     time.Duration
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the wall clock used for cooldowns.
func WithClock(c clock.Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

// WithSource sets the wager outcome source.
func WithSource(s Source) Option {
	return func(l *Ledger) {
		l.rng = s
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) {
		l.log = log
	}
}

// WithAffection sets the accrual step and cooldown.
func WithAffection(step int64, cooldown time.Duration) Option {
	return func(l *Ledger) {
		l.affectionStep = step
		l.affectionCooldown = cooldown
	}
}

// WithDaily sets the daily reward and its cooldown.
func WithDaily(reward int64, cooldown time.Duration) Option {
	return func(l *Ledger) {
		l.dailyReward = reward
		l.dailyCooldown = cooldown
	}
}

// New creates a Ledger over cache.
func New(cache *Cache, opts ...Option) *Ledger {
	l := &Ledger{
		cache:             cache,
		clock:             clock.System{},
		rng:               RandomSource(),
		affectionStep:     DefaultAffectionStep,
		affectionCooldown: DefaultAffectionCooldown,
		dailyReward:       DefaultDailyReward,
		dailyCooldown:     DefaultDailyCooldown,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	return l
}

// Cache returns the underlying cache.
func (l *Ledger) Cache() *Cache {
	return l.cache
}

// Account returns a snapshot of id, creating the default record on first reference.
func (l *Ledger) Account(ctx context.Context, id string) (Account, error) {
	h, err := l.cache.Checkout(ctx, id)
	if err != nil {
		return Account{}, err
	}
	defer h.Release()
	return *h.Account(), nil
}

// Balance returns the current balance of id.
func (l *Ledger) Balance(ctx context.Context, id string) (int64, error) {
	acct, err := l.Account(ctx, id)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// Credit adds amount to id.
//
// On CodeStoreError the returned snapshot is the retained in-memory record.
func (l *Ledger) Credit(ctx context.Context, id string, amount int64) (Account, error) {
	if amount <= 0 {
		return Account{}, fail(CodeInvalidAmount, id, "amount must be positive")
	}
	h, err := l.cache.Checkout(ctx, id)
	if err != nil {
		return Account{}, err
	}
	defer h.Release()

	if err := checkHeadroom(id, h.Account().Balance, amount); err != nil {
		return *h.Account(), err
	}
	h.Account().Balance += amount
	err = l.cache.Persist(ctx, h)
	return *h.Account(), err
}

// Debit removes amount from id, failing with CodeInsufficientFunds rather
// than going negative.
func (l *Ledger) Debit(ctx context.Context, id string, amount int64) (Account, error) {
	if amount <= 0 {
		return Account{}, fail(CodeInvalidAmount, id, "amount must be positive")
	}
	h, err := l.cache.Checkout(ctx, id)
	if err != nil {
		return Account{}, err
	}
	defer h.Release()

	acct := h.Account()
	if acct.Balance < amount {
		return *acct, fail(CodeInsufficientFunds, id, fmt.Sprintf("balance %d < %d", acct.Balance, amount))
	}
	acct.Balance -= amount
	err = l.cache.Persist(ctx, h)
	return *acct, err
}

// TransferResult holds both sides of a transfer after it was applied.
type TransferResult struct {
	From Account
	To   Account
}

// Transfer moves amount from one account to another.
//
// Both accounts are held for the whole operation, so no observer sees one side
// changed without the other. The sender is saved first. If that save fails,
// the receiver is not saved either (it is marked dirty) and CodeStoreError is
// returned. If the sender was saved and the receiver save fails, the result is
// CodePartialTransfer.
func (l *Ledger) Transfer(ctx context.Context, fromID, toID string, amount int64) (TransferResult, error) {
	if fromID == toID {
		return TransferResult{}, fail(CodeSameAccount, fromID, "cannot transfer to self")
	}
	if amount <= 0 {
		return TransferResult{}, fail(CodeInvalidAmount, fromID, "amount must be positive")
	}

	from, to, err := l.cache.CheckoutPair(ctx, fromID, toID)
	if err != nil {
		return TransferResult{}, err
	}
	defer from.Release()
	defer to.Release()

	if from.Account().Balance < amount {
		return TransferResult{From: *from.Account(), To: *to.Account()},
			fail(CodeInsufficientFunds, fromID, fmt.Sprintf("balance %d < %d", from.Account().Balance, amount))
	}
	if err := checkHeadroom(toID, to.Account().Balance, amount); err != nil {
		return TransferResult{From: *from.Account(), To: *to.Account()}, err
	}

	from.Account().Balance -= amount
	to.Account().Balance += amount
	res := TransferResult{From: *from.Account(), To: *to.Account()}

	if err := l.cache.Persist(ctx, from); err != nil {
		l.cache.MarkDirty(to)
		return res, err
	}
	if err := l.cache.Persist(ctx, to); err != nil {
		l.log.Error("transfer partially persisted",
			"from", fromID, "to", toID, "amount", amount, "error", err)
		return res, &Error{
			Code:      CodePartialTransfer,
			AccountID: toID,
			Message:   fmt.Sprintf("sender %s debited %d, receiver credit not saved", fromID, amount),
			Err:       errors.Unwrap(err),
		}
	}
	return res, nil
}

// WagerResult is the outcome of one wager, captured under the account lock.
type WagerResult struct {
	Outcome Outcome
	Won     bool
	Amount  int64
	Balance int64
}

// Wager stakes amount on win. The roll comes from the ledger's Source and is
// drawn after the funds check, while the account is held.
func (l *Ledger) Wager(ctx context.Context, id string, amount int64, win Predicate) (WagerResult, error) {
	if amount <= 0 {
		return WagerResult{}, fail(CodeInvalidAmount, id, "amount must be positive")
	}
	h, err := l.cache.Checkout(ctx, id)
	if err != nil {
		return WagerResult{}, err
	}
	defer h.Release()

	acct := h.Account()
	if acct.Balance < amount {
		return WagerResult{Amount: amount, Balance: acct.Balance},
			fail(CodeInsufficientFunds, id, fmt.Sprintf("balance %d < %d", acct.Balance, amount))
	}
	// A win must fit, so the check runs before the roll is drawn.
	if err := checkHeadroom(id, acct.Balance, amount); err != nil {
		return WagerResult{Amount: amount, Balance: acct.Balance}, err
	}

	outcome := l.rng.Roll()
	won := win(outcome)
	if won {
		acct.Balance += amount
	} else {
		acct.Balance -= amount
	}
	res := WagerResult{Outcome: outcome, Won: won, Amount: amount, Balance: acct.Balance}
	return res, l.cache.Persist(ctx, h)
}

// CheckPair reports whether Pair(a, b, cost) would currently succeed, without
// mutating anything.
func (l *Ledger) CheckPair(ctx context.Context, aID, bID string, cost int64) error {
	a, b, err := l.cache.CheckoutPair(ctx, aID, bID)
	if err != nil {
		return err
	}
	defer a.Release()
	defer b.Release()
	return checkPair(a.Account(), b.Account(), cost)
}

// Pair marries a and b, charging cost to a.
func (l *Ledger) Pair(ctx context.Context, aID, bID string, cost int64) (Account, Account, error) {
	a, b, err := l.cache.CheckoutPair(ctx, aID, bID)
	if err != nil {
		return Account{}, Account{}, err
	}
	defer a.Release()
	defer b.Release()

	if err := checkPair(a.Account(), b.Account(), cost); err != nil {
		return *a.Account(), *b.Account(), err
	}

	a.Account().Balance -= cost
	a.Account().PartnerID = bID
	b.Account().PartnerID = aID

	err = l.persistBoth(ctx, a, b)
	return *a.Account(), *b.Account(), err
}

func checkPair(a, b *Account, cost int64) error {
	if cost < 0 {
		return fail(CodeInvalidAmount, a.ID, "cost must not be negative")
	}
	if a.Paired() {
		return fail(CodeAlreadyPaired, a.ID, "initiator already paired")
	}
	if b.Paired() {
		return fail(CodeAlreadyPaired, b.ID, "partner already paired")
	}
	if a.Balance < cost {
		return fail(CodeInsufficientFunds, a.ID, fmt.Sprintf("balance %d < %d", a.Balance, cost))
	}
	return nil
}

// CheckUnpair reports whether Unpair(id, cost) would currently succeed and
// returns the partner id.
func (l *Ledger) CheckUnpair(ctx context.Context, id string, cost int64) (string, error) {
	var partnerID string
	err := l.withPartner(ctx, id, func(self, partner *Handle) error {
		partnerID = partner.ID()
		return checkUnpair(self.Account(), cost)
	})
	return partnerID, err
}

// Unpair divorces id from its partner, charging cost to id. Both sides lose
// their partner, media reference and affection points.
func (l *Ledger) Unpair(ctx context.Context, id string, cost int64) (Account, Account, error) {
	var self, partner Account
	err := l.withPartner(ctx, id, func(sh, ph *Handle) error {
		if err := checkUnpair(sh.Account(), cost); err != nil {
			self, partner = *sh.Account(), *ph.Account()
			return err
		}
		for _, acct := range []*Account{sh.Account(), ph.Account()} {
			acct.PartnerID = ""
			acct.PairedMediaRef = ""
			acct.AffectionPoints = 0
		}
		sh.Account().Balance -= cost

		err := l.persistBoth(ctx, sh, ph)
		self, partner = *sh.Account(), *ph.Account()
		return err
	})
	return self, partner, err
}

func checkUnpair(self *Account, cost int64) error {
	if cost < 0 {
		return fail(CodeInvalidAmount, self.ID, "cost must not be negative")
	}
	if self.Balance < cost {
		return fail(CodeInsufficientFunds, self.ID, fmt.Sprintf("balance %d < %d", self.Balance, cost))
	}
	return nil
}

// AccrueAffection adds the affection step to id, at most once per cooldown.
func (l *Ledger) AccrueAffection(ctx context.Context, id string) (Account, error) {
	h, err := l.cache.Checkout(ctx, id)
	if err != nil {
		return Account{}, err
	}
	defer h.Release()

	acct := h.Account()
	now := l.clock.Now()
	if wait := remaining(acct.LastAffectionAt, now, l.affectionCooldown); wait > 0 {
		return *acct, &Error{Code: CodeCooldownActive, AccountID: id, Message: "affection cooldown", RetryAfter: wait}
	}
	acct.AffectionPoints += l.affectionStep
	acct.LastAffectionAt = now
	err = l.cache.Persist(ctx, h)
	return *acct, err
}

// BuyAffection spends cost xu for cost/AffectionPerXu affection points.
func (l *Ledger) BuyAffection(ctx context.Context, id string, cost int64) (Account, int64, error) {
	if cost <= 0 {
		return Account{}, 0, fail(CodeInvalidAmount, id, "amount must be positive")
	}
	h, err := l.cache.Checkout(ctx, id)
	if err != nil {
		return Account{}, 0, err
	}
	defer h.Release()

	acct := h.Account()
	if acct.Balance < cost {
		return *acct, 0, fail(CodeInsufficientFunds, id, fmt.Sprintf("balance %d < %d", acct.Balance, cost))
	}
	gained := cost / AffectionPerXu
	acct.Balance -= cost
	acct.AffectionPoints += gained
	err = l.cache.Persist(ctx, h)
	return *acct, gained, err
}

// ClaimDaily credits the daily reward, at most once per daily cooldown.
func (l *Ledger) ClaimDaily(ctx context.Context, id string) (Account, error) {
	h, err := l.cache.Checkout(ctx, id)
	if err != nil {
		return Account{}, err
	}
	defer h.Release()

	acct := h.Account()
	now := l.clock.Now()
	if wait := remaining(acct.LastDailyAt, now, l.dailyCooldown); wait > 0 {
		return *acct, &Error{Code: CodeCooldownActive, AccountID: id, Message: "daily reward already claimed", RetryAfter: wait}
	}
	if err := checkHeadroom(id, acct.Balance, l.dailyReward); err != nil {
		return *acct, err
	}
	acct.Balance += l.dailyReward
	acct.LastDailyAt = now
	err = l.cache.Persist(ctx, h)
	return *acct, err
}

// SetPairedMedia stores ref as the pairing's media reference on both partners.
// A pairing has one reference; setting it again replaces it.
func (l *Ledger) SetPairedMedia(ctx context.Context, id, ref string) (Account, error) {
	u, err := url.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Account{}, fail(CodeInvalidMedia, id, "media reference must be an http(s) URL")
	}
	return l.updateMedia(ctx, id, ref)
}

// ClearPairedMedia removes the pairing's media reference from both partners.
func (l *Ledger) ClearPairedMedia(ctx context.Context, id string) (Account, error) {
	return l.updateMedia(ctx, id, "")
}

func (l *Ledger) updateMedia(ctx context.Context, id, ref string) (Account, error) {
	var self Account
	err := l.withPartner(ctx, id, func(sh, ph *Handle) error {
		sh.Account().PairedMediaRef = ref
		ph.Account().PairedMediaRef = ref
		err := l.persistBoth(ctx, sh, ph)
		self = *sh.Account()
		return err
	})
	return self, err
}

// Persist retries the save of id's in-memory record.
func (l *Ledger) Persist(ctx context.Context, id string) error {
	h, err := l.cache.Checkout(ctx, id)
	if err != nil {
		return err
	}
	defer h.Release()
	return l.cache.Persist(ctx, h)
}

// Flush retries every dirty account and returns the joined failures.
func (l *Ledger) Flush(ctx context.Context) error {
	var errs []error
	for _, id := range l.cache.Dirty() {
		if err := l.Persist(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// withPartner checks out id and its current partner in id order and runs fn
// with both held. The partner is read first without holding both slots, so
// the pairing is re-validated once both are held.
func (l *Ledger) withPartner(ctx context.Context, id string, fn func(self, partner *Handle) error) error {
	for attempt := 0; attempt < maxPartnerRetries; attempt++ {
		snap, err := l.Account(ctx, id)
		if err != nil {
			return err
		}
		if !snap.Paired() {
			return fail(CodeNotPaired, id, "not paired")
		}

		self, partner, err := l.cache.CheckoutPair(ctx, id, snap.PartnerID)
		if err != nil {
			return err
		}
		if self.Account().PartnerID != partner.ID() {
			partner.Release()
			self.Release()
			continue
		}
		err = fn(self, partner)
		partner.Release()
		self.Release()
		return err
	}
	return fail(CodeNotPaired, id, "pairing changed concurrently")
}

// persistBoth saves a then b. Both are attempted; the first failure is returned.
func (l *Ledger) persistBoth(ctx context.Context, a, b *Handle) error {
	errA := l.cache.Persist(ctx, a)
	errB := l.cache.Persist(ctx, b)
	if errA != nil {
		return errA
	}
	return errB
}

func remaining(last, now time.Time, cooldown time.Duration) time.Duration {
	if last.IsZero() {
		return 0
	}
	elapsed := now.Sub(last)
	if elapsed >= cooldown {
		return 0
	}
	return cooldown - elapsed
}

// checkHeadroom fails when balance+amount would overflow int64.
// Balances are never negative, so the subtraction cannot wrap.
func checkHeadroom(id string, balance, amount int64) error {
	if amount > math.MaxInt64-balance {
		return fail(CodeBalanceOverflow, id, fmt.Sprintf("balance %d + %d exceeds limit", balance, amount))
	}
	return nil
}
