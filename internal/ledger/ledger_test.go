package ledger_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pairledger/internal/ledger"
	"github.com/roach88/pairledger/internal/store"
	"github.com/roach88/pairledger/internal/testutil"
)

type fixture struct {
	ledger *ledger.Ledger
	store  *testutil.FlakyStore
	mem    *store.Memory
	clock  *testutil.ManualClock
}

func newFixture(t *testing.T, opts ...ledger.Option) *fixture {
	t.Helper()
	mem := store.NewMemory()
	fs := testutil.NewFlakyStore(mem)
	clk := testutil.NewManualClock()
	opts = append([]ledger.Option{ledger.WithClock(clk)}, opts...)
	return &fixture{
		ledger: ledger.New(ledger.NewCache(fs), opts...),
		store:  fs,
		mem:    mem,
		clock:  clk,
	}
}

// seed sets an account's balance in the backing store before first use.
func (f *fixture) seed(t *testing.T, acct ledger.Account) {
	t.Helper()
	require.NoError(t, f.mem.Save(context.Background(), acct))
}

func (f *fixture) stored(t *testing.T, id string) ledger.Account {
	t.Helper()
	acct, ok, err := f.mem.Load(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok, "account %s not in store", id)
	return acct
}

func TestLedger_FirstReferenceCreatesDefault(t *testing.T) {
	f := newFixture(t)

	bal, err := f.ledger.Balance(context.Background(), "newcomer")
	require.NoError(t, err)
	assert.Equal(t, ledger.DefaultStartingBalance, bal)
}

func TestLedger_CreditDebit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acct, err := f.ledger.Credit(ctx, "alice", 500)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), acct.Balance)

	acct, err = f.ledger.Debit(ctx, "alice", 1500)
	require.NoError(t, err)
	assert.Equal(t, int64(0), acct.Balance)
	assert.Equal(t, int64(0), f.stored(t, "alice").Balance)
}

func TestLedger_DebitInsufficientFundsLeavesBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, ledger.Account{ID: "x", Balance: 1000})

	_, err := f.ledger.Debit(ctx, "x", 1500)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, ledger.CodeInsufficientFunds, ledger.CodeOf(err))

	bal, err := f.ledger.Balance(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), bal)
}

func TestLedger_InvalidAmounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, amount := range []int64{0, -1} {
		_, err := f.ledger.Credit(ctx, "a", amount)
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
		_, err = f.ledger.Debit(ctx, "a", amount)
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
		_, err = f.ledger.Transfer(ctx, "a", "b", amount)
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
		_, err = f.ledger.Wager(ctx, "a", amount, ledger.Bet(ledger.OutcomeBig))
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
		_, _, err = f.ledger.BuyAffection(ctx, "a", amount)
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	}
	assert.Equal(t, 0, f.store.Saves("a"))
}

func TestLedger_DebitStoreFailureKeepsMemoryState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.FailSaves("alice", 1)

	acct, err := f.ledger.Debit(ctx, "alice", 100)
	require.Error(t, err)
	assert.True(t, ledger.IsStoreFailure(err))
	assert.Equal(t, int64(900), acct.Balance)

	bal, err := f.ledger.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(900), bal, "in-memory state is authoritative")
	assert.Equal(t, []string{"alice"}, f.ledger.Cache().Dirty())

	require.NoError(t, f.ledger.Flush(ctx))
	assert.Empty(t, f.ledger.Cache().Dirty())
	assert.Equal(t, int64(900), f.stored(t, "alice").Balance)
}

func TestLedger_Transfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.ledger.Transfer(ctx, "alice", "bob", 300)
	require.NoError(t, err)
	assert.Equal(t, int64(700), res.From.Balance)
	assert.Equal(t, int64(1300), res.To.Balance)
	assert.Equal(t, int64(700), f.stored(t, "alice").Balance)
	assert.Equal(t, int64(1300), f.stored(t, "bob").Balance)
}

func TestLedger_TransferRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Transfer(ctx, "alice", "alice", 10)
	assert.ErrorIs(t, err, ledger.ErrSameAccount)

	_, err = f.ledger.Transfer(ctx, "alice", "bob", 1001)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	a, _ := f.ledger.Balance(ctx, "alice")
	b, _ := f.ledger.Balance(ctx, "bob")
	assert.Equal(t, int64(1000), a)
	assert.Equal(t, int64(1000), b)
}

func TestLedger_TransferSenderSaveFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.FailSaves("alice", 1)

	_, err := f.ledger.Transfer(ctx, "alice", "bob", 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrStore)
	assert.NotErrorIs(t, err, ledger.ErrPartialTransfer)
	assert.Equal(t, 0, f.store.Saves("bob"), "receiver not saved after sender failure")
	assert.Equal(t, []string{"alice", "bob"}, f.ledger.Cache().Dirty())

	require.NoError(t, f.ledger.Flush(ctx))
	assert.Equal(t, int64(900), f.stored(t, "alice").Balance)
	assert.Equal(t, int64(1100), f.stored(t, "bob").Balance)
}

func TestLedger_TransferPartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.FailSaves("bob", 1)

	res, err := f.ledger.Transfer(ctx, "alice", "bob", 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrPartialTransfer)
	assert.ErrorIs(t, err, testutil.ErrInjected)
	assert.Equal(t, int64(900), res.From.Balance)
	assert.Equal(t, int64(1100), res.To.Balance)

	assert.Equal(t, int64(900), f.stored(t, "alice").Balance, "sender persisted")
	assert.Equal(t, []string{"bob"}, f.ledger.Cache().Dirty())

	bal, err := f.ledger.Balance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1100), bal, "receiver credit kept in memory")

	require.NoError(t, f.ledger.Persist(ctx, "bob"))
	assert.Equal(t, int64(1100), f.stored(t, "bob").Balance)
}

func TestLedger_PairAndUnpair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, ledger.Account{ID: "a", Balance: 6_000_000})

	a, b, err := f.ledger.Pair(ctx, "a", "b", 5_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), a.Balance)
	assert.Equal(t, "b", a.PartnerID)
	assert.Equal(t, "a", b.PartnerID)
	assert.Equal(t, int64(1000), b.Balance, "responder does not pay")

	assert.Equal(t, "b", f.stored(t, "a").PartnerID)
	assert.Equal(t, "a", f.stored(t, "b").PartnerID)

	_, err = f.ledger.Credit(ctx, "b", 5_000_000)
	require.NoError(t, err)
	_, err = f.ledger.AccrueAffection(ctx, "a")
	require.NoError(t, err)
	_, err = f.ledger.SetPairedMedia(ctx, "a", "https://example.com/us.png")
	require.NoError(t, err)

	self, partner, err := f.ledger.Unpair(ctx, "b", 5_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), self.Balance)
	for _, acct := range []ledger.Account{self, partner, f.stored(t, "a"), f.stored(t, "b")} {
		assert.False(t, acct.Paired(), acct.ID)
		assert.Empty(t, acct.PairedMediaRef, acct.ID)
		assert.Zero(t, acct.AffectionPoints, acct.ID)
	}
}

func TestLedger_PairPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, ledger.Account{ID: "a", Balance: 20})
	f.seed(t, ledger.Account{ID: "b", Balance: 20, PartnerID: "c"})
	f.seed(t, ledger.Account{ID: "c", Balance: 20, PartnerID: "b"})

	assert.ErrorIs(t, f.ledger.CheckPair(ctx, "a", "a", 1), ledger.ErrSameAccount)
	assert.ErrorIs(t, f.ledger.CheckPair(ctx, "a", "b", 1), ledger.ErrAlreadyPaired)
	assert.ErrorIs(t, f.ledger.CheckPair(ctx, "b", "a", 1), ledger.ErrAlreadyPaired)
	assert.ErrorIs(t, f.ledger.CheckPair(ctx, "a", "d", 21), ledger.ErrInsufficientFunds)
	assert.NoError(t, f.ledger.CheckPair(ctx, "a", "d", 20))

	_, _, err := f.ledger.Pair(ctx, "a", "c", 1)
	assert.ErrorIs(t, err, ledger.ErrAlreadyPaired)
	acct, _ := f.ledger.Account(ctx, "a")
	assert.Equal(t, int64(20), acct.Balance, "failed pair charges nothing")
}

func TestLedger_UnpairPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, ledger.Account{ID: "a", Balance: 10, PartnerID: "b"})
	f.seed(t, ledger.Account{ID: "b", Balance: 10, PartnerID: "a"})

	_, err := f.ledger.CheckUnpair(ctx, "loner", 0)
	assert.ErrorIs(t, err, ledger.ErrNotPaired)

	partner, err := f.ledger.CheckUnpair(ctx, "a", 11)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, "b", partner)

	_, _, err = f.ledger.Unpair(ctx, "a", 11)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	acct, _ := f.ledger.Account(ctx, "b")
	assert.Equal(t, "a", acct.PartnerID, "still paired after failed unpair")
}

func TestLedger_AccrueAffectionCooldown(t *testing.T) {
	f := newFixture(t, ledger.WithAffection(2, time.Hour))
	ctx := context.Background()

	acct, err := f.ledger.AccrueAffection(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), acct.AffectionPoints)
	assert.Equal(t, testutil.Epoch, acct.LastAffectionAt)

	f.clock.Advance(59 * time.Minute)
	_, err = f.ledger.AccrueAffection(ctx, "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrCooldownActive)
	var lerr *ledger.Error
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, time.Minute, lerr.RetryAfter)

	f.clock.Advance(time.Minute)
	acct, err = f.ledger.AccrueAffection(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(4), acct.AffectionPoints)
}

func TestLedger_BuyAffection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, ledger.Account{ID: "a", Balance: 10_000})

	acct, gained, err := f.ledger.BuyAffection(ctx, "a", 2500)
	require.NoError(t, err)
	assert.Equal(t, int64(2), gained)
	assert.Equal(t, int64(7500), acct.Balance)
	assert.Equal(t, int64(2), acct.AffectionPoints)

	_, _, err = f.ledger.BuyAffection(ctx, "a", 7501)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}

func TestLedger_ClaimDaily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acct, err := f.ledger.ClaimDaily(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1000)+ledger.DefaultDailyReward, acct.Balance)

	f.clock.Advance(23 * time.Hour)
	_, err = f.ledger.ClaimDaily(ctx, "a")
	assert.ErrorIs(t, err, ledger.ErrCooldownActive)

	f.clock.Advance(time.Hour)
	acct, err = f.ledger.ClaimDaily(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1000)+2*ledger.DefaultDailyReward, acct.Balance)
	assert.Equal(t, acct.Balance, f.stored(t, "a").Balance)
}

func TestLedger_PairedMedia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, ledger.Account{ID: "a", Balance: 1, PartnerID: "b"})
	f.seed(t, ledger.Account{ID: "b", Balance: 1, PartnerID: "a"})

	_, err := f.ledger.SetPairedMedia(ctx, "loner", "https://example.com/x.png")
	assert.ErrorIs(t, err, ledger.ErrNotPaired)

	for _, bad := range []string{"", "not a url", "ftp://example.com/x", "https://"} {
		_, err = f.ledger.SetPairedMedia(ctx, "a", bad)
		assert.ErrorIs(t, err, ledger.ErrInvalidMedia, bad)
	}

	_, err = f.ledger.SetPairedMedia(ctx, "a", "https://example.com/1.png")
	require.NoError(t, err)
	acct, err := f.ledger.SetPairedMedia(ctx, "b", "https://example.com/2.png")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/2.png", acct.PairedMediaRef, "second set replaces")
	assert.Equal(t, "https://example.com/2.png", f.stored(t, "a").PairedMediaRef)

	_, err = f.ledger.ClearPairedMedia(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, f.stored(t, "a").PairedMediaRef)
	assert.Empty(t, f.stored(t, "b").PairedMediaRef)
}

func TestLedger_WagerFixedSource(t *testing.T) {
	rolls := []ledger.Outcome{ledger.OutcomeBig, ledger.OutcomeSmall}
	i := 0
	src := ledger.SourceFunc(func() ledger.Outcome {
		o := rolls[i%len(rolls)]
		i++
		return o
	})
	f := newFixture(t, ledger.WithSource(src))
	ctx := context.Background()

	res, err := f.ledger.Wager(ctx, "a", 100, ledger.Bet(ledger.OutcomeBig))
	require.NoError(t, err)
	assert.True(t, res.Won)
	assert.Equal(t, ledger.OutcomeBig, res.Outcome)
	assert.Equal(t, int64(1100), res.Balance)

	res, err = f.ledger.Wager(ctx, "a", 100, ledger.Bet(ledger.OutcomeBig))
	require.NoError(t, err)
	assert.False(t, res.Won)
	assert.Equal(t, int64(1000), res.Balance)

	_, err = f.ledger.Wager(ctx, "a", 1001, ledger.Bet(ledger.OutcomeBig))
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, 2, i, "no roll when funds are short")
}

func TestLedger_WagerWinRateConverges(t *testing.T) {
	f := newFixture(t, ledger.WithSource(ledger.RandomSource()))
	ctx := context.Background()
	f.seed(t, ledger.Account{ID: "x", Balance: 10_000})

	const rounds = 10_000
	wins := 0
	for played := 0; played < rounds; {
		res, err := f.ledger.Wager(ctx, "x", 100, ledger.Bet(ledger.OutcomeBig))
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			_, err = f.ledger.Credit(ctx, "x", 10_000)
			require.NoError(t, err)
			continue
		}
		require.NoError(t, err)
		if res.Won {
			wins++
		}
		played++
	}

	rate := float64(wins) / rounds
	assert.InDelta(t, 0.5, rate, 0.03, "win rate %f", rate)
}

func TestLedger_CreditsNeverOverflow(t *testing.T) {
	const near = math.MaxInt64 - 10
	rolls := 0
	src := ledger.SourceFunc(func() ledger.Outcome {
		rolls++
		return ledger.OutcomeBig
	})
	f := newFixture(t, ledger.WithSource(src))
	ctx := context.Background()
	f.seed(t, ledger.Account{ID: "rich", Balance: near})
	f.seed(t, ledger.Account{ID: "bob", Balance: 1000})

	_, err := f.ledger.Credit(ctx, "rich", 11)
	assert.ErrorIs(t, err, ledger.ErrBalanceOverflow)

	_, err = f.ledger.Transfer(ctx, "bob", "rich", 11)
	assert.ErrorIs(t, err, ledger.ErrBalanceOverflow)
	assert.Equal(t, ledger.CodeBalanceOverflow, ledger.CodeOf(err))

	_, err = f.ledger.Wager(ctx, "rich", 100, ledger.Bet(ledger.OutcomeBig))
	assert.ErrorIs(t, err, ledger.ErrBalanceOverflow)
	assert.Zero(t, rolls, "no roll when a win could not be credited")

	_, err = f.ledger.ClaimDaily(ctx, "rich")
	assert.ErrorIs(t, err, ledger.ErrBalanceOverflow)

	rich, err := f.ledger.Account(ctx, "rich")
	require.NoError(t, err)
	assert.Equal(t, int64(near), rich.Balance)
	assert.True(t, rich.LastDailyAt.IsZero(), "rejected claim does not start the cooldown")
	bal, err := f.ledger.Balance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), bal)
	assert.Empty(t, f.ledger.Cache().Dirty())

	acct, err := f.ledger.Credit(ctx, "rich", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), acct.Balance)
}
