package consent_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pairledger/internal/clock"
	"github.com/roach88/pairledger/internal/consent"
	"github.com/roach88/pairledger/internal/ledger"
	"github.com/roach88/pairledger/internal/store"
	"github.com/roach88/pairledger/internal/testutil"
)

const cost = 5_000_000

type recorder struct {
	mu  sync.Mutex
	got []consent.Resolution
}

func (r *recorder) notify(res consent.Resolution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, res)
}

func (r *recorder) all() []consent.Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]consent.Resolution(nil), r.got...)
}

func (r *recorder) forWorkflow(id string) []consent.Resolution {
	var out []consent.Resolution
	for _, res := range r.all() {
		if res.WorkflowID == id {
			out = append(out, res)
		}
	}
	return out
}

type harness struct {
	mgr    *consent.Manager
	ledger *ledger.Ledger
	mem    *store.Memory
	flaky  *testutil.FlakyStore
	clock  clock.Clock
	manual *testutil.ManualClock
	rec    *recorder
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	clock     clock.Clock
	retention time.Duration
	ids       consent.IDGenerator
	capacity  int
}

func withClock(c clock.Clock) harnessOption {
	return func(h *harnessConfig) { h.clock = c }
}

func withRetention(d time.Duration) harnessOption {
	return func(h *harnessConfig) { h.retention = d }
}

// withCacheCapacity bounds the account cache so idle accounts are evicted and
// reloaded from the store on next use.
func withCacheCapacity(n int) harnessOption {
	return func(h *harnessConfig) { h.capacity = n }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	manual := testutil.NewManualClock()
	cfg := harnessConfig{clock: manual, retention: consent.DefaultRetention}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ids == nil {
		ids := make([]string, 64)
		for i := range ids {
			ids[i] = fmt.Sprintf("wf-%02d", i+1)
		}
		cfg.ids = consent.NewFixedGenerator(ids...)
	}

	mem := store.NewMemory()
	flaky := testutil.NewFlakyStore(mem)
	l := ledger.New(ledger.NewCache(flaky, ledger.WithCapacity(cfg.capacity)), ledger.WithClock(cfg.clock))
	rec := &recorder{}
	mgr := consent.NewManager(l,
		consent.WithClock(cfg.clock),
		consent.WithIDGenerator(cfg.ids),
		consent.WithNotifier(rec.notify),
		consent.WithRetention(cfg.retention),
	)
	return &harness{mgr: mgr, ledger: l, mem: mem, flaky: flaky, clock: cfg.clock, manual: manual, rec: rec}
}

func (h *harness) seed(t *testing.T, acct ledger.Account) {
	t.Helper()
	require.NoError(t, h.mem.Save(context.Background(), acct))
}

func (h *harness) account(t *testing.T, id string) ledger.Account {
	t.Helper()
	acct, err := h.ledger.Account(context.Background(), id)
	require.NoError(t, err)
	return acct
}

// stoppedTimers is a clock whose timers never fire, standing in for a lost
// or late timer callback.
type stoppedTimers struct {
	*testutil.ManualClock
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return false }

func (stoppedTimers) AfterFunc(time.Duration, func()) clock.Timer { return noopTimer{} }

func TestBegin_ProposalRegistersPending(t *testing.T) {
	h := newHarness(t)
	h.seed(t, ledger.Account{ID: "a", Balance: 6_000_000})

	snap, err := h.mgr.Begin(context.Background(), consent.KindProposal, "a", "b", cost, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "wf-01", snap.ID)
	assert.Equal(t, consent.StatePending, snap.State)
	assert.Equal(t, "a", snap.CostPaidBy)
	assert.Equal(t, testutil.Epoch.Add(30*time.Second), snap.Deadline)

	got, ok := h.mgr.PendingFor("b")
	require.True(t, ok)
	assert.Equal(t, snap.ID, got.ID)
	got, ok = h.mgr.PendingFrom("a")
	require.True(t, ok)
	assert.Equal(t, snap.ID, got.ID)
	_, ok = h.mgr.PendingFor("a")
	assert.False(t, ok, "initiator is not the responder")
	assert.Equal(t, 1, h.mgr.PendingCount())

	assert.Equal(t, int64(6_000_000), h.account(t, "a").Balance, "begin does not charge")
}

func TestBegin_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, ledger.Account{ID: "rich", Balance: 2 * cost})
	h.seed(t, ledger.Account{ID: "p1", Balance: 10, PartnerID: "p2"})
	h.seed(t, ledger.Account{ID: "p2", Balance: 10, PartnerID: "p1"})

	_, err := h.mgr.Begin(ctx, consent.KindProposal, "rich", "x", cost, 0)
	assert.ErrorIs(t, err, consent.ErrInvalid)

	_, err = h.mgr.Begin(ctx, consent.Kind(99), "rich", "x", cost, time.Second)
	assert.ErrorIs(t, err, consent.ErrInvalid)

	_, err = h.mgr.Begin(ctx, consent.KindProposal, "rich", "", cost, time.Second)
	assert.ErrorIs(t, err, consent.ErrInvalid, "a proposal needs a responder")
	_, ok := h.mgr.PendingFrom("rich")
	assert.False(t, ok)

	_, err = h.mgr.Begin(ctx, consent.KindProposal, "poor", "x", cost, time.Second)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	_, err = h.mgr.Begin(ctx, consent.KindProposal, "rich", "rich", cost, time.Second)
	assert.ErrorIs(t, err, ledger.ErrSameAccount)

	_, err = h.mgr.Begin(ctx, consent.KindProposal, "rich", "p1", cost, time.Second)
	assert.ErrorIs(t, err, ledger.ErrAlreadyPaired)

	_, err = h.mgr.Begin(ctx, consent.KindDivorce, "rich", "", 0, time.Second)
	assert.ErrorIs(t, err, ledger.ErrNotPaired)

	_, err = h.mgr.Begin(ctx, consent.KindDivorce, "p1", "rich", 0, time.Second)
	assert.ErrorIs(t, err, ledger.ErrNotPaired)

	assert.Zero(t, h.mgr.PendingCount())
	assert.Empty(t, h.rec.all())
}

func TestBegin_OnePendingPerParticipant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, ledger.Account{ID: "a", Balance: 2 * cost})
	h.seed(t, ledger.Account{ID: "c", Balance: 2 * cost})

	first, err := h.mgr.Begin(ctx, consent.KindProposal, "a", "b", cost, time.Minute)
	require.NoError(t, err)

	_, err = h.mgr.Begin(ctx, consent.KindProposal, "c", "b", cost, time.Minute)
	assert.ErrorIs(t, err, consent.ErrAlreadyPending)
	_, err = h.mgr.Begin(ctx, consent.KindProposal, "a", "d", cost, time.Minute)
	assert.ErrorIs(t, err, consent.ErrAlreadyPending)

	_, err = h.mgr.OnResponse(ctx, first.ID, "b", consent.ChoiceReject)
	require.NoError(t, err)

	_, err = h.mgr.Begin(ctx, consent.KindProposal, "c", "b", cost, time.Minute)
	assert.NoError(t, err, "participants free again after resolution")
}

func TestOnResponse_AcceptPairs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, ledger.Account{ID: "a", Balance: 6_000_000})

	snap, err := h.mgr.Begin(ctx, consent.KindProposal, "a", "b", cost, 30*time.Second)
	require.NoError(t, err)

	res, err := h.mgr.OnResponse(ctx, snap.ID, "b", consent.ChoiceAccept)
	require.NoError(t, err)
	assert.Equal(t, consent.StateAccepted, res.State)
	assert.Empty(t, res.Reason)

	a, b := h.account(t, "a"), h.account(t, "b")
	assert.Equal(t, int64(1_000_000), a.Balance)
	assert.Equal(t, "b", a.PartnerID)
	assert.Equal(t, "a", b.PartnerID)
	assert.Equal(t, []consent.Resolution{res}, h.rec.all())

	got, err := h.mgr.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, consent.StateAccepted, got.State)
	assert.Zero(t, h.mgr.PendingCount())
}

func TestOnResponse_RejectLeavesLedgerUntouched(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, ledger.Account{ID: "a", Balance: 6_000_000})

	snap, err := h.mgr.Begin(ctx, consent.KindProposal, "a", "b", cost, 30*time.Second)
	require.NoError(t, err)

	res, err := h.mgr.OnResponse(ctx, snap.ID, "b", consent.ChoiceReject)
	require.NoError(t, err)
	assert.Equal(t, consent.StateRejected, res.State)
	assert.Equal(t, consent.ReasonDeclined, res.Reason)
	assert.Equal(t, int64(6_000_000), h.account(t, "a").Balance)
	assert.False(t, h.account(t, "b").Paired())
}

func TestOnResponse_SecondResponseIsNotPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, ledger.Account{ID: "a", Balance: 6_000_000})

	snap, err := h.mgr.Begin(ctx, consent.KindProposal, "a", "b", cost, 30*time.Second)
	require.NoError(t, err)

	_, err = h.mgr.OnResponse(ctx, snap.ID, "b", consent.ChoiceAccept)
	require.NoError(t, err)
	_, err = h.mgr.OnResponse(ctx, snap.ID, "b", consent.ChoiceReject)
	assert.ErrorIs(t, err, consent.ErrNotPending)
	assert.True(t, consent.IsBenign(err))

	assert.Len(t, h.rec.all(), 1, "exactly one notification")
	assert.True(t, h.account(t, "a").Paired(), "late reject does not undo")
}

func TestOnResponse_IgnoredResponses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, ledger.Account{ID: "a", Balance: 6_000_000})

	snap, err := h.mgr.Begin(ctx, consent.KindProposal, "a", "b", cost, 30*time.Second)
	require.NoError(t, err)

	_, err = h.mgr.OnResponse(ctx, snap.ID, "a", consent.ChoiceAccept)
	assert.ErrorIs(t, err, consent.ErrIgnored, "initiator cannot accept")
	_, err = h.mgr.OnResponse(ctx, snap.ID, "stranger", consent.ChoiceAccept)
	assert.ErrorIs(t, err, consent.ErrIgnored)
	_, err = h.mgr.OnResponse(ctx, snap.ID, "b", consent.Choice("maybe"))
	assert.ErrorIs(t, err, consent.ErrIgnored)
	_, err = h.mgr.OnResponse(ctx, "nope", "b", consent.ChoiceAccept)
	assert.ErrorIs(t, err, consent.ErrNotFound)

	got, err := h.mgr.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, consent.StatePending, got.State)
	assert.Empty(t, h.rec.all())
}

func TestTimer_ExpiresWithoutMutation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, ledger.Account{ID: "a", Balance: 6_000_000})

	snap, err := h.mgr.Begin(ctx, consent.KindProposal, "a", "b", cost, 30*time.Second)
	require.NoError(t, err)

	h.manual.Advance(29 * time.Second)
	assert.Empty(t, h.rec.all())

	h.manual.Advance(time.Second)
	got := h.rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, consent.StateExpired, got[0].State)
	assert.Equal(t, consent.ReasonTimeout, got[0].Reason)
	assert.Equal(t, snap.Deadline, got[0].At)

	assert.Equal(t, int64(6_000_000), h.account(t, "a").Balance)
	assert.False(t, h.account(t, "a").Paired())
	assert.False(t, h.account(t, "b").Paired())

	_, err = h.mgr.OnResponse(ctx, snap.ID, "b", consent.ChoiceAccept)
	assert.ErrorIs(t, err, consent.ErrNotPending)
	assert.Len(t, h.rec.all(), 1)
}

func TestOnResponse_AcceptAtDeadlineExpires(t *testing.T) {
	manual := testutil.NewManualClock()
	h := newHarness(t, withClock(stoppedTimers{manual}))
	ctx := context.Background()
	h.seed(t, ledger.Account{ID: "a", Balance: 6_000_000})

	snap, err := h.mgr.Begin(ctx, consent.KindProposal, "a", "b", cost, 30*time.Second)
	require.NoError(t, err)

	manual.Advance(30 * time.Second)
	res, err := h.mgr.OnResponse(ctx, snap.ID, "b", consent.ChoiceAccept)
	require.NoError(t, err)
	assert.Equal(t, consent.StateExpired, res.State)
	assert.False(t, h.account(t, "a").Paired(), "late accept does not pair")
}

func TestOnTick_ExpiresAndPrunes(t *testing.T) {
	manual := testutil.NewManualClock()
	h := newHarness(t, withClock(stoppedTimers{manual}), withRetention(time.Minute))
	ctx := context.Background()
	h.seed(t, ledger.Account{ID: "a", Balance: 6_000_000})
	h.seed(t, ledger.Account{ID: "c", Balance: 6_000_000})

	short, err := h.mgr.Begin(ctx, consent.KindProposal, "a", "b", cost, 10*time.Second)
	require.NoError(t, err)
	long, err := h.mgr.Begin(ctx, consent.KindProposal, "c", "d", cost, time.Hour)
	require.NoError(t, err)

	out := h.mgr.OnTick(ctx, testutil.Epoch.Add(10*time.Second))
	require.Len(t, out, 1)
	assert.Equal(t, short.ID, out[0].WorkflowID)
	assert.Equal(t, consent.StateExpired, out[0].State)
	assert.Equal(t, 1, h.mgr.PendingCount())

	assert.Empty(t, h.mgr.OnTick(ctx, testutil.Epoch.Add(20*time.Second)), "no double expiry")

	_, err = h.mgr.Get(short.ID)
	require.NoError(t, err, "resolved workflow still queryable within retention")

	h.mgr.OnTick(ctx, testutil.Epoch.Add(10*time.Second+time.Minute))
	_, err = h.mgr.Get(short.ID)
	assert.ErrorIs(t, err, consent.ErrNotFound, "pruned after retention")

	_, err = h.mgr.Get(long.ID)
	assert.NoError(t, err, "pending workflows are never pruned")
	assert.Len(t, h.rec.all(), 1)
}

func TestCancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, ledger.Account{ID: "a", Balance: 6_000_000})

	snap, err := h.mgr.Begin(ctx, consent.KindProposal, "a", "b", cost, time.Minute)
	require.NoError(t, err)

	_, err = h.mgr.Cancel(ctx, snap.ID, "b")
	assert.ErrorIs(t, err, consent.ErrIgnored, "only the initiator can withdraw")

	res, err := h.mgr.Cancel(ctx, snap.ID, "a")
	require.NoError(t, err)
	assert.Equal(t, consent.StateRejected, res.State)
	assert.Equal(t, consent.ReasonWithdrawn, res.Reason)

	_, err = h.mgr.Cancel(ctx, snap.ID, "a")
	assert.ErrorIs(t, err, consent.ErrNotPending)

	h.manual.Advance(time.Minute)
	assert.Len(t, h.rec.all(), 1, "stopped timer does not fire")
}

func TestOnResponse_LedgerPreconditionRejects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, ledger.Account{ID: "a", Balance: 6_000_000})

	snap, err := h.mgr.Begin(ctx, consent.KindProposal, "a", "b", cost, time.Minute)
	require.NoError(t, err)

	// Funds drained between Begin and accept.
	_, err = h.ledger.Debit(ctx, "a", 2_000_000)
	require.NoError(t, err)

	res, err := h.mgr.OnResponse(ctx, snap.ID, "b", consent.ChoiceAccept)
	require.NoError(t, err)
	assert.Equal(t, consent.StateRejected, res.State)
	assert.Equal(t, string(ledger.CodeInsufficientFunds), res.Reason)
	assert.Equal(t, int64(4_000_000), h.account(t, "a").Balance)
	assert.False(t, h.account(t, "b").Paired())
}

func TestOnResponse_StoreFailureStillAccepts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, ledger.Account{ID: "a", Balance: 6_000_000})

	snap, err := h.mgr.Begin(ctx, consent.KindProposal, "a", "b", cost, time.Minute)
	require.NoError(t, err)

	h.flaky.FailSaves("b", 1)
	res, err := h.mgr.OnResponse(ctx, snap.ID, "b", consent.ChoiceAccept)
	require.NoError(t, err)
	assert.Equal(t, consent.StateAccepted, res.State)
	assert.Equal(t, string(ledger.CodeStoreError), res.Reason)
	assert.Equal(t, "a", h.account(t, "b").PartnerID, "in-memory pairing stands")
	assert.Equal(t, []string{"b"}, h.ledger.Cache().Dirty())
}

func TestOnResponse_LoadFailureRejects(t *testing.T) {
	tests := []struct {
		name  string
		kind  consent.Kind
		seeds []ledger.Account
		check func(t *testing.T, a ledger.Account)
	}{
		{
			name:  "proposal",
			kind:  consent.KindProposal,
			seeds: []ledger.Account{{ID: "a", Balance: 6_000_000}},
			check: func(t *testing.T, a ledger.Account) {
				assert.False(t, a.Paired())
				assert.Equal(t, int64(6_000_000), a.Balance)
			},
		},
		{
			name: "divorce",
			kind: consent.KindDivorce,
			seeds: []ledger.Account{
				{ID: "a", Balance: 6_000_000, PartnerID: "b"},
				{ID: "b", Balance: 1, PartnerID: "a"},
			},
			check: func(t *testing.T, a ledger.Account) {
				assert.Equal(t, "b", a.PartnerID)
				assert.Equal(t, int64(6_000_000), a.Balance)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, withCacheCapacity(1))
			ctx := context.Background()
			for _, acct := range tt.seeds {
				h.seed(t, acct)
			}

			snap, err := h.mgr.Begin(ctx, tt.kind, "a", "b", cost, time.Minute)
			require.NoError(t, err)
			require.Equal(t, 1, h.ledger.Cache().Len(), "b evicted after begin")

			h.flaky.FailLoads("b")
			res, err := h.mgr.OnResponse(ctx, snap.ID, "b", consent.ChoiceAccept)
			require.NoError(t, err)
			assert.Equal(t, consent.StateRejected, res.State)
			assert.Equal(t, string(ledger.CodeLoadError), res.Reason)
			assert.Empty(t, h.ledger.Cache().Dirty())
			assert.Zero(t, h.mgr.PendingCount())

			got := h.rec.forWorkflow(snap.ID)
			require.Len(t, got, 1)
			assert.Equal(t, consent.StateRejected, got[0].State)

			tt.check(t, h.account(t, "a"))
			h.flaky.Heal()
			b := h.account(t, "b")
			if tt.kind == consent.KindProposal {
				assert.False(t, b.Paired())
			} else {
				assert.Equal(t, "a", b.PartnerID)
			}
		})
	}
}

func TestDivorce_AcceptUnpairs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, ledger.Account{ID: "a", Balance: cost, PartnerID: "b", AffectionPoints: 7})
	h.seed(t, ledger.Account{ID: "b", Balance: 1, PartnerID: "a", AffectionPoints: 7})

	snap, err := h.mgr.Begin(ctx, consent.KindDivorce, "a", "", cost, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "b", snap.ResponderID, "responder filled from partner")

	res, err := h.mgr.OnResponse(ctx, snap.ID, "b", consent.ChoiceAccept)
	require.NoError(t, err)
	assert.Equal(t, consent.StateAccepted, res.State)

	a, b := h.account(t, "a"), h.account(t, "b")
	assert.Equal(t, int64(0), a.Balance)
	assert.False(t, a.Paired())
	assert.False(t, b.Paired())
	assert.Zero(t, a.AffectionPoints)
	assert.Zero(t, b.AffectionPoints)
}

func TestRace_AcceptVersusRejectNotifiesOnce(t *testing.T) {
	for round := 0; round < 50; round++ {
		h := newHarness(t)
		ctx := context.Background()
		h.seed(t, ledger.Account{ID: "a", Balance: 6_000_000})

		snap, err := h.mgr.Begin(ctx, consent.KindProposal, "a", "b", cost, time.Minute)
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, choice := range []consent.Choice{consent.ChoiceAccept, consent.ChoiceReject} {
			wg.Add(1)
			go func(i int, c consent.Choice) {
				defer wg.Done()
				_, errs[i] = h.mgr.OnResponse(ctx, snap.ID, "b", c)
			}(i, choice)
		}
		wg.Wait()

		got := h.rec.forWorkflow(snap.ID)
		require.Len(t, got, 1)
		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
			} else {
				assert.ErrorIs(t, err, consent.ErrNotPending)
			}
		}
		assert.Equal(t, 1, winners)

		a := h.account(t, "a")
		if got[0].State == consent.StateAccepted {
			assert.Equal(t, int64(1_000_000), a.Balance)
			assert.True(t, a.Paired())
		} else {
			assert.Equal(t, int64(6_000_000), a.Balance)
			assert.False(t, a.Paired())
		}
	}
}

func TestRace_AcceptVersusExpiry(t *testing.T) {
	for round := 0; round < 50; round++ {
		h := newHarness(t)
		ctx := context.Background()
		h.seed(t, ledger.Account{ID: "a", Balance: 6_000_000})

		snap, err := h.mgr.Begin(ctx, consent.KindProposal, "a", "b", cost, 30*time.Second)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.manual.Advance(30 * time.Second)
		}()
		go func() {
			defer wg.Done()
			_, _ = h.mgr.OnResponse(ctx, snap.ID, "b", consent.ChoiceAccept)
		}()
		wg.Wait()

		got := h.rec.forWorkflow(snap.ID)
		require.Len(t, got, 1, "exactly one resolution")
		a := h.account(t, "a")
		switch got[0].State {
		case consent.StateAccepted:
			assert.True(t, a.Paired())
			assert.Equal(t, int64(1_000_000), a.Balance)
		case consent.StateExpired:
			assert.False(t, a.Paired())
			assert.Equal(t, int64(6_000_000), a.Balance)
		default:
			t.Fatalf("unexpected state %s", got[0].State)
		}
	}
}

func TestResolutions_SeqIncreases(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		initiator := fmt.Sprintf("i%d", i)
		h.seed(t, ledger.Account{ID: initiator, Balance: cost})
		snap, err := h.mgr.Begin(ctx, consent.KindProposal, initiator, fmt.Sprintf("r%d", i), cost, time.Minute)
		require.NoError(t, err)
		_, err = h.mgr.OnResponse(ctx, snap.ID, snap.ResponderID, consent.ChoiceReject)
		require.NoError(t, err)
	}

	got := h.rec.all()
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Seq, got[i-1].Seq)
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		in   string
		want consent.Choice
		ok   bool
	}{
		{"yes", consent.ChoiceAccept, true},
		{" Accept ", consent.ChoiceAccept, true},
		{"đồng ý", consent.ChoiceAccept, true},
		{"no", consent.ChoiceReject, true},
		{"từ chối", consent.ChoiceReject, true},
		{"maybe", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := consent.ParseChoice(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUUIDv7Generator(t *testing.T) {
	g := consent.UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
