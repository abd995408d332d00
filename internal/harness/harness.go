package harness

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/roach88/pairledger/internal/app"
	"github.com/roach88/pairledger/internal/clock"
	"github.com/roach88/pairledger/internal/command"
	"github.com/roach88/pairledger/internal/config"
	"github.com/roach88/pairledger/internal/consent"
	"github.com/roach88/pairledger/internal/ledger"
	"github.com/roach88/pairledger/internal/logging"
	"github.com/roach88/pairledger/internal/store"
	"github.com/roach88/pairledger/internal/testutil"
)

// Harness is the scenario execution engine: one wired bot plus the
// deterministic clock and the fault-injecting store behind it.
type Harness struct {
	app   *app.App
	clock *testutil.ManualClock
	flaky *testutil.FlakyStore
	seq   *clock.Seq

	mu     sync.Mutex
	result *Result
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory store. A returned error means
// the scenario itself could not run (bad config, unparsable line); failed
// expectations and assertions are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	cfg, err := scenarioConfig(scenario)
	if err != nil {
		return nil, err
	}

	mem := store.NewMemory()
	for _, seed := range scenario.Accounts {
		if err := mem.Save(ctx, seed.account()); err != nil {
			return nil, fmt.Errorf("seed %s: %w", seed.ID, err)
		}
	}

	rolls, err := newRollSource(scenario.Rolls)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		clock:  testutil.NewManualClock(),
		seq:    clock.NewSeq(),
		result: NewResult(),
	}
	h.app, err = app.New(ctx, cfg,
		app.WithBackend(mem),
		app.WithLogger(logging.Discard()),
		app.WithClock(h.clock),
		app.WithSource(rolls),
		app.WithIDGenerator(&sequentialIDs{}),
		app.WithNotifier(func(res consent.Resolution) {
			h.record(EventAnnounce, command.Announce(res))
		}),
		app.WithAccountStore(func(s ledger.AccountStore) ledger.AccountStore {
			h.flaky = testutil.NewFlakyStore(s)
			return h.flaky
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start bot: %w", err)
	}

	if err := h.executeFlow(ctx, scenario.Flow); err != nil {
		_ = h.app.Close(ctx)
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	// Snapshot before Close, which flushes dirty accounts.
	result := h.result
	result.Stored, err = mem.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	result.Dirty = h.app.Cache.Dirty()

	actx := &AssertionContext{Ctx: ctx, App: h.app}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	h.flaky.Heal()
	if err := h.app.Close(ctx); err != nil {
		return nil, fmt.Errorf("failed to close bot: %w", err)
	}
	return result, nil
}

// scenarioConfig applies the scenario's overrides to the defaults.
func scenarioConfig(s *Scenario) (config.Config, error) {
	cfg := config.Defaults()
	if !s.Config.IsZero() {
		if err := s.Config.Decode(&cfg); err != nil {
			return config.Config{}, fmt.Errorf("invalid config overrides: %w", err)
		}
	}
	cfg.Store = config.StoreConfig{Driver: store.DriverMemory}
	cfg.Log = config.Defaults().Log
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (h *Harness) record(typ, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.result.AddEvent(h.seq.Next(), typ, text)
}

func (h *Harness) executeFlow(ctx context.Context, flow []Step) error {
	for i, step := range flow {
		switch {
		case step.Say != "":
			m, err := command.ParseLine(step.Say)
			if err != nil {
				return fmt.Errorf("flow[%d]: %w", i, err)
			}
			h.record(EventSay, step.Say)
			replies := h.app.Router.Handle(ctx, m)
			for _, r := range replies {
				h.record(EventReply, r)
			}
			h.checkExpect(i, step.Expect, replies)

		case step.Advance != "":
			d, err := time.ParseDuration(step.Advance)
			if err != nil {
				return fmt.Errorf("flow[%d]: %w", i, err)
			}
			h.record(EventAdvance, d.String())
			h.clock.Advance(d)

		case step.Tick:
			h.record(EventTick, "at +"+h.clock.Now().Sub(testutil.Epoch).String())
			h.app.Consent.OnTick(ctx, h.clock.Now())

		case step.FailSaves != nil:
			fs := step.FailSaves
			times := fs.Times
			if times == 0 {
				times = 1
			}
			h.flaky.FailSaves(fs.Account, times)
			if times < 0 {
				h.record(EventStore, "fail every save of "+fs.Account)
			} else {
				h.record(EventStore, fmt.Sprintf("fail next %d save(s) of %s", times, fs.Account))
			}

		case step.Heal:
			h.flaky.Heal()
			h.record(EventStore, "heal")
		}
	}
	return nil
}

func (h *Harness) checkExpect(index int, expect, replies []string) {
	for _, want := range expect {
		found := false
		for _, r := range replies {
			if strings.Contains(r, want) {
				found = true
				break
			}
		}
		if !found {
			h.mu.Lock()
			h.result.AddError(fmt.Sprintf("flow[%d]: expected a reply containing %q, got %q", index, want, replies))
			h.mu.Unlock()
		}
	}
}

// sequentialIDs hands out "wf-1", "wf-2", ...
type sequentialIDs struct {
	mu sync.Mutex
	n  int
}

func (g *sequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("wf-%d", g.n)
}

// rollSource replays scripted wager outcomes.
type rollSource struct {
	mu    sync.Mutex
	rolls []ledger.Outcome
	next  int
}

func newRollSource(names []string) (*rollSource, error) {
	s := &rollSource{}
	for _, name := range names {
		o, err := parseRoll(name)
		if err != nil {
			return nil, err
		}
		s.rolls = append(s.rolls, o)
	}
	return s, nil
}

func (s *rollSource) Roll() ledger.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rolls) == 0 {
		return ledger.OutcomeBig
	}
	o := s.rolls[s.next%len(s.rolls)]
	s.next++
	return o
}
