package consent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/pairledger/internal/clock"
	"github.com/roach88/pairledger/internal/ledger"
)

// DefaultRetention is how long resolved workflows stay queryable.
const DefaultRetention = 10 * time.Minute

// Ledger is the subset of the ledger a workflow needs.
type Ledger interface {
	CheckPair(ctx context.Context, aID, bID string, cost int64) error
	Pair(ctx context.Context, aID, bID string, cost int64) (ledger.Account, ledger.Account, error)
	CheckUnpair(ctx context.Context, id string, cost int64) (string, error)
	Unpair(ctx context.Context, id string, cost int64) (ledger.Account, ledger.Account, error)
}

// Manager is the registry of workflows.
//
// Thread-safety: every method is safe for concurrent use and safe to call
// after the workflow resolved.
//
// Lock order is Workflow.mu → Manager.mu. Manager.mu is never held while
// acquiring a workflow lock.
type Manager struct {
	ledger    Ledger
	clock     clock.Clock
	seq       *clock.Seq
	ids       IDGenerator
	notify    Notifier
	log       *slog.Logger
	retention time.Duration

	mu        sync.Mutex
	workflows map[string]*Workflow
	active    map[string]string    // participant id → pending workflow id
	resolved  map[string]time.Time // workflow id → resolution time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock used for deadlines and timers.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithSeq sets the sequence stamped on resolutions.
func WithSeq(s *clock.Seq) Option {
	return func(m *Manager) {
		m.seq = s
	}
}

// WithIDGenerator sets the workflow id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(m *Manager) {
		m.ids = g
	}
}

// WithNotifier sets the resolution callback.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notify = n
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// WithRetention sets how long resolved workflows remain queryable.
func WithRetention(d time.Duration) Option {
	return func(m *Manager) {
		m.retention = d
	}
}

// NewManager creates an empty registry backed by l.
func NewManager(l Ledger, opts ...Option) *Manager {
	m := &Manager{
		ledger:    l,
		clock:     clock.System{},
		seq:       clock.NewSeq(),
		ids:       UUIDv7Generator{},
		retention: DefaultRetention,
		workflows: make(map[string]*Workflow),
		active:    make(map[string]string),
		resolved:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	return m
}

// Begin validates eligibility through the ledger, registers a pending
// workflow and arms its deadline timer.
//
// For KindDivorce, responderID may be empty and is filled with the
// initiator's current partner.
func (m *Manager) Begin(ctx context.Context, kind Kind, initiatorID, responderID string, cost int64, ttl time.Duration) (Snapshot, error) {
	if ttl <= 0 {
		return Snapshot{}, newError(ErrCodeInvalid, "", "deadline must be positive, got %s", ttl)
	}
	if initiatorID == "" {
		return Snapshot{}, newError(ErrCodeInvalid, "", "initiator is required")
	}

	switch kind {
	case KindProposal:
		if responderID == "" {
			return Snapshot{}, newError(ErrCodeInvalid, "", "responder is required")
		}
		if err := m.ledger.CheckPair(ctx, initiatorID, responderID, cost); err != nil {
			return Snapshot{}, err
		}
	case KindDivorce:
		partner, err := m.ledger.CheckUnpair(ctx, initiatorID, cost)
		if err != nil {
			return Snapshot{}, err
		}
		if responderID == "" {
			responderID = partner
		} else if responderID != partner {
			return Snapshot{}, &ledger.Error{
				Code:      ledger.CodeNotPaired,
				AccountID: initiatorID,
				Message:   "not paired with " + responderID,
			}
		}
	default:
		return Snapshot{}, newError(ErrCodeInvalid, "", "unknown workflow kind %d", kind)
	}

	now := m.clock.Now()
	w := &Workflow{
		id:          m.ids.Generate(),
		kind:        kind,
		initiatorID: initiatorID,
		responderID: responderID,
		cost:        cost,
		createdAt:   now,
		deadline:    now.Add(ttl),
		state:       StatePending,
	}

	m.mu.Lock()
	for _, p := range []string{initiatorID, responderID} {
		if other, ok := m.active[p]; ok {
			m.mu.Unlock()
			return Snapshot{}, newError(ErrCodeAlreadyPending, other, "%s already has a pending workflow", p)
		}
	}
	m.workflows[w.id] = w
	m.active[initiatorID] = w.id
	m.active[responderID] = w.id
	m.mu.Unlock()

	w.mu.Lock()
	if w.state == StatePending {
		w.timer = m.clock.AfterFunc(ttl, func() { m.expire(w) })
	}
	snap := w.snapshotLocked()
	w.mu.Unlock()

	m.log.Info("workflow started",
		"workflow", w.id, "kind", kind, "initiator", initiatorID, "responder", responderID,
		"cost", cost, "deadline", w.deadline)
	return snap, nil
}

// OnResponse applies a responder's choice.
//
// Responses from anyone but the responder are ErrIgnored. Responses after
// resolution are ErrNotPending. An accept that arrives at or after the
// deadline resolves the workflow as Expired.
//
// On accept the ledger operation runs under the resolution lock. If it is
// rejected by a ledger precondition the workflow resolves as Rejected with the
// ledger code as reason. If the ledger applied the change in memory but could
// not save it, the workflow is Accepted and the reason carries the store code.
func (m *Manager) OnResponse(ctx context.Context, workflowID, actorID string, choice Choice) (Resolution, error) {
	w, err := m.lookup(workflowID)
	if err != nil {
		return Resolution{}, err
	}
	if actorID != w.responderID {
		return Resolution{}, newError(ErrCodeIgnored, workflowID, "%s is not the responder", actorID)
	}
	if choice != ChoiceAccept && choice != ChoiceReject {
		return Resolution{}, newError(ErrCodeIgnored, workflowID, "unknown choice %q", choice)
	}

	w.mu.Lock()
	if w.state != StatePending {
		state := w.state
		w.mu.Unlock()
		return Resolution{}, newError(ErrCodeNotPending, workflowID, "already %s", state)
	}

	now := m.clock.Now()
	var res Resolution
	switch {
	case !now.Before(w.deadline):
		res = m.resolveLocked(w, StateExpired, ReasonTimeout, now)
	case choice == ChoiceReject:
		res = m.resolveLocked(w, StateRejected, ReasonDeclined, now)
	default:
		state, reason := m.apply(ctx, w)
		res = m.resolveLocked(w, state, reason, m.clock.Now())
	}
	w.mu.Unlock()

	m.emit(res)
	return res, nil
}

// Cancel lets the initiator withdraw a pending workflow. It resolves as
// Rejected with ReasonWithdrawn.
func (m *Manager) Cancel(ctx context.Context, workflowID, actorID string) (Resolution, error) {
	w, err := m.lookup(workflowID)
	if err != nil {
		return Resolution{}, err
	}
	if actorID != w.initiatorID {
		return Resolution{}, newError(ErrCodeIgnored, workflowID, "%s is not the initiator", actorID)
	}

	w.mu.Lock()
	if w.state != StatePending {
		state := w.state
		w.mu.Unlock()
		return Resolution{}, newError(ErrCodeNotPending, workflowID, "already %s", state)
	}
	res := m.resolveLocked(w, StateRejected, ReasonWithdrawn, m.clock.Now())
	w.mu.Unlock()

	m.emit(res)
	return res, nil
}

// OnTick expires every pending workflow whose deadline is at or before now
// and prunes resolved workflows older than the retention window. It returns
// the resolutions it produced.
func (m *Manager) OnTick(_ context.Context, now time.Time) []Resolution {
	m.mu.Lock()
	var candidates []*Workflow
	seen := make(map[string]bool)
	for _, id := range m.active {
		if seen[id] {
			continue
		}
		seen[id] = true
		if w, ok := m.workflows[id]; ok {
			candidates = append(candidates, w)
		}
	}
	for id, at := range m.resolved {
		if now.Sub(at) >= m.retention {
			delete(m.resolved, id)
			delete(m.workflows, id)
		}
	}
	m.mu.Unlock()

	var out []Resolution
	for _, w := range candidates {
		w.mu.Lock()
		if w.state != StatePending || now.Before(w.deadline) {
			w.mu.Unlock()
			continue
		}
		res := m.resolveLocked(w, StateExpired, ReasonTimeout, now)
		w.mu.Unlock()

		m.emit(res)
		out = append(out, res)
	}
	return out
}

// Get returns a snapshot of the workflow.
func (m *Manager) Get(workflowID string) (Snapshot, error) {
	w, err := m.lookup(workflowID)
	if err != nil {
		return Snapshot{}, err
	}
	return w.snapshot(), nil
}

// PendingFor returns the pending workflow in which accountID is the responder.
func (m *Manager) PendingFor(accountID string) (Snapshot, bool) {
	return m.pendingAs(accountID, func(s Snapshot) bool { return s.ResponderID == accountID })
}

// PendingFrom returns the pending workflow accountID initiated.
func (m *Manager) PendingFrom(accountID string) (Snapshot, bool) {
	return m.pendingAs(accountID, func(s Snapshot) bool { return s.InitiatorID == accountID })
}

// PendingCount returns the number of pending workflows.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	for _, id := range m.active {
		seen[id] = true
	}
	return len(seen)
}

func (m *Manager) pendingAs(accountID string, match func(Snapshot) bool) (Snapshot, bool) {
	m.mu.Lock()
	id, ok := m.active[accountID]
	w := m.workflows[id]
	m.mu.Unlock()
	if !ok || w == nil {
		return Snapshot{}, false
	}

	snap := w.snapshot()
	if snap.State != StatePending || !match(snap) {
		return Snapshot{}, false
	}
	return snap, true
}

func (m *Manager) lookup(workflowID string) (*Workflow, error) {
	m.mu.Lock()
	w, ok := m.workflows[workflowID]
	m.mu.Unlock()
	if !ok {
		return nil, newError(ErrCodeNotFound, workflowID, "unknown workflow")
	}
	return w, nil
}

// expire is the deadline timer callback.
func (m *Manager) expire(w *Workflow) {
	w.mu.Lock()
	if w.state != StatePending {
		w.mu.Unlock()
		return
	}
	res := m.resolveLocked(w, StateExpired, ReasonTimeout, m.clock.Now())
	w.mu.Unlock()

	m.emit(res)
}

// apply runs the accepted workflow's ledger operation. Caller holds w.mu.
// Only a failed save of an applied change resolves Accepted; a failed load
// aborts before any mutation and rejects like a precondition.
func (m *Manager) apply(ctx context.Context, w *Workflow) (State, string) {
	var err error
	switch w.kind {
	case KindProposal:
		_, _, err = m.ledger.Pair(ctx, w.initiatorID, w.responderID, w.cost)
	case KindDivorce:
		var partner string
		partner, err = m.ledger.CheckUnpair(ctx, w.initiatorID, w.cost)
		if err == nil && partner != w.responderID {
			err = &ledger.Error{Code: ledger.CodeNotPaired, AccountID: w.initiatorID, Message: "partner changed"}
		}
		if err == nil {
			_, _, err = m.ledger.Unpair(ctx, w.initiatorID, w.cost)
		}
	}
	if err == nil {
		return StateAccepted, ""
	}

	reason := string(ledger.CodeOf(err))
	if reason == "" {
		reason = err.Error()
	}
	if ledger.IsStoreFailure(err) {
		m.log.Error("workflow accepted but not saved", "workflow", w.id, "error", err)
		return StateAccepted, reason
	}
	m.log.Info("workflow accept failed", "workflow", w.id, "reason", reason)
	return StateRejected, reason
}

// resolveLocked finalizes w and releases its participants. Caller holds w.mu
// and has checked that w is pending.
func (m *Manager) resolveLocked(w *Workflow, state State, reason string, at time.Time) Resolution {
	res := w.resolveLocked(state, reason, at, m.seq.Next())

	m.mu.Lock()
	for _, p := range []string{w.initiatorID, w.responderID} {
		if m.active[p] == w.id {
			delete(m.active, p)
		}
	}
	m.resolved[w.id] = at
	m.mu.Unlock()
	return res
}

func (m *Manager) emit(res Resolution) {
	m.log.Info("workflow resolved",
		"workflow", res.WorkflowID, "kind", res.Kind, "state", res.State, "reason", res.Reason, "seq", res.Seq)
	if m.notify != nil {
		m.notify(res)
	}
}
