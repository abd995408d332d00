package consent

import (
	"strings"
	"sync"
	"time"

	"github.com/roach88/pairledger/internal/clock"
)

// Kind selects the ledger operation applied on acceptance.
type Kind int

const (
	// KindProposal pairs initiator and responder; the initiator pays.
	KindProposal Kind = iota + 1
	// KindDivorce unpairs the initiator from the responder; the initiator pays.
	KindDivorce
)

func (k Kind) String() string {
	switch k {
	case KindProposal:
		return "proposal"
	case KindDivorce:
		return "divorce"
	default:
		return "unknown"
	}
}

// State is the workflow state. Pending is the only non-terminal state.
type State int

const (
	StatePending State = iota
	StateAccepted
	StateRejected
	StateExpired
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAccepted:
		return "accepted"
	case StateRejected:
		return "rejected"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s != StatePending
}

// Choice is a responder's answer.
type Choice string

const (
	ChoiceAccept Choice = "accept"
	ChoiceReject Choice = "reject"
)

// ParseChoice maps free-form answers ("yes", "accept", "no", ...) to a Choice.
func ParseChoice(s string) (Choice, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accept", "yes", "y", "ok", "đồng ý", "✅":
		return ChoiceAccept, true
	case "reject", "no", "n", "từ chối", "❌":
		return ChoiceReject, true
	}
	return "", false
}

// Reasons attached to non-accepted resolutions.
const (
	ReasonDeclined  = "declined"
	ReasonWithdrawn = "withdrawn"
	ReasonTimeout   = "timeout"
)

// Workflow is one negotiation. All mutable fields are guarded by mu, which is
// the resolution lock.
type Workflow struct {
	id          string
	kind        Kind
	initiatorID string
	responderID string
	cost        int64
	createdAt   time.Time
	deadline    time.Time

	mu         sync.Mutex
	state      State
	reason     string
	resolvedAt time.Time
	timer      clock.Timer
}

// Snapshot is a point-in-time copy of a workflow.
type Snapshot struct {
	ID          string
	Kind        Kind
	InitiatorID string
	ResponderID string
	CostPaidBy  string
	Cost        int64
	State       State
	Reason      string
	CreatedAt   time.Time
	Deadline    time.Time
	ResolvedAt  time.Time
}

// Resolution is emitted exactly once per workflow, when it leaves Pending.
type Resolution struct {
	WorkflowID  string
	Kind        Kind
	InitiatorID string
	ResponderID string
	State       State
	Reason      string
	At          time.Time

	// Seq totally orders resolutions within the process.
	Seq int64
}

// Notifier receives resolutions. It is called outside the resolution lock.
type Notifier func(Resolution)

func (w *Workflow) snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Workflow) snapshotLocked() Snapshot {
	return Snapshot{
		ID:          w.id,
		Kind:        w.kind,
		InitiatorID: w.initiatorID,
		ResponderID: w.responderID,
		CostPaidBy:  w.initiatorID,
		Cost:        w.cost,
		State:       w.state,
		Reason:      w.reason,
		CreatedAt:   w.createdAt,
		Deadline:    w.deadline,
		ResolvedAt:  w.resolvedAt,
	}
}

// involves reports whether id is a participant.
func (w *Workflow) involves(id string) bool {
	return w.initiatorID == id || w.responderID == id
}

// resolveLocked moves a pending workflow to a terminal state and stops its
// timer. Caller holds w.mu and has checked w.state == StatePending.
func (w *Workflow) resolveLocked(state State, reason string, at time.Time, seq int64) Resolution {
	w.state = state
	w.reason = reason
	w.resolvedAt = at
	if w.timer != nil {
		w.timer.Stop()
	}
	return Resolution{
		WorkflowID:  w.id,
		Kind:        w.kind,
		InitiatorID: w.initiatorID,
		ResponderID: w.responderID,
		State:       state,
		Reason:      reason,
		At:          at,
		Seq:         seq,
	}
}
