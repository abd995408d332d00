package harness

import "github.com/roach88/pairledger/internal/ledger"

// Transcript event types.
const (
	EventSay      = "say"
	EventReply    = "reply"
	EventAnnounce = "announce"
	EventAdvance  = "advance"
	EventTick     = "tick"
	EventStore    = "store"
)

var eventTypes = map[string]bool{
	EventSay:      true,
	EventReply:    true,
	EventAnnounce: true,
	EventAdvance:  true,
	EventTick:     true,
	EventStore:    true,
}

// TraceEvent is one transcript line.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace is the transcript in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Stored is the durable state after the run, ordered by id.
	Stored []ledger.Account `json:"stored"`

	// Dirty lists accounts whose latest change is not yet saved.
	Dirty []string `json:"dirty,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends a transcript event.
func (r *Result) AddEvent(seq int64, typ, text string) {
	r.Trace = append(r.Trace, TraceEvent{Seq: seq, Type: typ, Text: text})
}
