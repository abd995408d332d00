package ledger

import "math/rand"

// Outcome is the result of one wager roll.
type Outcome int

const (
	// OutcomeSmall is "xỉu".
	OutcomeSmall Outcome = iota
	// OutcomeBig is "tài".
	OutcomeBig
)

func (o Outcome) String() string {
	if o == OutcomeBig {
		return "big"
	}
	return "small"
}

// Source produces wager outcomes. Implementations must be uniform over the
// two outcomes and independent across calls.
type Source interface {
	Roll() Outcome
}

// Predicate decides whether an outcome wins.
type Predicate func(Outcome) bool

// Bet returns the predicate that wins when the roll equals pick.
func Bet(pick Outcome) Predicate {
	return func(o Outcome) bool { return o == pick }
}

// randSource draws from the math/rand top-level generator, which is
// goroutine-safe and independently seeded per process.
type randSource struct{}

func (randSource) Roll() Outcome {
	return Outcome(rand.Intn(2))
}

// RandomSource returns the production outcome source.
func RandomSource() Source {
	return randSource{}
}

// SourceFunc adapts a function to Source.
type SourceFunc func() Outcome

// Roll calls f.
func (f SourceFunc) Roll() Outcome {
	return f()
}
