// Package consent runs timed two-party accept/reject negotiations.
//
// A Workflow starts Pending and leaves it exactly once, to Accepted,
// Rejected or Expired. Three sources compete for that transition: an accept
// from the responder, a reject from the responder, and the deadline. Each
// workflow has its own resolution lock; whichever source takes it first while
// the workflow is still Pending wins, and every later event for the same
// workflow is a no-op reported as ErrNotPending.
//
// Workflows hold no transport resources. They are driven entirely by
// OnResponse, OnTick and the one-shot timer armed at Begin, so tests can
// replay races deterministically with a manual clock.
//
// Lock order: a workflow's resolution lock may be held while the ledger
// checks out accounts (the accept side effect). The ledger never calls back
// into this package, so the order cannot invert.
package consent
