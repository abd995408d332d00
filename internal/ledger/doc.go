// Package ledger implements the account ledger: the only writer of account
// balances and relationship state.
//
// # Cache discipline
//
// Accounts live in a process-wide Cache. Each account id owns one execution
// slot; a Checkout holds that slot across the whole read-modify-write-persist
// sequence, so two operations on the same account never interleave. Operations
// touching two accounts acquire both slots in ascending id order, which keeps
// concurrent transfers that share a participant deadlock-free.
//
// # Failure semantics
//
// Preconditions are checked before any mutation; a failed precondition leaves
// every account untouched and returns an *Error with a Code. A failed save
// returns CodeStoreError but keeps the in-memory value, which stays the source
// of truth until Persist or Flush succeeds. A transfer whose sender was saved
// but whose receiver was not reports CodePartialTransfer.
package ledger
