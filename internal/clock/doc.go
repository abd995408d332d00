// Package clock provides the time sources used by the ledger and the consent
// workflows.
//
// Two kinds of time are kept apart:
//   - Clock: wall time for cooldowns and workflow deadlines. Production code
//     uses System; tests drive a manual implementation so deadline races can
//     be replayed without sleeping.
//   - Seq: a monotonic logical counter. Every consent resolution is stamped
//     with the next value, which gives a total order of resolutions that does
//     not depend on wall time.
package clock
