// Package testutil holds test doubles shared across packages: a manual
// clock for deterministic deadlines and a fault-injecting account store.
package testutil
