// Package testutil provides test helpers shared across packages:
//   - deterministic synthetic laps and lap builders (laps.go)
//   - miniredis helpers for Redis backed unit tests (miniredis.go)
package testutil
