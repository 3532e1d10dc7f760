//go:build !linux

package sandbox

// limitResources is a no-op where rlimits are unavailable; the Go soft memory
// limit and the evaluation deadline still apply.
func limitResources(uint64) {}
