//go:build !linux

package storage

// diskStats has no portable implementation off Linux. Zero totals mean
// "stats unavailable"; Usage then reports 0% used rather than full.
func diskStats(_ string) (avail, total uint64) { return 0, 0 }
