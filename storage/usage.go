package storage

import (
	"io/fs"
	"path/filepath"
)

// Usage warning levels.
const (
	WarnApproaching = "approaching"
	WarnExceeded    = "exceeded"
)

// UsageStats is a read-only snapshot of variant storage consumption.
type UsageStats struct {
	TotalBytes     uint64           `json:"total_bytes"`
	UsedBytes      int64            `json:"used_bytes"`
	AvailableBytes uint64           `json:"available_bytes"`
	Breakdown      map[string]int64 `json:"breakdown"`
	UsedPercent    float64          `json:"used_percent"`
	WarningLevel   string           `json:"warning_level,omitempty"`
}

// Usage walks the three category directories, sums file sizes, and compares
// disk usage of the containing filesystem against maxUsagePercent. The warning
// level is "approaching" from 90% of the threshold and "exceeded" at or above
// it. Available bytes never go negative; absent values clamp to zero.
func (l *Local) Usage(maxUsagePercent float64) (UsageStats, error) {
	stats := UsageStats{Breakdown: make(map[string]int64, len(Categories))}

	for _, cat := range Categories {
		var sum int64
		dir := filepath.Join(l.root, cat)
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			sum += info.Size()
			return nil
		})
		if err != nil {
			return UsageStats{}, err
		}
		stats.Breakdown[cat] = sum
		stats.UsedBytes += sum
	}

	avail, total := diskStats(l.root)
	stats.TotalBytes = total
	stats.AvailableBytes = avail
	if total > 0 {
		stats.UsedPercent = float64(total-avail) / float64(total) * 100
	}

	if maxUsagePercent > 0 {
		switch {
		case stats.UsedPercent >= maxUsagePercent:
			stats.WarningLevel = WarnExceeded
		case stats.UsedPercent >= maxUsagePercent*0.9:
			stats.WarningLevel = WarnApproaching
		}
	}
	return stats, nil
}
