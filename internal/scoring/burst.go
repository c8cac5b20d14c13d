package scoring

import (
	"time"

	"github.com/hackeval/repograder/internal/domain/model"
)

// DetectBurst reports whether more than cfg.BurstCommitFraction of all
// commits landed inside the trailing cfg.BurstWindowFraction of the commit
// timeline. A timeline with fewer than two buckets has no span to examine
// and never flags.
func DetectBurst(buckets []model.CommitBucket, cfg Config) bool {
	if len(buckets) < 2 {
		return false
	}

	first := buckets[0].Timestamp
	last := buckets[len(buckets)-1].Timestamp
	span := last.Sub(first)
	if span <= 0 {
		return false
	}

	total := 0
	for _, b := range buckets {
		total += b.Count
	}
	if total == 0 {
		return false
	}

	windowStart := last.Add(-time.Duration(float64(span) * cfg.BurstWindowFraction))
	trailing := 0
	for _, b := range buckets {
		if !b.Timestamp.Before(windowStart) {
			trailing += b.Count
		}
	}

	return float64(trailing)/float64(total) > cfg.BurstCommitFraction
}

// LastMinuteCommits counts commits inside the trailing window ending at the
// final observed commit. An empty timeline yields zero.
func LastMinuteCommits(buckets []model.CommitBucket, window time.Duration) int {
	if len(buckets) == 0 {
		return 0
	}

	cutoff := buckets[len(buckets)-1].Timestamp.Add(-window)
	count := 0
	for _, b := range buckets {
		if !b.Timestamp.Before(cutoff) {
			count += b.Count
		}
	}
	return count
}
