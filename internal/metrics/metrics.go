// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Queue labels used by Recorder implementations.
const (
	QueueAccounts = "accounts"
	QueueEmails   = "emails"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Save pipeline metrics
	IncRecordsSaved(queue string, n int)
	IncRecordsDuplicate(queue string, n int)
	IncSaveRejected(queue string) // batch failed validation or storage

	// Claim pipeline metrics
	IncClaims(queue string)
	IncClaimShortfall(queue string) // fewer records delivered than requested
	ObserveClaimBatchSize(queue string, size int)
	ObserveClaimDuration(queue string, duration time.Duration)

	// Queue state metrics
	SetQueueDepth(queue string, userID string, depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
