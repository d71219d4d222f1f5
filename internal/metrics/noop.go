package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncRecordsSaved is a no-op.
func (n *NoopRecorder) IncRecordsSaved(queue string, count int) {}

// IncRecordsDuplicate is a no-op.
func (n *NoopRecorder) IncRecordsDuplicate(queue string, count int) {}

// IncSaveRejected is a no-op.
func (n *NoopRecorder) IncSaveRejected(queue string) {}

// IncClaims is a no-op.
func (n *NoopRecorder) IncClaims(queue string) {}

// IncClaimShortfall is a no-op.
func (n *NoopRecorder) IncClaimShortfall(queue string) {}

// ObserveClaimBatchSize is a no-op.
func (n *NoopRecorder) ObserveClaimBatchSize(queue string, size int) {}

// ObserveClaimDuration is a no-op.
func (n *NoopRecorder) ObserveClaimDuration(queue string, duration time.Duration) {}

// SetQueueDepth is a no-op.
func (n *NoopRecorder) SetQueueDepth(queue string, userID string, depth int64) {}
