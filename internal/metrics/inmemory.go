package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	RecordsSaved         uint64
	RecordsDuplicate     uint64
	SavesRejected        uint64
	Claims               uint64
	ClaimShortfalls      uint64
	ClaimBatchCount      uint64
	ClaimBatchTotal      uint64
	ClaimDurationTotalNs int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	recordsSaved         uint64
	recordsDuplicate     uint64
	savesRejected        uint64
	claims               uint64
	claimShortfalls      uint64
	claimBatchCount      uint64
	claimBatchTotal      uint64
	claimDurationTotalNs int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		RecordsSaved:         atomic.LoadUint64(&m.recordsSaved),
		RecordsDuplicate:     atomic.LoadUint64(&m.recordsDuplicate),
		SavesRejected:        atomic.LoadUint64(&m.savesRejected),
		Claims:               atomic.LoadUint64(&m.claims),
		ClaimShortfalls:      atomic.LoadUint64(&m.claimShortfalls),
		ClaimBatchCount:      atomic.LoadUint64(&m.claimBatchCount),
		ClaimBatchTotal:      atomic.LoadUint64(&m.claimBatchTotal),
		ClaimDurationTotalNs: atomic.LoadInt64(&m.claimDurationTotalNs),
	}
}

// IncRecordsSaved adds to the saved records counter.
func (m *InMemoryRecorder) IncRecordsSaved(queue string, count int) {
	atomic.AddUint64(&m.recordsSaved, uint64(count))
}

// IncRecordsDuplicate adds to the duplicate records counter.
func (m *InMemoryRecorder) IncRecordsDuplicate(queue string, count int) {
	atomic.AddUint64(&m.recordsDuplicate, uint64(count))
}

// IncSaveRejected increments the rejected batch counter.
func (m *InMemoryRecorder) IncSaveRejected(queue string) {
	atomic.AddUint64(&m.savesRejected, 1)
}

// IncClaims increments the claim counter.
func (m *InMemoryRecorder) IncClaims(queue string) {
	atomic.AddUint64(&m.claims, 1)
}

// IncClaimShortfall increments the shortfall counter.
func (m *InMemoryRecorder) IncClaimShortfall(queue string) {
	atomic.AddUint64(&m.claimShortfalls, 1)
}

// ObserveClaimBatchSize records a delivered claim batch size.
func (m *InMemoryRecorder) ObserveClaimBatchSize(queue string, size int) {
	atomic.AddUint64(&m.claimBatchCount, 1)
	atomic.AddUint64(&m.claimBatchTotal, uint64(size))
}

// ObserveClaimDuration records claim transaction duration.
func (m *InMemoryRecorder) ObserveClaimDuration(queue string, duration time.Duration) {
	atomic.AddInt64(&m.claimDurationTotalNs, duration.Nanoseconds())
}

// SetQueueDepth is not tracked in memory.
func (m *InMemoryRecorder) SetQueueDepth(queue string, userID string, depth int64) {}
