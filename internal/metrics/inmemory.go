package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	RedirectCacheHits       uint64
	RedirectCacheMisses     uint64
	RedirectDurationCount   uint64
	RedirectDurationTotalNs int64

	VisitsClassified      map[string]uint64 // by click type
	PlatformDetections    map[string]uint64 // by platform
	ClassifyDurationCount uint64
	ClassifyDurationTotal int64
	ChallengeVerified     map[string]uint64 // by result

	LinksCreated uint64

	AuditPublished          map[string]uint64 // by status
	AuditProcessed          map[string]uint64 // by status
	AuditBatchCount         uint64
	AuditBatchRecords       uint64
	AuditBatchDurationTotal int64
	AuditQueueDepth         int64
	AuditIngestLagCount     uint64
	AuditIngestLagTotalNs   int64
}

// InMemoryRecorder stores metrics in memory for tests and /metrics.
type InMemoryRecorder struct {
	redirectCacheHits       uint64
	redirectCacheMisses     uint64
	redirectDurationCount   uint64
	redirectDurationTotalNs int64
	classifyDurationCount   uint64
	classifyDurationTotalNs int64
	linksCreated            uint64
	auditBatchCount         uint64
	auditBatchRecords       uint64
	auditBatchDurationNs    int64
	auditQueueDepth         int64
	auditIngestLagCount     uint64
	auditIngestLagTotalNs   int64

	mu       sync.Mutex
	labelled map[string]map[string]uint64
}

const (
	familyVisits    = "visits"
	familyPlatforms = "platforms"
	familyChallenge = "challenge"
	familyPublished = "audit_published"
	familyProcessed = "audit_processed"
)

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{labelled: make(map[string]map[string]uint64)}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		RedirectCacheHits:       atomic.LoadUint64(&m.redirectCacheHits),
		RedirectCacheMisses:     atomic.LoadUint64(&m.redirectCacheMisses),
		RedirectDurationCount:   atomic.LoadUint64(&m.redirectDurationCount),
		RedirectDurationTotalNs: atomic.LoadInt64(&m.redirectDurationTotalNs),
		VisitsClassified:        m.family(familyVisits),
		PlatformDetections:      m.family(familyPlatforms),
		ClassifyDurationCount:   atomic.LoadUint64(&m.classifyDurationCount),
		ClassifyDurationTotal:   atomic.LoadInt64(&m.classifyDurationTotalNs),
		ChallengeVerified:       m.family(familyChallenge),
		LinksCreated:            atomic.LoadUint64(&m.linksCreated),
		AuditPublished:          m.family(familyPublished),
		AuditProcessed:          m.family(familyProcessed),
		AuditBatchCount:         atomic.LoadUint64(&m.auditBatchCount),
		AuditBatchRecords:       atomic.LoadUint64(&m.auditBatchRecords),
		AuditBatchDurationTotal: atomic.LoadInt64(&m.auditBatchDurationNs),
		AuditQueueDepth:         atomic.LoadInt64(&m.auditQueueDepth),
		AuditIngestLagCount:     atomic.LoadUint64(&m.auditIngestLagCount),
		AuditIngestLagTotalNs:   atomic.LoadInt64(&m.auditIngestLagTotalNs),
	}
}

func (m *InMemoryRecorder) inc(family, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counters, ok := m.labelled[family]
	if !ok {
		counters = make(map[string]uint64)
		m.labelled[family] = counters
	}
	counters[label]++
}

func (m *InMemoryRecorder) family(family string) map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.labelled[family]))
	for k, v := range m.labelled[family] {
		out[k] = v
	}
	return out
}

// IncRedirectCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncRedirectCacheHit() {
	atomic.AddUint64(&m.redirectCacheHits, 1)
}

// IncRedirectCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncRedirectCacheMiss() {
	atomic.AddUint64(&m.redirectCacheMisses, 1)
}

// ObserveRedirectDuration records redirect duration.
func (m *InMemoryRecorder) ObserveRedirectDuration(duration time.Duration) {
	atomic.AddUint64(&m.redirectDurationCount, 1)
	atomic.AddInt64(&m.redirectDurationTotalNs, duration.Nanoseconds())
}

// IncVisitClassified counts a classified visit.
func (m *InMemoryRecorder) IncVisitClassified(clickType string) {
	m.inc(familyVisits, clickType)
}

// IncPlatformDetected counts a visit attributed to platform.
func (m *InMemoryRecorder) IncPlatformDetected(platform string) {
	m.inc(familyPlatforms, platform)
}

// ObserveClassifyDuration records engine latency.
func (m *InMemoryRecorder) ObserveClassifyDuration(duration time.Duration) {
	atomic.AddUint64(&m.classifyDurationCount, 1)
	atomic.AddInt64(&m.classifyDurationTotalNs, duration.Nanoseconds())
}

// IncChallengeVerified counts challenge verification outcomes.
func (m *InMemoryRecorder) IncChallengeVerified(result string) {
	m.inc(familyChallenge, result)
}

// IncLinkCreated increments link created counter.
func (m *InMemoryRecorder) IncLinkCreated() {
	atomic.AddUint64(&m.linksCreated, 1)
}

// IncAuditRecordPublished counts stream publishes by status.
func (m *InMemoryRecorder) IncAuditRecordPublished(status string) {
	m.inc(familyPublished, status)
}

// IncAuditRecordProcessed counts worker outcomes by status.
func (m *InMemoryRecorder) IncAuditRecordProcessed(status string) {
	m.inc(familyProcessed, status)
}

// ObserveAuditBatchSize records a persisted batch.
func (m *InMemoryRecorder) ObserveAuditBatchSize(size int) {
	atomic.AddUint64(&m.auditBatchCount, 1)
	atomic.AddUint64(&m.auditBatchRecords, uint64(size))
}

// ObserveAuditBatchDuration records batch persistence time.
func (m *InMemoryRecorder) ObserveAuditBatchDuration(duration time.Duration) {
	atomic.AddInt64(&m.auditBatchDurationNs, duration.Nanoseconds())
}

// SetAuditQueueDepth sets the pending + lag gauge.
func (m *InMemoryRecorder) SetAuditQueueDepth(depth int64) {
	atomic.StoreInt64(&m.auditQueueDepth, depth)
}

// ObserveAuditIngestLag records time from click to persistence.
func (m *InMemoryRecorder) ObserveAuditIngestLag(lag time.Duration) {
	atomic.AddUint64(&m.auditIngestLagCount, 1)
	atomic.AddInt64(&m.auditIngestLagTotalNs, lag.Nanoseconds())
}
