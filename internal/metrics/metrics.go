// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Redirect metrics
	IncRedirectCacheHit()
	IncRedirectCacheMiss()
	ObserveRedirectDuration(duration time.Duration)

	// Classification metrics
	IncVisitClassified(clickType string) // clickType: "human", "bot", "suspect"
	IncPlatformDetected(platform string)
	ObserveClassifyDuration(duration time.Duration)
	IncChallengeVerified(result string) // result: "passed" or "failed"

	// Link management metrics
	IncLinkCreated()

	// Audit pipeline metrics
	IncAuditRecordPublished(status string) // status: "success" or "dropped"
	IncAuditRecordProcessed(status string) // status: "success", "failed", "dead_lettered"
	ObserveAuditBatchSize(size int)
	ObserveAuditBatchDuration(duration time.Duration)
	SetAuditQueueDepth(depth int64)
	ObserveAuditIngestLag(lag time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
