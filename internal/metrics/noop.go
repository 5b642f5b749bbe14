package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncRedirectCacheHit()                             {}
func (n *NoopRecorder) IncRedirectCacheMiss()                            {}
func (n *NoopRecorder) ObserveRedirectDuration(duration time.Duration)   {}
func (n *NoopRecorder) IncVisitClassified(clickType string)              {}
func (n *NoopRecorder) IncPlatformDetected(platform string)              {}
func (n *NoopRecorder) ObserveClassifyDuration(duration time.Duration)   {}
func (n *NoopRecorder) IncChallengeVerified(result string)               {}
func (n *NoopRecorder) IncLinkCreated()                                  {}
func (n *NoopRecorder) IncAuditRecordPublished(status string)            {}
func (n *NoopRecorder) IncAuditRecordProcessed(status string)            {}
func (n *NoopRecorder) ObserveAuditBatchSize(size int)                   {}
func (n *NoopRecorder) ObserveAuditBatchDuration(duration time.Duration) {}
func (n *NoopRecorder) SetAuditQueueDepth(depth int64)                   {}
func (n *NoopRecorder) ObserveAuditIngestLag(lag time.Duration)          {}
