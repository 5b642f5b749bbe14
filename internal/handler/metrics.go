package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/smartlink/smartlink/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "smartlink_redirect_cache_hits_total %d\n", snap.RedirectCacheHits)
	writeMetric(w, "smartlink_redirect_cache_misses_total %d\n", snap.RedirectCacheMisses)
	writeMetric(w, "smartlink_redirect_duration_seconds_count %d\n", snap.RedirectDurationCount)
	writeMetric(w, "smartlink_redirect_duration_seconds_sum %.6f\n", float64(snap.RedirectDurationTotalNs)/1e9)

	writeLabelled(w, "smartlink_visits_classified_total", "click_type", snap.VisitsClassified)
	writeLabelled(w, "smartlink_platform_detections_total", "platform", snap.PlatformDetections)
	writeMetric(w, "smartlink_classify_duration_seconds_count %d\n", snap.ClassifyDurationCount)
	writeMetric(w, "smartlink_classify_duration_seconds_sum %.6f\n", float64(snap.ClassifyDurationTotal)/1e9)
	writeLabelled(w, "smartlink_challenge_verified_total", "result", snap.ChallengeVerified)

	writeMetric(w, "smartlink_links_created_total %d\n", snap.LinksCreated)

	writeLabelled(w, "smartlink_audit_records_published_total", "status", snap.AuditPublished)
	writeLabelled(w, "smartlink_audit_records_processed_total", "status", snap.AuditProcessed)
	writeMetric(w, "smartlink_audit_batches_total %d\n", snap.AuditBatchCount)
	writeMetric(w, "smartlink_audit_batch_records_total %d\n", snap.AuditBatchRecords)
	writeMetric(w, "smartlink_audit_batch_duration_seconds_sum %.6f\n", float64(snap.AuditBatchDurationTotal)/1e9)
	writeMetric(w, "smartlink_audit_queue_depth %d\n", snap.AuditQueueDepth)
	writeMetric(w, "smartlink_audit_ingest_lag_seconds_count %d\n", snap.AuditIngestLagCount)
	writeMetric(w, "smartlink_audit_ingest_lag_seconds_sum %.6f\n", float64(snap.AuditIngestLagTotalNs)/1e9)
}

// writeLabelled writes one sample per label value, sorted for stable output.
func writeLabelled(w http.ResponseWriter, name, label string, values map[string]uint64) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
