// Package observability provides OpenTelemetry metrics, tracing and log correlation for the search API.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameHTTPRequests        = "tips_http_requests_total"
	MetricNameHTTPDuration        = "tips_http_request_duration_seconds"
	MetricNameRequestBodyTooLarge = "tips_request_body_too_large_total"

	MetricNameCacheHits   = "tips_cache_hits_total"
	MetricNameCacheMisses = "tips_cache_misses_total"

	MetricNameANNDuration      = "tips_ann_search_duration_seconds"
	MetricNameANNCandidates    = "tips_ann_candidates"
	MetricNameRerankOutcomes   = "tips_rerank_total"
	MetricNameRerankDuration   = "tips_rerank_duration_seconds"
	MetricNameRAGRequests      = "tips_rag_requests_total"
	MetricNameRAGDuration      = "tips_rag_duration_seconds"
	MetricNameRAGSources       = "tips_rag_sources_total"
	MetricNameRAGExcluded      = "tips_rag_excluded_videos_total"
	MetricNameFeedbackSaved    = "tips_feedback_saved_total"
	MetricNameFeedbackDeleted  = "tips_feedback_deleted_total"
	MetricNameGenerationErrors = "tips_generation_errors_total"

	MetricNameEmbeddingJobsEnqueued = "tips_embedding_jobs_enqueued_total"
	MetricNameEmbeddingOutcomes     = "tips_embedding_jobs_total"
	MetricNameEmbeddingWorkerErrors = "tips_embedding_worker_errors_total"
	MetricNameEmbeddingDuration     = "tips_embedding_job_duration_seconds"
)

// Attribute keys.
const (
	AttrCache      = "cache"
	AttrReason     = "reason"
	AttrStatus     = "status"
	AttrOutcome    = "outcome"
	AttrProvenance = "source_type"
	AttrLabel      = "label"
	AttrKind       = "kind"
	AttrMethod     = "method"
	AttrRoute      = "route"
	AttrStatusCode = "status_class"
)

// AllowedCacheNames bounds the cache label.
var AllowedCacheNames = map[string]bool{
	"query_embedding": true,
}

// AllowedRerankOutcomes for tips_rerank_total.
var AllowedRerankOutcomes = map[string]bool{
	"ok":       true,
	"fallback": true,
	"empty":    true,
}

// AllowedRAGOutcomes for tips_rag_requests_total and tips_rag_duration_seconds.
var AllowedRAGOutcomes = map[string]bool{
	"answered":  true,
	"no_result": true,
	"error":     true,
}

// AllowedProvenances for tips_rag_sources_total.
var AllowedProvenances = map[string]bool{
	"search":     true,
	"collection": true,
	"feedback":   true,
}

// AllowedExclusionReasons for tips_rag_excluded_videos_total.
var AllowedExclusionReasons = map[string]bool{
	"liked_in_collection":    true,
	"disliked_in_collection": true,
	"liked_in_query":         true,
	"bad_feedback":           true,
}

// AllowedEmbeddingKinds labels embedding jobs by what was embedded.
var AllowedEmbeddingKinds = map[string]bool{
	"document":   true,
	"collection": true,
}

// AllowedEmbeddingStatuses for tips_embedding_jobs_total and the duration histogram.
var AllowedEmbeddingStatuses = map[string]bool{
	"success":      true,
	"cleared":      true,
	"skipped":      true,
	"superseded":   true,
	"failed":       true,
	"failed_final": true,
}

// AllowedEmbeddingWorkerReasons for tips_embedding_worker_errors_total.
var AllowedEmbeddingWorkerReasons = map[string]bool{
	"load_failed":    true,
	"embed_failed":   true,
	"update_failed":  true,
	"rate_limited":   true,
	"enqueue_failed": true,
}

// NormalizeReason returns value if allowed, otherwise "other".
func NormalizeReason(value string, allowed map[string]bool) string {
	if allowed[value] {
		return value
	}

	return "other"
}
