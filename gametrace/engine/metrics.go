package engine

import (
	"sort"
	"sync"
	"time"
)

// MetricsCollector collects performance metrics for engine operations. It is
// the only state shared between concurrent pipeline invocations and is
// mutex-guarded.
type MetricsCollector struct {
	mu sync.RWMutex

	// Counters
	detectionCount  int64
	embeddingCount  int64
	similarityCount int64
	turnCount       int64

	// Error tracking
	embeddingErrors  int64
	similarityErrors int64
	turnErrors       int64

	// Latency tracking
	embeddingLatency  []time.Duration
	similarityLatency []time.Duration
	turnLatency       []time.Duration
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		embeddingLatency:  make([]time.Duration, 0, 1000),
		similarityLatency: make([]time.Duration, 0, 1000),
		turnLatency:       make([]time.Duration, 0, 1000),
	}
}

// RecordDetection records a state detection evaluation.
func (mc *MetricsCollector) RecordDetection() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.detectionCount++
}

// RecordEmbedding records an embedding generation attempt sequence.
func (mc *MetricsCollector) RecordEmbedding(duration time.Duration, err error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.embeddingCount++
	mc.embeddingLatency = append(mc.embeddingLatency, duration)
	if err != nil {
		mc.embeddingErrors++
	}
}

// RecordSimilarity records a similarity ranking operation.
func (mc *MetricsCollector) RecordSimilarity(duration time.Duration, err error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.similarityCount++
	mc.similarityLatency = append(mc.similarityLatency, duration)
	if err != nil {
		mc.similarityErrors++
	}
}

// RecordTurn records one end-to-end turn processing.
func (mc *MetricsCollector) RecordTurn(duration time.Duration, err error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.turnCount++
	mc.turnLatency = append(mc.turnLatency, duration)
	if err != nil {
		mc.turnErrors++
	}
}

// GetSummary returns a summary of collected metrics.
func (mc *MetricsCollector) GetSummary() MetricsSummary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return MetricsSummary{
		DetectionCount:    mc.detectionCount,
		EmbeddingCount:    mc.embeddingCount,
		SimilarityCount:   mc.similarityCount,
		TurnCount:         mc.turnCount,
		EmbeddingErrors:   mc.embeddingErrors,
		SimilarityErrors:  mc.similarityErrors,
		TurnErrors:        mc.turnErrors,
		EmbeddingLatency:  calculatePercentiles(mc.embeddingLatency),
		SimilarityLatency: calculatePercentiles(mc.similarityLatency),
		TurnLatency:       calculatePercentiles(mc.turnLatency),
	}
}

// calculatePercentiles calculates p50, p95, p99 latencies.
func calculatePercentiles(latencies []time.Duration) LatencyPercentiles {
	if len(latencies) == 0 {
		return LatencyPercentiles{}
	}

	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return LatencyPercentiles{
		P50: sorted[len(sorted)*50/100],
		P95: sorted[len(sorted)*95/100],
		P99: sorted[len(sorted)*99/100],
	}
}

// MetricsSummary represents a summary of collected metrics.
type MetricsSummary struct {
	DetectionCount    int64              `json:"detection_count"`
	EmbeddingCount    int64              `json:"embedding_count"`
	SimilarityCount   int64              `json:"similarity_count"`
	TurnCount         int64              `json:"turn_count"`
	EmbeddingErrors   int64              `json:"embedding_errors"`
	SimilarityErrors  int64              `json:"similarity_errors"`
	TurnErrors        int64              `json:"turn_errors"`
	EmbeddingLatency  LatencyPercentiles `json:"embedding_latency"`
	SimilarityLatency LatencyPercentiles `json:"similarity_latency"`
	TurnLatency       LatencyPercentiles `json:"turn_latency"`
}

// LatencyPercentiles represents latency percentiles.
type LatencyPercentiles struct {
	P50 time.Duration `json:"p50"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
}

// Reset clears all collected metrics.
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.detectionCount = 0
	mc.embeddingCount = 0
	mc.similarityCount = 0
	mc.turnCount = 0
	mc.embeddingErrors = 0
	mc.similarityErrors = 0
	mc.turnErrors = 0
	mc.embeddingLatency = mc.embeddingLatency[:0]
	mc.similarityLatency = mc.similarityLatency[:0]
	mc.turnLatency = mc.turnLatency[:0]
}
