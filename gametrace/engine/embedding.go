package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/tocflow/gametrace/gametrace/config"
)

// healthProbeText is the lightweight content used for service probes.
const healthProbeText = "health check"

// EmbeddingRetrierImpl wraps the embedding client with bounded retry and
// linear backoff, producing storage-ready vectors. Retries within one call
// are sequential; concurrent calls are independent and the backoff wait is
// cooperative, so other invocations proceed unaffected.
type EmbeddingRetrierImpl struct {
	config  *config.EngineConfig
	client  EmbeddingClient
	logger  zerolog.Logger
	metrics *MetricsCollector
}

// NewEmbeddingRetrier creates a new retrier around the given client.
func NewEmbeddingRetrier(cfg *config.EngineConfig, client EmbeddingClient, logger zerolog.Logger, metrics *MetricsCollector) *EmbeddingRetrierImpl {
	return &EmbeddingRetrierImpl{
		config:  cfg,
		client:  client,
		logger:  logger.With().Str("component", "embedding_retrier").Logger(),
		metrics: metrics,
	}
}

// GenerateWithRetry attempts embedding generation up to the configured
// attempt budget, waiting baseDelay * attempt between failures. On
// exhaustion the last provider error is returned unchanged, never wrapped.
// The loop is an explicit bounded iteration, not recursion.
func (er *EmbeddingRetrierImpl) GenerateWithRetry(ctx context.Context, content string) (EmbeddingVector, error) {
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= er.config.RetryAttempts; attempt++ {
		values, err := er.client.Embed(ctx, content)
		if err == nil {
			vec := normalizeVector(content, values)
			er.metrics.RecordEmbedding(time.Since(start), nil)
			return vec, nil
		}

		lastErr = err
		er.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", er.config.RetryAttempts).
			Msg("embedding generation failed")

		if attempt < er.config.RetryAttempts {
			delay := er.config.RetryBaseDelay * time.Duration(attempt)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				er.metrics.RecordEmbedding(time.Since(start), ctx.Err())
				return EmbeddingVector{}, ctx.Err()
			}
		}
	}

	er.metrics.RecordEmbedding(time.Since(start), lastErr)
	return EmbeddingVector{}, lastErr
}

// HealthCheck issues a lightweight probe embedding call. It reports status
// without raising: a failed probe yields an unhealthy result, never an
// error.
func (er *EmbeddingRetrierImpl) HealthCheck(ctx context.Context) Health {
	if _, err := er.client.Embed(ctx, healthProbeText); err != nil {
		return Health{Status: HealthStatusUnhealthy, Err: err.Error()}
	}
	return Health{Status: HealthStatusHealthy}
}

// normalizeVector produces the storage-ready representation: the raw values
// L2-normalized, paired with the source text and dimension count. Zero
// vectors are stored as-is.
func normalizeVector(text string, values []float32) EmbeddingVector {
	wide := make([]float64, len(values))
	for i, v := range values {
		wide[i] = float64(v)
	}

	norm := floats.Norm(wide, 2)
	if norm > 0 && !math.IsInf(norm, 1) {
		floats.Scale(1/norm, wide)
	}

	out := make([]float32, len(wide))
	for i, v := range wide {
		out[i] = float32(v)
	}

	return EmbeddingVector{Text: text, Values: out, Dims: len(out)}
}

// EncodeVector serializes embedding values as little-endian float32 for BLOB
// storage.
func EncodeVector(values []float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector deserializes a little-endian float32 BLOB.
func DecodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(blob))
	}
	values := make([]float32, len(blob)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return values, nil
}
