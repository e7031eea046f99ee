package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRetrier(client EmbeddingClient) *EmbeddingRetrierImpl {
	return NewEmbeddingRetrier(testEngineConfig(), client, testLogger(), NewMetricsCollector())
}

func TestGenerateWithRetry_FirstCallSuccess(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{3, 4}}
	retrier := newTestRetrier(embedder)

	vec, err := retrier.GenerateWithRetry(context.Background(), "improve team trust")

	require.NoError(t, err)
	assert.Equal(t, 1, embedder.calls, "success on first call must not retry")
	assert.Equal(t, "improve team trust", vec.Text)
	assert.Equal(t, 2, vec.Dims)

	// Values are L2-normalized: (3,4) has norm 5
	assert.InDelta(t, 0.6, float64(vec.Values[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(vec.Values[1]), 1e-6)
}

func TestGenerateWithRetry_RecoversAfterFailures(t *testing.T) {
	embedder := &stubEmbedder{
		err:      errors.New("service unavailable"),
		failures: 2,
		vector:   []float32{1, 0},
	}
	retrier := newTestRetrier(embedder)

	vec, err := retrier.GenerateWithRetry(context.Background(), "some descriptive text")

	require.NoError(t, err)
	assert.Equal(t, 3, embedder.calls)
	assert.Equal(t, 2, vec.Dims)
}

func TestGenerateWithRetry_ExhaustsAttempts(t *testing.T) {
	serviceErr := errors.New("embedding service down")
	embedder := &stubEmbedder{err: serviceErr}
	retrier := newTestRetrier(embedder)

	_, err := retrier.GenerateWithRetry(context.Background(), "some descriptive text")

	require.Error(t, err)
	// The underlying error is surfaced unchanged, never wrapped.
	assert.Equal(t, serviceErr, err)
	// Default budget of 3 attempts: first call plus 2 retries.
	assert.Equal(t, 3, embedder.calls)

	// Linear backoff: gaps between attempts are non-decreasing.
	require.Len(t, embedder.callAt, 3)
	firstGap := embedder.callAt[1].Sub(embedder.callAt[0])
	secondGap := embedder.callAt[2].Sub(embedder.callAt[1])
	assert.GreaterOrEqual(t, secondGap, firstGap)
}

func TestGenerateWithRetry_ContextCancelled(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("down")}
	retrier := newTestRetrier(embedder)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := retrier.GenerateWithRetry(ctx, "some descriptive text")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHealthCheck(t *testing.T) {
	healthy := newTestRetrier(&stubEmbedder{vector: []float32{1}})
	health := healthy.HealthCheck(context.Background())
	assert.Equal(t, HealthStatusHealthy, health.Status)
	assert.Empty(t, health.Err)

	unhealthy := newTestRetrier(&stubEmbedder{err: errors.New("boom")})
	health = unhealthy.HealthCheck(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, health.Status)
	assert.Equal(t, "boom", health.Err)
}

func TestNormalizeVector_ZeroVector(t *testing.T) {
	vec := normalizeVector("text", []float32{0, 0, 0})

	assert.Equal(t, 3, vec.Dims)
	for _, v := range vec.Values {
		assert.False(t, math.IsNaN(float64(v)))
		assert.Zero(t, v)
	}
}

func TestEncodeDecodeVector(t *testing.T) {
	values := []float32{0.25, -1.5, 3.75}

	decoded, err := DecodeVector(EncodeVector(values))
	require.NoError(t, err)
	assert.Equal(t, values, decoded)

	_, err = DecodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
