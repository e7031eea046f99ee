package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/tocflow/gametrace/gametrace/config"
)

// ErrGameExists is returned by GameStore.CreateGame when another writer won
// the (clientID, name) uniqueness race. The pipeline treats it as success.
var ErrGameExists = errors.New("game already exists")

// Pipeline is the main entry point for the turn-processing engine. It
// coordinates retrieval, detection, game creation, embedding generation and
// similarity ranking. All operations are request-scoped; there is no shared
// mutable state between invocations beyond the metrics collector.
type Pipeline struct {
	config *config.EngineConfig

	// Core components
	retriever *TurnRetrieverImpl
	detector  *StateDetectorImpl
	retrier   *EmbeddingRetrierImpl
	analyzer  *SimilarityAnalyzerImpl
	loader    *GameLoaderImpl

	// Collaborators
	gameStore GameStore

	// Infrastructure
	logger  zerolog.Logger
	metrics *MetricsCollector
}

// PipelineConfig holds all configuration for initializing the pipeline.
type PipelineConfig struct {
	Config          *config.EngineConfig
	TurnStore       TurnStore
	GameStore       GameStore
	EmbeddingClient EmbeddingClient
	Logger          zerolog.Logger
}

// NewPipeline creates a fully configured pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Config == nil {
		return nil, fmt.Errorf("engine config is required")
	}
	if cfg.TurnStore == nil {
		return nil, fmt.Errorf("turn store is required")
	}
	if cfg.GameStore == nil {
		return nil, fmt.Errorf("game store is required")
	}
	if cfg.EmbeddingClient == nil {
		return nil, fmt.Errorf("embedding client is required")
	}

	metrics := NewMetricsCollector()
	logger := cfg.Logger.With().Str("component", "pipeline").Logger()

	return &Pipeline{
		config:    cfg.Config,
		retriever: NewTurnRetriever(cfg.Config, cfg.TurnStore, cfg.Logger),
		detector:  NewStateDetector(),
		retrier:   NewEmbeddingRetrier(cfg.Config, cfg.EmbeddingClient, cfg.Logger, metrics),
		analyzer:  NewSimilarityAnalyzer(cfg.Config, cfg.GameStore, cfg.Logger, metrics),
		loader:    NewGameLoader(cfg.Config, cfg.GameStore, cfg.Logger),
		gameStore: cfg.GameStore,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

// ProcessTurn classifies one turn and, when it declares a previously-unseen
// game, creates the game record and attaches an embedding of its descriptive
// text. Detection without a declaration is a normal outcome.
func (p *Pipeline) ProcessTurn(ctx context.Context, turn Turn) (*TurnOutcome, error) {
	start := time.Now()

	detection := p.detector.DetectStateDeclaration(turn.Content)
	p.metrics.RecordDetection()

	outcome := &TurnOutcome{
		TurnID:   turn.ID,
		Declared: detection.Declared,
		State:    detection.State,
	}

	if !detection.Declared || detection.State.Kind != StateIdentified {
		p.metrics.RecordTurn(time.Since(start), nil)
		return outcome, nil
	}

	state := detection.State
	game, err := p.gameStore.LoadGame(ctx, turn.ClientID, state.GameName)
	if err != nil {
		p.metrics.RecordTurn(time.Since(start), err)
		return nil, fmt.Errorf("failed to load game %q: %w", state.GameName, err)
	}

	if game != nil {
		p.metrics.RecordTurn(time.Since(start), nil)
		return outcome, nil
	}

	record := &GameRecord{
		ClientID:    turn.ClientID,
		Name:        state.GameName,
		DisplayName: state.DisplayName,
		// The display name seeds the UDE until a collaborator refines it.
		UDE:    state.DisplayName,
		Status: "active",
	}

	if err := p.gameStore.CreateGame(ctx, record); err != nil {
		if errors.Is(err, ErrGameExists) {
			// Lost the creation race; the store's uniqueness constraint is
			// authoritative.
			p.logger.Debug().Str("game", state.GameName).Msg("game created concurrently elsewhere")
			p.metrics.RecordTurn(time.Since(start), nil)
			return outcome, nil
		}
		p.metrics.RecordTurn(time.Since(start), err)
		return nil, fmt.Errorf("failed to create game %q: %w", state.GameName, err)
	}
	outcome.GameCreated = true

	vec, err := p.retrier.GenerateWithRetry(ctx, record.UDE)
	if err != nil {
		p.metrics.RecordTurn(time.Since(start), err)
		return nil, err
	}

	if err := p.gameStore.SaveEmbedding(ctx, turn.ClientID, state.GameName, vec); err != nil {
		p.metrics.RecordTurn(time.Since(start), err)
		return nil, fmt.Errorf("failed to save embedding for %q: %w", state.GameName, err)
	}
	outcome.EmbeddingDims = vec.Dims

	p.logger.Info().
		Str("client_id", turn.ClientID).
		Str("game", state.GameName).
		Int("dims", vec.Dims).
		Msg("new game recorded")

	p.metrics.RecordTurn(time.Since(start), nil)
	return outcome, nil
}

// ProcessTurnBatch retrieves and filters candidate turns, then processes
// them concurrently with bounded fan-out. Individual turn failures are
// logged and reported as nil outcomes; they do not abort the batch.
func (p *Pipeline) ProcessTurnBatch(ctx context.Context, clientID, sessionID string, turnIDs []string) ([]*TurnOutcome, error) {
	turns, err := p.retriever.GetTurnsForProcessing(ctx, clientID, sessionID, turnIDs)
	if err != nil {
		return nil, err
	}
	turns = p.retriever.FilterProcessableTurns(turns)

	outcomes := make([]*TurnOutcome, len(turns))
	workers := pool.New().WithMaxGoroutines(p.config.BatchConcurrency)
	for i, turn := range turns {
		workers.Go(func() {
			outcome, err := p.ProcessTurn(ctx, turn)
			if err != nil {
				p.logger.Error().Err(err).Str("turn_id", turn.ID).Msg("turn processing failed")
				return
			}
			outcomes[i] = outcome
		})
	}
	workers.Wait()

	return outcomes, nil
}

// SimilarGames ranks previously recorded games against a UDE. Invoked on
// demand; callers guard against an empty UDE.
func (p *Pipeline) SimilarGames(ctx context.Context, clientID, ude string, limit int) ([]SimilarGame, error) {
	return p.analyzer.FindSimilarUDEs(ctx, clientID, ude, limit)
}

// Detect exposes the pure state classifier.
func (p *Pipeline) Detect(content string) Detection {
	return p.detector.DetectStateDeclaration(content)
}

// Loader returns the game loader for catalogue reads.
func (p *Pipeline) Loader() *GameLoaderImpl {
	return p.loader
}

// EmbeddingHealth probes the embedding collaborator.
func (p *Pipeline) EmbeddingHealth(ctx context.Context) Health {
	return p.retrier.HealthCheck(ctx)
}

// GetMetrics returns current metrics.
func (p *Pipeline) GetMetrics() MetricsSummary {
	return p.metrics.GetSummary()
}
