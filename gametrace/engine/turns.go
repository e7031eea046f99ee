package engine

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/tocflow/gametrace/gametrace/config"
)

// TurnRetrieverImpl fetches candidate turns from the turn store and filters
// out unusable ones. All operations are read-only.
type TurnRetrieverImpl struct {
	config *config.EngineConfig
	store  TurnStore
	logger zerolog.Logger
}

// NewTurnRetriever creates a new turn retriever.
func NewTurnRetriever(cfg *config.EngineConfig, store TurnStore, logger zerolog.Logger) *TurnRetrieverImpl {
	return &TurnRetrieverImpl{
		config: cfg,
		store:  store,
		logger: logger.With().Str("component", "turn_retriever").Logger(),
	}
}

// GetTurnsForProcessing returns turns for a client, most-recent-first.
// Explicit turnIDs restrict the result to exactly those turns; otherwise the
// most recent page is returned, capped at the configured page size.
//
// Known limitation: sessionID is accepted but not used for filtering. The
// fallback is the most recent page for the client regardless of session.
func (tr *TurnRetrieverImpl) GetTurnsForProcessing(ctx context.Context, clientID, sessionID string, turnIDs []string) ([]Turn, error) {
	if sessionID != "" {
		tr.logger.Debug().
			Str("session_id", sessionID).
			Msg("session-scoped turn filtering not implemented; falling back to most recent turns")
	}

	limit := 0
	if len(turnIDs) == 0 {
		limit = tr.config.TurnPageSize
	}

	turns, err := tr.store.Query(ctx, clientID, turnIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("turn query failed: %w", err)
	}

	return turns, nil
}

// FilterProcessableTurns removes turns whose trimmed content is below the
// minimum length threshold. Length is measured in runes so multibyte content
// is not over-counted. This is the sole admission criterion; order is
// preserved.
func (tr *TurnRetrieverImpl) FilterProcessableTurns(turns []Turn) []Turn {
	filtered := make([]Turn, 0, len(turns))
	for _, turn := range turns {
		if utf8.RuneCountInString(strings.TrimSpace(turn.Content)) < tr.config.MinTurnContentLength {
			continue
		}
		filtered = append(filtered, turn)
	}
	return filtered
}
