package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/tocflow/gametrace/gametrace/config"
)

// cardSchema validates card payloads before they are surfaced. Cards are
// written by collaborators, so malformed entries are skipped rather than
// treated as fatal.
const cardSchema = `{
	"type": "object",
	"required": ["pattern"],
	"properties": {
		"pattern": {"type": "string", "minLength": 1},
		"forces":  {"type": "string"},
		"suit":    {"type": "string"}
	}
}`

var cardSchemaLoader = gojsonschema.NewStringLoader(cardSchema)

// validateCardPayload checks a raw card JSON document against the card
// schema.
func validateCardPayload(raw []byte) error {
	result, err := gojsonschema.Validate(cardSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("card validation failed: %w", err)
	}
	if !result.Valid() {
		var reasons []string
		for _, desc := range result.Errors() {
			reasons = append(reasons, desc.String())
		}
		return fmt.Errorf("card payload invalid: %s", strings.Join(reasons, "; "))
	}
	return nil
}

// GameLoaderImpl reads the per-client catalogue of games and cards that
// downstream logic consumes.
type GameLoaderImpl struct {
	config *config.EngineConfig
	store  GameStore
	logger zerolog.Logger
}

// NewGameLoader creates a new game loader over the store.
func NewGameLoader(cfg *config.EngineConfig, store GameStore, logger zerolog.Logger) *GameLoaderImpl {
	return &GameLoaderImpl{
		config: cfg,
		store:  store,
		logger: logger.With().Str("component", "game_loader").Logger(),
	}
}

// LoadGameCards returns the card mapping for a game, or nil when the game
// does not exist. Not-found is a normal outcome, not an error.
func (gl *GameLoaderImpl) LoadGameCards(ctx context.Context, clientID, gameName string) (map[string]CardValue, error) {
	game, err := gl.store.LoadGame(ctx, clientID, gameName)
	if err != nil {
		return nil, fmt.Errorf("failed to load game %q: %w", gameName, err)
	}
	if game == nil {
		return nil, nil
	}
	return game.Cards, nil
}

// GetAvailableGames lists every game owned by the client.
func (gl *GameLoaderImpl) GetAvailableGames(ctx context.Context, clientID string) ([]GameSummary, error) {
	games, err := gl.store.ListGames(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}

	summaries := make([]GameSummary, 0, len(games))
	for _, game := range games {
		summaries = append(summaries, GameSummary{
			Name:        game.Name,
			UDE:         game.UDE,
			Status:      game.Status,
			HandsPlayed: game.HandsPlayed,
		})
	}
	return summaries, nil
}

// FindRelevantCards matches free-text search terms against stored cards. An
// empty or blank searchTerms short-circuits to an empty result.
func (gl *GameLoaderImpl) FindRelevantCards(ctx context.Context, clientID, searchTerms string) ([]CardMatch, error) {
	if strings.TrimSpace(searchTerms) == "" {
		return []CardMatch{}, nil
	}

	matches, err := gl.store.FindCards(ctx, clientID, searchTerms)
	if err != nil {
		return nil, fmt.Errorf("card search failed: %w", err)
	}
	if matches == nil {
		matches = []CardMatch{}
	}
	return matches, nil
}
