package engine

import (
	"context"
	"time"
)

// TurnStore supplies recorded conversation turns. Turns are immutable and
// read-only to the engine.
type TurnStore interface {
	// Query returns turns for a client, most-recent-first. When turnIDs is
	// non-empty the result is restricted to exactly those turns.
	Query(ctx context.Context, clientID string, turnIDs []string, limit int) ([]Turn, error)
}

// GameStore manages the per-client catalogue of games and cards.
type GameStore interface {
	// LoadGame returns the named game, or nil when it does not exist.
	LoadGame(ctx context.Context, clientID, name string) (*GameRecord, error)
	// ListGames returns every game owned by the client, most-recent-first.
	ListGames(ctx context.Context, clientID string) ([]GameRecord, error)
	// FindCards matches free-text search terms against stored cards.
	FindCards(ctx context.Context, clientID, terms string) ([]CardMatch, error)
	// CreateGame persists a new game record. Uniqueness of (clientID, name)
	// is enforced by the store.
	CreateGame(ctx context.Context, record *GameRecord) error
	// SaveEmbedding attaches an embedding vector to an existing game.
	SaveEmbedding(ctx context.Context, clientID, name string, vec EmbeddingVector) error
}

// EmbeddingClient generates embeddings for text content via an external
// service.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Turn is a recorded conversation turn.
type Turn struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"client_id"`
	SessionID  string    `json:"session_id"`
	Content    string    `json:"content"`
	SourceType string    `json:"source_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// StateKind tags the game-state union.
type StateKind string

const (
	StateUndeclared   StateKind = "undeclared"
	StateIdentified   StateKind = "identified"
	StateUnidentified StateKind = "unidentified"
)

// GameState is the classifier output: either a named game declaration or an
// explicit "no named game" mode. It is derived per invocation and never
// persisted by the engine.
type GameState struct {
	Kind        StateKind `json:"type"`
	GameName    string    `json:"game_name,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Reason      string    `json:"reason,omitempty"`
}

// Detection is the result of evaluating a turn's content against the
// declaration pattern families.
type Detection struct {
	Declared bool       `json:"declared"`
	State    *GameState `json:"state,omitempty"`
	Message  string     `json:"message,omitempty"`
}

// GameRecord is a persistent game owned by a client. The UDE is the free-text
// description of the undesirable effect the game addresses.
type GameRecord struct {
	ID          string               `json:"id"`
	ClientID    string               `json:"client_id"`
	Name        string               `json:"name"`
	DisplayName string               `json:"display_name"`
	UDE         string               `json:"ude"`
	Status      string               `json:"status"`
	HandsPlayed int                  `json:"hands_played"`
	Cards       map[string]CardValue `json:"cards"`
	CreatedAt   time.Time            `json:"created_at"`
}

// CardValue is a structured pattern annotation attached to a game. Cards are
// authored by collaborators and read-only here.
type CardValue struct {
	Pattern string `json:"pattern"`
	Forces  string `json:"forces"`
	Suit    string `json:"suit"`
}

// CardMatch is a card search hit.
type CardMatch struct {
	Key     string `json:"key"`
	Game    string `json:"game"`
	Pattern string `json:"pattern"`
	Forces  string `json:"forces"`
	Suit    string `json:"suit"`
}

// GameSummary is the listing shape for GetAvailableGames.
type GameSummary struct {
	Name        string `json:"name"`
	UDE         string `json:"ude"`
	Status      string `json:"status"`
	HandsPlayed int    `json:"hands_played"`
}

// EmbeddingVector is a storage-ready embedding plus the text it was derived
// from. It has no independent lifecycle; it is recomputed whenever the text
// changes.
type EmbeddingVector struct {
	Text   string    `json:"text"`
	Values []float32 `json:"values"`
	Dims   int       `json:"dims"`
}

// SimilarGame is one ranked result from the similarity analyzer.
type SimilarGame struct {
	GameName        string    `json:"game_name"`
	UDE             string    `json:"ude"`
	HandsPlayed     int       `json:"hands_played"`
	CreatedAt       time.Time `json:"created_at"`
	SimilarityScore float64   `json:"similarity_score"`
}

// Health reports the outcome of an embedding service probe.
type Health struct {
	Status string `json:"status"` // "healthy" or "unhealthy"
	Err    string `json:"error,omitempty"`
}

const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
)

// TurnOutcome summarizes the processing of a single turn.
type TurnOutcome struct {
	TurnID        string     `json:"turn_id"`
	State         *GameState `json:"state,omitempty"`
	Declared      bool       `json:"declared"`
	GameCreated   bool       `json:"game_created"`
	EmbeddingDims int        `json:"embedding_dims,omitempty"`
}
