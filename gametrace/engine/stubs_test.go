package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tocflow/gametrace/gametrace/config"
)

// testEngineConfig returns the documented defaults with a short retry delay
// so retry tests stay fast.
func testEngineConfig() *config.EngineConfig {
	return &config.EngineConfig{
		TurnPageSize:         20,
		MinTurnContentLength: 20,
		RetryAttempts:        3,
		RetryBaseDelay:       5 * time.Millisecond,
		SimilarityLimit:      5,
		MinTokenLength:       3,
		BatchConcurrency:     4,
		EnableMetrics:        true,
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// stubTurnStore implements TurnStore for testing.
type stubTurnStore struct {
	turns     []Turn
	err       error
	lastIDs   []string
	lastLimit int
}

func (s *stubTurnStore) Query(ctx context.Context, clientID string, turnIDs []string, limit int) ([]Turn, error) {
	s.lastIDs = turnIDs
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	if len(turnIDs) > 0 {
		wanted := make(map[string]bool, len(turnIDs))
		for _, id := range turnIDs {
			wanted[id] = true
		}
		var selected []Turn
		for _, turn := range s.turns {
			if wanted[turn.ID] {
				selected = append(selected, turn)
			}
		}
		return selected, nil
	}
	if limit > 0 && len(s.turns) > limit {
		return s.turns[:limit], nil
	}
	return s.turns, nil
}

var _ TurnStore = (*stubTurnStore)(nil)

// stubGameStore implements GameStore for testing.
type stubGameStore struct {
	mu         sync.Mutex
	games      map[string]*GameRecord // keyed by clientID + "/" + name
	listOrder  []string
	cards      []CardMatch
	createErr  error
	listErr    error
	saved      map[string]EmbeddingVector
	findCalled bool
}

func newStubGameStore() *stubGameStore {
	return &stubGameStore{
		games: make(map[string]*GameRecord),
		saved: make(map[string]EmbeddingVector),
	}
}

func (s *stubGameStore) key(clientID, name string) string { return clientID + "/" + name }

func (s *stubGameStore) addGame(record GameRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.key(record.ClientID, record.Name)
	s.games[k] = &record
	s.listOrder = append(s.listOrder, k)
}

func (s *stubGameStore) LoadGame(ctx context.Context, clientID, name string) (*GameRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[s.key(clientID, name)]
	if !ok {
		return nil, nil
	}
	copied := *game
	return &copied, nil
}

func (s *stubGameStore) ListGames(ctx context.Context, clientID string) ([]GameRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var records []GameRecord
	for _, k := range s.listOrder {
		if game := s.games[k]; game != nil && game.ClientID == clientID {
			records = append(records, *game)
		}
	}
	return records, nil
}

func (s *stubGameStore) FindCards(ctx context.Context, clientID, terms string) ([]CardMatch, error) {
	s.findCalled = true
	return s.cards, nil
}

func (s *stubGameStore) CreateGame(ctx context.Context, record *GameRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	k := s.key(record.ClientID, record.Name)
	if _, exists := s.games[k]; exists {
		return ErrGameExists
	}
	copied := *record
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	s.games[k] = &copied
	s.listOrder = append(s.listOrder, k)
	return nil
}

func (s *stubGameStore) SaveEmbedding(ctx context.Context, clientID, name string, vec EmbeddingVector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[s.key(clientID, name)] = vec
	return nil
}

var _ GameStore = (*stubGameStore)(nil)

// stubEmbedder implements EmbeddingClient for testing.
type stubEmbedder struct {
	mu       sync.Mutex
	calls    int
	callAt   []time.Time
	failures int // number of leading calls that fail
	err      error
	vector   []float32
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.callAt = append(s.callAt, time.Now())
	if s.err != nil && (s.failures == 0 || s.calls <= s.failures) {
		return nil, s.err
	}
	if s.vector != nil {
		return s.vector, nil
	}
	return []float32{3, 4}, nil
}

var _ EmbeddingClient = (*stubEmbedder)(nil)
