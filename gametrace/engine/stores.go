package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	radix "github.com/armon/go-radix"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LibSQLTurnStore implements TurnStore over the embedded libsql database.
type LibSQLTurnStore struct {
	db *sql.DB
}

// NewLibSQLTurnStore creates a new turn store.
func NewLibSQLTurnStore(db *sql.DB) *LibSQLTurnStore {
	return &LibSQLTurnStore{db: db}
}

// Query returns turns most-recent-first. Explicit turnIDs restrict the
// result to exactly those turns for the client.
func (ts *LibSQLTurnStore) Query(ctx context.Context, clientID string, turnIDs []string, limit int) ([]Turn, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if len(turnIDs) > 0 {
		placeholders := strings.Repeat("?,", len(turnIDs)-1) + "?"
		query := fmt.Sprintf(`
			SELECT id, client_id, session_id, content, source_type, created_at
			FROM turns
			WHERE client_id = ? AND id IN (%s)
			ORDER BY created_at DESC
		`, placeholders)

		args := make([]interface{}, 0, len(turnIDs)+1)
		args = append(args, clientID)
		for _, id := range turnIDs {
			args = append(args, id)
		}
		rows, err = ts.db.QueryContext(ctx, query, args...)
	} else {
		query := `
			SELECT id, client_id, session_id, content, source_type, created_at
			FROM turns
			WHERE client_id = ?
			ORDER BY created_at DESC
			LIMIT ?
		`
		rows, err = ts.db.QueryContext(ctx, query, clientID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("turn query failed: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var turn Turn
		var sessionID sql.NullString
		if err := rows.Scan(&turn.ID, &turn.ClientID, &sessionID, &turn.Content, &turn.SourceType, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		if sessionID.Valid {
			turn.SessionID = sessionID.String
		}
		turns = append(turns, turn)
	}

	return turns, rows.Err()
}

// CreateTurn inserts a recorded turn. Turns are immutable once created.
func (ts *LibSQLTurnStore) CreateTurn(ctx context.Context, turn *Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	if turn.SourceType == "" {
		turn.SourceType = "conversation"
	}

	query := `
		INSERT INTO turns (id, client_id, session_id, content, source_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := ts.db.ExecContext(ctx, query,
		turn.ID, turn.ClientID, turn.SessionID, turn.Content, turn.SourceType, turn.CreatedAt)
	return err
}

// LibSQLGameStore implements GameStore over the embedded libsql database.
type LibSQLGameStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewLibSQLGameStore creates a new game store.
func NewLibSQLGameStore(db *sql.DB, logger zerolog.Logger) *LibSQLGameStore {
	return &LibSQLGameStore{
		db:     db,
		logger: logger.With().Str("component", "game_store").Logger(),
	}
}

// LoadGame returns the named game, or nil when it does not exist.
func (gs *LibSQLGameStore) LoadGame(ctx context.Context, clientID, name string) (*GameRecord, error) {
	query := `
		SELECT id, client_id, name, display_name, ude, status, hands_played, cards_json, created_at
		FROM games
		WHERE client_id = ? AND name = ?
	`

	var record GameRecord
	var cardsJSON string
	err := gs.db.QueryRowContext(ctx, query, clientID, name).Scan(
		&record.ID,
		&record.ClientID,
		&record.Name,
		&record.DisplayName,
		&record.UDE,
		&record.Status,
		&record.HandsPlayed,
		&cardsJSON,
		&record.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game: %w", err)
	}

	record.Cards = gs.decodeCards(name, cardsJSON)
	return &record, nil
}

// ListGames returns every game owned by the client, most-recent-first.
func (gs *LibSQLGameStore) ListGames(ctx context.Context, clientID string) ([]GameRecord, error) {
	query := `
		SELECT id, client_id, name, display_name, ude, status, hands_played, cards_json, created_at
		FROM games
		WHERE client_id = ?
		ORDER BY created_at DESC
	`

	rows, err := gs.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("game query failed: %w", err)
	}
	defer rows.Close()

	var records []GameRecord
	for rows.Next() {
		var record GameRecord
		var cardsJSON string
		if err := rows.Scan(
			&record.ID,
			&record.ClientID,
			&record.Name,
			&record.DisplayName,
			&record.UDE,
			&record.Status,
			&record.HandsPlayed,
			&cardsJSON,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		record.Cards = gs.decodeCards(record.Name, cardsJSON)
		records = append(records, record)
	}

	return records, rows.Err()
}

// FindCards matches free-text search terms against the client's stored
// cards: prefix matches on card keys via a radix tree, substring matches on
// pattern, forces and suit.
func (gs *LibSQLGameStore) FindCards(ctx context.Context, clientID, terms string) ([]CardMatch, error) {
	games, err := gs.ListGames(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return searchCards(games, terms), nil
}

// searchCards runs the in-memory card search over a set of game records.
// Card keys are only unique within a game, so the tree holds a slice of
// matches per key.
func searchCards(games []GameRecord, terms string) []CardMatch {
	tree := radix.New()
	var all []CardMatch
	for _, game := range games {
		for key, card := range game.Cards {
			match := CardMatch{
				Key:     key,
				Game:    game.Name,
				Pattern: card.Pattern,
				Forces:  card.Forces,
				Suit:    card.Suit,
			}
			all = append(all, match)
			lk := strings.ToLower(key)
			if existing, ok := tree.Get(lk); ok {
				tree.Insert(lk, append(existing.([]CardMatch), match))
			} else {
				tree.Insert(lk, []CardMatch{match})
			}
		}
	}

	seen := make(map[string]bool)
	var matches []CardMatch
	addMatch := func(m CardMatch) {
		id := m.Game + "/" + m.Key
		if !seen[id] {
			seen[id] = true
			matches = append(matches, m)
		}
	}

	for _, term := range strings.Fields(strings.ToLower(terms)) {
		tree.WalkPrefix(term, func(_ string, v interface{}) bool {
			for _, m := range v.([]CardMatch) {
				addMatch(m)
			}
			return false
		})
		for _, m := range all {
			if strings.Contains(strings.ToLower(m.Pattern), term) ||
				strings.Contains(strings.ToLower(m.Forces), term) ||
				strings.Contains(strings.ToLower(m.Suit), term) {
				addMatch(m)
			}
		}
	}

	return matches
}

// CreateGame persists a new game record. The (client_id, name) uniqueness
// constraint is authoritative; conflicts surface as ErrGameExists.
func (gs *LibSQLGameStore) CreateGame(ctx context.Context, record *GameRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if record.Status == "" {
		record.Status = "active"
	}
	if record.Cards == nil {
		record.Cards = map[string]CardValue{}
	}

	cardsJSON, err := json.Marshal(record.Cards)
	if err != nil {
		return fmt.Errorf("failed to marshal cards: %w", err)
	}

	query := `
		INSERT INTO games (id, client_id, name, display_name, ude, status, hands_played, cards_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = gs.db.ExecContext(ctx, query,
		record.ID,
		record.ClientID,
		record.Name,
		record.DisplayName,
		record.UDE,
		record.Status,
		record.HandsPlayed,
		string(cardsJSON),
		record.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrGameExists
		}
		return fmt.Errorf("failed to create game: %w", err)
	}
	return nil
}

// SaveEmbedding attaches an embedding vector to an existing game.
func (gs *LibSQLGameStore) SaveEmbedding(ctx context.Context, clientID, name string, vec EmbeddingVector) error {
	query := `
		UPDATE games
		SET embedding = ?, embedding_text = ?
		WHERE client_id = ? AND name = ?
	`
	result, err := gs.db.ExecContext(ctx, query, EncodeVector(vec.Values), vec.Text, clientID, name)
	if err != nil {
		return fmt.Errorf("failed to save embedding: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("game not found: %s", name)
	}
	return nil
}

// RecordHandPlayed increments the completed-hand counter for a game.
func (gs *LibSQLGameStore) RecordHandPlayed(ctx context.Context, clientID, name string) error {
	query := `
		UPDATE games
		SET hands_played = hands_played + 1
		WHERE client_id = ? AND name = ?
	`
	result, err := gs.db.ExecContext(ctx, query, clientID, name)
	if err != nil {
		return fmt.Errorf("failed to record hand: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("game not found: %s", name)
	}
	return nil
}

// decodeCards unmarshals and validates the cards column. Cards are authored
// by collaborators; invalid entries are skipped with a warning, never fatal.
func (gs *LibSQLGameStore) decodeCards(gameName, cardsJSON string) map[string]CardValue {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal([]byte(cardsJSON), &raw); err != nil {
		gs.logger.Warn().Err(err).Str("game", gameName).Msg("malformed cards column")
		return map[string]CardValue{}
	}

	cards := make(map[string]CardValue, len(raw))
	for key, payload := range raw {
		if err := validateCardPayload(payload); err != nil {
			gs.logger.Warn().Err(err).Str("game", gameName).Str("card", key).Msg("skipping invalid card")
			continue
		}
		var card CardValue
		if err := json.Unmarshal(payload, &card); err != nil {
			gs.logger.Warn().Err(err).Str("game", gameName).Str("card", key).Msg("skipping undecodable card")
			continue
		}
		cards[key] = card
	}
	return cards
}
