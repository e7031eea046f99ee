package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cardFixtureGames() []GameRecord {
	return []GameRecord{
		{
			Name: "firefighting",
			Cards: map[string]CardValue{
				"escalation": {Pattern: "urgent requests jump the queue", Forces: "time pressure", Suit: "spades"},
				"hero":       {Pattern: "one person absorbs the crisis", Forces: "recognition", Suit: "hearts"},
			},
		},
		{
			Name: "scapegoat",
			Cards: map[string]CardValue{
				"blame": {Pattern: "failures are assigned a single owner", Forces: "fear", Suit: "clubs"},
			},
		},
	}
}

func TestSearchCards_KeyPrefix(t *testing.T) {
	matches := searchCards(cardFixtureGames(), "esc")

	require.Len(t, matches, 1)
	assert.Equal(t, "escalation", matches[0].Key)
	assert.Equal(t, "firefighting", matches[0].Game)
}

func TestSearchCards_PatternSubstring(t *testing.T) {
	matches := searchCards(cardFixtureGames(), "crisis")

	require.Len(t, matches, 1)
	assert.Equal(t, "hero", matches[0].Key)
}

func TestSearchCards_ForcesAndSuit(t *testing.T) {
	matches := searchCards(cardFixtureGames(), "fear")
	require.Len(t, matches, 1)
	assert.Equal(t, "blame", matches[0].Key)

	matches = searchCards(cardFixtureGames(), "hearts")
	require.Len(t, matches, 1)
	assert.Equal(t, "hero", matches[0].Key)
}

func TestSearchCards_SameKeyAcrossGames(t *testing.T) {
	// Card keys are only unique within a game; both games' cards must
	// surface when they share a key.
	games := []GameRecord{
		{
			Name: "scapegoat",
			Cards: map[string]CardValue{
				"blame": {Pattern: "failures are assigned a single owner", Forces: "fear"},
			},
		},
		{
			Name: "firefighting",
			Cards: map[string]CardValue{
				"blame": {Pattern: "postmortems hunt for a culprit", Forces: "fear"},
			},
		},
	}

	matches := searchCards(games, "blame")

	require.Len(t, matches, 2)
	owners := []string{matches[0].Game, matches[1].Game}
	assert.ElementsMatch(t, []string{"scapegoat", "firefighting"}, owners)
	assert.Equal(t, "blame", matches[0].Key)
	assert.Equal(t, "blame", matches[1].Key)
}

func TestSearchCards_DedupesAcrossTerms(t *testing.T) {
	// "escalation" hits both the key prefix and the pattern substring scan.
	matches := searchCards(cardFixtureGames(), "escalation urgent")

	require.Len(t, matches, 1)
	assert.Equal(t, "escalation", matches[0].Key)
}

func TestSearchCards_CaseInsensitive(t *testing.T) {
	matches := searchCards(cardFixtureGames(), "URGENT")

	require.Len(t, matches, 1)
	assert.Equal(t, "escalation", matches[0].Key)
}

func TestSearchCards_NoMatches(t *testing.T) {
	assert.Empty(t, searchCards(cardFixtureGames(), "kubernetes"))
	assert.Empty(t, searchCards(nil, "escalation"))
}

func TestDecodeCards(t *testing.T) {
	store := &LibSQLGameStore{logger: testLogger()}

	cards := store.decodeCards("firefighting", `{
		"escalation": {"pattern": "urgent requests jump the queue", "forces": "pressure", "suit": "spades"},
		"broken":     {"forces": "missing the required pattern"},
		"minimal":    {"pattern": "p"}
	}`)

	require.Len(t, cards, 2)
	assert.Equal(t, "urgent requests jump the queue", cards["escalation"].Pattern)
	assert.Equal(t, "p", cards["minimal"].Pattern)
	_, kept := cards["broken"]
	assert.False(t, kept, "cards failing validation are skipped")
}

func TestDecodeCards_MalformedColumn(t *testing.T) {
	store := &LibSQLGameStore{logger: testLogger()}

	cards := store.decodeCards("firefighting", `not json at all`)

	assert.NotNil(t, cards)
	assert.Empty(t, cards)
}
