package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/rs/zerolog"

	"github.com/tocflow/gametrace/gametrace/config"
)

// SimilarityAnalyzerImpl ranks previously recorded games against a new UDE
// by lexical overlap. This is deliberately a lexical measure, independent of
// the embedding vectors: the two similarity notions are kept separate.
type SimilarityAnalyzerImpl struct {
	config  *config.EngineConfig
	store   GameStore
	logger  zerolog.Logger
	metrics *MetricsCollector
}

// NewSimilarityAnalyzer creates a new analyzer over the game store.
func NewSimilarityAnalyzer(cfg *config.EngineConfig, store GameStore, logger zerolog.Logger, metrics *MetricsCollector) *SimilarityAnalyzerImpl {
	return &SimilarityAnalyzerImpl{
		config:  cfg,
		store:   store,
		logger:  logger.With().Str("component", "similarity_analyzer").Logger(),
		metrics: metrics,
	}
}

// FindSimilarUDEs ranks the client's stored games against currentUDE by
// Jaccard similarity over lower-cased whitespace tokens, descending by
// score, truncated to limit. Zero-similarity candidates and the record whose
// UDE equals currentUDE verbatim are excluded. Ties preserve the underlying
// retrieval order (most-recent-first).
func (sa *SimilarityAnalyzerImpl) FindSimilarUDEs(ctx context.Context, clientID, currentUDE string, limit int) ([]SimilarGame, error) {
	start := time.Now()

	if limit <= 0 {
		limit = sa.config.SimilarityLimit
	}

	games, err := sa.store.ListGames(ctx, clientID)
	if err != nil {
		sa.metrics.RecordSimilarity(time.Since(start), err)
		return nil, fmt.Errorf("failed to list games: %w", err)
	}

	interner := newTokenInterner(sa.config.MinTokenLength)
	query := interner.tokenSet(currentUDE)

	results := make([]SimilarGame, 0, len(games))
	for _, game := range games {
		if game.UDE == currentUDE {
			continue
		}
		candidate := interner.tokenSet(game.UDE)
		score := jaccard(query, candidate)
		if score <= 0 {
			continue
		}
		results = append(results, SimilarGame{
			GameName:        game.Name,
			UDE:             game.UDE,
			HandsPlayed:     game.HandsPlayed,
			CreatedAt:       game.CreatedAt,
			SimilarityScore: score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SimilarityScore > results[j].SimilarityScore
	})

	if len(results) > limit {
		results = results[:limit]
	}

	sa.metrics.RecordSimilarity(time.Since(start), nil)
	return results, nil
}

// tokenInterner maps tokens to stable uint32 ids so token sets can be
// represented as roaring bitmaps.
type tokenInterner struct {
	minLen int
	ids    map[string]uint32
}

func newTokenInterner(minLen int) *tokenInterner {
	return &tokenInterner{minLen: minLen, ids: make(map[string]uint32)}
}

// tokenSet tokenizes text on whitespace, lower-cases, drops tokens shorter
// than the minimum length, and interns the remainder into a bitmap.
func (ti *tokenInterner) tokenSet(text string) *roaring.Bitmap {
	bm := roaring.New()
	for _, field := range strings.Fields(strings.ToLower(text)) {
		if len(field) < ti.minLen {
			continue
		}
		id, ok := ti.ids[field]
		if !ok {
			id = uint32(len(ti.ids))
			ti.ids[field] = id
		}
		bm.Add(id)
	}
	return bm
}

// jaccard computes |intersection| / |union| over two token bitmaps. An empty
// union yields 0, which the caller filters out.
func jaccard(a, b *roaring.Bitmap) float64 {
	union := roaring.Or(a, b).GetCardinality()
	if union == 0 {
		return 0
	}
	inter := roaring.And(a, b).GetCardinality()
	return float64(inter) / float64(union)
}
