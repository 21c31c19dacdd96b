// Package search implements the SearchEngine (C7): a hybrid BM25 + dense
// vector query pipeline over the chunks a Pipeline has written, with MMR
// reranking and overlap-based deduplication (§4.7).
package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/xmlindex/internal/embedder"
	"github.com/dshills/xmlindex/internal/store"
	"github.com/dshills/xmlindex/pkg/types"
)

// denseWeight and sparseWeight are the fixed hybrid fusion weights
// (§4.7 Step 5). Unlike a Reciprocal-Rank-Fusion scheme, this is a
// literal weighted sum of normalized scores, so it stays exact.
const (
	denseWeight  = 0.85
	sparseWeight = 0.15
	mmrLambda    = 0.7
	overlapRatio = 0.5
	scoreRound   = 1e4 // round to 1e-4
)

// Engine answers search queries against a Store using an Embedder for
// query-side embedding. Response caching is keyed by the query text plus
// its options.
type Engine struct {
	Store    *store.Store
	Embedder embedder.Embedder
	cache    *lru.Cache[[32]byte, *cacheEntry]
}

// New builds an Engine with a 256-entry response cache.
func New(st *store.Store, emb embedder.Embedder) *Engine {
	cache, err := lru.New[[32]byte, *cacheEntry](256)
	if err != nil {
		panic(fmt.Sprintf("create search response cache: %v", err))
	}
	return &Engine{Store: st, Embedder: emb, cache: cache}
}

// Search runs the full query pipeline and returns a ranked response
// (§4.7, §6).
func (e *Engine) Search(ctx context.Context, query string, opts types.SearchOptions) (*types.SearchResponse, error) {
	start := time.Now()
	opts = normalizeOptions(opts)

	key := cacheKey(query, opts)
	if cached, ok := e.cache.Get(key); ok {
		resp := copyResponse(cached.response)
		resp.QueryLatencyMs = time.Since(start).Milliseconds()
		return resp, nil
	}

	count, err := e.Store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	if count == 0 {
		// §7 EmptyIndex: zero indexed chunks is a success, not a failure,
		// so Err carries guidance rather than aborting the call. Not
		// cached, since the very next successful index run makes it stale
		// and nothing currently purges the cache except that same event.
		return &types.SearchResponse{
			ConfidenceThreshold: opts.ScoreThreshold,
			QueryLatencyMs:      time.Since(start).Milliseconds(),
			Err: types.NewIndexError(types.KindEmptyIndex,
				"the index has no chunks yet",
				"fall back to plain text search until indexing completes", nil),
		}, nil
	}

	queryVec, err := e.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	effectiveK := adaptiveK(query, opts.TopK)
	sparseLimit := 3 * effectiveK

	sparse, err := e.sparseScores(ctx, query, sparseLimit)
	if err != nil {
		sparse = map[int64]float64{}
	}

	chunks, err := e.Store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}

	candidates := make([]candidate, 0, len(chunks))
	for _, c := range chunks {
		dense := store.CosineSimilarity(queryVec, c.Embedding)
		bm25Norm := sparse[c.ID]
		hybrid := denseWeight*dense + sparseWeight*bm25Norm
		if hybrid < opts.ScoreThreshold {
			continue
		}
		if opts.SemanticType != "" && string(c.SemanticType) != opts.SemanticType {
			continue
		}
		candidates = append(candidates, candidate{chunk: c, score: hybrid})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > sparseLimit {
		candidates = candidates[:sparseLimit]
	}

	selected := mmrRerank(candidates, queryVec, effectiveK)
	selected = dedupOverlap(selected)
	if len(selected) > effectiveK {
		selected = selected[:effectiveK]
	}

	results := make([]types.SearchResult, 0, len(selected))
	for _, cand := range selected {
		results = append(results, types.SearchResult{
			FilePath:            cand.chunk.FilePath,
			LineRange:           [2]int{cand.chunk.StartLine, cand.chunk.EndLine},
			XMLElementHierarchy: renderHierarchy(cand.chunk),
			Score:               roundScore(cand.score),
			ChunkID:             fmt.Sprintf("%d", cand.chunk.ID),
		})
	}

	resp := &types.SearchResponse{
		Results:             results,
		ConfidenceThreshold: opts.ScoreThreshold,
		QueryLatencyMs:      time.Since(start).Milliseconds(),
	}

	e.cache.Add(key, &cacheEntry{response: copyResponse(resp)})
	return resp, nil
}

// sparseScores runs the FTS MATCH query and normalizes rank into [0, 1]
// (§4.7 Step 3): most-negative rank (best match) maps to 1, worst to 0.
func (e *Engine) sparseScores(ctx context.Context, query string, limit int) (map[int64]float64, error) {
	hits, err := e.Store.SearchFTS(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return map[int64]float64{}, nil
	}

	best, worst := hits[0].Rank, hits[0].Rank
	for _, h := range hits {
		if h.Rank < best {
			best = h.Rank
		}
		if h.Rank > worst {
			worst = h.Rank
		}
	}

	scores := make(map[int64]float64, len(hits))
	spread := worst - best
	for _, h := range hits {
		if spread == 0 {
			scores[h.ChunkID] = 1
			continue
		}
		scores[h.ChunkID] = (worst - h.Rank) / spread
	}
	return scores, nil
}

type candidate struct {
	chunk *types.Chunk
	score float64
}

func normalizeOptions(opts types.SearchOptions) types.SearchOptions {
	if opts.TopK <= 0 {
		opts.TopK = types.DefaultTopK
	}
	if opts.TopK > types.MaxTopK {
		opts.TopK = types.MaxTopK
	}
	if opts.ScoreThreshold <= 0 {
		opts.ScoreThreshold = types.DefaultScoreThreshold
	}
	return opts
}

func roundScore(s float64) float64 {
	return float64(int64(s*scoreRound+0.5)) / scoreRound
}
