package search

import (
	"crypto/sha256"
	"fmt"

	"github.com/dshills/xmlindex/pkg/types"
)

// cacheEntry wraps one cached SearchResponse. query_latency_ms is
// recomputed on every hit rather than cached, since a cached response
// answered in zero time would be a misleading metric.
type cacheEntry struct {
	response *types.SearchResponse
}

// cacheKey hashes the query plus every option that changes its result
// set, so a cache hit is never returned for a request it didn't answer.
func cacheKey(query string, opts types.SearchOptions) [32]byte {
	data := fmt.Sprintf("%s|%d|%.4f|%s", query, opts.TopK, opts.ScoreThreshold, opts.SemanticType)
	return sha256.Sum256([]byte(data))
}

// Invalidate purges every cached response. The facade calls this after
// every successful ProcessIncremental run (watch.go) so a repeated
// identical query never serves a pre-edit result out of the cache between
// now and its natural LRU eviction. The initial ProcessInitial run needs
// no call: the Engine and its cache are built after it.
func (e *Engine) Invalidate() {
	e.cache.Purge()
}

func copyResponse(src *types.SearchResponse) *types.SearchResponse {
	if src == nil {
		return nil
	}
	dst := &types.SearchResponse{
		ConfidenceThreshold: src.ConfidenceThreshold,
		QueryLatencyMs:      src.QueryLatencyMs,
		Err:                 src.Err,
		Results:             make([]types.SearchResult, len(src.Results)),
	}
	copy(dst.Results, src.Results)
	for i := range dst.Results {
		dst.Results[i].XMLElementHierarchy = append([]string(nil), src.Results[i].XMLElementHierarchy...)
	}
	return dst
}
