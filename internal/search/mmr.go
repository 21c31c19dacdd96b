package search

import "github.com/dshills/xmlindex/internal/store"

// mmrRerank greedily selects up to k candidates maximizing
// lambda*relevance - (1-lambda)*max_sim_to_selected (§4.7 Step 8),
// similarity computed as embedding cosine similarity between the
// candidate and every already-selected chunk. Ties are broken by
// earlier candidate: bestScore only updates on a strict improvement, so
// among equal scores the first-seen (highest hybrid-ranked) one wins.
func mmrRerank(candidates []candidate, queryVec []float32, k int) []candidate {
	if len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	selected := make([]candidate, 0, k)
	remaining := make([]candidate, len(candidates))
	copy(remaining, candidates)

	selected = append(selected, remaining[0])
	remaining = remaining[1:]

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := 0
		bestScore := -1.0

		for i, cand := range remaining {
			maxSim := 0.0
			for _, sel := range selected {
				sim := store.CosineSimilarity(cand.chunk.Embedding, sel.chunk.Embedding)
				if sim > maxSim {
					maxSim = sim
				}
			}

			mmrScore := mmrLambda*cand.score - (1-mmrLambda)*maxSim
			if mmrScore > bestScore {
				bestScore = mmrScore
				bestIdx = i
			}
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}

// dedupOverlap scans the MMR-ordered set and drops a candidate if an
// already-kept chunk from the same file overlaps it by more than half
// of the smaller span (§4.7 Step 9).
func dedupOverlap(ordered []candidate) []candidate {
	kept := make([]candidate, 0, len(ordered))
	for _, cand := range ordered {
		if overlapsKept(cand, kept) {
			continue
		}
		kept = append(kept, cand)
	}
	return kept
}

func overlapsKept(cand candidate, kept []candidate) bool {
	for _, k := range kept {
		if k.chunk.FilePath != cand.chunk.FilePath {
			continue
		}
		overlap := lineOverlap(cand.chunk.StartLine, cand.chunk.EndLine, k.chunk.StartLine, k.chunk.EndLine)
		if overlap == 0 {
			continue
		}
		spanSelf := cand.chunk.EndLine - cand.chunk.StartLine + 1
		spanOther := k.chunk.EndLine - k.chunk.StartLine + 1
		minSpan := spanSelf
		if spanOther < minSpan {
			minSpan = spanOther
		}
		if minSpan > 0 && float64(overlap)/float64(minSpan) > overlapRatio {
			return true
		}
	}
	return false
}

func lineOverlap(aStart, aEnd, bStart, bEnd int) int {
	start := aStart
	if bStart > start {
		start = bStart
	}
	end := aEnd
	if bEnd < end {
		end = bEnd
	}
	if end < start {
		return 0
	}
	return end - start + 1
}
