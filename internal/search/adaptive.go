package search

import "strings"

// adaptiveK implements §4.7 Step 2: short queries get a fixed effective
// k regardless of what the caller asked for; longer queries scale with
// the request, capped at 50. All three branches are read as thresholds
// on query *word count*, per the parallel "≤ 2 query words ... ≤ 5 ..."
// phrasing — see DESIGN.md's Open Question resolution for the ambiguity
// this resolves (a "requested_k ≤ 5" reading was also plausible).
func adaptiveK(query string, requestedK int) int {
	words := len(strings.Fields(query))
	switch {
	case words <= 2:
		return 8
	case words <= 5:
		return requestedK
	default:
		k := requestedK + 5
		if k > 50 {
			k = 50
		}
		return k
	}
}
