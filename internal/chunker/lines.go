package chunker

import "regexp"

const (
	wrapperLookBack    = 5
	wrapperLookForward = 10
)

var (
	bareOpenTagRe  = regexp.MustCompile(`^\s*<([A-Za-z_][\w.\-:]*)\s*>\s*$`)
	bareCloseTagRe = regexp.MustCompile(`^\s*</([A-Za-z_][\w.\-:]*)\s*>\s*$`)
)

// resolveLineRange converts n's byte offsets into a 1-based inclusive
// [startLine, endLine] against li, then collapses self-closing elements to
// a single line (§4.2.1).
func resolveLineRange(li *lineIndex, n *node) (int, int) {
	start := li.LineAt(n.StartOffset)
	if n.SelfClosing {
		return start, start
	}
	end := li.LineAt(maxInt(n.EndOffset-1, n.StartOffset))
	if end < start {
		end = start
	}
	return start, end
}

// expandForWrappers grows [start, end] outward to engulf plain,
// attribute-less opening/closing tag pairs directly adjacent to the
// range, bounded by wrapperLookBack lines backward and wrapperLookForward
// lines forward from the original range (§4.2.1).
func expandForWrappers(lines []string, start, end int) (int, int) {
	origStart, origEnd := start, end

	for {
		if start-1 < 1 || origStart-(start-1) > wrapperLookBack {
			break
		}
		m := bareOpenTagRe.FindStringSubmatch(lineAt(lines, start-1))
		if m == nil {
			break
		}
		tagName := m[1]

		closeLine := findMatchingBareClose(lines, end, origEnd, tagName)
		if closeLine == -1 {
			break
		}
		start = start - 1
		end = closeLine
	}

	return start, end
}

func findMatchingBareClose(lines []string, end, origEnd int, tagName string) int {
	limit := origEnd + wrapperLookForward
	if limit > len(lines) {
		limit = len(lines)
	}
	for ln := end + 1; ln <= limit; ln++ {
		m := bareCloseTagRe.FindStringSubmatch(lineAt(lines, ln))
		if m != nil && m[1] == tagName {
			return ln
		}
	}
	return -1
}

// lineAt fetches the 1-based line ln from lines, returning "" out of range.
func lineAt(lines []string, ln int) string {
	if ln < 1 || ln > len(lines) {
		return ""
	}
	return lines[ln-1]
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
