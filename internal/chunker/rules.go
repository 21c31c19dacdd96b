package chunker

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/dshills/xmlindex/internal/registry"
)

// flowKeywords backs boundary-detection Rule 5.
var flowKeywords = map[string]bool{
	"query": true, "operation": true, "resource": true,
	"config": true, "validate": true, "header": true,
}

// identifyingAttrs backs boundary-detection Rule 6: any of these present on
// an element is enough to treat it as individually addressable.
var identifyingAttrs = []string{"name", "key", "id", "context", "uri-template", "uriTemplate"}

// isChunkable runs the eight boundary-detection rules in order and reports
// which rule fired, if any. n.Parent must be non-nil for Rule 7 to apply.
func isChunkable(reg *registry.Registry, n *node) (bool, string) {
	tag := n.Tag
	local := n.Local

	// Rule 1: registry hit on full or local name.
	if reg.IsResourceType(tag) || reg.IsSemanticBoundary(tag) || reg.IsMediator(tag) {
		return true, "registry"
	}
	// Rule 2: connector tag (contains '.').
	if strings.Contains(local, ".") {
		return true, "connector"
	}
	// Rule 3: prefix:LocalName, prefix lowercase, LocalName starts uppercase.
	if n.Prefix != "" && isAllLower(n.Prefix) && startsUpper(local) {
		return true, "policy"
	}
	// Rule 4: local name starts uppercase and contains no '.'.
	if startsUpper(local) && !strings.Contains(local, ".") {
		return true, "declarative"
	}
	// Rule 5: standard flow keyword.
	if flowKeywords[local] {
		return true, "flow-keyword"
	}
	// Rule 6: any identifying attribute.
	if hasIdentifyingAttr(n.Attrs) {
		return true, "identifying-attr"
	}
	// Rule 7: parent tag contains '.' -> this is a connector property.
	if n.Parent != nil && strings.Contains(n.Parent.Local, ".") {
		return true, "connector-property"
	}
	// Rule 8: structural complexity safety net.
	if distinctChildTagKinds(n) >= 2 {
		return true, "structural-complexity"
	}
	return false, ""
}

func isAllLower(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.IsLower(r) {
			return false
		}
	}
	return true
}

func startsUpper(s string) bool {
	if s == "" {
		return false
	}
	r := []rune(s)[0]
	return unicode.IsUpper(r)
}

func hasIdentifyingAttr(attrs map[string]string) bool {
	for _, a := range identifyingAttrs {
		if v, ok := attrs[a]; ok && v != "" {
			return true
		}
	}
	return false
}

func distinctChildTagKinds(n *node) int {
	seen := map[string]bool{}
	for _, c := range n.Children {
		seen[c.Local] = true
	}
	return len(seen)
}

// connectorPropertyRe matches whitespace-only text. hasOnlyBareText rejects
// text it matches; bare-text detection is otherwise structural (node.Text
// non-empty after trimming, no element children).
var connectorPropertyRe = regexp.MustCompile(`^\s*$`)

func hasOnlyBareText(n *node) bool {
	return len(n.Children) == 0 && strings.TrimSpace(n.Text) != "" && !connectorPropertyRe.MatchString(n.Text)
}
