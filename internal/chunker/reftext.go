package chunker

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Reference-extraction patterns (§4.2.4), applied to a chunk's raw slice of
// the original source.
var (
	refSequenceRe    = regexp.MustCompile(`<sequence\b[^>]*\bkey\s*=\s*"([^"]*)"`)
	refConfigKeyRe   = regexp.MustCompile(`\bconfigKey\s*=\s*"([^"]*)"`)
	refEndpointRe    = regexp.MustCompile(`<endpoint\b[^>]*\bkey\s*=\s*"([^"]*)"`)
	refCallTemplateRe = regexp.MustCompile(`<call-template\b[^>]*\btarget\s*=\s*"([^"]*)"`)
	refUseConfigRe   = regexp.MustCompile(`\buseConfig\s*=\s*"([^"]*)"`)
	refCallQueryRe   = regexp.MustCompile(`<call-query\b[^>]*\bhref\s*=\s*"([^"]*)"`)
)

// extractReferences scans raw chunk content for the six reference forms and
// returns qualified "type:name" strings in first-seen order, deduplicated.
func extractReferences(raw string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(kind string, matches [][]string) {
		for _, m := range matches {
			if len(m) < 2 || m[1] == "" {
				continue
			}
			ref := kind + ":" + m[1]
			if !seen[ref] {
				seen[ref] = true
				out = append(out, ref)
			}
		}
	}
	add("sequence", refSequenceRe.FindAllStringSubmatch(raw, -1))
	add("localEntry", refConfigKeyRe.FindAllStringSubmatch(raw, -1))
	add("endpoint", refEndpointRe.FindAllStringSubmatch(raw, -1))
	add("template", refCallTemplateRe.FindAllStringSubmatch(raw, -1))
	add("config", refUseConfigRe.FindAllStringSubmatch(raw, -1))
	add("query", refCallQueryRe.FindAllStringSubmatch(raw, -1))
	return out
}

// definitionChunkTypes are the chunk_type values that make a chunk a
// standalone artifact definition (§4.2.4).
var definitionChunkTypes = map[string]bool{
	"sequence": true, "localEntry": true, "endpoint": true, "template": true,
}

func isDefinitionChunkType(chunkType string) bool {
	return definitionChunkTypes[chunkType]
}

// sequenceKeyOf returns the name/key attribute used as a definition's
// sequence_key, empty if neither is present.
func sequenceKeyOf(attrs map[string]string) string {
	if v, ok := attrs["name"]; ok && v != "" {
		return v
	}
	if v, ok := attrs["key"]; ok && v != "" {
		return v
	}
	return ""
}

// formatMetadata flattens a context map into "Key: k=v k=v" fragments plus
// a trailing "Uses: ref1, ref2" fragment when refs is non-empty (§4.2.3).
func formatMetadata(ctx map[string]any, refs []string) string {
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var fragments []string
	for _, k := range keys {
		switch v := ctx[k].(type) {
		case map[string]string:
			fragments = append(fragments, formatAttrFragment(k, v))
		case map[string]any:
			fragments = append(fragments, formatAnyFragment(k, v))
		case string:
			fragments = append(fragments, fmt.Sprintf("%s: %s", k, v))
		}
	}
	if len(refs) > 0 {
		fragments = append(fragments, "Uses: "+strings.Join(refs, ", "))
	}
	return strings.Join(fragments, " ")
}

func formatAttrFragment(key string, attrs map[string]string) string {
	akeys := make([]string, 0, len(attrs))
	for a := range attrs {
		akeys = append(akeys, a)
	}
	sort.Strings(akeys)
	pairs := make([]string, 0, len(akeys))
	for _, a := range akeys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", a, attrs[a]))
	}
	return fmt.Sprintf("%s: %s", key, strings.Join(pairs, " "))
}

func formatAnyFragment(key string, m map[string]any) string {
	akeys := make([]string, 0, len(m))
	for a := range m {
		akeys = append(akeys, a)
	}
	sort.Strings(akeys)
	var pairs []string
	for _, a := range akeys {
		if s, ok := m[a].(string); ok && s == "" {
			continue
		}
		pairs = append(pairs, fmt.Sprintf("%v=%v", a, m[a]))
	}
	return fmt.Sprintf("%s: %s", key, strings.Join(pairs, " "))
}

var (
	attrQuoteRe  = regexp.MustCompile(`([\w:.\-]+)\s*=\s*"([^"]*)"`)
	verbatimTagRe = regexp.MustCompile(`(?s)<(format|args)\b[^>]*>(.*?)</(?:format|args)>`)
)

const maxCleanedTokenLen = 100

// cleanContent implements the cleaned_content half of §4.2.3: angle
// brackets stripped, attribute quotes dropped, JSON bodies of
// <format>/<args> preserved verbatim, remaining text token-filtered by
// length.
func cleanContent(raw string) string {
	placeholders := map[string]string{}
	protected := verbatimTagRe.ReplaceAllStringFunc(raw, func(m string) string {
		sub := verbatimTagRe.FindStringSubmatch(m)
		body := strings.TrimSpace(sub[2])
		if !strings.HasPrefix(body, "{") && !strings.HasPrefix(body, "[") {
			return m
		}
		key := fmt.Sprintf("\x00VERBATIM%d\x00", len(placeholders))
		placeholders[key] = body
		return " " + key + " "
	})

	noQuotes := attrQuoteRe.ReplaceAllString(protected, "$1=$2")
	noBrackets := strings.NewReplacer("<", " ", ">", " ", "/", " ").Replace(noQuotes)

	tokens := strings.Fields(noBrackets)
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if verbatim, ok := placeholders[tok]; ok {
			kept = append(kept, verbatim)
			continue
		}
		if len(tok) > maxCleanedTokenLen {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// buildEmbeddingText assembles the final embedding_text for a chunk.
func buildEmbeddingText(ctx map[string]any, refs []string, rawContent string) string {
	metadata := formatMetadata(ctx, refs)
	cleaned := cleanContent(rawContent)
	if metadata == "" {
		return cleaned
	}
	return metadata + " " + cleaned
}
