package search

import (
	"fmt"

	"github.com/dshills/xmlindex/pkg/types"
)

// renderHierarchy builds a result's xml_element_hierarchy (§4.7 Hierarchy
// rendering), omitting any level whose context entry is absent.
func renderHierarchy(c *types.Chunk) []string {
	var levels []string

	if artifactType, artifactName, ok := contextStrings(c.Context, "artifact", "type", "name"); ok {
		levels = append(levels, fmt.Sprintf("%s:%s", artifactType, artifactName))
	}

	// A synapse api <resource> element carries its own raw attribute names
	// ("methods", "uri-template"), not a camelCase rendering of them —
	// propagateContext (chunker/context.go) copies attrs verbatim into
	// context["resource"], so the lookup here must match the XML, not a
	// Go-style field name.
	if methods, uriTemplate, ok := contextStrings(c.Context, "resource", "methods", "uri-template"); ok {
		levels = append(levels, fmt.Sprintf("resource:%s %s", methods, uriTemplate))
	}

	if name, ok := contextString(c.Context, "sequence", "name"); ok {
		levels = append(levels, fmt.Sprintf("sequence:%s", name))
	}

	levels = append(levels, fmt.Sprintf("%s:%s", c.ChunkType, c.ResourceName))
	return levels
}

// contextEntry returns ctx[key] as a generic attribute map, handling both
// the map[string]string attribute maps the chunker attaches live and the
// map[string]any form (the live artifact entry, and every entry after a
// JSON round trip through the store).
func contextEntry(ctx types.Context, key string) (map[string]any, bool) {
	raw, ok := ctx[key]
	if !ok {
		return nil, false
	}
	switch v := raw.(type) {
	case map[string]any:
		return v, true
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func contextString(ctx types.Context, key, field string) (string, bool) {
	m, ok := contextEntry(ctx, key)
	if !ok {
		return "", false
	}
	v, ok := m[field].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func contextStrings(ctx types.Context, key, field1, field2 string) (string, string, bool) {
	m, ok := contextEntry(ctx, key)
	if !ok {
		return "", "", false
	}
	v1, ok1 := m[field1].(string)
	v2, ok2 := m[field2].(string)
	if !ok1 || !ok2 || v1 == "" || v2 == "" {
		return "", "", false
	}
	return v1, v2, true
}
