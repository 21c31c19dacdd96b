// Package registry implements the ArtifactRegistry (C1): classification of
// XML root tags and descendants into artifact types, semantic boundaries,
// mediators, and atomic tags.
//
// Modeled as a flat table of concrete Plugin records plus aggregate
// lookup sets rather than an inheritance hierarchy: a plugin is a plain
// record, and classification queries consult the aggregate sets directly.
// This mirrors the shape of a provider table keyed by string id,
// generalized from a single selected-by-name record to one consulted for
// every element in a tree.
package registry

import "strings"

// Metadata is the pure extraction result of a plugin's ExtractMetadata.
type Metadata struct {
	Type       string
	Name       string
	Xmlns      string
	Additional map[string]string
}

// Plugin classifies one artifact family (api, sequence, endpoint, ...).
type Plugin struct {
	ID                string
	RootTags          []string
	SemanticBoundaries []string
	MediatorTags      []string // optional
	AtomicTags        []string // optional

	// ExtractMetadata is pure: given the matched root tag and its
	// attributes, it returns the artifact's type/name/xmlns/additional
	// fields. It must not consult anything outside attrs.
	ExtractMetadata func(rootTag string, attrs map[string]string) Metadata
}

// Registry aggregates plugins and precomputed fast-lookup sets.
type Registry struct {
	plugins []Plugin

	boundaries map[string]bool
	mediators  map[string]bool
	atomics    map[string]bool
	rootIndex  map[string]*Plugin
}

// New builds a Registry pre-loaded with the twelve built-in plugins.
func New() *Registry {
	r := &Registry{
		boundaries: make(map[string]bool),
		mediators:  make(map[string]bool),
		atomics:    make(map[string]bool),
		rootIndex:  make(map[string]*Plugin),
	}
	for _, p := range builtinPlugins() {
		r.Register(p)
	}
	return r
}

// Register adds a plugin and folds its tags into the aggregate sets. Safe
// to call after New() to extend the registry with caller-supplied plugins.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	idx := len(r.plugins) - 1

	for _, t := range p.RootTags {
		r.rootIndex[localName(t)] = &r.plugins[idx]
		r.rootIndex[t] = &r.plugins[idx]
	}
	for _, t := range p.SemanticBoundaries {
		r.boundaries[localName(t)] = true
		r.boundaries[t] = true
	}
	for _, t := range p.MediatorTags {
		r.mediators[localName(t)] = true
		r.mediators[t] = true
	}
	for _, t := range p.AtomicTags {
		r.atomics[localName(t)] = true
		r.atomics[t] = true
	}
}

// localName strips a namespace prefix so every lookup accepts both
// namespaced and local forms. Reduces on the LAST colon, not the first:
// xmlparse.go's rawTagName renders a default-namespaced element's raw tag
// as "http://ws.apache.org/ns/synapse:sequence" (encoding/xml resolves
// Name.Space to the full URI when there is no declared prefix), and that
// URI itself contains colons ("http:", "//ws.apache.org..."). Splitting on
// the first colon would return "//ws.apache.org/ns/synapse:sequence"
// instead of "sequence". The last colon is always the prefix/URI
// separator, whether the raw tag is "wsp:Policy" or the synapse form above.
func localName(tag string) string {
	if i := strings.LastIndexByte(tag, ':'); i >= 0 {
		return tag[i+1:]
	}
	return tag
}

// IsSemanticBoundary reports whether tag (namespaced or local) is a
// registry-declared semantic boundary.
func (r *Registry) IsSemanticBoundary(tag string) bool {
	return r.boundaries[tag] || r.boundaries[localName(tag)]
}

// IsMediator reports whether tag is a registry-declared mediator tag.
func (r *Registry) IsMediator(tag string) bool {
	return r.mediators[tag] || r.mediators[localName(tag)]
}

// IsAtomic reports whether tag is a registry-declared atomic tag.
func (r *Registry) IsAtomic(tag string) bool {
	return r.atomics[tag] || r.atomics[localName(tag)]
}

// IsResourceType reports whether tag is a registered artifact root tag.
func (r *Registry) IsResourceType(tag string) bool {
	_, ok := r.rootIndex[tag]
	if ok {
		return true
	}
	_, ok = r.rootIndex[localName(tag)]
	return ok
}

// PluginForRoot returns the plugin that owns tag as a root tag, if any.
func (r *Registry) PluginForRoot(tag string) *Plugin {
	if p, ok := r.rootIndex[tag]; ok {
		return p
	}
	if p, ok := r.rootIndex[localName(tag)]; ok {
		return p
	}
	return nil
}

// DetectArtifact runs plugin detection against a parsed root element. attrs
// is the root element's attribute map; rootTag is its raw (possibly
// namespaced) tag name. Returns false if no plugin claims the root tag.
func (r *Registry) DetectArtifact(rootTag string, attrs map[string]string) (*Plugin, Metadata, bool) {
	p := r.PluginForRoot(rootTag)
	if p == nil {
		return nil, Metadata{}, false
	}
	return p, p.ExtractMetadata(rootTag, attrs), true
}

// folderFallback maps a containing directory name to an artifact type,
// used by DetectAnyArtifact when the registry does not recognize the root
// tag itself.
var folderFallback = map[string]string{
	"apis":           "api",
	"sequences":      "sequence",
	"endpoints":      "endpoint",
	"local-entries":  "localEntry",
	"data-services":  "dataService",
	"data-mappings":  "dataMapping",
	"proxy-services": "proxy",
	"inbound-endpoints": "inboundEndpoint",
	"templates":      "template",
	"tasks":          "task",
	"connectors":     "connector",
	"registry-resources": "registryResource",
}

// DetectAnyArtifact applies the folder-name fallback when DetectArtifact
// found nothing, and finally falls back to {type: unknown, name: unknown}.
func (r *Registry) DetectAnyArtifact(path, rootTag string) Metadata {
	for folder, artifactType := range folderFallback {
		if pathContainsDir(path, folder) {
			return Metadata{Type: artifactType, Name: baseNameWithoutExt(path)}
		}
	}
	return Metadata{Type: "unknown", Name: "unknown"}
}

func pathContainsDir(path, dir string) bool {
	norm := strings.ReplaceAll(path, "\\", "/")
	return strings.Contains(norm, "/"+dir+"/") || strings.HasPrefix(norm, dir+"/")
}

func baseNameWithoutExt(path string) string {
	norm := strings.ReplaceAll(path, "\\", "/")
	base := norm
	if i := strings.LastIndexByte(norm, '/'); i >= 0 {
		base = norm[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	if base == "" {
		return "unknown"
	}
	return base
}
