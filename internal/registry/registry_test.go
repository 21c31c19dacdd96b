package registry

import "testing"

func TestNewRegistryHasTwelveBuiltins(t *testing.T) {
	r := New()
	if len(r.plugins) != 12 {
		t.Fatalf("expected 12 builtin plugins, got %d", len(r.plugins))
	}
}

func TestNamespacedAndLocalFormsBothMatch(t *testing.T) {
	r := New()
	if !r.IsResourceType("sequence") {
		t.Fatalf("expected sequence to be a resource type")
	}
	if !r.IsSemanticBoundary("then") {
		t.Fatalf("expected 'then' to be a semantic boundary")
	}
	if !r.IsSemanticBoundary("wsp:then") {
		t.Fatalf("expected namespaced form of 'then' to also match")
	}
}

// TestDefaultNamespaceURIFormReduces guards against a regression where
// localName split on the first colon. xmlparse.go's rawTagName renders a
// default-namespaced element (the common case for every synapse artifact,
// which declares xmlns="http://ws.apache.org/ns/synapse" with no prefix)
// as "http://ws.apache.org/ns/synapse:then" — encoding/xml resolves
// Name.Space to the full URI when there is no declared prefix. The URI
// itself contains colons, so only a last-colon split recovers "then".
func TestDefaultNamespaceURIFormReduces(t *testing.T) {
	r := New()
	const tag = "http://ws.apache.org/ns/synapse:then"
	if !r.IsSemanticBoundary(tag) {
		t.Fatalf("expected default-namespace-URI form of 'then' to match a semantic boundary")
	}
	if !r.IsMediator("http://ws.apache.org/ns/synapse:log") {
		t.Fatalf("expected default-namespace-URI form of 'log' to match a mediator")
	}
	if !r.IsResourceType("http://ws.apache.org/ns/synapse:sequence") {
		t.Fatalf("expected default-namespace-URI form of 'sequence' to match a resource type")
	}
}

func TestDetectArtifactUsesNameKeyContextFallback(t *testing.T) {
	r := New()
	_, meta, ok := r.DetectArtifact("endpoint", map[string]string{"key": "MyEndpoint"})
	if !ok {
		t.Fatalf("expected endpoint to be detected")
	}
	if meta.Name != "MyEndpoint" || meta.Type != "endpoint" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}

func TestDetectArtifactUnknownRoot(t *testing.T) {
	r := New()
	_, _, ok := r.DetectArtifact("notARealTag", nil)
	if ok {
		t.Fatalf("expected unknown root tag to not be detected")
	}
}

func TestDetectAnyArtifactFolderFallback(t *testing.T) {
	r := New()
	meta := r.DetectAnyArtifact("/project/src/main/synapse-config/sequences/Foo.xml", "notRegistered")
	if meta.Type != "sequence" || meta.Name != "Foo" {
		t.Fatalf("unexpected fallback metadata: %+v", meta)
	}
}

func TestDetectAnyArtifactUltimateFallback(t *testing.T) {
	r := New()
	meta := r.DetectAnyArtifact("/tmp/whatever.xml", "notRegistered")
	if meta.Type != "unknown" || meta.Name != "unknown" {
		t.Fatalf("expected unknown/unknown fallback, got %+v", meta)
	}
}

func TestRegisterExtendsAggregateSets(t *testing.T) {
	r := New()
	r.Register(Plugin{
		ID:                 "custom",
		RootTags:            []string{"customArtifact"},
		SemanticBoundaries:  []string{"customBoundary"},
		MediatorTags:        []string{"customMediator"},
		ExtractMetadata:     simpleMetadata("custom"),
	})
	if !r.IsResourceType("customArtifact") {
		t.Fatalf("expected custom artifact to be registered")
	}
	if !r.IsSemanticBoundary("customBoundary") {
		t.Fatalf("expected custom boundary to be registered")
	}
	if !r.IsMediator("customMediator") {
		t.Fatalf("expected custom mediator to be registered")
	}
}
