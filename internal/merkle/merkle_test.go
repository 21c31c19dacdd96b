package merkle

import "testing"

func TestComputeChunkHash_DeterministicAcrossRuns(t *testing.T) {
	ctx := map[string]any{"sequence": map[string]string{"name": "Foo"}}
	h1 := ComputeChunkHash("<log/>", "mediator", "logging", ctx)
	h2 := ComputeChunkHash("<log/>", "mediator", "logging", ctx)
	if h1 != h2 {
		t.Fatalf("expected deterministic hash, got %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64-char hex SHA-256, got %d chars", len(h1))
	}
}

func TestComputeChunkHash_DifferentContentDifferentHash(t *testing.T) {
	ctx := map[string]any{}
	h1 := ComputeChunkHash("<log level=\"full\"/>", "mediator", "logging", ctx)
	h2 := ComputeChunkHash("<log level=\"simple\"/>", "mediator", "logging", ctx)
	if h1 == h2 {
		t.Fatalf("expected different content to hash differently")
	}
}

func TestComputeChunkHash_MapStringStringAndMapStringAnyAgree(t *testing.T) {
	a := map[string]any{"sequence": map[string]string{"name": "Foo"}}
	b := map[string]any{"sequence": map[string]any{"name": "Foo"}}
	if ComputeChunkHash("x", "t", "i", a) != ComputeChunkHash("x", "t", "i", b) {
		t.Fatalf("expected map[string]string and equivalent map[string]any context to hash identically")
	}
}

func TestBuildTreeAndFindChangedLeaves(t *testing.T) {
	leafHash := map[string]string{
		"a": "hash-a",
		"b": "hash-b",
		"c": "hash-c",
	}
	leaves := map[string][]string{
		"a": {"api:Orders", "resource:GET /orders", "leaf:0"},
		"b": {"api:Orders", "resource:GET /orders", "leaf:1"},
		"c": {"api:Orders", "resource:POST /orders", "leaf:0"},
	}
	oldTree := BuildTree(leaves, leafHash)

	// Change leaf "b" only.
	leafHash2 := map[string]string{
		"a": "hash-a",
		"b": "hash-b-CHANGED",
		"c": "hash-c",
	}
	newTree := BuildTree(leaves, leafHash2)

	changed := FindChangedLeaves(oldTree, newTree)
	if len(changed) != 1 {
		t.Fatalf("expected exactly one changed leaf, got %d: %v", len(changed), changed)
	}
	got := changed[0]
	want := []string{"api:Orders", "resource:GET /orders", "leaf:1"}
	if len(got) != len(want) {
		t.Fatalf("unexpected path length: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected path %v, want %v", got, want)
		}
	}
}

func TestFindChangedLeaves_NilOldTreeMeansAllChanged(t *testing.T) {
	leafHash := map[string]string{"a": "hash-a", "b": "hash-b"}
	leaves := map[string][]string{
		"a": {"api:Orders", "leaf:0"},
		"b": {"api:Orders", "leaf:1"},
	}
	newTree := BuildTree(leaves, leafHash)
	changed := FindChangedLeaves(nil, newTree)
	if len(changed) != 2 {
		t.Fatalf("expected all leaves changed when old tree is nil, got %d", len(changed))
	}
}

func TestFindChangedLeaves_DeletedLabelsAreIgnored(t *testing.T) {
	oldLeaves := map[string][]string{
		"a": {"api:Orders", "leaf:0"},
		"b": {"api:Orders", "leaf:1"},
	}
	oldTree := BuildTree(oldLeaves, map[string]string{"a": "h-a", "b": "h-b"})

	newLeaves := map[string][]string{
		"a": {"api:Orders", "leaf:0"},
	}
	newTree := BuildTree(newLeaves, map[string]string{"a": "h-a"})

	changed := FindChangedLeaves(oldTree, newTree)
	if len(changed) != 0 {
		t.Fatalf("expected no changes when only a leaf is removed, got %v", changed)
	}
}

func TestFindChangedLeaves_IdenticalTreesPruneEverything(t *testing.T) {
	leaves := map[string][]string{
		"a": {"api:Orders", "leaf:0"},
	}
	leafHash := map[string]string{"a": "h-a"}
	t1 := BuildTree(leaves, leafHash)
	t2 := BuildTree(leaves, leafHash)
	changed := FindChangedLeaves(t1, t2)
	if len(changed) != 0 {
		t.Fatalf("expected no changes for identical trees, got %v", changed)
	}
}
