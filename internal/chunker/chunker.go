// Package chunker implements the structure-aware XML chunker (C2): it
// parses an XML artifact file, walks the resulting tree with exclusive
// top-down, token-gated recursive descent, and emits an ordered list of
// context-rich, embedding-ready chunks.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/dshills/xmlindex/internal/merkle"
	"github.com/dshills/xmlindex/internal/registry"
	"github.com/dshills/xmlindex/pkg/types"
)

// TokenCounter estimates how many model tokens a string costs. The chunker
// treats the real tokenizer as an external collaborator (mirroring
// Embedder.countTokens); DefaultTokenCounter is a cheap stand-in used when
// none is supplied.
type TokenCounter interface {
	CountTokens(text string) int
}

// DefaultTokenCounter estimates tokens as roughly four characters per
// token, with a minimum of one for non-empty text.
type DefaultTokenCounter struct{}

func (DefaultTokenCounter) CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	n := len(text) / 4
	if n == 0 {
		return 1
	}
	return n
}

// DefaultMaxTokens is the token ceiling applied when a Chunker is
// constructed without an explicit override.
const DefaultMaxTokens = 512

// Chunker partitions XML artifact files into token-bounded chunks.
type Chunker struct {
	Registry  *registry.Registry
	Tokens    TokenCounter
	MaxTokens int
}

// New builds a Chunker. tc may be nil, in which case DefaultTokenCounter is
// used; maxTokens <= 0 falls back to DefaultMaxTokens.
func New(reg *registry.Registry, tc TokenCounter, maxTokens int) *Chunker {
	if tc == nil {
		tc = DefaultTokenCounter{}
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Chunker{Registry: reg, Tokens: tc, MaxTokens: maxTokens}
}

// walkState carries the values that are read-only across one ChunkFile call
// but would otherwise have to thread through every recursive call.
type walkState struct {
	path     string
	fileHash string
	li       *lineIndex
	lines    []string
	content  []byte
	rootMeta *registry.Metadata
}

// ChunkFile parses content (the file at path) and returns its ordered
// chunks, per §4.2.
func (c *Chunker) ChunkFile(path string, content []byte) ([]*types.Chunk, error) {
	doc, err := parseXML(content)
	if err != nil {
		return nil, err
	}
	if len(doc.Children) == 0 {
		return nil, nil
	}
	root := doc.Children[0]

	var rootMeta registry.Metadata
	if _, m, ok := c.Registry.DetectArtifact(root.Tag, root.Attrs); ok {
		rootMeta = m
	} else {
		rootMeta = c.Registry.DetectAnyArtifact(path, root.Tag)
	}

	st := &walkState{
		path:     path,
		fileHash: sha256Hex(content),
		li:       newLineIndex(content),
		lines:    splitLines(content),
		content:  content,
		rootMeta: &rootMeta,
	}

	rootCtx := map[string]any{
		"artifact": map[string]any{
			"type":  rootMeta.Type,
			"name":  rootMeta.Name,
			"xmlns": rootMeta.Xmlns,
		},
	}

	var out []*types.Chunk
	idx := 0
	c.walk(root, rootCtx, "", nil, st, &idx, &out)
	return out, nil
}

// walk implements one level of the recursive descent (§4.2 step 3).
func (c *Chunker) walk(n *node, parentCtx map[string]any, parentTag string, parentChunkID *int64, st *walkState, idx *int, out *[]*types.Chunk) {
	chunkable, ruleHit := isChunkable(c.Registry, n)
	bareConnectorText := parentTag != "" && strings.Contains(parentTag, ".") && hasOnlyBareText(n) && len(n.Children) == 0
	if bareConnectorText {
		chunkable, ruleHit = true, "connector-property-text"
	}

	if chunkable {
		rawContent, embeddingText, refs := c.renderChunk(n, parentCtx, st)
		if c.Tokens.CountTokens(embeddingText) <= c.MaxTokens || ruleHit == "connector-property-text" {
			chunk := c.emit(n, parentCtx, rawContent, embeddingText, refs, ruleHit, parentChunkID, st, idx)
			*out = append(*out, chunk)
			return
		}

		updatedCtx := propagateContext(c.Registry, n, parentCtx, st.rootMeta)
		before := len(*out)
		for _, child := range n.Children {
			c.walk(child, updatedCtx, n.Local, parentChunkID, st, idx, out)
		}
		if len(*out) == before {
			// Oversized leaf: recursion produced nothing, force-emit rather
			// than silently dropping this element.
			chunk := c.emit(n, parentCtx, rawContent, embeddingText, refs, ruleHit, parentChunkID, st, idx)
			*out = append(*out, chunk)
		}
		return
	}

	updatedCtx := propagateContext(c.Registry, n, parentCtx, st.rootMeta)
	for _, child := range n.Children {
		c.walk(child, updatedCtx, n.Local, parentChunkID, st, idx, out)
	}
}

// renderChunk computes the pieces needed both to measure and to finally
// emit a chunk for n, without mutating any shared state.
func (c *Chunker) renderChunk(n *node, parentCtx map[string]any, st *walkState) (rawContent, embeddingText string, refs []string) {
	startLine, endLine := resolveLineRange(st.li, n)
	startLine, endLine = expandForWrappers(st.lines, startLine, endLine)
	rawContent = joinLines(st.lines, startLine, endLine)
	refs = extractReferences(rawContent)
	embeddingText = buildEmbeddingText(parentCtx, refs, rawContent)
	return rawContent, embeddingText, refs
}

// emit finalizes a types.Chunk for n, assigning it the next chunk_index.
func (c *Chunker) emit(n *node, parentCtx map[string]any, rawContent, embeddingText string, refs []string, ruleHit string, parentChunkID *int64, st *walkState, idx *int) *types.Chunk {
	startLine, endLine := resolveLineRange(st.li, n)
	startLine, endLine = expandForWrappers(st.lines, startLine, endLine)

	chunkType := n.Local
	resourceName := sequenceKeyOf(n.Attrs)
	if resourceName == "" {
		if v, ok := n.Attrs["context"]; ok && v != "" {
			resourceName = v
		}
	}
	if resourceName == "" {
		resourceName = n.Local
	}

	semType := classifySemanticType(c.Registry, n, ruleHit)
	semIntent := classifySemanticIntent(n.Local)

	var sequenceKey *string
	isDefinition := isDefinitionChunkType(chunkType)
	if isDefinition {
		if k := sequenceKeyOf(n.Attrs); k != "" {
			sequenceKey = &k
		}
	}

	chunk := &types.Chunk{
		FilePath:             st.path,
		FileHash:             st.fileHash,
		ChunkIndex:           *idx,
		StartLine:            startLine,
		EndLine:              endLine,
		ResourceName:         resourceName,
		ResourceType:         st.rootMeta.Type,
		ChunkType:            chunkType,
		ParentChunkID:        parentChunkID,
		SemanticType:         semType,
		SemanticIntent:       semIntent,
		Context:              types.Context(cloneContext(parentCtx)),
		SequenceKey:          sequenceKey,
		IsSequenceDefinition: isDefinition,
		ReferencedSequences:  refs,
		EmbeddingText:        embeddingText,
	}
	chunk.ContentHash = merkle.ComputeChunkHash(rawContent, string(semType), string(semIntent), chunk.Context)
	*idx++
	return chunk
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// splitLines splits content into lines without the trailing newline,
// tolerating both LF and CRLF line endings.
func splitLines(content []byte) []string {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	return strings.Split(text, "\n")
}

// joinLines extracts the inclusive 1-based [start, end] line range.
func joinLines(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end || start > len(lines) {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}
