package types

// SemanticType classifies the architectural role of a chunk.
type SemanticType string

const (
	SemanticAPI           SemanticType = "api"
	SemanticSequence      SemanticType = "sequence"
	SemanticMediator      SemanticType = "mediator"
	SemanticConnector     SemanticType = "connector"
	SemanticPolicy        SemanticType = "policy"
	SemanticConfiguration SemanticType = "configuration"
	SemanticBoundary      SemanticType = "boundary"
	SemanticComponent     SemanticType = "component"
)

// SemanticIntent classifies the behavioral purpose of a chunk.
type SemanticIntent string

const (
	IntentValidation     SemanticIntent = "validation"
	IntentTransformation SemanticIntent = "transformation"
	IntentDelegation     SemanticIntent = "delegation"
	IntentResponse       SemanticIntent = "response"
	IntentLogging        SemanticIntent = "logging"
	IntentErrorHandling  SemanticIntent = "error-handling"
	IntentDataAccess     SemanticIntent = "data-access"
	IntentMediation      SemanticIntent = "mediation"
	IntentProcessing     SemanticIntent = "processing"
)

// Definition-eligible chunk types per §4.2.4.
const (
	ChunkTypeSequence   = "sequence"
	ChunkTypeLocalEntry = "localEntry"
	ChunkTypeEndpoint   = "endpoint"
	ChunkTypeTemplate   = "template"
)

// Context is the schema-agnostic structured map attached to a chunk (§4.2.2).
// Keys are local element names; values are either a nested attribute map
// (map[string]string), or the element's own local name when the element
// carries no attributes but sits on the traversal path. The "artifact"
// entry of a root context is a map[string]any (see ArtifactContext).
type Context map[string]any

// ArtifactContext describes the shape of the well-known "artifact" entry
// of a root context, built from ArtifactRegistry.detect_artifact/
// detect_any_artifact output. The chunker stores that entry as a
// map[string]any, not as this struct.
type ArtifactContext struct {
	Type       string            `json:"type"`
	Name       string            `json:"name"`
	Xmlns      string            `json:"xmlns,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// Chunk is the atomic unit of indexing and retrieval (§3).
type Chunk struct {
	ID            int64
	FilePath      string
	FileHash      string // SHA-256 hex of the source file content at chunking time
	ChunkIndex    int    // monotonically increasing per file, emission order
	StartLine     int    // inclusive, 1-based
	EndLine       int    // inclusive, 1-based
	ResourceName  string
	ResourceType  string
	ChunkType     string
	ParentChunkID *int64

	Embedding []float32 // decoded form; stored as raw bytes in the store

	ContentHash         string // SHA-256 hex over {xml_content, semantic_type, semantic_intent, context}
	SemanticType        SemanticType
	SemanticIntent      SemanticIntent
	Context             Context
	SequenceKey         *string // set iff this chunk IS a standalone artifact definition
	IsSequenceDefinition bool
	ReferencedSequences []string // qualified "type:name" references

	Timestamp     int64  // epoch milliseconds, last write
	EmbeddingText string // text actually fed to the embedder; mirrored into FTS
}

// Validate performs structural validation independent of the store.
func (c *Chunk) Validate() error {
	if c.FilePath == "" {
		return ErrEmptyContent
	}
	if c.StartLine <= 0 || c.EndLine <= 0 {
		return ErrInvalidRange
	}
	if c.StartLine > c.EndLine {
		return ErrInvalidRange
	}
	return nil
}

// Slot identifies a chunk's reconciliation key within a file (§3 Lifecycle,
// §4.6 Pipeline): (chunk_index, start_line, end_line).
type Slot struct {
	ChunkIndex int
	StartLine  int
	EndLine    int
}

// SlotOf returns the reconciliation slot for a chunk.
func SlotOf(c *Chunk) Slot {
	return Slot{ChunkIndex: c.ChunkIndex, StartLine: c.StartLine, EndLine: c.EndLine}
}

// SequenceReference is a directed edge caller_chunk -> callee_chunk labeled
// by sequence_key (§3). Deleting either endpoint cascades at the store layer.
type SequenceReference struct {
	ID             int64
	CallerChunkID  int64
	CalleeChunkID  int64
	SequenceKey    string
	Timestamp      int64
}
