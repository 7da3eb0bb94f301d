// Package chunk splits a file's text into fixed-size, line-bounded chunks.
package chunk

// Size defaults for fixed-size chunking.
const (
	// DefaultChunkSize is the maximum number of characters per chunk.
	DefaultChunkSize = 2000
	// DefaultChunkOverlap is the number of characters a new chunk's window
	// starts before the previous chunk's end.
	DefaultChunkOverlap = 200
)

// Chunk is the atomic indexed unit produced by the chunker.
type Chunk struct {
	Text          string // chunk text, snapped to line boundaries
	ChunkIndex    int    // 0-based within the file
	TotalChunks   int    // set on every emitted chunk
	LineStart     int    // 1-based inclusive
	LineEnd       int    // 1-based inclusive
	FileExtension string // e.g. "go", "py" (no leading dot)
	Language      string // detected language, empty if unknown
}

// Point represents a position in the source code.
type Point struct {
	Row    uint32 // 0-indexed line number
	Column uint32
}

// Node represents a node in a parsed AST.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Tree represents a parsed AST.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// LanguageConfig holds configuration for a supported language.
type LanguageConfig struct {
	Name       string
	Extensions []string

	FunctionTypes  []string
	ClassTypes     []string
	InterfaceTypes []string
	MethodTypes    []string
	TypeDefTypes   []string
	ConstantTypes  []string
	VariableTypes  []string
	NameField      string

	// ContextNodeTypes are top-level node types (package clause, imports)
	// that make up a file's leading context. Extract in context.go uses
	// its own per-language list and does not read this field.
	ContextNodeTypes []string
}
