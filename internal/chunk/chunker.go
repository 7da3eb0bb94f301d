package chunk

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/jsbattig/code-indexer-sub023/internal/ierr"
)

// Chunker splits a file's text into fixed-size, line-bounded chunks with
// overlap, per the fixed-size/line-bounded chunking contract. Chunk
// boundaries snap to line boundaries: a window accumulates whole lines
// until adding the next line would exceed ChunkSize characters, at which
// point the window is emitted and the next window begins ChunkOverlap
// characters (rounded to a line boundary) before the previous window's end.
type Chunker struct {
	ChunkSize    int
	ChunkOverlap int

	extractor *contextExtractor
}

// NewChunker creates a Chunker with the given character budget and overlap.
// Zero values fall back to the package defaults.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}
	return &Chunker{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		extractor:    newContextExtractor(),
	}
}

// Close releases the chunker's tree-sitter resources.
func (c *Chunker) Close() {
	if c.extractor != nil {
		c.extractor.Close()
	}
}

// ChunkFile splits text into chunks. Empty files produce zero chunks.
// Non-UTF-8 input fails with a ChunkingFailed error.
func (c *Chunker) ChunkFile(text string, fileExtension string) ([]Chunk, error) {
	if !utf8.ValidString(text) {
		return nil, ierr.New(ierr.ChunkingFailed, "file content is not valid UTF-8", nil)
	}
	if len(text) == 0 {
		return nil, nil
	}

	lines := strings.Split(text, "\n")
	var chunks []Chunk

	i := 0
	for i < len(lines) {
		end := nextWindowEnd(lines, i, c.ChunkSize)
		chunks = append(chunks, Chunk{
			Text:          strings.Join(lines[i:end], "\n"),
			ChunkIndex:    len(chunks),
			LineStart:     i + 1,
			LineEnd:       end,
			FileExtension: strings.TrimPrefix(fileExtension, "."),
		})

		if end >= len(lines) {
			break
		}
		i = nextWindowStart(lines, i, end, c.ChunkOverlap)
	}

	for idx := range chunks {
		chunks[idx].TotalChunks = len(chunks)
	}
	return chunks, nil
}

// nextWindowEnd returns the exclusive end line index of the window
// starting at start, walking forward while the accumulated character
// length stays within chunkSize. A single line exceeding chunkSize is
// always emitted as its own chunk rather than split mid-line.
func nextWindowEnd(lines []string, start, chunkSize int) int {
	length := 0
	cur := start
	for cur < len(lines) {
		lineLen := len(lines[cur]) + 1 // +1 for the newline joining lines
		if cur > start && length+lineLen > chunkSize {
			break
		}
		length += lineLen
		cur++
		if cur == start+1 && lineLen-1 > chunkSize {
			// The first line alone already exceeds the budget: emit it
			// alone rather than looking for more lines to add.
			break
		}
	}
	if cur == start {
		cur = start + 1
	}
	return cur
}

// nextWindowStart computes where the next window should begin: walking
// backward from end, accumulating characters until at least overlap
// characters have been covered, snapped to the resulting line boundary.
// Always advances at least one line past start to guarantee progress.
func nextWindowStart(lines []string, start, end, overlap int) int {
	newStart := end
	covered := 0
	for newStart > start+1 && covered < overlap {
		newStart--
		covered += len(lines[newStart]) + 1
	}
	if newStart <= start {
		newStart = start + 1
	}
	return newStart
}

// DetectLanguage returns the language name registered for a file
// extension, if any. Used by callers that enrich chunk text with a
// language tag before embedding; unsupported extensions return ok=false.
func DetectLanguage(fileExtension string) (language string, ok bool) {
	cfg, found := DefaultRegistry().GetByExtension(fileExtension)
	if !found {
		return "", false
	}
	return cfg.Name, true
}

// LeadingContext returns the detected language and the leading context
// (package clause / import block) for source, using tree-sitter when the
// extension is supported. Both are empty for unsupported languages or
// parse failures; callers should treat this as best-effort enrichment,
// never a hard dependency for chunking to succeed.
func (c *Chunker) LeadingContext(ctx context.Context, source []byte, fileExtension string) (language, leadingContext string) {
	return c.extractor.Extract(ctx, source, fileExtension)
}
