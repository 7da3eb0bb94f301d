package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkFile_Empty(t *testing.T) {
	c := NewChunker(100, 20)
	defer c.Close()

	chunks, err := c.ChunkFile("", "go")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkFile_SingleSmallFile(t *testing.T) {
	c := NewChunker(100, 20)
	defer c.Close()

	text := "line one\nline two\nline three"
	chunks, err := c.ChunkFile(text, "go")
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	got := chunks[0]
	assert.Equal(t, text, got.Text)
	assert.Equal(t, 0, got.ChunkIndex)
	assert.Equal(t, 1, got.TotalChunks)
	assert.Equal(t, 1, got.LineStart)
	assert.Equal(t, 3, got.LineEnd)
	assert.Equal(t, "go", got.FileExtension)
}

func TestChunkFile_MultipleWindowsWithOverlap(t *testing.T) {
	c := NewChunker(30, 10)
	defer c.Close()

	lines := []string{
		"aaaaaaaaaa", // 10 chars
		"bbbbbbbbbb", // 10 chars
		"cccccccccc", // 10 chars
		"dddddddddd", // 10 chars
		"eeeeeeeeee", // 10 chars
	}
	text := strings.Join(lines, "\n")

	chunks, err := c.ChunkFile(text, "txt")
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.ChunkIndex)
		assert.Equal(t, len(chunks), ch.TotalChunks)
		assert.LessOrEqual(t, ch.LineStart, ch.LineEnd)
	}

	// Every line boundary is respected: no chunk text contains a partial
	// line fragment that doesn't match one of the original lines.
	for _, ch := range chunks {
		for _, l := range strings.Split(ch.Text, "\n") {
			assert.Contains(t, lines, l)
		}
	}

	// Last chunk must reach the final line.
	last := chunks[len(chunks)-1]
	assert.Equal(t, len(lines), last.LineEnd)

	// Overlap: the second window starts at or before the first window's end.
	if len(chunks) > 1 {
		assert.LessOrEqual(t, chunks[1].LineStart, chunks[0].LineEnd)
	}
}

func TestChunkFile_LineLongerThanChunkSizeBecomesOwnChunk(t *testing.T) {
	c := NewChunker(10, 2)
	defer c.Close()

	longLine := strings.Repeat("x", 50)
	text := "short\n" + longLine + "\nshort2"

	chunks, err := c.ChunkFile(text, "go")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	found := false
	for _, ch := range chunks {
		if ch.Text == longLine {
			found = true
			assert.Equal(t, ch.LineStart, ch.LineEnd)
		}
	}
	assert.True(t, found, "expected the oversized line to appear as its own chunk")
}

func TestChunkFile_TrailingPartialWindowAlwaysEmitted(t *testing.T) {
	c := NewChunker(1000, 50)
	defer c.Close()

	text := "only one short line"
	chunks, err := c.ChunkFile(text, "md")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
}

func TestChunkFile_NonUTF8Fails(t *testing.T) {
	c := NewChunker(100, 20)
	defer c.Close()

	invalid := string([]byte{0xff, 0xfe, 0xfd})
	_, err := c.ChunkFile(invalid, "bin")
	require.Error(t, err)
}

func TestChunkFile_ChunkIndexAndTotalChunksConsistent(t *testing.T) {
	c := NewChunker(20, 5)
	defer c.Close()

	text := strings.Repeat("line\n", 40)
	chunks, err := c.ChunkFile(text, "go")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.ChunkIndex)
		assert.Equal(t, len(chunks), ch.TotalChunks)
	}
}

func TestDetectLanguage(t *testing.T) {
	lang, ok := DetectLanguage("go")
	assert.True(t, ok)
	assert.Equal(t, "go", lang)

	_, ok = DetectLanguage("unsupported-ext-xyz")
	assert.False(t, ok)
}
