package chunk

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFile() FileContext {
	return FileContext{
		RelPath:      "src/app.go",
		AbsPath:      "/project/src/app.go",
		Language:     "go",
		LastModified: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestChunkWithinBudget(t *testing.T) {
	root := &CodeNode{
		Type:      ChunkTypeFunction,
		Name:      "hello",
		Content:   "alpha beta gamma",
		StartLine: 1,
		EndLine:   1,
		EndChar:   16,
	}

	c := NewChunker(Options{MaxTokens: 50, MergeSiblings: true})
	chunks := c.Chunk(root, testFile())

	require.Len(t, chunks, 1)
	assert.Equal(t, "alpha beta gamma", chunks[0].Content)
	assert.Equal(t, ChunkTypeFunction, chunks[0].Metadata.ChunkType)
	assert.Equal(t, "hello", chunks[0].Metadata.SymbolName)
	assert.Equal(t, 1, chunks[0].Metadata.StartLine)
	assert.Equal(t, GranularityAST, chunks[0].Metadata.Granularity)
	assert.Equal(t, "src/app.go", chunks[0].Metadata.FilePath)
}

func TestSplitOversizedNodeIntoChildren(t *testing.T) {
	root := &CodeNode{
		Type:      ChunkTypeFile,
		Content:   "alpha beta one two\nfiller\ngamma delta three four",
		StartLine: 1,
		EndLine:   3,
		Children: []*CodeNode{
			{Type: ChunkTypeFunction, Name: "one", Content: "alpha beta one two", StartLine: 1, EndLine: 1},
			{Type: ChunkTypeFunction, Name: "two", Content: "gamma delta three four", StartLine: 3, EndLine: 3},
		},
	}

	c := NewChunker(Options{MaxTokens: 5, MergeSiblings: false})
	chunks := c.Chunk(root, testFile())

	require.Len(t, chunks, 2)
	assert.Equal(t, "one", chunks[0].Metadata.SymbolName)
	assert.Equal(t, "two", chunks[1].Metadata.SymbolName)
}

func TestSplitAtomicLeafByLines(t *testing.T) {
	root := &CodeNode{
		Type:      ChunkTypeBlock,
		Content:   "w1 w2 w3\nw4 w5 w6\nw7 w8 w9\nw10 w11 w12",
		StartLine: 10,
		EndLine:   13,
	}

	c := NewChunker(Options{MaxTokens: 5, MergeSiblings: false})
	chunks := c.Chunk(root, testFile())

	// Two 3-token lines exceed the 5-token budget, so every line stands
	// alone.
	require.Len(t, chunks, 4)
	for i, ch := range chunks {
		assert.LessOrEqual(t, ch.Metadata.TokenCount, 5)
		assert.Equal(t, 10+i, ch.Metadata.StartLine)
		assert.Equal(t, 10+i, ch.Metadata.EndLine)
		assert.Equal(t, ChunkTypeBlock, ch.Metadata.ChunkType)
	}
}

func TestSplitGroupsConsecutiveLines(t *testing.T) {
	root := &CodeNode{
		Type:      ChunkTypeBlock,
		Content:   "w1 w2\nw3 w4\nw5 w6\nw7 w8",
		StartLine: 1,
		EndLine:   4,
	}

	c := NewChunker(Options{MaxTokens: 4, MergeSiblings: false})
	chunks := c.Chunk(root, testFile())

	require.Len(t, chunks, 2)
	assert.Equal(t, "w1 w2\nw3 w4", chunks[0].Content)
	assert.Equal(t, 1, chunks[0].Metadata.StartLine)
	assert.Equal(t, 2, chunks[0].Metadata.EndLine)
	assert.Equal(t, "w5 w6\nw7 w8", chunks[1].Content)
	assert.Equal(t, 3, chunks[1].Metadata.StartLine)
	assert.Equal(t, 4, chunks[1].Metadata.EndLine)
}

func TestOversizedSingleLineEmittedAlone(t *testing.T) {
	root := &CodeNode{
		Type:      ChunkTypeBlock,
		Content:   "w1 w2 w3 w4 w5 w6 w7 w8 w9 w10",
		StartLine: 1,
		EndLine:   1,
	}

	c := NewChunker(Options{MaxTokens: 5, MergeSiblings: false})
	chunks := c.Chunk(root, testFile())

	require.Len(t, chunks, 1)
	assert.Equal(t, root.Content, chunks[0].Content)
}

func TestMergeAdjacentSiblings(t *testing.T) {
	root := &CodeNode{
		Type:      ChunkTypeFile,
		Content:   "alpha beta\nfiller one two\ngamma delta extra words here",
		StartLine: 1,
		EndLine:   5,
		Children: []*CodeNode{
			{Type: ChunkTypeFunction, Name: "one", Content: "alpha beta", StartLine: 1, EndLine: 2},
			{Type: ChunkTypeType, Name: "two", Content: "gamma delta", StartLine: 4, EndLine: 5},
		},
	}

	c := NewChunker(Options{MaxTokens: 5, MergeSiblings: true})
	chunks := c.Chunk(root, testFile())

	require.Len(t, chunks, 1)
	merged := chunks[0]
	assert.Equal(t, "alpha beta\n\ngamma delta", merged.Content)
	assert.Equal(t, ChunkTypeFunction, merged.Metadata.ChunkType) // first member wins
	assert.Equal(t, "one,two", merged.Metadata.SymbolName)
	assert.Equal(t, 1, merged.Metadata.StartLine)
	assert.Equal(t, 5, merged.Metadata.EndLine)
}

func TestMergeStopsAtLineGap(t *testing.T) {
	root := &CodeNode{
		Type:      ChunkTypeFile,
		Content:   "alpha beta\nfiller one two three\ngamma delta",
		StartLine: 1,
		EndLine:   7,
		Children: []*CodeNode{
			{Type: ChunkTypeFunction, Name: "one", Content: "alpha beta", StartLine: 1, EndLine: 2},
			{Type: ChunkTypeFunction, Name: "two", Content: "gamma delta", StartLine: 7, EndLine: 7},
		},
	}

	c := NewChunker(Options{MaxTokens: 5, MergeSiblings: true})
	chunks := c.Chunk(root, testFile())

	// Gap of 5 lines exceeds the merge threshold.
	require.Len(t, chunks, 2)
	assert.Equal(t, "one", chunks[0].Metadata.SymbolName)
	assert.Equal(t, "two", chunks[1].Metadata.SymbolName)
}

func TestMergeStopsAtTokenBudget(t *testing.T) {
	root := &CodeNode{
		Type:      ChunkTypeFile,
		Content:   "alpha beta gamma\nfiller here\ndelta epsilon zeta",
		StartLine: 1,
		EndLine:   3,
		Children: []*CodeNode{
			{Type: ChunkTypeFunction, Name: "one", Content: "alpha beta gamma", StartLine: 1, EndLine: 1},
			{Type: ChunkTypeFunction, Name: "two", Content: "delta epsilon zeta", StartLine: 3, EndLine: 3},
		},
	}

	c := NewChunker(Options{MaxTokens: 5, MergeSiblings: true})
	chunks := c.Chunk(root, testFile())

	require.Len(t, chunks, 2)
}

func TestChunkStartLinesMonotone(t *testing.T) {
	root := &CodeNode{
		Type:      ChunkTypeFile,
		Content:   "a b c d e f g h i j k l m n o p q r s t",
		StartLine: 1,
		EndLine:   9,
		Children: []*CodeNode{
			{Type: ChunkTypeFunction, Name: "a", Content: "w1 w2 w3", StartLine: 1, EndLine: 1},
			{Type: ChunkTypeFunction, Name: "b", Content: "w4 w5 w6", StartLine: 3, EndLine: 3},
			{Type: ChunkTypeFunction, Name: "c", Content: "w7 w8 w9", StartLine: 5, EndLine: 5},
			{Type: ChunkTypeFunction, Name: "d", Content: "w10 w11 w12", StartLine: 9, EndLine: 9},
		},
	}

	c := NewChunker(Options{MaxTokens: 6, MergeSiblings: true})
	chunks := c.Chunk(root, testFile())

	require.NotEmpty(t, chunks)
	for i := 1; i < len(chunks); i++ {
		assert.GreaterOrEqual(t, chunks[i].Metadata.StartLine, chunks[i-1].Metadata.StartLine)
	}
}

func TestChunkNilRoot(t *testing.T) {
	c := NewChunker(DefaultOptions())
	assert.Nil(t, c.Chunk(nil, testFile()))
}

func TestChunkIDDeterministic(t *testing.T) {
	a := ChunkID("src/app.go", 10, 20)
	b := ChunkID("src/app.go", 10, 20)
	assert.Equal(t, a, b)

	_, err := uuid.Parse(a)
	require.NoError(t, err)

	assert.NotEqual(t, a, ChunkID("src/other.go", 10, 20))
	assert.NotEqual(t, a, ChunkID("src/app.go", 10, 21))
}

func TestChunkIDsStableAcrossRuns(t *testing.T) {
	root := &CodeNode{
		Type:      ChunkTypeFunction,
		Name:      "hello",
		Content:   "alpha beta",
		StartLine: 3,
		EndLine:   4,
	}
	c := NewChunker(DefaultOptions())

	first := c.Chunk(root, testFile())
	second := c.Chunk(root, testFile())
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
}
