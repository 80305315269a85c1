package chunk

import (
	"strings"
	"time"
)

// GranularityAST names the split-merge chunker in chunk metadata.
const GranularityAST = "ast-split-merge"

// FileContext carries per-file information into chunk metadata.
type FileContext struct {
	RelPath      string
	AbsPath      string
	Language     string
	LastModified time.Time
	Dependencies []string // import paths extracted from the file
}

// Chunker implements the split-then-merge algorithm: oversized nodes
// are subdivided depth-first, then small adjacent siblings are
// consolidated in a single left-to-right pass.
type Chunker struct {
	opts Options
}

// NewChunker creates a chunker. Zero-value options fall back to defaults.
func NewChunker(opts Options) *Chunker {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.MinTokens < 0 {
		opts.MinTokens = DefaultMinTokens
	}
	return &Chunker{opts: opts}
}

// Chunk turns a node tree into an ordered list of chunks. Output chunks
// are non-decreasing by start line; every chunk is either within the
// token budget or derived from an atomic node whose minimal line unit
// already exceeds it.
func (c *Chunker) Chunk(root *CodeNode, file FileContext) []*Chunk {
	if root == nil {
		return nil
	}

	pieces := c.split(root)
	if c.opts.MergeSiblings {
		pieces = c.merge(pieces)
	}

	chunks := make([]*Chunk, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, c.finalize(p, file))
	}
	return chunks
}

// piece is an intermediate chunk before IDs and metadata are attached.
type piece struct {
	chunkType  ChunkType
	symbolName string
	content    string
	startLine  int
	endLine    int
	startChar  int
	endChar    int
	tokens     int
}

// split walks the tree depth-first. A node within budget is emitted
// whole; an oversized node with children is replaced by its children;
// an oversized atomic leaf is cut into consecutive line groups.
func (c *Chunker) split(node *CodeNode) []piece {
	tokens := CountTokens(node.Content)

	if tokens <= c.opts.MaxTokens {
		return []piece{{
			chunkType:  node.Type,
			symbolName: node.Name,
			content:    node.Content,
			startLine:  node.StartLine,
			endLine:    node.EndLine,
			startChar:  node.StartChar,
			endChar:    node.EndChar,
			tokens:     tokens,
		}}
	}

	if len(node.Children) > 0 {
		var out []piece
		for _, child := range node.Children {
			out = append(out, c.split(child)...)
		}
		return out
	}

	return c.splitLines(node)
}

// splitLines cuts an atomic oversized leaf into consecutive line groups
// whose cumulative token count stays within budget. Each group carries
// the node's type and name. A single line that alone exceeds the budget
// is emitted as-is: it is line-indivisible.
func (c *Chunker) splitLines(node *CodeNode) []piece {
	lines := strings.Split(node.Content, "\n")

	var out []piece
	var group []string
	groupTokens := 0
	groupStart := 0 // line offset within node
	charOffset := node.StartChar

	flush := func(endOffset int) {
		if len(group) == 0 {
			return
		}
		content := strings.Join(group, "\n")
		out = append(out, piece{
			chunkType:  node.Type,
			symbolName: node.Name,
			content:    content,
			startLine:  node.StartLine + groupStart,
			endLine:    node.StartLine + endOffset,
			startChar:  charOffset,
			endChar:    charOffset + len(content),
			tokens:     groupTokens,
		})
		charOffset += len(content) + 1 // trailing newline
		group = nil
		groupTokens = 0
	}

	for i, line := range lines {
		lineTokens := CountTokens(line)
		if len(group) > 0 && groupTokens+lineTokens > c.opts.MaxTokens {
			flush(i - 1)
			groupStart = i
		}
		group = append(group, line)
		groupTokens += lineTokens
	}
	flush(len(lines) - 1)

	return out
}

// merge consolidates adjacent pieces in one left-to-right pass. A piece
// joins the current group when the combined tokens stay within budget
// and the line gap to the previous piece is at most MergeGapLines.
// Groups of one pass through unchanged.
func (c *Chunker) merge(pieces []piece) []piece {
	if len(pieces) < 2 {
		return pieces
	}

	var out []piece
	group := []piece{pieces[0]}
	groupTokens := pieces[0].tokens

	finalize := func() {
		if len(group) >= 2 {
			out = append(out, mergeGroup(group, groupTokens))
		} else {
			out = append(out, group[0])
		}
	}

	for _, next := range pieces[1:] {
		last := group[len(group)-1]
		if groupTokens+next.tokens <= c.opts.MaxTokens && next.startLine-last.endLine <= MergeGapLines {
			group = append(group, next)
			groupTokens += next.tokens
			continue
		}
		finalize()
		group = []piece{next}
		groupTokens = next.tokens
	}
	finalize()

	return out
}

// mergeGroup builds the merged piece: the span runs from the first
// member's start to the last member's end, contents are joined by a
// blank line, the chunk type is inherited from the first member and the
// symbol name is the comma-separated member names.
func mergeGroup(group []piece, tokens int) piece {
	contents := make([]string, len(group))
	var names []string
	for i, p := range group {
		contents[i] = p.content
		if p.symbolName != "" {
			names = append(names, p.symbolName)
		}
	}

	return piece{
		chunkType:  group[0].chunkType,
		symbolName: strings.Join(names, ","),
		content:    strings.Join(contents, "\n\n"),
		startLine:  group[0].startLine,
		endLine:    group[len(group)-1].endLine,
		startChar:  group[0].startChar,
		endChar:    group[len(group)-1].endChar,
		tokens:     tokens,
	}
}

// finalize attaches the ID and metadata to a piece.
func (c *Chunker) finalize(p piece, file FileContext) *Chunk {
	return &Chunk{
		ID:      ChunkID(file.RelPath, p.startLine, p.endLine),
		Content: p.content,
		Metadata: Metadata{
			FilePath:     file.RelPath,
			AbsolutePath: file.AbsPath,
			Language:     file.Language,
			StartLine:    p.startLine,
			EndLine:      p.endLine,
			StartChar:    p.startChar,
			EndChar:      p.endChar,
			ChunkType:    p.chunkType,
			Granularity:  GranularityAST,
			SymbolName:   p.symbolName,
			Keywords:     ExtractKeywords(p.content, MaxKeywords),
			Dependencies: file.Dependencies,
			TokenCount:   p.tokens,
			LastModified: file.LastModified,
		},
	}
}
