package chunk

import (
	"context"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/semantica-dev/semantica/internal/errors"
)

// TreeSitterParser parses source files into CodeNode trees using
// tree-sitter grammars. It is safe for concurrent use: each language
// keeps a pool of parsers so parallel pipeline workers do not contend
// on a single parser instance.
type TreeSitterParser struct {
	registry *LanguageRegistry

	mu    sync.Mutex
	pools map[string]*sync.Pool
}

var _ Parser = (*TreeSitterParser)(nil)

// NewTreeSitterParser creates a parser backed by the given registry.
// A nil registry uses the shared default.
func NewTreeSitterParser(registry *LanguageRegistry) *TreeSitterParser {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &TreeSitterParser{
		registry: registry,
		pools:    make(map[string]*sync.Pool),
	}
}

// Parse builds the node tree for one source file. The returned root is
// a file-level node spanning the whole source; its children are the
// symbol definitions found by the language's grammar, nested where the
// language nests them.
func (p *TreeSitterParser) Parse(ctx context.Context, source []byte, language string) (*CodeNode, error) {
	cfg, ok := p.registry.GetByName(language)
	if !ok {
		return nil, errors.Newf(errors.KindFile, "unsupported language: %s", language)
	}

	parser, err := p.acquire(language)
	if err != nil {
		return nil, err
	}
	defer p.release(language, parser)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, errors.Wrap(errors.KindFile, "parse source", err)
	}
	defer tree.Close()

	root := &CodeNode{
		Type:      ChunkTypeFile,
		Content:   string(source),
		StartLine: 1,
		EndLine:   countLines(source),
		StartChar: 0,
		EndChar:   len(source),
	}
	root.Children = p.collectSymbols(tree.RootNode(), source, cfg)
	return root, nil
}

// Close releases pooled parsers.
func (p *TreeSitterParser) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pools = make(map[string]*sync.Pool)
}

func (p *TreeSitterParser) acquire(language string) (*sitter.Parser, error) {
	p.mu.Lock()
	pool, ok := p.pools[language]
	if !ok {
		lang, found := p.registry.TreeSitterLanguage(language)
		if !found {
			p.mu.Unlock()
			return nil, errors.Newf(errors.KindFile, "no grammar for language: %s", language)
		}
		pool = &sync.Pool{New: func() any {
			parser := sitter.NewParser()
			parser.SetLanguage(lang)
			return parser
		}}
		p.pools[language] = pool
	}
	p.mu.Unlock()

	return pool.Get().(*sitter.Parser), nil
}

func (p *TreeSitterParser) release(language string, parser *sitter.Parser) {
	p.mu.Lock()
	pool, ok := p.pools[language]
	p.mu.Unlock()
	if ok {
		pool.Put(parser)
	}
}

// collectSymbols walks named children of node and converts the ones the
// language maps to chunk types. Wrapper nodes (export statements,
// decorators) are unwrapped in place; everything else is descended
// through so nested definitions are still found.
func (p *TreeSitterParser) collectSymbols(node *sitter.Node, source []byte, cfg *LanguageConfig) []*CodeNode {
	var out []*CodeNode

	count := int(node.NamedChildCount())
	for i := 0; i < count; i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}

		if cfg.WrapperTypes[child.Type()] {
			out = append(out, p.collectSymbols(child, source, cfg)...)
			continue
		}

		if chunkType, ok := cfg.NodeTypes[child.Type()]; ok {
			out = append(out, p.convertNode(child, source, cfg, chunkType))
			continue
		}

		// Non-symbol containers (blocks, bodies) may still hold
		// definitions. Leaf statements return nothing.
		out = append(out, p.collectSymbols(child, source, cfg)...)
	}

	return out
}

// convertNode turns one symbol node into a CodeNode, recursing into its
// body for nested definitions.
func (p *TreeSitterParser) convertNode(node *sitter.Node, source []byte, cfg *LanguageConfig, chunkType ChunkType) *CodeNode {
	out := &CodeNode{
		Type:      chunkType,
		Name:      symbolName(node, source, cfg),
		Content:   node.Content(source),
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		StartChar: int(node.StartByte()),
		EndChar:   int(node.EndByte()),
	}
	out.Children = p.collectSymbols(node, source, cfg)
	return out
}

// symbolName extracts the declared name from a node via the grammar's
// name field, falling back to the first identifier child.
func symbolName(node *sitter.Node, source []byte, cfg *LanguageConfig) string {
	if named := node.ChildByFieldName(cfg.NameField); named != nil {
		return named.Content(source)
	}

	count := int(node.NamedChildCount())
	for i := 0; i < count; i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		t := child.Type()
		if strings.Contains(t, "identifier") || t == "constant" || t == "type_spec" {
			if t == "type_spec" {
				return symbolName(child, source, cfg)
			}
			return child.Content(source)
		}
	}
	return ""
}

func countLines(source []byte) int {
	if len(source) == 0 {
		return 1
	}
	n := 1
	for _, b := range source {
		if b == '\n' {
			n++
		}
	}
	return n
}
