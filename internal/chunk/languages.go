package chunk

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageConfig describes how one language maps onto chunk types.
type LanguageConfig struct {
	Name       string
	Extensions []string

	// NodeTypes maps AST node types to the chunk type they produce.
	// Nodes absent from the map are not symbol boundaries.
	NodeTypes map[string]ChunkType

	// WrapperTypes are node types that are transparently unwrapped to
	// their children (export statements, decorated definitions).
	WrapperTypes map[string]bool

	// NameField is the tree-sitter field holding the symbol name.
	NameField string
}

// LanguageRegistry maps languages and file extensions to configurations
// and tree-sitter grammars.
type LanguageRegistry struct {
	mu          sync.RWMutex
	configs     map[string]*LanguageConfig
	extToLang   map[string]string
	tsLanguages map[string]*sitter.Language
}

var defaultRegistry = NewLanguageRegistry()

// DefaultRegistry returns the shared registry with all built-in languages.
func DefaultRegistry() *LanguageRegistry {
	return defaultRegistry
}

// NewLanguageRegistry creates a registry with the built-in languages.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs:     make(map[string]*LanguageConfig),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}
	r.registerGo()
	r.registerJavaScript()
	r.registerTypeScript()
	r.registerPython()
	r.registerRuby()
	return r
}

func (r *LanguageRegistry) register(cfg *LanguageConfig, lang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Name] = cfg
	r.tsLanguages[cfg.Name] = lang
	for _, ext := range cfg.Extensions {
		r.extToLang[ext] = cfg.Name
	}
}

func (r *LanguageRegistry) registerGo() {
	r.register(&LanguageConfig{
		Name:       "go",
		Extensions: []string{".go"},
		NodeTypes: map[string]ChunkType{
			"function_declaration": ChunkTypeFunction,
			"method_declaration":   ChunkTypeMethod,
			"type_declaration":     ChunkTypeType,
		},
		NameField: "name",
	}, golang.GetLanguage())
}

func (r *LanguageRegistry) registerJavaScript() {
	r.register(&LanguageConfig{
		Name:       "javascript",
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		NodeTypes: map[string]ChunkType{
			"function_declaration":           ChunkTypeFunction,
			"generator_function_declaration": ChunkTypeFunction,
			"method_definition":              ChunkTypeMethod,
			"class_declaration":              ChunkTypeClass,
		},
		WrapperTypes: map[string]bool{"export_statement": true},
		NameField:    "name",
	}, javascript.GetLanguage())
}

func (r *LanguageRegistry) registerTypeScript() {
	nodeTypes := map[string]ChunkType{
		"function_declaration":   ChunkTypeFunction,
		"method_definition":      ChunkTypeMethod,
		"class_declaration":      ChunkTypeClass,
		"interface_declaration":  ChunkTypeInterface,
		"type_alias_declaration": ChunkTypeType,
		"enum_declaration":       ChunkTypeType,
		"module":                 ChunkTypeModule,
	}
	wrappers := map[string]bool{"export_statement": true, "ambient_declaration": true}

	r.register(&LanguageConfig{
		Name:         "typescript",
		Extensions:   []string{".ts", ".mts", ".cts"},
		NodeTypes:    nodeTypes,
		WrapperTypes: wrappers,
		NameField:    "name",
	}, typescript.GetLanguage())

	r.register(&LanguageConfig{
		Name:         "tsx",
		Extensions:   []string{".tsx"},
		NodeTypes:    nodeTypes,
		WrapperTypes: wrappers,
		NameField:    "name",
	}, tsx.GetLanguage())
}

func (r *LanguageRegistry) registerPython() {
	r.register(&LanguageConfig{
		Name:       "python",
		Extensions: []string{".py"},
		NodeTypes: map[string]ChunkType{
			"function_definition": ChunkTypeFunction,
			"class_definition":    ChunkTypeClass,
		},
		WrapperTypes: map[string]bool{"decorated_definition": true},
		NameField:    "name",
	}, python.GetLanguage())
}

func (r *LanguageRegistry) registerRuby() {
	r.register(&LanguageConfig{
		Name:       "ruby",
		Extensions: []string{".rb"},
		NodeTypes: map[string]ChunkType{
			"method":           ChunkTypeMethod,
			"singleton_method": ChunkTypeMethod,
			"class":            ChunkTypeClass,
			"module":           ChunkTypeModule,
		},
		NameField: "name",
	}, ruby.GetLanguage())
}

// GetByName returns the configuration for a language name.
func (r *LanguageRegistry) GetByName(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[strings.ToLower(name)]
	return cfg, ok
}

// LanguageForExtension returns the language name for a file extension,
// or false if the extension is not in the table.
func (r *LanguageRegistry) LanguageForExtension(ext string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	lang, ok := r.extToLang[ext]
	return lang, ok
}

// TreeSitterLanguage returns the grammar for a language name.
func (r *LanguageRegistry) TreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.tsLanguages[strings.ToLower(name)]
	return lang, ok
}

// SupportedExtensions lists every registered extension.
func (r *LanguageRegistry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	return exts
}
