// Package config loads and validates Semantica configuration.
//
// User configuration lives at <project>/.semantica/config.json, with a
// YAML variant (.semantica.yaml at the project root) for people who
// prefer it. Values of the form ${NAME} are substituted from the
// environment before parsing, and the result is deep-merged over the
// built-in defaults: objects merge recursively, arrays replace.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	serrors "github.com/semantica-dev/semantica/internal/errors"
)

// ConfigFileName is the JSON config file under .semantica/.
const ConfigFileName = "config.json"

// YAMLConfigFileName is the YAML config variant at the project root.
const YAMLConfigFileName = ".semantica.yaml"

// DataDirName is the per-project state directory.
const DataDirName = ".semantica"

// Config is the root configuration object.
type Config struct {
	ProjectRoot string         `json:"projectRoot" yaml:"projectRoot"`
	Include     []string       `json:"include" yaml:"include"`
	Exclude     []string       `json:"exclude" yaml:"exclude"`
	MaxFileSize string         `json:"maxFileSize" yaml:"maxFileSize"`
	Chunker     ChunkerConfig  `json:"chunker" yaml:"chunker"`
	Embedding   EmbeddingConfig `json:"embedding" yaml:"embedding"`
	Store       StoreConfig    `json:"store" yaml:"store"`
	Search      SearchConfig   `json:"search" yaml:"search"`
	Logging     LoggingConfig  `json:"logging" yaml:"logging"`

	// maxFileSizeBytes caches the parsed MaxFileSize.
	maxFileSizeBytes int64
}

// ChunkerConfig controls the split-merge chunker.
type ChunkerConfig struct {
	MaxTokens     int  `json:"maxTokens" yaml:"maxTokens"`
	MinTokens     int  `json:"minTokens" yaml:"minTokens"`
	MergeSiblings bool `json:"mergeSiblings" yaml:"mergeSiblings"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider          string `json:"provider" yaml:"provider"` // "local" or "remote"
	Model             string `json:"model" yaml:"model"`
	Dimensions        int    `json:"dimensions" yaml:"dimensions"`
	BaseURL           string `json:"baseURL" yaml:"baseURL"`
	APIKey            string `json:"apiKey" yaml:"apiKey"`
	BatchSize         int    `json:"batchSize" yaml:"batchSize"`
	Concurrency       int    `json:"concurrency" yaml:"concurrency"`
	RequestTimeout    string `json:"requestTimeout" yaml:"requestTimeout"`
	RequestsPerMinute int    `json:"requestsPerMinute" yaml:"requestsPerMinute"`
}

// StoreConfig locates the vector store.
type StoreConfig struct {
	Host       string `json:"host" yaml:"host"`
	Port       int    `json:"port" yaml:"port"`
	Collection string `json:"collection" yaml:"collection"`
	UseTLS     bool   `json:"useTLS" yaml:"useTLS"`
	APIKey     string `json:"apiKey" yaml:"apiKey"`
}

// SearchConfig tunes the query path.
type SearchConfig struct {
	MaxResults   int     `json:"maxResults" yaml:"maxResults"`
	MinScore     float64 `json:"minScore" yaml:"minScore"`
	Strategy     string  `json:"strategy" yaml:"strategy"`         // "hybrid" or "vector"
	ResultFormat string  `json:"resultFormat" yaml:"resultFormat"` // "snippet", "context", "hybrid"
}

// LoggingConfig tunes the log output.
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
	File  string `json:"file" yaml:"file"`
}

// Default returns the built-in preset configuration for a project root.
func Default(projectRoot string) *Config {
	return &Config{
		ProjectRoot: projectRoot,
		Include:     []string{"**/*"},
		Exclude: []string{
			"**/node_modules/**", "**/vendor/**", "**/.git/**",
			"**/dist/**", "**/build/**", "**/.semantica/**",
		},
		MaxFileSize: "1MB",
		Chunker: ChunkerConfig{
			MaxTokens:     250,
			MinTokens:     30,
			MergeSiblings: true,
		},
		Embedding: EmbeddingConfig{
			Provider:          "local",
			Model:             "nomic-embed-text",
			Dimensions:        768,
			BaseURL:           "http://localhost:11434",
			BatchSize:         64,
			Concurrency:       4,
			RequestTimeout:    "60s",
			RequestsPerMinute: 0,
		},
		Store: StoreConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "semantica_chunks",
		},
		Search: SearchConfig{
			MaxResults:   10,
			MinScore:     0.7,
			Strategy:     "hybrid",
			ResultFormat: "hybrid",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration for a project, merging the user file (if any)
// over the defaults. Missing config files are not an error.
func Load(projectRoot string) (*Config, error) {
	base := Default(projectRoot)
	baseMap, err := toMap(base)
	if err != nil {
		return nil, serrors.Wrap(serrors.KindConfig, "encode defaults", err)
	}

	userMap, err := readUserConfig(projectRoot)
	if err != nil {
		return nil, err
	}
	if userMap != nil {
		baseMap = DeepMerge(baseMap, userMap)
	}

	merged, err := json.Marshal(baseMap)
	if err != nil {
		return nil, serrors.Wrap(serrors.KindConfig, "encode merged config", err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(merged, cfg); err != nil {
		return nil, serrors.Wrap(serrors.KindConfig, "decode merged config", err)
	}
	cfg.ProjectRoot = projectRoot

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readUserConfig loads the user config file as a generic map, applying
// environment substitution first. Returns nil when no file exists.
func readUserConfig(projectRoot string) (map[string]any, error) {
	jsonPath := filepath.Join(projectRoot, DataDirName, ConfigFileName)
	if raw, err := os.ReadFile(jsonPath); err == nil {
		raw = SubstituteEnv(raw)
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, serrors.Wrap(serrors.KindConfig, fmt.Sprintf("parse %s", jsonPath), err)
		}
		return m, nil
	}

	yamlPath := filepath.Join(projectRoot, YAMLConfigFileName)
	if raw, err := os.ReadFile(yamlPath); err == nil {
		raw = SubstituteEnv(raw)
		var m map[string]any
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return nil, serrors.Wrap(serrors.KindConfig, fmt.Sprintf("parse %s", yamlPath), err)
		}
		return normalizeYAML(m).(map[string]any), nil
	}

	return nil, nil
}

// Validate checks the configuration for errors that would otherwise
// surface mid-pipeline.
func (c *Config) Validate() error {
	size, err := ParseSize(c.MaxFileSize)
	if err != nil {
		return err
	}
	c.maxFileSizeBytes = size

	if c.Chunker.MaxTokens <= 0 {
		return serrors.New(serrors.KindConfig, "chunker.maxTokens must be positive")
	}
	if c.Chunker.MinTokens < 0 || c.Chunker.MinTokens > c.Chunker.MaxTokens {
		return serrors.New(serrors.KindConfig, "chunker.minTokens must be in [0, maxTokens]")
	}
	switch c.Embedding.Provider {
	case "local", "remote":
	default:
		return serrors.Newf(serrors.KindConfig, "unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.BatchSize <= 0 {
		return serrors.New(serrors.KindConfig, "embedding.batchSize must be positive")
	}
	if c.Embedding.Concurrency <= 0 {
		return serrors.New(serrors.KindConfig, "embedding.concurrency must be positive")
	}
	if _, err := time.ParseDuration(c.Embedding.RequestTimeout); err != nil {
		return serrors.Wrap(serrors.KindConfig, "embedding.requestTimeout", err)
	}
	if c.Search.MinScore < 0 || c.Search.MinScore > 1 {
		return serrors.New(serrors.KindConfig, "search.minScore must be in [0,1]")
	}
	return nil
}

// MaxFileSizeBytes returns the parsed maxFileSize. Validate must have run.
func (c *Config) MaxFileSizeBytes() int64 {
	return c.maxFileSizeBytes
}

// RequestTimeout returns the parsed embedding request timeout.
func (c *Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Embedding.RequestTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// DataDir returns the project state directory.
func (c *Config) DataDir() string {
	return filepath.Join(c.ProjectRoot, DataDirName)
}

// IgnoreFileName is the optional ignore file at the project root.
const IgnoreFileName = ".semanticaignore"

// IgnoreRules returns the lines of the project's ignore file, or nil
// when none exists.
func (c *Config) IgnoreRules() []string {
	raw, err := os.ReadFile(filepath.Join(c.ProjectRoot, IgnoreFileName))
	if err != nil {
		return nil
	}
	return strings.Split(string(raw), "\n")
}

// envPattern matches ${NAME} placeholders.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// SubstituteEnv replaces ${NAME} placeholders with environment values.
// Unset variables substitute to the empty string.
func SubstituteEnv(raw []byte) []byte {
	return envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// DeepMerge merges overlay into base: maps merge recursively, every
// other value (arrays included) replaces.
func DeepMerge(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		if bm, ok := out[k].(map[string]any); ok {
			if om, ok := v.(map[string]any); ok {
				out[k] = DeepMerge(bm, om)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// toMap round-trips a struct through JSON into a generic map.
func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// normalizeYAML converts map[any]any trees produced by YAML decoding
// into map[string]any so they merge with JSON-derived maps.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprintf("%v", k)] = normalizeYAML(val)
		}
		return m
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	default:
		return v
	}
}
