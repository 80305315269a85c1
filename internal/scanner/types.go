// Package scanner discovers indexable source files in a project,
// applying include/exclude globs, ignore-file rules, and size and
// language filters.
package scanner

import (
	"time"

	"github.com/semantica-dev/semantica/internal/chunk"
)

// FileRecord describes one discovered file. Only files whose extension
// maps to a supported language and whose size fits the limit become
// records.
type FileRecord struct {
	AbsolutePath string
	RelativePath string // slash-separated, relative to the project root
	Extension    string
	Language     string
	Size         int64
	LastModified time.Time
}

// Options configure a scan.
type Options struct {
	// Root is the project root directory.
	Root string

	// Include holds glob patterns selecting files to index. Empty means
	// everything not excluded.
	Include []string

	// Exclude holds glob patterns removing files from the result.
	// Exclusion beats inclusion.
	Exclude []string

	// IgnoreRules holds ignore-file lines (gitignore style) that
	// additionally exclude paths.
	IgnoreRules []string

	// MaxFileSize is the largest file size in bytes. Larger files are
	// skipped with a warning. Zero means DefaultMaxFileSize.
	MaxFileSize int64

	// Registry resolves extensions to languages. Nil uses the shared
	// default registry.
	Registry *chunk.LanguageRegistry
}

// DefaultMaxFileSize bounds file size when Options.MaxFileSize is zero.
const DefaultMaxFileSize = 1024 * 1024

// defaultExcludes are directory trees no project wants indexed.
var defaultExcludes = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/dist/**",
	"**/build/**",
	"**/__pycache__/**",
	"**/.semantica/**",
	"**/*.min.js",
}
