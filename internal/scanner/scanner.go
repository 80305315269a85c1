package scanner

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/semantica-dev/semantica/internal/chunk"
	"github.com/semantica-dev/semantica/internal/errors"
)

// Scanner walks a project tree and produces File Records in
// deterministic lexical order.
type Scanner struct {
	opts    Options
	ignores []string
	logger  *slog.Logger
}

// New creates a scanner. Ignore rules are compiled to glob patterns up
// front so the walk only matches.
func New(opts Options, logger *slog.Logger) *Scanner {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Registry == nil {
		opts.Registry = chunk.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		opts:    opts,
		ignores: compileIgnoreRules(opts.IgnoreRules),
		logger:  logger,
	}
}

// Scan walks the root and returns the records for every indexable file.
// Ordering follows the lexical directory walk, so repeated scans of an
// unchanged tree return identical lists.
func (s *Scanner) Scan(ctx context.Context) ([]FileRecord, error) {
	absRoot, err := filepath.Abs(s.opts.Root)
	if err != nil {
		return nil, errors.Wrap(errors.KindFile, "resolve project root", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, errors.Wrap(errors.KindFile, "stat project root", err)
	}
	if !info.IsDir() {
		return nil, errors.Newf(errors.KindFile, "project root is not a directory: %s", absRoot)
	}

	var records []FileRecord

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if s.excluded(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}

		// Symbolic links are never followed.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if s.excluded(rel) {
			return nil
		}
		if len(s.opts.Include) > 0 && !matchAny(s.opts.Include, rel) {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(rel))
		language, ok := s.opts.Registry.LanguageForExtension(ext)
		if !ok {
			return nil // unsupported extension, silently skipped
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if fi.Size() > s.opts.MaxFileSize {
			s.logger.Warn("skipping oversized file",
				slog.String("path", rel),
				slog.Int64("size", fi.Size()),
				slog.Int64("maxFileSize", s.opts.MaxFileSize))
			return nil
		}

		records = append(records, FileRecord{
			AbsolutePath: path,
			RelativePath: rel,
			Extension:    ext,
			Language:     language,
			Size:         fi.Size(),
			LastModified: fi.ModTime(),
		})
		return nil
	})

	if walkErr != nil {
		if walkErr == context.Canceled || walkErr == context.DeadlineExceeded {
			return nil, walkErr
		}
		return nil, errors.Wrap(errors.KindFile, "walk project tree", walkErr)
	}

	s.logger.Debug("scan complete",
		slog.String("root", absRoot),
		slog.Int("files", len(records)))
	return records, nil
}

// excluded reports whether a relative path is removed by exclude
// patterns, default excludes, or ignore rules. Directory paths carry a
// trailing slash by convention; tree patterns like "**/x/**" match the
// bare directory too, which prunes the walk early.
func (s *Scanner) excluded(rel string) bool {
	probe := strings.TrimSuffix(rel, "/")
	return matchAny(s.opts.Exclude, probe) ||
		matchAny(defaultExcludes, probe) ||
		matchAny(s.ignores, probe)
}

func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, path); err == nil && ok {
			return true
		}
	}
	return false
}

// compileIgnoreRules turns gitignore-style lines into glob patterns.
// A bare name matches at any depth; a rule containing a slash anchors
// at the root; a trailing slash marks a directory tree.
func compileIgnoreRules(rules []string) []string {
	var out []string
	for _, rule := range rules {
		rule = strings.TrimSpace(rule)
		if rule == "" || strings.HasPrefix(rule, "#") {
			continue
		}

		dirOnly := strings.HasSuffix(rule, "/")
		rule = strings.Trim(rule, "/")
		if rule == "" {
			continue
		}

		anchored := strings.Contains(rule, "/")
		base := rule
		if !anchored {
			base = "**/" + rule
		}

		out = append(out, base)
		if dirOnly || !strings.Contains(rule, ".") {
			out = append(out, base+"/**")
		}
	}
	return out
}
