package chunk

import (
	"regexp"
	"strings"
)

// Per-language import patterns. A line scan is enough here: the
// dependency list is search metadata, not a module graph, so partial
// recall on exotic import forms is acceptable.
var (
	goImportSingle = regexp.MustCompile(`^\s*import\s+(?:\w+\s+)?"([^"]+)"`)
	goImportGroup  = regexp.MustCompile(`^\s*(?:\w+\s+)?"([^"]+)"`)

	jsImportFrom = regexp.MustCompile(`(?:^|\s)(?:import|export)\b[^'"]*\bfrom\s+['"]([^'"]+)['"]`)
	jsImportBare = regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`)
	jsRequire    = regexp.MustCompile(`\brequire\(\s*['"]([^'"]+)['"]\s*\)`)

	pyImport     = regexp.MustCompile(`^\s*import\s+([\w.]+(?:\s*,\s*[\w.]+)*)`)
	pyFromImport = regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import\b`)

	rbRequire = regexp.MustCompile(`^\s*require(?:_relative)?\s+['"]([^'"]+)['"]`)
)

// ExtractDependencies scans source text for import statements and
// returns the referenced paths in order of first appearance, without
// duplicates.
func ExtractDependencies(source []byte, language string) []string {
	lines := strings.Split(string(source), "\n")

	var deps []string
	seen := make(map[string]bool)
	add := func(path string) {
		path = strings.TrimSpace(path)
		if path != "" && !seen[path] {
			seen[path] = true
			deps = append(deps, path)
		}
	}

	switch strings.ToLower(language) {
	case "go":
		extractGoImports(lines, add)
	case "javascript", "typescript", "tsx":
		for _, line := range lines {
			if m := jsImportFrom.FindStringSubmatch(line); m != nil {
				add(m[1])
			} else if m := jsImportBare.FindStringSubmatch(line); m != nil {
				add(m[1])
			}
			for _, m := range jsRequire.FindAllStringSubmatch(line, -1) {
				add(m[1])
			}
		}
	case "python":
		for _, line := range lines {
			if m := pyFromImport.FindStringSubmatch(line); m != nil {
				add(m[1])
			} else if m := pyImport.FindStringSubmatch(line); m != nil {
				for _, name := range strings.Split(m[1], ",") {
					add(name)
				}
			}
		}
	case "ruby":
		for _, line := range lines {
			if m := rbRequire.FindStringSubmatch(line); m != nil {
				add(m[1])
			}
		}
	}

	return deps
}

func extractGoImports(lines []string, add func(string)) {
	inBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case inBlock:
			if trimmed == ")" {
				inBlock = false
				continue
			}
			if m := goImportGroup.FindStringSubmatch(line); m != nil {
				add(m[1])
			}
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		default:
			if m := goImportSingle.FindStringSubmatch(line); m != nil {
				add(m[1])
			}
		}
	}
}
