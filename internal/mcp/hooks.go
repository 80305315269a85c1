package mcp

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/semantica-dev/semantica/internal/config"
	"github.com/semantica-dev/semantica/internal/errors"
	"github.com/semantica-dev/semantica/internal/watcher"
)

// defaultHooks are installed when the caller does not name any.
var defaultHooks = []string{"post-commit", "post-merge", "post-checkout"}

// hookMarker identifies scripts this package wrote, so reinstalls
// overwrite only our own hooks.
const hookMarker = "# installed by semantica"

// hookScript writes the reindex trigger sentinel. The running server's
// watcher picks it up and schedules an incremental run.
const hookScript = `#!/bin/sh
%s
root="$(git rev-parse --show-toplevel)" || exit 0
dir="$root/%s"
mkdir -p "$dir"
printf '{"timestamp":"%%s","trigger":"%s"}\n' "$(date -u +%%Y-%%m-%%dT%%H:%%M:%%SZ)" > "$dir/%s"
`

// InstallGitHooks writes trigger-dropping hook scripts into
// .git/hooks. Existing hooks not written by this package are left
// alone and reported as skipped via the returned list omitting them.
func InstallGitHooks(projectRoot string, hooks []string) ([]string, error) {
	hooksDir := filepath.Join(projectRoot, ".git", "hooks")
	if info, err := os.Stat(filepath.Join(projectRoot, ".git")); err != nil || !info.IsDir() {
		return nil, errors.Newf(errors.KindFile, "%s is not a git repository", projectRoot)
	}
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.KindFile, "create hooks directory", err)
	}

	if len(hooks) == 0 {
		hooks = defaultHooks
	}

	var installed []string
	for _, hook := range hooks {
		path := filepath.Join(hooksDir, hook)

		if existing, err := os.ReadFile(path); err == nil {
			if !containsMarker(existing) {
				continue // foreign hook, do not clobber
			}
		}

		script := fmt.Sprintf(hookScript,
			hookMarker, config.DataDirName, hook, watcher.TriggerFileName)
		if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
			return installed, errors.Wrap(errors.KindFile, "write hook "+hook, err)
		}
		installed = append(installed, hook)
	}
	return installed, nil
}

func containsMarker(script []byte) bool {
	return bytes.Contains(script, []byte(hookMarker))
}
