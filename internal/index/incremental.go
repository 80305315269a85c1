package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/semantica-dev/semantica/internal/errors"
	"github.com/semantica-dev/semantica/internal/ledger"
	"github.com/semantica-dev/semantica/internal/scanner"
)

// ReindexOptions tune an incremental run.
type ReindexOptions struct {
	// SpecificFiles, when set, are treated as the modified set instead
	// of diffing the ledger. Paths may be absolute or project-relative.
	SpecificFiles []string

	// Force kills a live lock holder instead of failing with busy.
	Force bool
}

// ReindexChangedFiles runs the incremental pipeline: compute the
// change set, drop chunks of deleted and modified files, reindex added
// and modified files, then commit the ledger. The ledger is committed
// only after the store writes, so a crash mid-run replays the same
// diff next time.
func (p *Pipeline) ReindexChangedFiles(ctx context.Context, opts ReindexOptions, onProgress ProgressFunc) (*IncrementalResult, error) {
	start := time.Now()

	acquired, err := p.lock.Acquire("reindex")
	if err != nil {
		return nil, err
	}
	if !acquired {
		if !opts.Force {
			return nil, errors.New(errors.KindBusy, "another indexing operation is running")
		}
		if err := p.lock.KillLockedProcess(); err != nil {
			return nil, err
		}
		acquired, err = p.lock.Acquire("reindex")
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, errors.New(errors.KindBusy, "lock holder would not yield")
		}
	}
	defer func() { _ = p.lock.Release() }()

	records, err := p.discover(ctx)
	if err != nil {
		return nil, err
	}

	byAbs := make(map[string]scanner.FileRecord, len(records))
	currentPaths := make([]string, 0, len(records))
	for _, rec := range records {
		byAbs[rec.AbsolutePath] = rec
		currentPaths = append(currentPaths, rec.AbsolutePath)
	}

	changes, err := p.resolveChanges(opts.SpecificFiles, currentPaths)
	if err != nil {
		return nil, err
	}

	result := &IncrementalResult{
		Added:    changes.Added,
		Modified: changes.Modified,
		Deleted:  changes.Deleted,
		Errors:   make(map[string]string),
	}

	if changes.Empty() {
		result.Success = true
		result.Duration = time.Since(start)
		p.logger.Info("no changes to reindex")
		return result, nil
	}

	provider, err := p.newProvider()
	if err != nil {
		return nil, err
	}
	defer func() { _ = provider.Close() }()

	// Old chunks of deleted and modified files are dropped first so a
	// modified file never keeps rows from its previous shape.
	collection := p.cfg.Store.Collection
	exists, err := p.store.CollectionExists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if exists {
		for _, abs := range append(append([]string{}, changes.Deleted...), changes.Modified...) {
			rel := p.relPath(abs)
			if err := p.store.DeleteByFilePath(ctx, collection, rel); err != nil {
				result.Errors["delete-"+rel] = err.Error()
			}
		}
	}

	// Reindex added and modified files that still exist.
	var toIndex []scanner.FileRecord
	for _, abs := range append(append([]string{}, changes.Added...), changes.Modified...) {
		if rec, ok := byAbs[abs]; ok {
			toIndex = append(toIndex, rec)
		} else {
			result.Errors[p.relPath(abs)] = "file not found during reindex"
		}
	}

	chunks := p.parseAndChunk(ctx, toIndex, result.Errors, onProgress)
	result.TotalChunks = len(chunks)
	result.EmbeddedChunks, err = p.embedChunks(ctx, provider, chunks, result.Errors, onProgress)
	if err != nil {
		return nil, err
	}

	stored, err := p.storeChunks(ctx, provider.Dimensions(), withEmbeddings(chunks), result.Errors, onProgress)
	if err != nil {
		return nil, err
	}
	result.StoredChunks = stored

	result.Success = succeeded(result.EmbeddedChunks, result.TotalChunks)
	result.Duration = time.Since(start)

	if result.Success {
		if err := p.ledger.Commit(currentPaths); err != nil {
			p.logger.Warn("ledger commit failed", slog.String("error", err.Error()))
			result.Errors["ledger"] = err.Error()
		}
	}

	p.logger.Info("incremental reindex finished",
		slog.Bool("success", result.Success),
		slog.Int("added", len(result.Added)),
		slog.Int("modified", len(result.Modified)),
		slog.Int("deleted", len(result.Deleted)),
		slog.Int("chunks", result.TotalChunks),
		slog.Duration("duration", result.Duration))
	return result, nil
}

// resolveChanges picks between an explicit file list and a ledger diff.
func (p *Pipeline) resolveChanges(specificFiles, currentPaths []string) (ledger.Changes, error) {
	if len(specificFiles) > 0 {
		modified := make([]string, 0, len(specificFiles))
		for _, f := range specificFiles {
			if !filepath.IsAbs(f) {
				f = filepath.Join(p.cfg.ProjectRoot, f)
			}
			modified = append(modified, f)
		}
		return ledger.Changes{Modified: modified}, nil
	}
	return p.ledger.Diff(currentPaths)
}

// relPath converts an absolute path to the project-relative form the
// store indexes by.
func (p *Pipeline) relPath(abs string) string {
	rel, err := filepath.Rel(p.cfg.ProjectRoot, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}
