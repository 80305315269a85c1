package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/semantica-dev/semantica/internal/async"
	"github.com/semantica-dev/semantica/internal/config"
	"github.com/semantica-dev/semantica/internal/errors"
	"github.com/semantica-dev/semantica/internal/index"
	"github.com/semantica-dev/semantica/internal/ledger"
	"github.com/semantica-dev/semantica/internal/lock"
	"github.com/semantica-dev/semantica/internal/preflight"
	"github.com/semantica-dev/semantica/internal/search"
	"github.com/semantica-dev/semantica/internal/store"
	"github.com/semantica-dev/semantica/internal/watcher"
)

// IndexCodebaseInput starts a full indexing run.
type IndexCodebaseInput struct {
	Path       string `json:"path,omitempty" jsonschema:"project root, defaults to the server's project"`
	Background *bool  `json:"background,omitempty" jsonschema:"run in the background and return a job id, default true"`
}

// IndexCodebaseOutput carries either a job id (background) or the
// finished result (foreground), always with the pre-flight estimate.
type IndexCodebaseOutput struct {
	JobID    string                `json:"jobId,omitempty"`
	Estimate *preflight.Estimate   `json:"estimate,omitempty"`
	Result   *index.IndexingResult `json:"result,omitempty"`
}

func (s *Server) handleIndexCodebase(ctx context.Context, req *mcp.CallToolRequest, input IndexCodebaseInput) (*mcp.CallToolResult, IndexCodebaseOutput, error) {
	if err := s.checkPath(input.Path); err != nil {
		return nil, IndexCodebaseOutput{}, err
	}

	out := IndexCodebaseOutput{}
	if s.estimate != nil {
		est, err := s.estimate.Run(ctx)
		if err != nil {
			return nil, IndexCodebaseOutput{}, err
		}
		out.Estimate = est
	}

	background := input.Background == nil || *input.Background
	if !background {
		result, err := s.indexer.IndexCodebase(ctx, nil)
		if err != nil {
			return nil, IndexCodebaseOutput{}, err
		}
		out.Result = result
		return nil, out, nil
	}

	jobID := async.NewJobID(async.KindIndexing)
	if _, err := s.registry.StartJob(jobID, async.KindIndexing); err != nil {
		return nil, IndexCodebaseOutput{}, err
	}

	// The job outlives the tool call, so it detaches from the request
	// context. Cleanup after every terminal job keeps the registry
	// bounded in a long-lived server.
	go func() {
		defer s.registry.Cleanup()

		result, err := s.indexer.IndexCodebase(context.Background(), func(p index.Progress) {
			s.registry.UpdateProgress(jobID, p.Phase, p.Current, p.Total)
		})
		if err != nil {
			_ = s.registry.FailJob(jobID, err)
			s.logger.Error("background indexing failed",
				slog.String("jobId", jobID),
				slog.String("error", err.Error()))
			return
		}
		_ = s.registry.CompleteJob(jobID, result)
	}()

	out.JobID = jobID
	return nil, out, nil
}

// SearchCodeInput is one query.
type SearchCodeInput struct {
	Query       string  `json:"query" jsonschema:"the search query"`
	MaxResults  int     `json:"maxResults,omitempty" jsonschema:"maximum results, default from config"`
	MinScore    float64 `json:"minScore,omitempty" jsonschema:"minimum similarity in [0,1], default from config"`
	Language    string  `json:"language,omitempty" jsonschema:"restrict to one language (go, typescript, python, ...)"`
	PathPattern string  `json:"pathPattern,omitempty" jsonschema:"case-insensitive regex on file paths"`
	Path        string  `json:"path,omitempty" jsonschema:"project root, defaults to the server's project"`
}

// SearchCodeOutput is the ranked result list.
type SearchCodeOutput struct {
	Results []search.Result `json:"results"`
	Total   int             `json:"total"`
}

func (s *Server) handleSearchCode(ctx context.Context, req *mcp.CallToolRequest, input SearchCodeInput) (*mcp.CallToolResult, SearchCodeOutput, error) {
	if err := s.checkPath(input.Path); err != nil {
		return nil, SearchCodeOutput{}, err
	}
	if input.Query == "" {
		return nil, SearchCodeOutput{}, errors.New(errors.KindSearch, "query is required")
	}

	results, err := s.searcher.Search(ctx, input.Query, search.Options{
		MaxResults:  input.MaxResults,
		MinScore:    input.MinScore,
		Language:    input.Language,
		PathPattern: input.PathPattern,
	})
	if err != nil {
		return nil, SearchCodeOutput{}, err
	}
	if results == nil {
		results = []search.Result{}
	}
	return nil, SearchCodeOutput{Results: results, Total: len(results)}, nil
}

// GetIndexStatusInput selects the project.
type GetIndexStatusInput struct {
	Path string `json:"path,omitempty" jsonschema:"project root, defaults to the server's project"`
}

// GetIndexStatusOutput reports a running job or the collection stats.
type GetIndexStatusOutput struct {
	Indexing   *async.JobRecord `json:"indexing,omitempty"`
	Collection string           `json:"collection"`
	Stats      *store.Stats     `json:"stats,omitempty"`
}

func (s *Server) handleGetIndexStatus(ctx context.Context, req *mcp.CallToolRequest, input GetIndexStatusInput) (*mcp.CallToolResult, GetIndexStatusOutput, error) {
	if err := s.checkPath(input.Path); err != nil {
		return nil, GetIndexStatusOutput{}, err
	}

	out := GetIndexStatusOutput{Collection: s.cfg.Store.Collection}

	if job := s.registry.GetCurrentIndexingJob(); job != nil && job.Running() {
		out.Indexing = job
		return nil, out, nil
	}

	exists, err := s.store.CollectionExists(ctx, s.cfg.Store.Collection)
	if err != nil {
		return nil, GetIndexStatusOutput{}, err
	}
	if exists {
		stats, err := s.store.GetStats(ctx, s.cfg.Store.Collection)
		if err != nil {
			return nil, GetIndexStatusOutput{}, err
		}
		out.Stats = &stats
	}
	return nil, out, nil
}

// ReindexChangedFilesInput runs the incremental pipeline.
type ReindexChangedFilesInput struct {
	Path  string   `json:"path,omitempty" jsonschema:"project root, defaults to the server's project"`
	Files []string `json:"files,omitempty" jsonschema:"specific files to reindex; defaults to everything the ledger reports changed"`
	Force bool     `json:"force,omitempty" jsonschema:"evict a stale lock holder instead of failing"`
}

// ReindexChangedFilesOutput wraps the incremental result.
type ReindexChangedFilesOutput struct {
	Result *index.IncrementalResult `json:"result"`
}

func (s *Server) handleReindexChangedFiles(ctx context.Context, req *mcp.CallToolRequest, input ReindexChangedFilesInput) (*mcp.CallToolResult, ReindexChangedFilesOutput, error) {
	if err := s.checkPath(input.Path); err != nil {
		return nil, ReindexChangedFilesOutput{}, err
	}

	result, err := s.indexer.ReindexChangedFiles(ctx, index.ReindexOptions{
		SpecificFiles: input.Files,
		Force:         input.Force,
	}, nil)
	if err != nil {
		return nil, ReindexChangedFilesOutput{}, err
	}
	return nil, ReindexChangedFilesOutput{Result: result}, nil
}

// EnableGitHooksInput installs reindex triggers into .git/hooks.
type EnableGitHooksInput struct {
	Path  string   `json:"path,omitempty" jsonschema:"project root, defaults to the server's project"`
	Hooks []string `json:"hooks,omitempty" jsonschema:"hooks to install, default post-commit, post-merge, post-checkout"`
}

// EnableGitHooksOutput lists what was written.
type EnableGitHooksOutput struct {
	Installed []string `json:"installed"`
}

func (s *Server) handleEnableGitHooks(ctx context.Context, req *mcp.CallToolRequest, input EnableGitHooksInput) (*mcp.CallToolResult, EnableGitHooksOutput, error) {
	if err := s.checkPath(input.Path); err != nil {
		return nil, EnableGitHooksOutput{}, err
	}

	installed, err := InstallGitHooks(s.cfg.ProjectRoot, input.Hooks)
	if err != nil {
		return nil, EnableGitHooksOutput{}, err
	}
	return nil, EnableGitHooksOutput{Installed: installed}, nil
}

// OnboardProjectInput bootstraps a project.
type OnboardProjectInput struct {
	Path           string `json:"path,omitempty" jsonschema:"project root, defaults to the server's project"`
	EnableGitHooks bool   `json:"enableGitHooks,omitempty" jsonschema:"also install git hooks"`
}

// OnboardProjectOutput reports what onboarding produced.
type OnboardProjectOutput struct {
	ConfigPath string              `json:"configPath"`
	Created    bool                `json:"created"`
	Hooks      []string            `json:"hooks,omitempty"`
	Estimate   *preflight.Estimate `json:"estimate,omitempty"`
}

func (s *Server) handleOnboardProject(ctx context.Context, req *mcp.CallToolRequest, input OnboardProjectInput) (*mcp.CallToolResult, OnboardProjectOutput, error) {
	if err := s.checkPath(input.Path); err != nil {
		return nil, OnboardProjectOutput{}, err
	}

	configPath, created, err := writeDefaultConfig(s.cfg.ProjectRoot)
	if err != nil {
		return nil, OnboardProjectOutput{}, err
	}
	out := OnboardProjectOutput{ConfigPath: configPath, Created: created}

	if input.EnableGitHooks {
		hooks, err := InstallGitHooks(s.cfg.ProjectRoot, nil)
		if err != nil {
			return nil, OnboardProjectOutput{}, err
		}
		out.Hooks = hooks
	}

	if s.estimate != nil {
		est, err := s.estimate.Run(ctx)
		if err != nil {
			return nil, OnboardProjectOutput{}, err
		}
		out.Estimate = est
	}
	return nil, out, nil
}

// ResetStateInput clears local state files.
type ResetStateInput struct {
	Path string `json:"path,omitempty" jsonschema:"project root, defaults to the server's project"`
}

// ResetStateOutput lists the removed files.
type ResetStateOutput struct {
	Removed []string `json:"removed"`
}

func (s *Server) handleResetState(ctx context.Context, req *mcp.CallToolRequest, input ResetStateInput) (*mcp.CallToolResult, ResetStateOutput, error) {
	if err := s.checkPath(input.Path); err != nil {
		return nil, ResetStateOutput{}, err
	}

	dataDir := s.cfg.DataDir()
	var removed []string
	for _, name := range []string{
		ledger.FileName,
		ledger.FileName + ".lock",
		lock.FileName,
		watcher.TriggerFileName,
	} {
		path := filepath.Join(dataDir, name)
		if err := os.Remove(path); err == nil {
			removed = append(removed, name)
		}
	}

	s.logger.Info("project state reset", slog.Int("removed", len(removed)))
	return nil, ResetStateOutput{Removed: removed}, nil
}

// ClearIndexInput deletes the vector collection.
type ClearIndexInput struct {
	Confirm bool `json:"confirm" jsonschema:"must be true to delete the collection"`
}

// ClearIndexOutput reports the deletion.
type ClearIndexOutput struct {
	Cleared    bool   `json:"cleared"`
	Collection string `json:"collection"`
}

func (s *Server) handleClearIndex(ctx context.Context, req *mcp.CallToolRequest, input ClearIndexInput) (*mcp.CallToolResult, ClearIndexOutput, error) {
	if !input.Confirm {
		return nil, ClearIndexOutput{}, errors.New(errors.KindConfig, "pass confirm=true to delete the collection")
	}

	collection := s.cfg.Store.Collection
	exists, err := s.store.CollectionExists(ctx, collection)
	if err != nil {
		return nil, ClearIndexOutput{}, err
	}
	if exists {
		if err := s.store.DeleteCollection(ctx, collection); err != nil {
			return nil, ClearIndexOutput{}, err
		}
	}
	return nil, ClearIndexOutput{Cleared: exists, Collection: collection}, nil
}

// writeDefaultConfig creates .semantica/config.json with the defaults
// when no config exists yet. Returns the path and whether it was
// created now.
func writeDefaultConfig(projectRoot string) (string, bool, error) {
	dataDir := filepath.Join(projectRoot, config.DataDirName)
	path := filepath.Join(dataDir, config.ConfigFileName)

	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", false, errors.Wrap(errors.KindFile, "create state directory", err)
	}

	raw, err := json.MarshalIndent(config.Default(projectRoot), "", "  ")
	if err != nil {
		return "", false, errors.Wrap(errors.KindConfig, "encode default config", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", false, errors.Wrap(errors.KindFile, "write default config", err)
	}
	return path, true, nil
}
