// Package mcp exposes the indexing pipeline and search engine as Model
// Context Protocol tools over stdio.
package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/semantica-dev/semantica/internal/async"
	"github.com/semantica-dev/semantica/internal/config"
	"github.com/semantica-dev/semantica/internal/errors"
	"github.com/semantica-dev/semantica/internal/index"
	"github.com/semantica-dev/semantica/internal/preflight"
	"github.com/semantica-dev/semantica/internal/search"
	"github.com/semantica-dev/semantica/internal/store"
	"github.com/semantica-dev/semantica/pkg/version"
)

// ServerName identifies this implementation to MCP clients.
const ServerName = "semantica"

// Indexer runs the ingestion pipelines.
type Indexer interface {
	IndexCodebase(ctx context.Context, onProgress index.ProgressFunc) (*index.IndexingResult, error)
	ReindexChangedFiles(ctx context.Context, opts index.ReindexOptions, onProgress index.ProgressFunc) (*index.IncrementalResult, error)
}

// Searcher executes queries.
type Searcher interface {
	Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error)
}

// Preflighter produces the pre-indexing estimate.
type Preflighter interface {
	Run(ctx context.Context) (*preflight.Estimate, error)
}

// Deps are the collaborators a server needs.
type Deps struct {
	Indexer   Indexer
	Searcher  Searcher
	Preflight Preflighter
	Store     store.VectorStore
	Registry  *async.Registry
	Logger    *slog.Logger
}

// Server is the MCP tool server for one project.
type Server struct {
	mcp      *mcp.Server
	cfg      *config.Config
	indexer  Indexer
	searcher Searcher
	estimate Preflighter
	store    store.VectorStore
	registry *async.Registry
	logger   *slog.Logger
}

// NewServer wires the tool surface over the given collaborators.
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New(errors.KindConfig, "config is required")
	}
	if deps.Indexer == nil || deps.Searcher == nil || deps.Store == nil {
		return nil, errors.New(errors.KindConfig, "indexer, searcher, and store are required")
	}
	if deps.Registry == nil {
		deps.Registry = async.NewRegistry(deps.Logger)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		indexer:  deps.Indexer,
		searcher: deps.Searcher,
		estimate: deps.Preflight,
		store:    deps.Store,
		registry: deps.Registry,
		logger:   deps.Logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()

	return s, nil
}

// Registry exposes the job table, shared with the serve command.
func (s *Server) Registry() *async.Registry {
	return s.registry
}

// Run serves MCP over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting",
		slog.String("name", ServerName),
		slog.String("version", version.Version),
		slog.String("projectRoot", s.cfg.ProjectRoot))
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_codebase",
		Description: "Index the project for semantic search. Runs a pre-flight estimate, then parses, chunks, embeds, and stores every supported source file. By default runs in the background and returns a job id to poll with get_index_status.",
	}, s.handleIndexCodebase)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_code",
		Description: "Search the indexed codebase by meaning. Finds functions, types, and implementations even when the query words never appear in the code. Supports language and path filters.",
	}, s.handleSearchCode)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_index_status",
		Description: "Report indexing progress when a job is running, otherwise the collection statistics.",
	}, s.handleGetIndexStatus)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "reindex_changed_files",
		Description: "Reindex only what changed since the last run, using the change ledger. Pass specific files to force them through.",
	}, s.handleReindexChangedFiles)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "enable_git_hooks",
		Description: "Install git hooks that signal the running server to reindex after commits, merges, and checkouts.",
	}, s.handleEnableGitHooks)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "onboard_project",
		Description: "Set up a project for semantic search: create the state directory, write a default config, optionally install git hooks, and report the indexing estimate.",
	}, s.handleOnboardProject)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "reset_state",
		Description: "Remove the project's local indexing state (ledger, lock, triggers). The vector collection is untouched; use clear_index for that.",
	}, s.handleResetState)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "clear_index",
		Description: "Delete the project's vector collection. Requires confirm=true.",
	}, s.handleClearIndex)

	s.logger.Debug("mcp tools registered", slog.Int("count", 8))
}

// checkPath rejects calls that target a different project than the one
// this server is bound to.
func (s *Server) checkPath(path string) error {
	if path == "" || path == s.cfg.ProjectRoot {
		return nil
	}
	return errors.Newf(errors.KindConfig,
		"this server is bound to %s; restart it for %s", s.cfg.ProjectRoot, path)
}
