// Package mnemos is an embedded memory subsystem for conversational agents.
// It persists three temporal horizons per user: a permanent profile,
// conversation history, and task-scoped workspaces, and consolidates
// finished conversations into a deduplicated knowledge base searched by
// embedding similarity.
//
// The consumer supplies the language-model collaborators (candidate
// extraction and content merging); everything else, including storage,
// embedding, ranking, and context assembly, lives here.
package mnemos

import (
	"context"
	"fmt"
	"path/filepath"

	"mnemos/internal/assembly"
	"mnemos/internal/config"
	"mnemos/internal/consolidation"
	"mnemos/internal/embedding"
	"mnemos/internal/lifecycle"
	"mnemos/internal/logging"
	"mnemos/internal/memory"
	"mnemos/internal/store"
)

// Tool is re-exported for context assembly.
type Tool = assembly.Tool

// Options configures System construction beyond what config.yaml covers.
type Options struct {
	// Extractor proposes knowledge candidates from finished conversations.
	// Leave nil to disable consolidation.
	Extractor consolidation.Extractor
	// Merger combines similar knowledge content. Required when Extractor is set.
	Merger consolidation.Merger
}

// System owns the shared store and wires the lifecycle manager and the
// consolidation pipeline over it. One System serves all users of a workspace.
type System struct {
	cfg      *config.Config
	store    *store.Store
	engine   embedding.Engine
	tasks    *lifecycle.Manager
	pipeline *consolidation.Pipeline
}

// Open initializes the subsystem rooted at a workspace directory. The
// workspace holds .mnemos/config.yaml, the database, and debug logs.
func Open(workspace string, opts Options) (*System, error) {
	if err := logging.Initialize(workspace); err != nil {
		return nil, err
	}
	logging.Boot("Opening mnemos workspace: %s", workspace)

	cfg, err := config.Load(filepath.Join(workspace, ".mnemos", "config.yaml"))
	if err != nil {
		return nil, err
	}

	dbPath := cfg.Database.Path
	if dbPath != ":memory:" && !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(workspace, dbPath)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	st.SetEmbeddingDimensions(cfg.Embedding.Dimensions)

	engine, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
		TaskType:       cfg.Embedding.TaskType,
		Dimensions:     cfg.Embedding.Dimensions,
		CacheEntries:   cfg.Embedding.CacheEntries,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	sys := &System{
		cfg:    cfg,
		store:  st,
		engine: engine,
		tasks:  lifecycle.NewManager(st),
	}

	if opts.Extractor != nil {
		if opts.Merger == nil {
			st.Close()
			return nil, fmt.Errorf("consolidation requires both an extractor and a merger")
		}
		sys.pipeline = consolidation.NewPipeline(st, opts.Extractor, opts.Merger, engine, consolidation.Config{
			MinConfidence:       cfg.Consolidation.MinConfidence,
			MinContentLength:    cfg.Consolidation.MinContentLength,
			MergeThreshold:      cfg.Consolidation.MergeThreshold,
			TopK:                cfg.Consolidation.TopK,
			CollaboratorTimeout: cfg.Consolidation.Timeout(),
		})
	}

	logging.Boot("mnemos ready: db=%s embedding=%s", dbPath, engine.Name())
	return sys, nil
}

// Tasks returns the task lifecycle manager.
func (s *System) Tasks() *lifecycle.Manager { return s.tasks }

// Store returns the underlying relational store.
func (s *System) Store() *store.Store { return s.store }

// Consolidate distills a finished conversation into the user's knowledge
// base. Safe to call after CompleteTask; typically run in the background.
func (s *System) Consolidate(ctx context.Context, c *memory.Conversation) (consolidation.Report, error) {
	if s.pipeline == nil {
		return consolidation.Report{}, fmt.Errorf("consolidation is not configured")
	}
	return s.pipeline.Consolidate(ctx, c.UserID, c.ID, c.Messages)
}

// Context assembles the prompt-ready context view for an active task:
// profile, accumulated knowledge, workspace, runtime details, and tools.
func (s *System) Context(ctx context.Context, st *lifecycle.TaskState, runtime string, tools []Tool) (string, error) {
	knowledge, err := s.store.KnowledgeByUser(ctx, st.UserID())
	if err != nil {
		return "", err
	}
	return assembly.Assemble(assembly.View{
		Profile:   st.Profile,
		Knowledge: knowledge,
		Workspace: st.Workspace,
		Runtime:   runtime,
		Tools:     tools,
	}), nil
}

// EraseUser removes every trace of a user: profile, conversations,
// workspaces, and knowledge items.
func (s *System) EraseUser(ctx context.Context, userID string) error {
	return s.store.DeleteProfile(ctx, userID)
}

// Stats returns row counts per storage table.
func (s *System) Stats() (map[string]int64, error) {
	return s.store.Stats()
}

// Close releases the store and any engine resources.
func (s *System) Close() error {
	if c, ok := s.engine.(*embedding.CachedEngine); ok {
		c.Close()
	}
	logging.CloseAll()
	return s.store.Close()
}
