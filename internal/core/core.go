// Package core assembles the subsystems into one value constructed at
// startup: registries, engine, orchestrator, builder, plugins, templates,
// and the chat surface. Everything downstream receives its collaborators
// from here instead of reaching for globals.
package core

import (
	"fmt"
	"path/filepath"
	"strings"

	"axon/internal/builder"
	"axon/internal/chat"
	"axon/internal/config"
	"axon/internal/engine"
	"axon/internal/llm"
	"axon/internal/logging"
	"axon/internal/nodes"
	"axon/internal/orchestrator"
	"axon/internal/plugins"
	"axon/internal/registry"
	"axon/internal/templates"
	"axon/internal/workflow/store"
	"axon/internal/workflowtool"
)

// Core holds the wired subsystems.
type Core struct {
	Config       *config.Config
	LLM          llm.Client
	Registry     *registry.Registry
	Engine       *engine.Engine
	Orchestrator *orchestrator.Orchestrator
	Store        *store.Store
	Builder      *builder.Builder
	Templates    *templates.Catalog
	Plugins      *plugins.Loader
	Dispatcher   *chat.Dispatcher

	logger logging.Logger
}

// New wires the full system. The LLM client is injected so tests can
// substitute a stub.
func New(cfg *config.Config, llmClient llm.Client, logger logging.Logger) (*Core, error) {
	logger = logging.OrNop(logger)

	reg := registry.New(logging.NewComponentLogger("Registry"))
	eng := engine.New(reg, llmClient, logging.NewComponentLogger("Engine"))
	orch := orchestrator.New(reg, llmClient, logging.NewComponentLogger("Orchestrator"))

	if err := nodes.RegisterBuiltins(reg); err != nil {
		return nil, fmt.Errorf("register builtin nodes: %w", err)
	}
	if err := nodes.RegisterOrchestratorNode(reg, orch, cfg.MaxSteps); err != nil {
		return nil, fmt.Errorf("register orchestrator node: %w", err)
	}

	st, err := store.New(filepath.Join(cfg.DataDir, "workflows"), logging.NewComponentLogger("Store"))
	if err != nil {
		return nil, fmt.Errorf("open workflow store: %w", err)
	}

	catalog, err := templates.Load()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	bld := builder.New(st, eng, logging.NewComponentLogger("Builder"))
	if err := bld.RegisterTools(reg, nodes.RegisterToolNode); err != nil {
		return nil, fmt.Errorf("register builder tools: %w", err)
	}

	loader := plugins.NewLoader(cfg.PluginDir, logging.NewComponentLogger("Plugins"))
	if err := loader.Load(reg); err != nil {
		return nil, fmt.Errorf("load plugins: %w", err)
	}

	c := &Core{
		Config:       cfg,
		LLM:          llmClient,
		Registry:     reg,
		Engine:       eng,
		Orchestrator: orch,
		Store:        st,
		Builder:      bld,
		Templates:    catalog,
		Plugins:      loader,
		logger:       logger,
	}

	// Saved workflows re-enter the system as callable tools.
	bld.OnSaved = c.RegisterSavedWorkflow
	if err := c.registerSavedWorkflows(); err != nil {
		return nil, err
	}
	if err := c.seedBuilderWorkflow(); err != nil {
		return nil, err
	}

	sessions := chat.NewSessionManager(cfg.SessionTTL, logging.NewComponentLogger("Sessions"))
	executor := chat.NewCommandExecutor(st, eng, catalog, logging.NewComponentLogger("Commands"))
	c.Dispatcher = chat.NewDispatcher(sessions, executor, llmClient, eng, st, bld, catalog, logging.NewComponentLogger("Chat"))
	c.Dispatcher.PluginSummaries = loader.Summaries()

	return c, nil
}

// RegisterSavedWorkflow exposes a saved workflow as a tool plus tool node.
// Re-registration after an update replaces the previous definition.
func (c *Core) RegisterSavedWorkflow(saved *store.Saved) {
	err := workflowtool.Register(c.Registry, c.Engine, saved, c.Config.MaxToolDepth, nodes.RegisterToolNode)
	if err != nil {
		c.logger.Warn("Cannot register workflow %s as tool: %v", saved.ID, err)
	}
}

func (c *Core) registerSavedWorkflows() error {
	saved, err := c.Store.List()
	if err != nil {
		return fmt.Errorf("list workflows: %w", err)
	}
	for _, s := range saved {
		c.RegisterSavedWorkflow(s)
	}
	return nil
}

// seedBuilderWorkflow installs the Workflow Builder meta-workflow into the
// store on first run so build-intent chat requests have something to execute.
func (c *Core) seedBuilderWorkflow() error {
	saved, err := c.Store.List()
	if err != nil {
		return fmt.Errorf("list workflows: %w", err)
	}
	for _, s := range saved {
		if strings.Contains(strings.ToLower(s.Name), "workflow builder") {
			return nil
		}
	}

	tpl, ok := c.Templates.Get("workflow-builder")
	if !ok {
		return fmt.Errorf("workflow-builder template missing")
	}
	doc := tpl.Document()
	seeded, err := c.Store.Save(tpl.Name, doc.Nodes, doc.Edges, tpl.Description, "")
	if err != nil {
		return fmt.Errorf("seed builder workflow: %w", err)
	}
	c.logger.Info("Seeded builder workflow %s", seeded.ID)
	c.RegisterSavedWorkflow(seeded)
	return nil
}
