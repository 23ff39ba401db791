package main

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"

	"github.com/ensemble-hq/ensemble/internal/capability"
	"github.com/ensemble-hq/ensemble/internal/config"
	"github.com/ensemble-hq/ensemble/internal/llm"
	"github.com/ensemble-hq/ensemble/internal/orchestrator"
	"github.com/ensemble-hq/ensemble/internal/retrieval"
	"github.com/ensemble-hq/ensemble/internal/store"
)

// stack bundles the wired components behind one run of the CLI.
type stack struct {
	orchestrator *orchestrator.Orchestrator
	db           *store.DB
	watcher      *retrieval.CorpusWatcher
}

// close releases the stack's resources in reverse construction order.
func (s *stack) close() {
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

// buildStack assembles the full orchestration stack from configuration:
// workflow store, knowledge corpus, capability registry, and orchestrator.
func buildStack(cfg *config.Config, logger *zap.Logger) (*stack, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = store.DefaultDBPath()
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	s := &stack{db: db}

	retriever, err := buildRetriever(cfg, logger, s)
	if err != nil {
		s.close()
		return nil, err
	}

	registry, err := buildRegistry(cfg, logger, retriever)
	if err != nil {
		s.close()
		return nil, err
	}

	orc, err := orchestrator.New(
		orchestrator.RequiredConfig{
			Registry:  registry,
			Workflows: store.NewCache(db, logger),
		},
		orchestrator.WithLogger(logger),
		orchestrator.WithMaxInFlight(cfg.Execution.MaxInFlight),
		orchestrator.WithEventBuffer(cfg.Execution.EventBuffer),
	)
	if err != nil {
		s.close()
		return nil, err
	}

	s.orchestrator = orc
	return s, nil
}

// buildRetriever indexes the configured corpus directory, watching it for
// changes when enabled. Without a corpus, capabilities run ungrounded.
func buildRetriever(cfg *config.Config, logger *zap.Logger, s *stack) (retrieval.Retriever, error) {
	if cfg.Corpus.Dir == "" {
		return nil, nil
	}

	index := retrieval.NewMemoryIndex(0)
	watcher, err := retrieval.NewCorpusWatcher(cfg.Corpus.Dir, index, logger)
	if err != nil {
		return nil, fmt.Errorf("index corpus %s: %w", cfg.Corpus.Dir, err)
	}
	if cfg.Corpus.Watch {
		s.watcher = watcher
	} else {
		_ = watcher.Close()
	}
	return index, nil
}

// buildRegistry loads capability definitions and backs them with the model
// client when credentials are available, falling back to retrieval-grounded
// capabilities otherwise.
func buildRegistry(cfg *config.Config, logger *zap.Logger, retriever retrieval.Retriever) (*capability.Registry, error) {
	defs := capability.BuiltinDefinitions()
	if cfg.Execution.Capabilities != "" {
		catalog, err := capability.LoadCatalog(cfg.Execution.Capabilities)
		if err != nil {
			return nil, err
		}
		defs = catalog.Capabilities
	}

	registry := capability.NewRegistry()

	apiKey, keyErr := config.GetAPIKey(cfg)
	if keyErr == nil || cfg.Bedrock.Enabled {
		client, err := llm.NewClient(llm.ClientConfig{
			Model:         anthropic.Model(cfg.Anthropic.Model),
			APIKey:        apiKey,
			UseAWSBedrock: cfg.Bedrock.Enabled,
			AWSRegion:     cfg.Bedrock.Region,
		})
		if err != nil {
			return nil, err
		}
		if err := llm.RegisterCapabilities(registry, defs, client, retriever); err != nil {
			return nil, err
		}
		return registry, nil
	}

	logger.Info("no API credentials configured, using retrieval-grounded capabilities")
	if err := capability.RegisterGrounded(registry, defs, retriever); err != nil {
		return nil, err
	}
	return registry, nil
}
