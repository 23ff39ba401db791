package orchestrator

import (
	"go.uber.org/zap"

	"github.com/ensemble-hq/ensemble/internal/capability"
	"github.com/ensemble-hq/ensemble/internal/intent"
	"github.com/ensemble-hq/ensemble/internal/store"
	"github.com/ensemble-hq/ensemble/internal/workflow"
)

// DefaultEventBuffer is the per-run event channel capacity.
const DefaultEventBuffer = 64

// RequiredConfig contains the minimal required configuration for an
// Orchestrator. All fields are required and have no defaults.
type RequiredConfig struct {
	// Registry is the capability registry. It is sealed during
	// construction if the caller has not sealed it already.
	Registry *capability.Registry
	// Workflows is the per-requester workflow reuse cache.
	Workflows *store.Cache
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	maxInFlight int
	eventBuffer int
	logger      *zap.Logger

	// Injectable dependencies for testing
	analyzer *intent.Analyzer
	executor *workflow.Executor
}

// WithMaxInFlight bounds concurrent branches in parallel and consensus
// patterns.
func WithMaxInFlight(n int) Option {
	return func(o *orchestratorOptions) { o.maxInFlight = n }
}

// WithEventBuffer sets the per-run event channel capacity.
func WithEventBuffer(n int) Option {
	return func(o *orchestratorOptions) { o.eventBuffer = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithAnalyzer sets a custom intent analyzer (mainly for testing).
func WithAnalyzer(a *intent.Analyzer) Option {
	return func(o *orchestratorOptions) { o.analyzer = a }
}

// WithExecutor sets a custom workflow executor (mainly for testing).
func WithExecutor(e *workflow.Executor) Option {
	return func(o *orchestratorOptions) { o.executor = e }
}
