// Package capability defines the invokable units the orchestrator composes
// and the process-wide registry that holds them.
package capability

import (
	"context"

	"github.com/ensemble-hq/ensemble/pkg/models"
)

// Capability is an opaque, invokable unit of domain logic. What a capability
// computes internally is not the orchestrator's concern; it only invokes
// and combines.
type Capability interface {
	// ID returns the capability identifier.
	ID() string
	// Description returns a short description used for intent matching.
	Description() string
	// Invoke executes the capability against a task. Implementations must
	// honor ctx cancellation; any call may block.
	Invoke(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error)
}

// Func adapts a plain function into a Capability. Used for builtins
// and test doubles.
type Func struct {
	// Identifier is the capability ID.
	Identifier string
	// Desc is the matching description.
	Desc string
	// Fn is the invocation function.
	Fn func(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error)
}

// ID implements Capability.
func (f *Func) ID() string { return f.Identifier }

// Description implements Capability.
func (f *Func) Description() string { return f.Desc }

// Invoke implements Capability.
func (f *Func) Invoke(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error) {
	return f.Fn(ctx, task, ec)
}
