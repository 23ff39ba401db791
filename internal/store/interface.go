// Package store provides SQLite-backed persistence for composed workflows.
package store

import (
	"io"
	"time"

	"github.com/ensemble-hq/ensemble/pkg/models"
)

// WorkflowStore handles workflow persistence operations.
type WorkflowStore interface {
	SaveWorkflow(w *models.ComposedWorkflow) error
	GetWorkflow(id string) (*models.ComposedWorkflow, error)
	FindByFingerprint(requesterID, fingerprint string) (*models.ComposedWorkflow, error)
	ListWorkflows(requesterID string) ([]models.ComposedWorkflow, error)
	RecordUse(id string, usedAt time.Time) error
	DeleteWorkflow(id string) error
}

// Migrator handles database schema migrations.
// Separating this allows clients to depend only on migration functionality.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store defines the interface for workflow persistence. The orchestrator
// works against this interface rather than the concrete SQLite backend.
type Store interface {
	io.Closer
	Migrator
	WorkflowStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store         = (*DB)(nil)
	_ Migrator      = (*DB)(nil)
	_ WorkflowStore = (*DB)(nil)
)
