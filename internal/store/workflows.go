package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ensemble-hq/ensemble/pkg/models"
)

// SaveWorkflow persists a composed workflow. Workflow names are unique per
// requester; a collision fails with DuplicateWorkflowName and leaves the
// existing record untouched.
func (db *DB) SaveWorkflow(w *models.ComposedWorkflow) error {
	root, err := json.Marshal(&w.Root)
	if err != nil {
		return fmt.Errorf("encode workflow tree: %w", err)
	}

	var existing string
	row := db.QueryRow(`
		SELECT id FROM workflows WHERE requester_id = ? AND name = ?
	`, w.RequesterID, w.Name)
	switch err := row.Scan(&existing); err {
	case sql.ErrNoRows:
	case nil:
		return models.Failuref(models.FailDuplicateWorkflowName,
			"workflow name %q already taken for requester %s", w.Name, w.RequesterID)
	default:
		return fmt.Errorf("check workflow name: %w", err)
	}

	var lastUsed any
	if !w.LastUsedAt.IsZero() {
		lastUsed = formatTime(w.LastUsedAt)
	}

	_, err = db.Exec(`
		INSERT INTO workflows (id, requester_id, name, fingerprint, root, created_at, usage_count, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, w.ID, w.RequesterID, w.Name, w.Fingerprint, string(root), formatTime(w.CreatedAt), w.UsageCount, lastUsed)
	if err != nil {
		return fmt.Errorf("save workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by ID. Returns nil when no workflow
// exists.
func (db *DB) GetWorkflow(id string) (*models.ComposedWorkflow, error) {
	row := db.QueryRow(`
		SELECT id, requester_id, name, fingerprint, root, created_at, usage_count, last_used_at
		FROM workflows WHERE id = ?
	`, id)
	return scanWorkflow(row)
}

// FindByFingerprint retrieves the requester's workflow matching the given
// request fingerprint. Returns nil when no workflow matches.
func (db *DB) FindByFingerprint(requesterID, fingerprint string) (*models.ComposedWorkflow, error) {
	row := db.QueryRow(`
		SELECT id, requester_id, name, fingerprint, root, created_at, usage_count, last_used_at
		FROM workflows WHERE requester_id = ? AND fingerprint = ?
	`, requesterID, fingerprint)
	return scanWorkflow(row)
}

// ListWorkflows lists a requester's workflows, most used first, then most
// recently created.
func (db *DB) ListWorkflows(requesterID string) ([]models.ComposedWorkflow, error) {
	rows, err := db.Query(`
		SELECT id, requester_id, name, fingerprint, root, created_at, usage_count, last_used_at
		FROM workflows WHERE requester_id = ?
		ORDER BY usage_count DESC, created_at DESC
	`, requesterID)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var out []models.ComposedWorkflow
	for rows.Next() {
		w, err := scanWorkflowRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// RecordUse increments a workflow's usage counter and stamps the reuse time.
func (db *DB) RecordUse(id string, usedAt time.Time) error {
	_, err := db.Exec(`
		UPDATE workflows SET usage_count = usage_count + 1, last_used_at = ?
		WHERE id = ?
	`, formatTime(usedAt), id)
	if err != nil {
		return fmt.Errorf("record workflow use: %w", err)
	}
	return nil
}

// DeleteWorkflow deletes a workflow by ID.
func (db *DB) DeleteWorkflow(id string) error {
	_, err := db.Exec("DELETE FROM workflows WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	return nil
}

func scanWorkflow(row *sql.Row) (*models.ComposedWorkflow, error) {
	var w models.ComposedWorkflow
	var root, createdAt string
	var lastUsed sql.NullString
	err := row.Scan(&w.ID, &w.RequesterID, &w.Name, &w.Fingerprint, &root, &createdAt, &w.UsageCount, &lastUsed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	return decodeWorkflow(&w, root, createdAt, lastUsed)
}

func scanWorkflowRow(rows *sql.Rows) (*models.ComposedWorkflow, error) {
	var w models.ComposedWorkflow
	var root, createdAt string
	var lastUsed sql.NullString
	err := rows.Scan(&w.ID, &w.RequesterID, &w.Name, &w.Fingerprint, &root, &createdAt, &w.UsageCount, &lastUsed)
	if err != nil {
		return nil, fmt.Errorf("scan workflow: %w", err)
	}
	return decodeWorkflow(&w, root, createdAt, lastUsed)
}

func decodeWorkflow(w *models.ComposedWorkflow, root, createdAt string, lastUsed sql.NullString) (*models.ComposedWorkflow, error) {
	if err := json.Unmarshal([]byte(root), &w.Root); err != nil {
		return nil, fmt.Errorf("decode workflow tree for %s: %w", w.ID, err)
	}
	w.CreatedAt, _ = parseTime(createdAt)
	if t := parseNullableTime(lastUsed); t != nil {
		w.LastUsedAt = *t
	}
	return w, nil
}
