package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ensemble-hq/ensemble/pkg/models"
)

// Cache is a per-requester, in-memory front over a WorkflowStore. Each
// requester's workflows load once on first access and stay resident; reads
// after warming never touch the database. Partitions are fully isolated,
// each with its own lock, and durable-store calls never run under a lock:
// one requester's slow write cannot stall another requester's reads.
type Cache struct {
	store  WorkflowStore
	logger *zap.Logger

	partitions sync.Map // requesterID -> *partition
}

// partition holds one requester's cached workflows, keyed two ways.
type partition struct {
	warmOnce sync.Once
	warmErr  error

	mu            sync.RWMutex
	byFingerprint map[string]*models.ComposedWorkflow
	byName        map[string]*models.ComposedWorkflow
}

// NewCache creates a Cache over the given backing store.
func NewCache(store WorkflowStore, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:  store,
		logger: logger,
	}
}

// partitionFor returns the requester's partition, loading it from the
// backing store on first access. A failed load is not cached; the next
// access retries.
func (c *Cache) partitionFor(requesterID string) (*partition, error) {
	v, _ := c.partitions.LoadOrStore(requesterID, &partition{})
	p := v.(*partition)
	p.warmOnce.Do(func() {
		p.warmErr = c.warm(requesterID, p)
	})
	if p.warmErr != nil {
		c.partitions.CompareAndDelete(requesterID, p)
		return nil, p.warmErr
	}
	return p, nil
}

// warm fills a fresh partition from the backing store. Runs inside the
// partition's warmOnce, so only callers for this requester wait on it.
func (c *Cache) warm(requesterID string, p *partition) error {
	stored, err := c.store.ListWorkflows(requesterID)
	if err != nil {
		return fmt.Errorf("warm workflow cache for %s: %w", requesterID, err)
	}

	p.byFingerprint = make(map[string]*models.ComposedWorkflow, len(stored))
	p.byName = make(map[string]*models.ComposedWorkflow, len(stored))
	for i := range stored {
		w := &stored[i]
		p.byFingerprint[w.Fingerprint] = w
		p.byName[w.Name] = w
	}

	c.logger.Debug("warmed workflow cache",
		zap.String("requester", requesterID),
		zap.Int("workflows", len(stored)))
	return nil
}

// Find returns the requester's workflow matching the fingerprint, or nil on
// a miss. Two requests with equal fingerprints always resolve to the same
// stored workflow.
func (c *Cache) Find(requesterID, fingerprint string) (*models.ComposedWorkflow, error) {
	p, err := c.partitionFor(requesterID)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	w, ok := p.byFingerprint[fingerprint]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

// Put stores a newly composed workflow, writing through to the backing
// store. A distinct workflow under an already-taken name fails with
// DuplicateWorkflowName; re-putting the same workflow is a no-op. The name
// is reserved in the partition before the durable write so the write itself
// runs without holding the lock.
func (c *Cache) Put(w *models.ComposedWorkflow) error {
	p, err := c.partitionFor(w.RequesterID)
	if err != nil {
		return err
	}

	reserved := *w

	p.mu.Lock()
	if existing, taken := p.byName[w.Name]; taken {
		sameID := existing.ID == w.ID
		p.mu.Unlock()
		if sameID {
			return nil
		}
		return models.Failuref(models.FailDuplicateWorkflowName,
			"workflow name %q already taken for requester %s", w.Name, w.RequesterID)
	}
	p.byName[reserved.Name] = &reserved
	p.mu.Unlock()

	if err := c.store.SaveWorkflow(w); err != nil {
		p.mu.Lock()
		delete(p.byName, reserved.Name)
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	p.byFingerprint[reserved.Fingerprint] = &reserved
	p.mu.Unlock()
	return nil
}

// RecordUse bumps a workflow's usage counter. The in-memory counter
// advances before returning so reuse ordering stays fresh; the durable
// write happens in its own goroutine, best-effort, and a storage error is
// only logged.
func (c *Cache) RecordUse(requesterID, id string) {
	now := time.Now()

	if v, ok := c.partitions.Load(requesterID); ok {
		p := v.(*partition)
		p.mu.Lock()
		for _, w := range p.byFingerprint {
			if w.ID == id {
				w.UsageCount++
				w.LastUsedAt = now
				break
			}
		}
		p.mu.Unlock()
	}

	go func() {
		if err := c.store.RecordUse(id, now); err != nil {
			c.logger.Warn("failed to record workflow use",
				zap.String("workflow", id),
				zap.Error(err))
		}
	}()
}

// List returns the requester's workflows, most used first, then most
// recently created.
func (c *Cache) List(requesterID string) ([]models.ComposedWorkflow, error) {
	p, err := c.partitionFor(requesterID)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	out := make([]models.ComposedWorkflow, 0, len(p.byFingerprint))
	for _, w := range p.byFingerprint {
		out = append(out, *w)
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UsageCount != out[j].UsageCount {
			return out[i].UsageCount > out[j].UsageCount
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Invalidate drops a requester's partition, forcing a reload from the
// backing store on next access.
func (c *Cache) Invalidate(requesterID string) {
	c.partitions.Delete(requesterID)
}
