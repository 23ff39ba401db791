package models

import "sync"

// ExecutionContext carries per-run state through a workflow execution.
// It is owned exclusively by the orchestration run that created it and is
// never shared across concurrent runs. Cancellation rides the context.Context
// passed alongside it to every blocking call.
type ExecutionContext struct {
	// RequesterID identifies the requester the run belongs to.
	RequesterID string

	// Request is the original request text.
	Request string

	mu  sync.RWMutex
	bag map[string]string

	// parent is non-nil for forked children. Child writes go to the private
	// buffer and are merged back only by the parent after join.
	parent *ExecutionContext
	buf    map[string]string
}

// NewExecutionContext creates the root context for one orchestration run.
func NewExecutionContext(requesterID, request string) *ExecutionContext {
	return &ExecutionContext{
		RequesterID: requesterID,
		Request:     request,
		bag:         make(map[string]string),
	}
}

// Get reads a key from the state bag. Forked children see the bag as it
// existed at fork time, overlaid with their own writes.
func (ec *ExecutionContext) Get(key string) (string, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	if ec.buf != nil {
		if v, ok := ec.buf[key]; ok {
			return v, true
		}
	}
	v, ok := ec.bag[key]
	return v, ok
}

// Set writes a key into the state bag. On a forked child the write lands in
// the private buffer and becomes visible to the parent only after Merge.
func (ec *ExecutionContext) Set(key, value string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.buf != nil {
		ec.buf[key] = value
		return
	}
	ec.bag[key] = value
}

// Snapshot returns a copy of the visible state bag.
func (ec *ExecutionContext) Snapshot() map[string]string {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	snap := make(map[string]string, len(ec.bag)+len(ec.buf))
	for k, v := range ec.bag {
		snap[k] = v
	}
	for k, v := range ec.buf {
		snap[k] = v
	}
	return snap
}

// Fork creates a child context for one parallel branch: shared read access to
// the bag as it exists now, writes buffered privately until Merge.
func (ec *ExecutionContext) Fork() *ExecutionContext {
	ec.mu.RLock()
	frozen := make(map[string]string, len(ec.bag))
	for k, v := range ec.bag {
		frozen[k] = v
	}
	if ec.buf != nil {
		for k, v := range ec.buf {
			frozen[k] = v
		}
	}
	ec.mu.RUnlock()

	return &ExecutionContext{
		RequesterID: ec.RequesterID,
		Request:     ec.Request,
		bag:         frozen,
		parent:      ec,
		buf:         make(map[string]string),
	}
}

// Merge applies the buffered writes of forked children back into this
// context, last-writer-wins per key. Callers pass children in branch
// completion order so later completions win.
func (ec *ExecutionContext) Merge(children ...*ExecutionContext) {
	for _, child := range children {
		if child == nil {
			continue
		}
		child.mu.RLock()
		writes := make(map[string]string, len(child.buf))
		for k, v := range child.buf {
			writes[k] = v
		}
		child.mu.RUnlock()

		for k, v := range writes {
			ec.Set(k, v)
		}
	}
}
