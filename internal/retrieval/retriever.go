// Package retrieval provides the knowledge-retriever contract consumed by
// capabilities and the intent analyzer, plus an in-process implementation
// backed by an indexed document corpus.
package retrieval

import "context"

// Snippet is one ranked piece of contextual grounding.
type Snippet struct {
	// Content is the snippet text.
	Content string
	// Score is the relevance score in [0,1].
	Score float64
	// Source identifies where the snippet came from, if known.
	Source string
}

// Retriever returns ranked context snippets for a query. Results are ordered
// descending by score, deterministic for identical inputs against an
// unchanged corpus, and empty (not an error) when nothing clears the
// relevance floor. Scope narrows results to one requester's documents;
// an empty scope searches shared knowledge.
type Retriever interface {
	Search(ctx context.Context, query string, scope string, topK int) ([]Snippet, error)
}

// Nop is a Retriever that always returns no results. Used when no knowledge
// corpus is configured; callers degrade to empty context.
type Nop struct{}

// Search implements Retriever.
func (Nop) Search(ctx context.Context, query string, scope string, topK int) ([]Snippet, error) {
	return nil, nil
}
