package retrieval

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Document is one indexed knowledge entry.
type Document struct {
	// ID uniquely identifies the document, typically its file path.
	ID string
	// Scope is the owning requester, or empty for shared knowledge.
	Scope string
	// Content is the document text.
	Content string
}

// MemoryIndex is an in-process Retriever over an indexed document corpus.
// Scoring is token overlap between query and document, normalized to [0,1].
// It favors being cheap and deterministic over being clever; the interface
// allows swapping in an embedding-backed implementation without touching
// callers.
type MemoryIndex struct {
	mu    sync.RWMutex
	docs  map[string]*indexedDoc
	floor float64
}

type indexedDoc struct {
	doc    Document
	tokens map[string]int
	length int
}

// DefaultRelevanceFloor filters results scoring below it.
const DefaultRelevanceFloor = 0.05

// NewMemoryIndex creates an empty index with the given relevance floor.
// A floor of 0 uses DefaultRelevanceFloor.
func NewMemoryIndex(floor float64) *MemoryIndex {
	if floor <= 0 {
		floor = DefaultRelevanceFloor
	}
	return &MemoryIndex{
		docs:  make(map[string]*indexedDoc),
		floor: floor,
	}
}

// Add indexes or reindexes a document.
func (m *MemoryIndex) Add(doc Document) {
	tokens := tokenize(doc.Content)
	length := 0
	for _, n := range tokens {
		length += n
	}

	m.mu.Lock()
	m.docs[doc.ID] = &indexedDoc{doc: doc, tokens: tokens, length: length}
	m.mu.Unlock()
}

// Remove drops a document from the index.
func (m *MemoryIndex) Remove(id string) {
	m.mu.Lock()
	delete(m.docs, id)
	m.mu.Unlock()
}

// Len returns the number of indexed documents.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Search implements Retriever. Results are ordered descending by score with
// document ID as the tie-break, so identical inputs against an unchanged
// corpus return identical output.
func (m *MemoryIndex) Search(ctx context.Context, query string, scope string, topK int) ([]Snippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 || topK <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		id      string
		snippet Snippet
	}
	var hits []scored
	for id, d := range m.docs {
		if d.doc.Scope != "" && d.doc.Scope != scope {
			continue
		}
		score := overlapScore(queryTokens, d.tokens)
		if score < m.floor {
			continue
		}
		hits = append(hits, scored{
			id: id,
			snippet: Snippet{
				Content: d.doc.Content,
				Score:   score,
				Source:  id,
			},
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].snippet.Score != hits[j].snippet.Score {
			return hits[i].snippet.Score > hits[j].snippet.Score
		}
		return hits[i].id < hits[j].id
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]Snippet, len(hits))
	for i, h := range hits {
		out[i] = h.snippet
	}
	return out, nil
}

// overlapScore computes the fraction of query tokens present in the document.
func overlapScore(query, doc map[string]int) float64 {
	if len(query) == 0 {
		return 0
	}
	matched := 0
	total := 0
	for tok, n := range query {
		total += n
		if doc[tok] > 0 {
			matched += n
		}
	}
	return float64(matched) / float64(total)
}

// tokenize lower-cases text and splits on non-alphanumeric runes,
// dropping single-character tokens.
func tokenize(text string) map[string]int {
	tokens := make(map[string]int)
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		tokens[f]++
	}
	return tokens
}
