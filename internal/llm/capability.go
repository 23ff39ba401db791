package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ensemble-hq/ensemble/internal/capability"
	"github.com/ensemble-hq/ensemble/internal/retrieval"
	"github.com/ensemble-hq/ensemble/pkg/models"
)

// Completer is the model call surface a capability needs. *Client satisfies
// it; tests substitute a canned implementation.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// NewCapability builds a model-backed capability from a definition. Each
// invocation retrieves the requester's most relevant corpus snippets, folds
// them into the prompt, and makes a single-turn model call.
func NewCapability(def capability.Definition, client Completer, retriever retrieval.Retriever) capability.Capability {
	if retriever == nil {
		retriever = retrieval.Nop{}
	}
	system := def.Prompt
	if system == "" {
		system = fmt.Sprintf("You are the %s specialist. %s\nAnswer concretely and concisely.", def.ID, def.Description)
	}

	return &capability.Func{
		Identifier: def.ID,
		Desc:       def.Description,
		Fn: func(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error) {
			snippets, err := retriever.Search(ctx, task, ec.RequesterID, 5)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				// Retrieval trouble degrades to an ungrounded call.
				snippets = nil
			}

			prompt := buildPrompt(task, ec, snippets)
			content, err := client.Complete(ctx, system, prompt)
			if err != nil {
				return nil, fmt.Errorf("capability %s: %w", def.ID, err)
			}

			confidence := 0.5
			if len(snippets) > 0 {
				confidence = 0.5 + snippets[0].Score/2
			}
			return &models.CapabilityResult{
				Content:    content,
				Confidence: confidence,
				Metadata: map[string]string{
					"capability": def.ID,
					"snippets":   fmt.Sprintf("%d", len(snippets)),
				},
			}, nil
		},
	}
}

// buildPrompt assembles the user turn: the task, any outputs earlier steps
// left in the shared state, and the retrieved grounding.
func buildPrompt(task string, ec *models.ExecutionContext, snippets []retrieval.Snippet) string {
	var b strings.Builder
	b.WriteString(task)

	if prior := priorResults(ec); prior != "" {
		b.WriteString("\n\nEarlier workflow results:\n")
		b.WriteString(prior)
	}

	if len(snippets) > 0 {
		b.WriteString("\n\nRelevant knowledge:\n")
		for _, s := range snippets {
			fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(s.Content))
		}
	}
	return b.String()
}

// priorResults collects the `{capability}_result` entries earlier steps
// wrote into the state bag.
func priorResults(ec *models.ExecutionContext) string {
	var b strings.Builder
	for key, value := range ec.Snapshot() {
		if !strings.HasSuffix(key, "_result") {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s\n", strings.TrimSuffix(key, "_result"), value)
	}
	return b.String()
}

// RegisterCapabilities registers model-backed capabilities for every
// definition. The registry stays unsealed so callers can add more before
// serving.
func RegisterCapabilities(reg *capability.Registry, defs []capability.Definition, client Completer, retriever retrieval.Retriever) error {
	for _, def := range defs {
		if err := reg.RegisterWithKeywords(NewCapability(def, client, retriever), def.Keywords); err != nil {
			return err
		}
	}
	return nil
}
