package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/ensemble-hq/ensemble/internal/retrieval"
	"github.com/ensemble-hq/ensemble/pkg/models"
)

// BuiltinDefinitions returns the default capability set of the platform:
// one specialist per business domain, each with the keywords a request is
// matched against.
func BuiltinDefinitions() []Definition {
	return []Definition{
		{
			ID:          "strategic",
			Description: "Strategic planning, goals, objectives, and initiatives",
			Keywords:    []string{"strategy", "strategic", "plan", "goal", "objective", "okr", "initiative"},
		},
		{
			ID:          "content",
			Description: "Content creation: articles, copy, and newsletters",
			Keywords:    []string{"content", "blog", "article", "write", "copy", "newsletter"},
		},
		{
			ID:          "data",
			Description: "Data analysis, metrics, KPIs, and dashboards",
			Keywords:    []string{"data", "analysis", "analyze", "metrics", "kpi", "dashboard", "analytics"},
		},
		{
			ID:          "financial",
			Description: "Financial analysis: revenue, costs, budgets, and pricing",
			Keywords:    []string{"financial", "revenue", "cost", "budget", "profit", "money", "pricing"},
		},
		{
			ID:          "operations",
			Description: "Operations: processes, efficiency, and rollouts",
			Keywords:    []string{"operations", "process", "efficiency", "rollout"},
		},
		{
			ID:          "hr",
			Description: "Human resources: hiring, onboarding, and performance",
			Keywords:    []string{"hr", "hiring", "recruit", "employee", "onboard", "training", "performance"},
		},
		{
			ID:          "marketing",
			Description: "Marketing campaigns, email, social, and brand",
			Keywords:    []string{"marketing", "campaign", "email", "social", "brand", "advertising"},
		},
		{
			ID:          "sales",
			Description: "Sales: leads, deals, outreach, and pipeline",
			Keywords:    []string{"sales", "lead", "deal", "crm", "outreach", "pipeline"},
		},
		{
			ID:          "compliance",
			Description: "Compliance: legal, risk, policy, and audits",
			Keywords:    []string{"compliance", "legal", "risk", "policy", "audit", "gdpr"},
		},
		{
			ID:          "support",
			Description: "Customer support: tickets and service",
			Keywords:    []string{"support", "customer", "ticket", "service"},
		},
	}
}

// NewGrounded builds a capability that answers by grounding the task in
// retrieved context. It is the no-API-key backend: its output is a structured
// summary of the most relevant knowledge, which keeps the orchestration
// pipeline fully exercisable offline.
func NewGrounded(def Definition, retriever retrieval.Retriever) Capability {
	if retriever == nil {
		retriever = retrieval.Nop{}
	}
	return &Func{
		Identifier: def.ID,
		Desc:       def.Description,
		Fn: func(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error) {
			snippets, err := retriever.Search(ctx, task, ec.RequesterID, 5)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				// Retrieval trouble degrades to empty context, never a hard
				// failure of the capability itself.
				snippets = nil
			}

			var b strings.Builder
			fmt.Fprintf(&b, "[%s] %s\n", def.ID, task)
			confidence := 0.3
			if len(snippets) > 0 {
				confidence = snippets[0].Score
				b.WriteString("grounding:\n")
				for _, s := range snippets {
					fmt.Fprintf(&b, "- (%.2f) %s\n", s.Score, firstLine(s.Content))
				}
			}

			return &models.CapabilityResult{
				Content:    b.String(),
				Confidence: confidence,
				Metadata: map[string]string{
					"capability": def.ID,
					"snippets":   fmt.Sprintf("%d", len(snippets)),
				},
			}, nil
		},
	}
}

// RegisterGrounded registers retrieval-grounded capabilities for every
// definition. The registry stays unsealed so callers can add more before
// serving.
func RegisterGrounded(reg *Registry, defs []Definition, retriever retrieval.Retriever) error {
	for _, def := range defs {
		if err := reg.RegisterWithKeywords(NewGrounded(def, retriever), def.Keywords); err != nil {
			return err
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 160 {
		s = s[:160]
	}
	return strings.TrimSpace(s)
}
