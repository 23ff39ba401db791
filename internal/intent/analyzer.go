package intent

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ensemble-hq/ensemble/internal/capability"
	"github.com/ensemble-hq/ensemble/pkg/models"
)

// Pattern indicator tokens, checked against the normalized request. Matching
// runs over normalized tokens only so that two requests with identical
// fingerprints always classify identically.
var (
	consensusTokens = []string{"consensus", "perspectives", "compare", "weigh", "viewpoints"}
	parallelTokens  = []string{"simultaneously", "parallel", "concurrently", "together"}
	loopTokens      = []string{"refine", "iterate", "iteratively", "polish", "improve", "revise"}
)

// defaultLoopIterations caps refinement loops composed by the analyzer.
const defaultLoopIterations = 3

// Analysis is the analyzer's classification of one request.
type Analysis struct {
	// Capabilities are the matched capability IDs in first-match order.
	Capabilities []string
	// Pattern is the suggested composition strategy.
	Pattern models.PatternKind
	// Fingerprint is the normalized request fingerprint.
	Fingerprint string
	// Normalized is the normalized request text.
	Normalized string
}

// Analyzer classifies requests against the sealed capability registry.
type Analyzer struct {
	registry *capability.Registry
}

// NewAnalyzer creates an Analyzer over the given registry.
func NewAnalyzer(registry *capability.Registry) *Analyzer {
	return &Analyzer{registry: registry}
}

// Analyze maps a free-text request to the capabilities it needs and a
// suggested pattern. It either returns a non-empty capability set or a
// NoCapabilityMatch failure; never an empty set with success.
func (a *Analyzer) Analyze(request string) (*Analysis, error) {
	normalized := Normalize(request)
	tokens := make(map[string]bool)
	for _, t := range strings.Fields(normalized) {
		tokens[t] = true
	}

	var caps []string
	for _, id := range a.registry.IDs() {
		for _, kw := range a.registry.Keywords(id) {
			if tokens[kw] {
				caps = append(caps, id)
				break
			}
		}
	}

	if len(caps) == 0 {
		return nil, models.Failuref(models.FailNoCapabilityMatch,
			"no capability matches request; available: %s",
			strings.Join(a.registry.IDs(), ", "))
	}

	return &Analysis{
		Capabilities: caps,
		Pattern:      choosePattern(tokens, len(caps)),
		Fingerprint:  Fingerprint(request),
		Normalized:   normalized,
	}, nil
}

// choosePattern picks a composition strategy from request phrasing.
// Multi-perspective language selects Consensus, explicit concurrency selects
// Parallel, refinement language selects Loop, and everything else runs
// Sequential. Conditional trees are never composed from free text; they only
// arrive via stored workflows.
func choosePattern(tokens map[string]bool, capCount int) models.PatternKind {
	anyToken := func(indicators []string) bool {
		for _, t := range indicators {
			if tokens[t] {
				return true
			}
		}
		return false
	}

	if capCount > 1 && anyToken(consensusTokens) {
		return models.PatternConsensus
	}
	if capCount > 1 && anyToken(parallelTokens) {
		return models.PatternParallel
	}
	if anyToken(loopTokens) {
		return models.PatternLoop
	}
	return models.PatternSequential
}

// Compose builds a persistable workflow from an analysis. The coordinator
// role (consensus synthesis, loop escalation checks) goes to the strategic
// capability when it matched, otherwise to the first matched capability.
func (a *Analyzer) Compose(requesterID string, analysis *Analysis) (*models.ComposedWorkflow, error) {
	leaves := make([]models.WorkflowStep, len(analysis.Capabilities))
	for i, id := range analysis.Capabilities {
		leaves[i] = models.LeafStep(id)
	}

	var root models.WorkflowStep
	switch analysis.Pattern {
	case models.PatternParallel:
		root = models.ParallelStep(leaves...)
	case models.PatternConsensus:
		root = models.ConsensusStep(coordinator(analysis.Capabilities), leaves...)
	case models.PatternLoop:
		loop, err := models.LoopStep(defaultLoopIterations, coordinator(analysis.Capabilities), leaves...)
		if err != nil {
			return nil, err
		}
		root = loop
	default:
		root = models.SequentialStep(leaves...)
	}

	if err := root.Validate(); err != nil {
		return nil, err
	}

	return &models.ComposedWorkflow{
		ID:          uuid.New().String(),
		RequesterID: requesterID,
		Name:        workflowName(analysis.Capabilities, analysis.Pattern),
		Fingerprint: analysis.Fingerprint,
		Root:        root,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// coordinator returns the capability used for synthesis and escalation checks.
func coordinator(caps []string) string {
	for _, id := range caps {
		if id == "strategic" {
			return id
		}
	}
	return caps[0]
}

// workflowName generates a unique, readable name from the pattern and the
// first capabilities, suffixed with a timestamp.
func workflowName(caps []string, pattern models.PatternKind) string {
	head := caps
	if len(head) > 3 {
		head = head[:3]
	}
	return fmt.Sprintf("%s_%s_%s", pattern, strings.Join(head, "_"),
		time.Now().UTC().Format("20060102150405"))
}
