package intent

import (
	"context"
	"testing"

	"github.com/ensemble-hq/ensemble/internal/capability"
	"github.com/ensemble-hq/ensemble/pkg/models"
)

func testRegistry(t *testing.T) *capability.Registry {
	t.Helper()
	reg := capability.NewRegistry()
	if err := capability.RegisterGrounded(reg, capability.BuiltinDefinitions(), nil); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	reg.Seal()
	return reg
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Please help me analyze the quarterly REVENUE!", "analyze quarterly revenue"},
		{"  what   is  our   marketing   budget? ", "marketing budget"},
		{"I want to improve our sales pipeline.", "improve sales pipeline"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFingerprintStableAcrossPhrasing(t *testing.T) {
	a := Fingerprint("Please analyze the quarterly revenue")
	b := Fingerprint("analyze quarterly revenue!!!")
	if a != b {
		t.Error("expected identical fingerprints for equivalent requests")
	}

	c := Fingerprint("draft a marketing campaign")
	if a == c {
		t.Error("expected different fingerprints for different requests")
	}
}

func TestAnalyzeMatchesCapabilities(t *testing.T) {
	an := NewAnalyzer(testRegistry(t))

	analysis, err := an.Analyze("analyze revenue and build a marketing campaign")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	found := map[string]bool{}
	for _, id := range analysis.Capabilities {
		found[id] = true
	}
	if !found["financial"] || !found["marketing"] {
		t.Errorf("expected financial and marketing, got %v", analysis.Capabilities)
	}
	if analysis.Pattern != models.PatternSequential {
		t.Errorf("expected sequential default, got %s", analysis.Pattern)
	}
}

func TestAnalyzeNoMatchFails(t *testing.T) {
	an := NewAnalyzer(testRegistry(t))

	_, err := an.Analyze("xyzzy frobnicate the quux")
	if err == nil {
		t.Fatal("expected no_capability_match")
	}
	if !models.IsKind(err, models.FailNoCapabilityMatch) {
		t.Errorf("expected no_capability_match, got %v", err)
	}
}

func TestAnalyzePatternSelection(t *testing.T) {
	an := NewAnalyzer(testRegistry(t))

	tests := []struct {
		request string
		want    models.PatternKind
	}{
		{"compare revenue and marketing perspectives", models.PatternConsensus},
		{"run revenue analysis and campaign planning simultaneously", models.PatternParallel},
		{"iterate on the blog content until polished", models.PatternLoop},
		{"analyze revenue", models.PatternSequential},
	}
	for _, tt := range tests {
		analysis, err := an.Analyze(tt.request)
		if err != nil {
			t.Fatalf("analyze %q: %v", tt.request, err)
		}
		if analysis.Pattern != tt.want {
			t.Errorf("pattern for %q: expected %s, got %s", tt.request, tt.want, analysis.Pattern)
		}
	}
}

func TestAnalyzeDeterministicForEqualFingerprints(t *testing.T) {
	an := NewAnalyzer(testRegistry(t))

	first, err := an.Analyze("Analyze the quarterly revenue data")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	second, err := an.Analyze("analyze quarterly revenue data!")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if first.Fingerprint != second.Fingerprint {
		t.Fatal("expected equal fingerprints")
	}
	if len(first.Capabilities) != len(second.Capabilities) {
		t.Fatalf("capability sets differ: %v vs %v", first.Capabilities, second.Capabilities)
	}
	for i := range first.Capabilities {
		if first.Capabilities[i] != second.Capabilities[i] {
			t.Errorf("capability %d differs: %s vs %s", i, first.Capabilities[i], second.Capabilities[i])
		}
	}
	if first.Pattern != second.Pattern {
		t.Errorf("patterns differ: %s vs %s", first.Pattern, second.Pattern)
	}
}

func TestComposeBuildsValidWorkflow(t *testing.T) {
	an := NewAnalyzer(testRegistry(t))

	analysis, err := an.Analyze("compare revenue and marketing perspectives")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	wf, err := an.Compose("user-1", analysis)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	if wf.RequesterID != "user-1" {
		t.Errorf("expected requester user-1, got %s", wf.RequesterID)
	}
	if wf.Root.Pattern != models.PatternConsensus {
		t.Errorf("expected consensus root, got %s", wf.Root.Pattern)
	}
	if wf.Root.Synthesizer == "" {
		t.Error("expected synthesizer to be designated")
	}
	if err := wf.Root.Validate(); err != nil {
		t.Errorf("composed workflow invalid: %v", err)
	}
	if wf.Fingerprint != analysis.Fingerprint {
		t.Error("expected workflow to carry the analysis fingerprint")
	}
}

func TestComposeLoopCarriesIterationCap(t *testing.T) {
	an := NewAnalyzer(testRegistry(t))

	analysis, err := an.Analyze("iterate on the newsletter content")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis.Pattern != models.PatternLoop {
		t.Fatalf("expected loop pattern, got %s", analysis.Pattern)
	}
	wf, err := an.Compose("user-1", analysis)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if wf.Root.MaxIterations != defaultLoopIterations {
		t.Errorf("expected cap %d, got %d", defaultLoopIterations, wf.Root.MaxIterations)
	}
	if wf.Root.Escalator == "" {
		t.Error("expected escalator to be designated")
	}
}

// Capability invocation is not the analyzer's concern, but the grounded
// builtins should still be invokable from the IDs it selects.
func TestAnalyzedCapabilitiesInvokable(t *testing.T) {
	reg := testRegistry(t)
	an := NewAnalyzer(reg)

	analysis, err := an.Analyze("analyze revenue")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for _, id := range analysis.Capabilities {
		c, err := reg.Lookup(id)
		if err != nil {
			t.Fatalf("lookup %s: %v", id, err)
		}
		ec := models.NewExecutionContext("user-1", "analyze revenue")
		if _, err := c.Invoke(context.Background(), "analyze revenue", ec); err != nil {
			t.Errorf("invoke %s: %v", id, err)
		}
	}
}
