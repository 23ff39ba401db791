package capability

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition declares one capability in a catalog file: its identifier, the
// description and keywords the intent analyzer matches against, and the
// domain prompt handed to whatever backend executes it.
type Definition struct {
	// ID is the capability identifier.
	ID string `yaml:"id"`
	// Description is a short human-readable summary.
	Description string `yaml:"description"`
	// Keywords are the request words that select this capability.
	Keywords []string `yaml:"keywords"`
	// Prompt is the domain prompt for LLM-backed execution. Its content is
	// opaque to the orchestration core.
	Prompt string `yaml:"prompt,omitempty"`
}

// Catalog is the on-disk declaration of a capability set.
type Catalog struct {
	Capabilities []Definition `yaml:"capabilities"`
}

// LoadCatalog reads and validates a YAML capability catalog.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes catalog YAML and validates it.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(cat.Capabilities) == 0 {
		return nil, fmt.Errorf("catalog declares no capabilities")
	}
	seen := make(map[string]bool)
	for i, def := range cat.Capabilities {
		if def.ID == "" {
			return nil, fmt.Errorf("catalog entry %d has no id", i)
		}
		if seen[def.ID] {
			return nil, fmt.Errorf("catalog declares %q twice", def.ID)
		}
		seen[def.ID] = true
		if def.Description == "" {
			return nil, fmt.Errorf("capability %q has no description", def.ID)
		}
	}
	return &cat, nil
}
