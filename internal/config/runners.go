package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Runner describes one CI runner in the registry.
type Runner struct {
	Platform string `yaml:"platform" validate:"required"`
	Arch     string `yaml:"arch" validate:"required"`

	// Free marks runners that incur no extra cost or quota.
	Free bool `yaml:"free"`
}

// RunnerDef pairs a runner name with its definition.
type RunnerDef struct {
	Name string
	Runner
}

// Runners is the runner registry in document order. Registry order is
// significant: runner selection is first-match-wins.
type Runners struct {
	Defs []RunnerDef
}

// UnmarshalYAML decodes the name -> runner mapping preserving order.
func (r *Runners) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("runner registry must be a mapping of runner names, got %s", kindName(node.Kind))
	}
	for i := 0; i < len(node.Content); i += 2 {
		nameNode, runnerNode := node.Content[i], node.Content[i+1]
		var runner Runner
		if err := runnerNode.Decode(&runner); err != nil {
			return fmt.Errorf("runner %q: %w", nameNode.Value, err)
		}
		r.Defs = append(r.Defs, RunnerDef{Name: nameNode.Value, Runner: runner})
	}
	return nil
}

// Validate checks every runner for its required fields.
func (r *Runners) Validate() error {
	for _, def := range r.Defs {
		if err := validate.Struct(def.Runner); err != nil {
			return fmt.Errorf("runner %q: %w", def.Name, err)
		}
	}
	return nil
}

// Free returns the ordered subset of runners flagged free.
func (r *Runners) Free() *Runners {
	free := &Runners{}
	for _, def := range r.Defs {
		if def.Runner.Free {
			free.Defs = append(free.Defs, def)
		}
	}
	return free
}

// LoadRunners reads and validates the runner registry document.
func LoadRunners(path string) (*Runners, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading runner registry: %w", err)
	}
	var runners Runners
	if err := yaml.Unmarshal(data, &runners); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := runners.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &runners, nil
}
