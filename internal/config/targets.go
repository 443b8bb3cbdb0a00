// Package config loads the two documents driving matrix generation: the
// target configuration (ci-targets.yaml) and the runner registry
// (ci-runners.yaml). Both are decoded with their document order intact,
// because iteration order is part of the output contract (it decides
// which entries land in which shard), and validated eagerly so that a
// malformed document fails with one descriptive error instead of a
// missing-field panic deep inside expansion.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	version "github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// TargetSpec describes one build target within a platform section.
type TargetSpec struct {
	PythonVersions          []string             `yaml:"python_versions" validate:"required"`
	BuildOptions            []string             `yaml:"build_options" validate:"required"`
	BuildOptionsConditional []ConditionalOptions `yaml:"build_options_conditional" validate:"dive"`
	Arch                    string               `yaml:"arch" validate:"required"`
	ArchVariant             string               `yaml:"arch_variant"`
	Libc                    string               `yaml:"libc"`
	VCVars                  string               `yaml:"vcvars"`

	// Run overrides the run/skip-tests decision that otherwise depends
	// on whether the resolved runner matches the target architecture.
	Run *bool `yaml:"run"`
}

// ConditionalOptions are build options that only apply to Python
// versions at or above a minimum.
type ConditionalOptions struct {
	MinimumPythonVersion string   `yaml:"minimum-python-version" validate:"required"`
	Options              []string `yaml:"options" validate:"required"`
}

// Target pairs a target triple with its spec.
type Target struct {
	Triple string
	Spec   TargetSpec
}

// PlatformTargets holds one platform section in document order.
type PlatformTargets struct {
	Name    string
	Targets []Target
}

// Targets is the full target configuration in document order.
type Targets struct {
	Platforms []PlatformTargets
}

// UnmarshalYAML decodes the two-level platform -> triple -> spec mapping
// while preserving the order of both levels.
func (t *Targets) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("target configuration must be a mapping of platforms, got %s", kindName(node.Kind))
	}
	for i := 0; i < len(node.Content); i += 2 {
		platformNode, targetsNode := node.Content[i], node.Content[i+1]
		if targetsNode.Kind != yaml.MappingNode {
			return fmt.Errorf("platform %q must be a mapping of target triples, got %s",
				platformNode.Value, kindName(targetsNode.Kind))
		}
		platform := PlatformTargets{Name: platformNode.Value}
		for j := 0; j < len(targetsNode.Content); j += 2 {
			tripleNode, specNode := targetsNode.Content[j], targetsNode.Content[j+1]
			var spec TargetSpec
			if err := specNode.Decode(&spec); err != nil {
				return fmt.Errorf("target %s/%s: %w", platformNode.Value, tripleNode.Value, err)
			}
			platform.Targets = append(platform.Targets, Target{Triple: tripleNode.Value, Spec: spec})
		}
		t.Platforms = append(t.Platforms, platform)
	}
	return nil
}

// Validate checks every target spec for required fields and parseable
// version strings.
func (t *Targets) Validate() error {
	for _, platform := range t.Platforms {
		for _, target := range platform.Targets {
			if err := validateSpec(target.Spec); err != nil {
				return fmt.Errorf("target %s/%s: %w", platform.Name, target.Triple, err)
			}
		}
	}
	return nil
}

func validateSpec(spec TargetSpec) error {
	if err := validate.Struct(spec); err != nil {
		return err
	}
	for _, python := range spec.PythonVersions {
		if _, err := version.NewVersion(python); err != nil {
			return fmt.Errorf("python version %q: %w", python, err)
		}
	}
	for _, conditional := range spec.BuildOptionsConditional {
		if _, err := version.NewVersion(conditional.MinimumPythonVersion); err != nil {
			return fmt.Errorf("minimum-python-version %q: %w", conditional.MinimumPythonVersion, err)
		}
	}
	return nil
}

// LoadTargets reads and validates the target configuration document.
func LoadTargets(path string) (*Targets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading target configuration: %w", err)
	}
	var targets Targets
	if err := yaml.Unmarshal(data, &targets); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := targets.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &targets, nil
}

func kindName(kind yaml.Kind) string {
	switch kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown"
}
