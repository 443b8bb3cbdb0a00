package matrix

import (
	"fmt"
	"strconv"

	version "github.com/hashicorp/go-version"

	"matrixgen/internal/config"
	"matrixgen/internal/labels"
)

// Options controls expansion.
type Options struct {
	// Platform restricts expansion to one platform section; empty means
	// all platforms.
	Platform string

	// Directives are the directive labels active during expansion. Only
	// dry-run is consulted here; skip is handled by Filter.
	Directives labels.Set
}

// Expand produces the full unfiltered entry sequence. Order is a
// contract: platforms and target triples in document order, then for
// each target the unconditional python x build-option pairs (python
// outer, option inner), then each conditional block in declared order
// with the same nesting. Shard assignment depends on this order.
func Expand(targets *config.Targets, runners *config.Runners, opts Options) ([]Entry, error) {
	var entries []Entry
	for _, platform := range targets.Platforms {
		if opts.Platform != "" && platform.Name != opts.Platform {
			continue
		}
		for _, target := range platform.Targets {
			expanded, err := expandTarget(platform.Name, target, runners, opts.Directives)
			if err != nil {
				return nil, err
			}
			entries = append(entries, expanded...)
		}
	}
	return entries, nil
}

func expandTarget(platform string, target config.Target, runners *config.Runners, directives labels.Set) ([]Entry, error) {
	spec := target.Spec

	runner, err := findRunner(runners, platform, spec.Arch)
	if err != nil {
		return nil, err
	}

	base := Entry{
		Arch:         spec.Arch,
		TargetTriple: target.Triple,
		Platform:     platform,
		Runner:       runner.Name,
		// Cross-arch entries default to build-only: tests can't run on a
		// runner whose architecture differs from the target's.
		Run:         strconv.FormatBool(runner.Arch == spec.Arch),
		ArchVariant: spec.ArchVariant,
		Libc:        spec.Libc,
		VCVars:      spec.VCVars,
	}
	if spec.Run != nil {
		base.Run = strconv.FormatBool(*spec.Run)
	}
	if directives.Has(labels.DirectiveDryRun) {
		base.DryRun = "true"
	}

	var entries []Entry
	for _, python := range spec.PythonVersions {
		for _, option := range spec.BuildOptions {
			entry := base
			entry.Python = python
			entry.BuildOptions = option
			entries = append(entries, entry)
		}
	}

	// Conditional options (e.g. freethreaded) only apply at or above
	// their minimum Python version. A version qualifying for several
	// blocks contributes entries for each of them.
	for _, conditional := range spec.BuildOptionsConditional {
		minimum, err := version.NewVersion(conditional.MinimumPythonVersion)
		if err != nil {
			return nil, fmt.Errorf("target %s/%s: minimum-python-version %q: %w",
				platform, target.Triple, conditional.MinimumPythonVersion, err)
		}
		for _, python := range spec.PythonVersions {
			v, err := version.NewVersion(python)
			if err != nil {
				return nil, fmt.Errorf("target %s/%s: python version %q: %w",
					platform, target.Triple, python, err)
			}
			if v.LessThan(minimum) {
				continue
			}
			for _, option := range conditional.Options {
				entry := base
				entry.Python = python
				entry.BuildOptions = option
				entries = append(entries, entry)
			}
		}
	}

	return entries, nil
}

// findRunner resolves a runner for a platform/arch pair. Registry order
// decides ties: the first runner matching platform and arch wins; with
// no arch match, the first runner matching the platform alone is used
// (the entry then builds without running tests). No platform match at
// all is a configuration error that aborts the run.
func findRunner(runners *config.Runners, platform, arch string) (config.RunnerDef, error) {
	var fallback config.RunnerDef
	found := false
	for _, def := range runners.Defs {
		if def.Runner.Platform != platform {
			continue
		}
		if def.Runner.Arch == arch {
			return def, nil
		}
		if !found {
			fallback = def
			found = true
		}
	}
	if found {
		return fallback, nil
	}
	return config.RunnerDef{}, fmt.Errorf("no runner found for platform %q and arch %q", platform, arch)
}
