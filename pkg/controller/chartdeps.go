package controller

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// chartDescriptor is the slice of Chart.yaml this package cares about.
type chartDescriptor struct {
	Name         string `yaml:"name"`
	Dependencies []struct {
		Name       string `yaml:"name"`
		Version    string `yaml:"version"`
		Repository string `yaml:"repository"`
	} `yaml:"dependencies"`
}

// buildChartDependencies discovers Chart.yaml files under root and runs a
// dependency build for each chart declaring at least one dependency. A
// missing root or a tree without descriptors is a silent no-op. A
// descriptor that fails to parse is logged and skipped; a dependency
// build failure aborts the whole reconcile.
func (c *SourceController) buildChartDependencies(ctx context.Context, root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		c.logger.Debug().Str("path", root).Msg("Path does not exist, skipping dependency build")
		return nil
	}

	var chartFiles []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == "Chart.yaml" {
			chartFiles = append(chartFiles, path)
		}
		return nil
	})
	if err != nil {
		return NewFetchError("failed to scan for chart descriptors", err)
	}
	if len(chartFiles) == 0 {
		c.logger.Debug().Str("path", root).Msg("No chart descriptors found")
		return nil
	}

	c.logger.Debug().Int("charts", len(chartFiles)).Str("path", root).Msg("Found chart descriptors")
	for _, chartFile := range chartFiles {
		if err := c.buildChart(ctx, chartFile); err != nil {
			return err
		}
	}
	return nil
}

// buildChart parses one descriptor and runs the dependency build when it
// declares dependencies.
func (c *SourceController) buildChart(ctx context.Context, chartFile string) error {
	raw, err := os.ReadFile(chartFile)
	if err != nil {
		c.logger.Warn().Err(err).Str("chart", chartFile).Msg("Failed to read chart descriptor, skipping")
		return nil
	}

	var desc chartDescriptor
	if err := yaml.Unmarshal(raw, &desc); err != nil {
		c.logger.Warn().Err(err).Str("chart", chartFile).Msg("Failed to parse chart descriptor, skipping")
		return nil
	}
	if len(desc.Dependencies) == 0 {
		c.logger.Debug().Str("chart", chartFile).Msg("No dependencies declared")
		return nil
	}

	chartDir := filepath.Dir(chartFile)
	c.logger.Info().Str("chart", desc.Name).Int("dependencies", len(desc.Dependencies)).
		Str("dir", chartDir).Msg("Building chart dependencies")

	c.metrics.DependencyBuild()
	if err := c.deps.BuildDependencies(ctx, chartDir); err != nil {
		return NewDependencyBuildError("failed to build dependencies for chart "+desc.Name, err)
	}
	return nil
}
