package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/fluxlite/fluxlite/pkg/manifest"
)

// runCommand executes a binary with the given working directory, capturing
// stderr into the returned error. Honours context cancellation.
func runCommand(ctx context.Context, logger zerolog.Logger, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug().Str("cmd", name).Strs("args", args).Str("dir", dir).Msg("Running command")

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%s %s: %s", name, strings.Join(args, " "), msg)
	}
	return stdout.Bytes(), nil
}

// ExecFetcher fetches sources by invoking the git and oras binaries.
// Helm repository indexes are fetched over HTTP by IndexFetcher; composing
// the two is done by NewFetcher.
type ExecFetcher struct {
	logger zerolog.Logger
	index  *IndexFetcher
}

// NewFetcher creates a fetcher that dispatches on the source kind.
func NewFetcher(logger zerolog.Logger) *ExecFetcher {
	return &ExecFetcher{
		logger: logger.With().Str("component", "fetcher").Logger(),
		index:  NewIndexFetcher(logger),
	}
}

// Fetch implements Fetcher.
func (f *ExecFetcher) Fetch(ctx context.Context, src manifest.Source, dest string) error {
	switch s := src.(type) {
	case *manifest.GitRepository:
		return f.fetchGit(ctx, s, dest)
	case *manifest.OCIRepository:
		return f.fetchOCI(ctx, s, dest)
	case *manifest.HelmRepository:
		return f.index.Fetch(ctx, s, dest)
	default:
		return fmt.Errorf("unsupported source kind: %s", src.ObjectRef().Kind)
	}
}

func (f *ExecFetcher) fetchGit(ctx context.Context, repo *manifest.GitRepository, dest string) error {
	// A destination from an earlier floating-ref fetch is replaced
	// wholesale; partial clones are never reused.
	if err := clearDir(dest); err != nil {
		return err
	}

	args := []string{"clone", "--depth", "1"}
	switch {
	case repo.Ref.Commit != "":
		// Shallow clones cannot target a commit directly.
		args = []string{"clone", repo.URL, dest}
	case repo.Ref.Tag != "":
		args = append(args, "--branch", repo.Ref.Tag, repo.URL, dest)
	case repo.Ref.Branch != "":
		args = append(args, "--branch", repo.Ref.Branch, repo.URL, dest)
	default:
		args = append(args, repo.URL, dest)
	}

	if _, err := runCommand(ctx, f.logger, "", "git", args...); err != nil {
		return err
	}
	if repo.Ref.Commit != "" {
		if _, err := runCommand(ctx, f.logger, dest, "git", "checkout", repo.Ref.Commit); err != nil {
			return err
		}
	}
	return nil
}

func (f *ExecFetcher) fetchOCI(ctx context.Context, repo *manifest.OCIRepository, dest string) error {
	_, err := runCommand(ctx, f.logger, "", "oras", "pull", repo.VersionedURL(), "-o", dest)
	return err
}

// clearDir removes the contents of dir without removing dir itself, so
// the cache-assigned path stays valid.
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// HelmDependencyBuilder runs `helm dependency build` in a chart directory.
type HelmDependencyBuilder struct {
	logger zerolog.Logger
}

// NewHelmDependencyBuilder creates a builder backed by the helm binary.
func NewHelmDependencyBuilder(logger zerolog.Logger) *HelmDependencyBuilder {
	return &HelmDependencyBuilder{logger: logger.With().Str("component", "helm-deps").Logger()}
}

// BuildDependencies implements DependencyBuilder.
func (b *HelmDependencyBuilder) BuildDependencies(ctx context.Context, chartDir string) error {
	_, err := runCommand(ctx, b.logger, chartDir, "helm", "dependency", "build")
	return err
}

// HelmTemplater renders releases with `helm template`.
type HelmTemplater struct {
	logger zerolog.Logger
}

// NewHelmTemplater creates a templater backed by the helm binary.
func NewHelmTemplater(logger zerolog.Logger) *HelmTemplater {
	return &HelmTemplater{logger: logger.With().Str("component", "helm-template").Logger()}
}

// Template implements Templater.
func (t *HelmTemplater) Template(ctx context.Context, release *manifest.HelmRelease, chart ChartSource) ([]byte, error) {
	args := []string{"template", release.TargetName()}
	switch {
	case chart.Dir != "":
		args = append(args, chart.Dir)
	case chart.RepoURL != "":
		args = append(args, release.Chart.Chart, "--repo", chart.RepoURL)
		if release.Chart.Version != "" {
			args = append(args, "--version", release.Chart.Version)
		}
	default:
		return nil, fmt.Errorf("no chart source resolved for release %s", release.TargetName())
	}
	args = append(args, "--namespace", release.Meta.Namespace)

	cleanup, args, err := appendValues(args, release)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return runCommand(ctx, t.logger, "", "helm", args...)
}

// appendValues writes inline release values to a temp file and appends the
// corresponding --values flag. The returned cleanup is always non-nil.
func appendValues(args []string, release *manifest.HelmRelease) (func(), []string, error) {
	if len(release.Values) == 0 {
		return func() {}, args, nil
	}
	f, err := os.CreateTemp("", "fluxlite-values-*.yaml")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create values file: %w", err)
	}
	enc := yaml.NewEncoder(f)
	if err := enc.Encode(release.Values); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, nil, fmt.Errorf("failed to write values file: %w", err)
	}
	enc.Close()
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, nil, err
	}
	cleanup := func() { os.Remove(f.Name()) }
	return cleanup, append(args, "--values", f.Name()), nil
}

// ExecKustomizeBuilder renders overlays with `kustomize build`.
type ExecKustomizeBuilder struct {
	logger zerolog.Logger
}

// NewKustomizeBuilder creates a builder backed by the kustomize binary.
func NewKustomizeBuilder(logger zerolog.Logger) *ExecKustomizeBuilder {
	return &ExecKustomizeBuilder{logger: logger.With().Str("component", "kustomize").Logger()}
}

// Build implements KustomizeBuilder.
func (b *ExecKustomizeBuilder) Build(ctx context.Context, dir string) ([]byte, error) {
	return runCommand(ctx, b.logger, "", "kustomize", "build", dir)
}
