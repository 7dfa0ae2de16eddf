package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const allKinds = `apiVersion: source.toolkit.fluxcd.io/v1
kind: GitRepository
metadata:
  name: podinfo
  namespace: apps
spec:
  url: https://github.com/stefanprodan/podinfo
  ref:
    tag: 6.5.0
---
apiVersion: source.toolkit.fluxcd.io/v1beta2
kind: OCIRepository
metadata:
  name: charts
  namespace: apps
spec:
  url: oci://ghcr.io/org/charts
  ref:
    digest: sha256:deadbeef
---
apiVersion: source.toolkit.fluxcd.io/v1
kind: HelmRepository
metadata:
  name: bitnami
spec:
  url: https://charts.bitnami.com/bitnami
---
apiVersion: helm.toolkit.fluxcd.io/v2
kind: HelmRelease
metadata:
  name: podinfo
  namespace: apps
spec:
  releaseName: podinfo-prod
  chart:
    chart: charts/podinfo
    version: 6.5.0
    sourceRef:
      kind: GitRepository
      name: podinfo
  values:
    replicaCount: 2
---
apiVersion: kustomize.toolkit.fluxcd.io/v1
kind: Kustomization
metadata:
  name: infra
  namespace: flux-system
spec:
  path: ./infrastructure
  prune: true
  sourceRef:
    kind: GitRepository
    name: podinfo
    namespace: apps
`

func TestParseAllKinds(t *testing.T) {
	p := NewParser(zerolog.Nop())

	objects, err := p.Parse(strings.NewReader(allKinds))
	require.NoError(t, err)
	require.Len(t, objects, 5)

	git, ok := objects[0].(*GitRepository)
	require.True(t, ok)
	assert.Equal(t, "https://github.com/stefanprodan/podinfo", git.URL)
	assert.Equal(t, "6.5.0", git.Revision())
	assert.True(t, git.Pinned())
	assert.Equal(t, NamedResource{Kind: KindGitRepository, Namespace: "apps", Name: "podinfo"}, git.ObjectRef())

	oci, ok := objects[1].(*OCIRepository)
	require.True(t, ok)
	assert.True(t, oci.Pinned())
	assert.Equal(t, "ghcr.io/org/charts@sha256:deadbeef", oci.VersionedURL())

	repo, ok := objects[2].(*HelmRepository)
	require.True(t, ok)
	assert.Equal(t, "default", repo.Meta.Namespace, "missing namespace defaults")
	assert.False(t, repo.Pinned())

	rel, ok := objects[3].(*HelmRelease)
	require.True(t, ok)
	assert.Equal(t, "podinfo-prod", rel.TargetName())
	assert.Equal(t, float64(2), toFloat(rel.Values["replicaCount"]))
	srcKey, hasSrc := rel.SourceRef()
	require.True(t, hasSrc)
	assert.Equal(t, NamedResource{Kind: KindGitRepository, Namespace: "apps", Name: "podinfo"}, srcKey,
		"sourceRef namespace defaults to the release's namespace")

	ks, ok := objects[4].(*Kustomization)
	require.True(t, ok)
	assert.Equal(t, "./infrastructure", ks.Path)
	assert.True(t, ks.Prune)
	ksSrc, _ := ks.SourceRef()
	assert.Equal(t, "apps", ksSrc.Namespace, "an explicit sourceRef namespace wins")
}

// yaml.v3 decodes small integers as int; map values may surface either way.
func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	default:
		return -1
	}
}

func TestUnsupportedKindIsSkipped(t *testing.T) {
	p := NewParser(zerolog.Nop())

	objects, err := p.Parse(strings.NewReader(`apiVersion: v1
kind: ConfigMap
metadata:
  name: not-ours
---
apiVersion: source.toolkit.fluxcd.io/v1
kind: GitRepository
metadata:
  name: repo
spec:
  url: https://example.com/repo.git
`))
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, KindGitRepository, objects[0].ObjectRef().Kind)
}

func TestEmptyDocumentsAreIgnored(t *testing.T) {
	p := NewParser(zerolog.Nop())

	objects, err := p.Parse(strings.NewReader("---\n---\n"))
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestMissingRequiredFieldFails(t *testing.T) {
	p := NewParser(zerolog.Nop())

	_, err := p.Parse(strings.NewReader(`apiVersion: source.toolkit.fluxcd.io/v1
kind: GitRepository
metadata:
  name: repo
spec:
  ref:
    branch: main
`))
	require.Error(t, err, "a GitRepository without url is invalid")
}

func TestMissingNameFails(t *testing.T) {
	p := NewParser(zerolog.Nop())

	_, err := p.Parse(strings.NewReader(`apiVersion: source.toolkit.fluxcd.io/v1
kind: GitRepository
metadata:
  namespace: apps
spec:
  url: https://example.com/repo.git
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metadata.name")
}

func TestMalformedYAMLFails(t *testing.T) {
	p := NewParser(zerolog.Nop())

	_, err := p.Parse(strings.NewReader("{{ not yaml ]]"))
	require.Error(t, err)
}

func TestParseDirWalksTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sources", "git.yaml"), `apiVersion: source.toolkit.fluxcd.io/v1
kind: GitRepository
metadata:
  name: repo
spec:
  url: https://example.com/repo.git
`)
	writeFile(t, filepath.Join(root, "releases", "app.yml"), `apiVersion: helm.toolkit.fluxcd.io/v2
kind: HelmRelease
metadata:
  name: app
spec:
  chart:
    chart: charts/app
    sourceRef:
      kind: GitRepository
      name: repo
`)
	writeFile(t, filepath.Join(root, "README.md"), "not a manifest")
	writeFile(t, filepath.Join(root, ".git", "config.yaml"), "hidden: true")

	p := NewParser(zerolog.Nop())
	objects, err := p.ParseDir(root)
	require.NoError(t, err)
	assert.Len(t, objects, 2, "yaml and yml parsed, hidden dirs and other files skipped")
}

func TestParseFileReportsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, `apiVersion: source.toolkit.fluxcd.io/v1
kind: GitRepository
metadata:
  name: repo
spec:
  ref: {}
`)

	p := NewParser(zerolog.Nop())
	_, err := p.ParseFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
