package manifest

import (
	"fmt"
	"strings"
)

// Kind identifies a resource kind handled by the reconciler.
type Kind string

const (
	KindGitRepository  Kind = "GitRepository"
	KindOCIRepository  Kind = "OCIRepository"
	KindHelmRepository Kind = "HelmRepository"
	KindHelmRelease    Kind = "HelmRelease"
	KindKustomization  Kind = "Kustomization"
)

// Validate checks if the kind is one fluxlite reconciles.
func (k Kind) Validate() error {
	switch k {
	case KindGitRepository, KindOCIRepository, KindHelmRepository,
		KindHelmRelease, KindKustomization:
		return nil
	default:
		return fmt.Errorf("unsupported kind: %s", k)
	}
}

// IsSource returns true for kinds that produce fetched source artifacts.
func (k Kind) IsSource() bool {
	return k == KindGitRepository || k == KindOCIRepository || k == KindHelmRepository
}

// NamedResource is the identity tuple for a resource object. Two objects
// refer to the same entity iff their tuples are equal. It is the store's
// primary key and the unit of dependency tracking.
type NamedResource struct {
	Kind      Kind   `json:"kind"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// String renders the tuple as "Kind/namespace/name".
func (r NamedResource) String() string {
	return string(r.Kind) + "/" + r.Namespace + "/" + r.Name
}

// Object is a parsed resource manifest. Implementations are value-complete
// after parsing and must not be mutated by consumers.
type Object interface {
	// ObjectRef returns the identity tuple for this object.
	ObjectRef() NamedResource

	// SourceRef returns the identity of the source this object depends
	// on, if any. Sources themselves return ok=false.
	SourceRef() (NamedResource, bool)
}

// Source is implemented by the three repository kinds. It exposes what the
// artifact cache and fetch collaborators need: a location, a resolved
// revision, and whether that revision is pinned (immutable) or floating.
type Source interface {
	Object
	SourceURL() string
	Revision() string
	Pinned() bool
}

// Metadata carries the identifying fields shared by every manifest.
type Metadata struct {
	Name      string `yaml:"name" validate:"required"`
	Namespace string `yaml:"namespace"`
}

// GitRef selects what to check out from a git repository. At most one of
// Commit, Tag, SemVer, Branch is expected; precedence is in that order.
type GitRef struct {
	Branch string `yaml:"branch"`
	Tag    string `yaml:"tag"`
	SemVer string `yaml:"semver"`
	Commit string `yaml:"commit"`
}

// GitRepository declares a git source to clone and check out.
type GitRepository struct {
	Meta     Metadata
	URL      string `yaml:"url" validate:"required"`
	Ref      GitRef `yaml:"ref"`
	Interval string `yaml:"interval"`
}

func (g *GitRepository) ObjectRef() NamedResource {
	return NamedResource{Kind: KindGitRepository, Namespace: g.Meta.Namespace, Name: g.Meta.Name}
}

func (g *GitRepository) SourceRef() (NamedResource, bool) { return NamedResource{}, false }

func (g *GitRepository) SourceURL() string { return g.URL }

// Revision resolves the declared ref to a single revision string.
func (g *GitRepository) Revision() string {
	switch {
	case g.Ref.Commit != "":
		return g.Ref.Commit
	case g.Ref.Tag != "":
		return g.Ref.Tag
	case g.Ref.SemVer != "":
		return g.Ref.SemVer
	case g.Ref.Branch != "":
		return g.Ref.Branch
	default:
		return "HEAD"
	}
}

// Pinned reports whether the ref can never move: an exact commit or tag.
// Branches, semver ranges and HEAD are floating and always re-fetched.
func (g *GitRepository) Pinned() bool {
	return g.Ref.Commit != "" || g.Ref.Tag != ""
}

// OCIRef selects an OCI artifact version by tag or digest.
type OCIRef struct {
	Tag    string `yaml:"tag"`
	Digest string `yaml:"digest"`
}

// OCIRepository declares an OCI artifact source to pull.
type OCIRepository struct {
	Meta     Metadata
	URL      string `yaml:"url" validate:"required"`
	Ref      OCIRef `yaml:"ref"`
	Interval string `yaml:"interval"`
}

func (o *OCIRepository) ObjectRef() NamedResource {
	return NamedResource{Kind: KindOCIRepository, Namespace: o.Meta.Namespace, Name: o.Meta.Name}
}

func (o *OCIRepository) SourceRef() (NamedResource, bool) { return NamedResource{}, false }

func (o *OCIRepository) SourceURL() string { return o.URL }

func (o *OCIRepository) Revision() string {
	switch {
	case o.Ref.Digest != "":
		return o.Ref.Digest
	case o.Ref.Tag != "":
		return o.Ref.Tag
	default:
		return "latest"
	}
}

// Pinned reports whether the artifact is addressed by digest.
func (o *OCIRepository) Pinned() bool { return o.Ref.Digest != "" }

// VersionedURL returns the pull reference including the tag or digest.
func (o *OCIRepository) VersionedURL() string {
	url := strings.TrimPrefix(o.URL, "oci://")
	if o.Ref.Digest != "" {
		return url + "@" + o.Ref.Digest
	}
	if o.Ref.Tag != "" {
		return url + ":" + o.Ref.Tag
	}
	return url + ":latest"
}

// HelmRepository declares a Helm chart repository whose index is fetched.
type HelmRepository struct {
	Meta     Metadata
	URL      string `yaml:"url" validate:"required"`
	Type     string `yaml:"type" validate:"omitempty,oneof=default oci"`
	Interval string `yaml:"interval"`
}

func (h *HelmRepository) ObjectRef() NamedResource {
	return NamedResource{Kind: KindHelmRepository, Namespace: h.Meta.Namespace, Name: h.Meta.Name}
}

func (h *HelmRepository) SourceRef() (NamedResource, bool) { return NamedResource{}, false }

func (h *HelmRepository) SourceURL() string { return h.URL }

// Revision is constant for repository indexes; the index file is always
// re-fetched so its contents stay current.
func (h *HelmRepository) Revision() string { return "index" }

func (h *HelmRepository) Pinned() bool { return false }

// CrossRef is a reference from one object to another, as written in a
// manifest's sourceRef field. Namespace may be empty and defaults to the
// referring object's namespace.
type CrossRef struct {
	Kind      Kind   `yaml:"kind" validate:"required"`
	Name      string `yaml:"name" validate:"required"`
	Namespace string `yaml:"namespace"`
}

// HelmChartSpec identifies the chart a HelmRelease templates.
type HelmChartSpec struct {
	Chart     string   `yaml:"chart" validate:"required"`
	Version   string   `yaml:"version"`
	SourceRef CrossRef `yaml:"sourceRef" validate:"required"`
}

// HelmRelease declares a release to template from a chart source.
type HelmRelease struct {
	Meta        Metadata
	Chart       HelmChartSpec  `yaml:"chart" validate:"required"`
	ReleaseName string         `yaml:"releaseName"`
	Values      map[string]any `yaml:"values"`
	Interval    string         `yaml:"interval"`
}

func (r *HelmRelease) ObjectRef() NamedResource {
	return NamedResource{Kind: KindHelmRelease, Namespace: r.Meta.Namespace, Name: r.Meta.Name}
}

func (r *HelmRelease) SourceRef() (NamedResource, bool) {
	ns := r.Chart.SourceRef.Namespace
	if ns == "" {
		ns = r.Meta.Namespace
	}
	return NamedResource{Kind: r.Chart.SourceRef.Kind, Namespace: ns, Name: r.Chart.SourceRef.Name}, true
}

// TargetName is the helm release name: releaseName if set, else the
// object name.
func (r *HelmRelease) TargetName() string {
	if r.ReleaseName != "" {
		return r.ReleaseName
	}
	return r.Meta.Name
}

// Kustomization declares a kustomize build over a path within a source.
type Kustomization struct {
	Meta     Metadata
	Path     string   `yaml:"path"`
	Source   CrossRef `yaml:"sourceRef" validate:"required"`
	Prune    bool     `yaml:"prune"`
	Interval string   `yaml:"interval"`
}

func (k *Kustomization) ObjectRef() NamedResource {
	return NamedResource{Kind: KindKustomization, Namespace: k.Meta.Namespace, Name: k.Meta.Name}
}

func (k *Kustomization) SourceRef() (NamedResource, bool) {
	ns := k.Source.Namespace
	if ns == "" {
		ns = k.Meta.Namespace
	}
	return NamedResource{Kind: k.Source.Kind, Namespace: ns, Name: k.Source.Name}, true
}
