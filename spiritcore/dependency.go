package spiritcore

import (
	"fmt"
	"sort"
)

// Dependency describes a Spirit's dependency on another package, either by
// registry version requirement, git reference, or local path.
type Dependency struct {
	Version  string // version requirement string; empty means Any
	Registry string // registry name; "" resolves to "default"
	Git      string
	Rev      string
	Path     string
	Optional bool
	Features []string
}

// NewDependency builds a registry dependency with the given version
// requirement string.
func NewDependency(version string) Dependency { return Dependency{Version: version} }

// NewGitDependency builds a dependency resolved from a git repository. An
// empty rev is stored as given and resolves to "HEAD".
func NewGitDependency(url, rev string) Dependency { return Dependency{Git: url, Rev: rev} }

// NewPathDependency builds a dependency resolved from a local filesystem
// path.
func NewPathDependency(path string) Dependency { return Dependency{Path: path} }

// VersionRequirement parses the dependency's version string, treating an
// empty string as Any.
func (d Dependency) VersionRequirement() (VersionRequirement, error) {
	if d.Version == "" {
		return VersionRequirement{Kind: ReqAny}, nil
	}
	return ParseVersionRequirement(d.Version)
}

// IsLocal reports whether this is a local path dependency.
func (d Dependency) IsLocal() bool { return d.Path != "" }

// IsGit reports whether this is a git dependency.
func (d Dependency) IsGit() bool { return d.Git != "" }

// IsRegistry reports whether this resolves through a package registry.
func (d Dependency) IsRegistry() bool { return !d.IsLocal() && !d.IsGit() }

// DependencySourceKind distinguishes where a resolved dependency came from.
type DependencySourceKind uint8

const (
	SourceRegistry DependencySourceKind = iota
	SourceGit
	SourceLocal
)

// DependencySource records the resolved origin of a dependency.
type DependencySource struct {
	Kind     DependencySourceKind
	Registry string // set when Kind == SourceRegistry
	GitURL   string // set when Kind == SourceGit
	GitRev   string // set when Kind == SourceGit
	Path     string // set when Kind == SourceLocal
}

// ResolvedDependency pairs a dependency name with the concrete version and
// source the resolver selected for it.
type ResolvedDependency struct {
	Name    string
	Version SemVer
	Source  DependencySource
}

// ResolutionError is returned by DependencyResolver.Resolve, distinguishing
// the specific reason a dependency could not be resolved.
type ResolutionError struct {
	Kind        error // one of the sentinel Err* values below
	PackageName string
	Requirement string
}

func (e *ResolutionError) Error() string {
	switch e.Kind {
	case ErrPackageNotFound:
		return fmt.Sprintf("package not found: %s", e.PackageName)
	case ErrNoMatchingVersion:
		return fmt.Sprintf("no version of %s satisfies %s", e.PackageName, e.Requirement)
	case ErrInvalidVersion:
		return fmt.Sprintf("invalid version for %s: %s", e.PackageName, e.Requirement)
	case ErrCyclicDependency:
		return fmt.Sprintf("cyclic dependency involving %s", e.PackageName)
	default:
		return fmt.Sprintf("dependency resolution failed for %s", e.PackageName)
	}
}

func (e *ResolutionError) Unwrap() error { return e.Kind }

// DependencyResolver picks the highest available version satisfying each
// dependency's requirement. It holds no state across calls to Resolve other
// than the registry contents fed to it via AddAvailable, so resolution is
// deterministic regardless of map iteration order — the result depends only
// on the requirement and the available-version set, never on iteration
// ordering of either.
type DependencyResolver struct {
	available map[string][]SemVer
}

// NewDependencyResolver returns a resolver with no registered packages.
func NewDependencyResolver() *DependencyResolver {
	return &DependencyResolver{available: make(map[string][]SemVer)}
}

// AddAvailable registers the versions of name that a registry offers.
func (r *DependencyResolver) AddAvailable(name string, versions []SemVer) {
	r.available[name] = versions
}

// Resolve resolves every dependency in deps, returning one ResolvedDependency
// per entry in ascending name order. It fails fast on the first dependency,
// in that order, that it cannot resolve.
func (r *DependencyResolver) Resolve(deps map[string]Dependency) ([]ResolvedDependency, error) {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ResolvedDependency, 0, len(deps))
	for _, name := range names {
		resolved, err := r.resolveSingle(name, deps[name])
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

func (r *DependencyResolver) resolveSingle(name string, dep Dependency) (ResolvedDependency, error) {
	if dep.Path != "" {
		return ResolvedDependency{
			Name:    name,
			Version: NewSemVer(0, 0, 0),
			Source:  DependencySource{Kind: SourceLocal, Path: dep.Path},
		}, nil
	}

	if dep.Git != "" {
		rev := dep.Rev
		if rev == "" {
			rev = "HEAD"
		}
		return ResolvedDependency{
			Name:    name,
			Version: NewSemVer(0, 0, 0),
			Source:  DependencySource{Kind: SourceGit, GitURL: dep.Git, GitRev: rev},
		}, nil
	}

	requirement, err := dep.VersionRequirement()
	if err != nil {
		return ResolvedDependency{}, &ResolutionError{Kind: ErrInvalidVersion, PackageName: name, Requirement: dep.Version}
	}

	versions, ok := r.available[name]
	if !ok {
		return ResolvedDependency{}, &ResolutionError{Kind: ErrPackageNotFound, PackageName: name}
	}

	var best SemVer
	found := false
	for _, v := range versions {
		if !v.Satisfies(requirement) {
			continue
		}
		if !found || best.Less(v) {
			best, found = v, true
		}
	}
	if !found {
		return ResolvedDependency{}, &ResolutionError{Kind: ErrNoMatchingVersion, PackageName: name, Requirement: dep.Version}
	}

	registry := dep.Registry
	if registry == "" {
		registry = "default"
	}

	return ResolvedDependency{
		Name:    name,
		Version: best,
		Source:  DependencySource{Kind: SourceRegistry, Registry: registry},
	}, nil
}
