package spiritcore

import (
	"errors"
	"testing"
)

func TestDependencyResolverPicksMaxSatisfyingVersion(t *testing.T) {
	r := NewDependencyResolver()
	r.AddAvailable("widget", []SemVer{
		NewSemVer(1, 0, 0),
		NewSemVer(1, 1, 0),
		NewSemVer(2, 0, 0),
	})

	resolved, err := r.Resolve(map[string]Dependency{
		"widget": NewDependency("^1.0.0"),
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resolved) != 1 {
		t.Fatalf("expected 1 resolved dependency, got %d", len(resolved))
	}
	if got := resolved[0].Version; !got.Equal(NewSemVer(1, 1, 0)) {
		t.Errorf("resolved version = %s, want 1.1.0", got)
	}
}

func TestDependencyResolverIsDeterministic(t *testing.T) {
	r := NewDependencyResolver()
	r.AddAvailable("a", []SemVer{NewSemVer(1, 0, 0), NewSemVer(1, 2, 0)})
	r.AddAvailable("b", []SemVer{NewSemVer(3, 0, 0)})

	deps := map[string]Dependency{
		"a": NewDependency("^1.0.0"),
		"b": NewDependency("*"),
	}

	first, err := r.Resolve(deps)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := r.Resolve(deps)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	versions := func(rs []ResolvedDependency) map[string]string {
		m := make(map[string]string)
		for _, r := range rs {
			m[r.Name] = r.Version.String()
		}
		return m
	}
	v1, v2 := versions(first), versions(second)
	for name, v := range v1 {
		if v2[name] != v {
			t.Errorf("resolution for %s differs across runs: %s vs %s", name, v, v2[name])
		}
	}
}

func TestDependencyResolverPackageNotFound(t *testing.T) {
	r := NewDependencyResolver()
	_, err := r.Resolve(map[string]Dependency{"ghost": NewDependency("*")})
	if err == nil {
		t.Fatal("expected an error for an unregistered package")
	}
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected *ResolutionError, got %T", err)
	}
	if !errors.Is(err, ErrPackageNotFound) {
		t.Errorf("expected ErrPackageNotFound, got %v", resErr.Kind)
	}
}

func TestDependencyResolverNoMatchingVersion(t *testing.T) {
	r := NewDependencyResolver()
	r.AddAvailable("widget", []SemVer{NewSemVer(1, 0, 0)})
	_, err := r.Resolve(map[string]Dependency{"widget": NewDependency(">=2.0.0")})
	if !errors.Is(err, ErrNoMatchingVersion) {
		t.Errorf("expected ErrNoMatchingVersion, got %v", err)
	}
}

func TestDependencyResolverLocalAndGitBypassVersioning(t *testing.T) {
	r := NewDependencyResolver()
	deps := map[string]Dependency{
		"local-lib": NewPathDependency("../local-lib"),
		"git-lib":   NewGitDependency("https://example.com/repo.git", ""),
	}
	resolved, err := r.Resolve(deps)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for _, rd := range resolved {
		switch rd.Name {
		case "local-lib":
			if rd.Source.Kind != SourceLocal {
				t.Errorf("local-lib should resolve to a local source")
			}
		case "git-lib":
			if rd.Source.Kind != SourceGit || rd.Source.GitRev != "HEAD" {
				t.Errorf("git-lib should resolve to git source with HEAD rev, got %+v", rd.Source)
			}
		}
	}
}
