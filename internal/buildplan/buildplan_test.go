package buildplan

import (
	"testing"

	"github.com/fncraft/flux/internal/cache"
	"github.com/fncraft/flux/internal/pkgid"
	"github.com/fncraft/flux/internal/semver"
)

func mustName(t *testing.T, s string) pkgid.Name {
	t.Helper()
	n, err := pkgid.ParseName(s)
	if err != nil {
		t.Fatalf("ParseName(%q): %v", s, err)
	}
	return n
}

func mustVersion(t *testing.T, s string) semver.Version {
	t.Helper()
	v, err := semver.ParseVersion(s)
	if err != nil {
		t.Fatalf("ParseVersion(%q): %v", s, err)
	}
	return v
}

func summary(t *testing.T, name, version string) pkgid.Summary {
	return pkgid.Summary{Name: mustName(t, name), Version: mustVersion(t, version), Resolution: pkgid.NewIndex("")}
}

// fakeIndex supplies Dependencies and SourceDigest from fixed tables
// keyed by package name, standing in for internal/index.Index and
// internal/fetch's source hashing in tests.
type fakeIndex struct {
	deps    map[string][]pkgid.Dependency
	digests map[string]string
}

func (f *fakeIndex) Dependencies(s pkgid.Summary) ([]pkgid.Dependency, error) {
	return f.deps[s.Name.String()], nil
}

func (f *fakeIndex) SourceDigest(s pkgid.Summary) (string, error) {
	return f.digests[s.Name.String()], nil
}

func TestBuildOrdersDependenciesBeforeConsumers(t *testing.T) {
	root := summary(t, "acme/app", "1.0.0")
	lib := summary(t, "acme/lib", "2.0.0")

	sel := map[pkgid.Key]pkgid.Summary{
		root.PackageId().Key(): root,
		lib.PackageId().Key():  lib,
	}
	idx := &fakeIndex{
		deps: map[string][]pkgid.Dependency{
			"acme/app": {{Name: lib.Name, Resolution: pkgid.NewIndex(""), Constraint: semver.Any()}},
		},
		digests: map[string]string{"acme/app": "app-src", "acme/lib": "lib-src"},
	}

	plan, err := Build(sel, idx, idx, cache.Environment{CompilerID: "fluxc-1.0"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(plan.Order) != 2 {
		t.Fatalf("len(Order) = %d, want 2", len(plan.Order))
	}
	if plan.Order[0] != lib.PackageId().Key() || plan.Order[1] != root.PackageId().Key() {
		t.Errorf("Order = %v, want lib before app", plan.Order)
	}
}

func TestBuildFingerprintDependsOnDependencyFingerprint(t *testing.T) {
	root := summary(t, "acme/app", "1.0.0")
	lib := summary(t, "acme/lib", "2.0.0")
	sel := map[pkgid.Key]pkgid.Summary{
		root.PackageId().Key(): root,
		lib.PackageId().Key():  lib,
	}
	deps := map[string][]pkgid.Dependency{
		"acme/app": {{Name: lib.Name, Resolution: pkgid.NewIndex(""), Constraint: semver.Any()}},
	}

	idx1 := &fakeIndex{deps: deps, digests: map[string]string{"acme/app": "app-src", "acme/lib": "lib-src-v1"}}
	plan1, err := Build(sel, idx1, idx1, cache.Environment{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	idx2 := &fakeIndex{deps: deps, digests: map[string]string{"acme/app": "app-src", "acme/lib": "lib-src-v2"}}
	plan2, err := Build(sel, idx2, idx2, cache.Environment{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	appKey := root.PackageId().Key()
	if plan1.Nodes[appKey].Fingerprint == plan2.Nodes[appKey].Fingerprint {
		t.Error("expected app's fingerprint to change when its dependency's source digest changes")
	}
}

func TestBuildDropsEdgesToUnselectedDependencies(t *testing.T) {
	root := summary(t, "acme/app", "1.0.0")
	sel := map[pkgid.Key]pkgid.Summary{root.PackageId().Key(): root}
	idx := &fakeIndex{
		deps: map[string][]pkgid.Dependency{
			"acme/app": {{Name: mustName(t, "acme/devonly"), Resolution: pkgid.NewIndex(""), Constraint: semver.Any()}},
		},
		digests: map[string]string{"acme/app": "app-src"},
	}

	plan, err := Build(sel, idx, idx, cache.Environment{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(plan.Nodes[root.PackageId().Key()].Deps) != 0 {
		t.Errorf("expected no edges to a dependency outside the selection, got %v", plan.Nodes[root.PackageId().Key()].Deps)
	}
}
