package solver

import (
	"sort"
	"strings"
	"testing"

	"github.com/fncraft/flux/internal/pkgid"
	"github.com/fncraft/flux/internal/semver"
)

// fixtureProvider is an in-memory Provider/Resolver pair, built the way
// a test would hand-roll a fake SourceManager against the teacher's
// solve_test.go: a map of package name to version->dependency list.
type fixtureProvider struct {
	pkgs map[string]map[string][]fixtureDep
}

type fixtureDep struct {
	name       string
	constraint string
	kind       pkgid.DependencyKind
}

func newFixture() *fixtureProvider {
	return &fixtureProvider{pkgs: map[string]map[string][]fixtureDep{}}
}

func (f *fixtureProvider) add(name, version string, deps ...fixtureDep) {
	if f.pkgs[name] == nil {
		f.pkgs[name] = map[string][]fixtureDep{}
	}
	f.pkgs[name][version] = deps
}

func dep(name, constraint string) fixtureDep {
	return fixtureDep{name: name, constraint: constraint}
}

func mustName(t *testing.T, s string) pkgid.Name {
	t.Helper()
	n, err := pkgid.ParseName(s)
	if err != nil {
		t.Fatalf("parsing fixture name %q: %v", s, err)
	}
	return n
}

func mustConstraint(t *testing.T, s string) semver.Constraint {
	t.Helper()
	c, err := semver.ParseConstraint(s)
	if err != nil {
		t.Fatalf("parsing fixture constraint %q: %v", s, err)
	}
	return c
}

const defaultIndex = "main"

func indexID(t *testing.T, name string) pkgid.PackageId {
	t.Helper()
	return pkgid.PackageId{Name: mustName(t, name), Resolution: pkgid.NewIndex(defaultIndex)}
}

func (f *fixtureProvider) Versions(id pkgid.PackageId) ([]semver.Version, error) {
	versions := f.pkgs[id.Name.String()]
	out := make([]semver.Version, 0, len(versions))
	for vs := range versions {
		v, err := semver.ParseVersion(vs)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Less(out[i]) })
	return out, nil
}

func (f *fixtureProvider) DependenciesOf(id pkgid.PackageId, v semver.Version) ([]pkgid.Dependency, error) {
	versions := f.pkgs[id.Name.String()]
	deps, ok := versions[v.String()]
	if !ok {
		return nil, nil
	}
	out := make([]pkgid.Dependency, 0, len(deps))
	for _, d := range deps {
		name, err := pkgid.ParseName(d.name)
		if err != nil {
			return nil, err
		}
		c, err := semver.ParseConstraint(d.constraint)
		if err != nil {
			return nil, err
		}
		out = append(out, pkgid.Dependency{
			Name:       name,
			Resolution: pkgid.NewIndex(""),
			Constraint: c,
			Kind:       d.kind,
		})
	}
	return out, nil
}

func solveRoot(t *testing.T, f *fixtureProvider, rootDeps ...fixtureDep) (*Solution, error) {
	t.Helper()
	var deps []pkgid.Dependency
	for _, d := range rootDeps {
		deps = append(deps, pkgid.Dependency{
			Name:       mustName(t, d.name),
			Resolution: pkgid.NewIndex(""),
			Constraint: mustConstraint(t, d.constraint),
			Kind:       d.kind,
		})
	}
	return Solve(SolveParameters{
		RootName:         mustName(t, "app/root"),
		RootDependencies: deps,
		DefaultIndex:     defaultIndex,
		Provider:         f,
	})
}

func TestSolveSimpleChain(t *testing.T) {
	f := newFixture()
	f.add("lib/a", "1.0.0", dep("lib/b", "^1.0.0"))
	f.add("lib/b", "1.0.0")
	f.add("lib/b", "1.1.0")

	sol, err := solveRoot(t, f, dep("lib/a", "^1.0.0"))
	if err != nil {
		t.Fatalf("unexpected solve failure: %v", err)
	}

	a := indexID(t, "lib/a")
	b := indexID(t, "lib/b")

	got, ok := sol.Decisions[a.Key()]
	if !ok {
		t.Fatalf("lib/a not decided: %+v", sol.Decisions)
	}
	if got.Version.String() != "1.0.0" {
		t.Errorf("lib/a = %s, want 1.0.0", got.Version)
	}

	gotB, ok := sol.Decisions[b.Key()]
	if !ok {
		t.Fatalf("lib/b not decided: %+v", sol.Decisions)
	}
	if gotB.Version.String() != "1.1.0" {
		t.Errorf("lib/b = %s, want 1.1.0 (most-preferred matching version)", gotB.Version)
	}
}

// TestSolveBacktracksOnConflict forces the solver to pick a's newest
// version first, discover its dependency on b@2 conflicts with the
// root's own pin on b@1, and backtrack to an older a that depends on
// b@1 instead.
func TestSolveBacktracksOnConflict(t *testing.T) {
	f := newFixture()
	f.add("lib/a", "2.0.0", dep("lib/b", "^2.0.0"))
	f.add("lib/a", "1.0.0", dep("lib/b", "^1.0.0"))
	f.add("lib/b", "1.0.0")
	f.add("lib/b", "2.0.0")

	sol, err := solveRoot(t, f, dep("lib/a", "any"), dep("lib/b", "^1.0.0"))
	if err != nil {
		t.Fatalf("unexpected solve failure: %v", err)
	}

	a := indexID(t, "lib/a")
	b := indexID(t, "lib/b")

	if got := sol.Decisions[a.Key()].Version.String(); got != "1.0.0" {
		t.Errorf("lib/a = %s, want 1.0.0 after backtracking away from the 2.0.0/b@2 conflict", got)
	}
	if got := sol.Decisions[b.Key()].Version.String(); got != "1.0.0" {
		t.Errorf("lib/b = %s, want 1.0.0", got)
	}
}

func TestSolveUnsatisfiableReportsFailure(t *testing.T) {
	f := newFixture()
	f.add("lib/a", "1.0.0", dep("lib/shared", "^1.0.0"))
	f.add("lib/b", "1.0.0", dep("lib/shared", "^2.0.0"))
	f.add("lib/shared", "1.0.0")
	f.add("lib/shared", "2.0.0")

	_, err := solveRoot(t, f, dep("lib/a", "^1.0.0"), dep("lib/b", "^1.0.0"))
	if err == nil {
		t.Fatal("expected an unsatisfiable-constraints failure, got a solution")
	}
	failure, ok := err.(*SolveFailure)
	if !ok {
		t.Fatalf("error is %T, want *SolveFailure: %v", err, err)
	}
	msg := failure.Error()
	if !strings.Contains(msg, "no solution satisfies") {
		t.Errorf("failure message missing summary line: %s", msg)
	}
	if DescribeFailure(failure.RootCause) == "" {
		t.Error("DescribeFailure returned an empty derivation trail")
	}
}

func TestSolveNoMatchingVersionFails(t *testing.T) {
	f := newFixture()
	f.add("lib/a", "1.0.0")

	_, err := solveRoot(t, f, dep("lib/a", "^2.0.0"))
	if err == nil {
		t.Fatal("expected a no-matching-version failure")
	}
	if _, ok := err.(*SolveFailure); !ok {
		t.Fatalf("error is %T, want *SolveFailure", err)
	}
}

func TestSolveDevDependencyIgnoredTransitively(t *testing.T) {
	f := newFixture()
	f.add("lib/a", "1.0.0", fixtureDep{name: "lib/testonly", constraint: "^9.0.0", kind: pkgid.Dev})

	sol, err := solveRoot(t, f, dep("lib/a", "^1.0.0"))
	if err != nil {
		t.Fatalf("unexpected solve failure: %v", err)
	}
	testonly := indexID(t, "lib/testonly")
	if _, ok := sol.Decisions[testonly.Key()]; ok {
		t.Error("a transitive dev dependency should never be decided")
	}
}

func TestSolutionOrderedIsDeterministic(t *testing.T) {
	f := newFixture()
	f.add("lib/z", "1.0.0")
	f.add("lib/a", "1.0.0")

	sol, err := solveRoot(t, f, dep("lib/z", "^1.0.0"), dep("lib/a", "^1.0.0"))
	if err != nil {
		t.Fatalf("unexpected solve failure: %v", err)
	}
	ordered := sol.Ordered()
	if len(ordered) != 2 {
		t.Fatalf("got %d decisions, want 2", len(ordered))
	}
	if ordered[0].Name.String() != "lib/a" || ordered[1].Name.String() != "lib/z" {
		t.Errorf("Ordered() = [%s, %s], want lib/a before lib/z", ordered[0].Name, ordered[1].Name)
	}
}

func TestSolvePreferredVersionWins(t *testing.T) {
	f := newFixture()
	f.add("lib/a", "1.0.0")
	f.add("lib/a", "1.1.0")
	f.add("lib/a", "1.2.0")

	a := indexID(t, "lib/a")
	pinned, err := semver.ParseVersion("1.0.0")
	if err != nil {
		t.Fatal(err)
	}

	sol, err := Solve(SolveParameters{
		RootName: mustName(t, "app/root"),
		RootDependencies: []pkgid.Dependency{{
			Name:       mustName(t, "lib/a"),
			Resolution: pkgid.NewIndex(""),
			Constraint: mustConstraint(t, "^1.0.0"),
		}},
		DefaultIndex: defaultIndex,
		Provider:     f,
		Preferred:    map[pkgid.Key]semver.Version{a.Key(): pinned},
	})
	if err != nil {
		t.Fatalf("unexpected solve failure: %v", err)
	}
	if got := sol.Decisions[a.Key()].Version.String(); got != "1.0.0" {
		t.Errorf("lib/a = %s, want preferred 1.0.0", got)
	}
}
