package solver

import (
	"github.com/pkg/errors"

	"github.com/fncraft/flux/internal/flog"
	"github.com/fncraft/flux/internal/pkgid"
	"github.com/fncraft/flux/internal/semver"
)

// SolveParameters hold all arguments to a solve run, named and shaped
// after the teacher's own SolveParameters (RootDir/ImportRoot/Manifest/
// Lock/Trace/TraceLogger), generalized from Go import paths to package
// names and from a single locked version to a full preference map.
type SolveParameters struct {
	// RootName identifies the project being solved for; it never
	// appears in the index and is selected unconditionally.
	RootName pkgid.Name

	// RootDependencies are the constraints declared by the root
	// package's own manifest.
	RootDependencies []pkgid.Dependency

	// DefaultIndex is the alias a dependency resolves against when it
	// names no explicit source.
	DefaultIndex string

	// Provider answers version-listing and dependency queries.
	Provider Provider

	// Resolver turns a Dependency into a concrete PackageId. Defaults
	// to DefaultResolver{} when nil.
	Resolver Resolver

	// Preferred maps a package's key to a version the decision policy
	// should try first — typically versions pinned in an existing
	// lockfile, so that re-solving is maximally stable (spec's
	// preserve-what-still-satisfies rule).
	Preferred map[pkgid.Key]semver.Version

	Trace       bool
	TraceLogger *flog.Logger
}

// Solution is the solver's successful output: one concrete version
// chosen per PackageId.
type Solution struct {
	Decisions map[pkgid.Key]pkgid.Summary
	Attempts  int
}

// Ordered returns the decided summaries in PackageId order, for
// deterministic serialization.
func (s *Solution) Ordered() []pkgid.Summary {
	out := make([]pkgid.Summary, 0, len(s.Decisions))
	for _, sum := range s.Decisions {
		out = append(out, sum)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].PackageId().Less(out[j-1].PackageId()); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

type state struct {
	params SolveParameters
	ps     *PartialSolution
	byPkg  map[pkgid.Key][]*Incompatibility
	all    []*Incompatibility
	root   pkgid.PackageId
	log    *flog.Logger

	attempts int
}

func newState(params SolveParameters) *state {
	if params.Resolver == nil {
		params.Resolver = DefaultResolver{}
	}
	logger := params.TraceLogger
	if !params.Trace || logger == nil {
		logger = flog.Discard()
	}
	root := pkgid.PackageId{Name: params.RootName, Resolution: pkgid.NewDir(".")}
	return &state{
		params: params,
		ps:     newPartialSolution(),
		byPkg:  map[pkgid.Key][]*Incompatibility{},
		root:   root,
		log:    logger,
	}
}

func (s *state) addIncompatibility(ic *Incompatibility) {
	s.all = append(s.all, ic)
	for _, t := range ic.Terms {
		key := t.Package.Key()
		s.byPkg[key] = append(s.byPkg[key], ic)
	}
	s.log.Debugf("new incompatibility: %s", ic)
}

// Solve runs PubGrub to completion, returning a Solution or a
// *SolveFailure describing why no solution exists.
func Solve(params SolveParameters) (*Solution, error) {
	s := newState(params)

	// {not root}: the root package is always selected, unconditionally.
	s.addIncompatibility(newIncompatibility(RootCause, negative(s.root, semver.Any())))
	s.ps.addRootDecision(s.root, semver.Version{})
	if err := s.addDependencyIncompatibilities(s.root, positive(s.root, semver.Any()), params.RootDependencies); err != nil {
		return nil, err
	}

	next := s.root
	for {
		if err := s.unitPropagation(next); err != nil {
			return nil, err
		}

		pkg, v, hasVersion, finished, err := s.decide()
		if err != nil {
			return nil, err
		}
		if finished {
			break
		}
		if !hasVersion {
			// decide() recorded a NoVersionsCause incompatibility for
			// pkg instead of picking a version; let propagation turn
			// it into a conflict (and possibly a backtrack) before
			// trying again.
			next = pkg
			continue
		}
		s.attempts++
		s.log.With("attempt", s.attempts).Debugf("deciding %s = %s", pkg, v)
		s.ps.addDecision(pkg, v)
		next = pkg
	}

	return s.buildSolution(), nil
}

func (s *state) buildSolution() *Solution {
	sol := &Solution{Decisions: map[pkgid.Key]pkgid.Summary{}, Attempts: s.attempts}
	for key, v := range s.ps.decided {
		if key == s.root.Key() {
			continue
		}
		id := s.idForKey(key)
		sol.Decisions[key] = pkgid.Summary{Name: id.Name, Version: v, Resolution: id.Resolution}
	}
	return sol
}

// idForKey recovers the PackageId for a decided key by scanning the
// trail; PartialSolution only keys decisions by the comparable Key, so
// the solver (which does have the original PackageIds) keeps this
// lookup rather than pushing PackageId-from-Key reconstruction down
// into a package that has no business knowing about decisions.
func (s *state) idForKey(key pkgid.Key) pkgid.PackageId {
	for _, ic := range s.all {
		for _, t := range ic.Terms {
			if t.Package.Key() == key {
				return t.Package
			}
		}
	}
	return pkgid.PackageId{}
}

// unitPropagation repeatedly checks every incompatibility touching a
// changed package, deriving new facts or resolving conflicts, until no
// further incompatibility is newly satisfied or almost-satisfied.
func (s *state) unitPropagation(changed pkgid.PackageId) error {
	queue := []pkgid.PackageId{changed}
	for len(queue) > 0 {
		pkg := queue[0]
		queue = queue[1:]

		for _, ic := range append([]*Incompatibility(nil), s.byPkg[pkg.Key()]...) {
			rel, unit, hasUnit := s.ps.relation(ic)
			switch rel {
			case Satisfied:
				learned, backtrackLevel, failure := s.resolveConflict(ic)
				if failure != nil {
					return failure
				}
				s.ps.backtrackTo(backtrackLevel)
				s.addIncompatibility(learned)

				// The learned incompatibility is, by construction,
				// almost-satisfied after backtracking: derive its unit
				// term's negation and continue propagation from there.
				if _, u, ok := s.ps.relation(learned); ok {
					s.ps.addDerivation(u.Negate(), learned)
					queue = []pkgid.PackageId{u.Package}
				} else {
					queue = nil
				}
			case Inconclusive:
				if hasUnit {
					s.ps.addDerivation(unit.Negate(), ic)
					queue = append(queue, unit.Package)
				}
			case Contradicted:
				// nothing to do; ic cannot fire given current knowledge
			}
		}
	}
	return nil
}

// decide picks the next undecided package and a candidate version for
// it, per the most-constrained-first policy: among packages with an
// outstanding positive term, choose the one with the fewest versions
// satisfying its accumulated constraint (mirrors the teacher's
// sort-by-fewest-remaining-versions selection heuristic in solver.go).
func (s *state) decide() (id pkgid.PackageId, chosen semver.Version, hasVersion, done bool, err error) {
	candidates := s.ps.undecidedPositives()
	if len(candidates) == 0 {
		return pkgid.PackageId{}, semver.Version{}, false, true, nil
	}

	type choice struct {
		id       pkgid.PackageId
		versions []semver.Version
	}
	var best *choice
	for _, cand := range candidates {
		c := s.ps.constraintFor(cand)
		versions, verr := s.params.Provider.Versions(cand)
		if verr != nil {
			return pkgid.PackageId{}, semver.Version{}, false, false, errors.Wrapf(verr, "listing versions of %s", cand)
		}
		var matching []semver.Version
		for _, v := range versions {
			if semver.Satisfies(c, v) {
				matching = append(matching, v)
			}
		}
		if len(matching) == 0 {
			// No version at all satisfies what's been derived: learn a
			// dedicated incompatibility and let propagation turn it
			// into a conflict on the next pass, rather than deciding.
			s.addIncompatibility(newIncompatibility(NoVersionsCause, positive(cand, c)))
			return cand, semver.Version{}, false, false, nil
		}
		if best == nil || len(matching) < len(best.versions) {
			best = &choice{id: cand, versions: matching}
		}
	}

	chosen = best.versions[0]
	if pref, ok := s.params.Preferred[best.id.Key()]; ok {
		for _, v := range best.versions {
			if v.Equal(pref) {
				chosen = v
				break
			}
		}
	}

	deps, derr := s.params.Provider.DependenciesOf(best.id, chosen)
	if derr != nil {
		return pkgid.PackageId{}, semver.Version{}, false, false, errors.Wrapf(derr, "listing dependencies of %s %s", best.id, chosen)
	}
	if err := s.addDependencyIncompatibilities(best.id, positive(best.id, exactVersion(chosen)), deps); err != nil {
		return pkgid.PackageId{}, semver.Version{}, false, false, err
	}

	return best.id, chosen, true, false, nil
}

// addDependencyIncompatibilities learns {selfTerm, not dep} for every
// non-dev dependency: selecting the package selfTerm describes requires
// each dependency's constraint to hold too.
func (s *state) addDependencyIncompatibilities(id pkgid.PackageId, selfTerm Term, deps []pkgid.Dependency) error {
	for _, d := range deps {
		if d.Kind == pkgid.Dev {
			continue
		}
		depID, err := s.params.Resolver.Resolve(d, s.params.DefaultIndex)
		if err != nil {
			return errors.Wrapf(err, "resolving dependency %s of %s", d.Name, id)
		}
		s.addIncompatibility(newIncompatibility(DependencyCause, selfTerm, negative(depID, d.Constraint)))
	}
	return nil
}
