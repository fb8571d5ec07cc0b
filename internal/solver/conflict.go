package solver

import (
	"github.com/fncraft/flux/internal/pkgid"
	"github.com/fncraft/flux/internal/semver"
)

// SolveFailure is returned when no solution exists. RootCause is the
// final, fully-resolved incompatibility that proves unsatisfiability;
// DescribeFailure walks its derivation chain into a human-readable
// explanation.
type SolveFailure struct {
	RootCause *Incompatibility
}

func (f *SolveFailure) Error() string {
	return "no solution satisfies the declared constraints:\n" + DescribeFailure(f.RootCause)
}

// isFailureIncompatibility reports whether ic is the empty clause: a
// contradiction that holds regardless of any assignment, which merging
// can produce directly when two incompatibilities fully cancel.
func (s *state) isFailureIncompatibility(ic *Incompatibility) bool {
	return len(ic.Terms) == 0
}

// resolveConflict implements PubGrub's conflict-driven clause learning:
// given an incompatibility that the partial solution currently
// satisfies (a contradiction), it walks backward through the
// assignment trail, merging causes until it finds a safe backtrack
// point, or proves the problem has no solution.
func (s *state) resolveConflict(ic *Incompatibility) (*Incompatibility, int, *SolveFailure) {
	for {
		if s.isFailureIncompatibility(ic) {
			return nil, 0, &SolveFailure{RootCause: ic}
		}

		satIdx, satTerm, prevLevel := s.findSatisfier(ic)
		if satIdx < 0 {
			// relation() claimed Satisfied but the trail doesn't confirm
			// it; treat as an unrecoverable failure rather than loop.
			return nil, 0, &SolveFailure{RootCause: ic}
		}
		satAssignment := s.ps.trail[satIdx]

		// The satisfier is the root's own unconditional selection: there
		// is no earlier ground to backtrack to, so the constraints as
		// given have no solution.
		if satAssignment.IsDecision && satAssignment.DecisionLevel == 0 {
			return nil, 0, &SolveFailure{RootCause: ic}
		}

		if satAssignment.IsDecision && prevLevel < satAssignment.DecisionLevel {
			s.log.Debugf("conflict resolved: backtrack to level %d on %s", prevLevel, ic)
			return ic, prevLevel, nil
		}

		ic = s.priorCause(ic, satAssignment, satTerm)
	}
}

// findSatisfier returns the index of the earliest trail assignment at
// which every term of ic becomes satisfied, the term of ic that
// assignment satisfies, and the highest decision level any of ic's
// *other* terms needed to reach satisfaction (the level execution would
// backtrack to if this assignment's package were excluded).
func (s *state) findSatisfier(ic *Incompatibility) (idx int, satisfiedTerm Term, previousSatisfierLevel int) {
	combined := map[pkgid.Key]Term{}
	satisfiedAt := map[pkgid.Key]int{}

	termFor := func(key pkgid.Key) (Term, bool) {
		for _, t := range ic.Terms {
			if t.Package.Key() == key {
				return t, true
			}
		}
		return Term{}, false
	}

	for i, a := range s.ps.trail {
		key := a.Term.Package.Key()
		icTerm, relevant := termFor(key)
		if !relevant {
			continue
		}

		if cur, ok := combined[key]; ok {
			combined[key] = Intersect(cur, a.Term)
		} else {
			combined[key] = a.Term
		}

		if _, already := satisfiedAt[key]; !already {
			if a.IsDecision {
				if semver.Satisfies(icTerm.effective(), a.Decided) {
					satisfiedAt[key] = a.DecisionLevel
				}
			} else if combined[key].RelationTo(icTerm) == Satisfied {
				satisfiedAt[key] = a.DecisionLevel
			}
		}

		if len(satisfiedAt) != len(ic.Terms) {
			continue
		}

		prev := 0
		for _, t := range ic.Terms {
			if t.Package.Key() == key {
				continue
			}
			if lvl := satisfiedAt[t.Package.Key()]; lvl > prev {
				prev = lvl
			}
		}
		return i, icTerm, prev
	}
	return -1, Term{}, 0
}

// priorCause resolves ic against the incompatibility that caused the
// satisfying assignment, eliminating the package they share. Sound
// because the satisfying assignment's term, by construction, implies
// ic's term for that package (see DESIGN.md's solver entry for the
// derivation).
func (s *state) priorCause(ic *Incompatibility, sat assignment, satTerm Term) *Incompatibility {
	shared := satTerm.Package.Key()
	cause := sat.Cause
	if cause == nil {
		// A decision has no deriving cause; nothing more to resolve
		// against, so treat ic itself as the learned clause and let the
		// caller's backtrack-level check (which always passes for a
		// decision satisfier) end the loop on the next iteration.
		return ic
	}

	var terms []Term
	for _, t := range ic.Terms {
		if t.Package.Key() != shared {
			terms = append(terms, t)
		}
	}
	for _, t := range cause.Terms {
		if t.Package.Key() != shared {
			terms = append(terms, t)
		}
	}
	return &Incompatibility{Terms: terms, Cause: ConflictCause, Left: ic, Right: cause}
}
