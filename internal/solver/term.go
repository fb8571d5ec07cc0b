// Package solver implements PubGrub, a conflict-driven clause-learning
// version solver. It mirrors the shape of the teacher's CDCL-style
// solver (solver.go's selection/unselected stacks, trace-logging
// discipline, and SolveParameters input struct) while replacing the
// teacher's own backtracking search with PubGrub's incompatibility
// propagation, since that is the algorithm named for this solver's
// semantics.
package solver

import (
	"fmt"

	"github.com/fncraft/flux/internal/pkgid"
	"github.com/fncraft/flux/internal/semver"
)

// Term is PubGrub's atomic unit of reasoning: a claim that a package's
// selected version either does ("positive") or does not ("negative")
// satisfy a constraint.
type Term struct {
	Package    pkgid.PackageId
	Positive   bool
	Constraint semver.Constraint
}

func positive(id pkgid.PackageId, c semver.Constraint) Term {
	return Term{Package: id, Positive: true, Constraint: c}
}

func negative(id pkgid.PackageId, c semver.Constraint) Term {
	return Term{Package: id, Positive: false, Constraint: c}
}

// effective returns the set of versions this term actually asserts,
// folding the positive/negative sign into the constraint itself: a
// negative term over C asserts every version NOT in C.
func (t Term) effective() semver.Constraint {
	if t.Positive {
		return t.Constraint
	}
	return semver.Complement(t.Constraint)
}

// Negate returns the logical negation of t: a positive term becomes
// negative and vice versa, over the same constraint.
func (t Term) Negate() Term {
	return Term{Package: t.Package, Positive: !t.Positive, Constraint: t.Constraint}
}

// IsSatisfiedBy reports whether v satisfies this term's effective set.
func (t Term) IsSatisfiedBy(v semver.Version) bool {
	return semver.Satisfies(t.effective(), v)
}

// Relation classifies how two terms over the same package relate.
type Relation int

const (
	// Inconclusive means neither term fully satisfies nor fully
	// contradicts the other.
	Inconclusive Relation = iota
	// Satisfied means this term's effective set is a subset of other's:
	// whatever remains possible given this term necessarily satisfies
	// other too, so other is already guaranteed to hold.
	Satisfied
	// Contradicted means the two terms' effective sets are disjoint:
	// they can never both hold.
	Contradicted
)

// RelationTo classifies how t relates to other, read as "given that t
// holds, what do we know about other": Satisfied when t already
// guarantees other, Contradicted when they can never both hold. Both
// terms must be over the same package; callers are expected to group
// terms by package before calling this.
func (t Term) RelationTo(other Term) Relation {
	mine := t.effective()
	theirs := other.effective()
	inter := semver.Intersect(mine, theirs)
	if inter.IsEmpty() {
		return Contradicted
	}
	// Subset test on the version ranges alone: Equals would also compare
	// the pre-release flags, which Complement flips for every negative
	// term.
	if semver.Intersect(mine, semver.Complement(theirs)).IsEmpty() {
		return Satisfied
	}
	return Inconclusive
}

// Intersect combines two terms over the same package into the term
// that holds exactly when both do. It is used when the partial
// solution's running assignment for a package is refined by a new
// derivation.
func Intersect(a, b Term) Term {
	eff := semver.Intersect(a.effective(), b.effective())
	return Term{Package: a.Package, Positive: true, Constraint: eff}
}

func (t Term) String() string {
	sign := "+"
	if !t.Positive {
		sign = "-"
	}
	return fmt.Sprintf("%s%s %s", sign, t.Package, t.Constraint)
}
