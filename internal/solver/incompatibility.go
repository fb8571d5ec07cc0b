package solver

import "strings"

// CauseKind classifies why an Incompatibility exists, used both for
// driving conflict resolution and for rendering the derivation tree
// shown to users on failure.
type CauseKind int

const (
	// RootCause is the synthetic incompatibility asserting the root
	// package must be selected: {not root}.
	RootCause CauseKind = iota
	// NoVersionsCause records that no version of a package satisfies a
	// term, because the index/fetcher reported none.
	NoVersionsCause
	// DependencyCause encodes "if P is selected, its dependency D must
	// be satisfied": {P, not D}.
	DependencyCause
	// ConflictCause is derived during conflict resolution from two
	// other incompatibilities that both became satisfied.
	ConflictCause
	// UnreachableCause marks a resolution the root manifest or a
	// dependency named but nothing could fetch (e.g. a private index
	// alias with no matching configuration).
	UnreachableCause
)

// Incompatibility is a set of terms that can never all hold at once. A
// solution is found when every incompatibility's terms are not all
// satisfied, i.e. when the partial solution "contradicts" each one.
type Incompatibility struct {
	Terms []Term
	Cause CauseKind

	// Left and Right name the two incompatibilities a ConflictCause
	// incompatibility was derived from, kept for derivation-tree
	// rendering (spec's "explain why" output).
	Left, Right *Incompatibility
}

func newIncompatibility(cause CauseKind, terms ...Term) *Incompatibility {
	return &Incompatibility{Cause: cause, Terms: terms}
}

// termFor returns the term this incompatibility holds for pkg, and
// whether one exists.
func (ic *Incompatibility) termFor(pkg string) (Term, bool) {
	for _, t := range ic.Terms {
		if t.Package.String() == pkg {
			return t, true
		}
	}
	return Term{}, false
}

func (ic *Incompatibility) String() string {
	if len(ic.Terms) == 0 {
		return "(unsatisfiable)"
	}
	parts := make([]string, len(ic.Terms))
	for i, t := range ic.Terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
