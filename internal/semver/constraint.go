package semver

import (
	"sort"
	"strings"
)

// bound is one edge of a half-open range. A nil *Version means unbounded
// in that direction.
type bound struct {
	v   *Version
	inc bool // inclusive
}

func unbounded() bound { return bound{} }

func lowerBound(v Version, inclusive bool) bound {
	return bound{v: &v, inc: inclusive}
}

func upperBound(v Version, inclusive bool) bound {
	return bound{v: &v, inc: inclusive}
}

// vrange is a single contiguous range [lo, hi) (endpoints may be open,
// closed, or unbounded).
type vrange struct {
	lo, hi bound
}

func (r vrange) containsVersion(v Version) bool {
	if r.lo.v != nil {
		c := v.Compare(*r.lo.v)
		if c < 0 || (c == 0 && !r.lo.inc) {
			return false
		}
	}
	if r.hi.v != nil {
		c := v.Compare(*r.hi.v)
		if c > 0 || (c == 0 && !r.hi.inc) {
			return false
		}
	}
	return true
}

func (r vrange) isEmpty() bool {
	if r.lo.v == nil || r.hi.v == nil {
		return false
	}
	c := r.lo.v.Compare(*r.hi.v)
	if c > 0 {
		return true
	}
	if c == 0 && !(r.lo.inc && r.hi.inc) {
		return true
	}
	return false
}

// overlapsOrAdjacent reports whether a and b intersect, or touch with at
// least one side closed (so their union is still a single contiguous
// range) — used to decide whether two ranges must be merged to keep a
// Constraint canonical.
func overlapsOrAdjacent(a, b vrange) bool {
	// a must come "before or touching" b for this check; caller sorts first.
	if a.hi.v == nil || b.lo.v == nil {
		return true // a is unbounded above, or b is unbounded below: always overlap
	}
	c := a.hi.v.Compare(*b.lo.v)
	if c > 0 {
		return true
	}
	if c < 0 {
		return false
	}
	// equal boundary value: contiguous (no gap) if at least one side is closed
	return a.hi.inc || b.lo.inc
}

func rangeIntersect(a, b vrange) (vrange, bool) {
	lo := maxBound(a.lo, b.lo, true)
	hi := minBound(a.hi, b.hi, false)
	r := vrange{lo: lo, hi: hi}
	if r.isEmpty() {
		return vrange{}, false
	}
	return r, true
}

// maxBound returns the more restrictive of two lower bounds.
func maxBound(a, b bound, lower bool) bound {
	_ = lower
	if a.v == nil {
		return b
	}
	if b.v == nil {
		return a
	}
	c := a.v.Compare(*b.v)
	switch {
	case c > 0:
		return a
	case c < 0:
		return b
	default:
		// equal value: more restrictive is exclusive
		if !a.inc {
			return a
		}
		return b
	}
}

// minBound returns the more restrictive of two upper bounds.
func minBound(a, b bound, lower bool) bound {
	_ = lower
	if a.v == nil {
		return b
	}
	if b.v == nil {
		return a
	}
	c := a.v.Compare(*b.v)
	switch {
	case c < 0:
		return a
	case c > 0:
		return b
	default:
		if !a.inc {
			return a
		}
		return b
	}
}

func rangeUnion(a, b vrange) (vrange, bool) {
	// Assumes overlapsOrAdjacent(a, b) given a sorted before b.
	lo := minLowerBound(a.lo, b.lo)
	hi := maxUpperBound(a.hi, b.hi)
	return vrange{lo: lo, hi: hi}, true
}

func minLowerBound(a, b bound) bound {
	if a.v == nil || b.v == nil {
		return bound{}
	}
	c := a.v.Compare(*b.v)
	switch {
	case c < 0:
		return a
	case c > 0:
		return b
	default:
		if a.inc || b.inc {
			return bound{v: a.v, inc: true}
		}
		return a
	}
}

func maxUpperBound(a, b bound) bound {
	if a.v == nil || b.v == nil {
		return bound{}
	}
	c := a.v.Compare(*b.v)
	switch {
	case c > 0:
		return a
	case c < 0:
		return b
	default:
		if a.inc || b.inc {
			return bound{v: a.v, inc: true}
		}
		return a
	}
}

func rangeLess(a, b vrange) bool {
	av, bv := a.lo.v, b.lo.v
	switch {
	case av == nil && bv == nil:
		return false
	case av == nil:
		return true
	case bv == nil:
		return false
	}
	c := av.Compare(*bv)
	if c != 0 {
		return c < 0
	}
	// same value: inclusive lower bound sorts first (wider range)
	return a.lo.inc && !b.lo.inc
}

// Constraint is a finite union of half-open version ranges, intersected
// with a pre-release admittance flag. It is the type spec §3 describes:
// closed under union, intersection, and complement, with a canonical
// form of disjoint, sorted component ranges.
type Constraint struct {
	ranges     []vrange
	prerelease bool // admit pre-releases outside their own (major,minor,patch)
}

// None is the empty constraint — no version satisfies it.
func None() Constraint { return Constraint{} }

// Any is the universal constraint.
func Any() Constraint {
	return Constraint{ranges: []vrange{{lo: unbounded(), hi: unbounded()}}}
}

// IsEmpty reports whether no version satisfies c.
func (c Constraint) IsEmpty() bool { return len(c.ranges) == 0 }

// AdmitsPrerelease reports whether c's pre-release admittance flag is set.
func (c Constraint) AdmitsPrerelease() bool { return c.prerelease }

// canonicalize sorts and merges overlapping/adjacent ranges.
func canonicalize(rs []vrange) []vrange {
	rs = append([]vrange(nil), rs...)
	filtered := rs[:0]
	for _, r := range rs {
		if !r.isEmpty() {
			filtered = append(filtered, r)
		}
	}
	rs = filtered
	sort.Slice(rs, func(i, j int) bool { return rangeLess(rs[i], rs[j]) })

	out := make([]vrange, 0, len(rs))
	for _, r := range rs {
		if len(out) > 0 && overlapsOrAdjacent(out[len(out)-1], r) {
			merged, _ := rangeUnion(out[len(out)-1], r)
			out[len(out)-1] = merged
			continue
		}
		out = append(out, r)
	}
	return out
}

// fromRange builds a canonical single-range Constraint.
func fromRange(r vrange, prerelease bool) Constraint {
	return Constraint{ranges: canonicalize([]vrange{r}), prerelease: prerelease}
}

// Intersect returns the canonical intersection of a and b.
func Intersect(a, b Constraint) Constraint {
	var out []vrange
	for _, ra := range a.ranges {
		for _, rb := range b.ranges {
			if r, ok := rangeIntersect(ra, rb); ok {
				out = append(out, r)
			}
		}
	}
	return Constraint{ranges: canonicalize(out), prerelease: a.prerelease || b.prerelease}
}

// Union returns the canonical union of a and b.
func Union(a, b Constraint) Constraint {
	out := append(append([]vrange(nil), a.ranges...), b.ranges...)
	return Constraint{ranges: canonicalize(out), prerelease: a.prerelease || b.prerelease}
}

// Complement returns the canonical complement of c within the universe
// of all versions.
func Complement(c Constraint) Constraint {
	if len(c.ranges) == 0 {
		return Any()
	}
	var out []vrange
	cur := unbounded()
	for _, r := range c.ranges {
		if r.lo.v != nil {
			out = append(out, vrange{lo: cur, hi: bound{v: r.lo.v, inc: !r.lo.inc}})
		}
		cur = bound{v: r.hi.v, inc: r.hi.v != nil && !r.hi.inc}
		if r.hi.v == nil {
			cur = bound{} // degenerate: rest is empty, loop will add nothing more
			break
		}
	}
	if cur.v != nil || len(c.ranges) == 0 {
		out = append(out, vrange{lo: cur, hi: unbounded()})
	} else if len(out) == 0 {
		// c was Any(); complement is None
	}
	return Constraint{ranges: canonicalize(out), prerelease: !c.prerelease}
}

// Satisfies reports whether v is a member of c. A pre-release version
// satisfies a constraint only if the constraint explicitly mentions a
// pre-release at the same (major,minor,patch), or the pre-release
// admittance flag is set (spec §3).
func Satisfies(c Constraint, v Version) bool {
	for _, r := range c.ranges {
		if !r.containsVersion(v) {
			continue
		}
		if !v.IsPrerelease() {
			return true
		}
		if c.prerelease {
			return true
		}
		// Explicit pre-release mention: either bound sits at the same
		// (major,minor,patch) and itself carries a pre-release.
		if boundMentionsPrerelease(r.lo, v) || boundMentionsPrerelease(r.hi, v) {
			return true
		}
	}
	return false
}

func boundMentionsPrerelease(b bound, v Version) bool {
	if b.v == nil || !b.v.IsPrerelease() {
		return false
	}
	return b.v.Core().Equal(v.Core())
}

// Equals reports whether a and b are structurally identical canonical
// constraints.
func Equals(a, b Constraint) bool {
	if a.prerelease != b.prerelease || len(a.ranges) != len(b.ranges) {
		return false
	}
	for i := range a.ranges {
		ra, rb := a.ranges[i], b.ranges[i]
		if !boundEqual(ra.lo, rb.lo) || !boundEqual(ra.hi, rb.hi) {
			return false
		}
	}
	return true
}

func boundEqual(a, b bound) bool {
	if (a.v == nil) != (b.v == nil) {
		return false
	}
	if a.v == nil {
		return true
	}
	return a.v.Equal(*b.v) && a.inc == b.inc
}

// String renders c back into surface syntax: a comma-separated union of
// its component ranges.
func (c Constraint) String() string {
	if len(c.ranges) == 0 {
		return "<none>"
	}
	parts := make([]string, len(c.ranges))
	for i, r := range c.ranges {
		parts[i] = rangeString(r, c.prerelease)
	}
	return strings.Join(parts, ", ")
}

func rangeString(r vrange, prerelease bool) string {
	sigil := ">="
	if prerelease {
		sigil = ">=!"
	}
	ltSigil := "<"
	if prerelease {
		ltSigil = "<!"
	}

	switch {
	case r.lo.v == nil && r.hi.v == nil:
		return "any"
	case r.hi.v == nil:
		op := sigil
		if !r.lo.inc {
			op = strings.Replace(op, ">=", ">", 1)
		}
		return op + " " + r.lo.v.String()
	case r.lo.v == nil:
		op := ltSigil
		if r.hi.inc {
			op = strings.Replace(op, "<", "<=", 1)
		}
		return op + " " + r.hi.v.String()
	default:
		loOp := sigil
		if !r.lo.inc {
			loOp = strings.Replace(loOp, ">=", ">", 1)
		}
		hiOp := ltSigil
		if r.hi.inc {
			hiOp = strings.Replace(hiOp, "<", "<=", 1)
		}
		return loOp + " " + r.lo.v.String() + " " + hiOp + " " + r.hi.v.String()
	}
}
