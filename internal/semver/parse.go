package semver

import (
	"strings"

	"github.com/pkg/errors"
)

// ParseConstraint parses the surface syntax of spec §3:
//
//	X.Y.Z         caret: >= X.Y.Z, < next-non-zero-left-component bump
//	^X.Y.Z        same as above
//	~X.Y.Z        >= X.Y.Z, < X.(Y+1).0 (~X.Y is ~X.Y.0; ~X is >= X.0.0, < X+1.0.0)
//	< V, > V, <= V, >= V
//	<! V, >=!  V  same, but admit pre-releases of V
//	>= A < B      intersection; the greater-than bound must precede the less-than one
//	any           universe
//	c1, c2, …     union
//
// Parsing is strict: redundant or ambiguous whitespace, a dangling
// operator, or "< A > B" (less-than before greater-than) are errors. An
// intersection that yields the empty set is reported as an error (a
// union whose branches share no version is not).
func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Constraint{}, errors.New("empty constraint string")
	}

	parts := strings.Split(s, ",")
	result := None()
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return Constraint{}, errors.Errorf("constraint %q has an empty union branch", s)
		}
		c, err := parseIntersection(p)
		if err != nil {
			return Constraint{}, errors.Wrapf(err, "constraint %q", s)
		}
		result = Union(result, c)
	}
	return result, nil
}

// clause is a single "OP VER" pair (OP may be empty for a bare/sigil
// version with no comparison operator).
type clause struct {
	op  string
	ver string
}

// parseIntersection parses one comma-free branch: "any", a single
// bare/caret/tilde version, a single comparison, or a two-sided
// intersection "CMP1 V1 CMP2 V2" where CMP1 is a greater-than family
// operator and CMP2 is a less-than family operator.
func parseIntersection(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	if s == "any" {
		return Any(), nil
	}

	clauses, err := splitClauses(s)
	if err != nil {
		return Constraint{}, err
	}

	switch len(clauses) {
	case 1:
		return constraintForClause(clauses[0])
	case 2:
		left, err := constraintForClause(clauses[0])
		if err != nil {
			return Constraint{}, err
		}
		right, err := constraintForClause(clauses[1])
		if err != nil {
			return Constraint{}, err
		}
		if !isGreaterFamily(clauses[0].op) || !isLessFamily(clauses[1].op) {
			return Constraint{}, errors.Errorf("in %q, a greater-than bound must precede a less-than bound", s)
		}
		out := Intersect(left, right)
		if out.IsEmpty() {
			return Constraint{}, errors.Errorf("constraint %q is unsatisfiable: the intersection is empty", s)
		}
		return out, nil
	default:
		return Constraint{}, errors.Errorf("cannot parse constraint clause %q", s)
	}
}

// splitClauses splits "OP VER OP VER" (with exactly one space between
// every token) into one or two {op, ver} clauses. It also accepts a
// single un-prefixed or "^"/"~"-prefixed version with no internal space.
func splitClauses(s string) ([]clause, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, errors.New("empty clause")
	}
	if strings.Join(fields, " ") != s {
		return nil, errors.Errorf("clause %q has redundant or irregular whitespace", s)
	}

	var out []clause
	i := 0
	for i < len(fields) {
		f := fields[i]
		if isSpacedOperator(f) {
			if i+1 >= len(fields) {
				return nil, errors.Errorf("operator %q in %q has no version operand", f, s)
			}
			out = append(out, clause{op: f, ver: fields[i+1]})
			i += 2
			continue
		}
		// No comparison operator token: this field is itself a bare,
		// "^"-, or "~"-prefixed version with no following tokens.
		if len(fields) != 1 {
			return nil, errors.Errorf("clause %q mixes a bare version with other terms", s)
		}
		op, ver := splitSigil(f)
		out = append(out, clause{op: op, ver: ver})
		i++
	}

	if len(out) > 2 {
		return nil, errors.Errorf("clause %q has too many terms", s)
	}
	return out, nil
}

// splitSigil separates a leading "^" or "~" from a version, returning
// "^"/"~" as the op (or "" if neither is present).
func splitSigil(f string) (op, ver string) {
	if strings.HasPrefix(f, "^") {
		return "^", strings.TrimPrefix(f, "^")
	}
	if strings.HasPrefix(f, "~") {
		return "~", strings.TrimPrefix(f, "~")
	}
	return "", f
}

func isSpacedOperator(f string) bool {
	switch f {
	case "<", ">", "<=", ">=", "<!", ">=!":
		return true
	}
	return false
}

func isGreaterFamily(op string) bool {
	return op == ">" || op == ">=" || op == ">=!"
}

func isLessFamily(op string) bool {
	return op == "<" || op == "<=" || op == "<!"
}

func constraintForClause(c clause) (Constraint, error) {
	if n := strings.Count(c.ver, "."); c.op == "~" && n < 2 {
		// ~X and ~X.Y: the missing components are zero; ~X bumps the
		// major, ~X.Y the minor.
		v, err := ParseVersion(c.ver + strings.Repeat(".0", 2-n))
		if err != nil {
			return Constraint{}, err
		}
		hi := New(v.Major, v.Minor+1, 0)
		if n == 0 {
			hi = New(v.Major+1, 0, 0)
		}
		return fromRange(vrange{lo: lowerBound(v, true), hi: upperBound(hi, false)}, false), nil
	}

	v, err := ParseVersion(c.ver)
	if err != nil {
		return Constraint{}, err
	}

	switch c.op {
	case "", "^":
		return caretConstraint(v), nil
	case "~":
		return tildeConstraint(v), nil
	case "<":
		return fromRange(vrange{lo: unbounded(), hi: upperBound(v, false)}, false), nil
	case "<=":
		return fromRange(vrange{lo: unbounded(), hi: upperBound(v, true)}, false), nil
	case ">":
		return fromRange(vrange{lo: lowerBound(v, false), hi: unbounded()}, false), nil
	case ">=":
		return fromRange(vrange{lo: lowerBound(v, true), hi: unbounded()}, false), nil
	case "<!":
		return fromRange(vrange{lo: unbounded(), hi: upperBound(v, false)}, true), nil
	case ">=!":
		// Admitting pre-releases of V starts the range at V's lowest
		// pre-release (V-0) rather than at V itself.
		lo := v
		if !lo.IsPrerelease() {
			lo.Pre = []PreID{{IsNum: true, Num: 0}}
		}
		return fromRange(vrange{lo: lowerBound(lo, true), hi: unbounded()}, true), nil
	default:
		return Constraint{}, errors.Errorf("unknown operator %q", c.op)
	}
}

// caretConstraint implements ^X.Y.Z (and bare X.Y.Z): >= X.Y.Z, < the
// next bump of the left-most nonzero component, matching Cargo/npm
// caret semantics.
func caretConstraint(v Version) Constraint {
	v = v.Core()
	var hi Version
	switch {
	case v.Major != 0:
		hi = New(v.Major+1, 0, 0)
	case v.Minor != 0:
		hi = New(0, v.Minor+1, 0)
	default:
		hi = New(0, 0, v.Patch+1)
	}
	return fromRange(vrange{lo: lowerBound(v, true), hi: upperBound(hi, false)}, false)
}

// tildeConstraint implements ~X.Y.Z: >= X.Y.Z, < X.(Y+1).0.
func tildeConstraint(v Version) Constraint {
	v = v.Core()
	hi := New(v.Major, v.Minor+1, 0)
	return fromRange(vrange{lo: lowerBound(v, true), hi: upperBound(hi, false)}, false)
}
