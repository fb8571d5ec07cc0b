package solver

import "fmt"

// DescribeFailure renders an unsatisfiable incompatibility's derivation
// chain as a flat, numbered explanation, working from the deepest
// causes up to the final contradiction. It is deliberately plain text,
// matching the teacher's trace output rather than a graphical tree.
func DescribeFailure(root *Incompatibility) string {
	var lines []string
	seen := map[*Incompatibility]int{}
	var walk func(ic *Incompatibility) int
	walk = func(ic *Incompatibility) int {
		if n, ok := seen[ic]; ok {
			return n
		}
		if ic.Left != nil && ic.Right != nil {
			l := walk(ic.Left)
			r := walk(ic.Right)
			lines = append(lines, fmt.Sprintf("from (%d) and (%d): %s", l, r, ic))
		} else {
			lines = append(lines, fmt.Sprintf("%s (%s)", ic, causeLabel(ic.Cause)))
		}
		n := len(lines)
		seen[ic] = n
		return n
	}
	walk(root)

	out := ""
	for i, l := range lines {
		out += fmt.Sprintf("  %d. %s\n", i+1, l)
	}
	return out
}

func causeLabel(c CauseKind) string {
	switch c {
	case RootCause:
		return "the root package must be selected"
	case NoVersionsCause:
		return "no matching version exists"
	case DependencyCause:
		return "required by a dependency"
	case ConflictCause:
		return "derived"
	case UnreachableCause:
		return "source could not be resolved"
	default:
		return "unknown"
	}
}
