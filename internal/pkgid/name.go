// Package pkgid implements the identity layer: Name, Resolution,
// Summary, PackageId, and Dependency, plus the resolution-string grammar.
package pkgid

import (
	"strings"

	"github.com/pkg/errors"
)

// Name is a (group, name) pair. Comparison is case-insensitive, and "-"
// and "_" are equivalent: two names are equal iff their normalized
// forms are equal.
type Name struct {
	Group string
	Name  string
}

func normalizeComponent(s string) string {
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", "-")
}

// Normalized returns the form of n used for comparison and map keys.
func (n Name) Normalized() Name {
	return Name{Group: normalizeComponent(n.Group), Name: normalizeComponent(n.Name)}
}

// Equal reports whether n and other denote the same name under the
// case/separator-insensitive comparison rule.
func (n Name) Equal(other Name) bool {
	return n.Normalized() == other.Normalized()
}

// Less provides a stable total order for sorting (e.g. lockfile output),
// operating on normalized form so that the order is deterministic
// regardless of the casing the manifest happened to use.
func (n Name) Less(other Name) bool {
	a, b := n.Normalized(), other.Normalized()
	if a.Group != b.Group {
		return a.Group < b.Group
	}
	return a.Name < b.Name
}

func (n Name) String() string {
	return n.Group + "/" + n.Name
}

var validNameComponent = func(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// ParseName parses a "group/name" spec string.
func ParseName(s string) (Name, error) {
	i := strings.IndexByte(s, '/')
	if i < 0 {
		return Name{}, errors.Errorf("name %q must be of the form group/name", s)
	}
	group, name := s[:i], s[i+1:]
	if !validNameComponent(group) || !validNameComponent(name) {
		return Name{}, errors.Errorf("name %q has an invalid group or name component", s)
	}
	return Name{Group: group, Name: name}, nil
}
