// Package semver implements the version and constraint algebra: a
// set-based model of versions and constraints with idempotent
// union/intersection/complement, and a parser for the surface syntax.
package semver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Version is a triple (major, minor, patch) of nonnegative integers,
// plus an optional ordered list of pre-release identifiers.
type Version struct {
	Major, Minor, Patch uint64
	Pre                 []PreID
}

// PreID is a single dot-separated pre-release identifier. It is either
// numeric (IsNum true, Num holds the value) or alphanumeric (Str holds
// the original text).
type PreID struct {
	IsNum bool
	Num   uint64
	Str   string
}

func (p PreID) String() string {
	if p.IsNum {
		return strconv.FormatUint(p.Num, 10)
	}
	return p.Str
}

// comparePre compares two identifiers per semver precedence rules:
// numeric identifiers always sort before alphanumeric ones, and two
// numeric identifiers compare numerically.
func comparePre(a, b PreID) int {
	switch {
	case a.IsNum && b.IsNum:
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		default:
			return 0
		}
	case a.IsNum && !b.IsNum:
		return -1
	case !a.IsNum && b.IsNum:
		return 1
	default:
		return strings.Compare(a.Str, b.Str)
	}
}

// New constructs a release Version with no pre-release identifiers.
func New(major, minor, patch uint64) Version {
	return Version{Major: major, Minor: minor, Patch: patch}
}

// IsPrerelease reports whether v carries any pre-release identifiers.
func (v Version) IsPrerelease() bool {
	return len(v.Pre) > 0
}

// Core returns v with its pre-release identifiers stripped, i.e. the
// (major, minor, patch) it belongs to.
func (v Version) Core() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch}
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater
// than other, following SemVer precedence: lexicographic over the
// triple, then "any pre-release is less than no pre-release", then
// dotted identifier comparison.
func (v Version) Compare(other Version) int {
	if c := cmpUint(v.Major, other.Major); c != 0 {
		return c
	}
	if c := cmpUint(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := cmpUint(v.Patch, other.Patch); c != 0 {
		return c
	}

	switch {
	case len(v.Pre) == 0 && len(other.Pre) == 0:
		return 0
	case len(v.Pre) == 0:
		return 1 // no pre-release > any pre-release
	case len(other.Pre) == 0:
		return -1
	}

	for i := 0; i < len(v.Pre) && i < len(other.Pre); i++ {
		if c := comparePre(v.Pre[i], other.Pre[i]); c != 0 {
			return c
		}
	}
	return cmpInt(len(v.Pre), len(other.Pre))
}

func cmpUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Less reports whether v sorts before other.
func (v Version) Less(other Version) bool { return v.Compare(other) < 0 }

// Equal reports whether v and other are identical, including pre-release
// identifiers.
func (v Version) Equal(other Version) bool { return v.Compare(other) == 0 }

func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if len(v.Pre) > 0 {
		parts := make([]string, len(v.Pre))
		for i, p := range v.Pre {
			parts[i] = p.String()
		}
		s += "-" + strings.Join(parts, ".")
	}
	return s
}

// ParseVersion parses a strict "major.minor.patch[-pre.release]" string.
// It rejects ambiguous or redundant whitespace and malformed components,
// matching the strictness contract of spec §4.1's parse_version.
func ParseVersion(s string) (Version, error) {
	if s == "" {
		return Version{}, errors.New("empty version string")
	}
	if s != strings.TrimSpace(s) || strings.ContainsAny(s, " \t\n") {
		return Version{}, errors.Errorf("version %q contains invalid whitespace", s)
	}

	core := s
	var pre string
	hasPre := false
	if i := strings.IndexByte(s, '-'); i >= 0 {
		core = s[:i]
		pre = s[i+1:]
		hasPre = true
	}

	fields := strings.Split(core, ".")
	if len(fields) != 3 {
		return Version{}, errors.Errorf("version %q must have exactly three dot-separated numeric components", s)
	}

	nums := make([]uint64, 3)
	for i, f := range fields {
		n, err := parseNumericComponent(f)
		if err != nil {
			return Version{}, errors.Wrapf(err, "version %q", s)
		}
		nums[i] = n
	}

	v := Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}

	if hasPre {
		if pre == "" {
			return Version{}, errors.Errorf("version %q has an empty pre-release section", s)
		}
		idents := strings.Split(pre, ".")
		v.Pre = make([]PreID, len(idents))
		for i, id := range idents {
			if id == "" {
				return Version{}, errors.Errorf("version %q has an empty pre-release identifier", s)
			}
			v.Pre[i] = parsePreID(id)
		}
	}

	return v, nil
}

func parseNumericComponent(f string) (uint64, error) {
	if f == "" {
		return 0, errors.New("empty numeric component")
	}
	if len(f) > 1 && f[0] == '0' {
		return 0, errors.Errorf("numeric component %q has a leading zero", f)
	}
	for _, r := range f {
		if r < '0' || r > '9' {
			return 0, errors.Errorf("numeric component %q is not a nonnegative integer", f)
		}
	}
	return strconv.ParseUint(f, 10, 64)
}

// parsePreID classifies an identifier as numeric (all digits, no leading
// zero unless it is exactly "0") or alphanumeric.
func parsePreID(id string) PreID {
	numeric := true
	for _, r := range id {
		if r < '0' || r > '9' {
			numeric = false
			break
		}
	}
	if numeric && !(len(id) > 1 && id[0] == '0') {
		n, err := strconv.ParseUint(id, 10, 64)
		if err == nil {
			return PreID{IsNum: true, Num: n}
		}
	}
	return PreID{Str: id}
}
