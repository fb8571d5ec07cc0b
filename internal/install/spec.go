package install

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/fncraft/flux/internal/pkgid"
	"github.com/fncraft/flux/internal/semver"
)

// Spec is a parsed package spec: `group/name (@ index-resolution)?
// (| version-constraint)?`. A bare name matches every installed entry
// for that package; adding a resolution and/or constraint narrows the
// match until, ideally, exactly one entry remains.
type Spec struct {
	Name       pkgid.Name
	Resolution *pkgid.Resolution
	Constraint *semver.Constraint

	raw string
}

// ParseSpec parses the package-spec grammar used by install/uninstall.
func ParseSpec(s string) (Spec, error) {
	spec := Spec{raw: s}
	rest := s

	if i := strings.Index(rest, "|"); i >= 0 {
		constraintPart := strings.TrimSpace(rest[i+1:])
		rest = rest[:i]
		c, err := semver.ParseConstraint(constraintPart)
		if err != nil {
			return Spec{}, errors.Wrapf(err, "package spec %q: version constraint", s)
		}
		spec.Constraint = &c
	}

	if i := strings.Index(rest, "@"); i >= 0 {
		resPart := strings.TrimSpace(rest[i+1:])
		rest = rest[:i]
		res, err := pkgid.ParseResolution(resPart)
		if err != nil {
			return Spec{}, errors.Wrapf(err, "package spec %q: resolution", s)
		}
		spec.Resolution = &res
	}

	name, err := pkgid.ParseName(strings.TrimSpace(rest))
	if err != nil {
		return Spec{}, errors.Wrapf(err, "package spec %q: name", s)
	}
	spec.Name = name
	return spec, nil
}

// Matches reports whether e satisfies every part of spec that was
// given; an absent resolution or constraint matches anything.
func (s Spec) Matches(e Entry) bool {
	if !s.Name.Equal(e.PackageId.Name) {
		return false
	}
	if s.Resolution != nil && !s.Resolution.Equal(e.PackageId.Resolution) {
		return false
	}
	if s.Constraint != nil && !semver.Satisfies(*s.Constraint, e.Version) {
		return false
	}
	return true
}

func (s Spec) String() string {
	if s.raw != "" {
		return s.raw
	}
	return s.Name.String()
}
