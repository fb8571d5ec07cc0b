package pkgid

import (
	"strings"

	"github.com/fncraft/flux/internal/semver"
)

// PackageId is (Name, Resolution) — the solver's atom. It identifies a
// versioned family of packages drawn from a particular source. Two
// packages with the same Name but different Resolution are distinct
// PackageIds and are never unified during solving (spec §9 open
// question: cross-index Name unification is deliberately deferred).
type PackageId struct {
	Name       Name
	Resolution Resolution
}

// Equal reports whether id and other denote the same PackageId.
func (id PackageId) Equal(other PackageId) bool {
	return id.Name.Equal(other.Name) && id.Resolution.Equal(other.Resolution)
}

// Less provides the canonical sort order used by lockfile serialization:
// first by normalized Name, then by the string form of Resolution so
// that distinct-index duplicates of the same Name still sort
// deterministically.
func (id PackageId) Less(other PackageId) bool {
	if !id.Name.Equal(other.Name) {
		return id.Name.Less(other.Name)
	}
	return id.Resolution.String() < other.Resolution.String()
}

// Key is a value-comparable representation of a PackageId, since
// Resolution embeds a *Resolution pointer for the Index variant, which
// == compares by identity rather than by value. Every package that needs PackageId as
// a map key (the solver's partial solution, a Selection) keys on this
// instead.
type Key struct {
	name Name
	res  string
}

// Key returns id's comparable map-key form, built from its normalized
// name and the resolution's canonical string form.
func (id PackageId) Key() Key {
	return Key{name: id.Name.Normalized(), res: id.Resolution.String()}
}

func (id PackageId) String() string {
	if id.Resolution.Kind == Index && id.Resolution.IndexAlias == "" {
		return id.Name.String()
	}
	return id.Name.String() + " @ " + id.Resolution.String()
}

// CanonicalString renders id in the round-trippable form ParsePackageId
// accepts: bare Name for an undereferenced default-index id, "name @
// resolution" otherwise. Unlike String, it only takes the bare-name
// shortcut when Resolution carries no dereferenced Inner, so a resolved
// default-index id doesn't lose its location on the way to disk — the
// lockfile and the install registry's sidecar map both need this
// fidelity, which a log line does not.
func (id PackageId) CanonicalString() string {
	if id.Resolution.Kind == Index && id.Resolution.IndexAlias == "" && id.Resolution.Inner == nil {
		return id.Name.String()
	}
	return id.Name.String() + " @ " + id.Resolution.String()
}

// ParsePackageId parses CanonicalString's output back into a PackageId.
func ParsePackageId(s string) (PackageId, error) {
	name, rest, hasRes := strings.Cut(s, " @ ")
	n, err := ParseName(strings.TrimSpace(name))
	if err != nil {
		return PackageId{}, err
	}
	if !hasRes {
		return PackageId{Name: n, Resolution: NewIndex("")}, nil
	}
	res, err := ParseResolution(strings.TrimSpace(rest))
	if err != nil {
		return PackageId{}, err
	}
	return PackageId{Name: n, Resolution: res}, nil
}

// Summary is (Name, Version, Resolution) — it uniquely identifies a
// concrete package instance, as opposed to PackageId's versioned family.
type Summary struct {
	Name       Name
	Version    semver.Version
	Resolution Resolution
}

// PackageId returns the family that s belongs to.
func (s Summary) PackageId() PackageId {
	return PackageId{Name: s.Name, Resolution: s.Resolution}
}

func (s Summary) String() string {
	return s.Name.String() + " " + s.Version.String()
}

// DependencyKind distinguishes a normal dependency edge from one that is
// visible only to test targets of the root package.
type DependencyKind int

const (
	// Normal dependencies are visible to every target.
	Normal DependencyKind = iota
	// Dev dependencies are visible only to test targets of the root.
	Dev
)

// Dependency is (Name, Resolution-or-default, Constraint, Kind). A
// Resolution of NewIndex("") (Kind == Index, IndexAlias == "", no Inner)
// means "the configured default index"; the zero Resolution is a Tar.
type Dependency struct {
	Name       Name
	Resolution Resolution
	Constraint semver.Constraint
	Kind       DependencyKind
}

// UsesDefaultIndex reports whether d did not specify an index or other
// source, and should resolve against the configured default index.
func (d Dependency) UsesDefaultIndex() bool {
	return d.Resolution.Kind == Index && d.Resolution.IndexAlias == "" && d.Resolution.Inner == nil
}
