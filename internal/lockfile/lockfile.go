// Package lockfile implements canonical serialization of a solver
// Selection and its reconciliation against a previous lock (spec §4.5,
// §6). The on-disk shape and sort-then-serialize discipline mirror the
// teacher's lock.go (rawLock/lockedDep, SortedLockedProjects,
// locksAreEquivalent), ported from JSON to TOML per the domain stack's
// single-TOML-library rule and generalized from a single pinned
// revision to flux's four-way Resolution tagged union.
package lockfile

import (
	"io"
	"sort"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/fncraft/flux/internal/pkgid"
	"github.com/fncraft/flux/internal/semver"
)

// Name is the canonical file name looked up in a project root.
const Name = "lock.toml"

// LockedPackage is one resolved entry: the package family, the version
// (or, for Git's commit-pinned case, the exported tree's corresponding
// version if any) the solver chose, its resolved dependency edges, and
// a pinned identity for non-index sources.
type LockedPackage struct {
	Id      pkgid.PackageId
	Version semver.Version
	Edges   []pkgid.PackageId

	// Commit pins a Git resolution to a concrete commit; empty for
	// every other Kind.
	Commit string
	// TarDigest pins a Tar resolution to a content hash; empty for
	// every other Kind.
	TarDigest string
}

// Lock is a canonical, PackageId-sorted serialization of a Selection
// (spec §4.5's "Output lockfile is a canonical serialization sorted by
// PackageId").
type Lock struct {
	Packages []LockedPackage
}

// Sort orders l.Packages by PackageId, the canonical order spec §4.5
// requires of every serialized lockfile.
func (l *Lock) Sort() {
	sort.Slice(l.Packages, func(i, j int) bool {
		return l.Packages[i].Id.Less(l.Packages[j].Id)
	})
}

// Load parses lock.toml content from r.
func Load(r io.Reader) (*Lock, error) {
	tree, err := toml.LoadReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing lock.toml")
	}
	raw, ok := tree.Get("package").([]*toml.Tree)
	if !ok {
		return &Lock{}, nil
	}
	l := &Lock{Packages: make([]LockedPackage, 0, len(raw))}
	for _, sub := range raw {
		lp, err := decodePackage(sub)
		if err != nil {
			return nil, err
		}
		l.Packages = append(l.Packages, lp)
	}
	return l, nil
}

func decodePackage(tree *toml.Tree) (LockedPackage, error) {
	rawID, ok := tree.Get("id").(string)
	if !ok {
		return LockedPackage{}, errors.New("lock package entry missing id")
	}
	id, err := pkgid.ParsePackageId(rawID)
	if err != nil {
		return LockedPackage{}, errors.Wrapf(err, "lock package %q", rawID)
	}

	rawVersion, ok := tree.Get("version").(string)
	if !ok {
		return LockedPackage{}, errors.Errorf("lock package %q missing version", rawID)
	}
	version, err := semver.ParseVersion(rawVersion)
	if err != nil {
		return LockedPackage{}, errors.Wrapf(err, "lock package %q version", rawID)
	}

	lp := LockedPackage{
		Id:        id,
		Version:   version,
		Commit:    stringDefault(tree, "commit"),
		TarDigest: stringDefault(tree, "digest"),
	}

	if rawEdges, ok := tree.Get("dependencies").([]interface{}); ok {
		for _, v := range rawEdges {
			s, ok := v.(string)
			if !ok {
				return LockedPackage{}, errors.Errorf("lock package %q has a non-string dependency edge", rawID)
			}
			edge, err := pkgid.ParsePackageId(s)
			if err != nil {
				return LockedPackage{}, errors.Wrapf(err, "lock package %q dependency %q", rawID, s)
			}
			lp.Edges = append(lp.Edges, edge)
		}
	}
	return lp, nil
}

func stringDefault(tree *toml.Tree, key string) string {
	v, _ := tree.GetDefault(key, "").(string)
	return v
}

// Save writes l to w in canonical, PackageId-sorted form.
func (l *Lock) Save(w io.Writer) error {
	l.Sort()
	tree, err := toml.TreeFromMap(map[string]interface{}{})
	if err != nil {
		return errors.Wrap(err, "building lock.toml tree")
	}

	tables := make([]*toml.Tree, 0, len(l.Packages))
	for _, lp := range l.Packages {
		edges := make([]string, len(lp.Edges))
		for i, e := range lp.Edges {
			edges[i] = e.CanonicalString()
		}
		sort.Strings(edges)

		m := map[string]interface{}{
			"id":      lp.Id.CanonicalString(),
			"version": lp.Version.String(),
		}
		if len(edges) > 0 {
			m["dependencies"] = edges
		}
		if lp.Commit != "" {
			m["commit"] = lp.Commit
		}
		if lp.TarDigest != "" {
			m["digest"] = lp.TarDigest
		}
		sub, err := toml.TreeFromMap(m)
		if err != nil {
			return errors.Wrapf(err, "building lock entry for %s", lp.Id)
		}
		tables = append(tables, sub)
	}
	tree.Set("package", tables)

	_, err = tree.WriteTo(w)
	return err
}

// Equivalent reports whether l and other lock the same set of packages
// at the same versions with the same pins, ignoring entry order —
// spec's "lockfile stability" property (an unchanged manifest whose
// constraints still admit the existing lock re-solves to the same
// lockfile) is verified against this rather than byte-for-byte TOML
// equality, mirroring the teacher's locksAreEquivalent.
func (l *Lock) Equivalent(other *Lock) bool {
	if l == nil || other == nil {
		return l == other
	}
	if len(l.Packages) != len(other.Packages) {
		return false
	}
	a := append([]LockedPackage(nil), l.Packages...)
	b := append([]LockedPackage(nil), other.Packages...)
	sort.Slice(a, func(i, j int) bool { return a[i].Id.Less(a[j].Id) })
	sort.Slice(b, func(i, j int) bool { return b[i].Id.Less(b[j].Id) })
	for i := range a {
		if !lockedPackagesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func lockedPackagesEqual(a, b LockedPackage) bool {
	if !a.Id.Equal(b.Id) || !a.Version.Equal(b.Version) {
		return false
	}
	if a.Commit != b.Commit || a.TarDigest != b.TarDigest {
		return false
	}
	if len(a.Edges) != len(b.Edges) {
		return false
	}
	ea := append([]pkgid.PackageId(nil), a.Edges...)
	eb := append([]pkgid.PackageId(nil), b.Edges...)
	sort.Slice(ea, func(i, j int) bool { return ea[i].Less(ea[j]) })
	sort.Slice(eb, func(i, j int) bool { return eb[i].Less(eb[j]) })
	for i := range ea {
		if !ea[i].Equal(eb[i]) {
			return false
		}
	}
	return true
}
