package main

import (
	"github.com/fncraft/flux/internal/index"
	"github.com/fncraft/flux/internal/pkgid"
	"github.com/fncraft/flux/internal/semver"
	"github.com/fncraft/flux/internal/solver"
)

// indexProvider adapts an *index.Index's ListVersions/Dependencies pair
// to solver.Provider's Versions/DependenciesOf shape; the two don't
// match signature-for-signature (ListVersions takes an optional pinned
// version, DependenciesOf takes a version rather than a Summary), so
// this bridge lives in cmd/flux rather than in internal/index, which has
// no business depending on internal/solver's query shape.
type indexProvider struct {
	ix *index.Index
}

var _ solver.Provider = indexProvider{}

func (p indexProvider) Versions(id pkgid.PackageId) ([]semver.Version, error) {
	return p.ix.ListVersions(id, nil)
}

func (p indexProvider) DependenciesOf(id pkgid.PackageId, v semver.Version) ([]pkgid.Dependency, error) {
	return p.ix.Dependencies(pkgid.Summary{Name: id.Name, Version: v, Resolution: id.Resolution})
}
