package solver

import (
	"github.com/fncraft/flux/internal/pkgid"
	"github.com/fncraft/flux/internal/semver"
)

// Provider answers the two questions PubGrub needs about a package: what
// versions exist, and what a given version depends on. internal/index
// satisfies this against a loaded on-disk index; tests satisfy it with
// an in-memory fixture, mirroring the way the teacher's solver talks to
// a sourceBridge rather than a concrete SourceManager.
type Provider interface {
	// Versions lists every installable version of id, most-preferred
	// first. An index implementation filters yanked versions per its
	// own rules before returning here.
	Versions(id pkgid.PackageId) ([]semver.Version, error)

	// DependenciesOf returns what id at version v depends on.
	DependenciesOf(id pkgid.PackageId, v semver.Version) ([]pkgid.Dependency, error)
}

// Resolver turns a Dependency's (Name, Resolution) pair into the
// concrete PackageId the solver should reason about, dereferencing
// index+ resolutions to the index a given alias names. Kept separate
// from Provider because resolving an index alias is a configuration
// concern (which indices are configured), not a per-package query.
type Resolver interface {
	Resolve(dep pkgid.Dependency, defaultIndex string) (pkgid.PackageId, error)
}
