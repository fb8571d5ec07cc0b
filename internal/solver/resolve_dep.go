package solver

import "github.com/fncraft/flux/internal/pkgid"

// DefaultResolver implements Resolver by folding an unspecified
// dependency source into the caller-supplied default index alias,
// leaving every other resolution kind untouched.
type DefaultResolver struct{}

func (DefaultResolver) Resolve(dep pkgid.Dependency, defaultIndex string) (pkgid.PackageId, error) {
	res := dep.Resolution
	if dep.UsesDefaultIndex() {
		res = pkgid.NewIndex(defaultIndex)
	}
	return pkgid.PackageId{Name: dep.Name, Resolution: res}, nil
}
