// Package install implements the binary install registry: a shared
// bin/ directory keyed by binary name, with a sidecar TOML map from
// name to the package and build that produced it. Copying the compiled
// artifact into place reuses the teacher's termie/go-shutil dependency
// (vcs_source.go's exportVersionTo, project_manager.go's export path,
// both built on shutil.CopyTree/shutil.Copy) at the single-file grain
// via shutil.CopyFile.
package install

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/termie/go-shutil"

	"github.com/fncraft/flux/internal/pkgid"
	"github.com/fncraft/flux/internal/semver"
)

// SidecarName is the filename of the bin-dir's name->entry map.
const SidecarName = "installed.toml"

// Entry records what produced an installed binary.
type Entry struct {
	PackageId   pkgid.PackageId
	Version     semver.Version
	Fingerprint string
}

// Registry is the bin/ directory and its sidecar map.
type Registry struct {
	BinDir string
}

// Load reads the sidecar map, returning an empty map if it does not
// exist yet (a fresh bin directory).
func (r *Registry) Load() (map[string]Entry, error) {
	path := filepath.Join(r.BinDir, SidecarName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Entry{}, nil
		}
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	tree, err := toml.LoadReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}

	entries := map[string]Entry{}
	for _, name := range tree.Keys() {
		sub, ok := tree.Get(name).(*toml.Tree)
		if !ok {
			continue
		}
		e, err := decodeEntry(sub)
		if err != nil {
			return nil, errors.Wrapf(err, "entry %q", name)
		}
		entries[name] = e
	}
	return entries, nil
}

func decodeEntry(tree *toml.Tree) (Entry, error) {
	idStr, _ := tree.Get("package_id").(string)
	id, err := pkgid.ParsePackageId(idStr)
	if err != nil {
		return Entry{}, errors.Wrap(err, "package_id")
	}
	versionStr, _ := tree.Get("version").(string)
	v, err := semver.ParseVersion(versionStr)
	if err != nil {
		return Entry{}, errors.Wrap(err, "version")
	}
	fingerprint, _ := tree.Get("fingerprint").(string)
	return Entry{PackageId: id, Version: v, Fingerprint: fingerprint}, nil
}

// Save writes the sidecar map, sorted by binary name for a stable diff.
func (r *Registry) Save(entries map[string]Entry) error {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	tree, err := toml.TreeFromMap(map[string]interface{}{})
	if err != nil {
		return errors.Wrap(err, "building sidecar tree")
	}
	for _, name := range names {
		e := entries[name]
		tree.Set(name, map[string]interface{}{
			"package_id":  e.PackageId.CanonicalString(),
			"version":     e.Version.String(),
			"fingerprint": e.Fingerprint,
		})
	}

	if err := os.MkdirAll(r.BinDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", r.BinDir)
	}
	f, err := os.Create(filepath.Join(r.BinDir, SidecarName))
	if err != nil {
		return errors.Wrap(err, "creating sidecar file")
	}
	defer f.Close()
	_, err = tree.WriteTo(f)
	return err
}

// Install places artifactPath into the registry under name, failing if
// a different binary already owns that name unless force is set.
func (r *Registry) Install(name, artifactPath string, entry Entry, force bool) error {
	entries, err := r.Load()
	if err != nil {
		return err
	}
	if _, exists := entries[name]; exists && !force {
		return errors.Errorf("a binary named %q is already installed (use force to overwrite)", name)
	}

	if err := os.MkdirAll(r.BinDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", r.BinDir)
	}
	dest := filepath.Join(r.BinDir, name)
	if err := os.RemoveAll(dest); err != nil {
		return errors.Wrapf(err, "clearing previous binary at %s", dest)
	}
	if err := shutil.CopyFile(artifactPath, dest, false); err != nil {
		return errors.Wrapf(err, "copying %s to %s", artifactPath, dest)
	}
	if err := os.Chmod(dest, 0o755); err != nil {
		return errors.Wrapf(err, "making %s executable", dest)
	}

	entries[name] = entry
	return r.Save(entries)
}

// UninstallByName removes the single binary registered under name.
func (r *Registry) UninstallByName(name string) error {
	entries, err := r.Load()
	if err != nil {
		return err
	}
	if _, ok := entries[name]; !ok {
		return errors.Errorf("no installed binary named %q", name)
	}
	if err := os.RemoveAll(filepath.Join(r.BinDir, name)); err != nil {
		return errors.Wrapf(err, "removing %s", name)
	}
	delete(entries, name)
	return r.Save(entries)
}

// UninstallBySpec removes the one binary whose entry matches spec. If
// no entry matches it returns an error; if more than one matches it
// removes nothing and returns a multierror enumerating every candidate
// instead of guessing.
func (r *Registry) UninstallBySpec(spec Spec) ([]string, error) {
	entries, err := r.Load()
	if err != nil {
		return nil, err
	}

	var candidates []string
	for name, e := range entries {
		if spec.Matches(e) {
			candidates = append(candidates, name)
		}
	}
	sort.Strings(candidates)

	switch len(candidates) {
	case 0:
		return nil, errors.Errorf("no installed binary matches %s", spec)
	case 1:
		return candidates, r.UninstallByName(candidates[0])
	default:
		var merr *multierror.Error
		for _, name := range candidates {
			merr = multierror.Append(merr, errors.Errorf("candidate: %s", name))
		}
		return nil, errors.Wrapf(merr, "%s is ambiguous, matches %d installed binaries", spec, len(candidates))
	}
}
