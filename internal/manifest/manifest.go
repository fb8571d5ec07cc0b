// Package manifest decodes a project's manifest.toml into the logical
// schema of the package metadata, its declared targets, and its
// dependency edges. Parsing follows the teacher's two-step idiom (decode
// into a tree, validate/translate into the typed form) seen in
// manifest.go's rawManifest/possibleProps split, adapted from JSON to
// TOML and from a single constraint-or-branch-or-revision field to the
// fuller {version, index, path, git, branch, tag, rev} dependency shape.
package manifest

import (
	"io"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/fncraft/flux/internal/pkgid"
	"github.com/fncraft/flux/internal/semver"
)

// Name is the canonical file name looked up in a project root.
const Name = "manifest.toml"

// Package holds the [package] table: identity and publishing metadata.
type Package struct {
	Name        pkgid.Name
	Version     semver.Version
	Authors     []string
	Description string
	License     string
	Repository  string
	Homepage    string
	Keywords    []string
	Readme      string
	Exclude     []string
}

// Target is one entry of targets.lib, targets.bin[], or targets.test[]:
// a named build product and the source path it's rooted at.
type Target struct {
	Name string
	Path string
}

// Manifest is the fully decoded, validated logical form of manifest.toml
// (spec §6): package metadata, dependency edges split by kind, declared
// targets, workspace members, and named scripts.
type Manifest struct {
	Package         Package
	Dependencies    []pkgid.Dependency
	DevDependencies []pkgid.Dependency
	Lib             *Target
	Bin             []Target
	Test            []Target
	Workspace       []string
	Scripts         map[string]string
}

// Load parses manifest.toml content from r.
func Load(r io.Reader) (*Manifest, error) {
	tree, err := toml.LoadReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing manifest.toml")
	}
	return decode(tree)
}

func decode(tree *toml.Tree) (*Manifest, error) {
	m := &Manifest{Scripts: map[string]string{}}

	pkgTree, ok := tree.Get("package").(*toml.Tree)
	if !ok {
		return nil, errors.New("manifest.toml has no [package] table")
	}
	pkg, err := decodePackage(pkgTree)
	if err != nil {
		return nil, err
	}
	m.Package = pkg

	deps, err := decodeDependencies(tree, "dependencies", pkgid.Normal)
	if err != nil {
		return nil, err
	}
	m.Dependencies = deps

	devDeps, err := decodeDependencies(tree, "dev_dependencies", pkgid.Dev)
	if err != nil {
		return nil, err
	}
	m.DevDependencies = devDeps

	if libTree, ok := tree.Get("targets.lib").(*toml.Tree); ok {
		t, err := decodeTarget(libTree, "lib")
		if err != nil {
			return nil, errors.Wrap(err, "targets.lib")
		}
		m.Lib = &t
	}
	bin, err := decodeTargetArray(tree, "targets.bin")
	if err != nil {
		return nil, err
	}
	m.Bin = bin
	test, err := decodeTargetArray(tree, "targets.test")
	if err != nil {
		return nil, err
	}
	m.Test = test

	if ws, ok := tree.Get("workspace").([]interface{}); ok {
		for _, v := range ws {
			s, ok := v.(string)
			if !ok {
				return nil, errors.New("workspace entries must be strings")
			}
			m.Workspace = append(m.Workspace, s)
		}
	}

	if scriptsTree, ok := tree.Get("scripts").(*toml.Tree); ok {
		for _, key := range scriptsTree.Keys() {
			s, ok := scriptsTree.Get(key).(string)
			if !ok {
				return nil, errors.Errorf("scripts.%s must be a string", key)
			}
			m.Scripts[key] = s
		}
	}

	return m, nil
}

func decodePackage(tree *toml.Tree) (Package, error) {
	rawName, ok := tree.Get("name").(string)
	if !ok {
		return Package{}, errors.New("package.name is required")
	}
	name, err := pkgid.ParseName(rawName)
	if err != nil {
		return Package{}, errors.Wrap(err, "package.name")
	}

	rawVersion, ok := tree.Get("version").(string)
	if !ok {
		return Package{}, errors.New("package.version is required")
	}
	version, err := semver.ParseVersion(rawVersion)
	if err != nil {
		return Package{}, errors.Wrap(err, "package.version")
	}

	return Package{
		Name:        name,
		Version:     version,
		Authors:     stringList(tree, "authors"),
		Description: stringDefault(tree, "description"),
		License:     stringDefault(tree, "license"),
		Repository:  stringDefault(tree, "repository"),
		Homepage:    stringDefault(tree, "homepage"),
		Keywords:    stringList(tree, "keywords"),
		Readme:      stringDefault(tree, "readme"),
		Exclude:     stringList(tree, "exclude"),
	}, nil
}

func stringDefault(tree *toml.Tree, key string) string {
	v, _ := tree.GetDefault(key, "").(string)
	return v
}

func stringList(tree *toml.Tree, key string) []string {
	raw, ok := tree.Get(key).([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func decodeTarget(tree *toml.Tree, defaultName string) (Target, error) {
	path, ok := tree.Get("path").(string)
	if !ok {
		return Target{}, errors.New("target is missing a path")
	}
	name := defaultName
	if n, ok := tree.Get("name").(string); ok {
		name = n
	}
	return Target{Name: name, Path: path}, nil
}

func decodeTargetArray(tree *toml.Tree, key string) ([]Target, error) {
	raw, ok := tree.Get(key).([]*toml.Tree)
	if !ok {
		return nil, nil
	}
	out := make([]Target, 0, len(raw))
	for _, sub := range raw {
		t, err := decodeTarget(sub, "")
		if err != nil {
			return nil, errors.Wrapf(err, "%s", key)
		}
		if t.Name == "" {
			return nil, errors.Errorf("%s entries must declare a name", key)
		}
		out = append(out, t)
	}
	return out, nil
}

// decodeDependencies reads the "dependencies" or "dev_dependencies"
// table into a flat list of pkgid.Dependency, validating that each
// entry declares exactly one dominant source (spec §6: exactly one of
// {version+index?, path, git} must dominate).
func decodeDependencies(tree *toml.Tree, table string, kind pkgid.DependencyKind) ([]pkgid.Dependency, error) {
	depsTree, ok := tree.Get(table).(*toml.Tree)
	if !ok {
		return nil, nil
	}

	var out []pkgid.Dependency
	for _, key := range depsTree.Keys() {
		name, err := pkgid.ParseName(key)
		if err != nil {
			return nil, errors.Wrapf(err, "%s.%s", table, key)
		}
		dep, err := decodeDependency(name, depsTree.Get(key), kind)
		if err != nil {
			return nil, errors.Wrapf(err, "%s.%s", table, key)
		}
		out = append(out, dep)
	}
	return out, nil
}

func decodeDependency(name pkgid.Name, raw interface{}, kind pkgid.DependencyKind) (pkgid.Dependency, error) {
	if s, ok := raw.(string); ok {
		c, err := semver.ParseConstraint(s)
		if err != nil {
			return pkgid.Dependency{}, errors.Wrap(err, "constraint")
		}
		return pkgid.Dependency{Name: name, Resolution: pkgid.NewIndex(""), Constraint: c, Kind: kind}, nil
	}

	sub, ok := raw.(*toml.Tree)
	if !ok {
		return pkgid.Dependency{}, errors.New("dependency must be a version string or a table")
	}

	path, hasPath := sub.Get("path").(string)
	git, hasGit := sub.Get("git").(string)
	version, hasVersion := sub.Get("version").(string)
	index, _ := sub.Get("index").(string)

	dominant := 0
	if hasPath {
		dominant++
	}
	if hasGit {
		dominant++
	}
	if hasVersion || index != "" {
		dominant++
	}
	if dominant != 1 {
		return pkgid.Dependency{}, errors.New("must specify exactly one of version, path, or git")
	}

	switch {
	case hasPath:
		return pkgid.Dependency{Name: name, Resolution: pkgid.NewDir(path), Constraint: semver.Any(), Kind: kind}, nil

	case hasGit:
		branch, hasBranch := sub.Get("branch").(string)
		tag, hasTag := sub.Get("tag").(string)
		rev, hasRev := sub.Get("rev").(string)
		refs := 0
		var ref string
		for _, r := range []struct {
			has bool
			val string
		}{{hasBranch, branch}, {hasTag, tag}, {hasRev, rev}} {
			if r.has {
				refs++
				ref = r.val
			}
		}
		if refs > 1 {
			return pkgid.Dependency{}, errors.New("git dependency must specify at most one of branch, tag, rev")
		}
		return pkgid.Dependency{Name: name, Resolution: pkgid.NewGit(git, ref), Constraint: semver.Any(), Kind: kind}, nil

	default:
		c := semver.Any()
		if hasVersion {
			var err error
			c, err = semver.ParseConstraint(version)
			if err != nil {
				return pkgid.Dependency{}, errors.Wrap(err, "constraint")
			}
		}
		return pkgid.Dependency{Name: name, Resolution: pkgid.NewIndex(index), Constraint: c, Kind: kind}, nil
	}
}
