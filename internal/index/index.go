// Package index implements the on-disk index layer: index.toml
// metadata, per-group/name record files, and the read-through queries
// (list_versions, dependencies, resolve_alias) the solver consults.
package index

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/armon/go-radix"
	"github.com/karrick/godirwalk"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/fncraft/flux/internal/flog"
	"github.com/fncraft/flux/internal/pkgid"
	"github.com/fncraft/flux/internal/semver"
)

// Metadata is the decoded index.toml: a security flag, a map of short
// aliases to the resolutions they stand for, and an optional backing
// registry URL for publishing.
type Metadata struct {
	Secure   bool
	Aliases  map[string]pkgid.Resolution
	Registry string
}

func decodeMetadata(tree *toml.Tree) (Metadata, error) {
	m := Metadata{
		Secure:   tree.GetDefault("secure", false).(bool),
		Registry: tree.GetDefault("registry", "").(string),
		Aliases:  map[string]pkgid.Resolution{},
	}
	aliasesTree, ok := tree.Get("aliases").(*toml.Tree)
	if !ok {
		return m, nil
	}
	for _, key := range aliasesTree.Keys() {
		raw, ok := aliasesTree.Get(key).(string)
		if !ok {
			return Metadata{}, errors.Errorf("index.toml alias %q must be a resolution string", key)
		}
		res, err := pkgid.ParseResolution(raw)
		if err != nil {
			return Metadata{}, errors.Wrapf(err, "index.toml alias %q", key)
		}
		m.Aliases[key] = res
	}
	return m, nil
}

// Index is a read-through view over one on-disk package index rooted at
// Root. Record files are read lazily and memoized in the optional
// Cache; the index is meant to be loaded once, eagerly, before solving
// begins (spec §5), then queried many times against a frozen snapshot.
type Index struct {
	Root     string
	Metadata Metadata

	cache *Cache
	log   *flog.Logger

	mu      sync.Mutex
	records map[string][]Record // "group/name" -> decoded records

	// names is a prefix tree over every "group/name" record file under
	// Root, filled by one directory walk in Load; it backs Search
	// without a directory walk per query.
	names *radix.Tree
}

// Load reads index.toml at root and returns a ready-to-query Index. The
// per-package record files under root are not read until first
// requested.
func Load(root string, cache *Cache, logger *flog.Logger) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(root, "index.toml"))
	if err != nil {
		return nil, errors.Wrapf(err, "reading index.toml under %s", root)
	}
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing index.toml under %s", root)
	}
	meta, err := decodeMetadata(tree)
	if err != nil {
		return nil, errors.Wrapf(err, "index.toml under %s", root)
	}

	names := radix.New()
	walkErr := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if rel == "index.toml" {
				return nil
			}
			names.Insert(rel, nil)
			return nil
		},
	})
	if walkErr != nil {
		return nil, errors.Wrapf(walkErr, "scanning index record files under %s", root)
	}

	return &Index{
		Root:     root,
		Metadata: meta,
		cache:    cache,
		log:      logger,
		records:  map[string][]Record{},
		names:    names,
	}, nil
}

// Search returns every "group/name" package key under root whose path
// starts with prefix, for a CLI "search" command to list candidates
// without loading each record file. The empty prefix lists everything.
func (ix *Index) Search(prefix string) []string {
	var out []string
	ix.names.WalkPrefix(prefix, func(key string, _ interface{}) bool {
		out = append(out, key)
		return false
	})
	sort.Strings(out)
	return out
}

// ResolveAlias resolves a short alias declared in index.toml's aliases
// table, per index.dependencies in spec §4.2.
func (ix *Index) ResolveAlias(alias string) (pkgid.Resolution, error) {
	res, ok := ix.Metadata.Aliases[alias]
	if !ok {
		return pkgid.Resolution{}, errors.Errorf("index at %s has no alias %q", ix.Root, alias)
	}
	return res, nil
}

func (ix *Index) recordsFor(name pkgid.Name) ([]Record, error) {
	norm := name.Normalized()
	key := norm.Group + "/" + norm.Name

	ix.mu.Lock()
	if rs, ok := ix.records[key]; ok {
		ix.mu.Unlock()
		return rs, nil
	}
	ix.mu.Unlock()

	if ix.cache != nil {
		if rs, ok := ix.cache.get(ix.Root, key); ok {
			ix.mu.Lock()
			ix.records[key] = rs
			ix.mu.Unlock()
			return rs, nil
		}
	}

	path := filepath.Join(ix.Root, filepath.FromSlash(key))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading index record file %s", path)
	}
	rs, err := decodeRecords(data)
	if err != nil {
		return nil, errors.Wrapf(err, "index record file %s", path)
	}

	ix.mu.Lock()
	ix.records[key] = rs
	ix.mu.Unlock()
	if ix.cache != nil {
		ix.cache.put(ix.Root, key, rs)
	}
	ix.log.With("package", key).Debugf("loaded %d index records", len(rs))
	return rs, nil
}

// ListVersions returns every non-yanked version on offer for id, sorted
// descending. pinned, if non-nil, is a version the caller's lockfile
// already pins; if it matches a yanked record, that record is included
// too (spec §4.2's "unless the lockfile pins a yanked version").
func (ix *Index) ListVersions(id pkgid.PackageId, pinned *semver.Version) ([]semver.Version, error) {
	records, err := ix.recordsFor(id.Name)
	if err != nil {
		return nil, err
	}
	var out []semver.Version
	for _, r := range records {
		if r.Yanked {
			if pinned == nil || !r.Version.Equal(*pinned) {
				continue
			}
		}
		out = append(out, r.Version)
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Less(out[i]) })
	return out, nil
}

// Dependencies returns the dependency list recorded for s.
func (ix *Index) Dependencies(s pkgid.Summary) ([]pkgid.Dependency, error) {
	records, err := ix.recordsFor(s.Name)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.Version.Equal(s.Version) {
			return r.Dependencies, nil
		}
	}
	return nil, errors.Errorf("no index record for %s %s", s.Name, s.Version)
}

// Location returns the resolved Location of a specific version, used to
// dereference an index+ resolution down to a direct one.
func (ix *Index) Location(name pkgid.Name, v semver.Version) (pkgid.Resolution, error) {
	records, err := ix.recordsFor(name)
	if err != nil {
		return pkgid.Resolution{}, err
	}
	for _, r := range records {
		if r.Version.Equal(v) {
			return r.Location, nil
		}
	}
	return pkgid.Resolution{}, errors.Errorf("no index record for %s %s", name, v)
}
