package index

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/fncraft/flux/internal/pkgid"
	"github.com/fncraft/flux/internal/semver"
)

// rawDependency mirrors the on-disk JSON shape of spec §6: a dependency
// record names a package, an optional index alias, and a constraint
// string ("req").
type rawDependency struct {
	Name  string `json:"name"`
	Index string `json:"index,omitempty"`
	Req   string `json:"req"`
	Dev   bool   `json:"dev,omitempty"`
}

// rawRecord is a single newline-delimited JSON line in a per-`group/name`
// index file.
type rawRecord struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Dependencies []rawDependency `json:"dependencies"`
	Yanked       bool            `json:"yanked"`
	Location     string          `json:"location"`
}

// Record is a decoded, validated index entry for one version of a
// package: spec §3's IndexMetadata record {Version, [Dependency],
// yanked, location}.
type Record struct {
	Name         pkgid.Name
	Version      semver.Version
	Dependencies []pkgid.Dependency
	Yanked       bool
	Location     pkgid.Resolution
}

// decodeRecord validates and converts a rawRecord into a Record.
func decodeRecord(raw rawRecord) (Record, error) {
	name, err := pkgid.ParseName(raw.Name)
	if err != nil {
		return Record{}, errors.Wrapf(err, "index record for %q", raw.Name)
	}
	version, err := semver.ParseVersion(raw.Version)
	if err != nil {
		return Record{}, errors.Wrapf(err, "index record %s", raw.Name)
	}
	loc, err := pkgid.ParseResolution(raw.Location)
	if err != nil {
		return Record{}, errors.Wrapf(err, "index record %s %s", raw.Name, raw.Version)
	}

	deps := make([]pkgid.Dependency, len(raw.Dependencies))
	for i, rd := range raw.Dependencies {
		dname, err := pkgid.ParseName(rd.Name)
		if err != nil {
			return Record{}, errors.Wrapf(err, "dependency of %s %s", raw.Name, raw.Version)
		}
		constraint, err := semver.ParseConstraint(rd.Req)
		if err != nil {
			return Record{}, errors.Wrapf(err, "dependency %s of %s %s", rd.Name, raw.Name, raw.Version)
		}
		dep := pkgid.Dependency{Name: dname, Resolution: pkgid.NewIndex(""), Constraint: constraint}
		if rd.Dev {
			dep.Kind = pkgid.Dev
		}
		if rd.Index != "" {
			dep.Resolution = pkgid.NewIndex(rd.Index)
		}
		deps[i] = dep
	}

	return Record{
		Name:         name,
		Version:      version,
		Dependencies: deps,
		Yanked:       raw.Yanked,
		Location:     loc,
	}, nil
}

// decodeRecords parses a newline-delimited JSON record file: the
// standard library decoder consumes consecutive JSON values from a
// stream just as readily as it does one, so no custom line-splitting is
// needed.
func decodeRecords(data []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var out []Record
	for {
		var raw rawRecord
		if err := dec.Decode(&raw); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrap(err, "decoding index record file")
		}
		r, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
