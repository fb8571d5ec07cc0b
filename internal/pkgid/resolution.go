package pkgid

import (
	"strings"

	"github.com/pkg/errors"
)

// Kind enumerates the variants of the Resolution tagged union.
type Kind int

const (
	// Tar identifies a source fetched from a tarball URL.
	Tar Kind = iota
	// Dir identifies a source that is a sub-path of the project tree.
	Dir
	// Git identifies a source cloned from a git remote, optionally pinned
	// to a ref (branch, tag, or commit).
	Git
	// Index identifies a source that defers to an index's recorded
	// location for the resolved version.
	Index
)

func (k Kind) String() string {
	switch k {
	case Tar:
		return "tar"
	case Dir:
		return "dir"
	case Git:
		return "git"
	case Index:
		return "index"
	default:
		return "unknown"
	}
}

// Resolution is the tagged union of spec §3: tar+URL, dir+PATH,
// git+URL[#REF], or index+R where R is itself a direct resolution. It
// carries exactly the data needed to locate the bytes for a package.
//
// Do not model this by subtyping; each variant's identity bits
// participate directly in build fingerprinting (internal/cache), so the
// flat struct with a Kind discriminant is load-bearing, not laziness.
type Resolution struct {
	Kind Kind

	// Tar, Dir, Git
	URL  string // Tar, Git
	Path string // Dir
	Ref  string // Git: branch, tag, or commit; empty means "default branch"

	// Index
	IndexAlias string      // which configured index this defers to
	Inner      *Resolution // the index's recorded location for the resolved version, once known
}

// NewTar builds a tar+URL resolution.
func NewTar(url string) Resolution { return Resolution{Kind: Tar, URL: url} }

// NewDir builds a dir+PATH resolution.
func NewDir(path string) Resolution { return Resolution{Kind: Dir, Path: path} }

// NewGit builds a git+URL[#REF] resolution.
func NewGit(url, ref string) Resolution { return Resolution{Kind: Git, URL: url, Ref: ref} }

// NewIndex builds an index+alias resolution. Inner is filled in once the
// index layer resolves a concrete version's location.
func NewIndex(alias string) Resolution { return Resolution{Kind: Index, IndexAlias: alias} }

// String renders r back into the resolution-string grammar of spec §6:
//
//	resolution := direct | "index+" direct
//	direct     := "tar+" url | "dir+" path | "git+" url ("#" ref)?
func (r Resolution) String() string {
	switch r.Kind {
	case Tar:
		return "tar+" + r.URL
	case Dir:
		return "dir+" + r.Path
	case Git:
		if r.Ref != "" {
			return "git+" + r.URL + "#" + r.Ref
		}
		return "git+" + r.URL
	case Index:
		if r.Inner != nil {
			return "index+" + r.Inner.String()
		}
		return "index+" + r.IndexAlias
	default:
		return "<invalid resolution>"
	}
}

// Equal reports structural equality of two resolutions, including the
// resolved Inner of an Index resolution where present.
func (r Resolution) Equal(other Resolution) bool {
	if r.Kind != other.Kind {
		return false
	}
	switch r.Kind {
	case Tar:
		return r.URL == other.URL
	case Dir:
		return r.Path == other.Path
	case Git:
		return r.URL == other.URL && r.Ref == other.Ref
	case Index:
		if r.IndexAlias != other.IndexAlias {
			return false
		}
		if (r.Inner == nil) != (other.Inner == nil) {
			return false
		}
		if r.Inner == nil {
			return true
		}
		return r.Inner.Equal(*other.Inner)
	default:
		return false
	}
}

// ParseResolution parses the resolution-string grammar of spec §6, plus
// the "index+ALIAS" form String renders for an Index resolution whose
// Inner is not yet known.
func ParseResolution(s string) (Resolution, error) {
	if rest, ok := cutPrefix(s, "index+"); ok {
		// A remainder with no "scheme+" prefix is an alias, not a direct
		// resolution.
		if rest != "" && !strings.Contains(rest, "+") {
			return NewIndex(rest), nil
		}
		inner, err := parseDirect(rest)
		if err != nil {
			return Resolution{}, errors.Wrapf(err, "resolution %q", s)
		}
		return Resolution{Kind: Index, Inner: &inner}, nil
	}
	r, err := parseDirect(s)
	if err != nil {
		return Resolution{}, errors.Wrapf(err, "resolution %q", s)
	}
	return r, nil
}

func parseDirect(s string) (Resolution, error) {
	switch {
	case strings.HasPrefix(s, "tar+"):
		url := strings.TrimPrefix(s, "tar+")
		if url == "" {
			return Resolution{}, errors.New("tar+ resolution has an empty URL")
		}
		return NewTar(url), nil
	case strings.HasPrefix(s, "dir+"):
		path := strings.TrimPrefix(s, "dir+")
		if path == "" {
			return Resolution{}, errors.New("dir+ resolution has an empty path")
		}
		return NewDir(path), nil
	case strings.HasPrefix(s, "git+"):
		rest := strings.TrimPrefix(s, "git+")
		url, ref := rest, ""
		if i := strings.IndexByte(rest, '#'); i >= 0 {
			url, ref = rest[:i], rest[i+1:]
		}
		if url == "" {
			return Resolution{}, errors.New("git+ resolution has an empty URL")
		}
		return NewGit(url, ref), nil
	default:
		return Resolution{}, errors.Errorf("unrecognized resolution scheme in %q", s)
	}
}

func cutPrefix(s, prefix string) (string, bool) {
	if !strings.HasPrefix(s, prefix) {
		return "", false
	}
	return s[len(prefix):], true
}
