// Package cache implements the content-addressed build cache: fingerprint
// derivation, the on-disk directory layout, and the single-writer-per-
// fingerprint build protocol that serializes concurrent builds of the
// same node onto one compiler invocation. The locking and completion-
// marker discipline is the same one internal/fetch uses for its
// content-addressed source tree (destDir/withLock/hasCompletionMarker),
// generalized here from a fetched source to a compiled artifact.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// Root is the cache's on-disk layout, rooted at Path:
//
//	build/<fp>/      compiled artifacts for the node with fingerprint fp
//	src/<hash>/      extracted/cloned/copied source trees, keyed by content
//	tmp/<fp>/        scratch workspace for an in-progress build of fp
//	indices/<hash>/  mirrored index trees, keyed by the index's identity
//	bin/             installed binaries (see internal/install)
type Root struct {
	Path string
}

func (r Root) BuildDir(fingerprint string) string {
	return filepath.Join(r.Path, "build", fingerprint)
}

func (r Root) TmpDir(fingerprint string) string {
	return filepath.Join(r.Path, "tmp", fingerprint)
}

func (r Root) SrcDir(hash string) string {
	return filepath.Join(r.Path, "src", hash)
}

func (r Root) IndexDir(hash string) string {
	return filepath.Join(r.Path, "indices", hash)
}

func (r Root) BinDir() string {
	return filepath.Join(r.Path, "bin")
}

// Environment carries the build-wide identity bits that participate in
// every node's fingerprint but are constant across the whole plan: the
// compiler and backend being invoked, the flags passed to them, and the
// target platform. None of these may vary with the host the build
// happens to run on (no absolute paths, no timestamps).
type Environment struct {
	CompilerID string
	BackendID  string
	Flags      []string
	Platform   string
}

// fieldSep separates fingerprint fields in the hash input so that, e.g.,
// CompilerID="ab"+BackendID="c" cannot collide with CompilerID="a"+
// BackendID="bc".
const fieldSep = 0

// Fingerprint derives a build node's cache key from its source digest,
// the (already-computed) fingerprints of its dependencies, and the
// ambient Environment, per spec: sorted dependency fingerprints and
// sorted flags make the result invariant under reordering of either.
func Fingerprint(sourceDigest string, depFingerprints []string, env Environment) string {
	h := sha256.New()
	write := func(s string) {
		io.WriteString(h, s)
		h.Write([]byte{fieldSep})
	}

	write(sourceDigest)

	deps := append([]string(nil), depFingerprints...)
	sort.Strings(deps)
	for _, d := range deps {
		write(d)
	}

	write(env.CompilerID)
	write(env.BackendID)

	flags := append([]string(nil), env.Flags...)
	sort.Strings(flags)
	for _, f := range flags {
		write(f)
	}

	write(env.Platform)

	return hex.EncodeToString(h.Sum(nil))
}

func hasCompletionMarker(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".build-complete"))
	return err == nil
}

func writeCompletionMarker(dir string) error {
	return os.WriteFile(filepath.Join(dir, ".build-complete"), nil, 0o644)
}

func ensureParent(dir string) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return errors.Wrapf(err, "creating parent of %s", dir)
	}
	return nil
}
