package cache

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/theckman/go-flock"

	"github.com/fncraft/flux/internal/flog"
)

// BuildFunc prepares a node's artifact inside tmpDir. It is invoked with
// the single-writer lock for the node's fingerprint held, so it may
// assume no other process is concurrently preparing the same tmpDir.
// The caller (Builder.Build) removes tmpDir afterward whether or not
// the function returns an error.
type BuildFunc func(ctx context.Context, tmpDir string) error

// Builder runs the build protocol against a cache Root.
type Builder struct {
	Root Root
	Log  *flog.Logger
}

// Build implements the per-node protocol: compute-fingerprint is the
// caller's job (fingerprint is already known here); Build acquires the
// per-fingerprint lock, returns the existing artifact directory if the
// completion marker is already present, otherwise stages the build in
// tmp/<fingerprint>, atomically renames it into build/<fingerprint> on
// success, and always removes tmp/<fingerprint> before returning.
//
// At most one concurrent call across all processes runs build for a
// given fingerprint; the rest block on the flock and then observe the
// completion marker once the winner finishes.
func (b *Builder) Build(ctx context.Context, fingerprint string, build BuildFunc) (string, error) {
	buildDir := b.Root.BuildDir(fingerprint)
	tmpDir := b.Root.TmpDir(fingerprint)

	if err := ensureParent(buildDir); err != nil {
		return "", err
	}
	if err := ensureParent(tmpDir); err != nil {
		return "", err
	}

	fl := flock.NewFlock(buildDir + ".lock")
	if err := fl.Lock(); err != nil {
		return "", errors.Wrapf(err, "acquiring build lock for %s", fingerprint)
	}
	defer fl.Unlock()

	if hasCompletionMarker(buildDir) {
		if b.Log != nil {
			b.Log.Debugf("cache hit for %s", fingerprint)
		}
		return buildDir, nil
	}

	if err := os.RemoveAll(tmpDir); err != nil {
		return "", errors.Wrapf(err, "clearing stale workspace for %s", fingerprint)
	}
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "preparing workspace for %s", fingerprint)
	}
	defer os.RemoveAll(tmpDir)

	if err := build(ctx, tmpDir); err != nil {
		return "", errors.Wrapf(err, "building %s", fingerprint)
	}

	if err := os.RemoveAll(buildDir); err != nil {
		return "", errors.Wrapf(err, "clearing stale artifact for %s", fingerprint)
	}
	if err := writeCompletionMarker(tmpDir); err != nil {
		return "", errors.Wrapf(err, "marking %s complete", fingerprint)
	}
	if err := os.Rename(tmpDir, buildDir); err != nil {
		return "", errors.Wrapf(err, "finalizing build of %s", fingerprint)
	}
	if b.Log != nil {
		b.Log.Debugf("built %s", fingerprint)
	}
	return buildDir, nil
}
