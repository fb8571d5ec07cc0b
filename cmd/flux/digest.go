package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fncraft/flux/internal/fetch"
	"github.com/fncraft/flux/internal/index"
	"github.com/fncraft/flux/internal/pkgid"
)

// fetchDigester adapts a Fetcher plus the index that dereferences index+
// resolutions into a buildplan.SourceDigester: fetch the summary's
// source tree (if not already cached), then hash it. The interface
// takes no context, so one is fixed at construction — every digest
// lookup happens during plan construction, before the worker pool with
// its own per-node contexts starts.
type fetchDigester struct {
	ctx     context.Context
	fetcher *fetch.Fetcher
	index   *index.Index

	// tarDigests carries forward the hash pinned in a previous lock for
	// a Tar-resolved package, so a later build doesn't silently accept
	// a tarball whose bytes changed out from under an unchanged URL.
	tarDigests map[pkgid.Key]string
}

func (d *fetchDigester) SourceDigest(s pkgid.Summary) (string, error) {
	res := s.Resolution
	if res.Kind == pkgid.Index {
		loc, err := d.index.Location(s.Name, s.Version)
		if err != nil {
			return "", errors.Wrapf(err, "dereferencing %s", s)
		}
		res = loc
	}

	var expectedHash string
	if res.Kind == pkgid.Tar {
		expectedHash = d.tarDigests[s.PackageId().Key()]
	}

	path, err := d.fetcher.Fetch(d.ctx, res, expectedHash)
	if err != nil {
		return "", errors.Wrapf(err, "fetching %s", s)
	}
	digest, err := fetch.HashDir(string(path))
	if err != nil {
		return "", errors.Wrapf(err, "hashing %s", s)
	}
	return digest, nil
}
