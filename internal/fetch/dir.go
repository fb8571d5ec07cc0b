package fetch

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/termie/go-shutil"

	"github.com/fncraft/flux/internal/pkgid"
)

// fetchDir materializes a dir+PATH source by copying it into the
// fetcher's source namespace, matching the teacher's use of go-shutil
// for vendoring tree copies (vcs_source.go's exportVersionTo). Any
// existing directory is accepted: the path is not checked to be a
// sub-path of the project. Dir sources carry no network identity, so
// there is nothing to hash-verify.
func (f *Fetcher) fetchDir(res pkgid.Resolution) (LocalPath, error) {
	abs, err := filepath.Abs(res.Path)
	if err != nil {
		return "", errors.Wrapf(err, "resolving directory source %s", res.Path)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", errors.Wrapf(err, "directory source %s", res.Path)
	}
	if !info.IsDir() {
		return "", errors.Errorf("directory source %s is not a directory", res.Path)
	}

	digest, err := hashDir(abs)
	if err != nil {
		return "", err
	}
	dest, err := f.destDir(digest)
	if err != nil {
		return "", err
	}

	var result LocalPath
	err = withLock(dest, func() error {
		if hasCompletionMarker(dest) {
			result = LocalPath(dest)
			return nil
		}
		if err := os.RemoveAll(dest); err != nil {
			return errors.Wrapf(err, "clearing stale copy at %s", dest)
		}
		cfg := &shutil.CopyTreeOptions{
			Symlinks:     true,
			CopyFunction: shutil.Copy,
			Ignore: func(src string, contents []os.FileInfo) (ignore []string) {
				for _, fi := range contents {
					if fi.IsDir() && fi.Name() == ".git" {
						ignore = append(ignore, fi.Name())
					}
				}
				return
			},
		}
		if err := shutil.CopyTree(abs, dest, cfg); err != nil {
			return errors.Wrapf(err, "copying directory source %s", res.Path)
		}
		if err := writeCompletionMarker(dest); err != nil {
			return err
		}
		result = LocalPath(dest)
		return nil
	})
	return result, err
}
