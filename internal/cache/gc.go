package cache

import (
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

// GC removes every entry under build/ whose fingerprint is not present
// in live, reflecting the guarantee that removing the whole build/ tree
// is always safe — the only cost is recompilation. It only inspects the
// immediate children of build/; it never descends into a fingerprint
// directory it intends to keep.
func GC(root Root, live map[string]bool) error {
	buildRoot := filepath.Join(root.Path, "build")
	if _, err := os.Stat(buildRoot); os.IsNotExist(err) {
		return nil
	}

	return godirwalk.Walk(buildRoot, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == buildRoot {
				return nil
			}
			fp := filepath.Base(path)
			if live[fp] {
				return filepath.SkipDir
			}
			if err := os.RemoveAll(path); err != nil {
				return errors.Wrapf(err, "removing stale build artifact %s", fp)
			}
			return filepath.SkipDir
		},
	})
}
