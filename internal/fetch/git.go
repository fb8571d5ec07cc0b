package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/Masterminds/vcs"
	"github.com/pkg/errors"

	"github.com/fncraft/flux/internal/pkgid"
)

// gitClones tracks one clone per repo URL for the lifetime of the
// process, matching the teacher's clone-once-per-repo discipline
// (vcs_source.go maintains one repo handle per source, reused across
// calls rather than re-cloning).
var (
	gitClonesMu sync.Mutex
	gitClones   = map[string]string{} // URL -> local clone directory
)

func repoDirFor(root, url string) string {
	h := sha256.Sum256([]byte(url))
	return filepath.Join(root, "git", hex.EncodeToString(h[:])[:16])
}

// fetchGit clones (or reuses a previous clone of) a git+URL[#REF]
// resolution, resolves REF to a concrete commit via
// Masterminds/vcs.CommitInfo, and exports that commit's tree into the
// fetcher's content-addressed source namespace. The lockfile records
// the resolved commit, never the ref (spec §4.3).
func (f *Fetcher) fetchGit(ctx context.Context, res pkgid.Resolution) (LocalPath, error) {
	cloneDir := repoDirFor(f.SrcRoot, res.URL)

	var commit string
	err := withLock(cloneDir, func() error {
		repo, err := vcs.NewGitRepo(res.URL, cloneDir)
		if err != nil {
			return errors.Wrapf(err, "opening git repo %s", res.URL)
		}

		gitClonesMu.Lock()
		_, known := gitClones[res.URL]
		gitClonesMu.Unlock()

		if !known || !repo.CheckLocal() {
			if err := repo.Get(); err != nil {
				return errors.Wrapf(err, "cloning %s", res.URL)
			}
		} else {
			if err := repo.Update(); err != nil {
				f.Log.With("url", res.URL).Warnf("git update failed, continuing with existing clone: %v", err)
			}
		}
		gitClonesMu.Lock()
		gitClones[res.URL] = cloneDir
		gitClonesMu.Unlock()

		ref := res.Ref
		if ref == "" {
			cur, err := repo.Current()
			if err != nil {
				return errors.Wrapf(err, "determining default branch for %s", res.URL)
			}
			ref = cur
		}

		info, err := repo.CommitInfo(ref)
		if err != nil {
			return errors.Wrapf(err, "resolving ref %q of %s to a commit", ref, res.URL)
		}
		commit = info.Commit
		return nil
	})
	if err != nil {
		return "", err
	}

	dest, err := f.destDir("git-" + commit)
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
			return errors.Wrapf(err, "clearing stale export at %s", dest)
		}

		var exportErr error
		withLockErr := withLock(cloneDir, func() error {
			repo, err := vcs.NewGitRepo(res.URL, cloneDir)
			if err != nil {
				return err
			}
			if err := repo.UpdateVersion(commit); err != nil {
				return errors.Wrapf(err, "checking out commit %s of %s", commit, res.URL)
			}
			exportErr = repo.ExportDir(dest)
			return nil
		})
		if withLockErr != nil {
			return withLockErr
		}
		if exportErr != nil {
			return errors.Wrapf(exportErr, "exporting commit %s of %s", commit, res.URL)
		}
		if err := writeCompletionMarker(dest); err != nil {
			return err
		}
		result = LocalPath(dest)
		return nil
	})
	return result, err
}

// ResolvedCommit resolves a git+URL[#REF] resolution to a pinned commit
// without materializing an export, for lockfile reconciliation's
// ancestor-of-branch-tip check (spec §4.5).
func (f *Fetcher) ResolvedCommit(res pkgid.Resolution) (string, error) {
	cloneDir := repoDirFor(f.SrcRoot, res.URL)
	var commit string
	err := withLock(cloneDir, func() error {
		repo, err := vcs.NewGitRepo(res.URL, cloneDir)
		if err != nil {
			return err
		}
		if !repo.CheckLocal() {
			if err := repo.Get(); err != nil {
				return errors.Wrapf(err, "cloning %s", res.URL)
			}
		}
		ref := res.Ref
		if ref == "" {
			cur, err := repo.Current()
			if err != nil {
				return err
			}
			ref = cur
		}
		info, err := repo.CommitInfo(ref)
		if err != nil {
			return err
		}
		commit = info.Commit
		return nil
	})
	return commit, err
}

// BranchContainsCommit reports whether commit is an ancestor of the tip
// of branch, used by lockfile reconciliation's git-preservation rule.
func (f *Fetcher) BranchContainsCommit(url, branch, commit string) (bool, error) {
	cloneDir := repoDirFor(f.SrcRoot, url)
	var ok bool
	err := withLock(cloneDir, func() error {
		repo, err := vcs.NewGitRepo(url, cloneDir)
		if err != nil {
			return err
		}
		info, err := repo.CommitInfo(branch)
		if err != nil {
			return err
		}
		if info.Commit == commit {
			ok = true
			return nil
		}
		// merge-base --is-ancestor exits 0 when commit is an ancestor of
		// the branch tip and 1 when it is not; anything else is a failure.
		cmd := exec.Command("git", "merge-base", "--is-ancestor", commit, info.Commit)
		cmd.Dir = cloneDir
		if err := cmd.Run(); err != nil {
			if exitErr, isExit := err.(*exec.ExitError); isExit && exitErr.ExitCode() == 1 {
				return nil
			}
			return errors.Wrapf(err, "checking whether %s is an ancestor of %s", commit, branch)
		}
		ok = true
		return nil
	})
	return ok, err
}
