package lockfile

import (
	"github.com/fncraft/flux/internal/pkgid"
	"github.com/fncraft/flux/internal/semver"
)

// GitChecker answers the two questions a Git lock entry's preservation
// rule needs, without this package depending on internal/fetch or
// Masterminds/vcs directly: what commit a ref currently resolves to, and
// whether a commit is reachable from a branch's tip. internal/fetch's
// Fetcher satisfies this directly (ResolvedCommit, BranchContainsCommit).
type GitChecker interface {
	ResolvedCommit(res pkgid.Resolution) (string, error)
	BranchContainsCommit(url, branch, commit string) (bool, error)
}

// Reconciled is the soft-preference input Reconcile hands to the
// solver: a version to try first per package, and the Git commits still
// trustworthy enough to carry forward unresolved.
type Reconciled struct {
	Preferred map[pkgid.Key]semver.Version
	GitPins   map[pkgid.Key]string
}

// Reconcile implements spec §4.5's lockfile-reconciliation rule against
// prev (nil or empty for a first-ever solve) and directDeps, the
// manifest's own top-level dependency constraints keyed by PackageId.
//
// For an index/tar/dir entry: if it's a direct dependency, it's dropped
// unless still inside the manifest's declared constraint; transitive
// entries (absent from directDeps) are always offered as a preference,
// since the solver's own decision step only ever uses a preference that
// is already among the versions its accumulated constraints admit.
//
// For a Git entry, the manifest constraint is irrelevant (a git source
// has no semver range); instead the commit is preserved iff it is still
// the ref's resolved commit, or iff the ref names a branch whose current
// tip descends from it.
func Reconcile(prev *Lock, directDeps map[pkgid.Key]semver.Constraint, git GitChecker) (Reconciled, error) {
	out := Reconciled{
		Preferred: map[pkgid.Key]semver.Version{},
		GitPins:   map[pkgid.Key]string{},
	}
	if prev == nil {
		return out, nil
	}

	for _, lp := range prev.Packages {
		key := lp.Id.Key()

		if lp.Id.Resolution.Kind == pkgid.Git {
			keep, err := PreserveGitPin(lp.Id.Resolution, lp.Commit, git)
			if err != nil {
				return Reconciled{}, err
			}
			if keep {
				out.GitPins[key] = lp.Commit
			}
			continue
		}

		if c, isDirect := directDeps[key]; isDirect {
			if !semver.Satisfies(c, lp.Version) {
				continue
			}
		}
		out.Preferred[key] = lp.Version
	}
	return out, nil
}

// PreserveGitPin implements spec §4.5's git ancestor-of-branch-tip rule.
// The Resolution grammar doesn't distinguish a branch ref from a
// tag/commit ref, so this tries the cheaper exact-match case first
// (always correct for a tag or a commit ref, and also correct for a
// branch that simply hasn't moved) before falling back to the
// ancestry check (only meaningful for a branch ref; for a tag/commit
// ref that has genuinely moved out from under the pin, git will have no
// record of the old commit as an ancestor of a differently-named ref,
// and the check correctly reports false).
func PreserveGitPin(res pkgid.Resolution, pinnedCommit string, git GitChecker) (bool, error) {
	if pinnedCommit == "" {
		return false, nil
	}
	resolved, err := git.ResolvedCommit(res)
	if err != nil {
		return false, err
	}
	if resolved == pinnedCommit {
		return true, nil
	}
	return git.BranchContainsCommit(res.URL, res.Ref, pinnedCommit)
}
