package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/fncraft/flux/internal/fetch"
	"github.com/fncraft/flux/internal/index"
	"github.com/fncraft/flux/internal/lockfile"
	"github.com/fncraft/flux/internal/manifest"
	"github.com/fncraft/flux/internal/pkgid"
	"github.com/fncraft/flux/internal/semver"
	"github.com/fncraft/flux/internal/solver"
)

// defaultIndexAlias is the alias under which the single
// index.default_url configured index is registered. A future manifest
// might name further aliases explicitly; for now every unqualified
// dependency defers to this one.
const defaultIndexAlias = "default"

type solveCommand struct {
	trace bool
}

func (c *solveCommand) Name() string      { return "solve" }
func (c *solveCommand) Args() string      { return "" }
func (c *solveCommand) ShortHelp() string { return "resolve manifest.toml into lock.toml" }
func (c *solveCommand) LongHelp() string {
	return `Reads manifest.toml in the working directory, reconciles it
against any existing lock.toml, runs the dependency solver against the
configured index, and writes the resulting lock.toml back out.`
}
func (c *solveCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&c.trace, "trace", false, "log every solver decision and backtrack")
}

func (c *solveCommand) Run(ctx *Ctx, args []string) error {
	if ctx.Config.Index.DefaultURL == "" {
		return errors.New("no index configured (set index.default_url in flux.toml or FLUX_INDEX_DEFAULT_URL)")
	}

	man, err := loadManifest(ctx.WorkingDir)
	if err != nil {
		return err
	}

	prevLock, err := loadLock(ctx.WorkingDir)
	if err != nil {
		return err
	}

	idxCache, err := openIndexCache(ctx.Config)
	if err != nil {
		return err
	}
	defer idxCache.Close()

	ix, err := index.Load(ctx.Config.Index.DefaultURL, idxCache, ctx.Log.With("component", "index"))
	if err != nil {
		return errors.Wrap(err, "loading index")
	}

	fetcher := &fetch.Fetcher{
		SrcRoot:    filepath.Join(ctx.Config.Cache.Root, "src"),
		Log:        ctx.Log.With("component", "fetch"),
		Indices:    map[string]*index.Index{defaultIndexAlias: ix},
		HTTPClient: http.DefaultClient,
	}

	allDeps := append(append([]pkgid.Dependency(nil), man.Dependencies...), man.DevDependencies...)
	directDeps := make(map[pkgid.Key]semver.Constraint, len(allDeps))
	for _, d := range allDeps {
		id, err := (solver.DefaultResolver{}).Resolve(d, defaultIndexAlias)
		if err != nil {
			return err
		}
		directDeps[id.Key()] = d.Constraint
	}

	reconciled, err := lockfile.Reconcile(prevLock, directDeps, fetcher)
	if err != nil {
		return errors.Wrap(err, "reconciling previous lock")
	}

	params := solver.SolveParameters{
		RootName:         man.Package.Name,
		RootDependencies: man.Dependencies,
		DefaultIndex:     defaultIndexAlias,
		Provider:         indexProvider{ix: ix},
		Preferred:        reconciled.Preferred,
		Trace:            c.trace,
		TraceLogger:      ctx.Log.With("component", "solver"),
	}
	solution, err := solver.Solve(params)
	if err != nil {
		return errors.Wrap(err, "solving dependencies")
	}

	lock, err := buildLock(solution, ix, reconciled, fetcher)
	if err != nil {
		return err
	}

	out, err := os.Create(filepath.Join(ctx.WorkingDir, lockfile.Name))
	if err != nil {
		return errors.Wrap(err, "creating lock.toml")
	}
	defer out.Close()
	if err := lock.Save(out); err != nil {
		return errors.Wrap(err, "writing lock.toml")
	}

	fmt.Fprintf(ctx.Out, "solved %d packages in %d attempts\n", len(solution.Decisions), solution.Attempts)
	return nil
}

// buildLock turns a Solution into a Lock, recording each entry's
// resolved dependency edges and, for Git sources, the pinned commit
// that makes the lock reproducible. Tar sources get no content digest.
func buildLock(solution *solver.Solution, ix *index.Index, reconciled lockfile.Reconciled, git lockfile.GitChecker) (*lockfile.Lock, error) {
	selection := solution.Decisions
	lock := &lockfile.Lock{}

	for key, sum := range selection {
		id := sum.PackageId()
		deps, err := ix.Dependencies(sum)
		// A non-index resolution has no index record to ask; treat a
		// "no record" error as "no further edges recorded" rather than
		// failing the whole lock.
		if err != nil {
			deps = nil
		}

		var edges []pkgid.PackageId
		for _, d := range deps {
			resolvedDep, err := (solver.DefaultResolver{}).Resolve(d, defaultIndexAlias)
			if err != nil {
				return nil, err
			}
			if depSum, ok := selection[resolvedDep.Key()]; ok {
				edges = append(edges, depSum.PackageId())
			}
		}

		lp := lockfile.LockedPackage{Id: id, Version: sum.Version, Edges: edges}

		switch sum.Resolution.Kind {
		case pkgid.Git:
			if commit, ok := reconciled.GitPins[key]; ok {
				lp.Commit = commit
			} else {
				commit, err := git.ResolvedCommit(sum.Resolution)
				if err != nil {
					return nil, errors.Wrapf(err, "pinning commit for %s", sum)
				}
				lp.Commit = commit
			}
		case pkgid.Tar:
			// No digest is recorded here, and the build command does
			// not write one back to lock.toml either.
		}

		lock.Packages = append(lock.Packages, lp)
	}

	lock.Sort()
	return lock, nil
}

func loadManifest(dir string) (*manifest.Manifest, error) {
	f, err := os.Open(filepath.Join(dir, manifest.Name))
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s (run flux in a directory with a manifest)", manifest.Name)
	}
	defer f.Close()
	m, err := manifest.Load(f)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func loadLock(dir string) (*lockfile.Lock, error) {
	f, err := os.Open(filepath.Join(dir, lockfile.Name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "opening %s", lockfile.Name)
	}
	defer f.Close()
	return lockfile.Load(f)
}
