package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"

	"github.com/fncraft/flux/internal/buildplan"
	"github.com/fncraft/flux/internal/cache"
	"github.com/fncraft/flux/internal/fetch"
	"github.com/fncraft/flux/internal/index"
	"github.com/fncraft/flux/internal/pkgid"
)

type buildCommand struct {
	threads int
}

func (c *buildCommand) Name() string      { return "build" }
func (c *buildCommand) Args() string      { return "" }
func (c *buildCommand) ShortHelp() string { return "build every locked package through the cache" }
func (c *buildCommand) LongHelp() string {
	return `Reads lock.toml, derives a build plan over the locked selection, and
runs each node's compiler invocation through the content-addressed build
cache, skipping any node whose fingerprint already has a cached artifact.`
}
func (c *buildCommand) Register(fs *flag.FlagSet) {
	fs.IntVar(&c.threads, "threads", 0, "concurrent build workers (0 = configured default)")
}

func (c *buildCommand) Run(ctx *Ctx, args []string) error {
	if ctx.Config.Index.DefaultURL == "" {
		return errors.New("no index configured (set index.default_url in flux.toml or FLUX_INDEX_DEFAULT_URL)")
	}

	lock, err := loadLock(ctx.WorkingDir)
	if err != nil {
		return err
	}
	if lock == nil {
		return errors.New("no lock.toml found; run `flux solve` first")
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

	selection := make(map[pkgid.Key]pkgid.Summary, len(lock.Packages))
	tarDigests := make(map[pkgid.Key]string)
	for _, lp := range lock.Packages {
		sum := pkgid.Summary{Name: lp.Id.Name, Version: lp.Version, Resolution: lp.Id.Resolution}
		selection[lp.Id.Key()] = sum
		if lp.TarDigest != "" {
			tarDigests[lp.Id.Key()] = lp.TarDigest
		}
	}

	digester := &fetchDigester{ctx: context.Background(), fetcher: fetcher, index: ix, tarDigests: tarDigests}
	env := buildEnvironment(ctx.Config, runtime.GOOS+"/"+runtime.GOARCH)

	plan, err := buildplan.Build(selection, ix, digester, env)
	if err != nil {
		return errors.Wrap(err, "deriving build plan")
	}

	threads := c.threads
	if threads <= 0 {
		threads = ctx.Config.Build.Threads
	}
	executor := &buildplan.Executor{
		Builder: &cache.Builder{Root: cacheRoot(ctx.Config), Log: ctx.Log.With("component", "cache")},
		Threads: threads,
	}

	built := 0
	nodeBuild := func(bctx context.Context, n *buildplan.Node, tmpDir string) error {
		res := n.Summary.Resolution
		if res.Kind == pkgid.Index {
			loc, err := ix.Location(n.Summary.Name, n.Summary.Version)
			if err != nil {
				return errors.Wrapf(err, "dereferencing %s", n.Summary)
			}
			res = loc
		}
		srcPath, err := fetcher.Fetch(bctx, res, tarDigests[n.Summary.PackageId().Key()])
		if err != nil {
			return errors.Wrapf(err, "fetching %s", n.Summary)
		}
		built++
		return invokeCompiler(bctx, ctx.Config.Build.CompilerID, ctx.Config.Build.Flags, string(srcPath), tmpDir)
	}

	if err := executor.Run(context.Background(), plan, nodeBuild); err != nil {
		return errors.Wrap(err, "building plan")
	}

	fmt.Fprintf(ctx.Out, "built %d packages (%d nodes in plan)\n", built, len(plan.Order))
	return nil
}

// invokeCompiler runs the configured compiler against srcDir, writing
// its artifact into outDir. The compiler is an external collaborator:
// flux only defines the shape of this invocation (compiler binary name,
// flags, source and output directories on argv), not the compiler
// itself, so any binary honoring this convention is swappable in.
func invokeCompiler(ctx context.Context, compilerID string, flags []string, srcDir, outDir string) error {
	args := append(append([]string(nil), flags...), "-o", outDir, srcDir)
	cmd := exec.CommandContext(ctx, compilerID, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "invoking %s on %s", compilerID, srcDir)
	}
	return nil
}
