package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"

	"github.com/fncraft/flux/internal/buildplan"
	"github.com/fncraft/flux/internal/fetch"
	"github.com/fncraft/flux/internal/index"
	"github.com/fncraft/flux/internal/install"
	"github.com/fncraft/flux/internal/lockfile"
	"github.com/fncraft/flux/internal/pkgid"
)

type installCommand struct {
	as    string
	force bool
}

func (c *installCommand) Name() string      { return "install" }
func (c *installCommand) Args() string      { return "<group/name>" }
func (c *installCommand) ShortHelp() string { return "install a locked package's built artifact as a binary" }
func (c *installCommand) LongHelp() string {
	return `Looks up group/name in lock.toml, derives its build-plan fingerprint,
and copies its cached artifact into the install directory's bin/, recording
the install in the sidecar registry so it can later be found by package
spec for uninstall.`
}
func (c *installCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.as, "as", "", "binary name to install under (default: the package's own name)")
	fs.BoolVar(&c.force, "force", false, "overwrite an existing binary of the same name")
}

func (c *installCommand) Run(ctx *Ctx, args []string) error {
	if len(args) != 1 {
		return errors.New("install requires exactly one argument: group/name")
	}
	name, err := pkgid.ParseName(args[0])
	if err != nil {
		return err
	}

	lock, err := loadLock(ctx.WorkingDir)
	if err != nil {
		return err
	}
	if lock == nil {
		return errors.New("no lock.toml found; run `flux solve` first")
	}

	var found *lockfile.LockedPackage
	for i := range lock.Packages {
		lp := lock.Packages[i]
		if lp.Id.Name.Equal(name) {
			if found != nil {
				return errors.Errorf("%s matches more than one locked entry; disambiguation by resolution is not yet supported here", name)
			}
			found = &lock.Packages[i]
		}
	}
	if found == nil {
		return errors.Errorf("%s is not in lock.toml", name)
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

	node, ok := plan.Nodes[found.Id.Key()]
	if !ok {
		return errors.Errorf("%s did not produce a build-plan node", name)
	}

	buildDir := cacheRoot(ctx.Config).BuildDir(node.Fingerprint)
	artifactPath := filepath.Join(buildDir, name.Name)
	if _, err := os.Stat(artifactPath); err != nil {
		return errors.Errorf("%s has not been built yet (expected artifact at %s); run `flux build` first", name, artifactPath)
	}

	binName := c.as
	if binName == "" {
		binName = name.Name
	}

	registry := &install.Registry{BinDir: ctx.Config.Install.BinDir}
	entry := install.Entry{
		PackageId:   node.Summary.PackageId(),
		Version:     node.Summary.Version,
		Fingerprint: node.Fingerprint,
	}
	force := c.force || ctx.Config.Install.Force
	if err := registry.Install(binName, artifactPath, entry, force); err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "installed %s as %s\n", name, binName)
	return nil
}
