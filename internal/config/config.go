// Package config implements the layered configuration: defaults, then
// the user's home config, then every ancestor directory of the working
// directory read root-down, then the working directory's own config,
// then environment variables — each layer overriding only the fields it
// sets, with array-valued fields replaced wholesale rather than merged.
//
// The ancestor walk is the teacher's project.go findProjectRoot idiom
// (climb via filepath.Dir until parent == dir, i.e. the filesystem
// root) generalized from "find the one directory with a manifest" to
// "collect every directory on the way up, read each one's config."
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Name is the config file pelletier/go-toml looks for at each layer
// except the environment.
const Name = "flux.toml"

// EnvPrefix is the prefix of the SECTION_KEY environment variables that
// form the topmost configuration layer, e.g. FLUX_BUILD_THREADS.
const EnvPrefix = "FLUX"

type IndexConfig struct {
	// DefaultURL is the index consulted for a dependency that names no
	// explicit index. Empty means "no default index configured."
	DefaultURL string
}

type BuildConfig struct {
	Threads    int
	CompilerID string
	BackendID  string
	Flags      []string
}

type CacheConfig struct {
	Root string
}

type InstallConfig struct {
	BinDir string
	Force  bool
}

type Config struct {
	Index   IndexConfig
	Build   BuildConfig
	Cache   CacheConfig
	Install InstallConfig
}

// Default returns the lowest-precedence layer: every later layer only
// overrides what it explicitly sets.
func Default(numCPU int) Config {
	home, _ := os.UserHomeDir()
	return Config{
		Build: BuildConfig{
			Threads:    numCPU,
			CompilerID: "fluxc",
			BackendID:  "native",
		},
		Cache: CacheConfig{
			Root: filepath.Join(home, ".cache", "flux"),
		},
		Install: InstallConfig{
			BinDir: filepath.Join(home, ".flux", "bin"),
		},
	}
}

// Load builds a Config for a process running in cwd, applying every
// layer in ascending precedence order.
func Load(cwd string, numCPU int, environ []string) (Config, error) {
	cfg := Default(numCPU)

	if home, err := os.UserHomeDir(); err == nil {
		if err := applyFile(&cfg, filepath.Join(home, Name)); err != nil {
			return Config{}, err
		}
	}

	for _, dir := range ancestorsRootDown(cwd) {
		if err := applyFile(&cfg, filepath.Join(dir, Name)); err != nil {
			return Config{}, err
		}
	}

	if err := applyFile(&cfg, filepath.Join(cwd, Name)); err != nil {
		return Config{}, err
	}

	applyEnv(&cfg, environ)
	return cfg, nil
}

// ancestorsRootDown lists every directory strictly above cwd, ordered
// from the filesystem root down to cwd's immediate parent.
func ancestorsRootDown(cwd string) []string {
	var dirs []string
	dir := cwd
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dirs = append(dirs, parent)
		dir = parent
	}
	for i, j := 0, len(dirs)-1; i < j; i, j = i+1, j-1 {
		dirs[i], dirs[j] = dirs[j], dirs[i]
	}
	return dirs
}

func applyFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	tree, err := toml.LoadReader(f)
	if err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}
	applyTree(cfg, tree)
	return nil
}

func applyTree(cfg *Config, tree *toml.Tree) {
	if v, ok := tree.Get("index.default_url").(string); ok {
		cfg.Index.DefaultURL = v
	}
	if v, ok := tree.Get("build.threads").(int64); ok {
		cfg.Build.Threads = int(v)
	}
	if v, ok := tree.Get("build.compiler").(string); ok {
		cfg.Build.CompilerID = v
	}
	if v, ok := tree.Get("build.backend").(string); ok {
		cfg.Build.BackendID = v
	}
	if raw, ok := tree.Get("build.flags").([]interface{}); ok {
		cfg.Build.Flags = toStringSlice(raw)
	}
	if v, ok := tree.Get("cache.root").(string); ok {
		cfg.Cache.Root = v
	}
	if v, ok := tree.Get("install.bin_dir").(string); ok {
		cfg.Install.BinDir = v
	}
	if v, ok := tree.Get("install.force").(bool); ok {
		cfg.Install.Force = v
	}
}

func applyEnv(cfg *Config, environ []string) {
	lookup := func(key string) (string, bool) {
		prefix := EnvPrefix + "_" + key + "="
		for _, kv := range environ {
			if strings.HasPrefix(kv, prefix) {
				return kv[len(prefix):], true
			}
		}
		return "", false
	}

	if v, ok := lookup("INDEX_DEFAULT_URL"); ok {
		cfg.Index.DefaultURL = v
	}
	if v, ok := lookup("BUILD_THREADS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Build.Threads = n
		}
	}
	if v, ok := lookup("BUILD_COMPILER"); ok {
		cfg.Build.CompilerID = v
	}
	if v, ok := lookup("BUILD_BACKEND"); ok {
		cfg.Build.BackendID = v
	}
	if v, ok := lookup("BUILD_FLAGS"); ok {
		cfg.Build.Flags = strings.Split(v, ",")
	}
	if v, ok := lookup("CACHE_ROOT"); ok {
		cfg.Cache.Root = v
	}
	if v, ok := lookup("INSTALL_BIN_DIR"); ok {
		cfg.Install.BinDir = v
	}
	if v, ok := lookup("INSTALL_FORCE"); ok {
		cfg.Install.Force = v == "true" || v == "1"
	}
}

func toStringSlice(raw []interface{}) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
