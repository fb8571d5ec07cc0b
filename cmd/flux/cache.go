package main

import (
	"path/filepath"

	"github.com/fncraft/flux/internal/cache"
	"github.com/fncraft/flux/internal/config"
	"github.com/fncraft/flux/internal/index"
)

// cacheRoot returns the content-addressed cache rooted at cfg's
// configured cache directory.
func cacheRoot(cfg config.Config) cache.Root {
	return cache.Root{Path: cfg.Cache.Root}
}

// openIndexCache opens the bolt-backed index record memoization
// database under the cache root, creating it on first use.
func openIndexCache(cfg config.Config) (*index.Cache, error) {
	return index.OpenCache(filepath.Join(cfg.Cache.Root, "index-cache.db"))
}

// buildEnvironment turns the configured compiler/backend/flags into the
// cache.Environment every node's fingerprint is derived against.
func buildEnvironment(cfg config.Config, platform string) cache.Environment {
	return cache.Environment{
		CompilerID: cfg.Build.CompilerID,
		BackendID:  cfg.Build.BackendID,
		Flags:      cfg.Build.Flags,
		Platform:   platform,
	}
}
