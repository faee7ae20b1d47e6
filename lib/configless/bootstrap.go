// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package configless

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/TheBaxes/slurm/lib/clusterconf"
	"github.com/TheBaxes/slurm/lib/locator"
	"github.com/TheBaxes/slurm/lib/rpc"
)

// Locator finds the controller. *locator.Locator implements it.
type Locator interface {
	Locate(ctx context.Context, static string) (locator.Endpoint, error)
}

// Bootstrapper runs the configless startup sequence.
type Bootstrapper struct {
	Locator Locator
	Caller  rpc.Caller
	Logger  *slog.Logger

	// StaticController is the configured controller address. Empty
	// means discover it through DNS.
	StaticController string

	// CacheDir receives the fetched bundle and is read back when the
	// controller is unreachable.
	CacheDir string

	// Flags is passed through in the config request.
	Flags uint32

	// Volatile places the bootstrap config in an anonymous memory
	// file instead of under CacheDir.
	Volatile bool
}

// Result is the outcome of a successful bootstrap.
type Result struct {
	Bundle *Bundle

	// Controller is the address the bundle was fetched from. Empty
	// when the bundle came from the cache.
	Controller string

	// FromCache is set when the controller could not supply the
	// bundle and the cached copy was used.
	FromCache bool
}

// Run locates the controller, fetches the bundle, and caches it. When
// any step before a successful fetch fails, the cached bundle is used
// if it holds a main config; otherwise the first error is returned.
func (b *Bootstrapper) Run(ctx context.Context) (*Result, error) {
	if err := os.MkdirAll(b.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating config cache directory: %w", err)
	}

	bundle, controller, err := b.fetch(ctx)
	if err != nil {
		cached, cacheErr := b.loadCached()
		if cacheErr != nil {
			return nil, errors.Join(err, cacheErr)
		}
		b.Logger.Warn("config fetch failed, using cached config",
			"cache_dir", b.CacheDir,
			"digest", cached.Digest(),
			"error", err,
		)
		return &Result{Bundle: cached, FromCache: true}, nil
	}

	if err := Persist(bundle, b.CacheDir); err != nil {
		// The in-memory bundle is still good for this run.
		var cacheError *CacheError
		if errors.As(err, &cacheError) {
			b.Logger.Error("caching fetched config failed", "path", cacheError.Path, "error", err)
		} else {
			b.Logger.Error("caching fetched config failed", "error", err)
		}
	}

	b.Logger.Info("fetched config from controller",
		"controller", controller,
		"kinds", len(bundle.Present()),
		"digest", bundle.Digest(),
	)
	return &Result{Bundle: bundle, Controller: controller}, nil
}

func (b *Bootstrapper) fetch(ctx context.Context) (*Bundle, string, error) {
	endpoint, err := b.Locator.Locate(ctx, b.StaticController)
	if err != nil {
		return nil, "", fmt.Errorf("locating controller: %w", err)
	}

	addresses, err := b.controllerAddresses(endpoint)
	if err != nil {
		return nil, "", err
	}

	var lastErr error
	for _, address := range addresses {
		bundle, err := Fetch(ctx, b.Caller, address, b.Flags)
		if err == nil {
			if bundle.Main == nil {
				return nil, "", fmt.Errorf("controller %s sent a bundle without a main config", address)
			}
			return bundle, address, nil
		}
		lastErr = err
		var transportError *rpc.TransportError
		if !errors.As(err, &transportError) {
			// The controller answered; another one will not answer
			// differently.
			return nil, "", err
		}
		b.Logger.Warn("controller unreachable", "controller", address, "error", err)
	}
	return nil, "", lastErr
}

// controllerAddresses materializes the bootstrap config for endpoint
// and reads the controller list back from it the way any other main
// config is read.
func (b *Bootstrapper) controllerAddresses(endpoint locator.Endpoint) ([]string, error) {
	path, cleanup, err := b.materializeBootstrap(endpoint.BootstrapConfig())
	if err != nil {
		return nil, err
	}
	defer cleanup()

	config, err := clusterconf.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bootstrap config: %w", err)
	}
	addresses, err := config.ControllerAddresses()
	if err != nil {
		return nil, fmt.Errorf("reading bootstrap config: %w", err)
	}
	return addresses, nil
}

func (b *Bootstrapper) materializeBootstrap(content string) (string, func(), error) {
	if b.Volatile {
		file, path, err := MaterializeVolatile(KindMain.Filename(), content)
		if err == nil {
			return path, func() { file.Close() }, nil
		}
		if !errors.Is(err, ErrVolatileUnsupported) {
			return "", nil, err
		}
		b.Logger.Info("anonymous memory files unavailable, writing bootstrap config to disk")
	}

	dir := filepath.Join(b.CacheDir, "bootstrap")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating bootstrap directory: %w", err)
	}
	if err := Persist(&Bundle{Main: &content}, dir); err != nil {
		return "", nil, err
	}
	loaded, err := Load(dir)
	if err != nil {
		return "", nil, err
	}
	if loaded.Main == nil || *loaded.Main != content {
		return "", nil, fmt.Errorf("bootstrap config in %s did not read back", dir)
	}
	return filepath.Join(dir, KindMain.Filename()), func() {}, nil
}

func (b *Bootstrapper) loadCached() (*Bundle, error) {
	bundle, err := Load(b.CacheDir)
	if err != nil {
		return nil, err
	}
	if bundle.Main == nil {
		return nil, fmt.Errorf("no cached config in %s", b.CacheDir)
	}
	return bundle, nil
}

