// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Slurmd is the compute-node agent. It obtains the cluster config,
// registers the node with the controller, and serves launch, kill,
// reattach, credential revocation, and shutdown requests until it is
// told to stop.
//
// On startup:
//  1. Loads agent settings from --config or SLURMD_CONFIG.
//  2. Reads the provisioned cluster config, or when none exists fetches
//     it from the controller (found through --conf-server or the
//     _slurmctld._tcp SRV record) and caches it locally.
//  3. Binds the RPC listener.
//  4. Sends a node registration to the controller. Failure is logged.
//  5. Serves requests until SIGINT, SIGTERM, or a shutdown request.
package main

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/TheBaxes/slurm/lib/clock"
	"github.com/TheBaxes/slurm/lib/clusterconf"
	"github.com/TheBaxes/slurm/lib/config"
	"github.com/TheBaxes/slurm/lib/configless"
	"github.com/TheBaxes/slurm/lib/credential"
	"github.com/TheBaxes/slurm/lib/locator"
	"github.com/TheBaxes/slurm/lib/process"
	"github.com/TheBaxes/slurm/lib/rpc"
	"github.com/TheBaxes/slurm/lib/tasks"
	"github.com/TheBaxes/slurm/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

// options holds command-line settings that override the config file.
type options struct {
	configPath    string
	confServer    string
	nodeName      string
	listenAddress string
	logLevel      string
	showVersion   bool
}

func parseFlags(args []string) (*options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("slurmd", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "f", "", "agent settings file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&opts.confServer, "conf-server", "", "controller host[:port] to fetch the cluster config from")
	flagSet.StringVarP(&opts.nodeName, "node-name", "N", "", "node name reported to the controller (default: hostname)")
	flagSet.StringVar(&opts.listenAddress, "listen", "", "RPC listen address (default: :SlurmdPort)")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn, or error")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return &opts, nil
}

func run() error {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.showVersion {
		fmt.Printf("slurmd %s\n", version.Full())
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	// Captured before anything slow so a SIGTERM during startup is
	// handled once the engine is up.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &rpc.Client{}
	cluster, controllers, err := loadClusterConfig(ctx, cfg, client, logger)
	if err != nil {
		return fmt.Errorf("obtaining cluster config: %w", err)
	}

	if adoptClusterSpool(cfg, cluster) {
		logger.Info("using spool directory from cluster config", "path", cfg.Paths.SpoolDir)
		if err := cfg.EnsurePaths(); err != nil {
			return err
		}
	}

	listenAddress, err := rpcListenAddress(cfg, cluster)
	if err != nil {
		return err
	}
	publicKey, err := loadPublicKey(cfg.Credential.PublicKeyFile)
	if err != nil {
		return err
	}
	nodeName := cfg.Node.Name
	if nodeName == "" {
		if nodeName, err = os.Hostname(); err != nil {
			return fmt.Errorf("determining node name: %w", err)
		}
	}

	clk := clock.Real()
	daemon := NewDaemon(DaemonConfig{
		PID:       os.Getpid(),
		NodeName:  nodeName,
		Clock:     clk,
		Logger:    logger,
		Authority: credential.NewAuthority(credential.NewCache(), clk, publicKey),
		Executor:  tasks.NewProcessExecutor(logger),
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rpcMetrics := rpc.NewMetrics(registry)
	registerDaemonMetrics(registry, daemon)
	if cfg.Metrics.ListenAddress != "" {
		metricsListener, err := listenMetrics(cfg.Metrics.ListenAddress)
		if err != nil {
			return err
		}
		serveMetrics(ctx, metricsListener, registry, logger)
	}

	listener, err := rpc.Listen(listenAddress)
	if err != nil {
		return err
	}

	if err := daemon.register(ctx, client, controllers, cfg.Node.TmpDir, cfg.Controller.RegisterTimeout); err != nil {
		logger.Error("node registration failed", "error", err)
	}

	server := rpc.NewServer(rpc.ServerConfig{
		Dispatcher:     daemon.Mux(),
		Logger:         logger,
		ShuttingDown:   daemon.ShuttingDown,
		Metrics:        rpcMetrics,
		ReadTimeout:    cfg.RPC.ReadTimeout,
		WriteTimeout:   cfg.RPC.WriteTimeout,
		MaxRequestSize: cfg.RPC.MaxRequestSize,
	})
	serveCtx, stopEngine := context.WithCancel(ctx)
	defer stopEngine()
	served := make(chan error, 1)
	go func() {
		served <- server.Serve(serveCtx, listener)
	}()

	logger.Info("slurmd started",
		"node", nodeName,
		"pid", os.Getpid(),
		"address", listenAddress,
		"version", version.Info(),
	)
	return daemon.coordinate(ctx, signals, stopEngine, served)
}

func loadConfig(opts *options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if opts.confServer != "" {
		cfg.Controller.Server = opts.confServer
	}
	if opts.nodeName != "" {
		cfg.Node.Name = opts.nodeName
	}
	if opts.listenAddress != "" {
		cfg.Node.ListenAddress = opts.listenAddress
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(settings config.LoggingConfig) (*slog.Logger, error) {
	level, err := config.ParseLevel(settings.Level)
	if err != nil {
		return nil, err
	}
	handlerOptions := &slog.HandlerOptions{Level: level}
	if settings.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, handlerOptions)), nil
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, handlerOptions)), nil
}

// loadClusterConfig reads the provisioned cluster config when it exists
// and otherwise runs the configless bootstrap. It also returns the
// controller addresses to register with, the one that served the
// bundle first.
func loadClusterConfig(ctx context.Context, cfg *config.Config, caller rpc.Caller, logger *slog.Logger) (*clusterconf.Config, []string, error) {
	if _, err := os.Stat(cfg.Paths.ClusterConfig); err == nil {
		cluster, err := clusterconf.ParseFile(cfg.Paths.ClusterConfig)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using provisioned cluster config", "path", cfg.Paths.ClusterConfig)
		controllers, err := cluster.ControllerAddresses()
		if err != nil {
			return nil, nil, err
		}
		return cluster, controllers, nil
	}

	resolver, err := locator.LoadResolverConfig(cfg.Controller.ResolvConf)
	if err != nil {
		if cfg.Controller.Server == "" {
			return nil, nil, err
		}
		// A static controller needs no resolver.
		resolver = locator.ResolverConfig{}
	}
	bootstrapper := &configless.Bootstrapper{
		Locator:          locator.New(resolver, logger),
		Caller:           caller,
		Logger:           logger,
		StaticController: cfg.Controller.Server,
		CacheDir:         cfg.Paths.ConfigCache,
		Flags:            configless.FlagRequestSlurmdConfigs,
		Volatile:         cfg.Controller.VolatileBootstrap,
	}
	result, err := bootstrapper.Run(ctx)
	if err != nil {
		return nil, nil, err
	}

	mainConfig := result.Bundle.Get(configless.KindMain)
	if mainConfig == nil {
		return nil, nil, errors.New("config bundle has no main config")
	}
	cluster, err := clusterconf.Parse(strings.NewReader(*mainConfig))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing fetched main config: %w", err)
	}

	controllers, err := cluster.ControllerAddresses()
	if err != nil && result.Controller == "" {
		return nil, nil, err
	}
	if result.Controller != "" {
		controllers = prepend(result.Controller, controllers)
	}
	return cluster, controllers, nil
}

// adoptClusterSpool moves the spool directory to the cluster config's
// SlurmdSpoolDir when the agent settings left it at the default. The
// config cache stays where the bootstrap wrote it.
func adoptClusterSpool(cfg *config.Config, cluster *clusterconf.Config) bool {
	dir, ok := cluster.SlurmdSpoolDir()
	if !ok || !filepath.IsAbs(dir) || cfg.Paths.SpoolDir != config.Default().Paths.SpoolDir || dir == cfg.Paths.SpoolDir {
		return false
	}
	cfg.Paths.SpoolDir = dir
	return true
}

func prepend(first string, rest []string) []string {
	out := []string{first}
	for _, address := range rest {
		if address != first {
			out = append(out, address)
		}
	}
	return out
}

func rpcListenAddress(cfg *config.Config, cluster *clusterconf.Config) (string, error) {
	if cfg.Node.ListenAddress != "" {
		return cfg.Node.ListenAddress, nil
	}
	port, err := cluster.SlurmdPort()
	if err != nil {
		return "", err
	}
	return net.JoinHostPort("", strconv.Itoa(int(port))), nil
}

// loadPublicKey reads a raw Ed25519 public key. An empty path disables
// signature checks.
func loadPublicKey(path string) (ed25519.PublicKey, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credential public key: %w", err)
	}
	if len(data) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("credential public key %s: got %d bytes, want %d", path, len(data), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(data), nil
}
