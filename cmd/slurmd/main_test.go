// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/ed25519"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/TheBaxes/slurm/lib/clusterconf"
	"github.com/TheBaxes/slurm/lib/config"
	"github.com/TheBaxes/slurm/lib/configless"
	"github.com/TheBaxes/slurm/lib/protocol"
	"github.com/TheBaxes/slurm/lib/rpc"
	"github.com/TheBaxes/slurm/lib/testutil"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"--conf-server", "ctrl1:7002", "-N", "n3", "--log-level=debug", "-f", "/etc/slurmd.yaml"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	want := options{configPath: "/etc/slurmd.yaml", confServer: "ctrl1:7002", nodeName: "n3", logLevel: "debug"}
	if *opts != want {
		t.Errorf("options = %+v, want %+v", *opts, want)
	}

	if _, err := parseFlags([]string{"stray"}); err == nil {
		t.Error("positional argument accepted")
	}
	if _, err := parseFlags([]string{"--help"}); !errors.Is(err, pflag.ErrHelp) {
		t.Errorf("--help error = %v, want ErrHelp", err)
	}
}

func TestLoadConfigAppliesFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slurmd.yaml")
	content := "controller:\n  server: from-file:7002\nlogging:\n  level: warn\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(&options{configPath: path, nodeName: "n9"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Controller.Server != "from-file:7002" || cfg.Node.Name != "n9" || cfg.Logging.Level != "warn" {
		t.Errorf("config = %+v", cfg)
	}

	cfg, err = loadConfig(&options{configPath: path, confServer: "flag:7003", logLevel: "error"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Controller.Server != "flag:7003" || cfg.Logging.Level != "error" {
		t.Errorf("flags did not override file: %+v %+v", cfg.Controller, cfg.Logging)
	}

	if _, err := loadConfig(&options{configPath: path, logLevel: "verbose"}); err == nil {
		t.Error("invalid log level accepted")
	}
}

func TestLoadPublicKey(t *testing.T) {
	if key, err := loadPublicKey(""); err != nil || key != nil {
		t.Errorf("empty path = %v, %v; want nil, nil", key, err)
	}

	publicKey, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	good := filepath.Join(dir, "ctld.pub")
	if err := os.WriteFile(good, publicKey, 0o644); err != nil {
		t.Fatal(err)
	}
	key, err := loadPublicKey(good)
	if err != nil || !key.Equal(publicKey) {
		t.Errorf("loadPublicKey = %v, %v", key, err)
	}

	short := filepath.Join(dir, "short.pub")
	if err := os.WriteFile(short, publicKey[:16], 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadPublicKey(short); err == nil {
		t.Error("truncated key accepted")
	}
	if _, err := loadPublicKey(filepath.Join(dir, "missing.pub")); err == nil {
		t.Error("missing key file accepted")
	}
}

func TestRPCListenAddress(t *testing.T) {
	tests := []struct {
		name     string
		listen   string
		cluster  string
		want     string
		wantFail bool
	}{
		{"default port", "", "ClusterName=c\n", ":6818", false},
		{"cluster port", "", "SlurmdPort=7003\n", ":7003", false},
		{"explicit", "127.0.0.1:9000", "SlurmdPort=7003\n", "127.0.0.1:9000", false},
		{"bad port", "", "SlurmdPort=zero\n", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cluster, err := clusterconf.Parse(strings.NewReader(tt.cluster))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			cfg := config.Default()
			cfg.Node.ListenAddress = tt.listen
			got, err := rpcListenAddress(cfg, cluster)
			if tt.wantFail {
				if err == nil {
					t.Errorf("rpcListenAddress = %q, want error", got)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("rpcListenAddress = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

// testConfig points every path into a temporary directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.SpoolDir = root
	cfg.Paths.ConfigCache = filepath.Join(root, "conf-cache")
	cfg.Paths.ClusterConfig = filepath.Join(root, "slurm.conf")
	cfg.Controller.ResolvConf = filepath.Join(root, "resolv.conf")
	return cfg
}

func TestLoadClusterConfigProvisioned(t *testing.T) {
	cfg := testConfig(t)
	content := "ClusterName=linux\nSlurmctldHost=ctl-a\nSlurmctldHost=ctl-b\nSlurmctldPort=7002\n"
	if err := os.WriteFile(cfg.Paths.ClusterConfig, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cluster, controllers, err := loadClusterConfig(context.Background(), cfg, testClient(), testutil.Logger())
	if err != nil {
		t.Fatalf("loadClusterConfig: %v", err)
	}
	if cluster.ClusterName() != "linux" {
		t.Errorf("ClusterName = %q", cluster.ClusterName())
	}
	if want := []string{"ctl-a:7002", "ctl-b:7002"}; !reflect.DeepEqual(controllers, want) {
		t.Errorf("controllers = %v, want %v", controllers, want)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.ConfigCache, "slurm.conf")); !os.IsNotExist(err) {
		t.Error("provisioned config was copied into the cache")
	}
}

func TestLoadClusterConfigConfigless(t *testing.T) {
	mainConfig := "ClusterName=linux\nSlurmctldHost=ctl-a\nSlurmdPort=7010\n"
	gres := "Name=gpu File=/dev/nvidia0\n"
	address := startController(t, map[protocol.MessageType]rpc.HandlerFunc{
		protocol.RequestConfig: func(context.Context, *rpc.Request) *protocol.Message {
			reply, _ := protocol.NewMessage(protocol.ResponseConfig, &configless.Bundle{Main: &mainConfig, Gres: &gres})
			return reply
		},
	})

	cfg := testConfig(t)
	cfg.Controller.Server = address
	cluster, controllers, err := loadClusterConfig(context.Background(), cfg, testClient(), testutil.Logger())
	if err != nil {
		t.Fatalf("loadClusterConfig: %v", err)
	}
	if port, _ := cluster.SlurmdPort(); port != 7010 {
		t.Errorf("SlurmdPort = %d, want 7010", port)
	}
	if want := []string{address, "ctl-a:6817"}; !reflect.DeepEqual(controllers, want) {
		t.Errorf("controllers = %v, want %v", controllers, want)
	}

	cached, err := configless.Load(cfg.Paths.ConfigCache)
	if err != nil {
		t.Fatalf("Load cache: %v", err)
	}
	if got := cached.Present(); !reflect.DeepEqual(got, []configless.Kind{configless.KindMain, configless.KindGres}) {
		t.Errorf("cached kinds = %v", got)
	}
}

func TestLoadClusterConfigFallsBackToCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Controller.Server = testutil.ClosedAddress(t)
	mainConfig := "ClusterName=cached\nSlurmctldHost=ctl-a\n"
	if err := os.MkdirAll(cfg.Paths.ConfigCache, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := configless.Persist(&configless.Bundle{Main: &mainConfig}, cfg.Paths.ConfigCache); err != nil {
		t.Fatal(err)
	}

	cluster, controllers, err := loadClusterConfig(context.Background(), cfg, testClient(), testutil.Logger())
	if err != nil {
		t.Fatalf("loadClusterConfig: %v", err)
	}
	if cluster.ClusterName() != "cached" {
		t.Errorf("ClusterName = %q, want cached", cluster.ClusterName())
	}
	if want := []string{"ctl-a:6817"}; !reflect.DeepEqual(controllers, want) {
		t.Errorf("controllers = %v, want %v", controllers, want)
	}
}

func TestLoadClusterConfigNeedsResolverWithoutServer(t *testing.T) {
	cfg := testConfig(t)
	if _, _, err := loadClusterConfig(context.Background(), cfg, testClient(), testutil.Logger()); err == nil {
		t.Error("discovery without a resolv.conf succeeded")
	}
}

func TestAdoptClusterSpool(t *testing.T) {
	tests := []struct {
		name    string
		spool   string
		cluster string
		want    string
		adopted bool
	}{
		{"default spool follows cluster", config.Default().Paths.SpoolDir, "SlurmdSpoolDir=/srv/slurmd\n", "/srv/slurmd", true},
		{"cluster does not set it", config.Default().Paths.SpoolDir, "ClusterName=c\n", config.Default().Paths.SpoolDir, false},
		{"agent setting wins", "/data/spool", "SlurmdSpoolDir=/srv/slurmd\n", "/data/spool", false},
		{"relative path ignored", config.Default().Paths.SpoolDir, "SlurmdSpoolDir=spool\n", config.Default().Paths.SpoolDir, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cluster, err := clusterconf.Parse(strings.NewReader(tt.cluster))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			cfg := config.Default()
			cfg.Paths.SpoolDir = tt.spool
			if adopted := adoptClusterSpool(cfg, cluster); adopted != tt.adopted {
				t.Errorf("adoptClusterSpool = %v, want %v", adopted, tt.adopted)
			}
			if cfg.Paths.SpoolDir != tt.want {
				t.Errorf("SpoolDir = %q, want %q", cfg.Paths.SpoolDir, tt.want)
			}
		})
	}
}
