// Command arbor-node runs a storage Node: its disk-backed file store, the
// Client-facing text protocol listener, and the control link to the
// Directory it registers with on startup.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/arborfs/arbor/internal/config"
	"github.com/arborfs/arbor/internal/logger"
	"github.com/arborfs/arbor/internal/metrics"
	"github.com/arborfs/arbor/internal/node"
)

const usage = "usage: arbor-node <node_ip> <node_port> <directory_ip> <directory_port>"

func main() {
	if len(os.Args) != 5 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
	nodeIP := os.Args[1]
	nodePort, err := strconv.Atoi(os.Args[2])
	if err != nil || nodePort < 1025 || nodePort > 65535 {
		fmt.Fprintln(os.Stderr, "arbor-node: node port must be an integer in [1025, 65535]")
		os.Exit(1)
	}
	dirIP := os.Args[3]
	dirPort, err := strconv.Atoi(os.Args[4])
	if err != nil || dirPort < 1025 || dirPort > 65535 {
		fmt.Fprintln(os.Stderr, "arbor-node: directory port must be an integer in [1025, 65535]")
		os.Exit(1)
	}

	defaultBaseDir := fmt.Sprintf("ss_%d", nodePort)
	cfg, err := config.LoadNodeConfig(defaultBaseDir)
	if err != nil {
		log.Fatalf("arbor-node: %v", err)
	}
	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		log.Fatalf("arbor-node: init logger: %v", err)
	}

	m := metrics.NewNode(cfg.Metrics.Enabled)
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(cfg.Metrics.Addr, m.Handler()); err != nil {
				logger.Error("metrics server stopped", logger.Err(err))
			}
		}()
	}

	publicAddr := net.JoinHostPort(nodeIP, strconv.Itoa(nodePort))
	dirAddr := net.JoinHostPort(dirIP, strconv.Itoa(dirPort))

	store := node.NewStore(cfg.BaseDir)
	n := node.New(store, publicAddr, dirAddr, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- n.Start(ctx, cfg.SweepSwapsOnStart)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("node ready", "addr", publicAddr, "directory", dirAddr, "base_dir", cfg.BaseDir)

	select {
	case <-sig:
		logger.Info("shutdown signal received")
		cancel()
		<-serveErr
	case err := <-serveErr:
		if err != nil {
			logger.Error("node stopped", logger.Err(err))
			os.Exit(1)
		}
	}
}
