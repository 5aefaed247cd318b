// Command arbor-directory runs the Directory coordinator: the file-name
// index, the Node registry, and the listener Clients and Nodes both dial.
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
	"github.com/arborfs/arbor/internal/directory"
	"github.com/arborfs/arbor/internal/logger"
	"github.com/arborfs/arbor/internal/metrics"
)

const usage = "usage: arbor-directory <ip> <port>"

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
	ip := os.Args[1]
	port, err := strconv.Atoi(os.Args[2])
	if err != nil || port < 1025 || port > 65535 {
		fmt.Fprintln(os.Stderr, "arbor-directory: port must be an integer in [1025, 65535]")
		os.Exit(1)
	}

	cfg, err := config.LoadDirectoryConfig()
	if err != nil {
		log.Fatalf("arbor-directory: %v", err)
	}
	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		log.Fatalf("arbor-directory: init logger: %v", err)
	}

	m := metrics.NewDirectory(cfg.Metrics.Enabled)
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(cfg.Metrics.Addr, m.Handler()); err != nil {
				logger.Error("metrics server stopped", logger.Err(err))
			}
		}()
	}

	d := directory.New(cfg.CacheCapacity, cfg.RegistryCapacity, cfg.EnableExec, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- d.Start(ctx, net.JoinHostPort(ip, strconv.Itoa(port)))
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("directory ready", "addr", net.JoinHostPort(ip, strconv.Itoa(port)), "enable_exec", cfg.EnableExec)

	select {
	case <-sig:
		logger.Info("shutdown signal received")
		cancel()
		<-serveErr
	case err := <-serveErr:
		if err != nil {
			logger.Error("directory stopped", logger.Err(err))
			os.Exit(1)
		}
	}
}
