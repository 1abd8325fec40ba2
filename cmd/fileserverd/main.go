// Command fileserverd serves a directory tree over HTTP/1.1 using a
// fixed-size reactor worker pool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muji40k/fileserverd/internal/config"
	"github.com/muji40k/fileserverd/internal/httpd"
	"github.com/muji40k/fileserverd/internal/logging"
	"github.com/muji40k/fileserverd/internal/reactor/handler"
	"github.com/muji40k/fileserverd/internal/reactor/server"
	"github.com/muji40k/fileserverd/internal/reactor/stats"
)

func main() {
	if err := newRootCmd().Execute(); nil != err {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		threads  int
		port     int
		logLevel string
	)

	cmd := &cobra.Command{
		Use:          "fileserverd [root]",
		Short:        "Serve a directory tree over HTTP/1.1",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."

			if 0 < len(args) {
				root = args[0]
			}

			cfg := config.Config{
				Threads:           threads,
				Port:              port,
				Root:              root,
				Level:             logging.ParseCLILevel(logLevel),
				ConnectionTimeout: config.DefaultConnectionTimeout,
			}

			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&threads, "threads", "n", 10, "number of worker threads (must be positive)")
	flags.IntVarP(&port, "port", "p", 80, "listening port (must be non-negative)")
	flags.StringVarP(&logLevel, "log-level", "l", "info", "log level: error|warning|info|debug|all")

	return cmd
}

func run(cfg config.Config) error {
	logger := logging.New(os.Stderr, cfg.Level)

	registry := handler.New()
	httpd.Register(registry, cfg.Root)

	counters, _ := stats.New()

	srv, err := server.New(cfg.Port, cfg.Threads, registry, cfg.ConnectionTimeout, counters, logger)

	if nil != err {
		return fmt.Errorf("fileserverd: %w", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		logger.Log(context.Background(), logging.LevelNotice, "shutdown signal received")
		server.StopAll()
	}()

	logger.Info("listening", "port", srv.Addr(), "root", cfg.Root, "threads", cfg.Threads)

	start := time.Now()

	if err := srv.Run(); nil != err {
		return fmt.Errorf("fileserverd: %w", err)
	}

	logger.Info("exited", "uptime", time.Since(start))

	return nil
}
