package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nestor-ai/nestor/pkg/rag"
	"github.com/nestor-ai/nestor/pkg/server"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Host    string `help:"Host to bind (overrides config)."`
	Port    int    `help:"Port to listen on (overrides config)." default:"0"`
	NoWatch bool   `name:"no-watch" help:"Disable the upload directory watcher."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	cleanup, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	if !c.NoWatch {
		if watcher, err := rag.NewWatcher(rt.cache, cfg.Uploads.Dir); err != nil {
			slog.Warn("Upload watcher disabled", "error", err)
		} else {
			go watcher.Run(ctx)
		}
	}

	srv := server.New(cfg, rt.store, rt.orch, rt.agents, rt.cache, rt.sql)
	return srv.Start(ctx)
}
