// Command sidecar is the StreamForge sidecar server binary. It loads YAML
// configuration, opens the embedded Store, wires the Config Repository,
// Rule Resolver, Alert Queue, and Hub together, exposes them over HTTP, and
// shuts down gracefully on SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/streamforge/sidecar/internal/alertqueue"
	"github.com/streamforge/sidecar/internal/config"
	"github.com/streamforge/sidecar/internal/hub"
	"github.com/streamforge/sidecar/internal/httpapi"
	"github.com/streamforge/sidecar/internal/lifecycle"
	"github.com/streamforge/sidecar/internal/logging"
	"github.com/streamforge/sidecar/internal/repository"
	"github.com/streamforge/sidecar/internal/resolver"
	"github.com/streamforge/sidecar/internal/store"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to a YAML config file (optional)")
	flag.Parse()

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "streamforge: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	dataDir := cfg.DataDir
	if dataDir == "" {
		dir, err := store.DefaultDataDir()
		if err != nil {
			logger.Error("failed to discover application data directory", "error", err)
			os.Exit(1)
		}
		dataDir = dir
	}

	st, err := store.Open(dataDir, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	repo := repository.New(st.DB())
	res := resolver.New(repo)

	pruner := repository.NewPruner(repo, repository.DefaultRetention, logger)
	pruner.Start()

	port, err := lifecycle.DiscoverPort(cfg.PreferredPort, cfg.PortRangeMin, cfg.PortRangeMax)
	if err != nil {
		logger.Error("failed to discover a bindable port", "error", err)
		os.Exit(1)
	}

	// The Hub's /alerts dispatch table needs the Queue as its AlertCompleter,
	// and the Queue needs the Hub to emit on — construct the Queue first
	// without a Hub, then wire it in once the Hub exists.
	q := alertqueue.New(nil, logger)
	h := hub.New(logger, q)
	q.SetHub(h)

	api := httpapi.New(repo, res, q, h, logger, port)

	httpServer := &http.Server{
		Handler:      api.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	storeCloser := lifecycle.CloserFunc(func() error { return st.Close() })

	if err := lifecycle.Run(context.Background(), logger, httpServer, port, pruner, storeCloser); err != nil {
		logger.Error("sidecar exited with an error", "error", err)
		os.Exit(1)
	}
}
