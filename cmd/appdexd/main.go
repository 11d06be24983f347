package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"

	"appdex/internal/appdexd"
	"appdex/internal/config"
	"appdex/internal/icons"
	"appdex/internal/orch"
	"appdex/internal/stats"
)

func main() {
	listen := flag.String("listen", "127.0.0.1:7411", "listen address (tcp)")
	configPath := flag.String("config", "", "config file path")
	catalogs := flag.String("catalogs", "", "comma-separated catalog documents (overrides config)")
	flag.Parse()

	if err := run(*listen, *configPath, *catalogs); err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			fmt.Fprintf(os.Stderr, "listen address in use: %s\nTry: -listen 127.0.0.1:7412\n", *listen)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(listen, configPath, catalogFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if catalogFlag != "" {
		cfg.Catalogs = strings.Split(catalogFlag, ",")
	}
	if len(cfg.Catalogs) == 0 {
		return fmt.Errorf("no catalog documents configured")
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return err
	}

	var source stats.Source
	if cfg.Stats.ArtifactURL != "" {
		source = &stats.HTTPSource{
			ArtifactURL: cfg.Stats.ArtifactURL,
			MetadataURL: cfg.Stats.MetadataURL,
		}
	}
	store, err := stats.NewStore(stats.Options{
		Path:   cfg.StatsPath(),
		Source: source,
		MaxAge: cfg.StatsMaxAge(),
	})
	if err != nil {
		return err
	}

	iconStore, err := icons.OpenStore(cfg.IconDBPath(), 256)
	if err != nil {
		return err
	}
	defer iconStore.Close()
	loader := icons.NewLoader(iconStore, &icons.HTTPFetcher{}, icons.LoaderOptions{
		Workers:   cfg.Icons.Workers,
		FetchRate: cfg.Icons.FetchRate,
	})

	o := orch.New(orch.Options{
		Stats:        store,
		Icons:        loader,
		RefreshStats: source != nil,
	})
	res, err := o.Load(context.Background(), cfg.Catalogs, orch.IconRequests)
	if err != nil {
		return err
	}
	log.Printf("appdexd: loaded %d apps (%d skipped, %d ignored), generation %d",
		res.Entries, res.Skipped, res.Ignored, res.Generation)

	w, err := orch.NewWatcher(o, cfg.StatsPath(), orch.WatcherOptions{})
	if err != nil {
		log.Printf("appdexd: stats watcher unavailable: %v", err)
	} else {
		defer w.Close()
	}

	s := appdexd.NewServer(appdexd.Options{
		Listen:   listen,
		Handlers: appdexd.NewHandlers(o, store),
	})
	log.Printf("appdexd: listening on %s", listen)
	return s.Run()
}
