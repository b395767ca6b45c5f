// Command certfill-server serves certificate downloads for registered
// attendees. See the server package for the HTTP API.
//
//	certfill-server -config config/certfill.json
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/lvillar/certfill"
	"github.com/lvillar/certfill/registry"
	"github.com/lvillar/certfill/server"
)

func main() {
	configPath := flag.String("config", "config/certfill.json", "path to the JSON config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := registry.Open(ctx, &cfg.SQL)
	if err != nil {
		return err
	}

	var opts []certfill.Option
	if len(cfg.Fonts) > 0 {
		opts = append(opts, certfill.WithFonts(cfg.Fonts...))
	}
	ed, err := certfill.New(opts...)
	if err != nil {
		store.Close()
		return err
	}

	var (
		cache      server.Cache
		redisCache *server.RedisCache
	)
	if cfg.Redis != nil {
		redisCache = server.NewRedisCache(cfg.Redis)
		cache = redisCache
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.New(cfg, store, ed, cache, log.Default()).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Printf("[WARN] closing registry: %v", err)
		}
		if redisCache != nil {
			if err := redisCache.Close(); err != nil {
				log.Printf("[WARN] closing redis cache: %v", err)
			}
		}
	}
	return server.RunWithGracefulShutdown(srv, cfg.AppName, cleanup, cfg.ShutdownTimeout())
}
