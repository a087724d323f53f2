// Command catalogd keeps an upstream series catalog cached and serves the
// refresh control surface over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unkn0wn-root/catalogcache"
	"github.com/unkn0wn-root/catalogcache/catalog"
	"github.com/unkn0wn-root/catalogcache/config"
	asynchook "github.com/unkn0wn-root/catalogcache/hooks/async"
	"github.com/unkn0wn-root/catalogcache/internal/httpapi"
	"github.com/unkn0wn-root/catalogcache/internal/scheduler"
	"github.com/unkn0wn-root/catalogcache/logging"
	"github.com/unkn0wn-root/catalogcache/metadata"
	"github.com/unkn0wn-root/catalogcache/metadata/tmdb"
	boltpop "github.com/unkn0wn-root/catalogcache/populator/bolt"
	"github.com/unkn0wn-root/catalogcache/sloghooks"
	"github.com/unkn0wn-root/catalogcache/upstream/xtream"
)

func main() {
	cfgPath := flag.String("config", "", "path to config file (yaml, toml or json)")
	refreshOnStart := flag.Bool("refresh-on-start", true, "start a refresh right after boot")
	flag.Parse()

	loader := config.NewLoader(*cfgPath)
	cfg, err := loader.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, slogger, flush, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("cache error: %v", err)
	}

	newSource := func(s config.Settings) (catalog.Source, error) {
		return xtream.New(s.BaseURL, s.Username, s.Password,
			xtream.WithLogger(logging.With(logger, logging.Fields{"component": "xtream"})))
	}
	src, err := newSource(cfg.Engine)
	if err != nil {
		log.Fatalf("upstream error: %v", err)
	}

	var searcher metadata.Searcher
	if cfg.TMDB.APIKey != "" {
		searcher, err = tmdb.New(cfg.TMDB.APIKey,
			tmdb.WithBaseURL(cfg.TMDB.BaseURL),
			tmdb.WithImageBase(cfg.TMDB.ImageBase),
			tmdb.WithLanguage(cfg.TMDB.Language))
		if err != nil {
			log.Fatalf("tmdb error: %v", err)
		}
	} else {
		logger.Warn("no tmdb api key; artwork disabled", nil)
	}

	var pop catalogcache.Populator
	if cfg.Populator.Path != "" {
		bp, err := boltpop.Open(cfg.Populator.Path, logging.With(logger, logging.Fields{"component": "populator"}))
		if err != nil {
			log.Fatalf("populator error: %v", err)
		}
		defer bp.Close()
		pop = bp
	}

	hooks := asynchook.New(sloghooks.New(slogger, sloghooks.Options{
		ArtworkMissingEvery:    10,
		PersistentFailureEvery: 1,
	}), 1, 1024)
	defer hooks.Close()

	engine, err := catalogcache.New(catalogcache.Options{
		Source:          src,
		NewSource:       newSource,
		Store:           st,
		Searcher:        searcher,
		Settings:        cfg.Engine,
		Logger:          logger,
		Hooks:           hooks,
		Populator:       pop,
		Codec:           cfg.Cache.Codec,
		MaxDecodeBytes:  cfg.Cache.MaxDecodeBytes,
		RankByTitle:     cfg.TMDB.RankByTitle,
		PopulateTimeout: time.Duration(cfg.Populator.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		log.Fatalf("engine error: %v", err)
	}

	sched := scheduler.New(engine.TryStartRefresh, logger)
	if err := sched.Reschedule(cfg.Engine.RefreshInterval()); err != nil {
		log.Fatalf("scheduler error: %v", err)
	}
	if cfg.Cache.SharedGenerations {
		err := sched.Every("generation-sync", 30*time.Second, func() {
			sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := engine.SyncGeneration(sctx); err != nil {
				logger.Warn("generation sync failed", logging.Fields{"err": err})
			}
		})
		if err != nil {
			log.Fatalf("scheduler error: %v", err)
		}
	}
	sched.Start()

	loader.Watch(func(next *config.Config) {
		if _, err := engine.Reconfigure(ctx, next.Engine); err != nil {
			logger.Error("reconfigure failed", logging.Fields{"err": err})
			return
		}
		if err := sched.Reschedule(next.Engine.RefreshInterval()); err != nil {
			logger.Error("reschedule failed", logging.Fields{"err": err})
		}
	}, func(err error) {
		logger.Error("config reload failed", logging.Fields{"err": err})
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.New(engine, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("control surface listening", logging.Fields{"addr": cfg.HTTP.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", logging.Fields{"err": err})
			stop()
		}
	}()

	if *refreshOnStart {
		engine.TryStartRefresh("startup")
	}

	<-ctx.Done()
	logger.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = sched.Stop(shutdownCtx)
	if err := engine.Close(shutdownCtx); err != nil {
		logger.Warn("engine close", logging.Fields{"err": err})
	}
}
