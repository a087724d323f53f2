package main

import (
	"context"
	"fmt"
	stdslog "log/slog"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/catalogcache/config"
	"github.com/unkn0wn-root/catalogcache/genstore"
	logruslog "github.com/unkn0wn-root/catalogcache/log/logrus"
	slogadapter "github.com/unkn0wn-root/catalogcache/log/slog"
	zaplog "github.com/unkn0wn-root/catalogcache/log/zap"
	"github.com/unkn0wn-root/catalogcache/logging"
	pr "github.com/unkn0wn-root/catalogcache/provider"
	bcprovider "github.com/unkn0wn-root/catalogcache/provider/bigcache"
	"github.com/unkn0wn-root/catalogcache/provider/memory"
	redisprovider "github.com/unkn0wn-root/catalogcache/provider/redis"
	rprovider "github.com/unkn0wn-root/catalogcache/provider/ristretto"
	"github.com/unkn0wn-root/catalogcache/store"
)

// newLogger returns the engine logger for the configured backend, an slog
// logger for hooks, and a flush func.
func newLogger(cfg config.LogConfig) (logging.Logger, *stdslog.Logger, func(), error) {
	var slvl stdslog.Level
	if err := slvl.UnmarshalText([]byte(cfg.Level)); err != nil {
		slvl = stdslog.LevelInfo
	}
	sl := stdslog.New(stdslog.NewJSONHandler(os.Stderr, &stdslog.HandlerOptions{Level: slvl}))

	switch strings.ToLower(cfg.Backend) {
	case "", "zap":
		zcfg := zap.NewProductionConfig()
		if lvl, err := zapcore.ParseLevel(cfg.Level); err == nil {
			zcfg.Level = zap.NewAtomicLevelAt(lvl)
		}
		zl, err := zcfg.Build()
		if err != nil {
			return nil, nil, nil, err
		}
		return zaplog.New(zl, "catalogcache"), sl, func() { _ = zl.Sync() }, nil
	case "logrus":
		l := logrus.New()
		l.SetFormatter(&logrus.JSONFormatter{})
		if lvl, err := logrus.ParseLevel(cfg.Level); err == nil {
			l.SetLevel(lvl)
		}
		return logruslog.New(l, "catalogcache"), sl, func() {}, nil
	case "slog":
		return slogadapter.New(sl, "catalogcache"), sl, func() {}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown log backend %q", cfg.Backend)
	}
}

func newStore(ctx context.Context, cfg *config.Config, log logging.Logger) (*store.Store, error) {
	var (
		rdb goredis.UniversalClient
		gs  genstore.GenStore
	)
	if cfg.Cache.Provider == "redis" || cfg.Cache.SharedGenerations {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}
	if cfg.Cache.SharedGenerations {
		// the genstore owns the client and closes it. A generation key
		// outliving the longest entry TTL can expire without resurrecting
		// anything.
		gs = genstore.NewRedisGenStore(rdb, 2*config.MaxEntryTTLHours*time.Hour)
	}

	entryTTL := cfg.Engine.EntryTTL()
	var (
		p   pr.Provider
		err error
	)
	switch cfg.Cache.Provider {
	case "ristretto":
		p, err = rprovider.New(rprovider.ForBudget(cfg.Cache.MaxBytes))
	case "bigcache":
		p, err = bcprovider.New(bcprovider.Config{EntryTTL: entryTTL, MaxBytes: cfg.Cache.MaxBytes})
	case "redis":
		p, err = redisprovider.New(redisprovider.Config{Client: rdb, OwnsClient: gs == nil})
	case "memory":
		p = memory.New()
	default:
		err = fmt.Errorf("unknown cache provider %q", cfg.Cache.Provider)
	}
	if err != nil {
		return nil, err
	}

	return store.New(ctx, store.Options{
		Provider:   p,
		Namespace:  cfg.Cache.Namespace,
		GenStore:   gs,
		DefaultTTL: entryTTL,
		Logger:     logging.With(log, logging.Fields{"component": "store"}),
	})
}
