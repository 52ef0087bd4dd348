// Command identityd runs the credential service and the session-backed
// user flow in one process. All configuration comes from the environment.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/project-starfall/identity"
	"github.com/project-starfall/identity/client"
	"github.com/project-starfall/identity/fetch"
	"github.com/project-starfall/identity/httpapi"
)

type appConfig struct {
	Addr          string        `env:"IDENTITY_ADDR" envDefault:"localhost:3003"`
	UsersFile     string        `env:"IDENTITY_USERS_FILE" envDefault:"data/users.json"`
	FlushInterval time.Duration `env:"IDENTITY_FLUSH_INTERVAL" envDefault:"180s"`
	TokenTTL      time.Duration `env:"IDENTITY_TOKEN_TTL" envDefault:"1h"`
	AdminUIDs     []uint32      `env:"IDENTITY_ADMIN_UIDS" envSeparator:","`

	HalfValidTime  time.Duration `env:"IDENTITY_HALF_VALID_TIME" envDefault:"30m"`
	CacheValidTime time.Duration `env:"IDENTITY_CACHE_VALID_TIME" envDefault:"1h"`

	// RedisAddr switches token storage from in-process memory to Redis
	// when set.
	RedisAddr     string `env:"IDENTITY_REDIS_ADDR"`
	RedisPassword string `env:"IDENTITY_REDIS_PASSWORD"`

	// SessionKey signs the browser session cookies. A random key is
	// generated when unset, which invalidates sessions on restart.
	SessionKey string `env:"IDENTITY_SESSION_KEY"`

	AuditLog string `env:"IDENTITY_AUDIT_LOG"`
	LogLevel string `env:"IDENTITY_LOG_LEVEL" envDefault:"info"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("identityd exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg appConfig
	if err := env.Parse(&cfg); err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)

	engineCfg := identity.DefaultConfig()
	engineCfg.Store.UsersFile = cfg.UsersFile
	engineCfg.Store.FlushInterval = cfg.FlushInterval
	engineCfg.Store.AdminUIDs = cfg.AdminUIDs
	engineCfg.Token.TTL = cfg.TokenTTL
	engineCfg.Cache.HalfValidTime = cfg.HalfValidTime
	engineCfg.Cache.CacheValidTime = cfg.CacheValidTime
	engineCfg.Client.LocalAddress = cfg.Addr

	builder := identity.New().
		WithConfig(engineCfg).
		WithLogger(log)

	if cfg.RedisAddr != "" {
		builder = builder.WithRedis(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}))
		log.Info("token storage backed by redis", "addr", cfg.RedisAddr)
	}

	if cfg.AuditLog != "" {
		f, err := os.OpenFile(cfg.AuditLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return err
		}
		defer f.Close()
		builder = builder.WithAuditSink(identity.NewJSONWriterSink(f))
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	wire := client.New(client.Config{
		RequestTimeout: engineCfg.Client.RequestTimeout,
		LocalAddress:   cfg.Addr,
	})

	ctrl, err := fetch.NewController(wire, fetch.Config{
		HalfValidTime:  cfg.HalfValidTime,
		CacheValidTime: cfg.CacheValidTime,
		RefreshPath:    engineCfg.Cache.RefreshPath,
	}, fetch.WithLogger(log))
	if err != nil {
		return err
	}

	sessions := httpapi.NewCookieSessions(sessionKey(cfg, log))

	router := mux.NewRouter()
	httpapi.NewAuthAPI(engine, log).Register(router)

	userRouter := router.PathPrefix("/user").Subrouter()
	userRouter.Use(fetch.Middleware(ctrl, sessions))
	httpapi.NewUserFlow(wire, sessions, log).Register(userRouter)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("identityd listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func sessionKey(cfg appConfig, log *slog.Logger) []byte {
	if cfg.SessionKey != "" {
		return []byte(cfg.SessionKey)
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(err)
	}
	log.Warn("IDENTITY_SESSION_KEY not set, sessions will not survive restarts")
	return key
}
