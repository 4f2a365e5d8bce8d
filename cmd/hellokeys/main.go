package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/hellokeys/internal/cache"
	"github.com/dropDatabas3/hellokeys/internal/config"
	"github.com/dropDatabas3/hellokeys/internal/domain/repository"
	"github.com/dropDatabas3/hellokeys/internal/email"
	authctrl "github.com/dropDatabas3/hellokeys/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/hellokeys/internal/http/controllers/health"
	"github.com/dropDatabas3/hellokeys/internal/http/router"
	"github.com/dropDatabas3/hellokeys/internal/metrics"
	"github.com/dropDatabas3/hellokeys/internal/observability/logger"
	"github.com/dropDatabas3/hellokeys/internal/otp"
	"github.com/dropDatabas3/hellokeys/internal/passkey"
	"github.com/dropDatabas3/hellokeys/internal/rate"
	"github.com/dropDatabas3/hellokeys/internal/store/memory"
	"github.com/dropDatabas3/hellokeys/internal/store/pg"
	"github.com/dropDatabas3/hellokeys/internal/token"
)

// version se inyecta en el build via -ldflags.
var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "hellokeys",
		Short: "Orquestador de autenticación passkey (OTP + WebAuthn)",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "ruta al YAML de configuración")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Imprime la versión",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	root.AddCommand(serveCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(configPath string) error {
	// .env primero: los secretos llegan por entorno.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logEnv := cfg.App.Env
	if cfg.Log.Pretty {
		logEnv = "dev"
	}
	logger.Init(logger.Config{Env: logEnv, Level: cfg.Log.Level, ServiceName: "hellokeys"})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Challenge cache
	cacheClient, err := cache.New(cache.Config{
		Driver:   cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer func() { _ = cacheClient.Close() }()

	// Credential store
	var (
		users     repository.UserRepository
		creds     repository.CredentialRepository
		pingStore func(r *http.Request) error
	)
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := pg.New(ctx, pg.Config{
			DSN:             cfg.Storage.Postgres.DSN,
			MaxConns:        int32(cfg.Storage.Postgres.MaxConns),
			ConnMaxLifetime: config.Duration(cfg.Storage.Postgres.ConnMaxLifetime),
		})
		if err != nil {
			return fmt.Errorf("init postgres: %w", err)
		}
		defer pool.Close()
		if cfg.Storage.Postgres.Migrate {
			if err := pool.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		users, creds = pool.Users(), pool.Credentials()
		pingStore = func(r *http.Request) error { return pool.Ping(r.Context()) }
	default:
		mem := memory.New()
		users, creds = mem.Users(), mem.Credentials()
	}

	// Token issuer
	issuer, err := token.NewIssuer(token.IssuerConfig{
		Secret:     cfg.JWT.Secret,
		Iss:        cfg.JWT.Issuer,
		Aud:        cfg.JWT.Audience,
		SessionTTL: config.Duration(cfg.JWT.SessionTTL),
	}, users)
	if err != nil {
		return fmt.Errorf("init token issuer: %w", err)
	}

	// OTP gate
	var sender email.Sender
	if cfg.OTP.Echo {
		sender = email.LogSender{}
	} else {
		sender = email.NewSMTPSender(email.SMTPConfig{
			Host:               cfg.SMTP.Host,
			Port:               cfg.SMTP.Port,
			Username:           cfg.SMTP.Username,
			Password:           cfg.SMTP.Password,
			FromEmail:          cfg.SMTP.From,
			TLSMode:            cfg.SMTP.TLS,
			InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
		})
	}
	gate, err := otp.New(cfg.OTP.MasterSecret, cacheClient, sender, config.Duration(cfg.OTP.TTL))
	if err != nil {
		return fmt.Errorf("init otp gate: %w", err)
	}

	// WebAuthn
	passkeySvc, err := passkey.New(passkey.Config{
		RPID:          cfg.WebAuthn.RPID,
		RPDisplayName: cfg.WebAuthn.RPDisplayName,
		RPOrigins:     cfg.WebAuthn.RPOrigins,
		CeremonyTTL:   config.Duration(cfg.WebAuthn.CeremonyTTL),
	}, passkey.Deps{
		Users:  users,
		Creds:  creds,
		Cache:  cacheClient,
		Tokens: issuer,
	})
	if err != nil {
		return fmt.Errorf("init passkey service: %w", err)
	}

	// Rate limit de OTP (opcional)
	var otpLimiter rate.Limiter
	if cfg.Rate.Enabled {
		otpLimiter, err = rate.New(rate.Config{
			Driver:   cfg.Cache.Kind,
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix + "rl:",
			Max:      cfg.Rate.Max,
			Window:   config.Duration(cfg.Rate.Window),
		})
		if err != nil {
			return fmt.Errorf("init rate limiter: %w", err)
		}
	}

	// Métricas
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	handler := router.New(router.Deps{
		Auth: authctrl.NewControllers(authctrl.Deps{
			Gate:    gate,
			Passkey: passkeySvc,
			Tokens:  issuer,
			Users:   users,
		}),
		Health:             healthctrl.NewController(cacheClient, pingStore),
		Tokens:             issuer,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		MetricsRegistry:    registry,
		OtpLimiter:         otpLimiter,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  config.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: config.Duration(cfg.Server.WriteTimeout),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening",
			logger.String("addr", cfg.Server.Addr),
			logger.String("storage", cfg.Storage.Driver),
			logger.String("cache", cfg.Cache.Kind),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Duration(cfg.Server.ShutdownTimeout))
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", logger.Err(err))
		return err
	}
	log.Info("server stopped")
	return nil
}
