package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stkpay/config"
	"stkpay/internal/database"
	"stkpay/internal/router"
	"stkpay/pkg/cloudinary"
	applog "stkpay/pkg/log"
	"stkpay/pkg/mpesa"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	opts := []applog.LoggerOption{applog.WithLogLevel(cfg.Log.Level)}
	if cfg.Log.Console {
		opts = append(opts, applog.WithConsoleLogger())
	}
	if cfg.Log.File != "" {
		opts = append(opts, applog.WithFileLogger(cfg.Log.File))
	}
	applog.Init("stkpay", opts...)
	log := applog.GetLogger()
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file loaded")
	}

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	if created, err := database.SeedAdmin(db, &cfg.Admin); err != nil {
		log.Fatal().Err(err).Msg("seed admin")
	} else if created {
		log.Info().Str("email", cfg.Admin.Email).Msg("admin account created")
	}

	daraja := mpesa.NewClient(mpesa.Settings{
		BaseURL:         cfg.Mpesa.BaseURL(),
		ConsumerKey:     cfg.Mpesa.ConsumerKey,
		ConsumerSecret:  cfg.Mpesa.ConsumerSecret,
		Passkey:         cfg.Mpesa.Passkey,
		ShortCode:       cfg.Mpesa.ShortCode,
		CallbackURL:     cfg.Mpesa.CallbackURL,
		TransactionType: cfg.Mpesa.TransactionType,
		CacheToken:      cfg.Mpesa.TokenCache,
	})
	deps := router.Deps{Provider: daraja, TokenFetcher: daraja}
	if cfg.Mpesa.Environment == config.MpesaStub {
		deps.Provider = &mpesa.StubProvider{}
		log.Warn().Msg("M-Pesa stub provider enabled, no STK pushes will reach Daraja")
	} else {
		log.Info().Str("environment", cfg.Mpesa.Environment).Str("base_url", cfg.Mpesa.BaseURL()).Msg("M-Pesa provider configured")
	}
	if cfg.Mpesa.CallbackURL == "" {
		log.Warn().Msg("MPESA_CALLBACK_URL is not set, Daraja will reject STK pushes")
	}

	if cfg.Cloudinary.Enabled() {
		cloud, err := cloudinary.NewClientFromParams(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
		if err != nil {
			log.Fatal().Err(err).Msg("cloudinary")
		}
		deps.Uploader = cloud
	} else {
		log.Info().Msg("proof uploads disabled: set CLOUDINARY_* to enable")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := router.Setup(ctx, cfg, db, deps)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("server stopped")
}
