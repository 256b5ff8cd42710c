package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"bookcourier/internal/app"
	"bookcourier/internal/catalog"
	"bookcourier/internal/checkout"
	"bookcourier/internal/config"
	"bookcourier/internal/identitytoken"
	"bookcourier/internal/server"
	"bookcourier/internal/util"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	jwtLeeway, err := config.ParseJWTLeeway(cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse JWT leeway: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	appCore, err := app.New(app.Config{
		DatabaseURL:        cfg.DatabaseURL,
		Catalog:            catalog.NewClient(cfg.CatalogServiceURL),
		Checkout:           checkout.NewClient(cfg.CheckoutServiceURL, cfg.CheckoutAPIKey),
		CheckoutSuccessURL: cfg.CheckoutSuccessURL,
		CheckoutCancelURL:  cfg.CheckoutCancelURL,
		Currency:           cfg.Currency,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	verifier, err := identitytoken.NewVerifier(identitytoken.Config{
		JWKSURL:  cfg.IdentityJWKSURL,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Leeway:   jwtLeeway,
	})
	if err != nil {
		log.Fatalf("failed to init token verifier: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                        appCore,
		TokenVerifier:              verifier,
		RedisAddr:                  cfg.RedisAddr,
		RedisPassword:              cfg.RedisPassword,
		TrustedProxies:             cfg.TrustedProxies,
		OrderRateLimitPerMinute:    cfg.OrderRateLimitPerMinute,
		CheckoutRateLimitPerMinute: cfg.CheckoutRateLimitPerMinute,
		ReviewRateLimitPerMinute:   cfg.ReviewRateLimitPerMinute,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
