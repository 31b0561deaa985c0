package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/don-sigaron/shop-backend/internal/auth"
	"github.com/don-sigaron/shop-backend/internal/category"
	"github.com/don-sigaron/shop-backend/internal/config"
	"github.com/don-sigaron/shop-backend/internal/db"
	shopHttp "github.com/don-sigaron/shop-backend/internal/handler/http"
	"github.com/don-sigaron/shop-backend/internal/order"
	"github.com/don-sigaron/shop-backend/internal/product"
	"github.com/don-sigaron/shop-backend/internal/storage"
	"github.com/don-sigaron/shop-backend/internal/user"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "shop-backend").Logger()

	log.Info().Msg("Shop backend starting...")

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	dbPool, err := db.New(context.Background(), cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := dbPool.ApplyMigrations(cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create token manager")
	}

	media, err := storage.New(cfg.Media.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare media storage")
	}

	categoryRepository := category.NewRepository(dbPool.Pool)
	productRepository := product.NewRepository(dbPool.Pool)
	orderRepository := order.NewRepository(dbPool.Pool)
	userRepository := user.NewRepository(dbPool.Pool)

	categoryService := category.NewService(categoryRepository)
	productService := product.NewService(productRepository, categoryRepository)
	orderService := order.NewService(orderRepository)
	userService := user.NewService(userRepository, cfg.Auth.BcryptCost)

	router := shopHttp.NewRouter(shopHttp.Handlers{
		Auth:     shopHttp.NewAuthHandler(userService, tokens),
		Category: shopHttp.NewCategoryHandler(categoryService, productService),
		Product:  shopHttp.NewProductHandler(productService, media),
		Order:    shopHttp.NewOrderHandler(orderService),
		User:     shopHttp.NewUserHandler(userService),
	}, tokens, media)

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Shop backend stopped gracefully.")
}
