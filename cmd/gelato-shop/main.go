package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pavel-morozov/gelato-shop/internal/auth"
	"github.com/pavel-morozov/gelato-shop/internal/cart"
	"github.com/pavel-morozov/gelato-shop/internal/catalog"
	"github.com/pavel-morozov/gelato-shop/internal/config"
	"github.com/pavel-morozov/gelato-shop/internal/db"
	apphttp "github.com/pavel-morozov/gelato-shop/internal/handler/http"
	"github.com/pavel-morozov/gelato-shop/internal/notify"
	"github.com/pavel-morozov/gelato-shop/internal/order"
	"github.com/pavel-morozov/gelato-shop/internal/review"
	"github.com/pavel-morozov/gelato-shop/internal/user"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "gelato-shop").Logger()

	log.Info().Msg("Storefront starting...")

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	dbConn, err := db.New(ctx, cfg.Postgres)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	var publisher notify.Publisher
	if cfg.Redis.Addr != "" {
		publisher = notify.NewRedisPublisher(cfg.Redis.Addr, cfg.Redis.Password)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Notification relay enabled")
	} else {
		publisher = notify.NewNopPublisher()
		log.Info().Msg("No REDIS_ADDR configured, notification relay disabled")
	}

	tokens := auth.NewManager(cfg.App.TokenSecret, cfg.App.TokenTTL)

	userSvc := user.NewService(user.NewRepository(dbConn.Pool))
	catalogSvc := catalog.NewService(catalog.NewRepository(dbConn.Pool))
	cartSvc := cart.NewService(cart.NewRepository(dbConn.Pool))
	orderSvc := order.NewService(order.NewRepository(dbConn.Pool), publisher)
	reviewSvc := review.NewService(review.NewRepository(dbConn.Pool))

	userHandler := apphttp.NewUserHandler(userSvc, tokens)
	productHandler := apphttp.NewProductHandler(catalogSvc)
	cartHandler := apphttp.NewCartHandler(cartSvc)
	orderHandler := apphttp.NewOrderHandler(orderSvc)
	reviewHandler := apphttp.NewReviewHandler(reviewSvc)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	router.Route("/api", func(r chi.Router) {
		userHandler.RegisterPublicRoutes(r)
		productHandler.RegisterPublicRoutes(r)
		reviewHandler.RegisterPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(tokens.Authenticator)
			userHandler.RegisterRoutes(r)
			cartHandler.RegisterRoutes(r)
			orderHandler.RegisterRoutes(r)
			reviewHandler.RegisterRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(tokens.Authenticator)
			r.Use(auth.RequireRole(user.RoleStaff, user.RoleAdmin))
			productHandler.RegisterStaffRoutes(r)
			orderHandler.RegisterStaffRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(tokens.Authenticator)
			r.Use(auth.RequireRole(user.RoleAdmin))
			userHandler.RegisterAdminRoutes(r)
		})
	})

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

	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
