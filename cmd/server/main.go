package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hamropasal/storefront/internal/config"
	"github.com/hamropasal/storefront/internal/es"
	"github.com/hamropasal/storefront/internal/handlers"
	"github.com/hamropasal/storefront/internal/handlers/cart"
	"github.com/hamropasal/storefront/internal/logging"
	"github.com/hamropasal/storefront/internal/mykafka"
	"github.com/hamropasal/storefront/internal/notify"
	"github.com/hamropasal/storefront/internal/service/order"
	"github.com/hamropasal/storefront/internal/service/token"
	"github.com/hamropasal/storefront/internal/service/topup"
	"github.com/hamropasal/storefront/internal/service/wallet"
	httpserver "github.com/hamropasal/storefront/internal/transport/http"
	"github.com/hamropasal/storefront/pkg/db"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	ctx := context.Background()
	database, err := db.Open(ctx, configuration.DATABASE_URL)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	prod, err := mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
	if err != nil {
		logger.Warn("kafka unavailable, events disabled", "error", err)
		prod = nil
	}
	notifier := &notify.Notifier{Producer: prod}

	var indexer *es.Indexer
	searchHandler := &handlers.SearchHandler{Index: configuration.ES_INDEX}
	if configuration.ES_URL != "" {
		esClient, err := es.NewClient(configuration)
		if err != nil {
			log.Fatalf("es init error: %v", err)
		}
		indexer = &es.Indexer{Client: esClient, Index: configuration.ES_INDEX}
		searchHandler.ES = esClient
	}

	tokens := &token.Service{
		DB:            database,
		JWTSecret:     []byte(configuration.JWT_SECRET),
		RefreshSecret: []byte(configuration.REFRESH_SECRET),
	}

	walletSvc := &wallet.Service{DB: database}
	orderSvc := &order.Service{DB: database, Wallet: walletSvc, Notifier: notifier}
	topupSvc := &topup.Service{DB: database, Wallet: walletSvc, Notifier: notifier}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			l := logger.With("request_id", c.Response().Header().Get(echo.HeaderXRequestID))
			c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), l)))
			return next(c)
		}
	})

	deps := httpserver.Deps{
		AuthHandler:    &handlers.AuthHandler{DB: database, Tokens: tokens},
		ProductHandler: &handlers.ProductHandler{DB: database, Notifier: notifier, Indexer: indexer},
		CartHandler:    &cart.CartHandler{DB: database},
		OrderHandler:   &handlers.OrderHandler{Orders: orderSvc},
		WalletHandler:  &handlers.WalletHandler{Wallet: walletSvc, Topups: topupSvc},
		AdminHandler:   &handlers.AdminHandler{DB: database, Orders: orderSvc, Topups: topupSvc},
		SearchHandler:  searchHandler,
		Tokens:         tokens,
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := database.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if prod != nil {
		if err := prod.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}

	log.Println("shutdown complete")
}
