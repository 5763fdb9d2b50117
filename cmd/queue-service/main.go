package main

import (
	"context"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hap/queue-service/internal/announce"
	"hap/queue-service/internal/config"
	"hap/queue-service/internal/feed"
	"hap/queue-service/internal/httpapi"
	"hap/queue-service/internal/store"
	"hap/queue-service/internal/store/memory"
	"hap/queue-service/internal/store/postgres"
	"hap/queue-service/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()

	shutdownTracing := telemetry.Setup("queue-service")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	var (
		ticketStore store.TicketStore
		callFeed    feed.Feed
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		defer pool.Close()
		ticketStore = postgres.NewStore(pool, postgres.Options{Location: cfg.Location()})
		callFeed = feed.NewPostgresFeed(pool)
	} else {
		log.Printf("DB_DSN not set, using in-memory store")
		ticketStore = memory.NewStore(memory.Options{Location: cfg.Location()})
		callFeed = feed.NewMemoryFeed()
	}

	announcer := announce.New(callFeed)
	handler := httpapi.NewHandler(ticketStore, announcer, callFeed, httpapi.Options{})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:   cfg.RateLimitPerMinute,
		IPBurst:       cfg.RateLimitBurst,
		RoomPerMinute: cfg.RoomRateLimitPerMin,
		RoomBurst:     cfg.RoomRateLimitBurst,
	})

	root := http.NewServeMux()
	root.Handle("/metrics", expvar.Handler())
	root.Handle("/", handler.Routes())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(root)), "queue-service"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("queue-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
