package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chainquery/internal/cache"
	"chainquery/internal/config"
	"chainquery/internal/handler"
	"chainquery/internal/orchestrator"
	"chainquery/internal/provider"
	"chainquery/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initTracerFunc         = tracing.InitTracer
	newCacheStoreFunc      = newCacheStore
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// newCacheStore picks the cache backend from config, falling back to the
// in-memory store when the configured backend cannot be initialized.
func newCacheStore(ctx context.Context, cfg *config.Config) cache.Store {
	switch cfg.CacheBackend {
	case "redis":
		store, err := cache.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("Warning: redis cache unavailable (%v), falling back to memory", err)
			return cache.NewMemoryStore()
		}
		return store
	case "badger":
		store, err := cache.NewBadgerStore(cfg.CacheDir)
		if err != nil {
			log.Printf("Warning: badger cache unavailable (%v), falling back to memory", err)
			return cache.NewMemoryStore()
		}
		return store
	default:
		return cache.NewMemoryStore()
	}
}

func newAdapters(tracer trace.Tracer, store cache.Store, cfg *config.Config) []provider.Adapter {
	return []provider.Adapter{
		provider.NewDeFiLlamaAdapter(tracer, store),
		provider.NewDuneAdapter(tracer, store, cfg.DuneAPIKey),
		provider.NewCoinGeckoAdapter(tracer, store),
		provider.NewEtherscanAdapter(tracer, store, cfg.EtherscanAPIKeys),
		provider.NewCryptoPanicAdapter(tracer, store, cfg.CryptoPanicToken),
		provider.NewRedditAdapter(tracer, store),
		provider.NewGoogleTrendsAdapter(tracer, store),
		provider.NewGitHubAdapter(tracer, store, cfg.GitHubToken),
		provider.NewDeribitAdapter(tracer, store),
	}
}

func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	store := newCacheStoreFunc(ctx, cfg)
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	orch := orchestrator.New(tracer, orchestrator.DefaultRoutes(), newAdapters(tracer, store, cfg)...)
	orch.SetComplexTimeout(time.Duration(cfg.ComplexTimeoutSec) * time.Second)

	h := newHandlerFunc(tracer, orch)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("chainquery"))
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
