// Command reaper runs the Ephemeral-Collection Reaper (C17) as a
// standalone cron-scheduled process, dropping vector-store collections
// past their TTL and removing their registration.
package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"

	"github.com/adverant/idp-retrieval-platform/internal/config"
	"github.com/adverant/idp-retrieval-platform/internal/logging"
	"github.com/adverant/idp-retrieval-platform/internal/retrieval/reaper"
	"github.com/adverant/idp-retrieval-platform/internal/retrieval/vectorstore"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found, using process environment")
	}

	logger := logging.NewLogger("reaper")
	ctx := context.Background()

	resolver := config.NewResolver(nil, "")
	cfg, err := config.Load(ctx, resolver)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	host, portStr, err := net.SplitHostPort(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("invalid QDRANT_URL %q: %v", cfg.QdrantURL, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatalf("invalid QDRANT_URL port %q: %v", portStr, err)
	}
	qdrantClient, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		log.Fatalf("failed to connect to qdrant: %v", err)
	}

	redisOptions, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to parse redis URL: %v", err)
	}

	backend := vectorstore.NewQdrantBackend(qdrantClient)
	ttl := vectorstore.NewRedisTTLRegistry(redis.NewClient(redisOptions), "idp:ephemeral-collections")
	r := reaper.New(backend, ttl, logger.WithFields("component", "reaper"), nil)

	cronExpr := envOrDefault("REAPER_CRON", "@every 5m")
	stop, err := r.StartSchedule(ctx, cronExpr)
	if err != nil {
		log.Fatalf("failed to start reaper schedule: %v", err)
	}
	logger.Info("reaper scheduled", "cron", cronExpr)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := ":" + envOrDefault("REAPER_METRICS_PORT", "9091")
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	stop()
	logger.Info("reaper shutdown complete")
}

func envOrDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
