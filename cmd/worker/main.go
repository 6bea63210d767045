// Command worker runs the object-store-notification side of the
// pipeline: the Stage Dispatcher (C4) fanned out across the Classifier
// (C5) through PII/Redaction (C12-C13) stage handlers, plus the LLM
// Invoker (C21) consumer, both drained from asynq.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adverant/idp-retrieval-platform/internal/audit"
	"github.com/adverant/idp-retrieval-platform/internal/clients"
	"github.com/adverant/idp-retrieval-platform/internal/config"
	"github.com/adverant/idp-retrieval-platform/internal/dispatch"
	"github.com/adverant/idp-retrieval-platform/internal/idp/classifier"
	"github.com/adverant/idp-retrieval-platform/internal/idp/combine"
	"github.com/adverant/idp-retrieval-platform/internal/idp/ocrextract"
	"github.com/adverant/idp-retrieval-platform/internal/idp/office"
	"github.com/adverant/idp-retrieval-platform/internal/idp/pageclass"
	"github.com/adverant/idp-retrieval-platform/internal/idp/splitter"
	"github.com/adverant/idp-retrieval-platform/internal/idp/textextract"
	"github.com/adverant/idp-retrieval-platform/internal/llm/invoke"
	"github.com/adverant/idp-retrieval-platform/internal/logging"
	"github.com/adverant/idp-retrieval-platform/internal/objectstore"
	"github.com/adverant/idp-retrieval-platform/internal/pii/detect"
	"github.com/adverant/idp-retrieval-platform/internal/pii/redact"
	piistage "github.com/adverant/idp-retrieval-platform/internal/pii/stage"
	"github.com/adverant/idp-retrieval-platform/internal/queue"
	"github.com/adverant/idp-retrieval-platform/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found, using process environment")
	}

	logger := logging.NewLogger("worker")
	ctx := context.Background()

	resolver := config.NewResolver(nil, "")
	cfg, err := config.Load(ctx, resolver)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	pool, err := storage.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	auditStore := audit.New(pool, logger.WithFields("component", "audit"))

	backend, err := objectstore.NewMinIOBackend(cfg.ObjectStoreEndpoint, cfg.ObjectStoreAccessKey, cfg.ObjectStoreSecretKey, cfg.NodeEnv == "production")
	if err != nil {
		log.Fatalf("failed to connect to object store: %v", err)
	}
	gw := objectstore.New(backend, logger.WithFields("component", "objectstore"))

	visionClient := clients.NewVisionClient("vision-fallback", os.Getenv("VISION_ENDPOINT_URL"), "eng", true)
	cascade := ocrextract.NewCascade(logger.WithFields("component", "ocr-cascade"),
		&ocrextract.TesseractEngine{Lang: "eng"},
		visionClient,
	)

	handlers := []dispatch.StageHandler{
		classifier.New(gw, logger.WithFields("stage", "classifier"), cfg.RawPrefix, cfg.OfficeDocsPrefix, cfg.PDFRawPrefix),
		splitter.New(gw, logger.WithFields("stage", "splitter"), cfg.PDFRawPrefix, cfg.PDFPagePrefix),
		pageclass.New(gw, logger.WithFields("stage", "pageclass"), cfg.PDFPagePrefix, cfg.TextPagePrefix, cfg.ScanPagePrefix),
		textextract.New(gw, logger.WithFields("stage", "textextract"), cfg.TextPagePrefix),
		ocrextract.New(gw, logger.WithFields("stage", "ocrextract"), cfg.ScanPagePrefix, cfg.HOCRPrefix, cascade),
		office.New(gw, logger.WithFields("stage", "office"), cfg.OfficeDocsPrefix, cfg.TextDocPrefix),
		combine.New(gw, auditStore, logger.WithFields("stage", "combine"), cfg.PDFPagePrefix, cfg.TextPagePrefix, cfg.ScanPagePrefix, cfg.HOCRPrefix, cfg.TextDocPrefix),
		piistage.New(gw, auditStore, logger.WithFields("stage", "pii"), detect.New(nil), redact.New(redact.NewImageZipPainter()), nil, cfg.TextDocPrefix, cfg.HOCRPrefix, cfg.RawPrefix, cfg.RedactedPrefix),
	}
	dispatcher := dispatch.New(logger.WithFields("component", "dispatcher"), handlers...)

	llmClient := clients.NewLLMClient(cfg.LLMAPIKey)
	invoker := invoke.NewInvoker(llmClient)
	if endpoints := splitNonEmpty(os.Getenv("LLM_BACKEND_ENDPOINTS")); len(endpoints) > 0 {
		invoker.RegisterBackend("default",
			invoke.NewHealthCheckedSelector(endpoints, 3, 30*time.Second),
			invoke.SamplingParams{},
			invoke.ConventionOpenAICompatible,
		)
	}

	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:    cfg.RedisURL,
		QueueName:   "idp:stages",
		Concurrency: cfg.WorkerConcurrency,
		Dispatcher:  dispatcher,
		Invoker:     invoker,
		Log:         logger.WithFields("component", "consumer"),
	})
	if err != nil {
		log.Fatalf("failed to start queue consumer: %v", err)
	}
	if err := consumer.Start(); err != nil {
		log.Fatalf("failed to start queue consumer: %v", err)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := ":" + envOrDefault("WORKER_METRICS_PORT", "9090")
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", "err", err)
		}
	}()
	logger.Info("worker ready", "concurrency", cfg.WorkerConcurrency)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if err := consumer.Stop(); err != nil {
		logger.Error("error stopping consumer", "err", err)
	}
	logger.Info("worker shutdown complete")
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envOrDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
