// Command router runs the LLM Router (C20) and Prompt Engine (C22) behind
// a gin HTTP API. Both enqueue onto the same asynq queue the worker
// process drains with the Invoker (C21); this service never invokes a
// model itself.
package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adverant/idp-retrieval-platform/internal/config"
	"github.com/adverant/idp-retrieval-platform/internal/llm/prompt"
	"github.com/adverant/idp-retrieval-platform/internal/llm/router"
	"github.com/adverant/idp-retrieval-platform/internal/logging"
	"github.com/adverant/idp-retrieval-platform/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found, using process environment")
	}

	logger := logging.NewLogger("router")
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
	promptStore := prompt.New(pool, logger.WithFields("component", "prompt-store"))

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to parse redis URL: %v", err)
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	backends := splitNonEmpty(os.Getenv("LLM_ROUTER_BACKENDS"))
	if len(backends) == 0 {
		backends = []string{"default"}
	}
	llmRouter := router.New(asynqClient, "idp:invoke", backends, backends[0])
	llmRouter.WeakModel = envOrDefault("LLM_WEAK_BACKEND", backends[0])
	llmRouter.StrongModel = envOrDefault("LLM_STRONG_BACKEND", backends[0])
	llmRouter.HeuristicRules = []router.HeuristicRule{
		router.WordCountRule(router.DefaultComplexityThreshold, llmRouter.WeakModel, llmRouter.StrongModel),
	}

	promptEngine := prompt.NewEngine(promptStore, router.PromptAdapter{Router: llmRouter})

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/v1/route", func(c *gin.Context) {
		var req router.Request
		if err := c.BindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		ack, err := llmRouter.Route(c.Request.Context(), req)
		if err != nil {
			c.JSON(502, gin.H{"error": err.Error()})
			return
		}
		c.JSON(202, ack)
	})

	r.POST("/v1/prompts", func(c *gin.Context) {
		var tmpl prompt.Template
		if err := c.BindJSON(&tmpl); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		if err := promptStore.Put(c.Request.Context(), tmpl); err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}
		c.JSON(201, gin.H{"promptId": tmpl.PromptID, "version": tmpl.Version})
	})

	r.POST("/v1/prompts/render", func(c *gin.Context) {
		var req prompt.RenderRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		result := promptEngine.Run(c.Request.Context(), req)
		if result.Error != "" {
			c.JSON(502, gin.H{"error": result.Error})
			return
		}
		c.JSON(200, result)
	})

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := ":" + envOrDefault("ROUTER_PORT", "8082")
	logger.Info("router service listening", "addr", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("router service exited: %v", err)
	}
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
