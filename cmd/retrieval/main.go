// Command retrieval runs the chunk/embed/store/retrieve side of the
// pipeline (C14-C19) behind a gin HTTP API: ingestion assembles a
// document's chunks, embeds, and indexes them; retrieval embeds a query,
// searches, optionally reranks, and forwards to the LLM Router.
package main

import (
	"context"
	"log"
	"net"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"

	"github.com/adverant/idp-retrieval-platform/internal/clients"
	"github.com/adverant/idp-retrieval-platform/internal/config"
	"github.com/adverant/idp-retrieval-platform/internal/llm/router"
	"github.com/adverant/idp-retrieval-platform/internal/logging"
	"github.com/adverant/idp-retrieval-platform/internal/retrieval/chunk"
	"github.com/adverant/idp-retrieval-platform/internal/retrieval/embed"
	"github.com/adverant/idp-retrieval-platform/internal/retrieval/orchestrate"
	"github.com/adverant/idp-retrieval-platform/internal/retrieval/rerank"
	"github.com/adverant/idp-retrieval-platform/internal/retrieval/vectorstore"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found, using process environment")
	}

	logger := logging.NewLogger("retrieval")
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

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to parse redis URL: %v", err)
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	redisOptions, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to parse redis URL: %v", err)
	}
	ttl := vectorstore.NewRedisTTLRegistry(redis.NewClient(redisOptions), "idp:ephemeral-collections")
	proxy := vectorstore.New(vectorstore.NewQdrantBackend(qdrantClient), nil, ttl)

	chunker := chunk.New()
	embedder := embed.New(clients.NewEmbeddingClient(cfg.EmbeddingAPIKey, os.Getenv("EMBEDDING_BASE_URL")), "text-embedding-3-small")
	reranker := rerank.New(clients.NewRerankClient(os.Getenv("RERANK_ENDPOINT_URL")))

	llmRouter := router.New(asynqClient, "idp:invoke", []string{"default"}, "default")
	orchestrator := orchestrate.New(embedder, proxy, reranker, router.OrchestratorAdapter{Router: llmRouter})

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/v1/retrieve", func(c *gin.Context) {
		var req orchestrate.Request
		if err := c.BindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		result := orchestrator.Run(c.Request.Context(), req)
		if result.Error != "" {
			c.JSON(502, gin.H{"error": result.Error})
			return
		}
		c.JSON(200, result)
	})

	r.POST("/v1/chunk", func(c *gin.Context) {
		var req struct {
			Text     string        `json:"text"`
			Metadata chunk.Metadata `json:"metadata"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"chunks": chunker.Chunk(req.Text, req.Metadata)})
	})

	r.POST("/v1/embed-and-index", func(c *gin.Context) {
		var req struct {
			StorageMode string        `json:"storage_mode"`
			Collection  string        `json:"collection"`
			Chunks      []chunk.Chunk `json:"chunks"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		vectors, metas, err := embedder.Embed(c.Request.Context(), req.Chunks)
		if err != nil {
			c.JSON(502, gin.H{"error": err.Error()})
			return
		}

		items := make([]vectorstore.Item, len(vectors))
		for i, v := range vectors {
			items[i] = vectorstore.Item{Embedding: v, Metadata: metadataToMap(metas[i])}
		}
		ids, err := proxy.Insert(c.Request.Context(), req.StorageMode, req.Collection, items, true)
		if err != nil {
			c.JSON(502, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"ids": ids})
	})

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := ":" + envOrDefault("RETRIEVAL_PORT", "8081")
	logger.Info("retrieval service listening", "addr", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("retrieval service exited: %v", err)
	}
}

func metadataToMap(m chunk.Metadata) map[string]interface{} {
	out := map[string]interface{}{
		"docType":    m.DocType,
		"file_guid":  m.FileGUID,
		"file_name":  m.FileName,
		"department": m.Department,
		"team":       m.Team,
		"user":       m.User,
	}
	if len(m.Entities) > 0 {
		out["entities"] = m.Entities
	}
	return out
}

func envOrDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
