// Package config implements the Config/Secret Resolver (C1): resolve a
// named setting from object tags -> parameter store -> environment ->
// default, caching each resolved value within the process.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"

	pipeerrors "github.com/adverant/idp-retrieval-platform/internal/errors"
)

// ParameterStore is the narrow contract for a parameter-store-equivalent
// backend (e.g. AWS SSM). It is optional: a nil ParameterStore degrades the
// cascade to env + defaults, matching the "tolerate parameter store being
// unavailable" design note.
type ParameterStore interface {
	Get(ctx context.Context, name string) (string, bool, error)
}

// Resolver implements the C1 lookup cascade and process-lifetime cache.
type Resolver struct {
	store     ParameterStore
	env       *koanf.Koanf
	envPrefix string
	cache     sync.Map // name -> string
}

// NewResolver constructs a resolver. store may be nil.
func NewResolver(store ParameterStore, envPrefix string) *Resolver {
	k := koanf.New(".")
	_ = k.Load(env.Provider(".", env.Opt{}), nil)
	return &Resolver{store: store, env: k, envPrefix: envPrefix}
}

// Resolve looks up name using tags (object-tag context, may be nil) ->
// parameter store -> process environment -> defaultValue. It returns
// ErrorConfigMissing only when defaultValue is empty and nothing resolved.
func (r *Resolver) Resolve(ctx context.Context, name string, tags map[string]string, defaultValue string) (string, error) {
	if cached, ok := r.cache.Load(name); ok {
		return cached.(string), nil
	}

	if tags != nil {
		if v, ok := tags[name]; ok && v != "" {
			r.cache.Store(name, v)
			return v, nil
		}
	}

	if r.store != nil {
		paramName := name
		if r.envPrefix != "" {
			paramName = r.envPrefix + "/" + name
		}
		if v, ok, err := r.store.Get(ctx, paramName); err == nil && ok && v != "" {
			r.cache.Store(name, v)
			return v, nil
		}
	}

	if v := os.Getenv(name); v != "" {
		r.cache.Store(name, v)
		return v, nil
	}

	if defaultValue != "" {
		r.cache.Store(name, defaultValue)
		return defaultValue, nil
	}

	return "", pipeerrors.NewConfigMissingError(name)
}

// ResolveInt resolves name as above and parses it as an int.
func (r *Resolver) ResolveInt(ctx context.Context, name string, tags map[string]string, defaultValue int) (int, error) {
	v, err := r.Resolve(ctx, name, tags, strconv.Itoa(defaultValue))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, nil
	}
	return n, nil
}

// ResolveBool resolves name as above and parses it as a bool.
func (r *Resolver) ResolveBool(ctx context.Context, name string, tags map[string]string, defaultValue bool) (bool, error) {
	v, err := r.Resolve(ctx, name, tags, strconv.FormatBool(defaultValue))
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue, nil
	}
	return b, nil
}

// Config holds process-wide bootstrap configuration for the pipeline
// workers/services. Fields are validated via struct tags, mirroring the
// bounds enforced by hand in the original Validate().
type Config struct {
	RedisURL         string `validate:"required"`
	DatabaseURL      string `validate:"required"`
	QdrantURL        string `validate:"required"`
	QdrantCollection string `validate:"required"`

	ObjectStoreEndpoint  string `validate:"required"`
	ObjectStoreAccessKey string
	ObjectStoreSecretKey string
	ObjectStoreBucket    string `validate:"required"`
	RawPrefix            string
	OfficeDocsPrefix     string
	PDFRawPrefix         string
	PDFPagePrefix        string
	TextPagePrefix       string
	ScanPagePrefix       string
	HOCRPrefix           string
	TextDocPrefix        string
	RedactedPrefix       string

	EmbeddingAPIKey string
	LLMAPIKey       string

	WorkerConcurrency int   `validate:"gte=1,lte=100"`
	MaxFileSize       int64 `validate:"gte=1024,lte=10737418240"`
	DefaultChunkSize  int64 `validate:"gte=1024,lte=1048576"`
	ProcessingTimeout int

	TesseractPath string
	TempDir       string
	NodeEnv       string
}

// Load builds a Config from the process environment via a Resolver,
// falling back to defaults the same way getEnvOrDefault did.
func Load(ctx context.Context, r *Resolver) (*Config, error) {
	cfg := &Config{}
	var err error

	str := func(name, def string) string {
		if err != nil {
			return ""
		}
		var v string
		v, err = r.Resolve(ctx, name, nil, def)
		return v
	}
	i := func(name string, def int) int {
		if err != nil {
			return 0
		}
		var v int
		v, err = r.ResolveInt(ctx, name, nil, def)
		return v
	}

	cfg.RedisURL = str("REDIS_URL", "redis://localhost:6379")
	cfg.DatabaseURL = str("DATABASE_URL", "")
	cfg.QdrantURL = str("QDRANT_URL", "localhost:6334")
	cfg.QdrantCollection = str("QDRANT_COLLECTION", "idp_documents")
	cfg.ObjectStoreEndpoint = str("OBJECT_STORE_ENDPOINT", "localhost:9000")
	cfg.ObjectStoreAccessKey = str("OBJECT_STORE_ACCESS_KEY", "")
	cfg.ObjectStoreSecretKey = str("OBJECT_STORE_SECRET_KEY", "")
	cfg.ObjectStoreBucket = str("OBJECT_STORE_BUCKET", "")
	cfg.RawPrefix = str("RAW_PREFIX", "raw/")
	cfg.OfficeDocsPrefix = str("OFFICE_DOCS_PREFIX", "office-docs/")
	cfg.PDFRawPrefix = str("PDF_RAW_PREFIX", "pdf-raw/")
	cfg.PDFPagePrefix = str("PDF_PAGE_PREFIX", "pdf-pages/")
	cfg.TextPagePrefix = str("TEXT_PAGE_PREFIX", "text-pages/")
	cfg.ScanPagePrefix = str("SCAN_PAGE_PREFIX", "scan-pages/")
	cfg.HOCRPrefix = str("HOCR_PREFIX", "hocr/")
	cfg.TextDocPrefix = str("TEXT_DOC_PREFIX", "text-docs/")
	cfg.RedactedPrefix = str("REDACTED_PREFIX", "redacted/")
	cfg.EmbeddingAPIKey = str("EMBEDDING_API_KEY", "")
	cfg.LLMAPIKey = str("LLM_API_KEY", "")
	cfg.WorkerConcurrency = i("WORKER_CONCURRENCY", 10)
	cfg.MaxFileSize = int64(i("MAX_FILE_SIZE", 5368709120))
	cfg.DefaultChunkSize = int64(i("CHUNK_SIZE", 65536))
	cfg.ProcessingTimeout = i("PROCESSING_TIMEOUT", 300000)
	cfg.TesseractPath = str("TESSERACT_PATH", "/usr/bin/tesseract")
	cfg.TempDir = str("TEMP_DIR", "/tmp/idp")
	cfg.NodeEnv = str("NODE_ENV", "development")

	if err != nil {
		return nil, err
	}

	if verr := validator.New().Struct(cfg); verr != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", verr)
	}

	return cfg, nil
}
