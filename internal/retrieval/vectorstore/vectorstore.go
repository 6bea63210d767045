// Package vectorstore implements the Vector Store Proxy (C16):
// backend-agnostic CRUD plus filtered and hybrid search, with ephemeral
// collection TTL registration. Grounded on vector_db_proxy_lambda.py's
// operation envelope and milvus_handler_lambda.py's post-search filters,
// wired to github.com/qdrant/go-client as the primary backend the way
// providers/vectorstores/qdrant/store.go in the pack uses it.
package vectorstore

import (
	"context"
	"time"

	pipeerrors "github.com/adverant/idp-retrieval-platform/internal/errors"
)

// Item is a vector plus its metadata payload.
type Item struct {
	ID        string                 `json:"id,omitempty"`
	Embedding []float32              `json:"embedding"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// Match is a scored search result.
type Match struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Filters are applied by the proxy AFTER the backend returns candidates,
// once matches are back, not pushed down to the backend query.
type Filters struct {
	Department string
	Team       string
	User       string
	Entities   []string // intersection filter: require overlap with match.Metadata["entities"]
	FileGUID   string
	FileName   string
}

// Backend is the primary vector-index backend (milvus-equivalent; Qdrant
// in this port).
type Backend interface {
	CreateCollection(ctx context.Context, name string, dim int) error
	DropCollection(ctx context.Context, name string) error
	Insert(ctx context.Context, collection string, items []Item, upsert bool) ([]string, error)
	Update(ctx context.Context, collection string, items []Item) error
	Delete(ctx context.Context, collection string, ids []string) error
	Search(ctx context.Context, collection string, embedding []float32, topK int) ([]Match, error)
}

// HybridBackend additionally scores by keyword match (elasticsearch-
// equivalent), used only by HybridSearch.
type HybridBackend interface {
	HybridSearch(ctx context.Context, collection string, embedding []float32, keywords string, topK int) ([]Match, error)
}

// TTLRegistry tracks ephemeral collections for the Reaper (C17).
type TTLRegistry interface {
	Register(ctx context.Context, collection string, expiresAt time.Time) error
	Remove(ctx context.Context, collection string) error
	List(ctx context.Context) ([]Registration, error)
}

// Registration is one ephemeral-collection TTL entry.
type Registration struct {
	Collection string
	ExpiresAt  time.Time
}

// Proxy is the C16 component. StorageMode selects among multiple
// configured primary backends (e.g. distinct Qdrant clusters per tenant);
// Hybrid is the optional ES-equivalent backend used only by HybridSearch.
type Proxy struct {
	Backends     map[string]Backend
	DefaultMode  string
	Hybrid       HybridBackend
	TTL          TTLRegistry
}

// New constructs a Proxy with a single default backend.
func New(defaultBackend Backend, hybrid HybridBackend, ttl TTLRegistry) *Proxy {
	return &Proxy{
		Backends:    map[string]Backend{"default": defaultBackend},
		DefaultMode: "default",
		Hybrid:      hybrid,
		TTL:         ttl,
	}
}

func (p *Proxy) backend(storageMode string) (Backend, error) {
	mode := storageMode
	if mode == "" {
		mode = p.DefaultMode
	}
	b, ok := p.Backends[mode]
	if !ok {
		return nil, &pipeerrors.ProcessingError{Code: pipeerrors.ErrorVectorStoreFailed, Message: "unknown storage_mode: " + mode}
	}
	return b, nil
}

// CreateCollection creates a collection, optionally registering it as
// ephemeral with a TTL for the Reaper to later sweep.
func (p *Proxy) CreateCollection(ctx context.Context, storageMode, name string, dim int, ephemeral bool, expiresAt *time.Time) error {
	b, err := p.backend(storageMode)
	if err != nil {
		return err
	}
	if err := b.CreateCollection(ctx, name, dim); err != nil {
		return wrapVectorStoreErr(err)
	}
	if ephemeral && expiresAt != nil && p.TTL != nil {
		if err := p.TTL.Register(ctx, name, *expiresAt); err != nil {
			return wrapVectorStoreErr(err)
		}
	}
	return nil
}

// DropCollection drops a collection and, if registered, removes its TTL
// entry.
func (p *Proxy) DropCollection(ctx context.Context, storageMode, name string) error {
	b, err := p.backend(storageMode)
	if err != nil {
		return err
	}
	if err := b.DropCollection(ctx, name); err != nil {
		return wrapVectorStoreErr(err)
	}
	if p.TTL != nil {
		_ = p.TTL.Remove(ctx, name)
	}
	return nil
}

// Insert inserts (or upserts) items into a collection.
func (p *Proxy) Insert(ctx context.Context, storageMode, collection string, items []Item, upsert bool) ([]string, error) {
	b, err := p.backend(storageMode)
	if err != nil {
		return nil, err
	}
	ids, err := b.Insert(ctx, collection, items, upsert)
	if err != nil {
		return nil, wrapVectorStoreErr(err)
	}
	return ids, nil
}

// Update updates existing items by ID.
func (p *Proxy) Update(ctx context.Context, storageMode, collection string, items []Item) error {
	b, err := p.backend(storageMode)
	if err != nil {
		return err
	}
	if err := b.Update(ctx, collection, items); err != nil {
		return wrapVectorStoreErr(err)
	}
	return nil
}

// Delete removes items by ID.
func (p *Proxy) Delete(ctx context.Context, storageMode, collection string, ids []string) error {
	b, err := p.backend(storageMode)
	if err != nil {
		return err
	}
	if err := b.Delete(ctx, collection, ids); err != nil {
		return wrapVectorStoreErr(err)
	}
	return nil
}

// Search runs a vector search and applies post-search metadata filters.
// The backend is asked for exactly topK candidates; filtering happens
// here, after the backend returns, so fewer than topK may remain.
func (p *Proxy) Search(ctx context.Context, storageMode, collection string, embedding []float32, topK int, filters Filters) ([]Match, error) {
	b, err := p.backend(storageMode)
	if err != nil {
		return nil, err
	}
	matches, err := b.Search(ctx, collection, embedding, topK)
	if err != nil {
		return nil, wrapVectorStoreErr(err)
	}
	return applyFilters(matches, filters, topK), nil
}

// HybridSearch runs a vector+keyword hybrid search via the configured ES-
// equivalent backend, then applies the same post-search filters.
func (p *Proxy) HybridSearch(ctx context.Context, collection string, embedding []float32, keywords string, topK int, filters Filters) ([]Match, error) {
	if p.Hybrid == nil {
		return nil, &pipeerrors.ProcessingError{Code: pipeerrors.ErrorVectorStoreFailed, Message: "no hybrid backend configured"}
	}
	matches, err := p.Hybrid.HybridSearch(ctx, collection, embedding, keywords, topK)
	if err != nil {
		return nil, wrapVectorStoreErr(err)
	}
	return applyFilters(matches, filters, topK), nil
}

func applyFilters(matches []Match, f Filters, topK int) []Match {
	var out []Match
	for _, m := range matches {
		if f.Department != "" && stringField(m.Metadata, "department") != f.Department {
			continue
		}
		if f.Team != "" && stringField(m.Metadata, "team") != f.Team {
			continue
		}
		if f.User != "" && stringField(m.Metadata, "user") != f.User {
			continue
		}
		if f.FileGUID != "" && stringField(m.Metadata, "file_guid") != f.FileGUID {
			continue
		}
		if f.FileName != "" && stringField(m.Metadata, "file_name") != f.FileName {
			continue
		}
		if len(f.Entities) > 0 && !entitiesIntersect(m.Metadata, f.Entities) {
			continue
		}
		out = append(out, m)
		if topK > 0 && len(out) >= topK {
			break
		}
	}
	return out
}

func stringField(meta map[string]interface{}, key string) string {
	if meta == nil {
		return ""
	}
	if v, ok := meta[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func entitiesIntersect(meta map[string]interface{}, want []string) bool {
	if meta == nil {
		return false
	}
	raw, ok := meta["entities"]
	if !ok {
		return false
	}
	list, ok := raw.([]string)
	if !ok {
		if anyList, ok := raw.([]interface{}); ok {
			for _, a := range anyList {
				if s, ok := a.(string); ok {
					list = append(list, s)
				}
			}
		}
	}
	wantSet := make(map[string]bool, len(want))
	for _, w := range want {
		wantSet[w] = true
	}
	for _, have := range list {
		if wantSet[have] {
			return true
		}
	}
	return false
}

func wrapVectorStoreErr(err error) error {
	if _, ok := err.(*pipeerrors.ProcessingError); ok {
		return err
	}
	return &pipeerrors.ProcessingError{Code: pipeerrors.ErrorVectorStoreFailed, Message: "vector store backend failed", Cause: err}
}
