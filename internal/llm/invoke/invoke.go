// Package invoke implements the LLM Invoker (C21): a health-checked
// round-robin endpoint selector plus per-backend sampling-parameter
// injection and system-prompt placement conventions. Grounded on a
// `backends.py`-equivalent HealthCheckedSelector and the
// OpenAI-compatible / native / Ollama-compatible message shapes.
package invoke

import (
	"context"
	"sync"
	"time"

	pipeerrors "github.com/adverant/idp-retrieval-platform/internal/errors"
	"github.com/adverant/idp-retrieval-platform/internal/metrics"
)

// EndpointHealth tracks failures and cooldown for one endpoint.
type EndpointHealth struct {
	Endpoint    string
	Failures    int
	LastFailure time.Time
}

// HealthCheckedSelector chooses the next endpoint in rotation whose
// failures are under threshold, or whose cooldown has elapsed since its
// last failure.
type HealthCheckedSelector struct {
	mu        sync.Mutex
	endpoints []string
	health    map[string]*EndpointHealth
	threshold int
	cooldown  time.Duration
	cursor    int
	now       func() time.Time
}

// NewHealthCheckedSelector constructs a selector over endpoints.
func NewHealthCheckedSelector(endpoints []string, failureThreshold int, cooldown time.Duration) *HealthCheckedSelector {
	health := make(map[string]*EndpointHealth, len(endpoints))
	for _, e := range endpoints {
		health[e] = &EndpointHealth{Endpoint: e}
	}
	return &HealthCheckedSelector{
		endpoints: endpoints,
		health:    health,
		threshold: failureThreshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Next returns the next healthy endpoint in rotation, or
// ErrorEndpointUnhealthy if every endpoint is currently unhealthy.
func (s *HealthCheckedSelector) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.endpoints)
	if n == 0 {
		return "", &pipeerrors.ProcessingError{Code: pipeerrors.ErrorEndpointUnhealthy, Message: "no endpoints configured"}
	}

	now := s.now()
	for i := 0; i < n; i++ {
		idx := (s.cursor + i) % n
		endpoint := s.endpoints[idx]
		h := s.health[endpoint]
		if h.Failures < s.threshold || now.Sub(h.LastFailure) >= s.cooldown {
			s.cursor = (idx + 1) % n
			return endpoint, nil
		}
	}
	return "", pipeerrors.NewEndpointUnhealthyError("all endpoints exhausted")
}

// RecordSuccess resets an endpoint's failure count.
func (s *HealthCheckedSelector) RecordSuccess(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.health[endpoint]; ok {
		h.Failures = 0
	}
}

// RecordFailure increments an endpoint's failure count and stamps the
// current time as its last failure.
func (s *HealthCheckedSelector) RecordFailure(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.health[endpoint]; ok {
		h.Failures++
		h.LastFailure = s.now()
	}
}

// Health returns a snapshot of an endpoint's health, for observability.
func (s *HealthCheckedSelector) Health(endpoint string) EndpointHealth {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.health[endpoint]; ok {
		return *h
	}
	return EndpointHealth{Endpoint: endpoint}
}

// Convention is a backend's message-shape dialect for system-prompt
// placement.
type Convention string

const (
	ConventionOpenAICompatible Convention = "openai-compatible"
	ConventionNative           Convention = "native"
	ConventionOllamaCompatible Convention = "ollama-compatible"
)

// SamplingParams are the configurable generation defaults injected when
// absent from a request.
type SamplingParams struct {
	Temperature *float64
	TopP        *float64
	TopK        *int
	MaxTokens   *int
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is what the Invoker sends to a concrete backend client.
type Request struct {
	Messages    []Message `json:"messages,omitempty"`
	System      string    `json:"system,omitempty"`
	Prompt      string    `json:"prompt,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	TopK        *int      `json:"top_k,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

// BuildRequest assembles a backend Request from a prompt, system prompt,
// convention, and default sampling params (merged only where the request
// doesn't already specify a value).
func BuildRequest(prompt, systemPrompt string, convention Convention, defaults SamplingParams, overrides SamplingParams) Request {
	req := Request{Prompt: prompt}

	switch convention {
	case ConventionOpenAICompatible, ConventionNative:
		if systemPrompt != "" {
			req.Messages = append(req.Messages, Message{Role: "system", Content: systemPrompt})
		}
		req.Messages = append(req.Messages, Message{Role: "user", Content: prompt})
	case ConventionOllamaCompatible:
		req.System = systemPrompt
	}

	req.Temperature = pickFloat(overrides.Temperature, defaults.Temperature)
	req.TopP = pickFloat(overrides.TopP, defaults.TopP)
	req.TopK = pickInt(overrides.TopK, defaults.TopK)
	req.MaxTokens = pickInt(overrides.MaxTokens, defaults.MaxTokens)

	return req
}

func pickFloat(override, def *float64) *float64 {
	if override != nil {
		return override
	}
	return def
}

func pickInt(override, def *int) *int {
	if override != nil {
		return override
	}
	return def
}

// BackendClient is the external collaborator that actually makes the HTTP
// call.
type BackendClient interface {
	Invoke(ctx context.Context, endpoint string, req Request) (string, error)
}

// Invoker is the C21 component.
type Invoker struct {
	client     BackendClient
	selectors  map[string]*HealthCheckedSelector // keyed by backend name
	defaults   map[string]SamplingParams
	convention map[string]Convention
}

// NewInvoker constructs an Invoker.
func NewInvoker(client BackendClient) *Invoker {
	return &Invoker{
		client:     client,
		selectors:  map[string]*HealthCheckedSelector{},
		defaults:   map[string]SamplingParams{},
		convention: map[string]Convention{},
	}
}

// RegisterBackend wires up a backend's endpoint pool, sampling defaults,
// and message-shape convention.
func (inv *Invoker) RegisterBackend(name string, selector *HealthCheckedSelector, defaults SamplingParams, convention Convention) {
	inv.selectors[name] = selector
	inv.defaults[name] = defaults
	inv.convention[name] = convention
}

// Invoke selects a healthy endpoint for backend, builds the request per
// that backend's convention and defaults, and invokes it — recording
// success/failure back onto the selector.
func (inv *Invoker) Invoke(ctx context.Context, backend, prompt, systemPrompt string, overrides SamplingParams) (string, error) {
	selector, ok := inv.selectors[backend]
	if !ok {
		return "", &pipeerrors.ProcessingError{Code: pipeerrors.ErrorLLMFailed, Message: "backend not registered: " + backend}
	}

	endpoint, err := selector.Next()
	if err != nil {
		return "", err
	}

	req := BuildRequest(prompt, systemPrompt, inv.convention[backend], inv.defaults[backend], overrides)

	out, err := inv.client.Invoke(ctx, endpoint, req)
	if err != nil {
		selector.RecordFailure(endpoint)
		metrics.EndpointHealth.WithLabelValues(backend, endpoint).Set(0)
		return "", &pipeerrors.ProcessingError{Code: pipeerrors.ErrorLLMFailed, Message: "invocation failed", JobID: endpoint, Cause: err}
	}
	selector.RecordSuccess(endpoint)
	metrics.EndpointHealth.WithLabelValues(backend, endpoint).Set(1)
	return out, nil
}
