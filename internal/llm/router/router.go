// Package router implements the LLM Router (C20): input sanitization,
// explicit-backend-or-cascading strategy selection, and enqueue-only
// dispatch to the invocation queue. Grounded on llm_router_lambda.py's
// heuristic/predictive/generative cascade and queued via
// github.com/hibiken/asynq the way background work is enqueued elsewhere
// in this codebase.
package router

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"unicode"

	"github.com/hibiken/asynq"

	pipeerrors "github.com/adverant/idp-retrieval-platform/internal/errors"
	"github.com/adverant/idp-retrieval-platform/internal/metrics"
	"github.com/adverant/idp-retrieval-platform/internal/queue"
)

// MaxPromptLength bounds the sanitized prompt.
const MaxPromptLength = 32768

// DefaultComplexityThreshold is the default word-count threshold for the
// length-based heuristic rule (WordCountRule) that picks weak vs strong
// models; Router.ComplexityThreshold starts at this value.
const DefaultComplexityThreshold = 20

var htmlSigil = regexp.MustCompile(`[<>"']`)

// Request is a single routing request.
type Request struct {
	Prompt       string `json:"prompt"`
	Backend      string `json:"backend"` // optional explicit backend override
	SystemPrompt string `json:"systemPrompt,omitempty"`
}

// Classifier is the small predictive-strategy classifier LLM (returns
// "simple" or "complex"); an external collaborator.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

// HeuristicRule inspects a sanitized prompt and either chooses a backend
// or abstains (ok=false), matching the cascade's "regex, length, language,
// or LLM-classifier sub-rule" description.
type HeuristicRule func(ctx context.Context, prompt string) (backend string, ok bool)

// Router is the C20 component.
type Router struct {
	AllowedBackends     map[string]bool
	HeuristicRules      []HeuristicRule
	Classifier          Classifier
	WeakModel           string
	StrongModel         string
	DefaultBackend      string
	ComplexityThreshold int
	queue               *asynq.Client
	queueName           string
}

// New constructs a Router that enqueues tasks via an asynq client.
func New(queue *asynq.Client, queueName string, allowedBackends []string, defaultBackend string) *Router {
	allowed := make(map[string]bool, len(allowedBackends))
	for _, b := range allowedBackends {
		allowed[b] = true
	}
	return &Router{
		AllowedBackends:     allowed,
		DefaultBackend:      defaultBackend,
		ComplexityThreshold: DefaultComplexityThreshold,
		queue:               queue,
		queueName:           queueName,
	}
}

// Ack is the "202 queued" acknowledgement.
type Ack struct {
	Queued bool   `json:"queued"`
	TaskID string `json:"taskId,omitempty"`
}

// Sanitize strips non-printable characters and the `<`, `>`, `"`, `'`
// characters, and bounds length.
func Sanitize(prompt string) string {
	var sb strings.Builder
	for _, r := range prompt {
		if !unicode.IsPrint(r) && r != '\n' && r != '\t' {
			continue
		}
		sb.WriteRune(r)
	}
	clean := htmlSigil.ReplaceAllString(sb.String(), "")
	if len(clean) > MaxPromptLength {
		clean = clean[:MaxPromptLength]
	}
	return clean
}

// Route validates the request, selects a backend (explicit or cascading),
// and enqueues the task, returning a queued acknowledgement. It never
// invokes the backend itself — that is the Invoker's (C21) job.
func (r *Router) Route(ctx context.Context, req Request) (Ack, error) {
	prompt := Sanitize(req.Prompt)

	backend := req.Backend
	strategy := "explicit"
	if backend != "" {
		if !r.AllowedBackends[backend] {
			return Ack{}, &pipeerrors.ProcessingError{Code: pipeerrors.ErrorInputInvalid, Message: "backend not in allowlist: " + backend}
		}
	} else {
		backend, strategy = r.cascadeWithStrategy(ctx, prompt)
	}
	metrics.RouterDecisions.WithLabelValues(backend, strategy).Inc()

	payload, err := json.Marshal(queue.LLMInvokePayload{Backend: backend, Prompt: prompt, SystemPrompt: req.SystemPrompt})
	if err != nil {
		return Ack{}, &pipeerrors.ProcessingError{Code: pipeerrors.ErrorRouterExhausted, Message: "failed to encode invocation payload", Cause: err}
	}
	task := asynq.NewTask(queue.TaskLLMInvoke, payload)

	info, err := r.queue.EnqueueContext(ctx, task, asynq.Queue(r.queueName))
	if err != nil {
		return Ack{}, &pipeerrors.ProcessingError{Code: pipeerrors.ErrorRouterExhausted, Message: "failed to enqueue invocation", Cause: err}
	}

	return Ack{Queued: true, TaskID: info.ID}, nil
}

// cascadeWithStrategy runs heuristic -> predictive -> generative, in that
// order, and reports which stage of the cascade made the pick.
func (r *Router) cascadeWithStrategy(ctx context.Context, prompt string) (string, string) {
	for _, rule := range r.HeuristicRules {
		if backend, ok := rule(ctx, prompt); ok {
			return backend, "heuristic"
		}
	}

	if r.Classifier != nil {
		if verdict, err := r.Classifier.Classify(ctx, prompt); err == nil {
			if verdict == "complex" {
				return r.StrongModel, "predictive"
			}
			return r.WeakModel, "predictive"
		}
	}

	return r.DefaultBackend, "default"
}

// WordCountRule is the length-based heuristic sub-rule: prompts at or
// above the complexity threshold route to the strong model.
func WordCountRule(threshold int, weakModel, strongModel string) HeuristicRule {
	return func(_ context.Context, prompt string) (string, bool) {
		words := len(strings.Fields(prompt))
		if words == 0 {
			return "", false
		}
		if words >= threshold {
			return strongModel, true
		}
		return weakModel, true
	}
}

