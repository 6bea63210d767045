// Package prompt implements the Prompt Engine (C22): stored templates
// keyed by (prompt_id, version), str.format-style variable substitution,
// and forwarding of the rendered prompt to the LLM Router. Grounded on
// prompt-engine-lambda/app.py's DynamoDB-scan-for-latest-version lookup,
// generalized to PostgreSQL via pgx the way the Audit Store does.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	pipeerrors "github.com/adverant/idp-retrieval-platform/internal/errors"
	"github.com/adverant/idp-retrieval-platform/internal/logging"
)

// Template is a stored prompt template.
type Template struct {
	PromptID string `json:"promptId"`
	Version  string `json:"version"`
	Body     string `json:"body"`
}

// Querier is the subset of pgxpool.Pool this package depends on, narrow
// enough to be satisfied by pgxmock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Store is the prompt template library.
type Store struct {
	db  Querier
	log *logging.Logger
}

// New constructs a Store.
func New(db Querier, log *logging.Logger) *Store {
	return &Store{db: db, log: log}
}

// Put upserts a template at (prompt_id, version).
func (s *Store) Put(ctx context.Context, t Template) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO idp.prompt_templates (prompt_id, version, body, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (prompt_id, version) DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = NOW()
	`, t.PromptID, t.Version, t.Body)
	return err
}

// Get fetches a template. If version is empty, the highest version on
// record for promptID is returned, per prompt-engine-lambda's
// "scan then sort by version descending" fallback.
func (s *Store) Get(ctx context.Context, promptID, version string) (*Template, error) {
	var row pgx.Row
	if version != "" {
		row = s.db.QueryRow(ctx, `
			SELECT prompt_id, version, body FROM idp.prompt_templates
			WHERE prompt_id = $1 AND version = $2
		`, promptID, version)
	} else {
		row = s.db.QueryRow(ctx, `
			SELECT prompt_id, version, body FROM idp.prompt_templates
			WHERE prompt_id = $1 ORDER BY version DESC LIMIT 1
		`, promptID)
	}

	var t Template
	if err := row.Scan(&t.PromptID, &t.Version, &t.Body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pipeerrors.NewPromptNotFoundError(promptID, version)
		}
		return nil, err
	}
	return &t, nil
}

var variableRef = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Render substitutes {variable} references in template with values from
// variables. A reference with no matching key fails with
// ErrorPromptVarMissing, mirroring str.format's KeyError.
func Render(promptID, template string, variables map[string]interface{}) (string, error) {
	var missing string
	rendered := variableRef.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		v, ok := variables[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return match
		}
		return stringify(v)
	})
	if missing != "" {
		return "", pipeerrors.NewPromptVarMissingError(promptID, missing)
	}
	return rendered, nil
}

func stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}

// Router forwards a rendered prompt onward, mirroring the LLM Router's
// enqueue-only contract (C20).
type Router interface {
	Dispatch(ctx context.Context, req RouterRequest) (RouterAck, error)
}

// RouterRequest is forwarded to the LLM Router.
type RouterRequest struct {
	Prompt       string
	Backend      string
	Strategy     string
	SystemPrompt string
	Model        string
}

// RouterAck is the LLM Router's "202 queued" acknowledgement.
type RouterAck struct {
	Queued bool   `json:"queued"`
	TaskID string `json:"taskId,omitempty"`
}

// RenderRequest is a single prompt-render-and-dispatch call.
type RenderRequest struct {
	PromptID     string                 `json:"promptId"`
	Version      string                 `json:"version"`
	Variables    map[string]interface{} `json:"variables"`
	Backend      string                 `json:"backend"`
	Strategy     string                 `json:"strategy"`
	SystemPrompt string                 `json:"systemPrompt"`
	Model        string                 `json:"model"`
}

// Result is the Engine's output.
type Result struct {
	Rendered string    `json:"rendered,omitempty"`
	Ack      RouterAck `json:"ack"`
	Error    string    `json:"error,omitempty"`
}

// Engine is the C22 component.
type Engine struct {
	store  *Store
	router Router
}

// NewEngine constructs an Engine.
func NewEngine(store *Store, router Router) *Engine {
	return &Engine{store: store, router: router}
}

// Run fetches the requested template, renders it, and forwards it to the
// router. Error is set (Rendered/Ack left zero) on any step failure.
func (e *Engine) Run(ctx context.Context, req RenderRequest) Result {
	tmpl, err := e.store.Get(ctx, req.PromptID, req.Version)
	if err != nil {
		return Result{Error: err.Error()}
	}

	rendered, err := Render(req.PromptID, tmpl.Body, req.Variables)
	if err != nil {
		return Result{Error: err.Error()}
	}

	ack, err := e.router.Dispatch(ctx, RouterRequest{
		Prompt:       rendered,
		Backend:      req.Backend,
		Strategy:     req.Strategy,
		SystemPrompt: req.SystemPrompt,
		Model:        req.Model,
	})
	if err != nil {
		return Result{Error: err.Error()}
	}

	return Result{Rendered: rendered, Ack: ack}
}
