package router

import (
	"context"

	"github.com/adverant/idp-retrieval-platform/internal/llm/prompt"
	"github.com/adverant/idp-retrieval-platform/internal/retrieval/orchestrate"
)

// OrchestratorAdapter satisfies the Retrieval Orchestrator's (C19) Router
// contract over a Router, folding the retrieved context into the prompt
// before routing since Request carries no separate context field.
type OrchestratorAdapter struct {
	Router *Router
}

func (a OrchestratorAdapter) Dispatch(ctx context.Context, req orchestrate.RouterRequest) (orchestrate.RouterAck, error) {
	full := req.Prompt
	if req.Context != "" {
		full = req.Context + "\n\n" + req.Prompt
	}
	ack, err := a.Router.Route(ctx, Request{Prompt: full, Backend: req.Backend})
	if err != nil {
		return orchestrate.RouterAck{}, err
	}
	return orchestrate.RouterAck{Queued: ack.Queued, TaskID: ack.TaskID}, nil
}

// PromptAdapter satisfies the Prompt Engine's (C22) Router contract,
// forwarding the rendered prompt and its system prompt unchanged.
type PromptAdapter struct {
	Router *Router
}

func (a PromptAdapter) Dispatch(ctx context.Context, req prompt.RouterRequest) (prompt.RouterAck, error) {
	ack, err := a.Router.Route(ctx, Request{Prompt: req.Prompt, Backend: req.Backend, SystemPrompt: req.SystemPrompt})
	if err != nil {
		return prompt.RouterAck{}, err
	}
	return prompt.RouterAck{Queued: ack.Queued, TaskID: ack.TaskID}, nil
}
