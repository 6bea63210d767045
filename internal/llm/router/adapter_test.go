package router

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/idp-retrieval-platform/internal/llm/prompt"
	"github.com/adverant/idp-retrieval-platform/internal/retrieval/orchestrate"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, "idp:invoke", []string{"default"}, "default")
}

func TestOrchestratorAdapterFoldsContextIntoPrompt(t *testing.T) {
	r := newTestRouter(t)
	adapter := OrchestratorAdapter{Router: r}

	ack, err := adapter.Dispatch(context.Background(), orchestrate.RouterRequest{
		Prompt:  "what changed?",
		Backend: "default",
		Context: "release notes: v2",
	})
	require.NoError(t, err)
	assert.True(t, ack.Queued)
	assert.NotEmpty(t, ack.TaskID)
}

func TestPromptAdapterForwardsSystemPrompt(t *testing.T) {
	r := newTestRouter(t)
	adapter := PromptAdapter{Router: r}

	ack, err := adapter.Dispatch(context.Background(), prompt.RouterRequest{
		Prompt:       "summarize this",
		Backend:      "default",
		SystemPrompt: "be terse",
	})
	require.NoError(t, err)
	assert.True(t, ack.Queued)
}
