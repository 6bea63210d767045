// Package queue wires the pipeline's two asynq task types onto a worker
// process: "stage:notify" (an object-store notification batch, fanned out
// through the Stage Dispatcher) and "llm:invoke" (a routed prompt,
// fanned out through the LLM Invoker). Adapted from an
// asynq.Server/ServeMux bootstrap in the original consumer.go, generalized
// from a single "process-document" task to the pipeline's stage/invoke
// task split.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/adverant/idp-retrieval-platform/internal/dispatch"
	"github.com/adverant/idp-retrieval-platform/internal/llm/invoke"
	"github.com/adverant/idp-retrieval-platform/internal/logging"
)

const (
	TaskStageNotify = "stage:notify"
	TaskLLMInvoke   = "llm:invoke"
)

// StageNotifyPayload is the "stage:notify" task payload: one object-store
// notification batch.
type StageNotifyPayload struct {
	Records []dispatch.Record `json:"records"`
}

// LLMInvokePayload is the "llm:invoke" task payload the Router (C20)
// enqueues and the Invoker (C21) consumes.
type LLMInvokePayload struct {
	Backend      string `json:"backend"`
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	Dispatcher  *dispatch.Dispatcher
	Invoker     *invoke.Invoker
	Log         *logging.Logger
}

// Consumer runs the asynq server that drains both task types.
type Consumer struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	cfg    *ConsumerConfig
}

// NewConsumer constructs a Consumer.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := asynq.NewClient(redisOpt)
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				cfg.Log.Error("task processing error", "type", task.Type(), "err", err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	c := &Consumer{client: client, server: server, mux: mux, cfg: cfg}
	mux.HandleFunc(TaskStageNotify, c.handleStageNotify)
	mux.HandleFunc(TaskLLMInvoke, c.handleLLMInvoke)

	return c, nil
}

// Start runs the asynq server in the background.
func (c *Consumer) Start() error {
	go func() {
		if err := c.server.Run(c.mux); err != nil {
			c.cfg.Log.Error("queue consumer exited", "err", err)
		}
	}()
	return nil
}

// Stop shuts the consumer down gracefully.
func (c *Consumer) Stop() error {
	c.server.Shutdown()
	return c.client.Close()
}

func (c *Consumer) handleStageNotify(ctx context.Context, task *asynq.Task) error {
	var payload StageNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal stage notification: %w", err)
	}

	failures := c.cfg.Dispatcher.Dispatch(ctx, dispatch.Batch{Records: payload.Records})
	for _, f := range failures {
		c.cfg.Log.Error("stage handler failed for record", "key", f.Key, "err", f.Err)
	}
	return nil
}

func (c *Consumer) handleLLMInvoke(ctx context.Context, task *asynq.Task) error {
	var payload LLMInvokePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal invocation payload: %w", err)
	}

	out, err := c.cfg.Invoker.Invoke(ctx, payload.Backend, payload.Prompt, payload.SystemPrompt, invoke.SamplingParams{})
	if err != nil {
		return fmt.Errorf("invocation failed: %w", err)
	}
	c.cfg.Log.Info("invocation complete", "backend", payload.Backend, "outputLength", len(out))
	return nil
}
