package invoke

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSelectorRoundRobinsAcrossHealthyEndpoints(t *testing.T) {
	s := NewHealthCheckedSelector([]string{"a", "b", "c"}, 3, time.Minute)
	first, err := s.Next()
	require.NoError(t, err)
	second, err := s.Next()
	require.NoError(t, err)
	third, err := s.Next()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, []string{first, second, third})
}

func TestSelectorSkipsEndpointOverThresholdUntilCooldown(t *testing.T) {
	now := time.Now()
	s := NewHealthCheckedSelector([]string{"a", "b"}, 1, time.Minute)
	s.now = fixedClock(now)

	s.RecordFailure("a")
	// a has 1 failure >= threshold 1, and cooldown hasn't elapsed: skip it.
	picked, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "b", picked)

	picked, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, "b", picked)
}

func TestSelectorAllowsEndpointOnceCooldownElapses(t *testing.T) {
	now := time.Now()
	s := NewHealthCheckedSelector([]string{"a"}, 1, time.Minute)
	s.now = fixedClock(now)
	s.RecordFailure("a")

	_, err := s.Next()
	assert.Error(t, err)

	s.now = fixedClock(now.Add(2 * time.Minute))
	picked, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", picked)
}

func TestRecordSuccessResetsFailures(t *testing.T) {
	s := NewHealthCheckedSelector([]string{"a"}, 1, time.Minute)
	s.RecordFailure("a")
	s.RecordSuccess("a")
	assert.Equal(t, 0, s.Health("a").Failures)

	picked, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", picked)
}

func TestBuildRequestOpenAICompatiblePlacesSystemAsFirstMessage(t *testing.T) {
	req := BuildRequest("hello", "be concise", ConventionOpenAICompatible, SamplingParams{}, SamplingParams{})
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "be concise", req.Messages[0].Content)
	assert.Equal(t, "user", req.Messages[1].Role)
	assert.Empty(t, req.System)
}

func TestBuildRequestOllamaCompatibleUsesSystemField(t *testing.T) {
	req := BuildRequest("hello", "be concise", ConventionOllamaCompatible, SamplingParams{}, SamplingParams{})
	assert.Equal(t, "be concise", req.System)
	assert.Empty(t, req.Messages)
}

func TestBuildRequestMergesDefaultsWithOverrides(t *testing.T) {
	defTemp := 0.2
	overrideTemp := 0.9
	defaults := SamplingParams{Temperature: &defTemp}
	overrides := SamplingParams{Temperature: &overrideTemp}

	req := BuildRequest("hi", "", ConventionNative, defaults, SamplingParams{})
	require.NotNil(t, req.Temperature)
	assert.Equal(t, defTemp, *req.Temperature)

	req = BuildRequest("hi", "", ConventionNative, defaults, overrides)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, overrideTemp, *req.Temperature)
}

type stubClient struct {
	out string
	err error
	got Request
}

func (s *stubClient) Invoke(_ context.Context, _ string, req Request) (string, error) {
	s.got = req
	return s.out, s.err
}

func TestInvokerInvokeRecordsSuccessAndReturnsOutput(t *testing.T) {
	client := &stubClient{out: "answer"}
	inv := NewInvoker(client)
	selector := NewHealthCheckedSelector([]string{"ep1"}, 3, time.Minute)
	inv.RegisterBackend("main", selector, SamplingParams{}, ConventionOpenAICompatible)

	out, err := inv.Invoke(context.Background(), "main", "prompt", "sys", SamplingParams{})
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	assert.Equal(t, 0, selector.Health("ep1").Failures)
}

func TestInvokerInvokeRecordsFailureAndPropagatesError(t *testing.T) {
	client := &stubClient{err: errors.New("backend down")}
	inv := NewInvoker(client)
	selector := NewHealthCheckedSelector([]string{"ep1"}, 3, time.Minute)
	inv.RegisterBackend("main", selector, SamplingParams{}, ConventionOpenAICompatible)

	_, err := inv.Invoke(context.Background(), "main", "prompt", "sys", SamplingParams{})
	assert.Error(t, err)
	assert.Equal(t, 1, selector.Health("ep1").Failures)
}

func TestInvokerRejectsUnregisteredBackend(t *testing.T) {
	inv := NewInvoker(&stubClient{})
	_, err := inv.Invoke(context.Background(), "unknown", "prompt", "", SamplingParams{})
	assert.Error(t, err)
}
