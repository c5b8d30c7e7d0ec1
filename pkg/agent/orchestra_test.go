package agent

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemaflow-ai/schemaflow/pkg/config"
	"github.com/schemaflow-ai/schemaflow/pkg/llms"
)

// fakeWorker is an Agent that answers a canned reply and records the
// tasks it was given.
type fakeWorker struct {
	name  string
	reply string
	err   error

	mu    sync.Mutex
	tasks []string
}

func (w *fakeWorker) Name() string { return w.name }

func (w *fakeWorker) Description() string { return "fake worker " + w.name }

func (w *fakeWorker) Run(ctx context.Context, input string) (*RunResult, error) {
	w.mu.Lock()
	w.tasks = append(w.tasks, input)
	w.mu.Unlock()

	if w.err != nil {
		return nil, w.err
	}
	return &RunResult{Text: w.reply, Turns: 1, Tokens: 2}, nil
}

func (w *fakeWorker) RunStreaming(ctx context.Context, input string) (<-chan Event, error) {
	events := make(chan Event, 2)
	result, err := w.Run(ctx, input)
	if err != nil {
		events <- Event{Type: EventError, Err: err, Text: err.Error()}
	} else {
		events <- Event{Type: EventTextDelta, Text: result.Text}
		events <- Event{Type: EventFinish, Result: result, Text: result.Text}
	}
	close(events)
	return events, nil
}

func orchestraConfig(workers ...string) *config.AgentConfig {
	return &config.AgentConfig{
		Name:    "conductor",
		Type:    config.AgentTypeOrchestra,
		Workers: workers,
	}
}

func TestOrchestraDelegatesPlannedSteps(t *testing.T) {
	planner := &scriptedProvider{completions: []*llms.Completion{
		{Text: `[{"worker": "schema", "task": "map the schema"}, {"worker": "query", "task": "run the query"}]`, Tokens: 3},
		{Text: "final report", Tokens: 4},
	}}

	schema := &fakeWorker{name: "schema", reply: "schema mapped"}
	query := &fakeWorker{name: "query", reply: "42 rows"}

	agent, err := NewOrchestraAgent(orchestraConfig("schema", "query"), planner,
		map[string]Agent{"schema": schema, "query": query})
	require.NoError(t, err)

	result, err := agent.Run(context.Background(), "how many orders?")
	require.NoError(t, err)

	assert.Equal(t, "final report", result.Text)
	assert.Equal(t, 2, result.Turns)
	assert.Equal(t, 3+4+2+2, result.Tokens)

	require.Len(t, schema.tasks, 1)
	assert.Equal(t, "map the schema", schema.tasks[0])

	// Later steps see earlier results.
	require.Len(t, query.tasks, 1)
	assert.Contains(t, query.tasks[0], "run the query")
	assert.Contains(t, query.tasks[0], "Context from earlier steps")
	assert.Contains(t, query.tasks[0], "[schema] schema mapped")
}

func TestOrchestraSkipsUnknownWorker(t *testing.T) {
	planner := &scriptedProvider{completions: []*llms.Completion{
		{Text: `[{"worker": "ghost", "task": "haunt"}, {"worker": "schema", "task": "map it"}]`},
		{Text: "done"},
	}}

	schema := &fakeWorker{name: "schema", reply: "mapped"}
	agent, err := NewOrchestraAgent(orchestraConfig("schema"), planner,
		map[string]Agent{"schema": schema})
	require.NoError(t, err)

	result, err := agent.Run(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, "done", result.Text)
	assert.Len(t, schema.tasks, 1)
}

func TestOrchestraUnparseablePlanFallsBack(t *testing.T) {
	planner := &scriptedProvider{completions: []*llms.Completion{
		{Text: "I cannot produce JSON right now."},
		{Text: "summary"},
	}}

	schema := &fakeWorker{name: "schema", reply: "ok"}
	agent, err := NewOrchestraAgent(orchestraConfig("schema"), planner,
		map[string]Agent{"schema": schema})
	require.NoError(t, err)

	result, err := agent.Run(context.Background(), "original request")
	require.NoError(t, err)
	assert.Equal(t, "summary", result.Text)

	// Fallback delegates the whole request to the first worker.
	require.Len(t, schema.tasks, 1)
	assert.Equal(t, "original request", schema.tasks[0])
}

func TestOrchestraWorkerFailure(t *testing.T) {
	planner := &scriptedProvider{completions: []*llms.Completion{
		{Text: `[{"worker": "schema", "task": "map it"}]`},
	}}

	schema := &fakeWorker{name: "schema", err: errors.New("db unreachable")}
	agent, err := NewOrchestraAgent(orchestraConfig("schema"), planner,
		map[string]Agent{"schema": schema})
	require.NoError(t, err)

	_, err = agent.Run(context.Background(), "task")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker schema failed")
	assert.Contains(t, err.Error(), "db unreachable")
}

func TestOrchestraStreamingForwardsWorkerEvents(t *testing.T) {
	planner := &scriptedProvider{completions: []*llms.Completion{
		{Text: `[{"worker": "schema", "task": "map it"}]`},
		{Text: "final", Tokens: 1},
	}}

	schema := &fakeWorker{name: "schema", reply: "mapped"}
	agent, err := NewOrchestraAgent(orchestraConfig("schema"), planner,
		map[string]Agent{"schema": schema})
	require.NoError(t, err)

	events, err := agent.RunStreaming(context.Background(), "task")
	require.NoError(t, err)

	var types []string
	var finish *RunResult
	for ev := range events {
		types = append(types, ev.Type)
		if ev.Type == EventFinish {
			finish = ev.Result
		}
	}

	// Worker delta, synthesis delta, finish.
	assert.Equal(t, []string{EventTextDelta, EventTextDelta, EventFinish}, types)
	require.NotNil(t, finish)
	assert.Equal(t, "final", finish.Text)
}

func TestNewOrchestraAgentValidation(t *testing.T) {
	_, err := NewOrchestraAgent(orchestraConfig("w"), &scriptedProvider{}, nil)
	assert.Error(t, err)

	_, err = NewOrchestraAgent(orchestraConfig("w"), nil, map[string]Agent{"w": &fakeWorker{name: "w"}})
	assert.Error(t, err)
}

func TestParsePlan(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []planStep
	}{
		{
			name: "plain array",
			text: `[{"worker": "a", "task": "t1"}]`,
			want: []planStep{{Worker: "a", Task: "t1"}},
		},
		{
			name: "surrounded by prose and fences",
			text: "Here is the plan:\n```json\n[{\"worker\": \"a\", \"task\": \"t1\"}]\n```",
			want: []planStep{{Worker: "a", Task: "t1"}},
		},
		{
			name: "empty fields dropped",
			text: `[{"worker": "a", "task": ""}, {"worker": "", "task": "t"}, {"worker": "b", "task": "t2"}]`,
			want: []planStep{{Worker: "b", Task: "t2"}},
		},
		{
			name: "no array",
			text: "no plan here",
			want: nil,
		},
		{
			name: "invalid json",
			text: `[{"worker": }]`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parsePlan(tt.text))
		})
	}
}
