package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/schemaflow-ai/schemaflow/pkg/config"
	"github.com/schemaflow-ai/schemaflow/pkg/llms"
	"github.com/schemaflow-ai/schemaflow/pkg/observability"
)

// WorkforceAgent splits a request into independent subtasks and runs
// them concurrently across its workers, then synthesizes one answer.
type WorkforceAgent struct {
	name        string
	description string
	instruction string
	planner     llms.Provider
	workers     []Agent
}

const splitPromptFormat = `Split the user's request into independent subtasks that can run in
parallel. Respond with a JSON array of subtask strings only. Use a
single-element array when the request cannot be split.

User request:
%s`

func NewWorkforceAgent(cfg *config.AgentConfig, planner llms.Provider, workers []Agent) (*WorkforceAgent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("agent config is required")
	}
	if planner == nil {
		return nil, fmt.Errorf("planner llm provider is required")
	}
	if len(workers) == 0 {
		return nil, fmt.Errorf("workforce agent %s requires at least one worker", cfg.Name)
	}

	return &WorkforceAgent{
		name:        cfg.Name,
		description: cfg.Description,
		instruction: cfg.Instruction,
		planner:     planner,
		workers:     workers,
	}, nil
}

func (a *WorkforceAgent) Name() string {
	return a.name
}

func (a *WorkforceAgent) Description() string {
	return a.description
}

func (a *WorkforceAgent) Run(ctx context.Context, input string) (*RunResult, error) {
	return a.run(ctx, input, nil)
}

func (a *WorkforceAgent) RunStreaming(ctx context.Context, input string) (<-chan Event, error) {
	events := make(chan Event, 100)

	go func() {
		defer close(events)

		emit := func(ev Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}

		result, err := a.run(ctx, input, emit)
		if err != nil {
			emit(Event{Type: EventError, Err: err, Text: err.Error()})
			return
		}
		emit(Event{Type: EventFinish, Result: result, Text: result.Text})
	}()

	return events, nil
}

func (a *WorkforceAgent) run(ctx context.Context, input string, emit func(Event)) (*RunResult, error) {
	startTime := time.Now()

	result, err := a.fanOut(ctx, input, emit)

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordAgentRun(a.name, time.Since(startTime), err)
	}

	return result, err
}

func (a *WorkforceAgent) fanOut(ctx context.Context, input string, emit func(Event)) (*RunResult, error) {
	subtasks, planTokens, err := a.split(ctx, input)
	if err != nil {
		return nil, err
	}

	results := make([]*RunResult, len(subtasks))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(a.workers))

	for i, subtask := range subtasks {
		i, subtask := i, subtask
		worker := a.workers[i%len(a.workers)]

		g.Go(func() error {
			subResult, err := worker.Run(gctx, subtask)
			if err != nil {
				return fmt.Errorf("worker %s failed on subtask %d: %w", worker.Name(), i+1, err)
			}
			mu.Lock()
			results[i] = subResult
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &RunResult{Tokens: planTokens}
	var parts []string
	for i, subResult := range results {
		result.Turns += subResult.Turns
		result.Tokens += subResult.Tokens
		parts = append(parts, fmt.Sprintf("[subtask %d] %s", i+1, subResult.Text))
	}

	if len(parts) == 1 {
		result.Text = results[0].Text
		if emit != nil {
			emit(Event{Type: EventTextDelta, Text: result.Text})
		}
		return result, nil
	}

	text, tokens, err := a.combine(ctx, input, parts, emit)
	if err != nil {
		return nil, err
	}
	result.Text = text
	result.Tokens += tokens

	return result, nil
}

func (a *WorkforceAgent) split(ctx context.Context, input string) ([]string, int, error) {
	messages := []llms.Message{}
	if a.instruction != "" {
		messages = append(messages, llms.Message{Role: llms.RoleSystem, Content: a.instruction})
	}
	messages = append(messages, llms.Message{
		Role:    llms.RoleUser,
		Content: fmt.Sprintf(splitPromptFormat, input),
	})

	completion, err := a.planner.Generate(ctx, messages, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("task splitting failed: %w", err)
	}

	subtasks := parseSubtasks(completion.Text)
	if len(subtasks) == 0 {
		subtasks = []string{input}
	}

	return subtasks, completion.Tokens, nil
}

func parseSubtasks(text string) []string {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil
	}

	var subtasks []string
	if err := json.Unmarshal([]byte(text[start:end+1]), &subtasks); err != nil {
		return nil
	}

	var valid []string
	for _, task := range subtasks {
		if strings.TrimSpace(task) != "" {
			valid = append(valid, task)
		}
	}
	return valid
}

func (a *WorkforceAgent) combine(ctx context.Context, input string, parts []string, emit func(Event)) (string, int, error) {
	messages := []llms.Message{{
		Role:    llms.RoleUser,
		Content: fmt.Sprintf(reporterPromptFormat, input, strings.Join(parts, "\n---\n")),
	}}

	if emit == nil {
		completion, err := a.planner.Generate(ctx, messages, nil)
		if err != nil {
			return "", 0, fmt.Errorf("synthesis failed: %w", err)
		}
		return completion.Text, completion.Tokens, nil
	}

	ch, err := a.planner.GenerateStreaming(ctx, messages, nil)
	if err != nil {
		return "", 0, fmt.Errorf("synthesis failed: %w", err)
	}

	var text string
	tokens := 0
	for chunk := range ch {
		switch chunk.Type {
		case llms.ChunkText:
			text += chunk.Text
			emit(Event{Type: EventTextDelta, Text: chunk.Text})
		case llms.ChunkDone:
			tokens = chunk.Tokens
		case llms.ChunkError:
			return text, tokens, chunk.Error
		}
	}

	return text, tokens, nil
}
