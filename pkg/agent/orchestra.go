package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/schemaflow-ai/schemaflow/pkg/config"
	"github.com/schemaflow-ai/schemaflow/pkg/llms"
	"github.com/schemaflow-ai/schemaflow/pkg/observability"
)

// OrchestraAgent decomposes a task into steps, delegates each step to a
// named worker agent in sequence, and synthesizes a final answer from
// the step results.
type OrchestraAgent struct {
	name        string
	description string
	instruction string
	planner     llms.Provider
	workers     map[string]Agent
	workerOrder []string
}

// planStep is one planned delegation.
type planStep struct {
	Worker string `json:"worker"`
	Task   string `json:"task"`
}

const plannerPromptFormat = `You are a planner. Decompose the user's request into sequential steps
for the available workers. Respond with a JSON array only, each element
{"worker": "<name>", "task": "<instruction for the worker>"}.

Available workers:
%s

User request:
%s`

const reporterPromptFormat = `Synthesize a final answer to the user's request from the step results.

User request:
%s

Step results:
%s`

func NewOrchestraAgent(cfg *config.AgentConfig, planner llms.Provider, workers map[string]Agent) (*OrchestraAgent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("agent config is required")
	}
	if planner == nil {
		return nil, fmt.Errorf("planner llm provider is required")
	}
	if len(workers) == 0 {
		return nil, fmt.Errorf("orchestra agent %s requires at least one worker", cfg.Name)
	}

	// Preserve the config order for prompts and fallbacks.
	order := make([]string, 0, len(workers))
	for _, name := range cfg.Workers {
		if _, ok := workers[name]; ok {
			order = append(order, name)
		}
	}

	return &OrchestraAgent{
		name:        cfg.Name,
		description: cfg.Description,
		instruction: cfg.Instruction,
		planner:     planner,
		workers:     workers,
		workerOrder: order,
	}, nil
}

func (a *OrchestraAgent) Name() string {
	return a.name
}

func (a *OrchestraAgent) Description() string {
	return a.description
}

func (a *OrchestraAgent) Run(ctx context.Context, input string) (*RunResult, error) {
	return a.run(ctx, input, nil)
}

func (a *OrchestraAgent) RunStreaming(ctx context.Context, input string) (<-chan Event, error) {
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

func (a *OrchestraAgent) run(ctx context.Context, input string, emit func(Event)) (*RunResult, error) {
	startTime := time.Now()

	result, err := a.orchestrate(ctx, input, emit)

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordAgentRun(a.name, time.Since(startTime), err)
	}

	return result, err
}

func (a *OrchestraAgent) orchestrate(ctx context.Context, input string, emit func(Event)) (*RunResult, error) {
	steps, tokens, err := a.plan(ctx, input)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Tokens: tokens}
	var stepResults []string

	for i, step := range steps {
		worker, ok := a.workers[step.Worker]
		if !ok {
			slog.Warn("Planner referenced unknown worker, skipping",
				"agent", a.name, "worker", step.Worker)
			continue
		}

		slog.Info("Delegating step",
			"agent", a.name, "step", i+1, "worker", step.Worker)

		task := step.Task
		if len(stepResults) > 0 {
			task = fmt.Sprintf("%s\n\nContext from earlier steps:\n%s",
				step.Task, strings.Join(stepResults, "\n---\n"))
		}

		stepResult, err := a.delegate(ctx, worker, task, emit)
		if err != nil {
			return nil, fmt.Errorf("worker %s failed on step %d: %w", step.Worker, i+1, err)
		}

		result.Turns += stepResult.Turns
		result.Tokens += stepResult.Tokens
		stepResults = append(stepResults,
			fmt.Sprintf("[%s] %s", step.Worker, stepResult.Text))
	}

	text, tokens, err := a.synthesize(ctx, input, stepResults, emit)
	if err != nil {
		return nil, err
	}
	result.Text = text
	result.Tokens += tokens

	return result, nil
}

// plan asks the planner for a JSON step list; an unparseable plan falls
// back to a single step for the first worker.
func (a *OrchestraAgent) plan(ctx context.Context, input string) ([]planStep, int, error) {
	var workerLines []string
	for _, name := range a.workerOrder {
		workerLines = append(workerLines,
			fmt.Sprintf("- %s: %s", name, a.workers[name].Description()))
	}

	messages := []llms.Message{}
	if a.instruction != "" {
		messages = append(messages, llms.Message{Role: llms.RoleSystem, Content: a.instruction})
	}
	messages = append(messages, llms.Message{
		Role:    llms.RoleUser,
		Content: fmt.Sprintf(plannerPromptFormat, strings.Join(workerLines, "\n"), input),
	})

	completion, err := a.planner.Generate(ctx, messages, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("planning failed: %w", err)
	}

	steps := parsePlan(completion.Text)
	if len(steps) == 0 {
		if len(a.workerOrder) == 0 {
			return nil, completion.Tokens, fmt.Errorf("planner produced no usable steps")
		}
		steps = []planStep{{Worker: a.workerOrder[0], Task: input}}
	}

	return steps, completion.Tokens, nil
}

// parsePlan extracts a JSON array of steps, tolerating surrounding
// prose and code fences.
func parsePlan(text string) []planStep {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil
	}

	var steps []planStep
	if err := json.Unmarshal([]byte(text[start:end+1]), &steps); err != nil {
		return nil
	}

	var valid []planStep
	for _, step := range steps {
		if step.Worker != "" && step.Task != "" {
			valid = append(valid, step)
		}
	}
	return valid
}

func (a *OrchestraAgent) delegate(ctx context.Context, worker Agent, task string, emit func(Event)) (*RunResult, error) {
	if emit == nil {
		return worker.Run(ctx, task)
	}

	events, err := worker.RunStreaming(ctx, task)
	if err != nil {
		return nil, err
	}

	var result *RunResult
	for ev := range events {
		switch ev.Type {
		case EventError:
			return nil, ev.Err
		case EventFinish:
			result = ev.Result
		default:
			emit(ev)
		}
	}

	if result == nil {
		return nil, fmt.Errorf("worker stream ended without a result")
	}
	return result, nil
}

func (a *OrchestraAgent) synthesize(ctx context.Context, input string, stepResults []string, emit func(Event)) (string, int, error) {
	if len(stepResults) == 0 {
		return "", 0, fmt.Errorf("no steps produced results")
	}

	messages := []llms.Message{{
		Role:    llms.RoleUser,
		Content: fmt.Sprintf(reporterPromptFormat, input, strings.Join(stepResults, "\n---\n")),
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
