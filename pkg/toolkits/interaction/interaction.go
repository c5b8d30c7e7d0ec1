// Package interaction exposes the ask_user tool, backed by an injected
// Interactor so transports (terminal, websocket) decide how a question
// reaches the human.
package interaction

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/schemaflow-ai/schemaflow/pkg/tools"
)

// Kind tags what a prompt is for, so transports and guards can react to
// structured prompts without inspecting question text.
type Kind string

const (
	// KindFreeform is an ordinary clarification question.
	KindFreeform Kind = "freeform"

	// KindSchemaConfirm asks the user to confirm a freshly generated
	// schema diagram before analysis continues.
	KindSchemaConfirm Kind = "schema_confirm"
)

// Prompt is a question for the human operator.
type Prompt struct {
	Question string `json:"question"`
	Kind     Kind   `json:"kind"`
}

// Interactor delivers a prompt to the human and returns their answer.
type Interactor interface {
	Ask(ctx context.Context, prompt Prompt) (string, error)
}

// Toolkit exposes ask_user over an Interactor.
type Toolkit struct {
	interactor Interactor
	source     *tools.LocalToolSource
}

// New creates the toolkit. The interactor is required; a nil interactor
// makes every ask_user call fail.
func New(interactor Interactor) *Toolkit {
	t := &Toolkit{interactor: interactor}
	t.source = t.buildTools()
	return t
}

// GetName implements tools.ToolSource.
func (t *Toolkit) GetName() string {
	return "interaction"
}

// GetType implements tools.ToolSource.
func (t *Toolkit) GetType() string {
	return "toolkit"
}

// DiscoverTools implements tools.ToolSource.
func (t *Toolkit) DiscoverTools(ctx context.Context) error {
	return nil
}

// ListTools implements tools.ToolSource.
func (t *Toolkit) ListTools() []tools.ToolInfo {
	return t.source.ListTools()
}

// GetTool implements tools.ToolSource.
func (t *Toolkit) GetTool(name string) (tools.Tool, bool) {
	return t.source.GetTool(name)
}

func (t *Toolkit) buildTools() *tools.LocalToolSource {
	source := tools.NewLocalToolSource("interaction")

	info := tools.ToolInfo{
		Name:        "ask_user",
		Description: "Ask the user a question and wait for their answer. Use kind=schema_confirm when asking the user to confirm a generated schema diagram.",
		Parameters: []tools.ToolParameter{
			{Name: "question", Type: "string", Description: "Question to ask", Required: true},
			{Name: "kind", Type: "string", Description: "Purpose of the question", Enum: []string{string(KindFreeform), string(KindSchemaConfirm)}, Default: string(KindFreeform)},
		},
	}

	_ = source.RegisterTool(tools.NewFuncTool(info, func(ctx context.Context, args map[string]any) (any, error) {
		question, _ := args["question"].(string)
		if question == "" {
			return nil, fmt.Errorf("question parameter is required")
		}
		if t.interactor == nil {
			return nil, fmt.Errorf("no interactor configured for ask_user")
		}

		kind := KindFreeform
		if k, _ := args["kind"].(string); k != "" {
			kind = Kind(k)
		}

		return t.interactor.Ask(ctx, Prompt{Question: question, Kind: kind})
	}))

	return source
}

// TerminalInteractor prompts on a terminal and reads one answer line.
type TerminalInteractor struct {
	in  *bufio.Reader
	out io.Writer
}

func NewTerminalInteractor(in io.Reader, out io.Writer) *TerminalInteractor {
	return &TerminalInteractor{in: bufio.NewReader(in), out: out}
}

func (t *TerminalInteractor) Ask(ctx context.Context, prompt Prompt) (string, error) {
	fmt.Fprintf(t.out, "\n%s\n> ", prompt.Question)

	type answer struct {
		text string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := t.in.ReadString('\n')
		ch <- answer{strings.TrimSpace(line), err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a := <-ch:
		if a.err != nil && a.text == "" {
			return "", a.err
		}
		return a.text, nil
	}
}
