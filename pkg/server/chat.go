package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/schemaflow-ai/schemaflow/pkg/agent"
	"github.com/schemaflow-ai/schemaflow/pkg/guard"
	"github.com/schemaflow-ai/schemaflow/pkg/llms"
	"github.com/schemaflow-ai/schemaflow/pkg/session"
	"github.com/schemaflow-ai/schemaflow/pkg/toolkits/interaction"
	"github.com/schemaflow-ai/schemaflow/pkg/tools"
)

// Outgoing event types beyond the agent's own.
const (
	eventTextDelta      = agent.EventTextDelta
	eventToolCall       = agent.EventToolCall
	eventToolCallOutput = agent.EventToolCallOutput
	eventAsk            = "ask"
	eventRaw            = "raw"
	eventError          = agent.EventError
	eventFinish         = agent.EventFinish
)

// wsEvent is the JSON frame sent to the client.
type wsEvent struct {
	Type       string            `json:"type"`
	ID         string            `json:"id,omitempty"`
	Kind       string            `json:"kind,omitempty"`
	Text       string            `json:"text,omitempty"`
	ToolCall   *llms.ToolCall    `json:"tool_call,omitempty"`
	ToolResult *tools.ToolResult `json:"tool_result,omitempty"`
}

// wsMessage is the JSON frame received from the client.
type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// pendingAsk tracks an outstanding ask_user prompt.
type pendingAsk struct {
	id   string
	kind interaction.Kind
}

// ChatSession owns everything one websocket conversation needs: the
// agent instance, the guard machine, the transcript store and the
// channel an in-flight ask waits on. Nothing here is shared between
// connections.
type ChatSession struct {
	id       string
	conn     *websocket.Conn
	agent    agent.Agent
	guard    *guard.Guard
	sessions session.Service

	writeMu sync.Mutex

	askMu    sync.Mutex
	pending  *pendingAsk
	answerCh chan string
}

func newChatSession(id string, conn *websocket.Conn, sessions session.Service) *ChatSession {
	return &ChatSession{
		id:       id,
		conn:     conn,
		sessions: sessions,
		answerCh: make(chan string, 1),
	}
}

// serve reads client frames until the connection closes. Queries run
// one at a time on a separate goroutine so the read loop can keep
// delivering answers while the agent is blocked on an ask.
func (c *ChatSession) serve(ctx context.Context) {
	defer c.conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queries := make(chan string, 8)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case query, ok := <-queries:
				if !ok {
					return
				}
				c.handleQuery(ctx, query)
			}
		}
	}()

	for {
		var msg wsMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}

		switch msg.Type {
		case "answer":
			c.deliverAnswer(msg.Content)
		case "query":
			// A query typed while a question is outstanding is the answer.
			if c.askPending() {
				c.deliverAnswer(msg.Content)
				continue
			}
			select {
			case queries <- msg.Content:
			default:
				c.send(wsEvent{Type: eventError, Text: "too many queued queries"})
			}
		default:
			c.send(wsEvent{Type: eventError, Text: "unknown message type: " + msg.Type})
		}
	}

	cancel()
	close(queries)
	<-done
}

func (c *ChatSession) handleQuery(ctx context.Context, query string) {
	if err := c.sessions.AppendMessage(ctx, c.id, session.NewMessage(llms.RoleUser, query)); err != nil {
		slog.Warn("Failed to persist user message", "session", c.id, "error", err)
	}

	events, err := c.agent.RunStreaming(ctx, query)
	if err != nil {
		c.send(wsEvent{Type: eventError, Text: err.Error()})
		return
	}

	for ev := range events {
		switch ev.Type {
		case agent.EventTextDelta:
			c.send(wsEvent{Type: eventTextDelta, Text: ev.Text})

		case agent.EventToolCall:
			c.send(wsEvent{Type: eventToolCall, ToolCall: ev.ToolCall})

		case agent.EventToolCallOutput:
			c.send(wsEvent{Type: eventToolCallOutput, ToolResult: ev.ToolResult})
			// Diagram payloads go out verbatim so the client renders
			// them instead of the model paraphrasing.
			if raw, ok := renderableContent(ev.ToolResult); ok {
				c.send(wsEvent{Type: eventRaw, Text: raw})
			}

		case agent.EventError:
			c.send(wsEvent{Type: eventError, Text: ev.Text})

		case agent.EventFinish:
			if ev.Result != nil && ev.Result.Text != "" {
				if err := c.sessions.AppendMessage(ctx, c.id, session.NewMessage(llms.RoleAssistant, ev.Result.Text)); err != nil {
					slog.Warn("Failed to persist assistant message", "session", c.id, "error", err)
				}
			}
			c.send(wsEvent{Type: eventFinish, Text: ev.Text})
		}
	}
}

// Ask implements interaction.Interactor over the websocket. It parks
// the agent until the client answers; an answer to a schema_confirm
// prompt confirms the guard.
func (c *ChatSession) Ask(ctx context.Context, prompt interaction.Prompt) (string, error) {
	ask := &pendingAsk{id: uuid.NewString(), kind: prompt.Kind}

	c.askMu.Lock()
	if c.pending != nil {
		c.askMu.Unlock()
		return "", fmt.Errorf("another question is already pending")
	}
	c.pending = ask
	c.askMu.Unlock()

	defer func() {
		c.askMu.Lock()
		c.pending = nil
		c.askMu.Unlock()
	}()

	c.send(wsEvent{Type: eventAsk, ID: ask.id, Kind: string(prompt.Kind), Text: prompt.Question})

	select {
	case answer := <-c.answerCh:
		if prompt.Kind == interaction.KindSchemaConfirm && c.guard != nil {
			c.guard.Confirm()
		}
		return answer, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *ChatSession) askPending() bool {
	c.askMu.Lock()
	defer c.askMu.Unlock()
	return c.pending != nil
}

func (c *ChatSession) deliverAnswer(answer string) {
	c.askMu.Lock()
	pending := c.pending
	c.askMu.Unlock()

	if pending == nil {
		c.send(wsEvent{Type: eventError, Text: "no question is pending"})
		return
	}

	select {
	case c.answerCh <- answer:
	default:
	}
}

func (c *ChatSession) send(ev wsEvent) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(ev); err != nil {
		slog.Debug("Websocket write failed", "session", c.id, "error", err)
	}
}

// renderableContent returns diagram text the client should render
// verbatim: anything containing an erDiagram or wrapped in a mermaid
// fence. Falls back to string tool outputs when Content is empty.
func renderableContent(result *tools.ToolResult) (string, bool) {
	if result == nil {
		return "", false
	}

	candidates := []string{result.Content}
	if s, ok := result.Output.(string); ok {
		candidates = append(candidates, s)
	}

	for _, text := range candidates {
		if text == "" {
			continue
		}
		if strings.Contains(text, "erDiagram") || strings.HasPrefix(strings.TrimSpace(text), "```mermaid") {
			return text, true
		}
	}
	return "", false
}
