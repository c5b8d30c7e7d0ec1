package guard

import (
	"context"

	"github.com/schemaflow-ai/schemaflow/pkg/observability"
	"github.com/schemaflow-ai/schemaflow/pkg/tools"
)

// RuleSet names the tool classes the guard watches.
type RuleSet struct {
	// SchemaChanging tools flip the session into StateSchemaChanged
	// before they run.
	SchemaChanging map[string]bool

	// DataReading tools are refused while a schema change is pending
	// and mark the session read-observed when they succeed.
	DataReading map[string]bool

	// GuardedExec tools additionally require an observed data read.
	GuardedExec map[string]bool
}

// DefaultRuleSet covers the mysql toolkit's tools plus the command
// executor.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		SchemaChanging: map[string]bool{
			"generate_er_mermaid": true,
			"set_active_tables":   true,
		},
		DataReading: map[string]bool{
			"exec_sql":         true,
			"export_query_tsv": true,
		},
		GuardedExec: map[string]bool{
			"execute_command": true,
		},
	}
}

// Middleware wires a Guard into a tool registry's execution chain.
// Refusals are delivered as unsuccessful tool results, not Go errors,
// so the agent loop can surface them to the model.
func Middleware(g *Guard, rules RuleSet) tools.Middleware {
	return func(next tools.Handler) tools.Handler {
		return func(ctx context.Context, toolName string, args map[string]any) (tools.ToolResult, error) {
			switch {
			case rules.DataReading[toolName]:
				if refusal := g.CheckRead(); refusal != nil {
					return refuse(toolName, refusal), nil
				}
				result, err := next(ctx, toolName, args)
				if err == nil && result.Success {
					g.NoteDataRead()
				}
				return result, err

			case rules.GuardedExec[toolName]:
				if refusal := g.CheckExec(); refusal != nil {
					return refuse(toolName, refusal), nil
				}
				return next(ctx, toolName, args)

			case rules.SchemaChanging[toolName]:
				g.NoteSchemaChange()
				return next(ctx, toolName, args)

			default:
				return next(ctx, toolName, args)
			}
		}
	}
}

func refuse(toolName string, refusal *Refusal) tools.ToolResult {
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordGuardRefusal(toolName, refusal.Code)
	}
	return tools.ToolResult{
		Success:  false,
		Error:    refusal.Code,
		Content:  refusal.Message,
		ToolName: toolName,
		Metadata: map[string]any{"guard_state": refusal.Code},
	}
}
