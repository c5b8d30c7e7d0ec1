package tools

import (
	"context"
	"encoding/json"
	"time"
)

// FuncTool adapts a plain function into a Tool. String return values
// become the result content directly; anything else is JSON-encoded.
type FuncTool struct {
	info ToolInfo
	fn   func(ctx context.Context, args map[string]any) (any, error)
}

func NewFuncTool(info ToolInfo, fn func(ctx context.Context, args map[string]any) (any, error)) *FuncTool {
	return &FuncTool{info: info, fn: fn}
}

func (t *FuncTool) GetInfo() ToolInfo {
	return t.info
}

func (t *FuncTool) GetName() string {
	return t.info.Name
}

func (t *FuncTool) GetDescription() string {
	return t.info.Description
}

func (t *FuncTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	start := time.Now()
	out, err := t.fn(ctx, args)
	elapsed := time.Since(start)

	if err != nil {
		return ToolResult{
			Success:       false,
			Error:         err.Error(),
			ToolName:      t.info.Name,
			ExecutionTime: elapsed,
		}, err
	}

	result := ToolResult{
		Success:       true,
		Output:        out,
		ToolName:      t.info.Name,
		ExecutionTime: elapsed,
	}

	switch v := out.(type) {
	case nil:
	case string:
		result.Content = v
	default:
		if encoded, jsonErr := json.Marshal(v); jsonErr == nil {
			result.Content = string(encoded)
		}
	}

	return result, nil
}
