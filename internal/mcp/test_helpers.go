package mcp

// In-process testing utilities for MCP tools.
//
// CallTool invokes tool handlers directly, bypassing the stdio
// transport: fast, synchronous, and with real stack traces. Error
// responses (IsError) surface as Go errors so tests can assert on them.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CallTool is a test helper method to simulate MCP tool calls
func (s *Server) CallTool(toolName string, params map[string]interface{}) (string, error) {
	ctx := context.Background()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal params: %w", err)
	}

	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      toolName,
			Arguments: paramsJSON,
		},
	}

	var result *mcp.CallToolResult

	switch toolName {
	case "info":
		result, err = s.handleInfo(ctx, req)

	case "load_text":
		result, err = s.handleLoadText(ctx, req)

	case "apply_recipe":
		result, err = s.handleApplyRecipe(ctx, req)

	case "index_offset":
		result, err = s.handleIndexOffset(ctx, req)

	case "index_range":
		result, err = s.handleIndexRange(ctx, req)

	case "segments":
		result, err = s.handleSegments(ctx, req)

	case "version":
		// Version is accessed via the info tool
		req.Params.Arguments = []byte(`{"tool": "version"}`)
		result, err = s.handleInfo(ctx, req)

	default:
		return "", fmt.Errorf("unknown tool: %s", toolName)
	}

	if err != nil {
		return "", err
	}

	if result != nil && len(result.Content) > 0 {
		if textContent, ok := result.Content[0].(*mcp.TextContent); ok {
			// Surface error responses as Go errors for test validation
			var response map[string]interface{}
			if json.Unmarshal([]byte(textContent.Text), &response) == nil {
				if success, ok := response["success"].(bool); ok && !success {
					if errorMsg, ok := response["error"].(string); ok {
						return "", fmt.Errorf("MCP error: %s", errorMsg)
					}
				}
			}
			return textContent.Text, nil
		}
	}

	return "", nil
}
