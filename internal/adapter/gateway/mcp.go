package gateway

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"finnguide/internal/domain"
	"finnguide/internal/usecase"
)

const mcpAskTool = "ask"

// newMCPServer exposes the assistant and each of its search tools as MCP
// tools.
func newMCPServer(agent Asker, tools domain.ToolExecutor, version string, logger *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"finnguide",
		version,
		server.WithToolCapabilities(true),
	)

	askTool := mcp.NewTool(mcpAskTool,
		mcp.WithDescription("Ask the Finland study assistant a question about housing, residence permits or study programmes. Returns the assistant's final answer."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question, in natural language"),
		),
	)
	s.AddTool(askTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question := req.GetString("question", "")
		if strings.TrimSpace(question) == "" {
			return mcp.NewToolResultError("question parameter is required"), nil
		}
		answer, err := agent.Ask(ctx, question, nil)
		if err != nil {
			logger.WarnContext(ctx, "mcp ask failed", "error", err)
			return mcp.NewToolResultError(usecase.UnavailableAnswer), nil
		}
		return mcp.NewToolResultText(answer.Output), nil
	})

	for _, t := range tools.List() {
		tool := mcp.NewTool(mcpToolName(t.Name()),
			mcp.WithDescription(t.Description()),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Search phrase"),
			),
		)
		s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			query := req.GetString("query", "")
			if strings.TrimSpace(query) == "" {
				return mcp.NewToolResultError("query parameter is required"), nil
			}
			return mcp.NewToolResultText(t.Run(ctx, query)), nil
		})
	}
	return s
}

// mcpToolName turns a display name such as "DuckDuckGo Search" into
// "duckduckgo_search".
func mcpToolName(name string) string {
	var sb strings.Builder
	underscore := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(unicode.ToLower(r))
			underscore = false
		case !underscore && sb.Len() > 0:
			sb.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(sb.String(), "_")
}
