package domain

import "context"

// Tool is a named capability the agent may invoke by writing
// "Action: <name>" in its reasoning.
//
// Run never fails: problems are reported as text so the agent can keep
// reasoning about them.
type Tool interface {
	Name() string
	Description() string
	Run(ctx context.Context, input string) string
}

// ToolExecutor abstracts tool lookup.
type ToolExecutor interface {
	Get(name string) (Tool, error)
	// List returns the tools in registration order.
	List() []Tool
}
