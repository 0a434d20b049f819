package domain

// AgentAction is the model's request to run a tool.
type AgentAction struct {
	Tool      string `json:"tool"`
	ToolInput string `json:"tool_input"`
	// Log is the raw model output the action was parsed from.
	Log string `json:"log"`
}

// AgentFinish is the model's final answer.
type AgentFinish struct {
	Output string `json:"output"`
	Log    string `json:"log"`
}

// AgentStep is one reasoning iteration: the action taken and what came back.
type AgentStep struct {
	Action      AgentAction `json:"action"`
	Observation string      `json:"observation"`
}
