package usecase

import (
	"strings"

	"finnguide/internal/domain"
)

const promptHeader = `You are an assistant helping international students who want to study in Finland.
Answer the following questions as best you can, in a kind and informative manner.
If the query is related to applying for an apartment, use the tool "Apartment assistant".
If the query is related to a resident permit, use the tool "Resident permit assistant".
If the query is related to study programmes, use the tool "Study programme selection assistant".
If the question is about you, feel free to answer it directly.
If you are uncertain or there is no matching answer and the question is related to studying in Finland, use the
tool "DuckDuckGo Search" to search for information on the web.
If the question is not at all related to studying in Finland, the needs of international students nor about you,
apologetically inform that you are meant to answer questions related to studying in Finland.
If you encounter an invalid input or get stuck in a loop, break out by providing a helpful statement or asking a clarifying question.

Answer the following questions as best you can. You have access to the following tools:
`

const promptFormat = `
Use the following format:

Question: the input question you must answer

Thought: you should always think about what to do

Action: the action to take, should be one of [{tool_names}]

Action Input: the input to the action

Observation: the result of the action

... (this Thought/Action/Action Input/Observation can repeat N times)

Thought: I now know the final answer

Final Answer: the final answer to the original input question

`

// PromptInput holds the values substituted into the instruction prompt.
type PromptInput struct {
	Tools      []domain.Tool
	History    *domain.Exchange
	Question   string
	Scratchpad string
}

// RenderPrompt builds the full instruction prompt for one model call.
func RenderPrompt(in PromptInput) string {
	var sb strings.Builder
	sb.WriteString(promptHeader)

	sb.WriteString("[")
	for i, t := range in.Tools {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(t.Name())
		sb.WriteString(": ")
		sb.WriteString(strings.TrimSpace(t.Description()))
	}
	sb.WriteString("]\n")

	sb.WriteString(strings.Replace(promptFormat, "{tool_names}", toolNames(in.Tools), 1))

	if in.History != nil {
		sb.WriteString("Previous conversation:\n")
		sb.WriteString("Human: ")
		sb.WriteString(in.History.Input)
		sb.WriteString("\nAI: ")
		sb.WriteString(in.History.Output)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Begin!\n\nQuestion: ")
	sb.WriteString(in.Question)
	sb.WriteString("\n\nThought:")
	sb.WriteString(in.Scratchpad)
	return sb.String()
}

// toolNames joins tool names the way the prompt and the unknown-tool
// observation list them.
func toolNames(tools []domain.Tool) string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name()
	}
	return strings.Join(names, ", ")
}

// formatScratchpad renders completed steps as the Thought/Action/Observation
// transcript appended after the prompt's final "Thought:".
func formatScratchpad(steps []domain.AgentStep) string {
	var sb strings.Builder
	for _, s := range steps {
		sb.WriteString(s.Action.Log)
		sb.WriteString("\nObservation: ")
		sb.WriteString(s.Observation)
		sb.WriteString("\nThought: ")
	}
	return sb.String()
}
