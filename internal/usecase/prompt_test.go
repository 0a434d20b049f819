package usecase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"finnguide/internal/domain"
)

func TestRenderPromptTools(t *testing.T) {
	tools, _ := studyTools()
	prompt := RenderPrompt(PromptInput{Tools: tools, Question: "Where do I live?"})

	assert.Contains(t, prompt, "You have access to the following tools:\n"+
		"[Apartment assistant: Useful when you need to answer questions related to apply an apartment in Finland.\n"+
		"Resident permit assistant: Useful when you need to answer questions related to apply a Finnish resident permit .\n"+
		"Study programme selection assistant: Useful when you need to answer questions related to select a study programme in Finland.\n"+
		"DuckDuckGo Search: Useful to browse information from the Internet.]\n")
	assert.Contains(t, prompt, "Action: the action to take, should be one of "+
		"[Apartment assistant, Resident permit assistant, Study programme selection assistant, DuckDuckGo Search]")
	assert.NotContains(t, prompt, "{tool_names}")
}

func TestRenderPromptGrammarAndRouting(t *testing.T) {
	tools, _ := studyTools()
	prompt := RenderPrompt(PromptInput{Tools: tools, Question: "q"})

	for _, want := range []string{
		"You are an assistant helping international students who want to study in Finland.",
		`If the query is related to applying for an apartment, use the tool "Apartment assistant".`,
		`If the query is related to a resident permit, use the tool "Resident permit assistant".`,
		`If the query is related to study programmes, use the tool "Study programme selection assistant".`,
		`tool "DuckDuckGo Search" to search for information on the web.`,
		"If you encounter an invalid input or get stuck in a loop",
		"Question: the input question you must answer",
		"Action Input: the input to the action",
		"... (this Thought/Action/Action Input/Observation can repeat N times)",
		"Thought: I now know the final answer",
		"Final Answer: the final answer to the original input question",
	} {
		assert.Contains(t, prompt, want)
	}
	assert.NotContains(t, prompt, "Previous conversation:")
	assert.True(t, strings.HasSuffix(prompt, "Begin!\n\nQuestion: q\n\nThought:"))
}

func TestRenderPromptHistoryAndScratchpad(t *testing.T) {
	tools, _ := studyTools()
	prompt := RenderPrompt(PromptInput{
		Tools:      tools,
		History:    &domain.Exchange{Input: "Is HOAS expensive?", Output: "Rents start around 300 euros."},
		Question:   "How do I apply?",
		Scratchpad: " Let me check.",
	})

	assert.Contains(t, prompt,
		"Previous conversation:\nHuman: Is HOAS expensive?\nAI: Rents start around 300 euros.\n\nBegin!\n\nQuestion: How do I apply?")
	assert.True(t, strings.HasSuffix(prompt, "Thought: Let me check."))
}

func TestFormatScratchpad(t *testing.T) {
	steps := []domain.AgentStep{
		{Action: domain.AgentAction{Log: " I search.\nAction: A\nAction Input: x"}, Observation: "found x\n"},
		{Action: domain.AgentAction{Log: "Action: B\nAction Input: y"}, Observation: "found y"},
	}

	want := " I search.\nAction: A\nAction Input: x\nObservation: found x\n\nThought: " +
		"Action: B\nAction Input: y\nObservation: found y\nThought: "
	assert.Equal(t, want, formatScratchpad(steps))
	assert.Empty(t, formatScratchpad(nil))
}
