package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finnguide/internal/domain"
)

func newTestAgent(llm domain.LLMProvider, tools domain.ToolExecutor, opts ...func(*AgentDeps)) *Agent {
	deps := AgentDeps{
		LLM:    llm,
		Tools:  tools,
		Memory: NewConversationWindow(),
		Logger: newTestLogger(),
	}
	for _, o := range opts {
		o(&deps)
	}
	return NewAgent(deps)
}

func TestAskUnrelatedQuestionAnswersWithoutTools(t *testing.T) {
	tools, byName := studyTools()
	llm := &scriptedLLM{replies: []string{
		" The question is not related to studying in Finland.\nFinal Answer: I'm sorry, I am meant to answer questions related to studying in Finland.",
	}}
	var out collector

	answer, err := newTestAgent(llm, tools).Ask(context.Background(), "What is the capital of France?", out.emit)
	require.NoError(t, err)

	prompt := llm.prompts()[0]
	assert.Contains(t, prompt, "If the question is not at all related to studying in Finland")
	assert.Contains(t, prompt, "apologetically inform that you are meant to answer questions related to studying in Finland.")
	assert.True(t, strings.HasSuffix(prompt, "Question: What is the capital of France?\n\nThought:"))

	assert.Equal(t, "I'm sorry, I am meant to answer questions related to studying in Finland.", answer.Output)
	assert.Equal(t, answer.Output, out.text())
	assert.Empty(t, answer.Steps)
	for name, tool := range byName {
		assert.Empty(t, tool.calls(), name)
	}
}

func TestAskRequestShape(t *testing.T) {
	tools, _ := studyTools()
	llm := &scriptedLLM{replies: []string{"Final Answer: hi"}}
	a := newTestAgent(llm, tools, func(d *AgentDeps) {
		d.Temperature = 0
		d.MaxTokens = 256
	})

	_, err := a.Ask(context.Background(), "hello", nil)
	require.NoError(t, err)

	require.Len(t, llm.requests, 1)
	req := llm.requests[0]
	require.Len(t, req.Messages, 1)
	assert.Equal(t, domain.RoleUser, req.Messages[0].Role)
	assert.Equal(t, []string{"\nObservation"}, req.Stop)
	assert.Zero(t, req.Temperature)
	assert.Equal(t, 256, req.MaxTokens)
	assert.False(t, req.Stream)
}

func TestAskRunsToolThenAnswers(t *testing.T) {
	tools, byName := studyTools()
	first := " I should look up HOAS.\nAction: Apartment assistant\nAction Input: \"how to apply for HOAS apartment\""
	llm := &scriptedLLM{replies: []string{
		first,
		" I now know the final answer\nFinal Answer: Apply online on the HOAS website.",
	}}

	answer, err := newTestAgent(llm, tools).Ask(context.Background(), "How do I get an apartment?", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"how to apply for HOAS apartment"}, byName["Apartment assistant"].calls())
	require.Len(t, answer.Steps, 1)
	assert.Equal(t, "Apartment assistant", answer.Steps[0].Action.Tool)
	assert.Equal(t, "HOAS apartments are applied for online.\n", answer.Steps[0].Observation)
	assert.Equal(t, "Apply online on the HOAS website.", answer.Output)
	assert.Equal(t, 30, answer.Usage.TotalTokens)

	prompts := llm.prompts()
	require.Len(t, prompts, 2)
	wantScratchpad := "Thought:" + first + "\nObservation: HOAS apartments are applied for online.\n\nThought: "
	assert.True(t, strings.HasSuffix(prompts[1], wantScratchpad), prompts[1])
}

func TestAskUnknownToolObservation(t *testing.T) {
	tools, _ := studyTools()
	llm := &scriptedLLM{replies: []string{
		"Action: Weather assistant\nAction Input: Helsinki",
		"Final Answer: I cannot check the weather.",
	}}

	answer, err := newTestAgent(llm, tools).Ask(context.Background(), "Weather?", nil)
	require.NoError(t, err)

	require.Len(t, answer.Steps, 1)
	assert.Equal(t,
		"Weather assistant is not a valid tool, try one of [Apartment assistant, Resident permit assistant, Study programme selection assistant, DuckDuckGo Search].",
		answer.Steps[0].Observation)
}

func TestAskParseErrorIsFedBack(t *testing.T) {
	tools, _ := studyTools()
	llm := &scriptedLLM{replies: []string{
		"I am not sure what to do.",
		"Final Answer: Could you clarify your question?",
	}}

	answer, err := newTestAgent(llm, tools).Ask(context.Background(), "???", nil)
	require.NoError(t, err)

	require.Len(t, answer.Steps, 1)
	assert.Equal(t, "_Exception", answer.Steps[0].Action.Tool)
	assert.Equal(t, missingActionObservation, answer.Steps[0].Observation)
	assert.Contains(t, llm.prompts()[1],
		"I am not sure what to do.\nObservation: Invalid Format: Missing 'Action:' after 'Thought:'\nThought: ")
}

func TestAskIterationCap(t *testing.T) {
	tools, byName := studyTools()
	llm := &scriptedLLM{replies: []string{"Action: DuckDuckGo Search\nAction Input: Finland"}}
	var out collector

	answer, err := newTestAgent(llm, tools, func(d *AgentDeps) { d.MaxIterations = 3 }).
		Ask(context.Background(), "loop forever", out.emit)
	require.NoError(t, err)

	assert.True(t, answer.Stopped)
	assert.Equal(t, StoppedAnswer, answer.Output)
	assert.Equal(t, StoppedAnswer, out.text())
	assert.Len(t, llm.requests, 3)
	assert.Len(t, byName["DuckDuckGo Search"].calls(), 3)
}

func TestAskDefaultIterationCap(t *testing.T) {
	assert.Equal(t, 15, NewAgent(AgentDeps{}).deps.MaxIterations)
}

func TestAskTimeoutStops(t *testing.T) {
	tools, _ := studyTools()
	llm := &scriptedLLM{chat: func(ctx context.Context, _ domain.ChatRequest) (*domain.ChatResponse, error) {
		<-ctx.Done()
		return nil, domain.NewDomainError("scripted", domain.ErrTimeout, ctx.Err().Error())
	}}
	var out collector

	answer, err := newTestAgent(llm, tools, func(d *AgentDeps) { d.Timeout = 30 * time.Millisecond }).
		Ask(context.Background(), "slow", out.emit)
	require.NoError(t, err)

	assert.True(t, answer.Stopped)
	assert.Equal(t, StoppedAnswer, out.text())
}

func TestAskLLMFailure(t *testing.T) {
	tools, _ := studyTools()
	llm := &scriptedLLM{err: domain.NewDomainError("azure", domain.ErrRateLimit, "HTTP 429")}
	window := NewConversationWindow()
	var out collector

	a := newTestAgent(llm, tools, func(d *AgentDeps) { d.Memory = window })
	answer, err := a.Ask(context.Background(), "Hi", out.emit)

	require.Error(t, err)
	assert.Nil(t, answer)
	assert.True(t, errors.Is(err, domain.ErrRateLimit))
	assert.Empty(t, out.text())
	assert.Nil(t, window.Load())
}

func TestAskCancelledContext(t *testing.T) {
	tools, _ := studyTools()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestAgent(&scriptedLLM{replies: []string{"Final Answer: x"}}, tools).Ask(ctx, "Hi", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAskEmptyFinalAnswer(t *testing.T) {
	tools, _ := studyTools()
	var out collector

	answer, err := newTestAgent(&scriptedLLM{replies: []string{"Final Answer:   "}}, tools).
		Ask(context.Background(), "Hi", out.emit)
	require.NoError(t, err)

	assert.Equal(t, EmptyAnswer, answer.Output)
	assert.Equal(t, EmptyAnswer, out.text())
}

func TestAskStreamsFinalAnswerAcrossChunks(t *testing.T) {
	tools, _ := studyTools()
	llm := &scriptedStreamLLM{
		scriptedLLM: scriptedLLM{replies: []string{
			"Action: Study programme selection assistant\nAction Input: computer science",
			" I now know the final answer\nFinal Answer: Browse programmes on Studyinfo.\n\n",
		}},
		chunkSize: 3,
	}
	var out collector

	answer, err := newTestAgent(llm, tools).Ask(context.Background(), "Which programme?", out.emit)
	require.NoError(t, err)

	assert.Equal(t, "Browse programmes on Studyinfo.", answer.Output)
	assert.Equal(t, answer.Output, out.text())
	assert.Greater(t, len(out.chunks), 1)
	assert.NotContains(t, out.text(), "Final Answer")
	for _, r := range llm.requests {
		assert.True(t, r.Stream)
	}
}

func TestAskStreamInterrupted(t *testing.T) {
	tools, _ := studyTools()
	llm := &scriptedStreamLLM{
		scriptedLLM: scriptedLLM{replies: []string{"Final Answer: this will break off"}},
		chunkSize:   4,
		failAfter:   2,
	}

	_, err := newTestAgent(llm, tools).Ask(context.Background(), "Hi", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProviderError))
}

type nonStreamingWrapper struct {
	*scriptedStreamLLM
}

func (nonStreamingWrapper) Streams() bool { return false }

func TestAskHonoursStreamsCapability(t *testing.T) {
	tools, _ := studyTools()
	inner := &scriptedStreamLLM{scriptedLLM: scriptedLLM{replies: []string{"Final Answer: plain"}}, chunkSize: 1}
	var out collector

	answer, err := newTestAgent(nonStreamingWrapper{inner}, tools).Ask(context.Background(), "Hi", out.emit)
	require.NoError(t, err)

	assert.Equal(t, "plain", answer.Output)
	assert.Equal(t, []string{"plain"}, out.chunks)
	assert.False(t, inner.requests[0].Stream)
}

func TestAskRemembersOnlyLastExchange(t *testing.T) {
	tools, _ := studyTools()
	llm := &scriptedLLM{replies: []string{
		"Final Answer: Apply via HOAS.",
		"Final Answer: Use Enter Finland.",
		"Final Answer: Studyinfo.",
	}}
	window := NewConversationWindow()
	a := newTestAgent(llm, tools, func(d *AgentDeps) { d.Memory = window })

	for _, q := range []string{"apartment?", "permit?", "programme?"} {
		_, err := a.Ask(context.Background(), q, nil)
		require.NoError(t, err)
	}

	prompts := llm.prompts()
	assert.NotContains(t, prompts[0], "Previous conversation:")
	assert.Contains(t, prompts[1], "Previous conversation:\nHuman: apartment?\nAI: Apply via HOAS.\n\nBegin!")
	assert.Contains(t, prompts[2], "Human: permit?\nAI: Use Enter Finland.")
	assert.NotContains(t, prompts[2], "apartment?")

	last := window.Load()
	require.NotNil(t, last)
	assert.Equal(t, "programme?", last.Input)
	assert.Equal(t, "Studyinfo.", last.Output)
}

func TestAskCutsReplyAtStopSequence(t *testing.T) {
	tools, byName := studyTools()
	llm := &scriptedLLM{replies: []string{
		"Action: DuckDuckGo Search\nAction Input: Finland\nObservation: made up result",
		"Final Answer: done",
	}}

	answer, err := newTestAgent(llm, tools).Ask(context.Background(), "q", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Finland"}, byName["DuckDuckGo Search"].calls())
	assert.NotContains(t, answer.Steps[0].Action.Log, "made up result")
}

func TestAskStreamStopsAtObservation(t *testing.T) {
	tools, _ := studyTools()
	llm := &scriptedStreamLLM{
		scriptedLLM: scriptedLLM{replies: []string{"Final Answer: Hello\nObservation: junk"}},
		chunkSize:   4,
	}
	var out collector

	answer, err := newTestAgent(llm, tools).Ask(context.Background(), "Hi", out.emit)
	require.NoError(t, err)

	assert.Equal(t, "Hello", answer.Output)
	assert.Equal(t, "Hello", out.text())
}

func TestAskStreamHoldsSecondFinalAnswer(t *testing.T) {
	tools, _ := studyTools()
	llm := &scriptedStreamLLM{
		scriptedLLM: scriptedLLM{replies: []string{"Final Answer: A\nThought: hmm\nFinal Answer: B"}},
		chunkSize:   4,
	}
	var out collector

	answer, err := newTestAgent(llm, tools).Ask(context.Background(), "Hi", out.emit)
	require.NoError(t, err)

	assert.Equal(t, "B", answer.Output)
	assert.NotContains(t, out.text(), "Thought")
	assert.NotContains(t, out.text(), finalAnswerMarker)
	assert.True(t, strings.HasSuffix(out.text(), "B"))
}

func TestAskActionWithFinalAnswerIsRetried(t *testing.T) {
	tools, byName := studyTools()
	llm := &scriptedStreamLLM{
		scriptedLLM: scriptedLLM{replies: []string{
			" think\nAction: DuckDuckGo Search\nAction Input: Finland\nFinal Answer: made up",
			"Final Answer: Real answer.",
		}},
		chunkSize: 4,
	}
	var out collector

	answer, err := newTestAgent(llm, tools).Ask(context.Background(), "q", out.emit)
	require.NoError(t, err)

	assert.Equal(t, "Real answer.", answer.Output)
	assert.Equal(t, "Real answer.", out.text())
	assert.Empty(t, byName["DuckDuckGo Search"].calls())
	require.Len(t, answer.Steps, 1)
	assert.Equal(t, parseErrorTool, answer.Steps[0].Action.Tool)
	assert.Equal(t, invalidResponseObservation, answer.Steps[0].Observation)
}

func TestAskFinalAnswerFollowedByActionIsRetried(t *testing.T) {
	tools, byName := studyTools()
	llm := &scriptedStreamLLM{
		scriptedLLM: scriptedLLM{replies: []string{
			"Final Answer: maybe\nAction: DuckDuckGo Search\nAction Input: Kela",
			"Final Answer: Real answer.",
		}},
		chunkSize: 4,
	}
	var out collector

	answer, err := newTestAgent(llm, tools).Ask(context.Background(), "q", out.emit)
	require.NoError(t, err)

	assert.Equal(t, "Real answer.", answer.Output)
	assert.Empty(t, byName["DuckDuckGo Search"].calls())
	assert.NotContains(t, out.text(), "Action")
	assert.True(t, strings.HasSuffix(out.text(), "\n\nReal answer."))
}
