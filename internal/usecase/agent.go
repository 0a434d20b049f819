package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"finnguide/internal/domain"
	"finnguide/internal/infra/tracer"
)

const (
	defaultMaxIterations = 15
	stopSequence         = "\nObservation"
	parseErrorTool       = "_Exception"
)

// Fixed answers.
const (
	// StoppedAnswer is given when the loop hits its iteration cap or timeout.
	StoppedAnswer = "Agent stopped due to iteration limit or time limit."
	// EmptyAnswer replaces a final answer that came back blank.
	EmptyAnswer = "Sorry, I could not come up with an answer. Could you rephrase your question?"
	// UnavailableAnswer is shown to users when Ask returns an error.
	UnavailableAnswer = "Sorry, I am unable to answer right now. Please try again later."
)

// AgentDeps holds injected dependencies for the agent.
type AgentDeps struct {
	LLM           domain.LLMProvider
	Tools         domain.ToolExecutor
	Memory        *ConversationWindow // optional, nil = no conversation window
	Logger        *slog.Logger
	MaxIterations int
	Temperature   float64
	MaxTokens     int           // 0 = provider default
	Timeout       time.Duration // 0 = no limit
}

// Agent runs the reason-then-act loop for one question at a time. It is
// safe for concurrent use.
type Agent struct {
	deps AgentDeps
}

// NewAgent creates an agent with the given dependencies.
func NewAgent(deps AgentDeps) *Agent {
	if deps.MaxIterations <= 0 {
		deps.MaxIterations = defaultMaxIterations
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Agent{deps: deps}
}

// Answer is the outcome of one Ask call.
type Answer struct {
	Output  string
	Steps   []domain.AgentStep
	Usage   domain.Usage
	Stopped bool
}

// Ask answers query. Text of the final answer is passed to emit as the
// model produces it; emit may be nil. Concatenating every emitted chunk
// yields Answer.Output.
//
// An error is returned only when the language model cannot be reached or
// ctx is cancelled; nothing more is emitted in that case.
func (a *Agent) Ask(ctx context.Context, query string, emit func(string)) (*Answer, error) {
	const op = "Agent.Ask"

	ctx, span := tracer.StartSpan(ctx, "agent.ask",
		trace.WithAttributes(tracer.IntAttr("query.chars", len(query))),
	)
	defer span.End()

	loopCtx := ctx
	if a.deps.Timeout > 0 {
		var cancel context.CancelFunc
		loopCtx, cancel = context.WithTimeout(ctx, a.deps.Timeout)
		defer cancel()
	}

	tools := a.deps.Tools.List()
	var history *domain.Exchange
	if a.deps.Memory != nil {
		history = a.deps.Memory.Load()
	}

	stream := newAnswerStream(emit)
	answer := &Answer{}

	for i := 0; i < a.deps.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			tracer.RecordError(span, err)
			return nil, domain.WrapOp(op, err)
		}
		if loopCtx.Err() != nil {
			break
		}
		span.AddEvent("agent.iteration", trace.WithAttributes(tracer.IntAttr("iteration", i)))

		prompt := RenderPrompt(PromptInput{
			Tools:      tools,
			History:    history,
			Question:   query,
			Scratchpad: formatScratchpad(answer.Steps),
		})

		stream.Reset()
		text, usage, err := a.callLLM(loopCtx, prompt, stream, i)
		answer.Usage.Add(usage)
		if err != nil {
			if ctx.Err() == nil && errors.Is(loopCtx.Err(), context.DeadlineExceeded) {
				break
			}
			tracer.RecordError(span, err)
			a.deps.Logger.ErrorContext(ctx, "llm call failed",
				"iteration", i, "error", err, "code", domain.ErrorCodeOf(err))
			return nil, domain.WrapOp(op, err)
		}

		action, finish, err := ParseOutput(text)
		switch {
		case finish != nil:
			a.finish(ctx, query, finish.Output, stream, answer)
			span.SetAttributes(tracer.IntAttr("agent.iterations", i+1))
			tracer.SetOK(span)
			return answer, nil

		case err != nil:
			var pe *ParseError
			errors.As(err, &pe)
			a.deps.Logger.DebugContext(ctx, "unparseable llm output",
				"iteration", i, "observation", pe.Observation)
			if sent := stream.Sent(); sent != "" {
				a.deps.Logger.WarnContext(ctx, "streamed text from an unparseable reply",
					"iteration", i, "streamed_chars", len(sent))
			}
			answer.Steps = append(answer.Steps, domain.AgentStep{
				Action:      domain.AgentAction{Tool: parseErrorTool, ToolInput: pe.Observation, Log: text},
				Observation: pe.Observation,
			})

		default:
			obs := a.runTool(loopCtx, *action, tools)
			answer.Steps = append(answer.Steps, domain.AgentStep{Action: *action, Observation: obs})
		}
	}

	answer.Stopped = true
	a.deps.Logger.WarnContext(ctx, "agent stopped before a final answer",
		"iterations", len(answer.Steps), "max_iterations", a.deps.MaxIterations,
		"timed_out", loopCtx.Err() != nil)
	a.finish(ctx, query, StoppedAnswer, stream, answer)
	span.SetAttributes(tracer.IntAttr("agent.iterations", len(answer.Steps)))
	tracer.SetOK(span)
	return answer, nil
}

// finish forwards the rest of output, remembers the exchange and fills in
// answer.
func (a *Agent) finish(ctx context.Context, query, output string, stream *answerStream, answer *Answer) {
	if output == "" {
		output = EmptyAnswer
	}
	if !stream.Finish(output) {
		a.deps.Logger.WarnContext(ctx, "streamed text diverged from final answer",
			"streamed_chars", len(stream.Sent()))
		stream.forward("\n\n" + output)
	}
	answer.Output = output

	if a.deps.Memory != nil {
		a.deps.Memory.Save(query, output)
	}

	a.deps.Logger.InfoContext(ctx, "agent answered",
		"steps", len(answer.Steps),
		"stopped", answer.Stopped,
		"tokens", answer.Usage.TotalTokens,
	)
}

// callLLM sends one prompt and returns the reply, cut at the stop sequence.
func (a *Agent) callLLM(ctx context.Context, prompt string, stream *answerStream, iteration int) (string, domain.Usage, error) {
	ctx, span := tracer.StartSpan(ctx, "agent.llm_call",
		trace.WithAttributes(
			tracer.IntAttr("agent.iteration", iteration),
			tracer.StringAttr("llm.provider", a.deps.LLM.Name()),
		),
	)
	defer span.End()

	req := domain.ChatRequest{
		Messages: []domain.Message{{
			Role:      domain.RoleUser,
			Content:   prompt,
			Timestamp: time.Now(),
		}},
		MaxTokens:   a.deps.MaxTokens,
		Temperature: a.deps.Temperature,
		Stop:        []string{stopSequence},
	}

	var (
		text  string
		usage domain.Usage
		err   error
	)
	if domain.CanStream(a.deps.LLM) {
		text, usage, err = a.chatStream(ctx, req, stream)
	} else {
		var resp *domain.ChatResponse
		resp, err = a.deps.LLM.Chat(ctx, req)
		if err == nil {
			text, usage = resp.Message.Content, resp.Usage
		}
	}
	if err != nil {
		tracer.RecordError(span, err)
		return "", usage, err
	}

	if idx := strings.Index(text, stopSequence); idx >= 0 {
		text = text[:idx]
	}
	span.SetAttributes(tracer.IntAttr("llm.total_tokens", usage.TotalTokens))
	tracer.SetOK(span)
	return text, usage, nil
}

// chatStream collects a streamed reply, feeding every chunk to stream. The
// delta channel is always drained so the producer can exit.
func (a *Agent) chatStream(ctx context.Context, req domain.ChatRequest, stream *answerStream) (string, domain.Usage, error) {
	sp := a.deps.LLM.(domain.StreamingLLMProvider)
	req.Stream = true

	deltas, err := sp.ChatStream(ctx, req)
	if err != nil {
		return "", domain.Usage{}, err
	}

	var (
		sb    strings.Builder
		usage domain.Usage
		done  bool
	)
	for delta := range deltas {
		if delta.Err != nil {
			err = delta.Err
		}
		if delta.Content != "" {
			sb.WriteString(delta.Content)
			stream.Write(delta.Content)
		}
		if delta.Usage != nil {
			usage = *delta.Usage
		}
		if delta.Done {
			done = true
		}
	}

	switch {
	case err != nil:
		return "", usage, err
	case !done && ctx.Err() != nil:
		return "", usage, ctx.Err()
	}
	return sb.String(), usage, nil
}

// runTool executes action and returns the observation for the scratchpad.
func (a *Agent) runTool(ctx context.Context, action domain.AgentAction, tools []domain.Tool) string {
	ctx, span := tracer.StartSpan(ctx, "agent.tool",
		trace.WithAttributes(tracer.StringAttr("tool.name", action.Tool)),
	)
	defer span.End()

	tool, err := a.deps.Tools.Get(action.Tool)
	if err != nil {
		tracer.RecordError(span, err)
		a.deps.Logger.InfoContext(ctx, "model requested unknown tool", "tool", action.Tool)
		return fmt.Sprintf("%s is not a valid tool, try one of [%s].", action.Tool, toolNames(tools))
	}

	start := time.Now()
	obs := tool.Run(ctx, action.ToolInput)
	a.deps.Logger.DebugContext(ctx, "tool completed",
		"tool", action.Tool,
		"duration", time.Since(start),
		"chars", len(obs),
	)
	tracer.SetOK(span)
	return obs
}
