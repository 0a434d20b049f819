package usecase

import (
	"regexp"
	"strings"

	"finnguide/internal/domain"
)

const finalAnswerMarker = "Final Answer:"

// Observations sent back to the model when its output cannot be parsed.
const (
	missingActionObservation      = "Invalid Format: Missing 'Action:' after 'Thought:'"
	missingActionInputObservation = "Invalid Format: Missing 'Action Input:' after 'Action:'"
	invalidResponseObservation    = "Invalid or incomplete response"
)

var (
	actionRe      = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
	actionOnlyRe  = regexp.MustCompile(`Action\s*\d*\s*:`)
	actionInputRe = regexp.MustCompile(`Action\s*\d*\s*Input\s*\d*\s*:`)
)

// ParseError is returned by ParseOutput when the model's reply is neither a
// tool action nor a final answer. Observation is fed back to the model.
type ParseError struct {
	Observation string
	Output      string
}

func (e *ParseError) Error() string {
	return "could not parse llm output: " + e.Observation
}

func (e *ParseError) Unwrap() error { return domain.ErrOutputParse }

// ParseOutput interprets one model reply. Exactly one of the returned
// action and finish is non-nil when err is nil. A reply that names an
// action and also carries a final answer is a parse error; the model is
// asked to answer again.
func ParseOutput(text string) (*domain.AgentAction, *domain.AgentFinish, error) {
	m := actionRe.FindStringSubmatch(text)
	answerIdx := strings.LastIndex(text, finalAnswerMarker)

	switch {
	case m != nil && answerIdx >= 0:
		return nil, nil, &ParseError{Observation: invalidResponseObservation, Output: text}
	case m != nil:
		input := strings.Trim(strings.Trim(m[2], " "), `"`)
		return &domain.AgentAction{
			Tool:      strings.TrimSpace(m[1]),
			ToolInput: input,
			Log:       text,
		}, nil, nil
	case answerIdx >= 0:
		return nil, &domain.AgentFinish{
			Output: strings.TrimSpace(text[answerIdx+len(finalAnswerMarker):]),
			Log:    text,
		}, nil
	}

	switch {
	case !actionOnlyRe.MatchString(text):
		return nil, nil, &ParseError{Observation: missingActionObservation, Output: text}
	case !actionInputRe.MatchString(text):
		return nil, nil, &ParseError{Observation: missingActionInputObservation, Output: text}
	default:
		return nil, nil, &ParseError{Observation: invalidResponseObservation, Output: text}
	}
}
