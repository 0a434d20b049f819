package usecase

import (
	"strings"
	"unicode"
)

// holdTokens end the forwardable part of an answer. Text from the first
// one on is left for Finish: it may be the stop sequence, another
// reasoning line, a later final-answer marker or an action label that
// turns the whole reply into a parse error.
var holdTokens = []string{
	stopSequence,
	finalAnswerMarker,
	"Action",
	"\nThought:",
	"\nQuestion:",
}

// answerStream forwards the final-answer part of a model reply while it is
// still being generated. Text before the "Final Answer:" marker is never
// forwarded, and neither is anything from the first hold token after it.
// Trailing whitespace and a trailing partial hold token are kept back
// until more text arrives, so the forwarded text is always a prefix of the
// trimmed answer when the reply has a single marker.
type answerStream struct {
	emit  func(string)
	buf   strings.Builder
	out   strings.Builder
	start int
	// blocked is set when an action label precedes the marker; such a
	// reply is classified only once complete.
	blocked bool
	// stale is set when an earlier reply forwarded text and did not turn
	// out to be the answer.
	stale bool
}

func newAnswerStream(emit func(string)) *answerStream {
	return &answerStream{emit: emit, start: -1}
}

// Write adds one chunk of model output.
func (s *answerStream) Write(chunk string) {
	if chunk == "" || s.blocked {
		return
	}
	s.buf.WriteString(chunk)
	text := s.buf.String()

	if s.start < 0 {
		idx := strings.Index(text, finalAnswerMarker)
		if idx < 0 {
			return
		}
		if actionOnlyRe.MatchString(text[:idx]) {
			s.blocked = true
			return
		}
		s.start = idx + len(finalAnswerMarker)
	}

	region := text[s.start:]
	ready := strings.TrimFunc(region[:forwardableEnd(region)], unicode.IsSpace)
	if len(ready) > s.out.Len() {
		s.forward(ready[s.out.Len():])
	}
}

// forwardableEnd returns how much of region may be forwarded: everything
// before the first hold token, or before a trailing partial one.
func forwardableEnd(region string) int {
	end := len(region)
	for _, tok := range holdTokens {
		if i := strings.Index(region, tok); i >= 0 && i < end {
			end = i
		}
		for n := min(len(tok)-1, len(region)); n > 0; n-- {
			if strings.HasSuffix(region, tok[:n]) {
				end = min(end, len(region)-n)
				break
			}
		}
	}
	return end
}

// Finish forwards whatever part of output has not been forwarded yet. It
// reports false when the text forwarded for this reply is not a prefix of
// output; the caller then sends the whole answer separately.
func (s *answerStream) Finish(output string) bool {
	sent := s.out.String()
	if !strings.HasPrefix(output, sent) {
		return false
	}
	if rest := output[len(sent):]; rest != "" {
		s.forward(rest)
	}
	return true
}

// Sent returns the text forwarded for the current reply.
func (s *answerStream) Sent() string { return s.out.String() }

// Reset prepares the stream for the next model reply. If the finished
// reply forwarded text, the next forwarded text is set apart from it by a
// blank line.
func (s *answerStream) Reset() {
	if s.out.Len() > 0 {
		s.stale = true
	}
	s.buf.Reset()
	s.out.Reset()
	s.start = -1
	s.blocked = false
}

func (s *answerStream) forward(text string) {
	if s.stale {
		s.stale = false
		s.send("\n\n")
	}
	s.out.WriteString(text)
	s.send(text)
}

func (s *answerStream) send(text string) {
	if s.emit != nil {
		s.emit(text)
	}
}
