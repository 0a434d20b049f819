package llm

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"finnguide/internal/domain"
)

// maxSSELine bounds a single SSE line; long completions arrive as many
// small chunks, so 1 MB is generous.
const maxSSELine = 1024 * 1024

// parseSSEStream reads SSE-formatted lines from body and converts each data
// payload into a StreamDelta using the provider-specific parseLine function.
// The returned channel is closed when the stream ends, the body is closed, or
// ctx is cancelled. A stream that breaks off ends with a Done delta whose Err
// is set.
func parseSSEStream(ctx context.Context, body io.ReadCloser, parseLine func(data []byte) (*domain.StreamDelta, error)) <-chan domain.StreamDelta {
	ch := make(chan domain.StreamDelta, 16)
	go func() {
		defer close(ch)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)
		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}

			line := scanner.Bytes()
			if len(line) == 0 || line[0] == ':' {
				continue
			}
			data, ok := bytes.CutPrefix(line, []byte("data:"))
			if !ok {
				continue
			}
			data = bytes.TrimSpace(data)

			if bytes.Equal(data, []byte("[DONE]")) {
				sendDelta(ctx, ch, domain.StreamDelta{Done: true})
				return
			}

			delta, err := parseLine(data)
			if err != nil || delta == nil {
				continue
			}
			if !sendDelta(ctx, ch, *delta) || delta.Done {
				return
			}
		}

		err := scanner.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		sendDelta(ctx, ch, domain.StreamDelta{
			Done: true,
			Err:  fmt.Errorf("%w: stream interrupted: %v", domain.ErrProviderError, err),
		})
	}()
	return ch
}

func sendDelta(ctx context.Context, ch chan<- domain.StreamDelta, d domain.StreamDelta) bool {
	select {
	case ch <- d:
		return true
	case <-ctx.Done():
		return false
	}
}
