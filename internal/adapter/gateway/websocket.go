package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"finnguide/internal/domain"
	"finnguide/internal/infra/middleware"
	"finnguide/internal/usecase"
)

const (
	wsReadLimit    = 64 << 10 // 64KB
	wsWriteTimeout = 5 * time.Second
)

// handleWebSocket answers query frames one at a time on a single
// connection, streaming each answer as delta frames followed by a done
// frame.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Cross-origin browser clients are allowed, as for the HTTP API.
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.deps.Logger.WarnContext(r.Context(), "websocket accept failed", "error", err)
		return
	}
	defer ws.CloseNow()
	ws.SetReadLimit(wsReadLimit)

	ctx := r.Context()
	s.deps.Logger.InfoContext(ctx, "websocket client connected")

	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				s.deps.Logger.DebugContext(ctx, "websocket read ended", "error", err)
			}
			break
		}

		reqCtx := domain.ContextWithRequestID(ctx, middleware.NewRequestID())
		if typ != websocket.MessageText {
			s.writeFrame(reqCtx, ws, Frame{Type: FrameTypeError, Error: "expected a text frame"})
			continue
		}

		var in Frame
		if err := json.Unmarshal(data, &in); err != nil {
			s.writeFrame(reqCtx, ws, Frame{Type: FrameTypeError, Error: "invalid JSON frame"})
			continue
		}
		if in.Type != FrameTypeQuery {
			s.writeFrame(reqCtx, ws, Frame{Type: FrameTypeError, Error: "unsupported frame type " + string(in.Type)})
			continue
		}

		if !s.answerFrame(reqCtx, ws, in.Content) {
			break
		}
	}

	ws.Close(websocket.StatusNormalClosure, "")
	s.deps.Logger.InfoContext(ctx, "websocket client disconnected")
}

// answerFrame streams one answer. It reports false once the connection is
// no longer usable.
func (s *Server) answerFrame(ctx context.Context, ws *websocket.Conn, query string) bool {
	ok := true
	emit := func(chunk string) {
		if ok {
			ok = s.writeFrame(ctx, ws, Frame{Type: FrameTypeDelta, Content: chunk})
		}
	}

	if _, err := s.deps.Agent.Ask(ctx, query, emit); err != nil {
		if ctx.Err() != nil {
			return false
		}
		emit(usecase.UnavailableAnswer)
	}
	return ok && s.writeFrame(ctx, ws, Frame{Type: FrameTypeDone, RequestID: domain.RequestIDFromContext(ctx)})
}

func (s *Server) writeFrame(ctx context.Context, ws *websocket.Conn, f Frame) bool {
	if f.Type == FrameTypeError {
		f.RequestID = domain.RequestIDFromContext(ctx)
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := wsjson.Write(writeCtx, ws, f); err != nil {
		s.deps.Logger.DebugContext(ctx, "websocket write failed", "error", err)
		return false
	}
	return true
}
