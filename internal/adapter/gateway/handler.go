package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"finnguide/internal/infra/tracer"
	"finnguide/internal/usecase"
)

const maxQueryBodySize = 64 << 10 // 64KB

const queryRequestSchema = `{
	"type": "object",
	"properties": {
		"content": {"type": "string"}
	},
	"required": ["content"]
}`

// healthPayload is the fixed body of GET /health.
var healthPayload = []string{"Still here :)"}

type queryRequest struct {
	Content string `json:"content"`
}

// errorResponse is the {"detail": "..."} body of non-validation errors.
type errorResponse struct {
	Detail string `json:"detail"`
}

// fieldError is one entry of a 422 detail list.
type fieldError struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

type validationResponse struct {
	Detail []fieldError `json:"detail"`
}

// handleQuery streams the agent's answer to {"content": "..."} as plain
// text chunks. Once streaming starts the status is always 200; failures
// become answer text.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.StartSpan(r.Context(), "http.query")
	defer span.End()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxQueryBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Detail: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "could not read request body"})
		return
	}

	req, detail := s.decodeQuery(ctx, body)
	if len(detail) > 0 {
		s.deps.Logger.InfoContext(ctx, "rejected query request",
			"type", detail[0].Type, "msg", detail[0].Msg)
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Detail: detail})
		return
	}
	span.SetAttributes(tracer.IntAttr("query.chars", len(req.Content)))

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	emit := func(chunk string) {
		if _, err := io.WriteString(w, chunk); err != nil {
			return
		}
		_ = rc.Flush()
	}

	if _, err := s.deps.Agent.Ask(ctx, req.Content, emit); err != nil {
		if ctx.Err() != nil {
			s.deps.Logger.InfoContext(ctx, "client went away before the answer finished", "error", err)
			return
		}
		tracer.RecordError(span, err)
		emit(usecase.UnavailableAnswer)
		return
	}
	tracer.SetOK(span)
}

// decodeQuery validates body against the request schema. A non-empty
// detail lists why it was rejected.
func (s *Server) decodeQuery(ctx context.Context, body []byte) (queryRequest, []fieldError) {
	if len(bytes.TrimSpace(body)) == 0 {
		return queryRequest{}, []fieldError{{Loc: []any{"body"}, Msg: "Field required", Type: "missing"}}
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		var offset int64
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			offset = syntaxErr.Offset
		}
		return queryRequest{}, []fieldError{{Loc: []any{"body", offset}, Msg: "JSON decode error", Type: "json_invalid"}}
	}

	if result := s.querySchema.Validate(data); !result.IsValid() {
		s.deps.Logger.DebugContext(ctx, "query failed schema validation", "error", fmt.Sprintf("%v", result.Error()))
		return queryRequest{}, []fieldError{describeInvalid(data)}
	}

	var req queryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return queryRequest{}, []fieldError{contentNotString}
	}
	return req, nil
}

var contentNotString = fieldError{
	Loc:  []any{"body", "content"},
	Msg:  "Input should be a valid string",
	Type: "string_type",
}

// describeInvalid names the first problem with a decoded body that failed
// schema validation.
func describeInvalid(data any) fieldError {
	obj, ok := data.(map[string]any)
	if !ok {
		return fieldError{
			Loc:  []any{"body"},
			Msg:  "Input should be a valid dictionary or object to extract fields from",
			Type: "model_attributes_type",
		}
	}
	v, ok := obj["content"]
	if !ok {
		return fieldError{Loc: []any{"body", "content"}, Msg: "Field required", Type: "missing"}
	}
	if _, ok := v.(string); !ok {
		return contentNotString
	}
	return fieldError{Loc: []any{"body"}, Msg: "Invalid request body", Type: "value_error"}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthPayload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
