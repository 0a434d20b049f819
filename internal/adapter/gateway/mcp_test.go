package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finnguide/internal/domain"
)

type mcpToolsListResult struct {
	Result struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"tools"`
	} `json:"result"`
}

type mcpCallResult struct {
	Result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
}

func mcpRoundTrip(t *testing.T, asker Asker, request string, out any) {
	t.Helper()
	s := newMCPServer(asker, testTools(), "test", newTestLogger())
	resp := s.HandleMessage(context.Background(), json.RawMessage(request))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out), string(raw))
}

func TestMCPListsTools(t *testing.T) {
	var res mcpToolsListResult
	mcpRoundTrip(t, &fakeAsker{}, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, &res)

	descs := map[string]string{}
	for _, tool := range res.Result.Tools {
		descs[tool.Name] = tool.Description
	}
	assert.Len(t, descs, 3)
	assert.Contains(t, descs, "ask")
	assert.Equal(t, "Useful when you need to answer questions related to apply an apartment in Finland.", descs["apartment_assistant"])
	assert.Equal(t, "Useful to browse information from the Internet.", descs["duckduckgo_search"])
}

func TestMCPAsk(t *testing.T) {
	asker := &fakeAsker{chunks: []string{"Rent is paid monthly."}}
	var res mcpCallResult
	mcpRoundTrip(t, asker,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"ask","arguments":{"question":"How is rent paid?"}}}`,
		&res)

	require.Len(t, res.Result.Content, 1)
	assert.False(t, res.Result.IsError)
	assert.Equal(t, "Rent is paid monthly.", res.Result.Content[0].Text)
	assert.Equal(t, []string{"How is rent paid?"}, asker.asked())
}

func TestMCPAskFailure(t *testing.T) {
	asker := &fakeAsker{err: domain.ErrRateLimit}
	var res mcpCallResult
	mcpRoundTrip(t, asker,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"ask","arguments":{"question":"hi"}}}`,
		&res)

	assert.True(t, res.Result.IsError)
}

func TestMCPAskMissingQuestion(t *testing.T) {
	asker := &fakeAsker{}
	var res mcpCallResult
	mcpRoundTrip(t, asker,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"ask","arguments":{}}}`,
		&res)

	assert.True(t, res.Result.IsError)
	assert.Empty(t, asker.asked())
}

func TestMCPSearchTool(t *testing.T) {
	var res mcpCallResult
	mcpRoundTrip(t, &fakeAsker{},
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"apartment_assistant","arguments":{"query":"HOAS"}}}`,
		&res)

	require.Len(t, res.Result.Content, 1)
	assert.Equal(t, "Apartment assistant result for HOAS\n", res.Result.Content[0].Text)
}

func TestMCPToolName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Apartment assistant", "apartment_assistant"},
		{"Study programme selection assistant", "study_programme_selection_assistant"},
		{"DuckDuckGo Search", "duckduckgo_search"},
		{"  Resident permit assistant  ", "resident_permit_assistant"},
		{"a -- b!", "a_b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mcpToolName(tt.in))
	}
}
