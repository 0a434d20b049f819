package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finnguide/internal/adapter/llm"
	"finnguide/internal/adapter/tool"
	"finnguide/internal/domain"
	"finnguide/internal/infra/config"
	"finnguide/internal/usecase"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.LLM.Providers[0].APIKey = "azure-key"
	cfg.LLM.Providers[0].BaseURL = "https://example.openai.azure.com"
	return cfg
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "ask", "encrypt", "doctor"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	flag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
}

func TestConfigFlagDefaultsFromEnv(t *testing.T) {
	t.Setenv("FINNGUIDE_CONFIG", "/etc/finnguide.yaml")
	root := newRootCmd()
	assert.Equal(t, "/etc/finnguide.yaml", root.PersistentFlags().Lookup("config").DefValue)
}

func TestInitLLMDefaultProvider(t *testing.T) {
	comps, err := initLLM(context.Background(), testConfig(), newTestLogger())
	require.NoError(t, err)

	assert.IsType(t, &llm.OpenAIProvider{}, comps.DefaultLLM)
	assert.Equal(t, "azure", comps.DefaultLLM.Name())
	assert.Equal(t, []string{"azure"}, comps.Registry.List())
}

func TestInitLLMCircuitBreaker(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.CircuitBreaker = config.CircuitBreakerConfig{Enabled: true, MaxFailures: 3}

	comps, err := initLLM(context.Background(), cfg, newTestLogger())
	require.NoError(t, err)

	assert.IsType(t, &llm.CircuitBreakerProvider{}, comps.DefaultLLM)
	assert.Equal(t, "azure", comps.DefaultLLM.Name())
}

func TestInitLLMFailover(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.Providers = append(cfg.LLM.Providers, config.ProviderConfig{
		Name: "openai", Type: "openai", Model: "gpt-4o-mini", APIKey: "sk-test",
	})
	cfg.LLM.Failover = config.FailoverConfig{Enabled: true, Fallbacks: []string{"openai"}}

	comps, err := initLLM(context.Background(), cfg, newTestLogger())
	require.NoError(t, err)

	assert.IsType(t, &llm.FailoverProvider{}, comps.DefaultLLM)
	assert.Equal(t, []string{"azure", "openai"}, comps.Registry.List())
}

func TestInitLLMErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown default", func(c *config.Config) { c.LLM.DefaultProvider = "ghost" }, "default llm provider"},
		{"unknown fallback", func(c *config.Config) {
			c.LLM.Failover = config.FailoverConfig{Enabled: true, Fallbacks: []string{"ghost"}}
		}, "failover provider ghost"},
		{"fallback repeats default", func(c *config.Config) {
			c.LLM.Failover = config.FailoverConfig{Enabled: true, Fallbacks: []string{"azure"}}
		}, "failover provider azure"},
		{"unsupported type", func(c *config.Config) { c.LLM.Providers[0].Type = "llama" }, `unsupported provider type "llama"`},
		{"duplicate name", func(c *config.Config) {
			c.LLM.Providers = append(c.LLM.Providers, c.LLM.Providers[0])
		}, "llm provider azure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			_, err := initLLM(context.Background(), cfg, newTestLogger())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInitToolsCatalogOrder(t *testing.T) {
	tools, err := initTools(testConfig(), newTestLogger())
	require.NoError(t, err)

	var names []string
	for _, tl := range tools.List() {
		names = append(names, tl.Name())
	}
	assert.Equal(t, []string{
		tool.ApartmentToolName,
		tool.ResidentPermitToolName,
		tool.StudyProgrammeToolName,
		tool.WebSearchToolName,
	}, names)
}

func TestInitToolsUnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Search.Backend = "bing"
	_, err := initTools(cfg, newTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search backend")
}

func TestInitAgent(t *testing.T) {
	comps, err := initAgent(context.Background(), testConfig(), newTestLogger())
	require.NoError(t, err)
	assert.NotNil(t, comps.Agent)
	assert.Len(t, comps.Tools.List(), 4)
}

func TestEncryptCommandRoundTrip(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"encrypt", "--key", "hunter2", "azure-secret"})
	require.NoError(t, root.Execute())

	line := strings.TrimSpace(out.String())
	require.True(t, strings.HasPrefix(line, config.SecretPrefix), line)

	plain, err := config.DecryptValue(strings.TrimPrefix(line, config.SecretPrefix), "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "azure-secret", plain)
}

func TestEncryptCommandReadsStdinAndEnvKey(t *testing.T) {
	t.Setenv(configKeyEnv, "from-env")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader("piped-secret\n"))
	root.SetArgs([]string{"encrypt"})
	require.NoError(t, root.Execute())

	line := strings.TrimSpace(out.String())
	plain, err := config.DecryptValue(strings.TrimPrefix(line, config.SecretPrefix), "from-env")
	require.NoError(t, err)
	assert.Equal(t, "piped-secret", plain)
}

func TestEncryptCommandErrors(t *testing.T) {
	t.Setenv(configKeyEnv, "")

	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetArgs([]string{"encrypt", "value"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no passphrase")

	root = newRootCmd()
	root.SetOut(io.Discard)
	root.SetIn(strings.NewReader("\n"))
	root.SetArgs([]string{"encrypt", "--key", "k"})
	err = root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be empty")
}

type fakeAsker struct {
	chunks []string
	steps  []domain.AgentStep
	err    error
	asked  []string
	ids    []string
}

func (f *fakeAsker) Ask(ctx context.Context, query string, emit func(string)) (*usecase.Answer, error) {
	f.asked = append(f.asked, query)
	f.ids = append(f.ids, domain.RequestIDFromContext(ctx))
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range f.chunks {
		emit(c)
	}
	return &usecase.Answer{
		Output: strings.Join(f.chunks, ""),
		Steps:  f.steps,
		Usage:  domain.Usage{PromptTokens: 120, CompletionTokens: 30},
	}, nil
}

func TestAskOnceStreamsAnswer(t *testing.T) {
	agent := &fakeAsker{chunks: []string{"Helsinki has ", "many universities."}}
	var out bytes.Buffer

	require.NoError(t, askOnce(context.Background(), agent, "Where to study?", &out, false))
	assert.Equal(t, "Helsinki has many universities.\n", out.String())
	assert.Equal(t, []string{"Where to study?"}, agent.asked)
	assert.NotEmpty(t, agent.ids[0])
}

func TestAskOnceVerbosePrintsSteps(t *testing.T) {
	agent := &fakeAsker{
		chunks: []string{"Apply at HOAS."},
		steps: []domain.AgentStep{{
			Action:      domain.AgentAction{Tool: tool.ApartmentToolName, ToolInput: "student housing"},
			Observation: "HOAS rents student apartments.\n",
		}},
	}
	var out bytes.Buffer

	require.NoError(t, askOnce(context.Background(), agent, "Where do I live?", &out, true))
	assert.Contains(t, out.String(), `[1] Apartment assistant("student housing")`)
	assert.Contains(t, out.String(), "tokens: 120 prompt, 30 completion")
}

func TestAskOnceFailurePrintsApology(t *testing.T) {
	agent := &fakeAsker{err: domain.ErrProviderError}
	var out bytes.Buffer

	err := askOnce(context.Background(), agent, "hi", &out, false)
	require.ErrorIs(t, err, domain.ErrProviderError)
	assert.Equal(t, usecase.UnavailableAnswer+"\n", out.String())
}

func TestAskLoopSkipsBlankLines(t *testing.T) {
	agent := &fakeAsker{chunks: []string{"ok"}}
	var out bytes.Buffer
	in := strings.NewReader("first question\n\n   \nsecond question\n")

	require.NoError(t, askLoop(context.Background(), agent, in, &out, false))
	assert.Equal(t, []string{"first question", "second question"}, agent.asked)
	assert.NotEqual(t, agent.ids[0], agent.ids[1])
}

func TestAskLoopContinuesAfterError(t *testing.T) {
	agent := &fakeAsker{err: errors.New("upstream down")}
	var out bytes.Buffer

	require.NoError(t, askLoop(context.Background(), agent, strings.NewReader("a\nb\n"), &out, false))
	assert.Len(t, agent.asked, 2)
	assert.Contains(t, out.String(), "(error: upstream down)")
}

func TestAskLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	agent := &fakeAsker{err: context.Canceled}

	require.NoError(t, askLoop(ctx, agent, strings.NewReader("a\nb\n"), io.Discard, false))
	assert.Len(t, agent.asked, 1)
}
