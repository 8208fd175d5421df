// File: internal/agent/adapter_test.go
package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/assistant-operate/api/schemas"
	"github.com/xkilldash9x/assistant-operate/internal/assistclient"
	"github.com/xkilldash9x/assistant-operate/internal/config"
	"github.com/xkilldash9x/assistant-operate/internal/operations"
	"github.com/xkilldash9x/assistant-operate/internal/prompt"
)

const (
	screenshotPath = "/tmp/screenshots/screenshot.png"
	objective      = "open the calculator and compute 2+2"
)

var screenshotBytes = []byte("\x89PNG\r\n\x1a\nfake-image-data")

// MockTransport is a mock implementation of the Transport interface.
type MockTransport struct {
	mock.Mock
}

// Analyze mocks a single endpoint round trip.
func (m *MockTransport) Analyze(ctx context.Context, imageBase64, prompt, objective string) (assistclient.RawResponse, error) {
	args := m.Called(ctx, imageBase64, prompt, objective)
	return args.Get(0), args.Error(1)
}

// -- Test Setup Helpers --

type fixture struct {
	adapter   *Adapter
	transport *MockTransport
	registry  *prometheus.Registry
	logs      *observer.ObservedLogs
}

// setupAdapter wires an Adapter to a mock transport and an in-memory filesystem holding a
// screenshot. The session is seeded with the objective unless seed is false.
func setupAdapter(t *testing.T, seed bool) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, screenshotPath, screenshotBytes, 0o644))

	core, logs := observer.New(zap.DebugLevel)
	transport := new(MockTransport)
	reg := prometheus.NewRegistry()

	adapter, err := NewAdapter(config.NewDefaultConfig(), zap.New(core),
		WithTransport(transport), WithFs(fs), WithRegisterer(reg))
	require.NoError(t, err)

	if seed {
		require.NoError(t, adapter.Session().Append(schemas.RoleUser, objective))
	}
	t.Cleanup(func() { transport.AssertExpectations(t) })
	return &fixture{adapter: adapter, transport: transport, registry: reg, logs: logs}
}

func encodedScreenshot() string {
	return base64.StdEncoding.EncodeToString(screenshotBytes)
}

// counterValue reads one labelled counter series from the fixture's registry.
func counterValue(t *testing.T, f *fixture, name, label, value string) float64 {
	t.Helper()
	families, err := f.registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "assistant_adapter_"+name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func turnsTotal(t *testing.T, f *fixture, outcome string) float64 {
	return counterValue(t, f, "turns_total", "outcome", outcome)
}

// -- Construction --

func TestNewAdapter(t *testing.T) {
	_, err := NewAdapter(nil, nil)
	assert.Error(t, err)

	adapter, err := NewAdapter(config.NewDefaultConfig(), nil)
	require.NoError(t, err)
	_, isClient := adapter.transport.(*assistclient.Client)
	assert.True(t, isClient, "the default transport is the HTTP client")
	assert.Zero(t, adapter.Session().Len())

	bad := config.NewDefaultConfig()
	bad.Assistant.APIURL = ""
	_, err = NewAdapter(bad, nil)
	assert.Error(t, err)
}

// -- Successful turns --

func TestRunTurn_MixedBatch(t *testing.T) {
	f := setupAdapter(t, true)
	raw := map[string]any{"operations": []any{
		map[string]any{"operation": "CLICK", "x": 10.0, "y": 20.0},
		map[string]any{"operation": "write"},
		map[string]any{"operation": "done"},
	}}
	f.transport.On("Analyze", mock.Anything, encodedScreenshot(), prompt.Build(objective, true), objective).
		Return(raw, nil).Once()

	ops, err := f.adapter.RunTurn(context.Background(), screenshotPath, objective)
	require.NoError(t, err)

	want := []schemas.Operation{
		schemas.Click{X: 10, Y: 20, Thought: "Performing click operation"},
		schemas.Done{Summary: "Task completed", Thought: "Performing done operation"},
	}
	if diff := cmp.Diff(want, ops); diff != "" {
		t.Errorf("RunTurn() mismatch (-want +got):\n%s", diff)
	}

	msgs := f.adapter.Session().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, schemas.RoleAssistant, msgs[1].Role)
	assert.JSONEq(t, `[
		{"operation":"click","x":10,"y":20,"thought":"Performing click operation"},
		{"operation":"done","summary":"Task completed","thought":"Performing done operation"}
	]`, msgs[1].Content)

	assert.Equal(t, 1.0, turnsTotal(t, f, "ok"))
	assert.Equal(t, 1.0, counterValue(t, f, "candidates_dropped_total", "reason", "missing_field"))
	assert.Equal(t, 1.0, counterValue(t, f, "operations_total", "kind", "click"))
	assert.Equal(t, 1, f.logs.FilterMessage("Dropped invalid candidate").Len())
	assert.Equal(t, 1, f.logs.FilterMessage("Turn complete").Len())
}

func TestRunTurn_SecondTurnUsesContinuationPrompt(t *testing.T) {
	f := setupAdapter(t, true)
	first := []any{map[string]any{"operation": "press", "keys": []any{"cmd", "space"}}}
	second := map[string]any{"response": `[{"operation":"write","content":"calculator"}]`}

	f.transport.On("Analyze", mock.Anything, mock.Anything, prompt.Build(objective, true), objective).
		Return(first, nil).Once()
	f.transport.On("Analyze", mock.Anything, mock.Anything, prompt.Build(objective, false), objective).
		Return(second, nil).Once()

	_, err := f.adapter.RunTurn(context.Background(), screenshotPath, objective)
	require.NoError(t, err)
	assert.Equal(t, schemas.ContinuationTurn, f.adapter.Session().TurnState())

	ops, err := f.adapter.RunTurn(context.Background(), screenshotPath, objective)
	require.NoError(t, err)
	assert.Equal(t, []schemas.Operation{
		schemas.Write{Content: "calculator", Thought: "Performing write operation"},
	}, ops)
	assert.Equal(t, 3, f.adapter.Session().Len())
	assert.Equal(t, 2.0, turnsTotal(t, f, "ok"))
}

func TestRunTurn_NoValidOperations(t *testing.T) {
	f := setupAdapter(t, true)
	f.transport.On("Analyze", mock.Anything, mock.Anything, mock.Anything, objective).
		Return([]any{"just text", map[string]any{"operation": "scroll"}}, nil).Once()

	ops, err := f.adapter.RunTurn(context.Background(), screenshotPath, objective)
	require.NoError(t, err)
	assert.Empty(t, ops)

	msgs := f.adapter.Session().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "[]", msgs[1].Content)
}

func TestRunTurn_EmptySessionIsContinuation(t *testing.T) {
	f := setupAdapter(t, false)
	f.transport.On("Analyze", mock.Anything, mock.Anything, prompt.Build(objective, false), objective).
		Return([]any{}, nil).Once()

	_, err := f.adapter.RunTurn(context.Background(), screenshotPath, objective)
	require.NoError(t, err)
	assert.Equal(t, 1, f.logs.FilterMessage("Session has no messages; the objective should be recorded before the first turn").Len())
}

// -- Failed turns --

func TestRunTurn_TransportErrorPropagatesUnchanged(t *testing.T) {
	f := setupAdapter(t, true)
	transportErr := &assistclient.APIError{Op: "analyze", URL: "http://x/analyze", Kind: assistclient.ErrAPITimeout, Err: errors.New("deadline")}
	f.transport.On("Analyze", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, transportErr).Once()

	ops, err := f.adapter.RunTurn(context.Background(), screenshotPath, objective)
	assert.Nil(t, ops)
	assert.Same(t, transportErr, err)
	assert.ErrorIs(t, err, assistclient.ErrAPITimeout)

	assert.Equal(t, 1, f.adapter.Session().Len(), "no assistant message on failure")
	assert.Equal(t, 1.0, turnsTotal(t, f, "transport_error"))
	assert.Equal(t, 1, f.logs.FilterMessage("Turn failed").Len())
}

func TestRunTurn_UnparseableResponse(t *testing.T) {
	f := setupAdapter(t, true)
	f.transport.On("Analyze", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("Sure! I'd click the OK button.", nil).Once()

	ops, err := f.adapter.RunTurn(context.Background(), screenshotPath, objective)
	assert.Nil(t, ops)
	assert.ErrorIs(t, err, operations.ErrResponseUnparseable)
	assert.Equal(t, 1, f.adapter.Session().Len())
	assert.Equal(t, 1.0, turnsTotal(t, f, "unparseable"))
}

func TestRunTurn_MissingImage(t *testing.T) {
	f := setupAdapter(t, true)

	ops, err := f.adapter.RunTurn(context.Background(), "/tmp/screenshots/missing.png", objective)
	assert.Nil(t, ops)
	assert.ErrorIs(t, err, ErrImageRead)
	f.transport.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1, f.adapter.Session().Len())
	assert.Equal(t, 1.0, turnsTotal(t, f, "image_error"))
}

// -- End to end over HTTP --

func writeScreenshot(t *testing.T) (afero.Fs, string) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, screenshotPath, screenshotBytes, 0o644))
	return fs, screenshotPath
}

func TestRunTurn_UnreachableEndpointLeavesSessionUnchanged(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	cfg := config.NewDefaultConfig()
	cfg.Assistant.APIURL = server.URL
	server.Close()

	fs, path := writeScreenshot(t)
	adapter, err := NewAdapter(cfg, zaptest.NewLogger(t), WithFs(fs))
	require.NoError(t, err)
	require.NoError(t, adapter.Session().Append(schemas.RoleUser, objective))
	before := adapter.Session().Messages()

	ops, err := adapter.RunTurn(context.Background(), path, objective)
	assert.Nil(t, ops)
	assert.ErrorIs(t, err, assistclient.ErrAPIUnreachable)
	assert.Equal(t, before, adapter.Session().Messages())
}

func TestRunTurn_OverHTTP(t *testing.T) {
	var gotImage, gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		gotImage, gotPrompt = body["image"], body["prompt"]
		_, _ = io.WriteString(w, `{"actions":[{"operation":"press","keys":["enter"],"thought":"submit"}]}`)
	}))
	t.Cleanup(server.Close)

	cfg := config.NewDefaultConfig()
	cfg.Assistant.APIURL = server.URL
	fs, path := writeScreenshot(t)
	adapter, err := NewAdapter(cfg, zaptest.NewLogger(t), WithFs(fs))
	require.NoError(t, err)
	require.NoError(t, adapter.Session().Append(schemas.RoleUser, objective))

	ops, err := adapter.RunTurn(context.Background(), path, objective)
	require.NoError(t, err)
	assert.Equal(t, []schemas.Operation{schemas.Press{Keys: []string{"enter"}, Thought: "submit"}}, ops)
	assert.Equal(t, encodedScreenshot(), gotImage)
	assert.Equal(t, prompt.Build(objective, true), gotPrompt)
}
