package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/automata"
	"github.com/aretw0/automata/internal/runtime"
	"github.com/aretw0/automata/pkg/dsl"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *runtime.Factory) {
	t.Helper()
	b := dsl.New().View("status", "user={{ .Context.user }}")
	b.Automaton("login").
		State("idle").Go("submit", "authenticated").Assign("submit", "user", "{{ .Input.user }}").
		State("authenticated").Views("status").Go("logout", "idle")
	b.Automaton("player").
		State("stopped").Go("play", "playing").
		State("playing").Go("stop", "stopped")

	f := runtime.NewFactory()
	_, err := b.Compile(f)
	require.NoError(t, err)
	return NewServer(f, nil), f
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestServer_ListAndInspect(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleList(ctx, mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"login","current":"idle"},{"name":"player","current":"stopped"}]`, textOf(t, res))

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"automaton": "player"}
	res, err = s.handleInspect(ctx, req)
	require.NoError(t, err)
	var snap runtime.Snapshot
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &snap))
	assert.Equal(t, "stopped", snap.Current)
	assert.Len(t, snap.States, 3)

	req.Params.Arguments = map[string]any{"automaton": "ghost"}
	res, err = s.handleInspect(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestServer_Transit(t *testing.T) {
	s, f := newTestServer(t)
	ctx := context.Background()

	t.Run("Routed", func(t *testing.T) {
		resp, err := s.handleTransit(ctx, mcp.CallToolRequest{}, map[string]interface{}{
			"action": "submit",
			"input":  `{"user":"ann"}`,
		})
		require.NoError(t, err)
		assert.Equal(t, "login", resp.Automaton)
		assert.Equal(t, "authenticated", resp.Next)
		assert.Equal(t, []string{"status"}, resp.Views)
		assert.Equal(t, []any{"user=ann"}, resp.Rendered)
		assert.Equal(t, []string{"logout"}, resp.Actions)
		assert.NotContains(t, resp.Output, "buffer")
	})

	t.Run("ExplicitTarget", func(t *testing.T) {
		resp, err := s.handleTransit(ctx, mcp.CallToolRequest{}, map[string]interface{}{
			"action":    "play",
			"automaton": "player",
		})
		require.NoError(t, err)
		assert.Equal(t, "playing", resp.Next)

		a, _ := f.Automaton("player")
		assert.Equal(t, "playing", a.Current().Name())
	})

	t.Run("NobodyAccepts", func(t *testing.T) {
		_, err := s.handleTransit(ctx, mcp.CallToolRequest{}, map[string]interface{}{"action": "eject"})
		assert.Error(t, err)
	})

	t.Run("InvalidInput", func(t *testing.T) {
		_, err := s.handleTransit(ctx, mcp.CallToolRequest{}, map[string]interface{}{
			"action": "stop",
			"input":  "bad\xffinput",
		})
		assert.ErrorIs(t, err, automata.ErrInvalidUTF8)
	})

	t.Run("MissingAction", func(t *testing.T) {
		_, err := s.handleTransit(ctx, mcp.CallToolRequest{}, map[string]interface{}{})
		assert.Error(t, err)
	})
}

func TestServer_Resources(t *testing.T) {
	s, _ := newTestServer(t)

	msg := `{"jsonrpc":"2.0","id":1,"method":"resources/read","params":{"uri":"automata://login"}}`
	reply := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(msg))

	data, err := json.Marshal(reply)
	require.NoError(t, err)
	assert.Contains(t, string(data), `automata://login`)
	assert.Contains(t, string(data), `\"current\":\"idle\"`)
}
