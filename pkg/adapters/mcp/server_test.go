package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcResponse struct {
	Result struct {
		IsError           bool            `json:"isError"`
		StructuredContent json.RawMessage `json:"structuredContent"`
		Content           []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Contents []struct {
			URI  string `json:"uri"`
			Text string `json:"text"`
		} `json:"contents"`
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func newTestServer(t *testing.T) (*Server, ports.Fixture) {
	t.Helper()
	store := memory.NewStore()
	fx := ports.SeedFixture(t, store, domain.Scope{})
	tr, err := tree.New(store, tree.DefaultConfig())
	require.NoError(t, err)
	return NewServer(tr), fx
}

func rpc(t *testing.T, s *Server, method string, params any) rpcResponse {
	t.Helper()
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	out, err := json.Marshal(s.MCPServer().HandleMessage(context.Background(), msg))
	require.NoError(t, err)
	var resp rpcResponse
	require.NoError(t, json.Unmarshal(out, &resp), string(out))
	require.Nil(t, resp.Error, string(out))
	return resp
}

func call(t *testing.T, s *Server, tool string, args map[string]any) rpcResponse {
	t.Helper()
	return rpc(t, s, "tools/call", map[string]any{"name": tool, "arguments": args})
}

func decode[T any](t *testing.T, resp rpcResponse) T {
	t.Helper()
	require.False(t, resp.Result.IsError, "%+v", resp.Result.Content)
	var v T
	require.NoError(t, json.Unmarshal(resp.Result.StructuredContent, &v))
	return v
}

func TestServer_ListTools(t *testing.T) {
	s, _ := newTestServer(t)
	resp := rpc(t, s, "tools/list", map[string]any{})

	var names []string
	for _, tool := range resp.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"insert_node", "move_node", "remove_node", "validate_tree", "rebuild_tree", "show_tree"}, names)
}

func TestServer_Insert(t *testing.T) {
	s, fx := newTestServer(t)

	root := decode[NodeResult](t, call(t, s, "insert_node", map[string]any{"name": "Top Level 3"}))
	assert.Equal(t, [2]int64{13, 14}, [2]int64{root.Left, root.Right})
	assert.Equal(t, domain.NoID, root.Parent)

	child := decode[NodeResult](t, call(t, s, "insert_node", map[string]any{"name": "Leaf", "parent_id": fx.Child3}))
	assert.Equal(t, fx.Child3, child.Parent)
	assert.Equal(t, [2]int64{9, 10}, [2]int64{child.Left, child.Right})

	resp := call(t, s, "insert_node", map[string]any{"name": "Orphan", "parent_id": 999})
	assert.True(t, resp.Result.IsError)
}

func TestServer_Move(t *testing.T) {
	s, fx := newTestServer(t)

	moved := decode[NodeResult](t, call(t, s, "move_node", map[string]any{"id": fx.Child2, "position": "child", "target_id": fx.Child1}))
	assert.Equal(t, [2]int64{3, 6}, [2]int64{moved.Left, moved.Right})
	assert.Equal(t, fx.Child1, moved.Parent)

	swapped := decode[NodeResult](t, call(t, s, "move_node", map[string]any{"id": fx.Child3, "position": "left"}))
	assert.Equal(t, [2]int64{2, 3}, [2]int64{swapped.Left, swapped.Right})

	tests := []struct {
		name string
		args map[string]any
	}{
		{"Into Own Subtree", map[string]any{"id": fx.Top, "position": "child", "target_id": fx.Child21}},
		{"Unknown Position", map[string]any{"id": fx.Child3, "position": "above", "target_id": fx.Top}},
		{"Unknown Node", map[string]any{"id": 999, "position": "root"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, s, "move_node", tt.args)
			assert.True(t, resp.Result.IsError)
			assert.NotEmpty(t, resp.Result.Content)
		})
	}

	report := decode[ValidateResult](t, call(t, s, "validate_tree", map[string]any{}))
	assert.True(t, report.Valid)
}

func TestServer_RemoveAndRebuild(t *testing.T) {
	s, fx := newTestServer(t)

	removed := decode[RemoveResult](t, call(t, s, "remove_node", map[string]any{"id": fx.Child2, "policy": "detach"}))
	assert.Equal(t, fx.Child2, removed.Removed)

	out := call(t, s, "show_tree", map[string]any{})
	require.NotEmpty(t, out.Result.Content)
	assert.Equal(t, "* Top Level (nil, 1, 8)\n** Child 1 (1, 2, 3)\n** Child 2.1 (1, 4, 5)\n** Child 3 (1, 6, 7)\n* Top Level 2 (nil, 9, 10)",
		out.Result.Content[0].Text)

	rebuilt := decode[RebuildResult](t, call(t, s, "rebuild_tree", map[string]any{}))
	assert.Equal(t, RebuildResult{Scope: "(default)", Renumbered: 5}, rebuilt)

	resp := call(t, s, "remove_node", map[string]any{"id": fx.Child2})
	assert.True(t, resp.Result.IsError, "already removed")
}

func TestServer_InfoResource(t *testing.T) {
	s, _ := newTestServer(t)
	resp := rpc(t, s, "resources/read", map[string]any{"uri": InfoURI})

	require.Len(t, resp.Result.Contents, 1)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Contents[0].Text), &info))
	assert.Equal(t, string(domain.PolicyCascade), fmt.Sprint(info["dependent"]))
}
