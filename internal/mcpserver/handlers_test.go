package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twinaos/installer/internal/wizard"
	"github.com/twinaos/installer/internal/wizard/wizardtest"
)

func setupTestServer(t *testing.T) (*Server, *wizard.Session, *wizardtest.Gateway) {
	t.Helper()
	gw := wizardtest.NewGateway()
	sess := wizardtest.NewSession(gw, time.Millisecond)
	t.Cleanup(func() { _ = sess.Close() })
	return New(sess), sess, gw
}

func call(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}}
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"wizard-state":           srv.handleState,
		"wizard-select":          srv.handleSelect,
		"wizard-set-field":       srv.handleSetField,
		"wizard-advance":         srv.handleAdvance,
		"wizard-retreat":         srv.handleRetreat,
		"wizard-connect-network": srv.handleConnectNetwork,
		"wizard-dismiss-notice":  srv.handleDismissNotice,
	}
	h, ok := handlers[name]
	require.True(t, ok, "unknown tool %s", name)
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	return res
}

// extractText extracts text from CallToolResult.Content[0]
func extractText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	if textContent, ok := result.Content[0].(mcp.TextContent); ok {
		return textContent.Text
	}
	return ""
}

func decodeState(t *testing.T, res *mcp.CallToolResult) stateDoc {
	t.Helper()
	require.False(t, res.IsError, extractText(res))
	var doc stateDoc
	require.NoError(t, json.Unmarshal([]byte(extractText(res)), &doc))
	return doc
}

func TestState_Initial(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	doc := decodeState(t, call(t, srv, "wizard-state", nil))
	assert.Equal(t, wizard.StepWelcome, doc.Step)
	assert.Equal(t, "Welcome", doc.Title)
	assert.Equal(t, 10, doc.Total)
	assert.True(t, doc.CanAdvance)
	assert.False(t, doc.CanRetreat)
	assert.Empty(t, doc.Choices)
}

func TestSelectAndAdvance(t *testing.T) {
	srv, sess, _ := setupTestServer(t)

	decodeState(t, call(t, srv, "wizard-advance", nil))

	res := call(t, srv, "wizard-advance", nil)
	require.True(t, res.IsError)
	assert.Contains(t, extractText(res), wizard.ErrInvalidStep.Error())

	doc := decodeState(t, call(t, srv, "wizard-select", map[string]any{"id": "de"}))
	require.Len(t, doc.Choices, 2)
	assert.True(t, doc.Choices[1].Selected)
	assert.True(t, doc.CanAdvance)

	doc = decodeState(t, call(t, srv, "wizard-advance", nil))
	assert.Equal(t, wizard.StepKeyboard, doc.Step)
	assert.Equal(t, "de", doc.Config["language"])
	assert.Equal(t, wizard.StepKeyboard, sess.Current())

	doc = decodeState(t, call(t, srv, "wizard-retreat", nil))
	assert.Equal(t, wizard.StepLanguage, doc.Step)
}

func TestSelect_Errors(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	res := call(t, srv, "wizard-select", map[string]any{})
	require.True(t, res.IsError)
	assert.Contains(t, extractText(res), "missing 'id'")

	res = call(t, srv, "wizard-select", map[string]any{"id": "x"})
	require.True(t, res.IsError)
	assert.Contains(t, extractText(res), wizard.ErrNotSelectable.Error())

	res = call(t, srv, "wizard-select", map[string]any{"step": "language", "id": "tlh"})
	require.True(t, res.IsError)
	assert.Contains(t, extractText(res), wizard.ErrUnknownChoice.Error())

	res = call(t, srv, "wizard-select", map[string]any{"step": "language", "id": "en", "partitioning": "manual"})
	require.True(t, res.IsError)
	assert.Contains(t, extractText(res), "disk step only")
}

func TestSelect_DiskPartitioning(t *testing.T) {
	srv, sess, _ := setupTestServer(t)
	wizardtest.AdvanceTo(t, sess, wizard.StepDisk)

	doc := decodeState(t, call(t, srv, "wizard-select", map[string]any{"id": "/dev/sda", "partitioning": "manual"}))
	assert.Equal(t, "manual", doc.Form["partitioning"])
	assert.Equal(t, wizard.PartitionManual, sess.Snapshot().Partitioning)
}

func TestSetField_RedactsPassword(t *testing.T) {
	srv, sess, _ := setupTestServer(t)
	wizardtest.AdvanceTo(t, sess, wizard.StepUser)

	decodeState(t, call(t, srv, "wizard-set-field", map[string]any{"field": "fullname", "value": "Grace Hopper"}))
	decodeState(t, call(t, srv, "wizard-set-field", map[string]any{"field": "password", "value": "C0bol!Rules"}))
	doc := decodeState(t, call(t, srv, "wizard-set-field", map[string]any{"field": "confirm", "value": "C0bol!Rules"}))

	assert.Equal(t, "grace", doc.Form["username"])
	assert.Equal(t, "match", doc.Form["confirm"])
	assert.NotContains(t, doc.Form["password"], "C0bol")

	doc = decodeState(t, call(t, srv, "wizard-advance", nil))
	assert.Equal(t, wizard.StepSummary, doc.Step)
	assert.Equal(t, "********", doc.Config["password"])
	require.NotNil(t, doc.Summary)
	assert.Equal(t, "Grace Hopper", doc.Summary.FullName)

	res := call(t, srv, "wizard-set-field", map[string]any{"field": "shell", "value": "zsh"})
	require.True(t, res.IsError)
	assert.Contains(t, extractText(res), wizard.ErrUnknownField.Error())
}

func TestConnectNetwork(t *testing.T) {
	srv, sess, _ := setupTestServer(t)
	wizardtest.AdvanceTo(t, sess, wizard.StepNetwork)

	res := call(t, srv, "wizard-connect-network", map[string]any{"ssid": "twina-lab", "password": "nope"})
	require.True(t, res.IsError)
	assert.Contains(t, extractText(res), "connection to twina-lab failed")

	doc := decodeState(t, call(t, srv, "wizard-state", nil))
	assert.True(t, strings.HasPrefix(doc.Notice, "Connection failed"))

	doc = decodeState(t, call(t, srv, "wizard-dismiss-notice", nil))
	assert.Empty(t, doc.Notice)

	doc = decodeState(t, call(t, srv, "wizard-connect-network", map[string]any{"ssid": "twina-lab", "password": "twinaos123"}))
	assert.True(t, doc.Choices[0].Selected)

	res = call(t, srv, "wizard-connect-network", map[string]any{"ssid": "elsewhere"})
	require.True(t, res.IsError)
	assert.Contains(t, extractText(res), wizard.ErrUnknownNetwork.Error())
}

func TestServer_StartStop(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	addr, err := srv.Start(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	assert.Equal(t, "http://"+addr+"/mcp", srv.URL())

	_, err = srv.Start(context.Background(), "127.0.0.1:0")
	require.Error(t, err)

	resp, err := http.Get(srv.URL())
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, srv.Stop())
	require.NoError(t, srv.Stop())
}
