package mcp

import (
	"context"
	"testing"

	"github.com/run-bigpig/stockdesk/internal/models"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTransport(t *testing.T) {
	t.Run("默认使用 streamable http", func(t *testing.T) {
		tr := createTransport(&models.MCPServerConfig{Endpoint: "http://localhost:9000/mcp"})
		st, ok := tr.(*mcp.StreamableClientTransport)
		require.True(t, ok)
		assert.Equal(t, "http://localhost:9000/mcp", st.Endpoint)
	})

	t.Run("sse", func(t *testing.T) {
		tr := createTransport(&models.MCPServerConfig{TransportType: models.MCPTransportSSE, Endpoint: "http://x/sse"})
		_, ok := tr.(*mcp.SSEClientTransport)
		assert.True(t, ok)
	})

	t.Run("command", func(t *testing.T) {
		tr := createTransport(&models.MCPServerConfig{
			TransportType: models.MCPTransportCommand,
			Command:       "echo",
			Args:          []string{"hi"},
		})
		ct, ok := tr.(*mcp.CommandTransport)
		require.True(t, ok)
		assert.Equal(t, []string{"echo", "hi"}, ct.Command.Args)
	})
}

func TestToolsetConfigFilter(t *testing.T) {
	c := toolsetConfig(&models.MCPServerConfig{Endpoint: "http://x"})
	assert.Nil(t, c.ToolFilter)

	c = toolsetConfig(&models.MCPServerConfig{Endpoint: "http://x", ToolFilter: []string{"quote"}})
	assert.NotNil(t, c.ToolFilter)
}

func TestLoadConfigsSkipsDisabled(t *testing.T) {
	m := NewManager()
	err := m.LoadConfigs([]models.MCPServerConfig{
		{ID: "b", Name: "b", Endpoint: "http://localhost:1/mcp", Enabled: true},
		{ID: "off", Name: "off", Endpoint: "http://localhost:2/mcp"},
		{Name: "a", Endpoint: "http://localhost:3/mcp", Enabled: true},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, m.ServerIDs())
	assert.Len(t, m.GetAllToolsets(), 2)
	_, ok := m.GetToolset("off")
	assert.False(t, ok)
}

func TestUnknownServer(t *testing.T) {
	m := NewManager()
	status := m.TestConnection(context.Background(), "missing")
	assert.False(t, status.Connected)
	assert.NotEmpty(t, status.Error)

	_, err := m.GetServerTools(context.Background(), "missing")
	assert.Error(t, err)
	assert.Empty(t, m.GetAllToolInfos())
}
