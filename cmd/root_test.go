package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		cfgFile = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestMask(t *testing.T) {
	assert.Equal(t, "(not set)", mask(""))
	assert.Equal(t, "****", mask("abc"))
	assert.Equal(t, "****cdef", mask("sk-abcdef"))
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stockdesk", "config.yaml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "workers:")

	_, err = execute(t, "config", "init", path)
	require.Error(t, err, "existing config must not be overwritten")
}

func TestConfigShow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`data_dir: `+dir+`
workers: 7
ai:
  provider: gemini
  model: gemini-2.0-flash
  api_key: sk-test-1234
`), 0o600))

	out, err := execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "workers:        7")
	assert.Contains(t, out, "ai.provider:    gemini")
	assert.Contains(t, out, "****1234")
	assert.NotContains(t, out, "sk-test-1234")
}

func TestConfigShowRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 0\n"), 0o600))

	_, err := execute(t, "config", "show", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestMCPTestWithoutServers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o600))

	out, err := execute(t, "mcp", "test", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No MCP servers enabled.")
}

func TestBeginnerFlag(t *testing.T) {
	require.NotNil(t, rootCmd.Flags().Lookup("beginner"))

	tests := []struct {
		name string
		args []string
		on   bool
		ok   bool
	}{
		{"未指定沿用保存的设置", nil, false, false},
		{"开启", []string{"--beginner"}, true, true},
		{"强制完整模式", []string{"--beginner=false"}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "stockdesk"}
			cmd.Flags().Bool("beginner", false, "")
			require.NoError(t, cmd.ParseFlags(tt.args))

			on, ok := beginnerFlag(cmd)
			assert.Equal(t, tt.on, on)
			assert.Equal(t, tt.ok, ok)
		})
	}
}
