package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCommand_PrintsEffectiveYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "custom.yaml")
	content := `workers: 3
use_merge_sort: true
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))

	out := &bytes.Buffer{}

	cmd := NewConfigCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfgPath})

	require.NoError(t, cmd.Execute())

	rendered := out.String()
	assert.Contains(t, rendered, "workers: 3")
	assert.Contains(t, rendered, "use_merge_sort: true")
	assert.Contains(t, rendered, "sort_chunk_size: 4096MiB")
	assert.Contains(t, rendered, "log_level: info")
}

func TestConfigCommand_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	cmd := NewConfigCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")})

	require.Error(t, cmd.Execute())
}
