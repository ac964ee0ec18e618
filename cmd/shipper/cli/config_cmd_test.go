package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	t.Parallel()

	settings := map[string]any{
		"secret":  "hunter2",
		"project": "waifu2x",
		"github": map[string]any{
			"token": "ghp_abc",
			"ref":   "refs/tags/v1",
		},
		"metrics": map[string]any{
			"pushgateway": "",
		},
	}
	redact(settings, "")

	assert.Equal(t, "********", settings["secret"])
	assert.Equal(t, "waifu2x", settings["project"])
	github := settings["github"].(map[string]any)
	assert.Equal(t, "********", github["token"])
	assert.Equal(t, "refs/tags/v1", github["ref"])
}

func TestRedact_EmptySecretStaysEmpty(t *testing.T) {
	t.Parallel()

	settings := map[string]any{"secret": ""}
	redact(settings, "")
	assert.Equal(t, "", settings["secret"])
}

func TestWriteConfigValue(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "shipper", "config.yaml")

	require.NoError(t, writeConfigValue(path, "project", "waifu2x"))
	require.NoError(t, writeConfigValue(path, "metrics.job", "nightly"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "project: waifu2x")
	assert.Contains(t, string(data), "job: nightly")
	assert.NotContains(t, string(data), "token")
}
