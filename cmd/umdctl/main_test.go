package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("UMD_API_URL", "http://dash.test:3000")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://dash.test:3000", cfg.APIBaseURL)
	assert.Empty(t, cfg.Token)

	_, _, err = sessionClient()
	assert.ErrorContains(t, err, "umdctl session")

	cfg.SessionID = "abc"
	cfg.Token = "signed"
	require.NoError(t, saveConfig(cfg))

	loaded, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, token, err := sessionClient()
	require.NoError(t, err)
	assert.Equal(t, "signed", token)
}

func TestPrintFieldErrorsSorted(t *testing.T) {
	var buf bytes.Buffer
	printFieldErrors(&buf, map[string]string{"role": "Please select a role", "email": "Email is required"})
	assert.Equal(t, "  email: Email is required\n  role: Please select a role\n", buf.String())
}
