package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCommand(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("COOLDOWNS", "rolls:8/55m,command:1/3s")
	t.Setenv("CONFIRM_TTL", "45s")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"config", "--env-file", filepath.Join(t.TempDir(), "missing.env")})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "cooldown command    1/3s")
	assert.Contains(t, out.String(), "cooldown rolls      8/55m0s")
	assert.Contains(t, out.String(), "confirm ttl  45s")
}

func TestRootRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"config", "--env-file", filepath.Join(t.TempDir(), "missing.env")})
	assert.Error(t, root.Execute())
}
