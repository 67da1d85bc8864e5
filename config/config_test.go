package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"stroma/config"
)

func TestLoadWritesTemplateWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stroma.toml")

	_, err := config.Load(path)
	require.ErrorIs(t, err, config.ErrConfigTemplateWritten)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
}

func TestLoadRejectsMissingMnemonicFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stroma.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
StorePath = "./data"
ChatServers = "staging"
GroupID = "group-1"
`), 0o600))

	_, err := config.Load(path)
	require.ErrorContains(t, err, "MnemonicFile")
}

func TestLoadRejectsInvalidChatServers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stroma.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
StorePath = "./data"
ChatServers = "production-ish"
GroupID = "group-1"
MnemonicFile = "./mnemonic.txt"
`), 0o600))

	_, err := config.Load(path)
	require.ErrorContains(t, err, "ChatServers")
}

func TestLoadSucceedsAndConvertsToOperatorConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stroma.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
StorePath = "./data"
ChatServers = "production"
PinnedOverlayAddr = "overlay.example:9000"
LogLevel = "debug"
GroupID = "group-1"
MnemonicFile = "./mnemonic.txt"
IdentityKeystorePath = "./identity.json"
RegistryDBPath = "./registry.db"
AdminListenAddr = ":9090"
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "production", cfg.ChatServers)
	require.Equal(t, uint64(300), cfg.HealthCheckSecs)

	oc := cfg.ToOperatorConfig()
	require.Equal(t, "group-1", oc.GroupID)
	require.Equal(t, ":9090", oc.AdminListenAddr)
}

func TestReadMnemonicTrimsWhitespace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mnemonic.txt")
	require.NoError(t, os.WriteFile(path, []byte("abandon abandon abandon about\n"), 0o600))

	m, err := config.ReadMnemonic(path)
	require.NoError(t, err)
	require.Equal(t, "abandon abandon abandon about", m)
}
