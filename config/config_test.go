package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveThenLoadRoundTrips(t *testing.T) {
	cfg := Default()
	cfg.Identity = "test-node"
	cfg.P2P.ListenAddr = "127.0.0.1:19900"
	cfg.Chain.Checkpoints = map[uint64]string{100: "deadbeef"}

	path := filepath.Join(t.TempDir(), "qwcd.toml")
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "test-node", loaded.Identity)
	require.Equal(t, "127.0.0.1:19900", loaded.P2P.ListenAddr)
	require.Equal(t, "deadbeef", loaded.Chain.Checkpoints[100])
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qwcd.toml")
	require.NoError(t, os.WriteFile(path, []byte("NotARealField = 1\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
