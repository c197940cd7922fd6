package p2p

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBanListLoadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bans.txt")
	require.NoError(t, os.WriteFile(path, []byte("1.2.3.4\n# a comment\n5.6.7.8\n"), 0o644))

	b, err := NewBanList(path)
	require.NoError(t, err)
	defer b.Close()

	require.True(t, b.IsBanned("1.2.3.4"))
	require.True(t, b.IsBanned("5.6.7.8"))
	require.False(t, b.IsBanned("9.9.9.9"))
	require.Equal(t, 2, b.Size())
}

func TestBanListMissingFileStartsEmpty(t *testing.T) {
	b, err := NewBanList(filepath.Join(t.TempDir(), "missing.txt"))
	require.NoError(t, err)
	defer b.Close()
	require.Equal(t, 0, b.Size())
}

func TestBanAppendsAndUnbanRewrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bans.txt")
	b, err := NewBanList(path)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Ban("1.1.1.1"))
	require.True(t, b.IsBanned("1.1.1.1"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "1.1.1.1")

	require.NoError(t, b.Unban("1.1.1.1"))
	require.False(t, b.IsBanned("1.1.1.1"))

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "1.1.1.1")
}

func TestBanListReloadPicksUpDirectFileEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bans.txt")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	b, err := NewBanList(path)
	require.NoError(t, err)
	defer b.Close()
	require.False(t, b.IsBanned("2.2.2.2"))

	require.NoError(t, os.WriteFile(path, []byte("2.2.2.2\n"), 0o644))
	require.NoError(t, b.reload())
	require.True(t, b.IsBanned("2.2.2.2"))
}
