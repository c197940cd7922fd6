package p2p

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestPeerList(t *testing.T) *PeerListManager {
	t.Helper()
	m, err := OpenPeerListManager(filepath.Join(t.TempDir(), "peers"))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestMarkWhitePromotesAndRemovesFromGray(t *testing.T) {
	m := openTestPeerList(t)
	m.MarkGray("1.2.3.4:19801")
	white, gray := m.Counts()
	require.Equal(t, 0, white)
	require.Equal(t, 1, gray)

	m.MarkWhite("1.2.3.4:19801")
	white, gray = m.Counts()
	require.Equal(t, 1, white)
	require.Equal(t, 0, gray)
}

func TestMarkGrayIgnoresAlreadyWhiteAddress(t *testing.T) {
	m := openTestPeerList(t)
	m.MarkWhite("1.2.3.4:19801")
	m.MarkGray("1.2.3.4:19801")
	white, gray := m.Counts()
	require.Equal(t, 1, white)
	require.Equal(t, 0, gray)
}

func TestSelectForConnectReturnsFalseWhenEmpty(t *testing.T) {
	m := openTestPeerList(t)
	_, ok := m.SelectForConnect()
	require.False(t, ok)
}

func TestSelectForConnectReturnsKnownAddress(t *testing.T) {
	m := openTestPeerList(t)
	m.MarkWhite("1.2.3.4:19801")
	m.MarkGray("5.6.7.8:19801")

	addr, ok := m.SelectForConnect()
	require.True(t, ok)
	require.Contains(t, []string{"1.2.3.4:19801", "5.6.7.8:19801"}, addr)
}

func TestPeerListPersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "peers")
	m, err := OpenPeerListManager(dir)
	require.NoError(t, err)
	m.MarkWhite("9.9.9.9:19801")
	require.NoError(t, m.Close())

	reopened, err := OpenPeerListManager(dir)
	require.NoError(t, err)
	defer reopened.Close()
	white, _ := reopened.Counts()
	require.Equal(t, 1, white)
}
