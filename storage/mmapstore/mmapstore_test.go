package mmapstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qwertycoin-project/qwc-node/crypto"
)

func hashFrom(b byte) crypto.Hash {
	var h crypto.Hash
	h[0] = b
	return h
}

func TestPushThenGetByHashReturnsCachedBytes(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	h := hashFrom(1)
	require.NoError(t, s.PushBlock(h, []byte("block-one")))

	data, ok, err := s.GetBlockByHash(h)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("block-one"), data)
}

func TestPopBlockEvictsFromByteCache(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	h := hashFrom(2)
	require.NoError(t, s.PushBlock(h, []byte("block-two")))
	_, err = s.PopBlock()
	require.NoError(t, err)

	_, ok, err := s.GetBlockByHash(h)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetBlockByIndexOutOfRange(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.GetBlockByIndex(0)
	require.NoError(t, err)
	require.False(t, ok)
}
