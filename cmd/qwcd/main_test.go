package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHashRoundTripsGenesisID(t *testing.T) {
	id := genesisBlock().ID()
	parsed, err := parseHash(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestParseHashRejectsWrongLength(t *testing.T) {
	_, err := parseHash("deadbeef")
	require.Error(t, err)
}

func TestParseCheckpointsDecodesHeightHashMap(t *testing.T) {
	id := genesisBlock().ID()
	cp, err := parseCheckpoints(map[uint64]string{0: id.String()})
	require.NoError(t, err)
	ok, matches := cp.Check(0, id)
	require.True(t, ok)
	require.True(t, matches)
}

func TestParseCheckpointsRejectsBadHex(t *testing.T) {
	_, err := parseCheckpoints(map[uint64]string{0: "not-hex"})
	require.Error(t, err)
}
