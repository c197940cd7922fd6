package p2p

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGossipFilterMarksOnceAndFlagsRepeats(t *testing.T) {
	g := newGossipFilter()
	h := hashFrom(7)

	require.False(t, g.MarkAndCheck(h))
	require.True(t, g.MarkAndCheck(h))
}

func TestGossipFilterDistinguishesHashes(t *testing.T) {
	g := newGossipFilter()
	require.False(t, g.MarkAndCheck(hashFrom(1)))
	require.False(t, g.MarkAndCheck(hashFrom(2)))
	require.True(t, g.MarkAndCheck(hashFrom(1)))
}
