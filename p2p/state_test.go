package p2p

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandshakeMovesToSynchronizing(t *testing.T) {
	s, err := next(StateBeforeHandshake, CmdHandshake)
	require.NoError(t, err)
	require.Equal(t, StateSynchronizing, s)
}

func TestUnexpectedCommandInStateIsRejected(t *testing.T) {
	_, err := next(StateBeforeHandshake, CmdNotifyNewBlock)
	require.Error(t, err)
}

func TestShutdownStateRejectsEverything(t *testing.T) {
	_, err := next(StateShutdown, CmdPing)
	require.Error(t, err)
}

func TestNormalStateHandlesFullCommandSet(t *testing.T) {
	for _, cmd := range []Command{
		CmdTimedSync, CmdPing, CmdNotifyNewBlock, CmdNotifyNewLiteBlock,
		CmdNotifyNewTransactions, CmdNotifyMissingTxs, CmdRequestChain,
		CmdRequestGetObjects, CmdRequestTxPool,
	} {
		_, err := next(StateNormal, cmd)
		require.NoErrorf(t, err, "command %s should be valid in StateNormal", cmd)
	}
}

func TestSyncRequiredOnlyAcceptsRequestChain(t *testing.T) {
	s, err := next(StateSyncRequired, CmdRequestChain)
	require.NoError(t, err)
	require.Equal(t, StateSynchronizing, s)

	_, err = next(StateSyncRequired, CmdPing)
	require.Error(t, err)
}

func TestPeerAdvanceTracksState(t *testing.T) {
	p := &Peer{state: StateBeforeHandshake}
	require.NoError(t, p.Advance(CmdHandshake))
	require.Equal(t, StateSynchronizing, p.State())

	require.Error(t, p.Advance(CmdNotifyNewBlock))
	require.Equal(t, StateSynchronizing, p.State()) // unchanged after rejected transition
}
