package p2p

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qwertycoin-project/qwc-node/blockchain"
	"github.com/qwertycoin-project/qwc-node/blockchain/types"
	"github.com/qwertycoin-project/qwc-node/crypto"
	"github.com/qwertycoin-project/qwc-node/txpool"
)

type fakeChain struct {
	tip    blockchain.ChainTip
	sparse []crypto.Hash
	blocks map[crypto.Hash]*types.Block
	added  []*types.Block
}

func (f *fakeChain) GetTopBlock() (blockchain.ChainTip, error) { return f.tip, nil }
func (f *fakeChain) BuildSparseChain() []crypto.Hash           { return f.sparse }
func (f *fakeChain) FindSupplement(theirHashes []crypto.Hash) (uint64, bool) {
	return f.tip.Height, true
}
func (f *fakeChain) GetBlockByHash(hash crypto.Hash) (*types.Block, bool, error) {
	b, ok := f.blocks[hash]
	return b, ok, nil
}
func (f *fakeChain) GetBlockByHeight(height uint64) (*types.Block, bool, error) {
	return nil, false, nil
}
func (f *fakeChain) AddBlock(block *types.Block) (blockchain.AddResult, error) {
	f.added = append(f.added, block)
	return blockchain.AddedToMain, nil
}

type fakePool struct {
	txs map[crypto.Hash]*types.Transaction
}

func (f *fakePool) Push(tx *types.Transaction, _ txpool.Validator) (txpool.PushResult, error) {
	hash := types.FastHashTransaction(tx)
	if _, ok := f.txs[hash]; ok {
		return txpool.AlreadyInPool, nil
	}
	f.txs[hash] = tx
	return txpool.Admitted, nil
}
func (f *fakePool) Lookup(hash crypto.Hash) (*types.Transaction, bool) {
	tx, ok := f.txs[hash]
	return tx, ok
}
func (f *fakePool) Hashes() []crypto.Hash {
	hashes := make([]crypto.Hash, 0, len(f.txs))
	for h := range f.txs {
		hashes = append(hashes, h)
	}
	return hashes
}

func newTestServer() (*Server, *fakeChain, *fakePool) {
	chain := &fakeChain{
		tip:    blockchain.ChainTip{Hash: hashFrom(1), Height: 10},
		blocks: make(map[crypto.Hash]*types.Block),
	}
	pool := &fakePool{txs: make(map[crypto.Hash]*types.Transaction)}
	s := NewServer(Config{GenesisHash: hashFrom(99), Chain: chain, Pool: pool})
	return s, chain, pool
}

func TestHandshakeDispatchRecordsPeerTip(t *testing.T) {
	s, _, _ := newTestServer()
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	peer := NewPeer(a, hashFrom(99), false)
	remote := NewPeer(b, hashFrom(99), true)
	go func() {
		for {
			if _, _, err := remote.ReadMessage(); err != nil {
				return
			}
		}
	}()

	req := HandshakeRequest{GenesisHash: hashFrom(99), TopHash: hashFrom(5), TopHeight: 3}
	err := s.dispatch(peer, CmdHandshake, EncodeHandshakeRequest(req))
	require.NoError(t, err)

	hash, height := peer.Tip()
	require.Equal(t, hashFrom(5), hash)
	require.Equal(t, uint64(3), height)
	require.Equal(t, StateSynchronizing, peer.State())
}

func TestHandshakeDispatchRejectsGenesisMismatch(t *testing.T) {
	s, _, _ := newTestServer()
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	peer := NewPeer(a, hashFrom(99), false)

	req := HandshakeRequest{GenesisHash: hashFrom(1), TopHash: hashFrom(5), TopHeight: 3}
	err := s.dispatch(peer, CmdHandshake, EncodeHandshakeRequest(req))
	require.Error(t, err)
}

func TestPingDispatchRepliesOnSameConnection(t *testing.T) {
	s, _, _ := newTestServer()
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	peer := NewPeer(a, hashFrom(99), true)
	peer.ForceState(StateNormal)

	done := make(chan error, 1)
	go func() { done <- s.dispatch(peer, CmdPing, nil) }()

	remote := NewPeer(b, hashFrom(99), false)
	cmd, payload, err := remote.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, CmdPing, cmd)
	require.Empty(t, payload)
	require.NoError(t, <-done)
}

func TestRequestGetObjectsReturnsMissingHashesForUnknownBlock(t *testing.T) {
	s, _, _ := newTestServer()
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	peer := NewPeer(a, hashFrom(99), true)
	peer.ForceState(StateNormal)

	missing := hashFrom(123)
	done := make(chan error, 1)
	go func() {
		done <- s.dispatch(peer, CmdRequestGetObjects, EncodeRequestGetObjects(RequestGetObjects{BlockHashes: []crypto.Hash{missing}}))
	}()

	remote := NewPeer(b, hashFrom(99), false)
	cmd, payload, err := remote.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, CmdResponseGetObjects, cmd)
	resp, err := DecodeResponseGetObjects(payload)
	require.NoError(t, err)
	require.Equal(t, []crypto.Hash{missing}, resp.MissingHashes)
	require.NoError(t, <-done)
}
