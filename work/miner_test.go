package work

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qwertycoin-project/qwc-node/blockchain"
	"github.com/qwertycoin-project/qwc-node/blockchain/types"
	"github.com/qwertycoin-project/qwc-node/consensus"
	"github.com/qwertycoin-project/qwc-node/crypto"
)

type fakeChain struct {
	added chan *types.Block
}

func (f *fakeChain) GetBlockTemplate(minerAddress crypto.PublicKey, extraNonce []byte, majorVersion uint8, source blockchain.TemplateSource) (*blockchain.BlockTemplate, error) {
	return &blockchain.BlockTemplate{
		Header:     types.BlockHeader{MajorVersion: majorVersion, Timestamp: 1},
		Difficulty: 1,
	}, nil
}

func (f *fakeChain) AddBlock(block *types.Block) (blockchain.AddResult, error) {
	f.added <- block
	return blockchain.AddedToMain, nil
}

type fakeSource struct{}

func (fakeSource) ForBlockTemplate(budget uint64) []*types.Transaction { return nil }

func TestMinerFindsBlockAtTrivialDifficulty(t *testing.T) {
	chain := &fakeChain{added: make(chan *types.Block, 1)}
	found := make(chan crypto.Hash, 1)

	m := New(chain, fakeSource{}, crypto.PublicKey{}, consensus.BlockMajorVersion4, func(block *types.Block, hash crypto.Hash) {
		found <- hash
	})
	m.Start()
	defer m.Stop()

	select {
	case <-chain.added:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mined block")
	}
	select {
	case <-found:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for onFound callback")
	}
}

func TestStopIsIdempotentWhenNotMining(t *testing.T) {
	chain := &fakeChain{added: make(chan *types.Block, 1)}
	m := New(chain, fakeSource{}, crypto.PublicKey{}, consensus.BlockMajorVersion4, nil)
	require.False(t, m.Mining())
	m.Stop()
	require.False(t, m.Mining())
}
