package blockchain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qwertycoin-project/qwc-node/blockchain/types"
	"github.com/qwertycoin-project/qwc-node/consensus"
	"github.com/qwertycoin-project/qwc-node/crypto"
)

// memStore is an in-memory storage.BlockStore fake for tests.
type memStore struct {
	blocks [][]byte
	byHash map[crypto.Hash]int
}

func newMemStore() *memStore {
	return &memStore{byHash: make(map[crypto.Hash]int)}
}

func (m *memStore) PushBlock(hash crypto.Hash, data []byte) error {
	m.byHash[hash] = len(m.blocks)
	m.blocks = append(m.blocks, data)
	return nil
}

func (m *memStore) PopBlock() ([]byte, error) {
	n := len(m.blocks) - 1
	data := m.blocks[n]
	m.blocks = m.blocks[:n]
	for h, i := range m.byHash {
		if i == n {
			delete(m.byHash, h)
		}
	}
	return data, nil
}

func (m *memStore) GetBlockByIndex(height uint64) ([]byte, bool, error) {
	if height >= uint64(len(m.blocks)) {
		return nil, false, nil
	}
	return m.blocks[height], true, nil
}

func (m *memStore) GetBlockByHash(hash crypto.Hash) ([]byte, bool, error) {
	i, ok := m.byHash[hash]
	if !ok {
		return nil, false, nil
	}
	return m.blocks[i], true, nil
}

func (m *memStore) GetBlockCount() (uint64, error) { return uint64(len(m.blocks)), nil }
func (m *memStore) Clear() error                   { m.blocks = nil; m.byHash = map[crypto.Hash]int{}; return nil }
func (m *memStore) Close() error                   { return nil }

// fakePool is a minimal PoolAdapter fake recording calls.
type fakePool struct {
	removed  [][]crypto.Hash
	restored [][]*types.Transaction
}

func (p *fakePool) RemoveConfirmed(hashes []crypto.Hash) { p.removed = append(p.removed, hashes) }
func (p *fakePool) Restore(txs []*types.Transaction)      { p.restored = append(p.restored, txs) }
func (p *fakePool) Lookup(crypto.Hash) (*types.Transaction, bool) { return nil, false }

func minerKey(b byte) crypto.PublicKey {
	var k crypto.PublicKey
	k[0] = b
	return k
}

func genesisBlock() *types.Block {
	reward := BaseReward(0)
	return &types.Block{
		Header: types.BlockHeader{MajorVersion: 1, Timestamp: 1000},
		BaseTransaction: types.Transaction{
			Prefix: types.TransactionPrefix{
				Version: 1,
				Inputs:  []types.TransactionInput{types.CoinbaseInput{BlockIndex: 0}},
				Outputs: []types.TransactionOutput{{Amount: reward, Target: types.KeyOutputTarget{Key: minerKey(0x01)}}},
			},
		},
	}
}

// buildAndCheckpoint constructs the next block atop prev, registers a
// checkpoint for it (bypassing real proof-of-work so the test doesn't have
// to mine), and returns it.
func buildAndCheckpoint(t *testing.T, cp *consensus.Checkpoints, prev *types.Block, height uint64, timestamp uint64, miner byte) *types.Block {
	t.Helper()
	generated := estimateGeneratedSupply(height)
	reward := BaseReward(generated)
	b := &types.Block{
		Header: types.BlockHeader{
			MajorVersion:      1,
			Timestamp:         timestamp,
			PreviousBlockHash: prev.ID(),
		},
		BaseTransaction: types.Transaction{
			Prefix: types.TransactionPrefix{
				Version: 1,
				Inputs:  []types.TransactionInput{types.CoinbaseInput{BlockIndex: uint32(height)}},
				Outputs: []types.TransactionOutput{{Amount: reward, Target: types.KeyOutputTarget{Key: minerKey(miner)}}},
			},
		},
	}
	cp.Add(height, b.ID())
	return b
}

func newTestChain(t *testing.T) (*Blockchain, *consensus.Checkpoints, *types.Block) {
	t.Helper()
	cp := consensus.NewCheckpoints(nil)
	genesis := genesisBlock()
	bc, err := New(Config{
		Store:             newMemStore(),
		Pool:              &fakePool{},
		Checkpoints:       cp,
		DifficultyVariant: consensus.DifficultyV4,
		MedianWindow:      100,
	}, genesis)
	require.NoError(t, err)
	return bc, cp, genesis
}

func TestGenesisBootstrap(t *testing.T) {
	bc, _, genesis := newTestChain(t)
	tip, err := bc.GetTopBlock()
	require.NoError(t, err)
	require.Equal(t, genesis.ID(), tip.Hash)
	require.Equal(t, uint64(0), tip.Height)
}

func TestLinearExtensionGrowsMainChain(t *testing.T) {
	bc, cp, genesis := newTestChain(t)

	b1 := buildAndCheckpoint(t, cp, genesis, 1, 2000, 0x02)
	result, err := bc.AddBlock(b1)
	require.NoError(t, err)
	require.Equal(t, AddedToMain, result)

	b2 := buildAndCheckpoint(t, cp, b1, 2, 3000, 0x03)
	result, err = bc.AddBlock(b2)
	require.NoError(t, err)
	require.Equal(t, AddedToMain, result)

	tip, err := bc.GetTopBlock()
	require.NoError(t, err)
	require.Equal(t, b2.ID(), tip.Hash)
	require.Equal(t, uint64(2), tip.Height)
}

func TestDuplicateBlockIsRejectedAsAlreadyExists(t *testing.T) {
	bc, cp, genesis := newTestChain(t)
	b1 := buildAndCheckpoint(t, cp, genesis, 1, 2000, 0x02)

	result, err := bc.AddBlock(b1)
	require.NoError(t, err)
	require.Equal(t, AddedToMain, result)

	result, err = bc.AddBlock(b1)
	require.NoError(t, err)
	require.Equal(t, AlreadyExists, result)
}

func TestAlternativeChainTracksWithoutSwitchingUntilHeavier(t *testing.T) {
	bc, cp, genesis := newTestChain(t)
	main1 := buildAndCheckpoint(t, cp, genesis, 1, 2000, 0x02)
	_, err := bc.AddBlock(main1)
	require.NoError(t, err)

	// An alt block at height 1 with the same parent: tracked as an
	// alternative, not switched to, since its cumulative difficulty
	// (via the fallback difficulty) ties rather than exceeds main's.
	alt1 := buildAndCheckpoint(t, cp, genesis, 1, 2001, 0x09)
	result, err := bc.AddBlock(alt1)
	require.NoError(t, err)
	require.Equal(t, AddedToAlt, result)

	tip, err := bc.GetTopBlock()
	require.NoError(t, err)
	require.Equal(t, main1.ID(), tip.Hash, "main chain must not have switched on a tie")

	stored, ok, err := bc.GetBlockByHash(alt1.ID())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, alt1.Header.Timestamp, stored.Header.Timestamp)
}

func TestRejectsBlockWithWrongCoinbaseHeight(t *testing.T) {
	bc, cp, genesis := newTestChain(t)
	b1 := buildAndCheckpoint(t, cp, genesis, 1, 2000, 0x02)
	// tamper: claim height 5 instead of 1
	b1.BaseTransaction.Prefix.Inputs[0] = types.CoinbaseInput{BlockIndex: 5}

	result, err := bc.AddBlock(b1)
	require.Error(t, err)
	require.Equal(t, Rejected, result)
}

func TestRejectsStaleTimestamp(t *testing.T) {
	bc, cp, genesis := newTestChain(t)
	b1 := buildAndCheckpoint(t, cp, genesis, 1, 2000, 0x02)
	_, err := bc.AddBlock(b1)
	require.NoError(t, err)

	// height 2 with a timestamp not greater than the median so far
	b2 := buildAndCheckpoint(t, cp, b1, 2, 1500, 0x03)
	result, err := bc.AddBlock(b2)
	require.Error(t, err)
	require.Equal(t, Rejected, result)
}

func TestBuildSparseChainEndsWithGenesis(t *testing.T) {
	bc, cp, genesis := newTestChain(t)
	prev := genesis
	for h := uint64(1); h <= 5; h++ {
		b := buildAndCheckpoint(t, cp, prev, h, 2000*h, 0x02)
		_, err := bc.AddBlock(b)
		require.NoError(t, err)
		prev = b
	}
	sparse := bc.BuildSparseChain()
	require.Equal(t, genesis.ID(), sparse[len(sparse)-1])
	require.Equal(t, prev.ID(), sparse[0])
}
