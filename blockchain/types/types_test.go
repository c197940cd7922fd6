package types

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qwertycoin-project/qwc-node/crypto"
)

// requireTxEqual wraps require.Equal with a spew.Sdump of both sides on
// failure: a mismatch buried in a nested input/output slice is hard to
// spot from testify's default diff alone.
func requireTxEqual(t *testing.T, want, got *Transaction) {
	t.Helper()
	if !assert.ObjectsAreEqual(want, got) {
		t.Fatalf("transaction mismatch:\nwant:\n%s\ngot:\n%s", spew.Sdump(want), spew.Sdump(got))
	}
}

func sampleTransaction() *Transaction {
	return &Transaction{
		Prefix: TransactionPrefix{
			Version:    1,
			UnlockTime: 0,
			Inputs: []TransactionInput{
				KeyInput{Amount: 1000, OutputIndexes: []uint64{1, 5, 9}, KeyImage: crypto.KeyImage{0xaa}},
			},
			Outputs: []TransactionOutput{
				{Amount: 900, Target: KeyOutputTarget{Key: crypto.PublicKey{0xbb}}},
			},
			Extra: []byte{ExtraTagPubKey, 1, 2, 3},
		},
		Signatures: [][]crypto.Signature{
			{{C: [32]byte{1}, R: [32]byte{2}}},
		},
	}
}

func TestTransactionEncodeDecodeRoundTrip(t *testing.T) {
	tx := sampleTransaction()
	data := EncodeTransaction(tx)

	decoded, err := DecodeTransaction(data)
	require.NoError(t, err)
	requireTxEqual(t, tx, decoded)
}

func TestDecodeTransactionRejectsTruncatedInput(t *testing.T) {
	tx := sampleTransaction()
	data := EncodeTransaction(tx)
	_, err := DecodeTransaction(data[:len(data)-3])
	require.Error(t, err)
}

func TestMerkleRootSingleLeafIsIdentity(t *testing.T) {
	leaf := crypto.Hash{0x01}
	require.Equal(t, leaf, MerkleRoot([]crypto.Hash{leaf}))
}

func TestMerkleRootDeterministicAndOrderSensitive(t *testing.T) {
	leaves := []crypto.Hash{{0x01}, {0x02}, {0x03}, {0x04}, {0x05}}
	root1 := MerkleRoot(leaves)
	root2 := MerkleRoot(leaves)
	require.Equal(t, root1, root2)

	reordered := []crypto.Hash{{0x02}, {0x01}, {0x03}, {0x04}, {0x05}}
	require.NotEqual(t, root1, MerkleRoot(reordered))
}

func TestMerkleRootEmptyIsZero(t *testing.T) {
	require.True(t, MerkleRoot(nil).IsZero())
}

func TestBlockIDIsCachedAndStable(t *testing.T) {
	b := &Block{
		Header: BlockHeader{
			MajorVersion:      1,
			MinorVersion:      0,
			Timestamp:         12345,
			PreviousBlockHash: crypto.Hash{0x09},
			Nonce:             42,
		},
		BaseTransaction: Transaction{
			Prefix: TransactionPrefix{
				Version: 1,
				Inputs:  []TransactionInput{CoinbaseInput{BlockIndex: 10}},
				Outputs: []TransactionOutput{{Amount: 5000, Target: KeyOutputTarget{Key: crypto.PublicKey{0x01}}}},
			},
		},
		TransactionHashes: []crypto.Hash{{0x11}, {0x22}},
	}

	id1 := b.ID()
	id2 := b.ID()
	require.Equal(t, id1, id2, "ID must be stable across calls")
	require.False(t, id1.IsZero())
	require.Equal(t, b.MerkleRoot(), MerkleRoot(b.leafHashes()))
}

func TestBlockStorageEncodeDecodeRoundTrip(t *testing.T) {
	b := &Block{
		Header: BlockHeader{
			MajorVersion:      1,
			Timestamp:         999,
			PreviousBlockHash: crypto.Hash{0x03},
			Nonce:             7,
		},
		BaseTransaction: Transaction{
			Prefix: TransactionPrefix{
				Version: 1,
				Inputs:  []TransactionInput{CoinbaseInput{BlockIndex: 3}},
				Outputs: []TransactionOutput{{Amount: 42, Target: KeyOutputTarget{Key: crypto.PublicKey{0x07}}}},
			},
		},
		TransactionHashes: []crypto.Hash{{0xaa}, {0xbb}},
	}

	data := EncodeBlockForStorage(b)
	decoded, err := DecodeBlock(data)
	require.NoError(t, err)
	require.Equal(t, b.Header.MajorVersion, decoded.Header.MajorVersion)
	require.Equal(t, b.Header.PreviousBlockHash, decoded.Header.PreviousBlockHash)
	require.Equal(t, b.Header.Nonce, decoded.Header.Nonce)
	require.Equal(t, b.BaseTransaction.Prefix, decoded.BaseTransaction.Prefix)
	require.Equal(t, b.TransactionHashes, decoded.TransactionHashes)
	require.Nil(t, decoded.Header.Parent)
}

func TestExtraParsingKeepsUnknownTagsWithoutError(t *testing.T) {
	extra := []byte{ExtraTagPadding, ExtraTagPubKey}
	extra = append(extra, make([]byte, 32)...)
	extra = append(extra, 0x7f, 2, 0xde, 0xad) // unknown tag with a 2-byte payload

	fields := ParseExtra(extra)
	require.Len(t, fields, 2)
	pk, ok := TxPublicKey(extra)
	require.True(t, ok)
	require.Equal(t, crypto.PublicKey{}, pk)
}
