package txpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qwertycoin-project/qwc-node/blockchain/types"
	"github.com/qwertycoin-project/qwc-node/crypto"
)

func keyInputTx(image byte, outputKey byte) *types.Transaction {
	return &types.Transaction{
		Prefix: types.TransactionPrefix{
			Version: 1,
			Inputs: []types.TransactionInput{
				types.KeyInput{Amount: 1000, OutputIndexes: []uint64{1, 5, 9}, KeyImage: crypto.KeyImage{image}},
			},
			Outputs: []types.TransactionOutput{
				{Amount: 500, Target: types.KeyOutputTarget{Key: crypto.PublicKey{outputKey}}},
			},
		},
	}
}

func noopValidate(*types.Transaction) error { return nil }

func TestPushAdmitsFirstAndRejectsDuplicate(t *testing.T) {
	p := New(0, 0, nil)
	tx := keyInputTx(0x01, 0x02)

	result, err := p.Push(tx, noopValidate)
	require.NoError(t, err)
	require.Equal(t, Admitted, result)
	require.Equal(t, 1, p.Size())

	result, err = p.Push(tx, noopValidate)
	require.NoError(t, err)
	require.Equal(t, AlreadyInPool, result)
	require.Equal(t, 1, p.Size())
}

func TestPushRejectsSharedKeyImage(t *testing.T) {
	p := New(0, 0, nil)
	txA := keyInputTx(0x01, 0x02)
	txB := keyInputTx(0x01, 0x03) // same key image, different output

	result, err := p.Push(txA, noopValidate)
	require.NoError(t, err)
	require.Equal(t, Admitted, result)

	result, err = p.Push(txB, noopValidate)
	require.NoError(t, err)
	require.Equal(t, KeyImageAlreadySpent, result)
}

func TestPushIdempotenceAndRemoveRestoresPreState(t *testing.T) {
	p := New(0, 0, nil)
	tx := keyInputTx(0x01, 0x02)
	hash := types.FastHashTransaction(tx)

	_, err := p.Push(tx, noopValidate)
	require.NoError(t, err)
	_, err = p.Push(tx, noopValidate)
	require.NoError(t, err)
	require.Equal(t, 1, p.Size())

	require.True(t, p.Remove(hash))
	require.Equal(t, 0, p.Size())
}

func TestPoolTTLEvictsAndBlocksReadmission(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	p := New(time.Hour, 30*time.Minute, clock)

	tx := keyInputTx(0x01, 0x02)
	hash := types.FastHashTransaction(tx)

	result, err := p.Push(tx, noopValidate)
	require.NoError(t, err)
	require.Equal(t, Admitted, result)

	now = now.Add(2 * time.Hour)
	removed := p.Clean(0)
	require.Contains(t, removed, hash)
	require.Equal(t, 0, p.Size())

	// within the recently-deleted window: re-admission is blocked
	result, err = p.Push(tx, noopValidate)
	require.NoError(t, err)
	require.Equal(t, RecentlyDeleted, result)

	// past the recently-deleted window: re-admission succeeds
	now = now.Add(31 * time.Minute)
	result, err = p.Push(tx, noopValidate)
	require.NoError(t, err)
	require.Equal(t, Admitted, result)
}

func TestRemoveConfirmedEvictsWithoutBlockingRestore(t *testing.T) {
	p := New(0, 0, nil)
	tx := keyInputTx(0x01, 0x02)
	hash := types.FastHashTransaction(tx)

	_, err := p.Push(tx, noopValidate)
	require.NoError(t, err)

	p.RemoveConfirmed([]crypto.Hash{hash})
	require.Equal(t, 0, p.Size())

	p.Restore([]*types.Transaction{tx})
	require.Equal(t, 1, p.Size())
	got, ok := p.Lookup(hash)
	require.True(t, ok)
	require.Equal(t, tx, got)
}

func TestForBlockTemplateRespectsBudget(t *testing.T) {
	p := New(0, 0, nil)
	tx1 := keyInputTx(0x01, 0x02)
	tx2 := keyInputTx(0x03, 0x04)
	_, err := p.Push(tx1, noopValidate)
	require.NoError(t, err)
	_, err = p.Push(tx2, noopValidate)
	require.NoError(t, err)

	size1 := len(types.EncodeTransaction(tx1))
	selected := p.ForBlockTemplate(uint64(size1))
	require.Len(t, selected, 1)
}

func TestPushRejectsInvalidTransaction(t *testing.T) {
	p := New(0, 0, nil)
	tx := keyInputTx(0x01, 0x02)
	result, err := p.Push(tx, func(*types.Transaction) error { return errInvalid })
	require.Error(t, err)
	require.Equal(t, Invalid, result)
	require.Equal(t, 0, p.Size())
}

type stubErr string

func (e stubErr) Error() string { return string(e) }

var errInvalid = stubErr("txpool: stub invalid transaction")
