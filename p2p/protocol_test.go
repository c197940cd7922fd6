package p2p

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

func TestHandshakeRoundTrip(t *testing.T) {
	req := HandshakeRequest{GenesisHash: hashFrom(1), TopHash: hashFrom(2), TopHeight: 42}
	got, err := DecodeHandshakeRequest(EncodeHandshakeRequest(req))
	require.NoError(t, err)
	require.Equal(t, req, got)

	resp := HandshakeResponse{HandshakeRequest: req, PeerAddresses: []string{"1.2.3.4:19801", "5.6.7.8:19801"}}
	gotResp, err := DecodeHandshakeResponse(EncodeHandshakeResponse(resp))
	require.NoError(t, err)
	require.Equal(t, resp, gotResp)
}

func TestTimedSyncRoundTrip(t *testing.T) {
	m := TimedSync{TopHash: hashFrom(9), TopHeight: 7}
	got, err := DecodeTimedSync(EncodeTimedSync(m))
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestNotifyNewBlockRoundTrip(t *testing.T) {
	m := NotifyNewBlock{BlockData: []byte("block-bytes"), CurrentHeight: 100}
	got, err := DecodeNotifyNewBlock(EncodeNotifyNewBlock(m))
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestNotifyNewLiteBlockRoundTrip(t *testing.T) {
	m := NotifyNewLiteBlock{
		HeaderAndCoinbase: []byte("header"),
		TransactionHashes: []crypto.Hash{hashFrom(1), hashFrom(2), hashFrom(3)},
		CurrentHeight:     55,
	}
	got, err := DecodeNotifyNewLiteBlock(EncodeNotifyNewLiteBlock(m))
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestNotifyNewTransactionsRoundTrip(t *testing.T) {
	m := NotifyNewTransactions{Transactions: [][]byte{[]byte("tx1"), []byte("tx2")}}
	got, err := DecodeNotifyNewTransactions(EncodeNotifyNewTransactions(m))
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestNotifyMissingTxsRoundTrip(t *testing.T) {
	m := NotifyMissingTxs{BlockHash: hashFrom(4), Hashes: []crypto.Hash{hashFrom(5)}}
	got, err := DecodeNotifyMissingTxs(EncodeNotifyMissingTxs(m))
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestRequestChainRoundTrip(t *testing.T) {
	m := RequestChain{SparseHashes: []crypto.Hash{hashFrom(1), hashFrom(10), hashFrom(100)}}
	got, err := DecodeRequestChain(EncodeRequestChain(m))
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestResponseChainEntryRoundTrip(t *testing.T) {
	m := ResponseChainEntry{StartHeight: 10, TotalHeight: 20, Hashes: []crypto.Hash{hashFrom(1), hashFrom(2)}}
	got, err := DecodeResponseChainEntry(EncodeResponseChainEntry(m))
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestRequestGetObjectsRoundTrip(t *testing.T) {
	m := RequestGetObjects{BlockHashes: []crypto.Hash{hashFrom(1)}, TransactionHashes: []crypto.Hash{hashFrom(2), hashFrom(3)}}
	got, err := DecodeRequestGetObjects(EncodeRequestGetObjects(m))
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestResponseGetObjectsRoundTripCompressed(t *testing.T) {
	m := ResponseGetObjects{
		Blocks:        [][]byte{[]byte("block-one"), []byte("block-two")},
		Transactions:  [][]byte{[]byte("tx-one")},
		MissingHashes: []crypto.Hash{hashFrom(9)},
	}
	compressed := EncodeResponseGetObjects(m)
	got, err := DecodeResponseGetObjects(compressed)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestRequestTxPoolRoundTrip(t *testing.T) {
	m := RequestTxPool{Hashes: []crypto.Hash{hashFrom(1), hashFrom(2)}}
	got, err := DecodeRequestTxPool(EncodeRequestTxPool(m))
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	full := EncodeHandshakeRequest(HandshakeRequest{GenesisHash: hashFrom(1), TopHash: hashFrom(2), TopHeight: 3})
	_, err := DecodeHandshakeRequest(full[:len(full)-5])
	require.Error(t, err)
}

func TestCommandString(t *testing.T) {
	require.Equal(t, "HANDSHAKE", CmdHandshake.String())
	require.Equal(t, "REQUEST_GET_OBJECTS", CmdRequestGetObjects.String())
	require.Contains(t, Command(999999).String(), "Command(")
}
