// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.
//
// Package p2p is the peer-to-peer synchronization protocol: the
// ConnectionContext state machine, command dispatch, peer-list and ban
// management, per §4.4. The command-code/errCode table style is grounded on
// node/cn/protocol.go's klay62/63 message-code block; the commands
// themselves are CryptoNoteProtocol's, not klaytn's.
package p2p

import (
	"fmt"

	"github.com/golang/snappy"

	"github.com/qwertycoin-project/qwc-node/blockchain/types"
	"github.com/qwertycoin-project/qwc-node/crypto"
)

// Command identifies a wire message.
type Command uint32

const (
	CmdHandshake Command = 1001 + iota
	CmdTimedSync
	CmdPing
)

const (
	CmdNotifyNewBlock Command = 2001 + iota
	CmdNotifyNewLiteBlock
	CmdNotifyNewTransactions
	CmdNotifyMissingTxs
	_ // reserved, matches a gap in the reference command numbering
	CmdRequestChain
	CmdResponseChainEntry
	CmdRequestGetObjects
	CmdResponseGetObjects
	CmdRequestTxPool
)

func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Command(%d)", uint32(c))
}

var commandNames = map[Command]string{
	CmdHandshake:             "HANDSHAKE",
	CmdTimedSync:             "TIMED_SYNC",
	CmdPing:                  "PING",
	CmdNotifyNewBlock:        "NOTIFY_NEW_BLOCK",
	CmdNotifyNewLiteBlock:    "NOTIFY_NEW_LITE_BLOCK",
	CmdNotifyNewTransactions: "NOTIFY_NEW_TRANSACTIONS",
	CmdNotifyMissingTxs:      "NOTIFY_MISSING_TXS",
	CmdRequestChain:          "REQUEST_CHAIN",
	CmdResponseChainEntry:    "RESPONSE_CHAIN_ENTRY",
	CmdRequestGetObjects:     "REQUEST_GET_OBJECTS",
	CmdResponseGetObjects:    "RESPONSE_GET_OBJECTS",
	CmdRequestTxPool:         "REQUEST_TX_POOL",
}

type errCode int

const (
	ErrMsgTooLarge errCode = iota
	ErrDecode
	ErrUnknownCommand
	ErrUnexpectedInState
)

func (e errCode) String() string { return errorToString[e] }

var errorToString = map[errCode]string{
	ErrMsgTooLarge:       "message too large",
	ErrDecode:            "failed to decode message",
	ErrUnknownCommand:    "unknown command",
	ErrUnexpectedInState: "command not valid in current connection state",
}

// MaxMessageSize bounds a single decoded wire payload.
const MaxMessageSize = 16 * 1024 * 1024

// HandshakeRequest is the first message a dialing connection sends.
type HandshakeRequest struct {
	PeerID      [16]byte
	GenesisHash crypto.Hash
	TopHash     crypto.Hash
	TopHeight   uint64
}

func EncodeHandshakeRequest(m HandshakeRequest) []byte {
	w := types.NewWriter()
	w.WriteFixed(m.PeerID[:])
	w.WriteFixed(m.GenesisHash[:])
	w.WriteFixed(m.TopHash[:])
	w.WriteVarint(m.TopHeight)
	return w.Bytes()
}

func DecodeHandshakeRequest(data []byte) (HandshakeRequest, error) {
	r := types.NewReader(data)
	var m HandshakeRequest
	copy(m.PeerID[:], r.ReadFixed(16))
	copy(m.GenesisHash[:], r.ReadFixed(32))
	copy(m.TopHash[:], r.ReadFixed(32))
	m.TopHeight = r.ReadVarint()
	if r.Err() != nil {
		return HandshakeRequest{}, r.Err()
	}
	return m, nil
}

// HandshakeResponse additionally carries a batch of addresses from the
// responder's peer list, per PeerlistManager's handshake exchange.
type HandshakeResponse struct {
	HandshakeRequest
	PeerAddresses []string
}

func EncodeHandshakeResponse(m HandshakeResponse) []byte {
	w := types.NewWriter()
	w.WriteFixed(m.PeerID[:])
	w.WriteFixed(m.GenesisHash[:])
	w.WriteFixed(m.TopHash[:])
	w.WriteVarint(m.TopHeight)
	w.WriteVarint(uint64(len(m.PeerAddresses)))
	for _, addr := range m.PeerAddresses {
		w.WriteBytes([]byte(addr))
	}
	return w.Bytes()
}

func DecodeHandshakeResponse(data []byte) (HandshakeResponse, error) {
	r := types.NewReader(data)
	var m HandshakeResponse
	copy(m.PeerID[:], r.ReadFixed(16))
	copy(m.GenesisHash[:], r.ReadFixed(32))
	copy(m.TopHash[:], r.ReadFixed(32))
	m.TopHeight = r.ReadVarint()
	n := r.ReadVarint()
	m.PeerAddresses = make([]string, n)
	for i := range m.PeerAddresses {
		m.PeerAddresses[i] = string(r.ReadBytes())
	}
	if r.Err() != nil {
		return HandshakeResponse{}, r.Err()
	}
	return m, nil
}

// TimedSync is periodically exchanged to compare chain tips.
type TimedSync struct {
	TopHash   crypto.Hash
	TopHeight uint64
}

func EncodeTimedSync(m TimedSync) []byte {
	w := types.NewWriter()
	w.WriteFixed(m.TopHash[:])
	w.WriteVarint(m.TopHeight)
	return w.Bytes()
}

func DecodeTimedSync(data []byte) (TimedSync, error) {
	r := types.NewReader(data)
	var m TimedSync
	copy(m.TopHash[:], r.ReadFixed(32))
	m.TopHeight = r.ReadVarint()
	if r.Err() != nil {
		return TimedSync{}, r.Err()
	}
	return m, nil
}

// NotifyNewBlock relays a freshly accepted block in full.
type NotifyNewBlock struct {
	BlockData     []byte
	CurrentHeight uint64
}

func EncodeNotifyNewBlock(m NotifyNewBlock) []byte {
	w := types.NewWriter()
	w.WriteBytes(m.BlockData)
	w.WriteVarint(m.CurrentHeight)
	return w.Bytes()
}

func DecodeNotifyNewBlock(data []byte) (NotifyNewBlock, error) {
	r := types.NewReader(data)
	m := NotifyNewBlock{BlockData: r.ReadBytes(), CurrentHeight: r.ReadVarint()}
	if r.Err() != nil {
		return NotifyNewBlock{}, r.Err()
	}
	return m, nil
}

// NotifyNewLiteBlock relays a block's header plus the hashes of the
// transactions it references, letting a peer that already holds most of
// those transactions skip re-downloading their bodies.
type NotifyNewLiteBlock struct {
	HeaderAndCoinbase []byte
	TransactionHashes []crypto.Hash
	CurrentHeight     uint64
}

func EncodeNotifyNewLiteBlock(m NotifyNewLiteBlock) []byte {
	w := types.NewWriter()
	w.WriteBytes(m.HeaderAndCoinbase)
	w.WriteVarint(uint64(len(m.TransactionHashes)))
	for _, h := range m.TransactionHashes {
		w.WriteFixed(h[:])
	}
	w.WriteVarint(m.CurrentHeight)
	return w.Bytes()
}

func DecodeNotifyNewLiteBlock(data []byte) (NotifyNewLiteBlock, error) {
	r := types.NewReader(data)
	var m NotifyNewLiteBlock
	m.HeaderAndCoinbase = r.ReadBytes()
	n := r.ReadVarint()
	m.TransactionHashes = make([]crypto.Hash, n)
	for i := range m.TransactionHashes {
		copy(m.TransactionHashes[i][:], r.ReadFixed(32))
	}
	m.CurrentHeight = r.ReadVarint()
	if r.Err() != nil {
		return NotifyNewLiteBlock{}, r.Err()
	}
	return m, nil
}

// NotifyNewTransactions gossips full transaction bodies.
type NotifyNewTransactions struct {
	Transactions [][]byte
}

func EncodeNotifyNewTransactions(m NotifyNewTransactions) []byte {
	w := types.NewWriter()
	w.WriteVarint(uint64(len(m.Transactions)))
	for _, tx := range m.Transactions {
		w.WriteBytes(tx)
	}
	return w.Bytes()
}

func DecodeNotifyNewTransactions(data []byte) (NotifyNewTransactions, error) {
	r := types.NewReader(data)
	n := r.ReadVarint()
	m := NotifyNewTransactions{Transactions: make([][]byte, n)}
	for i := range m.Transactions {
		m.Transactions[i] = r.ReadBytes()
	}
	if r.Err() != nil {
		return NotifyNewTransactions{}, r.Err()
	}
	return m, nil
}

// NotifyMissingTxs asks the sender of a lite block for the bodies of
// transactions the requester didn't already have.
type NotifyMissingTxs struct {
	BlockHash crypto.Hash
	Hashes    []crypto.Hash
}

func EncodeNotifyMissingTxs(m NotifyMissingTxs) []byte {
	w := types.NewWriter()
	w.WriteFixed(m.BlockHash[:])
	w.WriteVarint(uint64(len(m.Hashes)))
	for _, h := range m.Hashes {
		w.WriteFixed(h[:])
	}
	return w.Bytes()
}

func DecodeNotifyMissingTxs(data []byte) (NotifyMissingTxs, error) {
	r := types.NewReader(data)
	var m NotifyMissingTxs
	copy(m.BlockHash[:], r.ReadFixed(32))
	n := r.ReadVarint()
	m.Hashes = make([]crypto.Hash, n)
	for i := range m.Hashes {
		copy(m.Hashes[i][:], r.ReadFixed(32))
	}
	if r.Err() != nil {
		return NotifyMissingTxs{}, r.Err()
	}
	return m, nil
}

// RequestChain carries a sparse "do you know these" probe, per
// Blockchain.BuildSparseChain.
type RequestChain struct {
	SparseHashes []crypto.Hash
}

func EncodeRequestChain(m RequestChain) []byte {
	w := types.NewWriter()
	w.WriteVarint(uint64(len(m.SparseHashes)))
	for _, h := range m.SparseHashes {
		w.WriteFixed(h[:])
	}
	return w.Bytes()
}

func DecodeRequestChain(data []byte) (RequestChain, error) {
	r := types.NewReader(data)
	n := r.ReadVarint()
	m := RequestChain{SparseHashes: make([]crypto.Hash, n)}
	for i := range m.SparseHashes {
		copy(m.SparseHashes[i][:], r.ReadFixed(32))
	}
	if r.Err() != nil {
		return RequestChain{}, r.Err()
	}
	return m, nil
}

// ResponseChainEntry answers a REQUEST_CHAIN with the hashes from the
// supplement height up to the responder's tip.
type ResponseChainEntry struct {
	StartHeight uint64
	TotalHeight uint64
	Hashes      []crypto.Hash
}

func EncodeResponseChainEntry(m ResponseChainEntry) []byte {
	w := types.NewWriter()
	w.WriteVarint(m.StartHeight)
	w.WriteVarint(m.TotalHeight)
	w.WriteVarint(uint64(len(m.Hashes)))
	for _, h := range m.Hashes {
		w.WriteFixed(h[:])
	}
	return w.Bytes()
}

func DecodeResponseChainEntry(data []byte) (ResponseChainEntry, error) {
	r := types.NewReader(data)
	var m ResponseChainEntry
	m.StartHeight = r.ReadVarint()
	m.TotalHeight = r.ReadVarint()
	n := r.ReadVarint()
	m.Hashes = make([]crypto.Hash, n)
	for i := range m.Hashes {
		copy(m.Hashes[i][:], r.ReadFixed(32))
	}
	if r.Err() != nil {
		return ResponseChainEntry{}, r.Err()
	}
	return m, nil
}

// RequestGetObjects asks for the bodies of the named blocks and
// transactions.
type RequestGetObjects struct {
	BlockHashes       []crypto.Hash
	TransactionHashes []crypto.Hash
}

func EncodeRequestGetObjects(m RequestGetObjects) []byte {
	w := types.NewWriter()
	w.WriteVarint(uint64(len(m.BlockHashes)))
	for _, h := range m.BlockHashes {
		w.WriteFixed(h[:])
	}
	w.WriteVarint(uint64(len(m.TransactionHashes)))
	for _, h := range m.TransactionHashes {
		w.WriteFixed(h[:])
	}
	return w.Bytes()
}

func DecodeRequestGetObjects(data []byte) (RequestGetObjects, error) {
	r := types.NewReader(data)
	var m RequestGetObjects
	nb := r.ReadVarint()
	m.BlockHashes = make([]crypto.Hash, nb)
	for i := range m.BlockHashes {
		copy(m.BlockHashes[i][:], r.ReadFixed(32))
	}
	nt := r.ReadVarint()
	m.TransactionHashes = make([]crypto.Hash, nt)
	for i := range m.TransactionHashes {
		copy(m.TransactionHashes[i][:], r.ReadFixed(32))
	}
	if r.Err() != nil {
		return RequestGetObjects{}, r.Err()
	}
	return m, nil
}

// ResponseGetObjects answers REQUEST_GET_OBJECTS with the bodies found and
// the hashes that weren't. The wire payload is snappy-compressed as a whole
// (the same compressor the teacher already depends on for block-body
// storage), since bulk object responses are this protocol's largest
// messages.
type ResponseGetObjects struct {
	Blocks       [][]byte
	Transactions [][]byte
	MissingHashes []crypto.Hash
}

func EncodeResponseGetObjects(m ResponseGetObjects) []byte {
	w := types.NewWriter()
	w.WriteVarint(uint64(len(m.Blocks)))
	for _, b := range m.Blocks {
		w.WriteBytes(b)
	}
	w.WriteVarint(uint64(len(m.Transactions)))
	for _, tx := range m.Transactions {
		w.WriteBytes(tx)
	}
	w.WriteVarint(uint64(len(m.MissingHashes)))
	for _, h := range m.MissingHashes {
		w.WriteFixed(h[:])
	}
	return snappy.Encode(nil, w.Bytes())
}

func DecodeResponseGetObjects(compressed []byte) (ResponseGetObjects, error) {
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return ResponseGetObjects{}, err
	}
	r := types.NewReader(data)
	var m ResponseGetObjects
	nb := r.ReadVarint()
	m.Blocks = make([][]byte, nb)
	for i := range m.Blocks {
		m.Blocks[i] = r.ReadBytes()
	}
	nt := r.ReadVarint()
	m.Transactions = make([][]byte, nt)
	for i := range m.Transactions {
		m.Transactions[i] = r.ReadBytes()
	}
	nm := r.ReadVarint()
	m.MissingHashes = make([]crypto.Hash, nm)
	for i := range m.MissingHashes {
		copy(m.MissingHashes[i][:], r.ReadFixed(32))
	}
	if r.Err() != nil {
		return ResponseGetObjects{}, r.Err()
	}
	return m, nil
}

// RequestTxPool exchanges pool transaction hash sets; the receiver answers
// with NOTIFY_NEW_TRANSACTIONS for any hash it has that the sender doesn't
// list.
type RequestTxPool struct {
	Hashes []crypto.Hash
}

func EncodeRequestTxPool(m RequestTxPool) []byte {
	w := types.NewWriter()
	w.WriteVarint(uint64(len(m.Hashes)))
	for _, h := range m.Hashes {
		w.WriteFixed(h[:])
	}
	return w.Bytes()
}

func DecodeRequestTxPool(data []byte) (RequestTxPool, error) {
	r := types.NewReader(data)
	n := r.ReadVarint()
	m := RequestTxPool{Hashes: make([]crypto.Hash, n)}
	for i := range m.Hashes {
		copy(m.Hashes[i][:], r.ReadFixed(32))
	}
	if r.Err() != nil {
		return RequestTxPool{}, r.Err()
	}
	return m, nil
}
