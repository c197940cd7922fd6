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
// Peer is the per-connection handle: framing, the known-block/known-tx
// caches that keep gossip from echoing back to its source, and the
// ConnectionContext state the dispatcher drives. Grounded on
// node/cn/peer.go's basePeer (Send/Handshake split, knownBlocks/knownTxs
// caches built through a newKnownBlockCache()-style helper), generalized
// from klay62/63's eth-style block/tx announcements to this protocol's
// REQUEST_CHAIN/RESPONSE_GET_OBJECTS exchange.
package p2p

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/qwertycoin-project/qwc-node/common"
	"github.com/qwertycoin-project/qwc-node/crypto"
)

// knownCacheSize bounds how many block/tx hashes a peer's dedup caches
// remember, the same order of magnitude node/cn/peer.go uses for its
// knownBlocks/knownTxs LRUs.
const knownCacheSize = 4096

// frameHeaderSize is the wire framing: a 4-byte command code followed by a
// 4-byte payload length, both big-endian.
const frameHeaderSize = 8

func newKnownCache() common.Cache {
	c, err := common.NewCache(common.LRUConfig{CacheSize: knownCacheSize})
	if err != nil {
		// LRUConfig.newCache only fails on a negative size, which
		// knownCacheSize never is.
		panic(fmt.Sprintf("p2p: known-item cache: %v", err))
	}
	return c
}

// Peer is one live connection's protocol-level state.
type Peer struct {
	ID   uuid.UUID
	conn net.Conn
	rw   *bufio.ReadWriter

	mu    sync.Mutex
	state State

	writeMu sync.Mutex

	remoteTopHash   crypto.Hash
	remoteTopHeight uint64
	genesisHash     crypto.Hash

	knownBlocks common.Cache
	knownTxs    common.Cache

	outbound bool
	created  time.Time
}

// NewPeer wraps an already-dialed or already-accepted connection.
func NewPeer(conn net.Conn, genesisHash crypto.Hash, outbound bool) *Peer {
	return &Peer{
		ID:          uuid.NewV4(),
		conn:        conn,
		rw:          bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn)),
		state:       StateBeforeHandshake,
		genesisHash: genesisHash,
		knownBlocks: newKnownCache(),
		knownTxs:    newKnownCache(),
		outbound:    outbound,
		created:     time.Now(),
	}
}

func (p *Peer) String() string {
	return fmt.Sprintf("%s@%s", p.ID, p.conn.RemoteAddr())
}

func (p *Peer) RemoteAddr() net.Addr { return p.conn.RemoteAddr() }

// State returns the connection's current synchronization state.
func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Advance validates and applies cmd's transition out of the peer's current
// state, per the table in state.go.
func (p *Peer) Advance(cmd Command) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	to, err := next(p.state, cmd)
	if err != nil {
		return err
	}
	p.state = to
	return nil
}

// ForceState bypasses the transition table; used to drop a connection into
// StateShutdown from any state.
func (p *Peer) ForceState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

// RecordTip updates the peer's last-announced chain tip, consulted when
// deciding whether a REQUEST_CHAIN round trip is needed.
func (p *Peer) RecordTip(hash crypto.Hash, height uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remoteTopHash = hash
	p.remoteTopHeight = height
}

func (p *Peer) Tip() (crypto.Hash, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remoteTopHash, p.remoteTopHeight
}

// KnowsBlock reports whether hash was already sent to or received from this
// peer, and marks it known either way.
func (p *Peer) KnowsBlock(hash crypto.Hash) bool {
	key := common.HashKey(hash)
	if p.knownBlocks.Contains(key) {
		return true
	}
	p.knownBlocks.Add(key, struct{}{})
	return false
}

// KnowsTransaction is KnowsBlock's transaction-hash counterpart.
func (p *Peer) KnowsTransaction(hash crypto.Hash) bool {
	key := common.HashKey(hash)
	if p.knownTxs.Contains(key) {
		return true
	}
	p.knownTxs.Add(key, struct{}{})
	return false
}

// MarkBlockKnown records hash as known without testing it first, used when
// relaying a block this peer just sent us to every other peer.
func (p *Peer) MarkBlockKnown(hash crypto.Hash) { p.knownBlocks.Add(common.HashKey(hash), struct{}{}) }

// MarkTransactionKnown is MarkBlockKnown's transaction-hash counterpart.
func (p *Peer) MarkTransactionKnown(hash crypto.Hash) {
	p.knownTxs.Add(common.HashKey(hash), struct{}{})
}

// Send frames and writes a single command/payload message. Safe for
// concurrent use; the underlying bufio.Writer is guarded by writeMu.
func (p *Peer) Send(cmd Command, payload []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(cmd))
	binary.BigEndian.PutUint32(header[4:8], uint32(len(payload)))
	if _, err := p.rw.Write(header[:]); err != nil {
		return err
	}
	if _, err := p.rw.Write(payload); err != nil {
		return err
	}
	return p.rw.Flush()
}

// ReadMessage blocks for the next framed message. Returns io.EOF (or a
// wrapped variant) when the peer closes the connection.
func (p *Peer) ReadMessage() (Command, []byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(p.rw, header[:]); err != nil {
		return 0, nil, err
	}
	cmd := Command(binary.BigEndian.Uint32(header[0:4]))
	size := binary.BigEndian.Uint32(header[4:8])
	if size > MaxMessageSize {
		return cmd, nil, fmt.Errorf("p2p: %s: %s (%d bytes)", cmd, ErrMsgTooLarge, size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(p.rw, payload); err != nil {
		return cmd, nil, err
	}
	return cmd, payload, nil
}

func (p *Peer) Close() error { return p.conn.Close() }
