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
// Server is the P2P protocol handler named by §4.4: it accepts and dials
// connections, runs each through the ConnectionContext state machine,
// dispatches the commands in protocol.go, and feeds accepted blocks and
// transactions to the chain/pool. Grounded on node/cn's
// ProtocolManager.handle(peer)-style per-connection loop, generalized
// from klaytn's eth62/63 wire protocol to this CryptoNote-style
// REQUEST_CHAIN/GET_OBJECTS exchange.
package p2p

import (
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"github.com/qwertycoin-project/qwc-node/blockchain"
	"github.com/qwertycoin-project/qwc-node/blockchain/types"
	"github.com/qwertycoin-project/qwc-node/crypto"
	"github.com/qwertycoin-project/qwc-node/log"
	"github.com/qwertycoin-project/qwc-node/txpool"
)

var logger = log.NewModuleLogger(log.P2P)

// ChainSource is the narrow slice of blockchain.Blockchain the dispatcher
// needs: chain-tip comparison, sparse-chain supplement lookup, and block
// lookup/insertion.
type ChainSource interface {
	GetTopBlock() (blockchain.ChainTip, error)
	BuildSparseChain() []crypto.Hash
	FindSupplement(theirHashes []crypto.Hash) (uint64, bool)
	GetBlockByHash(hash crypto.Hash) (*types.Block, bool, error)
	GetBlockByHeight(height uint64) (*types.Block, bool, error)
	AddBlock(block *types.Block) (blockchain.AddResult, error)
}

// PoolSource is the narrow slice of txpool.Pool the dispatcher needs for
// transaction gossip and REQUEST_TX_POOL reconciliation.
type PoolSource interface {
	Push(tx *types.Transaction, validate txpool.Validator) (txpool.PushResult, error)
	Lookup(hash crypto.Hash) (*types.Transaction, bool)
	Hashes() []crypto.Hash
}

// Config configures a Server.
type Config struct {
	ListenAddr  string
	GenesisHash crypto.Hash
	Chain       ChainSource
	Pool        PoolSource
	PeerList    *PeerListManager
	Bans        *BanList
	MaxPeers    int
}

// Server owns the listener and every live Peer.
type Server struct {
	cfg Config

	mu    sync.Mutex
	peers map[string]*Peer

	relay   *gossipFilter
	metrics *dispatchMetrics
	down    shuttingDown

	listener net.Listener
}

// NewServer constructs a Server; call Serve to start accepting.
func NewServer(cfg Config) *Server {
	if cfg.MaxPeers <= 0 {
		cfg.MaxPeers = 64
	}
	return &Server{
		cfg:     cfg,
		peers:   make(map[string]*Peer),
		relay:   newGossipFilter(),
		metrics: newDispatchMetrics(),
	}
}

// Serve opens the listener and accepts connections until Shutdown is
// called or an unrecoverable accept error occurs.
func (s *Server) Serve() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	// LimitListener bounds concurrent in-flight accepts (including ones
	// still mid-handshake, before the PeerCount/ban checks below apply);
	// the 2x headroom over MaxPeers absorbs churn from connections that
	// get rejected just after accept.
	s.listener = netutil.LimitListener(ln, s.cfg.MaxPeers*2)
	logger.Info("p2p: listening", "addr", s.cfg.ListenAddr)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.down.get() {
				return nil
			}
			return err
		}
		if s.cfg.Bans != nil && s.cfg.Bans.IsBanned(hostOf(conn.RemoteAddr())) {
			conn.Close()
			continue
		}
		if s.PeerCount() >= s.cfg.MaxPeers {
			conn.Close()
			continue
		}
		go s.handle(NewPeer(conn, s.cfg.GenesisHash, false))
	}
}

func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// Dial connects out to addr and runs the connection through the same
// handshake/dispatch path as an accepted connection.
func (s *Server) Dial(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return err
	}
	peer := NewPeer(conn, s.cfg.GenesisHash, true)
	go s.handle(peer)
	return s.sendHandshake(peer)
}

// Shutdown stops accepting new connections and closes every live peer.
func (s *Server) Shutdown() {
	s.down.set()
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.peers {
		p.ForceState(StateShutdown)
		p.Close()
	}
}

func (s *Server) PeerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

func (s *Server) addPeer(p *Peer) {
	s.mu.Lock()
	s.peers[p.ID.String()] = p
	s.mu.Unlock()
	s.metrics.peerConnected()
}

func (s *Server) removePeer(p *Peer) {
	s.mu.Lock()
	delete(s.peers, p.ID.String())
	s.mu.Unlock()
	s.metrics.peerDisconnected()
}

func (s *Server) handle(p *Peer) {
	s.addPeer(p)
	defer func() {
		s.removePeer(p)
		p.Close()
	}()

	for {
		if s.down.get() {
			return
		}
		cmd, payload, err := p.ReadMessage()
		if err != nil {
			logger.Debug("p2p: connection closed", "peer", p, "err", err)
			return
		}
		s.metrics.recordReceived(cmd)
		if err := s.dispatch(p, cmd, payload); err != nil {
			logger.Warn("p2p: dispatch error, dropping connection", "peer", p, "cmd", cmd, "err", err)
			if s.cfg.Bans != nil {
				s.cfg.Bans.Ban(hostOf(p.RemoteAddr()))
				s.metrics.banned()
			}
			return
		}
	}
}

func (s *Server) sendHandshake(p *Peer) error {
	tip, err := s.cfg.Chain.GetTopBlock()
	if err != nil {
		return err
	}
	req := HandshakeRequest{GenesisHash: s.cfg.GenesisHash, TopHash: tip.Hash, TopHeight: tip.Height}
	return p.Send(CmdHandshake, EncodeHandshakeRequest(req))
}

func (s *Server) dispatch(p *Peer, cmd Command, payload []byte) error {
	if err := p.Advance(cmd); err != nil {
		return err
	}

	switch cmd {
	case CmdHandshake:
		return s.onHandshake(p, payload)
	case CmdTimedSync:
		return s.onTimedSync(p, payload)
	case CmdPing:
		return p.Send(CmdPing, nil)
	case CmdNotifyNewBlock:
		return s.onNotifyNewBlock(p, payload)
	case CmdNotifyNewLiteBlock:
		return s.onNotifyNewLiteBlock(p, payload)
	case CmdNotifyNewTransactions:
		return s.onNotifyNewTransactions(p, payload)
	case CmdNotifyMissingTxs:
		return s.onNotifyMissingTxs(p, payload)
	case CmdRequestChain:
		return s.onRequestChain(p, payload)
	case CmdResponseChainEntry:
		return s.onResponseChainEntry(p, payload)
	case CmdRequestGetObjects:
		return s.onRequestGetObjects(p, payload)
	case CmdResponseGetObjects:
		return s.onResponseGetObjects(p, payload)
	case CmdRequestTxPool:
		return s.onRequestTxPool(p, payload)
	default:
		return fmt.Errorf("p2p: %s", ErrUnknownCommand)
	}
}

func (s *Server) onHandshake(p *Peer, payload []byte) error {
	req, err := DecodeHandshakeRequest(payload)
	if err != nil {
		return fmt.Errorf("p2p: %s: %v", ErrDecode, err)
	}
	if req.GenesisHash != s.cfg.GenesisHash {
		return fmt.Errorf("p2p: peer genesis %s does not match ours %s", req.GenesisHash, s.cfg.GenesisHash)
	}
	p.RecordTip(req.TopHash, req.TopHeight)

	if !p.outbound {
		tip, err := s.cfg.Chain.GetTopBlock()
		if err != nil {
			return err
		}
		var addrs []string
		if s.cfg.PeerList != nil {
			for i := 0; i < 16; i++ {
				addr, ok := s.cfg.PeerList.SelectForConnect()
				if !ok {
					break
				}
				addrs = append(addrs, addr)
			}
		}
		resp := HandshakeResponse{
			HandshakeRequest: HandshakeRequest{GenesisHash: s.cfg.GenesisHash, TopHash: tip.Hash, TopHeight: tip.Height},
			PeerAddresses:    addrs,
		}
		if err := p.Send(CmdHandshake, EncodeHandshakeResponse(resp)); err != nil {
			return err
		}
	}
	if s.cfg.PeerList != nil {
		s.cfg.PeerList.MarkWhite(hostOf(p.RemoteAddr()))
	}
	return s.maybeRequestChain(p)
}

func (s *Server) onTimedSync(p *Peer, payload []byte) error {
	ts, err := DecodeTimedSync(payload)
	if err != nil {
		return fmt.Errorf("p2p: %s: %v", ErrDecode, err)
	}
	p.RecordTip(ts.TopHash, ts.TopHeight)
	return s.maybeRequestChain(p)
}

func (s *Server) maybeRequestChain(p *Peer) error {
	tip, err := s.cfg.Chain.GetTopBlock()
	if err != nil {
		return err
	}
	_, height := p.Tip()
	if height <= tip.Height {
		return nil
	}
	req := RequestChain{SparseHashes: s.cfg.Chain.BuildSparseChain()}
	return p.Send(CmdRequestChain, EncodeRequestChain(req))
}

func (s *Server) onRequestChain(p *Peer, payload []byte) error {
	req, err := DecodeRequestChain(payload)
	if err != nil {
		return fmt.Errorf("p2p: %s: %v", ErrDecode, err)
	}
	start, ok := s.cfg.Chain.FindSupplement(req.SparseHashes)
	if !ok {
		return fmt.Errorf("p2p: no common ancestor with peer's sparse chain")
	}
	tip, err := s.cfg.Chain.GetTopBlock()
	if err != nil {
		return err
	}
	var hashes []crypto.Hash
	for h := start; h <= tip.Height; h++ {
		block, ok, err := s.cfg.Chain.GetBlockByHeight(h)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		hashes = append(hashes, types.FastHashTransaction(&block.BaseTransaction))
	}
	resp := ResponseChainEntry{StartHeight: start, TotalHeight: tip.Height, Hashes: hashes}
	return p.Send(CmdResponseChainEntry, EncodeResponseChainEntry(resp))
}

func (s *Server) onResponseChainEntry(p *Peer, payload []byte) error {
	entry, err := DecodeResponseChainEntry(payload)
	if err != nil {
		return fmt.Errorf("p2p: %s: %v", ErrDecode, err)
	}
	if len(entry.Hashes) == 0 {
		p.ForceState(StateIdle) // supplement was already caught up, nothing to fetch
		return nil
	}
	req := RequestGetObjects{BlockHashes: entry.Hashes}
	return p.Send(CmdRequestGetObjects, EncodeRequestGetObjects(req))
}

func (s *Server) onRequestGetObjects(p *Peer, payload []byte) error {
	req, err := DecodeRequestGetObjects(payload)
	if err != nil {
		return fmt.Errorf("p2p: %s: %v", ErrDecode, err)
	}
	resp := ResponseGetObjects{}
	for _, h := range req.BlockHashes {
		block, ok, err := s.cfg.Chain.GetBlockByHash(h)
		if err != nil {
			return err
		}
		if !ok {
			resp.MissingHashes = append(resp.MissingHashes, h)
			continue
		}
		resp.Blocks = append(resp.Blocks, types.EncodeBlockForStorage(block))
	}
	for _, h := range req.TransactionHashes {
		tx, ok := s.cfg.Pool.Lookup(h)
		if !ok {
			resp.MissingHashes = append(resp.MissingHashes, h)
			continue
		}
		resp.Transactions = append(resp.Transactions, types.EncodeTransaction(tx))
	}
	return p.Send(CmdResponseGetObjects, EncodeResponseGetObjects(resp))
}

func (s *Server) onResponseGetObjects(p *Peer, payload []byte) error {
	resp, err := DecodeResponseGetObjects(payload)
	if err != nil {
		return fmt.Errorf("p2p: %s: %v", ErrDecode, err)
	}
	for _, raw := range resp.Blocks {
		block, err := types.DecodeBlock(raw)
		if err != nil {
			return fmt.Errorf("p2p: %s: %v", ErrDecode, err)
		}
		hash := types.FastHashTransaction(&block.BaseTransaction)
		p.MarkBlockKnown(hash)
		if _, err := s.cfg.Chain.AddBlock(block); err != nil {
			logger.Warn("p2p: rejected block from peer", "peer", p, "hash", hash, "err", err)
		}
	}
	for _, raw := range resp.Transactions {
		tx, err := types.DecodeTransaction(raw)
		if err != nil {
			return fmt.Errorf("p2p: %s: %v", ErrDecode, err)
		}
		hash := types.FastHashTransaction(tx)
		p.MarkTransactionKnown(hash)
		if _, err := s.cfg.Pool.Push(tx, nil); err != nil {
			logger.Debug("p2p: pool rejected transaction from peer", "peer", p, "hash", hash, "err", err)
		}
	}
	return nil
}

func (s *Server) onNotifyNewBlock(p *Peer, payload []byte) error {
	n, err := DecodeNotifyNewBlock(payload)
	if err != nil {
		return fmt.Errorf("p2p: %s: %v", ErrDecode, err)
	}
	block, err := types.DecodeBlock(n.BlockData)
	if err != nil {
		return fmt.Errorf("p2p: %s: %v", ErrDecode, err)
	}
	hash := types.FastHashTransaction(&block.BaseTransaction)
	p.MarkBlockKnown(hash)
	result, err := s.cfg.Chain.AddBlock(block)
	if err != nil {
		logger.Debug("p2p: rejected announced block", "peer", p, "hash", hash, "err", err)
		return nil
	}
	if result == blockchain.AddedToMain || result == blockchain.AddedToAlt {
		s.relayBlock(p, block, hash)
	}
	return nil
}

func (s *Server) onNotifyNewLiteBlock(p *Peer, payload []byte) error {
	lite, err := DecodeNotifyNewLiteBlock(payload)
	if err != nil {
		return fmt.Errorf("p2p: %s: %v", ErrDecode, err)
	}
	var missing []crypto.Hash
	for _, h := range lite.TransactionHashes {
		if _, ok := s.cfg.Pool.Lookup(h); !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	req := NotifyMissingTxs{BlockHash: crypto.FastHash(lite.HeaderAndCoinbase), Hashes: missing}
	return p.Send(CmdNotifyMissingTxs, EncodeNotifyMissingTxs(req))
}

func (s *Server) onNotifyMissingTxs(p *Peer, payload []byte) error {
	req, err := DecodeNotifyMissingTxs(payload)
	if err != nil {
		return fmt.Errorf("p2p: %s: %v", ErrDecode, err)
	}
	var found NotifyNewTransactions
	for _, h := range req.Hashes {
		if tx, ok := s.cfg.Pool.Lookup(h); ok {
			found.Transactions = append(found.Transactions, types.EncodeTransaction(tx))
		}
	}
	if len(found.Transactions) == 0 {
		return nil
	}
	return p.Send(CmdNotifyNewTransactions, EncodeNotifyNewTransactions(found))
}

func (s *Server) onNotifyNewTransactions(p *Peer, payload []byte) error {
	n, err := DecodeNotifyNewTransactions(payload)
	if err != nil {
		return fmt.Errorf("p2p: %s: %v", ErrDecode, err)
	}
	for _, raw := range n.Transactions {
		tx, err := types.DecodeTransaction(raw)
		if err != nil {
			continue
		}
		hash := types.FastHashTransaction(tx)
		p.MarkTransactionKnown(hash)
		if _, err := s.cfg.Pool.Push(tx, nil); err == nil {
			s.relayTransaction(p, tx, hash)
		}
	}
	return nil
}

func (s *Server) onRequestTxPool(p *Peer, payload []byte) error {
	req, err := DecodeRequestTxPool(payload)
	if err != nil {
		return fmt.Errorf("p2p: %s: %v", ErrDecode, err)
	}
	known := make(map[crypto.Hash]struct{}, len(req.Hashes))
	for _, h := range req.Hashes {
		known[h] = struct{}{}
	}
	var resp NotifyNewTransactions
	for _, h := range s.cfg.Pool.Hashes() {
		if _, ok := known[h]; ok {
			continue
		}
		if tx, ok := s.cfg.Pool.Lookup(h); ok {
			resp.Transactions = append(resp.Transactions, types.EncodeTransaction(tx))
		}
	}
	if len(resp.Transactions) == 0 {
		return nil
	}
	return p.Send(CmdNotifyNewTransactions, EncodeNotifyNewTransactions(resp))
}

// relayBlock forwards a newly accepted block to every other connected
// peer that the gossip filter hasn't already seen it go to, skipping any
// peer whose own known-block cache already holds the hash (meaning it was
// the source, or already relayed to it another way).
func (s *Server) relayBlock(origin *Peer, block *types.Block, hash crypto.Hash) {
	if s.relay.MarkAndCheck(hash) {
		return
	}
	payload := EncodeNotifyNewBlock(NotifyNewBlock{BlockData: types.EncodeBlockForStorage(block)})
	s.forEachOtherPeer(origin, func(p *Peer) {
		if p.KnowsBlock(hash) {
			return
		}
		if err := p.Send(CmdNotifyNewBlock, payload); err != nil {
			logger.Debug("p2p: relay failed", "peer", p, "err", err)
		}
	})
}

func (s *Server) relayTransaction(origin *Peer, tx *types.Transaction, hash crypto.Hash) {
	if s.relay.MarkAndCheck(hash) {
		return
	}
	payload := EncodeNotifyNewTransactions(NotifyNewTransactions{Transactions: [][]byte{types.EncodeTransaction(tx)}})
	s.forEachOtherPeer(origin, func(p *Peer) {
		if p.KnowsTransaction(hash) {
			return
		}
		if err := p.Send(CmdNotifyNewTransactions, payload); err != nil {
			logger.Debug("p2p: relay failed", "peer", p, "err", err)
		}
	})
}

func (s *Server) forEachOtherPeer(origin *Peer, fn func(*Peer)) {
	s.mu.Lock()
	peers := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		if p != origin {
			peers = append(peers, p)
		}
	}
	s.mu.Unlock()
	for _, p := range peers {
		fn(p)
	}
}

// BroadcastMined relays a block this node produced itself (it is already
// present in Chain; there is no origin peer to exclude from the fan-out).
func (s *Server) BroadcastMined(block *types.Block, hash crypto.Hash) {
	s.relayBlock(nil, block, hash)
}
