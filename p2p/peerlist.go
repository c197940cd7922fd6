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
// PeerListManager tracks every address the node has ever heard about,
// split into a white list (addresses we've successfully connected to) and
// a gray list (addresses only heard of second-hand, not yet dialed), per
// PeerlistManager.cpp/h's white/gray split and priority-weighted
// selection. Persisted through dgraph-io/badger so a restarted node keeps
// its peer list instead of re-bootstrapping from seed nodes every time.
package p2p

import (
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/dgraph-io/badger"

	"github.com/qwertycoin-project/qwc-node/log"
)

var plLogger = log.NewModuleLogger(log.P2P)

// MaxWhiteListSize and MaxGrayListSize bound how many addresses each list
// remembers, evicting the least-recently-seen entry once full.
const (
	MaxWhiteListSize = 1000
	MaxGrayListSize  = 5000
)

// PeerEntry is one remembered address.
type PeerEntry struct {
	Address    string    `json:"address"`
	LastSeen   time.Time `json:"last_seen"`
	LastBanned time.Time `json:"last_banned,omitempty"`
}

const (
	whitePrefix = "white/"
	grayPrefix  = "gray/"
)

// PeerListManager owns the white and gray address lists, badger-persisted
// under dbPath.
type PeerListManager struct {
	mu sync.Mutex
	db *badger.DB

	white map[string]PeerEntry
	gray  map[string]PeerEntry
}

// OpenPeerListManager opens (creating if absent) the badger store at
// dbPath and loads its contents into memory.
func OpenPeerListManager(dbPath string) (*PeerListManager, error) {
	opts := badger.DefaultOptions
	opts.Dir = dbPath
	opts.ValueDir = dbPath
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	m := &PeerListManager{db: db, white: make(map[string]PeerEntry), gray: make(map[string]PeerEntry)}
	if err := m.load(); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

func (m *PeerListManager) load() error {
	return m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			var entry PeerEntry
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &entry) }); err != nil {
				plLogger.Warn("peerlist: skipping malformed record", "key", key, "err", err)
				continue
			}
			switch {
			case len(key) > len(whitePrefix) && key[:len(whitePrefix)] == whitePrefix:
				m.white[key[len(whitePrefix):]] = entry
			case len(key) > len(grayPrefix) && key[:len(grayPrefix)] == grayPrefix:
				m.gray[key[len(grayPrefix):]] = entry
			}
		}
		return nil
	})
}

func (m *PeerListManager) persist(prefix, addr string, entry PeerEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		plLogger.Warn("peerlist: failed to marshal entry", "addr", addr, "err", err)
		return
	}
	if err := m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefix+addr), data)
	}); err != nil {
		plLogger.Warn("peerlist: failed to persist entry", "addr", addr, "err", err)
	}
}

// MarkWhite promotes addr into the white list (a confirmed, reachable
// peer), evicting the oldest entry if the list is already full.
func (m *PeerListManager) MarkWhite(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.gray, addr)
	entry := PeerEntry{Address: addr, LastSeen: time.Now()}
	if len(m.white) >= MaxWhiteListSize {
		m.evictOldestLocked(m.white)
	}
	m.white[addr] = entry
	m.persist(whitePrefix, addr, entry)
}

// MarkGray records addr as heard-of but unconfirmed, e.g. from a peer's
// HANDSHAKE response address list.
func (m *PeerListManager) MarkGray(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.white[addr]; ok {
		return
	}
	if _, ok := m.gray[addr]; ok {
		return
	}
	if len(m.gray) >= MaxGrayListSize {
		m.evictOldestLocked(m.gray)
	}
	entry := PeerEntry{Address: addr, LastSeen: time.Now()}
	m.gray[addr] = entry
	m.persist(grayPrefix, addr, entry)
}

func (m *PeerListManager) evictOldestLocked(list map[string]PeerEntry) {
	var oldestAddr string
	var oldest time.Time
	for addr, e := range list {
		if oldest.IsZero() || e.LastSeen.Before(oldest) {
			oldest, oldestAddr = e.LastSeen, addr
		}
	}
	if oldestAddr != "" {
		delete(list, oldestAddr)
	}
}

// whiteListWeight is how much more likely a white-listed address is to be
// picked than a gray-listed one, per PeerlistManager's bias toward
// previously-confirmed peers.
const whiteListWeight = 4

// SelectForConnect weighted-randomly returns an address to dial, favoring
// the white list. Returns false if both lists are empty.
func (m *PeerListManager) SelectForConnect() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := len(m.white)*whiteListWeight + len(m.gray)
	if total == 0 {
		return "", false
	}
	pick := rand.Intn(total)
	if pick < len(m.white)*whiteListWeight {
		return pickAny(m.white)
	}
	return pickAny(m.gray)
}

func pickAny(list map[string]PeerEntry) (string, bool) {
	for addr := range list {
		return addr, true
	}
	return "", false
}

// Counts returns the current white/gray list sizes.
func (m *PeerListManager) Counts() (white, gray int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.white), len(m.gray)
}

func (m *PeerListManager) Close() error { return m.db.Close() }
