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
// Package mmapstore is the memory-mapped BlockStore backend, grounded on
// MainChainStorageLmdb.cpp / DatabaseLmdb.cpp's behavior: a fixed-record
// index is memory-mapped and grown geometrically when free space runs low,
// while the variable-length block bodies themselves live in a
// conventionally-written append file (mmap-ing a growing variable-length
// region just to reslice it on every grow buys nothing; the index is where
// geometric growth actually pays off). A commit counter decides when to
// msync, following the reference's "commit every N writes" cadence.
package mmapstore

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/edsrzf/mmap-go"
	"github.com/pbnjay/memory"

	"github.com/qwertycoin-project/qwc-node/crypto"
)

// blockByteCacheSize bounds the read-through cache of encoded block bytes
// fronting the data file; fastcache shards and evicts internally, so this
// is just the overall ceiling.
const blockByteCacheSize = 32 * 1024 * 1024

const indexRecordSize = 8 + 8 + 32 // dataOffset, dataLength, hash

// initialIndexCapacity is sized off available system memory so a
// memory-constrained operator doesn't over-commit virtual address space,
// clamped to a sane minimum/maximum regardless of what memory.TotalMemory
// reports.
func initialIndexCapacity() int {
	total := memory.TotalMemory()
	cap := int(total / (1024 * 1024 * 64)) // one record slot per 64MB of RAM
	if cap < 1024 {
		cap = 1024
	}
	if cap > 1<<20 {
		cap = 1 << 20
	}
	return cap
}

const commitEveryWrites = 32

// Store is a BlockStore backed by a memory-mapped index file and an
// append-only data file.
type Store struct {
	mu sync.Mutex

	indexFile *os.File
	indexMap  mmap.MMap
	capacity  int
	count     int

	dataFile *os.File
	dataSize int64

	hashIndex map[crypto.Hash]int

	writesSinceCommit int

	byteCache *fastcache.Cache
}

// Open opens (creating if needed) a mmapstore rooted at dir, with files
// "index.dat" and "data.dat".
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	idxFile, err := os.OpenFile(dir+"/index.dat", os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	dataFile, err := os.OpenFile(dir+"/data.dat", os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		idxFile.Close()
		return nil, err
	}

	s := &Store{
		indexFile: idxFile,
		dataFile:  dataFile,
		hashIndex: make(map[crypto.Hash]int),
		byteCache: fastcache.New(blockByteCacheSize),
	}
	if err := s.mapIndex(initialIndexCapacity()); err != nil {
		return nil, err
	}
	if err := s.loadExisting(); err != nil {
		return nil, err
	}
	info, err := dataFile.Stat()
	if err != nil {
		return nil, err
	}
	s.dataSize = info.Size()
	return s, nil
}

func (s *Store) mapIndex(capacity int) error {
	size := int64(capacity) * indexRecordSize
	if err := s.indexFile.Truncate(size); err != nil {
		return err
	}
	m, err := mmap.Map(s.indexFile, mmap.RDWR, 0)
	if err != nil {
		return err
	}
	s.indexMap = m
	s.capacity = capacity
	return nil
}

func (s *Store) loadExisting() error {
	for i := 0; i < s.capacity; i++ {
		rec := s.indexMap[i*indexRecordSize : (i+1)*indexRecordSize]
		length := binary.LittleEndian.Uint64(rec[8:16])
		if length == 0 && allZero(rec) {
			break
		}
		var hash crypto.Hash
		copy(hash[:], rec[16:16+32])
		s.hashIndex[hash] = i
		s.count = i + 1
	}
	return nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func (s *Store) growIfNeeded() error {
	if s.count < s.capacity {
		return nil
	}
	if err := s.indexMap.Unmap(); err != nil {
		return err
	}
	return s.mapIndex(s.capacity * 2)
}

// PushBlock implements storage.BlockStore.
func (s *Store) PushBlock(hash crypto.Hash, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.growIfNeeded(); err != nil {
		return err
	}

	offset := s.dataSize
	n, err := s.dataFile.Write(data)
	if err != nil {
		return err
	}
	s.dataSize += int64(n)

	rec := s.indexMap[s.count*indexRecordSize : (s.count+1)*indexRecordSize]
	binary.LittleEndian.PutUint64(rec[0:8], uint64(offset))
	binary.LittleEndian.PutUint64(rec[8:16], uint64(len(data)))
	copy(rec[16:16+32], hash[:])

	s.hashIndex[hash] = s.count
	s.count++
	s.byteCache.Set(hash[:], data)

	s.writesSinceCommit++
	if s.writesSinceCommit >= commitEveryWrites {
		if err := s.commit(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) commit() error {
	s.writesSinceCommit = 0
	if err := s.indexMap.Flush(); err != nil {
		return err
	}
	return s.dataFile.Sync()
}

// PopBlock implements storage.BlockStore.
func (s *Store) PopBlock() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return nil, fmt.Errorf("mmapstore: no blocks to pop")
	}
	idx := s.count - 1
	rec := s.indexMap[idx*indexRecordSize : (idx+1)*indexRecordSize]
	offset := binary.LittleEndian.Uint64(rec[0:8])
	length := binary.LittleEndian.Uint64(rec[8:16])
	var hash crypto.Hash
	copy(hash[:], rec[16:16+32])

	data := make([]byte, length)
	if _, err := s.dataFile.ReadAt(data, int64(offset)); err != nil {
		return nil, err
	}

	for i := range rec {
		rec[i] = 0
	}
	delete(s.hashIndex, hash)
	s.byteCache.Del(hash[:])
	s.count--
	s.dataSize = int64(offset)
	if err := s.dataFile.Truncate(s.dataSize); err != nil {
		return nil, err
	}
	return data, s.commit()
}

// GetBlockByIndex implements storage.BlockStore.
func (s *Store) GetBlockByIndex(height uint64) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if height >= uint64(s.count) {
		return nil, false, nil
	}
	rec := s.indexMap[int(height)*indexRecordSize : (int(height)+1)*indexRecordSize]
	offset := binary.LittleEndian.Uint64(rec[0:8])
	length := binary.LittleEndian.Uint64(rec[8:16])
	data := make([]byte, length)
	if _, err := s.dataFile.ReadAt(data, int64(offset)); err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// GetBlockByHash implements storage.BlockStore.
func (s *Store) GetBlockByHash(hash crypto.Hash) ([]byte, bool, error) {
	if cached, ok := s.byteCache.HasGet(nil, hash[:]); ok {
		return cached, true, nil
	}
	s.mu.Lock()
	idx, ok := s.hashIndex[hash]
	s.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	data, ok, err := s.GetBlockByIndex(uint64(idx))
	if err == nil && ok {
		s.byteCache.Set(hash[:], data)
	}
	return data, ok, err
}

// GetBlockCount implements storage.BlockStore.
func (s *Store) GetBlockCount() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(s.count), nil
}

// Clear implements storage.BlockStore.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.indexMap {
		s.indexMap[i] = 0
	}
	s.hashIndex = make(map[crypto.Hash]int)
	s.count = 0
	s.dataSize = 0
	s.byteCache.Reset()
	if err := s.dataFile.Truncate(0); err != nil {
		return err
	}
	return s.commit()
}

// Close implements storage.BlockStore.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.commit(); err != nil {
		return err
	}
	if err := s.indexMap.Unmap(); err != nil {
		return err
	}
	if err := s.indexFile.Close(); err != nil {
		return err
	}
	return s.dataFile.Close()
}
