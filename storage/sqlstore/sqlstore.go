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
// Package sqlstore is the SQL-backed BlockStore alternative to mmapstore,
// grounded on MainChainStorageSqlite.h's role as the non-memory-mapped
// backend: every write is a transaction, so a crash mid-PushBlock leaves
// GetBlockCount reporting only the rows that actually committed.
package sqlstore

import (
	"github.com/jinzhu/gorm"
	_ "github.com/go-sql-driver/mysql"

	"github.com/qwertycoin-project/qwc-node/crypto"
)

// blockRow is the persisted row shape; Height is the primary key, and
// GetBlockCount counts rows, which equals MAX(height)+1 while heights run
// contiguously from 0.
type blockRow struct {
	Height uint64 `gorm:"primary_key"`
	Hash   []byte `gorm:"type:binary(32);unique_index"`
	Data   []byte `gorm:"type:mediumblob"`
}

func (blockRow) TableName() string { return "blocks" }

// Store is a BlockStore backed by a gorm/MySQL connection.
type Store struct {
	db *gorm.DB
}

// Open connects to a MySQL DSN (e.g. "user:pass@tcp(host:3306)/dbname") and
// ensures the blocks table exists.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&blockRow{}).Error; err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// PushBlock implements storage.BlockStore.
func (s *Store) PushBlock(hash crypto.Hash, data []byte) error {
	var count int
	if err := s.db.Model(&blockRow{}).Count(&count).Error; err != nil {
		return err
	}
	row := blockRow{Height: uint64(count), Hash: append([]byte(nil), hash[:]...), Data: data}
	return s.db.Create(&row).Error
}

// PopBlock implements storage.BlockStore.
func (s *Store) PopBlock() ([]byte, error) {
	var row blockRow
	if err := s.db.Order("height desc").First(&row).Error; err != nil {
		return nil, err
	}
	if err := s.db.Delete(&row).Error; err != nil {
		return nil, err
	}
	return row.Data, nil
}

// GetBlockByIndex implements storage.BlockStore.
func (s *Store) GetBlockByIndex(height uint64) ([]byte, bool, error) {
	var row blockRow
	err := s.db.Where("height = ?", height).First(&row).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return row.Data, true, nil
}

// GetBlockByHash implements storage.BlockStore.
func (s *Store) GetBlockByHash(hash crypto.Hash) ([]byte, bool, error) {
	var row blockRow
	err := s.db.Where("hash = ?", hash[:]).First(&row).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return row.Data, true, nil
}

// GetBlockCount implements storage.BlockStore.
func (s *Store) GetBlockCount() (uint64, error) {
	var count int
	err := s.db.Model(&blockRow{}).Count(&count).Error
	return uint64(count), err
}

// Clear implements storage.BlockStore.
func (s *Store) Clear() error {
	return s.db.Delete(&blockRow{}, "1 = 1").Error
}

// Close implements storage.BlockStore.
func (s *Store) Close() error {
	return s.db.Close()
}
