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
// Resolves the spec's extra-field open question, following
// src/Common/TransactionExtra.h / TransactionExtra.h: the tag stream's
// structure participates in consensus (the raw bytes are hashed verbatim
// as part of the prefix, and an unknown tag is skipped rather than
// rejected), while a tag's payload semantics (TTL, encrypted message) are
// advisory — a node that can't interpret one still accepts the
// transaction.
package types

import "github.com/qwertycoin-project/qwc-node/crypto"

// Extra tag bytes, mirroring TX_EXTRA_* constants.
const (
	ExtraTagPadding       = 0x00
	ExtraTagPubKey        = 0x01
	ExtraTagNonce         = 0x02
	ExtraTagMergeMining   = 0x03
	ExtraTagMessage       = 0x04 // advisory encrypted message
	ExtraTagTTL           = 0x05 // advisory time-to-live hint
)

// ExtraField is one parsed element of a transaction's extra byte stream.
type ExtraField struct {
	Tag     byte
	Payload []byte
}

// ParseExtra walks the extra byte stream, returning every field it can
// parse. Unknown tags are returned as raw fields (tag plus length-prefixed
// payload, not interpreted) rather than causing a parse error, per the
// resolved open question: extra's structural shape is consensus-critical,
// its field semantics are not. A malformed length prefix stops parsing but
// is not an error — the remainder is simply not interpreted.
func ParseExtra(extra []byte) []ExtraField {
	var fields []ExtraField
	i := 0
	for i < len(extra) {
		tag := extra[i]
		i++
		switch tag {
		case ExtraTagPadding:
			continue
		case ExtraTagPubKey:
			if i+32 > len(extra) {
				return fields
			}
			fields = append(fields, ExtraField{Tag: tag, Payload: extra[i : i+32]})
			i += 32
		default:
			size, n, ok := readVarint(extra[i:])
			if !ok {
				return fields
			}
			i += n
			if i+int(size) > len(extra) {
				return fields
			}
			fields = append(fields, ExtraField{Tag: tag, Payload: extra[i : i+int(size)]})
			i += int(size)
		}
	}
	return fields
}

// TxPublicKey returns the transaction public key carried in extra, if any.
func TxPublicKey(extra []byte) (crypto.PublicKey, bool) {
	for _, f := range ParseExtra(extra) {
		if f.Tag == ExtraTagPubKey {
			var pk crypto.PublicKey
			copy(pk[:], f.Payload)
			return pk, true
		}
	}
	return crypto.PublicKey{}, false
}

// EncryptedMessage returns the advisory encrypted-message payload, if any.
func EncryptedMessage(extra []byte) ([]byte, bool) {
	for _, f := range ParseExtra(extra) {
		if f.Tag == ExtraTagMessage {
			return f.Payload, true
		}
	}
	return nil, false
}

func readVarint(b []byte) (value uint64, n int, ok bool) {
	var shift uint
	for n < len(b) {
		v := b[n]
		value |= uint64(v&0x7f) << shift
		n++
		if v&0x80 == 0 {
			return value, n, true
		}
		shift += 7
		if shift > 63 {
			return 0, 0, false
		}
	}
	return 0, 0, false
}
