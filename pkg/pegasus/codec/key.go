// Package codec implements the composite-key encoding and partition-hash
// functions described in spec.md §4.1. It has no knowledge of sessions,
// routing tables, or RPC; it is pure byte-level transformation.
package codec

import (
	"bytes"
	"encoding/binary"
	"hash/crc64"

	"github.com/pegasus-kv/go-client/pkg/pegasus/perrors"
)

// MaxHashKeyLength is the reserved sentinel: hashKeyLen must be strictly
// less than this value.
const MaxHashKeyLength = 0xFFFF

// ecmaTable is the CRC-64 ECMA-182 table (polynomial 0xC96C5795D7870F42,
// reflected), per spec.md §6. hash/crc64.ECMA is exactly this polynomial.
var ecmaTable = crc64.MakeTable(crc64.ECMA)

// EncodeKey builds the wire composite key: a 16-bit big-endian hashKeyLen,
// then hashKey, then sortKey. Returns InvalidArgument if hashKey is at or
// above MaxHashKeyLength.
func EncodeKey(hashKey, sortKey []byte) ([]byte, error) {
	if len(hashKey) >= MaxHashKeyLength {
		return nil, perrors.InvalidArgumentf("codec: hashKey length %d must be < %d", len(hashKey), MaxHashKeyLength)
	}
	buf := make([]byte, 2+len(hashKey)+len(sortKey))
	binary.BigEndian.PutUint16(buf, uint16(len(hashKey)))
	copy(buf[2:], hashKey)
	copy(buf[2+len(hashKey):], sortKey)
	return buf, nil
}

// DecodeKey splits a wire composite key back into (hashKey, sortKey).
func DecodeKey(key []byte) (hashKey, sortKey []byte, err error) {
	if len(key) < 2 {
		return nil, nil, perrors.InvalidArgumentf("codec: key too short (%d bytes)", len(key))
	}
	hashKeyLen := binary.BigEndian.Uint16(key)
	if hashKeyLen == MaxHashKeyLength {
		return nil, nil, perrors.InvalidArgumentf("codec: key carries the reserved sentinel hashKeyLen")
	}
	if 2+int(hashKeyLen) > len(key) {
		return nil, nil, perrors.InvalidArgumentf("codec: hashKeyLen %d exceeds key length %d", hashKeyLen, len(key))
	}
	hashKey = key[2 : 2+hashKeyLen]
	sortKey = key[2+hashKeyLen:]
	return hashKey, sortKey, nil
}

// EncodeHashKeyUpperBound returns the exclusive upper bound for a full
// hashKey scan: encode_key(hashKey, "") interpreted as an unsigned big
// integer (length prefix included), plus one, trimmed to the byte that
// actually changed. On overflow (every byte, including the length prefix,
// is 0xFF) it returns an empty slice, meaning "+infinity". The length
// prefix participates in the increment because it is part of the same
// wire byte string a real sort order walks over: a hashKey whose length
// has a 0xFF high byte (length in [0xFF00, 0xFFFE], legal since only
// 0xFFFF itself is the reserved sentinel) combined with an all-0xFF body
// must carry the increment into the prefix's low byte, exactly as the
// ground-truth generateNextBytes does.
func EncodeHashKeyUpperBound(hashKey []byte) ([]byte, error) {
	encoded, err := EncodeKey(hashKey, nil)
	if err != nil {
		return nil, err
	}
	for i := len(encoded) - 1; i >= 0; i-- {
		if encoded[i] != 0xFF {
			result := make([]byte, i+1)
			copy(result, encoded[:i+1])
			result[i]++
			return result, nil
		}
	}
	// Every byte was 0xFF: overflow, "+infinity".
	return []byte{}, nil
}

// PartitionHash computes the CRC-64 ECMA hash used for routing: the hash
// of hashKey bytes, or of the sortKey bytes when hashKeyLen == 0 (per
// spec.md §4.1/§9's load-bearing dual meaning for hashKeyLen == 0).
func PartitionHash(encodedKey []byte) (uint64, error) {
	hashKey, sortKey, err := DecodeKey(encodedKey)
	if err != nil {
		return 0, err
	}
	if len(hashKey) == 0 {
		return crc64.Checksum(sortKey, ecmaTable), nil
	}
	return crc64.Checksum(hashKey, ecmaTable), nil
}

// PartitionIndex maps a partition hash to a partition index given the
// table's partition count.
func PartitionIndex(hash uint64, partitionCount int) int {
	if partitionCount <= 0 {
		return 0
	}
	return int(hash % uint64(partitionCount))
}

// ByteCompare is unsigned lexicographic comparison, matching bytes.Compare
// (Go's byte slices are unsigned already, so this is a direct alias kept
// as its own name to match spec.md's vocabulary).
func ByteCompare(a, b []byte) int {
	return bytes.Compare(a, b)
}
