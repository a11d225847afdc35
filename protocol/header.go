package protocol

import (
	"encoding/binary"
	"errors"
	"math"
)

// Chunk 头部：4 字节小端长度，其后紧跟 N 字节负载。
// N=0 是合法的空负载，与"不存在"不同。

const ChunkHeaderSize = 4

var (
	errHeaderTooShort   = errors.New("protocol: header too short")
	errLengthOutOfRange = errors.New("protocol: length out of range")
)

// PutChunkHeader 写入头部，dst 至少 4 字节。
func PutChunkHeader(dst []byte, n uint32) {
	binary.LittleEndian.PutUint32(dst[:ChunkHeaderSize], n)
}

// ChunkLength 解码头部中的负载长度。
func ChunkLength(b []byte) (uint32, error) {
	if len(b) < ChunkHeaderSize {
		return 0, errHeaderTooShort
	}
	return binary.LittleEndian.Uint32(b[:ChunkHeaderSize]), nil
}

// AppendChunk 追加一个完整 chunk（头部+负载）。
func AppendChunk(dst, payload []byte) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return dst, errLengthOutOfRange
	}
	var hdr [ChunkHeaderSize]byte
	PutChunkHeader(hdr[:], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	return append(dst, payload...), nil
}
