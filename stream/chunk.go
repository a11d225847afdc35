package stream

import (
	"context"
	"time"

	"google.golang.org/protobuf/proto"

	"github.com/legamerdc/xio/protocol"
)

// readChunkHeader 读取 4 字节长度前缀，失败或超过 maxSize 时返回 false。
func readChunkHeader(d deadline, r Reader, maxSize uint32) (uint32, bool) {
	var hdr [protocol.ChunkHeaderSize]byte
	if !readAll(d, r, hdr[:]) {
		return 0, false
	}
	n, err := protocol.ChunkLength(hdr[:])
	if err != nil || n > maxSize {
		return 0, false
	}
	return n, true
}

// ReadChunk 读取一个 chunk。长度为 0 时返回非 nil 的空切片，与失败（nil, false）区分。
// 长度前缀与负载共享同一个截止时间。
func ReadChunk(ctx context.Context, r Reader, maxSize uint32, timeout time.Duration) ([]byte, bool) {
	d := newDeadline(ctx, timeout)
	n, ok := readChunkHeader(d, r, maxSize)
	if !ok {
		return nil, false
	}
	p := make([]byte, n)
	if !readAll(d, r, p) {
		return nil, false
	}
	return p, true
}

// ReadChunkSegments 同 ReadChunk，负载按 segSize 分段。
func ReadChunkSegments(ctx context.Context, r Reader, maxSize uint32, segSize int, timeout time.Duration) ([][]byte, bool) {
	if segSize <= 0 {
		segSize = DefaultSegmentSize
	}
	d := newDeadline(ctx, timeout)
	n, ok := readChunkHeader(d, r, maxSize)
	if !ok {
		return nil, false
	}
	segs := make([][]byte, 0, (int(n)+segSize-1)/segSize)
	for left := int(n); left > 0; {
		seg := make([]byte, min(segSize, left))
		if !readAll(d, r, seg) {
			return nil, false
		}
		segs = append(segs, seg)
		left -= len(seg)
	}
	return segs, true
}

// WriteChunk 写出长度前缀，负载非空时再写负载，共享同一个截止时间。
func WriteChunk(ctx context.Context, w Writer, payload []byte, timeout time.Duration) bool {
	if uint64(len(payload)) > uint64(^uint32(0)) {
		return false
	}
	d := newDeadline(ctx, timeout)
	var hdr [protocol.ChunkHeaderSize]byte
	protocol.PutChunkHeader(hdr[:], uint32(len(payload)))
	if !writeAll(d, w, hdr[:]) {
		return false
	}
	return writeAll(d, w, payload)
}

// WriteCompressedChunk 以 zstd 压缩负载后写出。
func WriteCompressedChunk(ctx context.Context, w Writer, payload []byte, timeout time.Duration) bool {
	return WriteChunk(ctx, w, protocol.CompressPayload(payload), timeout)
}

// ReadCompressedChunk 读取并解压；maxSize 同时限制压缩前后的大小。
func ReadCompressedChunk(ctx context.Context, r Reader, maxSize uint32, timeout time.Duration) ([]byte, bool) {
	raw, ok := ReadChunk(ctx, r, maxSize, timeout)
	if !ok {
		return nil, false
	}
	out, err := protocol.DecompressPayload(raw, maxSize)
	if err != nil {
		return nil, false
	}
	if out == nil {
		out = []byte{}
	}
	return out, true
}

// WriteMessage 以 protobuf 编码 msg 作为 chunk 负载。
func WriteMessage(ctx context.Context, w Writer, msg proto.Message, timeout time.Duration) bool {
	payload, err := protocol.MarshalMessage(msg)
	if err != nil {
		return false
	}
	return WriteChunk(ctx, w, payload, timeout)
}

func ReadMessage(ctx context.Context, r Reader, maxSize uint32, msg proto.Message, timeout time.Duration) bool {
	payload, ok := ReadChunk(ctx, r, maxSize, timeout)
	if !ok {
		return false
	}
	return protocol.UnmarshalMessage(payload, msg) == nil
}
