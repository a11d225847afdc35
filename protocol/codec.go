package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrIncomplete    = errors.New("protocol: incomplete frame")
	ErrChunkTooLarge = errors.New("protocol: chunk too large")
)

// Parser 从字节缓冲中切分 chunk，用于 poller 线程的非阻塞读路径。
type Parser struct {
	// MaxSize 为单个 chunk 负载上限，0 表示不限制。
	MaxSize uint32
}

func NewParser(maxSize uint32) *Parser { return &Parser{MaxSize: maxSize} }

// Parse 尽可能多地解析完整 chunk，返回已消费字节数。
// 回调中的 payload 引用 buf，回调返回后不得继续持有。
func (p *Parser) Parse(buf []byte, onChunk func(payload []byte) error) (consumed int, _ error) {
	i := 0
	for {
		if len(buf[i:]) < ChunkHeaderSize {
			return i, nil
		}
		n, err := ChunkLength(buf[i:])
		if err != nil {
			return i, err
		}
		if p.MaxSize > 0 && n > p.MaxSize {
			return i, fmt.Errorf("%w: %d > %d", ErrChunkTooLarge, n, p.MaxSize)
		}
		// 比较在 uint64 中进行，32 位平台上 int 放不下 4GiB 长度
		if uint64(len(buf)-i) < ChunkHeaderSize+uint64(n) {
			return i, nil
		}
		end := i + ChunkHeaderSize + int(n)
		if err := onChunk(buf[i+ChunkHeaderSize : end]); err != nil {
			return i, err
		}
		i = end
	}
}

// Next 解析 buf 开头的单个 chunk；不完整时返回 ErrIncomplete。
func (p *Parser) Next(buf []byte) (payload []byte, consumed int, _ error) {
	n, err := ChunkLength(buf)
	if err != nil {
		return nil, 0, ErrIncomplete
	}
	if p.MaxSize > 0 && n > p.MaxSize {
		return nil, 0, fmt.Errorf("%w: %d > %d", ErrChunkTooLarge, n, p.MaxSize)
	}
	if uint64(len(buf)) < ChunkHeaderSize+uint64(n) {
		return nil, 0, ErrIncomplete
	}
	end := ChunkHeaderSize + int(n)
	return buf[ChunkHeaderSize:end], end, nil
}

// CompressPayload 用 zstd 压缩负载。
func CompressPayload(p []byte) []byte {
	zw := getEncoder()
	out := zw.EncodeAll(p, make([]byte, 0, len(p)/2+16))
	putEncoder(zw)
	return out
}

// DecompressPayload 解压负载；maxSize > 0 时限制解压后的大小。
func DecompressPayload(p []byte, maxSize uint32) ([]byte, error) {
	dz := getDecoder()
	out, err := dz.DecodeAll(p, nil)
	putDecoder(dz)
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && uint64(len(out)) > uint64(maxSize) {
		return nil, fmt.Errorf("%w: %d > %d", ErrChunkTooLarge, len(out), maxSize)
	}
	return out, nil
}
