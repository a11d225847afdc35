package stream

import (
	"bytes"
	"context"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/legamerdc/xio/protocol"
)

// Charset 是文本读取时检测到的编码。
type Charset int

const (
	CharsetUTF8 Charset = iota
	CharsetUTF16LE
	CharsetUTF16BE
)

func (c Charset) String() string {
	switch c {
	case CharsetUTF16LE:
		return "utf-16le"
	case CharsetUTF16BE:
		return "utf-16be"
	}
	return "utf-8"
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

func utf16Encoding(e protocol.EndianType, bom unicode.BOMPolicy) encoding.Encoding {
	if e == protocol.Big {
		return unicode.UTF16(unicode.BigEndian, bom)
	}
	return unicode.UTF16(unicode.LittleEndian, bom)
}

// DecodeUTF16 按 e 解码；开头的 BOM 优先并被去除。
func DecodeUTF16(b []byte, e protocol.EndianType) (string, error) {
	out, err := utf16Encoding(e, unicode.UseBOM).NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// DecodeText 根据 BOM 检测编码，无 BOM 视为 UTF-8。
func DecodeText(b []byte) (string, Charset, error) {
	switch {
	case bytes.HasPrefix(b, bomUTF16LE):
		s, err := DecodeUTF16(b, protocol.Little)
		return s, CharsetUTF16LE, err
	case bytes.HasPrefix(b, bomUTF16BE):
		s, err := DecodeUTF16(b, protocol.Big)
		return s, CharsetUTF16BE, err
	}
	return string(bytes.TrimPrefix(b, bomUTF8)), CharsetUTF8, nil
}

// ReadTextUTF8 读取 size 字节并去除 UTF-8 BOM。
func ReadTextUTF8(ctx context.Context, r Reader, size int, timeout time.Duration) (string, bool) {
	b, ok := readExact(ctx, r, size, timeout)
	if !ok {
		return "", false
	}
	return string(bytes.TrimPrefix(b, bomUTF8)), true
}

// ReadTextUTF16 读取 size 字节（非字符数）按 UTF-16 解码。
func ReadTextUTF16(ctx context.Context, r Reader, size int, e protocol.EndianType, timeout time.Duration) (string, bool) {
	b, ok := readExact(ctx, r, size&^1, timeout)
	if !ok {
		return "", false
	}
	s, err := DecodeUTF16(b, e)
	return s, err == nil
}

// ReadText 读取 size 字节并按 BOM 检测编码。
func ReadText(ctx context.Context, r Reader, size int, timeout time.Duration) (string, Charset, bool) {
	b, ok := readExact(ctx, r, size, timeout)
	if !ok {
		return "", CharsetUTF8, false
	}
	s, cs, err := DecodeText(b)
	return s, cs, err == nil
}

func WriteTextUTF8(ctx context.Context, w Writer, s string, bom bool, timeout time.Duration) bool {
	d := newDeadline(ctx, timeout)
	if bom && !writeAll(d, w, bomUTF8) {
		return false
	}
	return writeAll(d, w, []byte(s))
}

func WriteTextUTF16(ctx context.Context, w Writer, s string, e protocol.EndianType, bom bool, timeout time.Duration) bool {
	policy := unicode.IgnoreBOM
	if bom {
		policy = unicode.UseBOM
	}
	b, err := utf16Encoding(e, policy).NewEncoder().Bytes([]byte(s))
	if err != nil {
		return false
	}
	return writeAll(newDeadline(ctx, timeout), w, b)
}

func readExact(ctx context.Context, r Reader, size int, timeout time.Duration) ([]byte, bool) {
	if size <= 0 {
		return []byte{}, true
	}
	b := make([]byte, size)
	if !readAll(newDeadline(ctx, timeout), r, b) {
		return nil, false
	}
	return b, true
}
