package stream

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legamerdc/xio/protocol"
)

func TestReadLineTerminators(t *testing.T) {
	ctx := context.Background()
	f := &memFile{data: []byte("a\r\nb\n\rc\x00")}

	line, ok := ReadLine(ctx, f)
	require.True(t, ok)
	assert.Equal(t, "a", line)
	assert.EqualValues(t, 3, f.pos)

	line, ok = ReadLine(ctx, f)
	require.True(t, ok)
	assert.Equal(t, "b", line)
	assert.EqualValues(t, 5, f.pos)

	line, ok = ReadLine(ctx, f)
	require.True(t, ok)
	assert.Equal(t, "", line)
	assert.EqualValues(t, 6, f.pos)

	s, ok := ReadNullTerminatedString(ctx, f)
	require.True(t, ok)
	assert.Equal(t, "c", s)
	assert.EqualValues(t, 8, f.pos)

	_, ok = ReadLine(ctx, f)
	assert.False(t, ok)
}

func TestReadLineWindowBoundary(t *testing.T) {
	ctx := context.Background()
	head := strings.Repeat("a", lineWindow-1)

	// \r\n 跨越 512 字节窗口
	f := &memFile{data: []byte(head + "\r\nx")}
	line, ok := ReadLine(ctx, f)
	require.True(t, ok)
	assert.Equal(t, head, line)
	assert.EqualValues(t, lineWindow+1, f.pos)
	line, ok = ReadLine(ctx, f)
	require.True(t, ok)
	assert.Equal(t, "x", line)

	// 窗口末尾的单独 \r：向前看的字节被回退
	f = &memFile{data: []byte(head + "\ry")}
	line, _ = ReadLine(ctx, f)
	assert.Equal(t, head, line)
	assert.EqualValues(t, lineWindow, f.pos)
	line, _ = ReadLine(ctx, f)
	assert.Equal(t, "y", line)

	// 多个窗口拼接的长行
	long := strings.Repeat("0123456789", 200)
	f = &memFile{data: []byte(long + "\nrest"), per: 100}
	line, ok = ReadLine(ctx, f)
	require.True(t, ok)
	assert.Equal(t, long, line)
	assert.EqualValues(t, len(long)+1, f.pos)
}

func TestReadAllHelpers(t *testing.T) {
	ctx := context.Background()
	f := &memFile{data: []byte("\xEF\xBB\xBFhello world"), pos: 5}
	b, ok := ReadAllBytes(ctx, f, 0)
	require.True(t, ok)
	assert.Equal(t, f.data, b)

	b, ok = ReadAllBytes(ctx, f, 4)
	require.True(t, ok)
	assert.Len(t, b, 4)

	s, ok := ReadAllTextUTF8(ctx, f, 0)
	require.True(t, ok)
	assert.Equal(t, "hello world", s)

	text, cs, ok := ReadAllText(ctx, f, 0)
	require.True(t, ok)
	assert.Equal(t, CharsetUTF8, cs)
	assert.Equal(t, "hello world", text)

	_, ok = ReadAllBytes(ctx, &memFile{}, 0)
	assert.False(t, ok)

	u16 := &memFile{data: []byte{'o', 0, 'k', 0}}
	s, ok = ReadAllTextUTF16(ctx, u16, protocol.Little, 0)
	require.True(t, ok)
	assert.Equal(t, "ok", s)
}

func findFixture() ([]byte, []byte) {
	data := bytes.Repeat([]byte{'x'}, 4096)
	pat := []byte("0123456789ABCDEF")
	copy(data[1020:], pat)
	return data, pat
}

func TestFindStraddlesScanBuffer(t *testing.T) {
	ctx := context.Background()
	data, pat := findFixture()
	f := &memFile{data: data}

	assert.EqualValues(t, 1020, Find(ctx, f, pat, -1, -1))
	assert.EqualValues(t, 1020, FindBackward(ctx, f, pat, -1, -1))

	// 起点在匹配之后
	assert.EqualValues(t, -1, Find(ctx, f, pat, 1021, -1))
	// 限制扫描长度不足以覆盖整个模式
	assert.EqualValues(t, -1, Find(ctx, f, pat, 0, 1030))
	assert.EqualValues(t, 1020, Find(ctx, f, pat, 0, 1036))
	// 反向：起点在匹配结尾之前
	assert.EqualValues(t, -1, FindBackward(ctx, f, pat, 1035, -1))
	assert.EqualValues(t, 1020, FindBackward(ctx, f, pat, 1036, -1))
}

func TestFindEdgeCases(t *testing.T) {
	ctx := context.Background()
	f := &memFile{data: []byte("abcabcabd")}
	assert.EqualValues(t, 6, Find(ctx, f, []byte("abd"), -1, -1))
	assert.EqualValues(t, 3, Find(ctx, f, []byte("abc"), 1, -1))
	assert.EqualValues(t, 3, FindBackward(ctx, f, []byte("abc"), -1, -1))
	assert.EqualValues(t, 2, Find(ctx, f, nil, 2, -1))
	assert.EqualValues(t, -1, Find(ctx, f, []byte("zz"), -1, -1))
	assert.EqualValues(t, -1, Find(ctx, &memFile{}, []byte("a"), -1, -1))
	assert.EqualValues(t, -1, Find(ctx, f, []byte("a"), 100, -1))
}

func TestFindRepeatedPrefixAcrossBuffers(t *testing.T) {
	ctx := context.Background()
	// 窗口尾部是模式的部分前缀但不匹配，真正的匹配紧随其后
	data := bytes.Repeat([]byte{'b'}, 2048)
	copy(data[1021:], "aaab")
	f := &memFile{data: data}
	assert.EqualValues(t, 1022, Find(ctx, f, []byte("aab"), -1, -1))
	assert.EqualValues(t, 1022, FindBackward(ctx, f, []byte("aab"), -1, -1))
}
