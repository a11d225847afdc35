package stream

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetStreamChunks(t *testing.T) {
	a, b := net.Pipe()
	sa, sb := NewNetStream(a), NewNetStream(b)
	defer sa.Close()
	defer sb.Close()

	ctx := context.Background()
	go func() {
		WriteChunk(ctx, sa, []byte("hello"), time.Second)
		WriteChunk(ctx, sa, nil, time.Second)
		sa.Close()
	}()

	p, ok := ReadChunk(ctx, sb, testMax, time.Second)
	require.True(t, ok)
	assert.Equal(t, "hello", string(p))
	p, ok = ReadChunk(ctx, sb, testMax, time.Second)
	require.True(t, ok)
	assert.Empty(t, p)

	_, ok = ReadChunk(ctx, sb, testMax, time.Second)
	assert.False(t, ok)
	assert.True(t, sb.IsEnded())
}

func TestNetStreamTimeout(t *testing.T) {
	a, b := net.Pipe()
	sb := NewNetStream(b)
	defer a.Close()
	defer sb.Close()

	begin := time.Now()
	res := ReadFully(context.Background(), sb, make([]byte, 4), 30*time.Millisecond)
	assert.Equal(t, WouldBlock, res)
	assert.Less(t, time.Since(begin), time.Second)

	require.NoError(t, sb.Close())
	assert.Equal(t, Error, sb.Read(nil, 0))
	assert.False(t, sb.WaitRead(0))
}
