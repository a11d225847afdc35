//go:build linux || darwin

package stream

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestFDStreamPipeTimeout(t *testing.T) {
	r, w, err := Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	require.True(t, WriteChunk(context.Background(), w, []byte("abc"), time.Second))
	p, ok := ReadChunk(context.Background(), r, testMax, time.Second)
	require.True(t, ok)
	assert.Equal(t, "abc", string(p))

	// 只到达部分字节，截止时间到期后返回实际读到的数量
	_, err = unix.Write(w.Fd(), []byte{1, 2})
	require.NoError(t, err)
	begin := time.Now()
	o := ReadFullyOutcome(context.Background(), r, make([]byte, 8), 40*time.Millisecond)
	assert.Equal(t, Outcome{N: 2, Status: PartialTimeout}, o)
	assert.GreaterOrEqual(t, time.Since(begin), 30*time.Millisecond)
}

func TestFDStreamInterruptWakesReader(t *testing.T) {
	r, w, err := Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
		r.Interrupt()
	}()
	begin := time.Now()
	o := ReadFullyOutcome(ctx, r, make([]byte, 4), Infinite)
	assert.Equal(t, Cancelled, o.Status)
	assert.Less(t, time.Since(begin), 2*time.Second)
}

func TestFDStreamEnded(t *testing.T) {
	r, w, err := Pipe()
	require.NoError(t, err)
	defer r.Close()

	require.True(t, WriteChunk(context.Background(), w, []byte("z"), time.Second))
	require.NoError(t, w.Close())

	_, ok := ReadChunk(context.Background(), r, testMax, time.Second)
	require.True(t, ok)
	assert.Equal(t, Ended, ReadFully(context.Background(), r, make([]byte, 4), time.Second))
}

func TestFDStreamFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lines.txt")
	require.NoError(t, os.WriteFile(path, []byte("first\r\nsecond\n"), 0o644))

	f, err := OpenFile(path, unix.O_RDWR, 0)
	require.NoError(t, err)
	defer f.Close()

	assert.EqualValues(t, 14, f.Size())
	line, ok := ReadLine(context.Background(), f)
	require.True(t, ok)
	assert.Equal(t, "first", line)
	line, ok = ReadLine(context.Background(), f)
	require.True(t, ok)
	assert.Equal(t, "second", line)

	require.Equal(t, IoResult(3), WriteFullyAt(context.Background(), f, 0, []byte("FIR"), Infinite))
	buf := make([]byte, 5)
	require.Equal(t, IoResult(5), ReadFullyAt(context.Background(), f, 0, buf, Infinite))
	assert.Equal(t, "FIRst", string(buf))
	assert.EqualValues(t, 7, Find(context.Background(), f, []byte("second"), -1, -1))
}
