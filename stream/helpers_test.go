package stream

import (
	"sync"
	"time"
)

// trickle 每次调用最多交付 per 字节，数据耗尽后返回 Ended。
type trickle struct {
	data  []byte
	pos   int
	per   int
	calls int
}

func (t *trickle) Read(p []byte, _ time.Duration) IoResult {
	t.calls++
	if t.pos >= len(t.data) {
		return Ended
	}
	if len(p) == 0 {
		return Ended
	}
	n := copy(p[:min(len(p), t.per)], t.data[t.pos:])
	t.pos += n
	return IoResult(n)
}

func (t *trickle) WaitRead(time.Duration) bool { return true }

// stalled 先交付 avail 字节，之后一直 WouldBlock；WaitRead 睡满超时。
type stalled struct {
	data  []byte
	avail int
	pos   int
	waits int
}

func (s *stalled) Read(p []byte, _ time.Duration) IoResult {
	if s.pos >= s.avail {
		return WouldBlock
	}
	n := copy(p, s.data[s.pos:s.avail])
	s.pos += n
	return IoResult(n)
}

func (s *stalled) WaitRead(timeout time.Duration) bool {
	s.waits++
	if timeout < 0 || timeout > time.Second {
		timeout = time.Second
	}
	time.Sleep(timeout)
	return false
}

// sink 收集写入，每次最多接收 per 字节；blockEvery > 0 时每隔若干次返回一次 WouldBlock。
type sink struct {
	mu         sync.Mutex
	buf        []byte
	per        int
	blockEvery int
	calls      int
	failAfter  int
}

func (s *sink) Write(p []byte, _ time.Duration) IoResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failAfter > 0 && len(s.buf) >= s.failAfter {
		return Error
	}
	if len(p) == 0 {
		return Ended
	}
	if s.blockEvery > 0 && s.calls%s.blockEvery == 0 {
		return WouldBlock
	}
	n := len(p)
	if s.per > 0 {
		n = min(n, s.per)
	}
	s.buf = append(s.buf, p[:n]...)
	return IoResult(n)
}

func (s *sink) WaitWrite(time.Duration) bool { return true }

func (s *sink) bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.buf...)
}

// memFile 是可定位的内存流，Read 每次最多交付 per 字节（0 表示不限）。
type memFile struct {
	data []byte
	pos  int64
	per  int
}

func (f *memFile) Read(p []byte, _ time.Duration) IoResult {
	if f.pos >= int64(len(f.data)) {
		return Ended
	}
	if f.per > 0 && len(p) > f.per {
		p = p[:f.per]
	}
	n := copy(p, f.data[f.pos:])
	f.pos += int64(n)
	return IoResult(n)
}

func (f *memFile) ReadAt(offset uint64, p []byte, _ time.Duration) IoResult {
	if offset >= uint64(len(f.data)) {
		return Ended
	}
	return IoResult(copy(p, f.data[offset:]))
}

func (f *memFile) WriteAt(offset uint64, p []byte, _ time.Duration) IoResult {
	if end := int(offset) + len(p); end > len(f.data) {
		f.data = append(f.data, make([]byte, end-len(f.data))...)
	}
	n := copy(f.data[offset:], p[:min(len(p), 3)])
	return IoResult(n)
}

func (f *memFile) WaitRead(time.Duration) bool  { return true }
func (f *memFile) WaitWrite(time.Duration) bool { return true }

func (f *memFile) Size() uint64 { return uint64(len(f.data)) }

func (f *memFile) Seek(offset int64, whence SeekPosition) bool {
	base := int64(0)
	switch whence {
	case SeekCurrent:
		base = f.pos
	case SeekEnd:
		base = int64(len(f.data))
	}
	if base+offset < 0 || base+offset > int64(len(f.data)) {
		return false
	}
	f.pos = base + offset
	return true
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i>>8)
	}
	return b
}
