// Package stream 提供基于原始非阻塞读写能力的"读满/写满"重试循环、
// 定长标量、CVLI、文本、可定位流辅助函数以及 chunk 分帧。
//
// 所有阻塞辅助函数接受 context.Context 作为协作式取消令牌，
// 以及一个相对超时（负数表示不限时）。多步操作在开始时计算一次截止时间，
// 每次重试前重新计算剩余预算。
package stream

import "time"

// Reader 是流的原始读能力。
// Read 在无数据时返回 WouldBlock，对端结束返回 Ended。
// WaitRead 挂起直到可读或超时，超时返回 false。
type Reader interface {
	Read(p []byte, timeout time.Duration) IoResult
	WaitRead(timeout time.Duration) bool
}

type Writer interface {
	Write(p []byte, timeout time.Duration) IoResult
	WaitWrite(timeout time.Duration) bool
}

type ReadWriter interface {
	Reader
	Writer
}

// ReaderAt 是定位读能力。
type ReaderAt interface {
	ReadAt(offset uint64, p []byte, timeout time.Duration) IoResult
	WaitRead(timeout time.Duration) bool
}

type WriterAt interface {
	WriteAt(offset uint64, p []byte, timeout time.Duration) IoResult
	WaitWrite(timeout time.Duration) bool
}

// SeekPosition 是 Seek 的基准位置。
type SeekPosition int

const (
	SeekBegin SeekPosition = iota
	SeekCurrent
	SeekEnd
)

type Seeker interface {
	Size() uint64
	Seek(offset int64, whence SeekPosition) bool
}

// SeekableReader 用于按行读取、整体读取与子串查找。
type SeekableReader interface {
	Reader
	Seeker
}

// DefaultSegmentSize 是分段读取的默认段大小。
const DefaultSegmentSize = 1024
