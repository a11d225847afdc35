//go:build !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd

package poller

import "time"

// PipeEvent 在不支持的平台上不可用。
type PipeEvent struct{}

func NewPipeEvent() (*PipeEvent, error) { return nil, ErrPlatformNotSupported }

func (e *PipeEvent) Fd() int                                  { return -1 }
func (e *PipeEvent) Set()                                     {}
func (e *PipeEvent) Reset()                                   {}
func (e *PipeEvent) IsSet() bool                              { return false }
func (e *PipeEvent) Wait(time.Duration) bool                  { return false }
func (e *PipeEvent) WaitReadFD(fd int, t time.Duration) bool  { return false }
func (e *PipeEvent) WaitWriteFD(fd int, t time.Duration) bool { return false }
func (e *PipeEvent) Close() error                             { return nil }
