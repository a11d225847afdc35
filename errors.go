package xio

import "errors"

var (
	// ErrInvalidArgument 参数非法
	ErrInvalidArgument = errors.New("xio: invalid argument")

	// ErrLoopStarted Loop 只能启动一次
	ErrLoopStarted = errors.New("xio: loop already started")

	// ErrLoopClosed Loop 已关闭
	ErrLoopClosed = errors.New("xio: loop closed")
)
