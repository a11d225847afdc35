package poller

import "time"

// Signal 是实例级的合并唤醒原语：reactor 交付就绪时 Notify，
// 阻塞在重试循环中的调用方 Wait。多次 Notify 合并为一次。
type Signal struct {
	ch chan struct{}
}

func NewSignal() *Signal { return &Signal{ch: make(chan struct{}, 1)} }

func (s *Signal) Notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait 超时返回 false；timeout 为负表示不限时。
func (s *Signal) Wait(timeout time.Duration) bool {
	switch {
	case timeout < 0:
		<-s.ch
		return true
	case timeout == 0:
		select {
		case <-s.ch:
			return true
		default:
			return false
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.ch:
		return true
	case <-t.C:
		return false
	}
}
