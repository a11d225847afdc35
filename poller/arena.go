package poller

import (
	"sync"

	"github.com/eapache/queue"
)

// token 代替内核 user data 中的裸指针：index 0 保留给唤醒管道，
// gen 在槽位释放时递增，陈旧事件因此查不到已释放的实例。
type token struct {
	index uint32
	gen   uint32
}

var wakeToken = token{}

type slot struct {
	inst *Instance
	gen  uint32
}

type arena struct {
	mu     sync.Mutex
	slots  []slot
	free   []uint32
	closed *queue.Queue // 延迟释放的 token，每轮循环开始时清空
}

func newArena() *arena {
	return &arena{slots: make([]slot, 1, 64), closed: queue.New()}
}

func (a *arena) alloc(inst *Instance) token {
	a.mu.Lock()
	defer a.mu.Unlock()
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot{})
	}
	a.slots[idx].inst = inst
	return token{index: idx, gen: a.slots[idx].gen}
}

func (a *arena) lookup(t token) *Instance {
	if t.index == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(t.index) >= len(a.slots) {
		return nil
	}
	s := a.slots[t.index]
	if s.gen != t.gen {
		return nil
	}
	return s.inst
}

// retire 把槽位放入延迟释放队列，不立即复用。
func (a *arena) retire(t token) {
	if t.index == 0 {
		return
	}
	a.mu.Lock()
	a.closed.Add(t)
	a.mu.Unlock()
}

// release 立即释放从未注册到内核的槽位。
func (a *arena) release(t token) {
	a.mu.Lock()
	a.freeLocked(t)
	a.mu.Unlock()
}

func (a *arena) freeLocked(t token) {
	if int(t.index) >= len(a.slots) || a.slots[t.index].gen != t.gen {
		return
	}
	a.slots[t.index].inst = nil
	a.slots[t.index].gen++
	a.free = append(a.free, t.index)
}

// drain 在两批分发之间调用，返回释放的槽位数。
func (a *arena) drain() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.closed.Length()
	for a.closed.Length() > 0 {
		a.freeLocked(a.closed.Remove().(token))
	}
	return n
}

func (a *arena) live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.slots) - 1 - len(a.free)
}
