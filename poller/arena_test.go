package poller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaStaleToken(t *testing.T) {
	a := newArena()
	inst := NewInstance(3, nil)
	tok := a.alloc(inst)
	require.NotEqual(t, wakeToken, tok)
	assert.Same(t, inst, a.lookup(tok))

	a.retire(tok)
	// 延迟释放：清空前仍能查到
	assert.Same(t, inst, a.lookup(tok))
	assert.Equal(t, 1, a.drain())
	assert.Nil(t, a.lookup(tok))

	// 槽位复用后旧 token 不会命中新实例
	other := NewInstance(4, nil)
	tok2 := a.alloc(other)
	assert.Equal(t, tok.index, tok2.index)
	assert.NotEqual(t, tok.gen, tok2.gen)
	assert.Nil(t, a.lookup(tok))
	assert.Same(t, other, a.lookup(tok2))
	assert.Equal(t, 1, a.live())
}

func TestArenaWakeTokenNeverResolves(t *testing.T) {
	a := newArena()
	a.alloc(NewInstance(1, nil))
	assert.Nil(t, a.lookup(wakeToken))
	assert.Nil(t, a.lookup(token{index: 99}))
}

func TestInstanceFlags(t *testing.T) {
	inst := NewInstance(5, nil)
	assert.False(t, inst.IsAttached())
	assert.True(t, inst.MarkClosing())
	assert.False(t, inst.MarkClosing())
	assert.True(t, inst.IsClosing())

	assert.True(t, inst.MarkOrdered())
	assert.False(t, inst.MarkOrdered())
	inst.ClearOrdered()
	assert.True(t, inst.MarkOrdered())
}
