package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextRankAndRoot(t *testing.T) {
	members := []VAddr{5, 2, 8, 1}
	ctx := NewContext(1, "run", members, 8)
	assert.Equal(t, 2, ctx.Rank())
	assert.Equal(t, VAddr(1), ctx.Root())
	assert.True(t, ctx.Contains(2))
	assert.False(t, ctx.Contains(99))
	assert.Equal(t, 4, ctx.Size())
}

func TestInvalidContextIsNotValid(t *testing.T) {
	ctx := InvalidContext()
	assert.False(t, ctx.Valid())
}

func TestContextMembersIsACopy(t *testing.T) {
	members := []VAddr{1, 2, 3}
	ctx := NewContext(1, "run", members, 1)
	members[0] = 99
	assert.Equal(t, VAddr(1), ctx.Members()[0])
}

func TestRankOfMissingMemberIsNegativeOne(t *testing.T) {
	ctx := NewContext(1, "run", []VAddr{1, 2}, 1)
	assert.Equal(t, -1, ctx.RankOf(77))
}
