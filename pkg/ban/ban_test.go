package ban

import (
	"testing"
	"time"

	"github.com/cuemby/recoverd/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestAssignCredits_Accumulates(t *testing.T) {
	b := New(1, time.Hour, time.Minute)
	b.AssignCredits(2, 3, false)
	b.AssignCredits(2, 4, false)
	assert.Equal(t, uint32(7), b.Credits(2))
}

func TestAssignCredits_NoOpWhenLocalInactive(t *testing.T) {
	b := New(1, time.Hour, time.Minute)
	b.AssignCredits(2, 5, true)
	assert.Equal(t, uint32(0), b.Credits(2))
}

func TestAssignCredits_DecaysAfterGracePeriod(t *testing.T) {
	b := New(1, 10*time.Millisecond, time.Minute)
	b.AssignCredits(2, 5, false)
	time.Sleep(50 * time.Millisecond)
	b.AssignCredits(2, 1, false)
	assert.Equal(t, uint32(1), b.Credits(2))
}

func TestSweep_BansAtThreshold(t *testing.T) {
	b := New(1, time.Hour, time.Minute)
	b.AssignCredits(2, 10, false) // node_count=5 -> threshold=10
	bans, selfBanned := b.Sweep(5)
	assert.False(t, selfBanned)
	assert.Len(t, bans, 1)
	assert.Equal(t, types.PNN(2), bans[0].PNN)
	assert.Equal(t, time.Minute, bans[0].Period)
	assert.Equal(t, uint32(0), b.Credits(2))
}

func TestSweep_BelowThresholdNotBanned(t *testing.T) {
	b := New(1, time.Hour, time.Minute)
	b.AssignCredits(2, 9, false)
	bans, _ := b.Sweep(5)
	assert.Empty(t, bans)
}

func TestSweep_SelfBanDetected(t *testing.T) {
	b := New(1, time.Hour, time.Minute)
	b.AssignCredits(1, 10, false)
	_, selfBanned := b.Sweep(5)
	assert.True(t, selfBanned)
}

func TestForgive_ResetsAllCredits(t *testing.T) {
	b := New(1, time.Hour, time.Minute)
	b.AssignCredits(2, 5, false)
	b.AssignCredits(3, 5, false)
	b.Forgive()
	assert.Equal(t, uint32(0), b.Credits(2))
	assert.Equal(t, uint32(0), b.Credits(3))
}
