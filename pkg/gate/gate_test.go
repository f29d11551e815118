package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGate_BeginEnd(t *testing.T) {
	g := New()
	assert.True(t, g.Begin())
	assert.True(t, g.IsInProgress())
	g.End()
	assert.False(t, g.IsInProgress())
}

func TestGate_BeginFailsWhenAlreadyInProgress(t *testing.T) {
	g := New()
	assert.True(t, g.Begin())
	assert.False(t, g.Begin())
	g.End()
	assert.True(t, g.Begin())
}

func TestGate_BeginFailsWhenDisabled(t *testing.T) {
	g := New()
	assert.True(t, g.Disable(60))
	assert.False(t, g.Begin())
}

func TestGate_DisableZeroIsEnable(t *testing.T) {
	g := New()
	assert.True(t, g.Disable(60))
	assert.True(t, g.IsDisabled())
	assert.True(t, g.Disable(0))
	assert.False(t, g.IsDisabled())
	assert.True(t, g.Begin())
}

func TestGate_DisableFailsWhenInProgress(t *testing.T) {
	g := New()
	assert.True(t, g.Begin())
	assert.False(t, g.Disable(60))
	assert.False(t, g.IsDisabled())
}

func TestGate_DisableExpiresAfterTimeout(t *testing.T) {
	g := New()
	assert.True(t, g.Disable(0.05))
	assert.True(t, g.IsDisabled())
	time.Sleep(150 * time.Millisecond)
	assert.False(t, g.IsDisabled())
	assert.True(t, g.Begin())
}

func TestGate_RedisableCancelsPreviousTimer(t *testing.T) {
	g := New()
	assert.True(t, g.Disable(0.05))
	assert.True(t, g.Disable(1))
	time.Sleep(150 * time.Millisecond)
	// The first timer must not have fired and re-enabled the gate.
	assert.True(t, g.IsDisabled())
}

func TestGate_EnableClearsDisableImmediately(t *testing.T) {
	g := New()
	assert.True(t, g.Disable(60))
	g.Enable()
	assert.False(t, g.IsDisabled())
}
