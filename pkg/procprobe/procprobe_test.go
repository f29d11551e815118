package procprobe

import (
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPID_SelfIsAlive(t *testing.T) {
	alive, msg := CheckPID(os.Getpid())
	assert.True(t, alive)
	assert.NotEmpty(t, msg)
}

func TestCheckPID_NoSuchProcess(t *testing.T) {
	// PID 1 is typically reachable but owned by root; a very large PID
	// is unlikely to be in use on any test host.
	alive, _ := CheckPID(1 << 29)
	assert.False(t, alive)
}

func TestProber_Check_MissingPIDFile(t *testing.T) {
	p := NewPIDFileProber("/nonexistent/path/recoverd.pid")
	result := p.Check()
	assert.False(t, result.Alive)
	assert.Contains(t, result.Message, "pid file")
}

func TestProber_Check_ValidPIDFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/recoverd.pid"
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644))

	p := NewPIDFileProber(path)
	result := p.Check()
	assert.True(t, result.Alive)
}

func TestParsePID_Malformed(t *testing.T) {
	_, err := parsePID([]byte("not-a-pid"))
	assert.Error(t, err)
}

func TestParsePID_TrimsTrailingNewline(t *testing.T) {
	pid, err := parsePID([]byte("4242\n"))
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)
}
