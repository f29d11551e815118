package procprobe

import (
	"errors"
	"os"
	"syscall"
	"time"
)

// Result is the outcome of one liveness probe.
type Result struct {
	Alive     bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Prober checks whether a process is alive by PID.
type Prober struct {
	// PIDFile, when set, is read on every Check to pick up a PID that
	// may have changed since the daemon was last restarted.
	PIDFile string
}

// NewPIDFileProber returns a Prober that reads the daemon's PID from
// pidFile before every check.
func NewPIDFileProber(pidFile string) *Prober {
	return &Prober{PIDFile: pidFile}
}

// Check sends signal 0 to the daemon process and reports whether it is
// still alive. Signal 0 performs no action beyond existence and
// permission checks, so it never disturbs the target process.
func (p *Prober) Check() Result {
	start := time.Now()

	pid, err := p.readPID()
	if err != nil {
		return Result{
			Alive:     false,
			Message:   "cannot read pid file: " + err.Error(),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	alive, msg := CheckPID(pid)
	return Result{
		Alive:     alive,
		Message:   msg,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

func (p *Prober) readPID() (int, error) {
	data, err := os.ReadFile(p.PIDFile)
	if err != nil {
		return 0, err
	}
	return parsePID(data)
}

func parsePID(data []byte) (int, error) {
	var pid int
	for _, b := range data {
		if b == '\n' || b == ' ' {
			break
		}
		if b < '0' || b > '9' {
			return 0, errors.New("malformed pid file")
		}
		pid = pid*10 + int(b-'0')
	}
	if pid <= 0 {
		return 0, errors.New("malformed pid file")
	}
	return pid, nil
}

// CheckPID sends signal 0 to pid and reports whether the process exists
// and is reachable.
func CheckPID(pid int) (alive bool, message string) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false, "process not found: " + err.Error()
	}

	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true, "process responds to signal 0"
	}
	if errors.Is(err, os.ErrProcessDone) {
		return false, "process has exited"
	}
	if errors.Is(err, syscall.ESRCH) {
		return false, "no such process"
	}
	if errors.Is(err, syscall.EPERM) {
		// The process exists but is owned by another user; this still
		// counts as alive for liveness purposes.
		return true, "process exists (permission denied on signal)"
	}
	return false, "signal failed: " + err.Error()
}
