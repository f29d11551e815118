//go:build unix

package helper

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
)

// SpawnAndWait forks helperPath with a pipe, waits for it to write a
// single big-endian uint32 exit status, then kills it regardless of
// outcome.
//
// The write end of the pipe is inherited by the child as fd 3 (the
// first entry of exec.Cmd.ExtraFiles); helperPath is invoked with "3",
// socketName, and newGeneration as its three arguments, and
// RECOVERD_DB_STATE_DIR set in its environment. A pipe read that
// observes EOF before 4 bytes arrive is treated the same as an
// explicit non-zero exit: the helper died without reporting status.
func SpawnAndWait(ctx context.Context, helperPath, socketName string, newGeneration uint32, dbStateDir string) (exitCode int, err error) {
	args := []string{"3", socketName, strconv.FormatUint(uint64(newGeneration), 10)}
	env := append(os.Environ(), "RECOVERD_DB_STATE_DIR="+dbStateDir)
	return runWithStatusPipe(ctx, helperPath, args, env)
}

// runWithStatusPipe is the mechanics SpawnAndWait wraps: exec path
// with args, inheriting a pipe write end as fd 3, and read a 4-byte
// big-endian status back from the read end. Split out so tests can
// exercise the pipe protocol against a plain shell script instead of a
// prebuilt helper binary.
func runWithStatusPipe(ctx context.Context, path string, args []string, env []string) (exitCode int, err error) {
	readEnd, writeEnd, err := os.Pipe()
	if err != nil {
		return -1, fmt.Errorf("helper: create pipe: %w", err)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.ExtraFiles = []*os.File{writeEnd}
	if env != nil {
		cmd.Env = env
	}

	if err := cmd.Start(); err != nil {
		readEnd.Close()
		writeEnd.Close()
		return -1, fmt.Errorf("helper: start %s: %w", path, err)
	}
	// The child has its own copy of the write end now; close ours so
	// EOF is observable once the child's copy closes too.
	writeEnd.Close()

	type readResult struct {
		code int32
		err  error
	}
	statusCh := make(chan readResult, 1)
	go func() {
		defer readEnd.Close()
		buf := make([]byte, 4)
		if _, err := io.ReadFull(readEnd, buf); err != nil {
			statusCh <- readResult{err: fmt.Errorf("helper: pipe closed before status: %w", err)}
			return
		}
		statusCh <- readResult{code: int32(binary.BigEndian.Uint32(buf))}
	}()

	var result readResult
	select {
	case result = <-statusCh:
	case <-ctx.Done():
		result = readResult{err: ctx.Err()}
	}

	// Defensive cleanup: the helper is expected to exit on its own
	// once it has reported status, but a hung or misbehaving helper
	// must never outlive the coordinator's wait.
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	_ = cmd.Wait()

	if result.err != nil {
		return -1, result.err
	}
	return int(result.code), nil
}
