// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

package process

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

var (
	ErrCancelled      = errors.New("operation cancelled")
	ErrAlreadyStarted = errors.New("process already started")
	// ErrProcessGone is returned by terminate when the process has already
	// exited. Callers treat it as a no-op.
	ErrProcessGone = errors.New("process already exited")
)

// Outcome is the final classification of a run
type Outcome struct {
	State    State     `json:"state"`
	ExitCode int       `json:"exit_code"`
	Err      error     `json:"-"`
	Started  time.Time `json:"started"`
	Stopped  time.Time `json:"stopped"`
}

// Runtime is the time between start and exit
func (o Outcome) Runtime() time.Duration {
	if o.Started.IsZero() || o.Stopped.IsZero() {
		return 0
	}
	return o.Stopped.Sub(o.Started)
}

// ExitError describes a failed run. Lines holds the last two stderr lines,
// oldest first, when at least two were received.
type ExitError struct {
	Code  int
	Lines []string
	Err   error
}

func (e *ExitError) Error() string {
	var msg string
	if len(e.Lines) >= 2 {
		msg = fmt.Sprintf("%d: %s%s", e.Code, e.Lines[0], e.Lines[1])
	} else {
		msg = fmt.Sprintf("exited with code %d", e.Code)
	}
	if e.Err != nil {
		msg += "; " + e.Err.Error()
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitCode extracts the exit code from a Wait() error. Signal exits are
// reported as 128 + signal number.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
		return exitErr.ExitCode()
	}

	// Unknown error, assume exit code 1
	return 1
}
