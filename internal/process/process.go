// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具
//
// Package process runs one external process to completion, feeding its
// stderr to a Parser and classifying how it ended.

package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultDrainTimeout = 5 * time.Second
	DefaultHistoryLines = 100

	maxLineSize = 1024 * 1024
)

// Process is a single run of an external binary. It is not reusable.
type Process interface {
	Run(ctx context.Context) (Outcome, error)
	Status() Status
	Log() []Line
}

// Config for a process
type Config struct {
	Binary string
	Args   []string
	Parser Parser
	// PollInterval bounds how late a cancellation is noticed.
	PollInterval  time.Duration
	DrainTimeout  time.Duration
	HistoryLines  int
	Sampler       Sampler
	Logger        Logger
	OnStart       func(pid int)
	OnStateChange func(from, to State)
}

// Status of a process
type Status struct {
	State    State
	PID      int
	Duration time.Duration
	Time     time.Time
	CPU      float64
	Memory   uint64
}

// Logger interface
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

// State of a process
type State string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateRunning   State = "running"
	StateFinishing State = "finishing"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

func (s State) String() string { return string(s) }

func (s State) IsRunning() bool {
	return s == StateStarting || s == StateRunning || s == StateFinishing
}

func (s State) IsFinal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

type process struct {
	binary       string
	args         []string
	parser       Parser
	pollInterval time.Duration
	drainTimeout time.Duration
	history      *History
	sampler      Sampler
	logger       Logger

	state struct {
		state State
		time  time.Time
		lock  sync.Mutex
	}
	pid struct {
		pid  int
		lock sync.Mutex
	}

	// written by the reader goroutine only, read after it returned
	fault error

	callbacks struct {
		onStart       func(pid int)
		onStateChange func(from, to State)
	}
}

// New creates a new process
func New(config Config) (Process, error) {
	if len(config.Binary) == 0 {
		return nil, fmt.Errorf("no valid binary given")
	}

	p := &process{
		binary:       config.Binary,
		args:         config.Args,
		parser:       config.Parser,
		pollInterval: config.PollInterval,
		drainTimeout: config.DrainTimeout,
		sampler:      config.Sampler,
		logger:       config.Logger,
	}

	if p.parser == nil {
		p.parser = ParserFunc(func(string) error { return nil })
	}
	if p.pollInterval <= 0 {
		p.pollInterval = DefaultPollInterval
	}
	if p.drainTimeout <= 0 {
		p.drainTimeout = DefaultDrainTimeout
	}
	if config.HistoryLines <= 0 {
		config.HistoryLines = DefaultHistoryLines
	}
	if p.sampler == nil {
		p.sampler = NewNullSampler()
	}
	if p.logger == nil {
		p.logger = &nopLogger{}
	}

	p.history = NewHistory(config.HistoryLines)
	p.callbacks.onStart = config.OnStart
	p.callbacks.onStateChange = config.OnStateChange
	p.state.state = StateIdle
	p.state.time = time.Now()

	return p, nil
}

func (p *process) setState(state State) error {
	p.state.lock.Lock()

	prevState := p.state.state
	failed := false

	switch p.state.state {
	case StateIdle:
		failed = state != StateStarting
	case StateStarting:
		failed = state != StateRunning && state != StateFailed
	case StateRunning:
		failed = state != StateFinishing && !state.IsFinal()
	case StateFinishing:
		failed = !state.IsFinal()
	default:
		failed = true
	}

	if failed {
		p.state.lock.Unlock()
		return fmt.Errorf("can't change from %s to %s", prevState, state)
	}

	p.state.state = state
	p.state.time = time.Now()
	p.state.lock.Unlock()

	if p.callbacks.onStateChange != nil {
		p.callbacks.onStateChange(prevState, state)
	}
	return nil
}

func (p *process) getState() State {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	return p.state.state
}

func (p *process) Status() Status {
	cpu, memory := p.sampler.Current()

	p.state.lock.Lock()
	stateTime := p.state.time
	state := p.state.state
	p.state.lock.Unlock()

	p.pid.lock.Lock()
	pid := p.pid.pid
	p.pid.lock.Unlock()

	return Status{
		State:    state,
		PID:      pid,
		Duration: time.Since(stateTime),
		Time:     stateTime,
		CPU:      cpu,
		Memory:   memory,
	}
}

func (p *process) Log() []Line {
	return p.history.Lines()
}

// Run starts the process and blocks until it has exited. Cancelling ctx
// terminates the process on the next poll tick and yields ErrCancelled.
func (p *process) Run(ctx context.Context) (Outcome, error) {
	if err := p.setState(StateStarting); err != nil {
		return Outcome{}, ErrAlreadyStarted
	}

	outcome := Outcome{ExitCode: -1, Started: time.Now()}

	// stderr goes through our own pipe so Wait does not block on readers
	// held open by grandchildren
	r, w, err := os.Pipe()
	if err != nil {
		return p.startFailed(outcome, fmt.Errorf("stderr pipe: %w", err))
	}

	cmd := exec.Command(p.binary, p.args...)
	cmd.Stderr = w

	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return p.startFailed(outcome, err)
	}
	w.Close()

	pid := cmd.Process.Pid
	p.pid.lock.Lock()
	p.pid.pid = pid
	p.pid.lock.Unlock()

	if err := p.sampler.Start(pid); err != nil {
		p.logger.Debug("sampler start for pid %d: %v", pid, err)
	}
	outcome.Started = time.Now()
	p.setState(StateRunning)
	p.logger.Debug("started %s (pid %d)", p.binary, pid)

	if p.callbacks.onStart != nil {
		p.callbacks.onStart(pid)
	}

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		p.reader(r, cmd.Process)
	}()

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	waitErr := p.poll(ctx, cmd.Process, exited)
	outcome.Stopped = time.Now()

	select {
	case <-readerDone:
	case <-time.After(p.drainTimeout):
		p.logger.Error("stderr of pid %d not drained after %s, closing", pid, p.drainTimeout)
		r.Close()
		<-readerDone
	}
	r.Close()
	p.sampler.Stop()

	outcome.ExitCode = exitCode(waitErr)
	return p.classify(ctx, outcome, pid)
}

func (p *process) startFailed(outcome Outcome, err error) (Outcome, error) {
	outcome.State = StateFailed
	outcome.Stopped = time.Now()
	outcome.Err = fmt.Errorf("start %s: %w", p.binary, err)
	p.setState(StateFailed)
	return outcome, outcome.Err
}

// poll waits for the process to exit, checking ctx on every tick.
func (p *process) poll(ctx context.Context, proc *os.Process, exited <-chan error) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-exited:
			return err
		case <-ticker.C:
			if ctx.Err() == nil {
				continue
			}
			if p.getState() == StateRunning {
				p.setState(StateFinishing)
				p.logger.Info("cancelling pid %d", proc.Pid)
			}
			if err := terminate(proc); err != nil && !errors.Is(err, ErrProcessGone) {
				p.logger.Error("terminate pid %d: %v", proc.Pid, err)
			}
		}
	}
}

func (p *process) classify(ctx context.Context, outcome Outcome, pid int) (Outcome, error) {
	switch {
	case ctx.Err() != nil:
		outcome.State = StateCancelled
		outcome.Err = ErrCancelled
	case outcome.ExitCode == 0 && p.fault == nil:
		outcome.State = StateCompleted
	default:
		exitErr := &ExitError{Code: outcome.ExitCode, Err: p.fault}
		if recent := p.history.Recent(2); len(recent) == 2 {
			exitErr.Lines = []string{recent[1].Data, recent[0].Data}
		}
		outcome.State = StateFailed
		outcome.Err = exitErr
	}

	p.setState(outcome.State)
	p.logger.Debug("pid %d %s with exit code %d", pid, outcome.State, outcome.ExitCode)
	return outcome, outcome.Err
}

func (p *process) reader(r io.Reader, proc *os.Process) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	splitter := &lineSplitter{max: maxLineSize}
	scanner.Split(splitter.split)

	for scanner.Scan() {
		line := scanner.Text()
		p.history.Push(line)

		// once faulted the remaining output is only drained
		if p.fault != nil {
			continue
		}
		if err := p.parse(line); err != nil {
			p.fault = err
			p.logger.Error("parsing output of pid %d: %v", proc.Pid, err)
			if p.getState() == StateRunning {
				p.setState(StateFinishing)
			}
			if err := terminate(proc); err != nil && !errors.Is(err, ErrProcessGone) {
				p.logger.Error("terminate pid %d: %v", proc.Pid, err)
			}
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		p.logger.Error("reading output of pid %d: %v", proc.Pid, err)
		// keep the pipe flowing so the process does not block on write
		io.Copy(io.Discard, r)
	}
}

func (p *process) parse(line string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panicked: %v", r)
		}
	}()
	return p.parser.Parse(line)
}

// terminate kills proc. A process that already exited yields ErrProcessGone.
func terminate(proc *os.Process) error {
	err := proc.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return ErrProcessGone
	}
	return err
}

// scanLine splits on both \n and \r; FFmpeg redraws its status line with
// carriage returns. Empty lines are skipped.
func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i], nil
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

// lineSplitter wraps scanLine so that a line longer than max is cut to
// max bytes and the rest of it is dropped, instead of ending the scan.
type lineSplitter struct {
	max      int
	skipping bool
}

func (s *lineSplitter) split(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if s.skipping {
		i := bytes.IndexAny(data, "\r\n")
		if i < 0 {
			return len(data), nil, nil
		}
		s.skipping = false
		if i > 0 {
			return i, nil, nil
		}
	}

	advance, token, err = scanLine(data, atEOF)
	if token != nil || atEOF || len(data) < s.max || advance == len(data) {
		return advance, token, err
	}

	// the buffer is full and holds no line break
	token = data[advance:]
	for i := len(token) - 1; i >= 0 && i >= len(token)-utf8.UTFMax; i-- {
		if utf8.RuneStart(token[i]) {
			if !utf8.FullRune(token[i:]) {
				token = token[:i]
			}
			break
		}
	}
	s.skipping = true
	return len(data), token, nil
}

type nopLogger struct{}

func (l *nopLogger) Info(format string, args ...interface{})  {}
func (l *nopLogger) Error(format string, args ...interface{}) {}
func (l *nopLogger) Debug(format string, args ...interface{}) {}
