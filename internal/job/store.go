// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

package job

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ZSC714725/ffrunner/internal/ffmpeg"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/event"
	"github.com/ZSC714725/ffrunner/internal/logger"
	"github.com/ZSC714725/ffrunner/internal/metrics"
	"github.com/ZSC714725/ffrunner/internal/process"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/errgroup"
)

// Store manages jobs in memory
type Store interface {
	Add(config Config) (*Job, error)
	Get(id string) (*Job, error)
	List(ids []string, reference string) []*Job
	Delete(id string) error
	Start(id string) error
	Cancel(id string) error
	// Close cancels all running jobs and waits for them to finish.
	Close() error
}

// StoreConfig for a store
type StoreConfig struct {
	FFmpeg  ffmpeg.FFmpeg
	Logger  logger.Logger
	Metrics *metrics.Collector
	// NewSampler creates the resource sampler of each run. Defaults to
	// process.NewSysSampler.
	NewSampler func() process.Sampler
	LogLines   int
}

type store struct {
	ffmpeg     ffmpeg.FFmpeg
	logger     logger.Logger
	metrics    *metrics.Collector
	newSampler func() process.Sampler
	logLines   int

	jobs   map[string]*Job
	closed bool
	mu     sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group
}

// NewStore creates a job store
func NewStore(config StoreConfig) Store {
	s := &store{
		ffmpeg:     config.FFmpeg,
		logger:     config.Logger,
		metrics:    config.Metrics,
		newSampler: config.NewSampler,
		logLines:   config.LogLines,
		jobs:       make(map[string]*Job),
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	if s.newSampler == nil {
		s.newSampler = process.NewSysSampler
	}
	if s.logLines <= 0 {
		s.logLines = process.DefaultHistoryLines
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

func (s *store) Add(config Config) (*Job, error) {
	inv, err := config.Spec.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}

	if err := s.ffmpeg.ValidateInput(inv.Input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInputAddress, err)
	}
	if inv.Output != "" {
		if err := s.ffmpeg.ValidateOutput(inv.Output); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOutputAddress, err)
		}
	}
	// custom command lines carry their own paths
	if err := s.ffmpeg.ValidateCommandLine(inv.CommandLine); err != nil {
		switch {
		case errors.Is(err, ffmpeg.ErrInputDenied):
			return nil, fmt.Errorf("%w: %v", ErrInvalidInputAddress, err)
		case errors.Is(err, ffmpeg.ErrOutputDenied):
			return nil, fmt.Errorf("%w: %v", ErrInvalidOutputAddress, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidTask, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if len(config.ID) == 0 {
		config.ID = shortuuid.New()
	}
	if _, exists := s.jobs[config.ID]; exists {
		return nil, ErrJobExists
	}

	j := newJob(config, inv, s.logLines)
	s.jobs[config.ID] = j
	s.logger.Info("job %s added: %s %s", j.ID, config.Task, inv.CommandLine)

	if config.Autostart {
		if err := s.start(j); err != nil {
			return nil, err
		}
	}

	return j, nil
}

func (s *store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j, nil
}

// List returns the jobs matching ids and reference, oldest first.
// Empty filters match everything.
func (s *store) List(ids []string, reference string) []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Job
	for _, j := range s.jobs {
		if len(reference) > 0 && j.Reference != reference {
			continue
		}
		if len(ids) > 0 {
			found := false
			for _, id := range ids {
				if j.ID == id {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, j)
	}

	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt != out[b].CreatedAt {
			return out[a].CreatedAt < out[b].CreatedAt
		}
		return out[a].ID < out[b].ID
	})
	return out
}

// Delete removes the job, cancelling it first and waiting for it to
// finish if it is running.
func (s *store) Delete(id string) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.jobs, id)
	s.mu.Unlock()

	j.mu.RLock()
	cancel := j.cancel
	j.mu.RUnlock()

	if cancel != nil {
		cancel()
		<-j.done
	}
	s.logger.Info("job %s deleted", id)
	return nil
}

func (s *store) Start(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if s.closed {
		return ErrStoreClosed
	}
	return s.start(j)
}

// start requires s.mu to be held.
func (s *store) start(j *Job) error {
	j.mu.Lock()
	switch {
	case j.state.IsRunning():
		j.mu.Unlock()
		return ErrJobRunning
	case j.state.IsFinal():
		j.mu.Unlock()
		return ErrJobFinished
	}

	ctx, cancel := context.WithCancel(s.ctx)
	j.state = process.StateStarting
	j.updatedAt = time.Now().Unix()
	j.cancel = cancel
	j.sampler = s.newSampler()
	j.mu.Unlock()

	s.group.Go(func() error {
		defer cancel()
		s.run(ctx, j)
		return nil
	})
	return nil
}

// Cancel stops a running job. A job that was never started is marked
// cancelled right away.
func (s *store) Cancel(id string) error {
	j, err := s.Get(id)
	if err != nil {
		return err
	}

	j.mu.Lock()
	state := j.state
	cancel := j.cancel
	if state == process.StateIdle {
		// keeps a concurrent Start from running it
		j.state = process.StateCancelled
	}
	j.mu.Unlock()

	switch {
	case state.IsFinal():
		return ErrJobFinished
	case state == process.StateIdle:
		now := time.Now()
		j.finish(Outcome{State: process.StateCancelled, ExitCode: -1, Error: process.ErrCancelled.Error(), Stopped: now}, 0)
		s.logger.Info("job %s cancelled before start", id)
		return nil
	}

	if cancel != nil {
		cancel()
	}
	return nil
}

func (s *store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	return s.group.Wait()
}

func (s *store) run(ctx context.Context, j *Job) {
	log := logger.WithPrefix(s.logger, "[job "+j.ID+"] ")

	d := event.NewDispatcher()
	d.OnData(func(e event.Data) error {
		s.metrics.Line()
		j.onData(e.Line)
		return nil
	})
	d.OnProgress(func(e event.Progress) error {
		s.metrics.Progress()
		j.onProgress(e.Progress)
		return nil
	})
	d.OnCompleted(func(e event.Completed) error {
		j.onCompleted(e.Completion)
		return nil
	})

	j.mu.RLock()
	sampler := j.sampler
	j.mu.RUnlock()

	spawned := false
	result, err := s.ffmpeg.Run(ctx, j.Invocation, ffmpeg.RunOptions{
		Dispatcher: d,
		Sampler:    sampler,
		Logger:     log,
		OnStart: func(pid int) {
			spawned = true
			s.metrics.JobStarted()
			j.mu.Lock()
			j.pid = pid
			j.started = time.Now()
			j.mu.Unlock()
		},
		OnStateChange: func(from, to process.State) {
			log.Debug("state %s -> %s", from, to)
			j.setState(to)
		},
	})

	outcome := Outcome{
		State:    result.State,
		ExitCode: result.ExitCode,
		Started:  result.Started,
		Stopped:  result.Stopped,
	}
	if !spawned {
		// rejected before FFmpeg was started
		outcome = Outcome{State: process.StateFailed, ExitCode: -1, Stopped: time.Now()}
	}
	if err != nil {
		outcome.Error = err.Error()
	}

	var exitErr *process.ExitError
	switch {
	case errors.Is(err, process.ErrCancelled):
		log.Info("cancelled")
	case errors.As(err, &exitErr):
		if exitErr.Err != nil {
			s.metrics.HandlerFault()
		}
		log.Error("failed: %v", err)
	case err != nil:
		log.Error("not started: %v", err)
	default:
		log.Info("completed in %s", outcome.Stopped.Sub(outcome.Started).Round(time.Millisecond))
	}

	if spawned {
		s.metrics.JobFinished(string(outcome.State), outcome.Stopped.Sub(outcome.Started))
	}
	j.finish(outcome, result.Total)
}
