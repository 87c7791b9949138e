// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

package job

import (
	"context"
	"sync"
	"time"

	"github.com/ZSC714725/ffrunner/internal/ffmpeg"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/parse"
	"github.com/ZSC714725/ffrunner/internal/process"
)

// EventType of a job event
type EventType string

const (
	EventData      EventType = "data"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventOutcome   EventType = "outcome"
)

// subscribers that fall this far behind lose events
const subscriberBuffer = 256

// Event is sent to the subscribers of a job
type Event struct {
	Type       EventType         `json:"type"`
	Time       time.Time         `json:"time"`
	Line       string            `json:"line,omitempty"`
	Progress   *parse.Progress   `json:"progress,omitempty"`
	Completion *parse.Completion `json:"completion,omitempty"`
	Outcome    *Outcome          `json:"outcome,omitempty"`
}

// Outcome of a finished job
type Outcome struct {
	State    process.State `json:"state"`
	ExitCode int           `json:"exit_code"`
	Error    string        `json:"error,omitempty"`
	Started  time.Time     `json:"started"`
	Stopped  time.Time     `json:"stopped"`
}

// Status is a snapshot of a job
type Status struct {
	State      process.State
	PID        int
	CPU        float64
	Memory     uint64
	Runtime    time.Duration
	Total      time.Duration
	Progress   *parse.Progress
	Completion *parse.Completion
	LastLine   string
	Outcome    *Outcome
}

// Job is one FFmpeg invocation managed by the store
type Job struct {
	ID         string
	Reference  string
	Config     Config
	Invocation ffmpeg.Invocation
	CreatedAt  int64

	mu         sync.RWMutex
	state      process.State
	updatedAt  int64
	started    time.Time
	pid        int
	total      time.Duration
	progress   *parse.Progress
	completion *parse.Completion
	outcome    *Outcome
	sampler    process.Sampler
	cancel     context.CancelFunc
	done       chan struct{}
	log        *process.History

	subs struct {
		mu   sync.Mutex
		next int
		m    map[int]chan Event
	}
}

func newJob(config Config, inv ffmpeg.Invocation, logLines int) *Job {
	now := time.Now().Unix()
	j := &Job{
		ID:         config.ID,
		Reference:  config.Reference,
		Config:     config,
		Invocation: inv,
		CreatedAt:  now,
		state:      process.StateIdle,
		updatedAt:  now,
		sampler:    process.NewNullSampler(),
		done:       make(chan struct{}),
		log:        process.NewHistory(logLines),
	}
	j.subs.m = make(map[int]chan Event)
	return j
}

// UpdatedAt is the unix time of the last state change
func (j *Job) UpdatedAt() int64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.updatedAt
}

func (j *Job) Status() Status {
	j.mu.RLock()
	s := Status{
		State:      j.state,
		PID:        j.pid,
		Total:      j.total,
		Progress:   j.progress,
		Completion: j.completion,
		Outcome:    j.outcome,
	}
	started := j.started
	sampler := j.sampler
	j.mu.RUnlock()

	switch {
	case s.Outcome != nil && !s.Outcome.Started.IsZero():
		s.Runtime = s.Outcome.Stopped.Sub(s.Outcome.Started)
	case !started.IsZero():
		s.Runtime = time.Since(started)
	}
	if s.State.IsRunning() {
		s.CPU, s.Memory = sampler.Current()
	}
	if recent := j.log.Recent(1); len(recent) == 1 {
		s.LastLine = recent[0].Data
	}
	return s
}

// Log returns the recorded output lines, oldest first, starting with the
// command line echo.
func (j *Job) Log() []process.Line {
	return j.log.Lines()
}

// Done is closed once the job reached a final state
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Subscribe returns a channel receiving the events of the job. It is
// closed after the outcome event or when unsubscribe is called.
func (j *Job) Subscribe() (<-chan Event, func()) {
	j.mu.RLock()
	outcome := j.outcome
	j.mu.RUnlock()

	if outcome != nil {
		ch := make(chan Event, 1)
		ch <- Event{Type: EventOutcome, Time: outcome.Stopped, Outcome: outcome}
		close(ch)
		return ch, func() {}
	}

	ch := make(chan Event, subscriberBuffer)

	j.subs.mu.Lock()
	if j.subs.m == nil {
		// finished between the check above and here
		j.subs.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := j.subs.next
	j.subs.next++
	j.subs.m[id] = ch
	j.subs.mu.Unlock()

	return ch, func() {
		j.subs.mu.Lock()
		defer j.subs.mu.Unlock()
		if c, ok := j.subs.m[id]; ok {
			delete(j.subs.m, id)
			close(c)
		}
	}
}

func (j *Job) publish(e Event) {
	j.subs.mu.Lock()
	defer j.subs.mu.Unlock()
	for _, ch := range j.subs.m {
		select {
		case ch <- e:
		default:
		}
	}
}

// closeSubscribers delivers the final event and closes every subscriber.
// A full channel loses its oldest event so the final one always fits.
func (j *Job) closeSubscribers(final Event) {
	j.subs.mu.Lock()
	defer j.subs.mu.Unlock()
	for id, ch := range j.subs.m {
		select {
		case ch <- final:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- final
		}
		delete(j.subs.m, id)
		close(ch)
	}
	j.subs.m = nil
}

func (j *Job) setState(state process.State) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = state
	j.updatedAt = time.Now().Unix()
}

func (j *Job) onData(line string) {
	j.log.Push(line)
	j.publish(Event{Type: EventData, Time: time.Now(), Line: line})
}

func (j *Job) onProgress(p parse.Progress) {
	j.mu.Lock()
	j.progress = &p
	j.total = p.Total
	j.mu.Unlock()
	j.publish(Event{Type: EventProgress, Time: time.Now(), Progress: &p})
}

func (j *Job) onCompleted(c parse.Completion) {
	j.mu.Lock()
	j.completion = &c
	j.mu.Unlock()
	j.publish(Event{Type: EventCompleted, Time: time.Now(), Completion: &c})
}

// finish records the outcome, notifies and releases subscribers and
// closes Done.
func (j *Job) finish(o Outcome, total time.Duration) {
	j.mu.Lock()
	j.state = o.State
	j.updatedAt = time.Now().Unix()
	j.outcome = &o
	if total > 0 {
		j.total = total
	}
	j.cancel = nil
	j.mu.Unlock()

	j.closeSubscribers(Event{Type: EventOutcome, Time: o.Stopped, Outcome: &o})
	close(j.done)
}
