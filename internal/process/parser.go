// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

package process

import (
	"container/ring"
	"sync"
	"time"
)

// Parser consumes the diagnostic stream line by line. A returned error
// marks the run as faulted and terminates the process.
type Parser interface {
	Parse(line string) error
}

// ParserFunc adapts a function to Parser
type ParserFunc func(line string) error

func (f ParserFunc) Parse(line string) error { return f(line) }

// Line is a timestamped log line
type Line struct {
	Timestamp time.Time `json:"timestamp"`
	Data      string    `json:"data"`
}

// History keeps the most recent lines of a run.
type History struct {
	lock  sync.RWMutex
	log   *ring.Ring
	count int
}

// NewHistory creates a history holding at most size lines
func NewHistory(size int) *History {
	if size < 2 {
		size = 2
	}
	return &History{log: ring.New(size)}
}

func (h *History) Push(data string) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.log.Value = Line{Timestamp: time.Now(), Data: data}
	h.log = h.log.Next()
	if h.count < h.log.Len() {
		h.count++
	}
}

// Len is the number of lines held
func (h *History) Len() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return h.count
}

// Recent returns up to n lines, most recent first.
func (h *History) Recent(n int) []Line {
	h.lock.RLock()
	defer h.lock.RUnlock()

	if n > h.count {
		n = h.count
	}
	out := make([]Line, 0, n)
	for r := h.log.Prev(); len(out) < n; r = r.Prev() {
		out = append(out, r.Value.(Line))
	}
	return out
}

// Lines returns every held line, oldest first.
func (h *History) Lines() []Line {
	h.lock.RLock()
	defer h.lock.RUnlock()

	var out []Line
	h.log.Do(func(v interface{}) {
		if v != nil {
			out = append(out, v.(Line))
		}
	})
	return out
}
