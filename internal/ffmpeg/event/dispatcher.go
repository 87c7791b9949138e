// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

// Package event delivers the notifications produced while FFmpeg runs.
package event

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ZSC714725/ffrunner/internal/ffmpeg/parse"
)

// Data carries one raw stderr line, or the command-line echo sent before
// the process starts.
type Data struct {
	Line string `json:"line"`
}

// Progress is a progress sample of a running invocation
type Progress struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	parse.Progress
}

// Completed is sent when FFmpeg reports the muxing overhead
type Completed struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	parse.Completion
}

type (
	DataHandler      func(Data) error
	ProgressHandler  func(Progress) error
	CompletedHandler func(Completed) error
)

// Dispatcher keeps three independent handler lists. Publishing calls every
// handler of the list in registration order on the caller's goroutine.
// A nil *Dispatcher publishes nothing.
type Dispatcher struct {
	mu        sync.RWMutex
	data      []DataHandler
	progress  []ProgressHandler
	completed []CompletedHandler
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

func (d *Dispatcher) OnData(h DataHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data = append(d.data, h)
}

func (d *Dispatcher) OnProgress(h ProgressHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.progress = append(d.progress, h)
}

func (d *Dispatcher) OnCompleted(h CompletedHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completed = append(d.completed, h)
}

// PublishData returns the joined errors of all handlers; panics are
// recovered into errors.
func (d *Dispatcher) PublishData(e Data) error {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	handlers := append([]DataHandler(nil), d.data...)
	d.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		errs = append(errs, call("data", func() error { return h(e) }))
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) PublishProgress(e Progress) error {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	handlers := append([]ProgressHandler(nil), d.progress...)
	d.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		errs = append(errs, call("progress", func() error { return h(e) }))
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) PublishCompleted(e Completed) error {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	handlers := append([]CompletedHandler(nil), d.completed...)
	d.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		errs = append(errs, call("completed", func() error { return h(e) }))
	}
	return errors.Join(errs...)
}

// PanicError wraps a value recovered from a handler
type PanicError struct {
	Event string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s handler panicked: %v", e.Event, e.Value)
}

func call(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Event: name, Value: r}
		}
	}()
	return fn()
}
