// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

// Package parse classifies FFmpeg stderr lines into duration announcements,
// progress samples and the final muxing-overhead line.
package parse

import (
	"strconv"
	"time"
)

// UnknownOverhead is reported when the muxing overhead is not a number,
// e.g. "muxing overhead: unknown".
const UnknownOverhead = -1.0

// Kind of a classified line
type Kind int

const (
	KindUnstructured Kind = iota
	KindDuration
	KindProgress
	KindCompletion
)

func (k Kind) String() string {
	switch k {
	case KindDuration:
		return "duration"
	case KindProgress:
		return "progress"
	case KindCompletion:
		return "completion"
	default:
		return "unstructured"
	}
}

// State is carried across the lines of one invocation. Total is written once.
type State struct {
	Total time.Duration
	Known bool
}

// Progress is one progress sample. Pointer fields are nil when FFmpeg did
// not print them or they were not numbers.
type Progress struct {
	Processed time.Duration `json:"processed"`
	Total     time.Duration `json:"total"`
	Frame     *int64        `json:"frame,omitempty"`
	FPS       *float64      `json:"fps,omitempty"`
	SizeKB    *int64        `json:"size_kb,omitempty"`
	Bitrate   *float64      `json:"bitrate_kbits,omitempty"`
	Speed     *float64      `json:"speed,omitempty"`
}

// Completion is parsed from the muxing overhead line FFmpeg prints once the
// output has been written.
type Completion struct {
	Total          time.Duration `json:"total"`
	MuxingOverhead float64       `json:"muxing_overhead"`
}

// Result of classifying one line. Duration is set whenever the line
// announced a parseable duration, even if the state was already latched.
type Result struct {
	Kind       Kind
	Duration   *time.Duration
	Progress   *Progress
	Completion *Completion
}

// Classify inspects line and, for the first duration announcement, latches
// the total duration into st. Calling it again with the same line and state
// gives the same Result.
func Classify(line string, st *State) Result {
	var res Result

	if text, ok := submatch(Patterns.Duration, line); ok {
		if d, err := ParseTimecode(text); err == nil {
			res.Kind = KindDuration
			res.Duration = &d
			if !st.Known {
				st.Total = d
				st.Known = true
			}
		}
	}

	if p, ok := progress(line, st); ok {
		res.Kind = KindProgress
		res.Progress = p
		return res
	}

	if c, ok := completion(line, st); ok {
		res.Kind = KindCompletion
		res.Completion = c
	}
	return res
}

func progress(line string, st *State) (*Progress, bool) {
	size, okSize := submatch(Patterns.Size, line)
	timeText, okTime := submatch(Patterns.Time, line)
	bitrate, okBitrate := submatch(Patterns.Bitrate, line)
	if !okSize || !okTime || !okBitrate {
		return nil, false
	}

	// time=N/A happens on the first lines of live inputs
	processed, _ := ParseTimecode(timeText)

	p := &Progress{
		Processed: processed,
		Total:     st.Total,
		SizeKB:    optionalInt(size),
		Bitrate:   optionalFloat(bitrate),
	}
	if s, ok := submatch(Patterns.Frame, line); ok {
		p.Frame = optionalInt(s)
	}
	if s, ok := submatch(Patterns.FPS, line); ok {
		p.FPS = optionalFloat(s)
	}
	if s, ok := submatch(Patterns.Speed, line); ok {
		p.Speed = optionalFloat(s)
	}
	return p, true
}

func completion(line string, st *State) (*Completion, bool) {
	text, ok := submatch(Patterns.MuxingOverhead, line)
	if !ok {
		return nil, false
	}
	overhead, err := strconv.ParseFloat(text, 64)
	if err != nil {
		overhead = UnknownOverhead
	}
	return &Completion{Total: st.Total, MuxingOverhead: overhead}, true
}

func optionalInt(s string) *int64 {
	x, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &x
}

func optionalFloat(s string) *float64 {
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &x
}
