// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ZSC714725/ffrunner/internal/ffmpeg"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/parse"
)

var (
	ErrUnknownTask   = errors.New("unknown task")
	ErrInvalidOption = errors.New("invalid task option")
)

// Task names a command line template
type Task string

const (
	TaskThumbnail Task = "thumbnail"
	TaskSubtitle  Task = "subtitle"
	TaskCut       Task = "cut"
	TaskAudioAC3  Task = "audio_ac3"
	TaskCustom    Task = "custom"
)

const (
	DefaultAC3Bitrate      = 448
	DefaultAC3SamplingRate = 48000
)

// Spec describes a task as submitted through the API or the config file.
// Times are timecodes (HH:MM:SS.mmm) or plain seconds.
type Spec struct {
	Task         Task   `json:"task" yaml:"task"`
	Input        string `json:"input" yaml:"input"`
	Output       string `json:"output" yaml:"output"`
	Seek         string `json:"seek,omitempty" yaml:"seek,omitempty"`
	Start        string `json:"start,omitempty" yaml:"start,omitempty"`
	End          string `json:"end,omitempty" yaml:"end,omitempty"`
	Track        int    `json:"track,omitempty" yaml:"track,omitempty"`
	Bitrate      int    `json:"bitrate,omitempty" yaml:"bitrate,omitempty"`
	SamplingRate int    `json:"sampling_rate,omitempty" yaml:"sampling_rate,omitempty"`
	CommandLine  string `json:"command_line,omitempty" yaml:"command_line,omitempty"`
}

// Build turns the spec into an invocation
func (s Spec) Build() (ffmpeg.Invocation, error) {
	inv := ffmpeg.Invocation{Input: s.Input, Output: s.Output}

	if s.Input == "" {
		return inv, fmt.Errorf("%w: input is required", ErrInvalidOption)
	}
	if s.Output == "" && s.Task != TaskCustom {
		return inv, fmt.Errorf("%w: output is required", ErrInvalidOption)
	}
	if s.Track < 0 {
		return inv, fmt.Errorf("%w: negative track %d", ErrInvalidOption, s.Track)
	}

	switch s.Task {
	case TaskThumbnail:
		seek, err := parseTime(s.Seek, time.Second)
		if err != nil {
			return inv, fmt.Errorf("%w: seek: %v", ErrInvalidOption, err)
		}
		inv.CommandLine = Thumbnail(s.Input, s.Output, seek)
	case TaskSubtitle:
		inv.CommandLine = Subtitle(s.Input, s.Output, s.Track)
	case TaskCut:
		start, err := parseTime(s.Start, 0)
		if err != nil {
			return inv, fmt.Errorf("%w: start: %v", ErrInvalidOption, err)
		}
		end, err := parseTime(s.End, -1)
		if err != nil {
			return inv, fmt.Errorf("%w: end: %v", ErrInvalidOption, err)
		}
		if end <= start {
			return inv, fmt.Errorf("%w: end must be after start", ErrInvalidOption)
		}
		inv.CommandLine = Cut(s.Input, s.Output, start, end)
	case TaskAudioAC3:
		bitrate, rate := s.Bitrate, s.SamplingRate
		if bitrate <= 0 {
			bitrate = DefaultAC3Bitrate
		}
		if rate <= 0 {
			rate = DefaultAC3SamplingRate
		}
		inv.CommandLine = AudioAC3(s.Input, s.Output, s.Track, bitrate, rate)
	case TaskCustom:
		inv.CommandLine = Custom(s.CommandLine)
		if inv.CommandLine == "" {
			return inv, fmt.Errorf("%w: command_line is required", ErrInvalidOption)
		}
	default:
		return inv, fmt.Errorf("%w: %q", ErrUnknownTask, s.Task)
	}

	return inv, nil
}

// parseTime accepts a timecode or seconds. An empty string yields def, a
// negative def makes the value required.
func parseTime(s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if def < 0 {
			return 0, errors.New("value is required")
		}
		return def, nil
	}
	if strings.Contains(s, ":") {
		d, err := parse.ParseTimecode(s)
		if err != nil {
			return 0, err
		}
		if d < 0 {
			return 0, fmt.Errorf("negative time %q", s)
		}
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
