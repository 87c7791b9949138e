// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

package api

// JobConfigRequest for Add
type JobConfigRequest struct {
	ID           string `json:"id"`
	Reference    string `json:"reference"`
	Task         string `json:"task" binding:"required"`
	Input        string `json:"input" binding:"required"`
	Output       string `json:"output"`
	Seek         string `json:"seek"`
	Start        string `json:"start"`
	End          string `json:"end"`
	Track        int    `json:"track"`
	Bitrate      int    `json:"bitrate"`
	SamplingRate int    `json:"sampling_rate"`
	CommandLine  string `json:"command_line"`
	Autostart    bool   `json:"autostart"`
}

// Job represents a job in API response
type Job struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Reference string     `json:"reference"`
	CreatedAt int64      `json:"created_at"`
	UpdatedAt int64      `json:"updated_at"`
	Config    *JobConfig `json:"config,omitempty"`
	State     *JobState  `json:"state,omitempty"`
	Report    *JobReport `json:"report,omitempty"`
}

// JobConfig in API format
type JobConfig struct {
	ID           string `json:"id"`
	Reference    string `json:"reference"`
	Task         string `json:"task"`
	Input        string `json:"input"`
	Output       string `json:"output"`
	Seek         string `json:"seek,omitempty"`
	Start        string `json:"start,omitempty"`
	End          string `json:"end,omitempty"`
	Track        int    `json:"track"`
	Bitrate      int    `json:"bitrate,omitempty"`
	SamplingRate int    `json:"sampling_rate,omitempty"`
	CommandLine  string `json:"command_line"`
	Autostart    bool   `json:"autostart"`
}

// JobState for API
type JobState struct {
	State      string      `json:"exec"`
	PID        int         `json:"pid"`
	Runtime    float64     `json:"runtime_seconds"`
	Duration   float64     `json:"duration_seconds"`
	LastLog    string      `json:"last_logline"`
	Progress   *Progress   `json:"progress"`
	Completion *Completion `json:"completion"`
	Outcome    *Outcome    `json:"outcome"`
	Memory     uint64      `json:"memory_bytes"`
	CPU        float64     `json:"cpu_usage"`
}

// Progress from the FFmpeg stderr. Fields FFmpeg did not print are null.
type Progress struct {
	Time     float64  `json:"time_seconds"`
	Duration float64  `json:"duration_seconds"`
	Percent  float64  `json:"percent"`
	Frame    *int64   `json:"frame"`
	FPS      *float64 `json:"fps"`
	Size     *int64   `json:"size_kb"`
	Bitrate  *float64 `json:"bitrate_kbits"`
	Speed    *float64 `json:"speed"`
}

// Completion is the summary FFmpeg prints after writing the output
type Completion struct {
	Duration       float64 `json:"duration_seconds"`
	MuxingOverhead float64 `json:"muxing_overhead"`
}

// Outcome of a finished job
type Outcome struct {
	State    string `json:"state"`
	ExitCode int    `json:"exit_code"`
	Error    string `json:"error,omitempty"`
	Started  int64  `json:"started_at"`
	Stopped  int64  `json:"stopped_at"`
}

// JobReport for logs
type JobReport struct {
	CreatedAt int64       `json:"created_at"`
	Log       [][2]string `json:"log"`
	Outcome   *Outcome    `json:"outcome"`
}

// Event is one message of the job event stream
type Event struct {
	Type       string      `json:"type"`
	Time       int64       `json:"time"`
	Line       string      `json:"line,omitempty"`
	Progress   *Progress   `json:"progress,omitempty"`
	Completion *Completion `json:"completion,omitempty"`
	Outcome    *Outcome    `json:"outcome,omitempty"`
}

// CommandRequest for start/cancel
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// ErrorResponse for API errors
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
