// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

package ffmpeg

import "errors"

// Errors returned before the process is spawned.
var (
	ErrExecutableNotFound = errors.New("ffmpeg executable not found")
	ErrInvalidCommand     = errors.New("invalid command line")
	ErrInputNotFound      = errors.New("input not found")
)

// Errors of ValidateCommandLine.
var (
	ErrInputDenied  = errors.New("input address denied")
	ErrOutputDenied = errors.New("output address denied")
	ErrFileOption   = errors.New("file option not allowed under access rules")
)
