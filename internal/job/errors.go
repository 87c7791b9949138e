// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

package job

import "errors"

var (
	ErrNotFound             = errors.New("job not found")
	ErrJobExists            = errors.New("job already exists")
	ErrJobRunning           = errors.New("job is running")
	ErrJobFinished          = errors.New("job already finished")
	ErrInvalidTask          = errors.New("invalid task")
	ErrInvalidInputAddress  = errors.New("invalid input address")
	ErrInvalidOutputAddress = errors.New("invalid output address")
	ErrStoreClosed          = errors.New("job store closed")
)
