// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

package job

import "github.com/ZSC714725/ffrunner/internal/ffmpeg/command"

// Config for a job. The embedded task spec decides the command line.
type Config struct {
	ID           string `json:"id" yaml:"id"`
	Reference    string `json:"reference" yaml:"reference"`
	command.Spec `yaml:",inline"`
	Autostart    bool `json:"autostart" yaml:"autostart"`
}
