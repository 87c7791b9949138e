// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

package parse

import "regexp"

// Patterns is the fixed set of expressions used to recognize FFmpeg's
// informational stderr lines. None of them hold state.
var Patterns = struct {
	Duration       *regexp.Regexp
	Frame          *regexp.Regexp
	FPS            *regexp.Regexp
	Size           *regexp.Regexp
	Time           *regexp.Regexp
	Bitrate        *regexp.Regexp
	Speed          *regexp.Regexp
	MuxingOverhead *regexp.Regexp
}{
	Duration:       regexp.MustCompile(`Duration: ([^,]*), `),
	Frame:          regexp.MustCompile(`frame=\s*([0-9]+)`),
	FPS:            regexp.MustCompile(`fps=\s*([0-9]+(?:\.[0-9]+)?)`),
	Size:           regexp.MustCompile(`size=\s*([0-9]+)(?:kB|KiB)`), // ffmpeg >= 5 prints KiB
	Time:           regexp.MustCompile(`time=\s*([^ ]*)`),
	Bitrate:        regexp.MustCompile(`bitrate=\s*([0-9]+(?:\.[0-9]+)?)kbits/s`),
	Speed:          regexp.MustCompile(`speed=\s*([0-9]*\.?[0-9]+(?:e[+-]?[0-9]+)?)x`),
	MuxingOverhead: regexp.MustCompile(`muxing overhead: ([^%\s]*)%?`),
}

// submatch returns the first capture group of re in line.
func submatch(re *regexp.Regexp, line string) (string, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}
