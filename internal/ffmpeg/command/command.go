// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

// Package command builds FFmpeg command lines for common tasks.
package command

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ZSC714725/ffrunner/internal/ffmpeg/parse"
)

// Thumbnail grabs a single frame at seek.
func Thumbnail(input, output string, seek time.Duration) string {
	return fmt.Sprintf("-ss %s -i %s -vframes 1 %s",
		seconds(seek), Quote(input), Quote(output))
}

// Subtitle extracts subtitle stream track (zero based) as SRT.
func Subtitle(input, output string, track int) string {
	return fmt.Sprintf("-i %s -vn -an -map 0:s:%d -c:s:0 srt %s",
		Quote(input), track, Quote(output))
}

// Cut copies the range [start, end] of every video, audio and subtitle
// stream without re-encoding.
func Cut(input, output string, start, end time.Duration) string {
	return fmt.Sprintf("-ss %s -to %s -i %s -map 0:v? -c copy -map 0:a? -c copy -map 0:s? -c copy %s",
		parse.FormatTimecode(start), parse.FormatTimecode(end), Quote(input), Quote(output))
}

// AudioAC3 re-encodes the audio of input track to AC-3 and copies the
// video and subtitle streams.
func AudioAC3(input, output string, track, bitrateKbps, samplingRate int) string {
	return fmt.Sprintf("-hwaccel auto -i %s -map %d -c:s copy -c:v copy -c:a ac3 -b:a %dk -ar %d %s",
		Quote(input), track, bitrateKbps, samplingRate, Quote(output))
}

// Custom returns the command line unchanged.
func Custom(commandLine string) string {
	return strings.TrimSpace(commandLine)
}

// Quote wraps s in single quotes so that it survives shell-style splitting
// as one argument, backslashes included.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
