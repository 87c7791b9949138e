// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

package ffmpeg

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/shlex"
)

// Addresses are the files and URLs a command line reads from or writes to.
type Addresses struct {
	// Inputs holds every -i value.
	Inputs []string
	// Outputs holds every argument that is neither an option nor the value
	// of one.
	Outputs []string
	// FileOptions lists options naming files outside of Inputs and
	// Outputs, such as -passlogfile or a movie= filter source.
	FileOptions []string
}

// valueOptions take one argument. An option missing here is read as a
// flag, so the word after it is taken for an output and gets checked.
var valueOptions = setOf(
	"i", "f", "c", "codec", "acodec", "vcodec", "scodec", "dcodec",
	"map", "map_metadata", "map_chapters", "metadata", "disposition",
	"ss", "sseof", "t", "to", "fs", "itsoffset", "itsscale", "stream_loop",
	"b", "ab", "maxrate", "minrate", "bufsize", "ar", "ac", "aq", "q", "qscale",
	"r", "s", "aspect", "pix_fmt", "sample_fmt", "channel_layout", "ch_layout",
	"vf", "af", "filter", "filter_complex", "lavfi", "filter_threads", "filter_complex_threads",
	"frames", "vframes", "aframes", "dframes", "g", "bf", "crf", "preset", "tune", "profile", "level",
	"threads", "loglevel", "v", "hwaccel", "hwaccel_device", "hwaccel_output_format", "init_hw_device",
	"movflags", "fflags", "analyzeduration", "probesize", "thread_queue_size",
	"vsync", "fps_mode", "async", "strict", "tag", "vtag", "atag", "bsf", "absf", "vbsf",
	"x264-params", "x265-params", "max_muxing_queue_size", "pass", "copytb", "top",
	"field_order", "color_primaries", "color_trc", "colorspace", "color_range",
	"max_delay", "timeout", "rw_timeout", "rtsp_transport", "safe",
	"hls_time", "hls_list_size", "hls_flags", "segment_time", "segment_format", "sws_flags",
)

// fileOptions take a file name as their value.
var fileOptions = setOf(
	"passlogfile", "vstats_file", "attach", "dump_attachment",
	"filter_script", "filter_complex_script", "sdp_file", "progress",
	"hls_segment_filename", "hls_key_info_file", "hls_fmp4_init_filename",
	"segment_list", "fpre", "apre", "vpre", "spre",
)

var filterOptions = setOf("vf", "af", "filter", "filter_complex", "lavfi")

// filters that open files by themselves
var fileFilter = regexp.MustCompile(`(?:^|[,;\]])\s*(?:a?movie|subtitles|ass|a?sendcmd|lut1d|lut3d|frei0r|ladspa|lv2)\b`)

func setOf(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

// CommandAddresses splits commandLine the way Run does and sorts its words
// into inputs, outputs and file options.
func CommandAddresses(commandLine string) (Addresses, error) {
	args, err := shlex.Split(commandLine)
	if err != nil {
		return Addresses{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}

	var a Addresses
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if len(arg) < 2 || arg[0] != '-' {
			a.Outputs = append(a.Outputs, arg)
			continue
		}

		name := strings.TrimPrefix(arg, "-")
		if n, _, ok := strings.Cut(name, ":"); ok {
			name = n
		}
		// -/option loads the value of option from a file
		fromFile := strings.HasPrefix(name, "/")
		name = strings.TrimPrefix(name, "/")

		_, isFile := fileOptions[name]
		_, isValue := valueOptions[name]
		if fromFile || isFile {
			a.FileOptions = append(a.FileOptions, arg)
		}
		if !fromFile && !isFile && !isValue {
			continue
		}
		if i+1 == len(args) {
			break
		}
		i++

		switch _, isFilter := filterOptions[name]; {
		case name == "i" && !fromFile:
			a.Inputs = append(a.Inputs, args[i])
		case isFilter && !fromFile && fileFilter.MatchString(args[i]):
			a.FileOptions = append(a.FileOptions, arg+" "+args[i])
		}
	}
	return a, nil
}
