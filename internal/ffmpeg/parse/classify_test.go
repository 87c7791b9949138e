package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	durationLine   = "  Duration: 00:01:02.50, start: 0.000000, bitrate: 1411 kb/s"
	progressLine   = "frame=  240 fps= 60 q=28.0 size=     512kB time=00:00:10.00 bitrate= 419.4kbits/s speed=2.5x"
	completionLine = "video:900kB audio:100kB subtitle:0kB other streams:0kB global headers:0kB muxing overhead: 2.400000%"
)

func TestClassify_Duration(t *testing.T) {
	var st State

	res := Classify(durationLine, &st)
	require.Equal(t, KindDuration, res.Kind)
	require.NotNil(t, res.Duration)
	require.Equal(t, 62500*time.Millisecond, *res.Duration)
	require.True(t, st.Known)
	require.Equal(t, 62500*time.Millisecond, st.Total)

	// a second input announces its own duration, the first one sticks
	res = Classify("  Duration: 00:05:00.00, start: 0.000000, bitrate: 128 kb/s", &st)
	require.Equal(t, KindDuration, res.Kind)
	require.Equal(t, 5*time.Minute, *res.Duration)
	require.Equal(t, 62500*time.Millisecond, st.Total)
}

func TestClassify_DurationNotAvailable(t *testing.T) {
	var st State

	res := Classify("  Duration: N/A, start: 0.000000, bitrate: N/A", &st)
	require.Equal(t, KindUnstructured, res.Kind)
	require.Nil(t, res.Duration)
	require.False(t, st.Known)

	Classify(durationLine, &st)
	require.True(t, st.Known)
	require.Equal(t, 62500*time.Millisecond, st.Total)
}

func TestClassify_Progress(t *testing.T) {
	st := State{Total: time.Minute, Known: true}

	res := Classify(progressLine, &st)
	require.Equal(t, KindProgress, res.Kind)
	require.Nil(t, res.Completion)

	p := res.Progress
	require.NotNil(t, p)
	require.Equal(t, 10*time.Second, p.Processed)
	require.Equal(t, time.Minute, p.Total)
	require.Equal(t, int64(240), *p.Frame)
	require.Equal(t, 60.0, *p.FPS)
	require.Equal(t, int64(512), *p.SizeKB)
	require.Equal(t, 419.4, *p.Bitrate)
	require.Equal(t, 2.5, *p.Speed)
}

func TestClassify_ProgressOptionalFields(t *testing.T) {
	var st State

	res := Classify("size=     512kB time=00:00:10.00 bitrate= 419.4kbits/s", &st)
	require.Equal(t, KindProgress, res.Kind)

	p := res.Progress
	require.Nil(t, p.Frame, "missing frame must be absent, not zero")
	require.Nil(t, p.FPS)
	require.Nil(t, p.Speed)
	require.Zero(t, p.Total)
	require.Equal(t, int64(512), *p.SizeKB)
}

func TestClassify_ProgressRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"no size", "frame=  240 fps= 60 time=00:00:10.00 bitrate= 419.4kbits/s speed=2.5x"},
		{"no time", "frame=  240 fps= 60 size=     512kB bitrate= 419.4kbits/s speed=2.5x"},
		{"bitrate n/a", "frame=    0 fps=0.0 q=0.0 size=       0kB time=00:00:00.00 bitrate=N/A speed=N/A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var st State
			res := Classify(tt.line, &st)
			require.Equal(t, KindUnstructured, res.Kind)
			require.Nil(t, res.Progress)
		})
	}
}

func TestClassify_ProgressVariants(t *testing.T) {
	var st State

	res := Classify("frame=  250 fps=0.0 q=-1.0 Lsize=    1024KiB time=00:00:10.00 bitrate= 838.9kbits/s speed=1.2e+03x", &st)
	require.Equal(t, KindProgress, res.Kind)
	require.Equal(t, int64(1024), *res.Progress.SizeKB)
	require.Equal(t, 1200.0, *res.Progress.Speed)

	res = Classify("size=     256kB time=N/A bitrate= 100.0kbits/s", &st)
	require.Equal(t, KindProgress, res.Kind)
	require.Zero(t, res.Progress.Processed)
}

func TestClassify_Completion(t *testing.T) {
	st := State{Total: 62500 * time.Millisecond, Known: true}

	res := Classify(completionLine, &st)
	require.Equal(t, KindCompletion, res.Kind)
	require.Nil(t, res.Progress)
	require.NotNil(t, res.Completion)
	require.Equal(t, 2.4, res.Completion.MuxingOverhead)
	require.Equal(t, 62500*time.Millisecond, res.Completion.Total)
}

func TestClassify_CompletionUnknownOverhead(t *testing.T) {
	var st State

	res := Classify("video:0kB audio:0kB subtitle:0kB muxing overhead: unknown", &st)
	require.Equal(t, KindCompletion, res.Kind)
	require.Equal(t, UnknownOverhead, res.Completion.MuxingOverhead)
}

func TestClassify_Unstructured(t *testing.T) {
	var st State

	for _, line := range []string{
		"",
		"ffmpeg version 6.1 Copyright (c) 2000-2023 the FFmpeg developers",
		"Stream #0:0: Video: h264 (High), yuv420p, 1920x1080, 25 fps",
		"Press [q] to stop, [?] for help",
	} {
		res := Classify(line, &st)
		require.Equal(t, KindUnstructured, res.Kind, line)
		require.Nil(t, res.Duration)
		require.Nil(t, res.Progress)
		require.Nil(t, res.Completion)
	}
	require.False(t, st.Known)
}

func TestClassify_Idempotent(t *testing.T) {
	for _, line := range []string{durationLine, progressLine, completionLine, "Input #0, mov,mp4"} {
		st := State{}
		Classify(durationLine, &st)

		first := Classify(line, &st)
		stateAfter := st
		second := Classify(line, &st)

		require.Equal(t, first, second, line)
		require.Equal(t, stateAfter, st, line)
	}
}

func TestKindString(t *testing.T) {
	require.Equal(t, "unstructured", KindUnstructured.String())
	require.Equal(t, "duration", KindDuration.String())
	require.Equal(t, "progress", KindProgress.String())
	require.Equal(t, "completion", KindCompletion.String())
}
