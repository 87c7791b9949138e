package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpecBuild(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want string
	}{
		{
			name: "thumbnail default seek",
			spec: Spec{Task: TaskThumbnail, Input: "in.mp4", Output: "out.jpg"},
			want: Thumbnail("in.mp4", "out.jpg", time.Second),
		},
		{
			name: "thumbnail timecode seek",
			spec: Spec{Task: TaskThumbnail, Input: "in.mp4", Output: "out.jpg", Seek: "00:00:05.5"},
			want: Thumbnail("in.mp4", "out.jpg", 5500*time.Millisecond),
		},
		{
			name: "subtitle",
			spec: Spec{Task: TaskSubtitle, Input: "in.mkv", Output: "out.srt", Track: 1},
			want: Subtitle("in.mkv", "out.srt", 1),
		},
		{
			name: "cut with seconds",
			spec: Spec{Task: TaskCut, Input: "in.mkv", Output: "out.mkv", Start: "10", End: "20.5"},
			want: Cut("in.mkv", "out.mkv", 10*time.Second, 20500*time.Millisecond),
		},
		{
			name: "ac3 defaults",
			spec: Spec{Task: TaskAudioAC3, Input: "in.mkv", Output: "out.mkv"},
			want: AudioAC3("in.mkv", "out.mkv", 0, DefaultAC3Bitrate, DefaultAC3SamplingRate),
		},
		{
			name: "custom without output",
			spec: Spec{Task: TaskCustom, Input: "in.mkv", CommandLine: "-i in.mkv -f null -"},
			want: "-i in.mkv -f null -",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := tt.spec.Build()
			require.NoError(t, err)
			require.Equal(t, tt.want, inv.CommandLine)
			require.Equal(t, tt.spec.Input, inv.Input)
			require.Equal(t, tt.spec.Output, inv.Output)
		})
	}
}

func TestSpecBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want error
	}{
		{"unknown task", Spec{Task: "transmogrify", Input: "a", Output: "b"}, ErrUnknownTask},
		{"no input", Spec{Task: TaskThumbnail, Output: "b"}, ErrInvalidOption},
		{"no output", Spec{Task: TaskSubtitle, Input: "a"}, ErrInvalidOption},
		{"negative track", Spec{Task: TaskSubtitle, Input: "a", Output: "b", Track: -1}, ErrInvalidOption},
		{"bad seek", Spec{Task: TaskThumbnail, Input: "a", Output: "b", Seek: "soon"}, ErrInvalidOption},
		{"cut without end", Spec{Task: TaskCut, Input: "a", Output: "b", Start: "1"}, ErrInvalidOption},
		{"cut backwards", Spec{Task: TaskCut, Input: "a", Output: "b", Start: "00:00:10", End: "00:00:05"}, ErrInvalidOption},
		{"custom empty", Spec{Task: TaskCustom, Input: "a", CommandLine: "  "}, ErrInvalidOption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.spec.Build()
			require.ErrorIs(t, err, tt.want)
		})
	}
}
