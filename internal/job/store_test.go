package job

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ZSC714725/ffrunner/internal/ffmpeg"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/command"
	"github.com/ZSC714725/ffrunner/internal/process"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const transcode = `
echo "  Duration: 00:01:02.50, start: 0.000000, bitrate: 1205 kb/s" >&2
printf 'frame=   48 fps=0.0 q=28.0 size=     256kB time=00:00:02.00 bitrate=1048.6kbits/s speed=3.95x    \r' >&2
echo "video:3900kB audio:180kB subtitle:0kB other streams:0kB global headers:0kB muxing overhead: 0.398406%" >&2
`

const longRunning = `
echo "  Duration: 00:10:00.00, start: 0.000000, bitrate: 1205 kb/s" >&2
exec sleep 10
`

func newStore(t *testing.T, script string, cfg ffmpeg.Config) Store {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipped, needs /bin/sh")
	}
	binary := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"+script+"\n"), 0o755))

	cfg.Binary = binary
	cfg.PollInterval = 10 * time.Millisecond
	cfg.DrainTimeout = time.Second
	ff, err := ffmpeg.New(cfg)
	require.NoError(t, err)

	s := NewStore(StoreConfig{
		FFmpeg:     ff,
		NewSampler: process.NewNullSampler,
	})
	t.Cleanup(func() { s.Close() })
	return s
}

func inputFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.mp4")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return path
}

func customJob(input string) Config {
	return Config{Spec: command.Spec{
		Task:        command.TaskCustom,
		Input:       input,
		Output:      "out.mkv",
		CommandLine: "-i in.mp4 -c copy out.mkv",
	}}
}

func waitDone(t *testing.T, j *Job) {
	t.Helper()
	select {
	case <-j.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("job %s did not finish", j.ID)
	}
}

func TestAdd_Errors(t *testing.T) {
	s := newStore(t, "exit 0", ffmpeg.Config{})

	_, err := s.Add(Config{Spec: command.Spec{Task: "nope", Input: "a", Output: "b"}})
	require.ErrorIs(t, err, ErrInvalidTask)

	j, err := s.Add(Config{ID: "one", Spec: customJob("a").Spec})
	require.NoError(t, err)
	require.Equal(t, "one", j.ID)

	_, err = s.Add(Config{ID: "one", Spec: customJob("a").Spec})
	require.ErrorIs(t, err, ErrJobExists)
}

func TestAdd_AddressValidation(t *testing.T) {
	in, err := ffmpeg.NewValidator([]string{"^/media/"}, nil)
	require.NoError(t, err)
	out, err := ffmpeg.NewValidator(nil, []string{`\.\./`})
	require.NoError(t, err)

	s := newStore(t, "exit 0", ffmpeg.Config{ValidatorInput: in, ValidatorOutput: out})

	_, err = s.Add(customJob("/etc/passwd"))
	require.ErrorIs(t, err, ErrInvalidInputAddress)

	cfg := customJob("/media/in.mp4")
	cfg.Output = "../out.mkv"
	_, err = s.Add(cfg)
	require.ErrorIs(t, err, ErrInvalidOutputAddress)
}

func TestAdd_CustomCommandLineAddresses(t *testing.T) {
	in, err := ffmpeg.NewValidator([]string{"^/media/"}, nil)
	require.NoError(t, err)
	out, err := ffmpeg.NewValidator([]string{"^/media/out/"}, nil)
	require.NoError(t, err)

	s := newStore(t, "exit 0", ffmpeg.Config{ValidatorInput: in, ValidatorOutput: out})

	custom := func(commandLine string) Config {
		return Config{Spec: command.Spec{
			Task:        command.TaskCustom,
			Input:       "/media/allowed.mp4",
			CommandLine: commandLine,
		}}
	}

	_, err = s.Add(custom("-i /etc/shadow -f data /root/.ssh/authorized_keys"))
	require.ErrorIs(t, err, ErrInvalidInputAddress)

	_, err = s.Add(custom("-i /media/allowed.mp4 -f data /root/.ssh/authorized_keys"))
	require.ErrorIs(t, err, ErrInvalidOutputAddress)

	_, err = s.Add(custom("-i /media/allowed.mp4 -vf movie=/etc/shadow /media/out/a.mkv"))
	require.ErrorIs(t, err, ErrInvalidTask)

	_, err = s.Add(custom("-i /media/allowed.mp4 -passlogfile /tmp/x /media/out/a.mkv"))
	require.ErrorIs(t, err, ErrInvalidTask)

	j, err := s.Add(custom("-y -i /media/allowed.mp4 -c:v libx264 -an /media/out/a.mkv"))
	require.NoError(t, err)
	require.NotNil(t, j)
}

func TestAdd_GeneratesID(t *testing.T) {
	s := newStore(t, "exit 0", ffmpeg.Config{})

	j, err := s.Add(customJob("a"))
	require.NoError(t, err)
	require.NotEmpty(t, j.ID)

	got, err := s.Get(j.ID)
	require.NoError(t, err)
	require.Same(t, j, got)
}

func TestAutostart_Completes(t *testing.T) {
	s := newStore(t, transcode, ffmpeg.Config{})
	cfg := customJob(inputFile(t))
	cfg.Autostart = true

	j, err := s.Add(cfg)
	require.NoError(t, err)
	waitDone(t, j)

	status := j.Status()
	require.Equal(t, process.StateCompleted, status.State)
	require.NotZero(t, status.PID)
	require.Equal(t, 62500*time.Millisecond, status.Total)
	require.NotNil(t, status.Progress)
	require.Equal(t, 2*time.Second, status.Progress.Processed)
	require.NotNil(t, status.Completion)
	require.NotNil(t, status.Outcome)
	require.Equal(t, 0, status.Outcome.ExitCode)
	require.Empty(t, status.Outcome.Error)
	require.Contains(t, status.LastLine, "muxing overhead")

	log := j.Log()
	require.Len(t, log, 4)
	require.Equal(t, ffmpeg.StandardArguments+"-i in.mp4 -c copy out.mkv", log[0].Data)
}

func TestStartCancel(t *testing.T) {
	s := newStore(t, longRunning, ffmpeg.Config{})

	j, err := s.Add(customJob(inputFile(t)))
	require.NoError(t, err)
	require.Equal(t, process.StateIdle, j.Status().State)

	require.NoError(t, s.Start(j.ID))
	require.ErrorIs(t, s.Start(j.ID), ErrJobRunning)

	require.NoError(t, s.Cancel(j.ID))
	waitDone(t, j)

	status := j.Status()
	require.Equal(t, process.StateCancelled, status.State)
	require.Equal(t, process.ErrCancelled.Error(), status.Outcome.Error)

	require.ErrorIs(t, s.Start(j.ID), ErrJobFinished)
	require.ErrorIs(t, s.Cancel(j.ID), ErrJobFinished)
}

func TestCancel_Idle(t *testing.T) {
	s := newStore(t, "exit 0", ffmpeg.Config{})

	j, err := s.Add(customJob(inputFile(t)))
	require.NoError(t, err)

	require.NoError(t, s.Cancel(j.ID))
	waitDone(t, j)
	require.Equal(t, process.StateCancelled, j.Status().State)
	require.ErrorIs(t, s.Start(j.ID), ErrJobFinished)
}

func TestRun_Failed(t *testing.T) {
	s := newStore(t, `
echo "in.mp4: Invalid data found when processing input" >&2
echo "Conversion failed!" >&2
exit 1`, ffmpeg.Config{})

	cfg := customJob(inputFile(t))
	cfg.Autostart = true
	j, err := s.Add(cfg)
	require.NoError(t, err)
	waitDone(t, j)

	status := j.Status()
	require.Equal(t, process.StateFailed, status.State)
	require.Equal(t, 1, status.Outcome.ExitCode)
	require.Equal(t, "1: in.mp4: Invalid data found when processing inputConversion failed!", status.Outcome.Error)
}

func TestRun_InputGone(t *testing.T) {
	s := newStore(t, "exit 0", ffmpeg.Config{})

	in := inputFile(t)
	j, err := s.Add(customJob(in))
	require.NoError(t, err)
	require.NoError(t, os.Remove(in))

	require.NoError(t, s.Start(j.ID))
	waitDone(t, j)

	status := j.Status()
	require.Equal(t, process.StateFailed, status.State)
	require.Equal(t, -1, status.Outcome.ExitCode)
	require.Contains(t, status.Outcome.Error, ffmpeg.ErrInputNotFound.Error())
	require.Empty(t, j.Log())
}

func TestSubscribe(t *testing.T) {
	s := newStore(t, transcode, ffmpeg.Config{})

	j, err := s.Add(customJob(inputFile(t)))
	require.NoError(t, err)

	events, unsubscribe := j.Subscribe()
	defer unsubscribe()

	require.NoError(t, s.Start(j.ID))

	var types []EventType
	for e := range events {
		types = append(types, e.Type)
	}
	require.Equal(t, []EventType{
		EventData, EventData, EventData, EventProgress, EventData, EventCompleted, EventOutcome,
	}, types)

	// late subscribers only get the outcome
	late, _ := j.Subscribe()
	e, ok := <-late
	require.True(t, ok)
	require.Equal(t, EventOutcome, e.Type)
	require.Equal(t, process.StateCompleted, e.Outcome.State)
	_, ok = <-late
	require.False(t, ok)
}

func TestUnsubscribe(t *testing.T) {
	s := newStore(t, "exit 0", ffmpeg.Config{})
	j, err := s.Add(customJob(inputFile(t)))
	require.NoError(t, err)

	events, unsubscribe := j.Subscribe()
	unsubscribe()
	unsubscribe()
	_, ok := <-events
	require.False(t, ok)
}

func TestDelete(t *testing.T) {
	s := newStore(t, longRunning, ffmpeg.Config{})

	cfg := customJob(inputFile(t))
	cfg.Autostart = true
	j, err := s.Add(cfg)
	require.NoError(t, err)

	require.NoError(t, s.Delete(j.ID))
	require.Equal(t, process.StateCancelled, j.Status().State)

	_, err = s.Get(j.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Delete(j.ID), ErrNotFound)
	require.ErrorIs(t, s.Start(j.ID), ErrNotFound)
	require.ErrorIs(t, s.Cancel(j.ID), ErrNotFound)
}

func TestClose(t *testing.T) {
	s := newStore(t, longRunning, ffmpeg.Config{})

	cfg := customJob(inputFile(t))
	cfg.Autostart = true
	j, err := s.Add(cfg)
	require.NoError(t, err)

	idle, err := s.Add(customJob(inputFile(t)))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.Equal(t, process.StateCancelled, j.Status().State)

	require.ErrorIs(t, s.Start(idle.ID), ErrStoreClosed)
	_, err = s.Add(customJob("a"))
	require.ErrorIs(t, err, ErrStoreClosed)
}

func TestList(t *testing.T) {
	s := newStore(t, "exit 0", ffmpeg.Config{})

	a := customJob("a")
	a.ID, a.Reference = "a", "movies"
	b := customJob("b")
	b.ID, b.Reference = "b", "shows"
	c := customJob("c")
	c.ID, c.Reference = "c", "movies"

	for _, cfg := range []Config{a, b, c} {
		_, err := s.Add(cfg)
		require.NoError(t, err)
	}

	ids := func(jobs []*Job) []string {
		var out []string
		for _, j := range jobs {
			out = append(out, j.ID)
		}
		return out
	}

	require.Equal(t, []string{"a", "b", "c"}, ids(s.List(nil, "")))
	require.Equal(t, []string{"a", "c"}, ids(s.List(nil, "movies")))
	require.Equal(t, []string{"b", "c"}, ids(s.List([]string{"b", "c"}, "")))
	require.Equal(t, []string{"c"}, ids(s.List([]string{"b", "c"}, "movies")))
	require.Empty(t, s.List([]string{"x"}, ""))
}

func TestSubscribe_SlowReaderGetsOutcome(t *testing.T) {
	j := newJob(Config{ID: "slow"}, ffmpeg.Invocation{}, 10)
	events, unsubscribe := j.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		j.onData("frame")
	}
	j.finish(Outcome{State: process.StateCompleted, Stopped: time.Now()}, 0)

	var last Event
	n := 0
	for e := range events {
		last = e
		n++
	}
	require.Equal(t, subscriberBuffer, n)
	require.Equal(t, EventOutcome, last.Type)
	require.Equal(t, process.StateCompleted, last.Outcome.State)
}
