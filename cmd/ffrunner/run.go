// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ZSC714725/ffrunner/internal/ffmpeg"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/command"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/event"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/parse"
	"github.com/ZSC714725/ffrunner/internal/logger"
	"github.com/ZSC714725/ffrunner/internal/process"
	"github.com/spf13/cobra"
)

var runSpec command.Spec

var runCmd = &cobra.Command{
	Use:   "run [flags] [-- ffmpeg arguments]",
	Short: "Run one FFmpeg invocation in the foreground",
	Example: `  ffrunner run --input in.mkv --output out.mkv -- -i in.mkv -c:v libx264 out.mkv
  ffrunner run --task thumbnail --input in.mkv --output thumb.jpg --seek 00:01:00`,
	RunE: doRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar((*string)(&runSpec.Task), "task", string(command.TaskCustom), "thumbnail, subtitle, cut, audio_ac3 or custom")
	f.StringVar(&runSpec.Input, "input", "", "input file or URL")
	f.StringVar(&runSpec.Output, "output", "", "output file")
	f.StringVar(&runSpec.Seek, "seek", "", "thumbnail position")
	f.StringVar(&runSpec.Start, "start", "", "cut start")
	f.StringVar(&runSpec.End, "end", "", "cut end")
	f.IntVar(&runSpec.Track, "track", 0, "subtitle or audio track")
	f.IntVar(&runSpec.Bitrate, "bitrate", 0, "AC-3 bitrate in kbit/s")
	f.IntVar(&runSpec.SamplingRate, "sampling-rate", 0, "AC-3 sampling rate")
	runCmd.MarkFlagRequired("input")
}

func doRun(cmd *cobra.Command, args []string) error {
	spec := runSpec
	if spec.Task == command.TaskCustom {
		quoted := make([]string, len(args))
		for i, a := range args {
			quoted[i] = command.Quote(a)
		}
		spec.CommandLine = strings.Join(quoted, " ")
	}

	inv, err := spec.Build()
	if err != nil {
		return err
	}

	log := logger.New("")
	ff, err := newFFmpeg(log)
	if err != nil {
		return err
	}

	d := event.NewDispatcher()
	out := cmd.ErrOrStderr()
	printer := &progressPrinter{w: out}
	if flagVerbose {
		d.OnData(func(e event.Data) error {
			printer.line(e.Line)
			return nil
		})
	}
	d.OnProgress(func(e event.Progress) error {
		printer.progress(e.Progress)
		return nil
	})
	d.OnCompleted(func(e event.Completed) error {
		printer.completed(e.Completion)
		return nil
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := ff.Run(ctx, inv, ffmpeg.RunOptions{Dispatcher: d, Logger: log})
	printer.finish()

	var exitErr *process.ExitError
	switch {
	case errors.Is(err, process.ErrCancelled):
		fmt.Fprintln(out, "cancelled")
		return &exitCodeError{code: 130}
	case errors.As(err, &exitErr):
		fmt.Fprintf(out, "ffmpeg failed: %v\n", err)
		return &exitCodeError{code: max(1, exitErr.Code)}
	case err != nil:
		return err
	}

	if result.Completion == nil {
		fmt.Fprintf(out, "done in %s (no summary reported)\n", result.Runtime().Round(time.Millisecond))
	} else {
		fmt.Fprintf(out, "done in %s\n", result.Runtime().Round(time.Millisecond))
	}
	return nil
}

// progressPrinter redraws a single status line the way FFmpeg does
type progressPrinter struct {
	w     io.Writer
	dirty bool
}

func (p *progressPrinter) line(s string) {
	p.finish()
	fmt.Fprintln(p.w, s)
}

func (p *progressPrinter) progress(pr parse.Progress) {
	var b strings.Builder
	fmt.Fprintf(&b, "\r%s", parse.FormatTimecode(pr.Processed))
	if pr.Total > 0 {
		fmt.Fprintf(&b, " / %s %5.1f%%", parse.FormatTimecode(pr.Total), 100*pr.Processed.Seconds()/pr.Total.Seconds())
	}
	if pr.Frame != nil {
		fmt.Fprintf(&b, " frame=%d", *pr.Frame)
	}
	if pr.Speed != nil {
		fmt.Fprintf(&b, " speed=%gx", *pr.Speed)
	}
	fmt.Fprint(p.w, b.String())
	p.dirty = true
}

func (p *progressPrinter) completed(c parse.Completion) {
	p.finish()
	if c.MuxingOverhead == parse.UnknownOverhead {
		fmt.Fprintf(p.w, "written %s, muxing overhead unknown\n", parse.FormatTimecode(c.Total))
		return
	}
	fmt.Fprintf(p.w, "written %s, muxing overhead %g%%\n", parse.FormatTimecode(c.Total), c.MuxingOverhead)
}

func (p *progressPrinter) finish() {
	if p.dirty {
		fmt.Fprintln(p.w)
		p.dirty = false
	}
}
