// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

// Package ffmpeg runs FFmpeg invocations and turns their stderr into
// Data, Progress and Completed events.
package ffmpeg

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ZSC714725/ffrunner/internal/ffmpeg/event"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/parse"
	"github.com/ZSC714725/ffrunner/internal/logger"
	"github.com/ZSC714725/ffrunner/internal/process"
	"github.com/google/shlex"
)

// StandardArguments are put in front of every command line.
const StandardArguments = "-nostdin -y -loglevel info "

var standardArgs = []string{"-nostdin", "-y", "-loglevel", "info"}

// DefaultNetworkSchemes are URL schemes accepted as input without checking
// the local filesystem.
var DefaultNetworkSchemes = []string{"http", "https", "rtmp", "rtmps", "rtsp", "srt", "udp", "tcp", "ftp"}

// FFmpeg runs invocations against one FFmpeg binary
type FFmpeg interface {
	// Run validates inv, spawns FFmpeg and blocks until it has exited.
	// Pre-spawn failures are returned without a Result.
	Run(ctx context.Context, inv Invocation, opts RunOptions) (Result, error)
	Binary() string
	ValidateInput(address string) error
	ValidateOutput(address string) error
	// ValidateCommandLine applies the input and output rules to every
	// address in commandLine.
	ValidateCommandLine(commandLine string) error
}

// Invocation is one request to run FFmpeg. CommandLine holds the arguments
// after the standard ones, split with shell quoting rules.
type Invocation struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	CommandLine string `json:"command_line"`
}

// RunOptions for a single run
type RunOptions struct {
	Dispatcher    *event.Dispatcher
	Sampler       process.Sampler
	OnStart       func(pid int)
	OnStateChange func(from, to process.State)
	Logger        logger.Logger
}

// Result of a run that got as far as spawning FFmpeg
type Result struct {
	process.Outcome
	// Total is the input duration FFmpeg reported, zero if it never did.
	Total time.Duration
	// Completion is nil when FFmpeg never printed its muxing overhead.
	Completion *parse.Completion
	Log        []process.Line
}

// Config for FFmpeg
type Config struct {
	Binary          string
	PollInterval    time.Duration
	DrainTimeout    time.Duration
	HistoryLines    int
	NetworkSchemes  []string
	ValidatorInput  Validator
	ValidatorOutput Validator
	Logger          logger.Logger
}

type ffmpeg struct {
	binary       string
	pollInterval time.Duration
	drainTimeout time.Duration
	historyLines int
	schemes      map[string]struct{}
	validatorIn  Validator
	validatorOut Validator
	restricted   bool
	logger       logger.Logger
}

// New creates FFmpeg
func New(config Config) (FFmpeg, error) {
	binary, err := exec.LookPath(config.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrExecutableNotFound, config.Binary, err)
	}

	f := &ffmpeg{
		binary:       binary,
		pollInterval: config.PollInterval,
		drainTimeout: config.DrainTimeout,
		historyLines: config.HistoryLines,
		schemes:      map[string]struct{}{},
		validatorIn:  config.ValidatorInput,
		validatorOut: config.ValidatorOutput,
		logger:       config.Logger,
	}

	schemes := config.NetworkSchemes
	if len(schemes) == 0 {
		schemes = DefaultNetworkSchemes
	}
	for _, s := range schemes {
		f.schemes[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}

	f.restricted = hasRules(f.validatorIn) || hasRules(f.validatorOut)
	if f.validatorIn == nil {
		f.validatorIn, _ = NewValidator(nil, nil)
	}
	if f.validatorOut == nil {
		f.validatorOut, _ = NewValidator(nil, nil)
	}
	if f.logger == nil {
		f.logger = logger.Nop()
	}

	return f, nil
}

func (f *ffmpeg) Binary() string {
	return f.binary
}

func (f *ffmpeg) ValidateInput(address string) error {
	return f.validatorIn.Check(address)
}

func (f *ffmpeg) ValidateOutput(address string) error {
	return f.validatorOut.Check(address)
}

// ValidateCommandLine refuses file options and file reading filters while
// any access rule is configured, since their paths escape the rules.
func (f *ffmpeg) ValidateCommandLine(commandLine string) error {
	addrs, err := CommandAddresses(commandLine)
	if err != nil {
		return err
	}
	if f.restricted && len(addrs.FileOptions) > 0 {
		return fmt.Errorf("%w: %s", ErrFileOption, strings.Join(addrs.FileOptions, ", "))
	}
	for _, in := range addrs.Inputs {
		if err := f.validatorIn.Check(in); err != nil {
			return fmt.Errorf("%w: %w", ErrInputDenied, err)
		}
	}
	for _, out := range addrs.Outputs {
		if err := f.validatorOut.Check(out); err != nil {
			return fmt.Errorf("%w: %w", ErrOutputDenied, err)
		}
	}
	return nil
}

func (f *ffmpeg) Run(ctx context.Context, inv Invocation, opts RunOptions) (Result, error) {
	args, err := f.prepare(inv)
	if err != nil {
		return Result{}, err
	}

	log := opts.Logger
	if log == nil {
		log = f.logger
	}

	if err := opts.Dispatcher.PublishData(event.Data{Line: StandardArguments + inv.CommandLine}); err != nil {
		return Result{}, fmt.Errorf("command line echo: %w", err)
	}

	parser := newLineParser(opts.Dispatcher, inv)
	proc, err := process.New(process.Config{
		Binary:        f.binary,
		Args:          append(append([]string{}, standardArgs...), args...),
		Parser:        parser,
		PollInterval:  f.pollInterval,
		DrainTimeout:  f.drainTimeout,
		HistoryLines:  f.historyLines,
		Sampler:       opts.Sampler,
		Logger:        wrapLogger(log),
		OnStart:       opts.OnStart,
		OnStateChange: opts.OnStateChange,
	})
	if err != nil {
		return Result{}, err
	}

	outcome, err := proc.Run(ctx)

	// the parser is no longer touched once Run returned
	result := Result{
		Outcome:    outcome,
		Total:      parser.state.Total,
		Completion: parser.completion,
		Log:        proc.Log(),
	}
	return result, err
}

// prepare runs the pre-spawn checks and returns the split command line.
func (f *ffmpeg) prepare(inv Invocation) ([]string, error) {
	if _, err := exec.LookPath(f.binary); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrExecutableNotFound, f.binary)
	}

	if strings.TrimSpace(inv.CommandLine) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidCommand)
	}
	args, err := shlex.Split(inv.CommandLine)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: no arguments", ErrInvalidCommand)
	}

	if !f.isNetworkAddress(inv.Input) {
		if inv.Input == "" {
			return nil, fmt.Errorf("%w: no input given", ErrInputNotFound)
		}
		if _, err := os.Stat(inv.Input); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, inv.Input)
		}
	}

	return args, nil
}

func (f *ffmpeg) isNetworkAddress(address string) bool {
	u, err := url.Parse(address)
	if err != nil || u.Scheme == "" {
		return false
	}
	_, ok := f.schemes[strings.ToLower(u.Scheme)]
	return ok
}

func wrapLogger(l logger.Logger) *loggerWrapper {
	return &loggerWrapper{logger: l, prefix: "[ffmpeg] "}
}

type loggerWrapper struct {
	logger logger.Logger
	prefix string
}

func (w *loggerWrapper) Info(format string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Info(w.prefix+format, args...)
	}
}

func (w *loggerWrapper) Error(format string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Error(w.prefix+format, args...)
	}
}

func (w *loggerWrapper) Debug(format string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Debug(w.prefix+format, args...)
	}
}
