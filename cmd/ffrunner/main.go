// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ZSC714725/ffrunner/internal/config"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg"
	"github.com/ZSC714725/ffrunner/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfg *config.Config

	flagConfigPath string
	flagFFmpeg     string
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:          "ffrunner",
	Short:        "Run FFmpeg and follow its progress",
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagFFmpeg, "ffmpeg", "", "FFmpeg binary path (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	rootCmd.SilenceErrors = true
	rootCmd.PersistentPreRunE = initConfig

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		var exit *exitCodeError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		slog.Error("ffrunner failed", "err", err)
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	cfg = config.Default()
	if flagConfigPath != "" {
		var err error
		cfg, err = config.Load(flagConfigPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	if flagFFmpeg != "" {
		cfg.FFmpeg.Path = flagFFmpeg
	}
	if flagVerbose {
		cfg.Log.Level = "debug"
	}

	slog.SetDefault(logger.NewSlog(os.Stderr, cfg.Log.Format, cfg.Log.Level))
	return nil
}

// newFFmpeg builds the runner from the loaded config
func newFFmpeg(log logger.Logger) (ffmpeg.FFmpeg, error) {
	in, err := ffmpeg.NewValidator(cfg.FFmpeg.Access.Input.Allow, cfg.FFmpeg.Access.Input.Block)
	if err != nil {
		return nil, fmt.Errorf("input access: %w", err)
	}
	out, err := ffmpeg.NewValidator(cfg.FFmpeg.Access.Output.Allow, cfg.FFmpeg.Access.Output.Block)
	if err != nil {
		return nil, fmt.Errorf("output access: %w", err)
	}

	return ffmpeg.New(ffmpeg.Config{
		Binary:          cfg.FFmpeg.Path,
		PollInterval:    cfg.FFmpeg.PollInterval,
		DrainTimeout:    cfg.FFmpeg.DrainTimeout,
		HistoryLines:    cfg.FFmpeg.HistoryLines,
		NetworkSchemes:  cfg.FFmpeg.NetworkSchemes,
		ValidatorInput:  in,
		ValidatorOutput: out,
		Logger:          log,
	})
}

// exitCodeError makes the process exit with code without printing anything
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
