// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	FFmpeg  FFmpegConfig  `yaml:"ffmpeg"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Bind string `yaml:"bind"`
	// AllowOrigins 允许跨域访问 API 和事件流的来源，为空时只允许同源，"*" 允许全部
	AllowOrigins []string `yaml:"allow_origins"`
}

// FFmpegConfig FFmpeg 配置
type FFmpegConfig struct {
	Path           string        `yaml:"path"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	DrainTimeout   time.Duration `yaml:"drain_timeout"`
	HistoryLines   int           `yaml:"history_lines"`
	NetworkSchemes []string      `yaml:"network_schemes"`
	Access         AccessConfig  `yaml:"access"`
}

// AccessConfig 输入输出地址的正则白名单/黑名单
type AccessConfig struct {
	Input  AllowBlock `yaml:"input"`
	Output AllowBlock `yaml:"output"`
}

type AllowBlock struct {
	Allow []string `yaml:"allow"`
	Block []string `yaml:"block"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig Prometheus 指标
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{Bind: ":8080"},
		FFmpeg: FFmpegConfig{
			Path:         "ffmpeg",
			PollInterval: 100 * time.Millisecond,
			DrainTimeout: 5 * time.Second,
			HistoryLines: 100,
		},
		Log:     LogConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Load 从 YAML 文件加载配置，文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// 填充空值
func (c *Config) fillDefaults() {
	def := Default()

	if c.Server.Bind == "" {
		c.Server.Bind = def.Server.Bind
	}
	if c.FFmpeg.Path == "" {
		c.FFmpeg.Path = def.FFmpeg.Path
	}
	if c.FFmpeg.PollInterval == 0 {
		c.FFmpeg.PollInterval = def.FFmpeg.PollInterval
	}
	if c.FFmpeg.DrainTimeout == 0 {
		c.FFmpeg.DrainTimeout = def.FFmpeg.DrainTimeout
	}
	if c.FFmpeg.HistoryLines == 0 {
		c.FFmpeg.HistoryLines = def.FFmpeg.HistoryLines
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = def.Metrics.Path
	}
}

// Validate checks values that have no sensible fallback
func (c *Config) Validate() error {
	if c.FFmpeg.PollInterval < 0 {
		return fmt.Errorf("ffmpeg.poll_interval must be positive")
	}
	if c.FFmpeg.DrainTimeout < 0 {
		return fmt.Errorf("ffmpeg.drain_timeout must be positive")
	}
	if c.FFmpeg.HistoryLines < 2 {
		return fmt.Errorf("ffmpeg.history_lines must be at least 2")
	}
	for _, origin := range c.Server.AllowOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("server.allow_origins: %q must be \"*\" or start with http:// or https://", origin)
		}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
