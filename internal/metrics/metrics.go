// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

// Package metrics exposes job and FFmpeg output counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the metrics of one job store. A nil *Collector records
// nothing.
type Collector struct {
	jobsStarted   prometheus.Counter
	jobsFinished  *prometheus.CounterVec
	jobsRunning   prometheus.Gauge
	jobRuntime    prometheus.Histogram
	lines         prometheus.Counter
	progress      prometheus.Counter
	handlerFaults prometheus.Counter
}

// NewCollector creates a collector registered with the default registry.
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
func NewCollectorWithRegistry(registry prometheus.Registerer) *Collector {
	c := &Collector{
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ffrunner_jobs_started_total",
			Help: "FFmpeg processes started",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ffrunner_jobs_finished_total",
			Help: "FFmpeg processes finished, by final state",
		}, []string{"state"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ffrunner_jobs_running",
			Help: "FFmpeg processes currently running",
		}),
		jobRuntime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ffrunner_job_runtime_seconds",
			Help:    "Wall time of finished FFmpeg processes",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 14),
		}),
		lines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ffrunner_stderr_lines_total",
			Help: "Lines read from FFmpeg stderr",
		}),
		progress: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ffrunner_progress_events_total",
			Help: "Progress lines recognized in FFmpeg stderr",
		}),
		handlerFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ffrunner_handler_faults_total",
			Help: "Runs terminated because an event handler failed",
		}),
	}

	registry.MustRegister(
		c.jobsStarted,
		c.jobsFinished,
		c.jobsRunning,
		c.jobRuntime,
		c.lines,
		c.progress,
		c.handlerFaults,
	)
	return c
}

func (c *Collector) JobStarted() {
	if c == nil {
		return
	}
	c.jobsStarted.Inc()
	c.jobsRunning.Inc()
}

// JobFinished records a process that was started and has exited.
func (c *Collector) JobFinished(state string, runtime time.Duration) {
	if c == nil {
		return
	}
	c.jobsRunning.Dec()
	c.jobsFinished.WithLabelValues(state).Inc()
	c.jobRuntime.Observe(runtime.Seconds())
}

func (c *Collector) Line() {
	if c == nil {
		return
	}
	c.lines.Inc()
}

func (c *Collector) Progress() {
	if c == nil {
		return
	}
	c.progress.Inc()
}

func (c *Collector) HandlerFault() {
	if c == nil {
		return
	}
	c.handlerFaults.Inc()
}

// Handler serves the metrics of gatherer in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
