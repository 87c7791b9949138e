// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

package api

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/ZSC714725/ffrunner/internal/ffmpeg/command"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/parse"
	"github.com/ZSC714725/ffrunner/internal/job"
	"github.com/ZSC714725/ffrunner/internal/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Handler holds dependencies
type Handler struct {
	store    job.Store
	logger   logger.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates API handler. Event streams accept the origins in
// allowOrigins, or same-origin requests only when it is empty.
func NewHandler(store job.Store, log logger.Logger, allowOrigins []string) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		store:  store,
		logger: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowOrigins),
		},
	}
}

// CORS returns the middleware for allowOrigins, nil when it is empty.
func CORS(allowOrigins []string) gin.HandlerFunc {
	if len(allowOrigins) == 0 {
		return nil
	}
	config := cors.DefaultConfig()
	if slices.Contains(allowOrigins, "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowOrigins
	}
	return cors.New(config)
}

// originChecker returns nil for the websocket same-origin default.
func originChecker(allowOrigins []string) func(r *http.Request) bool {
	if len(allowOrigins) == 0 {
		return nil
	}
	if slices.Contains(allowOrigins, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowOrigins {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// Register adds the job routes to group
func (h *Handler) Register(group gin.IRoutes) {
	group.GET("/job", h.ListJobs)
	group.POST("/job", h.AddJob)
	group.GET("/job/:id", h.GetJob)
	group.DELETE("/job/:id", h.DeleteJob)
	group.GET("/job/:id/config", h.GetConfig)
	group.GET("/job/:id/state", h.GetState)
	group.GET("/job/:id/report", h.GetReport)
	group.PUT("/job/:id/command", h.Command)
	group.GET("/job/:id/events", h.Events)
}

func errResp(c *gin.Context, code int, msg, detail string) {
	c.JSON(code, ErrorResponse{Code: code, Message: msg, Detail: detail})
}

// storeErr maps job store errors to responses
func storeErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, job.ErrNotFound):
		errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
	case errors.Is(err, job.ErrJobExists):
		errResp(c, http.StatusBadRequest, "Job exists", err.Error())
	case errors.Is(err, job.ErrInvalidInputAddress), errors.Is(err, job.ErrInvalidOutputAddress):
		errResp(c, http.StatusBadRequest, "Invalid address", err.Error())
	case errors.Is(err, job.ErrInvalidTask):
		errResp(c, http.StatusBadRequest, "Invalid task", err.Error())
	case errors.Is(err, job.ErrJobRunning), errors.Is(err, job.ErrJobFinished):
		errResp(c, http.StatusConflict, "Command failed", err.Error())
	case errors.Is(err, job.ErrStoreClosed):
		errResp(c, http.StatusServiceUnavailable, "Shutting down", err.Error())
	default:
		errResp(c, http.StatusInternalServerError, "Internal error", err.Error())
	}
}

// AddJob POST /api/v3/job
func (h *Handler) AddJob(c *gin.Context) {
	var req JobConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	j, err := h.store.Add(requestToConfig(&req))
	if err != nil {
		storeErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jobToConfig(j))
}

// ListJobs GET /api/v3/job
func (h *Handler) ListJobs(c *gin.Context) {
	filter := c.DefaultQuery("filter", "")
	reference := c.DefaultQuery("reference", "")
	idStr := c.DefaultQuery("id", "")

	var ids []string
	if idStr != "" {
		ids = strings.FieldsFunc(idStr, func(r rune) bool { return r == ',' })
		for i := range ids {
			ids[i] = strings.TrimSpace(ids[i])
		}
	}

	jobs := h.store.List(ids, reference)
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobToAPI(j, filter))
	}

	c.JSON(http.StatusOK, out)
}

// GetJob GET /api/v3/job/:id
func (h *Handler) GetJob(c *gin.Context) {
	j, err := h.store.Get(c.Param("id"))
	if err != nil {
		storeErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jobToAPI(j, c.DefaultQuery("filter", "")))
}

// DeleteJob DELETE /api/v3/job/:id
func (h *Handler) DeleteJob(c *gin.Context) {
	if err := h.store.Delete(c.Param("id")); err != nil {
		storeErr(c, err)
		return
	}

	c.JSON(http.StatusOK, "OK")
}

// GetConfig GET /api/v3/job/:id/config
func (h *Handler) GetConfig(c *gin.Context) {
	j, err := h.store.Get(c.Param("id"))
	if err != nil {
		storeErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jobToConfig(j))
}

// GetState GET /api/v3/job/:id/state
func (h *Handler) GetState(c *gin.Context) {
	j, err := h.store.Get(c.Param("id"))
	if err != nil {
		storeErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jobToState(j))
}

// GetReport GET /api/v3/job/:id/report
func (h *Handler) GetReport(c *gin.Context) {
	j, err := h.store.Get(c.Param("id"))
	if err != nil {
		storeErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jobToReport(j))
}

// Command PUT /api/v3/job/:id/command
func (h *Handler) Command(c *gin.Context) {
	id := c.Param("id")

	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	var err error
	switch req.Command {
	case "start":
		err = h.store.Start(id)
	case "cancel":
		err = h.store.Cancel(id)
	default:
		errResp(c, http.StatusBadRequest, "Unknown command", "Known: start, cancel")
		return
	}

	if err != nil {
		storeErr(c, err)
		return
	}

	c.JSON(http.StatusOK, "OK")
}

// Events GET /api/v3/job/:id/events streams the job events over a
// websocket until the job has finished or the client goes away.
func (h *Handler) Events(c *gin.Context) {
	j, err := h.store.Get(c.Param("id"))
	if err != nil {
		storeErr(c, err)
		return
	}

	// subscribe first so nothing is missed while the handshake completes
	events, unsubscribe := j.Subscribe()
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade for job %s: %v", j.ID, err)
		return
	}
	defer conn.Close()

	// the client never sends anything, reading only notices it leaving
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case e, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(eventToAPI(e)); err != nil {
				h.logger.Debug("websocket write for job %s: %v", j.ID, err)
				return
			}
		case <-gone:
			return
		}
	}
}

func requestToConfig(req *JobConfigRequest) job.Config {
	return job.Config{
		ID:        req.ID,
		Reference: req.Reference,
		Autostart: req.Autostart,
		Spec: command.Spec{
			Task:         command.Task(req.Task),
			Input:        req.Input,
			Output:       req.Output,
			Seek:         req.Seek,
			Start:        req.Start,
			End:          req.End,
			Track:        req.Track,
			Bitrate:      req.Bitrate,
			SamplingRate: req.SamplingRate,
			CommandLine:  req.CommandLine,
		},
	}
}

func jobToConfig(j *job.Job) *JobConfig {
	return &JobConfig{
		ID:           j.ID,
		Reference:    j.Reference,
		Task:         string(j.Config.Task),
		Input:        j.Config.Input,
		Output:       j.Config.Output,
		Seek:         j.Config.Seek,
		Start:        j.Config.Start,
		End:          j.Config.End,
		Track:        j.Config.Track,
		Bitrate:      j.Config.Bitrate,
		SamplingRate: j.Config.SamplingRate,
		CommandLine:  j.Invocation.CommandLine,
		Autostart:    j.Config.Autostart,
	}
}

func jobToState(j *job.Job) *JobState {
	status := j.Status()
	return &JobState{
		State:      status.State.String(),
		PID:        status.PID,
		Runtime:    status.Runtime.Seconds(),
		Duration:   status.Total.Seconds(),
		LastLog:    status.LastLine,
		Progress:   progressToAPI(status.Progress),
		Completion: completionToAPI(status.Completion),
		Outcome:    outcomeToAPI(status.Outcome),
		Memory:     status.Memory,
		CPU:        status.CPU,
	}
}

func jobToReport(j *job.Job) *JobReport {
	lines := j.Log()
	report := &JobReport{
		CreatedAt: j.CreatedAt,
		Log:       make([][2]string, len(lines)),
		Outcome:   outcomeToAPI(j.Status().Outcome),
	}
	for i, line := range lines {
		report.Log[i] = [2]string{
			line.Timestamp.Format("2006-01-02 15:04:05.000"),
			line.Data,
		}
	}
	return report
}

func jobToAPI(j *job.Job, filter string) Job {
	out := Job{
		ID:        j.ID,
		Type:      "ffmpeg",
		Reference: j.Reference,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt(),
	}

	includeAll := filter == ""
	if includeAll || strings.Contains(filter, "config") {
		out.Config = jobToConfig(j)
	}
	if includeAll || strings.Contains(filter, "state") {
		out.State = jobToState(j)
	}
	if includeAll || strings.Contains(filter, "report") {
		out.Report = jobToReport(j)
	}
	return out
}

func progressToAPI(p *parse.Progress) *Progress {
	if p == nil {
		return nil
	}
	out := &Progress{
		Time:     p.Processed.Seconds(),
		Duration: p.Total.Seconds(),
		Frame:    p.Frame,
		FPS:      p.FPS,
		Size:     p.SizeKB,
		Bitrate:  p.Bitrate,
		Speed:    p.Speed,
	}
	if p.Total > 0 {
		out.Percent = min(100, 100*p.Processed.Seconds()/p.Total.Seconds())
	}
	return out
}

func completionToAPI(c *parse.Completion) *Completion {
	if c == nil {
		return nil
	}
	return &Completion{Duration: c.Total.Seconds(), MuxingOverhead: c.MuxingOverhead}
}

func outcomeToAPI(o *job.Outcome) *Outcome {
	if o == nil {
		return nil
	}
	out := &Outcome{
		State:    o.State.String(),
		ExitCode: o.ExitCode,
		Error:    o.Error,
		Stopped:  o.Stopped.Unix(),
	}
	if !o.Started.IsZero() {
		out.Started = o.Started.Unix()
	}
	return out
}

func eventToAPI(e job.Event) Event {
	return Event{
		Type:       string(e.Type),
		Time:       e.Time.UnixMilli(),
		Line:       e.Line,
		Progress:   progressToAPI(e.Progress),
		Completion: completionToAPI(e.Completion),
		Outcome:    outcomeToAPI(e.Outcome),
	}
}
