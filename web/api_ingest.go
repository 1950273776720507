package web

import (
	"github.com/aistock/tdxdata/btime"
	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/ingest"
	"github.com/aistock/tdxdata/orm"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func (s *Server) regIngest(api fiber.Router) {
	api.Post("/run", s.onRunJob)
	api.Get("/status", s.onJobStatus)
	api.Get("/jobs", s.onListJobs)
	api.Post("/cancel", s.onCancelJob)
	api.Post("/retry", s.onRetryJob)
	api.Get("/logs", s.onJobLogs)
	api.Get("/state", s.onListState)
	api.Post("/refresh", s.onRefreshCagg)
}

// onRefreshCagg 回补分钟线后手动刷新粗粒度聚合视图
func (s *Server) onRefreshCagg(c *fiber.Ctx) error {
	type RefreshArgs struct {
		Period string `json:"period" validate:"required,oneof=5m 15m 60m"`
		Start  string `json:"start" validate:"required"`
		End    string `json:"end" validate:"required"`
	}
	var args = new(RefreshArgs)
	if err := VerifyArg(c, args, ArgBody); err != nil {
		return err
	}
	startMS, err := btime.ParseTimeMS(args.Start)
	if err != nil {
		return err
	}
	endMS, err := btime.ParseTimeMS(args.End)
	if err != nil {
		return err
	}
	q, conn, err := orm.Conn(c.Context())
	if err != nil {
		return err
	}
	defer conn.Release()
	err = q.RefreshCagg(c.Context(), args.Period, btime.MSToTime(startMS), btime.MSToTime(endMS))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) onRunJob(c *fiber.Ctx) error {
	type RunArgs struct {
		Dataset string   `json:"dataset" validate:"required"`
		Mode    string   `json:"mode"`
		Codes   []string `json:"codes"`
		Start   string   `json:"start"`
		End     string   `json:"end"`
		Force   bool     `json:"force"`
	}
	var args = new(RunArgs)
	if err := VerifyArg(c, args, ArgBody); err != nil {
		return err
	}
	jobID, err := s.orc.StartJob(&ingest.JobArgs{
		Dataset: args.Dataset, Mode: args.Mode, Codes: args.Codes,
		Start: args.Start, End: args.End, Force: args.Force,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"job_id": jobID.String()})
}

func parseJobID(text string) (uuid.UUID, error) {
	jobID, err := uuid.Parse(text)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "bad job_id: "+text)
	}
	return jobID, nil
}

func (s *Server) onJobStatus(c *fiber.Ctx) error {
	jobID, err := parseJobID(c.Query("job_id"))
	if err != nil {
		return err
	}
	q, conn, err2 := orm.Conn(c.Context())
	if err2 != nil {
		return err2
	}
	defer conn.Release()
	job, err2 := q.GetJob(c.Context(), jobID)
	if err2 != nil {
		return err2
	}
	tasks, err2 := q.ListTasks(c.Context(), jobID, "")
	if err2 != nil {
		return err2
	}
	var done, failed int
	var recentErrs []string
	for _, t := range tasks {
		switch t.Status {
		case core.StatusSucceeded:
			done += 1
		case core.StatusFailed:
			failed += 1
			if t.LastError != "" && len(recentErrs) < 10 {
				recentErrs = append(recentErrs, t.TsCode+": "+t.LastError)
			}
		}
	}
	progress := 0.0
	if len(tasks) > 0 {
		progress = float64(done+failed) * 100 / float64(len(tasks))
	}
	return c.JSON(fiber.Map{
		"job_id":        job.JobID.String(),
		"status":        job.Status,
		"progress":      progress,
		"summary":       job.Summary,
		"tasks":         len(tasks),
		"tasks_done":    done,
		"tasks_failed":  failed,
		"recent_errors": recentErrs,
		"created_at":    job.CreatedAt,
		"finished_at":   job.FinishedAt,
	})
}

func (s *Server) onListJobs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	q, conn, err := orm.Conn(c.Context())
	if err != nil {
		return err
	}
	defer conn.Release()
	jobs, err := q.ListJobs(c.Context(), c.Query("status"), limit)
	if err != nil {
		return err
	}
	return c.JSON(jobs)
}

func (s *Server) onCancelJob(c *fiber.Ctx) error {
	type CancelArgs struct {
		JobID string `json:"job_id" validate:"required"`
	}
	var args = new(CancelArgs)
	if err := VerifyArg(c, args, ArgBody); err != nil {
		return err
	}
	jobID, err := parseJobID(args.JobID)
	if err != nil {
		return err
	}
	if err2 := s.orc.Cancel(c.Context(), jobID); err2 != nil {
		return err2
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) onRetryJob(c *fiber.Ctx) error {
	type RetryArgs struct {
		JobID string `json:"job_id" validate:"required"`
	}
	var args = new(RetryArgs)
	if err := VerifyArg(c, args, ArgBody); err != nil {
		return err
	}
	jobID, err := parseJobID(args.JobID)
	if err != nil {
		return err
	}
	newID, err2 := s.orc.Retry(c.Context(), jobID)
	if err2 != nil {
		return err2
	}
	return c.JSON(fiber.Map{"job_id": newID.String()})
}

func (s *Server) onJobLogs(c *fiber.Ctx) error {
	jobID, err := parseJobID(c.Query("job_id"))
	if err != nil {
		return err
	}
	limit := c.QueryInt("limit", 100)
	q, conn, err2 := orm.Conn(c.Context())
	if err2 != nil {
		return err2
	}
	defer conn.Release()
	logs, err2 := q.ListIngestLogs(c.Context(), jobID, limit)
	if err2 != nil {
		return err2
	}
	return c.JSON(logs)
}

func (s *Server) onListState(c *fiber.Ctx) error {
	dataset := c.Query("dataset")
	if dataset == "" {
		return fiber.NewError(fiber.StatusBadRequest, "dataset is required")
	}
	q, conn, err := orm.Conn(c.Context())
	if err != nil {
		return err
	}
	defer conn.Release()
	states, err := q.ListStates(c.Context(), dataset)
	if err != nil {
		return err
	}
	return c.JSON(states)
}
