package orm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateJob 新建作业，初始为queued，首次派发时流转到running
func (q *Queries) CreateJob(ctx context.Context, jobType string, summary map[string]interface{}) (uuid.UUID, *errs.Error) {
	jobID := uuid.New()
	_, err := q.db.Exec(ctx, `INSERT INTO market.ingestion_jobs (job_id, job_type, status, created_at, summary)
VALUES ($1, $2, $3, NOW(), $4)`, jobID, jobType, core.StatusQueued, summary)
	if err != nil {
		return uuid.Nil, NewDbErr(core.ErrDbExecFail, err)
	}
	return jobID, nil
}

func (q *Queries) GetJob(ctx context.Context, jobID uuid.UUID) (*IngestJob, *errs.Error) {
	row := q.db.QueryRow(ctx, `SELECT job_id, job_type, status, created_at, started_at, finished_at, summary
FROM market.ingestion_jobs WHERE job_id=$1`, jobID)
	var it IngestJob
	err := row.Scan(&it.JobID, &it.JobType, &it.Status, &it.CreatedAt, &it.StartedAt, &it.FinishedAt, &it.Summary)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NewMsg(core.ErrJobNotFound, "job not found: %s", jobID)
		}
		return nil, NewDbErr(core.ErrDbReadFail, err)
	}
	return &it, nil
}

func (q *Queries) ListJobs(ctx context.Context, status string, limit int) ([]*IngestJob, *errs.Error) {
	if limit <= 0 {
		limit = 50
	}
	sqlStr := `SELECT job_id, job_type, status, created_at, started_at, finished_at, summary FROM market.ingestion_jobs`
	args := make([]interface{}, 0, 2)
	if status != "" {
		sqlStr += " WHERE status=$1 ORDER BY created_at DESC LIMIT $2"
		args = append(args, status, limit)
	} else {
		sqlStr += " ORDER BY created_at DESC LIMIT $1"
		args = append(args, limit)
	}
	rows, err_ := q.db.Query(ctx, sqlStr, args...)
	items, err_ := mapToItems(rows, err_, func() (*IngestJob, []any) {
		var it IngestJob
		return &it, []any{&it.JobID, &it.JobType, &it.Status, &it.CreatedAt, &it.StartedAt, &it.FinishedAt, &it.Summary}
	})
	if err_ != nil {
		return nil, NewDbErr(core.ErrDbReadFail, err_)
	}
	return items, nil
}

/*
SetJobStatus 更新任务状态；终态任务不可再改，返回ErrBadJobState
*/
func (q *Queries) SetJobStatus(ctx context.Context, jobID uuid.UUID, status string) *errs.Error {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if core.IsTerminalStatus(job.Status) {
		return errs.NewMsg(core.ErrBadJobState, "job %s already %s", jobID, job.Status)
	}
	sqlStr := "UPDATE market.ingestion_jobs SET status=$1 WHERE job_id=$2"
	if status == core.StatusRunning {
		sqlStr = "UPDATE market.ingestion_jobs SET status=$1, started_at=NOW() WHERE job_id=$2"
	} else if core.IsTerminalStatus(status) {
		sqlStr = "UPDATE market.ingestion_jobs SET status=$1, finished_at=NOW() WHERE job_id=$2"
	}
	_, err_ := q.db.Exec(ctx, sqlStr, status, jobID)
	if err_ != nil {
		return NewDbErr(core.ErrDbExecFail, err_)
	}
	return nil
}

/*
UpdateJobSummary 合并式更新summary，数值字段累加，其余覆盖
*/
func (q *Queries) UpdateJobSummary(ctx context.Context, jobID uuid.UUID, patch map[string]interface{}) *errs.Error {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	base := job.Summary
	if base == nil {
		base = make(map[string]interface{})
	}
	for k, v := range patch {
		nv, ok1 := toFloat(v)
		ov, ok2 := toFloat(base[k])
		if ok1 && ok2 {
			base[k] = ov + nv
		} else {
			base[k] = v
		}
	}
	_, err_ := q.db.Exec(ctx, "UPDATE market.ingestion_jobs SET summary=$1 WHERE job_id=$2", base, jobID)
	if err_ != nil {
		return NewDbErr(core.ErrDbExecFail, err_)
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func (q *Queries) CreateTask(ctx context.Context, jobID uuid.UUID, dataset, tsCode string, dateFrom, dateTo *time.Time) (uuid.UUID, *errs.Error) {
	taskID := uuid.New()
	_, err := q.db.Exec(ctx, `INSERT INTO market.ingestion_job_tasks (task_id, job_id, dataset, ts_code, date_from, date_to, status, progress)
VALUES ($1, $2, $3, $4, $5, $6, $7, 0)`, taskID, jobID, dataset, nullStr(tsCode), dateFrom, dateTo, core.StatusQueued)
	if err != nil {
		return uuid.Nil, NewDbErr(core.ErrDbExecFail, err)
	}
	return taskID, nil
}

// SetTaskStatus 任务被worker领取时置running
func (q *Queries) SetTaskStatus(ctx context.Context, taskID uuid.UUID, status string) *errs.Error {
	_, err := q.db.Exec(ctx, "UPDATE market.ingestion_job_tasks SET status=$1, updated_at=NOW() WHERE task_id=$2",
		status, taskID)
	if err != nil {
		return NewDbErr(core.ErrDbExecFail, err)
	}
	return nil
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (q *Queries) CompleteTask(ctx context.Context, taskID uuid.UUID, status string, progress float64, lastError string) *errs.Error {
	_, err := q.db.Exec(ctx, `UPDATE market.ingestion_job_tasks
SET status=$1, progress=$2, last_error=$3, updated_at=NOW() WHERE task_id=$4`,
		status, progress, nullStr(lastError), taskID)
	if err != nil {
		return NewDbErr(core.ErrDbExecFail, err)
	}
	return nil
}

func (q *Queries) AddTaskRetry(ctx context.Context, taskID uuid.UUID) *errs.Error {
	_, err := q.db.Exec(ctx, "UPDATE market.ingestion_job_tasks SET retries=retries+1, updated_at=NOW() WHERE task_id=$1", taskID)
	if err != nil {
		return NewDbErr(core.ErrDbExecFail, err)
	}
	return nil
}

/*
ListTasks 查询任务明细，status为空时返回全部
*/
func (q *Queries) ListTasks(ctx context.Context, jobID uuid.UUID, status string) ([]*JobTask, *errs.Error) {
	sqlStr := `SELECT task_id, job_id, dataset, COALESCE(ts_code,''), date_from, date_to, status, progress, retries, COALESCE(last_error,''), updated_at
FROM market.ingestion_job_tasks WHERE job_id=$1`
	args := []interface{}{jobID}
	if status != "" {
		sqlStr += " AND status=$2"
		args = append(args, status)
	}
	sqlStr += " ORDER BY updated_at"
	rows, err_ := q.db.Query(ctx, sqlStr, args...)
	items, err_ := mapToItems(rows, err_, func() (*JobTask, []any) {
		var it JobTask
		return &it, []any{&it.TaskID, &it.JobID, &it.Dataset, &it.TsCode, &it.DateFrom, &it.DateTo,
			&it.Status, &it.Progress, &it.Retries, &it.LastError, &it.UpdatedAt}
	})
	if err_ != nil {
		return nil, NewDbErr(core.ErrDbReadFail, err_)
	}
	for _, it := range items {
		it.TsCode = strings.TrimSpace(it.TsCode)
	}
	return items, nil
}

func (q *Queries) CreateRun(ctx context.Context, mode, dataset string, params map[string]interface{}) (uuid.UUID, *errs.Error) {
	runID := uuid.New()
	_, err := q.db.Exec(ctx, `INSERT INTO market.ingestion_runs (run_id, mode, dataset, status, created_at, started_at, params)
VALUES ($1, $2, $3, $4, NOW(), NOW(), $5)`, runID, mode, dataset, core.StatusRunning, params)
	if err != nil {
		return uuid.Nil, NewDbErr(core.ErrDbExecFail, err)
	}
	return runID, nil
}

func (q *Queries) FinishRun(ctx context.Context, runID uuid.UUID, status string, summary map[string]interface{}) *errs.Error {
	_, err := q.db.Exec(ctx, "UPDATE market.ingestion_runs SET status=$1, finished_at=NOW(), summary=$2 WHERE run_id=$3",
		status, summary, runID)
	if err != nil {
		return NewDbErr(core.ErrDbExecFail, err)
	}
	return nil
}

func (q *Queries) AddIngestLog(ctx context.Context, jobID uuid.UUID, level, message string) *errs.Error {
	_, err := q.db.Exec(ctx, "INSERT INTO market.ingestion_logs (job_id, ts, level, message) VALUES ($1, NOW(), $2, $3)",
		jobID, strings.ToUpper(level), message)
	if err != nil {
		return NewDbErr(core.ErrDbExecFail, err)
	}
	return nil
}

func (q *Queries) ListIngestLogs(ctx context.Context, jobID uuid.UUID, limit int) ([]*IngestLog, *errs.Error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err_ := q.db.Query(ctx, `SELECT job_id, ts, level, COALESCE(message,'')
FROM market.ingestion_logs WHERE job_id=$1 ORDER BY ts DESC LIMIT $2`, jobID, limit)
	items, err_ := mapToItems(rows, err_, func() (*IngestLog, []any) {
		var it IngestLog
		return &it, []any{&it.JobID, &it.Ts, &it.Level, &it.Message}
	})
	if err_ != nil {
		return nil, NewDbErr(core.ErrDbReadFail, err_)
	}
	return items, nil
}

func (q *Queries) AddIngestError(ctx context.Context, runID uuid.UUID, dataset, tsCode, message string, detail map[string]interface{}) *errs.Error {
	_, err := q.db.Exec(ctx, `INSERT INTO market.ingestion_errors (run_id, dataset, ts_code, message, detail)
VALUES ($1, $2, $3, $4, $5)`, runID, dataset, nullStr(tsCode), message, detail)
	if err != nil {
		return NewDbErr(core.ErrDbExecFail, err)
	}
	return nil
}
