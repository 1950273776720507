package orm

import (
	"context"
	"testing"

	"github.com/aistock/tdxdata/core"
	"github.com/stretchr/testify/require"
)

// 作业和任务创建后处于queued，派发时才流转到running
func TestJobStateMachine(t *testing.T) {
	q := dbQueries(t)
	ctx := context.Background()
	jobID, err := q.CreateJob(ctx, core.ModeIncremental, map[string]interface{}{"dataset": core.DsKlineDailyRaw})
	require.Nil(t, err)
	taskID, err := q.CreateTask(ctx, jobID, core.DsKlineDailyRaw, "999996.SZ", nil, nil)
	require.Nil(t, err)
	t.Cleanup(func() {
		_, _ = q.db.Exec(ctx, "DELETE FROM market.ingestion_job_tasks WHERE job_id=$1", jobID)
		_, _ = q.db.Exec(ctx, "DELETE FROM market.ingestion_jobs WHERE job_id=$1", jobID)
	})

	job, err := q.GetJob(ctx, jobID)
	require.Nil(t, err)
	require.Equal(t, core.StatusQueued, job.Status)
	require.Nil(t, job.StartedAt)

	queued, err := q.ListTasks(ctx, jobID, core.StatusQueued)
	require.Nil(t, err)
	require.Len(t, queued, 1)

	// 派发：作业和任务进入running，记录开始时间
	require.Nil(t, q.SetJobStatus(ctx, jobID, core.StatusRunning))
	require.Nil(t, q.SetTaskStatus(ctx, taskID, core.StatusRunning))
	job, err = q.GetJob(ctx, jobID)
	require.Nil(t, err)
	require.Equal(t, core.StatusRunning, job.Status)
	require.NotNil(t, job.StartedAt)
	running, err := q.ListTasks(ctx, jobID, core.StatusRunning)
	require.Nil(t, err)
	require.Len(t, running, 1)

	require.Nil(t, q.CompleteTask(ctx, taskID, core.StatusSucceeded, 100, ""))
	require.Nil(t, q.SetJobStatus(ctx, jobID, core.StatusSucceeded))
	job, err = q.GetJob(ctx, jobID)
	require.Nil(t, err)
	require.Equal(t, core.StatusSucceeded, job.Status)
	require.NotNil(t, job.FinishedAt)

	// 终态不可再改
	err = q.SetJobStatus(ctx, jobID, core.StatusRunning)
	require.NotNil(t, err)
	require.Equal(t, core.ErrBadJobState, err.Code)
}

// summary数值字段跨多次更新累加
func TestUpdateJobSummaryCounters(t *testing.T) {
	q := dbQueries(t)
	ctx := context.Background()
	jobID, err := q.CreateJob(ctx, core.ModeIncremental, nil)
	require.Nil(t, err)
	t.Cleanup(func() {
		_, _ = q.db.Exec(ctx, "DELETE FROM market.ingestion_jobs WHERE job_id=$1", jobID)
	})

	require.Nil(t, q.UpdateJobSummary(ctx, jobID, map[string]interface{}{"inserted": 10, "updated": 2}))
	require.Nil(t, q.UpdateJobSummary(ctx, jobID, map[string]interface{}{"inserted": 5, "rows_failed": 1}))
	job, err := q.GetJob(ctx, jobID)
	require.Nil(t, err)
	require.EqualValues(t, 15, job.Summary["inserted"])
	require.EqualValues(t, 2, job.Summary["updated"])
	require.EqualValues(t, 1, job.Summary["rows_failed"])
}

// (dataset, mode)冲突走更新路径时返回已有行的schedule_id
func TestCreateScheduleKeepsID(t *testing.T) {
	q := dbQueries(t)
	ctx := context.Background()
	it := &IngestSchedule{Dataset: core.DsTradeCal, Mode: core.ModeIncremental,
		Frequency: "0 17 * * 1-5", Enabled: true}
	id1, err := q.CreateSchedule(ctx, it)
	require.Nil(t, err)
	t.Cleanup(func() {
		_ = q.DeleteSchedule(ctx, id1)
	})

	it.Frequency = "30 17 * * 1-5"
	id2, err := q.CreateSchedule(ctx, it)
	require.Nil(t, err)
	require.Equal(t, id1, id2)

	sch, err := q.GetSchedule(ctx, id1)
	require.Nil(t, err)
	require.Equal(t, "30 17 * * 1-5", sch.Frequency)
}
