package ingest

import (
	"context"
	"time"

	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/aistock/tdxdata/log"
	"github.com/aistock/tdxdata/orm"
	"github.com/aistock/tdxdata/tdx"
	"github.com/aistock/tdxdata/tushare"
	"github.com/aistock/tdxdata/utils"
	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

// TaskAllCodes 数据集级任务的ts_code占位
const TaskAllCodes = "*"

/*
Orchestrator 摄取作业编排器。

负责作业创建、任务分解、并发派发与状态机维护；
所有写库经orm层，断点推进严格在数据提交之后。
*/
type Orchestrator struct {
	tdx     *tdx.Client
	ts      *tushare.Client
	lock    deadlock.Mutex
	cancels map[uuid.UUID]context.CancelFunc
}

// JobArgs 一次摄取请求的参数
type JobArgs struct {
	Dataset string
	Mode    string   // init/incremental
	Codes   []string // 为空时取全部标的
	Start   string   // 20060102，可空
	End     string   // 20060102，可空
	Force   bool     // 忽略断点强制重抓
}

// taskItem 派发单元，与ingestion_job_tasks一行对应。
// 计数字段由执行该任务的worker独占写入，汇总在所有任务结束后进行。
type taskItem struct {
	taskID  uuid.UUID
	dataset string
	tsCode  string
	start   string
	end     string
	mode    string
	force   bool
	ins     int64 // 新插入行数
	upd     int64 // 覆盖行数
	rej     int64 // 校验失败被剔除的行数
}

func New() *Orchestrator {
	return &Orchestrator{
		tdx:     tdx.NewClient(),
		cancels: make(map[uuid.UUID]context.CancelFunc),
	}
}

// tushareClient 懒加载，仅在需要tushare数据集时检查token
func (o *Orchestrator) tushareClient() (*tushare.Client, *errs.Error) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.ts != nil {
		return o.ts, nil
	}
	client, err := tushare.NewClient()
	if err != nil {
		return nil, err
	}
	o.ts = client
	return client, nil
}

// needTushare 这些数据集从tushare拉取
func needTushare(dataset string) bool {
	switch dataset {
	case core.DsAdjFactor, core.DsTdxBoard, core.DsTradeCal, core.DsAdjustDaily:
		return true
	}
	return false
}

// perSymbol 按标的分解任务的数据集
func perSymbol(dataset string) bool {
	switch dataset {
	case core.DsKlineDailyRaw, core.DsKlineDailyQfq, core.DsKlineDailyHfq,
		core.DsKlineWeekly, core.DsKlineMonthly, core.DsKlineMinuteRaw,
		core.DsTickTradeRaw, core.DsAdjFactor, core.DsAdjustDaily:
		return true
	}
	return false
}

/*
CreateJob 创建作业并分解任务，不启动执行。

返回作业ID，状态为queued。
*/
func (o *Orchestrator) createJob(ctx context.Context, args *JobArgs) (uuid.UUID, []*taskItem, *errs.Error) {
	if !core.DatasetNames[args.Dataset] {
		return uuid.Nil, nil, errs.NewMsg(errs.CodeParamInvalid, "unknown dataset: %s", args.Dataset)
	}
	if args.Mode == "" {
		args.Mode = core.ModeIncremental
	}
	if args.Mode != core.ModeInit && args.Mode != core.ModeIncremental {
		return uuid.Nil, nil, errs.NewMsg(errs.CodeParamInvalid, "bad mode: %s", args.Mode)
	}
	if needTushare(args.Dataset) {
		if _, err := o.tushareClient(); err != nil {
			return uuid.Nil, nil, err
		}
	}
	q, conn, err := orm.Conn(ctx)
	if err != nil {
		return uuid.Nil, nil, err
	}
	defer conn.Release()
	codes := args.Codes
	if perSymbol(args.Dataset) && len(codes) == 0 {
		symbols, err := q.ListSymbols(ctx, nil)
		if err != nil {
			return uuid.Nil, nil, err
		}
		if len(symbols) == 0 {
			return uuid.Nil, nil, errs.NewMsg(errs.CodeParamInvalid,
				"symbol_dim is empty, run dataset %s first", core.DsSymbolDim)
		}
		for _, s := range symbols {
			codes = append(codes, s.TsCode)
		}
	}
	jobID, err := q.CreateJob(ctx, args.Mode, map[string]interface{}{
		"dataset": args.Dataset, "mode": args.Mode, "codes": len(codes),
		"start": args.Start, "end": args.End,
	})
	if err != nil {
		return uuid.Nil, nil, err
	}
	var tasks []*taskItem
	addTask := func(tsCode string) *errs.Error {
		item := &taskItem{dataset: args.Dataset, tsCode: tsCode, start: args.Start, end: args.End,
			mode: args.Mode, force: args.Force}
		taskID, err := q.CreateTask(ctx, jobID, args.Dataset, tsCode,
			parseDayPtr(args.Start), parseDayPtr(args.End))
		if err != nil {
			return err
		}
		item.taskID = taskID
		tasks = append(tasks, item)
		return nil
	}
	if perSymbol(args.Dataset) {
		for _, code := range codes {
			if err = addTask(code); err != nil {
				return uuid.Nil, nil, err
			}
		}
	} else {
		if err = addTask(TaskAllCodes); err != nil {
			return uuid.Nil, nil, err
		}
	}
	log.Info("job created", zap.String("dataset", args.Dataset), zap.String("mode", args.Mode),
		zap.String("job", jobID.String()), zap.Int("tasks", len(tasks)))
	return jobID, tasks, nil
}

/*
RunJob 创建并执行一个摄取作业，阻塞到全部任务结束。

任一任务重试耗尽则作业failed；全部成功才success。
*/
func (o *Orchestrator) RunJob(ctx context.Context, args *JobArgs) (uuid.UUID, *errs.Error) {
	jobID, tasks, err := o.createJob(ctx, args)
	if err != nil {
		return jobID, err
	}
	return jobID, o.execute(ctx, jobID, args.Dataset, args.Mode, tasks)
}

/*
StartJob 异步启动作业，立即返回作业ID。

供API层使用，执行结果通过作业状态查询。
*/
func (o *Orchestrator) StartJob(args *JobArgs) (uuid.UUID, *errs.Error) {
	jobID, tasks, err := o.createJob(core.Ctx, args)
	if err != nil {
		return uuid.Nil, err
	}
	go func() {
		if err2 := o.execute(core.Ctx, jobID, args.Dataset, args.Mode, tasks); err2 != nil {
			log.Warn("job exec fail", zap.String("job", jobID.String()), zap.String("err", err2.Short()))
		}
	}()
	return jobID, nil
}

func (o *Orchestrator) execute(ctx context.Context, jobID uuid.UUID, dataset, mode string, tasks []*taskItem) *errs.Error {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.lock.Lock()
	o.cancels[jobID] = cancel
	o.lock.Unlock()
	defer func() {
		o.lock.Lock()
		delete(o.cancels, jobID)
		o.lock.Unlock()
	}()
	q, conn, err := orm.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	if err = q.SetJobStatus(ctx, jobID, core.StatusRunning); err != nil {
		return err
	}
	runMode := "incremental"
	if mode == core.ModeInit {
		runMode = "full"
	}
	runID, err := q.CreateRun(ctx, runMode, dataset, map[string]interface{}{"job_id": jobID.String()})
	if err != nil {
		return err
	}
	pBar := utils.NewPrgBar(len(tasks), dataset)
	defer pBar.Close()
	var failNum int
	var lock deadlock.Mutex
	concur := ingestCfg().Concurrency
	_ = utils.ParallelRun(jobCtx, len(tasks), concur, func(taskCtx context.Context, i int) *errs.Error {
		task := tasks[i]
		err2 := o.runTaskRetry(taskCtx, runID, task)
		pBar.Add(1)
		if err2 != nil {
			lock.Lock()
			failNum += 1
			lock.Unlock()
			if err2.Code == core.ErrCancelled {
				return err2
			}
			// 单任务失败不打断兄弟任务
			log.Warn("task failed", zap.String("dataset", task.dataset),
				zap.String("code", task.tsCode), zap.String("err", err2.Short()))
		}
		return nil
	})
	status := core.StatusSucceeded
	if jobCtx.Err() != nil {
		status = core.StatusCancelled
	} else if failNum > 0 {
		status = core.StatusFailed
	}
	var ins, upd, rej int64
	for _, t := range tasks {
		ins += t.ins
		upd += t.upd
		rej += t.rej
	}
	summary := map[string]interface{}{"tasks": len(tasks), "failed": failNum,
		"inserted": ins, "updated": upd, "rows_failed": rej}
	_ = q.UpdateJobSummary(ctx, jobID, summary)
	_ = q.FinishRun(ctx, runID, status, summary)
	if err = q.SetJobStatus(ctx, jobID, status); err != nil {
		return err
	}
	_ = q.AddIngestLog(ctx, jobID, "info", "job finished: "+status)
	if status == core.StatusFailed {
		return errs.NewMsg(core.ErrRunTime, "job %s failed: %d/%d tasks", jobID, failNum, len(tasks))
	}
	if status == core.StatusCancelled {
		return errs.NewMsg(core.ErrCancelled, "job %s cancelled", jobID)
	}
	return nil
}

// runTaskRetry 带指数退避重试执行单个任务，维护任务行状态
func (o *Orchestrator) runTaskRetry(ctx context.Context, runID uuid.UUID, task *taskItem) *errs.Error {
	q, conn, err := orm.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	_ = q.SetTaskStatus(ctx, task.taskID, core.StatusRunning)
	attempt := 0
	err = utils.Retry(ctx, task.dataset+"/"+task.tsCode, utils.RetryOpt{
		MaxAttempts: ingestCfg().MaxRetries,
	}, func() *errs.Error {
		if attempt > 0 {
			_ = q.AddTaskRetry(ctx, task.taskID)
		}
		attempt += 1
		return o.runTask(ctx, q, task)
	})
	if err != nil {
		_ = q.CompleteTask(ctx, task.taskID, core.StatusFailed, 0, err.Short())
		_ = q.AddIngestError(ctx, runID, task.dataset, task.tsCode, err.Short(), nil)
		return err
	}
	return q.CompleteTask(ctx, task.taskID, core.StatusSucceeded, 100, "")
}

/*
Cancel 协作式取消运行中的作业。

进行中的上游请求允许完成，后续阶段在检查点处中止。
*/
func (o *Orchestrator) Cancel(ctx context.Context, jobID uuid.UUID) *errs.Error {
	o.lock.Lock()
	cancel, ok := o.cancels[jobID]
	o.lock.Unlock()
	if !ok {
		return errs.NewMsg(core.ErrJobNotFound, "job %s not running", jobID)
	}
	cancel()
	log.Info("job cancel requested", zap.String("job", jobID.String()))
	return nil
}

/*
Retry 对失败作业创建新作业，只包含failed状态的任务。

断点保存在ingestion_state，重试自然从上次成功处续传。
*/
func (o *Orchestrator) Retry(ctx context.Context, jobID uuid.UUID) (uuid.UUID, *errs.Error) {
	q, conn, err := orm.Conn(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		conn.Release()
		return uuid.Nil, err
	}
	if job.Status != core.StatusFailed {
		conn.Release()
		return uuid.Nil, errs.NewMsg(core.ErrBadJobState, "job %s is %s, only failed can retry", jobID, job.Status)
	}
	failed, err := q.ListTasks(ctx, jobID, core.StatusFailed)
	conn.Release()
	if err != nil {
		return uuid.Nil, err
	}
	if len(failed) == 0 {
		return uuid.Nil, errs.NewMsg(core.ErrBadJobState, "job %s has no failed tasks", jobID)
	}
	dataset := failed[0].Dataset
	var codes []string
	var start, end string
	for _, t := range failed {
		if t.TsCode != "" && t.TsCode != TaskAllCodes {
			codes = append(codes, t.TsCode)
		}
		if t.DateFrom != nil {
			start = t.DateFrom.Format(core.DateFmtDay)
		}
		if t.DateTo != nil {
			end = t.DateTo.Format(core.DateFmtDay)
		}
	}
	return o.RunJob(ctx, &JobArgs{
		Dataset: dataset, Mode: job.JobType, Codes: codes, Start: start, End: end,
	})
}

func parseDayPtr(day string) *time.Time {
	if day == "" {
		return nil
	}
	t, err := dayToTime(day)
	if err != nil {
		return nil
	}
	return &t
}
