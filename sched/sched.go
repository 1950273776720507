package sched

import (
	"context"
	"time"

	"github.com/aistock/tdxdata/btime"
	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/aistock/tdxdata/ingest"
	"github.com/aistock/tdxdata/log"
	"github.com/aistock/tdxdata/orm"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// 周期检查间隔
const tickInterval = 30 * time.Second

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

/*
Scheduler 调度循环，到点的启用条目经编排器创建作业。

到期判断只看next_run_at，时间计算集中在NextRun一处。
*/
type Scheduler struct {
	orc *ingest.Orchestrator
}

func New(orc *ingest.Orchestrator) *Scheduler {
	return &Scheduler{orc: orc}
}

/*
NextRun 按cron表达式计算after之后的下次触发时间，上海时区。
*/
func NextRun(frequency string, after time.Time) (time.Time, *errs.Error) {
	schedule, err_ := cronParser.Parse(frequency)
	if err_ != nil {
		return time.Time{}, errs.NewFull(errs.CodeParamInvalid, err_, "bad cron: %s", frequency)
	}
	return schedule.Next(after.In(btime.LocShanghai)), nil
}

/*
Add 注册或更新调度条目，同dataset+mode只保留一条。
*/
func (s *Scheduler) Add(ctx context.Context, dataset, mode, frequency string, enabled bool,
	options map[string]interface{}) (uuid.UUID, *errs.Error) {
	next, err := NextRun(frequency, btime.MSToCnTime(btime.TimeMS()))
	if err != nil {
		return uuid.Nil, err
	}
	q, conn, err := orm.Conn(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer conn.Release()
	return q.CreateSchedule(ctx, &orm.IngestSchedule{
		Dataset: dataset, Mode: mode, Frequency: frequency,
		Enabled: enabled, Options: options, NextRunAt: &next,
	})
}

/*
Run 调度主循环，阻塞直到ctx取消。
*/
func (s *Scheduler) Run(ctx context.Context) *errs.Error {
	log.Info("scheduler started")
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				log.Warn("scheduler tick fail", zap.String("err", err.Short()))
			}
		}
	}
}

// tick 检查全部启用条目，逐个触发已到期的
func (s *Scheduler) tick(ctx context.Context) *errs.Error {
	q, conn, err := orm.Conn(ctx)
	if err != nil {
		return err
	}
	items, err := q.ListSchedules(ctx, true)
	conn.Release()
	if err != nil {
		return err
	}
	now := btime.MSToCnTime(btime.TimeMS())
	for _, sch := range items {
		if ctx.Err() != nil {
			return nil
		}
		if sch.NextRunAt == nil || sch.NextRunAt.After(now) {
			continue
		}
		s.fire(ctx, sch)
	}
	return nil
}

/*
Trigger 手动立即执行一个条目，绕过到期检查但仍走编排器路径。
*/
func (s *Scheduler) Trigger(ctx context.Context, id uuid.UUID) *errs.Error {
	q, conn, err := orm.Conn(ctx)
	if err != nil {
		return err
	}
	sch, err := q.GetSchedule(ctx, id)
	conn.Release()
	if err != nil {
		return err
	}
	go s.fire(core.Ctx, sch)
	return nil
}

// fire 执行一个条目并回写结果与下次触发时间
func (s *Scheduler) fire(ctx context.Context, sch *orm.IngestSchedule) {
	log.Info("schedule fire", zap.String("dataset", sch.Dataset), zap.String("mode", sch.Mode))
	args := &ingest.JobArgs{Dataset: sch.Dataset, Mode: sch.Mode}
	if sch.Options != nil {
		if v, ok := sch.Options["start"].(string); ok {
			args.Start = v
		}
		if v, ok := sch.Options["end"].(string); ok {
			args.End = v
		}
		if v, ok := sch.Options["codes"].([]interface{}); ok {
			for _, c := range v {
				if code, ok := c.(string); ok {
					args.Codes = append(args.Codes, code)
				}
			}
		}
	}
	_, err := s.orc.RunJob(ctx, args)
	now := btime.MSToCnTime(btime.TimeMS())
	sch.LastRunAt = &now
	sch.LastStatus = core.StatusSucceeded
	sch.LastError = ""
	if err != nil {
		sch.LastStatus = core.StatusFailed
		sch.LastError = err.Short()
	}
	if next, err2 := NextRun(sch.Frequency, now); err2 == nil {
		sch.NextRunAt = &next
	} else {
		log.Warn("bad schedule frequency", zap.String("dataset", sch.Dataset),
			zap.String("freq", sch.Frequency))
		sch.NextRunAt = nil
	}
	q, conn, err := orm.Conn(ctx)
	if err != nil {
		log.Warn("schedule mark fail", zap.String("err", err.Short()))
		return
	}
	defer conn.Release()
	if err = q.MarkScheduleRun(ctx, sch); err != nil {
		log.Warn("schedule mark fail", zap.String("err", err.Short()))
	}
}
