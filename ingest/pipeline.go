package ingest

import (
	"context"
	"time"

	"github.com/aistock/tdxdata/btime"
	"github.com/aistock/tdxdata/config"
	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/aistock/tdxdata/log"
	"github.com/aistock/tdxdata/orm"
	"go.uber.org/zap"
)

/*
runTask 执行单个任务的 抓取→规范化→写入→推进断点 流水线。

断点推进严格在数据落库之后，崩溃后重跑最多重复写入，
幂等upsert保证结果一致。
*/
func (o *Orchestrator) runTask(ctx context.Context, q *orm.Queries, task *taskItem) *errs.Error {
	if ctx.Err() != nil {
		return errs.New(core.ErrCancelled, ctx.Err())
	}
	switch task.dataset {
	case core.DsKlineDailyRaw, core.DsKlineDailyQfq, core.DsKlineDailyHfq:
		return o.runDaily(ctx, q, task)
	case core.DsKlineWeekly:
		return o.runPeriod(ctx, q, task, "1w")
	case core.DsKlineMonthly:
		return o.runPeriod(ctx, q, task, "1M")
	case core.DsKlineMinuteRaw:
		return o.runMinute(ctx, q, task)
	case core.DsTickTradeRaw:
		return o.runTicks(ctx, q, task)
	case core.DsSymbolDim:
		return o.runSymbols(ctx, q, task)
	case core.DsAdjFactor:
		return o.runAdjFactor(ctx, q, task)
	case core.DsAdjustDaily:
		return o.runAdjustDaily(ctx, q, task)
	case core.DsTdxBoard:
		return o.runBoards(ctx, q, task)
	case core.DsTradeCal:
		return o.runCalendar(ctx, q, task)
	}
	return errs.NewMsg(errs.CodeNotSupport, "dataset %s has no pipeline", task.dataset)
}

// taskRange force时忽略断点，从显式起点或默认起点重抓
func taskRange(ctx context.Context, q *orm.Queries, task *taskItem) (string, string, *time.Time, *errs.Error) {
	start, end, prior, err := resolveRange(ctx, q, task.dataset, task.tsCode, task.start, task.end)
	if err != nil {
		return "", "", nil, err
	}
	if task.force {
		if task.start != "" {
			start = task.start
		} else {
			start = "19901219"
		}
		prior = nil
		if _, err = q.ResetState(ctx, task.dataset, []string{task.tsCode}); err != nil {
			return "", "", nil, err
		}
	}
	return start, end, prior, nil
}

func (o *Orchestrator) runDaily(ctx context.Context, q *orm.Queries, task *taskItem) *errs.Error {
	start, end, prior, err := taskRange(ctx, q, task)
	if err != nil {
		return err
	}
	if start > end {
		return nil
	}
	adjust := ""
	switch task.dataset {
	case core.DsKlineDailyQfq:
		adjust = core.AdjFront
	case core.DsKlineDailyHfq:
		adjust = core.AdjBack
	}
	var bars []*orm.DailyBar
	if task.mode == core.ModeInit && task.dataset != core.DsKlineDailyHfq {
		// 初始化优先走全量接口，一次拿全历史
		bars, err = o.tdx.FetchDailyAll(ctx, task.tsCode, start, end)
		if err != nil && !core.IsTransient(err.Code) {
			log.Info("bulk fetch unavailable, fall back to ranged",
				zap.String("code", task.tsCode), zap.String("err", err.Short()))
			err = nil
			bars = nil
		} else if err != nil {
			return err
		}
	}
	if len(bars) == 0 {
		slices, err2 := sliceRange(start, end, sliceDaysCfg())
		if err2 != nil {
			return err2
		}
		for _, sl := range slices {
			if ctx.Err() != nil {
				return errs.New(core.ErrCancelled, ctx.Err())
			}
			part, err2 := o.tdx.FetchDaily(ctx, task.tsCode, adjust, sl[0], sl[1])
			if err2 != nil {
				return err2
			}
			bars = append(bars, part...)
		}
	}
	if len(bars) == 0 {
		return nil
	}
	ins, upd, failed, err := q.UpsertDailyBars(ctx, task.dataset, bars)
	if err != nil {
		return err
	}
	task.ins += ins
	task.upd += upd
	task.rej += int64(len(failed))
	if len(failed) > 0 {
		log.Warn("invalid bars skipped", zap.String("dataset", task.dataset),
			zap.String("code", task.tsCode), zap.Int("num", len(failed)))
	}
	last := bars[len(bars)-1].TradeDate
	log.Debug("daily written", zap.String("code", task.tsCode), zap.Int64("rows", ins+upd))
	return q.AdvanceState(ctx, task.dataset, task.tsCode, prior, last, nil, nil)
}

// runPeriod 从前复权日线重建周线或月线
func (o *Orchestrator) runPeriod(ctx context.Context, q *orm.Queries, task *taskItem, period string) *errs.Error {
	start, end, prior, err := taskRange(ctx, q, task)
	if err != nil {
		return err
	}
	if start > end {
		return nil
	}
	// 周期桶跨越断点，起点回退到桶边界之前保证首个桶完整
	startT, err := dayToTime(start)
	if err != nil {
		return err
	}
	if prior != nil {
		startT = startT.AddDate(0, 0, -31)
	}
	endT, err := dayToTime(end)
	if err != nil {
		return err
	}
	num, err := q.RebuildPeriod(ctx, task.tsCode, period, startT, endT)
	if err != nil {
		return err
	}
	task.ins += num
	log.Debug("period rebuilt", zap.String("code", task.tsCode),
		zap.String("period", period), zap.Int64("rows", num))
	return q.AdvanceState(ctx, task.dataset, task.tsCode, prior, endT, nil, nil)
}

func (o *Orchestrator) runMinute(ctx context.Context, q *orm.Queries, task *taskItem) *errs.Error {
	start, end, prior, err := taskRange(ctx, q, task)
	if err != nil {
		return err
	}
	days, err := tradingDays(ctx, q, start, end)
	if err != nil {
		return err
	}
	for _, day := range days {
		if ctx.Err() != nil {
			return errs.New(core.ErrCancelled, ctx.Err())
		}
		bars, err := o.tdx.FetchMinute(ctx, task.tsCode, day)
		if err != nil {
			return err
		}
		if len(bars) == 0 {
			// 分钟接口历史深度有限，逐笔已入库时从逐笔聚合回补
			bars, err = tickMinuteBars(ctx, q, task.tsCode, day)
			if err != nil {
				return err
			}
		}
		if len(bars) == 0 {
			continue
		}
		ins, upd, failed, err := q.UpsertMinuteBars(ctx, bars)
		if err != nil {
			return err
		}
		task.ins += ins
		task.upd += upd
		task.rej += int64(len(failed))
		if len(failed) > 0 {
			log.Warn("invalid minute bars skipped", zap.String("code", task.tsCode),
				zap.String("day", day), zap.Int("num", len(failed)))
		}
		dayT, err := dayToTime(day)
		if err != nil {
			return err
		}
		lastTime := bars[len(bars)-1].TradeTime
		if err = q.AdvanceState(ctx, task.dataset, task.tsCode, prior, dayT, &lastTime, nil); err != nil {
			return err
		}
		prior = &dayT
	}
	return nil
}

func (o *Orchestrator) runTicks(ctx context.Context, q *orm.Queries, task *taskItem) *errs.Error {
	start, end, prior, err := taskRange(ctx, q, task)
	if err != nil {
		return err
	}
	days, err := tradingDays(ctx, q, start, end)
	if err != nil {
		return err
	}
	for _, day := range days {
		if ctx.Err() != nil {
			return errs.New(core.ErrCancelled, ctx.Err())
		}
		ticks, err := o.tdx.FetchTicks(ctx, task.tsCode, day)
		if err != nil {
			return err
		}
		if len(ticks) == 0 {
			continue
		}
		num, err := q.UpsertTicks(ctx, ticks)
		if err != nil {
			return err
		}
		task.ins += num
		dayT, err := dayToTime(day)
		if err != nil {
			return err
		}
		if err = q.AdvanceState(ctx, task.dataset, task.tsCode, prior, dayT, nil, nil); err != nil {
			return err
		}
		prior = &dayT
	}
	return nil
}

func (o *Orchestrator) runSymbols(ctx context.Context, q *orm.Queries, task *taskItem) *errs.Error {
	_, _, prior, err := taskRange(ctx, q, task)
	if err != nil {
		return err
	}
	items, err := o.tdx.FetchCodes(ctx, "")
	if err != nil {
		return err
	}
	num, err := q.UpsertSymbols(ctx, items)
	if err != nil {
		return err
	}
	task.ins += num
	log.Info("symbols refreshed", zap.Int64("rows", num))
	today, err := dayToTime(btime.TradeDate(btime.TimeMS()))
	if err != nil {
		return err
	}
	return q.AdvanceState(ctx, task.dataset, TaskAllCodes, prior, today, nil,
		map[string]interface{}{"total": len(items)})
}

func (o *Orchestrator) runAdjFactor(ctx context.Context, q *orm.Queries, task *taskItem) *errs.Error {
	client, err := o.tushareClient()
	if err != nil {
		return err
	}
	start, end, prior, err := taskRange(ctx, q, task)
	if err != nil {
		return err
	}
	if start > end {
		return nil
	}
	factors, err := client.FetchAdjFactors(ctx, task.tsCode, start, end)
	if err != nil {
		return err
	}
	if len(factors) == 0 {
		return nil
	}
	num, err := q.UpsertAdjFactors(ctx, factors)
	if err != nil {
		return err
	}
	task.ins += num
	last := factors[0].TradeDate
	for _, f := range factors {
		if f.TradeDate.After(last) {
			last = f.TradeDate
		}
	}
	return q.AdvanceState(ctx, task.dataset, task.tsCode, prior, last, nil, nil)
}

/*
runAdjustDaily 复权重建：拉全量因子，与库中对比，历史因子有变化
或force时对整段历史重建，否则只重建断点之后的区间。
*/
func (o *Orchestrator) runAdjustDaily(ctx context.Context, q *orm.Queries, task *taskItem) *errs.Error {
	client, err := o.tushareClient()
	if err != nil {
		return err
	}
	start, end, prior, err := taskRange(ctx, q, task)
	if err != nil {
		return err
	}
	factors, err := client.FetchAdjFactors(ctx, task.tsCode, "", "")
	if err != nil {
		return err
	}
	histStart, err := dayToTime("19901219")
	if err != nil {
		return err
	}
	endT, err := dayToTime(end)
	if err != nil {
		return err
	}
	olds, err := q.QueryAdjFactors(ctx, task.tsCode, histStart, endT)
	if err != nil {
		return err
	}
	if _, err = q.UpsertAdjFactors(ctx, factors); err != nil {
		return err
	}
	fromT := histStart
	if prior != nil && !task.force && !orm.FactorChanged(olds, factors) {
		fromT, err = dayToTime(start)
		if err != nil {
			return err
		}
	} else if prior != nil {
		log.Info("adj factor history changed, full rebuild", zap.String("code", task.tsCode))
	}
	num, err := q.RebuildAdjusted(ctx, task.tsCode, "both", fromT, endT, factors)
	if err != nil {
		return err
	}
	task.ins += num
	log.Debug("adjusted rebuilt", zap.String("code", task.tsCode), zap.Int64("rows", num))
	return q.AdvanceState(ctx, task.dataset, task.tsCode, prior, endT, nil, nil)
}

func (o *Orchestrator) runBoards(ctx context.Context, q *orm.Queries, task *taskItem) *errs.Error {
	client, err := o.tushareClient()
	if err != nil {
		return err
	}
	start, end, prior, err := taskRange(ctx, q, task)
	if err != nil {
		return err
	}
	days, err := tradingDays(ctx, q, start, end)
	if err != nil {
		return err
	}
	for _, day := range days {
		if ctx.Err() != nil {
			return errs.New(core.ErrCancelled, ctx.Err())
		}
		boards, err := client.FetchBoardIndex(ctx, day)
		if err != nil {
			return err
		}
		if len(boards) == 0 {
			continue
		}
		num, err := q.UpsertBoardIndex(ctx, boards)
		if err != nil {
			return err
		}
		task.ins += num
		for _, board := range boards {
			members, err := client.FetchBoardMembers(ctx, day, board.TsCode)
			if err != nil {
				return err
			}
			if len(members) == 0 {
				continue
			}
			num, err := q.UpsertBoardMembers(ctx, members)
			if err != nil {
				return err
			}
			task.ins += num
		}
		daily, err := client.FetchBoardDaily(ctx, day)
		if err != nil {
			return err
		}
		if len(daily) > 0 {
			num, err := q.UpsertBoardDaily(ctx, daily)
			if err != nil {
				return err
			}
			task.ins += num
		}
		dayT, err := dayToTime(day)
		if err != nil {
			return err
		}
		if err = q.AdvanceState(ctx, task.dataset, TaskAllCodes, prior, dayT, nil, nil); err != nil {
			return err
		}
		prior = &dayT
	}
	return nil
}

func (o *Orchestrator) runCalendar(ctx context.Context, q *orm.Queries, task *taskItem) *errs.Error {
	client, err := o.tushareClient()
	if err != nil {
		return err
	}
	start, end, prior, err := taskRange(ctx, q, task)
	if err != nil {
		return err
	}
	// 日历顺带拉到明年末，调度器查询未来交易日不会落空
	endT, err := dayToTime(end)
	if err != nil {
		return err
	}
	extEnd := time.Date(endT.Year()+1, 12, 31, 0, 0, 0, 0, time.UTC)
	items, err := client.FetchTradeCal(ctx, "SSE", start, extEnd.Format(core.DateFmtDay))
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	num, err := q.UpsertCalendar(ctx, items)
	if err != nil {
		return err
	}
	task.ins += num
	return q.AdvanceState(ctx, task.dataset, TaskAllCodes, prior, endT, nil, nil)
}

func sliceDaysCfg() int {
	if config.Ingest != nil && config.Ingest.SliceDays > 0 {
		return config.Ingest.SliceDays
	}
	return 90
}
