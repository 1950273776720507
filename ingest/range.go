package ingest

import (
	"context"
	"time"

	"github.com/aistock/tdxdata/btime"
	"github.com/aistock/tdxdata/config"
	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/aistock/tdxdata/orm"
)

// ingestCfg 配置未加载时返回空配置，各处取默认值
func ingestCfg() *config.IngestConfig {
	if config.Ingest != nil {
		return config.Ingest
	}
	return &config.IngestConfig{}
}

/*
resolveRange 计算任务的抓取日期范围，返回20060102格式。

优先级：显式参数 > 断点游标+1天 > 配置的默认起始日。
同时返回断点日期，供写入后CAS推进用。
*/
func resolveRange(ctx context.Context, q *orm.Queries, dataset, tsCode, argStart, argEnd string) (string, string, *time.Time, *errs.Error) {
	end := argEnd
	if end == "" {
		end = btime.TradeDate(btime.TimeMS())
	}
	state, err := q.GetState(ctx, dataset, tsCode)
	if err != nil {
		return "", "", nil, err
	}
	var prior *time.Time
	if state != nil {
		prior = state.LastSuccessDate
	}
	start := argStart
	if start == "" {
		if prior != nil {
			start = prior.AddDate(0, 0, 1).Format(core.DateFmtDay)
		} else {
			start = ingestCfg().DefaultStart
			if start == "" {
				start = "19901219"
			}
		}
	}
	return start, end, prior, nil
}

// sliceRange 将日期范围按天数切片，避免单次上游调用过大
func sliceRange(start, end string, sliceDays int) ([][2]string, *errs.Error) {
	if sliceDays <= 0 {
		sliceDays = 90
	}
	startMS, err := btime.CnDateMS(start)
	if err != nil {
		return nil, err
	}
	endMS, err := btime.CnDateMS(end)
	if err != nil {
		return nil, err
	}
	if startMS > endMS {
		return nil, nil
	}
	var res [][2]string
	cur := btime.MSToCnTime(startMS)
	endT := btime.MSToCnTime(endMS)
	for !cur.After(endT) {
		sliceEnd := cur.AddDate(0, 0, sliceDays-1)
		if sliceEnd.After(endT) {
			sliceEnd = endT
		}
		res = append(res, [2]string{cur.Format(core.DateFmtDay), sliceEnd.Format(core.DateFmtDay)})
		cur = sliceEnd.AddDate(0, 0, 1)
	}
	return res, nil
}

/*
tradingDays 列出范围内的交易日，日历未同步时退化为周一至周五。
*/
func tradingDays(ctx context.Context, q *orm.Queries, start, end string) ([]string, *errs.Error) {
	startMS, err := btime.CnDateMS(start)
	if err != nil {
		return nil, err
	}
	endMS, err := btime.CnDateMS(end)
	if err != nil {
		return nil, err
	}
	startT := btime.MSToCnTime(startMS)
	endT := btime.MSToCnTime(endMS)
	days, err := q.TradingDays(ctx, startT, endT)
	if err != nil {
		return nil, err
	}
	if len(days) > 0 {
		res := make([]string, 0, len(days))
		for _, day := range days {
			res = append(res, day.Format(core.DateFmtDay))
		}
		return res, nil
	}
	var res []string
	for cur := startT; !cur.After(endT); cur = cur.AddDate(0, 0, 1) {
		if wd := cur.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		res = append(res, cur.Format(core.DateFmtDay))
	}
	return res, nil
}

// dayToTime 20060102转为UTC日期，用于DATE列与断点
func dayToTime(day string) (time.Time, *errs.Error) {
	t, err_ := time.ParseInLocation(core.DateFmtDay, day, time.UTC)
	if err_ != nil {
		return time.Time{}, errs.New(core.ErrInvalidTF, err_)
	}
	return t, nil
}
