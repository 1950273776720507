package orm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aistock/tdxdata/btime"
	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/aistock/tdxdata/utils"
)

/*
PeriodBar 周期聚合结果，EndDate为周期内最后一个交易日
*/
type PeriodBar struct {
	TsCode     string
	EndDate    time.Time
	OpenLi     int64
	HighLi     int64
	LowLi      int64
	CloseLi    int64
	VolumeHand int64
	AmountLi   int64
	Source     string
}

/*
BuildPeriodBars 由日线聚合周线或月线

period取1w或1M，按上海时区日历分桶；open取桶内首日开盘，close取末日收盘,
high/low取极值，volume/amount求和。键使用桶内最后交易日而非对齐起点。
*/
func BuildPeriodBars(bars []*DailyBar, period string) ([]*PeriodBar, *errs.Error) {
	tfMSecs := utils.TFToMSecs(period)
	if tfMSecs == 0 || (period != "1w" && period != "1M") {
		return nil, errs.NewMsg(core.ErrInvalidTF, "unsupported period: %s", period)
	}
	var res []*PeriodBar
	var cur *PeriodBar
	var curBucket int64
	for _, b := range bars {
		dayMS := time.Date(b.TradeDate.Year(), b.TradeDate.Month(), b.TradeDate.Day(),
			0, 0, 0, 0, btime.LocShanghai).UnixMilli()
		bucket := utils.AlignTfMSecs(dayMS, tfMSecs)
		if cur == nil || bucket != curBucket {
			if cur != nil {
				res = append(res, cur)
			}
			cur = &PeriodBar{
				TsCode: b.TsCode, EndDate: b.TradeDate,
				OpenLi: b.OpenLi, HighLi: b.HighLi, LowLi: b.LowLi, CloseLi: b.CloseLi,
				VolumeHand: b.VolumeHand, AmountLi: b.AmountLi, Source: b.Source,
			}
			curBucket = bucket
			continue
		}
		cur.EndDate = b.TradeDate
		cur.CloseLi = b.CloseLi
		if b.HighLi > cur.HighLi {
			cur.HighLi = b.HighLi
		}
		if b.LowLi < cur.LowLi {
			cur.LowLi = b.LowLi
		}
		cur.VolumeHand += b.VolumeHand
		cur.AmountLi += b.AmountLi
	}
	if cur != nil {
		res = append(res, cur)
	}
	return res, nil
}

var caggViews = map[string]string{
	"5m":  "market.kline_5m",
	"15m": "market.kline_15m",
	"60m": "market.kline_60m",
}

/*
RefreshCagg 手动刷新连续聚合视图，回补历史分钟线后调用

刷新策略只覆盖近期窗口，老数据需要显式刷。不能在事务内执行。
*/
func (q *Queries) RefreshCagg(ctx context.Context, period string, start, end time.Time) *errs.Error {
	view, ok := caggViews[period]
	if !ok {
		return errs.NewMsg(core.ErrInvalidTF, "no aggregate view for: %s", period)
	}
	_, err := q.db.Exec(ctx, fmt.Sprintf("CALL refresh_continuous_aggregate('%s', $1, $2)", view), start, end)
	if err != nil {
		return NewDbErr(core.ErrDbExecFail, err)
	}
	return nil
}

var periodTables = map[string]struct {
	table   string
	dateCol string
}{
	"1w": {"market.kline_weekly_qfq", "week_end_date"},
	"1M": {"market.kline_monthly_qfq", "month_end_date"},
}

func (q *Queries) UpsertPeriodBars(ctx context.Context, period string, bars []*PeriodBar) (int64, *errs.Error) {
	ent, ok := periodTables[period]
	if !ok {
		return 0, errs.NewMsg(core.ErrInvalidTF, "unsupported period: %s", period)
	}
	var total int64
	for _, chunk := range batchRows(bars, 10) {
		var b strings.Builder
		b.WriteString(fmt.Sprintf("INSERT INTO %s (%s, ts_code, open_li, high_li, low_li, close_li, volume_hand, amount_li, adjust_type, source) VALUES ",
			ent.table, ent.dateCol))
		args := make([]interface{}, 0, len(chunk)*10)
		for i, bar := range chunk {
			if i > 0 {
				b.WriteString(",")
			}
			pos := i * 10
			b.WriteString("(")
			for j := 1; j <= 10; j++ {
				if j > 1 {
					b.WriteString(",")
				}
				b.WriteString(fmt.Sprintf("$%d", pos+j))
			}
			b.WriteString(")")
			args = append(args, bar.EndDate, bar.TsCode, bar.OpenLi, bar.HighLi, bar.LowLi,
				bar.CloseLi, bar.VolumeHand, bar.AmountLi, core.AdjFront, bar.Source)
		}
		b.WriteString(fmt.Sprintf(` ON CONFLICT (ts_code, %s) DO UPDATE SET
open_li=EXCLUDED.open_li, high_li=EXCLUDED.high_li, low_li=EXCLUDED.low_li, close_li=EXCLUDED.close_li,
volume_hand=EXCLUDED.volume_hand, amount_li=EXCLUDED.amount_li`, ent.dateCol))
		tag, err := q.db.Exec(ctx, b.String(), args...)
		if err != nil {
			return total, NewDbErr(core.ErrDbExecFail, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

/*
DelPeriodBars 删除周期桶被部分覆盖的旧bar，重建时避免残留错误的末桶
*/
func (q *Queries) DelPeriodBars(ctx context.Context, period, tsCode string, start, end time.Time) (int64, *errs.Error) {
	ent, ok := periodTables[period]
	if !ok {
		return 0, errs.NewMsg(core.ErrInvalidTF, "unsupported period: %s", period)
	}
	sqlStr := fmt.Sprintf("DELETE FROM %s WHERE ts_code=$1 AND %s BETWEEN $2 AND $3", ent.table, ent.dateCol)
	tag, err := q.db.Exec(ctx, sqlStr, tsCode, start, end)
	if err != nil {
		return 0, NewDbErr(core.ErrDbExecFail, err)
	}
	return tag.RowsAffected(), nil
}

/*
RebuildPeriod 从日线前复权表重建单标的的周线或月线
*/
func (q *Queries) RebuildPeriod(ctx context.Context, tsCode, period string, start, end time.Time) (int64, *errs.Error) {
	daily, err := q.QueryDailyBars(ctx, core.DsKlineDailyQfq, tsCode, start, end)
	if err != nil {
		return 0, err
	}
	if len(daily) == 0 {
		return 0, nil
	}
	bars, err := BuildPeriodBars(daily, period)
	if err != nil {
		return 0, err
	}
	tx, sess, err := q.NewTx(ctx)
	if err != nil {
		return 0, err
	}
	if _, e := sess.DelPeriodBars(ctx, period, tsCode, start, end); e != nil {
		_ = tx.Close(ctx, false)
		return 0, e
	}
	num, e := sess.UpsertPeriodBars(ctx, period, bars)
	if e != nil {
		_ = tx.Close(ctx, false)
		return 0, e
	}
	if e = tx.Close(ctx, true); e != nil {
		return 0, e
	}
	return num, nil
}
