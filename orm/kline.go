package orm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/jackc/pgx/v5"
)

var dailyTables = map[string]struct {
	table  string
	adjust string
}{
	core.DsKlineDailyRaw: {"market.kline_daily_raw", core.AdjNone},
	core.DsKlineDailyQfq: {"market.kline_daily_qfq", core.AdjFront},
	core.DsKlineDailyHfq: {"market.kline_daily_hfq", core.AdjBack},
}

const dailyInsConflict = `
ON CONFLICT (ts_code, trade_date)
DO UPDATE SET
open_li = EXCLUDED.open_li,
high_li = EXCLUDED.high_li,
low_li = EXCLUDED.low_li,
close_li = EXCLUDED.close_li,
volume_hand = EXCLUDED.volume_hand,
amount_li = EXCLUDED.amount_li`

/*
CheckDailyBar 校验OHLC一致性，非法bar不入库
*/
func CheckDailyBar(b *DailyBar) *errs.Error {
	if b.VolumeHand < 0 {
		return errs.NewMsg(core.ErrBadSourceResp, "%s %s negative volume", b.TsCode, b.TradeDate.Format("20060102"))
	}
	if b.HighLi < b.LowLi {
		return errs.NewMsg(core.ErrBadSourceResp, "%s %s high < low", b.TsCode, b.TradeDate.Format("20060102"))
	}
	if b.OpenLi > b.HighLi || b.OpenLi < b.LowLi || b.CloseLi > b.HighLi || b.CloseLi < b.LowLi {
		return errs.NewMsg(core.ErrBadSourceResp, "%s %s open/close out of range", b.TsCode, b.TradeDate.Format("20060102"))
	}
	if b.OpenLi <= 0 || b.CloseLi <= 0 {
		return errs.NewMsg(core.ErrBadSourceResp, "%s %s non-positive price", b.TsCode, b.TradeDate.Format("20060102"))
	}
	return nil
}

func dailyTable(dataset string) (string, string, *errs.Error) {
	ent, ok := dailyTables[dataset]
	if !ok {
		return "", "", errs.NewMsg(core.ErrBadConfig, "not a daily dataset: %s", dataset)
	}
	return ent.table, ent.adjust, nil
}

/*
UpsertDailyBars 批量写入日线，冲突时覆盖

先整批校验，非法行剔除；按批大小分片写入，单片失败时退化为逐行写入隔离出坏行。
返回新插入行数、覆盖行数和未能写入的行。
*/
func (q *Queries) UpsertDailyBars(ctx context.Context, dataset string, bars []*DailyBar) (int64, int64, []*DailyBar, *errs.Error) {
	table, adjust, err := dailyTable(dataset)
	if err != nil {
		return 0, 0, nil, err
	}
	var failed []*DailyBar
	valid := make([]*DailyBar, 0, len(bars))
	for _, b := range bars {
		if e := CheckDailyBar(b); e != nil {
			failed = append(failed, b)
			continue
		}
		valid = append(valid, b)
	}
	if len(valid) == 0 {
		return 0, 0, failed, nil
	}
	var ins, upd int64
	var lastErr *errs.Error
	for _, chunk := range batchRows(valid, 10) {
		ci, cu, err_ := q.execDailyBatch(ctx, table, adjust, chunk)
		if err_ == nil {
			ins += ci
			upd += cu
			continue
		}
		// 整批失败，逐行隔离
		for _, b := range chunk {
			bi, bu, e := q.execDailyBatch(ctx, table, adjust, []*DailyBar{b})
			if e != nil {
				failed = append(failed, b)
				lastErr = NewDbErr(core.ErrDbExecFail, e)
				continue
			}
			ins += bi
			upd += bu
		}
	}
	if ins+upd == 0 && lastErr != nil {
		return 0, 0, failed, lastErr
	}
	return ins, upd, failed, nil
}

// execDailyBatch 返回(新插入数, 覆盖数)；xmax=0表示该行是本次新插入
func (q *Queries) execDailyBatch(ctx context.Context, table, adjust string, bars []*DailyBar) (int64, int64, error) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (trade_date, ts_code, open_li, high_li, low_li, close_li, volume_hand, amount_li, adjust_type, source) VALUES ")
	args := make([]interface{}, 0, len(bars)*10)
	for i, bar := range bars {
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
		args = append(args, bar.TradeDate, bar.TsCode, bar.OpenLi, bar.HighLi, bar.LowLi,
			bar.CloseLi, bar.VolumeHand, bar.AmountLi, adjust, bar.Source)
	}
	b.WriteString(dailyInsConflict)
	b.WriteString(" RETURNING (xmax = 0)")
	return scanUpsertCounts(q.db.Query(ctx, b.String(), args...))
}

func scanUpsertCounts(rows pgx.Rows, err error) (int64, int64, error) {
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()
	var ins, upd int64
	for rows.Next() {
		var isNew bool
		if err = rows.Scan(&isNew); err != nil {
			return 0, 0, err
		}
		if isNew {
			ins++
		} else {
			upd++
		}
	}
	if err = rows.Err(); err != nil {
		return 0, 0, err
	}
	return ins, upd, nil
}

// iterDailyBars implements pgx.CopyFromSource.
type iterDailyBars struct {
	rows                 []*DailyBar
	adjust               string
	skippedFirstNextCall bool
}

func (r *iterDailyBars) Next() bool {
	if len(r.rows) == 0 {
		return false
	}
	if !r.skippedFirstNextCall {
		r.skippedFirstNextCall = true
		return true
	}
	r.rows = r.rows[1:]
	return len(r.rows) > 0
}

func (r *iterDailyBars) Values() ([]interface{}, error) {
	b := r.rows[0]
	return []interface{}{
		b.TradeDate, b.TsCode, b.OpenLi, b.HighLi, b.LowLi, b.CloseLi,
		b.VolumeHand, b.AmountLi, r.adjust, b.Source,
	}, nil
}

func (r *iterDailyBars) Err() error {
	return nil
}

/*
CopyDailyBars 初始导入用的批量插入，无冲突处理，比upsert快一个量级
*/
func (q *Queries) CopyDailyBars(ctx context.Context, dataset string, bars []*DailyBar) (int64, *errs.Error) {
	table, adjust, err := dailyTable(dataset)
	if err != nil {
		return 0, err
	}
	parts := strings.SplitN(table, ".", 2)
	cols := []string{"trade_date", "ts_code", "open_li", "high_li", "low_li", "close_li",
		"volume_hand", "amount_li", "adjust_type", "source"}
	num, err_ := q.db.CopyFrom(ctx, pgx.Identifier{parts[0], parts[1]}, cols, &iterDailyBars{rows: bars, adjust: adjust})
	if err_ != nil {
		return 0, NewDbErr(core.ErrDbExecFail, err_)
	}
	return num, nil
}

/*
QueryDailyBars 按标的和日期范围读取日线，升序
*/
func (q *Queries) QueryDailyBars(ctx context.Context, dataset, tsCode string, start, end time.Time) ([]*DailyBar, *errs.Error) {
	table, _, err := dailyTable(dataset)
	if err != nil {
		return nil, err
	}
	sqlStr := fmt.Sprintf(`SELECT trade_date, ts_code, open_li, high_li, low_li, close_li, volume_hand, amount_li, source
FROM %s WHERE ts_code=$1 AND trade_date >= $2 AND trade_date <= $3 ORDER BY trade_date`, table)
	rows, err_ := q.db.Query(ctx, sqlStr, tsCode, start, end)
	items, err_ := mapToItems(rows, err_, func() (*DailyBar, []any) {
		var it DailyBar
		return &it, []any{&it.TradeDate, &it.TsCode, &it.OpenLi, &it.HighLi, &it.LowLi,
			&it.CloseLi, &it.VolumeHand, &it.AmountLi, &it.Source}
	})
	if err_ != nil {
		return nil, NewDbErr(core.ErrDbReadFail, err_)
	}
	for _, it := range items {
		it.TsCode = strings.TrimSpace(it.TsCode)
	}
	return items, nil
}

/*
DelDailyBars 清空指定范围的日线，复权重建前调用
*/
func (q *Queries) DelDailyBars(ctx context.Context, dataset string, tsCodes []string, start, end time.Time) (int64, *errs.Error) {
	table, _, err := dailyTable(dataset)
	if err != nil {
		return 0, err
	}
	sqlStr := fmt.Sprintf("DELETE FROM %s WHERE trade_date BETWEEN $1 AND $2 AND ts_code = ANY($3)", table)
	tag, err_ := q.db.Exec(ctx, sqlStr, start, end, tsCodes)
	if err_ != nil {
		return 0, NewDbErr(core.ErrDbExecFail, err_)
	}
	return tag.RowsAffected(), nil
}

const minuteInsConflict = `
ON CONFLICT (ts_code, trade_time, freq)
DO UPDATE SET
open_li = EXCLUDED.open_li,
high_li = EXCLUDED.high_li,
low_li = EXCLUDED.low_li,
close_li = EXCLUDED.close_li,
volume_hand = EXCLUDED.volume_hand,
amount_li = EXCLUDED.amount_li`

func CheckMinuteBar(b *MinuteBar) *errs.Error {
	if b.VolumeHand < 0 {
		return errs.NewMsg(core.ErrBadSourceResp, "%s %s negative volume", b.TsCode, b.TradeTime)
	}
	if b.CloseLi <= 0 {
		return errs.NewMsg(core.ErrBadSourceResp, "%s %s non-positive close", b.TsCode, b.TradeTime)
	}
	if b.HighLi > 0 && b.LowLi > 0 && b.HighLi < b.LowLi {
		return errs.NewMsg(core.ErrBadSourceResp, "%s %s high < low", b.TsCode, b.TradeTime)
	}
	return nil
}

func (q *Queries) UpsertMinuteBars(ctx context.Context, bars []*MinuteBar) (int64, int64, []*MinuteBar, *errs.Error) {
	var failed []*MinuteBar
	valid := make([]*MinuteBar, 0, len(bars))
	for _, b := range bars {
		if e := CheckMinuteBar(b); e != nil {
			failed = append(failed, b)
			continue
		}
		if b.Freq == "" {
			b.Freq = "1m"
		}
		valid = append(valid, b)
	}
	if len(valid) == 0 {
		return 0, 0, failed, nil
	}
	var ins, upd int64
	var lastErr *errs.Error
	for _, chunk := range batchRows(valid, 11) {
		ci, cu, err_ := q.execMinuteBatch(ctx, chunk)
		if err_ == nil {
			ins += ci
			upd += cu
			continue
		}
		for _, b := range chunk {
			bi, bu, e := q.execMinuteBatch(ctx, []*MinuteBar{b})
			if e != nil {
				failed = append(failed, b)
				lastErr = NewDbErr(core.ErrDbExecFail, e)
				continue
			}
			ins += bi
			upd += bu
		}
	}
	if ins+upd == 0 && lastErr != nil {
		return 0, 0, failed, lastErr
	}
	return ins, upd, failed, nil
}

func (q *Queries) execMinuteBatch(ctx context.Context, bars []*MinuteBar) (int64, int64, error) {
	var b strings.Builder
	b.WriteString("INSERT INTO market.kline_minute_raw (trade_time, ts_code, freq, open_li, high_li, low_li, close_li, volume_hand, amount_li, adjust_type, source) VALUES ")
	args := make([]interface{}, 0, len(bars)*11)
	for i, bar := range bars {
		if i > 0 {
			b.WriteString(",")
		}
		pos := i * 11
		b.WriteString("(")
		for j := 1; j <= 11; j++ {
			if j > 1 {
				b.WriteString(",")
			}
			b.WriteString(fmt.Sprintf("$%d", pos+j))
		}
		b.WriteString(")")
		args = append(args, bar.TradeTime, bar.TsCode, bar.Freq, bar.OpenLi, bar.HighLi, bar.LowLi,
			bar.CloseLi, bar.VolumeHand, bar.AmountLi, core.AdjNone, bar.Source)
	}
	b.WriteString(minuteInsConflict)
	b.WriteString(" RETURNING (xmax = 0)")
	return scanUpsertCounts(q.db.Query(ctx, b.String(), args...))
}

/*
UpsertTicks 逐笔成交入库，全字段主键天然去重，冲突时跳过
*/
func (q *Queries) UpsertTicks(ctx context.Context, ticks []*TickTrade) (int64, *errs.Error) {
	var total int64
	for _, chunk := range batchRows(ticks, 6) {
		var b strings.Builder
		b.WriteString("INSERT INTO market.tick_trade_raw (trade_time, ts_code, price_li, volume_hand, status, source) VALUES ")
		args := make([]interface{}, 0, len(chunk)*6)
		for i, t := range chunk {
			if i > 0 {
				b.WriteString(",")
			}
			pos := i * 6
			b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)", pos+1, pos+2, pos+3, pos+4, pos+5, pos+6))
			src := t.Source
			if src == "" {
				src = core.SourceTdxApi
			}
			args = append(args, t.TradeTime, t.TsCode, t.PriceLi, t.VolumeHand, t.Status, src)
		}
		b.WriteString(" ON CONFLICT DO NOTHING")
		tag, err := q.db.Exec(ctx, b.String(), args...)
		if err != nil {
			return total, NewDbErr(core.ErrDbExecFail, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

/*
QueryTicks 按标的和时间范围读取逐笔成交，升序
*/
func (q *Queries) QueryTicks(ctx context.Context, tsCode string, start, end time.Time) ([]*TickTrade, *errs.Error) {
	rows, err_ := q.db.Query(ctx, `SELECT trade_time, ts_code, price_li, volume_hand, status, source
FROM market.tick_trade_raw WHERE ts_code=$1 AND trade_time >= $2 AND trade_time < $3 ORDER BY trade_time`,
		tsCode, start, end)
	items, err_ := mapToItems(rows, err_, func() (*TickTrade, []any) {
		var it TickTrade
		return &it, []any{&it.TradeTime, &it.TsCode, &it.PriceLi, &it.VolumeHand, &it.Status, &it.Source}
	})
	if err_ != nil {
		return nil, NewDbErr(core.ErrDbReadFail, err_)
	}
	for _, it := range items {
		it.TsCode = strings.TrimSpace(it.TsCode)
	}
	return items, nil
}

func (q *Queries) UpsertIndexDaily(ctx context.Context, bars []*IndexDailyBar) (int64, *errs.Error) {
	var total int64
	for _, chunk := range batchRows(bars, 11) {
		var b strings.Builder
		b.WriteString("INSERT INTO market.index_kline_daily_qfq (trade_date, code, open_li, high_li, low_li, close_li, volume_hand, amount_li, up_count, down_count, source) VALUES ")
		args := make([]interface{}, 0, len(chunk)*11)
		for i, bar := range chunk {
			if i > 0 {
				b.WriteString(",")
			}
			pos := i * 11
			b.WriteString("(")
			for j := 1; j <= 11; j++ {
				if j > 1 {
					b.WriteString(",")
				}
				b.WriteString(fmt.Sprintf("$%d", pos+j))
			}
			b.WriteString(")")
			args = append(args, bar.TradeDate, bar.Code, bar.OpenLi, bar.HighLi, bar.LowLi, bar.CloseLi,
				bar.VolumeHand, bar.AmountLi, bar.UpCount, bar.DownCount, bar.Source)
		}
		b.WriteString(` ON CONFLICT (code, trade_date) DO UPDATE SET
open_li=EXCLUDED.open_li, high_li=EXCLUDED.high_li, low_li=EXCLUDED.low_li, close_li=EXCLUDED.close_li,
volume_hand=EXCLUDED.volume_hand, amount_li=EXCLUDED.amount_li, up_count=EXCLUDED.up_count, down_count=EXCLUDED.down_count`)
		tag, err := q.db.Exec(ctx, b.String(), args...)
		if err != nil {
			return total, NewDbErr(core.ErrDbExecFail, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

func mapToItems[T any](rows pgx.Rows, err_ error, assign func() (T, []any)) ([]T, error) {
	if err_ != nil {
		return nil, err_
	}
	defer rows.Close()
	items := make([]T, 0)
	for rows.Next() {
		i, fields := assign()
		if err := rows.Scan(fields...); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
