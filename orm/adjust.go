package orm

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/aistock/tdxdata/utils"
)

func (q *Queries) UpsertAdjFactors(ctx context.Context, items []*AdjFactor) (int64, *errs.Error) {
	var total int64
	for _, chunk := range batchRows(items, 3) {
		var b strings.Builder
		b.WriteString("INSERT INTO market.adj_factor (trade_date, ts_code, factor, sync_at) VALUES ")
		args := make([]interface{}, 0, len(chunk)*3)
		for i, it := range chunk {
			if i > 0 {
				b.WriteString(",")
			}
			pos := i * 3
			b.WriteString(fmt.Sprintf("($%d,$%d,$%d,NOW())", pos+1, pos+2, pos+3))
			args = append(args, it.TradeDate, it.TsCode, it.Factor)
		}
		b.WriteString(" ON CONFLICT (ts_code, trade_date) DO UPDATE SET factor=EXCLUDED.factor, sync_at=NOW()")
		tag, err := q.db.Exec(ctx, b.String(), args...)
		if err != nil {
			return total, NewDbErr(core.ErrDbExecFail, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

func (q *Queries) QueryAdjFactors(ctx context.Context, tsCode string, start, end time.Time) ([]*AdjFactor, *errs.Error) {
	rows, err_ := q.db.Query(ctx, `SELECT trade_date, ts_code, factor, sync_at FROM market.adj_factor
WHERE ts_code=$1 AND trade_date >= $2 AND trade_date <= $3 ORDER BY trade_date`, tsCode, start, end)
	items, err_ := mapToItems(rows, err_, func() (*AdjFactor, []any) {
		var it AdjFactor
		return &it, []any{&it.TradeDate, &it.TsCode, &it.Factor, &it.SyncAt}
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
BuildAdjusted 由原始日线和复权因子计算前/后复权序列

因子按交易日对齐，缺失日沿用前值(再向前补齐)；前复权以最后一个因子为基准，
后复权以第一个为基准。只调整价格，量保持原始值。
*/
func BuildAdjusted(raw []*DailyBar, factors []*AdjFactor) (qfq []*DailyBar, hfq []*DailyBar) {
	if len(raw) == 0 {
		return nil, nil
	}
	factorByDay := make(map[string]float64, len(factors))
	for _, f := range factors {
		factorByDay[f.TradeDate.Format("20060102")] = f.Factor
	}
	aligned := make([]float64, len(raw))
	prev := math.NaN()
	for i, b := range raw {
		if v, ok := factorByDay[b.TradeDate.Format("20060102")]; ok {
			prev = v
		}
		aligned[i] = prev
	}
	// 序列头部缺失时向后找第一个有效值回填
	next := math.NaN()
	for i := len(aligned) - 1; i >= 0; i-- {
		if !math.IsNaN(aligned[i]) {
			next = aligned[i]
		} else {
			aligned[i] = next
		}
	}
	first, last := aligned[0], aligned[len(aligned)-1]
	if math.IsNaN(first) || math.IsNaN(last) {
		for i := range aligned {
			aligned[i] = 1.0
		}
		first, last = 1.0, 1.0
	}
	if last == 0 {
		last = 1.0
	}
	if first == 0 {
		first = 1.0
	}
	qfq = make([]*DailyBar, len(raw))
	hfq = make([]*DailyBar, len(raw))
	for i, b := range raw {
		qfq[i] = applyRatio(b, aligned[i]/last, core.SourceTushare)
		hfq[i] = applyRatio(b, aligned[i]/first, core.SourceTushare)
	}
	return qfq, hfq
}

func applyRatio(b *DailyBar, ratio float64, source string) *DailyBar {
	return &DailyBar{
		TsCode:     b.TsCode,
		TradeDate:  b.TradeDate,
		OpenLi:     int64(math.Round(float64(b.OpenLi) * ratio)),
		HighLi:     int64(math.Round(float64(b.HighLi) * ratio)),
		LowLi:      int64(math.Round(float64(b.LowLi) * ratio)),
		CloseLi:    int64(math.Round(float64(b.CloseLi) * ratio)),
		VolumeHand: b.VolumeHand,
		AmountLi:   b.AmountLi,
		Source:     source,
	}
}

/*
RebuildAdjusted 对单个标的重建复权日线

先清空目标表范围再写入，保证除权后历史整体被替换而不是残留旧值。
which取qfq/hfq/both。整个流程在事务中执行。
*/
func (q *Queries) RebuildAdjusted(ctx context.Context, tsCode, which string, start, end time.Time, factors []*AdjFactor) (int64, *errs.Error) {
	raw, err := q.QueryDailyBars(ctx, core.DsKlineDailyRaw, tsCode, start, end)
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return 0, nil
	}
	qfqBars, hfqBars := BuildAdjusted(raw, factors)
	tx, sess, err := q.NewTx(ctx)
	if err != nil {
		return 0, err
	}
	var inserted int64
	write := func(dataset string, bars []*DailyBar) *errs.Error {
		if _, e := sess.DelDailyBars(ctx, dataset, []string{tsCode}, start, end); e != nil {
			return e
		}
		ins, upd, failed, e := sess.UpsertDailyBars(ctx, dataset, bars)
		if e != nil {
			return e
		}
		if len(failed) > 0 {
			return errs.NewMsg(core.ErrBadSourceResp, "%s rebuild produced %d invalid bars", tsCode, len(failed))
		}
		inserted += ins + upd
		return nil
	}
	var wErr *errs.Error
	if which == core.AdjFront || which == "both" {
		wErr = write(core.DsKlineDailyQfq, qfqBars)
	}
	if wErr == nil && (which == core.AdjBack || which == "both") {
		wErr = write(core.DsKlineDailyHfq, hfqBars)
	}
	if wErr != nil {
		_ = tx.Close(ctx, false)
		return 0, wErr
	}
	if e := tx.Close(ctx, true); e != nil {
		return 0, e
	}
	return inserted, nil
}

/*
FactorChanged 对比库中最新因子和新拉取序列，判断是否需要整段重建

任何历史因子变化都要求重建：值被修正、历史日期被回溯补插、
库中已有日期在新序列中消失。仅末尾追加时走普通增量。
*/
func FactorChanged(olds, news []*AdjFactor) bool {
	oldMap := make(map[string]float64, len(olds))
	var maxOld string
	for _, f := range olds {
		day := f.TradeDate.Format("20060102")
		oldMap[day] = f.Factor
		if day > maxOld {
			maxOld = day
		}
	}
	newSet := make(map[string]bool, len(news))
	for _, f := range news {
		day := f.TradeDate.Format("20060102")
		newSet[day] = true
		if v, ok := oldMap[day]; ok {
			if !utils.EqualNearly(v, f.Factor) {
				return true
			}
		} else if day < maxOld {
			return true
		}
	}
	for day := range oldMap {
		if !newSet[day] {
			return true
		}
	}
	return false
}
