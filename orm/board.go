package orm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/jackc/pgx/v5"
)

func (q *Queries) UpsertBoardIndex(ctx context.Context, items []*BoardIndex) (int64, *errs.Error) {
	var total int64
	for _, chunk := range batchRows(items, 5) {
		var b strings.Builder
		b.WriteString("INSERT INTO market.tdx_board_index (trade_date, ts_code, name, idx_type, idx_count) VALUES ")
		args := make([]interface{}, 0, len(chunk)*5)
		for i, it := range chunk {
			if i > 0 {
				b.WriteString(",")
			}
			pos := i * 5
			b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d)", pos+1, pos+2, pos+3, pos+4, pos+5))
			args = append(args, it.TradeDate, it.TsCode, it.Name, it.IdxType, it.IdxCount)
		}
		b.WriteString(` ON CONFLICT (trade_date, ts_code) DO UPDATE SET
name=EXCLUDED.name, idx_type=EXCLUDED.idx_type, idx_count=EXCLUDED.idx_count`)
		tag, err := q.db.Exec(ctx, b.String(), args...)
		if err != nil {
			return total, NewDbErr(core.ErrDbExecFail, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

func (q *Queries) UpsertBoardMembers(ctx context.Context, items []*BoardMember) (int64, *errs.Error) {
	var total int64
	for _, chunk := range batchRows(items, 4) {
		var b strings.Builder
		b.WriteString("INSERT INTO market.tdx_board_member (trade_date, ts_code, con_code, con_name) VALUES ")
		args := make([]interface{}, 0, len(chunk)*4)
		for i, it := range chunk {
			if i > 0 {
				b.WriteString(",")
			}
			pos := i * 4
			b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d)", pos+1, pos+2, pos+3, pos+4))
			args = append(args, it.TradeDate, it.TsCode, it.ConCode, it.ConName)
		}
		b.WriteString(" ON CONFLICT (trade_date, ts_code, con_code) DO UPDATE SET con_name=EXCLUDED.con_name")
		tag, err := q.db.Exec(ctx, b.String(), args...)
		if err != nil {
			return total, NewDbErr(core.ErrDbExecFail, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

func (q *Queries) UpsertBoardDaily(ctx context.Context, items []*BoardDaily) (int64, *errs.Error) {
	var total int64
	for _, chunk := range batchRows(items, 11) {
		var b strings.Builder
		b.WriteString("INSERT INTO market.tdx_board_daily (trade_date, ts_code, open, high, low, close, pre_close, change, pct_chg, vol, amount) VALUES ")
		args := make([]interface{}, 0, len(chunk)*11)
		for i, it := range chunk {
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
			args = append(args, it.TradeDate, it.TsCode, it.Open, it.High, it.Low, it.Close,
				it.PreClose, it.Change, it.PctChg, it.Vol, it.Amount)
		}
		b.WriteString(` ON CONFLICT (trade_date, ts_code) DO UPDATE SET
open=EXCLUDED.open, high=EXCLUDED.high, low=EXCLUDED.low, close=EXCLUDED.close,
pre_close=EXCLUDED.pre_close, change=EXCLUDED.change, pct_chg=EXCLUDED.pct_chg,
vol=EXCLUDED.vol, amount=EXCLUDED.amount`)
		tag, err := q.db.Exec(ctx, b.String(), args...)
		if err != nil {
			return total, NewDbErr(core.ErrDbExecFail, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

func (q *Queries) UpsertCalendar(ctx context.Context, items []*CalDate) (int64, *errs.Error) {
	var total int64
	for _, chunk := range batchRows(items, 2) {
		var b strings.Builder
		b.WriteString("INSERT INTO market.trading_calendar (cal_date, is_trading) VALUES ")
		args := make([]interface{}, 0, len(chunk)*2)
		for i, it := range chunk {
			if i > 0 {
				b.WriteString(",")
			}
			pos := i * 2
			b.WriteString(fmt.Sprintf("($%d,$%d)", pos+1, pos+2))
			args = append(args, it.CalDate, it.IsTrading)
		}
		b.WriteString(" ON CONFLICT (cal_date) DO UPDATE SET is_trading=EXCLUDED.is_trading")
		tag, err := q.db.Exec(ctx, b.String(), args...)
		if err != nil {
			return total, NewDbErr(core.ErrDbExecFail, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

/*
TradingDays 查询区间内的交易日，升序
*/
func (q *Queries) TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, *errs.Error) {
	rows, err_ := q.db.Query(ctx, `SELECT cal_date FROM market.trading_calendar
WHERE cal_date >= $1 AND cal_date <= $2 AND is_trading ORDER BY cal_date`, start, end)
	items, err_ := mapToItems(rows, err_, func() (*time.Time, []any) {
		var t time.Time
		return &t, []any{&t}
	})
	if err_ != nil {
		return nil, NewDbErr(core.ErrDbReadFail, err_)
	}
	res := make([]time.Time, len(items))
	for i, t := range items {
		res[i] = *t
	}
	return res, nil
}

func (q *Queries) IsTradingDay(ctx context.Context, day time.Time) (bool, *errs.Error) {
	row := q.db.QueryRow(ctx, "SELECT is_trading FROM market.trading_calendar WHERE cal_date=$1", day)
	var trading bool
	err := row.Scan(&trading)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// 日历未同步时按周一到周五处理
			wd := day.Weekday()
			return wd != time.Saturday && wd != time.Sunday, nil
		}
		return false, NewDbErr(core.ErrDbReadFail, err)
	}
	return trading, nil
}
