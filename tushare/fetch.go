package tushare

import (
	"context"
	"time"

	"github.com/aistock/tdxdata/btime"
	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/aistock/tdxdata/orm"
)

/*
FetchAdjFactors 拉取单只股票的复权因子，start/end格式20060102。
*/
func (c *Client) FetchAdjFactors(ctx context.Context, tsCode, start, end string) ([]*orm.AdjFactor, *errs.Error) {
	params := map[string]interface{}{"ts_code": tsCode}
	if start != "" {
		params["start_date"] = start
	}
	if end != "" {
		params["end_date"] = end
	}
	colIdx, rows, err := c.Query(ctx, "adj_factor", params, "ts_code,trade_date,adj_factor")
	if err != nil {
		return nil, err
	}
	items := make([]*orm.AdjFactor, 0, len(rows))
	for _, row := range rows {
		tradeDate, err2 := parseDay(colStr(colIdx, row, "trade_date"))
		if err2 != nil {
			return nil, err2
		}
		items = append(items, &orm.AdjFactor{
			TsCode:    tsCode,
			TradeDate: tradeDate,
			Factor:    colFloat(colIdx, row, "adj_factor"),
		})
	}
	return items, nil
}

/*
FetchTradeCal 拉取交易日历，exchange默认SSE。
*/
func (c *Client) FetchTradeCal(ctx context.Context, exchange, start, end string) ([]*orm.CalDate, *errs.Error) {
	if exchange == "" {
		exchange = "SSE"
	}
	params := map[string]interface{}{"exchange": exchange, "start_date": start, "end_date": end}
	colIdx, rows, err := c.Query(ctx, "trade_cal", params, "cal_date,is_open")
	if err != nil {
		return nil, err
	}
	items := make([]*orm.CalDate, 0, len(rows))
	for _, row := range rows {
		day, err2 := parseDay(colStr(colIdx, row, "cal_date"))
		if err2 != nil {
			return nil, err2
		}
		items = append(items, &orm.CalDate{
			CalDate:   day,
			IsTrading: colFloat(colIdx, row, "is_open") > 0,
		})
	}
	return items, nil
}

/*
FetchBoardIndex 拉取某交易日的通达信板块基础信息。
*/
func (c *Client) FetchBoardIndex(ctx context.Context, tradeDate string) ([]*orm.BoardIndex, *errs.Error) {
	day, err := parseDay(tradeDate)
	if err != nil {
		return nil, err
	}
	params := map[string]interface{}{"trade_date": tradeDate}
	colIdx, rows, err := c.Query(ctx, "tdx_index", params, "ts_code,name,idx_type,idx_count")
	if err != nil {
		return nil, err
	}
	items := make([]*orm.BoardIndex, 0, len(rows))
	for _, row := range rows {
		items = append(items, &orm.BoardIndex{
			TradeDate: day,
			TsCode:    colStr(colIdx, row, "ts_code"),
			Name:      colStr(colIdx, row, "name"),
			IdxType:   colStr(colIdx, row, "idx_type"),
			IdxCount:  int32(colFloat(colIdx, row, "idx_count")),
		})
	}
	return items, nil
}

/*
FetchBoardMembers 拉取某板块某交易日的成份股。
*/
func (c *Client) FetchBoardMembers(ctx context.Context, tradeDate, boardCode string) ([]*orm.BoardMember, *errs.Error) {
	day, err := parseDay(tradeDate)
	if err != nil {
		return nil, err
	}
	params := map[string]interface{}{"trade_date": tradeDate, "ts_code": boardCode}
	colIdx, rows, err := c.Query(ctx, "tdx_member", params, "ts_code,con_code,con_name")
	if err != nil {
		return nil, err
	}
	items := make([]*orm.BoardMember, 0, len(rows))
	for _, row := range rows {
		items = append(items, &orm.BoardMember{
			TradeDate: day,
			TsCode:    boardCode,
			ConCode:   colStr(colIdx, row, "con_code"),
			ConName:   colStr(colIdx, row, "con_name"),
		})
	}
	return items, nil
}

/*
FetchBoardDaily 拉取某交易日全部板块的日行情。
*/
func (c *Client) FetchBoardDaily(ctx context.Context, tradeDate string) ([]*orm.BoardDaily, *errs.Error) {
	day, err := parseDay(tradeDate)
	if err != nil {
		return nil, err
	}
	params := map[string]interface{}{"trade_date": tradeDate}
	fields := "ts_code,open,high,low,close,pre_close,change,pct_chg,vol,amount"
	colIdx, rows, err := c.Query(ctx, "tdx_daily", params, fields)
	if err != nil {
		return nil, err
	}
	items := make([]*orm.BoardDaily, 0, len(rows))
	for _, row := range rows {
		items = append(items, &orm.BoardDaily{
			TradeDate: day,
			TsCode:    colStr(colIdx, row, "ts_code"),
			Open:      colFloat(colIdx, row, "open"),
			High:      colFloat(colIdx, row, "high"),
			Low:       colFloat(colIdx, row, "low"),
			Close:     colFloat(colIdx, row, "close"),
			PreClose:  colFloat(colIdx, row, "pre_close"),
			Change:    colFloat(colIdx, row, "change"),
			PctChg:    colFloat(colIdx, row, "pct_chg"),
			Vol:       colFloat(colIdx, row, "vol"),
			Amount:    colFloat(colIdx, row, "amount"),
		})
	}
	return items, nil
}

func parseDay(text string) (time.Time, *errs.Error) {
	if text == "" {
		return time.Time{}, errs.NewMsg(core.ErrBadSourceResp, "empty trade_date")
	}
	ms, err := btime.ParseTimeMS(text)
	if err != nil {
		return time.Time{}, err
	}
	return btime.MSToTime(ms).Truncate(24 * time.Hour), nil
}
