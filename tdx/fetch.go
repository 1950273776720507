package tdx

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/aistock/tdxdata/btime"
	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/aistock/tdxdata/orm"
)

// codesRsp /api/codes 返回结构
type codesRsp struct {
	Total int         `json:"total"`
	Codes []*codeItem `json:"codes"`
}

type codeItem struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
}

// klineRow 上游数值已是厘/手，直接取整即可
type klineRow struct {
	Time      string  `json:"Time"`
	Date      string  `json:"Date"`
	TradeTime string  `json:"TradeTime"`
	Open      float64 `json:"Open"`
	High      float64 `json:"High"`
	Low       float64 `json:"Low"`
	Close     float64 `json:"Close"`
	Price     float64 `json:"Price"`
	Volume    float64 `json:"Volume"`
	Amount    float64 `json:"Amount"`
}

type klineRsp struct {
	List []*klineRow `json:"List"`
}

type klineAllRsp struct {
	List []*klineRow `json:"list"`
}

type tickRow struct {
	Time      string  `json:"Time"`
	Price     float64 `json:"Price"`
	Volume    float64 `json:"Volume"`
	Buyorsell float64 `json:"Buyorsell"`
}

type tickRsp struct {
	List []*tickRow `json:"List"`
}

/*
FetchCodes 拉取股票代码表，exchange可为sh/sz/bj或空(全部)。

返回规范化后的ts_code维度行，非法代码跳过不报错。
*/
func (c *Client) FetchCodes(ctx context.Context, exchange string) ([]*orm.SymbolDim, *errs.Error) {
	params := map[string]string{}
	if exchange != "" {
		params["exchange"] = strings.ToLower(exchange)
	}
	var data codesRsp
	if err := c.Get(ctx, "/api/codes", params, &data); err != nil {
		return nil, err
	}
	items := make([]*orm.SymbolDim, 0, len(data.Codes))
	for _, it := range data.Codes {
		tsCode, err := orm.NormalizeTsCode(it.Code)
		if err != nil {
			continue
		}
		items = append(items, &orm.SymbolDim{
			TsCode:   tsCode,
			Symbol:   it.Code,
			Exchange: strings.ToUpper(it.Exchange),
			Name:     it.Name,
		})
	}
	return items, nil
}

/*
FetchDaily 按日期范围拉取日K，adjust为none/qfq/hfq，start/end格式20060102。
*/
func (c *Client) FetchDaily(ctx context.Context, tsCode, adjust, start, end string) ([]*orm.DailyBar, *errs.Error) {
	symbol, _, err := orm.SplitTsCode(tsCode)
	if err != nil {
		return nil, err
	}
	params := map[string]string{
		"code": symbol, "type": "day", "adjust": adjust,
		"start": start, "end": end,
	}
	var data klineRsp
	if err = c.Get(ctx, "/api/kline", params, &data); err != nil {
		return nil, err
	}
	return toDailyBars(tsCode, data.List)
}

/*
FetchDailyAll 通过全量接口一次拉取全部历史日K，按start/end在本地过滤。

初始化导入优先走此接口，减少上游调用次数。
*/
func (c *Client) FetchDailyAll(ctx context.Context, tsCode, start, end string) ([]*orm.DailyBar, *errs.Error) {
	symbol, _, err := orm.SplitTsCode(tsCode)
	if err != nil {
		return nil, err
	}
	params := map[string]string{"code": symbol, "type": "day"}
	var data klineAllRsp
	if err = c.GetBulk(ctx, "/api/kline-all/tdx", params, &data); err != nil {
		return nil, err
	}
	bars, err := toDailyBars(tsCode, data.List)
	if err != nil {
		return nil, err
	}
	return filterBarRange(bars, start, end)
}

func toDailyBars(tsCode string, rows []*klineRow) ([]*orm.DailyBar, *errs.Error) {
	bars := make([]*orm.DailyBar, 0, len(rows))
	for _, row := range rows {
		dateStr := row.Date
		if dateStr == "" {
			dateStr = row.Time
		}
		tradeDate, err := parseTradeDate(dateStr)
		if err != nil {
			return nil, err
		}
		bars = append(bars, &orm.DailyBar{
			TsCode:     tsCode,
			TradeDate:  tradeDate,
			OpenLi:     toLi(row.Open),
			HighLi:     toLi(row.High),
			LowLi:      toLi(row.Low),
			CloseLi:    toLi(row.Close),
			VolumeHand: toLi(row.Volume),
			AmountLi:   toLi(row.Amount),
			Source:     core.SourceTdxApi,
		})
	}
	return bars, nil
}

func filterBarRange(bars []*orm.DailyBar, start, end string) ([]*orm.DailyBar, *errs.Error) {
	if start == "" && end == "" {
		return bars, nil
	}
	res := make([]*orm.DailyBar, 0, len(bars))
	for _, bar := range bars {
		day := bar.TradeDate.Format(core.DateFmtDay)
		if start != "" && day < start {
			continue
		}
		if end != "" && day > end {
			continue
		}
		res = append(res, bar)
	}
	return res, nil
}

/*
FetchMinute 拉取某交易日的全部1分钟K线，date格式20060102。

上游行内时间可能只有HH:MM，与date拼成上海时区完整时刻。
*/
func (c *Client) FetchMinute(ctx context.Context, tsCode, date string) ([]*orm.MinuteBar, *errs.Error) {
	symbol, _, err := orm.SplitTsCode(tsCode)
	if err != nil {
		return nil, err
	}
	params := map[string]string{"code": symbol, "type": "minute1", "date": date}
	var data klineRsp
	if err = c.Get(ctx, "/api/minute", params, &data); err != nil {
		return nil, err
	}
	bars := make([]*orm.MinuteBar, 0, len(data.List))
	for _, row := range data.List {
		text := row.TradeTime
		if text == "" {
			text = row.Time
		}
		tradeTime, err2 := combineTradeTime(date, text)
		if err2 != nil {
			return nil, err2
		}
		closeLi := row.Close
		if closeLi == 0 {
			closeLi = row.Price
		}
		bars = append(bars, &orm.MinuteBar{
			TsCode:     tsCode,
			TradeTime:  tradeTime,
			Freq:       "1m",
			OpenLi:     toLi(row.Open),
			HighLi:     toLi(row.High),
			LowLi:      toLi(row.Low),
			CloseLi:    toLi(closeLi),
			VolumeHand: toLi(row.Volume),
			AmountLi:   toLi(row.Amount),
			Source:     core.SourceTdxApi,
		})
	}
	return bars, nil
}

/*
FetchTicks 拉取某交易日的全部逐笔成交。

Buyorsell: 0买 1卖，其余映射为-1。
*/
func (c *Client) FetchTicks(ctx context.Context, tsCode, date string) ([]*orm.TickTrade, *errs.Error) {
	symbol, _, err := orm.SplitTsCode(tsCode)
	if err != nil {
		return nil, err
	}
	params := map[string]string{"code": symbol, "date": date}
	var data tickRsp
	if err = c.Get(ctx, "/api/minute-trade-all", params, &data); err != nil {
		return nil, err
	}
	ticks := make([]*orm.TickTrade, 0, len(data.List))
	for _, row := range data.List {
		tradeTime, err2 := combineTradeTime(date, row.Time)
		if err2 != nil {
			return nil, err2
		}
		status := int16(-1)
		if row.Buyorsell == 0 || row.Buyorsell == 1 {
			status = int16(row.Buyorsell)
		}
		ticks = append(ticks, &orm.TickTrade{
			TsCode:     tsCode,
			TradeTime:  tradeTime,
			PriceLi:    toLi(row.Price),
			VolumeHand: toLi(row.Volume),
			Status:     status,
			Source:     core.SourceTdxApi,
		})
	}
	return ticks, nil
}

/*
FetchIndexDaily 拉取指数日线，code为带市场前缀的指数代码如sh000001。
*/
func (c *Client) FetchIndexDaily(ctx context.Context, code string) ([]*orm.IndexDailyBar, *errs.Error) {
	params := map[string]string{"code": code, "type": "day"}
	var data klineRsp
	if err := c.Get(ctx, "/api/index", params, &data); err != nil {
		return nil, err
	}
	bars := make([]*orm.IndexDailyBar, 0, len(data.List))
	for _, row := range data.List {
		dateStr := row.Date
		if dateStr == "" {
			dateStr = row.Time
		}
		tradeDate, err := parseTradeDate(dateStr)
		if err != nil {
			return nil, err
		}
		bars = append(bars, &orm.IndexDailyBar{
			Code:       code,
			TradeDate:  tradeDate,
			OpenLi:     toLi(row.Open),
			HighLi:     toLi(row.High),
			LowLi:      toLi(row.Low),
			CloseLi:    toLi(row.Close),
			VolumeHand: toLi(row.Volume),
			AmountLi:   toLi(row.Amount),
			Source:     core.SourceTdxApi,
		})
	}
	return bars, nil
}

/*
Ping 探活，服务未运行返回SourceDown。
*/
func (c *Client) Ping(ctx context.Context) *errs.Error {
	var data struct {
		Status string `json:"status"`
	}
	if err := c.Get(ctx, "/api/server-status", nil, &data); err != nil {
		return err
	}
	if data.Status != "running" {
		return errs.NewMsg(core.ErrSourceDown, "tdx status=%s", data.Status)
	}
	return nil
}

func toLi(v float64) int64 {
	return int64(math.Round(v))
}

// parseTradeDate 兼容20060102与2006-01-02两种日期格式
func parseTradeDate(text string) (time.Time, *errs.Error) {
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, ' '); idx > 0 {
		text = text[:idx]
	}
	ms, err := btime.ParseTimeMS(text)
	if err != nil {
		return time.Time{}, err
	}
	return btime.MSToTime(ms).Truncate(24 * time.Hour), nil
}

/*
combineTradeTime 将交易日与行内时间合成完整时刻。

行内时间为完整日期时间则直接解析，仅HH:MM[:SS]时与date拼接，均按上海时区。
*/
func combineTradeTime(date, text string) (time.Time, *errs.Error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, errs.NewMsg(core.ErrBadSourceResp, "empty trade time for %s", date)
	}
	for _, fmtStr := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "20060102 15:04:05", "20060102150405"} {
		if t, err := time.ParseInLocation(fmtStr, text, btime.LocShanghai); err == nil {
			return t, nil
		}
	}
	for _, fmtStr := range []string{"15:04:05", "15:04"} {
		if t, err := time.ParseInLocation(core.DateFmtDay+" "+fmtStr, date+" "+text, btime.LocShanghai); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errs.NewMsg(core.ErrBadSourceResp, "bad trade time: %s %s", date, text)
}
