package ingest

import (
	"context"

	"github.com/aistock/tdxdata/btime"
	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/aistock/tdxdata/orm"
	"github.com/aistock/tdxdata/utils"
)

// tickMinuteBars 读取某交易日已入库的逐笔，聚合出1分钟K线
func tickMinuteBars(ctx context.Context, q *orm.Queries, tsCode, day string) ([]*orm.MinuteBar, *errs.Error) {
	dayT, err := dayToTime(day)
	if err != nil {
		return nil, err
	}
	ticks, err := q.QueryTicks(ctx, tsCode, dayT, dayT.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	return minuteFromTicks(tsCode, ticks), nil
}

/*
minuteFromTicks 用逐笔成交聚合1分钟K线。

每笔成交视作一根零宽K线喂给BuildOHLCV；bar时间取桶结束时刻，
与上游分钟线口径一致。成交额由价×股数推算。
*/
func minuteFromTicks(tsCode string, ticks []*orm.TickTrade) []*orm.MinuteBar {
	if len(ticks) == 0 {
		return nil
	}
	points := make([]*core.Kline, 0, len(ticks))
	for _, t := range ticks {
		p := t.PriceLi
		points = append(points, &core.Kline{
			Time: t.TradeTime.UnixMilli(), Open: p, High: p, Low: p, Close: p,
			Volume: t.VolumeHand, Amount: p * utils.HandToShares(t.VolumeHand),
		})
	}
	tfMS := int64(core.SecsMin) * 1000
	klines, _ := utils.BuildOHLCV(points, tfMS, nil, 0)
	bars := make([]*orm.MinuteBar, 0, len(klines))
	for _, k := range klines {
		bars = append(bars, &orm.MinuteBar{
			TsCode: tsCode, TradeTime: btime.MSToTime(k.Time + tfMS), Freq: "1m",
			OpenLi: k.Open, HighLi: k.High, LowLi: k.Low, CloseLi: k.Close,
			VolumeHand: k.Volume, AmountLi: k.Amount, Source: core.SourceTdxApi,
		})
	}
	return bars
}
