package ingest

import (
	"testing"
	"time"

	"github.com/aistock/tdxdata/orm"
	"github.com/stretchr/testify/require"
)

func tick(hh, mm, ss int, priceLi, hand int64) *orm.TickTrade {
	return &orm.TickTrade{
		TsCode:     "600000.SH",
		TradeTime:  time.Date(2025, 8, 25, hh, mm, ss, 0, time.UTC),
		PriceLi:    priceLi,
		VolumeHand: hand,
	}
}

func TestMinuteFromTicks(t *testing.T) {
	ticks := []*orm.TickTrade{
		tick(9, 30, 5, 10000, 10),
		tick(9, 30, 30, 10250, 5),
		tick(9, 30, 55, 9900, 20),
		tick(9, 31, 10, 10100, 8),
	}
	bars := minuteFromTicks("600000.SH", ticks)
	require.Len(t, bars, 2)

	// 第一分钟：三笔聚合，bar时间为桶结束时刻
	b := bars[0]
	require.True(t, b.TradeTime.Equal(time.Date(2025, 8, 25, 9, 31, 0, 0, time.UTC)))
	require.Equal(t, "1m", b.Freq)
	require.Equal(t, int64(10000), b.OpenLi)
	require.Equal(t, int64(10250), b.HighLi)
	require.Equal(t, int64(9900), b.LowLi)
	require.Equal(t, int64(9900), b.CloseLi)
	require.Equal(t, int64(35), b.VolumeHand)
	// 成交额=Σ(价厘×股数)，1手=100股
	require.Equal(t, int64(10000*1000+10250*500+9900*2000), b.AmountLi)

	b = bars[1]
	require.True(t, b.TradeTime.Equal(time.Date(2025, 8, 25, 9, 32, 0, 0, time.UTC)))
	require.Equal(t, int64(10100), b.OpenLi)
	require.Equal(t, int64(10100), b.CloseLi)
	require.Equal(t, int64(8), b.VolumeHand)
}

func TestMinuteFromTicksEmpty(t *testing.T) {
	require.Nil(t, minuteFromTicks("600000.SH", nil))
}
