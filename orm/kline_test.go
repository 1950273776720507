package orm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, _ := time.ParseInLocation("20060102", s, time.UTC)
	return t
}

func validBar() *DailyBar {
	return &DailyBar{
		TsCode: "000001.SZ", TradeDate: day("20250827"),
		OpenLi: 10500, HighLi: 10800, LowLi: 10300, CloseLi: 10600,
		VolumeHand: 123456, AmountLi: 130000000, Source: "tdx_api",
	}
}

func TestCheckDailyBar(t *testing.T) {
	require.Nil(t, CheckDailyBar(validBar()))

	b := validBar()
	b.HighLi, b.LowLi = b.LowLi, b.HighLi
	require.NotNil(t, CheckDailyBar(b), "high < low")

	b = validBar()
	b.OpenLi = b.HighLi + 1
	require.NotNil(t, CheckDailyBar(b), "open above high")

	b = validBar()
	b.CloseLi = b.LowLi - 1
	require.NotNil(t, CheckDailyBar(b), "close below low")

	b = validBar()
	b.VolumeHand = -1
	require.NotNil(t, CheckDailyBar(b), "negative volume")

	b = validBar()
	b.OpenLi, b.HighLi, b.LowLi, b.CloseLi = 0, 0, 0, 0
	require.NotNil(t, CheckDailyBar(b), "zero price")

	// 一字板：四价相同是合法的
	b = validBar()
	b.OpenLi, b.HighLi, b.LowLi, b.CloseLi = 10500, 10500, 10500, 10500
	require.Nil(t, CheckDailyBar(b))
}

func TestCheckMinuteBar(t *testing.T) {
	mb := &MinuteBar{
		TsCode: "000001.SZ", TradeTime: time.Now(), Freq: "1m",
		OpenLi: 10500, HighLi: 10510, LowLi: 10490, CloseLi: 10505,
		VolumeHand: 100,
	}
	require.Nil(t, CheckMinuteBar(mb))
	mb.HighLi = mb.LowLi - 1
	require.NotNil(t, CheckMinuteBar(mb))
}
