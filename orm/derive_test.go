package orm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func seqBars() []*DailyBar {
	// 2025-08-25(一)~08-29(五)一整周，09-01(下周一)
	bars := []*DailyBar{
		rawBar("20250825", 10000),
		rawBar("20250826", 10200),
		rawBar("20250827", 9800),
		rawBar("20250828", 10100),
		rawBar("20250829", 10400),
		rawBar("20250901", 10600),
	}
	bars[0].OpenLi = 9900
	bars[2].LowLi = 9700
	bars[1].HighLi = 10500
	return bars
}

func TestBuildPeriodBarsWeekly(t *testing.T) {
	res, err := BuildPeriodBars(seqBars(), "1w")
	require.Nil(t, err)
	require.Len(t, res, 2)

	w1 := res[0]
	require.Equal(t, day("20250829"), w1.EndDate, "weekly key is last trade day")
	require.Equal(t, int64(9900), w1.OpenLi)
	require.Equal(t, int64(10400), w1.CloseLi)
	require.Equal(t, int64(10500), w1.HighLi)
	require.Equal(t, int64(9700), w1.LowLi)
	require.Equal(t, int64(5000), w1.VolumeHand)

	w2 := res[1]
	require.Equal(t, day("20250901"), w2.EndDate)
	require.Equal(t, int64(10600), w2.CloseLi)
	require.Equal(t, int64(1000), w2.VolumeHand)
}

func TestBuildPeriodBarsMonthly(t *testing.T) {
	res, err := BuildPeriodBars(seqBars(), "1M")
	require.Nil(t, err)
	require.Len(t, res, 2)
	require.Equal(t, day("20250829"), res[0].EndDate, "monthly key is last trade day of month")
	require.Equal(t, int64(5000), res[0].VolumeHand)
	require.Equal(t, day("20250901"), res[1].EndDate)
}

func TestBuildPeriodBarsBadPeriod(t *testing.T) {
	_, err := BuildPeriodBars(seqBars(), "1d")
	require.NotNil(t, err)
	_, err = BuildPeriodBars(seqBars(), "5m")
	require.NotNil(t, err)
}

func TestBuildPeriodBarsEmpty(t *testing.T) {
	res, err := BuildPeriodBars(nil, "1w")
	require.Nil(t, err)
	require.Empty(t, res)
}
