package utils

import (
	"testing"
	"time"

	"github.com/aistock/tdxdata/btime"
	"github.com/aistock/tdxdata/core"
)

func cnMS(year int, month time.Month, day, hour, min int) int64 {
	return time.Date(year, month, day, hour, min, 0, 0, btime.LocShanghai).UnixMilli()
}

func TestAlignWeekMS(t *testing.T) {
	// 2025-08-27是周三，应对齐到8-25周一
	monday := cnMS(2025, 8, 25, 0, 0)
	if got := AlignWeekMS(cnMS(2025, 8, 27, 10, 30)); got != monday {
		t.Errorf("wed align got %d, want %d", got, monday)
	}
	// 周日属于同一周
	if got := AlignWeekMS(cnMS(2025, 8, 31, 23, 0)); got != monday {
		t.Errorf("sun align got %d, want %d", got, monday)
	}
	// 周一自身不动
	if got := AlignWeekMS(monday); got != monday {
		t.Errorf("mon align got %d, want %d", got, monday)
	}
	nextMonday := cnMS(2025, 9, 1, 0, 0)
	if got := AlignWeekMS(cnMS(2025, 9, 1, 9, 30)); got != nextMonday {
		t.Errorf("next mon align got %d, want %d", got, nextMonday)
	}
}

func TestAlignMonthMS(t *testing.T) {
	first := cnMS(2025, 8, 1, 0, 0)
	if got := AlignMonthMS(cnMS(2025, 8, 27, 15, 0)); got != first {
		t.Errorf("got %d, want %d", got, first)
	}
	if got := AlignMonthMS(cnMS(2025, 9, 1, 0, 0)); got != cnMS(2025, 9, 1, 0, 0) {
		t.Errorf("month start should align to itself")
	}
}

func TestAlignTfMSecsMinute(t *testing.T) {
	tf5m := int64(core.SecsMin) * 5 * 1000
	ts := cnMS(2025, 8, 27, 9, 33)
	want := cnMS(2025, 8, 27, 9, 30)
	if got := AlignTfMSecs(ts, tf5m); got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestBuildOHLCV(t *testing.T) {
	tf1m := int64(60000)
	base := cnMS(2025, 8, 27, 9, 30)
	var arr []*core.Kline
	// 7根1分钟bar，跨越两个5分钟桶
	prices := []int64{10000, 10100, 9900, 10200, 10050, 10300, 10250}
	for i, p := range prices {
		arr = append(arr, &core.Kline{
			Time: base + int64(i)*tf1m,
			Open: p, High: p + 50, Low: p - 50, Close: p + 10,
			Volume: 100, Amount: p * 100,
		})
	}
	res, lastDone := BuildOHLCV(arr, 5*tf1m, nil, tf1m)
	if len(res) != 2 {
		t.Fatalf("want 2 bars, got %d", len(res))
	}
	b1 := res[0]
	if b1.Time != base {
		t.Errorf("first bucket time %d, want %d", b1.Time, base)
	}
	if b1.Open != 10000 || b1.Close != 10060 {
		t.Errorf("open/close got %d/%d", b1.Open, b1.Close)
	}
	if b1.High != 10250 || b1.Low != 9850 {
		t.Errorf("high/low got %d/%d", b1.High, b1.Low)
	}
	if b1.Volume != 500 {
		t.Errorf("volume got %d", b1.Volume)
	}
	b2 := res[1]
	if b2.Time != base+5*tf1m || b2.Volume != 200 {
		t.Errorf("second bucket time/volume got %d/%d", b2.Time, b2.Volume)
	}
	if lastDone {
		t.Error("second bucket only has 2 of 5 bars, should not be done")
	}

	// 续传：追加剩余3根后末桶完成
	for i := 7; i < 10; i++ {
		p := int64(10400)
		arr2 := []*core.Kline{{Time: base + int64(i)*tf1m, Open: p, High: p, Low: p, Close: p, Volume: 50}}
		res, lastDone = BuildOHLCV(arr2, 5*tf1m, res, tf1m)
	}
	if len(res) != 2 {
		t.Fatalf("want 2 bars after append, got %d", len(res))
	}
	if !lastDone {
		t.Error("second bucket should be complete")
	}
	if res[1].Volume != 350 {
		t.Errorf("second bucket volume got %d", res[1].Volume)
	}
}

func TestBuildOHLCVZeroVolumeSkip(t *testing.T) {
	tf1m := int64(60000)
	base := cnMS(2025, 8, 27, 9, 30)
	arr := []*core.Kline{
		{Time: base, Open: 10000, High: 10000, Low: 10000, Close: 10000, Volume: 100},
		// 停牌bar不应改动OHLC
		{Time: base + tf1m, Open: 0, High: 0, Low: 0, Close: 0, Volume: 0},
	}
	res, _ := BuildOHLCV(arr, 5*tf1m, nil, tf1m)
	if len(res) != 1 || res[0].Close != 10000 || res[0].Low != 10000 {
		t.Errorf("zero volume bar polluted the bucket: %+v", res[0])
	}
}
