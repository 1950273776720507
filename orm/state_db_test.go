package orm

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/aistock/tdxdata/config"
	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/stretchr/testify/require"
)

// 需要真实TimescaleDB，TDX_DB_URL未设置时跳过
func dbQueries(t *testing.T) *Queries {
	t.Helper()
	url := os.Getenv("TDX_DB_URL")
	if url == "" {
		t.Skip("TDX_DB_URL not set")
	}
	config.Database = &config.DatabaseConfig{Url: url, MaxPoolSize: 8, AutoCreate: true}
	require.Nil(t, Setup())
	q, conn, err := Conn(context.Background())
	require.Nil(t, err)
	t.Cleanup(func() {
		conn.Release()
		Close()
	})
	return q
}

func TestAdvanceStateCAS(t *testing.T) {
	q := dbQueries(t)
	ctx := context.Background()
	dataset := "kline_daily_raw"
	tsCode := "999999.SZ"
	_, err := q.ResetState(ctx, dataset, []string{tsCode})
	require.Nil(t, err)

	d1 := time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	require.Nil(t, q.AdvanceState(ctx, dataset, tsCode, nil, d1, nil, nil))

	// 并发推进同一游标，恰好一个成功，另一个拿到CheckpointRace
	var wg sync.WaitGroup
	results := make([]*errs.Error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			q2, conn2, err2 := Conn(ctx)
			if err2 != nil {
				results[idx] = err2
				return
			}
			defer conn2.Release()
			results[idx] = q2.AdvanceState(ctx, dataset, tsCode, &d1, d2, nil, nil)
		}(i)
	}
	wg.Wait()

	var wins, races int
	for _, r := range results {
		if r == nil {
			wins++
		} else if r.Code == core.ErrCheckpointRace {
			races++
		} else {
			t.Fatalf("unexpected error: %v", r)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, races)

	// 游标不回退
	err = q.AdvanceState(ctx, dataset, tsCode, &d2, d1, nil, nil)
	require.NotNil(t, err)
	require.Equal(t, core.ErrCheckpointRace, err.Code)

	state, err := q.GetState(ctx, dataset, tsCode)
	require.Nil(t, err)
	require.NotNil(t, state.LastSuccessDate)
	require.True(t, state.LastSuccessDate.Equal(d2))

	_, err = q.ResetState(ctx, dataset, []string{tsCode})
	require.Nil(t, err)
}

func TestUpsertDailyBarsIdempotent(t *testing.T) {
	q := dbQueries(t)
	ctx := context.Background()
	tsCode := "999998.SZ"
	start := time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC)
	bars := []*DailyBar{
		{TsCode: tsCode, TradeDate: start, OpenLi: 10000, HighLi: 10500, LowLi: 9900, CloseLi: 10200, VolumeHand: 1000, AmountLi: 10200000, Source: "tdx_api"},
		{TsCode: tsCode, TradeDate: start.AddDate(0, 0, 1), OpenLi: 10200, HighLi: 10400, LowLi: 10100, CloseLi: 10300, VolumeHand: 900, AmountLi: 9300000, Source: "tdx_api"},
	}
	defer func() {
		_, _ = q.DelDailyBars(ctx, core.DsKlineDailyRaw, []string{tsCode}, start, start.AddDate(0, 0, 7))
	}()

	ins, upd, failed, err := q.UpsertDailyBars(ctx, core.DsKlineDailyRaw, bars)
	require.Nil(t, err)
	require.Empty(t, failed)
	require.Equal(t, int64(2), ins)
	require.Equal(t, int64(0), upd)

	// 重复写入不产生重复行，值被覆盖且计为updated
	bars[0].CloseLi = 10250
	ins, upd, failed, err = q.UpsertDailyBars(ctx, core.DsKlineDailyRaw, bars)
	require.Nil(t, err)
	require.Empty(t, failed)
	require.Equal(t, int64(0), ins)
	require.Equal(t, int64(2), upd)

	got, err := q.QueryDailyBars(ctx, core.DsKlineDailyRaw, tsCode, start, start.AddDate(0, 0, 7))
	require.Nil(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(10250), got[0].CloseLi)
}

func TestUpsertDailyBarsPartialBatch(t *testing.T) {
	q := dbQueries(t)
	ctx := context.Background()
	tsCode := "999997.SZ"
	start := time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC)
	bars := []*DailyBar{
		{TsCode: tsCode, TradeDate: start, OpenLi: 10000, HighLi: 10500, LowLi: 9900, CloseLi: 10200, VolumeHand: 1000, AmountLi: 1, Source: "tdx_api"},
		// high < low，应被剔除而不拖垮整批
		{TsCode: tsCode, TradeDate: start.AddDate(0, 0, 1), OpenLi: 10000, HighLi: 9000, LowLi: 9900, CloseLi: 9500, VolumeHand: 10, AmountLi: 1, Source: "tdx_api"},
	}
	defer func() {
		_, _ = q.DelDailyBars(ctx, core.DsKlineDailyRaw, []string{tsCode}, start, start.AddDate(0, 0, 7))
	}()

	ins, _, failed, err := q.UpsertDailyBars(ctx, core.DsKlineDailyRaw, bars)
	require.Nil(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, int64(1), ins)
}
