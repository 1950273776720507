package sched

import (
	"testing"
	"time"

	"github.com/aistock/tdxdata/btime"
	"github.com/stretchr/testify/require"
)

func TestNextRunDaily(t *testing.T) {
	after := time.Date(2025, 8, 27, 10, 0, 0, 0, btime.LocShanghai)
	// 每天17:30收盘后增量
	next, err := NextRun("30 17 * * *", after)
	require.Nil(t, err)
	require.Equal(t, 17, next.Hour())
	require.Equal(t, 30, next.Minute())
	require.Equal(t, 27, next.Day())

	// 已过触发点则顺延到次日
	after = time.Date(2025, 8, 27, 18, 0, 0, 0, btime.LocShanghai)
	next, err = NextRun("30 17 * * *", after)
	require.Nil(t, err)
	require.Equal(t, 28, next.Day())
}

func TestNextRunIntraday(t *testing.T) {
	after := time.Date(2025, 8, 27, 10, 14, 0, 0, btime.LocShanghai)
	// 盘中每15分钟
	next, err := NextRun("*/15 9-15 * * 1-5", after)
	require.Nil(t, err)
	require.Equal(t, 15, next.Minute())
	require.Equal(t, 10, next.Hour())
}

func TestNextRunBadExpr(t *testing.T) {
	_, err := NextRun("not a cron", time.Now())
	require.NotNil(t, err)
}
