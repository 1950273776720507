package orm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func rawBar(date string, closeLi int64) *DailyBar {
	return &DailyBar{
		TsCode: "000001.SZ", TradeDate: day(date),
		OpenLi: closeLi, HighLi: closeLi, LowLi: closeLi, CloseLi: closeLi,
		VolumeHand: 1000, AmountLi: closeLi * 1000, Source: "tdx_api",
	}
}

func factor(date string, val float64) *AdjFactor {
	return &AdjFactor{TsCode: "000001.SZ", TradeDate: day(date), Factor: val}
}

// 2拆1送转场景：除权日因子翻倍，前复权压低历史价，后复权抬高现价
func TestBuildAdjustedSplit(t *testing.T) {
	raw := []*DailyBar{
		rawBar("20250825", 10000),
		rawBar("20250826", 10000),
		rawBar("20250827", 11000),
	}
	factors := []*AdjFactor{
		factor("20250825", 1.0),
		factor("20250826", 1.0),
		factor("20250827", 2.0),
	}
	qfq, hfq := BuildAdjusted(raw, factors)
	require.Len(t, qfq, 3)
	require.Len(t, hfq, 3)

	// 前复权：历史价按 factor/最新factor 折算
	require.Equal(t, int64(5000), qfq[0].CloseLi)
	require.Equal(t, int64(5000), qfq[1].CloseLi)
	require.Equal(t, int64(11000), qfq[2].CloseLi)

	// 后复权：按 factor/首个factor 放大
	require.Equal(t, int64(10000), hfq[0].CloseLi)
	require.Equal(t, int64(10000), hfq[1].CloseLi)
	require.Equal(t, int64(22000), hfq[2].CloseLi)

	// 量从不调整
	for i := range raw {
		require.Equal(t, raw[i].VolumeHand, qfq[i].VolumeHand)
		require.Equal(t, raw[i].AmountLi, hfq[i].AmountLi)
	}
}

// 中间缺因子的交易日沿用前值
func TestBuildAdjustedGapFill(t *testing.T) {
	raw := []*DailyBar{
		rawBar("20250825", 10000),
		rawBar("20250826", 10000),
		rawBar("20250827", 10000),
	}
	factors := []*AdjFactor{
		factor("20250825", 1.0),
		factor("20250827", 2.0),
	}
	qfq, _ := BuildAdjusted(raw, factors)
	require.Equal(t, int64(5000), qfq[0].CloseLi)
	require.Equal(t, int64(5000), qfq[1].CloseLi, "missing day should reuse prior factor")
	require.Equal(t, int64(10000), qfq[2].CloseLi)
}

// 序列头部缺因子时向后回填首个有效值
func TestBuildAdjustedHeadBackfill(t *testing.T) {
	raw := []*DailyBar{
		rawBar("20250825", 10000),
		rawBar("20250826", 10000),
	}
	factors := []*AdjFactor{factor("20250826", 1.5)}
	qfq, hfq := BuildAdjusted(raw, factors)
	// 全序列同一因子，价格不变
	require.Equal(t, int64(10000), qfq[0].CloseLi)
	require.Equal(t, int64(10000), hfq[1].CloseLi)
}

// 无任何因子时按1.0处理，输出等于原始
func TestBuildAdjustedNoFactors(t *testing.T) {
	raw := []*DailyBar{rawBar("20250825", 12345)}
	qfq, hfq := BuildAdjusted(raw, nil)
	require.Equal(t, int64(12345), qfq[0].CloseLi)
	require.Equal(t, int64(12345), hfq[0].CloseLi)
}

func TestFactorChanged(t *testing.T) {
	olds := []*AdjFactor{factor("20250825", 1.0), factor("20250826", 2.0)}

	// 仅末尾追加不触发重建
	news := []*AdjFactor{factor("20250825", 1.0), factor("20250826", 2.0), factor("20250827", 2.5)}
	require.False(t, FactorChanged(olds, news))

	// 历史值被修正则要求重建
	news = []*AdjFactor{factor("20250825", 1.1), factor("20250826", 2.0)}
	require.True(t, FactorChanged(olds, news))

	// 回溯补插的历史日期同样触发重建
	news = []*AdjFactor{factor("20250820", 0.8), factor("20250825", 1.0), factor("20250826", 2.0)}
	require.True(t, FactorChanged(olds, news))

	// 库中已有日期在新序列中消失也触发重建
	news = []*AdjFactor{factor("20250825", 1.0), factor("20250827", 2.5)}
	require.True(t, FactorChanged(olds, news))

	require.False(t, FactorChanged(nil, news))
}
