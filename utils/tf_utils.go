package utils

import (
	"time"

	"github.com/aistock/tdxdata/btime"
	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
)

var tfSecsMap = map[string]int{
	"1m":  core.SecsMin,
	"5m":  core.SecsMin * 5,
	"15m": core.SecsMin * 15,
	"30m": core.SecsMin * 30,
	"60m": core.SecsHour,
	"1h":  core.SecsHour,
	"1d":  core.SecsDay,
	"1w":  core.SecsWeek,
	"1M":  core.SecsMon,
}

/*
TFToSecs 时间周期转秒数，未知周期返回0
*/
func TFToSecs(timeFrame string) int {
	return tfSecsMap[timeFrame]
}

func TFToMSecs(timeFrame string) int64 {
	return int64(TFToSecs(timeFrame)) * 1000
}

/*
EnsureTF 校验时间周期合法性
*/
func EnsureTF(timeFrame string) *errs.Error {
	if _, ok := tfSecsMap[timeFrame]; !ok {
		return errs.NewMsg(core.ErrInvalidTF, "unsupported timeframe: %s", timeFrame)
	}
	return nil
}

/*
AlignTfMSecs 将毫秒时间戳向下对齐到周期起始

周线对齐到周一，月线对齐到月初，均按上海时区日历；分钟/小时/日线直接整除
*/
func AlignTfMSecs(timeMSecs, tfMSecs int64) int64 {
	switch tfMSecs {
	case int64(core.SecsWeek) * 1000:
		return AlignWeekMS(timeMSecs)
	case int64(core.SecsMon) * 1000:
		return AlignMonthMS(timeMSecs)
	default:
		if tfMSecs <= 0 {
			return timeMSecs
		}
		return timeMSecs / tfMSecs * tfMSecs
	}
}

/*
AlignWeekMS 对齐到所在周的周一0点(上海时区)
*/
func AlignWeekMS(timeMSecs int64) int64 {
	t := btime.MSToCnTime(timeMSecs)
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, btime.LocShanghai)
	return day.AddDate(0, 0, 1-weekday).UnixMilli()
}

/*
AlignMonthMS 对齐到所在月的1日0点(上海时区)
*/
func AlignMonthMS(timeMSecs int64) int64 {
	t := btime.MSToCnTime(timeMSecs)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, btime.LocShanghai).UnixMilli()
}

/*
BuildOHLCV 从细粒度K线构建或更新粗粒度K线

arr: 细粒度K线列表，按时间升序
toTFMSecs: 目标周期毫秒数(周/月走日历对齐)
resOHLCV: 已有的待更新数组，传nil新建
返回结果数组和最后一根bar是否完成
*/
func BuildOHLCV(arr []*core.Kline, toTFMSecs int64, resOHLCV []*core.Kline, fromTFMS int64) ([]*core.Kline, bool) {
	subNum := len(arr)
	if fromTFMS == 0 && subNum >= 2 {
		fromTFMS = arr[subNum-1].Time - arr[subNum-2].Time
	}
	var big *core.Kline
	cacheNum := 0
	if fromTFMS > 0 {
		aggNum := int(toTFMSecs / fromTFMS)
		if aggNum > 0 {
			cacheNum = len(arr)/aggNum + 3
		}
	}
	if resOHLCV == nil {
		resOHLCV = make([]*core.Kline, 0, cacheNum)
	} else if len(resOHLCV) > 0 {
		cutLen := len(resOHLCV) - 1
		big = resOHLCV[cutLen]
		resOHLCV = resOHLCV[:cutLen]
	}
	for _, bar := range arr {
		timeAlign := AlignTfMSecs(bar.Time, toTFMSecs)
		if big != nil && big.Time == timeAlign {
			// 属于同一个大周期bar
			if bar.Volume > 0 {
				if big.Volume == 0 {
					big.Open = bar.Open
					big.High = bar.High
					big.Low = bar.Low
				} else {
					if bar.High > big.High {
						big.High = bar.High
					}
					if bar.Low < big.Low {
						big.Low = bar.Low
					}
				}
				big.Close = bar.Close
				big.Volume += bar.Volume
				big.Amount += bar.Amount
			}
			continue
		}
		if big != nil {
			resOHLCV = append(resOHLCV, big)
		}
		big = &core.Kline{Time: timeAlign, Open: bar.Open, High: bar.High, Low: bar.Low,
			Close: bar.Close, Volume: bar.Volume, Amount: bar.Amount}
	}
	lastDone := false
	if big != nil {
		resOHLCV = append(resOHLCV, big)
		if subNum > 0 && fromTFMS > 0 {
			lastBar := arr[subNum-1]
			nextStart := AlignTfMSecs(lastBar.Time+fromTFMS, toTFMSecs)
			lastDone = nextStart > big.Time
		}
	}
	return resOHLCV, lastDone
}
