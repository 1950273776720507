package btime

import (
	"strconv"
	"time"

	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
)

var (
	UTCLocale   = time.UTC
	LocShanghai *time.Location
)

func init() {
	var err error
	LocShanghai, err = time.LoadLocation("Asia/Shanghai")
	if err != nil {
		// 无时区数据库时退化为固定偏移
		LocShanghai = time.FixedZone("CST", 8*3600)
	}
}

/*
TimeMS 当前13位毫秒时间戳
*/
func TimeMS() int64 {
	return time.Now().UnixMilli()
}

func UTCTime() float64 {
	return float64(time.Now().UnixMilli()) * 0.001
}

/*
MSToTime 将13位毫秒时间戳转为UTC时间
*/
func MSToTime(timeMSecs int64) time.Time {
	return time.UnixMilli(timeMSecs).UTC()
}

/*
MSToCnTime 转为上海时区时间，用于交易日边界计算
*/
func MSToCnTime(timeMSecs int64) time.Time {
	return time.UnixMilli(timeMSecs).In(LocShanghai)
}

/*
CountDigit 计算字符串中数字的个数
*/
func CountDigit(text string) int {
	count := 0
	for _, c := range text {
		if c >= '0' && c <= '9' {
			count++
		}
	}
	return count
}

/*
ParseTimeMS 将时间字符串转为13位毫秒时间戳

支持格式：2006  20060102  1562311281  1562311281000  2006-01-02 15:04[:05]
*/
func ParseTimeMS(timeStr string) (int64, *errs.Error) {
	digitNum := CountDigit(timeStr)
	textLen := len(timeStr)
	if textLen == 4 && digitNum == 4 {
		return dateToMS(timeStr, "2006")
	} else if textLen == 8 && digitNum == 8 {
		return dateToMS(timeStr, "20060102")
	} else if textLen == 10 && digitNum == 10 {
		// 10位秒级时间戳
		secs, err := strconvParseInt(timeStr)
		if err != nil {
			return 0, err
		}
		return secs * 1000, nil
	} else if textLen == 13 && digitNum == 13 {
		msecs, err := strconvParseInt(timeStr)
		if err != nil {
			return 0, err
		}
		return msecs, nil
	} else if textLen == 10 && digitNum == 8 {
		return dateToMS(timeStr, "2006-01-02")
	} else if digitNum == 12 && textLen == 16 {
		return dateToMS(timeStr, "2006-01-02 15:04")
	} else if digitNum == 14 && textLen == 19 {
		return dateToMS(timeStr, "2006-01-02 15:04:05")
	}
	return 0, errs.NewMsg(core.ErrInvalidTF, "invalid time format: %s", timeStr)
}

func strconvParseInt(text string) (int64, *errs.Error) {
	val, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, errs.New(core.ErrInvalidTF, err)
	}
	return val, nil
}

func dateToMS(timeStr, format string) (int64, *errs.Error) {
	t, err := time.ParseInLocation(format, timeStr, UTCLocale)
	if err != nil {
		return 0, errs.New(core.ErrInvalidTF, err)
	}
	return t.UnixMilli(), nil
}

/*
ToDateStr 将13位毫秒时间戳转为日期字符串，format为空时使用2006-01-02 15:04:05
*/
func ToDateStr(timestamp int64, format string) string {
	t := MSToTime(timestamp)
	if format == "" {
		format = core.DefaultDateFmt
	}
	return t.Format(format)
}

/*
ToCnDateStr 按上海时区格式化，用于交易日展示
*/
func ToCnDateStr(timestamp int64, format string) string {
	t := MSToCnTime(timestamp)
	if format == "" {
		format = core.DefaultDateFmt
	}
	return t.Format(format)
}

/*
TradeDate 返回毫秒时间戳所属的交易日(上海时区自然日) 格式20060102
*/
func TradeDate(timeMSecs int64) string {
	return MSToCnTime(timeMSecs).Format("20060102")
}

/*
CnDateMS 将20060102格式的交易日转为当日0点(上海时区)的毫秒时间戳
*/
func CnDateMS(dateStr string) (int64, *errs.Error) {
	t, err := time.ParseInLocation("20060102", dateStr, LocShanghai)
	if err != nil {
		return 0, errs.New(core.ErrInvalidTF, err)
	}
	return t.UnixMilli(), nil
}
