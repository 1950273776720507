package utils

import (
	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/shopspring/decimal"
)

// 1元=1000厘，1手=100股
const (
	LiPerYuan     = 1000
	SharesPerHand = 100
)

var (
	decLiPerYuan = decimal.NewFromInt(LiPerYuan)
	decHand      = decimal.NewFromInt(SharesPerHand)
)

/*
YuanToLi 元转厘，四舍五入到整数厘

源头数据多为两位小数字符串，用decimal避免float64精度损失
*/
func YuanToLi(text string) (int64, *errs.Error) {
	if text == "" {
		return 0, errs.NewMsg(core.ErrBadSourceResp, "empty price text")
	}
	val, err := decimal.NewFromString(text)
	if err != nil {
		return 0, errs.New(core.ErrBadSourceResp, err)
	}
	return val.Mul(decLiPerYuan).Round(0).IntPart(), nil
}

/*
YuanFloatToLi 浮点元转厘，用于来源本身就是float的字段
*/
func YuanFloatToLi(val float64) int64 {
	return decimal.NewFromFloat(val).Mul(decLiPerYuan).Round(0).IntPart()
}

/*
LiToYuan 厘转元字符串，保留3位小数
*/
func LiToYuan(li int64) string {
	return decimal.NewFromInt(li).Div(decLiPerYuan).StringFixed(3)
}

/*
LiToYuanFloat 厘转浮点元，仅用于展示和聚合视图
*/
func LiToYuanFloat(li int64) float64 {
	v, _ := decimal.NewFromInt(li).Div(decLiPerYuan).Float64()
	return v
}

/*
SharesToHand 股转手，要求非负且整百，零股截断到手
*/
func SharesToHand(shares int64) (int64, *errs.Error) {
	if shares < 0 {
		return 0, errs.NewMsg(core.ErrBadSourceResp, "negative volume: %d", shares)
	}
	return shares / SharesPerHand, nil
}

/*
HandText 手数的字符串解析，来源可能带小数(少数指数行情)，按四舍五入处理
*/
func HandText(text string) (int64, *errs.Error) {
	if text == "" {
		return 0, nil
	}
	val, err := decimal.NewFromString(text)
	if err != nil {
		return 0, errs.New(core.ErrBadSourceResp, err)
	}
	if val.IsNegative() {
		return 0, errs.NewMsg(core.ErrBadSourceResp, "negative volume: %s", text)
	}
	return val.Round(0).IntPart(), nil
}

/*
HandToShares 手转股
*/
func HandToShares(hand int64) int64 {
	return decimal.NewFromInt(hand).Mul(decHand).IntPart()
}
