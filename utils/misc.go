package utils

import (
	"math"
	"net/url"
	"strings"
)

const thresFloat64Eq = 1e-9

/*
DeepCopyMap 将src中的键值深度合并到dst
*/
func DeepCopyMap(dst, src map[string]interface{}) {
	for key, value := range src {
		if srcMap, ok := value.(map[string]interface{}); ok {
			if dstMap, ok := dst[key].(map[string]interface{}); ok {
				DeepCopyMap(dstMap, srcMap)
				continue
			}
		}
		dst[key] = value
	}
}

/*
SplitSolid 字符串分割，忽略空串
*/
func SplitSolid(text string, sep string) []string {
	arr := strings.Split(text, sep)
	var result []string
	for _, str := range arr {
		str = strings.TrimSpace(str)
		if str != "" {
			result = append(result, str)
		}
	}
	return result
}

/*
EqualNearly 判断两个float是否近似相等，解决浮点精度问题
*/
func EqualNearly(a, b float64) bool {
	return EqualIn(a, b, thresFloat64Eq)
}

/*
EqualIn 判断两个float是否在一定范围内近似相等
*/
func EqualIn(a, b, thres float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return math.Abs(a-b) <= thres
}

/*
MaskDBUrl 隐藏连接串中的密码，用于日志输出
*/
func MaskDBUrl(dbUrl string) string {
	u, err := url.Parse(dbUrl)
	if err != nil || u.User == nil {
		return dbUrl
	}
	if _, has := u.User.Password(); has {
		u.User = url.UserPassword(u.User.Username(), "****")
	}
	return u.String()
}
