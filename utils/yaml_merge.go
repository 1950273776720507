package utils

import (
	"os"

	"github.com/aistock/tdxdata/core"
	"gopkg.in/yaml.v3"
)

/*
MergeYamlStr 合并多个yaml配置文件并重新序列化，后出现的文件覆盖先出现的。

嵌套的映射段落做深度合并，其余类型整体替换。
skips指定不输出的顶层段落，用于隐藏带凭据的配置。
*/
func MergeYamlStr(paths []string, skips ...string) (string, error) {
	merged := make(map[string]interface{})
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		data := make(map[string]interface{})
		if err = yaml.Unmarshal(content, &data); err != nil {
			return "", err
		}
		DeepCopyMap(merged, data)
	}
	for _, key := range skips {
		delete(merged, key)
	}
	out, err := core.MarshalYaml(merged)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
