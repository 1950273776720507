package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeYaml(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMergeYamlStr(t *testing.T) {
	dir := t.TempDir()
	base := writeYaml(t, dir, "base.yml", `name: tdxdata
database:
  url: postgres://localhost/market
  max_pool_size: 10
ingest:
  concurrency: 6
`)
	local := writeYaml(t, dir, "local.yml", `database:
  max_pool_size: 30
tushare:
  token: secret-token
`)
	out, err := MergeYamlStr([]string{base, local}, "tushare")
	if err != nil {
		t.Fatal(err)
	}
	// 后加载的文件覆盖，嵌套段落深度合并
	if !strings.Contains(out, "max_pool_size: 30") {
		t.Fatalf("override lost:\n%s", out)
	}
	if !strings.Contains(out, "url: postgres://localhost/market") {
		t.Fatalf("sibling key lost in deep merge:\n%s", out)
	}
	if !strings.Contains(out, "concurrency: 6") {
		t.Fatalf("base section lost:\n%s", out)
	}
	// 跳过的段落不得出现
	if strings.Contains(out, "tushare") || strings.Contains(out, "secret-token") {
		t.Fatalf("skipped section leaked:\n%s", out)
	}
}

func TestMergeYamlStrMissingFile(t *testing.T) {
	_, err := MergeYamlStr([]string{filepath.Join(t.TempDir(), "absent.yml")})
	if err == nil {
		t.Fatal("expect error for missing file")
	}
}
