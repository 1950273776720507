package orm

import (
	"testing"

	"github.com/aistock/tdxdata/config"
)

func withBatchSize(t *testing.T, size int) {
	t.Helper()
	old := config.Ingest
	config.Ingest = &config.IngestConfig{BatchSize: size}
	t.Cleanup(func() {
		config.Ingest = old
	})
}

func TestBatchRows(t *testing.T) {
	withBatchSize(t, 5000)
	rows := make([]int, 12000)
	chunks := batchRows(rows, 6)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	wants := []int{5000, 5000, 2000}
	total := 0
	for i, c := range chunks {
		if len(c) != wants[i] {
			t.Fatalf("chunk %d len = %d, want %d", i, len(c), wants[i])
		}
		if len(c)*6 > maxBindParams {
			t.Fatalf("chunk %d exceeds bind param limit", i)
		}
		total += len(c)
	}
	if total != len(rows) {
		t.Fatalf("total = %d, want %d", total, len(rows))
	}
}

// 配置的批大小再大，单批参数数也不能超过pgx上限
func TestBatchRowsParamCap(t *testing.T) {
	withBatchSize(t, 20000)
	rows := make([]int, 9000)
	chunks := batchRows(rows, 10)
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want >= 2", len(chunks))
	}
	for i, c := range chunks {
		if len(c)*10 > maxBindParams {
			t.Fatalf("chunk %d has %d rows, %d params exceeds limit", i, len(c), len(c)*10)
		}
	}
}

func TestBatchRowsSmall(t *testing.T) {
	withBatchSize(t, 5000)
	if got := batchRows([]int{}, 6); got != nil {
		t.Fatalf("empty input should yield nil, got %d chunks", len(got))
	}
	chunks := batchRows([]int{1, 2, 3}, 6)
	if len(chunks) != 1 || len(chunks[0]) != 3 {
		t.Fatalf("small input should stay one chunk")
	}
	// 配置缺失时走默认批大小
	config.Ingest = nil
	chunks = batchRows(make([]int, 5001), 6)
	if len(chunks) != 2 || len(chunks[0]) != 5000 {
		t.Fatalf("default batch size should be 5000")
	}
}
