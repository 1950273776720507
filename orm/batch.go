package orm

import (
	"github.com/aistock/tdxdata/config"
)

// maxBindParams pgx扩展协议单条语句的绑定参数上限
const maxBindParams = 65535

/*
batchRows 将待写入的行切分为多个批次。

单批行数不超过ingest.batch_size，并按每行参数个数收紧，
保证多行INSERT的占位符总数不触及pgx的参数上限。
*/
func batchRows[T any](rows []T, argsPerRow int) [][]T {
	size := 5000
	if config.Ingest != nil && config.Ingest.BatchSize > 0 {
		size = config.Ingest.BatchSize
	}
	if argsPerRow > 0 {
		if limit := maxBindParams / argsPerRow; size > limit {
			size = limit
		}
	}
	if size < 1 {
		size = 1
	}
	if len(rows) <= size {
		if len(rows) == 0 {
			return nil
		}
		return [][]T{rows}
	}
	res := make([][]T, 0, len(rows)/size+1)
	for len(rows) > size {
		res = append(res, rows[:size])
		rows = rows[size:]
	}
	if len(rows) > 0 {
		res = append(res, rows)
	}
	return res
}
