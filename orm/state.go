package orm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/jackc/pgx/v5"
)

// StateAllCodes 数据集级游标使用的ts_code占位值
const StateAllCodes = "*"

func (q *Queries) GetState(ctx context.Context, dataset, tsCode string) (*IngestState, *errs.Error) {
	if tsCode == "" {
		tsCode = StateAllCodes
	}
	row := q.db.QueryRow(ctx, `SELECT dataset, ts_code, last_success_date, last_success_time, extra
FROM market.ingestion_state WHERE dataset=$1 AND ts_code=$2`, dataset, tsCode)
	var it IngestState
	err := row.Scan(&it.Dataset, &it.TsCode, &it.LastSuccessDate, &it.LastSuccessTime, &it.Extra)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, NewDbErr(core.ErrDbReadFail, err)
	}
	it.TsCode = strings.TrimSpace(it.TsCode)
	return &it, nil
}

/*
AdvanceState 推进断点游标，带CAS保护

prior为调用方读到的旧游标日期(无记录时传nil)。只有当数据库中的游标
仍等于prior时才推进；否则说明有并发任务已改写，返回ErrCheckpointRace。
游标只前进不后退，newDate早于当前游标时同样判定冲突。
*/
func (q *Queries) AdvanceState(ctx context.Context, dataset, tsCode string, prior *time.Time, newDate time.Time, newTime *time.Time, extra map[string]interface{}) *errs.Error {
	if tsCode == "" {
		tsCode = StateAllCodes
	}
	if prior == nil {
		tag, err := q.db.Exec(ctx, `INSERT INTO market.ingestion_state (dataset, ts_code, last_success_date, last_success_time, extra)
VALUES ($1, $2, $3, $4, $5) ON CONFLICT (dataset, ts_code) DO NOTHING`,
			dataset, tsCode, newDate, newTime, extra)
		if err != nil {
			return NewDbErr(core.ErrDbExecFail, err)
		}
		if tag.RowsAffected() == 0 {
			return errs.NewMsg(core.ErrCheckpointRace, "state %s/%s created concurrently", dataset, tsCode)
		}
		return nil
	}
	tag, err := q.db.Exec(ctx, `UPDATE market.ingestion_state
SET last_success_date=$1, last_success_time=$2, extra=COALESCE($3, extra)
WHERE dataset=$4 AND ts_code=$5 AND last_success_date=$6 AND last_success_date <= $1`,
		newDate, newTime, extra, dataset, tsCode, *prior)
	if err != nil {
		return NewDbErr(core.ErrDbExecFail, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NewMsg(core.ErrCheckpointRace, "state %s/%s advanced concurrently", dataset, tsCode)
	}
	return nil
}

/*
ResetState 删除断点，强制全量时使用
*/
func (q *Queries) ResetState(ctx context.Context, dataset string, tsCodes []string) (int64, *errs.Error) {
	var sqlStr string
	args := []interface{}{dataset}
	if len(tsCodes) > 0 {
		sqlStr = "DELETE FROM market.ingestion_state WHERE dataset=$1 AND ts_code = ANY($2)"
		args = append(args, tsCodes)
	} else {
		sqlStr = "DELETE FROM market.ingestion_state WHERE dataset=$1"
	}
	tag, err := q.db.Exec(ctx, sqlStr, args...)
	if err != nil {
		return 0, NewDbErr(core.ErrDbExecFail, err)
	}
	return tag.RowsAffected(), nil
}

/*
ListStates 列出数据集下所有游标
*/
func (q *Queries) ListStates(ctx context.Context, dataset string) ([]*IngestState, *errs.Error) {
	rows, err_ := q.db.Query(ctx, `SELECT dataset, ts_code, last_success_date, last_success_time, extra
FROM market.ingestion_state WHERE dataset=$1 ORDER BY ts_code`, dataset)
	items, err_ := mapToItems(rows, err_, func() (*IngestState, []any) {
		var it IngestState
		return &it, []any{&it.Dataset, &it.TsCode, &it.LastSuccessDate, &it.LastSuccessTime, &it.Extra}
	})
	if err_ != nil {
		return nil, NewDbErr(core.ErrDbReadFail, err_)
	}
	for _, it := range items {
		it.TsCode = strings.TrimSpace(it.TsCode)
	}
	return items, nil
}
