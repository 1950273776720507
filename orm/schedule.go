package orm

import (
	"context"
	"errors"

	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

/*
CreateSchedule 新建或更新调度项。

(dataset, mode)唯一；冲突走更新路径时行保留原schedule_id，
必须以RETURNING拿到实际生效的id返回给调用方。
*/
func (q *Queries) CreateSchedule(ctx context.Context, it *IngestSchedule) (uuid.UUID, *errs.Error) {
	row := q.db.QueryRow(ctx, `INSERT INTO market.ingestion_schedules
(schedule_id, dataset, mode, frequency, enabled, options, next_run_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (dataset, mode) DO UPDATE SET
frequency=EXCLUDED.frequency, enabled=EXCLUDED.enabled, options=EXCLUDED.options,
next_run_at=EXCLUDED.next_run_at, updated_at=NOW()
RETURNING schedule_id`,
		uuid.New(), it.Dataset, it.Mode, it.Frequency, it.Enabled, it.Options, it.NextRunAt)
	var id uuid.UUID
	if err := row.Scan(&id); err != nil {
		return uuid.Nil, NewDbErr(core.ErrDbExecFail, err)
	}
	return id, nil
}

func (q *Queries) ListSchedules(ctx context.Context, onlyEnabled bool) ([]*IngestSchedule, *errs.Error) {
	sqlStr := `SELECT schedule_id, dataset, mode, frequency, enabled, options,
last_run_at, next_run_at, COALESCE(last_status,''), COALESCE(last_error,''), created_at, updated_at
FROM market.ingestion_schedules`
	if onlyEnabled {
		sqlStr += " WHERE enabled"
	}
	sqlStr += " ORDER BY dataset, mode"
	rows, err_ := q.db.Query(ctx, sqlStr)
	items, err_ := mapToItems(rows, err_, func() (*IngestSchedule, []any) {
		var it IngestSchedule
		return &it, []any{&it.ScheduleID, &it.Dataset, &it.Mode, &it.Frequency, &it.Enabled, &it.Options,
			&it.LastRunAt, &it.NextRunAt, &it.LastStatus, &it.LastError, &it.CreatedAt, &it.UpdatedAt}
	})
	if err_ != nil {
		return nil, NewDbErr(core.ErrDbReadFail, err_)
	}
	return items, nil
}

func (q *Queries) GetSchedule(ctx context.Context, id uuid.UUID) (*IngestSchedule, *errs.Error) {
	row := q.db.QueryRow(ctx, `SELECT schedule_id, dataset, mode, frequency, enabled, options,
last_run_at, next_run_at, COALESCE(last_status,''), COALESCE(last_error,''), created_at, updated_at
FROM market.ingestion_schedules WHERE schedule_id=$1`, id)
	var it IngestSchedule
	err := row.Scan(&it.ScheduleID, &it.Dataset, &it.Mode, &it.Frequency, &it.Enabled, &it.Options,
		&it.LastRunAt, &it.NextRunAt, &it.LastStatus, &it.LastError, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NewMsg(core.ErrJobNotFound, "schedule not found: %s", id)
		}
		return nil, NewDbErr(core.ErrDbReadFail, err)
	}
	return &it, nil
}

func (q *Queries) SetScheduleEnabled(ctx context.Context, id uuid.UUID, enabled bool) *errs.Error {
	tag, err := q.db.Exec(ctx, "UPDATE market.ingestion_schedules SET enabled=$1, updated_at=NOW() WHERE schedule_id=$2", enabled, id)
	if err != nil {
		return NewDbErr(core.ErrDbExecFail, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NewMsg(core.ErrJobNotFound, "schedule not found: %s", id)
	}
	return nil
}

/*
MarkScheduleRun 回写一次调度执行的结果和下次触发时间
*/
func (q *Queries) MarkScheduleRun(ctx context.Context, sch *IngestSchedule) *errs.Error {
	_, err := q.db.Exec(ctx, `UPDATE market.ingestion_schedules
SET last_run_at=$1, next_run_at=$2, last_status=$3, last_error=$4, updated_at=NOW()
WHERE schedule_id=$5`, sch.LastRunAt, sch.NextRunAt, sch.LastStatus, nullStr(sch.LastError), sch.ScheduleID)
	if err != nil {
		return NewDbErr(core.ErrDbExecFail, err)
	}
	return nil
}

func (q *Queries) DeleteSchedule(ctx context.Context, id uuid.UUID) *errs.Error {
	tag, err := q.db.Exec(ctx, "DELETE FROM market.ingestion_schedules WHERE schedule_id=$1", id)
	if err != nil {
		return NewDbErr(core.ErrDbExecFail, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NewMsg(core.ErrJobNotFound, "schedule not found: %s", id)
	}
	return nil
}
