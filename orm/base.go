package orm

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"strings"

	"github.com/aistock/tdxdata/config"
	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/aistock/tdxdata/log"
	"github.com/aistock/tdxdata/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var (
	pool *pgxpool.Pool
)

//go:embed sql/schema.sql
var ddlSchema string

//go:embed sql/hypertable.sql
var ddlHypertable string

//go:embed sql/indexes.sql
var ddlIndexes string

//go:embed sql/compress.sql
var ddlCompress string

//go:embed sql/cagg.sql
var ddlCagg string

//go:embed sql/migrations.sql
var ddlMigrations string

var ddlDbConf = `DO $$
BEGIN
    IF NOT EXISTS (SELECT FROM pg_tables WHERE schemaname = 'market' AND tablename = 'dbconf') THEN
        CREATE TABLE market.dbconf (
            key varchar(50) PRIMARY KEY not null,
            value text not null
        );
        INSERT INTO market.dbconf (key,value) VALUES ('schema_version', '0');
    END IF;
END $$;`

const (
	PhaseSchema     = "schema"
	PhaseHypertable = "hypertable"
	PhaseIndexes    = "indexes"
	PhaseCompress   = "compression"
	PhaseCagg       = "cagg"
)

// AllPhases 按依赖顺序排列
var AllPhases = []string{PhaseSchema, PhaseHypertable, PhaseIndexes, PhaseCompress, PhaseCagg}

func Setup() *errs.Error {
	if pool != nil {
		pool.Close()
		pool = nil
	}
	var err2 *errs.Error
	pool, err2 = pgConnPool()
	if err2 != nil {
		return err2
	}
	dbCfg := config.Database
	ctx := context.Background()
	row := pool.QueryRow(ctx, "SELECT COUNT(*) FROM pg_tables WHERE schemaname='market' AND tablename = 'symbol_dim'")
	var tblCnt int64
	err := row.Scan(&tblCnt)
	if err != nil {
		dbErr := NewDbErr(core.ErrDbReadFail, err)
		if dbCfg.AutoCreate && dbErr.Code == core.ErrDbConnFail && dbErr.Message() == "db not exist" {
			// 数据库不存在，需要创建
			log.Warn("database not exist, creating...")
			err2 = createPgDb(dbCfg.Url)
			if err2 != nil {
				return err2
			}
			pool, err2 = pgConnPool()
			if err2 != nil {
				return err2
			}
		} else {
			return dbErr
		}
	}
	if tblCnt == 0 {
		// 表不存在，全量初始化
		log.Warn("initializing market schema ...")
		err2 = InitSchema(ctx, AllPhases...)
		if err2 != nil {
			return err2
		}
	} else {
		// 执行数据库迁移
		err2 = runMigrations(ctx, pool)
		if err2 != nil {
			return err2
		}
	}
	log.Info("connect db ok", zap.String("url", utils.MaskDBUrl(dbCfg.Url)), zap.Int("pool", dbCfg.MaxPoolSize))
	return nil
}

/*
InitSchema 按阶段初始化库表结构

schema/hypertable/indexes批量执行；compression逐条执行并容忍重复设置；
cagg必须逐条自动提交执行，连续聚合不允许在事务内创建
*/
func InitSchema(ctx context.Context, phases ...string) *errs.Error {
	if ctx == nil {
		ctx = context.Background()
	}
	for _, phase := range phases {
		log.Info("init schema phase", zap.String("phase", phase))
		var err error
		switch phase {
		case PhaseSchema:
			_, err = pool.Exec(ctx, ddlSchema)
			if err == nil {
				err2 := runMigrations(ctx, pool)
				if err2 != nil {
					return err2
				}
			}
		case PhaseHypertable:
			_, err = pool.Exec(ctx, ddlHypertable)
		case PhaseIndexes:
			_, err = pool.Exec(ctx, ddlIndexes)
		case PhaseCompress:
			for _, stmt := range strings.Split(ddlCompress, "\n") {
				stmt = strings.TrimSpace(stmt)
				if stmt == "" {
					continue
				}
				if _, err = pool.Exec(ctx, stmt); err != nil {
					// 压缩参数重复设置时报错可忽略
					if strings.Contains(err.Error(), "already") {
						err = nil
						continue
					}
					break
				}
			}
		case PhaseCagg:
			for _, stmt := range strings.Split(ddlCagg, "-- split") {
				stmt = strings.TrimSpace(stmt)
				if stmt == "" {
					continue
				}
				if _, err = pool.Exec(ctx, stmt); err != nil {
					break
				}
			}
		default:
			return errs.NewMsg(core.ErrBadConfig, "unknown schema phase: %s", phase)
		}
		if err != nil {
			return NewDbErr(core.ErrDbExecFail, err)
		}
	}
	return nil
}

func pgConnPool() (*pgxpool.Pool, *errs.Error) {
	dbCfg := config.Database
	if dbCfg == nil {
		return nil, errs.NewMsg(core.ErrBadConfig, "database config is missing!")
	}
	poolCfg, err_ := pgxpool.ParseConfig(dbCfg.Url)
	if err_ != nil {
		return nil, errs.New(core.ErrBadConfig, err_)
	}
	if dbCfg.MaxPoolSize == 0 {
		dbCfg.MaxPoolSize = max(30, runtime.NumCPU()*4)
	}
	poolCfg.MaxConns = int32(dbCfg.MaxPoolSize)
	dbPool, err_ := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err_ != nil {
		return nil, errs.New(core.ErrDbConnFail, err_)
	}
	return dbPool, nil
}

func createPgDb(dbUrl string) *errs.Error {
	// 连接到默认的postgres数据库
	tmpConfig, err_ := pgx.ParseConfig(dbUrl)
	if err_ != nil {
		return errs.New(core.ErrBadConfig, err_)
	}
	dbName := tmpConfig.Database
	tmpConfig.Database = "postgres"
	conn, err_ := pgx.ConnectConfig(context.Background(), tmpConfig)
	if err_ != nil {
		return errs.New(core.ErrDbConnFail, err_)
	}
	defer conn.Close(context.Background())

	_, err_ = conn.Exec(context.Background(), fmt.Sprintf("CREATE DATABASE %s", dbName))
	if err_ != nil {
		return errs.New(core.ErrDbExecFail, err_)
	}
	return nil
}

// DBTX 兼容连接池、单连接和事务
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

func Conn(ctx context.Context) (*Queries, *pgxpool.Conn, *errs.Error) {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, nil, errs.New(core.ErrDbConnFail, err)
	}
	return New(conn), conn, nil
}

type Tx struct {
	tx     pgx.Tx
	closed bool
}

func (t *Tx) Close(ctx context.Context, commit bool) *errs.Error {
	if t.closed {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var err error
	if commit {
		err = t.tx.Commit(ctx)
	} else {
		err = t.tx.Rollback(ctx)
	}
	t.closed = true
	if err != nil {
		return NewDbErr(core.ErrDbExecFail, err)
	}
	return nil
}

func (q *Queries) NewTx(ctx context.Context) (*Tx, *Queries, *errs.Error) {
	if ctx == nil {
		ctx = context.Background()
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, nil, errs.New(core.ErrDbConnFail, err)
	}
	nq := q.WithTx(tx)
	return &Tx{tx: tx}, nq, nil
}

func (q *Queries) Exec(sql string, args ...interface{}) *errs.Error {
	_, err_ := q.db.Exec(context.Background(), sql, args...)
	if err_ != nil {
		return NewDbErr(core.ErrDbExecFail, err_)
	}
	return nil
}

func NewDbErr(code int, err_ error) *errs.Error {
	var opErr *net.OpError
	var pgErr *pgconn.ConnectError
	if errors.As(err_, &opErr) {
		if strings.Contains(opErr.Err.Error(), "connection reset") {
			return errs.New(core.ErrDbConnFail, err_)
		}
	} else if errors.As(err_, &pgErr) {
		var errMsg = pgErr.Error()
		if strings.Contains(errMsg, "SQLSTATE 3D000") {
			return errs.NewMsg(core.ErrDbConnFail, "db not exist")
		}
	}
	return errs.New(code, err_)
}

// 执行数据库迁移
func runMigrations(ctx context.Context, pool *pgxpool.Pool) *errs.Error {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT FROM pg_tables WHERE schemaname = 'market' AND tablename = 'dbconf')`).Scan(&exists)
	if err != nil {
		return NewDbErr(core.ErrDbReadFail, err)
	}

	if !exists {
		_, err = pool.Exec(ctx, ddlDbConf)
		if err != nil {
			return NewDbErr(core.ErrDbExecFail, err)
		}
	}

	var currentVersion int
	err = pool.QueryRow(ctx, "SELECT value::int FROM market.dbconf WHERE key = 'schema_version'").Scan(&currentVersion)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return NewDbErr(core.ErrDbReadFail, err)
	}

	migrations := strings.Split(ddlMigrations, "-- version")
	initVersion := currentVersion

	for _, migration := range migrations {
		if strings.TrimSpace(migration) == "" {
			continue
		}

		lines := strings.SplitN(migration, "\n", 2)
		if len(lines) < 2 {
			continue
		}
		versionStr := strings.TrimSpace(lines[0])
		version, err := strconv.Atoi(versionStr)
		if err != nil {
			log.Warn("invalid migration version", zap.String("version", versionStr))
			continue
		}
		if version <= currentVersion {
			continue
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return NewDbErr(core.ErrDbExecFail, err)
		}

		_, err = tx.Exec(ctx, lines[1])
		if err != nil {
			tx.Rollback(ctx)
			return NewDbErr(core.ErrDbExecFail, err)
		}

		_, err = tx.Exec(ctx, "UPDATE market.dbconf SET value = $1 WHERE key = 'schema_version'", versionStr)
		if err != nil {
			tx.Rollback(ctx)
			return NewDbErr(core.ErrDbExecFail, err)
		}

		err = tx.Commit(ctx)
		if err != nil {
			return NewDbErr(core.ErrDbExecFail, err)
		}

		currentVersion = version
	}

	if initVersion < currentVersion {
		log.Info("database migration completed", zap.Int("from", initVersion), zap.Int("to", currentVersion))
	}
	return nil
}

func Close() {
	if pool != nil {
		pool.Close()
		pool = nil
	}
}
