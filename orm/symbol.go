package orm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/jackc/pgx/v5"
)

/*
NormalizeTsCode 将6位代码规范为带交易所后缀的ts_code

6开头→.SH  8/4开头→.BJ  其余→.SZ
*/
func NormalizeTsCode(code string) (string, *errs.Error) {
	code = strings.TrimSpace(code)
	if len(code) != 6 {
		return "", errs.NewMsg(core.ErrInvalidSymbol, "bad code: %s", code)
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return "", errs.NewMsg(core.ErrInvalidSymbol, "bad code: %s", code)
		}
	}
	var suffix string
	switch code[0] {
	case '6':
		suffix = "SH"
	case '8', '4':
		suffix = "BJ"
	default:
		suffix = "SZ"
	}
	return code + "." + suffix, nil
}

/*
SplitTsCode 拆出6位代码和交易所
*/
func SplitTsCode(tsCode string) (string, string, *errs.Error) {
	parts := strings.Split(strings.TrimSpace(tsCode), ".")
	if len(parts) != 2 || len(parts[0]) != 6 {
		return "", "", errs.NewMsg(core.ErrInvalidSymbol, "bad ts_code: %s", tsCode)
	}
	return parts[0], parts[1], nil
}

func (q *Queries) UpsertSymbols(ctx context.Context, items []*SymbolDim) (int64, *errs.Error) {
	var total int64
	for _, chunk := range batchRows(items, 6) {
		var b strings.Builder
		b.WriteString("INSERT INTO market.symbol_dim (ts_code, symbol, exchange, name, industry, list_date) VALUES ")
		args := make([]interface{}, 0, len(chunk)*6)
		for i, it := range chunk {
			if i > 0 {
				b.WriteString(",")
			}
			pos := i * 6
			b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)", pos+1, pos+2, pos+3, pos+4, pos+5, pos+6))
			args = append(args, it.TsCode, it.Symbol, it.Exchange, it.Name, it.Industry, it.ListDate)
		}
		b.WriteString(` ON CONFLICT (ts_code) DO UPDATE SET
symbol=EXCLUDED.symbol, exchange=EXCLUDED.exchange, name=EXCLUDED.name,
industry=EXCLUDED.industry, list_date=EXCLUDED.list_date`)
		tag, err := q.db.Exec(ctx, b.String(), args...)
		if err != nil {
			return total, NewDbErr(core.ErrDbExecFail, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

/*
ListSymbols 查询标的列表，exchanges为空时返回全部
*/
func (q *Queries) ListSymbols(ctx context.Context, exchanges []string) ([]*SymbolDim, *errs.Error) {
	sqlStr := "SELECT ts_code, symbol, exchange, COALESCE(name,''), COALESCE(industry,''), list_date FROM market.symbol_dim"
	args := make([]interface{}, 0, 1)
	if len(exchanges) > 0 {
		sqlStr += " WHERE exchange = ANY($1)"
		args = append(args, exchanges)
	}
	sqlStr += " ORDER BY ts_code"
	rows, err_ := q.db.Query(ctx, sqlStr, args...)
	items, err_ := mapToItems(rows, err_, func() (*SymbolDim, []any) {
		var it SymbolDim
		return &it, []any{&it.TsCode, &it.Symbol, &it.Exchange, &it.Name, &it.Industry, &it.ListDate}
	})
	if err_ != nil {
		return nil, NewDbErr(core.ErrDbReadFail, err_)
	}
	for _, it := range items {
		it.TsCode = strings.TrimSpace(it.TsCode)
		it.Symbol = strings.TrimSpace(it.Symbol)
		it.Exchange = strings.TrimSpace(it.Exchange)
	}
	return items, nil
}

func (q *Queries) GetSymbol(ctx context.Context, tsCode string) (*SymbolDim, *errs.Error) {
	row := q.db.QueryRow(ctx, `SELECT ts_code, symbol, exchange, COALESCE(name,''), COALESCE(industry,''), list_date
FROM market.symbol_dim WHERE ts_code=$1`, tsCode)
	var it SymbolDim
	err := row.Scan(&it.TsCode, &it.Symbol, &it.Exchange, &it.Name, &it.Industry, &it.ListDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NewMsg(core.ErrInvalidSymbol, "symbol not found: %s", tsCode)
		}
		return nil, NewDbErr(core.ErrDbReadFail, err)
	}
	it.TsCode = strings.TrimSpace(it.TsCode)
	it.Symbol = strings.TrimSpace(it.Symbol)
	it.Exchange = strings.TrimSpace(it.Exchange)
	return &it, nil
}
