package core

const (
	// 复权方式
	AdjNone  = "none"
	AdjFront = "qfq"
	AdjBack  = "hfq"

	// 数据来源标记，写入每行的source字段
	SourceTdxApi    = "tdx_api"
	SourceTdxVipdoc = "tdx_vipdoc"
	SourceTushare   = "tushare_adj"
)

// Dataset identifiers. Each one maps to a storage table and an upstream
// fetch route; the orchestrator only ever sees these names.
const (
	DsKlineDailyRaw  = "kline_daily_raw"
	DsKlineDailyQfq  = "kline_daily_qfq"
	DsKlineDailyHfq  = "kline_daily_hfq"
	DsKlineWeekly    = "kline_weekly_qfq"
	DsKlineMonthly   = "kline_monthly_qfq"
	DsKlineMinuteRaw = "kline_minute_raw"
	DsTickTradeRaw   = "tick_trade_raw"
	DsSymbolDim      = "symbol_dim"
	DsAdjFactor      = "adj_factor"
	DsTdxBoard       = "tdx_board"
	DsTradeCal       = "trading_calendar"
	DsAdjustDaily    = "adjust_daily"
)

var DatasetNames = map[string]bool{
	DsKlineDailyRaw:  true,
	DsKlineDailyQfq:  true,
	DsKlineDailyHfq:  true,
	DsKlineWeekly:    true,
	DsKlineMonthly:   true,
	DsKlineMinuteRaw: true,
	DsTickTradeRaw:   true,
	DsSymbolDim:      true,
	DsAdjFactor:      true,
	DsTdxBoard:       true,
	DsTradeCal:       true,
	DsAdjustDaily:    true,
}

// Job/Task lifecycle states. Terminal states are succeeded/failed/cancelled.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

func IsTerminalStatus(status string) bool {
	return status == StatusSucceeded || status == StatusFailed || status == StatusCancelled
}

const (
	ModeInit        = "init"
	ModeIncremental = "incremental"
)

const (
	SecsMin  = 60
	SecsHour = 3600
	SecsDay  = 86400
	SecsWeek = 604800
	// SecsMon 月线无固定长度，此值仅作周期标记，对齐走日历
	SecsMon = 2592000
)
