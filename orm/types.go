package orm

import (
	"time"

	"github.com/google/uuid"
)

/*
DailyBar 日线行情，open等价格为厘，volume为手，amount为厘
*/
type DailyBar struct {
	TsCode     string
	TradeDate  time.Time
	OpenLi     int64
	HighLi     int64
	LowLi      int64
	CloseLi    int64
	VolumeHand int64
	AmountLi   int64
	Source     string
}

/*
MinuteBar 1分钟K线，trade_time为bar结束时刻(交易所惯例)
*/
type MinuteBar struct {
	TsCode     string
	TradeTime  time.Time
	Freq       string
	OpenLi     int64
	HighLi     int64
	LowLi      int64
	CloseLi    int64
	VolumeHand int64
	AmountLi   int64
	Source     string
}

/*
TickTrade 逐笔成交，status: 0买 1卖 -1未知
*/
type TickTrade struct {
	TsCode     string
	TradeTime  time.Time
	PriceLi    int64
	VolumeHand int64
	Status     int16
	Source     string
}

type IndexDailyBar struct {
	Code       string
	TradeDate  time.Time
	OpenLi     int64
	HighLi     int64
	LowLi      int64
	CloseLi    int64
	VolumeHand int64
	AmountLi   int64
	UpCount    int32
	DownCount  int32
	Source     string
}

type SymbolDim struct {
	TsCode   string
	Symbol   string
	Exchange string
	Name     string
	Industry string
	ListDate *time.Time
}

type AdjFactor struct {
	TsCode    string
	TradeDate time.Time
	Factor    float64
	SyncAt    time.Time
}

type IngestJob struct {
	JobID      uuid.UUID
	JobType    string
	Status     string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	Summary    map[string]interface{}
}

type JobTask struct {
	TaskID    uuid.UUID
	JobID     uuid.UUID
	Dataset   string
	TsCode    string
	DateFrom  *time.Time
	DateTo    *time.Time
	Status    string
	Progress  float64
	Retries   int32
	LastError string
	UpdatedAt time.Time
}

type IngestRun struct {
	RunID      uuid.UUID
	Mode       string
	Dataset    string
	Status     string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	Params     map[string]interface{}
	Summary    map[string]interface{}
}

/*
IngestState 数据集×标的的断点游标，ts_code为'*'时表示整个数据集
*/
type IngestState struct {
	Dataset         string
	TsCode          string
	LastSuccessDate *time.Time
	LastSuccessTime *time.Time
	Extra           map[string]interface{}
}

type IngestLog struct {
	JobID   uuid.UUID
	Ts      time.Time
	Level   string
	Message string
}

type IngestSchedule struct {
	ScheduleID uuid.UUID
	Dataset    string
	Mode       string
	Frequency  string
	Enabled    bool
	Options    map[string]interface{}
	LastRunAt  *time.Time
	NextRunAt  *time.Time
	LastStatus string
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type BoardIndex struct {
	TradeDate time.Time
	TsCode    string
	Name      string
	IdxType   string
	IdxCount  int32
}

type BoardMember struct {
	TradeDate time.Time
	TsCode    string
	ConCode   string
	ConName   string
}

type BoardDaily struct {
	TradeDate time.Time
	TsCode    string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	PreClose  float64
	Change    float64
	PctChg    float64
	Vol       float64
	Amount    float64
}

type CalDate struct {
	CalDate   time.Time
	IsTrading bool
}
