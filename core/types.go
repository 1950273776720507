package core

/*
Kline 单根K线，价格以厘(0.001元)存储，成交量以手存储，成交额以厘存储
*/
type Kline struct {
	Time   int64 // 13位毫秒，bar起始时间
	Open   int64
	High   int64
	Low    int64
	Close  int64
	Volume int64
	Amount int64
}

/*
AdjKline 复权后K线，保留原始价用于校验
*/
type AdjKline struct {
	Kline
	Factor float64
}

/*
Tick 逐笔成交
*/
type Tick struct {
	Time   int64 // 毫秒
	Price  int64 // 厘
	Volume int64 // 手
	BS     string
}

/*
Symbol 证券主数据
*/
type Symbol struct {
	TsCode   string
	Code     string
	Name     string
	Exchange string
	Market   string
	ListDate string
	Status   string
}
