package config

var (
	Data   Config
	Args   *CmdArgs
	Loaded bool
	Debug  bool

	Name      string
	DataDir   string
	Database  *DatabaseConfig
	Tdx       *TdxConfig
	Tushare   *TushareConfig
	Ingest    *IngestConfig
	APIServer *APIServerConfig
)

// Config 是根配置结构体
type Config struct {
	Name      string           `yaml:"name" mapstructure:"name"`
	Env       string           `yaml:"env" mapstructure:"env"`
	Database  *DatabaseConfig  `yaml:"database" mapstructure:"database" validate:"required"`
	Tdx       *TdxConfig       `yaml:"tdx" mapstructure:"tdx"`
	Tushare   *TushareConfig   `yaml:"tushare" mapstructure:"tushare"`
	Ingest    *IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	APIServer *APIServerConfig `yaml:"api_server" mapstructure:"api_server"`
}

type DatabaseConfig struct {
	Url         string `yaml:"url" mapstructure:"url" validate:"required"`
	Retention   string `yaml:"retention" mapstructure:"retention"`
	MaxPoolSize int    `yaml:"max_pool_size" mapstructure:"max_pool_size"`
	AutoCreate  bool   `yaml:"auto_create" mapstructure:"auto_create"`
}

// TdxConfig 行情HTTP源配置
type TdxConfig struct {
	ApiBase     string `yaml:"api_base" mapstructure:"api_base" validate:"omitempty,url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"` // 增量接口超时，默认10
	BulkTimeout int    `yaml:"bulk_timeout" mapstructure:"bulk_timeout"` // 全量接口超时，默认30
	VipdocDir   string `yaml:"vipdoc_dir" mapstructure:"vipdoc_dir"`     // 本地vipdoc目录，可选
	RateMS      int    `yaml:"rate_ms" mapstructure:"rate_ms"`           // 请求最小间隔毫秒
	BreakFails  int    `yaml:"break_fails" mapstructure:"break_fails"`   // 熔断连续失败阈值，默认5
	BreakSecs   int    `yaml:"break_secs" mapstructure:"break_secs"`     // 熔断打开时长秒，默认60
}

type TushareConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	ApiBase string `yaml:"api_base" mapstructure:"api_base"`
}

// IngestConfig 摄取任务配置
type IngestConfig struct {
	Concurrency  int    `yaml:"concurrency" mapstructure:"concurrency" validate:"omitempty,min=1,max=64"`
	BatchSize    int    `yaml:"batch_size" mapstructure:"batch_size"`
	SymbolChunk  int    `yaml:"symbol_chunk" mapstructure:"symbol_chunk"` // 每个子任务的标的数量
	SliceDays    int    `yaml:"slice_days" mapstructure:"slice_days"`     // 日期切片天数
	MaxRetries   int    `yaml:"max_retries" mapstructure:"max_retries"`
	DefaultStart string `yaml:"default_start" mapstructure:"default_start"` // 无检查点时的起始日 20060102
}

type APIServerConfig struct {
	Enabled         bool     `yaml:"enabled" mapstructure:"enabled"`
	ListenIPAddress string   `yaml:"listen_ip_address" mapstructure:"listen_ip_address"`
	ListenPort      int      `yaml:"listen_port" mapstructure:"listen_port"`
	CORSOrigins     []string `yaml:"CORS_origins" mapstructure:"CORS_origins"`
}

type ArrString []string

func (i *ArrString) String() string {
	return "my string representation"
}

func (i *ArrString) Set(value string) error {
	*i = append(*i, value)
	return nil
}

type CmdArgs struct {
	Configs     ArrString
	Logfile     string
	DataDir     string
	NoDefault   bool
	Debug       bool
	MaxPoolSize int
	RawCodes    string
	Codes       []string
	Dataset     string
	Mode        string
	TimeStart   string
	TimeEnd     string
	AdjType     string // 复权类型: qfq,hfq,none
	Concur      int
	Force       bool
	OutPath     string
	OutFormat   string // csv/xlsx
	JobId       string
}
