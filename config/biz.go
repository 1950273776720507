package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/aistock/tdxdata/log"
	"github.com/aistock/tdxdata/utils"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

func GetDataDir() string {
	if DataDir == "" {
		DataDir = getEnvPath("TdxDataDir")
		if DataDir == "" {
			panic("env `TdxDataDir` or args `-datadir` is required")
		}
	}
	return DataDir
}

func GetLogsDir() string {
	logDir := filepath.Join(GetDataDir(), "logs")
	err := utils.EnsureDir(logDir, 0755)
	if err != nil {
		panic(err)
	}
	return logDir
}

func getEnvPath(key string) string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return ""
	}
	absPath, err := filepath.Abs(raw)
	if err != nil {
		panic(err)
	}
	return absPath
}

func LoadConfig(args *CmdArgs) *errs.Error {
	if Loaded {
		return nil
	}
	cfg, err := GetConfig(args, true)
	if err != nil {
		return err
	}
	return ApplyConfig(args, cfg)
}

func GetConfig(args *CmdArgs, showLog bool) (*Config, *errs.Error) {
	args.Init()
	paths := configPaths(args)
	res, err := ParseConfigs(paths, showLog)
	if err != nil {
		return nil, err
	}
	res.Apply(args)
	if err_ := validate.Struct(res); err_ != nil {
		return nil, errs.NewFull(core.ErrBadConfig, err_, "config validate fail")
	}
	return res, nil
}

func configPaths(args *CmdArgs) []string {
	var paths []string
	if !args.NoDefault {
		dataDir := GetDataDir()
		tryNames := []string{"config.yml", "config.local.yml"}
		for _, name := range tryNames {
			path := filepath.Join(dataDir, name)
			if utils.Exists(path) {
				paths = append(paths, path)
			}
		}
	}
	if len(args.Configs) > 0 {
		paths = append(paths, args.Configs...)
	}
	return paths
}

/*
DumpYamlStr 输出合并后的生效配置，跳过含密钥的段落
*/
func DumpYamlStr() (string, *errs.Error) {
	if Args == nil {
		return "", errs.NewMsg(core.ErrBadConfig, "config not loaded")
	}
	paths := configPaths(Args)
	if len(paths) == 0 {
		return "", nil
	}
	content, err := utils.MergeYamlStr(paths, "database", "tushare")
	if err != nil {
		return "", errs.New(errs.CodeIOReadFail, err)
	}
	return content, nil
}

func ParseConfigs(paths []string, showLog bool) (*Config, *errs.Error) {
	var res Config
	var merged = make(map[string]interface{})
	for _, path := range paths {
		if showLog {
			log.Info("Using " + path)
		}
		fileData, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.NewFull(errs.CodeIOReadFail, err, "Read %s Fail", path)
		}
		var unpak map[string]interface{}
		err = yaml.Unmarshal(fileData, &unpak)
		if err != nil {
			return nil, errs.NewFull(errs.CodeUnmarshalFail, err, "Unmarshal %s Fail", path)
		}
		utils.DeepCopyMap(merged, unpak)
	}
	err := mapstructure.Decode(merged, &res)
	if err != nil {
		return nil, errs.NewFull(errs.CodeUnmarshalFail, err, "decode Config Fail")
	}
	res.fillDefaults()
	return &res, nil
}

func (c *Config) fillDefaults() {
	if c.Database == nil {
		c.Database = &DatabaseConfig{}
	}
	if c.Database.MaxPoolSize == 0 {
		c.Database.MaxPoolSize = 30
	}
	if c.Tdx == nil {
		c.Tdx = &TdxConfig{}
	}
	if c.Tdx.ApiBase == "" {
		c.Tdx.ApiBase = "http://127.0.0.1:7709"
	}
	if c.Tdx.TimeoutSecs == 0 {
		c.Tdx.TimeoutSecs = 10
	}
	if c.Tdx.BulkTimeout == 0 {
		c.Tdx.BulkTimeout = 30
	}
	if c.Tdx.BreakFails == 0 {
		c.Tdx.BreakFails = 5
	}
	if c.Tdx.BreakSecs == 0 {
		c.Tdx.BreakSecs = 60
	}
	if c.Tushare == nil {
		c.Tushare = &TushareConfig{}
	}
	if c.Tushare.ApiBase == "" {
		c.Tushare.ApiBase = "https://api.tushare.pro"
	}
	if c.Ingest == nil {
		c.Ingest = &IngestConfig{}
	}
	if c.Ingest.Concurrency == 0 {
		c.Ingest.Concurrency = 6
	}
	if c.Ingest.BatchSize == 0 {
		c.Ingest.BatchSize = 5000
	}
	if c.Ingest.SymbolChunk == 0 {
		c.Ingest.SymbolChunk = 100
	}
	if c.Ingest.SliceDays == 0 {
		c.Ingest.SliceDays = 90
	}
	if c.Ingest.MaxRetries == 0 {
		c.Ingest.MaxRetries = 3
	}
	if c.Ingest.DefaultStart == "" {
		c.Ingest.DefaultStart = "19901219"
	}
	if c.APIServer == nil {
		c.APIServer = &APIServerConfig{ListenIPAddress: "127.0.0.1", ListenPort: 8901}
	}
}

func (c *Config) Apply(args *CmdArgs) {
	if args.MaxPoolSize > 0 {
		c.Database.MaxPoolSize = args.MaxPoolSize
	}
	if args.Concur > 0 {
		c.Ingest.Concurrency = args.Concur
	}
}

/*
ApplyConfig 将配置绑定到包级变量
*/
func ApplyConfig(args *CmdArgs, c *Config) *errs.Error {
	Data = *c
	Args = args
	Loaded = true
	Debug = args.Debug
	Name = c.Name
	if Name == "" {
		Name = "tdxdata"
	}
	Database = c.Database
	Tdx = c.Tdx
	Tushare = c.Tushare
	Ingest = c.Ingest
	APIServer = c.APIServer
	return nil
}

func (a *CmdArgs) Init() {
	a.Codes = utils.SplitSolid(a.RawCodes, ",")
}
