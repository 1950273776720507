package entry

import (
	"github.com/aistock/tdxdata/config"
	"github.com/aistock/tdxdata/errs"
	"github.com/aistock/tdxdata/log"
	"github.com/aistock/tdxdata/orm"
)

/*
SetupComs 初始化公共组件：配置、日志、数据库连接池。

所有子命令入口先调用这里，保证组件初始化顺序一致。
*/
func SetupComs(args *config.CmdArgs) *errs.Error {
	err := config.LoadConfig(args)
	if err != nil {
		return err
	}
	log.Setup(args.Debug, args.Logfile)
	return orm.Setup()
}
