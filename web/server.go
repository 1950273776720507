package web

import (
	"fmt"
	"strings"

	"github.com/aistock/tdxdata/config"
	"github.com/aistock/tdxdata/errs"
	"github.com/aistock/tdxdata/ingest"
	"github.com/aistock/tdxdata/log"
	"github.com/aistock/tdxdata/sched"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

type Server struct {
	orc  *ingest.Orchestrator
	schd *sched.Scheduler
}

/*
StartApi 启动管理API，监听地址来自api_server配置。

返回后服务在后台运行，出错只记日志不中断主流程。
*/
func StartApi(orc *ingest.Orchestrator, schd *sched.Scheduler) *errs.Error {
	cfg := config.APIServer
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	srv := &Server{orc: orc, schd: schd}
	app := fiber.New(fiber.Config{
		AppName:      "tdxdata",
		ErrorHandler: ErrHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.CORSOrigins, ", "),
		AllowMethods:     "*",
		AllowHeaders:     "*",
		AllowCredentials: len(cfg.CORSOrigins) > 0,
		ExposeHeaders:    "*",
	}))

	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "running"})
	})

	// 生效配置的yaml视图，database/tushare段含密钥不输出
	onDumpConfig := func(c *fiber.Ctx) error {
		content, err := config.DumpYamlStr()
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "text/yaml")
		return c.SendString(content)
	}
	api := app.Group("/api")
	api.Get("/config", onDumpConfig)
	srv.regIngest(api.Group("/ingest"))
	srv.regSched(api.Group("/schedules"))

	addr := fmt.Sprintf("%s:%v", cfg.ListenIPAddress, cfg.ListenPort)
	log.Info("serve api at", zap.String("addr", addr))
	go func() {
		if err := app.Listen(addr); err != nil {
			log.Error("run api fail", zap.Error(err))
		}
	}()
	return nil
}
