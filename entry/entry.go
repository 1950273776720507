package entry

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aistock/tdxdata/btime"
	"github.com/aistock/tdxdata/config"
	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/aistock/tdxdata/ingest"
	"github.com/aistock/tdxdata/log"
	"github.com/aistock/tdxdata/orm"
	"github.com/aistock/tdxdata/sched"
	"github.com/aistock/tdxdata/utils"
	"github.com/aistock/tdxdata/web"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func RunInitDb(args *config.CmdArgs) *errs.Error {
	core.SetRunMode(core.RunModeOther)
	err := SetupComs(args)
	if err != nil {
		return err
	}
	defer orm.Close()
	err = orm.InitSchema(core.Ctx, orm.AllPhases...)
	if err != nil {
		return err
	}
	log.Info("schema initialized")
	return nil
}

func RunIngest(args *config.CmdArgs) *errs.Error {
	core.SetRunMode(core.RunModeBatch)
	err := SetupComs(args)
	if err != nil {
		return err
	}
	defer orm.Close()
	if args.Dataset == "" {
		return errs.NewMsg(errs.CodeParamRequired, "-dataset is required")
	}
	orc := ingest.New()
	jobID, err := orc.RunJob(core.Ctx, &ingest.JobArgs{
		Dataset: args.Dataset,
		Mode:    args.Mode,
		Codes:   args.Codes,
		Start:   args.TimeStart,
		End:     args.TimeEnd,
		Force:   args.Force,
	})
	if err != nil {
		return err
	}
	log.Info("ingest job done", zap.String("job", jobID.String()))
	return nil
}

func RunRetry(args *config.CmdArgs) *errs.Error {
	core.SetRunMode(core.RunModeBatch)
	err := SetupComs(args)
	if err != nil {
		return err
	}
	defer orm.Close()
	if args.JobId == "" {
		return errs.NewMsg(errs.CodeParamRequired, "-job is required")
	}
	jobID, err_ := uuid.Parse(args.JobId)
	if err_ != nil {
		return errs.NewMsg(errs.CodeParamInvalid, "invalid job id: %s", args.JobId)
	}
	orc := ingest.New()
	newID, err := orc.Retry(core.Ctx, jobID)
	if err != nil {
		return err
	}
	log.Info("retry job done", zap.String("job", newID.String()))
	return nil
}

func RunAdjust(args *config.CmdArgs) *errs.Error {
	core.SetRunMode(core.RunModeBatch)
	err := SetupComs(args)
	if err != nil {
		return err
	}
	defer orm.Close()
	orc := ingest.New()
	jobID, err := orc.RunJob(core.Ctx, &ingest.JobArgs{
		Dataset: core.DsAdjustDaily,
		Codes:   args.Codes,
		Start:   args.TimeStart,
		End:     args.TimeEnd,
		Force:   args.Force,
	})
	if err != nil {
		return err
	}
	log.Info("adjust rebuild done", zap.String("job", jobID.String()))
	return nil
}

func RunSched(args *config.CmdArgs) *errs.Error {
	core.SetRunMode(core.RunModeApi)
	err := SetupComs(args)
	if err != nil {
		return err
	}
	defer orm.Close()
	trapStop()
	orc := ingest.New()
	schd := sched.New(orc)
	err = web.StartApi(orc, schd)
	if err != nil {
		return err
	}
	return schd.Run(core.Ctx)
}

func RunApi(args *config.CmdArgs) *errs.Error {
	core.SetRunMode(core.RunModeApi)
	err := SetupComs(args)
	if err != nil {
		return err
	}
	defer orm.Close()
	trapStop()
	orc := ingest.New()
	schd := sched.New(orc)
	err = web.StartApi(orc, schd)
	if err != nil {
		return err
	}
	<-core.Ctx.Done()
	return nil
}

// trapStop 收到中断信号时取消全局上下文，让任务走正常的cancelled收尾
func trapStop() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-ch
		log.Warn("got signal, stopping", zap.String("sig", sig.String()))
		core.StopAll()
	}()
}

func RunExport(args *config.CmdArgs) *errs.Error {
	core.SetRunMode(core.RunModeOther)
	err := SetupComs(args)
	if err != nil {
		return err
	}
	defer orm.Close()
	dataset := args.Dataset
	if dataset == "" {
		switch args.AdjType {
		case "qfq":
			dataset = core.DsKlineDailyQfq
		case "hfq":
			dataset = core.DsKlineDailyHfq
		case "", "none":
			dataset = core.DsKlineDailyRaw
		default:
			return errs.NewMsg(errs.CodeParamInvalid, "invalid adj: %s", args.AdjType)
		}
	}
	if args.OutPath == "" {
		return errs.NewMsg(errs.CodeParamRequired, "-out is required")
	}
	start, end, err := exportRange(args.TimeStart, args.TimeEnd)
	if err != nil {
		return err
	}
	q, conn, err := orm.Conn(core.Ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	codes := args.Codes
	if len(codes) == 0 {
		symbols, err := q.ListSymbols(core.Ctx, nil)
		if err != nil {
			return err
		}
		for _, s := range symbols {
			codes = append(codes, s.TsCode)
		}
	}
	if len(codes) == 0 {
		return errs.NewMsg(errs.CodeRunTime, "no symbols to export, run ingest -dataset symbol_dim first")
	}
	if err_ := os.MkdirAll(args.OutPath, 0755); err_ != nil {
		return errs.New(errs.CodeIOWriteFail, err_)
	}
	format := args.OutFormat
	if format == "" {
		format = "csv"
	}
	var total int
	for _, code := range codes {
		bars, err := q.QueryDailyBars(core.Ctx, dataset, code, start, end)
		if err != nil {
			return err
		}
		if len(bars) == 0 {
			continue
		}
		path := filepath.Join(args.OutPath, fmt.Sprintf("%s.%s", code, format))
		if format == "xlsx" {
			err = utils.WriteXlsxFile(path, strings.TrimSpace(code), xlsxRows(bars))
		} else {
			err = utils.WriteCsvFile(path, csvRows(bars), false)
		}
		if err != nil {
			return err
		}
		total += len(bars)
	}
	log.Info("export done", zap.Int("codes", len(codes)), zap.Int("bars", total),
		zap.String("out", args.OutPath))
	return nil
}

// exportRange 导出的默认范围：全部历史到今天
func exportRange(startStr, endStr string) (time.Time, time.Time, *errs.Error) {
	if startStr == "" {
		startStr = "19901219"
	}
	if endStr == "" {
		endStr = btime.TradeDate(btime.TimeMS())
	}
	start, err_ := time.ParseInLocation(core.DateFmtDay, startStr, time.UTC)
	if err_ != nil {
		return time.Time{}, time.Time{}, errs.NewMsg(errs.CodeParamInvalid, "invalid timestart: %s", startStr)
	}
	end, err_ := time.ParseInLocation(core.DateFmtDay, endStr, time.UTC)
	if err_ != nil {
		return time.Time{}, time.Time{}, errs.NewMsg(errs.CodeParamInvalid, "invalid timeend: %s", endStr)
	}
	return start, end, nil
}

var exportHeader = []string{"ts_code", "trade_date", "open", "high", "low", "close", "volume_hand", "amount", "source"}

func csvRows(bars []*orm.DailyBar) [][]string {
	rows := make([][]string, 0, len(bars)+1)
	rows = append(rows, exportHeader)
	for _, b := range bars {
		rows = append(rows, []string{
			b.TsCode, b.TradeDate.Format(core.DateFmtDay),
			utils.LiToYuan(b.OpenLi), utils.LiToYuan(b.HighLi),
			utils.LiToYuan(b.LowLi), utils.LiToYuan(b.CloseLi),
			fmt.Sprintf("%d", b.VolumeHand), utils.LiToYuan(b.AmountLi), b.Source,
		})
	}
	return rows
}

func xlsxRows(bars []*orm.DailyBar) [][]interface{} {
	rows := make([][]interface{}, 0, len(bars)+1)
	head := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		head[i] = h
	}
	rows = append(rows, head)
	for _, b := range bars {
		rows = append(rows, []interface{}{
			b.TsCode, b.TradeDate.Format(core.DateFmtDay),
			utils.LiToYuanFloat(b.OpenLi), utils.LiToYuanFloat(b.HighLi),
			utils.LiToYuanFloat(b.LowLi), utils.LiToYuanFloat(b.CloseLi),
			b.VolumeHand, utils.LiToYuanFloat(b.AmountLi), b.Source,
		})
	}
	return rows
}
