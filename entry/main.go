package entry

import (
	"flag"
	"fmt"
	"os"

	"github.com/aistock/tdxdata/config"
	"github.com/aistock/tdxdata/errs"
	"github.com/aistock/tdxdata/log"
	"go.uber.org/zap"
)

const VERSION = "0.1.0"

type FuncEntry = func(args *config.CmdArgs) *errs.Error
type FuncGetEntry = func(name string) (FuncEntry, []string)

func RunCmd() {
	if len(os.Args) < 2 {
		printAndExit()
		return
	}
	args := os.Args[1:]
	runSubCmd(args, func(name string) (FuncEntry, []string) {
		var options []string
		var entry FuncEntry
		switch name {
		case "init":
			entry = RunInitDb
		case "ingest":
			options = []string{"dataset", "mode", "codes", "timestart", "timeend", "concur", "force"}
			entry = RunIngest
		case "retry":
			options = []string{"job"}
			entry = RunRetry
		case "adjust":
			options = []string{"codes", "timestart", "timeend", "force"}
			entry = RunAdjust
		case "sched":
			entry = RunSched
		case "api":
			entry = RunApi
		case "export":
			options = []string{"dataset", "codes", "timestart", "timeend", "adj", "out", "format"}
			entry = RunExport
		}
		return entry, options
	}, printAndExit)
}

func printAndExit() {
	tpl := `
tdxdata %v
please run with a subcommand:
	init:    create database schema, hypertables and aggregates
	ingest:  run an ingestion job for a dataset
	retry:   retry failed tasks of a finished job
	adjust:  rebuild adjusted daily bars from adj factors
	sched:   run the schedule loop (and api server if enabled)
	api:     run the api server only
	export:  export daily bars to csv/xlsx files
`
	log.Warn(fmt.Sprintf(tpl, VERSION))
}

func runSubCmd(sysArgs []string, getEnt FuncGetEntry, printExit func()) {
	name, subArgs := sysArgs[0], sysArgs[1:]
	entry, options := getEnt(name)
	if entry == nil {
		printExit()
		return
	}
	var args config.CmdArgs
	var sub = flag.NewFlagSet(name, flag.ExitOnError)
	bindSubFlags(&args, sub, options...)
	err_ := sub.Parse(subArgs)
	if err_ != nil {
		log.Error("fail", zap.Error(err_))
		printExit()
		return
	}
	args.Init()
	err := entry(&args)
	if err != nil {
		log.Error("cmd fail", zap.String("cmd", name), zap.String("err", err.Short()))
		os.Exit(1)
	}
	os.Exit(0)
}

func bindSubFlags(args *config.CmdArgs, cmd *flag.FlagSet, opts ...string) {
	cmd.Var(&args.Configs, "config", "config path to use, Multiple -config options may be used")
	cmd.StringVar(&args.Logfile, "logfile", "", "Log to the file specified")
	cmd.StringVar(&args.DataDir, "datadir", "", "Path to data dir.")
	cmd.BoolVar(&args.Debug, "debug", false, "set logging level to debug")
	cmd.BoolVar(&args.NoDefault, "no-default", false, "ignore default: config.yml, config.local.yml")
	cmd.IntVar(&args.MaxPoolSize, "max-pool-size", 0, "max pool size for db")

	for _, key := range opts {
		switch key {
		case "dataset":
			cmd.StringVar(&args.Dataset, "dataset", "", "dataset name, e.g. kline_daily_qfq")
		case "mode":
			cmd.StringVar(&args.Mode, "mode", "", "init or incremental")
		case "codes":
			cmd.StringVar(&args.RawCodes, "codes", "", "comma-separated ts_codes, empty for all")
		case "timestart":
			cmd.StringVar(&args.TimeStart, "timestart", "", "start date, YYYYMMDD")
		case "timeend":
			cmd.StringVar(&args.TimeEnd, "timeend", "", "end date, YYYYMMDD")
		case "adj":
			cmd.StringVar(&args.AdjType, "adj", "", "qfq/hfq for export, empty for raw")
		case "concur":
			cmd.IntVar(&args.Concur, "concur", 0, "Override `concurrency` in config")
		case "force":
			cmd.BoolVar(&args.Force, "force", false, "ignore checkpoints and refetch")
		case "out":
			cmd.StringVar(&args.OutPath, "out", "", "output file or directory")
		case "format":
			cmd.StringVar(&args.OutFormat, "format", "csv", "output format: csv/xlsx")
		case "job":
			cmd.StringVar(&args.JobId, "job", "", "uuid of the job to retry")
		default:
			log.Warn(fmt.Sprintf("undefined argument: %s", key))
			os.Exit(1)
		}
	}
}
