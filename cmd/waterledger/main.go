package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"waterledger/internal/config"
	"waterledger/internal/model"
	"waterledger/internal/scheduler"
	"waterledger/internal/service"
	"waterledger/internal/store"
)

func main() {
	app := &cli.App{
		Name:  "waterledger",
		Usage: "供水分区供/售/损统计台账",
		Commands: []*cli.Command{
			runCommand(),
			scheduleCommand(),
			historyCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "统计指定周期并追加到台账（默认当前年月）",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "year", Usage: "目标年份"},
			&cli.IntFlag{Name: "month", Usage: "目标月份（1-12）"},
			&cli.BoolFlag{Name: "strict", Usage: "周期数据不完整时中止"},
			&cli.BoolFlag{Name: "test-data", Usage: "使用配置中的测试数据源"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("加载配置失败: %v", err), 1)
			}

			year, month := targetPeriod(c.Int("year"), c.Int("month"))
			if month < 1 || month > 12 {
				return cli.Exit(fmt.Sprintf("月份 %d 无效", month), 1)
			}

			st := openStore(cfg)
			if st != nil {
				defer st.Close()
			}

			result, err := service.Run(cfg, st, service.Options{
				Year:        year,
				Month:       month,
				Strict:      c.Bool("strict"),
				UseTestData: c.Bool("test-data"),
			})
			if err != nil {
				return cli.Exit(runFailureMessage(err), 1)
			}

			printResult(result)
			return nil
		},
	}
}

func scheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "常驻进程，按 cron 表达式每月自动运行",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "cron", Usage: "覆盖配置中的 cron 表达式"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("加载配置失败: %v", err), 1)
			}

			spec := cfg.Schedule.Cron
			if v := c.String("cron"); v != "" {
				spec = v
			}

			st := openStore(cfg)
			if st != nil {
				defer st.Close()
			}

			job := func() {
				year, month := targetPeriod(0, 0)
				result, err := service.Run(cfg, st, service.Options{Year: year, Month: month})
				if err != nil {
					if errors.Is(err, model.ErrDuplicatePeriod) {
						log.Printf("定时运行跳过: %v", err)
						return
					}
					log.Printf("定时运行失败: %v", err)
					return
				}
				printResult(result)
			}

			stop := make(chan struct{})
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigs
				close(stop)
			}()

			return scheduler.New().Start(spec, job, stop)
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "列出最近的运行记录",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "显示条数"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("加载配置失败: %v", err), 1)
			}

			st, err := store.New(cfg.Store.DBPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("打开运行记录库失败: %v", err), 1)
			}
			defer st.Close()

			records, err := st.RecentRuns(c.Int("limit"))
			if err != nil {
				return cli.Exit(fmt.Sprintf("查询运行记录失败: %v", err), 1)
			}

			for _, r := range records {
				partial := ""
				if r.IsPartial {
					partial = fmt.Sprintf("（不完整 %d/%d 天）", r.ActualDays, r.ExpectedDays)
				}
				fmt.Printf("%s  %s  %s%s  %s\n",
					r.CreatedAt.Format("2006-01-02 15:04"), r.PeriodTitle, r.Status, partial, r.Message)
			}
			return nil
		},
	}
}

// targetPeriod 默认目标为当前年月（本月24日封口的周期）
func targetPeriod(year, month int) (int, int) {
	now := time.Now()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	return year, month
}

func openStore(cfg *config.AppConfig) *store.Store {
	st, err := store.New(cfg.Store.DBPath)
	if err != nil {
		// 运行记录缺失不阻塞统计本身
		log.Printf("打开运行记录库失败，本次运行不归档: %v", err)
		return nil
	}
	return st
}

func runFailureMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrDuplicatePeriod):
		return fmt.Sprintf("跳过: %v", err)
	case errors.Is(err, model.ErrInsufficientData):
		return fmt.Sprintf("数据源数据不足: %v", err)
	case errors.Is(err, model.ErrPartialPeriod):
		return fmt.Sprintf("严格模式中止: %v", err)
	case errors.Is(err, model.ErrLedgerLocked):
		return fmt.Sprintf("%v\n请关闭正在查看台账的表格软件后重试", err)
	default:
		return err.Error()
	}
}

func printResult(result *service.RunResult) {
	p := result.Period
	fmt.Printf("%s 统计完成：%s ~ %s（%d 天）\n",
		p.Title(), p.IdealStart.Format("2006-01-02"), p.ActualEnd.Format("2006-01-02"), p.ActualDayCount)
	for _, m := range result.Metrics {
		line := fmt.Sprintf("  %s 供水 %.0f", m.ZoneName, m.Supply)
		if m.Sales != nil {
			line += fmt.Sprintf("，售水 %.0f，损耗 %.0f，损耗率 %.2f%%", *m.Sales, *m.Loss, *m.LossRate*100)
		}
		fmt.Println(line)
	}
	fmt.Printf("  合计供水 %.0f\n", result.Totals.Supply)
}
