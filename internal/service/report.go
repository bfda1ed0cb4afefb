// Package service 贯通一次统计运行：解析周期、聚合读数、计算区域
// 指标、查重并写入台账。
package service

import (
	"fmt"
	"log"
	"time"

	"github.com/xuri/excelize/v2"

	"waterledger/internal/config"
	"waterledger/internal/ledger"
	"waterledger/internal/model"
	"waterledger/internal/period"
	"waterledger/internal/source"
	"waterledger/internal/store"
	"waterledger/internal/zone"
)

// Options 一次运行的参数
type Options struct {
	Year  int
	Month int
	// Strict 严格模式：周期数据不完整时中止而不是带标记写入
	Strict bool
	// UseTestData 使用配置中的测试数据源
	UseTestData bool
}

// RunResult 一次成功运行（含“跳过已存在”）的结果
type RunResult struct {
	RunID    string
	Period   *model.BillingPeriod
	Metrics  []model.ZoneMetrics
	Totals   model.ZoneMetrics
	Warnings []model.Warning
	Block    *ledger.Block
}

// readerCursor 数据源读取器适配为周期解析所需的游标
type readerCursor struct {
	reader    *source.Reader
	probeCols []int
}

func (c *readerCursor) LatestComplete() (time.Time, bool, error) {
	return c.reader.LatestComplete(c.probeCols)
}

// Run 执行一次周期统计并追加到台账
//
// 台账文件只在整块写入全部成功后保存一次，不会留下半写状态；重复
// 周期在任何写入发生前被拦截，失败后重跑是安全的。
func Run(cfg *config.AppConfig, st *store.Store, opts Options) (*RunResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}

	sourcePath := cfg.Source.Workbook
	if opts.UseTestData {
		sourcePath = cfg.Source.TestWorkbook
	}
	log.Printf("目标周期 %d年%d月，数据源 %s", opts.Year, opts.Month, sourcePath)

	reader, err := source.Open(sourcePath, cfg.Source.SheetIndex, cfg.Source.HeaderRow, cfg.Source.DataStartRow)
	if err != nil {
		recordFailure(st, opts, nil, err)
		return nil, err
	}
	defer reader.Close()

	points := monitorPoints(cfg)
	mapping := source.MapColumns(reader.Header(), points)

	probeCols := make([]int, 0, len(cfg.Source.ProbePoints))
	for _, name := range cfg.Source.ProbePoints {
		if col := mapping[name]; col > 0 {
			probeCols = append(probeCols, col)
		}
	}
	if len(probeCols) == 0 {
		err := fmt.Errorf("探测监控点 %v 均未在数据源表头解析到列", cfg.Source.ProbePoints)
		recordFailure(st, opts, nil, err)
		return nil, err
	}

	p, err := period.Resolve(opts.Year, opts.Month, &readerCursor{reader: reader, probeCols: probeCols})
	if err != nil {
		recordFailure(st, opts, nil, err)
		return nil, err
	}

	if p.IsPartial {
		if opts.Strict {
			err := &model.PartialPeriodError{
				PeriodTitle: p.Title(),
				IdealEnd:    p.IdealEnd,
				ActualEnd:   p.ActualEnd,
				MissingDays: p.MissingDayCount(),
			}
			recordFailure(st, opts, p, err)
			return nil, err
		}
		log.Printf("%s 数据不完整（截至 %s，缺 %d 天），按不完整周期写入",
			p.Title(), p.ActualEnd.Format("2006-01-02"), p.MissingDayCount())
	}

	agg := source.Aggregate(reader, p, mapping)
	for _, w := range agg.Warnings {
		if w.LogicalName != "" {
			log.Printf("告警 %s: %s", w.Reason, w.LogicalName)
		} else {
			log.Printf("告警 %s: 区间命中 %d 天，应为 %d 天", w.Reason, agg.MatchedDayCount, p.ActualDayCount)
		}
	}

	engine := zone.New(cfg.ZoneDefinitions())
	metrics, err := engine.Compute(agg.Totals)
	if err != nil {
		recordFailure(st, opts, p, err)
		return nil, err
	}
	totals := engine.Totals(metrics)

	wb, err := excelize.OpenFile(cfg.Ledger.Workbook)
	if err != nil {
		err = fmt.Errorf("打开台账 %s 失败: %w", cfg.Ledger.Workbook, err)
		recordFailure(st, opts, p, err)
		return nil, err
	}
	defer wb.Close()

	// 查重必须先于任何写入
	blocked, existingRow, err := ledger.CheckDuplicate(wb, cfg.Ledger.SheetIndex, p.Title(), cfg.Ledger.MaxLookback)
	if err != nil {
		recordFailure(st, opts, p, err)
		return nil, err
	}
	if blocked {
		dup := &model.DuplicatePeriodError{PeriodTitle: p.Title(), ExistingRow: existingRow}
		recordRun(st, opts, p, store.RunStatusSkipped, len(agg.Warnings), dup.Error())
		return nil, dup
	}

	writer, err := ledger.NewWriter(wb, cfg.Ledger.SheetIndex, cfg.Ledger.TemplateBlockRow, cfg.PointNames())
	if err != nil {
		recordFailure(st, opts, p, err)
		return nil, err
	}
	block, err := writer.Append(p, agg.Totals, metrics, totals)
	if err != nil {
		// 内存中的工作簿作废，不保存，落盘文件保持原样
		recordFailure(st, opts, p, err)
		return nil, err
	}

	policy := ledger.RetryPolicy{
		MaxAttempts: cfg.Ledger.SaveRetry.MaxAttempts,
		Delay:       time.Duration(cfg.Ledger.SaveRetry.DelayMS) * time.Millisecond,
	}
	if err := ledger.SaveWithRetry(wb, cfg.Ledger.Workbook, policy); err != nil {
		recordFailure(st, opts, p, err)
		return nil, err
	}

	runID := recordRun(st, opts, p, store.RunStatusAppended, len(agg.Warnings),
		fmt.Sprintf("写入第 %d 行起的块", block.TitleRow))
	log.Printf("%s 写入完成（标题行 %d，合计行 %d）", p.Title(), block.TitleRow, block.TotalsRow)

	return &RunResult{
		RunID:    runID,
		Period:   p,
		Metrics:  metrics,
		Totals:   totals,
		Warnings: agg.Warnings,
		Block:    block,
	}, nil
}

func monitorPoints(cfg *config.AppConfig) []source.MonitorPoint {
	points := make([]source.MonitorPoint, 0, len(cfg.Points))
	for _, p := range cfg.Points {
		points = append(points, source.MonitorPoint{Name: p.Name, Terms: p.Terms})
	}
	return points
}

// recordRun 归档运行记录；归档失败只记日志，不影响运行结果
func recordRun(st *store.Store, opts Options, p *model.BillingPeriod, status string, warnings int, message string) string {
	if st == nil {
		return ""
	}
	rec := &store.RunRecord{
		Year:         opts.Year,
		Month:        opts.Month,
		Status:       status,
		WarningCount: warnings,
		Message:      message,
	}
	if p != nil {
		rec.PeriodTitle = p.Title()
		rec.IsPartial = p.IsPartial
		rec.ExpectedDays = p.ExpectedDayCount
		rec.ActualDays = p.ActualDayCount
	}
	id, err := st.SaveRun(rec)
	if err != nil {
		log.Printf("运行记录写入失败: %v", err)
		return ""
	}
	return id
}

func recordFailure(st *store.Store, opts Options, p *model.BillingPeriod, cause error) {
	recordRun(st, opts, p, store.RunStatusFailed, 0, cause.Error())
}
