package service_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"waterledger/internal/config"
	"waterledger/internal/model"
	"waterledger/internal/service"
)

// dailyValue 某监控点的日读数：前 30 天恒定，最后一天补齐尾差
type dailyValue struct {
	base float64
	last float64
}

var sourceHeader = []string{"日期", "荔新大道DN1200流量计", "宁西2总表", "如丰大道600监控表", "新城大道医院NB", "三江北帝庙DN800流量计"}

// writeSourceWorkbook 生成数据源工作簿：2025-08-25 起逐日一行
func writeSourceWorkbook(t *testing.T, path string, days int, values []dailyValue) {
	t.Helper()

	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)

	header := make([]interface{}, 0, len(sourceHeader))
	for _, h := range sourceHeader {
		header = append(header, h)
	}
	if err := wb.SetSheetRow(sheet, "A2", &header); err != nil {
		t.Fatalf("SetSheetRow header failed: %v", err)
	}

	start := time.Date(2025, time.August, 25, 0, 0, 0, 0, time.UTC)
	for d := 0; d < days; d++ {
		row := []interface{}{start.AddDate(0, 0, d).Format("2006-01-02")}
		for _, v := range values {
			if d == days-1 {
				row = append(row, v.last)
			} else {
				row = append(row, v.base)
			}
		}
		cell := fmt.Sprintf("A%d", 3+d)
		if err := wb.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow %s failed: %v", cell, err)
		}
	}

	if err := wb.SaveAs(path); err != nil {
		t.Fatalf("SaveAs %s failed: %v", path, err)
	}
	_ = wb.Close()
}

// writeLedgerWorkbook 生成带模板块（标题行第 2 行）的台账
func writeLedgerWorkbook(t *testing.T, path string) {
	t.Helper()

	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	texts := map[int]string{
		2: "2025年8月",
		3: "监控点供水量（m³）",
		4: "区域",
		5: "一区",
		6: "二区",
		7: "三区",
		8: "合计",
	}
	for row, text := range texts {
		if err := wb.SetCellValue(sheet, fmt.Sprintf("A%d", row), text); err != nil {
			t.Fatalf("SetCellValue failed: %v", err)
		}
	}
	if err := wb.SaveAs(path); err != nil {
		t.Fatalf("SaveAs %s failed: %v", path, err)
	}
	_ = wb.Close()
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Source.Workbook = filepath.Join(dir, "source.xlsx")
	cfg.Ledger.Workbook = filepath.Join(dir, "ledger.xlsx")
	cfg.Store.DBPath = filepath.Join(dir, "runs.db")

	// 31 天合计：荔新 4,250,000 / 宁西 3,450,000 / 如丰 255,000 / 医院NB 30,000 / 三江 180,000
	writeSourceWorkbook(t, cfg.Source.Workbook, 31, []dailyValue{
		{base: 137000, last: 140000},
		{base: 111000, last: 120000},
		{base: 8000, last: 15000},
		{base: 950, last: 1500},
		{base: 5800, last: 6000},
	})
	writeLedgerWorkbook(t, cfg.Ledger.Workbook)
	return cfg
}

func TestRunCompletePeriod(t *testing.T) {
	cfg := testConfig(t)

	result, err := service.Run(cfg, nil, service.Options{Year: 2025, Month: 9})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	p := result.Period
	if p.IsPartial {
		t.Fatalf("IsPartial=true, want false")
	}
	if p.ActualDayCount != 31 {
		t.Fatalf("ActualDayCount=%d, want 31", p.ActualDayCount)
	}

	// 一区 = 荔新 - 宁西 - 如丰600
	if got := result.Metrics[0].Supply; got != 545000 {
		t.Fatalf("一区 supply=%v, want 545000", got)
	}
	// 二区 = 如丰600 + 医院NB - 三江
	if got := result.Metrics[1].Supply; got != 105000 {
		t.Fatalf("二区 supply=%v, want 105000", got)
	}
	// 三区 = 三江
	if got := result.Metrics[2].Supply; got != 180000 {
		t.Fatalf("三区 supply=%v, want 180000", got)
	}
	if got := result.Totals.Supply; got != 830000 {
		t.Fatalf("合计 supply=%v, want 830000", got)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("warnings=%v, want none", result.Warnings)
	}

	// 落盘检查
	wb, err := excelize.OpenFile(cfg.Ledger.Workbook)
	if err != nil {
		t.Fatalf("重新打开台账失败: %v", err)
	}
	defer wb.Close()
	sheet := wb.GetSheetName(0)

	title, _ := wb.GetCellValue(sheet, "A10")
	if title != "2025年9月" {
		t.Fatalf("A10=%q, want 2025年9月", title)
	}
	supply, _ := wb.GetCellValue(sheet, "G13")
	if supply != "545000" {
		t.Fatalf("G13=%q, want 545000", supply)
	}
}

func TestRunDuplicatePeriodSkipped(t *testing.T) {
	cfg := testConfig(t)

	if _, err := service.Run(cfg, nil, service.Options{Year: 2025, Month: 9}); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	_, err := service.Run(cfg, nil, service.Options{Year: 2025, Month: 9})
	if !errors.Is(err, model.ErrDuplicatePeriod) {
		t.Fatalf("err=%v, want ErrDuplicatePeriod", err)
	}

	var dup *model.DuplicatePeriodError
	if !errors.As(err, &dup) {
		t.Fatalf("err=%T, want *DuplicatePeriodError", err)
	}
	if dup.ExistingRow != 10 {
		t.Fatalf("ExistingRow=%d, want 10", dup.ExistingRow)
	}

	// 第二次调用未产生新块
	wb, err := excelize.OpenFile(cfg.Ledger.Workbook)
	if err != nil {
		t.Fatalf("重新打开台账失败: %v", err)
	}
	defer wb.Close()
	sheet := wb.GetSheetName(0)
	if v, _ := wb.GetCellValue(sheet, "A18"); v != "" {
		t.Fatalf("A18=%q，第二次运行不应追加新块", v)
	}
}

func TestRunPartialPeriodLenient(t *testing.T) {
	cfg := testConfig(t)
	// 数据只到 2025-10-20（8月25日起第 57 天），目标周期 2025年10月
	writeSourceWorkbook(t, cfg.Source.Workbook, 57, []dailyValue{
		{base: 137000, last: 140000},
		{base: 111000, last: 120000},
		{base: 8000, last: 15000},
		{base: 950, last: 1500},
		{base: 5800, last: 6000},
	})

	result, err := service.Run(cfg, nil, service.Options{Year: 2025, Month: 10})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	p := result.Period
	if !p.IsPartial {
		t.Fatalf("IsPartial=false, want true")
	}
	if want := time.Date(2025, time.October, 20, 0, 0, 0, 0, time.UTC); !p.ActualEnd.Equal(want) {
		t.Fatalf("ActualEnd=%v, want %v", p.ActualEnd, want)
	}
	if got := p.MissingDayCount(); got != 4 {
		t.Fatalf("MissingDayCount=%d, want 4", got)
	}

	wb, err := excelize.OpenFile(cfg.Ledger.Workbook)
	if err != nil {
		t.Fatalf("重新打开台账失败: %v", err)
	}
	defer wb.Close()
	sheet := wb.GetSheetName(0)
	title, _ := wb.GetCellValue(sheet, "A10")
	if title != "2025年10月（截至10月20日，数据不完整）" {
		t.Fatalf("title=%q", title)
	}
}

func TestRunPartialPeriodStrict(t *testing.T) {
	cfg := testConfig(t)
	writeSourceWorkbook(t, cfg.Source.Workbook, 57, []dailyValue{
		{base: 137000, last: 140000},
		{base: 111000, last: 120000},
		{base: 8000, last: 15000},
		{base: 950, last: 1500},
		{base: 5800, last: 6000},
	})

	_, err := service.Run(cfg, nil, service.Options{Year: 2025, Month: 10, Strict: true})
	if !errors.Is(err, model.ErrPartialPeriod) {
		t.Fatalf("err=%v, want ErrPartialPeriod", err)
	}

	// 严格模式中止时台账保持原样
	wb, err := excelize.OpenFile(cfg.Ledger.Workbook)
	if err != nil {
		t.Fatalf("重新打开台账失败: %v", err)
	}
	defer wb.Close()
	sheet := wb.GetSheetName(0)
	if v, _ := wb.GetCellValue(sheet, "A10"); v != "" {
		t.Fatalf("A10=%q，严格模式不应写入", v)
	}
}

func TestRunInsufficientData(t *testing.T) {
	cfg := testConfig(t)
	// 数据只到 2025-09-10，目标周期 2025年11月（起始 10月25日）
	writeSourceWorkbook(t, cfg.Source.Workbook, 17, []dailyValue{
		{base: 137000, last: 140000},
		{base: 111000, last: 120000},
		{base: 8000, last: 15000},
		{base: 950, last: 1500},
		{base: 5800, last: 6000},
	})

	_, err := service.Run(cfg, nil, service.Options{Year: 2025, Month: 11})
	if !errors.Is(err, model.ErrInsufficientData) {
		t.Fatalf("err=%v, want ErrInsufficientData", err)
	}
}
