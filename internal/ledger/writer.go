package ledger

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"waterledger/internal/model"
)

// 块内固定行偏移（相对标题行），与历史模板块一致
const (
	offsetTitle    = 0
	offsetCategory = 1
	offsetHeader   = 2
	offsetZones    = 3
)

// Writer 周期块写入器
// 新块写在当前最后一个非空行之后（隔一行空行）；每个单元格的样式从
// 模板块的对应单元格克隆，保证新块与历史块外观一致。
type Writer struct {
	wb          *excelize.File
	sheet       string
	templateRow int
	points      []string
}

// Block 一次成功写入的块位置
type Block struct {
	Title       string
	TitleRow    int
	CategoryRow int
	HeaderRow   int
	ZoneRows    []int
	TotalsRow   int
}

// NewWriter 创建写入器
// points 为监控点逻辑名（按台账列序）；templateRow 为历史模板块的标题行。
func NewWriter(wb *excelize.File, sheetIndex, templateRow int, points []string) (*Writer, error) {
	sheet := wb.GetSheetName(sheetIndex)
	if sheet == "" {
		return nil, fmt.Errorf("台账不存在序号为 %d 的工作表", sheetIndex)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("监控点列表为空")
	}
	return &Writer{
		wb:          wb,
		sheet:       sheet,
		templateRow: templateRow,
		points:      points,
	}, nil
}

// colCount 块宽度：区域列 + 监控点列 + 供水/售水/损耗/损耗率
func (w *Writer) colCount() int {
	return 1 + len(w.points) + 4
}

// Append 写入一个新的周期块
// 只改内存中的工作簿，任一步失败整块作废；调用方确认无误后再保存，
// 保证落盘文件不会出现半写状态。
func (w *Writer) Append(p *model.BillingPeriod, totals map[string]model.MonitorPointTotal, metrics []model.ZoneMetrics, total model.ZoneMetrics) (*Block, error) {
	rows, err := w.wb.GetRows(w.sheet)
	if err != nil {
		return nil, fmt.Errorf("读取台账工作表 %s 失败: %w", w.sheet, err)
	}

	// 与上一块之间保留一行空行
	start := lastPopulatedRow(rows) + 2

	block := &Block{
		Title:       p.Title(),
		TitleRow:    start + offsetTitle,
		CategoryRow: start + offsetCategory,
		HeaderRow:   start + offsetHeader,
		TotalsRow:   start + offsetZones + len(metrics),
	}
	for i := range metrics {
		block.ZoneRows = append(block.ZoneRows, start+offsetZones+i)
	}

	if err := w.writeTitleRow(block.TitleRow, p); err != nil {
		return nil, err
	}
	if err := w.writeCategoryRow(block.CategoryRow); err != nil {
		return nil, err
	}
	if err := w.writeHeaderRow(block.HeaderRow); err != nil {
		return nil, err
	}

	colSums := make(map[string]float64, len(w.points))
	for i, m := range metrics {
		if err := w.writeZoneRow(block.ZoneRows[i], m, totals, colSums); err != nil {
			return nil, err
		}
	}
	if err := w.writeTotalsRow(block.TotalsRow, total, colSums); err != nil {
		return nil, err
	}

	return block, nil
}

func (w *Writer) writeTitleRow(row int, p *model.BillingPeriod) error {
	title := p.Title()
	if p.IsPartial {
		title = fmt.Sprintf("%s（截至%d月%d日，数据不完整）",
			title, int(p.ActualEnd.Month()), p.ActualEnd.Day())
	}

	if err := w.cloneRowStyle(w.templateRow+offsetTitle, row); err != nil {
		return err
	}
	if err := w.mergeCols(row, 1, w.colCount()); err != nil {
		return err
	}
	return w.setCell(1, row, title)
}

func (w *Writer) writeCategoryRow(row int) error {
	if err := w.cloneRowStyle(w.templateRow+offsetCategory, row); err != nil {
		return err
	}
	// B..F 监控点供水量；G..J 损耗统计
	firstDerived := 2 + len(w.points)
	if err := w.mergeCols(row, 2, firstDerived-1); err != nil {
		return err
	}
	if err := w.mergeCols(row, firstDerived, w.colCount()); err != nil {
		return err
	}
	if err := w.setCell(2, row, "监控点供水量（m³）"); err != nil {
		return err
	}
	return w.setCell(firstDerived, row, "损耗统计")
}

func (w *Writer) writeHeaderRow(row int) error {
	if err := w.cloneRowStyle(w.templateRow+offsetHeader, row); err != nil {
		return err
	}
	if err := w.setCell(1, row, "区域"); err != nil {
		return err
	}
	for i, name := range w.points {
		if err := w.setCell(2+i, row, name); err != nil {
			return err
		}
	}
	base := 2 + len(w.points)
	headers := []string{"供水量", "售水量", "损耗量", "损耗率"}
	for i, h := range headers {
		if err := w.setCell(base+i, row, h); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeZoneRow(row int, m model.ZoneMetrics, totals map[string]model.MonitorPointTotal, colSums map[string]float64) error {
	if err := w.cloneRowStyle(w.templateRow+offsetZones, row); err != nil {
		return err
	}
	if err := w.setCell(1, row, m.ZoneName); err != nil {
		return err
	}

	used := make(map[string]bool, len(m.Terms))
	for _, t := range m.Terms {
		used[t] = true
	}
	for i, name := range w.points {
		if !used[name] {
			continue
		}
		v := totals[name].TotalValue
		if err := w.setCell(2+i, row, v); err != nil {
			return err
		}
		colSums[name] += v
	}

	return w.writeDerivedCells(row, m)
}

func (w *Writer) writeTotalsRow(row int, total model.ZoneMetrics, colSums map[string]float64) error {
	if err := w.cloneRowStyle(w.templateRow+offsetZones, row); err != nil {
		return err
	}
	if err := w.setCell(1, row, total.ZoneName); err != nil {
		return err
	}
	for i, name := range w.points {
		if v, ok := colSums[name]; ok {
			if err := w.setCell(2+i, row, v); err != nil {
				return err
			}
		}
	}
	return w.writeDerivedCells(row, total)
}

// writeDerivedCells 供水量恒写；售水/损耗/损耗率未录入时留空，
// “尚未可知”与“为 0”在台账上必须可区分。
func (w *Writer) writeDerivedCells(row int, m model.ZoneMetrics) error {
	base := 2 + len(w.points)
	if err := w.setCell(base, row, m.Supply); err != nil {
		return err
	}
	if m.Sales != nil {
		if err := w.setCell(base+1, row, *m.Sales); err != nil {
			return err
		}
	}
	if m.Loss != nil {
		if err := w.setCell(base+2, row, *m.Loss); err != nil {
			return err
		}
	}
	if m.LossRate != nil {
		// 损耗率列按百分比格式渲染，写入小数值
		if err := w.setCell(base+3, row, *m.LossRate); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) setCell(col, row int, v interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return w.wb.SetCellValue(w.sheet, cell, v)
}

func (w *Writer) mergeCols(row, fromCol, toCol int) error {
	if toCol <= fromCol {
		return nil
	}
	from, err := excelize.CoordinatesToCellName(fromCol, row)
	if err != nil {
		return err
	}
	to, err := excelize.CoordinatesToCellName(toCol, row)
	if err != nil {
		return err
	}
	return w.wb.MergeCell(w.sheet, from, to)
}

// cloneRowStyle 从模板块对应行逐格克隆样式（字体/边框/填充/数字格式）
func (w *Writer) cloneRowStyle(srcRow, dstRow int) error {
	for col := 1; col <= w.colCount(); col++ {
		src, err := excelize.CoordinatesToCellName(col, srcRow)
		if err != nil {
			return err
		}
		dst, err := excelize.CoordinatesToCellName(col, dstRow)
		if err != nil {
			return err
		}
		styleID, err := w.wb.GetCellStyle(w.sheet, src)
		if err != nil {
			return err
		}
		if styleID == 0 {
			continue
		}
		if err := w.wb.SetCellStyle(w.sheet, dst, dst, styleID); err != nil {
			return err
		}
	}

	if h, err := w.wb.GetRowHeight(w.sheet, srcRow); err == nil && h > 0 {
		if err := w.wb.SetRowHeight(w.sheet, dstRow, h); err != nil {
			return err
		}
	}
	return nil
}
