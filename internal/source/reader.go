package source

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Reader 数据源工作簿读取器（只读）
// 工作表按固定序号选取；第 1 列为日期，其余列为各监控点当日读数。
type Reader struct {
	wb           *excelize.File
	sheet        string
	headerRow    int
	dataStartRow int
	rows         [][]string
}

// Open 打开数据源工作簿
func Open(path string, sheetIndex, headerRow, dataStartRow int) (*Reader, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("打开数据源 %s 失败: %w", path, err)
	}
	r, err := NewFromWorkbook(wb, sheetIndex, headerRow, dataStartRow)
	if err != nil {
		_ = wb.Close()
		return nil, err
	}
	return r, nil
}

// NewFromWorkbook 基于已打开的工作簿构建读取器
func NewFromWorkbook(wb *excelize.File, sheetIndex, headerRow, dataStartRow int) (*Reader, error) {
	sheet := wb.GetSheetName(sheetIndex)
	if sheet == "" {
		return nil, fmt.Errorf("数据源不存在序号为 %d 的工作表", sheetIndex)
	}
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("读取工作表 %s 失败: %w", sheet, err)
	}
	if len(rows) < headerRow {
		return nil, fmt.Errorf("工作表 %s 缺少表头行（第 %d 行）", sheet, headerRow)
	}
	return &Reader{
		wb:           wb,
		sheet:        sheet,
		headerRow:    headerRow,
		dataStartRow: dataStartRow,
		rows:         rows,
	}, nil
}

// Close 关闭工作簿
func (r *Reader) Close() error {
	if r.wb != nil {
		return r.wb.Close()
	}
	return nil
}

// Header 表头行单元格文本
func (r *Reader) Header() []string {
	return r.rows[r.headerRow-1]
}

// DataRows 数据行（自 dataStartRow 起）
func (r *Reader) DataRows() [][]string {
	if len(r.rows) < r.dataStartRow {
		return nil
	}
	return r.rows[r.dataStartRow-1:]
}

// LatestComplete 从末行向前扫描，返回最近一条“完整”读数的日期
// 完整的定义：日期可解析，且任一探测列读数非零。只有日期、读数全为
// 零/空的行视为“尚未填报”。
func (r *Reader) LatestComplete(probeCols []int) (time.Time, bool, error) {
	data := r.DataRows()
	for i := len(data) - 1; i >= 0; i-- {
		row := data[i]
		if len(row) == 0 {
			continue
		}
		date, ok := ParseCellDate(row[0])
		if !ok {
			continue
		}
		for _, col := range probeCols {
			if col < 1 || col > len(row) {
				continue
			}
			if v, ok := ParseCellFloat(row[col-1]); ok && v != 0 {
				return date, true, nil
			}
		}
	}
	return time.Time{}, false, nil
}

// 日期单元格的常见文本形态；excelize 对未设样式的日期单元格可能
// 返回序列号，ParseCellDate 一并兼容。
var dateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"2006/01/02",
	"2006/1/2",
	"01-02-06",
	"1-2-06",
	"2006年1月2日",
	"2006.1.2",
}

// ParseCellDate 解析日期单元格，返回零点对齐的日期
func ParseCellDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	// Excel 日期序列号（1899-12-30 起的天数）
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial > 59 && serial < 200000 {
		epoch := time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
		t := epoch.AddDate(0, 0, int(serial))
		return t, true
	}
	return time.Time{}, false
}

// ParseCellFloat 解析数值单元格；空白或非数值返回 false
func ParseCellFloat(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	raw = strings.ReplaceAll(raw, ",", "")
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
