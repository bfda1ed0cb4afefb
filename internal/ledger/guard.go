// Package ledger 台账工作簿的追加写入与防重复保护。
//
// 台账是仅追加的周期块序列，无独立索引；周期识别靠标题行文本。查重
// 采用有界反向扫描：只回看最近 maxLookback 行，扫描成本不随台账增长。
package ledger

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CheckDuplicate 在台账末尾的回溯窗口内查找周期标题
// 命中返回 (true, 所在行号)；必须在任何写入发生之前调用。
func CheckDuplicate(wb *excelize.File, sheetIndex int, title string, maxLookback int) (bool, int, error) {
	_, rows, err := sheetRows(wb, sheetIndex)
	if err != nil {
		return false, 0, err
	}

	last := lastPopulatedRow(rows)
	first := last - maxLookback + 1
	if first < 1 {
		first = 1
	}

	for r := last; r >= first; r-- {
		if r > len(rows) {
			continue
		}
		for _, cell := range rows[r-1] {
			if cell == "" {
				continue
			}
			if strings.Contains(cell, title) {
				return true, r, nil
			}
		}
	}
	return false, 0, nil
}

func sheetRows(wb *excelize.File, sheetIndex int) (string, [][]string, error) {
	sheet := wb.GetSheetName(sheetIndex)
	if sheet == "" {
		return "", nil, fmt.Errorf("台账不存在序号为 %d 的工作表", sheetIndex)
	}
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return "", nil, fmt.Errorf("读取台账工作表 %s 失败: %w", sheet, err)
	}
	return sheet, rows, nil
}

func lastPopulatedRow(rows [][]string) int {
	for r := len(rows); r >= 1; r-- {
		for _, cell := range rows[r-1] {
			if strings.TrimSpace(cell) != "" {
				return r
			}
		}
	}
	return 0
}
