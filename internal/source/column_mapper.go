package source

import (
	"regexp"
	"strings"
)

// MonitorPoint 监控点：逻辑名 + 有序检索词
// 数据源表头时有改名（加备注、换口径），检索词按序降级匹配。
type MonitorPoint struct {
	Name  string
	Terms []string
}

// MapColumns 将监控点逻辑名解析到表头列号（1 基）
// 检索词优先级高于列序：先用第 1 个词扫全部列，未中再用第 2 个词；
// 同一词命中多列时取最左列（与台账历史列序保持一致）。未匹配的逻辑
// 名映射为 0，由聚合器降级处理。
func MapColumns(header []string, points []MonitorPoint) map[string]int {
	normalized := make([]string, len(header))
	for i, cell := range header {
		normalized[i] = NormalizeHeader(cell)
	}

	mapping := make(map[string]int, len(points))
	for _, p := range points {
		mapping[p.Name] = matchColumn(normalized, p.Terms)
	}
	return mapping
}

func matchColumn(header []string, terms []string) int {
	for _, term := range terms {
		term = NormalizeHeader(term)
		if term == "" {
			continue
		}
		for i, cell := range header {
			if cell == "" {
				continue
			}
			if strings.Contains(cell, term) {
				return i + 1
			}
		}
	}
	return 0
}

var headerSpaceRE = regexp.MustCompile(`\s+`)

// NormalizeHeader 规范化表头文本，去除空白和换行
func NormalizeHeader(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\n", "")
	name = strings.ReplaceAll(name, "\r", "")
	name = strings.ReplaceAll(name, "\t", "")
	return headerSpaceRE.ReplaceAllString(name, "")
}
