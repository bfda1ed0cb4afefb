package model

// MonitorPointTotal 单个监控点在周期内的累计读数
// ResolvedColumn 为 0 表示逻辑名未能在数据源表头中解析到列。
type MonitorPointTotal struct {
	LogicalName      string
	ResolvedColumn   int
	TotalValue       float64
	ValidSampleCount int
}

// Warning 非致命告警（监控点缺列、日期行缺口等）
type Warning struct {
	LogicalName string
	Reason      string
}

// 告警原因
const (
	WarnColumnNotFound = "column_not_found"
	WarnDayCountGap    = "day_count_gap"
)

// RuleKind 区域供水量组合公式类型
type RuleKind string

const (
	// RuleSubtract supply = b - c - d
	RuleSubtract RuleKind = "subtract"
	// RuleAddSubtract supply = d + e - f
	RuleAddSubtract RuleKind = "add_subtract"
	// RuleDirect supply = f
	RuleDirect RuleKind = "direct"
)

// TermCount 公式所需的监控点个数；未知类型返回 -1
func (k RuleKind) TermCount() int {
	switch k {
	case RuleSubtract, RuleAddSubtract:
		return 3
	case RuleDirect:
		return 1
	}
	return -1
}

// ZoneDefinition 区域定义：供水量由监控点读数按固定公式组合得出
// Sales（售水量）来自外部台账，可能尚未录入。
type ZoneDefinition struct {
	ID    string
	Name  string
	Rule  RuleKind
	Terms []string
	Sales *float64
}

// ZoneMetrics 区域周期指标
// Terms 记录供水量公式实际引用的监控点，台账区域行只回填这些列。
// Sales/Loss/LossRate 为 nil 表示“尚未可知”，与计算结果为 0 是两回事。
type ZoneMetrics struct {
	ZoneID   string
	ZoneName string
	Terms    []string
	Supply   float64
	Sales    *float64
	Loss     *float64
	LossRate *float64
}
