package model

import (
	"fmt"
	"time"
)

// BillingPeriod 结算周期（上月25日～本月24日）
// ActualEnd 不晚于 IdealEnd；两者不相等时 IsPartial 为 true。
type BillingPeriod struct {
	Year  int
	Month int

	IdealStart time.Time
	IdealEnd   time.Time
	ActualEnd  time.Time

	IsPartial bool

	ExpectedDayCount int
	ActualDayCount   int
}

// Title 周期标题，如 "2025年10月"，台账按此标题识别已写入周期
func (p BillingPeriod) Title() string {
	return fmt.Sprintf("%d年%d月", p.Year, p.Month)
}

// MissingDayCount 数据源尚未补齐的尾部天数
func (p BillingPeriod) MissingDayCount() int {
	return p.ExpectedDayCount - p.ActualDayCount
}
