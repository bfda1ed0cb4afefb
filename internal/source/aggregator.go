package source

import (
	"sort"

	"waterledger/internal/model"
)

// AggregateResult 周期聚合结果
type AggregateResult struct {
	Totals          map[string]model.MonitorPointTotal
	MatchedDayCount int
	Warnings        []model.Warning
}

// Aggregate 在 [IdealStart, ActualEnd] 区间内累加各监控点的日读数
// 非数值/空白单元格跳过（既不按零计，也不中断）；未解析到列的监控点
// 总量记 0 并给出 column_not_found 告警。区间内命中的日期行数与
// ActualDayCount 不符时给出 day_count_gap 告警，不视为失败。
func Aggregate(r *Reader, period *model.BillingPeriod, mapping map[string]int) *AggregateResult {
	result := &AggregateResult{
		Totals: make(map[string]model.MonitorPointTotal, len(mapping)),
	}

	for name, col := range mapping {
		result.Totals[name] = model.MonitorPointTotal{
			LogicalName:    name,
			ResolvedColumn: col,
		}
		if col == 0 {
			result.Warnings = append(result.Warnings, model.Warning{
				LogicalName: name,
				Reason:      model.WarnColumnNotFound,
			})
		}
	}

	for _, row := range r.DataRows() {
		if len(row) == 0 {
			continue
		}
		date, ok := ParseCellDate(row[0])
		if !ok {
			continue
		}
		if date.Before(period.IdealStart) || date.After(period.ActualEnd) {
			continue
		}
		result.MatchedDayCount++

		for name, col := range mapping {
			if col < 1 || col > len(row) {
				continue
			}
			v, ok := ParseCellFloat(row[col-1])
			if !ok {
				continue
			}
			total := result.Totals[name]
			total.TotalValue += v
			total.ValidSampleCount++
			result.Totals[name] = total
		}
	}

	if result.MatchedDayCount != period.ActualDayCount {
		result.Warnings = append(result.Warnings, model.Warning{
			Reason: model.WarnDayCountGap,
		})
	}

	sort.Slice(result.Warnings, func(i, j int) bool {
		if result.Warnings[i].Reason != result.Warnings[j].Reason {
			return result.Warnings[i].Reason < result.Warnings[j].Reason
		}
		return result.Warnings[i].LogicalName < result.Warnings[j].LogicalName
	})

	return result
}
