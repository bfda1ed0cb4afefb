// Package zone 区域供水量公式引擎。
//
// 每个区域的供水量是若干监控点周期总量的固定符号线性组合，公式形态
// 只有三种（差、加减、直取）。历史模板中不存在第四种形态；遇到未知
// 形态一律报错交人工确认，不做猜测。
package zone

import (
	"fmt"

	"waterledger/internal/model"
)

// Engine 区域指标计算引擎
type Engine struct {
	zones []model.ZoneDefinition
}

// New 创建引擎；区域定义应已通过配置校验
func New(zones []model.ZoneDefinition) *Engine {
	return &Engine{zones: zones}
}

// Compute 计算各区域的供水/售水/损耗指标
func (e *Engine) Compute(totals map[string]model.MonitorPointTotal) ([]model.ZoneMetrics, error) {
	metrics := make([]model.ZoneMetrics, 0, len(e.zones))
	for _, z := range e.zones {
		m, err := computeZone(z, totals)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, nil
}

func computeZone(z model.ZoneDefinition, totals map[string]model.MonitorPointTotal) (model.ZoneMetrics, error) {
	if want := z.Rule.TermCount(); want < 0 || len(z.Terms) != want {
		return model.ZoneMetrics{}, fmt.Errorf("区域 %s 的公式 %q（%d 项）不在已知形态内，需人工确认", z.ID, z.Rule, len(z.Terms))
	}

	var supply float64
	switch z.Rule {
	case model.RuleSubtract:
		supply = total(totals, z.Terms[0]) - total(totals, z.Terms[1]) - total(totals, z.Terms[2])
	case model.RuleAddSubtract:
		supply = total(totals, z.Terms[0]) + total(totals, z.Terms[1]) - total(totals, z.Terms[2])
	case model.RuleDirect:
		supply = total(totals, z.Terms[0])
	}

	m := model.ZoneMetrics{
		ZoneID:   z.ID,
		ZoneName: z.Name,
		Terms:    z.Terms,
		Supply:   supply,
	}
	if z.Sales != nil {
		sales := *z.Sales
		m.Sales = &sales
		loss := supply - sales
		m.Loss = &loss
		rate := lossRate(loss, supply)
		m.LossRate = &rate
	}
	return m, nil
}

// Totals 合计行：供水量恒有；售水/损耗仅在至少一个区域已录入售水量时给出
func (e *Engine) Totals(metrics []model.ZoneMetrics) model.ZoneMetrics {
	totals := model.ZoneMetrics{ZoneID: "total", ZoneName: "合计"}

	var sales float64
	var hasSales bool
	for _, m := range metrics {
		totals.Supply += m.Supply
		if m.Sales != nil {
			sales += *m.Sales
			hasSales = true
		}
	}
	if hasSales {
		totals.Sales = &sales
		loss := totals.Supply - sales
		totals.Loss = &loss
		rate := lossRate(loss, totals.Supply)
		totals.LossRate = &rate
	}
	return totals
}

// lossRate 损耗率 = 损耗 / 供水量；供水量为 0 时定义为 0，不抛除零错误
func lossRate(loss, supply float64) float64 {
	if supply == 0 {
		return 0
	}
	return loss / supply
}

func total(totals map[string]model.MonitorPointTotal, name string) float64 {
	return totals[name].TotalValue
}
