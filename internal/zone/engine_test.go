package zone_test

import (
	"math"
	"strings"
	"testing"

	"waterledger/internal/model"
	"waterledger/internal/zone"
)

func totalsFixture() map[string]model.MonitorPointTotal {
	return map[string]model.MonitorPointTotal{
		"荔新大道":      {LogicalName: "荔新大道", ResolvedColumn: 2, TotalValue: 4250000, ValidSampleCount: 31},
		"宁西2总表":     {LogicalName: "宁西2总表", ResolvedColumn: 3, TotalValue: 3450000, ValidSampleCount: 31},
		"如丰大道600监控表": {LogicalName: "如丰大道600监控表", ResolvedColumn: 4, TotalValue: 255000, ValidSampleCount: 31},
		"新城大道医院NB":   {LogicalName: "新城大道医院NB", ResolvedColumn: 5, TotalValue: 30000, ValidSampleCount: 31},
		"三江北帝庙":     {LogicalName: "三江北帝庙", ResolvedColumn: 6, TotalValue: 180000, ValidSampleCount: 31},
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestComputeSubtractRule(t *testing.T) {
	engine := zone.New([]model.ZoneDefinition{
		{ID: "zone1", Name: "一区", Rule: model.RuleSubtract,
			Terms: []string{"荔新大道", "宁西2总表", "如丰大道600监控表"}},
	})

	metrics, err := engine.Compute(totalsFixture())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	// 4,250,000 - 3,450,000 - 255,000
	if got := metrics[0].Supply; got != 545000 {
		t.Fatalf("supply=%v, want 545000", got)
	}
	if metrics[0].Sales != nil || metrics[0].Loss != nil || metrics[0].LossRate != nil {
		t.Fatalf("售水未录入时损耗指标应为 nil: %+v", metrics[0])
	}
}

func TestComputeAddSubtractRule(t *testing.T) {
	engine := zone.New([]model.ZoneDefinition{
		{ID: "zone2", Name: "二区", Rule: model.RuleAddSubtract,
			Terms: []string{"如丰大道600监控表", "新城大道医院NB", "三江北帝庙"}},
	})

	metrics, err := engine.Compute(totalsFixture())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	// 255,000 + 30,000 - 180,000
	if got := metrics[0].Supply; got != 105000 {
		t.Fatalf("supply=%v, want 105000", got)
	}
}

func TestComputeDirectRule(t *testing.T) {
	engine := zone.New([]model.ZoneDefinition{
		{ID: "zone3", Name: "三区", Rule: model.RuleDirect, Terms: []string{"三江北帝庙"}},
	})

	metrics, err := engine.Compute(totalsFixture())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if got := metrics[0].Supply; got != 180000 {
		t.Fatalf("supply=%v, want 180000", got)
	}
}

func TestComputeLossAndLossRate(t *testing.T) {
	engine := zone.New([]model.ZoneDefinition{
		{ID: "zone1", Name: "一区", Rule: model.RuleSubtract,
			Terms: []string{"荔新大道", "宁西2总表", "如丰大道600监控表"},
			Sales: floatPtr(490500)},
	})

	metrics, err := engine.Compute(totalsFixture())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	m := metrics[0]
	if m.Loss == nil || *m.Loss != 545000-490500 {
		t.Fatalf("loss=%v, want 54500", m.Loss)
	}
	if m.LossRate == nil || math.Abs(*m.LossRate-54500.0/545000.0) > 1e-12 {
		t.Fatalf("lossRate=%v, want 0.1", m.LossRate)
	}
}

func TestComputeZeroSupplyLossRateGuard(t *testing.T) {
	totals := map[string]model.MonitorPointTotal{
		"三江北帝庙": {LogicalName: "三江北帝庙", TotalValue: 0},
	}
	engine := zone.New([]model.ZoneDefinition{
		{ID: "zone3", Name: "三区", Rule: model.RuleDirect,
			Terms: []string{"三江北帝庙"}, Sales: floatPtr(100)},
	})

	metrics, err := engine.Compute(totals)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	m := metrics[0]
	if m.Loss == nil || *m.Loss != -100 {
		t.Fatalf("loss=%v, want -100", m.Loss)
	}
	// 供水量为 0 时损耗率定义为 0，不抛除零错误
	if m.LossRate == nil || *m.LossRate != 0 {
		t.Fatalf("lossRate=%v, want 0", m.LossRate)
	}
}

func TestComputeUnknownRuleRejected(t *testing.T) {
	engine := zone.New([]model.ZoneDefinition{
		{ID: "zoneX", Name: "未知区", Rule: model.RuleKind("multiply"), Terms: []string{"荔新大道"}},
	})

	_, err := engine.Compute(totalsFixture())
	if err == nil {
		t.Fatalf("未知公式类型应报错")
	}
	if !strings.Contains(err.Error(), "人工确认") {
		t.Fatalf("err=%v, 应提示人工确认", err)
	}
}

func TestTotals(t *testing.T) {
	engine := zone.New(nil)
	metrics := []model.ZoneMetrics{
		{ZoneID: "zone1", Supply: 545000, Sales: floatPtr(490500)},
		{ZoneID: "zone2", Supply: 105000},
		{ZoneID: "zone3", Supply: 180000, Sales: floatPtr(170000)},
	}

	total := engine.Totals(metrics)

	if total.Supply != 830000 {
		t.Fatalf("total supply=%v, want 830000", total.Supply)
	}
	// 售水合计只统计已录入的区域
	if total.Sales == nil || *total.Sales != 660500 {
		t.Fatalf("total sales=%v, want 660500", total.Sales)
	}
	if total.Loss == nil || *total.Loss != 830000-660500 {
		t.Fatalf("total loss=%v, want 169500", total.Loss)
	}
	if total.LossRate == nil || math.Abs(*total.LossRate-169500.0/830000.0) > 1e-12 {
		t.Fatalf("total lossRate=%v", total.LossRate)
	}
}

func TestTotalsNoSales(t *testing.T) {
	engine := zone.New(nil)
	metrics := []model.ZoneMetrics{
		{ZoneID: "zone1", Supply: 100},
		{ZoneID: "zone2", Supply: 200},
	}

	total := engine.Totals(metrics)

	if total.Supply != 300 {
		t.Fatalf("total supply=%v, want 300", total.Supply)
	}
	if total.Sales != nil || total.Loss != nil || total.LossRate != nil {
		t.Fatalf("无售水录入时合计损耗指标应为 nil: %+v", total)
	}
}
