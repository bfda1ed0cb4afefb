package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"waterledger/internal/model"
)

// AppConfig 应用配置
type AppConfig struct {
	Source   SourceConfig         `toml:"source"`
	Ledger   LedgerConfig         `toml:"ledger"`
	Store    StoreConfig          `toml:"store"`
	Schedule ScheduleConfig       `toml:"schedule"`
	Points   []MonitorPointConfig `toml:"monitor_points"`
	Zones    []ZoneConfig         `toml:"zones"`
}

// SourceConfig 数据源工作簿配置（只读）
type SourceConfig struct {
	Workbook     string   `toml:"workbook"`
	TestWorkbook string   `toml:"test_workbook"`
	SheetIndex   int      `toml:"sheet_index"`
	HeaderRow    int      `toml:"header_row"`
	DataStartRow int      `toml:"data_start_row"`
	ProbePoints  []string `toml:"probe_points"`
}

// LedgerConfig 台账工作簿配置（读写）
type LedgerConfig struct {
	Workbook         string      `toml:"workbook"`
	SheetIndex       int         `toml:"sheet_index"`
	TemplateBlockRow int         `toml:"template_block_row"`
	MaxLookback      int         `toml:"max_lookback"`
	SaveRetry        RetryConfig `toml:"save_retry"`
}

// RetryConfig 保存重试策略（台账可能正被查看器打开）
type RetryConfig struct {
	MaxAttempts int `toml:"max_attempts"`
	DelayMS     int `toml:"delay_ms"`
}

// StoreConfig 运行记录数据库配置
type StoreConfig struct {
	DBPath string `toml:"db_path"`
}

// ScheduleConfig 定时运行配置
type ScheduleConfig struct {
	Cron string `toml:"cron"`
}

// MonitorPointConfig 监控点：逻辑名 + 有序检索词（表头改名时按序降级匹配）
type MonitorPointConfig struct {
	Name  string   `toml:"name"`
	Terms []string `toml:"terms"`
}

// ZoneConfig 区域与其供水量组合公式
type ZoneConfig struct {
	ID    string   `toml:"id"`
	Name  string   `toml:"name"`
	Rule  string   `toml:"rule"`
	Terms []string `toml:"terms"`
	Sales *float64 `toml:"sales"`
}

// envOverrides 环境变量覆盖（前缀 WATERLEDGER_，用于 E2E / 本地运行）
type envOverrides struct {
	SourceWorkbook string `envconfig:"SOURCE_WORKBOOK"`
	LedgerWorkbook string `envconfig:"LEDGER_WORKBOOK"`
	DBPath         string `envconfig:"DB_PATH"`
}

// DefaultConfig 默认配置
// 监控点与区域公式表来自历史台账模板；新城大道医院NB 是否计入二区公式
// 存在历史口径分歧，此处显式写入配置，口径调整只改配置不改代码。
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Source: SourceConfig{
			Workbook:     "data/source.xlsx",
			TestWorkbook: "data/source_test.xlsx",
			SheetIndex:   0,
			HeaderRow:    2,
			DataStartRow: 3,
			ProbePoints:  []string{"荔新大道", "宁西2总表"},
		},
		Ledger: LedgerConfig{
			Workbook:         "data/ledger.xlsx",
			SheetIndex:       0,
			TemplateBlockRow: 2,
			MaxLookback:      64,
			SaveRetry: RetryConfig{
				MaxAttempts: 5,
				DelayMS:     800,
			},
		},
		Store: StoreConfig{
			DBPath: "data/waterledger.db",
		},
		Schedule: ScheduleConfig{
			// 每月25日上午：周期（上月25日～本月24日）刚封口
			Cron: "0 9 25 * *",
		},
		Points: []MonitorPointConfig{
			{Name: "荔新大道", Terms: []string{"荔新大道DN1200", "荔新大道"}},
			{Name: "宁西2总表", Terms: []string{"宁西2总表", "宁西总表DN1000"}},
			{Name: "如丰大道600监控表", Terms: []string{"如丰大道600", "如丰大道"}},
			{Name: "新城大道医院NB", Terms: []string{"新城大道医院NB", "新城大道医院"}},
			{Name: "三江北帝庙", Terms: []string{"三江北帝庙DN800", "三江北帝庙"}},
		},
		Zones: []ZoneConfig{
			{ID: "zone1", Name: "一区", Rule: string(model.RuleSubtract),
				Terms: []string{"荔新大道", "宁西2总表", "如丰大道600监控表"}},
			{ID: "zone2", Name: "二区", Rule: string(model.RuleAddSubtract),
				Terms: []string{"如丰大道600监控表", "新城大道医院NB", "三江北帝庙"}},
			{ID: "zone3", Name: "三区", Rule: string(model.RuleDirect),
				Terms: []string{"三江北帝庙"}},
		},
	}
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// LoadConfig 从 config.toml 加载配置
// 配置文件位于可执行文件同目录下；不存在时使用默认配置。
func LoadConfig() (*AppConfig, error) {
	config := DefaultConfig()

	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}

	configPath := filepath.Join(exeDir, "config.toml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return applyEnv(config)
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return applyEnv(config)
}

func applyEnv(config *AppConfig) (*AppConfig, error) {
	var env envOverrides
	if err := envconfig.Process("waterledger", &env); err != nil {
		return nil, err
	}
	if env.SourceWorkbook != "" {
		config.Source.Workbook = env.SourceWorkbook
	}
	if env.LedgerWorkbook != "" {
		config.Ledger.Workbook = env.LedgerWorkbook
	}
	if env.DBPath != "" {
		config.Store.DBPath = env.DBPath
	}
	return config, nil
}

// SaveConfig 保存配置到 config.toml
func SaveConfig(config *AppConfig) error {
	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}

	configPath := filepath.Join(exeDir, "config.toml")

	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// Validate 校验配置；区域公式只允许三种已知形态，其余拒绝并要求人工确认
func (c *AppConfig) Validate() error {
	if c.Source.HeaderRow < 1 {
		return fmt.Errorf("source.header_row 必须 >= 1，当前 %d", c.Source.HeaderRow)
	}
	if c.Source.DataStartRow <= c.Source.HeaderRow {
		return fmt.Errorf("source.data_start_row 必须在表头行之后，当前 %d", c.Source.DataStartRow)
	}
	if c.Ledger.MaxLookback < 1 {
		return fmt.Errorf("ledger.max_lookback 必须 >= 1，当前 %d", c.Ledger.MaxLookback)
	}
	if c.Ledger.SaveRetry.MaxAttempts < 1 {
		return fmt.Errorf("ledger.save_retry.max_attempts 必须 >= 1，当前 %d", c.Ledger.SaveRetry.MaxAttempts)
	}

	names := make(map[string]bool, len(c.Points))
	for _, p := range c.Points {
		if p.Name == "" {
			return fmt.Errorf("monitor_points 存在空逻辑名")
		}
		if names[p.Name] {
			return fmt.Errorf("监控点 %q 重复定义", p.Name)
		}
		if len(p.Terms) == 0 {
			return fmt.Errorf("监控点 %q 缺少检索词", p.Name)
		}
		names[p.Name] = true
	}

	ids := make(map[string]bool, len(c.Zones))
	for _, z := range c.Zones {
		if z.ID == "" {
			return fmt.Errorf("zones 存在空区域 ID")
		}
		if ids[z.ID] {
			return fmt.Errorf("区域 %q 重复定义", z.ID)
		}
		ids[z.ID] = true

		kind := model.RuleKind(z.Rule)
		want := kind.TermCount()
		if want < 0 {
			return fmt.Errorf("区域 %q 的公式类型 %q 未知，需人工确认后再配置", z.ID, z.Rule)
		}
		if len(z.Terms) != want {
			return fmt.Errorf("区域 %q 的公式 %q 需要 %d 个监控点，当前 %d 个", z.ID, z.Rule, want, len(z.Terms))
		}
		for _, t := range z.Terms {
			if !names[t] {
				return fmt.Errorf("区域 %q 引用了未定义的监控点 %q", z.ID, t)
			}
		}
	}

	return nil
}

// ZoneDefinitions 转换为引擎使用的区域定义
func (c *AppConfig) ZoneDefinitions() []model.ZoneDefinition {
	zones := make([]model.ZoneDefinition, 0, len(c.Zones))
	for _, z := range c.Zones {
		zones = append(zones, model.ZoneDefinition{
			ID:    z.ID,
			Name:  z.Name,
			Rule:  model.RuleKind(z.Rule),
			Terms: z.Terms,
			Sales: z.Sales,
		})
	}
	return zones
}

// PointNames 监控点逻辑名（按配置顺序，即台账列顺序）
func (c *AppConfig) PointNames() []string {
	names := make([]string, 0, len(c.Points))
	for _, p := range c.Points {
		names = append(names, p.Name)
	}
	return names
}
