package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// 调度默认值
const (
	// DefaultTickInterval 默认固定步长（秒），对应 60 TPS
	DefaultTickInterval = 1.0 / 60.0

	// DefaultWarmPerTick 预热阶段每个 tick 默认实例化的对象数
	DefaultWarmPerTick = 1

	// DefaultUnitSpeed 单位默认移动速度（像素/秒）
	DefaultUnitSpeed = 60.0
)

// ProductionConfig 生产计划配置
// 定义一轮生产所需的全部策略：出生点列表、模板权重、间隔与并发上限
type ProductionConfig struct {
	Name           string  `yaml:"name"`           // 计划名称，同时作为进度存档的键
	GlobalCap      int     `yaml:"globalCap"`      // 全局并发上限（每个出生点的基础上限，>= 1）
	TotalToProduce int     `yaml:"totalToProduce"` // 默认生产总数，0 表示使用出生点数量
	RandomizeDelay bool    `yaml:"randomizeDelay"` // 是否对每个单位随机化生产间隔
	MinDelay       float64 `yaml:"minDelay"`       // 最小间隔（秒）；不随机时作为固定间隔
	MaxDelay       float64 `yaml:"maxDelay"`       // 最大间隔（秒）
	UseWeights     *bool   `yaml:"useWeights"`     // 是否按优先级加权选择模板，默认 true

	Lanes     []LaneConfig     `yaml:"lanes"`     // 出生点列表（顺序即索引）
	Templates []TemplateConfig `yaml:"templates"` // 模板列表

	Scheduler SchedulerConfig `yaml:"scheduler"` // 调度器参数（可选）
	Unit      UnitConfig      `yaml:"unit"`      // 默认单位行为参数（可选）
}

// LaneConfig 单个出生点配置
type LaneConfig struct {
	ID            string       `yaml:"id"`            // 出生点标识
	CapAdjustment int          `yaml:"capAdjustment"` // 相对全局上限的调整值（可为负）
	Spawn         PointConfig  `yaml:"spawn"`         // 出生位置与朝向
	PathTarget    *PointConfig `yaml:"pathTarget"`    // 可选：路径目标点
}

// PointConfig 位置与朝向
type PointConfig struct {
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Rotation float64 `yaml:"rotation"` // 朝向（弧度）
}

// TemplateConfig 模板配置
type TemplateConfig struct {
	ID       string `yaml:"id"`       // 蓝图标识
	Priority int    `yaml:"priority"` // 生成优先级权重（>= 0）
}

// SchedulerConfig 调度器参数
type SchedulerConfig struct {
	TickInterval float64 `yaml:"tickInterval"` // 固定步长（秒），0 使用默认值
	WarmPerTick  int     `yaml:"warmPerTick"`  // 预热阶段每 tick 实例化数量，0 使用默认值
}

// UnitConfig 默认单位行为参数（由 ECS 单位工厂使用）
type UnitConfig struct {
	Lifetime float64 `yaml:"lifetime"` // 存活时间（秒），0 表示不因超时回收
	Speed    float64 `yaml:"speed"`    // 朝路径目标移动的速度，0 使用默认值
}

// WeightsEnabled 返回是否启用加权模板选择（未配置时默认启用）
func (c *ProductionConfig) WeightsEnabled() bool {
	if c.UseWeights == nil {
		return true
	}
	return *c.UseWeights
}

// EffectiveTickInterval 返回生效的固定步长
func (c *ProductionConfig) EffectiveTickInterval() float64 {
	if c.Scheduler.TickInterval <= 0 {
		return DefaultTickInterval
	}
	return c.Scheduler.TickInterval
}

// EffectiveWarmPerTick 返回生效的每 tick 预热数量
func (c *ProductionConfig) EffectiveWarmPerTick() int {
	if c.Scheduler.WarmPerTick <= 0 {
		return DefaultWarmPerTick
	}
	return c.Scheduler.WarmPerTick
}

// EffectiveUnitSpeed 返回生效的单位移动速度
func (c *ProductionConfig) EffectiveUnitSpeed() float64 {
	if c.Unit.Speed <= 0 {
		return DefaultUnitSpeed
	}
	return c.Unit.Speed
}

// LoadProductionConfig 从 YAML 文件加载生产计划配置
func LoadProductionConfig(filePath string) (*ProductionConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read production config file: %w", err)
	}

	return ParseProductionConfig(data)
}

// ParseProductionConfig 从 YAML 数据解析生产计划配置（用于嵌入资源）
func ParseProductionConfig(data []byte) (*ProductionConfig, error) {
	var config ProductionConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse production config YAML: %w", err)
	}

	if err := ValidateProductionConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid production config: %w", err)
	}

	return &config, nil
}

// ValidateProductionConfig 验证配置的有效性
//
// 缺少出生点、缺少模板、全局上限非法都属于致命配置错误
func ValidateProductionConfig(config *ProductionConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if len(config.Lanes) == 0 {
		return fmt.Errorf("lanes cannot be empty")
	}
	seen := make(map[string]bool, len(config.Lanes))
	for i, lane := range config.Lanes {
		if lane.ID == "" {
			return fmt.Errorf("lane %d: id cannot be empty", i)
		}
		if seen[lane.ID] {
			return fmt.Errorf("duplicate lane id %q", lane.ID)
		}
		seen[lane.ID] = true
	}

	if len(config.Templates) == 0 {
		return fmt.Errorf("templates cannot be empty")
	}
	for i, tpl := range config.Templates {
		if tpl.ID == "" {
			return fmt.Errorf("template %d: id cannot be empty", i)
		}
		if tpl.Priority < 0 {
			return fmt.Errorf("template priority must be >= 0, got %d for %s", tpl.Priority, tpl.ID)
		}
	}

	if config.GlobalCap < 1 {
		return fmt.Errorf("globalCap must be >= 1, got %d", config.GlobalCap)
	}
	if config.TotalToProduce < 0 {
		return fmt.Errorf("totalToProduce must be >= 0, got %d", config.TotalToProduce)
	}

	if config.MinDelay < 0 {
		return fmt.Errorf("minDelay must be >= 0, got %.2f", config.MinDelay)
	}
	if config.RandomizeDelay && config.MaxDelay < config.MinDelay {
		return fmt.Errorf("maxDelay (%.2f) must be >= minDelay (%.2f)", config.MaxDelay, config.MinDelay)
	}

	if config.Scheduler.TickInterval < 0 {
		return fmt.Errorf("scheduler.tickInterval must be >= 0, got %.4f", config.Scheduler.TickInterval)
	}
	if config.Unit.Lifetime < 0 {
		return fmt.Errorf("unit.lifetime must be >= 0, got %.2f", config.Unit.Lifetime)
	}

	return nil
}
