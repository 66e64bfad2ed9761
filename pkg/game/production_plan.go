package game

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/gonewx/spawnpool/pkg/config"
)

// 配置与标识错误
var (
	ErrNoLanes     = errors.New("production plan has no lanes")
	ErrNoTemplates = errors.New("production plan has no templates")
	ErrInvalidCap  = errors.New("production plan global cap must be >= 1")
	ErrUnknownLane = errors.New("unknown lane index")
)

// ProductionPlan 生产计划
//
// 职责：
//   - 持有一轮生产的配额（总数 / 已生产 / 场上存活）
//   - 管理每个出生点的存活计数与并发上限
//   - 提供出生点选择、模板加权选择和生产间隔
//
// 架构说明：
//   - 不涉及调度时序，由 SpawnManager 在单一 tick 上下文中调用
//   - 计数下溢被钳制为 0 并记录到 Anomalies()，不会 panic
type ProductionPlan struct {
	name      string
	lanes     []*Lane
	templates []Template
	globalCap int

	defaultTotal  int // 配置中的默认总数
	totalOverride int // 调用方指定的总数（> 0 时生效）

	total    int // 本轮生产总数
	produced int // 本轮已生产数量
	active   int // 场上存活数量（所有出生点存活数之和）
	halted   bool

	randomizeDelay bool
	useWeights     bool
	minDelay       float64
	maxDelay       float64
	delays         []float64 // 预生成的随机间隔表（每个单位一项）

	rng       *rand.Rand
	anomalies int
}

// NewProductionPlan 根据配置创建生产计划
//
// 参数:
//   - cfg: 已验证的生产计划配置
//   - rng: 随机源，为 nil 时使用基于时间的随机源
//
// 返回:
//   - *ProductionPlan: 已 Reset 的生产计划
//   - error: 配置缺失出生点/模板或上限非法时返回错误
func NewProductionPlan(cfg *config.ProductionConfig, rng *rand.Rand) (*ProductionPlan, error) {
	if cfg == nil {
		return nil, fmt.Errorf("production config is nil")
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	p := &ProductionPlan{
		name:           cfg.Name,
		globalCap:      cfg.GlobalCap,
		defaultTotal:   cfg.TotalToProduce,
		randomizeDelay: cfg.RandomizeDelay,
		useWeights:     cfg.WeightsEnabled(),
		minDelay:       cfg.MinDelay,
		maxDelay:       cfg.MaxDelay,
		rng:            rng,
	}

	for _, lc := range cfg.Lanes {
		lane := &Lane{
			ID:            lc.ID,
			CapAdjustment: lc.CapAdjustment,
			Spawn: Transform{
				Position: Vec2{X: lc.Spawn.X, Y: lc.Spawn.Y},
				Rotation: lc.Spawn.Rotation,
			},
		}
		if lc.PathTarget != nil {
			lane.PathTarget = &Vec2{X: lc.PathTarget.X, Y: lc.PathTarget.Y}
		}
		p.lanes = append(p.lanes, lane)
	}

	for _, tc := range cfg.Templates {
		p.templates = append(p.templates, Template{ID: tc.ID, Priority: tc.Priority})
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	p.Reset()
	return p, nil
}

// Validate 检查计划是否可以开始调度
func (p *ProductionPlan) Validate() error {
	if len(p.lanes) == 0 {
		return ErrNoLanes
	}
	if len(p.templates) == 0 {
		return ErrNoTemplates
	}
	if p.globalCap < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidCap, p.globalCap)
	}
	return nil
}

// Reset 开始新一轮生产前重置计划
//
// 所有出生点存活数清零，重新推导生产总数，已生产数清零。
// 随机间隔表仅在长度与总数不一致时重新生成，连续调用两次结果一致
func (p *ProductionPlan) Reset() {
	for _, lane := range p.lanes {
		lane.liveCount = 0
	}
	p.active = 0
	p.produced = 0
	p.halted = false

	switch {
	case p.totalOverride > 0:
		p.total = p.totalOverride
	case p.defaultTotal > 0:
		p.total = p.defaultTotal
	default:
		p.total = len(p.lanes)
	}

	if p.randomizeDelay && len(p.delays) != p.total {
		p.generateDelays()
	}
}

// generateDelays 为每个单位预生成一个 [minDelay, maxDelay] 区间内的间隔
func (p *ProductionPlan) generateDelays() {
	p.delays = make([]float64, p.total)
	span := p.maxDelay - p.minDelay
	for i := range p.delays {
		p.delays[i] = p.minDelay + p.rng.Float64()*span
	}
}

// SetTotalOverride 设置调用方指定的生产总数（下一次 Reset 生效）
func (p *ProductionPlan) SetTotalOverride(total int) {
	p.totalOverride = total
}

// ClearTotalOverride 清除调用方指定的生产总数
func (p *ProductionPlan) ClearTotalOverride() {
	p.totalOverride = 0
}

// EffectiveCap 出生点的有效并发上限：全局上限 + 调整值，最小为 0
func (p *ProductionPlan) EffectiveCap(laneIndex int) int {
	lane := p.Lane(laneIndex)
	if lane == nil {
		return 0
	}
	limit := p.globalCap + lane.CapAdjustment
	if limit < 0 {
		return 0
	}
	return limit
}

// TotalCapacity 所有出生点有效上限之和（场上同时存活的理论最大值）
func (p *ProductionPlan) TotalCapacity() int {
	total := 0
	for i := range p.lanes {
		total += p.EffectiveCap(i)
	}
	return total
}

// PickAvailableLane 在未饱和的出生点中均匀随机选择一个
//
// 返回:
//   - int: 出生点索引
//   - bool: 所有出生点都已饱和时返回 false（背压信号，不是错误）
func (p *ProductionPlan) PickAvailableLane() (int, bool) {
	available := make([]int, 0, len(p.lanes))
	for i, lane := range p.lanes {
		if lane.liveCount < p.EffectiveCap(i) {
			available = append(available, i)
		}
	}
	if len(available) == 0 {
		return NoLane, false
	}
	return available[p.rng.Intn(len(available))], true
}

// RecordProduction 记录一次成功生产
//
// 必须在池对象已激活之后调用
func (p *ProductionPlan) RecordProduction(laneIndex int) error {
	lane := p.Lane(laneIndex)
	if lane == nil {
		return fmt.Errorf("%w: %d", ErrUnknownLane, laneIndex)
	}
	lane.liveCount++
	p.active++
	p.produced++

	if lane.liveCount > p.EffectiveCap(laneIndex) {
		p.anomalies++
		log.Printf("[ProductionPlan] 警告: 出生点 %s 存活数 %d 超过上限 %d",
			lane.ID, lane.liveCount, p.EffectiveCap(laneIndex))
	}
	if p.produced > p.total {
		p.anomalies++
		log.Printf("[ProductionPlan] 警告: 已生产数 %d 超过总量 %d，已截断", p.produced, p.total)
		p.produced = p.total
	}
	return nil
}

// RecordRemoval 记录一次移除
//
// 参数:
//   - laneIndex: 单位所属出生点
//   - countsAgainstQuota: 为 false 时（无效移除或需要重生）额外退还一个配额，
//     每次调用最多退还一次
func (p *ProductionPlan) RecordRemoval(laneIndex int, countsAgainstQuota bool) error {
	lane := p.Lane(laneIndex)
	if lane == nil {
		return fmt.Errorf("%w: %d", ErrUnknownLane, laneIndex)
	}

	if lane.liveCount > 0 {
		lane.liveCount--
	} else {
		p.anomalies++
		log.Printf("[ProductionPlan] 警告: 出生点 %s 存活数下溢，已置为 0", lane.ID)
	}

	if p.active > 0 {
		p.active--
	} else {
		p.anomalies++
		log.Printf("[ProductionPlan] 警告: 激活数下溢，已置为 0")
	}

	if !countsAgainstQuota {
		if p.produced > 0 {
			p.produced--
		} else {
			p.anomalies++
			log.Printf("[ProductionPlan] 警告: 已生产数下溢，已置为 0")
		}
	}
	return nil
}

// MarkComplete 强制结束本轮生产（StopProduction 使用）
func (p *ProductionPlan) MarkComplete() {
	p.halted = true
}

// IsProductionComplete 已生产数达到总数，或已被强制结束
func (p *ProductionPlan) IsProductionComplete() bool {
	return p.halted || p.produced >= p.total
}

// NextDelay 返回下一次生产前的等待时间（秒）
//
// 随机模式下从预生成表中均匀抽取，否则固定使用 minDelay
func (p *ProductionPlan) NextDelay() float64 {
	if p.randomizeDelay && len(p.delays) > 0 {
		return p.delays[p.rng.Intn(len(p.delays))]
	}
	return p.minDelay
}

// PickTemplate 选择一个模板用于实例化新的池对象
func (p *ProductionPlan) PickTemplate() (Template, error) {
	if len(p.templates) == 0 {
		return Template{}, ErrNoTemplates
	}
	if !p.useWeights {
		return p.templates[0], nil
	}
	return PickWeightedTemplate(p.templates, p.rng), nil
}

// PickWeightedTemplate 按优先级权重选择模板
//
// 累加所有权重得到 totalWeight，抽取 [0, totalWeight) 的随机整数，
// 按顺序累加权重，第一个累计权重大于抽取值的模板被选中。
// 权重全为 0 时返回第一个模板
func PickWeightedTemplate(templates []Template, rng *rand.Rand) Template {
	totalWeight := 0
	for _, t := range templates {
		if t.Priority > 0 {
			totalWeight += t.Priority
		}
	}
	if totalWeight <= 0 {
		return templates[0]
	}

	draw := rng.Intn(totalWeight)
	cumulative := 0
	for _, t := range templates {
		if t.Priority <= 0 {
			continue
		}
		cumulative += t.Priority
		if cumulative > draw {
			return t
		}
	}

	return templates[len(templates)-1]
}

// Lane 按索引获取出生点，索引非法时返回 nil
func (p *ProductionPlan) Lane(index int) *Lane {
	if index < 0 || index >= len(p.lanes) {
		return nil
	}
	return p.lanes[index]
}

// Lanes 返回出生点列表
func (p *ProductionPlan) Lanes() []*Lane {
	return p.lanes
}

// LaneCount 出生点数量
func (p *ProductionPlan) LaneCount() int {
	return len(p.lanes)
}

// Templates 返回模板列表
func (p *ProductionPlan) Templates() []Template {
	return p.templates
}

// Name 计划名称
func (p *ProductionPlan) Name() string {
	return p.name
}

// GlobalCap 全局并发上限
func (p *ProductionPlan) GlobalCap() int {
	return p.globalCap
}

// Total 本轮生产总数
func (p *ProductionPlan) Total() int {
	return p.total
}

// Produced 本轮已生产数量
func (p *ProductionPlan) Produced() int {
	return p.produced
}

// AmountLeft 剩余待生产数量
func (p *ProductionPlan) AmountLeft() int {
	left := p.total - p.produced
	if left < 0 {
		return 0
	}
	return left
}

// ActiveCount 场上存活数量
func (p *ProductionPlan) ActiveCount() int {
	return p.active
}

// Anomalies 计数被钳制的次数（通知顺序异常时递增）
func (p *ProductionPlan) Anomalies() int {
	return p.anomalies
}

// RestoreProgress 从存档恢复配额进度
//
// 调用方应先 Reset。存档中的存活单位不会被恢复，
// 因此已完成数量按存档的 Completed 计算，剩余部分重新生产
func (p *ProductionPlan) RestoreProgress(progress *RunProgress) {
	if progress == nil {
		return
	}
	if progress.Total > 0 {
		p.total = progress.Total
		if p.randomizeDelay && len(p.delays) != p.total {
			p.generateDelays()
		}
	}
	p.produced = progress.Completed
	if p.produced < 0 {
		p.produced = 0
	}
	if p.produced > p.total {
		p.produced = p.total
	}
}

// Progress 生成当前配额进度快照（存活单位视为未完成）
func (p *ProductionPlan) Progress() *RunProgress {
	completed := p.produced - p.active
	if completed < 0 {
		completed = 0
	}
	return &RunProgress{
		Version:   RunProgressVersion,
		PlanName:  p.name,
		Total:     p.total,
		Completed: completed,
		SavedAt:   time.Now(),
	}
}
