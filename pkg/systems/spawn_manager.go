package systems

import (
	"errors"
	"fmt"
	"log"

	"github.com/gonewx/spawnpool/pkg/config"
	"github.com/gonewx/spawnpool/pkg/game"
)

// SpawnState 调度器状态
type SpawnState int

const (
	// SpawnStateIdle 没有进行中的生产循环（未开始、已完成或被背压挂起）
	SpawnStateIdle SpawnState = iota
	// SpawnStatePoolWarming 预热对象池，每个 tick 实例化固定数量的对象
	SpawnStatePoolWarming
	// SpawnStateProducing 按间隔激活池对象
	SpawnStateProducing
	// SpawnStateDraining 有空位释放，等待一个 tick（或重生延迟）后恢复生产
	SpawnStateDraining
)

// String 返回状态名称（用于日志）
func (s SpawnState) String() string {
	switch s {
	case SpawnStateIdle:
		return "Idle"
	case SpawnStatePoolWarming:
		return "PoolWarming"
	case SpawnStateProducing:
		return "Producing"
	case SpawnStateDraining:
		return "Draining"
	default:
		return fmt.Sprintf("SpawnState(%d)", int(s))
	}
}

// MinimalSpawnDelay StartImmediateProduction 使用的生产间隔（秒）
const MinimalSpawnDelay = 0.01

// SpawnedEvent 单位激活事件
type SpawnedEvent struct {
	LaneIndex int
	LaneID    string
	Entry     *game.PoolEntry
	Template  game.Template
	Produced  int // 激活后的已生产数量
	Total     int
}

// SpawnManagerOptions 调度器参数
type SpawnManagerOptions struct {
	TickInterval float64 // 固定步长（秒），<= 0 使用 config.DefaultTickInterval
	WarmPerTick  int     // 预热阶段每 tick 实例化数量，<= 0 使用 config.DefaultWarmPerTick
	Verbose      bool    // 输出每次生产的调试日志
}

// OptionsFromConfig 从生产计划配置读取调度器参数
func OptionsFromConfig(cfg *config.ProductionConfig) SpawnManagerOptions {
	if cfg == nil {
		return SpawnManagerOptions{}
	}
	return SpawnManagerOptions{
		TickInterval: cfg.EffectiveTickInterval(),
		WarmPerTick:  cfg.EffectiveWarmPerTick(),
	}
}

// SpawnManager 池化单位生产调度器
//
// 职责：
//   - 驱动 Idle / PoolWarming / Producing / Draining 状态机
//   - 从 ProductionPlan 选择出生点，从 ObjectPool 取出（或扩充）池对象并激活
//   - 接收池对象的失效通知，更新配额并在有空位时恢复生产
//   - 在本轮生产完成且场上清空时触发一次"最后一个单位清除"事件
//
// 架构说明：
//   - 由宿主的固定步长循环调用 Update(deltaTime)，所有调用都在同一个 goroutine 上
//   - running 表示一轮生产尚未结束，同一时间只允许一轮生产
//   - 没有可用出生点时回到 Idle（背压），剩余配额等待失效通知触发恢复
type SpawnManager struct {
	plan *game.ProductionPlan
	pool *game.ObjectPool

	tickInterval float64
	warmPerTick  int
	verbose      bool

	state      SpawnState
	running    bool    // 本轮生产已开始且终止事件尚未触发
	immediate  bool    // 本轮使用 MinimalSpawnDelay
	spawnTimer float64 // 距离下一次生产的剩余时间
	drainTimer float64 // Draining 状态剩余等待时间
	warmTarget int

	spawnedHandlers []func(SpawnedEvent)
	clearedHandlers []func()
}

// NewSpawnManager 创建调度器并注册为对象池的生命周期监听者
//
// 参数:
//   - plan: 生产计划
//   - pool: 对象池（调度器会接管其监听者）
//   - opts: 调度器参数
//
// 返回:
//   - error: 计划缺失出生点/模板或上限非法时返回错误，调度器不会被创建
func NewSpawnManager(plan *game.ProductionPlan, pool *game.ObjectPool, opts SpawnManagerOptions) (*SpawnManager, error) {
	if plan == nil {
		return nil, errors.New("spawn manager requires a production plan")
	}
	if pool == nil {
		return nil, errors.New("spawn manager requires an object pool")
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid production plan %q: %w", plan.Name(), err)
	}

	tickInterval := opts.TickInterval
	if tickInterval <= 0 {
		tickInterval = config.DefaultTickInterval
	}
	warmPerTick := opts.WarmPerTick
	if warmPerTick <= 0 {
		warmPerTick = config.DefaultWarmPerTick
	}

	m := &SpawnManager{
		plan:         plan,
		pool:         pool,
		tickInterval: tickInterval,
		warmPerTick:  warmPerTick,
		verbose:      opts.Verbose,
		state:        SpawnStateIdle,
	}
	pool.SetListener(m)

	log.Printf("[SpawnManager] 已为生产计划 %q 创建: %d 个出生点, 上限 %d, 池容量 %d",
		plan.Name(), plan.LaneCount(), plan.GlobalCap(), plan.TotalCapacity())
	return m, nil
}

// OnUnitSpawned 注册单位激活回调
func (m *SpawnManager) OnUnitSpawned(handler func(SpawnedEvent)) {
	if handler != nil {
		m.spawnedHandlers = append(m.spawnedHandlers, handler)
	}
}

// OnFinalUnitCleared 注册"最后一个单位清除"回调（每轮最多触发一次）
func (m *SpawnManager) OnFinalUnitCleared(handler func()) {
	if handler != nil {
		m.clearedHandlers = append(m.clearedHandlers, handler)
	}
}

// SetVerbose 开关每次生产的调试日志
func (m *SpawnManager) SetVerbose(verbose bool) {
	m.verbose = verbose
}

// State 当前状态
func (m *SpawnManager) State() SpawnState {
	return m.state
}

// IsRunning 本轮生产是否仍在进行（包括背压挂起和等待场上清空）
func (m *SpawnManager) IsRunning() bool {
	return m.running
}

// Plan 返回生产计划
func (m *SpawnManager) Plan() *game.ProductionPlan {
	return m.plan
}

// Pool 返回对象池
func (m *SpawnManager) Pool() *game.ObjectPool {
	return m.pool
}

// StartProduction 按配置的生产总数开始一轮生产
//
// 参数:
//   - synchronous: 为 true 时在本次调用内完成预热并连续生产（忽略间隔），
//     直到完成或没有可用出生点
//
// 返回:
//   - bool: 已有一轮生产在进行时返回 false
func (m *SpawnManager) StartProduction(synchronous bool) bool {
	return m.start(0, synchronous, false, nil)
}

// StartProductionCount 以指定的生产总数开始一轮生产，count < 1 时不执行
func (m *SpawnManager) StartProductionCount(count int, synchronous bool) bool {
	if count < 1 {
		log.Printf("[SpawnManager] 忽略生产数量为 %d 的启动请求", count)
		return false
	}
	return m.start(count, synchronous, false, nil)
}

// StartImmediateProduction 以 MinimalSpawnDelay 为间隔开始一轮生产（用于快速布置场景）
func (m *SpawnManager) StartImmediateProduction() bool {
	return m.start(0, false, true, nil)
}

// ResumeProduction 从存档的配额进度继续一轮生产，只生产剩余部分
//
// 返回:
//   - bool: 进度为空、已全部完成或已有一轮生产在进行时返回 false
func (m *SpawnManager) ResumeProduction(progress *game.RunProgress, synchronous bool) bool {
	if progress == nil || progress.Remaining() <= 0 {
		log.Printf("[SpawnManager] 生产计划 %q 没有可继续的进度", m.plan.Name())
		return false
	}
	if progress.PlanName != "" && progress.PlanName != m.plan.Name() {
		log.Printf("[SpawnManager] 警告: 进度属于生产计划 %q，而不是 %q", progress.PlanName, m.plan.Name())
		return false
	}
	return m.start(progress.Total, synchronous, false, progress)
}

// StopProduction 取消当前状态并结束本轮生产，之后不会再自动恢复
//
// 已激活的单位不会回滚；场上已经清空时立即触发终止事件
func (m *SpawnManager) StopProduction() {
	if !m.running {
		return
	}
	log.Printf("[SpawnManager] 在状态 %s 停止生产 (已生产 %d/%d, 激活 %d)",
		m.state, m.plan.Produced(), m.plan.Total(), m.plan.ActiveCount())
	m.state = SpawnStateIdle
	m.spawnTimer = 0
	m.drainTimer = 0
	m.plan.MarkComplete()
	m.checkFinalCleared()
}

// WarmPool 同步扩充对象池到指定大小（按权重选择模板）
func (m *SpawnManager) WarmPool(size int) error {
	for m.pool.Size() < size {
		if err := m.growOne(); err != nil {
			return err
		}
	}
	return nil
}

// NotifyEntityDisabled 池对象自然失效
//
// 参数:
//   - laneIndex: 单位所属出生点
//   - respawn: 为 true 时退还一个配额，稍后生产替代单位
//   - respawnDelay: 恢复生产前至少等待的时间（秒）
func (m *SpawnManager) NotifyEntityDisabled(laneIndex int, respawn bool, respawnDelay float64) {
	if err := m.plan.RecordRemoval(laneIndex, !respawn); err != nil {
		log.Printf("[SpawnManager] 警告: 忽略单位停用通知: %v", err)
		return
	}
	if m.verbose {
		log.Printf("[SpawnManager] 出生点 %d 的单位已停用 (respawn=%v, 激活=%d)",
			laneIndex, respawn, m.plan.ActiveCount())
	}
	m.afterRemoval(respawnDelay)
}

// NotifyEntityInvalidated 池对象被作废，不计入完成数量
func (m *SpawnManager) NotifyEntityInvalidated(laneIndex int) {
	if err := m.plan.RecordRemoval(laneIndex, false); err != nil {
		log.Printf("[SpawnManager] 警告: 忽略单位作废通知: %v", err)
		return
	}
	if m.verbose {
		log.Printf("[SpawnManager] 出生点 %d 的单位已作废 (激活=%d)", laneIndex, m.plan.ActiveCount())
	}
	m.afterRemoval(0)
}

// Update 推进状态机
//
// 参数:
//   - deltaTime: 距上一次调用的时间（秒），通常等于固定步长
func (m *SpawnManager) Update(deltaTime float64) {
	switch m.state {
	case SpawnStateIdle:
		return
	case SpawnStatePoolWarming:
		m.updateWarming()
	case SpawnStateProducing:
		m.updateProducing(deltaTime)
	case SpawnStateDraining:
		m.drainTimer -= deltaTime
		if m.drainTimer <= 0 {
			m.drainTimer = 0
			if m.verbose {
				log.Printf("[SpawnManager] 恢复生产 (剩余 %d)", m.plan.AmountLeft())
			}
			m.enterRun()
		}
	}
}

// start 开始一轮生产，count 为 0 时使用配置的生产总数
func (m *SpawnManager) start(count int, synchronous, immediate bool, restore *game.RunProgress) bool {
	if m.state != SpawnStateIdle || m.running {
		log.Printf("[SpawnManager] 生产已在进行中 (状态 %s)，忽略启动请求", m.state)
		return false
	}

	if count > 0 {
		m.plan.SetTotalOverride(count)
	} else {
		m.plan.ClearTotalOverride()
	}
	m.plan.Reset()
	if restore != nil {
		m.plan.RestoreProgress(restore)
	}
	m.running = true
	m.immediate = immediate
	m.warmTarget = m.plan.AmountLeft()
	if capacity := m.plan.TotalCapacity(); capacity < m.warmTarget {
		m.warmTarget = capacity
	}

	log.Printf("[SpawnManager] 开始生产 %d/%d 个单位 (生产计划 %q, synchronous=%v, immediate=%v, 预热目标 %d)",
		m.plan.AmountLeft(), m.plan.Total(), m.plan.Name(), synchronous, immediate, m.warmTarget)

	if synchronous {
		m.runSynchronously()
		return true
	}
	m.enterRun()
	return true
}

// enterRun 开始（或恢复）生产：对象池不足时先预热
func (m *SpawnManager) enterRun() {
	if m.pool.Size() < m.warmTarget {
		m.state = SpawnStatePoolWarming
		return
	}
	m.enterProducing()
}

func (m *SpawnManager) enterProducing() {
	m.state = SpawnStateProducing
	m.spawnTimer = m.nextDelay()
}

func (m *SpawnManager) nextDelay() float64 {
	if m.immediate {
		return MinimalSpawnDelay
	}
	return m.plan.NextDelay()
}

func (m *SpawnManager) updateWarming() {
	for i := 0; i < m.warmPerTick && m.pool.Size() < m.warmTarget; i++ {
		if err := m.growOne(); err != nil {
			log.Printf("[SpawnManager] 错误: 对象池预热失败: %v", err)
			m.state = SpawnStateIdle
			return
		}
	}
	if m.pool.Size() >= m.warmTarget {
		if m.verbose {
			log.Printf("[SpawnManager] 对象池已预热到 %d 个条目", m.pool.Size())
		}
		m.enterProducing()
	}
}

func (m *SpawnManager) updateProducing(deltaTime float64) {
	m.spawnTimer -= deltaTime
	for m.spawnTimer <= 0 {
		if m.plan.IsProductionComplete() {
			m.finishProducing()
			return
		}
		if !m.spawnOne() {
			m.state = SpawnStateIdle
			m.spawnTimer = 0
			if m.verbose {
				log.Printf("[SpawnManager] 所有出生点已满，%d 个单位等待生产", m.plan.AmountLeft())
			}
			return
		}
		if m.plan.IsProductionComplete() {
			m.finishProducing()
			return
		}
		m.spawnTimer += m.nextDelay()
	}
}

// runSynchronously 在一次调用内完成预热并连续生产
func (m *SpawnManager) runSynchronously() {
	if err := m.WarmPool(m.warmTarget); err != nil {
		log.Printf("[SpawnManager] 错误: 对象池预热失败: %v", err)
		m.state = SpawnStateIdle
		return
	}
	for !m.plan.IsProductionComplete() {
		if !m.spawnOne() {
			m.state = SpawnStateIdle
			return
		}
	}
	m.finishProducing()
}

func (m *SpawnManager) finishProducing() {
	m.state = SpawnStateIdle
	m.spawnTimer = 0
	log.Printf("[SpawnManager] 生产完成: 已生产 %d/%d, 激活 %d",
		m.plan.Produced(), m.plan.Total(), m.plan.ActiveCount())
	m.checkFinalCleared()
}

// spawnOne 激活一个池对象，没有可用出生点或激活失败时返回 false
func (m *SpawnManager) spawnOne() bool {
	laneIndex, ok := m.plan.PickAvailableLane()
	if !ok {
		return false
	}

	entry, ok := m.pool.Acquire()
	if !ok {
		template, err := m.plan.PickTemplate()
		if err != nil {
			log.Printf("[SpawnManager] 错误: 无法选择模板: %v", err)
			return false
		}
		entry, err = m.pool.Grow(template)
		if err != nil {
			log.Printf("[SpawnManager] 错误: 无法扩充对象池: %v", err)
			return false
		}
	}

	lane := m.plan.Lane(laneIndex)
	if err := entry.Activate(laneIndex, lane.SpawnTransform()); err != nil {
		log.Printf("[SpawnManager] 错误: 无法激活池条目: %v", err)
		return false
	}
	if err := m.plan.RecordProduction(laneIndex); err != nil {
		log.Printf("[SpawnManager] 错误: %v", err)
		m.pool.Release(entry)
		return false
	}

	event := SpawnedEvent{
		LaneIndex: laneIndex,
		LaneID:    lane.ID,
		Entry:     entry,
		Template:  entry.Template(),
		Produced:  m.plan.Produced(),
		Total:     m.plan.Total(),
	}
	if m.verbose {
		log.Printf("[SpawnManager] 已生产 %s (槽位 %d) 于出生点 %s: %d/%d, 激活 %d",
			event.Template.ID, entry.Slot(), lane.ID, event.Produced, event.Total, m.plan.ActiveCount())
	}
	for _, handler := range m.spawnedHandlers {
		handler(event)
	}
	return true
}

func (m *SpawnManager) growOne() error {
	template, err := m.plan.PickTemplate()
	if err != nil {
		return err
	}
	_, err = m.pool.Grow(template)
	return err
}

// afterRemoval 失效通知后的处理：检查终止条件，或在挂起时安排恢复
func (m *SpawnManager) afterRemoval(respawnDelay float64) {
	if !m.running {
		return
	}
	if m.plan.IsProductionComplete() {
		m.checkFinalCleared()
		return
	}

	wait := m.tickInterval
	if respawnDelay > wait {
		wait = respawnDelay
	}
	switch m.state {
	case SpawnStateIdle:
		m.state = SpawnStateDraining
		m.drainTimer = wait
	case SpawnStateDraining:
		if wait > m.drainTimer {
			m.drainTimer = wait
		}
	case SpawnStateProducing:
		// 退还的配额至少等待 respawnDelay 才会被生产
		if respawnDelay > m.spawnTimer {
			m.spawnTimer = respawnDelay
		}
	}
}

// checkFinalCleared 本轮完成且场上清空时触发一次终止事件
func (m *SpawnManager) checkFinalCleared() {
	if !m.running || !m.plan.IsProductionComplete() || m.plan.ActiveCount() != 0 {
		return
	}
	m.running = false
	log.Printf("[SpawnManager] 生产计划 %q 的最后一个单位已清除 (已生产 %d)", m.plan.Name(), m.plan.Produced())
	for _, handler := range m.clearedHandlers {
		handler()
	}
}
