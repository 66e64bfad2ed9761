package game

import (
	"fmt"
	"log"
)

// EntityHandle 可复用实体句柄（由外部实体工厂实现）
type EntityHandle interface {
	// SetTransform 放置实体并设置朝向（弧度）
	SetTransform(x, y, rotation float64)
	// SetActive 切换实体的激活状态
	SetActive(active bool)
	// IsActive 实体当前是否激活
	IsActive() bool
}

// PoolBinder 可选接口：句柄实现后可以拿到自己的池对象，
// 以便在失效时回调 PoolEntry.Disable / Invalidate
type PoolBinder interface {
	BindPoolEntry(entry *PoolEntry)
}

// EntityFactory 实体工厂
type EntityFactory interface {
	// Instantiate 根据模板创建一个新的实体句柄（初始为未激活）
	Instantiate(template Template) (EntityHandle, error)
	// Destroy 销毁实体（仅在场景拆除时调用）
	Destroy(handle EntityHandle)
}

// RemovalListener 接收池对象的生命周期通知（由 SpawnManager 实现）
type RemovalListener interface {
	NotifyEntityDisabled(laneIndex int, respawn bool, respawnDelay float64)
	NotifyEntityInvalidated(laneIndex int)
}

// PoolEntry 对象池中的一个可复用实体
//
// 状态：未激活可用 / 未激活待销毁 / 激活且属于唯一一个出生点
type PoolEntry struct {
	slot           int
	handle         EntityHandle
	template       Template
	active         bool
	laneIndex      int
	beingDestroyed bool
	pool           *ObjectPool
}

// Slot 池中的槽位编号（创建后不变）
func (e *PoolEntry) Slot() int {
	return e.slot
}

// Handle 返回实体句柄
func (e *PoolEntry) Handle() EntityHandle {
	return e.handle
}

// Template 返回创建该实体所用的模板
func (e *PoolEntry) Template() Template {
	return e.template
}

// IsActive 是否处于激活状态
func (e *PoolEntry) IsActive() bool {
	return e.active
}

// LaneIndex 当前所属出生点索引，未激活时为 NoLane
func (e *PoolEntry) LaneIndex() int {
	return e.laneIndex
}

// IsBeingDestroyed 是否已进入销毁流程
func (e *PoolEntry) IsBeingDestroyed() bool {
	return e.beingDestroyed
}

// Activate 将实体放置到出生点并激活
//
// 参数:
//   - laneIndex: 所属出生点索引
//   - transform: 出生位置与朝向
func (e *PoolEntry) Activate(laneIndex int, transform Transform) error {
	if e.beingDestroyed {
		return fmt.Errorf("pool entry %d is being destroyed", e.slot)
	}
	if e.active {
		return fmt.Errorf("pool entry %d is already active (lane %d)", e.slot, e.laneIndex)
	}
	e.handle.SetTransform(transform.Position.X, transform.Position.Y, transform.Rotation)
	e.laneIndex = laneIndex
	e.active = true
	e.handle.SetActive(true)
	return nil
}

// Disable 实体自然失效（被击败/离场）
//
// 参数:
//   - respawn: 是否需要补充一个替代单位（退还配额）
//   - respawnDelay: 补充前的等待时间（秒）
//
// 返回:
//   - bool: 本次调用是否产生了通知；重复调用或销毁中返回 false
func (e *PoolEntry) Disable(respawn bool, respawnDelay float64) bool {
	laneIndex, ok := e.deactivate()
	if !ok {
		return false
	}
	if listener := e.listener(); listener != nil {
		listener.NotifyEntityDisabled(laneIndex, respawn, respawnDelay)
	}
	return true
}

// Invalidate 实体被作废（不计入完成数，例如外部重置导致的移除）
func (e *PoolEntry) Invalidate() bool {
	laneIndex, ok := e.deactivate()
	if !ok {
		return false
	}
	if listener := e.listener(); listener != nil {
		listener.NotifyEntityInvalidated(laneIndex)
	}
	return true
}

// deactivate 置为未激活并解除出生点绑定，返回原出生点
func (e *PoolEntry) deactivate() (int, bool) {
	if !e.active || e.beingDestroyed {
		return NoLane, false
	}
	laneIndex := e.laneIndex
	e.active = false
	e.laneIndex = NoLane
	e.handle.SetActive(false)
	return laneIndex, true
}

func (e *PoolEntry) listener() RemovalListener {
	if e.pool == nil {
		return nil
	}
	return e.pool.listener
}

// ObjectPool 实体对象池
//
// 实体只在场景拆除（Teardown）时销毁，运行期间只会增长，
// 峰值内存等于历史上同时存活数量的最高水位
type ObjectPool struct {
	factory  EntityFactory
	entries  []*PoolEntry
	listener RemovalListener
}

// NewObjectPool 创建对象池
func NewObjectPool(factory EntityFactory) *ObjectPool {
	return &ObjectPool{
		factory: factory,
		entries: make([]*PoolEntry, 0),
	}
}

// SetListener 设置生命周期通知接收者
func (p *ObjectPool) SetListener(listener RemovalListener) {
	p.listener = listener
}

// Acquire 线性扫描第一个可用（未激活且未销毁）的池对象
func (p *ObjectPool) Acquire() (*PoolEntry, bool) {
	for _, entry := range p.entries {
		if !entry.active && !entry.beingDestroyed {
			return entry, true
		}
	}
	return nil, false
}

// Grow 按模板实例化一个新的池对象，加入池中并以未激活状态返回
func (p *ObjectPool) Grow(template Template) (*PoolEntry, error) {
	if p.factory == nil {
		return nil, fmt.Errorf("object pool has no entity factory")
	}
	handle, err := p.factory.Instantiate(template)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate template %s: %w", template.ID, err)
	}

	entry := &PoolEntry{
		slot:      len(p.entries),
		handle:    handle,
		template:  template,
		laneIndex: NoLane,
		pool:      p,
	}
	handle.SetActive(false)
	if binder, ok := handle.(PoolBinder); ok {
		binder.BindPoolEntry(entry)
	}

	p.entries = append(p.entries, entry)
	return entry, nil
}

// Release 将池对象标记为未激活（不发送通知，不销毁）
func (p *ObjectPool) Release(entry *PoolEntry) {
	if entry == nil || entry.pool != p {
		return
	}
	entry.deactivate()
}

// Teardown 场景拆除：标记所有池对象为销毁中并销毁实体
//
// 销毁中的池对象不会再发送生命周期通知
func (p *ObjectPool) Teardown() {
	for _, entry := range p.entries {
		entry.beingDestroyed = true
		entry.active = false
		entry.laneIndex = NoLane
		if p.factory != nil {
			p.factory.Destroy(entry.handle)
		}
	}
	log.Printf("[ObjectPool] 对象池已销毁: %d 个池化实体", len(p.entries))
	p.entries = p.entries[:0]
}

// Size 池中对象总数
func (p *ObjectPool) Size() int {
	return len(p.entries)
}

// ActiveCount 池中激活对象数量
func (p *ObjectPool) ActiveCount() int {
	count := 0
	for _, entry := range p.entries {
		if entry.active {
			count++
		}
	}
	return count
}

// Entries 返回所有池对象（只读使用）
func (p *ObjectPool) Entries() []*PoolEntry {
	return p.entries
}
