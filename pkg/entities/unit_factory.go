package entities

import (
	"fmt"
	"log"

	"github.com/gonewx/spawnpool/pkg/components"
	"github.com/gonewx/spawnpool/pkg/config"
	"github.com/gonewx/spawnpool/pkg/ecs"
	"github.com/gonewx/spawnpool/pkg/game"
)

// LaneLookup 按索引查询出生点（ProductionPlan 实现）
type LaneLookup interface {
	Lane(index int) *game.Lane
}

// UnitFactory 基于 ECS 的池化单位工厂
//
// 实现 game.EntityFactory：每个模板实例化为一个 ECS 实体，
// 带有 Transform / Pooled / Lifetime / Movement 组件。
// 实体在对象池中常驻，激活时由 UnitHandle 重置生命周期与路径
type UnitFactory struct {
	entityManager *ecs.EntityManager
	lanes         LaneLookup
	lifetime      float64
	speed         float64
}

// NewUnitFactory 创建单位工厂
//
// 参数:
//   - em: 实体管理器
//   - lanes: 出生点查询（用于激活时设置路径目标），可为 nil
//   - unit: 单位行为配置
func NewUnitFactory(em *ecs.EntityManager, lanes LaneLookup, unit config.UnitConfig) *UnitFactory {
	speed := unit.Speed
	if speed <= 0 {
		speed = config.DefaultUnitSpeed
	}
	return &UnitFactory{
		entityManager: em,
		lanes:         lanes,
		lifetime:      unit.Lifetime,
		speed:         speed,
	}
}

// Instantiate 根据模板创建单位实体（初始未激活）
func (f *UnitFactory) Instantiate(template game.Template) (game.EntityHandle, error) {
	if f.entityManager == nil {
		return nil, fmt.Errorf("entity manager cannot be nil")
	}
	if template.ID == "" {
		return nil, fmt.Errorf("template id cannot be empty")
	}

	entityID := f.entityManager.CreateEntity()

	ecs.AddComponent(f.entityManager, entityID, &components.TransformComponent{})
	ecs.AddComponent(f.entityManager, entityID, &components.PooledComponent{
		TemplateID: template.ID,
	})
	ecs.AddComponent(f.entityManager, entityID, &components.LifetimeComponent{
		MaxLifetime: f.lifetime,
	})
	ecs.AddComponent(f.entityManager, entityID, &components.MovementComponent{
		Speed: f.speed,
	})

	log.Printf("[UnitFactory] 已从模板 %[2]s 创建单位 %[1]d", entityID, template.ID)

	return &UnitHandle{
		entityManager: f.entityManager,
		factory:       f,
		id:            entityID,
	}, nil
}

// Destroy 销毁单位实体（场景拆除时调用）
func (f *UnitFactory) Destroy(handle game.EntityHandle) {
	unit, ok := handle.(*UnitHandle)
	if !ok || unit.entityManager != f.entityManager || !f.entityManager.IsAlive(unit.id) {
		return
	}
	f.entityManager.DestroyEntity(unit.id)
}

// UnitHandle 池化单位句柄
type UnitHandle struct {
	entityManager *ecs.EntityManager
	factory       *UnitFactory
	id            ecs.EntityID
}

// EntityID 返回单位对应的 ECS 实体
func (h *UnitHandle) EntityID() ecs.EntityID {
	return h.id
}

// SetTransform 放置单位
func (h *UnitHandle) SetTransform(x, y, rotation float64) {
	transform, ok := ecs.GetComponent[*components.TransformComponent](h.entityManager, h.id)
	if !ok {
		return
	}
	transform.X = x
	transform.Y = y
	transform.Rotation = rotation
}

// SetActive 切换激活状态
//
// 激活时重置生命周期，并从所属出生点读取路径目标
func (h *UnitHandle) SetActive(active bool) {
	pooled, ok := ecs.GetComponent[*components.PooledComponent](h.entityManager, h.id)
	if !ok {
		return
	}
	pooled.Active = active
	if !active {
		return
	}

	if lifetime, ok := ecs.GetComponent[*components.LifetimeComponent](h.entityManager, h.id); ok {
		lifetime.Restart()
	}

	movement, ok := ecs.GetComponent[*components.MovementComponent](h.entityManager, h.id)
	if !ok {
		return
	}
	movement.HasTarget = false
	movement.Escaped = false
	if pooled.Entry == nil || h.factory.lanes == nil {
		return
	}
	lane := h.factory.lanes.Lane(pooled.Entry.LaneIndex())
	if lane != nil && lane.PathTarget != nil {
		movement.TargetX = lane.PathTarget.X
		movement.TargetY = lane.PathTarget.Y
		movement.HasTarget = true
	}
}

// IsActive 单位是否激活
func (h *UnitHandle) IsActive() bool {
	pooled, ok := ecs.GetComponent[*components.PooledComponent](h.entityManager, h.id)
	return ok && pooled.Active
}

// BindPoolEntry 绑定池对象，系统通过它通知调度器
func (h *UnitHandle) BindPoolEntry(entry *game.PoolEntry) {
	if pooled, ok := ecs.GetComponent[*components.PooledComponent](h.entityManager, h.id); ok {
		pooled.Entry = entry
	}
}
