package systems

import (
	"github.com/gonewx/spawnpool/pkg/components"
	"github.com/gonewx/spawnpool/pkg/ecs"
)

// UnitLifetimeSystem 管理池化单位的存活时间
//
// 单位超时后通过 PoolEntry.Disable 回到对象池（不销毁实体），
// 由 SpawnManager 更新配额
type UnitLifetimeSystem struct {
	entityManager *ecs.EntityManager
}

// NewUnitLifetimeSystem 创建单位生命周期系统
func NewUnitLifetimeSystem(em *ecs.EntityManager) *UnitLifetimeSystem {
	return &UnitLifetimeSystem{
		entityManager: em,
	}
}

// Update 更新所有激活单位的存活时间
func (s *UnitLifetimeSystem) Update(deltaTime float64) {
	entities := ecs.GetEntitiesWith2[*components.LifetimeComponent, *components.PooledComponent](s.entityManager)

	for _, id := range entities {
		pooled, _ := ecs.GetComponent[*components.PooledComponent](s.entityManager, id)
		if !pooled.Active {
			continue
		}
		lifetime, _ := ecs.GetComponent[*components.LifetimeComponent](s.entityManager, id)

		// MaxLifetime 为 0 的单位不会超时
		if lifetime.MaxLifetime <= 0 || lifetime.IsExpired {
			continue
		}

		lifetime.CurrentLifetime += deltaTime
		if lifetime.CurrentLifetime < lifetime.MaxLifetime {
			continue
		}

		lifetime.IsExpired = true
		if pooled.Entry != nil {
			pooled.Entry.Disable(false, 0)
		} else {
			pooled.Active = false
		}
	}
}
