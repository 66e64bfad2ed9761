package systems

import (
	"math"

	"github.com/gonewx/spawnpool/pkg/components"
	"github.com/gonewx/spawnpool/pkg/ecs"
)

// UnitMovementSystem 让激活的单位沿出生点路径移动
//
// 到达路径终点的单位标记为 Escaped 并回到对象池，
// 与超时回收一样计入完成数量
type UnitMovementSystem struct {
	entityManager *ecs.EntityManager
}

// NewUnitMovementSystem 创建单位移动系统
func NewUnitMovementSystem(em *ecs.EntityManager) *UnitMovementSystem {
	return &UnitMovementSystem{
		entityManager: em,
	}
}

// Update 推进所有激活单位的位置
func (s *UnitMovementSystem) Update(deltaTime float64) {
	entities := ecs.GetEntitiesWith3[
		*components.MovementComponent,
		*components.TransformComponent,
		*components.PooledComponent,
	](s.entityManager)

	for _, id := range entities {
		pooled, _ := ecs.GetComponent[*components.PooledComponent](s.entityManager, id)
		movement, _ := ecs.GetComponent[*components.MovementComponent](s.entityManager, id)
		if !pooled.Active || !movement.HasTarget || movement.Escaped {
			continue
		}
		transform, _ := ecs.GetComponent[*components.TransformComponent](s.entityManager, id)

		dx := movement.TargetX - transform.X
		dy := movement.TargetY - transform.Y
		distance := math.Hypot(dx, dy)
		step := movement.Speed * deltaTime

		if distance > step {
			transform.X += dx / distance * step
			transform.Y += dy / distance * step
			transform.Rotation = math.Atan2(dy, dx)
			continue
		}

		// 到达终点
		transform.X = movement.TargetX
		transform.Y = movement.TargetY
		movement.Escaped = true
		if pooled.Entry != nil {
			pooled.Entry.Disable(false, 0)
		} else {
			pooled.Active = false
		}
	}
}
