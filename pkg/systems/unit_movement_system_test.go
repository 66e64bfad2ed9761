package systems

import (
	"math"
	"testing"

	"github.com/gonewx/spawnpool/pkg/components"
	"github.com/gonewx/spawnpool/pkg/config"
	"github.com/gonewx/spawnpool/pkg/ecs"
)

func TestUnitMovementStep(t *testing.T) {
	tests := []struct {
		name        string
		start       [2]float64
		target      [2]float64
		speed       float64
		dt          float64
		wantX       float64
		wantY       float64
		wantEscaped bool
	}{
		{name: "向右移动一步", start: [2]float64{0, 0}, target: [2]float64{100, 0}, speed: 50, dt: 1, wantX: 50, wantY: 0},
		{name: "斜向移动", start: [2]float64{0, 0}, target: [2]float64{30, 40}, speed: 10, dt: 1, wantX: 6, wantY: 8},
		{name: "到达终点", start: [2]float64{90, 0}, target: [2]float64{100, 0}, speed: 50, dt: 1, wantX: 100, wantY: 0, wantEscaped: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			em := ecs.NewEntityManager()
			system := NewUnitMovementSystem(em)

			id := em.CreateEntity()
			ecs.AddComponent(em, id, &components.TransformComponent{X: tt.start[0], Y: tt.start[1]})
			ecs.AddComponent(em, id, &components.PooledComponent{Active: true})
			ecs.AddComponent(em, id, &components.MovementComponent{
				Speed:     tt.speed,
				TargetX:   tt.target[0],
				TargetY:   tt.target[1],
				HasTarget: true,
			})

			system.Update(tt.dt)

			transform, _ := ecs.GetComponent[*components.TransformComponent](em, id)
			movement, _ := ecs.GetComponent[*components.MovementComponent](em, id)
			if math.Abs(transform.X-tt.wantX) > 1e-9 || math.Abs(transform.Y-tt.wantY) > 1e-9 {
				t.Errorf("Expected position (%f, %f), got (%f, %f)", tt.wantX, tt.wantY, transform.X, transform.Y)
			}
			if movement.Escaped != tt.wantEscaped {
				t.Errorf("Expected Escaped=%v, got %v", tt.wantEscaped, movement.Escaped)
			}
		})
	}
}

func TestUnitMovementIgnoresUnitsWithoutTarget(t *testing.T) {
	em := ecs.NewEntityManager()
	system := NewUnitMovementSystem(em)

	id := em.CreateEntity()
	ecs.AddComponent(em, id, &components.TransformComponent{X: 5, Y: 5})
	ecs.AddComponent(em, id, &components.PooledComponent{Active: true})
	ecs.AddComponent(em, id, &components.MovementComponent{Speed: 100})

	system.Update(1)

	transform, _ := ecs.GetComponent[*components.TransformComponent](em, id)
	if transform.X != 5 || transform.Y != 5 {
		t.Error("Unit without path target should not move")
	}
}

func TestUnitMovementEscapeRetiresUnit(t *testing.T) {
	cfg := &config.ProductionConfig{
		Name:           "escape",
		GlobalCap:      1,
		TotalToProduce: 3,
		Lanes: []config.LaneConfig{{
			ID:         "gate",
			Spawn:      config.PointConfig{X: 0, Y: 0},
			PathTarget: &config.PointConfig{X: 10, Y: 0},
		}},
		Templates: []config.TemplateConfig{{ID: "runner", Priority: 1}},
		Unit:      config.UnitConfig{Speed: 100},
	}
	em, m := newUnitWorld(t, cfg)
	system := NewUnitMovementSystem(em)

	spawned := 0
	m.OnUnitSpawned(func(e SpawnedEvent) {
		if e.Entry.Handle().IsActive() {
			spawned++
		}
	})
	m.StartProduction(false)

	for tick := 0; tick < 300 && m.IsRunning(); tick++ {
		m.Update(testTick)
		system.Update(testTick)
		assertSpawnInvariants(t, m)
	}

	if m.IsRunning() {
		t.Fatal("all units should escape and finish the run")
	}
	if spawned != 3 || m.Plan().Produced() != 3 {
		t.Errorf("expected 3 spawned units, got %d (produced %d)", spawned, m.Plan().Produced())
	}
	if m.Pool().Size() != 1 {
		t.Errorf("escaped units should be reused, pool size %d", m.Pool().Size())
	}
}
