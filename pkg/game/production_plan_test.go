package game

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/gonewx/spawnpool/pkg/config"
)

// newTestPlanConfig 创建测试用配置：lanes 个出生点，两个模板
func newTestPlanConfig(lanes int, globalCap int, total int) *config.ProductionConfig {
	cfg := &config.ProductionConfig{
		Name:           "test",
		GlobalCap:      globalCap,
		TotalToProduce: total,
		MinDelay:       0.5,
		MaxDelay:       1.5,
		Templates: []config.TemplateConfig{
			{ID: "grunt", Priority: 1},
			{ID: "brute", Priority: 3},
		},
	}
	for i := 0; i < lanes; i++ {
		cfg.Lanes = append(cfg.Lanes, config.LaneConfig{
			ID:    string(rune('a' + i)),
			Spawn: config.PointConfig{X: float64(i * 100), Y: 0},
		})
	}
	return cfg
}

func newTestPlan(t *testing.T, cfg *config.ProductionConfig, seed int64) *ProductionPlan {
	t.Helper()
	plan, err := NewProductionPlan(cfg, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("NewProductionPlan failed: %v", err)
	}
	return plan
}

// assertPlanInvariants 检查存活数之和与配额不变量
func assertPlanInvariants(t *testing.T, plan *ProductionPlan) {
	t.Helper()
	sum := 0
	for i, lane := range plan.Lanes() {
		if lane.LiveCount() < 0 {
			t.Errorf("lane %s live count negative: %d", lane.ID, lane.LiveCount())
		}
		if lane.LiveCount() > plan.EffectiveCap(i) {
			t.Errorf("lane %s live count %d exceeds cap %d", lane.ID, lane.LiveCount(), plan.EffectiveCap(i))
		}
		sum += lane.LiveCount()
	}
	if sum != plan.ActiveCount() {
		t.Errorf("sum of lane live counts %d != active count %d", sum, plan.ActiveCount())
	}
	if plan.Produced() > plan.Total() {
		t.Errorf("produced %d exceeds total %d", plan.Produced(), plan.Total())
	}
}

func TestNewProductionPlanValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.ProductionConfig)
		wantErr error
	}{
		{
			name:    "缺少出生点",
			mutate:  func(c *config.ProductionConfig) { c.Lanes = nil },
			wantErr: ErrNoLanes,
		},
		{
			name:    "缺少模板",
			mutate:  func(c *config.ProductionConfig) { c.Templates = nil },
			wantErr: ErrNoTemplates,
		},
		{
			name:    "全局上限为零",
			mutate:  func(c *config.ProductionConfig) { c.GlobalCap = 0 },
			wantErr: ErrInvalidCap,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestPlanConfig(2, 1, 3)
			tt.mutate(cfg)
			_, err := NewProductionPlan(cfg, rand.New(rand.NewSource(1)))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := NewProductionPlan(nil, nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestResetDerivesTotal(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		override int
		expected int
	}{
		{name: "使用配置总数", total: 7, expected: 7},
		{name: "未配置时使用出生点数量", total: 0, expected: 3},
		{name: "调用方指定总数优先", total: 7, override: 2, expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := newTestPlan(t, newTestPlanConfig(3, 1, tt.total), 1)
			plan.SetTotalOverride(tt.override)
			plan.Reset()
			if plan.Total() != tt.expected {
				t.Errorf("expected total %d, got %d", tt.expected, plan.Total())
			}
			if plan.Produced() != 0 || plan.AmountLeft() != tt.expected {
				t.Errorf("expected fresh quota, produced=%d left=%d", plan.Produced(), plan.AmountLeft())
			}
		})
	}
}

func TestResetClearsLiveCounts(t *testing.T) {
	plan := newTestPlan(t, newTestPlanConfig(2, 2, 4), 1)
	_ = plan.RecordProduction(0)
	_ = plan.RecordProduction(1)
	plan.MarkComplete()

	plan.Reset()

	for _, lane := range plan.Lanes() {
		if lane.LiveCount() != 0 {
			t.Errorf("lane %s should be reset, got %d", lane.ID, lane.LiveCount())
		}
	}
	if plan.ActiveCount() != 0 || plan.Produced() != 0 {
		t.Errorf("expected zero counters, active=%d produced=%d", plan.ActiveCount(), plan.Produced())
	}
	if plan.IsProductionComplete() {
		t.Error("reset should clear the halted flag")
	}
}

// planState 用于比较两次 Reset 后的状态
type planState struct {
	Live     []int
	Total    int
	Produced int
	Active   int
	Delays   []float64
	Complete bool
}

func capturePlanState(p *ProductionPlan) planState {
	s := planState{
		Total:    p.Total(),
		Produced: p.Produced(),
		Active:   p.ActiveCount(),
		Complete: p.IsProductionComplete(),
		Delays:   append([]float64(nil), p.delays...),
	}
	for _, lane := range p.Lanes() {
		s.Live = append(s.Live, lane.LiveCount())
	}
	return s
}

func TestResetIdempotent(t *testing.T) {
	cfg := newTestPlanConfig(3, 2, 5)
	cfg.RandomizeDelay = true
	plan := newTestPlan(t, cfg, 42)

	_ = plan.RecordProduction(0)
	_ = plan.RecordProduction(2)

	plan.Reset()
	first := capturePlanState(plan)
	plan.Reset()
	second := capturePlanState(plan)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("consecutive resets should be identical:\nfirst=%+v\nsecond=%+v", first, second)
	}
}

func TestPickAvailableLaneRespectsCap(t *testing.T) {
	cfg := newTestPlanConfig(3, 1, 10)
	cfg.Lanes[1].CapAdjustment = -1 // 有效上限 0，永远不可选
	cfg.Lanes[2].CapAdjustment = 1  // 有效上限 2
	plan := newTestPlan(t, cfg, 7)

	if plan.EffectiveCap(1) != 0 {
		t.Errorf("expected cap 0 for lane b, got %d", plan.EffectiveCap(1))
	}
	if plan.TotalCapacity() != 3 {
		t.Errorf("expected total capacity 3, got %d", plan.TotalCapacity())
	}

	for i := 0; i < 3; i++ {
		lane, ok := plan.PickAvailableLane()
		if !ok {
			t.Fatalf("expected available lane on pick %d", i)
		}
		if lane == 1 {
			t.Fatal("lane with zero cap must never be picked")
		}
		if err := plan.RecordProduction(lane); err != nil {
			t.Fatalf("RecordProduction failed: %v", err)
		}
		assertPlanInvariants(t, plan)
	}

	if lane, ok := plan.PickAvailableLane(); ok {
		t.Errorf("all lanes saturated, expected none, got %d", lane)
	}
}

func TestEffectiveCapFloor(t *testing.T) {
	cfg := newTestPlanConfig(1, 1, 1)
	cfg.Lanes[0].CapAdjustment = -5
	plan := newTestPlan(t, cfg, 1)

	if plan.EffectiveCap(0) != 0 {
		t.Errorf("effective cap should floor at 0, got %d", plan.EffectiveCap(0))
	}
	if plan.EffectiveCap(9) != 0 {
		t.Errorf("unknown lane cap should be 0, got %d", plan.EffectiveCap(9))
	}
}

func TestPickAvailableLaneUniform(t *testing.T) {
	plan := newTestPlan(t, newTestPlanConfig(4, 1, 4), 99)

	const draws = 20000
	counts := make([]int, 4)
	for i := 0; i < draws; i++ {
		lane, ok := plan.PickAvailableLane()
		if !ok {
			t.Fatal("expected available lane")
		}
		counts[lane]++
	}

	// 每个出生点期望 25%，允许 ±2%
	for i, c := range counts {
		ratio := float64(c) / draws
		if math.Abs(ratio-0.25) > 0.02 {
			t.Errorf("lane %d picked with ratio %.4f, expected ~0.25", i, ratio)
		}
	}
}

func TestRecordRemoval(t *testing.T) {
	tests := []struct {
		name               string
		countsAgainstQuota bool
		expectedProduced   int
	}{
		{name: "自然回收计入完成数", countsAgainstQuota: true, expectedProduced: 2},
		{name: "作废或重生退还一个配额", countsAgainstQuota: false, expectedProduced: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := newTestPlan(t, newTestPlanConfig(2, 1, 2), 3)
			_ = plan.RecordProduction(0)
			_ = plan.RecordProduction(1)
			if !plan.IsProductionComplete() {
				t.Fatal("plan should be complete after producing total")
			}

			if err := plan.RecordRemoval(0, tt.countsAgainstQuota); err != nil {
				t.Fatalf("RecordRemoval failed: %v", err)
			}
			assertPlanInvariants(t, plan)

			if plan.Produced() != tt.expectedProduced {
				t.Errorf("expected produced %d, got %d", tt.expectedProduced, plan.Produced())
			}
			if plan.ActiveCount() != 1 {
				t.Errorf("expected active 1, got %d", plan.ActiveCount())
			}
			if plan.Anomalies() != 0 {
				t.Errorf("expected no anomalies, got %d", plan.Anomalies())
			}
		})
	}
}

func TestRecordRemovalUnderflowClamped(t *testing.T) {
	plan := newTestPlan(t, newTestPlanConfig(1, 1, 1), 1)

	if err := plan.RecordRemoval(0, false); err != nil {
		t.Fatalf("RecordRemoval failed: %v", err)
	}

	if plan.Lane(0).LiveCount() != 0 || plan.ActiveCount() != 0 || plan.Produced() != 0 {
		t.Error("counters must be clamped at 0")
	}
	// 出生点、全局存活、已生产各钳制一次
	if plan.Anomalies() != 3 {
		t.Errorf("expected 3 anomalies, got %d", plan.Anomalies())
	}
}

func TestUnknownLane(t *testing.T) {
	plan := newTestPlan(t, newTestPlanConfig(1, 1, 1), 1)

	if err := plan.RecordProduction(5); !errors.Is(err, ErrUnknownLane) {
		t.Errorf("expected ErrUnknownLane, got %v", err)
	}
	if err := plan.RecordRemoval(-1, true); !errors.Is(err, ErrUnknownLane) {
		t.Errorf("expected ErrUnknownLane, got %v", err)
	}
	if plan.Produced() != 0 || plan.ActiveCount() != 0 {
		t.Error("unknown lane must not change counters")
	}
}

func TestMarkComplete(t *testing.T) {
	plan := newTestPlan(t, newTestPlanConfig(1, 1, 5), 1)
	_ = plan.RecordProduction(0)

	plan.MarkComplete()

	if !plan.IsProductionComplete() {
		t.Error("plan should report complete after MarkComplete")
	}
	if plan.AmountLeft() != 4 {
		t.Errorf("produced count should be left untouched, amount left = %d", plan.AmountLeft())
	}
}

func TestWeightedTemplateDistribution(t *testing.T) {
	templates := []Template{{ID: "A", Priority: 1}, {ID: "B", Priority: 3}}
	rng := rand.New(rand.NewSource(2024))

	const draws = 10000
	counts := map[string]int{}
	for i := 0; i < draws; i++ {
		counts[PickWeightedTemplate(templates, rng).ID]++
	}

	if counts["A"] == 0 {
		t.Fatal("template A never selected")
	}
	ratio := float64(counts["B"]) / float64(counts["A"])
	if ratio < 2.7 || ratio > 3.3 {
		t.Errorf("expected B:A ratio ~3, got %.3f (A=%d, B=%d)", ratio, counts["A"], counts["B"])
	}
}

func TestPickWeightedTemplateZeroWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	mixed := []Template{{ID: "never", Priority: 0}, {ID: "always", Priority: 2}}
	for i := 0; i < 500; i++ {
		if got := PickWeightedTemplate(mixed, rng); got.ID != "always" {
			t.Fatalf("zero-weight template selected: %s", got.ID)
		}
	}

	allZero := []Template{{ID: "first", Priority: 0}, {ID: "second", Priority: 0}}
	if got := PickWeightedTemplate(allZero, rng); got.ID != "first" {
		t.Errorf("all-zero weights should fall back to first template, got %s", got.ID)
	}
}

func TestPickTemplateWeightsDisabled(t *testing.T) {
	cfg := newTestPlanConfig(1, 1, 1)
	disabled := false
	cfg.UseWeights = &disabled
	plan := newTestPlan(t, cfg, 1)

	for i := 0; i < 100; i++ {
		tpl, err := plan.PickTemplate()
		if err != nil {
			t.Fatalf("PickTemplate failed: %v", err)
		}
		if tpl.ID != "grunt" {
			t.Fatalf("weights disabled should always select first template, got %s", tpl.ID)
		}
	}
}

func TestNextDelay(t *testing.T) {
	t.Run("固定间隔", func(t *testing.T) {
		plan := newTestPlan(t, newTestPlanConfig(1, 1, 3), 1)
		for i := 0; i < 10; i++ {
			if d := plan.NextDelay(); d != 0.5 {
				t.Fatalf("expected fixed delay 0.5, got %f", d)
			}
		}
	})

	t.Run("随机间隔预生成", func(t *testing.T) {
		cfg := newTestPlanConfig(1, 1, 8)
		cfg.RandomizeDelay = true
		plan := newTestPlan(t, cfg, 11)

		if len(plan.delays) != 8 {
			t.Fatalf("expected one delay per unit (8), got %d", len(plan.delays))
		}
		for i := 0; i < 100; i++ {
			d := plan.NextDelay()
			if d < 0.5 || d > 1.5 {
				t.Fatalf("delay %f outside [0.5, 1.5]", d)
			}
		}
	})
}

func TestProgressRestore(t *testing.T) {
	plan := newTestPlan(t, newTestPlanConfig(2, 2, 6), 1)
	_ = plan.RecordProduction(0)
	_ = plan.RecordProduction(1)
	_ = plan.RecordProduction(1)
	_ = plan.RecordRemoval(1, true)

	progress := plan.Progress()
	if progress.Total != 6 || progress.Completed != 1 {
		t.Fatalf("expected progress 1/6, got %d/%d", progress.Completed, progress.Total)
	}

	restored := newTestPlan(t, newTestPlanConfig(2, 2, 0), 1)
	restored.RestoreProgress(progress)

	if restored.Total() != 6 || restored.Produced() != 1 || restored.AmountLeft() != 5 {
		t.Errorf("unexpected restored quota total=%d produced=%d left=%d",
			restored.Total(), restored.Produced(), restored.AmountLeft())
	}
	if restored.ActiveCount() != 0 {
		t.Errorf("restored plan should start with no active units")
	}
}

func TestLaneSpawnTransform(t *testing.T) {
	lane := &Lane{
		ID:    "a",
		Spawn: Transform{Position: Vec2{X: 0, Y: 0}, Rotation: 1.0},
	}
	if got := lane.SpawnTransform().Rotation; got != 1.0 {
		t.Errorf("lane without path target keeps own rotation, got %f", got)
	}

	lane.PathTarget = &Vec2{X: 0, Y: 10}
	if got := lane.SpawnTransform().Rotation; math.Abs(got-math.Pi/2) > 1e-9 {
		t.Errorf("expected rotation toward target pi/2, got %f", got)
	}
}
