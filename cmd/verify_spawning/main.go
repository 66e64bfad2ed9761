package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/gonewx/spawnpool/pkg/components"
	"github.com/gonewx/spawnpool/pkg/config"
	"github.com/gonewx/spawnpool/pkg/ecs"
	"github.com/gonewx/spawnpool/pkg/entities"
	"github.com/gonewx/spawnpool/pkg/game"
	"github.com/gonewx/spawnpool/pkg/systems"
)

var (
	configPath  = flag.String("config", "data/production/default.yaml", "生产计划配置文件路径")
	ticks       = flag.Int("ticks", 36000, "最多运行的 tick 数")
	seed        = flag.Int64("seed", 1, "随机种子")
	count       = flag.Int("count", 0, "覆盖生产总数（0 表示使用配置）")
	defeatEvery = flag.Int("defeat-every", 0, "每隔多少 tick 额外击败一个单位（0 表示只依靠生命周期和路径回收）")
	verbose     = flag.Bool("verbose", false, "显示详细调试信息")
)

// laneStats 单个出生点的统计
type laneStats struct {
	spawned  int
	peakLive int
}

// report 无界面运行的统计结果
type report struct {
	planName     string
	total        int
	produced     int
	finishedTick int
	pool         int
	entities     int
	anomalies    int
	peakActive   int
	capacity     int
	byLane       map[string]*laneStats
	byTemplate   map[string]int
	finalEvents  int
	violations   []string
	elapsedTicks int
	tickInterval float64
}

func main() {
	flag.Parse()

	// 非 verbose 模式下屏蔽调度日志，只输出报告
	if !*verbose {
		log.SetOutput(io.Discard)
	}

	cfg, err := config.LoadProductionConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load production config: %v\n", err)
		os.Exit(1)
	}

	r, err := run(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
		os.Exit(1)
	}
	r.print(os.Stdout)

	if len(r.violations) > 0 || r.finalEvents != 1 {
		os.Exit(2)
	}
}

func run(cfg *config.ProductionConfig) (*report, error) {
	rng := rand.New(rand.NewSource(*seed))
	plan, err := game.NewProductionPlan(cfg, rng)
	if err != nil {
		return nil, err
	}

	em := ecs.NewEntityManager()
	pool := game.NewObjectPool(entities.NewUnitFactory(em, plan, cfg.Unit))
	opts := systems.OptionsFromConfig(cfg)
	opts.Verbose = *verbose
	manager, err := systems.NewSpawnManager(plan, pool, opts)
	if err != nil {
		return nil, err
	}
	lifetimeSystem := systems.NewUnitLifetimeSystem(em)
	movementSystem := systems.NewUnitMovementSystem(em)

	r := &report{
		planName:     plan.Name(),
		finishedTick: -1,
		capacity:     plan.TotalCapacity(),
		byLane:       make(map[string]*laneStats),
		byTemplate:   make(map[string]int),
	}
	for _, lane := range plan.Lanes() {
		r.byLane[lane.ID] = &laneStats{}
	}

	tick := 0
	manager.OnUnitSpawned(func(e systems.SpawnedEvent) {
		r.byLane[e.LaneID].spawned++
		r.byTemplate[e.Template.ID]++
	})
	manager.OnFinalUnitCleared(func() {
		r.finalEvents++
		r.finishedTick = tick
	})

	var started bool
	if *count > 0 {
		started = manager.StartProductionCount(*count, false)
	} else {
		started = manager.StartProduction(false)
	}
	if !started {
		return nil, fmt.Errorf("production did not start")
	}
	r.total = plan.Total()

	dt := opts.TickInterval
	r.tickInterval = dt
	for tick = 1; tick <= *ticks && manager.IsRunning(); tick++ {
		manager.Update(dt)
		lifetimeSystem.Update(dt)
		movementSystem.Update(dt)

		if *defeatEvery > 0 && tick%*defeatEvery == 0 {
			defeatRandomUnit(pool, rng)
		}
		r.observe(plan, pool, tick)
	}

	r.elapsedTicks = tick - 1
	r.produced = plan.Produced()
	r.pool = pool.Size()
	r.entities = len(ecs.GetEntitiesWith1[*components.PooledComponent](em))
	r.anomalies = plan.Anomalies()
	return r, nil
}

func defeatRandomUnit(pool *game.ObjectPool, rng *rand.Rand) {
	var active []*game.PoolEntry
	for _, entry := range pool.Entries() {
		if entry.IsActive() {
			active = append(active, entry)
		}
	}
	if len(active) > 0 {
		active[rng.Intn(len(active))].Disable(false, 0)
	}
}

// observe 记录峰值并校验计数不变量
func (r *report) observe(plan *game.ProductionPlan, pool *game.ObjectPool, tick int) {
	sum := 0
	for i, lane := range plan.Lanes() {
		stats := r.byLane[lane.ID]
		if lane.LiveCount() > stats.peakLive {
			stats.peakLive = lane.LiveCount()
		}
		if lane.LiveCount() > plan.EffectiveCap(i) {
			r.violations = append(r.violations,
				fmt.Sprintf("tick %d: lane %s live %d > cap %d", tick, lane.ID, lane.LiveCount(), plan.EffectiveCap(i)))
		}
		sum += lane.LiveCount()
	}
	if sum != plan.ActiveCount() {
		r.violations = append(r.violations,
			fmt.Sprintf("tick %d: lane sum %d != active %d", tick, sum, plan.ActiveCount()))
	}
	if pool.ActiveCount() != plan.ActiveCount() {
		r.violations = append(r.violations,
			fmt.Sprintf("tick %d: pool active %d != plan active %d", tick, pool.ActiveCount(), plan.ActiveCount()))
	}
	if plan.ActiveCount() > r.peakActive {
		r.peakActive = plan.ActiveCount()
	}
}

func (r *report) print(w io.Writer) {
	fmt.Fprintf(w, "=== Spawn verification: %s ===\n", r.planName)
	fmt.Fprintf(w, "Produced:      %d/%d\n", r.produced, r.total)
	fmt.Fprintf(w, "Ticks:         %d\n", r.elapsedTicks)
	if r.finishedTick >= 0 {
		seconds := float64(r.finishedTick) * r.tickInterval
		fmt.Fprintf(w, "Final cleared: tick %d (~%s)\n", r.finishedTick, time.Duration(seconds*float64(time.Second)).Round(time.Millisecond))
	} else {
		fmt.Fprintf(w, "Final cleared: not reached\n")
	}
	fmt.Fprintf(w, "Final events:  %d\n", r.finalEvents)
	fmt.Fprintf(w, "Peak active:   %d (capacity %d)\n", r.peakActive, r.capacity)
	fmt.Fprintf(w, "Pool size:     %d (entities %d)\n", r.pool, r.entities)
	fmt.Fprintf(w, "Anomalies:     %d\n", r.anomalies)

	fmt.Fprintln(w, "\nLanes:")
	laneIDs := make([]string, 0, len(r.byLane))
	for id := range r.byLane {
		laneIDs = append(laneIDs, id)
	}
	sort.Strings(laneIDs)
	for _, id := range laneIDs {
		stats := r.byLane[id]
		fmt.Fprintf(w, "  %-10s spawned %4d  peak live %d\n", id, stats.spawned, stats.peakLive)
	}

	fmt.Fprintln(w, "\nTemplates:")
	templateIDs := make([]string, 0, len(r.byTemplate))
	for id := range r.byTemplate {
		templateIDs = append(templateIDs, id)
	}
	sort.Strings(templateIDs)
	for _, id := range templateIDs {
		fmt.Fprintf(w, "  %-10s %4d\n", id, r.byTemplate[id])
	}

	if len(r.violations) > 0 {
		fmt.Fprintf(w, "\n❌ %d invariant violations:\n", len(r.violations))
		for _, v := range r.violations {
			fmt.Fprintf(w, "  %s\n", v)
		}
		return
	}
	fmt.Fprintln(w, "\n✅ All invariants held")
}
