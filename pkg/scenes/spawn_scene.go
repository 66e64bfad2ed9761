package scenes

import (
	"fmt"
	"image/color"
	"log"
	"math/rand"
	"time"

	"github.com/gonewx/spawnpool/pkg/components"
	"github.com/gonewx/spawnpool/pkg/config"
	"github.com/gonewx/spawnpool/pkg/ecs"
	"github.com/gonewx/spawnpool/pkg/entities"
	"github.com/gonewx/spawnpool/pkg/game"
	"github.com/gonewx/spawnpool/pkg/systems"
	"github.com/gonewx/spawnpool/pkg/utils"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// 逻辑屏幕尺寸
const (
	ScreenWidth  = 800
	ScreenHeight = 600
)

const (
	unitRadius    = 8.0
	popInDuration = 0.25 // 出生弹出动画时长（秒）
	popInMinAlpha = 0.35
)

var (
	backgroundColor = color.RGBA{R: 32, G: 40, B: 48, A: 255}
	laneColor       = color.RGBA{R: 90, G: 110, B: 130, A: 255}
	unitColors      = []color.RGBA{
		{R: 230, G: 90, B: 80, A: 255},
		{R: 240, G: 200, B: 80, A: 255},
		{R: 120, G: 200, B: 120, A: 255},
		{R: 110, G: 160, B: 240, A: 255},
	}
)

// SpawnSceneOptions 生产调度场景参数
type SpawnSceneOptions struct {
	Rng       *rand.Rand             // 随机源，为 nil 时使用基于时间的随机源
	Store     *game.RunProgressStore // 进度存档，为 nil 时不保存
	Verbose   bool                   // 输出调度调试日志
	Resume    bool                   // 创建后从存档继续生产
	NextPlan  string                 // Tab 键切换到的生产计划，为空时禁用
	AutoStart bool                   // 创建后立即开始生产
}

// SpawnScene 生产调度演示场景
//
// 职责：
//   - 持有一轮生产所需的 ECS 世界、对象池和 SpawnManager
//   - 以固定步长驱动调度器与单位系统
//   - 绘制出生点、路径和激活的单位
//
// 键盘：Enter 开始 / I 立即生产 / S 保存并停止 / Space 击败一个单位 /
// X 作废一个单位 / P 保存进度 / Tab 切换生产计划；点击单位将其击败
type SpawnScene struct {
	sceneManager   *game.SceneManager
	entityManager  *ecs.EntityManager
	manager        *systems.SpawnManager
	lifetimeSystem *systems.UnitLifetimeSystem
	movementSystem *systems.UnitMovementSystem
	progressStore  *game.RunProgressStore
	rng            *rand.Rand
	nextPlan       string

	templateIndex map[string]int
	spawnedAt     map[*game.PoolEntry]float64
	elapsed       float64
	lastEvent     string
	runsFinished  int
	keepProgress  bool // 本轮由"保存并停止"结束，终止事件不清除存档
	disposed      bool
}

// NewSpawnScene 根据生产计划配置创建场景
//
// 参数:
//   - cfg: 已验证的生产计划配置
//   - sm: 场景管理器（用于切换生产计划），可为 nil
//   - opts: 场景参数
//
// 返回:
//   - error: 计划无效时返回错误
func NewSpawnScene(cfg *config.ProductionConfig, sm *game.SceneManager, opts SpawnSceneOptions) (*SpawnScene, error) {
	rng := opts.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	plan, err := game.NewProductionPlan(cfg, rng)
	if err != nil {
		return nil, fmt.Errorf("生产计划创建失败: %w", err)
	}

	em := ecs.NewEntityManager()
	pool := game.NewObjectPool(entities.NewUnitFactory(em, plan, cfg.Unit))

	schedulerOpts := systems.OptionsFromConfig(cfg)
	schedulerOpts.Verbose = opts.Verbose
	manager, err := systems.NewSpawnManager(plan, pool, schedulerOpts)
	if err != nil {
		return nil, err
	}

	s := &SpawnScene{
		sceneManager:   sm,
		entityManager:  em,
		manager:        manager,
		lifetimeSystem: systems.NewUnitLifetimeSystem(em),
		movementSystem: systems.NewUnitMovementSystem(em),
		progressStore:  opts.Store,
		rng:            rng,
		nextPlan:       opts.NextPlan,
		templateIndex:  make(map[string]int),
		spawnedAt:      make(map[*game.PoolEntry]float64),
	}
	for i, t := range plan.Templates() {
		s.templateIndex[t.ID] = i
	}

	manager.OnUnitSpawned(func(e systems.SpawnedEvent) {
		s.spawnedAt[e.Entry] = s.elapsed
		s.lastEvent = fmt.Sprintf("spawned %s on %s (%d/%d)", e.Template.ID, e.LaneID, e.Produced, e.Total)
	})
	manager.OnFinalUnitCleared(s.onFinalUnitCleared)

	switch {
	case opts.Resume:
		s.Resume()
	case opts.AutoStart:
		manager.StartProduction(false)
	}

	return s, nil
}

// Manager 返回场景的调度器
func (s *SpawnScene) Manager() *systems.SpawnManager {
	return s.manager
}

// RunsFinished 已完成（最后一个单位清除）的轮数
func (s *SpawnScene) RunsFinished() int {
	return s.runsFinished
}

// Resume 读取保存的进度并继续生产
func (s *SpawnScene) Resume() bool {
	if s.progressStore == nil {
		return false
	}
	planName := s.manager.Plan().Name()
	progress, found, err := s.progressStore.Load(planName)
	if err != nil {
		log.Printf("[SpawnScene] 警告: 读取生产进度失败: %v", err)
		return false
	}
	if !found {
		log.Printf("[SpawnScene] 生产计划 %q 没有保存的进度", planName)
		return false
	}
	log.Printf("[SpawnScene] 继续生产计划 %q: 已完成 %d/%d", planName, progress.Completed, progress.Total)
	return s.manager.ResumeProduction(progress, false)
}

// SaveOnExit 保存进行中的一轮生产的进度
func (s *SpawnScene) SaveOnExit() bool {
	if s.progressStore == nil || !s.manager.IsRunning() {
		return true
	}
	if err := s.progressStore.Save(s.manager.Plan().Progress()); err != nil {
		log.Printf("[SpawnScene] 警告: 保存生产进度失败: %v", err)
		return false
	}
	s.lastEvent = "progress saved"
	return true
}

// SaveAndStop 保存进度后停止本轮生产，存档保留到下次 Resume
//
// 返回:
//   - bool: 没有进行中的生产或保存失败时返回 false（保存失败时不停止）
func (s *SpawnScene) SaveAndStop() bool {
	if !s.manager.IsRunning() || s.progressStore == nil {
		return false
	}
	if !s.SaveOnExit() {
		return false
	}
	s.keepProgress = true
	s.manager.StopProduction()
	return true
}

// Dispose 场景退出：停止生产并销毁所有池化单位
//
// 在 SaveOnExit 之后调用，终止事件不会再清除存档
func (s *SpawnScene) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.manager.StopProduction()
	// 场上单位作废后本轮结束，终止事件不会清除存档
	for _, entry := range s.manager.Pool().Entries() {
		if entry.IsActive() {
			entry.Invalidate()
		}
	}
	s.manager.Pool().Teardown()
	s.entityManager.RemoveMarkedEntities()
	s.spawnedAt = make(map[*game.PoolEntry]float64)
	log.Printf("[SpawnScene] 场景已释放: %s", s.manager.Plan().Name())
}

// PooledEntityCount 返回仍存在的池化单位实体数量
func (s *SpawnScene) PooledEntityCount() int {
	return len(ecs.GetEntitiesWith1[*components.PooledComponent](s.entityManager))
}

// IsDisposed 场景是否已释放
func (s *SpawnScene) IsDisposed() bool {
	return s.disposed
}

// DefeatRandomUnit 随机击败一个激活的单位（自然失效，计入完成数量）
func (s *SpawnScene) DefeatRandomUnit() bool {
	entry := s.randomActiveEntry()
	return entry != nil && entry.Disable(false, 0)
}

// InvalidateRandomUnit 随机作废一个激活的单位（退还配额）
func (s *SpawnScene) InvalidateRandomUnit() bool {
	entry := s.randomActiveEntry()
	return entry != nil && entry.Invalidate()
}

// DefeatUnitAt 击败位于 (x, y) 的激活单位，没有命中时返回 false
func (s *SpawnScene) DefeatUnitAt(x, y float64) bool {
	for _, id := range ecs.GetEntitiesWith2[*components.TransformComponent, *components.PooledComponent](s.entityManager) {
		pooled, _ := ecs.GetComponent[*components.PooledComponent](s.entityManager, id)
		if !pooled.Active || pooled.Entry == nil {
			continue
		}
		transform, _ := ecs.GetComponent[*components.TransformComponent](s.entityManager, id)
		if utils.HitCircle(x, y, transform.X, transform.Y, unitRadius) {
			return pooled.Entry.Disable(false, 0)
		}
	}
	return false
}

// Update 处理输入并推进一个固定步长
func (s *SpawnScene) Update(deltaTime float64) {
	s.handleInput()
	s.Step(deltaTime)
}

// Step 推进调度器与单位系统（不处理输入）
func (s *SpawnScene) Step(deltaTime float64) {
	if s.disposed {
		return
	}
	s.elapsed += deltaTime
	s.manager.Update(deltaTime)
	s.lifetimeSystem.Update(deltaTime)
	s.movementSystem.Update(deltaTime)
}

func (s *SpawnScene) handleInput() {
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		s.manager.StartProduction(false)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyI) {
		s.manager.StartImmediateProduction()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyS) {
		if !s.SaveAndStop() {
			s.manager.StopProduction()
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		s.SaveOnExit()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		s.DefeatRandomUnit()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyX) {
		s.InvalidateRandomUnit()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyTab) && s.nextPlan != "" && s.sceneManager != nil {
		s.sceneManager.LoadPlan(s.nextPlan)
	}
	if clicked, x, y := utils.IsJustTouchedOrClicked(); clicked {
		s.DefeatUnitAt(float64(x), float64(y))
	}
}

// unitScale 单位出生后的弹出缩放
func (s *SpawnScene) unitScale(entry *game.PoolEntry) float64 {
	spawnedAt, ok := s.spawnedAt[entry]
	if !ok {
		return 1
	}
	return utils.EaseOutBack(utils.Progress(s.elapsed-spawnedAt, popInDuration))
}

// unitAlpha 单位出生后的淡入透明度
func (s *SpawnScene) unitAlpha(entry *game.PoolEntry) float64 {
	spawnedAt, ok := s.spawnedAt[entry]
	if !ok {
		return 1
	}
	return utils.Lerp(popInMinAlpha, 1, utils.EaseOutCubic(utils.Progress(s.elapsed-spawnedAt, popInDuration)))
}

func (s *SpawnScene) onFinalUnitCleared() {
	s.runsFinished++
	if s.keepProgress || s.disposed {
		s.keepProgress = false
		s.lastEvent = "run stopped, progress kept"
		return
	}
	s.lastEvent = "final unit cleared"
	if s.progressStore == nil {
		return
	}
	if err := s.progressStore.Clear(s.manager.Plan().Name()); err != nil {
		log.Printf("[SpawnScene] 警告: 清除生产进度失败: %v", err)
	}
}

func (s *SpawnScene) randomActiveEntry() *game.PoolEntry {
	var active []*game.PoolEntry
	for _, entry := range s.manager.Pool().Entries() {
		if entry.IsActive() {
			active = append(active, entry)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return active[s.rng.Intn(len(active))]
}

// Draw 绘制出生点、路径和激活的单位
func (s *SpawnScene) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)

	plan := s.manager.Plan()
	for i, lane := range plan.Lanes() {
		x := float32(lane.Spawn.Position.X)
		y := float32(lane.Spawn.Position.Y)
		if lane.PathTarget != nil {
			vector.StrokeLine(screen, x, y, float32(lane.PathTarget.X), float32(lane.PathTarget.Y), 2, laneColor, true)
		}
		vector.StrokeLine(screen, x-12, y, x+12, y, 3, laneColor, true)
		label := fmt.Sprintf("%s %d/%d", lane.ID, lane.LiveCount(), plan.EffectiveCap(i))
		ebitenutil.DebugPrintAt(screen, label, int(x)-30, int(y)-28)
	}

	for _, id := range ecs.GetEntitiesWith2[*components.TransformComponent, *components.PooledComponent](s.entityManager) {
		pooled, _ := ecs.GetComponent[*components.PooledComponent](s.entityManager, id)
		if !pooled.Active {
			continue
		}
		transform, _ := ecs.GetComponent[*components.TransformComponent](s.entityManager, id)
		clr := fadeColor(unitColors[s.templateIndex[pooled.TemplateID]%len(unitColors)], s.unitAlpha(pooled.Entry))
		radius := float32(unitRadius * s.unitScale(pooled.Entry))
		vector.DrawFilledCircle(screen, float32(transform.X), float32(transform.Y), radius, clr, true)
	}

	status := fmt.Sprintf("plan %s  state %s  produced %d/%d  active %d  pool %d (entities %d)  runs %d\n%s",
		plan.Name(), s.manager.State(), plan.Produced(), plan.Total(), plan.ActiveCount(),
		s.manager.Pool().Size(), s.PooledEntityCount(), s.runsFinished, s.lastEvent)
	ebitenutil.DebugPrintAt(screen, status, 10, ScreenHeight-60)
	ebitenutil.DebugPrintAt(screen, "Enter start  I immediate  S save+stop  Space/click defeat  X invalidate  P save  Tab next plan", 10, ScreenHeight-20)
}

// fadeColor 按透明度缩放预乘 alpha 颜色
func fadeColor(c color.RGBA, alpha float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * alpha),
		G: uint8(float64(c.G) * alpha),
		B: uint8(float64(c.B) * alpha),
		A: uint8(float64(c.A) * alpha),
	}
}
