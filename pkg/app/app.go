// Package app 提供生产调度演示的应用包装器
//
// 该包将初始化逻辑从 main 包提取出来：打开进度存储、
// 注册场景工厂并加载初始生产计划。
package app

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"log"
	"math/rand"
	"time"

	"github.com/gonewx/spawnpool/pkg/config"
	"github.com/gonewx/spawnpool/pkg/embedded"
	"github.com/gonewx/spawnpool/pkg/game"
	"github.com/gonewx/spawnpool/pkg/scenes"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/quasilyte/gdata/v2"
)

// DefaultPlan 未指定时加载的内嵌生产计划
const DefaultPlan = "default"

// Config 定义应用启动配置
type Config struct {
	// Verbose 启用详细日志输出
	Verbose bool
	// Plan 要加载的内嵌生产计划名称（如 "gauntlet"），为空则使用 DefaultPlan
	Plan string
	// ConfigPath 从文件系统加载生产计划，设置后忽略 Plan
	ConfigPath string
	// Seed 随机种子，0 表示使用当前时间
	Seed int64
	// Resume 从上次保存的进度继续生产
	Resume bool
	// AutoStart 加载计划后立即开始生产
	AutoStart bool
}

// App 应用包装器，实现 ebiten.Game 接口
type App struct {
	sceneManager             *game.SceneManager
	progressStore            *game.RunProgressStore
	rng                      *rand.Rand
	verbose                  bool
	autoStart                bool
	pendingWindowSizeReset   bool
	windowSizeResetCountdown int
}

// NewApp 创建并初始化应用
//
// 调用此函数前，必须先调用 embedded.Init() 初始化内嵌数据。
func NewApp(cfg Config) (*App, error) {
	if !cfg.Verbose {
		log.SetOutput(io.Discard)
		log.SetFlags(0)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// gdata 不可用时进度只保存在内存中
	gdataManager, err := gdata.Open(gdata.Config{AppName: "spawnpool"})
	if err != nil {
		log.Printf("[App] 警告: 无法打开 gdata 存储: %v", err)
		gdataManager = nil
	}

	a := &App{
		sceneManager:  game.NewSceneManager(),
		progressStore: game.NewRunProgressStore(gdataManager),
		rng:           rand.New(rand.NewSource(seed)),
		verbose:       cfg.Verbose,
		autoStart:     cfg.AutoStart,
	}
	a.sceneManager.SetSceneFactory(a.newPlanScene)

	if cfg.ConfigPath != "" {
		productionConfig, err := config.LoadProductionConfig(cfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("生产计划加载失败: %w", err)
		}
		scene, err := a.buildScene(productionConfig, cfg.Resume)
		if err != nil {
			return nil, err
		}
		a.sceneManager.SwitchTo(scene)
		log.Printf("[App] 已从 %[2]s 加载生产计划 %[1]q", productionConfig.Name, cfg.ConfigPath)
		return a, nil
	}

	planName := cfg.Plan
	if planName == "" {
		planName = DefaultPlan
	}
	productionConfig, err := LoadPlanConfig(planName)
	if err != nil {
		return nil, err
	}
	scene, err := a.buildScene(productionConfig, cfg.Resume)
	if err != nil {
		return nil, err
	}
	a.sceneManager.SwitchTo(scene)
	log.Printf("[App] 开始生产计划: %s", planName)

	return a, nil
}

// LoadPlanConfig 读取并校验内嵌的生产计划
func LoadPlanConfig(planName string) (*config.ProductionConfig, error) {
	data, err := embedded.ReadPlan(planName)
	if err != nil {
		return nil, fmt.Errorf("生产计划 %q 读取失败: %w", planName, err)
	}
	productionConfig, err := config.ParseProductionConfig(data)
	if err != nil {
		return nil, fmt.Errorf("生产计划 %q 解析失败: %w", planName, err)
	}
	return productionConfig, nil
}

// NextPlan 返回内嵌计划列表中 planName 之后的计划名称（循环）
//
// 只有一个计划或列表不可用时返回空字符串
func NextPlan(planName string) string {
	names, err := embedded.PlanNames()
	if err != nil || len(names) < 2 {
		return ""
	}
	for i, name := range names {
		if name == planName {
			return names[(i+1)%len(names)]
		}
	}
	return names[0]
}

// newPlanScene 场景工厂：按计划名称创建生产调度场景
func (a *App) newPlanScene(planName string) game.Scene {
	productionConfig, err := LoadPlanConfig(planName)
	if err != nil {
		log.Printf("[App] 错误: %v", err)
		return nil
	}
	scene, err := a.buildScene(productionConfig, false)
	if err != nil {
		log.Printf("[App] 错误: %v", err)
		return nil
	}
	return scene
}

func (a *App) buildScene(productionConfig *config.ProductionConfig, resume bool) (*scenes.SpawnScene, error) {
	scene, err := scenes.NewSpawnScene(productionConfig, a.sceneManager, scenes.SpawnSceneOptions{
		Rng:       a.rng,
		Store:     a.progressStore,
		Verbose:   a.verbose,
		Resume:    resume,
		NextPlan:  NextPlan(productionConfig.Name),
		AutoStart: a.autoStart,
	})
	if err != nil {
		return nil, fmt.Errorf("场景创建失败: %w", err)
	}
	return scene, nil
}

// Update 更新逻辑，每个 tick 调用一次
func (a *App) Update() error {
	// 关闭窗口前保存进行中的生产进度并释放场景
	if ebiten.IsWindowBeingClosed() {
		if !a.sceneManager.Shutdown() {
			log.Printf("[App] 警告: 退出时保存生产进度失败")
		}
		return ebiten.Termination
	}

	if a.pendingWindowSizeReset {
		a.windowSizeResetCountdown--
		if a.windowSizeResetCountdown <= 0 {
			ebiten.SetWindowSize(scenes.ScreenWidth, scenes.ScreenHeight)
			a.pendingWindowSizeReset = false
		}
	}

	// F11 切换全屏
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		if ebiten.IsFullscreen() {
			ebiten.SetFullscreen(false)
			if ebiten.IsWindowMaximized() || ebiten.IsWindowMinimized() {
				ebiten.RestoreWindow()
			}
			a.pendingWindowSizeReset = true
			a.windowSizeResetCountdown = 3
			log.Printf("[App] 退出全屏，3 帧后重置窗口大小")
		} else {
			ebiten.SetFullscreen(true)
		}
	}

	a.sceneManager.Update(1.0 / float64(ebiten.TPS()))
	return nil
}

// Draw 绘制当前场景
func (a *App) Draw(screen *ebiten.Image) {
	a.sceneManager.Draw(screen)
}

// DrawFinalScreen 实现 FinalScreenDrawer 接口，全屏时两侧填充黑色
func (a *App) DrawFinalScreen(screen ebiten.FinalScreen, offscreen *ebiten.Image, geoM ebiten.GeoM) {
	screen.Fill(color.Black)
	op := &ebiten.DrawImageOptions{}
	op.GeoM = geoM
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(offscreen, op)
}

// Layout 返回逻辑屏幕尺寸
func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return scenes.ScreenWidth, scenes.ScreenHeight
}

// GetSceneManager 返回场景管理器
func (a *App) GetSceneManager() *game.SceneManager {
	return a.sceneManager
}

// IsTermination 判断 RunGame 返回的错误是否为正常退出
func IsTermination(err error) bool {
	return errors.Is(err, ebiten.Termination)
}
