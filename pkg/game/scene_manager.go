package game

import (
	"log"

	"github.com/hajimehoshi/ebiten/v2"
)

// SceneFactory 场景工厂函数类型
// 用于按生产计划名称创建场景，避免 game 包依赖 scenes 包
type SceneFactory func(planName string) Scene

// SceneManager 管理当前活动的场景
// 任意时刻只有一个场景的 Update 和 Draw 会被调用
type SceneManager struct {
	currentScene Scene
	currentPlan  string
	sceneFactory SceneFactory
}

// NewSceneManager 创建场景管理器
// 初始没有活动场景，使用 SwitchTo 或 LoadPlan 设置
func NewSceneManager() *SceneManager {
	return &SceneManager{}
}

// SetSceneFactory 设置场景工厂函数
func (sm *SceneManager) SetSceneFactory(factory SceneFactory) {
	sm.sceneFactory = factory
}

// SwitchTo 切换活动场景
func (sm *SceneManager) SwitchTo(scene Scene) {
	sm.currentScene = scene
}

// GetCurrentScene 返回当前活动的场景，没有时返回 nil
func (sm *SceneManager) GetCurrentScene() Scene {
	return sm.currentScene
}

// CurrentPlan 返回最近一次成功加载的生产计划名称
func (sm *SceneManager) CurrentPlan() string {
	return sm.currentPlan
}

// LoadPlan 加载指定生产计划的场景
//
// 切换前会让当前场景保存状态（实现了 Saveable 时），
// 然后释放它（实现了 Disposable 时）
//
// 返回:
//   - bool: 工厂未设置或创建失败时返回 false，当前场景保持不变
func (sm *SceneManager) LoadPlan(planName string) bool {
	log.Printf("[SceneManager] 加载生产计划: %s", planName)

	if sm.sceneFactory == nil {
		log.Printf("[SceneManager] 错误: SceneFactory 未设置")
		return false
	}

	newScene := sm.sceneFactory(planName)
	if newScene == nil {
		log.Printf("[SceneManager] 错误: 无法创建生产计划场景: %s", planName)
		return false
	}

	sm.SaveCurrent()
	sm.disposeCurrent()
	sm.SwitchTo(newScene)
	sm.currentPlan = planName
	log.Printf("[SceneManager] 成功切换到生产计划: %s", planName)
	return true
}

// SaveCurrent 让当前场景保存状态，没有场景或场景不支持保存时返回 true
func (sm *SceneManager) SaveCurrent() bool {
	saveable, ok := sm.currentScene.(Saveable)
	if !ok {
		return true
	}
	return saveable.SaveOnExit()
}

// Shutdown 程序退出：保存并释放当前场景
//
// 返回:
//   - bool: SaveCurrent 的结果
func (sm *SceneManager) Shutdown() bool {
	saved := sm.SaveCurrent()
	sm.disposeCurrent()
	sm.currentScene = nil
	return saved
}

func (sm *SceneManager) disposeCurrent() {
	if disposable, ok := sm.currentScene.(Disposable); ok {
		disposable.Dispose()
	}
}

// Update 更新当前场景，没有活动场景时不做任何事
func (sm *SceneManager) Update(deltaTime float64) {
	if sm.currentScene != nil {
		sm.currentScene.Update(deltaTime)
	}
}

// Draw 绘制当前场景，没有活动场景时不做任何事
func (sm *SceneManager) Draw(screen *ebiten.Image) {
	if sm.currentScene != nil {
		sm.currentScene.Draw(screen)
	}
}
