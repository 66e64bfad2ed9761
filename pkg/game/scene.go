package game

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// Scene 场景接口（如生产调度演示场景）
// 每个场景有独立的更新和绘制逻辑
type Scene interface {
	// Update 以固定步长推进场景逻辑
	// deltaTime 为距上一次调用的时间（秒）
	Update(deltaTime float64)

	// Draw 将场景绘制到 screen
	Draw(screen *ebiten.Image)
}

// Saveable 可选接口，场景在退出时保存状态
//
// 实现此接口的场景会在以下时机被调用 SaveOnExit()：
//   - 游戏窗口关闭
//   - 切换到另一个生产计划
type Saveable interface {
	// SaveOnExit 在场景退出时保存状态
	// 返回 true 表示保存成功或无需保存
	// 返回 false 表示保存失败（但程序仍会正常退出）
	SaveOnExit() bool
}

// Disposable 可选接口，场景被替换或程序退出时释放资源
//
// SceneManager 总是先调用 SaveOnExit()，再调用 Dispose()
type Disposable interface {
	// Dispose 停止场景内的活动并销毁其持有的实体
	Dispose()
}
