package main

import (
	"flag"
	"log"

	"github.com/gonewx/spawnpool/pkg/app"
	"github.com/gonewx/spawnpool/pkg/embedded"
	"github.com/gonewx/spawnpool/pkg/scenes"
	"github.com/hajimehoshi/ebiten/v2"
)

var (
	verbose    = flag.Bool("verbose", false, "显示详细调试信息")
	planName   = flag.String("plan", app.DefaultPlan, "要加载的内嵌生产计划（如 gauntlet）")
	configPath = flag.String("config", "", "从文件加载生产计划（覆盖 -plan）")
	seed       = flag.Int64("seed", 0, "随机种子（0 表示使用当前时间）")
	resume     = flag.Bool("resume", false, "从上次保存的进度继续生产")
	autoStart  = flag.Bool("start", false, "加载计划后立即开始生产")
)

func main() {
	flag.Parse()

	embedded.Init(dataFS)

	gameApp, err := app.NewApp(app.Config{
		Verbose:    *verbose,
		Plan:       *planName,
		ConfigPath: *configPath,
		Seed:       *seed,
		Resume:     *resume,
		AutoStart:  *autoStart,
	})
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}

	ebiten.SetWindowSize(scenes.ScreenWidth, scenes.ScreenHeight)
	ebiten.SetWindowTitle("池化单位生产调度")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowClosingHandled(true)
	ebiten.SetTPS(60)

	if err := ebiten.RunGame(gameApp); err != nil && !app.IsTermination(err) {
		log.Fatal(err)
	}
}
