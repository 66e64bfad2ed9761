package components

// MovementComponent 单位沿出生点路径移动的状态
type MovementComponent struct {
	Speed     float64 // 移动速度（像素/秒）
	TargetX   float64
	TargetY   float64
	HasTarget bool // 出生点没有路径目标时单位原地停留
	Escaped   bool // 已到达路径终点
}
