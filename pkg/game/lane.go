package game

import "math"

// NoLane 表示池对象当前不属于任何出生点
const NoLane = -1

// Vec2 二维坐标
type Vec2 struct {
	X, Y float64
}

// Transform 出生位置与朝向（弧度）
type Transform struct {
	Position Vec2
	Rotation float64
}

// Template 生产模板（预制体蓝图 + 生成优先级权重）
type Template struct {
	ID       string
	Priority int
}

// Lane 出生点
//
// 存活计数只能由 ProductionPlan 修改；池对象只记录出生点索引
type Lane struct {
	ID            string
	CapAdjustment int       // 相对全局上限的调整值
	Spawn         Transform // 出生位置与朝向
	PathTarget    *Vec2     // 可选：路径目标点
	liveCount     int       // 当前存活数量
}

// LiveCount 返回出生点当前存活数量
func (l *Lane) LiveCount() int {
	return l.liveCount
}

// HasPathTarget 是否配置了路径目标
func (l *Lane) HasPathTarget() bool {
	return l.PathTarget != nil
}

// SpawnTransform 计算实际出生变换
//
// 配置了路径目标时朝向目标点，否则使用出生点自身朝向
func (l *Lane) SpawnTransform() Transform {
	t := l.Spawn
	if l.PathTarget != nil {
		dx := l.PathTarget.X - t.Position.X
		dy := l.PathTarget.Y - t.Position.Y
		if dx != 0 || dy != 0 {
			t.Rotation = math.Atan2(dy, dx)
		}
	}
	return t
}
