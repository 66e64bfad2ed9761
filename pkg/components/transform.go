package components

// TransformComponent 单位的位置与朝向
type TransformComponent struct {
	X, Y     float64
	Rotation float64 // 朝向（弧度）
}
