package components

// LifetimeComponent 管理池化单位的存活时间
// 超时后单位被回收到对象池（而不是销毁），每次激活时重新计时
type LifetimeComponent struct {
	MaxLifetime     float64 // 最大存活时间(秒)，0 表示不限
	CurrentLifetime float64 // 本次激活后已存活时间(秒)
	IsExpired       bool    // 是否已过期
}

// Restart 重新开始计时（单位被重新激活时调用）
func (c *LifetimeComponent) Restart() {
	c.CurrentLifetime = 0
	c.IsExpired = false
}
