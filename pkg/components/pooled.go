package components

import "github.com/gonewx/spawnpool/pkg/game"

// PooledComponent 标记实体属于对象池
//
// Entry 在实体首次入池时绑定，此后不变；
// 实体失效时通过 Entry.Disable / Entry.Invalidate 通知调度器
type PooledComponent struct {
	Entry      *game.PoolEntry
	TemplateID string
	Active     bool // 镜像池对象的激活状态，供系统快速过滤
}
