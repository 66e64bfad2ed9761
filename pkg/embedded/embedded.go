// Package embedded 提供内嵌生产计划的统一访问接口
//
// 由于 Go embed 指令只能嵌入当前包目录及其子目录的文件，
// embed.FS 变量必须声明在项目根目录（embed.go）。
// 本包提供包装函数，让 app 等包可以按名称读取内嵌的生产计划。
//
// 使用前必须调用 Init() 初始化。
package embedded

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// PlanDir 内嵌生产计划所在目录
const PlanDir = "data/production"

var (
	dataFS      fs.FS
	initialized bool
)

// Init 初始化数据文件系统
// 必须在 main() 开始时、任何计划加载之前调用
func Init(data fs.FS) {
	dataFS = data
	initialized = data != nil
}

// IsInitialized 返回 embedded 包是否已初始化
func IsInitialized() bool {
	return initialized
}

// ReadFile 读取内嵌文件，路径必须以 "data/" 开头
func ReadFile(name string) ([]byte, error) {
	if !initialized {
		return nil, fmt.Errorf("embedded package not initialized, call Init() first")
	}

	// 标准化路径分隔符为正斜杠（embed.FS 使用正斜杠）
	name = strings.TrimPrefix(filepath.ToSlash(name), "./")

	if !strings.HasPrefix(name, "data/") {
		return nil, fmt.Errorf("unknown resource path prefix: %s (must start with 'data/')", name)
	}
	return fs.ReadFile(dataFS, name)
}

// PlanPath 返回指定名称的生产计划路径
func PlanPath(name string) string {
	return path.Join(PlanDir, name+".yaml")
}

// ReadPlan 按名称读取内嵌的生产计划
func ReadPlan(name string) ([]byte, error) {
	if name == "" {
		return nil, fmt.Errorf("plan name cannot be empty")
	}
	return ReadFile(PlanPath(name))
}

// PlanNames 列出所有内嵌的生产计划名称（按字母排序）
func PlanNames() ([]string, error) {
	if !initialized {
		return nil, fmt.Errorf("embedded package not initialized, call Init() first")
	}

	matches, err := fs.Glob(dataFS, PlanDir+"/*.yaml")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, match := range matches {
		names = append(names, strings.TrimSuffix(path.Base(match), ".yaml"))
	}
	sort.Strings(names)
	return names, nil
}
