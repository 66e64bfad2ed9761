package game

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"log"
	"time"

	"github.com/quasilyte/gdata/v2"
)

// RunProgressVersion 进度存档版本号，格式不兼容时递增
const RunProgressVersion = 1

// 存储路径常量
const (
	runProgressObject  = "spawn_runs"
	defaultProgressKey = "default"
)

// RunProgress 一轮生产的配额进度
//
// 只保存配额信息，不保存场上单位；恢复后未完成的部分会被重新生产
type RunProgress struct {
	Version   int
	PlanName  string
	Total     int // 本轮生产总数
	Completed int // 已完成（已生产且已离场）的数量
	SavedAt   time.Time
}

// Remaining 恢复后仍需生产的数量
func (r *RunProgress) Remaining() int {
	left := r.Total - r.Completed
	if left < 0 {
		return 0
	}
	return left
}

// EncodeRunProgress 使用 gob 编码进度
func EncodeRunProgress(progress *RunProgress) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(progress); err != nil {
		return nil, fmt.Errorf("failed to encode run progress: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRunProgress 解码进度并检查版本兼容性
func DecodeRunProgress(data []byte) (*RunProgress, error) {
	var progress RunProgress
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&progress); err != nil {
		return nil, fmt.Errorf("failed to decode run progress: %w", err)
	}
	if progress.Version != RunProgressVersion {
		return nil, fmt.Errorf("incompatible run progress version: %d (expected %d)",
			progress.Version, RunProgressVersion)
	}
	return &progress, nil
}

// RunProgressStore 生产进度存储
//
// 职责：
//   - 将进行中的生产轮次配额保存到 gdata 跨平台存储
//   - 在下一次启动时读取并恢复
//
// gdataManager 为 nil 时进入降级模式，仅在内存中保存
type RunProgressStore struct {
	gdataManager *gdata.Manager
	memory       map[string][]byte
}

// NewRunProgressStore 创建进度存储
//
// 参数：
//   - gdataManager: gdata 存储管理器，可为 nil（降级模式）
func NewRunProgressStore(gdataManager *gdata.Manager) *RunProgressStore {
	return &RunProgressStore{
		gdataManager: gdataManager,
		memory:       make(map[string][]byte),
	}
}

// Save 保存进度
func (s *RunProgressStore) Save(progress *RunProgress) error {
	if progress == nil {
		return fmt.Errorf("run progress is nil")
	}
	progress.Version = RunProgressVersion

	data, err := EncodeRunProgress(progress)
	if err != nil {
		return err
	}

	key := progressKey(progress.PlanName)
	if s.gdataManager == nil {
		s.memory[key] = data
		return nil
	}

	if err := s.gdataManager.SaveObjectProp(runProgressObject, key, data); err != nil {
		return fmt.Errorf("failed to save run progress: %w", err)
	}

	log.Printf("[RunProgressStore] 已保存生产计划 %s 的进度: %d/%d", key, progress.Completed, progress.Total)
	return nil
}

// Load 读取进度
//
// 返回：
//   - *RunProgress: 进度数据
//   - bool: 是否存在存档
//   - error: 存档存在但无法读取/解码时返回错误
func (s *RunProgressStore) Load(planName string) (*RunProgress, bool, error) {
	key := progressKey(planName)

	var data []byte
	if s.gdataManager == nil {
		stored, ok := s.memory[key]
		if !ok {
			return nil, false, nil
		}
		data = stored
	} else {
		if !s.gdataManager.ObjectPropExists(runProgressObject, key) {
			return nil, false, nil
		}
		loaded, err := s.gdataManager.LoadObjectProp(runProgressObject, key)
		if err != nil {
			return nil, true, fmt.Errorf("failed to load run progress: %w", err)
		}
		data = loaded
	}

	progress, err := DecodeRunProgress(data)
	if err != nil {
		return nil, true, err
	}
	return progress, true, nil
}

// Clear 删除进度（一轮生产正常结束后调用）
func (s *RunProgressStore) Clear(planName string) error {
	key := progressKey(planName)
	if s.gdataManager == nil {
		delete(s.memory, key)
		return nil
	}
	if !s.gdataManager.ObjectPropExists(runProgressObject, key) {
		return nil
	}
	if err := s.gdataManager.DeleteObjectProp(runProgressObject, key); err != nil {
		return fmt.Errorf("failed to clear run progress: %w", err)
	}
	return nil
}

func progressKey(planName string) string {
	if planName == "" {
		return defaultProgressKey
	}
	return planName
}
