package session

import (
	"sync"

	"github.com/samber/lo"

	"github.com/lk2023060901/relaychat-go/pkg/metrics"
	"github.com/lk2023060901/relaychat-go/pkg/util/merr"
)

// BaseSessionManager 提供了基于内存 map 的 SessionManager 实现。
//
// 特性：
//   - 使用读写锁保证并发安全；
//   - 快照在复制会话切片后释放锁，避免在持锁情况下执行写连接等阻塞操作；
//   - 每次变更后同步 relay_sessions_active 指标。
type BaseSessionManager struct {
	mu       sync.RWMutex
	sessions map[uint64]Session
}

// 确保 BaseSessionManager 实现了 SessionManager 接口。
var _ SessionManager = (*BaseSessionManager)(nil)

// NewBaseSessionManager 创建一个空的 BaseSessionManager。
func NewBaseSessionManager() *BaseSessionManager {
	return &BaseSessionManager{
		sessions: make(map[uint64]Session),
	}
}

// Register 实现 SessionManager.Register。
func (m *BaseSessionManager) Register(sess Session) {
	if sess == nil {
		return
	}

	m.mu.Lock()
	m.sessions[sess.ID()] = sess
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.RelaySessionsActive.Set(float64(n))
}

// Unregister 实现 SessionManager.Unregister。
func (m *BaseSessionManager) Unregister(id uint64) bool {
	m.mu.Lock()
	_, exists := m.sessions[id]
	if exists {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if exists {
		metrics.RelaySessionsActive.Set(float64(n))
	}
	return exists
}

// SnapshotExcluding 实现 SessionManager.SnapshotExcluding。
func (m *BaseSessionManager) SnapshotExcluding(exclude Session) []Session {
	m.mu.RLock()
	all := lo.Values(m.sessions)
	m.mu.RUnlock()

	if exclude == nil {
		return all
	}
	excludeID := exclude.ID()
	return lo.Reject(all, func(sess Session, _ int) bool {
		return sess.ID() == excludeID
	})
}

// Count 实现 SessionManager.Count。
func (m *BaseSessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll 实现 SessionManager.CloseAll。
//
// 先关闭全部连接再清空索引；各会话读循环随后执行的 Unregister 均为空操作。
func (m *BaseSessionManager) CloseAll() error {
	snapshot := m.SnapshotExcluding(nil)
	errs := lo.FilterMap(snapshot, func(sess Session, _ int) (error, bool) {
		err := sess.Close()
		return err, err != nil
	})

	m.mu.Lock()
	m.sessions = make(map[uint64]Session)
	m.mu.Unlock()
	metrics.RelaySessionsActive.Set(0)

	return merr.Combine(errs...)
}
