package session

// SessionManager 维护当前所有在线会话的索引。
//
// 职责说明：
//   - 只负责会话的注册、快照和移除，不直接创建底层连接；
//   - Session 的具体生命周期由上层的 acceptor 与会话自身的读循环决定；
//   - 所有方法均可被 accept 循环与各会话的清理路径并发调用。
type SessionManager interface {
	// Register 将一个已创建好的 Session 注册到管理器中。
	//
	// 每个被接受的连接只会产生一个新会话，调用方保证唯一性，这里无条件插入。
	Register(sess Session)

	// Unregister 从管理器中移除指定 id 的会话。
	//
	// 说明：
	//   - 会话不存在时为空操作，返回 false；
	//   - 仅删除索引，不负责调用 sess.Close()。
	Unregister(id uint64) bool

	// SnapshotExcluding 返回除 exclude 以外所有会话的独立副本。
	//
	// 返回的切片可以在不持有任何锁的情况下遍历；exclude 为 nil 时返回全部会话。
	// 会话之间没有顺序保证。
	SnapshotExcluding(exclude Session) []Session

	// Count 返回当前已注册的会话数量。
	Count() int

	// CloseAll 关闭所有已注册会话的连接，然后清空索引。
	CloseAll() error
}
