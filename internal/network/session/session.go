package session

import (
	"context"
)

// Session 抽象了中继侧的一条对端会话。
//
// 约定：
//   - 每个 Session 独占一条底层连接，不同 Session 之间不共享连接；
//   - Session ID 使用 64 位无符号整型，由接入层分配，在进程内唯一；
//   - Endpoint 为对端地址字符串，用于事件与日志中标识对端。
type Session interface {
	// ID 返回该会话在进程内的唯一标识。
	ID() uint64

	// Endpoint 返回对端地址（"ip:port"）。
	Endpoint() string

	// Context 返回与该会话关联的上下文，会话清理完成后被取消。
	Context() context.Context

	// Send 向对端写出一行文本。
	//
	// 行为：
	//   - 连接已关闭或会话已停止时直接返回 false，不报错；
	//   - 写失败只记录日志与指标，不向调用方传播。
	//
	// 返回值表示该行是否成功写出。
	Send(line string) bool

	// Close 主动关闭该会话，阻塞中的读循环会因此退出并执行清理。
	// 多次调用是幂等的。
	Close() error

	// Running 返回读循环是否仍在运行。
	Running() bool
}
