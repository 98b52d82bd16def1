package session

import (
	"github.com/lk2023060901/relaychat-go/pkg/metrics"
)

// Broadcaster 将一行消息转发给除发送者以外的所有在线会话。
//
// 投递是尽力而为的：对某个接收者写失败不会影响其他接收者，
// 广播期间断开的会话只会错过这条消息，不做排队或补发。
type Broadcaster struct {
	manager SessionManager
}

// NewBroadcaster 创建一个基于 manager 的 Broadcaster。
func NewBroadcaster(manager SessionManager) *Broadcaster {
	return &Broadcaster{manager: manager}
}

// Broadcast 向除 exclude 外的全部会话发送 line，返回成功写出的会话数。
//
// 接收者按快照顺序依次写出，同一发送者的消息在每个接收者处保持到达顺序。
func (b *Broadcaster) Broadcast(line string, exclude Session) int {
	delivered := 0
	for _, sess := range b.manager.SnapshotExcluding(exclude) {
		if sess.Send(line) {
			delivered++
		}
	}
	if delivered > 0 {
		metrics.RelayBroadcastDeliveries.Add(float64(delivered))
	}
	return delivered
}
