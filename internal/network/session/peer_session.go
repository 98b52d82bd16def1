package session

import (
	"context"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/lk2023060901/relaychat-go/internal/network"
	"github.com/lk2023060901/relaychat-go/internal/network/conn"
	"github.com/lk2023060901/relaychat-go/internal/network/event"
	"github.com/lk2023060901/relaychat-go/pkg/log"
	"github.com/lk2023060901/relaychat-go/pkg/metrics"
	"github.com/lk2023060901/relaychat-go/pkg/util/merr"
)

// PeerSession 是中继侧对单个已接受连接的封装。
//
// 生命周期：
//   - 由 acceptor 在接受连接后创建并注册，随后在独立协程中执行 Run；
//   - Run 逐行读取对端消息，先广播给其他会话，再发出 MessageReceived 事件；
//   - 读循环因对端关闭、IO 错误或 Close 退出时，统一经由 cleanup 完成清理。
type PeerSession struct {
	log.Component

	id       uint64
	endpoint string
	conn     conn.Conn

	manager     SessionManager
	broadcaster *Broadcaster
	sink        event.RelaySink

	ctx    context.Context
	cancel context.CancelFunc

	running     atomic.Bool
	cleanupOnce sync.Once
}

var _ Session = (*PeerSession)(nil)

// NewPeerSession 基于一条已建立的连接创建会话，新会话处于运行状态。
//
// 参数：
//   - id          ：会话 ID，由调用方保证唯一；
//   - c           ：底层连接，归该会话独占；
//   - manager     ：会话注册表，清理时从中移除自身；
//   - broadcaster ：收到消息后用于转发；
//   - sink        ：中继事件接收者，可以为 nil。
func NewPeerSession(id uint64, c conn.Conn, manager SessionManager, broadcaster *Broadcaster, sink event.RelaySink) *PeerSession {
	if sink == nil {
		sink = event.NewHolder[event.RelayEvent](nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &PeerSession{
		id:          id,
		endpoint:    c.RemoteAddr(),
		conn:        c,
		manager:     manager,
		broadcaster: broadcaster,
		sink:        sink,
		ctx:         ctx,
		cancel:      cancel,
	}
	s.running.Store(true)
	s.BindRated("peer-session", "relay.send", 1, 30, log.FieldEndpoint(s.endpoint), zap.Uint64("sessionID", id))
	return s
}

func (s *PeerSession) ID() uint64               { return s.id }
func (s *PeerSession) Endpoint() string         { return s.endpoint }
func (s *PeerSession) Context() context.Context { return s.ctx }
func (s *PeerSession) Running() bool            { return s.running.Load() }

// Run 执行读循环，直到连接结束或会话被关闭后返回。
func (s *PeerSession) Run() {
	defer s.cleanup()

	for s.running.Load() {
		line, err := s.conn.ReadLine()
		if err != nil {
			s.onReadError(err)
			return
		}

		metrics.RelayMessagesReceived.Inc()
		metrics.RelayMessageBytes.Observe(float64(len(line)))
		s.Logger().Debug("received line", zap.String("text", line))

		if s.broadcaster != nil {
			s.broadcaster.Broadcast(line, s)
		}
		s.sink.Emit(event.RelayMessage(s.endpoint, line))
	}
}

func (s *PeerSession) onReadError(err error) {
	if !s.running.Load() || s.conn.Closed() || network.IsClosedErr(err) {
		s.Logger().Debug("peer stream ended", zap.Error(err))
		return
	}
	metrics.RelayErrors.WithLabelValues(network.StageRecv.String()).Inc()
	s.Logger().Warn("peer stream fault",
		log.FieldStage(network.StageRecv.String()),
		zap.Error(merr.WrapErrPeerIO(s.endpoint, err)))
}

// cleanup 是会话退出的唯一清理路径，只会执行一次。
func (s *PeerSession) cleanup() {
	s.cleanupOnce.Do(func() {
		s.running.Store(false)
		_ = s.conn.Close()
		if s.manager != nil {
			s.manager.Unregister(s.id)
		}
		s.cancel()
		s.Logger().Info("peer disconnected")
		s.sink.Emit(event.PeerDisconnected(s.endpoint))
	})
}

// Send 实现 Session.Send。
func (s *PeerSession) Send(line string) bool {
	if !s.running.Load() || s.conn.Closed() {
		return false
	}
	if err := s.conn.WriteLine(line); err != nil {
		if s.conn.Closed() {
			return false
		}
		metrics.RelaySendFailures.Inc()
		s.Logger().RatedWarn(1, "send to peer failed",
			log.FieldStage(network.StageSend.String()),
			zap.Error(merr.WrapErrSendFailed(s.endpoint, err)))
		return false
	}
	return true
}

// Close 实现 Session.Close。
//
// 只清除运行标志并关闭连接，剩余清理由读循环完成。
func (s *PeerSession) Close() error {
	s.running.Store(false)
	return s.conn.Close()
}
