package peer

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/lk2023060901/relaychat-go/internal/network/connector"
	"github.com/lk2023060901/relaychat-go/internal/network/event"
	"github.com/lk2023060901/relaychat-go/pkg/log"
)

// ReconnectPolicy 描述自动重连的退避参数。
type ReconnectPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsedTime 为 0 表示一直重试。
	MaxElapsedTime time.Duration
}

func (p ReconnectPolicy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = p.MaxElapsedTime
	b.Reset()
	return b
}

// Reconnector 观察连接器事件，在连接失败或被对端断开后按指数退避重新连接。
//
// 本端主动 Disconnect 产生的断开不会触发重连。Reconnector 本身是一个 PeerSink，
// Emit 只安排定时器，不会同步调用连接器。
type Reconnector struct {
	log.Component

	conn *connector.ClientConnector
	host string
	port int

	mu      sync.Mutex
	policy  *backoff.ExponentialBackOff
	timer   *time.Timer
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
}

var _ event.PeerSink = (*Reconnector)(nil)

// NewReconnector 创建一个针对 host:port 的 Reconnector。
func NewReconnector(conn *connector.ClientConnector, host string, port int, policy ReconnectPolicy) *Reconnector {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Reconnector{
		conn:   conn,
		host:   host,
		port:   port,
		policy: policy.newBackOff(),
		ctx:    ctx,
		cancel: cancel,
	}
	r.Bind("reconnector")
	return r
}

// Emit 实现 event.PeerSink。
func (r *Reconnector) Emit(e event.PeerEvent) {
	switch e.Type {
	case event.PeerEventConnected:
		r.mu.Lock()
		r.policy.Reset()
		r.mu.Unlock()
	case event.PeerEventConnectionRefused, event.PeerEventIOError:
		r.schedule()
	case event.PeerEventDisconnected:
		if e.Reason == event.ReasonLocal {
			r.cancelPending()
			return
		}
		r.schedule()
	}
}

// cancelPending 取消尚未触发的重连，本端主动断开后不再自动恢复。
func (r *Reconnector) cancelPending() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Reconnector) schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || r.timer != nil {
		return
	}

	delay := r.policy.NextBackOff()
	if delay == backoff.Stop {
		r.Logger().Warn("reconnect gave up", zap.Duration("elapsed", r.policy.GetElapsedTime()))
		return
	}
	r.Logger().Info("reconnect scheduled", zap.Duration("delay", delay))
	r.timer = time.AfterFunc(delay, r.fire)
}

func (r *Reconnector) fire() {
	r.mu.Lock()
	r.timer = nil
	stopped := r.stopped
	r.mu.Unlock()
	// 连接已由其他调用方恢复时不再重复拨号。
	if stopped || r.conn.State() != connector.Disconnected {
		return
	}
	// 结果通过连接器事件回到 Emit，这里不再等待。
	_ = r.conn.Connect(r.ctx, r.host, r.port)
}

// Pending 返回是否有尚未触发的重连。
func (r *Reconnector) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timer != nil
}

// Stop 取消待触发的重连与进行中的拨号，之后不再安排新的重连。
func (r *Reconnector) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.cancel()
}
