// Package relay 提供中继的进程级单例服务。
//
// Service 持有唯一的 RelayListener，对宿主环境只暴露显式的 Start/Stop 入口；
// 事件先进入 Dispatcher，再由单独的消费协程转交给当前设置的 Sink。
package relay

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/lk2023060901/relaychat-go/internal/network/acceptor"
	"github.com/lk2023060901/relaychat-go/internal/network/event"
	"github.com/lk2023060901/relaychat-go/internal/util/netutil"
	"github.com/lk2023060901/relaychat-go/pkg/log"
	"github.com/lk2023060901/relaychat-go/pkg/util/merr"
)

// Options 描述 Service 的启动参数。
type Options struct {
	Host        string
	MaxLineSize int
	// QueueSize 为事件分发队列长度，<= 0 时使用默认值。
	QueueSize int
	// DiscoverAddress 为 true 时 Started 事件携带本机局域网地址。
	DiscoverAddress bool
}

// Service 包装 RelayListener 的生命周期。
type Service struct {
	log.Component

	opts Options
	sink *event.Holder[event.RelayEvent]

	mu         sync.Mutex
	listener   *acceptor.RelayListener
	dispatcher *event.Dispatcher[event.RelayEvent]
}

var (
	defaultService     *Service
	defaultServiceOnce sync.Once
)

// Default 返回进程级单例，首次调用时按 opts 初始化，之后的 opts 被忽略。
func Default(opts Options) *Service {
	defaultServiceOnce.Do(func() {
		defaultService = NewService(opts)
	})
	return defaultService
}

// NewService 创建一个独立的 Service，主要用于测试。
func NewService(opts Options) *Service {
	s := &Service{
		opts: opts,
		sink: event.NewHolder[event.RelayEvent](nil),
	}
	s.Bind("relay-service")
	return s
}

// SetSink 替换事件接收者；传入 nil 表示暂时取消订阅，期间的事件被丢弃。
func (s *Service) SetSink(sink event.RelaySink) {
	s.sink.Set(sink)
}

// Start 在 port 上启动中继。已在运行时返回 ErrRelayAlreadyStarted。
func (s *Service) Start(ctx context.Context, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil && s.listener.Running() {
		return merr.WrapErrRelayAlreadyStarted(s.listener.Address())
	}
	_ = s.stopLocked()

	ctx, span := log.NewIntentContext(ctx, "relay", "start")
	defer span.End()

	cfg := acceptor.Config{
		Host:        s.opts.Host,
		MaxLineSize: s.opts.MaxLineSize,
	}
	if s.opts.DiscoverAddress {
		cfg.AddressResolver = netutil.LocalIPv4
	}

	dispatcher := event.NewDispatcher[event.RelayEvent]("relay", s.sink, s.opts.QueueSize)
	listener := acceptor.NewRelayListener(cfg, dispatcher)
	if err := listener.Start(ctx, port); err != nil {
		dispatcher.Close()
		return err
	}

	s.listener = listener
	s.dispatcher = dispatcher
	log.Ctx(ctx).Info("relay service started", zap.String("address", listener.Address()))
	return nil
}

// Stop 停止中继并等待已产生的事件全部交付，未启动时为空操作。
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Service) stopLocked() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Stop()
	s.dispatcher.Close()
	if dropped := s.dispatcher.Dropped(); dropped > 0 {
		s.Logger().Warn("relay events dropped", zap.Int64("dropped", dropped))
	}
	s.listener = nil
	s.dispatcher = nil
	s.Logger().Info("relay service stopped")
	return err
}

// Address 返回当前展示地址，未运行时为空。
func (s *Service) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Address()
}

// Running 返回中继是否正在接受连接。
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil && s.listener.Running()
}

// SessionCount 返回当前在线会话数。
func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return 0
	}
	return s.listener.Sessions().Count()
}

// Listener 返回当前的 RelayListener，未运行时为 nil。
func (s *Service) Listener() *acceptor.RelayListener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener
}
