package acceptor

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/lk2023060901/relaychat-go/internal/network"
	"github.com/lk2023060901/relaychat-go/internal/network/conn"
	"github.com/lk2023060901/relaychat-go/internal/network/event"
	"github.com/lk2023060901/relaychat-go/internal/network/framer"
	"github.com/lk2023060901/relaychat-go/internal/network/session"
	"github.com/lk2023060901/relaychat-go/pkg/log"
	"github.com/lk2023060901/relaychat-go/pkg/metrics"
	"github.com/lk2023060901/relaychat-go/pkg/util/conc"
	"github.com/lk2023060901/relaychat-go/pkg/util/merr"
)

// RelayListener 是 Acceptor 的 TCP 实现。
//
// 并发模型：
//   - accept 循环与每个会话的读循环分别运行在独立协程中；
//   - mu 只保护 Start/Stop 之间的状态切换，不在 accept 或读循环中持有；
//   - 关闭监听器是结束 accept 循环的唯一手段。
type RelayListener struct {
	log.Component

	cfg    Config
	sink   event.RelaySink
	framer framer.Framer

	manager     session.SessionManager
	broadcaster *session.Broadcaster

	mu      sync.Mutex
	ln      net.Listener
	address string
	loop    *conc.Future[struct{}]

	// readLoops 跟踪仍在运行的读循环，Stop 等待它们全部完成清理。
	readLoops sync.WaitGroup

	stopped atomic.Bool
	running atomic.Bool
	nextID  atomic.Uint64
}

var _ Acceptor = (*RelayListener)(nil)

// NewRelayListener 创建一个尚未启动的 RelayListener。
//
// sink 可以为 nil；需要在运行期间替换接收者时传入 *event.Holder。
func NewRelayListener(cfg Config, sink event.RelaySink) *RelayListener {
	def := defaultConfig()
	if cfg.Host == "" {
		cfg.Host = def.Host
	}
	if sink == nil {
		sink = event.NewHolder[event.RelayEvent](nil)
	}
	manager := session.NewBaseSessionManager()
	l := &RelayListener{
		cfg:         cfg,
		sink:        sink,
		framer:      framer.NewLineFramer(cfg.MaxLineSize),
		manager:     manager,
		broadcaster: session.NewBroadcaster(manager),
	}
	l.BindRated("relay-listener", "relay.accept", 1, 10)
	return l
}

// Start 实现 Acceptor.Start。
func (l *RelayListener) Start(ctx context.Context, port int) error {
	if port < 0 || port > 65535 {
		return merr.WrapErrParameterInvalidRange(0, 65535, port, "relay port")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return merr.WrapErrRelayAlreadyStarted(l.address)
	}

	addr := net.JoinHostPort(l.cfg.Host, strconv.Itoa(port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		metrics.RelayErrors.WithLabelValues(network.StageBind.String()).Inc()
		inUse := network.IsAddrInUse(err)
		err = merr.WrapErrRelayBind(addr, err)
		log.Ctx(ctx).Warn("relay bind failed", zap.String("addr", addr), zap.Bool("addrInUse", inUse), zap.Error(err))
		return err
	}

	l.serveLocked(ln)
	log.Ctx(ctx).Info("relay started", zap.String("listen", ln.Addr().String()), zap.String("address", l.address))
	return nil
}

// Serve 在已创建的 listener 上启动 accept 循环，主要用于测试或由外部托管监听套接字的场景。
func (l *RelayListener) Serve(ln net.Listener) error {
	if ln == nil {
		return merr.WrapErrParameterMissing("listener")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return merr.WrapErrRelayAlreadyStarted(l.address)
	}
	l.serveLocked(ln)
	return nil
}

func (l *RelayListener) serveLocked(ln net.Listener) {
	l.ln = ln
	l.address = l.displayAddress(ln)
	l.stopped.Store(false)
	l.running.Store(true)

	l.sink.Emit(event.Started(l.address))
	l.loop = conc.Go(func() (struct{}, error) {
		return struct{}{}, l.acceptLoop(ln)
	})
}

// displayAddress 生成用于展示的 "host:port"。
func (l *RelayListener) displayAddress(ln net.Listener) string {
	listen := ln.Addr().String()
	if l.cfg.AddressResolver == nil {
		return listen
	}
	_, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	host, err := l.cfg.AddressResolver()
	if err != nil || host == "" {
		l.Logger().Debug("address discovery failed, using listener address", zap.Error(err))
		return listen
	}
	return net.JoinHostPort(host, port)
}

// acceptLoop 持续接受连接，直到监听器被关闭或出现不可恢复的错误。
//
// 临时错误（例如文件描述符耗尽）按指数退避后重试，只记录日志；
// 不可恢复的错误发出一次 ListenerError 后退出循环。
func (l *RelayListener) acceptLoop(ln net.Listener) error {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 5 * time.Millisecond
	retry.MaxInterval = time.Second
	retry.MaxElapsedTime = 0

	for {
		c, err := ln.Accept()
		if err != nil {
			if l.stopped.Load() {
				return nil
			}
			metrics.RelayErrors.WithLabelValues(network.StageAccept.String()).Inc()

			if network.IsTemporary(err) {
				delay := retry.NextBackOff()
				l.Logger().RatedWarn(1, "accept failed, retrying",
					log.FieldStage(network.StageAccept.String()),
					zap.Duration("delay", delay),
					zap.Error(err))
				time.Sleep(delay)
				continue
			}

			l.running.Store(false)
			err = merr.WrapErrRelayAccept(err)
			l.Logger().Error("accept loop terminated", log.FieldStage(network.StageAccept.String()), zap.Error(err))
			l.sink.Emit(event.ListenerError(err.Error()))
			return err
		}
		retry.Reset()
		l.handleConn(c)
	}
}

// handleConn 为新连接创建会话、注册并在独立协程中启动读循环。
func (l *RelayListener) handleConn(c net.Conn) {
	sess := session.NewPeerSession(l.nextID.Inc(), conn.NewLineConn(c, l.framer), l.manager, l.broadcaster, l.sink)
	l.manager.Register(sess)
	metrics.RelaySessionsTotal.Inc()

	// Stop 可能在 Accept 返回与注册之间完成，此时新会话不会被 CloseAll 覆盖。
	if l.stopped.Load() {
		l.Logger().Debug("closing session accepted during stop", log.FieldEndpoint(sess.Endpoint()),
			zap.Error(merr.WrapErrRelayStopped("accepted during stop")))
		_ = sess.Close()
	}

	l.Logger().Info("peer connected", log.FieldEndpoint(sess.Endpoint()), zap.Int("sessions", l.manager.Count()))
	l.sink.Emit(event.PeerConnected(sess.Endpoint()))

	l.readLoops.Add(1)
	conc.Go(func() (struct{}, error) {
		defer l.readLoops.Done()
		sess.Run()
		return struct{}{}, nil
	})
}

// Stop 实现 Acceptor.Stop。
//
// 返回时所有会话已完成清理，对应的 PeerDisconnected 事件均已发出。
func (l *RelayListener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln == nil {
		return nil
	}
	l.stopped.Store(true)
	l.running.Store(false)

	var lnErr error
	if err := l.ln.Close(); err != nil && !network.IsClosedErr(err) {
		lnErr = err
	}
	if l.loop != nil {
		l.loop.Await()
	}
	sessErr := l.manager.CloseAll()
	l.readLoops.Wait()

	l.Logger().Info("relay stopped", zap.String("address", l.address))
	l.ln = nil
	l.loop = nil
	l.address = ""
	return merr.Combine(lnErr, sessErr)
}

// Address 实现 Acceptor.Address。
func (l *RelayListener) Address() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.address
}

// ListenAddr 返回监听器实际绑定的地址，未启动时返回 nil。
func (l *RelayListener) ListenAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Running 实现 Acceptor.Running。
func (l *RelayListener) Running() bool {
	return l.running.Load()
}

// Sessions 实现 Acceptor.Sessions。
func (l *RelayListener) Sessions() session.SessionManager {
	return l.manager
}
