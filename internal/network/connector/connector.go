package connector

import (
	"context"
	"net"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/lk2023060901/relaychat-go/internal/network"
	"github.com/lk2023060901/relaychat-go/internal/network/conn"
	"github.com/lk2023060901/relaychat-go/internal/network/event"
	"github.com/lk2023060901/relaychat-go/internal/network/framer"
	"github.com/lk2023060901/relaychat-go/pkg/log"
	"github.com/lk2023060901/relaychat-go/pkg/metrics"
	"github.com/lk2023060901/relaychat-go/pkg/util/conc"
	"github.com/lk2023060901/relaychat-go/pkg/util/merr"
)

// ReasonRemoteClosed 为对端正常关闭连接时 Disconnected 事件携带的原因。
const ReasonRemoteClosed = "remote closed"

// Config 描述客户端连接器的配置。
type Config struct {
	// MaxLineSize 为单行消息的最大字节数，为 0 时使用 framer 默认值。
	MaxLineSize int
}

// Connector 抽象了客户端到中继的单条连接。
type Connector interface {
	// Connect 仅在 Disconnected 状态下有效，拨号在独立协程中进行。
	// 返回的 Future 在进入 Connected 或连接失败后完成。
	Connect(ctx context.Context, host string, port int) *conc.Future[struct{}]

	// Send 仅在 Connected 状态下有效，写失败发出 SendFailed 事件但不改变状态。
	Send(line string) error

	// Disconnect 在任意状态下均可调用，已断开时为空操作。
	Disconnect()

	// State 返回当前状态。
	State() State
}

// ClientConnector 是 Connector 的 TCP 实现。
//
// 状态迁移全部在 mu 保护下完成，并在同一临界区内发出对应事件，
// 保证事件顺序与状态顺序一致。Sink 不得在 Emit 中同步调用 ClientConnector 的方法。
//
// gen 在每次发起连接与每次断开时递增。拨号协程与读循环持有启动时的 gen，
// 迁移前比较 gen 以识别自己是否已经过期，从而保证一次断开只通知一次。
type ClientConnector struct {
	log.Component

	sink   event.PeerSink
	framer framer.Framer

	mu         sync.Mutex
	state      State
	gen        uint64
	conn       conn.Conn
	cancelDial context.CancelFunc
	addr       string
}

var _ Connector = (*ClientConnector)(nil)

// NewClientConnector 创建一个处于 Disconnected 状态的连接器，sink 可以为 nil。
func NewClientConnector(cfg Config, sink event.PeerSink) *ClientConnector {
	if sink == nil {
		sink = event.NewHolder[event.PeerEvent](nil)
	}
	c := &ClientConnector{
		sink:   sink,
		framer: framer.NewLineFramer(cfg.MaxLineSize),
		state:  Disconnected,
	}
	c.Bind("client-connector")
	return c
}

// State 实现 Connector.State。
func (c *ClientConnector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Address 返回最近一次连接的目标地址。
func (c *ClientConnector) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// LocalAddr 返回当前连接的本端地址，未连接时为空。
func (c *ClientConnector) LocalAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ""
	}
	return c.conn.LocalAddr()
}

// Connect 实现 Connector.Connect。
func (c *ClientConnector) Connect(ctx context.Context, host string, port int) *conc.Future[struct{}] {
	if host == "" {
		return conc.Completed(struct{}{}, merr.WrapErrParameterMissing("host"))
	}
	if port <= 0 || port > 65535 {
		return conc.Completed(struct{}{}, merr.WrapErrParameterInvalidRange(1, 65535, port, "peer port"))
	}

	c.mu.Lock()
	if c.state != Disconnected {
		state := c.state
		c.mu.Unlock()
		return conc.Completed(struct{}{}, merr.WrapErrConnectorState(Disconnected.String(), state.String(), "connect rejected"))
	}
	c.gen++
	gen := c.gen
	dialCtx, cancel := context.WithCancel(ctx)
	c.cancelDial = cancel
	c.addr = net.JoinHostPort(host, strconv.Itoa(port))
	addr := c.addr
	c.setStateLocked(Connecting)
	c.sink.Emit(event.Connecting())
	c.mu.Unlock()

	c.Logger().Info("connecting", zap.String("addr", addr))
	return conc.Go(func() (struct{}, error) {
		defer cancel()
		return struct{}{}, c.dial(dialCtx, gen, addr)
	})
}

// Reconnect 先断开当前连接（如有），再发起新的连接。
func (c *ClientConnector) Reconnect(ctx context.Context, host string, port int) *conc.Future[struct{}] {
	c.Disconnect()
	return c.Connect(ctx, host, port)
}

func (c *ClientConnector) dial(ctx context.Context, gen uint64, addr string) error {
	lc, err := conn.Dial(ctx, addr, c.framer)

	c.mu.Lock()
	if c.gen != gen || c.state != Connecting {
		state := c.state
		c.mu.Unlock()
		if lc != nil {
			_ = lc.Close()
		}
		return merr.WrapErrConnectorState(Connecting.String(), state.String(), "connect aborted")
	}
	c.cancelDial = nil

	if err != nil {
		var werr error
		if network.IsConnRefused(err) {
			werr = merr.WrapErrConnectionRefused(addr, err)
			metrics.PeerConnectAttempts.WithLabelValues(metrics.ResultRefused).Inc()
			c.setStateLocked(Disconnected)
			c.sink.Emit(event.ConnectionRefused())
		} else {
			werr = merr.WrapErrConnectorIO(addr, err)
			metrics.PeerConnectAttempts.WithLabelValues(metrics.ResultFailed).Inc()
			c.setStateLocked(Disconnected)
			c.sink.Emit(event.IOError(err.Error()))
		}
		c.mu.Unlock()
		c.Logger().Warn("connect failed", log.FieldStage(network.StageConnect.String()), zap.Error(werr))
		return werr
	}

	c.conn = lc
	metrics.PeerConnectAttempts.WithLabelValues(metrics.ResultSuccess).Inc()
	c.setStateLocked(Connected)
	c.sink.Emit(event.Connected())
	c.mu.Unlock()

	c.Logger().Info("connected", zap.String("addr", addr), zap.String("local", lc.LocalAddr()))
	conc.Go(func() (struct{}, error) {
		c.readLoop(gen, lc)
		return struct{}{}, nil
	})
	return nil
}

// readLoop 只在 Connected 状态下交付消息，退出时经由 disconnectLocked 完成迁移。
func (c *ClientConnector) readLoop(gen uint64, lc conn.Conn) {
	for {
		line, err := lc.ReadLine()
		if err != nil {
			reason := ReasonRemoteClosed
			if !network.IsClosedErr(err) && !lc.Closed() {
				reason = err.Error()
				c.Logger().Warn("read failed",
					log.FieldStage(network.StageRecv.String()),
					zap.Error(merr.WrapErrConnectorIO(lc.RemoteAddr(), err)))
			}

			c.mu.Lock()
			if c.gen == gen && c.state == Connected {
				c.disconnectLocked(reason)
			}
			c.mu.Unlock()
			return
		}

		// 已断开的读循环可能仍读到缓冲中的数据，这些行不再交付。
		c.mu.Lock()
		if c.gen != gen || c.state != Connected {
			c.mu.Unlock()
			return
		}
		metrics.PeerMessages.WithLabelValues(metrics.DirectionIn).Inc()
		c.sink.Emit(event.PeerMessage(line))
		c.mu.Unlock()
	}
}

// Send 实现 Connector.Send。
//
// 空行被拒绝且不发出任何事件；写失败只发出 SendFailed，连接是否断开由读循环判断。
func (c *ClientConnector) Send(line string) error {
	if line == "" {
		return merr.WrapErrLineInvalid("empty line")
	}
	if err := framer.ValidateLine(line); err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != Connected || c.conn == nil {
		state := c.state
		c.mu.Unlock()
		return merr.WrapErrConnectorState(Connected.String(), state.String(), "send rejected")
	}
	lc := c.conn
	c.mu.Unlock()

	if err := lc.WriteLine(line); err != nil {
		werr := merr.WrapErrSendFailed(lc.RemoteAddr(), err)
		metrics.PeerSendFailures.Inc()
		c.Logger().Warn("send failed", log.FieldStage(network.StageSend.String()), zap.Error(werr))
		c.sink.Emit(event.SendFailed(werr.Error()))
		return werr
	}
	metrics.PeerMessages.WithLabelValues(metrics.DirectionOut).Inc()
	return nil
}

// SendAsync 在独立协程中执行 Send，避免调用方被写操作阻塞。
func (c *ClientConnector) SendAsync(line string) *conc.Future[struct{}] {
	return conc.Go(func() (struct{}, error) {
		return struct{}{}, c.Send(line)
	})
}

// Disconnect 实现 Connector.Disconnect。
func (c *ClientConnector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Disconnected {
		return
	}
	c.disconnectLocked(event.ReasonLocal)
}

// disconnectLocked 是迁移到 Disconnected 并发出 Disconnected 事件的唯一入口，调用方须持有 mu。
func (c *ClientConnector) disconnectLocked(reason string) {
	c.gen++
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.setStateLocked(Disconnected)
	c.sink.Emit(event.Disconnected(reason))
	c.Logger().Info("disconnected", zap.String("addr", c.addr), zap.String("reason", reason))
}

func (c *ClientConnector) setStateLocked(s State) {
	c.state = s
	metrics.PeerState.Set(float64(s))
}
