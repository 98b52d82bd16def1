// Package peer 组合客户端连接器、可选的自动重连与事件分发，供交互式客户端使用。
package peer

import (
	"context"

	"github.com/lk2023060901/relaychat-go/internal/network/connector"
	"github.com/lk2023060901/relaychat-go/internal/network/event"
	"github.com/lk2023060901/relaychat-go/pkg/util/conc"
)

// Options 描述 Client 的参数。
type Options struct {
	Host        string
	Port        int
	MaxLineSize int
	QueueSize   int

	Reconnect bool
	Policy    ReconnectPolicy
}

// Client 将 ClientConnector 的事件经 Dispatcher 投递给展示层。
type Client struct {
	opts Options

	conn        *connector.ClientConnector
	reconnector *Reconnector
	dispatcher  *event.Dispatcher[event.PeerEvent]
}

// NewClient 创建一个尚未连接的 Client，sink 为展示层的事件接收者。
func NewClient(opts Options, sink event.PeerSink) *Client {
	holder := event.NewHolder[event.PeerEvent](nil)
	c := &Client{
		opts:       opts,
		conn:       connector.NewClientConnector(connector.Config{MaxLineSize: opts.MaxLineSize}, holder),
		dispatcher: event.NewDispatcher[event.PeerEvent]("peer", sink, opts.QueueSize),
	}

	sinks := event.Fanout[event.PeerEvent]{c.dispatcher}
	if opts.Reconnect {
		c.reconnector = NewReconnector(c.conn, opts.Host, opts.Port, opts.Policy)
		sinks = append(sinks, c.reconnector)
	}
	holder.Set(sinks)
	return c
}

// Connect 发起连接，返回的 Future 在连接成功或失败后完成。
func (c *Client) Connect(ctx context.Context) *conc.Future[struct{}] {
	return c.conn.Connect(ctx, c.opts.Host, c.opts.Port)
}

// Reconnect 断开当前连接（如有）后重新连接同一地址。
func (c *Client) Reconnect(ctx context.Context) *conc.Future[struct{}] {
	return c.conn.Reconnect(ctx, c.opts.Host, c.opts.Port)
}

// Disconnect 主动断开连接，不触发自动重连。
func (c *Client) Disconnect() {
	c.conn.Disconnect()
}

// Send 在独立协程中发送一行文本。
func (c *Client) Send(line string) *conc.Future[struct{}] {
	return c.conn.SendAsync(line)
}

// State 返回连接器当前状态。
func (c *Client) State() connector.State {
	return c.conn.State()
}

// Close 停止重连并断开连接，等待已产生的事件交付完毕。
func (c *Client) Close() {
	if c.reconnector != nil {
		c.reconnector.Stop()
	}
	c.conn.Disconnect()
	c.dispatcher.Close()
}
