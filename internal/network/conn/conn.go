package conn

import (
	"bufio"
	"context"
	"net"
	"sync"

	"go.uber.org/atomic"

	"github.com/lk2023060901/relaychat-go/internal/network/framer"
	"github.com/lk2023060901/relaychat-go/pkg/util/merr"
)

// Conn 抽象了到单个对端的一条双向字节流。
//
// 约定：
//   - Conn 归创建它的 PeerSession 或 ClientConnector 独占，只有所有者可以读取；
//   - WriteLine 与 Close 可以在读循环之外的协程中调用，并发安全；
//   - Close 幂等，关闭连接是唯一的取消手段，阻塞中的 ReadLine 会因此返回。
type Conn interface {
	// RemoteAddr 返回对端地址字符串，作为会话标识。
	RemoteAddr() string

	// LocalAddr 返回本端地址字符串。
	LocalAddr() string

	// ReadLine 阻塞读取一行文本（不含换行符）。
	ReadLine() (string, error)

	// WriteLine 写出一行文本，连接已关闭时返回 ErrPeerClosed。
	WriteLine(line string) error

	// Close 关闭连接，多次调用只有第一次生效。
	Close() error

	// Closed 返回连接是否已被关闭。
	Closed() bool
}

// LineConn 是基于 net.Conn 与 LineFramer 的 Conn 实现。
type LineConn struct {
	conn   net.Conn
	framer framer.Framer
	reader *bufio.Reader

	remoteAddr string
	localAddr  string

	// writeMu 保证同一时刻只有一个协程写连接，避免多条消息交错。
	writeMu sync.Mutex

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ Conn = (*LineConn)(nil)

// NewLineConn 使用已建立的 net.Conn 创建一个 LineConn。
// f 为 nil 时使用默认的 LineFramer。
func NewLineConn(c net.Conn, f framer.Framer) *LineConn {
	if f == nil {
		f = framer.NewLineFramer(0)
	}
	return &LineConn{
		conn:       c,
		framer:     f,
		reader:     bufio.NewReader(c),
		remoteAddr: addrString(c.RemoteAddr()),
		localAddr:  addrString(c.LocalAddr()),
	}
}

// Dial 拨号到 address（"host:port"）并返回 LineConn。
//
// 不设置拨号超时：对端不可达时由 ctx 或操作系统决定何时放弃。
func Dial(ctx context.Context, address string, f framer.Framer) (*LineConn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return NewLineConn(c, f), nil
}

func (c *LineConn) RemoteAddr() string { return c.remoteAddr }
func (c *LineConn) LocalAddr() string  { return c.localAddr }
func (c *LineConn) Closed() bool       { return c.closed.Load() }

// ReadLine 实现 Conn.ReadLine，只应由连接所有者的读循环调用。
func (c *LineConn) ReadLine() (string, error) {
	return c.framer.ReadLine(c.reader)
}

// WriteLine 实现 Conn.WriteLine。
func (c *LineConn) WriteLine(line string) error {
	if c.closed.Load() {
		return merr.WrapErrPeerClosed(c.remoteAddr)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.framer.WriteLine(c.conn, line)
}

// Close 实现 Conn.Close。
func (c *LineConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
