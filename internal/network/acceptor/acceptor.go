package acceptor

import (
	"context"

	"github.com/lk2023060901/relaychat-go/internal/network/session"
)

// DefaultPort 为中继默认监听端口。
const DefaultPort = 9999

// Config 描述 RelayListener 的监听配置。
//
// 说明：
//   - Host 为监听地址，为空时监听所有网卡；
//   - MaxLineSize 为单行消息的最大字节数，为 0 时使用 framer 默认值；
//   - AddressResolver 用于生成 Started 事件中展示给用户的主机地址，
//     为 nil 或返回错误时退回监听器自身地址。
type Config struct {
	Host        string
	MaxLineSize int

	AddressResolver func() (string, error)
}

func defaultConfig() Config {
	return Config{
		Host: "0.0.0.0",
	}
}

// Acceptor 抽象了中继侧的 TCP 接入层。
//
// 职责：
//   - 在指定端口上监听，为每个连接创建 PeerSession 并注册；
//   - 通过 RelaySink 报告启动、接入、断开与监听错误；
//   - Stop 关闭监听器与所有会话。
type Acceptor interface {
	// Start 绑定端口并启动 accept 循环，端口被占用时返回 ErrRelayBind，不会自动重试。
	Start(ctx context.Context, port int) error

	// Stop 关闭监听器与全部会话并清空注册表，可以重复调用。
	Stop() error

	// Address 返回 Started 事件中报告的地址，未启动时为空。
	Address() string

	// Running 返回 accept 循环是否仍在运行。
	Running() bool

	// Sessions 返回会话注册表。
	Sessions() session.SessionManager
}
