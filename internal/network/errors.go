package network

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// Stage 表示网络收发链路中的处理阶段。
//
// 主要用于在日志与监控中标记错误发生的位置，便于排查。
type Stage string

const (
	StageBind     Stage = "bind"
	StageAccept   Stage = "accept"
	StageConnect  Stage = "connect"
	StageRecv     Stage = "recv"     // 从连接读取一行
	StageDispatch Stage = "dispatch" // 行 -> 广播
	StageSend     Stage = "send"     // 向对端写出一行
)

// String 返回阶段名，便于作为日志字段与指标标签。
func (s Stage) String() string {
	return string(s)
}

// IsClosedErr 判断 err 是否表示连接被正常关闭（EOF 或本端已关闭）。
//
// 读循环以此区分正常断开与 I/O 故障。
func IsClosedErr(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

// IsConnRefused 判断拨号错误是否为对端未监听。
func IsConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

// IsAddrInUse 判断监听错误是否为端口已被占用。
func IsAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}

// IsTemporary 判断 accept 错误是否可以忽略并继续接收新连接。
func IsTemporary(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.EINTR)
}
