// Package netutil 提供本机网络地址发现。
//
// 结果只用于展示，协议本身不依赖它的正确性。
package netutil

import (
	"net"

	"github.com/samber/lo"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/lk2023060901/relaychat-go/pkg/util/merr"
)

const (
	flagUp       = "up"
	flagLoopback = "loopback"
)

// LocalIPv4 返回第一个处于 up 状态、非回环网卡上的 IPv4 地址。
func LocalIPv4() (string, error) {
	ifaces, err := gnet.Interfaces()
	if err != nil {
		return "", merr.WrapErrServiceInternal(err.Error(), "list network interfaces")
	}
	ip, ok := pickIPv4(ifaces)
	if !ok {
		return "", merr.WrapErrServiceNotReady("netutil", "no-ipv4", "no non-loopback IPv4 address")
	}
	return ip, nil
}

// pickIPv4 按网卡顺序挑选第一个可用的单播 IPv4 地址，跳过链路本地地址。
func pickIPv4(ifaces []gnet.InterfaceStat) (string, bool) {
	for _, iface := range ifaces {
		if !lo.Contains(iface.Flags, flagUp) || lo.Contains(iface.Flags, flagLoopback) {
			continue
		}
		for _, addr := range iface.Addrs {
			ip := parseAddr(addr.Addr)
			if ip == nil || ip.To4() == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			return ip.To4().String(), true
		}
	}
	return "", false
}

// parseAddr 兼容 "192.168.1.2/24" 与 "192.168.1.2" 两种格式。
func parseAddr(s string) net.IP {
	if ip, _, err := net.ParseCIDR(s); err == nil {
		return ip
	}
	return net.ParseIP(s)
}
