package netutil

import (
	"net"
	"testing"

	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
)

func TestPickIPv4(t *testing.T) {
	ifaces := []gnet.InterfaceStat{
		{
			Name:  "lo",
			Flags: []string{"up", "loopback"},
			Addrs: gnet.InterfaceAddrList{{Addr: "127.0.0.1/8"}},
		},
		{
			Name:  "eth1",
			Flags: []string{"broadcast"},
			Addrs: gnet.InterfaceAddrList{{Addr: "10.1.1.1/24"}},
		},
		{
			Name:  "wlan0",
			Flags: []string{"up", "broadcast"},
			Addrs: gnet.InterfaceAddrList{
				{Addr: "fe80::1/64"},
				{Addr: "169.254.3.4/16"},
				{Addr: "192.168.1.23/24"},
			},
		},
	}
	ip, ok := pickIPv4(ifaces)
	assert.True(t, ok)
	assert.Equal(t, "192.168.1.23", ip)

	_, ok = pickIPv4(ifaces[:2])
	assert.False(t, ok)
}

func TestParseAddr(t *testing.T) {
	assert.Equal(t, "10.0.0.5", parseAddr("10.0.0.5/16").String())
	assert.Equal(t, "10.0.0.5", parseAddr("10.0.0.5").String())
	assert.Nil(t, parseAddr("garbage"))
}

func TestLocalIPv4(t *testing.T) {
	ip, err := LocalIPv4()
	if err != nil {
		t.Skipf("no usable interface: %v", err)
	}
	assert.NotNil(t, net.ParseIP(ip).To4())
}
