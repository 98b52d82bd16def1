package peer

import (
	"context"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/relaychat-go/internal/network/connector"
	"github.com/lk2023060901/relaychat-go/internal/network/event"
)

var fastPolicy = ReconnectPolicy{
	InitialInterval: 20 * time.Millisecond,
	MaxInterval:     50 * time.Millisecond,
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

// acceptAll 接受连接并返回接收到的连接通道。
func acceptAll(ln net.Listener) <-chan net.Conn {
	ch := make(chan net.Conn, 8)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			ch <- c
		}
	}()
	return ch
}

func TestReconnectAfterRefused(t *testing.T) {
	port := freePort(t)
	sink := event.NewRecorder[event.PeerEvent]()
	client := NewClient(Options{Host: "127.0.0.1", Port: port, Reconnect: true, Policy: fastPolicy}, sink)
	defer client.Close()

	_ = client.Connect(context.Background()).Err()
	require.True(t, sink.Wait(event.PeerOfType(event.PeerEventConnectionRefused), time.Second))

	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Skipf("port %d reused by another process: %v", port, err)
	}
	defer ln.Close()
	conns := acceptAll(ln)

	require.True(t, sink.Wait(event.PeerOfType(event.PeerEventConnected), 2*time.Second))
	assert.Equal(t, connector.Connected, client.State())

	// 对端断开后再次重连。
	server := <-conns
	require.NoError(t, server.Close())
	require.True(t, sink.Wait(func(event.PeerEvent) bool {
		return sink.Count(event.PeerOfType(event.PeerEventConnected)) == 2
	}, 2*time.Second))
}

func TestNoReconnectAfterLocalDisconnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	acceptAll(ln)

	conn := connector.NewClientConnector(connector.Config{}, nil)
	r := NewReconnector(conn, "127.0.0.1", ln.Addr().(*net.TCPAddr).Port, fastPolicy)
	defer r.Stop()

	r.Emit(event.Disconnected(event.ReasonLocal))
	assert.False(t, r.Pending())

	r.Emit(event.Disconnected("remote closed"))
	assert.True(t, r.Pending())
	assert.Eventually(t, func() bool { return conn.State() == connector.Connected }, time.Second, 10*time.Millisecond)
	conn.Disconnect()
}

func TestReconnectorStop(t *testing.T) {
	conn := connector.NewClientConnector(connector.Config{}, nil)
	r := NewReconnector(conn, "127.0.0.1", freePort(t), ReconnectPolicy{InitialInterval: time.Hour, MaxInterval: time.Hour})
	r.Emit(event.ConnectionRefused())
	assert.True(t, r.Pending())

	r.Stop()
	assert.False(t, r.Pending())
	r.Emit(event.IOError("boom"))
	assert.False(t, r.Pending())
}

func TestLocalDisconnectCancelsPendingReconnect(t *testing.T) {
	conn := connector.NewClientConnector(connector.Config{}, nil)
	r := NewReconnector(conn, "127.0.0.1", freePort(t), ReconnectPolicy{InitialInterval: time.Hour, MaxInterval: time.Hour})
	defer r.Stop()

	r.Emit(event.IOError("reset"))
	require.True(t, r.Pending())
	r.Emit(event.Disconnected(event.ReasonLocal))
	assert.False(t, r.Pending())
}

func TestReconnectGivesUp(t *testing.T) {
	conn := connector.NewClientConnector(connector.Config{}, nil)
	r := NewReconnector(conn, "127.0.0.1", freePort(t), ReconnectPolicy{
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		MaxElapsedTime:  time.Nanosecond,
	})
	defer r.Stop()

	time.Sleep(5 * time.Millisecond)
	r.Emit(event.ConnectionRefused())
	assert.False(t, r.Pending())
}

func TestClientWithoutReconnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	conns := acceptAll(ln)

	sink := event.NewRecorder[event.PeerEvent]()
	client := NewClient(Options{Host: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port}, sink)
	require.NoError(t, client.Connect(context.Background()).Err())
	require.NoError(t, client.Send("hi").Err())

	server := <-conns
	buf := make([]byte, 3)
	_ = server.SetReadDeadline(time.Now().Add(time.Second))
	_, err = io.ReadFull(server, buf)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(buf))

	client.Close()
	assert.Equal(t, 1, sink.Count(event.PeerOfType(event.PeerEventDisconnected)))
	assert.Equal(t, connector.Disconnected, client.State())
}
