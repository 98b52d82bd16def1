package relay

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/lk2023060901/relaychat-go/internal/network/acceptor"
	"github.com/lk2023060901/relaychat-go/internal/network/connector"
	"github.com/lk2023060901/relaychat-go/internal/network/event"
	"github.com/lk2023060901/relaychat-go/pkg/util/merr"
)

const waitTimeout = 2 * time.Second

type peer struct {
	conn *connector.ClientConnector
	sink *event.Recorder[event.PeerEvent]
}

func newPeer() *peer {
	sink := event.NewRecorder[event.PeerEvent]()
	return &peer{conn: connector.NewClientConnector(connector.Config{}, sink), sink: sink}
}

func received(text string) func(event.PeerEvent) bool {
	return func(e event.PeerEvent) bool {
		return e.Type == event.PeerEventMessageReceived && e.Text == text
	}
}

type ServiceSuite struct {
	suite.Suite

	svc   *Service
	sink  *event.Recorder[event.RelayEvent]
	port  int
	peers []*peer
}

func (s *ServiceSuite) SetupTest() {
	s.sink = event.NewRecorder[event.RelayEvent]()
	s.svc = NewService(Options{Host: "127.0.0.1"})
	s.svc.SetSink(s.sink)
	s.peers = nil
	s.Require().NoError(s.svc.Start(context.Background(), 0))
	s.port = s.svc.Listener().ListenAddr().(*net.TCPAddr).Port
}

func (s *ServiceSuite) TearDownTest() {
	for _, p := range s.peers {
		p.conn.Disconnect()
	}
	s.NoError(s.svc.Stop())
}

// connectPeers 并发连接 n 个客户端，并等待中继完成注册。
func (s *ServiceSuite) connectPeers(n int) []*peer {
	peers := make([]*peer, n)
	var g errgroup.Group
	for i := range peers {
		peers[i] = newPeer()
		p := peers[i]
		g.Go(func() error {
			return p.conn.Connect(context.Background(), "127.0.0.1", s.port).Err()
		})
	}
	s.Require().NoError(g.Wait())
	s.peers = append(s.peers, peers...)
	s.Eventually(func() bool { return s.svc.SessionCount() == len(s.peers) }, waitTimeout, 10*time.Millisecond)
	return peers
}

func (s *ServiceSuite) TestStartedEvent() {
	s.True(s.svc.Running())
	s.True(s.sink.Wait(func(e event.RelayEvent) bool {
		return e.Type == event.RelayStarted && e.Address == s.svc.Address()
	}, waitTimeout))

	err := s.svc.Start(context.Background(), 0)
	s.True(errors.Is(err, merr.ErrRelayAlreadyStarted))
}

func (s *ServiceSuite) TestBroadcastReachesAllOthers() {
	peers := s.connectPeers(5)
	sender, others := peers[0], peers[1:]

	s.Require().NoError(sender.conn.Send("ping"))
	for _, p := range others {
		s.True(p.sink.Wait(received("ping"), waitTimeout))
	}
	s.False(sender.sink.Wait(received("ping"), 100*time.Millisecond))

	s.True(s.sink.Wait(func(e event.RelayEvent) bool {
		return e.Type == event.RelayMessageReceived && e.Text == "ping" && e.Endpoint == sender.conn.LocalAddr()
	}, waitTimeout))
}

func (s *ServiceSuite) TestRegistryTracksOpenConnections() {
	peers := s.connectPeers(16)
	for _, p := range peers[:8] {
		p.conn.Disconnect()
	}
	s.Eventually(func() bool { return s.svc.SessionCount() == 8 }, waitTimeout, 10*time.Millisecond)
	s.True(s.sink.Wait(func(event.RelayEvent) bool {
		return s.sink.Count(event.RelayOfType(event.RelayPeerDisconnected)) == 8
	}, waitTimeout))
}

func (s *ServiceSuite) TestStopDisconnectsPeers() {
	peers := s.connectPeers(2)
	s.Require().NoError(s.svc.Stop())
	s.False(s.svc.Running())
	s.Empty(s.svc.Address())
	s.Zero(s.svc.SessionCount())
	s.Equal(2, s.sink.Count(event.RelayOfType(event.RelayPeerDisconnected)))

	for _, p := range peers {
		s.True(p.sink.Wait(event.PeerOfType(event.PeerEventDisconnected), waitTimeout))
		s.Equal(connector.Disconnected, p.conn.State())
	}
	s.NoError(s.svc.Stop())
	s.Require().NoError(s.svc.Start(context.Background(), 0))
	s.port = s.svc.Listener().ListenAddr().(*net.TCPAddr).Port
}

func (s *ServiceSuite) TestUnsetSinkDropsEvents() {
	s.svc.SetSink(nil)
	s.connectPeers(1)
	// Stop 会等待分发队列排空，之后再恢复接收者。
	s.Require().NoError(s.svc.Stop())
	s.svc.SetSink(s.sink)
	s.Zero(s.sink.Count(event.RelayOfType(event.RelayPeerConnected)))
	s.Zero(s.sink.Count(event.RelayOfType(event.RelayPeerDisconnected)))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func TestDefaultSingleton(t *testing.T) {
	a := Default(Options{})
	b := Default(Options{Host: "127.0.0.1"})
	assert.Same(t, a, b)
	assert.False(t, a.Running())
	assert.NoError(t, a.Stop())
}

// TestEndToEndDefaultPort 在默认端口上验证完整的收发与断开流程，端口被占用时跳过。
func TestEndToEndDefaultPort(t *testing.T) {
	relaySink := event.NewRecorder[event.RelayEvent]()
	svc := NewService(Options{Host: "127.0.0.1"})
	svc.SetSink(relaySink)
	if err := svc.Start(context.Background(), acceptor.DefaultPort); err != nil {
		if errors.Is(err, merr.ErrRelayBind) {
			t.Skipf("port %d unavailable: %v", acceptor.DefaultPort, err)
		}
		require.NoError(t, err)
	}
	defer svc.Stop()

	a, b := newPeer(), newPeer()
	defer a.conn.Disconnect()
	require.NoError(t, a.conn.Connect(context.Background(), "127.0.0.1", acceptor.DefaultPort).Err())
	require.NoError(t, b.conn.Connect(context.Background(), "127.0.0.1", acceptor.DefaultPort).Err())
	require.Eventually(t, func() bool { return svc.SessionCount() == 2 }, waitTimeout, 10*time.Millisecond)

	require.NoError(t, a.conn.Send("hello"))
	assert.True(t, b.sink.Wait(received("hello"), waitTimeout))
	assert.False(t, a.sink.Wait(received("hello"), 100*time.Millisecond))

	bEndpoint := b.conn.LocalAddr()
	aEndpoint := a.conn.LocalAddr()
	b.conn.Disconnect()
	assert.True(t, relaySink.Wait(func(e event.RelayEvent) bool {
		return e.Type == event.RelayPeerDisconnected && e.Endpoint == bEndpoint
	}, waitTimeout))
	require.Eventually(t, func() bool { return svc.SessionCount() == 1 }, waitTimeout, 10*time.Millisecond)

	remaining := svc.Listener().Sessions().SnapshotExcluding(nil)
	require.Len(t, remaining, 1)
	assert.Equal(t, aEndpoint, remaining[0].Endpoint())
}

func TestPeerConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	p := newPeer()
	err = p.conn.Connect(context.Background(), "127.0.0.1", port).Err()
	assert.True(t, errors.Is(err, merr.ErrConnectionRefused))
	assert.Equal(t, connector.Disconnected, p.conn.State())
	assert.True(t, p.sink.Wait(event.PeerOfType(event.PeerEventConnectionRefused), waitTimeout))
	assert.Zero(t, p.sink.Count(event.PeerOfType(event.PeerEventConnected)))
}
