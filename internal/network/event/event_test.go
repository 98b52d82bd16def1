package event

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type EventSuite struct {
	suite.Suite
}

func (s *EventSuite) TestHolderDropsWhenUnset() {
	h := NewHolder[RelayEvent](nil)
	s.Nil(h.Get())
	s.NotPanics(func() { h.Emit(Started("0.0.0.0:9999")) })

	rec := NewRecorder[RelayEvent]()
	h.Set(rec)
	h.Emit(PeerConnected("127.0.0.1:5000"))
	s.Len(rec.Events(), 1)

	h.Set(nil)
	h.Emit(PeerDisconnected("127.0.0.1:5000"))
	s.Len(rec.Events(), 1)
}

func (s *EventSuite) TestFanout() {
	a := NewRecorder[PeerEvent]()
	b := NewRecorder[PeerEvent]()
	f := Fanout[PeerEvent]{a, nil, b}
	f.Emit(Connected())
	s.Len(a.Events(), 1)
	s.Len(b.Events(), 1)
}

func (s *EventSuite) TestJSONSink() {
	var buf bytes.Buffer
	sink := NewJSONSink[RelayEvent](&buf)
	sink.Emit(RelayMessage("127.0.0.1:5000", "hi"))
	sink.Emit(ListenerError("accept failed"))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	s.Require().Len(lines, 2)
	s.Contains(lines[0], `"type":"message_received"`)
	s.Contains(lines[0], `"endpoint":"127.0.0.1:5000"`)
	s.Contains(lines[0], `"text":"hi"`)
	s.Contains(lines[1], `"message":"accept failed"`)
	s.NotContains(lines[1], `"endpoint"`)
}

func (s *EventSuite) TestDispatcherPreservesOrder() {
	rec := NewRecorder[PeerEvent]()
	d := NewDispatcher[PeerEvent]("test", rec, 0)
	for i := 0; i < 100; i++ {
		d.Emit(PeerMessage(string(rune('a' + i%26))))
	}
	d.Close()

	events := rec.Events()
	s.Require().Len(events, 100)
	for i, e := range events {
		s.Equal(string(rune('a'+i%26)), e.Text)
	}
	s.EqualValues(0, d.Dropped())
}

func (s *EventSuite) TestDispatcherDropsWhenFull() {
	release := make(chan struct{})
	var once sync.Once
	blocking := SinkFunc[PeerEvent](func(PeerEvent) {
		once.Do(func() { <-release })
	})
	d := NewDispatcher[PeerEvent]("test", blocking, 1)

	// 第一个事件被消费协程取走并阻塞，之后队列只能容纳一个。
	d.Emit(Connecting())
	time.Sleep(50 * time.Millisecond)
	for i := 0; i < 10; i++ {
		d.Emit(Connected())
	}
	s.Greater(d.Dropped(), int64(0))

	close(release)
	d.Close()
	d.Close()

	before := d.Dropped()
	d.Emit(Connected())
	s.Equal(before+1, d.Dropped())
}

func (s *EventSuite) TestDispatcherKeepsTerminalEvents() {
	release := make(chan struct{})
	var once sync.Once
	rec := NewRecorder[PeerEvent]()
	slow := SinkFunc[PeerEvent](func(e PeerEvent) {
		once.Do(func() { <-release })
		rec.Emit(e)
	})
	d := NewDispatcher[PeerEvent]("test", slow, 1)

	d.Emit(Connecting())
	time.Sleep(50 * time.Millisecond)
	d.Emit(PeerMessage("queued"))
	d.Emit(PeerMessage("dropped"))
	s.EqualValues(1, d.Dropped())

	emitted := make(chan struct{})
	go func() {
		d.Emit(Disconnected(ReasonLocal))
		close(emitted)
	}()
	select {
	case <-emitted:
		s.Fail("terminal event must wait for queue space")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-emitted:
	case <-time.After(time.Second):
		s.FailNow("terminal event not delivered")
	}
	d.Close()

	s.EqualValues(1, d.Dropped())
	events := rec.Events()
	s.Require().Len(events, 3)
	s.Equal(PeerEventDisconnected, events[2].Type)
}

func (s *EventSuite) TestTerminalClassification() {
	s.True(PeerDisconnected("127.0.0.1:5000").Terminal())
	s.True(ListenerError("boom").Terminal())
	s.False(PeerConnected("127.0.0.1:5000").Terminal())
	s.False(RelayMessage("127.0.0.1:5000", "hi").Terminal())

	s.Equal(RelayPeerConnected, PeerConnected("127.0.0.1:5000").Type)
	s.Equal(PeerEventConnected, Connected().Type)
	s.True(Disconnected(ReasonLocal).Terminal())
	s.True(ConnectionRefused().Terminal())
	s.True(SendFailed("broken pipe").Terminal())
	s.False(Connected().Terminal())
	s.False(PeerMessage("hi").Terminal())
}

func TestEventSuite(t *testing.T) {
	suite.Run(t, new(EventSuite))
}

func TestRecorderWait(t *testing.T) {
	rec := NewRecorder[RelayEvent]()
	go func() {
		time.Sleep(20 * time.Millisecond)
		rec.Emit(Started("10.0.0.1:9999"))
	}()
	require.True(t, rec.Wait(RelayOfType(RelayStarted), time.Second))
	assert.False(t, rec.Wait(RelayOfType(RelayListenerError), 50*time.Millisecond))
	assert.Equal(t, 1, rec.Count(RelayOfType(RelayStarted)))
}
