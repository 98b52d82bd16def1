package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/lk2023060901/relaychat-go/internal/network/event"
)

// textSink 以人类可读的形式输出中继事件。
type textSink struct {
	mu  sync.Mutex
	out io.Writer
}

func newTextSink(out io.Writer) *textSink {
	return &textSink{out: out}
}

func (s *textSink) Emit(e event.RelayEvent) {
	var line string
	switch e.Type {
	case event.RelayStarted:
		line = fmt.Sprintf("Server started on %s", e.Address)
	case event.RelayPeerConnected:
		line = fmt.Sprintf("Client connected: %s", e.Endpoint)
	case event.RelayPeerDisconnected:
		line = fmt.Sprintf("Client disconnected: %s", e.Endpoint)
	case event.RelayMessageReceived:
		line = fmt.Sprintf("[%s] %s", e.Endpoint, e.Text)
	case event.RelayListenerError:
		line = fmt.Sprintf("Error: %s", e.Message)
	default:
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "%s %s\n", e.Time.Format("15:04:05"), line)
}
