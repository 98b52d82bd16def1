package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/lk2023060901/relaychat-go/internal/network/event"
)

// console 串行化终端输出，同时作为连接器事件的展示层。
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

func (c *console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *console) Emit(e event.PeerEvent) {
	switch e.Type {
	case event.PeerEventConnecting:
		c.Printf("Connecting...")
	case event.PeerEventConnected:
		c.Printf("Connected")
	case event.PeerEventDisconnected:
		c.Printf("Disconnected: %s", e.Reason)
	case event.PeerEventMessageReceived:
		c.Printf("Received: %s", e.Text)
	case event.PeerEventSendFailed:
		c.Printf("Failed to send message: %s", e.Message)
	case event.PeerEventConnectionRefused:
		c.Printf("Connection refused")
	case event.PeerEventIOError:
		c.Printf("Connection error: %s", e.Message)
	}
}
