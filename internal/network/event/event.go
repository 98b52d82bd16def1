// Package event 定义中继侧与客户端侧的通知接口。
//
// 核心只负责“发出事件”，事件如何被投递到展示层所需的执行上下文，
// 由 Dispatcher 或调用方自己的 Sink 决定。
package event

import "time"

// RelayEventType 为中继侧事件类型。
type RelayEventType string

const (
	RelayStarted          RelayEventType = "started"
	RelayPeerConnected    RelayEventType = "peer_connected"
	RelayPeerDisconnected RelayEventType = "peer_disconnected"
	RelayMessageReceived  RelayEventType = "message_received"
	RelayListenerError    RelayEventType = "listener_error"
)

// RelayEvent 描述中继侧的一次状态变化。
//
// 各类型使用的字段：
//   - started           : Address
//   - peer_connected    : Endpoint
//   - peer_disconnected : Endpoint
//   - message_received  : Endpoint, Text
//   - listener_error    : Message
type RelayEvent struct {
	Type     RelayEventType `json:"type"`
	Address  string         `json:"address,omitempty"`
	Endpoint string         `json:"endpoint,omitempty"`
	Text     string         `json:"text,omitempty"`
	Message  string         `json:"message,omitempty"`
	Time     time.Time      `json:"time"`
}

// Terminal 报告事件是否为断开或失败通知，Dispatcher 不会丢弃此类事件。
func (e RelayEvent) Terminal() bool {
	return e.Type == RelayPeerDisconnected || e.Type == RelayListenerError
}

func Started(address string) RelayEvent {
	return RelayEvent{Type: RelayStarted, Address: address, Time: time.Now()}
}

func PeerConnected(endpoint string) RelayEvent {
	return RelayEvent{Type: RelayPeerConnected, Endpoint: endpoint, Time: time.Now()}
}

func PeerDisconnected(endpoint string) RelayEvent {
	return RelayEvent{Type: RelayPeerDisconnected, Endpoint: endpoint, Time: time.Now()}
}

func RelayMessage(endpoint, text string) RelayEvent {
	return RelayEvent{Type: RelayMessageReceived, Endpoint: endpoint, Text: text, Time: time.Now()}
}

func ListenerError(message string) RelayEvent {
	return RelayEvent{Type: RelayListenerError, Message: message, Time: time.Now()}
}

// PeerEventType 为客户端侧事件类型。
type PeerEventType string

const (
	PeerEventConnecting        PeerEventType = "connecting"
	PeerEventConnected         PeerEventType = "connected"
	PeerEventDisconnected      PeerEventType = "disconnected"
	PeerEventMessageReceived   PeerEventType = "message_received"
	PeerEventSendFailed        PeerEventType = "send_failed"
	PeerEventConnectionRefused PeerEventType = "connection_refused"
	PeerEventIOError           PeerEventType = "io_error"
)

// ReasonLocal 为本端主动断开时 Disconnected 事件携带的原因。
const ReasonLocal = "local"

// PeerEvent 描述客户端连接器的一次状态变化或收到的消息。
//
// 各类型使用的字段：
//   - disconnected      : Reason
//   - message_received  : Text
//   - send_failed       : Message
//   - io_error          : Message
type PeerEvent struct {
	Type    PeerEventType `json:"type"`
	Reason  string        `json:"reason,omitempty"`
	Text    string        `json:"text,omitempty"`
	Message string        `json:"message,omitempty"`
	Time    time.Time     `json:"time"`
}

// Terminal 报告事件是否为断开或失败通知。
func (e PeerEvent) Terminal() bool {
	switch e.Type {
	case PeerEventDisconnected, PeerEventConnectionRefused, PeerEventIOError, PeerEventSendFailed:
		return true
	}
	return false
}

func Connecting() PeerEvent {
	return PeerEvent{Type: PeerEventConnecting, Time: time.Now()}
}

func Connected() PeerEvent {
	return PeerEvent{Type: PeerEventConnected, Time: time.Now()}
}

func Disconnected(reason string) PeerEvent {
	return PeerEvent{Type: PeerEventDisconnected, Reason: reason, Time: time.Now()}
}

func PeerMessage(text string) PeerEvent {
	return PeerEvent{Type: PeerEventMessageReceived, Text: text, Time: time.Now()}
}

func SendFailed(message string) PeerEvent {
	return PeerEvent{Type: PeerEventSendFailed, Message: message, Time: time.Now()}
}

func ConnectionRefused() PeerEvent {
	return PeerEvent{Type: PeerEventConnectionRefused, Time: time.Now()}
}

func IOError(message string) PeerEvent {
	return PeerEvent{Type: PeerEventIOError, Message: message, Time: time.Now()}
}
