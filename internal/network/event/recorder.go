package event

import (
	"sync"
	"time"
)

// Recorder 记录收到的全部事件，主要用于测试与诊断。
type Recorder[E any] struct {
	mu     sync.Mutex
	events []E
	notify chan struct{}
}

// NewRecorder 创建一个空的 Recorder。
func NewRecorder[E any]() *Recorder[E] {
	return &Recorder[E]{notify: make(chan struct{}, 1)}
}

func (r *Recorder[E]) Emit(e E) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Events 返回当前已记录事件的副本。
func (r *Recorder[E]) Events() []E {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]E, len(r.events))
	copy(out, r.events)
	return out
}

// Wait 等待直到出现满足 match 的事件或超时，返回是否等到。
func (r *Recorder[E]) Wait(match func(E) bool, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		for _, e := range r.Events() {
			if match(e) {
				return true
			}
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			return false
		}
	}
}

// Count 返回满足 match 的事件数量。
func (r *Recorder[E]) Count(match func(E) bool) int {
	n := 0
	for _, e := range r.Events() {
		if match(e) {
			n++
		}
	}
	return n
}

// RelayOfType 返回匹配指定类型中继事件的谓词。
func RelayOfType(t RelayEventType) func(RelayEvent) bool {
	return func(e RelayEvent) bool { return e.Type == t }
}

// PeerOfType 返回匹配指定类型客户端事件的谓词。
func PeerOfType(t PeerEventType) func(PeerEvent) bool {
	return func(e PeerEvent) bool { return e.Type == t }
}
