package event

import (
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/atomic"
)

// Sink 接收核心发出的事件。
//
// 实现必须是并发安全的：事件可能来自 accept 循环、任意会话的读循环或发送路径。
// Emit 不应长时间阻塞，否则会拖慢发出事件的网络协程。
type Sink[E any] interface {
	Emit(e E)
}

type (
	RelaySink = Sink[RelayEvent]
	PeerSink  = Sink[PeerEvent]
)

// SinkFunc 将普通函数适配为 Sink。
type SinkFunc[E any] func(e E)

func (f SinkFunc[E]) Emit(e E) { f(e) }

// Holder 持有一个可替换的 Sink 引用。
//
// 未设置（或被设置为 nil）时事件直接丢弃，不做排队。
type Holder[E any] struct {
	sink atomic.Pointer[holderEntry[E]]
}

type holderEntry[E any] struct {
	sink Sink[E]
}

var _ Sink[RelayEvent] = (*Holder[RelayEvent])(nil)

// NewHolder 创建一个 Holder，sink 可以为 nil。
func NewHolder[E any](sink Sink[E]) *Holder[E] {
	h := &Holder[E]{}
	h.Set(sink)
	return h
}

// Set 替换当前 Sink，传入 nil 表示暂时取消订阅。
func (h *Holder[E]) Set(sink Sink[E]) {
	if sink == nil {
		h.sink.Store(nil)
		return
	}
	h.sink.Store(&holderEntry[E]{sink: sink})
}

// Get 返回当前 Sink，未设置时返回 nil。
func (h *Holder[E]) Get() Sink[E] {
	entry := h.sink.Load()
	if entry == nil {
		return nil
	}
	return entry.sink
}

// Emit 将事件转发给当前 Sink；未设置时丢弃。
func (h *Holder[E]) Emit(e E) {
	if entry := h.sink.Load(); entry != nil {
		entry.sink.Emit(e)
	}
}

// Fanout 将事件依次转发给多个 Sink。
type Fanout[E any] []Sink[E]

func (f Fanout[E]) Emit(e E) {
	for _, s := range f {
		if s != nil {
			s.Emit(e)
		}
	}
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONSink 将每个事件编码为一行 JSON 写入 w。
type JSONSink[E any] struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONSink 创建一个写入 w 的 JSONSink。
func NewJSONSink[E any](w io.Writer) *JSONSink[E] {
	return &JSONSink[E]{w: w}
}

func (s *JSONSink[E]) Emit(e E) {
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.w.Write(b)
}
