package event

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/lk2023060901/relaychat-go/pkg/metrics"
	"github.com/lk2023060901/relaychat-go/pkg/util/conc"
)

// DefaultQueueSize 为 Dispatcher 默认队列长度。
const DefaultQueueSize = 1024

// Terminal 由断开、失败类事件实现。
type Terminal interface {
	Terminal() bool
}

// Dispatcher 将事件从网络协程转投到单独的消费协程。
//
// 队列满时普通事件被丢弃并计数；实现 Terminal 且返回 true 的事件
// 会等待队列腾出空间，保证断开与失败通知总能送达。
// 同一 Dispatcher 内事件按 Emit 的顺序交付给 target。
type Dispatcher[E any] struct {
	name   string
	target Sink[E]
	queue  chan E

	// mu 保护 queue 的发送与关闭之间的竞争。
	mu     sync.RWMutex
	closed bool

	dropped   atomic.Int64
	closeOnce sync.Once
	done      *conc.Future[struct{}]
}

var _ Sink[PeerEvent] = (*Dispatcher[PeerEvent])(nil)

// NewDispatcher 创建并启动一个 Dispatcher；size <= 0 时使用 DefaultQueueSize。
// name 用作丢弃计数指标的标签。
func NewDispatcher[E any](name string, target Sink[E], size int) *Dispatcher[E] {
	if size <= 0 {
		size = DefaultQueueSize
	}
	d := &Dispatcher[E]{
		name:   name,
		target: target,
		queue:  make(chan E, size),
	}
	d.done = conc.Go(func() (struct{}, error) {
		for e := range d.queue {
			d.target.Emit(e)
		}
		return struct{}{}, nil
	})
	return d
}

// Emit 将事件放入队列。已关闭时丢弃；队列已满时丢弃普通事件，终止类事件阻塞等待。
func (d *Dispatcher[E]) Emit(e E) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop()
		return
	}
	select {
	case d.queue <- e:
	default:
		if t, ok := any(e).(Terminal); ok && t.Terminal() {
			d.queue <- e
			return
		}
		d.drop()
	}
}

func (d *Dispatcher[E]) drop() {
	d.dropped.Inc()
	metrics.EventsDropped.WithLabelValues(d.name).Inc()
}

// Dropped 返回累计丢弃的事件数。
func (d *Dispatcher[E]) Dropped() int64 {
	return d.dropped.Load()
}

// Close 停止接收新事件，并等待已入队事件全部交付。
func (d *Dispatcher[E]) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	d.done.Await()
}
