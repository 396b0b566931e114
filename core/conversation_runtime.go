package orchestration

import (
	"context"
	"log/slog"
	"sync"
)

// mailbox is an unbounded FIFO that never blocks the poster. Session
// callbacks post into it from their read loops; the tick drains it.
type mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{notify: make(chan struct{}, 1)}
}

func (m *mailbox[T]) post(item T) {
	m.mu.Lock()
	m.items = append(m.items, item)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox[T]) drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.items
	m.items = nil
	return items
}

// ready is signalled at least once after every post.
func (m *mailbox[T]) ready() <-chan struct{} {
	return m.notify
}

type delivery struct {
	name string
	run  func()
}

// conversationRuntime delivers captions and speech to the external
// collaborators on its own goroutine, so a slow sink never stalls the tick.
type conversationRuntime struct {
	deliveries *mailbox[delivery]
	logger     *slog.Logger

	startOnce sync.Once
	closeOnce sync.Once
	closeCh   chan struct{}
	done      chan struct{}
}

func newConversationRuntime(l *slog.Logger) *conversationRuntime {
	return &conversationRuntime{
		deliveries: newMailbox[delivery](),
		logger:     l,
		closeCh:    make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (runtime *conversationRuntime) start(ctx context.Context) {
	runtime.startOnce.Do(func() {
		go func() {
			defer close(runtime.done)
			for {
				select {
				case <-runtime.closeCh:
					return
				case <-ctx.Done():
					return
				case <-runtime.deliveries.ready():
					runtime.deliverPending(ctx)
				}
			}
		}()
	})
}

func (runtime *conversationRuntime) deliverPending(ctx context.Context) {
	for _, d := range runtime.deliveries.drain() {
		run := panicSafeNamedWorker(d.name, func(context.Context) error {
			d.run()
			return nil
		})
		if err := run(ctx); err != nil {
			runtime.logger.Error("Delivery failed", "delivery", d.name, "error", err)
		}
	}
}

func (runtime *conversationRuntime) deliver(name string, run func()) {
	if run == nil {
		return
	}
	runtime.deliveries.post(delivery{name: name, run: run})
}

// close stops the worker. Deliveries still pending are discarded.
func (runtime *conversationRuntime) close() {
	runtime.closeOnce.Do(func() { close(runtime.closeCh) })
	runtime.startOnce.Do(func() { close(runtime.done) })
	<-runtime.done
}
