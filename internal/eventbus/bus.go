package eventbus

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"mindset/internal/task"
	logx "mindset/pkg/logx"
)

type Kind string

const (
	KindLog         Kind = "log"
	KindError       Kind = "error"
	KindStatus      Kind = "status_update"
	KindTaskDeleted Kind = "task_deleted"
	KindLocalNotify Kind = "local_notify"
)

// Event is a tagged signal from the scheduler to whatever presents it.
//
// Contract:
//   - Emit MUST be non-blocking.
//   - Subscribers MUST use buffered channels.
//   - Events from one goroutine reach each subscriber in emission order.
//   - Slow subscribers drop events; drops are counted and logged.
type Event struct {
	Kind   Kind
	Time   time.Time
	TaskID task.ID
	Status task.Status
	Text   string
}

func (e Event) String() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("%s task=%d status=%s", e.Kind, e.TaskID, e.Status)
	case KindTaskDeleted:
		return fmt.Sprintf("%s task=%d", e.Kind, e.TaskID)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Text)
	}
}

func Log(id task.ID, text string) Event { return Event{Kind: KindLog, TaskID: id, Text: text} }

func Error(id task.ID, text string) Event { return Event{Kind: KindError, TaskID: id, Text: text} }

func Status(id task.ID, st task.Status) Event {
	return Event{Kind: KindStatus, TaskID: id, Status: st}
}

func Deleted(id task.ID) Event { return Event{Kind: KindTaskDeleted, TaskID: id} }

func LocalNotify(id task.ID, text string) Event {
	return Event{Kind: KindLocalNotify, TaskID: id, Text: text}
}

// Sink accepts events.
type Sink interface {
	Emit(e Event)
}

type Bus interface {
	Sink
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
	Dropped() uint64
}

// New returns an in-memory fanout bus. It owns no goroutines.
func New(log logx.Logger) Bus {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &memBus{
		subs:    map[uint64]chan Event{},
		log:     log,
		dropLog: &rate.Sometimes{Interval: 5 * time.Second},
	}
}

type memBus struct {
	// Held for reading during sends so Unsubscribe cannot close a channel
	// mid-send.
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64

	dropped atomic.Uint64
	log     logx.Logger
	dropLog *rate.Sometimes
}

func (b *memBus) Emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	dropped := 0
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			dropped++
		}
	}
	b.mu.RUnlock()

	if dropped > 0 {
		total := b.dropped.Add(uint64(dropped))
		b.dropLog.Do(func() {
			b.log.Warn("event dropped (subscriber slow)",
				logx.String("kind", string(e.Kind)),
				logx.Int64("task_id", int64(e.TaskID)),
				logx.Uint64("dropped_total", total),
			)
		})
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
	return ch, unsub
}

func (b *memBus) Dropped() uint64 { return b.dropped.Load() }

// Recorder is a Sink that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// For returns the recorded events of one task.
func (r *Recorder) For(id task.ID) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.TaskID == id {
			out = append(out, e)
		}
	}
	return out
}
