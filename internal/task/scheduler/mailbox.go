package scheduler

import (
	"sync"
	"time"

	"mindset/internal/task"
)

type cmdKind int

const (
	cmdArm cmdKind = iota
	cmdDisarm
	cmdReconcile
	cmdSettled
	// cmdLost reports a queued fire the executor discarded.
	cmdLost
	// cmdCleaned reports a cleanup attempt; gen carries the attempt.
	cmdCleaned
)

type command struct {
	kind cmdKind
	seq  uint64

	task  task.Task   // arm
	id    task.ID     // disarm, settled, lost, cleaned
	tasks []task.Task // reconcile

	// settled, lost, cleaned
	gen     uint64
	fireID  uint64
	firedAt time.Time
	// failed marks a one-time row that is still in the store.
	failed bool
}

// mailbox is an unbounded FIFO of loop commands. post never blocks.
type mailbox struct {
	mu   sync.Mutex
	cmds []command
	wake chan struct{}
}

func newMailbox() *mailbox { return &mailbox{wake: make(chan struct{}, 1)} }

func (m *mailbox) post(c command) {
	m.mu.Lock()
	m.cmds = append(m.cmds, c)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []command {
	m.mu.Lock()
	out := m.cmds
	m.cmds = nil
	m.mu.Unlock()
	return out
}
