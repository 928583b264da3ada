package scheduler

import (
	"time"

	"mindset/internal/task"
)

type entryKind uint8

const (
	// entryFire dispatches a pending job.
	entryFire entryKind = iota
	// entryWatch recovers a fire the executor accepted but never ran.
	entryWatch
	// entryCleanup retries the row delete of a fired one-time task. Its gen
	// holds the attempt number.
	entryCleanup
)

type entry struct {
	at     time.Time
	id     task.ID
	gen    uint64
	kind   entryKind
	fireID uint64
}

// fireHeap implements heap.Interface ordered by at.
type fireHeap []entry

func (h fireHeap) Len() int { return len(h) }
func (h fireHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].id < h[j].id
	}
	return h[i].at.Before(h[j].at)
}
func (h fireHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *fireHeap) Push(x any)   { *h = append(*h, x.(entry)) }
func (h *fireHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
