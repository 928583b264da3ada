package engine

import "sync"

// history keeps the most recent runs, oldest first.
type history struct {
	mu    sync.Mutex
	limit int
	items []HistoryItem
}

func (h *history) setLimit(n int) {
	h.mu.Lock()
	h.limit = n
	h.trim()
	h.mu.Unlock()
}

func (h *history) add(it HistoryItem) {
	h.mu.Lock()
	h.items = append(h.items, it)
	h.trim()
	h.mu.Unlock()
}

func (h *history) trim() {
	if over := len(h.items) - h.limit; h.limit > 0 && over > 0 {
		h.items = append(h.items[:0:0], h.items[over:]...)
	}
}

func (h *history) list() []HistoryItem {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HistoryItem(nil), h.items...)
}
