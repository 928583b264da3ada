package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"mindset/internal/task"
	logx "mindset/pkg/logx"
)

// fileStore keeps the task table in two files:
//   - <prefix>.tasks.snapshot.json (periodic snapshot)
//   - <prefix>.tasks.journal.jsonl (append-only journal)
//
// The journal is compacted into the snapshot every compactEvery writes and
// on Close.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journal      *os.File

	nextID int64
	rows   map[int64]record
	writes int
}

const compactEvery = 200

type fileSnapshot struct {
	NextID int64    `json:"next_id"`
	Tasks  []record `json:"tasks"`
}

type journalEntry struct {
	Op     string  `json:"op"` // put | status | delete
	ID     int64   `json:"id"`
	Status string  `json:"status,omitempty"`
	Record *record `json:"record,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:          log,
		snapshotPath: prefix + ".tasks.snapshot.json",
		rows:         map[int64]record{},
	}
	journalPath := prefix + ".tasks.journal.jsonl"

	if err := s.loadSnapshot(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err := s.replayJournal(journalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	s.journal = jf
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	err := s.compactLocked()
	if cerr := s.journal.Close(); err == nil {
		err = cerr
	}
	s.journal = nil
	return err
}

func (s *fileStore) Create(ctx context.Context, t task.Task) (task.ID, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	t.Status = task.StatusStopped

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return 0, wrap("create", 0, ErrClosed)
	}
	s.nextID++
	t.ID = task.ID(s.nextID)
	r, err := toRecord(t)
	if err != nil {
		s.nextID--
		return 0, wrap("create", 0, err)
	}
	if err := s.appendLocked(journalEntry{Op: "put", ID: r.ID, Record: &r}); err != nil {
		s.nextID--
		return 0, wrap("create", 0, err)
	}
	s.rows[r.ID] = r
	return t.ID, nil
}

func (s *fileStore) Get(ctx context.Context, id task.ID) (task.Task, bool, error) {
	s.mu.Lock()
	r, ok := s.rows[int64(id)]
	s.mu.Unlock()
	if !ok {
		return task.Task{}, false, nil
	}
	t, err := r.toTask()
	if err != nil {
		return task.Task{}, false, wrap("get", id, err)
	}
	return t, true, nil
}

func (s *fileStore) List(ctx context.Context) ([]task.Task, error) {
	return s.filter(func(record) bool { return true }), nil
}

func (s *fileStore) ListByStatus(ctx context.Context, status task.Status) ([]task.Task, error) {
	return s.filter(func(r record) bool { return r.Status == string(status) }), nil
}

func (s *fileStore) filter(keep func(record) bool) []task.Task {
	s.mu.Lock()
	recs := make([]record, 0, len(s.rows))
	for _, r := range s.rows {
		if keep(r) {
			recs = append(recs, r)
		}
	}
	s.mu.Unlock()

	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	out := make([]task.Task, 0, len(recs))
	for _, r := range recs {
		t, err := r.toTask()
		if err != nil {
			s.log.Warn("skipping unreadable task row", logx.Int64("id", r.ID), logx.Err(err))
			continue
		}
		out = append(out, t)
	}
	return out
}

func (s *fileStore) SetStatus(ctx context.Context, id task.ID, status task.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return wrap("set_status", id, ErrClosed)
	}
	r, ok := s.rows[int64(id)]
	if !ok {
		return wrap("set_status", id, ErrNotFound)
	}
	if err := s.appendLocked(journalEntry{Op: "status", ID: r.ID, Status: string(status)}); err != nil {
		return wrap("set_status", id, err)
	}
	r.Status = string(status)
	s.rows[r.ID] = r
	return nil
}

func (s *fileStore) Delete(ctx context.Context, id task.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return wrap("delete", id, ErrClosed)
	}
	if _, ok := s.rows[int64(id)]; !ok {
		return wrap("delete", id, ErrNotFound)
	}
	if err := s.appendLocked(journalEntry{Op: "delete", ID: int64(id)}); err != nil {
		return wrap("delete", id, err)
	}
	delete(s.rows, int64(id))
	return nil
}

func (s *fileStore) appendLocked(e journalEntry) error {
	if err := json.NewEncoder(s.journal).Encode(e); err != nil {
		return err
	}
	s.writes++
	if s.writes%compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("task journal compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) compactLocked() error {
	snap := fileSnapshot{NextID: s.nextID, Tasks: make([]record, 0, len(s.rows))}
	for _, r := range s.rows {
		snap.Tasks = append(snap.Tasks, r)
	}
	sort.Slice(snap.Tasks, func(i, j int) bool { return snap.Tasks[i].ID < snap.Tasks[j].ID })

	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(snap); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	_, err = s.journal.Seek(0, 2)
	return err
}

func (s *fileStore) loadSnapshot() error {
	f, err := os.Open(s.snapshotPath)
	if err != nil {
		return err
	}
	defer f.Close()
	var snap fileSnapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return err
	}
	s.nextID = snap.NextID
	for _, r := range snap.Tasks {
		s.rows[r.ID] = r
	}
	return nil
}

func (s *fileStore) replayJournal(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e journalEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			// torn tail write
			continue
		}
		switch e.Op {
		case "put":
			if e.Record != nil {
				s.rows[e.ID] = *e.Record
			}
		case "status":
			if r, ok := s.rows[e.ID]; ok {
				r.Status = e.Status
				s.rows[e.ID] = r
			}
		case "delete":
			delete(s.rows, e.ID)
		}
		if e.ID > s.nextID {
			s.nextID = e.ID
		}
	}
	return sc.Err()
}
