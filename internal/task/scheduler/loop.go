package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"mindset/internal/eventbus"
	"mindset/internal/task"
	"mindset/internal/task/engine"
	logx "mindset/pkg/logx"
)

type job struct {
	task     task.Task
	gen      uint64
	state    JobState
	next     time.Time
	armedAt  time.Time
	fireID   uint64
	fires    uint64
	lastFire time.Time
	rejects  int
	// claim is taken by whichever of the fire task or lost-fire recovery
	// gets to the current fire first.
	claim *atomic.Bool
}

func (s *Service) loop(ctx context.Context) error {
	var timer Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		for _, c := range s.box.drain() {
			s.apply(c, s.clock.Now())
		}
		if len(s.touched) > 0 && s.reconPending.Load() <= 0 {
			clear(s.touched)
		}
		now := s.clock.Now()
		s.dispatchDue(now)
		s.publish()

		if timer != nil {
			timer.Stop()
			timer = nil
		}
		var timerC <-chan time.Time
		if at, ok := s.nextWake(); ok {
			timer = s.clock.TimerAt(at)
			timerC = timer.C()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.box.wake:
		case <-timerC:
		}
	}
}

func (s *Service) apply(c command, now time.Time) {
	switch c.kind {
	case cmdArm:
		s.touched[c.task.ID] = c.seq
		delete(s.finished, c.task.ID)
		s.applyArm(c.task, now)
	case cmdDisarm:
		s.touched[c.id] = c.seq
		s.applyDisarm(c.id)
	case cmdReconcile:
		if s.reconPending.Add(-1) < 0 {
			s.reconPending.Store(0)
		}
		s.applyReconcile(c, now)
	case cmdSettled:
		s.applySettled(c, now)
	case cmdLost:
		if j := s.jobs[c.id]; j != nil && j.gen == c.gen && j.state == JobFiring && j.fireID == c.fireID {
			s.recoverLost(j, now)
		}
	case cmdCleaned:
		s.applyCleaned(c, now)
	}
}

func (s *Service) applyArm(t task.Task, now time.Time) {
	j := &job{task: t, armedAt: now, gen: 1}
	if prev := s.jobs[t.ID]; prev != nil {
		j.gen = prev.gen + 1
		j.fires = prev.fires
		j.lastFire = prev.lastFire
	}
	s.jobs[t.ID] = j

	next, ok := t.Spec.Next(now)
	if ok {
		s.schedule(j, next)
	} else {
		j.state = JobDormant
		s.emit(eventbus.Error(t.ID, fmt.Sprintf("Task %d scheduled but will never fire", t.ID)))
	}
	s.log.Debug("task armed", logx.Int64("task", int64(t.ID)), logx.String("spec", t.Spec.String()), logx.Time("next", next), logx.Uint64("gen", j.gen))
	s.emit(eventbus.Log(t.ID, fmt.Sprintf("✅ Task %d scheduled.", t.ID)))
	s.emit(eventbus.Status(t.ID, task.StatusRunning))
}

func (s *Service) applyDisarm(id task.ID) {
	if _, ok := s.jobs[id]; !ok {
		return
	}
	delete(s.jobs, id)
	s.log.Debug("task disarmed", logx.Int64("task", int64(id)))
	s.emit(eventbus.Log(id, fmt.Sprintf("⏹️ Task %d unscheduled.", id)))
	s.emit(eventbus.Status(id, task.StatusStopped))
}

func (s *Service) applyReconcile(c command, now time.Time) {
	// A newer reconcile already ran.
	if c.seq < s.lastRecon {
		return
	}
	s.lastRecon = c.seq

	want := make(map[task.ID]task.Task, len(c.tasks))
	for _, t := range c.tasks {
		want[t.ID] = t
	}
	fresh := func(id task.ID) bool { return s.touched[id] > c.seq }

	armed, disarmed := 0, 0
	for _, id := range sortedIDs(want) {
		t := want[id]
		if _, done := s.finished[id]; done || fresh(id) {
			continue
		}
		j := s.jobs[id]
		switch {
		case j == nil:
			s.applyArm(t, now)
			armed++
		case j.task.Spec.String() != t.Spec.String():
			if j.state != JobFiring {
				s.applyArm(t, now)
				armed++
			}
		default:
			j.task.Description = t.Description
		}
	}
	for _, id := range sortedJobIDs(s.jobs) {
		if _, ok := want[id]; ok || fresh(id) || s.jobs[id].state == JobFiring {
			continue
		}
		s.applyDisarm(id)
		disarmed++
	}

	for id, seq := range s.touched {
		if seq <= c.seq {
			delete(s.touched, id)
		}
	}
	if armed > 0 || disarmed > 0 {
		s.log.Info("reconciled", logx.Int("armed", armed), logx.Int("disarmed", disarmed))
	}
}

func (s *Service) applySettled(c command, now time.Time) {
	j := s.jobs[c.id]
	if c.failed {
		// The row outlived a one-time fire. Unless it was re-armed since,
		// it must not fire again while the delete is retried.
		if j != nil && j.gen != c.gen {
			return
		}
		delete(s.jobs, c.id)
		s.retryCleanup(c.id, 0, now)
		return
	}
	if j == nil {
		return
	}
	if j.task.Kind() == task.KindOneTime {
		delete(s.jobs, c.id)
		// A reconcile listed before the row delete must not re-arm it.
		s.touched[c.id] = s.seq.Add(1)
		return
	}
	if j.gen != c.gen || j.fireID != c.fireID || j.state != JobFiring {
		return
	}

	from := now
	if c.firedAt.After(from) {
		from = c.firedAt
	}
	next, ok := j.task.Spec.Next(from)
	if !ok {
		j.state = JobDormant
		j.next = time.Time{}
		s.emit(eventbus.Error(c.id, fmt.Sprintf("Task %d scheduled but will never fire", c.id)))
		return
	}
	s.schedule(j, next)
}

// retryCleanup queues another delete of a fired one-time row.
func (s *Service) retryCleanup(id task.ID, attempt uint64, now time.Time) {
	attempt++
	s.finished[id] = attempt
	at := now.Add(backoff(s.config().RetryDelay, int(attempt)))
	heap.Push(&s.queue, entry{at: at, id: id, gen: attempt, kind: entryCleanup})
}

func (s *Service) applyCleaned(c command, now time.Time) {
	if attempt, ok := s.finished[c.id]; !ok || attempt != c.gen {
		return
	}
	if c.failed {
		s.retryCleanup(c.id, c.gen, now)
		return
	}
	delete(s.finished, c.id)
	s.touched[c.id] = s.seq.Add(1)
}

func (s *Service) schedule(j *job, at time.Time) {
	j.state = JobPending
	j.next = at
	heap.Push(&s.queue, entry{at: at, id: j.task.ID, gen: j.gen})
}

// live reports whether a heap entry still refers to the current job state.
func (s *Service) live(e entry) (*job, bool) {
	if e.kind == entryCleanup {
		attempt, ok := s.finished[e.id]
		return nil, ok && attempt == e.gen
	}
	j := s.jobs[e.id]
	if j == nil || j.gen != e.gen {
		return nil, false
	}
	if e.kind == entryWatch {
		return j, j.state == JobFiring && j.fireID == e.fireID
	}
	return j, j.state == JobPending && j.next.Equal(e.at)
}

func (s *Service) nextWake() (time.Time, bool) {
	for s.queue.Len() > 0 {
		if _, ok := s.live(s.queue[0]); ok {
			return s.queue[0].at, true
		}
		heap.Pop(&s.queue)
	}
	return time.Time{}, false
}

func (s *Service) dispatchDue(now time.Time) {
	for s.queue.Len() > 0 && !s.queue[0].at.After(now) {
		e := heap.Pop(&s.queue).(entry)
		j, ok := s.live(e)
		if !ok {
			continue
		}
		switch e.kind {
		case entryWatch:
			s.recoverLost(j, now)
		case entryCleanup:
			s.dispatchCleanup(e.id, e.gen, now)
		default:
			s.dispatch(j, e.at, now)
		}
	}
}

func (s *Service) dispatch(j *job, due, now time.Time) {
	cfg := s.config()
	s.fireSeq++
	j.state = JobFiring
	j.fireID = s.fireSeq
	j.fires++
	j.lastFire = now

	t, gen, fireID := j.task, j.gen, j.fireID
	claim := new(atomic.Bool)
	j.claim = claim
	err := s.exec.Enqueue(engine.Task{
		Name:    "reminder." + strconv.FormatInt(int64(t.ID), 10),
		Timeout: cfg.FireTimeout,
		Run: func(ctx context.Context) error {
			if !claim.CompareAndSwap(false, true) {
				return nil
			}
			return s.fire(ctx, t, gen, fireID, due)
		},
		Dropped: func() {
			s.box.post(command{kind: cmdLost, id: t.ID, gen: gen, fireID: fireID})
		},
	})
	if err != nil {
		j.fires--
		j.rejects++
		delay := backoff(cfg.RetryDelay, j.rejects)
		log := s.log.With(logx.Int64("task", int64(t.ID)), logx.Int("attempt", j.rejects), logx.Duration("retry_in", delay))
		if j.rejects == 1 {
			log.Warn("fire rejected by executor", logx.Err(err))
			s.emit(eventbus.Error(t.ID, fmt.Sprintf("could not start task %d: %v; retrying in %s", t.ID, err, delay)))
		} else {
			log.Debug("fire rejected by executor", logx.Err(err))
		}
		s.schedule(j, now.Add(delay))
		return
	}
	if j.rejects > 0 {
		s.log.Info("fire accepted after retries", logx.Int64("task", int64(t.ID)), logx.Int("attempts", j.rejects+1))
		j.rejects = 0
	}
	// Backstop for a fire that was accepted but neither ran nor dropped.
	heap.Push(&s.queue, entry{at: now.Add(4 * cfg.FireTimeout), id: t.ID, gen: gen, kind: entryWatch, fireID: fireID})
}

// dispatchCleanup retries the row delete of a one-time task that already
// fired. Nothing is delivered again.
func (s *Service) dispatchCleanup(id task.ID, attempt uint64, now time.Time) {
	done := func(failed bool) {
		s.box.post(command{kind: cmdCleaned, id: id, gen: attempt, failed: failed})
	}
	err := s.exec.Enqueue(engine.Task{
		Name:    "reminder." + strconv.FormatInt(int64(id), 10) + ".cleanup",
		Timeout: deleteTimeout,
		Run: func(context.Context) error {
			done(!s.finishOnce(id))
			return nil
		},
		Dropped: func() { done(true) },
	})
	if err != nil {
		s.log.Debug("cleanup rejected by executor", logx.Int64("task", int64(id)), logx.Err(err))
		s.retryCleanup(id, attempt, now)
	}
}

// recoverLost reschedules a fire that will never run. If the fire task has
// already started, its settled command is still coming and nothing happens.
func (s *Service) recoverLost(j *job, now time.Time) {
	id := j.task.ID
	if j.claim != nil && !j.claim.CompareAndSwap(false, true) {
		s.log.Debug("fire still running past its watch", logx.Int64("task", int64(id)))
		return
	}
	s.log.Warn("fire never ran; rescheduling", logx.Int64("task", int64(id)))
	s.emit(eventbus.Error(id, fmt.Sprintf("Task %d fire was lost; rescheduling", id)))
	cfg := s.config()
	s.schedule(j, now.Add(cfg.RetryDelay))
}

func (s *Service) publish() {
	out := make([]JobInfo, 0, len(s.jobs))
	for _, id := range sortedJobIDs(s.jobs) {
		j := s.jobs[id]
		out = append(out, JobInfo{
			TaskID:      id,
			Kind:        j.task.Kind(),
			Description: j.task.Description,
			Spec:        j.task.Spec.String(),
			State:       j.state,
			Next:        j.next,
			ArmedAt:     j.armedAt,
			Fires:       j.fires,
			LastFire:    j.lastFire,
		})
	}
	s.touchedLen.Store(int64(len(s.touched)))
	s.snap.Store(&out)
}

// backoff doubles base for each attempt after the first, up to maxRetryDelay.
func backoff(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt && d < maxRetryDelay; i++ {
		d *= 2
	}
	return min(d, maxRetryDelay)
}

func sortedIDs(m map[task.ID]task.Task) []task.ID {
	ids := make([]task.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, k int) bool { return ids[i] < ids[k] })
	return ids
}

func sortedJobIDs(m map[task.ID]*job) []task.ID {
	ids := make([]task.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, k int) bool { return ids[i] < ids[k] })
	return ids
}
