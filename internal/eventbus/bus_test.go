package eventbus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "mindset/pkg/logx"
)

func TestEmitFanoutInOrder(t *testing.T) {
	t.Parallel()

	b := New(logx.Nop())
	a, unsubA := b.Subscribe(16)
	c, unsubC := b.Subscribe(16)
	defer unsubA()
	defer unsubC()

	b.Emit(Log(1, "first"))
	b.Emit(Status(1, "running"))
	b.Emit(Deleted(1))

	for _, ch := range []<-chan Event{a, c} {
		got := []Kind{(<-ch).Kind, (<-ch).Kind, (<-ch).Kind}
		assert.Equal(t, []Kind{KindLog, KindStatus, KindTaskDeleted}, got)
	}
}

func TestEmitNeverBlocks(t *testing.T) {
	t.Parallel()

	b := New(logx.Nop())
	ch, unsub := b.Subscribe(2)
	defer unsub()

	for i := 0; i < 10; i++ {
		b.Emit(LocalNotify(1, "x"))
	}
	assert.Len(t, ch, 2)
	assert.Equal(t, uint64(8), b.Dropped())
}

func TestUnsubscribeDuringEmit(t *testing.T) {
	t.Parallel()

	b := New(logx.Nop())
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		_, unsub := b.Subscribe(1)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Emit(Log(0, "tick"))
			}
		}()
		go func() {
			defer wg.Done()
			unsub()
			unsub()
		}()
	}
	wg.Wait()
}

func TestRecorderFor(t *testing.T) {
	t.Parallel()

	var r Recorder
	r.Emit(Log(1, "a"))
	r.Emit(Log(2, "b"))
	r.Emit(Error(1, "c"))

	got := r.For(1)
	require.Len(t, got, 2)
	assert.Equal(t, KindError, got[1].Kind)
	assert.False(t, got[0].Time.IsZero())
}
