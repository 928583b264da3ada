package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindset/internal/task"
	"mindset/internal/task/schedule"
	logx "mindset/pkg/logx"
)

func openDriver(t *testing.T, driver string) Store {
	t.Helper()
	st, err := Open(Config{Driver: driver, Path: filepath.Join(t.TempDir(), "tasks.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func sampleTasks() []task.Task {
	return []task.Task{
		{Description: "stretch", Spec: schedule.Once{At: time.Date(2030, 1, 2, 9, 30, 0, 0, time.Local)}},
		{Spec: schedule.Recurring{Rule: schedule.RuleEvery5Minutes, Fields: schedule.Fields{Minute: schedule.Step(5)}}},
		{Description: "pay rent", Spec: schedule.Recurring{Rule: schedule.RuleMonthly, Fields: schedule.Fields{
			DayOfMonth: schedule.Literal(1), Hour: schedule.Literal(9), Minute: schedule.Literal(0),
		}}},
	}
}

func TestStoreContract(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"sqlite", "file", "memory"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			st := openDriver(t, driver)

			var ids []task.ID
			for _, tk := range sampleTasks() {
				tk.Status = task.StatusRunning // ignored: rows start stopped
				id, err := st.Create(ctx, tk)
				require.NoError(t, err)
				ids = append(ids, id)
			}
			require.Len(t, ids, 3)
			assert.Less(t, ids[0], ids[1])
			assert.Less(t, ids[1], ids[2])

			got, ok, err := st.Get(ctx, ids[0])
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "stretch", got.Description)
			assert.Equal(t, task.StatusStopped, got.Status)
			once, isOnce := got.Spec.(schedule.Once)
			require.True(t, isOnce)
			assert.True(t, once.At.Equal(time.Date(2030, 1, 2, 9, 30, 0, 0, time.Local)))

			got, ok, err = st.Get(ctx, ids[2])
			require.NoError(t, err)
			require.True(t, ok)
			rec, isRec := got.Spec.(schedule.Recurring)
			require.True(t, isRec)
			assert.Equal(t, schedule.RuleMonthly, rec.Rule)
			assert.Equal(t, schedule.Literal(1), rec.Fields.DayOfMonth)
			assert.True(t, rec.Fields.Month.IsEvery())

			require.NoError(t, st.SetStatus(ctx, ids[1], task.StatusRunning))
			running, err := st.ListByStatus(ctx, task.StatusRunning)
			require.NoError(t, err)
			require.Len(t, running, 1)
			assert.Equal(t, ids[1], running[0].ID)
			assert.Empty(t, running[0].Description)

			require.NoError(t, st.Delete(ctx, ids[0]))
			_, ok, err = st.Get(ctx, ids[0])
			require.NoError(t, err)
			assert.False(t, ok)

			all, err := st.List(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, ids[1], all[0].ID)

			err = st.Delete(ctx, ids[0])
			assert.True(t, IsNotFound(err), "err=%v", err)
			var se *Error
			require.True(t, errors.As(err, &se))
			assert.Equal(t, "delete", se.Op)
			assert.Equal(t, ids[0], se.ID)

			assert.True(t, IsNotFound(st.SetStatus(ctx, 999, task.StatusRunning)))
		})
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	t.Parallel()

	st := openDriver(t, "memory")
	_, err := st.Create(context.Background(), task.Task{Description: "no schedule"})
	assert.ErrorIs(t, err, schedule.ErrInvalid)

	all, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReopenKeepsRows(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"sqlite", "file"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			cfg := Config{Driver: driver, Path: filepath.Join(t.TempDir(), "tasks.db")}

			st, err := Open(cfg, logx.Nop())
			require.NoError(t, err)
			var last task.ID
			for _, tk := range sampleTasks() {
				last, err = st.Create(ctx, tk)
				require.NoError(t, err)
			}
			require.NoError(t, st.SetStatus(ctx, last, task.StatusRunning))
			require.NoError(t, st.Delete(ctx, 1))
			require.NoError(t, st.Close())

			st, err = Open(cfg, logx.Nop())
			require.NoError(t, err)
			defer st.Close()

			all, err := st.List(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, task.StatusRunning, all[1].Status)

			// Ids are never reused after a delete.
			id, err := st.Create(ctx, sampleTasks()[0])
			require.NoError(t, err)
			assert.Greater(t, id, last)
		})
	}
}

func TestOpenUsesDatabasePathEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "from-env.db")
	t.Setenv("DATABASE_PATH", path)

	st, err := Open(Config{}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	_, err = st.Create(context.Background(), sampleTasks()[1])
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Open(Config{Driver: "postgres", Path: "x"}, logx.Nop())
	assert.Error(t, err)
}
