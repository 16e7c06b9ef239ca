package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/staygo/internal/domain"
	"github.com/kirinyoku/staygo/internal/repository/memory"
	"github.com/kirinyoku/staygo/internal/service/lifecycle"
)

type completerFunc func(ctx context.Context) (int, error)

func (f completerFunc) CompleteEnded(ctx context.Context) (int, error) { return f(ctx) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleCompleteStaysPropagatesErrors(t *testing.T) {
	boom := errors.New("db down")
	h := HandleCompleteStays(completerFunc(func(context.Context) (int, error) { return 0, boom }), quietLogger())

	err := h(context.Background(), asynq.NewTask(TypeCompleteStays, nil))
	assert.ErrorIs(t, err, boom)
}

func TestHandleCompleteStaysRunsLifecycleSweep(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rt := &domain.RoomType{Name: "Standard", Capacity: 2, TotalUnits: 3, BasePricePerNight: 5000}
	require.NoError(t, store.RoomTypes().Create(ctx, rt))

	ended := &domain.Reservation{
		UserID:        1,
		RoomTypeID:    rt.ID,
		ReferenceCode: "ENDED001",
		CheckIn:       civil.Date{Year: 2026, Month: time.July, Day: 1},
		CheckOut:      civil.Date{Year: 2026, Month: time.July, Day: 3},
		GuestCount:    1,
		Status:        domain.StatusConfirmed,
	}
	require.NoError(t, store.Reservations().Create(ctx, ended))

	now := func() time.Time { return time.Date(2026, time.July, 10, 0, 0, 0, 0, time.UTC) }
	lc := lifecycle.New(store, nil, lifecycle.Config{Now: now})

	require.NoError(t, HandleCompleteStays(lc, quietLogger())(ctx, asynq.NewTask(TypeCompleteStays, nil)))

	got, err := store.Reservations().Get(ctx, ended.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
}

func TestNewCompleteStaysTask(t *testing.T) {
	task, opts := NewCompleteStaysTask()
	assert.Equal(t, TypeCompleteStays, task.Type())
	assert.Len(t, opts, 3)
}

func TestNewAppliesDefaults(t *testing.T) {
	w := New(Config{Redis: asynq.RedisClientOpt{Addr: "localhost:6379"}}, completerFunc(func(context.Context) (int, error) { return 0, nil }), quietLogger())
	assert.Equal(t, "@every 1h", w.cfg.CompleteSpec)
	assert.Equal(t, 2, w.cfg.Concurrency)
	assert.Equal(t, time.UTC, w.cfg.Location)
}
