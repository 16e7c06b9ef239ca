package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/staygo/internal/domain"
	"github.com/kirinyoku/staygo/internal/repository"
	"github.com/kirinyoku/staygo/internal/repository/memory"
	"github.com/kirinyoku/staygo/internal/service/broadcast"
)

type limiterMock struct{ mock.Mock }

func (m *limiterMock) Allow(ctx context.Context, key string) (bool, int64, time.Duration, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Get(1).(int64), args.Get(2).(time.Duration), args.Error(3)
}

func d(t *testing.T, s string) civil.Date {
	t.Helper()
	v, err := domain.ParseDate(s)
	require.NoError(t, err)
	return v
}

func setup(t *testing.T, units int, cfg Config) (*Service, *memory.Store, domain.RoomType) {
	t.Helper()
	store := memory.New()
	rt := domain.RoomType{Name: "Standard", Capacity: 2, TotalUnits: units, BasePricePerNight: 5000}
	require.NoError(t, store.RoomTypes().Create(context.Background(), &rt))
	return New(store, nil, nil, cfg), store, rt
}

func request(t *testing.T, roomID int64, in, out string) Request {
	return Request{UserID: 1, RoomTypeID: roomID, CheckIn: d(t, in), CheckOut: d(t, out), Guests: 2}
}

func TestBookCreatesPendingReservation(t *testing.T) {
	svc, store, rt := setup(t, 10, Config{})
	ctx := context.Background()

	req := request(t, rt.ID, "2026-08-01", "2026-08-04")
	req.Notes = "  late arrival "
	res, err := svc.Book(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, res.Status)
	assert.EqualValues(t, 15000, res.TotalAmount)
	assert.Equal(t, "late arrival", res.Notes)
	assert.Regexp(t, `^[0-9A-F]{8}$`, res.ReferenceCode)

	got, err := store.Reservations().GetByReference(ctx, res.ReferenceCode)
	require.NoError(t, err)
	assert.Equal(t, res.ID, got.ID)
}

func TestBookPricesCheckInNightForEveryNight(t *testing.T) {
	svc, store, rt := setup(t, 2, Config{})
	ctx := context.Background()

	// one of two units taken on the check-in night only
	require.NoError(t, store.Reservations().Create(ctx, &domain.Reservation{
		UserID: 9, RoomTypeID: rt.ID, ReferenceCode: "TAKEN001",
		CheckIn: d(t, "2026-08-01"), CheckOut: d(t, "2026-08-02"),
		GuestCount: 1, Status: domain.StatusConfirmed,
	}))

	res, err := svc.Book(ctx, request(t, rt.ID, "2026-08-01", "2026-08-04"))
	require.NoError(t, err)
	assert.EqualValues(t, 5750*3, res.TotalAmount)
}

func TestBookValidationOrder(t *testing.T) {
	svc, _, rt := setup(t, 1, Config{})
	ctx := context.Background()

	// unknown room wins over a bad range
	_, err := svc.Book(ctx, request(t, 999, "2026-08-03", "2026-08-01"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// bad range wins over too many guests
	req := request(t, rt.ID, "2026-08-03", "2026-08-03")
	req.Guests = 10
	_, err = svc.Book(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	req = request(t, rt.ID, "2026-08-01", "2026-08-03")
	req.Guests = 3
	_, err = svc.Book(ctx, req)
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
	kind, msg := domain.Describe(err)
	assert.Equal(t, domain.KindCapacityExceeded, kind)
	assert.Equal(t, "3 guests exceed the room capacity of 2", msg)

	req.Guests = -1
	_, err = svc.Book(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestBookDefaultsGuestsToOne(t *testing.T) {
	svc, _, rt := setup(t, 1, Config{})

	req := request(t, rt.ID, "2026-08-01", "2026-08-02")
	req.Guests = 0
	res, err := svc.Book(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, res.GuestCount)
}

func TestBookOverlapIsHalfOpen(t *testing.T) {
	svc, _, rt := setup(t, 1, Config{})
	ctx := context.Background()

	_, err := svc.Book(ctx, request(t, rt.ID, "2026-05-01", "2026-05-03"))
	require.NoError(t, err)

	_, err = svc.Book(ctx, request(t, rt.ID, "2026-05-02", "2026-05-04"))
	assert.ErrorIs(t, err, domain.ErrNoAvailability)

	_, err = svc.Book(ctx, request(t, rt.ID, "2026-05-03", "2026-05-05"))
	assert.NoError(t, err)
}

func TestBookConcurrentNeverOverbooks(t *testing.T) {
	const units = 5
	svc, store, rt := setup(t, units, Config{})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, units+1)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := request(t, rt.ID, "2026-08-01", "2026-08-03")
			req.UserID = int64(i + 1)
			_, errs[i] = svc.Book(ctx, req)
		}()
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrNoAvailability):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, units, succeeded)
	assert.Equal(t, 1, rejected)

	stay, err := domain.ParseDateRange("2026-08-01", "2026-08-03")
	require.NoError(t, err)
	n, err := store.Reservations().CountActiveOverlapping(ctx, rt.ID, stay)
	require.NoError(t, err)
	assert.Equal(t, units, n)
}

func TestBookDisjointRangesRunConcurrently(t *testing.T) {
	svc, _, rt := setup(t, 1, Config{})
	ctx := context.Background()

	ranges := [][2]string{
		{"2026-08-01", "2026-08-02"},
		{"2026-08-02", "2026-08-03"},
		{"2026-08-03", "2026-08-04"},
		{"2026-08-04", "2026-08-05"},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(ranges))
	for i, r := range ranges {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Book(ctx, request(t, rt.ID, r[0], r[1]))
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestBookRetriesReferenceCollisions(t *testing.T) {
	codes := []string{"DUPLICAT", "DUPLICAT", "UNIQUE01"}
	var mu sync.Mutex
	next := func() string {
		mu.Lock()
		defer mu.Unlock()
		c := codes[0]
		if len(codes) > 1 {
			codes = codes[1:]
		}
		return c
	}

	svc, _, rt := setup(t, 5, Config{ReferenceAttempts: 3, NewReference: next})
	ctx := context.Background()

	first, err := svc.Book(ctx, request(t, rt.ID, "2026-08-01", "2026-08-02"))
	require.NoError(t, err)
	assert.Equal(t, "DUPLICAT", first.ReferenceCode)

	second, err := svc.Book(ctx, request(t, rt.ID, "2026-08-01", "2026-08-02"))
	require.NoError(t, err)
	assert.Equal(t, "UNIQUE01", second.ReferenceCode)
}

func TestBookGivesUpOnReferenceExhaustion(t *testing.T) {
	svc, store, rt := setup(t, 5, Config{ReferenceAttempts: 2, NewReference: func() string { return "SAMECODE" }})
	ctx := context.Background()

	_, err := svc.Book(ctx, request(t, rt.ID, "2026-08-01", "2026-08-02"))
	require.NoError(t, err)

	_, err = svc.Book(ctx, request(t, rt.ID, "2026-08-01", "2026-08-02"))
	require.Error(t, err)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))

	// the failed attempt left nothing behind
	all, err := store.Reservations().List(ctx, domain.ReservationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBookRateLimited(t *testing.T) {
	store := memory.New()
	rt := domain.RoomType{Name: "Standard", Capacity: 2, TotalUnits: 5, BasePricePerNight: 5000}
	require.NoError(t, store.RoomTypes().Create(context.Background(), &rt))

	lim := &limiterMock{}
	lim.On("Allow", mock.Anything, "1").Return(false, int64(4), 30*time.Second, nil).Once()

	svc := New(store, lim, nil, Config{})
	_, err := svc.Book(context.Background(), request(t, rt.ID, "2026-08-01", "2026-08-02"))
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	lim.AssertExpectations(t)
}

func TestBookBroadcastsAfterCommit(t *testing.T) {
	store := memory.New()
	rt := domain.RoomType{Name: "Standard", Capacity: 2, TotalUnits: 1, BasePricePerNight: 5000}
	require.NoError(t, store.RoomTypes().Create(context.Background(), &rt))

	var changed []int64
	b := broadcast.New(nil, broadcast.WithLocalListener(func(id int64) { changed = append(changed, id) }))
	svc := New(store, nil, b, Config{})

	_, err := svc.Book(context.Background(), request(t, rt.ID, "2026-08-01", "2026-08-02"))
	require.NoError(t, err)
	assert.Equal(t, []int64{rt.ID}, changed)

	_, err = svc.Book(context.Background(), request(t, rt.ID, "2026-08-01", "2026-08-02"))
	require.ErrorIs(t, err, domain.ErrNoAvailability)
	assert.Len(t, changed, 1)
}

// isolationStore records the isolation level of every transaction.
type isolationStore struct {
	*memory.Store
	levels []repository.Isolation
}

func (s *isolationStore) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Repos) error,
	opts ...repository.TxOption,
) error {
	s.levels = append(s.levels, repository.NewTxOptions(opts...).Isolation)
	return s.Store.RunTx(ctx, fn, opts...)
}

func TestBookRunsAtReadCommitted(t *testing.T) {
	store := &isolationStore{Store: memory.New()}
	rt := domain.RoomType{Name: "Standard", Capacity: 2, TotalUnits: 1, BasePricePerNight: 5000}
	require.NoError(t, store.RoomTypes().Create(context.Background(), &rt))

	svc := New(store, nil, nil, Config{})
	_, err := svc.Book(context.Background(), request(t, rt.ID, "2026-08-01", "2026-08-03"))
	require.NoError(t, err)

	assert.Equal(t, []repository.Isolation{repository.ReadCommitted}, store.levels)
}
