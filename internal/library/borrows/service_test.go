package borrows

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (f *fixedClock) Now() time.Time { return f.t }

func (f *fixedClock) advance(d time.Duration) { f.t = f.t.Add(d) }

type seqIDGen struct{ n int }

func (g *seqIDGen) New() (string, error) {
	g.n++
	return fmt.Sprintf("01TESTULID%016d", g.n), nil
}

func newTestService(store BorrowStore, clock Clock) *Service {
	return &Service{
		store: store,
		clock: clock,
		id:    &seqIDGen{},
		pol:   Policy{PeriodDays: 7, ExtensionDays: 7, ExtendWindowDays: 3},
	}
}

func assertCode(t *testing.T, err error, want Code) {
	t.Helper()
	var api *APIError
	require.True(t, errors.As(err, &api), "expected APIError, got %v", err)
	assert.Equal(t, want, api.Code)
}

const day = 24 * time.Hour

func TestBorrowLifecycle_LastCopyScenario(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addBook(1, 1)
	clock := &fixedClock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)

	const userA, userB = int64(100), int64(200)

	// Borrow(userA) succeeds, stock drops to zero, due in 7 days
	res, err := svc.Borrow(ctx, userA, 1)
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(7*day), res.DueDate)
	assert.Equal(t, Stock{Total: 1, Borrowed: 1, Available: 0}, res.Stock)
	assert.False(t, res.Extended)

	// Borrow(userB) fails OUT_OF_STOCK
	_, err = svc.Borrow(ctx, userB, 1)
	assertCode(t, err, CodeOutOfStock)

	// Return(userA) succeeds, on time
	ret, err := svc.Return(ctx, userA, 1)
	require.NoError(t, err)
	assert.False(t, ret.IsLate)
	assert.Equal(t, 0, ret.DaysLate)
	assert.Equal(t, Stock{Total: 1, Borrowed: 0, Available: 1}, ret.Stock)

	// Borrow(userB) now succeeds
	_, err = svc.Borrow(ctx, userB, 1)
	require.NoError(t, err)

	require.NoError(t, store.checkLedger())
}

func TestBorrow_AlreadyBorrowed(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addBook(1, 5)
	svc := newTestService(store, &fixedClock{t: time.Now()})

	_, err := svc.Borrow(ctx, 100, 1)
	require.NoError(t, err)

	_, err = svc.Borrow(ctx, 100, 1)
	assertCode(t, err, CodeAlreadyBorrowed)

	// the rejected attempt must not touch the ledger
	st, err := svc.Stock(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Stock{Total: 5, Borrowed: 1, Available: 4}, st)
}

func TestBorrow_BookNotFound(t *testing.T) {
	svc := newTestService(newFakeStore(), &fixedClock{t: time.Now()})

	_, err := svc.Borrow(context.Background(), 100, 42)
	assertCode(t, err, CodeBookNotFound)
}

func TestReturn_SecondReturnFailsAndStockUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addBook(1, 3)
	svc := newTestService(store, &fixedClock{t: time.Now()})

	_, err := svc.Borrow(ctx, 100, 1)
	require.NoError(t, err)
	_, err = svc.Return(ctx, 100, 1)
	require.NoError(t, err)

	_, err = svc.Return(ctx, 100, 1)
	assertCode(t, err, CodeNotBorrowed)

	st, err := svc.Stock(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Stock{Total: 3, Borrowed: 0, Available: 3}, st)
}

func TestReturn_LateReporting(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addBook(1, 1)
	clock := &fixedClock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)

	_, err := svc.Borrow(ctx, 100, 1)
	require.NoError(t, err)

	// 9 days and 1 hour after borrowing = 2 days 1 hour past due -> 3 days late
	clock.advance(9*day + time.Hour)
	ret, err := svc.Return(ctx, 100, 1)
	require.NoError(t, err)
	assert.True(t, ret.IsLate)
	assert.Equal(t, 3, ret.DaysLate)
}

func TestExtend_WindowBoundaries(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		advance  time.Duration // from borrow time; due is borrow+7d
		wantCode Code
	}{
		{"four days left is too early", 3 * day, CodeTooEarlyToExtend},
		{"exactly three days left succeeds", 4 * day, ""},
		{"due this instant succeeds", 7 * day, ""},
		{"one second past due is overdue", 7*day + time.Second, CodeOverdue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.addBook(1, 1)
			clock := &fixedClock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
			svc := newTestService(store, clock)

			res, err := svc.Borrow(ctx, 100, 1)
			require.NoError(t, err)
			oldDue := res.DueDate

			clock.advance(tt.advance)
			ext, err := svc.Extend(ctx, 100, 1)
			if tt.wantCode != "" {
				assertCode(t, err, tt.wantCode)
				return
			}
			require.NoError(t, err)
			assert.True(t, ext.Extended)
			// the new due date is anchored to the old one, not to now
			assert.Equal(t, oldDue.Add(7*day), ext.NewDueDate)
		})
	}
}

func TestExtend_SecondExtensionFails(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addBook(1, 1)
	clock := &fixedClock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)

	_, err := svc.Borrow(ctx, 100, 1)
	require.NoError(t, err)

	clock.advance(4 * day) // 3 days left
	_, err = svc.Extend(ctx, 100, 1)
	require.NoError(t, err)

	_, err = svc.Extend(ctx, 100, 1)
	assertCode(t, err, CodeAlreadyExtended)
}

func TestExtend_NotBorrowed(t *testing.T) {
	store := newFakeStore()
	store.addBook(1, 1)
	svc := newTestService(store, &fixedClock{t: time.Now()})

	_, err := svc.Extend(context.Background(), 100, 1)
	assertCode(t, err, CodeNotBorrowed)
}

func TestBorrow_ConcurrentLastCopy(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addBook(1, 1)
	svc := newTestService(store, &fixedClock{t: time.Now()})

	const attempts = 32
	var (
		wg         sync.WaitGroup
		successes  int64
		outOfStock int64
		mu         sync.Mutex
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := svc.Borrow(ctx, userID, 1)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			var api *APIError
			if errors.As(err, &api) && api.Code == CodeOutOfStock {
				outOfStock++
			}
		}(int64(1000 + i))
	}
	wg.Wait()

	assert.Equal(t, int64(1), successes)
	assert.Equal(t, int64(attempts-1), outOfStock)

	st, err := svc.Stock(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Available)
	require.NoError(t, store.checkLedger())
}

func TestConcurrent_MixedBorrowReturn(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addBook(1, 4)
	svc := newTestService(store, &fixedClock{t: time.Now()})

	const users = 16
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if _, err := svc.Borrow(ctx, userID, 1); err == nil {
					_, _ = svc.Return(ctx, userID, 1)
				}
			}
		}(int64(2000 + i))
	}
	wg.Wait()

	require.NoError(t, store.checkLedger())
	st, err := svc.Stock(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, st.Total, st.Borrowed+st.Available)
}

func TestCurrentBorrows(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addBook(1, 2)
	store.addBook(2, 2)
	clock := &fixedClock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)

	_, err := svc.Borrow(ctx, 100, 1)
	require.NoError(t, err)
	_, err = svc.Borrow(ctx, 100, 2)
	require.NoError(t, err)
	_, err = svc.Return(ctx, 100, 2)
	require.NoError(t, err)

	res, err := svc.CurrentBorrows(ctx, 100)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, int64(1), res.Items[0].BookID)
	assert.Equal(t, StatusBorrowed, res.Items[0].Status)
	assert.Equal(t, 7, res.Items[0].DaysLeft)

	all, err := svc.ListBorrows(ctx, 100, Filter{}, Page{Limit: 50})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)
}

func TestBorrow_InvalidArgs(t *testing.T) {
	svc := newTestService(newFakeStore(), &fixedClock{t: time.Now()})

	_, err := svc.Borrow(context.Background(), 0, 1)
	assertCode(t, err, CodeInvalidArgument)
	_, err = svc.Borrow(context.Background(), 1, 0)
	assertCode(t, err, CodeInvalidArgument)
}
