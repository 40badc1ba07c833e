package borrows

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeStore is an in-memory BorrowStore for service tests. A single mutex
// stands in for the row locks of the SQL store, so each Exec* call is
// atomic exactly like its transactional counterpart.
type fakeStore struct {
	mu    sync.Mutex
	seq   int64
	books map[int64]*fakeBook
	rows  []*Borrow
}

type fakeBook struct {
	total     int
	available int
}

func newFakeStore() *fakeStore {
	return &fakeStore{books: make(map[int64]*fakeBook)}
}

func (f *fakeStore) addBook(bookID int64, total int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.books[bookID] = &fakeBook{total: total, available: total}
}

func (f *fakeStore) activeLocked(userID, bookID int64) *Borrow {
	for _, b := range f.rows {
		if b.UserID == userID && b.BookID == bookID && b.Status == StatusBorrowed {
			return b
		}
	}
	return nil
}

func (f *fakeStore) ExecBorrow(_ context.Context, b *Borrow) (Stock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bk, ok := f.books[b.BookID]
	if !ok {
		return Stock{}, ErrBookNotFound()
	}
	if f.activeLocked(b.UserID, b.BookID) != nil {
		return Stock{}, ErrAlreadyBorrowed()
	}
	if bk.available <= 0 {
		return Stock{}, ErrOutOfStock()
	}

	bk.available--
	f.seq++
	b.BorrowID = f.seq
	b.Status = StatusBorrowed

	stored := *b
	f.rows = append(f.rows, &stored)
	return snapshot(bk.total, bk.available), nil
}

func (f *fakeStore) ExecReturn(_ context.Context, userID, bookID int64, now time.Time) (*Borrow, Stock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bk, ok := f.books[bookID]
	if !ok {
		return nil, Stock{}, ErrBookNotFound()
	}
	active := f.activeLocked(userID, bookID)
	if active == nil {
		return nil, Stock{}, ErrNotBorrowed()
	}
	if bk.available >= bk.total {
		return nil, Stock{}, ErrInternal("stock over-release detected")
	}

	active.Status = StatusReturned
	active.ReturnDate.Time = now
	active.ReturnDate.Valid = true
	bk.available++

	ret := *active
	return &ret, snapshot(bk.total, bk.available), nil
}

func (f *fakeStore) ExecExtend(_ context.Context, userID, bookID int64, now time.Time, pol Policy) (*Borrow, Stock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bk, ok := f.books[bookID]
	if !ok {
		return nil, Stock{}, ErrBookNotFound()
	}
	active := f.activeLocked(userID, bookID)
	if active == nil {
		return nil, Stock{}, ErrNotBorrowed()
	}
	if active.Extended {
		return nil, Stock{}, ErrAlreadyExtended()
	}
	if err := checkExtendWindow(now, active.DueDate, pol.ExtendWindowDays); err != nil {
		return nil, Stock{}, err
	}

	active.DueDate = active.DueDate.Add(pol.Extension())
	active.Extended = true

	ext := *active
	return &ext, snapshot(bk.total, bk.available), nil
}

func (f *fakeStore) GetStock(_ context.Context, bookID int64) (Stock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bk, ok := f.books[bookID]
	if !ok {
		return Stock{}, ErrBookNotFound()
	}
	return snapshot(bk.total, bk.available), nil
}

func (f *fakeStore) FindActive(_ context.Context, userID, bookID int64) (*Borrow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if b := f.activeLocked(userID, bookID); b != nil {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID int64, filter Filter, _ Page) ([]Borrow, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Borrow
	for _, b := range f.rows {
		if b.UserID != userID {
			continue
		}
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		if filter.BookID != nil && b.BookID != *filter.BookID {
			continue
		}
		out = append(out, *b)
	}
	return out, int64(len(out)), nil
}

// checkLedger verifies available + active borrows == total for every book.
func (f *fakeStore) checkLedger() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for bookID, bk := range f.books {
		active := 0
		for _, b := range f.rows {
			if b.BookID == bookID && b.Status == StatusBorrowed {
				active++
			}
		}
		if bk.available+active != bk.total {
			return fmt.Errorf("book %d: available %d + active %d != total %d",
				bookID, bk.available, active, bk.total)
		}
	}
	return nil
}
