package borrows

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"
)

// ===== Interfaces =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ===== Service =====

// Service is the borrow lifecycle engine. Legality decisions execute inside
// the store's transaction boundary so that concurrent requests for the same
// book or the same (user, book) pair serialize on the locked rows.
type Service struct {
	store BorrowStore
	clock Clock
	id    IDGen
	pol   Policy
}

func NewService(conn *sql.DB, pol Policy) *Service {
	return &Service{
		store: NewStore(conn),
		clock: realClock{},
		id:    ulidGen{},
		pol:   pol,
	}
}

// Borrow reserves one copy of the book for the user and opens a borrow
// record due PeriodDays from now.
func (s *Service) Borrow(ctx context.Context, userID, bookID int64) (*BorrowResponse, error) {
	if userID <= 0 {
		return nil, ErrInvalid("user id is required")
	}
	if bookID <= 0 {
		return nil, ErrInvalid("book id is required")
	}

	idStr, err := s.id.New()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	b := &Borrow{
		BorrowULID: idStr,
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: now,
		DueDate:    now.Add(s.pol.Period()),
	}

	st, err := s.store.ExecBorrow(ctx, b)
	if err != nil {
		return nil, err
	}

	return &BorrowResponse{
		BorrowULID: b.BorrowULID,
		BookID:     b.BookID,
		BorrowDate: b.BorrowDate,
		DueDate:    b.DueDate,
		Extended:   b.Extended,
		Stock:      st,
	}, nil
}

// Return closes the user's active record for the book and releases the
// copy. Lateness is reported, not penalized.
func (s *Service) Return(ctx context.Context, userID, bookID int64) (*ReturnResponse, error) {
	if userID <= 0 {
		return nil, ErrInvalid("user id is required")
	}
	if bookID <= 0 {
		return nil, ErrInvalid("book id is required")
	}

	now := s.clock.Now()
	ret, st, err := s.store.ExecReturn(ctx, userID, bookID, now)
	if err != nil {
		return nil, err
	}

	late := daysLate(now, ret.DueDate)
	if late < 0 {
		late = 0
	}
	return &ReturnResponse{
		BookID:     ret.BookID,
		ReturnDate: now,
		IsLate:     late > 0,
		DaysLate:   late,
		Stock:      st,
	}, nil
}

// Extend grants the one-time due-date extension if the record is inside the
// extension window and not yet past due.
func (s *Service) Extend(ctx context.Context, userID, bookID int64) (*ExtendResponse, error) {
	if userID <= 0 {
		return nil, ErrInvalid("user id is required")
	}
	if bookID <= 0 {
		return nil, ErrInvalid("book id is required")
	}

	now := s.clock.Now()
	ext, st, err := s.store.ExecExtend(ctx, userID, bookID, now, s.pol)
	if err != nil {
		return nil, err
	}

	return &ExtendResponse{
		BorrowULID: ext.BorrowULID,
		BookID:     ext.BookID,
		NewDueDate: ext.DueDate,
		Extended:   ext.Extended,
		Stock:      st,
	}, nil
}

// Stock returns the current copy-count snapshot for a book.
func (s *Service) Stock(ctx context.Context, bookID int64) (Stock, error) {
	if bookID <= 0 {
		return Stock{}, ErrInvalid("book id is required")
	}
	return s.store.GetStock(ctx, bookID)
}

// CurrentBorrows lists the caller's active records.
func (s *Service) CurrentBorrows(ctx context.Context, userID int64) (*BorrowListResponse, error) {
	status := StatusBorrowed
	return s.ListBorrows(ctx, userID, Filter{Status: &status}, Page{Limit: 100})
}

// ListBorrows lists the caller's records, including returned history.
func (s *Service) ListBorrows(ctx context.Context, userID int64, f Filter, p Page) (*BorrowListResponse, error) {
	if userID <= 0 {
		return nil, ErrInvalid("user id is required")
	}
	if f.Status != nil && *f.Status != StatusBorrowed && *f.Status != StatusReturned {
		return nil, ErrInvalid("status must be borrowed or returned")
	}

	items, total, err := s.store.ListByUser(ctx, userID, f, p)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	resp := &BorrowListResponse{Items: []BorrowItem{}, Total: total}
	for _, b := range items {
		item := BorrowItem{
			BorrowULID: b.BorrowULID,
			BookID:     b.BookID,
			BorrowDate: b.BorrowDate,
			DueDate:    b.DueDate,
			Status:     b.Status,
			Extended:   b.Extended,
		}
		if b.Active() {
			item.DaysLeft = daysLeft(now, b.DueDate)
		}
		if b.ReturnDate.Valid {
			v := b.ReturnDate.Time
			item.ReturnDate = &v
		}
		resp.Items = append(resp.Items, item)
	}
	return resp, nil
}
