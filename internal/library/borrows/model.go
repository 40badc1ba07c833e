package borrows

import (
	"database/sql"
	"time"
)

const (
	StatusBorrowed = "borrowed"
	StatusReturned = "returned"
)

// Borrow is one row of the borrows table: one user's custody of one copy
// of one book.
type Borrow struct {
	BorrowID   int64
	BorrowULID string
	UserID     int64
	BookID     int64
	BorrowDate time.Time
	DueDate    time.Time
	ReturnDate sql.NullTime
	Status     string
	Extended   bool
}

// Active reports whether the book has not yet been returned.
func (b *Borrow) Active() bool { return b.Status == StatusBorrowed }

// Stock is the copy-count triple for a book. Borrowed + Available == Total
// at all times.
type Stock struct {
	Total     int `json:"total"`
	Borrowed  int `json:"borrowed"`
	Available int `json:"available"`
}

// Policy is the lending policy, loaded from config.
type Policy struct {
	PeriodDays       int
	ExtensionDays    int
	ExtendWindowDays int
}

func (p Policy) Period() time.Duration    { return time.Duration(p.PeriodDays) * 24 * time.Hour }
func (p Policy) Extension() time.Duration { return time.Duration(p.ExtensionDays) * 24 * time.Hour }

// ceilDays converts a duration to whole days, rounding any positive
// fractional remainder up. Millisecond arithmetic, so 2 days and 1 hour
// late counts as 3 days late. Callers depend on this exact rounding.
func ceilDays(d time.Duration) int {
	const dayMs = 24 * 60 * 60 * 1000
	ms := d.Milliseconds()
	q := ms / dayMs
	if ms%dayMs > 0 {
		q++
	}
	return int(q)
}

// daysLeft is the whole days remaining until due, rounded up.
func daysLeft(now, due time.Time) int { return ceilDays(due.Sub(now)) }

// daysLate is the whole days past due, rounded up. Zero or negative means
// the return is on time.
func daysLate(now, due time.Time) int { return ceilDays(now.Sub(due)) }

// checkExtendWindow decides whether an extension is permitted at `now` for a
// record due at `due`. Extension is allowed only inside the window right
// before the due date, and never once the due date has passed.
func checkExtendWindow(now, due time.Time, windowDays int) error {
	if now.After(due) {
		return ErrOverdue()
	}
	if daysLeft(now, due) > windowDays {
		return ErrTooEarlyToExtend(windowDays)
	}
	return nil
}
