package borrows

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"lendme-backend/internal/platform/db"
)

// BorrowStore is the persistence surface the lifecycle service runs on.
// The Exec* methods are single transactions: every precondition is checked
// on locked rows and either all mutations apply or none do.
type BorrowStore interface {
	ExecBorrow(ctx context.Context, b *Borrow) (Stock, error)
	ExecReturn(ctx context.Context, userID, bookID int64, now time.Time) (*Borrow, Stock, error)
	ExecExtend(ctx context.Context, userID, bookID int64, now time.Time, pol Policy) (*Borrow, Stock, error)
	GetStock(ctx context.Context, bookID int64) (Stock, error)
	FindActive(ctx context.Context, userID, bookID int64) (*Borrow, error)
	ListByUser(ctx context.Context, userID int64, f Filter, p Page) ([]Borrow, int64, error)
}

type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

const borrowCols = `borrow_id, borrow_ulid, user_id, book_id, borrow_date, due_date, return_date, status, extended`

// lockBookStock locks the book's stock row for the duration of the
// transaction and returns the current counters. Concurrent borrow/return
// for the same book serialize here.
func (s *Store) lockBookStock(ctx context.Context, tx db.DBTX, bookID int64) (total, available int, err error) {
	const q = `SELECT total_copies, available_copies FROM books WHERE book_id = ? FOR UPDATE`
	if err = tx.QueryRowContext(ctx, q, bookID).Scan(&total, &available); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, ErrBookNotFound()
		}
		return 0, 0, err
	}
	return total, available, nil
}

// lockActiveBorrow locks the active record for the (user, book) pair, if
// one exists. Lock order is always book row first, then borrow row.
func (s *Store) lockActiveBorrow(ctx context.Context, tx db.DBTX, userID, bookID int64) (*Borrow, error) {
	q := `SELECT ` + borrowCols + `
	FROM borrows
	WHERE user_id = ? AND book_id = ? AND status = ?
	LIMIT 1 FOR UPDATE`
	b, err := scanBorrow(tx.QueryRowContext(ctx, q, userID, bookID, StatusBorrowed))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

func (s *Store) ExecBorrow(ctx context.Context, b *Borrow) (Stock, error) {
	var st Stock
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		total, available, err := s.lockBookStock(ctx, tx, b.BookID)
		if err != nil {
			return err
		}

		active, err := s.lockActiveBorrow(ctx, tx, b.UserID, b.BookID)
		if err != nil {
			return err
		}
		if active != nil {
			return ErrAlreadyBorrowed()
		}
		if available <= 0 {
			return ErrOutOfStock()
		}

		const dec = `UPDATE books SET available_copies = available_copies - 1 WHERE book_id = ? AND available_copies > 0`
		res, err := tx.ExecContext(ctx, dec, b.BookID)
		if err != nil {
			return err
		}
		if aff, _ := res.RowsAffected(); aff != 1 {
			return ErrInternal("failed to reserve a copy")
		}

		const ins = `
		INSERT INTO borrows (borrow_ulid, user_id, book_id, borrow_date, due_date, status, extended)
		VALUES (?, ?, ?, ?, ?, ?, 0)`
		ires, err := tx.ExecContext(ctx, ins,
			b.BorrowULID, b.UserID, b.BookID, b.BorrowDate, b.DueDate, StatusBorrowed)
		if err != nil {
			return err
		}
		id, _ := ires.LastInsertId()
		b.BorrowID = id
		b.Status = StatusBorrowed

		st = snapshot(total, available-1)
		return nil
	})
	if err != nil {
		return Stock{}, storeErr("borrow", err)
	}
	return st, nil
}

func (s *Store) ExecReturn(ctx context.Context, userID, bookID int64, now time.Time) (*Borrow, Stock, error) {
	var (
		ret *Borrow
		st  Stock
	)
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		total, available, err := s.lockBookStock(ctx, tx, bookID)
		if err != nil {
			return err
		}

		active, err := s.lockActiveBorrow(ctx, tx, userID, bookID)
		if err != nil {
			return err
		}
		if active == nil {
			return ErrNotBorrowed()
		}

		const upd = `UPDATE borrows SET status = ?, return_date = ? WHERE borrow_id = ? AND status = ?`
		res, err := tx.ExecContext(ctx, upd, StatusReturned, now, active.BorrowID, StatusBorrowed)
		if err != nil {
			return err
		}
		if aff, _ := res.RowsAffected(); aff != 1 {
			return ErrInternal("failed to close borrow record")
		}

		// The guard on available_copies < total_copies makes over-release a
		// hard failure instead of silently clamping a corrupted ledger.
		const inc = `UPDATE books SET available_copies = available_copies + 1 WHERE book_id = ? AND available_copies < total_copies`
		ires, err := tx.ExecContext(ctx, inc, bookID)
		if err != nil {
			return err
		}
		if aff, _ := ires.RowsAffected(); aff != 1 {
			return ErrInternal("stock over-release detected")
		}

		active.Status = StatusReturned
		active.ReturnDate = sql.NullTime{Time: now, Valid: true}
		ret = active
		st = snapshot(total, available+1)
		return nil
	})
	if err != nil {
		return nil, Stock{}, storeErr("return", err)
	}
	return ret, st, nil
}

func (s *Store) ExecExtend(ctx context.Context, userID, bookID int64, now time.Time, pol Policy) (*Borrow, Stock, error) {
	var (
		ext *Borrow
		st  Stock
	)
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		total, available, err := s.lockBookStock(ctx, tx, bookID)
		if err != nil {
			return err
		}

		active, err := s.lockActiveBorrow(ctx, tx, userID, bookID)
		if err != nil {
			return err
		}
		if active == nil {
			return ErrNotBorrowed()
		}
		if active.Extended {
			return ErrAlreadyExtended()
		}
		if err := checkExtendWindow(now, active.DueDate, pol.ExtendWindowDays); err != nil {
			return err
		}

		// The new due date is anchored to the old one, not to now.
		newDue := active.DueDate.Add(pol.Extension())

		// extended = 0 in the WHERE clause is the safety net against a
		// second extension slipping through.
		const upd = `UPDATE borrows SET due_date = ?, extended = 1 WHERE borrow_id = ? AND extended = 0`
		res, err := tx.ExecContext(ctx, upd, newDue, active.BorrowID)
		if err != nil {
			return err
		}
		if aff, _ := res.RowsAffected(); aff != 1 {
			return ErrAlreadyExtended()
		}

		active.DueDate = newDue
		active.Extended = true
		ext = active
		st = snapshot(total, available)
		return nil
	})
	if err != nil {
		return nil, Stock{}, storeErr("extend", err)
	}
	return ext, st, nil
}

func (s *Store) GetStock(ctx context.Context, bookID int64) (Stock, error) {
	const q = `SELECT total_copies, available_copies FROM books WHERE book_id = ?`
	var total, available int
	if err := s.db.QueryRowContext(ctx, q, bookID).Scan(&total, &available); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Stock{}, ErrBookNotFound()
		}
		return Stock{}, storeErr("get stock", err)
	}
	return snapshot(total, available), nil
}

func (s *Store) FindActive(ctx context.Context, userID, bookID int64) (*Borrow, error) {
	q := `SELECT ` + borrowCols + `
	FROM borrows
	WHERE user_id = ? AND book_id = ? AND status = ?
	LIMIT 1`
	b, err := scanBorrow(s.db.QueryRowContext(ctx, q, userID, bookID, StatusBorrowed))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr("find active", err)
	}
	return b, nil
}

func (s *Store) ListByUser(ctx context.Context, userID int64, f Filter, p Page) ([]Borrow, int64, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + borrowCols + ` FROM borrows WHERE user_id = ?`)
	args := []any{userID}

	if f.Status != nil {
		sb.WriteString(` AND status = ?`)
		args = append(args, *f.Status)
	}
	if f.BookID != nil {
		sb.WriteString(` AND book_id = ?`)
		args = append(args, *f.BookID)
	}

	order := "DESC"
	if strings.ToLower(p.Order) == "asc" {
		order = "ASC"
	}
	sb.WriteString(fmt.Sprintf(` ORDER BY borrow_date %s`, order))
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	sb.WriteString(` LIMIT ? OFFSET ?`)
	args = append(args, p.Limit, p.Offset)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, 0, storeErr("list", err)
	}
	defer rows.Close()

	var out []Borrow
	for rows.Next() {
		var b Borrow
		var extendedInt int
		if err := rows.Scan(
			&b.BorrowID, &b.BorrowULID, &b.UserID, &b.BookID,
			&b.BorrowDate, &b.DueDate, &b.ReturnDate, &b.Status, &extendedInt,
		); err != nil {
			return nil, 0, storeErr("list", err)
		}
		b.Extended = extendedInt != 0
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeErr("list", err)
	}

	cb := strings.Builder{}
	cb.WriteString(`SELECT COUNT(*) FROM borrows WHERE user_id = ?`)
	argsCnt := []any{userID}
	if f.Status != nil {
		cb.WriteString(` AND status = ?`)
		argsCnt = append(argsCnt, *f.Status)
	}
	if f.BookID != nil {
		cb.WriteString(` AND book_id = ?`)
		argsCnt = append(argsCnt, *f.BookID)
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, cb.String(), argsCnt...).Scan(&total); err != nil {
		return nil, 0, storeErr("list", err)
	}

	return out, total, nil
}

// ---- helpers ----

func snapshot(total, available int) Stock {
	return Stock{Total: total, Borrowed: total - available, Available: available}
}

func scanBorrow(row *sql.Row) (*Borrow, error) {
	var b Borrow
	var extendedInt int
	err := row.Scan(
		&b.BorrowID, &b.BorrowULID, &b.UserID, &b.BookID,
		&b.BorrowDate, &b.DueDate, &b.ReturnDate, &b.Status, &extendedInt,
	)
	if err != nil {
		return nil, err
	}
	b.Extended = extendedInt != 0
	return &b, nil
}

// storeErr passes domain errors through and hides storage-level failures
// behind UNAVAILABLE after logging them. Transient DB errors roll the
// transaction back, so no partial state leaks to the caller.
func storeErr(op string, err error) error {
	var api *APIError
	if errors.As(err, &api) {
		return err
	}
	log.Printf("[ERROR] borrows store %s: %v", op, err)
	return ErrUnavailable("storage unavailable")
}
