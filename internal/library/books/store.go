package books

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Book struct {
	BookID          int64
	Title           string
	Author          string
	Genre           sql.NullString
	Publisher       sql.NullString
	Summary         sql.NullString
	CoverURL        sql.NullString
	TotalCopies     int
	AvailableCopies int
	CreatedAt       time.Time
}

type BookStore interface {
	Insert(ctx context.Context, b *Book) error
	GetByID(ctx context.Context, id int64) (*Book, error)
	List(ctx context.Context, p Page) ([]Book, int64, error)
	Update(ctx context.Context, id int64, in UpdateBookRequest) (int64, error)
	Delete(ctx context.Context, id int64) error
	CountActiveBorrows(ctx context.Context, id int64) (int64, error)
}

type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

const bookCols = `book_id, title, author, genre, publisher, summary, cover_url, total_copies, available_copies, created_at`

func (s *Store) Insert(ctx context.Context, b *Book) error {
	const q = `
	INSERT INTO books
	(title, author, genre, publisher, summary, cover_url, total_copies, available_copies, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`
	res, err := s.db.ExecContext(ctx, q,
		b.Title, b.Author,
		nullStrOrNil(b.Genre), nullStrOrNil(b.Publisher), nullStrOrNil(b.Summary), nullStrOrNil(b.CoverURL),
		b.TotalCopies, b.AvailableCopies,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	b.BookID = id
	return nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*Book, error) {
	q := `SELECT ` + bookCols + ` FROM books WHERE book_id = ?`
	var b Book
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&b.BookID, &b.Title, &b.Author, &b.Genre, &b.Publisher, &b.Summary, &b.CoverURL,
		&b.TotalCopies, &b.AvailableCopies, &b.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) List(ctx context.Context, p Page) ([]Book, int64, error) {
	order := "DESC"
	if strings.ToLower(p.Order) == "asc" {
		order = "ASC"
	}
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	q := fmt.Sprintf(`SELECT `+bookCols+` FROM books ORDER BY created_at %s LIMIT ? OFFSET ?`, order)

	rows, err := s.db.QueryContext(ctx, q, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Book
	for rows.Next() {
		var b Book
		if err := rows.Scan(
			&b.BookID, &b.Title, &b.Author, &b.Genre, &b.Publisher, &b.Summary, &b.CoverURL,
			&b.TotalCopies, &b.AvailableCopies, &b.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) Update(ctx context.Context, id int64, in UpdateBookRequest) (int64, error) {
	sets := []string{}
	args := []any{}
	if in.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *in.Title)
	}
	if in.Author != nil {
		sets = append(sets, "author = ?")
		args = append(args, *in.Author)
	}
	if in.Genre != nil {
		sets = append(sets, "genre = ?")
		args = append(args, *in.Genre)
	}
	if in.Publisher != nil {
		sets = append(sets, "publisher = ?")
		args = append(args, *in.Publisher)
	}
	if in.Summary != nil {
		sets = append(sets, "summary = ?")
		args = append(args, *in.Summary)
	}
	if in.CoverURL != nil {
		sets = append(sets, "cover_url = ?")
		args = append(args, *in.CoverURL)
	}
	if len(sets) == 0 {
		return 0, nil
	}

	q := `UPDATE books SET ` + strings.Join(sets, ", ") + ` WHERE book_id = ?`
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM books WHERE book_id = ?`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) CountActiveBorrows(ctx context.Context, id int64) (int64, error) {
	const q = `SELECT COUNT(*) FROM borrows WHERE book_id = ? AND status = 'borrowed'`
	var n int64
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func nullStrOrNil(ns sql.NullString) any {
	if ns.Valid {
		return ns.String
	}
	return nil
}
