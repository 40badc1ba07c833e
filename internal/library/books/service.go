package books

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mysql "github.com/go-sql-driver/mysql"
	"golang.org/x/text/unicode/norm"
)

// ===== Error model =====

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		case CodeConflict:
			return 409
		default:
			return 500
		}
	}
	return 500
}

type Service struct {
	store BookStore
}

func NewService(conn *sql.DB) *Service { return &Service{store: NewStore(conn)} }

// normalizeText trims and NFC-normalizes catalog input so that title and
// author lookups don't split on Unicode composition differences.
func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// CreateBook registers a new catalog title. available_copies starts equal
// to total_copies; after creation only the borrow lifecycle mutates it.
func (s *Service) CreateBook(ctx context.Context, in CreateBookRequest) (*BookResponse, error) {
	title := normalizeText(in.Title)
	author := normalizeText(in.Author)
	if title == "" || author == "" {
		return nil, ErrInvalid("title and author are required")
	}
	if in.TotalCopies <= 0 {
		return nil, ErrInvalid("total_copies must be > 0")
	}

	b := &Book{
		Title:           title,
		Author:          author,
		TotalCopies:     in.TotalCopies,
		AvailableCopies: in.TotalCopies,
	}
	setNullStr(&b.Genre, in.Genre)
	setNullStr(&b.Publisher, in.Publisher)
	setNullStr(&b.Summary, in.Summary)
	setNullStr(&b.CoverURL, in.CoverURL)

	if err := s.store.Insert(ctx, b); err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return nil, ErrConflict("book already exists")
		}
		return nil, err
	}

	resp := buildBookResponse(b)
	return &resp, nil
}

func (s *Service) GetBook(ctx context.Context, id int64) (*BookResponse, error) {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound("book not found")
	}
	resp := buildBookResponse(b)
	return &resp, nil
}

func (s *Service) ListBooks(ctx context.Context, p Page) (*BookListResponse, error) {
	items, total, err := s.store.List(ctx, p)
	if err != nil {
		return nil, err
	}
	resp := &BookListResponse{Items: []BookResponse{}, Total: total}
	for i := range items {
		resp.Items = append(resp.Items, buildBookResponse(&items[i]))
	}
	return resp, nil
}

// UpdateBook changes catalog metadata only. Copy counts belong to the
// borrow lifecycle and are not writable here.
func (s *Service) UpdateBook(ctx context.Context, id int64, in UpdateBookRequest) (*BookResponse, error) {
	if in.Title != nil {
		t := normalizeText(*in.Title)
		if t == "" {
			return nil, ErrInvalid("title must not be empty")
		}
		in.Title = &t
	}
	if in.Author != nil {
		a := normalizeText(*in.Author)
		if a == "" {
			return nil, ErrInvalid("author must not be empty")
		}
		in.Author = &a
	}

	n, err := s.store.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// either no fields or no such row; re-read to distinguish
		if b, gerr := s.store.GetByID(ctx, id); gerr != nil {
			return nil, gerr
		} else if b == nil {
			return nil, ErrNotFound("book not found")
		}
	}
	return s.GetBook(ctx, id)
}

// DeleteBook removes a title. Refused while any copy is still out.
func (s *Service) DeleteBook(ctx context.Context, id int64) error {
	active, err := s.store.CountActiveBorrows(ctx, id)
	if err != nil {
		return err
	}
	if active > 0 {
		return ErrConflict("book has active borrows")
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound("book not found")
		}
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1451 {
			// FK from borrows history; keep the audit trail intact
			return ErrConflict("book has borrow history")
		}
		return err
	}
	return nil
}

// ---- helpers ----

func setNullStr(dst *sql.NullString, src *string) {
	if src != nil && *src != "" {
		dst.String = normalizeText(*src)
		dst.Valid = true
	}
}

func buildBookResponse(b *Book) BookResponse {
	resp := BookResponse{
		BookID:    b.BookID,
		Title:     b.Title,
		Author:    b.Author,
		Total:     b.TotalCopies,
		Borrowed:  b.TotalCopies - b.AvailableCopies,
		Available: b.AvailableCopies,
		CreatedAt: b.CreatedAt,
	}
	if b.Genre.Valid {
		v := b.Genre.String
		resp.Genre = &v
	}
	if b.Publisher.Valid {
		v := b.Publisher.String
		resp.Publisher = &v
	}
	if b.Summary.Valid {
		v := b.Summary.String
		resp.Summary = &v
	}
	if b.CoverURL.Valid {
		v := b.CoverURL.String
		resp.CoverURL = &v
	}
	return resp
}
