package borrows

import "time"

// Listing filters; nil fields are not applied.
type Filter struct {
	Status *string
	BookID *int64
}

type Page struct {
	Limit  int
	Offset int
	Order  string
}

// ===== Responses =====

type BorrowResponse struct {
	BorrowULID string    `json:"borrow_ulid"`
	BookID     int64     `json:"book_id"`
	BorrowDate time.Time `json:"borrow_date"`
	DueDate    time.Time `json:"due_date"`
	Extended   bool      `json:"extended"`
	Stock      Stock     `json:"stock"`
}

type ReturnResponse struct {
	BookID     int64     `json:"book_id"`
	ReturnDate time.Time `json:"return_date"`
	IsLate     bool      `json:"is_late"`
	DaysLate   int       `json:"days_late"`
	Stock      Stock     `json:"stock"`
}

type ExtendResponse struct {
	BorrowULID string    `json:"borrow_ulid"`
	BookID     int64     `json:"book_id"`
	NewDueDate time.Time `json:"new_due_date"`
	Extended   bool      `json:"extended"`
	Stock      Stock     `json:"stock"`
}

type BorrowItem struct {
	BorrowULID string     `json:"borrow_ulid"`
	BookID     int64      `json:"book_id"`
	BorrowDate time.Time  `json:"borrow_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
	Status     string     `json:"status"`
	Extended   bool       `json:"extended"`
	DaysLeft   int        `json:"days_left"`
}

type BorrowListResponse struct {
	Items []BorrowItem `json:"items"`
	Total int64        `json:"total"`
}
