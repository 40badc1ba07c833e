package books

import "time"

// ===== Requests =====

type CreateBookRequest struct {
	Title       string  `json:"title" binding:"required"`
	Author      string  `json:"author" binding:"required"`
	Genre       *string `json:"genre,omitempty"`
	Publisher   *string `json:"publisher,omitempty"`
	Summary     *string `json:"summary,omitempty"`
	CoverURL    *string `json:"cover_url,omitempty"`
	TotalCopies int     `json:"total_copies" binding:"required"`
}

type UpdateBookRequest struct {
	Title     *string `json:"title,omitempty"`
	Author    *string `json:"author,omitempty"`
	Genre     *string `json:"genre,omitempty"`
	Publisher *string `json:"publisher,omitempty"`
	Summary   *string `json:"summary,omitempty"`
	CoverURL  *string `json:"cover_url,omitempty"`
}

// ===== Responses =====

type BookResponse struct {
	BookID    int64     `json:"book_id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Genre     *string   `json:"genre,omitempty"`
	Publisher *string   `json:"publisher,omitempty"`
	Summary   *string   `json:"summary,omitempty"`
	CoverURL  *string   `json:"cover_url,omitempty"`
	Total     int       `json:"total"`
	Borrowed  int       `json:"borrowed"`
	Available int       `json:"available"`
	CreatedAt time.Time `json:"created_at"`
}

type BookListResponse struct {
	Items []BookResponse `json:"items"`
	Total int64          `json:"total"`
}

type Page struct {
	Limit  int
	Offset int
	Order  string
}
