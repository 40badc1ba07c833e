package borrows

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lendme-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterRoutes wires the lifecycle endpoints. The group must already run
// the auth middleware; userId always comes from the verified token.
func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.POST("/borrows/:book_id", h.Borrow)
	r.POST("/borrows/:book_id/return", h.Return)
	r.POST("/borrows/:book_id/extend", h.Extend)
	r.GET("/borrows/current", h.Current)
	r.GET("/borrows", h.List)
}

// RegisterStockRoutes wires the public stock-ledger read.
func RegisterStockRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/books/:book_id/stock", h.Stock)
}

// @Summary  Copy-count snapshot for a book
// @Tags     borrows
// @Produce  json
// @Param    book_id path int true "book id"
// @Success  200 {object} borrows.Stock
// @Router   /books/{book_id}/stock [get]
func (h *Handler) Stock(c *gin.Context) {
	bookID, err := strconv.ParseInt(c.Param("book_id"), 10, 64)
	if err != nil || bookID <= 0 {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid book id"))
		return
	}

	st, err := h.svc.Stock(c.Request.Context(), bookID)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary  Borrow one copy of a book
// @Tags     borrows
// @Produce  json
// @Security BearerAuth
// @Param    book_id path int true "book id"
// @Success  201 {object} borrows.BorrowResponse
// @Router   /borrows/{book_id} [post]
func (h *Handler) Borrow(c *gin.Context) {
	userID, bookID, ok := h.subject(c)
	if !ok {
		return
	}

	res, err := h.svc.Borrow(c.Request.Context(), userID, bookID)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}

	c.Header("Location", "/borrows/"+res.BorrowULID)
	c.JSON(http.StatusCreated, res)
}

// @Summary  Return a borrowed book
// @Tags     borrows
// @Produce  json
// @Security BearerAuth
// @Param    book_id path int true "book id"
// @Success  200 {object} borrows.ReturnResponse
// @Router   /borrows/{book_id}/return [post]
func (h *Handler) Return(c *gin.Context) {
	userID, bookID, ok := h.subject(c)
	if !ok {
		return
	}

	res, err := h.svc.Return(c.Request.Context(), userID, bookID)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary  Extend a borrow's due date (one time)
// @Tags     borrows
// @Produce  json
// @Security BearerAuth
// @Param    book_id path int true "book id"
// @Success  200 {object} borrows.ExtendResponse
// @Router   /borrows/{book_id}/extend [post]
func (h *Handler) Extend(c *gin.Context) {
	userID, bookID, ok := h.subject(c)
	if !ok {
		return
	}

	res, err := h.svc.Extend(c.Request.Context(), userID, bookID)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary  Caller's active borrows
// @Tags     borrows
// @Produce  json
// @Security BearerAuth
// @Success  200 {object} borrows.BorrowListResponse
// @Router   /borrows/current [get]
func (h *Handler) Current(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorBody(CodeInvalidArgument, "unauthenticated"))
		return
	}

	res, err := h.svc.CurrentBorrows(c.Request.Context(), userID)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary  Caller's borrow history
// @Tags     borrows
// @Produce  json
// @Security BearerAuth
// @Success  200 {object} borrows.BorrowListResponse
// @Router   /borrows [get]
func (h *Handler) List(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorBody(CodeInvalidArgument, "unauthenticated"))
		return
	}

	f := Filter{}
	if v := c.Query("status"); v != "" {
		f.Status = &v
	}
	if v := c.Query("book_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.BookID = &id
		}
	}
	p := Page{
		Limit:  parseIntDefault(c.Query("limit"), 50),
		Offset: parseIntDefault(c.Query("offset"), 0),
		Order:  c.DefaultQuery("order", "desc"),
	}

	res, err := h.svc.ListBorrows(c.Request.Context(), userID, f, p)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---------- helpers ----------

func (h *Handler) subject(c *gin.Context) (userID, bookID int64, ok bool) {
	userID, authed := auth.UserID(c)
	if !authed {
		c.JSON(http.StatusUnauthorized, errorBody(CodeInvalidArgument, "unauthenticated"))
		return 0, 0, false
	}

	bookID, err := strconv.ParseInt(c.Param("book_id"), 10, 64)
	if err != nil || bookID <= 0 {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid book id"))
		return 0, 0, false
	}
	return userID, bookID, true
}

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func errorFromErr(err error) errorDTO {
	var msg string
	var code Code = CodeInternal
	if api, ok := err.(*APIError); ok {
		code, msg = api.Code, api.Message
	} else {
		msg = err.Error()
	}
	return errorBody(code, msg)
}
