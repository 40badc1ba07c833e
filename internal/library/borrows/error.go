package borrows

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeBookNotFound     Code = "BOOK_NOT_FOUND"
	CodeAlreadyBorrowed  Code = "ALREADY_BORROWED"
	CodeOutOfStock       Code = "OUT_OF_STOCK"
	CodeNotBorrowed      Code = "NOT_BORROWED"
	CodeAlreadyExtended  Code = "ALREADY_EXTENDED"
	CodeTooEarlyToExtend Code = "TOO_EARLY_TO_EXTEND"
	CodeOverdue          Code = "OVERDUE"
	CodeInternal         Code = "INTERNAL"
	CodeUnavailable      Code = "UNAVAILABLE"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func ErrInvalid(msg string) *APIError { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrBookNotFound() *APIError      { return &APIError{Code: CodeBookNotFound, Message: "book not found"} }
func ErrAlreadyBorrowed() *APIError {
	return &APIError{Code: CodeAlreadyBorrowed, Message: "you already borrowed this book"}
}
func ErrOutOfStock() *APIError {
	return &APIError{Code: CodeOutOfStock, Message: "no available copies of this book"}
}
func ErrNotBorrowed() *APIError {
	return &APIError{Code: CodeNotBorrowed, Message: "no active borrow for this book"}
}
func ErrAlreadyExtended() *APIError {
	return &APIError{Code: CodeAlreadyExtended, Message: "this borrow was already extended once"}
}
func ErrTooEarlyToExtend(windowDays int) *APIError {
	return &APIError{
		Code:    CodeTooEarlyToExtend,
		Message: fmt.Sprintf("extension is allowed within %d days of the due date", windowDays),
	}
}
func ErrOverdue() *APIError {
	return &APIError{Code: CodeOverdue, Message: "past due date, return the book first"}
}
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }
func ErrUnavailable(msg string) *APIError {
	return &APIError{Code: CodeUnavailable, Message: msg}
}

func ToHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return http.StatusBadRequest
		case CodeBookNotFound:
			return http.StatusNotFound
		case CodeAlreadyBorrowed, CodeOutOfStock, CodeNotBorrowed,
			CodeAlreadyExtended, CodeTooEarlyToExtend, CodeOverdue:
			return http.StatusConflict
		case CodeUnavailable:
			return http.StatusServiceUnavailable
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
