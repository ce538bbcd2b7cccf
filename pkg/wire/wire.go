// Package wire holds the JSON bodies and error codes of the board HTTP API.
// Servers and clients share it without depending on each other.
package wire

import (
	"fmt"
	"strings"

	"boardcore/pkg/domain"
)

// Error codes carried in error bodies so clients can rebuild typed errors.
const (
	CodeNotFound        = "not_found"
	CodeInvalidPosition = "invalid_position"
	CodeValidation      = "validation"
	CodeBadRequest      = "bad_request"
	CodeInternal        = "internal"
)

// ErrorBody is the JSON shape of every non-2xx response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	ID    string `json:"id,omitempty"`
	Field string `json:"field,omitempty"`
}

// Typed rebuilds the domain error a body describes. Bodies with an unknown
// code yield nil.
func (b ErrorBody) Typed() error {
	switch b.Code {
	case CodeNotFound:
		return domain.ErrNotFound{Entity: domain.EntityCategory, ID: b.ID}
	case CodeInvalidPosition:
		return fmt.Errorf("%s: %w", strings.TrimSuffix(b.Error, ": "+domain.ErrInvalidPosition.Error()), domain.ErrInvalidPosition)
	case CodeValidation:
		reason := b.Error
		if i := strings.LastIndex(reason, ": "); i >= 0 {
			reason = reason[i+2:]
		}
		return domain.ValidationError{Field: b.Field, Reason: reason}
	}
	return nil
}

// CategoriesBody wraps a collection response.
type CategoriesBody struct {
	Categories domain.Collection `json:"categories"`
}

// CategoryBody wraps a single category response.
type CategoryBody struct {
	Category domain.Category `json:"category"`
}

// PositionBody is the request body of the reposition endpoint.
type PositionBody struct {
	Position int `json:"position"`
}
