package wire

import (
	"errors"
	"testing"

	"boardcore/pkg/domain"
)

func TestErrorBodyTyped(t *testing.T) {
	var nf domain.ErrNotFound
	if err := (ErrorBody{Code: CodeNotFound, ID: "c9"}).Typed(); !errors.As(err, &nf) || nf.ID != "c9" {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	err := ErrorBody{Code: CodeInvalidPosition, Error: "move c1 to 5: " + domain.ErrInvalidPosition.Error()}.Typed()
	if !errors.Is(err, domain.ErrInvalidPosition) || err.Error() != "move c1 to 5: "+domain.ErrInvalidPosition.Error() {
		t.Fatalf("unexpected invalid position error %v", err)
	}
	var verr domain.ValidationError
	if err := (ErrorBody{Code: CodeValidation, Field: "Title", Error: "validate: required"}).Typed(); !errors.As(err, &verr) || verr.Reason != "required" {
		t.Fatalf("expected validation error, got %#v", err)
	}
	if err := (ErrorBody{Code: CodeInternal, Error: "internal error"}).Typed(); err != nil {
		t.Fatalf("expected nil for untyped code, got %v", err)
	}
}
