package submit

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"validation uses first field code", &ValidationError{Fields: []FieldError{{Field: "email", Code: "VAL002", Message: "bad"}}}, "VAL002"},
		{"generic upload failure", &UploadError{Filename: "cv.pdf", Err: errors.New("403 forbidden")}, "UPL001"},
		{"upload slots exhausted", &UploadError{Filename: "cv.pdf", Err: errors.New("too many concurrent uploads, please try again later")}, "UPL002"},
		{"upload deadline", &UploadError{Filename: "cv.pdf", Err: context.DeadlineExceeded}, "UPL003"},
		{"transport failure", &TransportError{TemplateID: "t", Err: errors.New("500")}, "MAIL001"},
		{"wrapped transport failure", fmt.Errorf("submit: %w", &TransportError{Err: errors.New("500")}), "MAIL001"},
		{"busy", ErrBusy, "BUSY001"},
		{"rate limited", fmt.Errorf("ip 1.2.3.4: %w", ErrRateLimited), "RATE001"},
		{"unknown", errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}

	got := FormatUserError(&TransportError{Err: errors.New("boom")})
	want := "Your message could not be delivered (Code: MAIL001). Please try again later or email us directly"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("network down")

	if !errors.Is(&UploadError{Err: cause}, cause) {
		t.Error("UploadError should unwrap to its cause")
	}
	if !errors.Is(&TransportError{Err: cause}, cause) {
		t.Error("TransportError should unwrap to its cause")
	}
}

func TestValidationError_Message(t *testing.T) {
	one := &ValidationError{Fields: []FieldError{{Field: "email", Message: "Email Address is required"}}}
	if got := one.Error(); got != "validation failed: email: Email Address is required" {
		t.Errorf("Error() = %q", got)
	}

	two := &ValidationError{Fields: []FieldError{{Field: "name"}, {Field: "email"}}}
	if got := two.Error(); got != "validation failed: 2 fields (name, email)" {
		t.Errorf("Error() = %q", got)
	}
}
