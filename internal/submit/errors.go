package submit

// errors.go defines the submission error taxonomy and the mapping from
// technical errors to messages users can quote to support.
//
// # Error Codes Reference
//
//	VAL001 - Required field is empty
//	VAL002 - Invalid email address
//	VAL003 - Value too long
//	VAL004 - Value not in the allowed list
//	VAL005 - Attachment missing, empty, too large or of the wrong type
//
//	UPL001 - Attachment upload failed
//	UPL002 - Too many uploads in progress
//	UPL003 - Request cancelled or timed out during upload
//
//	MAIL001 - Message delivery failed
//
//	RATE001 - Too many requests
//	BUSY001 - Submission already in progress
//
//	ERR000 - Unknown error (check logs for the technical error)

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBusy is returned by a Guard holder when the form instance is already
// being processed.
var ErrBusy = errors.New("submission already in progress")

// ErrRateLimited is used by the web layer when a client exceeds its rate.
var ErrRateLimited = errors.New("rate limit exceeded")

// FieldError is a problem with one named field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError collects every field problem found in a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("validation failed: %s: %s", e.Fields[0].Field, e.Fields[0].Message)
	}
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return fmt.Sprintf("validation failed: %d fields (%s)", len(e.Fields), strings.Join(names, ", "))
}

func (e *ValidationError) add(field, code, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Code: code, Message: msg})
}

func (e *ValidationError) empty() bool {
	return len(e.Fields) == 0
}

// UploadError wraps a failure of the attachment store.
type UploadError struct {
	Filename string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %q: %v", e.Filename, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// TransportError wraps a failure of the message transport.
type TransportError struct {
	TemplateID string
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("send with template %q: %v", e.TemplateID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// uploadPatterns refine an UploadError. First match wins.
var uploadPatterns = []errorPattern{
	{
		pattern: "too many concurrent uploads",
		msg: UserMessage{
			Message: "The system is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The upload was interrupted",
			Action:  "Please try again",
			Code:    "UPL003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The upload timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL003",
		},
	},
}

var (
	uploadMessage = UserMessage{
		Message: "Your attachment could not be uploaded",
		Action:  "Please try again or email us directly with your attachment",
		Code:    "UPL001",
	}
	transportMessage = UserMessage{
		Message: "Your message could not be delivered",
		Action:  "Please try again later or email us directly",
		Code:    "MAIL001",
	}
	rateMessage = UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}
	busyMessage = UserMessage{
		Message: "Your submission is already being processed",
		Action:  "Please wait for it to finish",
		Code:    "BUSY001",
	}
)

// defaultMessage is returned when nothing matches (ERR000). Support staff
// should check the logs for the original error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	err := &UploadError{Filename: "cv.pdf", Err: storage.ErrTooManyUploads}
//	msg := MapError(err)
//	// msg.Code == "UPL002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		verr *ValidationError
		uerr *UploadError
		terr *TransportError
	)
	switch {
	case errors.As(err, &verr):
		if len(verr.Fields) > 0 {
			return UserMessage{
				Message: verr.Fields[0].Message,
				Action:  "Please correct the highlighted fields",
				Code:    verr.Fields[0].Code,
			}
		}
		return UserMessage{Message: "Some fields are invalid", Action: "Please correct the highlighted fields", Code: "VAL001"}
	case errors.As(err, &uerr):
		errStr := strings.ToLower(err.Error())
		for _, ep := range uploadPatterns {
			if strings.Contains(errStr, ep.pattern) {
				return ep.msg
			}
		}
		return uploadMessage
	case errors.As(err, &terr):
		return transportMessage
	case errors.Is(err, ErrBusy):
		return busyMessage
	case errors.Is(err, ErrRateLimited):
		return rateMessage
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
