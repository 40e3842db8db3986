package submit

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// Attachment is a file supplied with a submission.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Size returns the attachment length in bytes.
func (a *Attachment) Size() int64 { return int64(len(a.Data)) }

// Ext returns the lower-cased filename extension including the dot.
func (a *Attachment) Ext() string {
	return strings.ToLower(filepath.Ext(a.Filename))
}

// Request is one submission of a form.
type Request struct {
	Form       *Form
	Values     map[string]string
	Attachment *Attachment
	// Label is the job title or product name the form was opened for.
	Label string
	// Extra fields are sent as-is after the user-entered ones.
	Extra map[string]string
	// Token identifies the rendered form instance for the in-flight guard.
	Token string
}

// Result is what the page shows after a submission.
type Result struct {
	Success      bool         `json:"success"`
	Message      string       `json:"message"`
	Outcome      State        `json:"-"`
	Code         string       `json:"code,omitempty"`
	Errors       []FieldError `json:"errors,omitempty"`
	SubmissionID string       `json:"submission_id"`
	// Clear tells the view to render an empty form.
	Clear bool `json:"-"`
}

// ErrorFor returns the message of the first error for field.
func (r *Result) ErrorFor(field string) string {
	if r == nil {
		return ""
	}
	for _, fe := range r.Errors {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}

// Message is what a Transport delivers.
type Message struct {
	Form       string
	ServiceID  string
	TemplateID string
	Fields     map[string]string
}

// Record is the audit entry of a finished submission.
type Record struct {
	ID            string
	Form          string
	Outcome       State
	Label         string
	Email         string
	IPAddress     string
	UserAgent     string
	AttachmentURL string
	Error         string
	Duration      time.Duration
	CreatedAt     time.Time
}

// Uploader stores an attachment and returns a public link to it.
type Uploader interface {
	Upload(ctx context.Context, a *Attachment) (string, error)
}

// Transport delivers a composed message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Recorder keeps an audit trail of submissions. Failures are logged and
// never change the outcome.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}
