package submit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	calls    int
	uploadFn func(ctx context.Context, a *Attachment) (string, error)
}

func (f *fakeUploader) Upload(ctx context.Context, a *Attachment) (string, error) {
	f.calls++
	if f.uploadFn != nil {
		return f.uploadFn(ctx, a)
	}
	return "https://files.example/abc", nil
}

type fakeTransport struct {
	calls  int
	last   Message
	sendFn func(ctx context.Context, msg Message) error
}

func (f *fakeTransport) Send(ctx context.Context, msg Message) error {
	f.calls++
	f.last = msg
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return nil
}

type fakeRecorder struct {
	records []Record
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, rec Record) error {
	f.records = append(f.records, rec)
	return f.err
}

type stateLog struct {
	mu     sync.Mutex
	events []Event
}

func (s *stateLog) Observe(_ context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *stateLog) path() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]State, 0, len(s.events)+1)
	if len(s.events) > 0 {
		out = append(out, s.events[0].From)
	}
	for _, ev := range s.events {
		out = append(out, ev.To)
	}
	return out
}

var fixedNow = time.Date(2025, time.March, 4, 14, 5, 0, 0, time.UTC)

func testForms() Registry {
	return Forms(FormsConfig{
		TemplateID:            "template_default",
		ApplicationTemplateID: "template_qwaepkc",
		CareersEmail:          "careers@divina.com",
		InboxEmail:            "DivinaHealthcare@outlook.com",
		MaxAttachmentSize:     5 << 20,
		AttachmentExtensions:  []string{".pdf", ".doc", ".docx"},
	})
}

func newTestPipeline(t *testing.T, up *fakeUploader, tr *fakeTransport, opts ...Option) (*Pipeline, *stateLog) {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	obs := &stateLog{}
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithLocation(loc),
		WithObserver(obs),
		WithServiceID("service_test"),
		WithIDGenerator(func() string { return "sub-1" }),
	}, opts...)
	return New(up, tr, opts...), obs
}

func applicationRequest(t *testing.T) Request {
	t.Helper()
	form, err := testForms().Get(FormJobApplication)
	require.NoError(t, err)
	return Request{
		Form: form,
		Values: map[string]string{
			"first_name":   "Ada",
			"last_name":    "Lovelace",
			"email":        "ada@example.com",
			"cover_letter": "I am excited...",
		},
		Attachment: &Attachment{Filename: "cv.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.7")},
		Label:      "Customer Care Specialist",
	}
}

func TestSubmit_AppendsAttachmentLinkToCoverLetter(t *testing.T) {
	up := &fakeUploader{}
	tr := &fakeTransport{}
	p, obs := newTestPipeline(t, up, tr)

	res := p.Submit(context.Background(), applicationRequest(t))

	require.True(t, res.Success, res.Message)
	assert.Equal(t, Delivered, res.Outcome)
	assert.True(t, res.Clear)
	assert.Equal(t, "sub-1", res.SubmissionID)
	assert.Equal(t, "Application submitted successfully! We'll review your application and get back to you soon.", res.Message)

	require.Equal(t, 1, up.calls)
	require.Equal(t, 1, tr.calls)
	assert.Equal(t, "I am excited...\n\n---\nCV link: https://files.example/abc", tr.last.Fields["cover_letter"])
	assert.Equal(t, "template_qwaepkc", tr.last.TemplateID)
	assert.Equal(t, "service_test", tr.last.ServiceID)
	assert.Equal(t, "Customer Care Specialist", tr.last.Fields["job_title"])
	assert.Equal(t, "March 4, 2025 at 09:05 AM EST", tr.last.Fields["timestamp"])

	assert.Equal(t, []State{Idle, Validating, Enriching, Uploading, Composing, Sending, Delivered, Idle}, obs.path())
}

func TestSubmit_SendsAngleBracketTextAsTyped(t *testing.T) {
	tr := &fakeTransport{}
	p, _ := newTestPipeline(t, &fakeUploader{}, tr)

	req := applicationRequest(t)
	req.Values["first_name"] = "<Ada>"
	req.Values["cover_letter"] = "Skills: C++ <templates>, a<b and x>y. Role: <Senior Engineer> in #team"
	res := p.Submit(context.Background(), req)

	require.True(t, res.Success, res.Message)
	assert.Equal(t, "<Ada>", tr.last.Fields["first_name"])
	assert.Equal(t,
		"Skills: C++ <templates>, a<b and x>y. Role: <Senior Engineer> in #team\n\n---\nCV link: https://files.example/abc",
		tr.last.Fields["cover_letter"])
}

func TestSubmit_MissingEmailMakesNoRemoteCalls(t *testing.T) {
	up := &fakeUploader{}
	tr := &fakeTransport{}
	p, obs := newTestPipeline(t, up, tr)

	req := applicationRequest(t)
	delete(req.Values, "email")
	res := p.Submit(context.Background(), req)

	assert.False(t, res.Success)
	assert.False(t, res.Clear)
	assert.Equal(t, Rejected, res.Outcome)
	assert.Equal(t, "VAL001", res.Code)
	assert.Equal(t, "Email Address is required", res.ErrorFor("email"))
	assert.Zero(t, up.calls, "uploader must not be called")
	assert.Zero(t, tr.calls, "transport must not be called")
	assert.Equal(t, []State{Idle, Validating, Rejected, Idle}, obs.path())
}

func TestSubmit_MissingRequiredAttachmentRejected(t *testing.T) {
	up := &fakeUploader{}
	tr := &fakeTransport{}
	p, _ := newTestPipeline(t, up, tr)

	req := applicationRequest(t)
	req.Attachment = nil
	res := p.Submit(context.Background(), req)

	assert.Equal(t, Rejected, res.Outcome)
	assert.Equal(t, "Resume / CV is required", res.ErrorFor("resume"))
	assert.Zero(t, up.calls)
	assert.Zero(t, tr.calls)
}

func TestSubmit_UploadFailureSkipsTransport(t *testing.T) {
	up := &fakeUploader{uploadFn: func(context.Context, *Attachment) (string, error) {
		return "", errors.New("503 service unavailable")
	}}
	tr := &fakeTransport{}
	p, obs := newTestPipeline(t, up, tr)

	res := p.Submit(context.Background(), applicationRequest(t))

	assert.False(t, res.Success)
	assert.False(t, res.Clear)
	assert.Equal(t, UploadFailed, res.Outcome)
	assert.Equal(t, "Failed to upload your CV. Please try again or email us directly with your attachment.", res.Message)
	assert.Equal(t, "UPL001", res.Code)
	assert.Zero(t, tr.calls, "transport must not be called after an upload failure")
	assert.Equal(t, []State{Idle, Validating, Enriching, Uploading, UploadFailed, Idle}, obs.path())
}

func TestSubmit_EmptyUploadURLIsFailure(t *testing.T) {
	up := &fakeUploader{uploadFn: func(context.Context, *Attachment) (string, error) { return "", nil }}
	tr := &fakeTransport{}
	p, _ := newTestPipeline(t, up, tr)

	res := p.Submit(context.Background(), applicationRequest(t))

	assert.Equal(t, UploadFailed, res.Outcome)
	assert.Zero(t, tr.calls)
}

func TestSubmit_TransportFailureSuggestsFallback(t *testing.T) {
	up := &fakeUploader{}
	tr := &fakeTransport{sendFn: func(context.Context, Message) error { return errors.New("status 500") }}
	p, obs := newTestPipeline(t, up, tr)

	res := p.Submit(context.Background(), applicationRequest(t))

	assert.False(t, res.Success)
	assert.False(t, res.Clear)
	assert.Equal(t, SendFailed, res.Outcome)
	assert.Contains(t, res.Message, "careers@divina.com")
	assert.Equal(t, "MAIL001", res.Code)
	assert.Equal(t, 1, up.calls, "no re-upload")
	assert.Equal(t, 1, tr.calls, "no retry")
	assert.Equal(t, []State{Idle, Validating, Enriching, Uploading, Composing, Sending, SendFailed, Idle}, obs.path())
}

func TestSubmit_WithoutAttachmentSkipsUpload(t *testing.T) {
	up := &fakeUploader{}
	tr := &fakeTransport{}
	p, obs := newTestPipeline(t, up, tr)

	form, _ := testForms().Get(FormCareers)
	res := p.Submit(context.Background(), Request{
		Form: form,
		Values: map[string]string{
			"first_name":   "  Grace ",
			"last_name":    "Hopper",
			"email":        "grace@example.com",
			"cover_letter": "Hello",
		},
	})

	require.True(t, res.Success)
	assert.Zero(t, up.calls)
	assert.Equal(t, "Grace", tr.last.Fields["first_name"])
	assert.Equal(t, "Hello", tr.last.Fields["cover_letter"])
	_, hasLabel := tr.last.Fields["job_title"]
	assert.False(t, hasLabel)
	assert.Equal(t, []State{Idle, Validating, Enriching, Composing, Sending, Delivered, Idle}, obs.path())
}

func TestSubmit_OrderCarriesProductFields(t *testing.T) {
	tr := &fakeTransport{}
	p, _ := newTestPipeline(t, &fakeUploader{}, tr)

	form, _ := testForms().Get(FormOrder)
	res := p.Submit(context.Background(), Request{
		Form: form,
		Values: map[string]string{
			"customer_name":  "Clinic A",
			"customer_email": "orders@clinic.example",
			"message":        "<b>200 boxes</b> please",
		},
		Label: "GlucoGlide™ Pen Needles",
		Extra: OrderExtras("GlucoGlide™ Pen Needles", "Diabetes Care"),
	})

	require.True(t, res.Success)
	assert.Equal(t, "GlucoGlide™ Pen Needles", tr.last.Fields["product_name"])
	assert.Equal(t, "Diabetes Care", tr.last.Fields["product_category"])
	assert.Equal(t, "New product order request: GlucoGlide™ Pen Needles", tr.last.Fields["subject"])
	assert.Equal(t, "200 boxes please", tr.last.Fields["message"])
	assert.Equal(t, "template_default", tr.last.TemplateID)
}

func TestSubmit_ExtraDoesNotOverrideUserInput(t *testing.T) {
	tr := &fakeTransport{}
	p, _ := newTestPipeline(t, &fakeUploader{}, tr)

	form, _ := testForms().Get(FormContact)
	res := p.Submit(context.Background(), Request{
		Form: form,
		Values: map[string]string{
			"name":    "Sam",
			"email":   "sam@example.com",
			"subject": "Careers",
			"message": "Hi",
		},
		Extra: map[string]string{"subject": "Injected"},
	})

	require.True(t, res.Success)
	assert.Equal(t, "Careers", tr.last.Fields["subject"])
}

func TestSubmit_DropsUndeclaredFields(t *testing.T) {
	tr := &fakeTransport{}
	p, _ := newTestPipeline(t, &fakeUploader{}, tr)

	form, _ := testForms().Get(FormContact)
	p.Submit(context.Background(), Request{
		Form: form,
		Values: map[string]string{
			"name":      "Sam",
			"email":     "sam@example.com",
			"message":   "Hi",
			"is_admin":  "true",
			"timestamp": "forged",
		},
	})

	_, ok := tr.last.Fields["is_admin"]
	assert.False(t, ok)
	assert.Equal(t, "March 4, 2025 at 09:05 AM EST", tr.last.Fields["timestamp"])
}

func TestSubmit_BusyWhileTokenHeld(t *testing.T) {
	guard := NewMemoryGuard()
	release, ok, err := guard.Acquire(context.Background(), "tok-1")
	require.NoError(t, err)
	require.True(t, ok)

	up := &fakeUploader{}
	tr := &fakeTransport{}
	p, obs := newTestPipeline(t, up, tr, WithGuard(guard))

	req := applicationRequest(t)
	req.Token = "tok-1"
	res := p.Submit(context.Background(), req)

	assert.Equal(t, Busy, res.Outcome)
	assert.Equal(t, BusyMessage, res.Message)
	assert.False(t, res.Clear)
	assert.Zero(t, up.calls)
	assert.Zero(t, tr.calls)
	assert.Equal(t, []State{Idle, Busy, Idle}, obs.path())

	release()
	res = p.Submit(context.Background(), req)
	assert.Equal(t, Delivered, res.Outcome)
}

func TestSubmit_ReleasesTokenAfterOutcome(t *testing.T) {
	guard := NewMemoryGuard()
	tr := &fakeTransport{sendFn: func(context.Context, Message) error { return errors.New("down") }}
	p, _ := newTestPipeline(t, &fakeUploader{}, tr, WithGuard(guard))

	req := applicationRequest(t)
	req.Token = "tok-2"
	assert.Equal(t, SendFailed, p.Submit(context.Background(), req).Outcome)
	assert.Equal(t, SendFailed, p.Submit(context.Background(), req).Outcome, "retry must be admitted")
}

type failingGuard struct{}

func (failingGuard) Acquire(context.Context, string) (func(), bool, error) {
	return nil, false, errors.New("redis: connection refused")
}

func TestSubmit_GuardErrorRunsUnguarded(t *testing.T) {
	tr := &fakeTransport{}
	p, _ := newTestPipeline(t, &fakeUploader{}, tr, WithGuard(failingGuard{}))

	req := applicationRequest(t)
	req.Token = "tok-3"
	res := p.Submit(context.Background(), req)

	assert.Equal(t, Delivered, res.Outcome)
	assert.Equal(t, 1, tr.calls)
}

func TestSubmit_RecordsOutcome(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("database unavailable")}
	tr := &fakeTransport{}
	p, _ := newTestPipeline(t, &fakeUploader{}, tr, WithRecorder(rec))

	ctx := ContextWithIPAddress(context.Background(), "203.0.113.7")
	ctx = ContextWithUserAgent(ctx, "test-agent")
	res := p.Submit(ctx, applicationRequest(t))

	assert.True(t, res.Success, "recorder errors must not fail the submission")
	require.Len(t, rec.records, 1)
	got := rec.records[0]
	assert.Equal(t, "sub-1", got.ID)
	assert.Equal(t, FormJobApplication, got.Form)
	assert.Equal(t, Delivered, got.Outcome)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.Equal(t, "203.0.113.7", got.IPAddress)
	assert.Equal(t, "test-agent", got.UserAgent)
	assert.Equal(t, "https://files.example/abc", got.AttachmentURL)
	assert.Equal(t, "Customer Care Specialist", got.Label)
	assert.Empty(t, got.Error)
}

func TestSubmit_AttachmentIgnoredOnFormsWithoutOne(t *testing.T) {
	up := &fakeUploader{}
	tr := &fakeTransport{}
	p, _ := newTestPipeline(t, up, tr)

	form, _ := testForms().Get(FormContact)
	res := p.Submit(context.Background(), Request{
		Form:       form,
		Values:     map[string]string{"name": "Sam", "email": "sam@example.com", "message": "Hi"},
		Attachment: &Attachment{Filename: "x.pdf", Data: []byte("x")},
	})

	assert.True(t, res.Success)
	assert.Zero(t, up.calls)
	assert.NotContains(t, tr.last.Fields["message"], "CV link")
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(Idle, Validating))
	assert.True(t, CanTransition(Enriching, Composing))
	assert.False(t, CanTransition(Uploading, Sending))
	assert.False(t, CanTransition(Validating, Uploading))
	assert.False(t, CanTransition(Delivered, Sending))

	for _, s := range []State{Rejected, UploadFailed, SendFailed, Delivered, Busy} {
		assert.True(t, s.Outcome(), s.String())
		assert.True(t, CanTransition(s, Idle), s.String())
	}
	assert.Equal(t, "upload_failed", UploadFailed.String())
	assert.Equal(t, "state(99)", State(99).String())
}
