package submit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/divinahealthcare/site/internal/logging"
)

// errNoURL is reported when the store claims success without a link.
var errNoURL = errors.New("attachment store returned no url")

// recordTimeout bounds the audit write after the request may have ended.
const recordTimeout = 5 * time.Second

// Pipeline runs submissions: validate, enrich, upload, compose, send, report.
// A Pipeline is safe for concurrent use; each Submit call is independent.
type Pipeline struct {
	uploader  Uploader
	transport Transport
	recorder  Recorder
	guard     Guard
	observer  Observer
	serviceID string
	loc       *time.Location
	now       func() time.Time
	newID     func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder keeps an audit record of every finished submission.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithGuard replaces the default in-process guard.
func WithGuard(g Guard) Option {
	return func(p *Pipeline) { p.guard = g }
}

// WithObserver receives every state change.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithLocation sets the zone the timestamp field is rendered in.
func WithLocation(loc *time.Location) Option {
	return func(p *Pipeline) { p.loc = loc }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithServiceID sets the transport service id put on every message.
func WithServiceID(id string) Option {
	return func(p *Pipeline) { p.serviceID = id }
}

// WithIDGenerator replaces the submission id source.
func WithIDGenerator(gen func() string) Option {
	return func(p *Pipeline) { p.newID = gen }
}

// New creates a pipeline that stores attachments with uploader and delivers
// messages with transport.
func New(uploader Uploader, transport Transport, opts ...Option) *Pipeline {
	p := &Pipeline{
		uploader:  uploader,
		transport: transport,
		guard:     NewMemoryGuard(),
		loc:       time.UTC,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run is the state of one submission.
type run struct {
	p     *Pipeline
	ctx   context.Context
	id    string
	form  string
	start time.Time
	state State
}

func (r *run) to(next State, cause error) {
	if !CanTransition(r.state, next) {
		panic("submit: illegal transition " + r.state.String() + " -> " + next.String())
	}
	ev := Event{
		SubmissionID: r.id,
		Form:         r.form,
		From:         r.state,
		To:           next,
		Elapsed:      r.p.now().Sub(r.start),
		Err:          cause,
	}
	r.state = next
	if r.p.observer != nil {
		r.p.observer.Observe(r.ctx, ev)
	}
}

// Submit runs req to an outcome. Remote failures never escape as errors;
// they become a Result the page can show.
func (p *Pipeline) Submit(ctx context.Context, req Request) Result {
	id := p.newID()
	// Uploader, transport and recorder logs carry the submission id.
	ctx = logging.ContextWith(ctx, "submission_id", id, "form", req.Form.Name)
	r := &run{p: p, ctx: ctx, id: id, form: req.Form.Name, start: p.now(), state: Idle}
	log := logging.FromContext(ctx)

	release, ok, err := p.guard.Acquire(ctx, req.Token)
	switch {
	case err != nil:
		// Run unguarded rather than turn the visitor away.
		log.Warn("in-flight guard unavailable", "error", err)
		release = noop
	case !ok:
		log.Info("duplicate submission ignored")
		r.to(Busy, ErrBusy)
		return p.report(r, &req, "", ErrBusy)
	}
	defer release()

	r.to(Validating, nil)
	fields, err := Validate(&req)
	if err != nil {
		log.Info("submission rejected", "error", err)
		r.to(Rejected, err)
		return p.report(r, &req, "", err)
	}

	r.to(Enriching, nil)
	enrich(req.Form, fields, req.Label, req.Extra, p.now(), p.loc)

	var url string
	if req.Form.Attachment != nil && req.Attachment != nil {
		r.to(Uploading, nil)
		url, err = p.uploader.Upload(ctx, req.Attachment)
		if err == nil && url == "" {
			err = errNoURL
		}
		if err != nil {
			uerr := &UploadError{Filename: req.Attachment.Filename, Err: err}
			log.Error("attachment upload failed", "error", uerr)
			r.to(UploadFailed, uerr)
			return p.report(r, &req, "", uerr)
		}
	}

	r.to(Composing, nil)
	msg := Message{
		Form:       req.Form.Name,
		ServiceID:  p.serviceID,
		TemplateID: req.Form.TemplateID,
		Fields:     compose(req.Form, fields, url),
	}

	r.to(Sending, nil)
	if err := p.transport.Send(ctx, msg); err != nil {
		terr := &TransportError{TemplateID: msg.TemplateID, Err: err}
		log.Error("message delivery failed", "error", terr)
		r.to(SendFailed, terr)
		return p.report(r, &req, url, terr)
	}

	r.to(Delivered, nil)
	log.Info("submission delivered", "duration_ms", p.now().Sub(r.start).Milliseconds())
	return p.report(r, &req, url, nil)
}

// report turns the outcome into a Result, writes the audit record and
// returns the run to Idle.
func (p *Pipeline) report(r *run, req *Request, attachmentURL string, cause error) Result {
	res := Result{
		Success:      r.state == Delivered,
		Outcome:      r.state,
		SubmissionID: r.id,
		Clear:        r.state == Delivered,
	}

	switch r.state {
	case Delivered:
		res.Message = req.Form.SuccessMessage
	case Rejected:
		res.Message = req.Form.InvalidMessage
		var verr *ValidationError
		if errors.As(cause, &verr) {
			res.Errors = verr.Fields
		}
	case UploadFailed:
		res.Message = UploadFailedMessage
	case SendFailed:
		res.Message = req.Form.SendFailureMessage
	case Busy:
		res.Message = BusyMessage
	}
	if cause != nil {
		res.Code = MapError(cause).Code
	}

	p.record(r, req, attachmentURL, cause)
	r.to(Idle, nil)
	return res
}

func (p *Pipeline) record(r *run, req *Request, attachmentURL string, cause error) {
	if p.recorder == nil || r.state == Busy {
		return
	}

	rec := Record{
		ID:            r.id,
		Form:          r.form,
		Outcome:       r.state,
		Label:         req.Label,
		Email:         submitterEmail(req),
		IPAddress:     IPAddressFromContext(r.ctx),
		UserAgent:     UserAgentFromContext(r.ctx),
		AttachmentURL: attachmentURL,
		Duration:      p.now().Sub(r.start),
		CreatedAt:     r.start,
	}
	if cause != nil {
		rec.Error = cause.Error()
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), recordTimeout)
	defer cancel()
	if err := p.recorder.Record(ctx, rec); err != nil {
		logging.FromContext(r.ctx).Warn("failed to record submission", "error", err)
	}
}

// submitterEmail returns the value of the form's first email field.
func submitterEmail(req *Request) string {
	for _, spec := range req.Form.Fields {
		if spec.Kind == KindEmail {
			return strings.TrimSpace(req.Values[spec.Name])
		}
	}
	return ""
}
