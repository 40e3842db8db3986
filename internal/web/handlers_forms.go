package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/divinahealthcare/site/internal/submit"
	"github.com/divinahealthcare/site/internal/web/views"
)

const (
	// maxFormBody bounds url-encoded form posts.
	maxFormBody = 1 << 20
	// multipartMemory is how much of a multipart body is kept in memory.
	multipartMemory = 8 << 20
)

// parseSubmission reads the declared fields of form, its attachment and the
// form token from r.
func parseSubmission(w http.ResponseWriter, r *http.Request, form *submit.Form) (submit.Request, error) {
	req := submit.Request{Form: form, Values: make(map[string]string, len(form.Fields))}

	if rule := form.Attachment; rule != nil {
		// Twice the file limit leaves room for the other fields and lets an
		// oversized file reach validation with a precise message.
		r.Body = http.MaxBytesReader(w, r.Body, 2*rule.MaxSize+maxFormBody)
		if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return req, tooLarge(rule, err)
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
		if err := r.ParseForm(); err != nil {
			return req, fmt.Errorf("parse form: %w", err)
		}
	}

	for _, fs := range form.Fields {
		req.Values[fs.Name] = r.PostFormValue(fs.Name)
	}
	req.Token = r.PostFormValue(views.TokenField)

	if rule := form.Attachment; rule != nil {
		file, hdr, err := r.FormFile(rule.Field)
		switch {
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			// Validation reports a missing required file.
		case err != nil:
			return req, fmt.Errorf("read %s: %w", rule.Field, err)
		default:
			defer file.Close()
			data, err := io.ReadAll(io.LimitReader(file, rule.MaxSize+1))
			if err != nil {
				return req, tooLarge(rule, err)
			}
			req.Attachment = &submit.Attachment{
				Filename:    hdr.Filename,
				ContentType: hdr.Header.Get("Content-Type"),
				Data:        data,
			}
		}
	}
	return req, nil
}

// tooLarge turns a body-limit failure into a validation error on the file
// field; other errors pass through.
func tooLarge(rule *submit.AttachmentRule, err error) error {
	var mbe *http.MaxBytesError
	if !errors.As(err, &mbe) {
		return fmt.Errorf("parse multipart form: %w", err)
	}
	return &submit.ValidationError{Fields: []submit.FieldError{{
		Field:   rule.Field,
		Code:    "VAL005",
		Message: "The selected file is too large",
	}}}
}

// parseStatus is the response status for a request that could not be parsed.
func parseStatus(err error) int {
	var verr *submit.ValidationError
	if errors.As(err, &verr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// resultStatus maps an outcome to the status of the re-rendered page.
func resultStatus(res submit.Result) int {
	switch res.Outcome {
	case submit.Delivered:
		return http.StatusOK
	case submit.Rejected:
		return http.StatusUnprocessableEntity
	case submit.Busy:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// afterSubmit returns the state to re-render the form with. A delivered form
// comes back empty; otherwise the visitor's input is kept.
func afterSubmit(state views.FormState, req submit.Request, res submit.Result) views.FormState {
	state.Result = &res
	state.Open = true
	if !res.Clear {
		state.Values = req.Values
	}
	if res.Outcome == submit.Busy {
		// The first submission of this instance is still running.
		state.Token = req.Token
	}
	return state
}

// submitAndRespond runs req through the pipeline and writes the result as
// JSON, an HTMX form fragment, or via page for full renders.
func (s *Server) submitAndRespond(
	w http.ResponseWriter,
	r *http.Request,
	req submit.Request,
	state views.FormState,
	page func(status int, state views.FormState),
) {
	res := s.deps.Pipeline.Submit(withRequestMetadata(r.Context(), r), req)
	status := resultStatus(res)

	switch {
	case wantsJSON(r):
		writeJSON(w, status, res)
	case isHTMX(r):
		s.renderFragment(w, r, status, views.Form(afterSubmit(state, req, res)))
	default:
		page(status, afterSubmit(state, req, res))
	}
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	product, ok := s.deps.Catalog.Product(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, r, errNotFound, http.StatusNotFound)
		return
	}
	form := s.deps.Forms[submit.FormOrder]

	req, err := parseSubmission(w, r, form)
	if err != nil {
		s.respondError(w, r, err, parseStatus(err))
		return
	}
	req.Label = product.Name
	req.Extra = submit.OrderExtras(product.Name, product.Category)

	s.submitAndRespond(w, r, req, s.orderForm(product), func(status int, state views.FormState) {
		card := views.ProductCard{Product: product, Order: state}
		data := s.productsData("", "", &card)
		s.renderPage(w, r, status, s.page("Products", "/products"), views.Products(data))
	})
}

func (s *Server) handleCareersApply(w http.ResponseWriter, r *http.Request) {
	req, err := parseSubmission(w, r, s.deps.Forms[submit.FormCareers])
	if err != nil {
		s.respondError(w, r, err, parseStatus(err))
		return
	}
	s.submitAndRespond(w, r, req, s.careersForm(), func(status int, state views.FormState) {
		s.renderCareers(w, r, status, state)
	})
}

func (s *Server) handleJobApply(w http.ResponseWriter, r *http.Request) {
	job, ok := s.deps.Catalog.Job(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, r, errNotFound, http.StatusNotFound)
		return
	}

	req, err := parseSubmission(w, r, s.deps.Forms[submit.FormJobApplication])
	if err != nil {
		s.respondError(w, r, err, parseStatus(err))
		return
	}
	req.Label = job.Title

	s.submitAndRespond(w, r, req, s.applicationForm(job), func(status int, state views.FormState) {
		s.renderPage(w, r, status, s.page("Apply: "+job.Title, "/careers"), views.JobApply(job, state))
	})
}

func (s *Server) handleContactSubmit(w http.ResponseWriter, r *http.Request) {
	req, err := parseSubmission(w, r, s.deps.Forms[submit.FormContact])
	if err != nil {
		s.respondError(w, r, err, parseStatus(err))
		return
	}
	s.submitAndRespond(w, r, req, s.contactForm(), func(status int, state views.FormState) {
		s.renderContact(w, r, status, state)
	})
}
