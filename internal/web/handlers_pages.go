package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/divinahealthcare/site/internal/catalog"
	"github.com/divinahealthcare/site/internal/mail"
	"github.com/divinahealthcare/site/internal/submit"
	"github.com/divinahealthcare/site/internal/web/views"
)

// newFormToken identifies one rendered form instance for the in-flight guard.
func newFormToken() string {
	return uuid.NewString()
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	store := s.deps.Catalog
	s.renderPage(w, r, http.StatusOK, s.page("", "/"), views.Home(views.HomeData{
		Products: store.Products(),
		Services: store.Services(),
		Jobs:     store.Jobs(),
		FAQs:     store.FAQs(),
	}))
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, s.page("About", "/about"), views.About())
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, r, errNotFound, http.StatusNotFound)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// orderForm returns the order form state for product p.
func (s *Server) orderForm(p catalog.Product) views.FormState {
	return views.FormState{
		Form:        s.deps.Forms[submit.FormOrder],
		ID:          "order-" + p.ID,
		Action:      "/products/" + p.ID + "/order",
		Token:       newFormToken(),
		SubmitLabel: "Submit Request",
	}
}

// productsData builds the catalog page. The card for override.Product is
// replaced with override, so a submitted order form keeps its state.
func (s *Server) productsData(query string, openOrder string, override *views.ProductCard) views.ProductsData {
	products := catalog.FilterProducts(s.deps.Catalog.Products(), query)
	cards := make([]views.ProductCard, 0, len(products))
	for _, p := range products {
		if override != nil && override.Product.ID == p.ID {
			cards = append(cards, *override)
			continue
		}
		card := views.ProductCard{Product: p, Order: s.orderForm(p)}
		card.Order.Open = p.ID == openOrder
		cards = append(cards, card)
	}
	return views.ProductsData{Query: query, Cards: cards}
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := s.productsData(q.Get("q"), q.Get("order"), nil)
	if specs := q.Get("specs"); specs != "" {
		for i := range data.Cards {
			data.Cards[i].ShowSpecs = data.Cards[i].Product.ID == specs
		}
	}
	s.renderPage(w, r, http.StatusOK, s.page("Products", "/products"), views.Products(data))
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, s.page("Services", "/services"), views.Services(s.deps.Catalog.Services()))
}

func (s *Server) handleServiceDetail(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.deps.Catalog.Service(chi.URLParam(r, "id"))
	if !ok {
		s.renderPage(w, r, http.StatusNotFound, s.page("Service Not Found", "/services"), views.ServiceNotFound())
		return
	}
	s.renderPage(w, r, http.StatusOK, s.page(svc.Title, "/services"), views.ServiceDetail(svc))
}

// careersForm is the general application form state.
func (s *Server) careersForm() views.FormState {
	return views.FormState{
		Form:        s.deps.Forms[submit.FormCareers],
		ID:          "careers-apply",
		Action:      "/careers/apply",
		Token:       newFormToken(),
		SubmitLabel: "Submit Application",
		Alt:         &views.AltAction{Label: "Open in email app", Action: "/careers/mailto", Method: "get"},
	}
}

func (s *Server) handleCareers(w http.ResponseWriter, r *http.Request) {
	s.renderCareers(w, r, http.StatusOK, s.careersForm())
}

func (s *Server) renderCareers(w http.ResponseWriter, r *http.Request, status int, form views.FormState) {
	s.renderPage(w, r, status, s.page("Careers", "/careers"), views.Careers(views.CareersData{
		Jobs:  s.deps.Catalog.Jobs(),
		Apply: form,
	}))
}

// handleCareersMailto sends the visitor to their mail client with the
// application drafted, for applicants who prefer attaching the resume there.
func (s *Server) handleCareersMailto(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := mail.ApplicationMailto(s.cfg.Site.InboxEmail,
		q.Get("first_name"), q.Get("last_name"), q.Get("email"), q.Get(submit.FieldCoverLetter))
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// applicationForm is the job application form state for job.
func (s *Server) applicationForm(job catalog.Job) views.FormState {
	return views.FormState{
		Form:        s.deps.Forms[submit.FormJobApplication],
		ID:          "job-apply",
		Action:      "/careers/" + job.ID + "/apply",
		Token:       newFormToken(),
		Open:        true,
		SubmitLabel: "Submit Application",
	}
}

func (s *Server) handleJobApplyPage(w http.ResponseWriter, r *http.Request) {
	job, ok := s.deps.Catalog.Job(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, r, errNotFound, http.StatusNotFound)
		return
	}
	s.renderPage(w, r, http.StatusOK, s.page("Apply: "+job.Title, "/careers"), views.JobApply(job, s.applicationForm(job)))
}

// contactForm is the contact form state.
func (s *Server) contactForm() views.FormState {
	return views.FormState{
		Form:        s.deps.Forms[submit.FormContact],
		ID:          "contact-form",
		Action:      "/contact",
		Token:       newFormToken(),
		SubmitLabel: "Send Message",
	}
}

// openFAQ parses ?faq=N. Out-of-range or malformed values open nothing.
func openFAQ(r *http.Request, count int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("faq"))
	if err != nil || n < 0 || n >= count {
		return -1
	}
	return n
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	s.renderContact(w, r, http.StatusOK, s.contactForm())
}

func (s *Server) renderContact(w http.ResponseWriter, r *http.Request, status int, form views.FormState) {
	faqs := s.deps.Catalog.FAQs()
	s.renderPage(w, r, status, s.page("Contact", "/contact"), views.Contact(views.ContactData{
		Form:       form,
		FAQs:       faqs,
		OpenFAQ:    openFAQ(r, len(faqs)),
		InboxEmail: s.cfg.Site.InboxEmail,
		Phone:      s.cfg.Site.Phone,
	}))
}
