package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divinahealthcare/site/internal/catalog"
	"github.com/divinahealthcare/site/internal/config"
	"github.com/divinahealthcare/site/internal/metrics"
	"github.com/divinahealthcare/site/internal/submit"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Site: config.SiteConfig{
			Name:         "Divina Healthcare",
			Timezone:     "UTC",
			CareersEmail: "careers@divina.com",
			InboxEmail:   "DivinaHealthcare@outlook.com",
			Phone:        "09023265024",
		},
		Rate: config.RateLimitConfig{Enabled: false},
		Security: config.SecurityConfig{
			EnableCSP: true,
		},
		Portal: config.PortalConfig{
			Enabled:    true,
			SessionTTL: time.Hour,
			CookieName: "divina_session",
		},
	}
}

func testForms() submit.Registry {
	return submit.Forms(submit.FormsConfig{
		TemplateID:            "template_default",
		ApplicationTemplateID: "template_qwaepkc",
		CareersEmail:          "careers@divina.com",
		InboxEmail:            "DivinaHealthcare@outlook.com",
		MaxAttachmentSize:     5 << 20,
		AttachmentExtensions:  []string{".pdf", ".doc", ".docx"},
	})
}

// fakeSubmitter records requests and answers with a fixed result.
type fakeSubmitter struct {
	mu     sync.Mutex
	reqs   []submit.Request
	ips    []string
	result submit.Result
}

func (f *fakeSubmitter) Submit(ctx context.Context, req submit.Request) submit.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	f.ips = append(f.ips, submit.IPAddressFromContext(ctx))
	return f.result
}

func (f *fakeSubmitter) last(t *testing.T) submit.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.reqs, "no submission reached the pipeline")
	return f.reqs[len(f.reqs)-1]
}

func delivered(msg string) submit.Result {
	return submit.Result{Success: true, Message: msg, Outcome: submit.Delivered, Clear: true, SubmissionID: "sub-1"}
}

func newTestServer(t *testing.T, cfg *config.Config, deps Deps) *Server {
	t.Helper()
	if deps.Catalog == nil {
		store, err := catalog.Default()
		require.NoError(t, err)
		deps.Catalog = store
	}
	if deps.Forms == nil {
		deps.Forms = testForms()
	}
	if deps.Pipeline == nil {
		deps.Pipeline = &fakeSubmitter{result: delivered("ok")}
	}
	return NewServer(cfg, deps)
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, s, httptest.NewRequest(http.MethodGet, target, nil))
}

func postForm(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func parse(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	return doc
}

func TestHome(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{})

	rec := get(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	doc := parse(t, rec)

	assert.Equal(t, "Divina Healthcare", doc.Find("title").Text())
	assert.Equal(t, "Home", doc.Find(`.nav-links a.active`).Text())
	assert.Equal(t, 2, doc.Find(".product-teaser").Length())
	assert.Equal(t, 6, doc.Find("#services .service").Length())
	assert.Equal(t, 4, doc.Find(".job-list li").Length())
	assert.Equal(t, 4, doc.Find(".faq-item").Length())
	assert.Equal(t, 0, doc.Find(`.nav-links a[href="/portal"]`).Length())
}

func TestProducts_Filter(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{})

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"DivinaSafe™ Hemolancets", "GlucoGlide™ Pen Needles"}},
		{"pen", []string{"GlucoGlide™ Pen Needles"}},
		{"DIABETES", []string{"DivinaSafe™ Hemolancets", "GlucoGlide™ Pen Needles"}},
		{"zzz", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := get(t, s, "/products?q="+url.QueryEscape(tt.query))
			require.Equal(t, http.StatusOK, rec.Code)
			doc := parse(t, rec)

			var names []string
			doc.Find("article.product h2").Each(func(_ int, sel *goquery.Selection) {
				names = append(names, sel.Text())
			})
			assert.Equal(t, tt.want, names)
			if tt.want == nil {
				assert.Contains(t, doc.Find(".empty-state").Text(), `matching "zzz"`)
			}
		})
	}
}

func TestProducts_OrderFormOpensForOneProduct(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{})

	doc := parse(t, get(t, s, "/products?order=p2&specs=p1"))

	assert.Equal(t, 1, doc.Find("form.site-form").Length())
	form := doc.Find("#order-p2")
	require.Equal(t, 1, form.Length())
	action, _ := form.Attr("action")
	assert.Equal(t, "/products/p2/order", action)
	token, _ := form.Find(`input[name="form_token"]`).Attr("value")
	assert.NotEmpty(t, token)
	assert.Equal(t, 1, form.Find(`input[name="customer_name"][required]`).Length())

	_, open := doc.Find("#p1 details.specs").Attr("open")
	assert.True(t, open)
	_, open = doc.Find("#p2 details.specs").Attr("open")
	assert.False(t, open)
}

func TestServiceDetail(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{})

	t.Run("with details", func(t *testing.T) {
		rec := get(t, s, "/services/continuous-monitoring")
		require.Equal(t, http.StatusOK, rec.Code)
		doc := parse(t, rec)
		assert.Equal(t, "Continuous Monitoring | Divina Healthcare", doc.Find("title").Text())
		assert.Equal(t, 4, doc.Find("ul.features li").Length())
		assert.Equal(t, 4, doc.Find("ul.benefits li").Length())
	})

	t.Run("default details", func(t *testing.T) {
		doc := parse(t, get(t, s, "/services/virtual-consulting"))
		assert.Equal(t, catalog.DefaultServiceDetail.Overview, doc.Find("p.overview").Text())
		assert.Equal(t, 0, doc.Find("ul.features").Length())
	})

	t.Run("unknown", func(t *testing.T) {
		rec := get(t, s, "/services/non-existent")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		doc := parse(t, rec)
		assert.Equal(t, "Service not found", doc.Find("h1").Text())
		assert.Equal(t, "Service Not Found | Divina Healthcare", doc.Find("title").Text())
	})
}

func TestContact_FAQParam(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{})

	tests := []struct {
		target string
		open   int
	}{
		{"/contact", -1},
		{"/contact?faq=2", 2},
		{"/contact?faq=9", -1},
		{"/contact?faq=abc", -1},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			doc := parse(t, get(t, s, tt.target))
			got := -1
			doc.Find(".faq-item").Each(func(i int, sel *goquery.Selection) {
				if _, ok := sel.Attr("open"); ok {
					got = i
				}
			})
			assert.Equal(t, tt.open, got)
		})
	}
}

func TestContactSubmit_Delivered(t *testing.T) {
	sub := &fakeSubmitter{result: delivered("Thank you! Your message has been sent. We'll get back to you shortly.")}
	s := newTestServer(t, testConfig(), Deps{Pipeline: sub})

	req := postForm("/contact", url.Values{
		"name":       {"Sam Lee"},
		"email":      {"sam@example.com"},
		"subject":    {"Product Support"},
		"message":    {"Hello"},
		"form_token": {"tok-1"},
		"unexpected": {"dropped"},
	})
	req.RemoteAddr = "203.0.113.9:5555"
	rec := do(t, s, req)

	require.Equal(t, http.StatusOK, rec.Code)
	got := sub.last(t)
	assert.Equal(t, submit.FormContact, got.Form.Name)
	assert.Equal(t, "tok-1", got.Token)
	assert.Equal(t, map[string]string{
		"name": "Sam Lee", "email": "sam@example.com", "subject": "Product Support", "message": "Hello",
	}, got.Values)
	assert.Equal(t, []string{"203.0.113.9"}, sub.ips)

	doc := parse(t, rec)
	assert.Contains(t, doc.Find(".banner-success").Text(), "Your message has been sent")
	val, _ := doc.Find(`#contact-form input[name="name"]`).Attr("value")
	assert.Empty(t, val, "delivered form renders empty")
	newToken, _ := doc.Find(`#contact-form input[name="form_token"]`).Attr("value")
	assert.NotEqual(t, "tok-1", newToken)
}

func TestContactSubmit_RejectedKeepsValues(t *testing.T) {
	sub := &fakeSubmitter{result: submit.Result{
		Message: "Please fill in all required fields.",
		Outcome: submit.Rejected,
		Code:    "VAL002",
		Errors:  []submit.FieldError{{Field: "email", Code: "VAL002", Message: "Please enter a valid email address"}},
	}}
	s := newTestServer(t, testConfig(), Deps{Pipeline: sub})

	rec := do(t, s, postForm("/contact", url.Values{"name": {"Sam"}, "email": {"nope"}, "message": {"Hi"}}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	doc := parse(t, rec)
	val, _ := doc.Find(`#contact-form input[name="name"]`).Attr("value")
	assert.Equal(t, "Sam", val)
	assert.Equal(t, "Please enter a valid email address", doc.Find("#contact-form-email-error").Text())
	invalid, _ := doc.Find(`#contact-form-email`).Attr("aria-invalid")
	assert.Equal(t, "true", invalid)
	code, _ := doc.Find(".banner-error").Attr("data-code")
	assert.Equal(t, "VAL002", code)
}

func TestContactSubmit_BusyKeepsToken(t *testing.T) {
	sub := &fakeSubmitter{result: submit.Result{Message: submit.BusyMessage, Outcome: submit.Busy, Code: "BUSY001"}}
	s := newTestServer(t, testConfig(), Deps{Pipeline: sub})

	rec := do(t, s, postForm("/contact", url.Values{"name": {"Sam"}, "form_token": {"tok-7"}}))

	assert.Equal(t, http.StatusConflict, rec.Code)
	doc := parse(t, rec)
	token, _ := doc.Find(`#contact-form input[name="form_token"]`).Attr("value")
	assert.Equal(t, "tok-7", token)
	assert.Equal(t, submit.BusyMessage, doc.Find(".banner-error").Text())
}

func TestContactSubmit_JSONAndHTMX(t *testing.T) {
	sub := &fakeSubmitter{result: delivered("sent")}
	s := newTestServer(t, testConfig(), Deps{Pipeline: sub})

	req := postForm("/contact", url.Values{"name": {"Sam"}})
	req.Header.Set("Accept", "application/json")
	rec := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "sub-1", body["submission_id"])

	req = postForm("/contact", url.Values{"name": {"Sam"}})
	req.Header.Set("HX-Request", "true")
	rec = do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<html")
	assert.True(t, strings.HasPrefix(rec.Body.String(), `<form id="contact-form"`))
}

func TestOrderSubmit(t *testing.T) {
	sub := &fakeSubmitter{result: submit.Result{Message: "Failed to process your request.", Outcome: submit.SendFailed, Code: "MAIL001"}}
	s := newTestServer(t, testConfig(), Deps{Pipeline: sub})

	rec := do(t, s, postForm("/products/p2/order", url.Values{
		"customer_name":  {"Jane Doe"},
		"customer_email": {"jane@example.com"},
		"message":        {"10 boxes"},
	}))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	got := sub.last(t)
	assert.Equal(t, submit.FormOrder, got.Form.Name)
	assert.Equal(t, "GlucoGlide™ Pen Needles", got.Label)
	assert.Equal(t, "New product order request: GlucoGlide™ Pen Needles", got.Extra["subject"])
	assert.Equal(t, "Diabetes Care", got.Extra["product_category"])

	doc := parse(t, rec)
	form := doc.Find("#order-p2")
	require.Equal(t, 1, form.Length(), "submitted order form stays open")
	assert.Equal(t, "10 boxes", form.Find(`textarea[name="message"]`).Text())
	assert.Equal(t, 0, doc.Find("#order-p1").Length())
}

func TestOrderSubmit_UnknownProduct(t *testing.T) {
	sub := &fakeSubmitter{}
	s := newTestServer(t, testConfig(), Deps{Pipeline: sub})

	rec := do(t, s, postForm("/products/nope/order", url.Values{"customer_name": {"x"}}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, sub.reqs)
}

type stubUploader struct {
	mu    sync.Mutex
	files []*submit.Attachment
}

func (u *stubUploader) Upload(_ context.Context, a *submit.Attachment) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.files = append(u.files, a)
	return "https://files.example/resumes/cv.pdf", nil
}

type stubTransport struct {
	mu   sync.Mutex
	msgs []submit.Message
}

func (tr *stubTransport) Send(_ context.Context, msg submit.Message) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.msgs = append(tr.msgs, msg)
	return nil
}

func multipartApplication(t *testing.T, fields map[string]string, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("resume", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/careers/j4/apply", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestJobApply_EndToEnd(t *testing.T) {
	up := &stubUploader{}
	tr := &stubTransport{}
	pipeline := submit.New(up, tr, submit.WithServiceID("service_x"))
	s := newTestServer(t, testConfig(), Deps{Pipeline: pipeline})

	rec := do(t, s, multipartApplication(t, map[string]string{
		"first_name":   "Ada",
		"last_name":    "Obi",
		"email":        "ada@example.com",
		"cover_letter": "I love logistics",
		"form_token":   "tok-a",
	}, "cv.pdf", []byte("%PDF-1.4 resume")))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, up.files, 1)
	assert.Equal(t, "cv.pdf", up.files[0].Filename)
	assert.Equal(t, []byte("%PDF-1.4 resume"), up.files[0].Data)

	require.Len(t, tr.msgs, 1)
	msg := tr.msgs[0]
	assert.Equal(t, "template_qwaepkc", msg.TemplateID)
	assert.Equal(t, "Logistics Coordinator", msg.Fields["job_title"])
	assert.Equal(t, "I love logistics\n\n---\nCV link: https://files.example/resumes/cv.pdf", msg.Fields["cover_letter"])

	doc := parse(t, rec)
	assert.Contains(t, doc.Find(".banner-success").Text(), "Application submitted successfully!")
}

func TestJobApply_MissingResume(t *testing.T) {
	up := &stubUploader{}
	tr := &stubTransport{}
	s := newTestServer(t, testConfig(), Deps{Pipeline: submit.New(up, tr)})

	rec := do(t, s, multipartApplication(t, map[string]string{
		"first_name": "Ada", "last_name": "Obi", "email": "ada@example.com",
	}, "", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, up.files)
	assert.Empty(t, tr.msgs)
	doc := parse(t, rec)
	assert.Equal(t, "Resume / CV is required", doc.Find("#job-apply-resume-error").Text())
	val, _ := doc.Find(`input[name="first_name"]`).Attr("value")
	assert.Equal(t, "Ada", val)
}

func TestJobApplyPage(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{})

	doc := parse(t, get(t, s, "/careers/j1/apply"))
	form := doc.Find("#job-apply")
	enctype, _ := form.Attr("enctype")
	assert.Equal(t, "multipart/form-data", enctype)
	accept, _ := form.Find(`input[type="file"]`).Attr("accept")
	assert.Equal(t, ".pdf,.doc,.docx", accept)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/careers/j99/apply").Code)
}

func TestCareersMailto(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{})

	q := url.Values{"first_name": {"Ada"}, "last_name": {"Obi"}, "email": {"ada@example.com"}, "cover_letter": {"Hi there"}}
	rec := get(t, s, "/careers/mailto?"+q.Encode())

	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, "mailto:DivinaHealthcare@outlook.com?subject=Job%20Application%3A%20Ada%20Obi&body="), loc)
}

func TestCareersPage_MailtoAlternative(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{})

	doc := parse(t, get(t, s, "/careers"))
	alt := doc.Find(`#careers-apply button[formaction="/careers/mailto"]`)
	require.Equal(t, 1, alt.Length())
	method, _ := alt.Attr("formmethod")
	assert.Equal(t, "get", method)
	assert.Equal(t, 4, doc.Find("article.job").Length())
}

func TestAPI(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{})

	rec := get(t, s, "/api/products?q=lancet")
	require.Equal(t, http.StatusOK, rec.Code)
	var products productsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&products))
	assert.Equal(t, 1, products.Count)
	assert.Equal(t, "p1", products.Products[0].ID)

	rec = get(t, s, "/api/products?q=nothing-matches")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"products":[]`)

	rec = get(t, s, "/api/services/patient-education")
	require.Equal(t, http.StatusOK, rec.Code)
	var svc map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&svc))
	assert.Equal(t, "Patient Education", svc["title"])
	assert.Equal(t, catalog.DefaultServiceDetail.Overview, svc["detail"].(map[string]any)["overview"])

	rec = get(t, s, "/api/services/non-existent")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var errBody ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errBody))
	assert.Equal(t, "NOTFOUND", errBody.Code)
}

func TestNotFoundPage(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{})

	rec := get(t, s, "/no/such/page")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	doc := parse(t, rec)
	assert.Contains(t, doc.Find(".code").Text(), "NOTFOUND")
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{})

	rec := get(t, s, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")
}

func TestStaticAssets(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{})

	assert.Equal(t, http.StatusOK, get(t, s, "/static/css/site.css").Code)
	assert.Equal(t, http.StatusOK, get(t, s, "/static/images/pen.svg").Code)
}

func TestSubmitRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, SubmitLimit: 1}
	sub := &fakeSubmitter{result: delivered("ok")}
	s := newTestServer(t, cfg, Deps{Pipeline: sub})

	send := func() *httptest.ResponseRecorder {
		req := postForm("/contact", url.Values{"name": {"Sam"}})
		req.Header.Set("Accept", "application/json")
		req.RemoteAddr = "198.51.100.4:1234"
		return do(t, s, req)
	}

	require.Equal(t, http.StatusOK, send().Code)
	rec := send()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "RATE001", body.Code)
	assert.Len(t, sub.reqs, 1)

	// Page views use the general limit.
	assert.Equal(t, http.StatusOK, get(t, s, "/contact").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"scrape-key"}
	s := newTestServer(t, cfg, Deps{Metrics: metrics.New()})

	get(t, s, "/about")

	assert.Equal(t, http.StatusUnauthorized, get(t, s, "/metrics").Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer scrape-key")
	rec := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `site_http_requests_total{method="GET",route="/about",status="200"} 1`)
}

func TestMetricsNotMountedWithoutCollector(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{})
	assert.Equal(t, http.StatusNotFound, get(t, s, "/metrics").Code)
}
