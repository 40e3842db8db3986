package views

import (
	"bytes"
	"context"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divinahealthcare/site/internal/submit"
)

func render(t *testing.T, c templ.Component) *goquery.Document {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)
	return doc
}

var testForm = &submit.Form{
	Fields: []submit.FieldSpec{
		{Name: "full_name", Label: "Name", Kind: submit.KindText, Placeholder: "Ada", Required: true, MaxLen: 50},
		{Name: "topic", Label: "Topic", Kind: submit.KindSelect, Options: []string{"General", "Orders"}},
		{Name: "note", Label: "Note", Kind: submit.KindTextarea},
	},
	Attachment: &submit.AttachmentRule{Field: "resume", Label: "Resume", Required: true, Extensions: []string{".pdf", ".docx"}},
}

func TestForm_RendersFieldsAndErrors(t *testing.T) {
	state := FormState{
		Form:   testForm,
		ID:     "apply",
		Action: "/careers/apply",
		Token:  "tok-1",
		Values: map[string]string{"full_name": `<Ada "Lovelace">`, "topic": "Orders", "note": "a<b"},
		Result: &submit.Result{
			Message: "Please fix the errors below.",
			Code:    "VALIDATION",
			Errors:  []submit.FieldError{{Field: "full_name", Message: "Name is too long"}},
		},
		Alt: &AltAction{Label: "Email", Action: "/careers/mailto", Method: "get"},
	}
	doc := render(t, Form(state))

	form := doc.Find("form#apply")
	require.Equal(t, 1, form.Length())
	action, _ := form.Attr("action")
	assert.Equal(t, "/careers/apply", action)
	enctype, _ := form.Attr("enctype")
	assert.Equal(t, "multipart/form-data", enctype)

	code, _ := doc.Find(".banner.banner-error").Attr("data-code")
	assert.Equal(t, "VALIDATION", code)
	token, _ := doc.Find(`input[name="form_token"]`).Attr("value")
	assert.Equal(t, "tok-1", token)

	tests := []struct {
		name string
		sel  string
		attr string
		want string
	}{
		{"value kept as typed", "#apply-full-name", "value", `<Ada "Lovelace">`},
		{"placeholder", "#apply-full-name", "placeholder", "Ada"},
		{"maxlength", "#apply-full-name", "maxlength", "50"},
		{"invalid marker", "#apply-full-name", "aria-invalid", "true"},
		{"error link", "#apply-full-name", "aria-describedby", "apply-full-name-error"},
		{"accept list", "#apply-resume", "accept", ".pdf,.docx"},
		{"alt method", `button[formaction="/careers/mailto"]`, "formmethod", "get"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := doc.Find(tt.sel)
			require.Equal(t, 1, sel.Length())
			got, ok := sel.Attr(tt.attr)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "Name is too long", doc.Find("#apply-full-name-error").Text())
	assert.True(t, doc.Find("#apply-full-name").Parent().HasClass("has-error"))
	assert.False(t, doc.Find("#apply-note").Parent().HasClass("has-error"))
	_, required := doc.Find("#apply-full-name").Attr("required")
	assert.True(t, required)
	_, required = doc.Find("#apply-note").Attr("required")
	assert.False(t, required)

	assert.Equal(t, "a<b", doc.Find("#apply-note").Text())
	assert.Equal(t, "Orders", doc.Find("#apply-topic option[selected]").Text())
	assert.Equal(t, "Accepted: PDF, DOCX", doc.Find("#apply-resume + p.hint").Text())
	assert.Equal(t, 2, doc.Find(".required").Length())
}

func TestForm_FirstOptionSelectedByDefault(t *testing.T) {
	doc := render(t, Form(FormState{Form: testForm, ID: "f", Action: "/contact"}))

	assert.Equal(t, "General", doc.Find("#f-topic option[selected]").Text())
	assert.Equal(t, 0, doc.Find(".banner").Length())
	assert.Equal(t, "Submit", doc.Find(".form-actions .btn-primary").Text())
}

func TestBanner(t *testing.T) {
	tests := []struct {
		name      string
		res       *submit.Result
		wantClass string
	}{
		{"nil result", nil, ""},
		{"no message", &submit.Result{Success: true}, ""},
		{"success", &submit.Result{Success: true, Message: "Sent"}, "banner-success"},
		{"failure", &submit.Result{Message: "Busy"}, "banner-error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := render(t, Banner(tt.res))
			banner := doc.Find(".banner")
			if tt.wantClass == "" {
				assert.Equal(t, 0, banner.Length())
				return
			}
			assert.True(t, banner.HasClass(tt.wantClass))
			assert.Equal(t, tt.res.Message, banner.Text())
		})
	}
}

func TestLayout_NavAndContactLinks(t *testing.T) {
	tests := []struct {
		name       string
		page       Page
		wantTitle  string
		wantPortal int
		wantMail   string
	}{
		{
			name:      "home",
			page:      Page{SiteName: "Divina Healthcare", Active: "/", InboxEmail: "hi@divina.example"},
			wantTitle: "Divina Healthcare",
			wantMail:  "mailto:hi@divina.example",
		},
		{
			name:       "portal page",
			page:       Page{SiteName: "Divina Healthcare", Title: "Login", Active: "/portal", Portal: true},
			wantTitle:  "Login | Divina Healthcare",
			wantPortal: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := render(t, Layout(tt.page, ServiceNotFound()))

			assert.Equal(t, tt.wantTitle, doc.Find("title").Text())
			assert.Equal(t, tt.wantPortal, doc.Find(`.nav-links a[href="/portal"]`).Length())
			active := doc.Find(".nav-links a.active")
			require.Equal(t, 1, active.Length())
			href, _ := active.Attr("href")
			assert.Equal(t, tt.page.Active, href)
			assert.Equal(t, 1, doc.Find("main .not-found").Length())

			mail, ok := doc.Find(".contact-list a").First().Attr("href")
			if tt.wantMail == "" {
				assert.False(t, ok)
				return
			}
			assert.Equal(t, tt.wantMail, mail)
		})
	}
}

func TestFaqHref(t *testing.T) {
	tests := []struct {
		i, open int
		want    string
	}{
		{0, -1, "/contact?faq=0#faq-0"},
		{2, 1, "/contact?faq=2#faq-2"},
		{1, 1, "/contact#faq"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, faqHref("/contact", tt.i, tt.open))
	}
}

func TestProductsURL(t *testing.T) {
	tests := []struct {
		query, order string
		want         string
	}{
		{"", "", "/products"},
		{"  pen ", "", "/products?q=pen"},
		{"pen", "p2", "/products?order=p2&q=pen"},
		{"", "p1", "/products?order=p1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, productsURL(tt.query, tt.order))
	}
}

func TestIconClass(t *testing.T) {
	assert.Equal(t, "icon icon-testtube", iconClass("TestTube"))
	assert.Equal(t, "icon icon-users", iconClass("Rocket"))
}
