package views

import (
	"strconv"

	"github.com/divinahealthcare/site/internal/auth"
	"github.com/divinahealthcare/site/internal/catalog"
	"github.com/divinahealthcare/site/internal/submit"
)

// CareersData is the careers page model.
type CareersData struct {
	Jobs  []catalog.Job
	Apply FormState
}

// ContactData is the contact page model.
type ContactData struct {
	Form       FormState
	FAQs       []catalog.FaqItem
	OpenFAQ    int
	InboxEmail string
	Phone      string
}

// HomeData is the home page model.
type HomeData struct {
	Products []catalog.Product
	Services []catalog.Service
	Jobs     []catalog.Job
	FAQs     []catalog.FaqItem
}

// ProductCard is one product with its order form.
type ProductCard struct {
	Product   catalog.Product
	Order     FormState
	ShowSpecs bool
}

// ProductsData is the catalog page model.
type ProductsData struct {
	Query string
	Cards []ProductCard
}

// LoginData is the portal sign-in page model.
type LoginData struct {
	Email  string
	Error  string
	Notice string
}

// SignupData is the portal registration page model.
type SignupData struct {
	Values map[string]string
	Errors map[string]string
	Error  string
}

// DashboardData is the signed-in portal model.
type DashboardData struct {
	User auth.User
	Menu []auth.MenuItem
	// Recent submissions are shown to admins when the ledger is enabled.
	Recent []submit.Record
}

// faqHref links question i to the page with that item open, or closes it
// when it is the open one, so the accordion works without JS.
func faqHref(page string, i, open int) string {
	if i == open {
		return page + "#faq"
	}
	return page + "?faq=" + strconv.Itoa(i) + "#" + faqID(i)
}

func faqID(i int) string {
	return "faq-" + strconv.Itoa(i)
}
