// Package views renders the site's pages as templ components.
//
// The .templ files are the source; run `templ generate` after editing them.
// Models and small helpers shared by the templates live in plain Go files.
package views

import (
	"net/url"
	"sort"
	"strings"
)

// Page is the chrome shared by every full page.
type Page struct {
	SiteName string
	// Title is the page's own title; empty for the home page.
	Title string
	// Active is the path of the highlighted nav link.
	Active     string
	InboxEmail string
	Phone      string
	// Portal adds the portal link to the nav.
	Portal bool
}

// DocumentTitle is "<Title> | <SiteName>", or the site name alone.
func (p Page) DocumentTitle() string {
	if p.Title == "" {
		return p.SiteName
	}
	return p.Title + " | " + p.SiteName
}

type navLink struct {
	Name string
	Path string
}

var navLinks = []navLink{
	{"Home", "/"},
	{"About", "/about"},
	{"Products", "/products"},
	{"Services", "/services"},
	{"Careers", "/careers"},
	{"Contact", "/contact"},
}

func (p Page) links() []navLink {
	if !p.Portal {
		return navLinks
	}
	return append(append([]navLink{}, navLinks...), navLink{"Portal", "/portal"})
}

var knownIcons = map[string]bool{
	"MonitorSmartphone": true,
	"Activity":          true,
	"Users":             true,
	"Database":          true,
	"TestTube":          true,
	"Crown":             true,
}

// iconClass maps a content icon name to a CSS class. Unknown names get the
// people icon.
func iconClass(name string) string {
	if !knownIcons[name] {
		name = "Users"
	}
	return "icon icon-" + strings.ToLower(name)
}

func productsURL(query, order string) string {
	v := url.Values{}
	if q := strings.TrimSpace(query); q != "" {
		v.Set("q", q)
	}
	if order != "" {
		v.Set("order", order)
	}
	if len(v) == 0 {
		return "/products"
	}
	return "/products?" + v.Encode()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
