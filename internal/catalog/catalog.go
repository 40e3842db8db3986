// Package catalog holds the site's read-only content: products, jobs,
// services and FAQs.
//
// A Store is built once at startup from YAML (the embedded content.yaml or an
// operator-supplied file) and never mutated afterwards. Accessors hand out
// copies so handlers cannot change what other requests see.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed content.yaml
var embeddedContent []byte

// WorkMode is where a job is performed.
type WorkMode string

const (
	Remote WorkMode = "Remote"
	Hybrid WorkMode = "Hybrid"
	OnSite WorkMode = "On-site"
)

// Valid reports whether m is one of the known work modes.
func (m WorkMode) Valid() bool {
	switch m {
	case Remote, Hybrid, OnSite:
		return true
	}
	return false
}

// Product is a device sold through the catalog page.
type Product struct {
	ID          string            `yaml:"id" json:"id"`
	Name        string            `yaml:"name" json:"name"`
	Category    string            `yaml:"category" json:"category"`
	Description string            `yaml:"description" json:"description"`
	Features    []string          `yaml:"features" json:"features"`
	Specs       map[string]string `yaml:"specs" json:"specs"`
	ImageURL    string            `yaml:"image" json:"imageUrl"`
}

// Job is an open position listed on the careers page.
type Job struct {
	ID          string   `yaml:"id" json:"id"`
	Title       string   `yaml:"title" json:"title"`
	Department  string   `yaml:"department" json:"department"`
	Type        WorkMode `yaml:"type" json:"type"`
	Description string   `yaml:"description" json:"description"`
}

// Service is a healthcare service with an optional detail page body.
type Service struct {
	ID          string         `yaml:"id" json:"id"`
	Title       string         `yaml:"title" json:"title"`
	Description string         `yaml:"description" json:"description"`
	IconName    string         `yaml:"icon" json:"iconName"`
	Details     *ServiceDetail `yaml:"details,omitempty" json:"details,omitempty"`
}

// ServiceDetail is the long-form content of a service page.
type ServiceDetail struct {
	Overview string   `yaml:"overview" json:"overview"`
	Features []string `yaml:"features" json:"features"`
	Benefits []string `yaml:"benefits" json:"benefits"`
}

// DefaultServiceDetail is shown for services without written details.
var DefaultServiceDetail = ServiceDetail{
	Overview: "Detailed information about our service is coming soon. Please check back later for more details.",
}

// Detail returns the service's detail content, or DefaultServiceDetail.
func (s Service) Detail() ServiceDetail {
	if s.Details == nil {
		return DefaultServiceDetail
	}
	return *s.Details
}

// FaqItem is one question on the contact page. Order is display order.
type FaqItem struct {
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer"`
}

// GetID implementations let FindByID work over every record kind.
func (p Product) GetID() string { return p.ID }
func (j Job) GetID() string     { return j.ID }
func (s Service) GetID() string { return s.ID }

type document struct {
	Products []Product `yaml:"products"`
	Jobs     []Job     `yaml:"jobs"`
	Services []Service `yaml:"services"`
	FAQs     []FaqItem `yaml:"faqs"`
}

// Store is the immutable in-memory content set.
type Store struct {
	products []Product
	jobs     []Job
	services []Service
	faqs     []FaqItem
}

// Default loads the embedded content.
func Default() (*Store, error) {
	return Load(embeddedContent)
}

// LoadFile loads content from a YAML file on disk.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content file: %w", err)
	}
	return Load(data)
}

// Load parses and validates a YAML content document.
func Load(data []byte) (*Store, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}
	if err := doc.validate(); err != nil {
		return nil, fmt.Errorf("invalid content: %w", err)
	}
	return &Store{
		products: doc.Products,
		jobs:     doc.Jobs,
		services: doc.Services,
		faqs:     doc.FAQs,
	}, nil
}

func (d *document) validate() error {
	var errs []error

	seen := make(map[string]bool)
	for i, p := range d.Products {
		if err := checkRecord("product", i, p.ID, p.Name, seen); err != nil {
			errs = append(errs, err)
		}
	}

	clear(seen)
	for i, j := range d.Jobs {
		if err := checkRecord("job", i, j.ID, j.Title, seen); err != nil {
			errs = append(errs, err)
		}
		if !j.Type.Valid() {
			errs = append(errs, fmt.Errorf("job %q: unknown work mode %q", j.ID, j.Type))
		}
	}

	clear(seen)
	for i, s := range d.Services {
		if err := checkRecord("service", i, s.ID, s.Title, seen); err != nil {
			errs = append(errs, err)
		}
	}

	for i, f := range d.FAQs {
		if strings.TrimSpace(f.Question) == "" || strings.TrimSpace(f.Answer) == "" {
			errs = append(errs, fmt.Errorf("faq #%d: question and answer are required", i+1))
		}
	}

	return errors.Join(errs...)
}

func checkRecord(kind string, idx int, id, name string, seen map[string]bool) error {
	switch {
	case id == "":
		return fmt.Errorf("%s #%d: missing id", kind, idx+1)
	case seen[id]:
		return fmt.Errorf("%s %q: duplicate id", kind, id)
	case strings.TrimSpace(name) == "":
		seen[id] = true
		return fmt.Errorf("%s %q: missing name", kind, id)
	}
	seen[id] = true
	return nil
}

// Products returns every product in display order.
func (s *Store) Products() []Product {
	out := make([]Product, len(s.products))
	for i, p := range s.products {
		p.Features = slices.Clone(p.Features)
		p.Specs = maps.Clone(p.Specs)
		out[i] = p
	}
	return out
}

// Jobs returns every open position in display order.
func (s *Store) Jobs() []Job {
	return slices.Clone(s.jobs)
}

// Services returns every service in display order.
func (s *Store) Services() []Service {
	out := make([]Service, len(s.services))
	for i, svc := range s.services {
		if svc.Details != nil {
			d := *svc.Details
			d.Features = slices.Clone(d.Features)
			d.Benefits = slices.Clone(d.Benefits)
			svc.Details = &d
		}
		out[i] = svc
	}
	return out
}

// FAQs returns the FAQ items in display order.
func (s *Store) FAQs() []FaqItem {
	return slices.Clone(s.faqs)
}

// Product looks up a product by id.
func (s *Store) Product(id string) (Product, bool) {
	return FindByID(s.Products(), id)
}

// Job looks up a job by id.
func (s *Store) Job(id string) (Job, bool) {
	return FindByID(s.jobs, id)
}

// Service looks up a service by id.
func (s *Store) Service(id string) (Service, bool) {
	return FindByID(s.Services(), id)
}
