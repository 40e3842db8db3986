package submit

import "fmt"

// Form names.
const (
	FormCareers        = "careers"
	FormJobApplication = "job_application"
	FormContact        = "contact"
	FormOrder          = "order"
)

// Field names shared with the message templates.
const (
	FieldTimestamp   = "timestamp"
	FieldCoverLetter = "cover_letter"
	FieldJobTitle    = "job_title"
	FieldProductName = "product_name"
)

// UploadFailedMessage is reported when the attachment store rejects a file.
const UploadFailedMessage = "Failed to upload your CV. Please try again or email us directly with your attachment."

// BusyMessage is reported when the same form instance is submitted twice.
const BusyMessage = "Your submission is already being processed."

// Kind selects the input control a field renders as.
type Kind string

const (
	KindText     Kind = "text"
	KindEmail    Kind = "email"
	KindTel      Kind = "tel"
	KindTextarea Kind = "textarea"
	KindSelect   Kind = "select"
)

// FieldSpec describes one user-entered field.
type FieldSpec struct {
	Name        string
	Label       string
	Kind        Kind
	Placeholder string
	Required    bool
	// MaxLen is in runes; zero means unlimited.
	MaxLen  int
	Options []string
}

// AttachmentRule describes the file input of a form.
type AttachmentRule struct {
	Field      string
	Label      string
	Required   bool
	MaxSize    int64
	Extensions []string
}

// Form is the schema a submission is validated and composed against.
type Form struct {
	Name       string
	TemplateID string
	Fields     []FieldSpec
	Attachment *AttachmentRule

	// ComposeField receives the attachment link suffix.
	ComposeField string
	// LabelField receives Request.Label when one is given.
	LabelField string

	InvalidMessage     string
	SuccessMessage     string
	SendFailureMessage string
}

// FormsConfig supplies the deployment-specific parts of the built-in forms.
type FormsConfig struct {
	TemplateID            string
	ApplicationTemplateID string
	CareersEmail          string
	InboxEmail            string
	MaxAttachmentSize     int64
	AttachmentExtensions  []string
}

// Registry holds forms by name.
type Registry map[string]*Form

// Get returns the named form or an error for unknown names.
func (r Registry) Get(name string) (*Form, error) {
	f, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("unknown form %q", name)
	}
	return f, nil
}

// ContactSubjects are the choices of the contact form's subject field.
var ContactSubjects = []string{"General Inquiry", "Product Support", "Sales / Bulk Order", "Careers"}

// Forms returns the site's four forms.
func Forms(cfg FormsConfig) Registry {
	nameFields := []FieldSpec{
		{Name: "first_name", Label: "First Name", Kind: KindText, Required: true, MaxLen: 100},
		{Name: "last_name", Label: "Last Name", Kind: KindText, Required: true, MaxLen: 100},
		{Name: "email", Label: "Email Address", Kind: KindEmail, Placeholder: "you@example.com", Required: true, MaxLen: 254},
	}
	coverLetter := FieldSpec{
		Name: FieldCoverLetter, Label: "Cover Letter / Pitch", Kind: KindTextarea,
		Placeholder: "Tell us why you're a great fit...", MaxLen: 5000,
	}

	careers := &Form{
		Name:               FormCareers,
		TemplateID:         cfg.TemplateID,
		Fields:             append(append([]FieldSpec{}, nameFields...), coverLetter),
		ComposeField:       FieldCoverLetter,
		InvalidMessage:     "Please fill in all required fields.",
		SuccessMessage:     fmt.Sprintf("Thank you for applying! Please email your resume to %s so we can complete your application.", cfg.InboxEmail),
		SendFailureMessage: fmt.Sprintf("Failed to submit application. Please try again or email us directly at %s", cfg.CareersEmail),
	}

	application := &Form{
		Name:       FormJobApplication,
		TemplateID: cfg.ApplicationTemplateID,
		Fields: append(append([]FieldSpec{}, nameFields...),
			FieldSpec{Name: "phone", Label: "Phone Number", Kind: KindTel, MaxLen: 40},
			coverLetter,
		),
		Attachment: &AttachmentRule{
			Field:      "resume",
			Label:      "Resume / CV",
			Required:   true,
			MaxSize:    cfg.MaxAttachmentSize,
			Extensions: cfg.AttachmentExtensions,
		},
		ComposeField:       FieldCoverLetter,
		LabelField:         FieldJobTitle,
		InvalidMessage:     "Please fill in all required fields and upload your CV.",
		SuccessMessage:     "Application submitted successfully! We'll review your application and get back to you soon.",
		SendFailureMessage: fmt.Sprintf("Failed to submit application. Please try again or email us directly at %s", cfg.CareersEmail),
	}

	contact := &Form{
		Name:       FormContact,
		TemplateID: cfg.TemplateID,
		Fields: []FieldSpec{
			{Name: "name", Label: "Full Name", Kind: KindText, Placeholder: "John Smith", Required: true, MaxLen: 200},
			{Name: "email", Label: "Email Address", Kind: KindEmail, Placeholder: "john@company.com", Required: true, MaxLen: 254},
			{Name: "subject", Label: "Subject", Kind: KindSelect, Options: ContactSubjects},
			{Name: "message", Label: "Message", Kind: KindTextarea, Placeholder: "How can we help you?", Required: true, MaxLen: 5000},
		},
		ComposeField:       "message",
		InvalidMessage:     "Please fill in all required fields.",
		SuccessMessage:     "Thank you! Your message has been sent. We'll get back to you shortly.",
		SendFailureMessage: fmt.Sprintf("Failed to send your message. Please try again later or email us at %s", cfg.InboxEmail),
	}

	order := &Form{
		Name:       FormOrder,
		TemplateID: cfg.TemplateID,
		Fields: []FieldSpec{
			{Name: "customer_name", Label: "Your Name", Kind: KindText, Required: true, MaxLen: 200},
			{Name: "customer_email", Label: "Email Address", Kind: KindEmail, Required: true, MaxLen: 254},
			{Name: "message", Label: "Order Details", Kind: KindTextarea, Placeholder: "Quantity, shipping location, questions...", MaxLen: 5000},
		},
		ComposeField:       "message",
		LabelField:         FieldProductName,
		InvalidMessage:     "Please fill in all required fields.",
		SuccessMessage:     "Thank you! Your request has been received. Our team will review your order and get back to you as soon as possible.",
		SendFailureMessage: fmt.Sprintf("Failed to process your request. Please try again later or email us at %s", cfg.InboxEmail),
	}

	return Registry{
		careers.Name:     careers,
		application.Name: application,
		contact.Name:     contact,
		order.Name:       order,
	}
}

// OrderExtras returns the hidden fields sent with a product order.
func OrderExtras(productName, category string) map[string]string {
	return map[string]string{
		"subject":          "New product order request: " + productName,
		"product_category": category,
	}
}
